package model

import "fmt"

// AppError は統一エラーフォーマットを表す。
// ユーザーに表示する原因カテゴリと対処方法を含み、
// 内部原因はcauseとして保持してログにのみ出す。
type AppError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: card, presence, system
	Action   string // ユーザー向け対処方法
	cause    error  // 内部原因（ユーザーには公開しない）
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は内部原因を返す。UNKNOWN以外ではnil。
func (e *AppError) Unwrap() error {
	return e.cause
}

// 定義済みエラーコード
const (
	ErrCodeStudentCardNotRegistered     = "STUDENT_CARD_NOT_REGISTERED"
	ErrCodeNfcCardNotRegistered         = "NFC_CARD_NOT_REGISTERED"
	ErrCodeNfcCardNotFound              = "NFC_CARD_NOT_FOUND"
	ErrCodeStudentCardAlreadyRegistered = "STUDENT_CARD_ALREADY_REGISTERED"
	ErrCodeNfcCardAlreadyRegistered     = "NFC_CARD_ALREADY_REGISTERED"
	ErrCodeInvalidRequest               = "INVALID_REQUEST"
	ErrCodeUnknown                      = "UNKNOWN"
)

// NewStudentCardNotRegisteredError は未登録の学生証がタッチされた場合のエラーを生成する。
func NewStudentCardNotRegisteredError() *AppError {
	return &AppError{
		Code:     ErrCodeStudentCardNotRegistered,
		Message:  "登録されていない学生証です。",
		Category: "card",
		Action:   "`/room-manager register student-card`コマンドで学生証を登録してください。",
	}
}

// NewNfcCardNotRegisteredError は未登録のNFCタグがタッチされた場合のエラーを生成する。
// 発行済みの表示コードを対処方法に含め、登録コマンドへ誘導する。
func NewNfcCardNotRegisteredError(code string) *AppError {
	return &AppError{
		Code:     ErrCodeNfcCardNotRegistered,
		Message:  "登録されていないNFCカードです。",
		Category: "card",
		Action:   fmt.Sprintf("コード %s を指定して`/room-manager register nfc-card`コマンドで登録してください。", code),
	}
}

// NewNfcCardNotFoundError は表示コードに対応する未登録タグが見つからない場合のエラーを生成する。
func NewNfcCardNotFoundError() *AppError {
	return &AppError{
		Code:     ErrCodeNfcCardNotFound,
		Message:  "指定されたコードに対応するNFCカードが見つかりません。",
		Category: "card",
		Action:   "コードに誤りがないか確認してください。カードをもう一度リーダーにタッチするとコードを再発行できます。",
	}
}

// NewStudentCardAlreadyRegisteredError は学籍番号が他のユーザーに登録済みの場合のエラーを生成する。
func NewStudentCardAlreadyRegisteredError() *AppError {
	return &AppError{
		Code:     ErrCodeStudentCardAlreadyRegistered,
		Message:  "すでに登録されている学生証番号です。",
		Category: "card",
		Action:   "学籍番号を確認してください。",
	}
}

// NewNfcCardAlreadyRegisteredError はNFCタグが登録済みの場合のエラーを生成する。
func NewNfcCardAlreadyRegisteredError() *AppError {
	return &AppError{
		Code:     ErrCodeNfcCardAlreadyRegistered,
		Message:  "すでに登録されているNFCカードです。",
		Category: "card",
		Action:   "登録済みのカードはそのままリーダーにタッチして利用できます。",
	}
}

// NewInvalidCardNameError はサニタイズ後にカードの表示名が空になった場合のエラーを生成する。
func NewInvalidCardNameError() *AppError {
	return &AppError{
		Code:     ErrCodeInvalidRequest,
		Message:  "カードの表示名に使用できる文字が含まれていません。",
		Category: "validation",
		Action:   "表示できる文字を含む名前を指定してください。",
	}
}

// NewUnknownError は予期しない内部エラーを生成する。
// 原因はログ用に保持し、ユーザーには汎用メッセージのみを返す。
func NewUnknownError(cause error) *AppError {
	return &AppError{
		Code:     ErrCodeUnknown,
		Message:  "不明なエラーが発生しました。",
		Category: "system",
		Action:   "時間をおいて再度お試しください。エラーが続く場合は開発者にお問い合わせください。",
		cause:    cause,
	}
}
