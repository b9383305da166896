// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/roomkeeper/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create は指定DiscordIDのユーザーを作成する。
	Create(ctx context.Context, discordID string) (*model.User, error)

	// FindByDiscordID はDiscordIDでユーザーを検索する。見つからない場合はnilを返す。
	FindByDiscordID(ctx context.Context, discordID string) (*model.User, error)

	// FindByStudentID は学籍番号に紐付くユーザーを検索する。見つからない場合はnilを返す。
	FindByStudentID(ctx context.Context, studentID int) (*model.User, error)

	// FindByNfcIdm は登録済みNFCタグのIDmに紐付くユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByNfcIdm(ctx context.Context, idm string) (*model.User, error)

	// FindByIDs は指定ID群のユーザーを取得する。存在しないIDは無視する。
	FindByIDs(ctx context.Context, ids []string) ([]*model.User, error)

	// FindAllEntryUsers は入室中（退室していない入室ログを持つ）の全ユーザーを
	// 入室時刻の昇順で返す。
	FindAllEntryUsers(ctx context.Context) ([]*model.User, error)
}

// StudentCardRepository は学生証データの永続化インターフェース。
type StudentCardRepository interface {
	// Create は学生証を作成する。
	Create(ctx context.Context, studentID int, userID string) (*model.StudentCard, error)

	// Save は既存の学生証を上書き保存する。
	Save(ctx context.Context, card model.StudentCard) error

	// FindByStudentID は学籍番号で学生証を検索する。見つからない場合はnilを返す。
	FindByStudentID(ctx context.Context, studentID int) (*model.StudentCard, error)

	// FindByUserID はユーザーIDで学生証を検索する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.StudentCard, error)
}

// NfcCardRepository は登録済みNFCタグの永続化インターフェース。
type NfcCardRepository interface {
	// Create はNFCタグを作成する。
	Create(ctx context.Context, name, idm, userID string) (*model.NfcCard, error)

	// FindByIdm はIDmでNFCタグを検索する。見つからない場合はnilを返す。
	FindByIdm(ctx context.Context, idm string) (*model.NfcCard, error)
}

// UnknownNfcCardRepository は未登録タグの永続化インターフェース。
type UnknownNfcCardRepository interface {
	// Create は未登録タグを表示コード付きで作成する。
	// コードは4桁のランダム値で、一意になるまで上限付きで再生成する。
	Create(ctx context.Context, idm string) (*model.UnknownNfcCard, error)

	// FindByCode は表示コードで未登録タグを検索する。見つからない場合はnilを返す。
	FindByCode(ctx context.Context, code string) (*model.UnknownNfcCard, error)

	// FindByIdm はIDmで未登録タグを検索する。見つからない場合はnilを返す。
	FindByIdm(ctx context.Context, idm string) (*model.UnknownNfcCard, error)

	// DeleteByID は指定IDの未登録タグを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// RoomEntryLogRepository は入退室ログの永続化インターフェース。
type RoomEntryLogRepository interface {
	// Create は入室ログを作成する（ExitAtはnull）。
	// 同一ユーザーに入室中のログが既に存在する場合はErrOpenEntryExistsを返す。
	Create(ctx context.Context, userID string, entryAt time.Time) (*model.RoomEntryLog, error)

	// Save は入退室ログを上書き保存する。
	Save(ctx context.Context, log model.RoomEntryLog) error

	// FindLastEntryByUserID は指定ユーザーの入室中ログを取得する。
	// 見つからない場合はnilを返す。
	FindLastEntryByUserID(ctx context.Context, userID string) (*model.RoomEntryLog, error)

	// FindAllEntry は入室中の全ログを入室時刻の昇順で返す。
	FindAllEntry(ctx context.Context) ([]*model.RoomEntryLog, error)

	// SetManyExitAt は指定ID群のログに退室時刻を一括設定する。
	SetManyExitAt(ctx context.Context, ids []string, exitAt time.Time) error
}
