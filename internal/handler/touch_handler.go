// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/roomkeeper/internal/discord"
	"github.com/hitoshi/roomkeeper/internal/model"
	"github.com/hitoshi/roomkeeper/internal/presence"
)

// PresenceServiceInterface はタッチ・在室ハンドラーが必要とするサービスインターフェース。
type PresenceServiceInterface interface {
	// TouchCard はクレデンシャルを解決して入退室状態をトグルする。
	TouchCard(ctx context.Context, in presence.TouchInput) (*presence.TouchResult, error)
	// ListEntryUsers は在室中の全ユーザーを返す。
	ListEntryUsers(ctx context.Context) (*presence.ListEntryUsersResult, error)
	// ExitAllEntryUsers は入室中の全ログを閉じる。
	ExitAllEntryUsers(ctx context.Context) (*presence.ExitAllResult, error)
}

// TouchNotifier は入退室イベントのDiscord通知インターフェース。
type TouchNotifier interface {
	NotifyTouch(ctx context.Context, note discord.TouchNotification) error
	NotifyExitAll(ctx context.Context, mentions []string) error
}

// TouchHandler はカードタッチのHTTPハンドラー。
type TouchHandler struct {
	service  PresenceServiceInterface
	notifier TouchNotifier // nilの場合は通知なし
}

// NewTouchHandler はTouchHandlerを生成する。
func NewTouchHandler(service PresenceServiceInterface, notifier TouchNotifier) *TouchHandler {
	return &TouchHandler{
		service:  service,
		notifier: notifier,
	}
}

// touchRequest はカードタッチリクエストのボディ。
// 学生証として読み取れた場合のみstudent_idが設定される。
type touchRequest struct {
	Idm       string `json:"idm"`
	StudentID *int   `json:"student_id,omitempty"`
}

// touchResponse はカードタッチのAPIレスポンス。
type touchResponse struct {
	Success   bool          `json:"success"`
	Status    string        `json:"status"`
	Occupancy int           `json:"occupancy"`
	User      *userResponse `json:"user,omitempty"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	DiscordID string `json:"discord_id"`
	Name      string `json:"name,omitempty"`
	IconURL   string `json:"icon_url,omitempty"`
}

// Touch はカードタッチを処理する。
// POST /api/touch
func (h *TouchHandler) Touch(w http.ResponseWriter, r *http.Request) {
	var req touchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppErrorResponse(w, http.StatusBadRequest, invalidRequestError("リクエストボディの解析に失敗しました。"))
		return
	}

	if req.Idm == "" {
		writeAppErrorResponse(w, http.StatusBadRequest, invalidRequestError("idmが空です。"))
		return
	}

	result, err := h.service.TouchCard(r.Context(), presence.TouchInput{
		Idm:       req.Idm,
		StudentID: req.StudentID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 通知の失敗はタッチ結果に影響させない
	if h.notifier != nil {
		note := discord.TouchNotification{
			DiscordID:   result.User.DiscordID,
			DisplayName: result.UserInfo.Name,
			IconURL:     result.UserInfo.IconURL,
			Entered:     result.Status == presence.TouchStatusEntry,
			Occupancy:   result.Occupancy,
		}
		if err := h.notifier.NotifyTouch(r.Context(), note); err != nil {
			slog.Warn("入退室通知の送信に失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(touchResponse{
		Success:   true,
		Status:    string(result.Status),
		Occupancy: result.Occupancy,
		User: &userResponse{
			DiscordID: result.User.DiscordID,
			Name:      result.UserInfo.Name,
			IconURL:   result.UserInfo.IconURL,
		},
	})
}

// appErrorResponse は統一エラーフォーマットのレスポンス。
type appErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// invalidRequestError はリクエスト形式エラーを生成する。
func invalidRequestError(message string) *model.AppError {
	return &model.AppError{
		Code:     model.ErrCodeInvalidRequest,
		Message:  message,
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// writeAppErrorResponse は統一エラーフォーマットでレスポンスを書き込む。
func writeAppErrorResponse(w http.ResponseWriter, statusCode int, appErr *model.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(appErrorResponse{
		Code:     appErr.Code,
		Message:  appErr.Message,
		Category: appErr.Category,
		Action:   appErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		if appErr.Code == model.ErrCodeUnknown {
			// 内部原因はログにのみ出す
			slog.Error("internal server error", slog.String("error", err.Error()))
			if cause := appErr.Unwrap(); cause != nil {
				slog.Error("error cause", slog.String("cause", cause.Error()))
			}
		}
		writeAppErrorResponse(w, mapAppErrorToHTTPStatus(appErr), appErr)
		return
	}

	// AppError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAppErrorResponse(w, http.StatusInternalServerError, model.NewUnknownError(nil))
}

// mapAppErrorToHTTPStatus はAppErrorコードからHTTPステータスコードにマッピングする。
func mapAppErrorToHTTPStatus(appErr *model.AppError) int {
	switch appErr.Code {
	case model.ErrCodeStudentCardNotRegistered, model.ErrCodeNfcCardNotRegistered, model.ErrCodeNfcCardNotFound:
		return http.StatusNotFound
	case model.ErrCodeStudentCardAlreadyRegistered, model.ErrCodeNfcCardAlreadyRegistered:
		return http.StatusConflict
	case model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
