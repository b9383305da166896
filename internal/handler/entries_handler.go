package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// EntriesHandler は在室状況のHTTPハンドラー。
type EntriesHandler struct {
	service  PresenceServiceInterface
	notifier TouchNotifier // nilの場合は通知なし
}

// NewEntriesHandler はEntriesHandlerを生成する。
func NewEntriesHandler(service PresenceServiceInterface, notifier TouchNotifier) *EntriesHandler {
	return &EntriesHandler{
		service:  service,
		notifier: notifier,
	}
}

// entriesResponse は在室ユーザー一覧のAPIレスポンス。
type entriesResponse struct {
	Users []userResponse `json:"users"`
	Count int            `json:"count"`
}

// exitAllResponse は一括退室のAPIレスポンス。
type exitAllResponse struct {
	ExitedCount int            `json:"exited_count"`
	Users       []userResponse `json:"users"`
}

// ListEntries は在室ユーザー一覧を返す。
// GET /api/entries
func (h *EntriesHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListEntryUsers(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	users := make([]userResponse, 0, len(result.Users))
	for _, eu := range result.Users {
		users = append(users, userResponse{
			DiscordID: eu.User.DiscordID,
			Name:      eu.UserInfo.Name,
			IconURL:   eu.UserInfo.IconURL,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(entriesResponse{
		Users: users,
		Count: len(users),
	})
}

// ExitAll は在室中の全ユーザーを強制退室させる。
// POST /api/entries/exit-all
func (h *EntriesHandler) ExitAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ExitAllEntryUsers(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 誰も在室していなければ通知は出さない
	if h.notifier != nil && len(result.Users) > 0 {
		mentions := make([]string, 0, len(result.Users))
		for _, u := range result.Users {
			mentions = append(mentions, fmt.Sprintf("<@%s>", u.DiscordID))
		}
		if err := h.notifier.NotifyExitAll(r.Context(), mentions); err != nil {
			slog.Warn("一括退室通知の送信に失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}

	users := make([]userResponse, 0, len(result.Users))
	for _, u := range result.Users {
		users = append(users, userResponse{DiscordID: u.DiscordID})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(exitAllResponse{
		ExitedCount: len(users),
		Users:       users,
	})
}
