package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/roomkeeper/internal/model"
	"github.com/hitoshi/roomkeeper/internal/registration"
)

// RegistrationServiceInterface はカード登録ハンドラーが必要とするサービスインターフェース。
type RegistrationServiceInterface interface {
	// RegisterStudentCard はDiscordユーザーに学生証を紐付ける。
	RegisterStudentCard(ctx context.Context, discordID string, studentID int) (registration.Status, error)
	// RegisterNfcCard は表示コードで未登録タグを引き当てて登録する。
	RegisterNfcCard(ctx context.Context, discordID, code, name string) (*model.NfcCard, error)
}

// CardsHandler はクレデンシャル登録のHTTPハンドラー。
// Discord Botが登録コマンドを受けて呼び出す。
type CardsHandler struct {
	service RegistrationServiceInterface
}

// NewCardsHandler はCardsHandlerを生成する。
func NewCardsHandler(service RegistrationServiceInterface) *CardsHandler {
	return &CardsHandler{service: service}
}

// registerStudentCardRequest は学生証登録リクエストのボディ。
type registerStudentCardRequest struct {
	DiscordID string `json:"discord_id"`
	StudentID int    `json:"student_id"`
}

// registerStudentCardResponse は学生証登録のAPIレスポンス。
type registerStudentCardResponse struct {
	Status string `json:"status"`
}

// registerNfcCardRequest はNFCタグ登録リクエストのボディ。
type registerNfcCardRequest struct {
	DiscordID string `json:"discord_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
}

// registerNfcCardResponse はNFCタグ登録のAPIレスポンス。
type registerNfcCardResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RegisterStudentCard は学生証登録を処理する。
// POST /api/cards/student
func (h *CardsHandler) RegisterStudentCard(w http.ResponseWriter, r *http.Request) {
	var req registerStudentCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppErrorResponse(w, http.StatusBadRequest, invalidRequestError("リクエストボディの解析に失敗しました。"))
		return
	}

	if req.DiscordID == "" {
		writeAppErrorResponse(w, http.StatusBadRequest, invalidRequestError("discord_idが空です。"))
		return
	}
	if req.StudentID <= 0 {
		writeAppErrorResponse(w, http.StatusBadRequest, invalidRequestError("student_idは正の整数で指定してください。"))
		return
	}

	status, err := h.service.RegisterStudentCard(r.Context(), req.DiscordID, req.StudentID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	statusCode := http.StatusOK
	if status == registration.StatusCreated {
		statusCode = http.StatusCreated
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(registerStudentCardResponse{
		Status: string(status),
	})
}

// RegisterNfcCard はNFCタグ登録を処理する。
// POST /api/cards/nfc
func (h *CardsHandler) RegisterNfcCard(w http.ResponseWriter, r *http.Request) {
	var req registerNfcCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppErrorResponse(w, http.StatusBadRequest, invalidRequestError("リクエストボディの解析に失敗しました。"))
		return
	}

	if req.DiscordID == "" {
		writeAppErrorResponse(w, http.StatusBadRequest, invalidRequestError("discord_idが空です。"))
		return
	}
	if req.Code == "" {
		writeAppErrorResponse(w, http.StatusBadRequest, invalidRequestError("codeが空です。"))
		return
	}
	if req.Name == "" {
		writeAppErrorResponse(w, http.StatusBadRequest, invalidRequestError("nameが空です。"))
		return
	}

	card, err := h.service.RegisterNfcCard(r.Context(), req.DiscordID, req.Code, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(registerNfcCardResponse{
		ID:   card.ID,
		Name: card.Name,
	})
}
