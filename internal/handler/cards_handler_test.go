package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/roomkeeper/internal/model"
	"github.com/hitoshi/roomkeeper/internal/registration"
)

// TestCardsHandler_RegisterStudentCard_Created は新規登録が201になることを検証する。
func TestCardsHandler_RegisterStudentCard_Created(t *testing.T) {
	svc := &mockRegistrationService{
		registerStudentCardFn: func(ctx context.Context, discordID string, studentID int) (registration.Status, error) {
			if discordID != "discord-1" {
				t.Errorf("discordID = %q, want %q", discordID, "discord-1")
			}
			if studentID != 12345 {
				t.Errorf("studentID = %d, want 12345", studentID)
			}
			return registration.StatusCreated, nil
		},
	}
	h := NewCardsHandler(svc)

	body := `{"discord_id":"discord-1","student_id":12345}`
	req := httptest.NewRequest(http.MethodPost, "/api/cards/student", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.RegisterStudentCard(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}

	var resp registerStudentCardResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Status != "created" {
		t.Errorf("Status = %q, want %q", resp.Status, "created")
	}
}

// TestCardsHandler_RegisterStudentCard_Updated は番号差し替えが200になることを検証する。
func TestCardsHandler_RegisterStudentCard_Updated(t *testing.T) {
	svc := &mockRegistrationService{
		registerStudentCardFn: func(ctx context.Context, discordID string, studentID int) (registration.Status, error) {
			return registration.StatusUpdated, nil
		},
	}
	h := NewCardsHandler(svc)

	body := `{"discord_id":"discord-1","student_id":22222}`
	req := httptest.NewRequest(http.MethodPost, "/api/cards/student", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.RegisterStudentCard(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestCardsHandler_RegisterStudentCard_Conflict は学籍番号の衝突が409になることを検証する。
func TestCardsHandler_RegisterStudentCard_Conflict(t *testing.T) {
	svc := &mockRegistrationService{
		registerStudentCardFn: func(ctx context.Context, discordID string, studentID int) (registration.Status, error) {
			return "", model.NewStudentCardAlreadyRegisteredError()
		},
	}
	h := NewCardsHandler(svc)

	body := `{"discord_id":"discord-1","student_id":12345}`
	req := httptest.NewRequest(http.MethodPost, "/api/cards/student", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.RegisterStudentCard(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}

	var resp appErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Code != model.ErrCodeStudentCardAlreadyRegistered {
		t.Errorf("Code = %q, want %q", resp.Code, model.ErrCodeStudentCardAlreadyRegistered)
	}
}

// TestCardsHandler_RegisterStudentCard_Validation は入力検証を検証する。
func TestCardsHandler_RegisterStudentCard_Validation(t *testing.T) {
	svc := &mockRegistrationService{
		registerStudentCardFn: func(ctx context.Context, discordID string, studentID int) (registration.Status, error) {
			t.Error("RegisterStudentCard should not be called")
			return "", nil
		},
	}
	h := NewCardsHandler(svc)

	tests := []struct {
		name string
		body string
	}{
		{"不正なJSON", `{`},
		{"discord_idなし", `{"student_id":12345}`},
		{"student_idなし", `{"discord_id":"discord-1"}`},
		{"student_idが負", `{"discord_id":"discord-1","student_id":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/cards/student", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.RegisterStudentCard(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

// TestCardsHandler_RegisterNfcCard はNFCタグ登録が201になることを検証する。
func TestCardsHandler_RegisterNfcCard(t *testing.T) {
	svc := &mockRegistrationService{
		registerNfcCardFn: func(ctx context.Context, discordID, code, name string) (*model.NfcCard, error) {
			if code != "0042" {
				t.Errorf("code = %q, want %q", code, "0042")
			}
			return &model.NfcCard{ID: "nfc-1", Name: name, Idm: "aabbccdd", UserID: "user-1"}, nil
		},
	}
	h := NewCardsHandler(svc)

	body := `{"discord_id":"discord-1","code":"0042","name":"通学用Suica"}`
	req := httptest.NewRequest(http.MethodPost, "/api/cards/nfc", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.RegisterNfcCard(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp registerNfcCardResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Name != "通学用Suica" {
		t.Errorf("Name = %q, want %q", resp.Name, "通学用Suica")
	}
}

// TestCardsHandler_RegisterNfcCard_CodeNotFound は存在しないコードが404になることを検証する。
func TestCardsHandler_RegisterNfcCard_CodeNotFound(t *testing.T) {
	svc := &mockRegistrationService{
		registerNfcCardFn: func(ctx context.Context, discordID, code, name string) (*model.NfcCard, error) {
			return nil, model.NewNfcCardNotFoundError()
		},
	}
	h := NewCardsHandler(svc)

	body := `{"discord_id":"discord-1","code":"9999","name":"カード"}`
	req := httptest.NewRequest(http.MethodPost, "/api/cards/nfc", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.RegisterNfcCard(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
