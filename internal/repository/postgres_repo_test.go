package repository

import (
	"errors"
	"testing"

	"github.com/lib/pq"
)

// 各Postgresリポジトリが対応するインターフェースを満たすことを検証
func TestPostgresRepos_ImplementInterfaces(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
	var _ StudentCardRepository = (*PostgresStudentCardRepo)(nil)
	var _ NfcCardRepository = (*PostgresNfcCardRepo)(nil)
	var _ UnknownNfcCardRepository = (*PostgresUnknownNfcCardRepo)(nil)
	var _ RoomEntryLogRepository = (*PostgresRoomEntryLogRepo)(nil)
}

// 各リポジトリが正しく初期化されることを検証
func TestNewPostgresRepos_Initialize(t *testing.T) {
	if NewPostgresUserRepo(nil) == nil {
		t.Error("expected non-nil user repo")
	}
	if NewPostgresStudentCardRepo(nil) == nil {
		t.Error("expected non-nil student card repo")
	}
	if NewPostgresNfcCardRepo(nil) == nil {
		t.Error("expected non-nil nfc card repo")
	}
	if NewPostgresUnknownNfcCardRepo(nil) == nil {
		t.Error("expected non-nil unknown nfc card repo")
	}
	if NewPostgresRoomEntryLogRepo(nil) == nil {
		t.Error("expected non-nil room entry log repo")
	}
}

// 表示コードが常に4桁のゼロ埋め数字になることを検証
func TestRandomCode_Format(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := randomCode()
		if len(code) != 4 {
			t.Fatalf("expected 4-digit code, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("expected digits only, got %q", code)
			}
		}
	}
}

// 一意制約違反の判定がSQLSTATE 23505のみに反応することを検証
func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pq.Error{Code: "23505"}) {
		t.Error("expected 23505 to be a unique violation")
	}
	if isUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Error("foreign key violation must not be treated as unique violation")
	}
	if isUniqueViolation(errors.New("some other error")) {
		t.Error("plain errors must not be treated as unique violation")
	}
}
