package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/roomkeeper/internal/model"
)

// ErrIdmConflict は同一IDmのNFCタグが既に存在する場合のエラー。
// 同じ物理タグに対する登録の競合で発生する。
var ErrIdmConflict = errors.New("nfc card with the same idm already exists")

// PostgresNfcCardRepo はPostgreSQLを使用した登録済みNFCタグリポジトリ。
type PostgresNfcCardRepo struct {
	db *sql.DB
}

// NewPostgresNfcCardRepo はPostgresNfcCardRepoを生成する。
func NewPostgresNfcCardRepo(db *sql.DB) *PostgresNfcCardRepo {
	return &PostgresNfcCardRepo{db: db}
}

// Create はNFCタグを作成する。
// IDmの一意制約に違反した場合はErrIdmConflictを返す。
func (r *PostgresNfcCardRepo) Create(ctx context.Context, name, idm, userID string) (*model.NfcCard, error) {
	card := &model.NfcCard{
		ID:        uuid.NewString(),
		Name:      name,
		Idm:       idm,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO nfc_cards (id, name, idm, user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		card.ID, card.Name, card.Idm, card.UserID, card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrIdmConflict
		}
		return nil, fmt.Errorf("failed to insert nfc card: %w", err)
	}

	return card, nil
}

// FindByIdm はIDmでNFCタグを検索する。見つからない場合はnilを返す。
func (r *PostgresNfcCardRepo) FindByIdm(ctx context.Context, idm string) (*model.NfcCard, error) {
	card := &model.NfcCard{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, idm, user_id, created_at, updated_at FROM nfc_cards WHERE idm = $1`,
		idm,
	).Scan(&card.ID, &card.Name, &card.Idm, &card.UserID, &card.CreatedAt, &card.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find nfc card by idm: %w", err)
	}

	return card, nil
}

// isUniqueViolation はPostgreSQLの一意制約違反（SQLSTATE 23505）かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// compile-time interface check
var _ NfcCardRepository = (*PostgresNfcCardRepo)(nil)
