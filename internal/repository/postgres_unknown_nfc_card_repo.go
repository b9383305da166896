package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/roomkeeper/internal/model"
)

// maxCodeAttempts は表示コード生成の最大試行回数。
// コード空間（0000〜9999）が枯渇に近い場合の無限ループを防ぐ。
const maxCodeAttempts = 10

// PostgresUnknownNfcCardRepo はPostgreSQLを使用した未登録タグリポジトリ。
type PostgresUnknownNfcCardRepo struct {
	db *sql.DB

	// テスト用にコード生成を差し替え可能
	generateCode func() string
}

// NewPostgresUnknownNfcCardRepo はPostgresUnknownNfcCardRepoを生成する。
func NewPostgresUnknownNfcCardRepo(db *sql.DB) *PostgresUnknownNfcCardRepo {
	return &PostgresUnknownNfcCardRepo{
		db:           db,
		generateCode: randomCode,
	}
}

// randomCode は0000〜9999の4桁表示コードを生成する。
func randomCode() string {
	return fmt.Sprintf("%04d", rand.Intn(10_000))
}

// Create は未登録タグを表示コード付きで作成する。
// コードの一意制約に違反した場合は再生成して再試行し、
// maxCodeAttempts回失敗したらエラーを返す。
func (r *PostgresUnknownNfcCardRepo) Create(ctx context.Context, idm string) (*model.UnknownNfcCard, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		card := &model.UnknownNfcCard{
			ID:        uuid.NewString(),
			Code:      r.generateCode(),
			Idm:       idm,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}

		_, err := r.db.ExecContext(ctx,
			`INSERT INTO unknown_nfc_cards (id, code, idm, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			card.ID, card.Code, card.Idm, card.CreatedAt, card.UpdatedAt,
		)
		if err == nil {
			return card, nil
		}
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to insert unknown nfc card: %w", err)
		}

		// コード衝突の場合のみ再生成して再試行する。
		// IDmの衝突（同一タグの同時スキャン）は既存行の再利用で解決する。
		if existing, ferr := r.FindByIdm(ctx, idm); ferr == nil && existing != nil {
			return existing, nil
		}
	}

	return nil, fmt.Errorf("failed to generate a unique display code after %d attempts", maxCodeAttempts)
}

// FindByCode は表示コードで未登録タグを検索する。見つからない場合はnilを返す。
func (r *PostgresUnknownNfcCardRepo) FindByCode(ctx context.Context, code string) (*model.UnknownNfcCard, error) {
	return r.findBy(ctx, `code = $1`, code)
}

// FindByIdm はIDmで未登録タグを検索する。見つからない場合はnilを返す。
func (r *PostgresUnknownNfcCardRepo) FindByIdm(ctx context.Context, idm string) (*model.UnknownNfcCard, error) {
	return r.findBy(ctx, `idm = $1`, idm)
}

func (r *PostgresUnknownNfcCardRepo) findBy(ctx context.Context, where string, arg any) (*model.UnknownNfcCard, error) {
	card := &model.UnknownNfcCard{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, code, idm, created_at, updated_at FROM unknown_nfc_cards WHERE `+where,
		arg,
	).Scan(&card.ID, &card.Code, &card.Idm, &card.CreatedAt, &card.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find unknown nfc card: %w", err)
	}

	return card, nil
}

// DeleteByID は指定IDの未登録タグを削除する。
// 対象が存在しない場合もエラーにしない（登録の競合で先に削除された場合）。
func (r *PostgresUnknownNfcCardRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM unknown_nfc_cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete unknown nfc card: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UnknownNfcCardRepository = (*PostgresUnknownNfcCardRepo)(nil)
