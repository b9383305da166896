package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/roomkeeper/internal/model"
)

// ErrStudentIDConflict は同一学籍番号の学生証が既に存在する場合のエラー。
// 事前チェックをすり抜けた同時登録の競合で発生する。
var ErrStudentIDConflict = errors.New("student card with the same student id already exists")

// PostgresStudentCardRepo はPostgreSQLを使用した学生証リポジトリ。
type PostgresStudentCardRepo struct {
	db *sql.DB
}

// NewPostgresStudentCardRepo はPostgresStudentCardRepoを生成する。
func NewPostgresStudentCardRepo(db *sql.DB) *PostgresStudentCardRepo {
	return &PostgresStudentCardRepo{db: db}
}

// Create は学生証を作成する。
// 学籍番号の一意制約に違反した場合はErrStudentIDConflictを返す。
func (r *PostgresStudentCardRepo) Create(ctx context.Context, studentID int, userID string) (*model.StudentCard, error) {
	card := &model.StudentCard{
		ID:        uuid.NewString(),
		StudentID: studentID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO student_cards (id, student_id, user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		card.ID, card.StudentID, card.UserID, card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrStudentIDConflict
		}
		return nil, fmt.Errorf("failed to insert student card: %w", err)
	}

	return card, nil
}

// Save は既存の学生証を上書き保存する。
// 学籍番号の一意制約に違反した場合はErrStudentIDConflictを返す。
func (r *PostgresStudentCardRepo) Save(ctx context.Context, card model.StudentCard) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE student_cards SET student_id = $2, user_id = $3, updated_at = now()
		 WHERE id = $1`,
		card.ID, card.StudentID, card.UserID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrStudentIDConflict
		}
		return fmt.Errorf("failed to update student card: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("student card not found: %s", card.ID)
	}
	return nil
}

// FindByStudentID は学籍番号で学生証を検索する。見つからない場合はnilを返す。
func (r *PostgresStudentCardRepo) FindByStudentID(ctx context.Context, studentID int) (*model.StudentCard, error) {
	return r.findBy(ctx, `student_id = $1`, studentID)
}

// FindByUserID はユーザーIDで学生証を検索する。見つからない場合はnilを返す。
func (r *PostgresStudentCardRepo) FindByUserID(ctx context.Context, userID string) (*model.StudentCard, error) {
	return r.findBy(ctx, `user_id = $1`, userID)
}

func (r *PostgresStudentCardRepo) findBy(ctx context.Context, where string, arg any) (*model.StudentCard, error) {
	card := &model.StudentCard{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, student_id, user_id, created_at, updated_at FROM student_cards WHERE `+where,
		arg,
	).Scan(&card.ID, &card.StudentID, &card.UserID, &card.CreatedAt, &card.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find student card: %w", err)
	}

	return card, nil
}

// compile-time interface check
var _ StudentCardRepository = (*PostgresStudentCardRepo)(nil)
