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

// ErrOpenEntryExists は同一ユーザーに入室中のログが既に存在する場合のエラー。
// room_entry_logs(user_id) WHERE exit_at IS NULL の部分一意インデックスにより検出される。
var ErrOpenEntryExists = errors.New("an open room entry log already exists for the user")

// PostgresRoomEntryLogRepo はPostgreSQLを使用した入退室ログリポジトリ。
type PostgresRoomEntryLogRepo struct {
	db *sql.DB
}

// NewPostgresRoomEntryLogRepo はPostgresRoomEntryLogRepoを生成する。
func NewPostgresRoomEntryLogRepo(db *sql.DB) *PostgresRoomEntryLogRepo {
	return &PostgresRoomEntryLogRepo{db: db}
}

// Create は入室ログを作成する（ExitAtはnull）。
// 同一ユーザーに入室中のログが既に存在する場合はErrOpenEntryExistsを返す。
func (r *PostgresRoomEntryLogRepo) Create(ctx context.Context, userID string, entryAt time.Time) (*model.RoomEntryLog, error) {
	log := &model.RoomEntryLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		EntryAt:   entryAt,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO room_entry_logs (id, user_id, entry_at, exit_at, created_at, updated_at)
		 VALUES ($1, $2, $3, NULL, $4, $5)`,
		log.ID, log.UserID, log.EntryAt, log.CreatedAt, log.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrOpenEntryExists
		}
		return nil, fmt.Errorf("failed to insert room entry log: %w", err)
	}

	return log, nil
}

// Save は入退室ログを上書き保存する。
func (r *PostgresRoomEntryLogRepo) Save(ctx context.Context, log model.RoomEntryLog) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE room_entry_logs SET user_id = $2, entry_at = $3, exit_at = $4, updated_at = now()
		 WHERE id = $1`,
		log.ID, log.UserID, log.EntryAt, log.ExitAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update room entry log: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("room entry log not found: %s", log.ID)
	}
	return nil
}

// FindLastEntryByUserID は指定ユーザーの入室中ログを取得する。見つからない場合はnilを返す。
func (r *PostgresRoomEntryLogRepo) FindLastEntryByUserID(ctx context.Context, userID string) (*model.RoomEntryLog, error) {
	log := &model.RoomEntryLog{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, entry_at, exit_at, created_at, updated_at
		 FROM room_entry_logs
		 WHERE user_id = $1 AND exit_at IS NULL
		 ORDER BY entry_at DESC
		 LIMIT 1`,
		userID,
	).Scan(&log.ID, &log.UserID, &log.EntryAt, &log.ExitAt, &log.CreatedAt, &log.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open room entry log: %w", err)
	}

	return log, nil
}

// FindAllEntry は入室中の全ログを入室時刻の昇順で返す。
func (r *PostgresRoomEntryLogRepo) FindAllEntry(ctx context.Context) ([]*model.RoomEntryLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, entry_at, exit_at, created_at, updated_at
		 FROM room_entry_logs
		 WHERE exit_at IS NULL
		 ORDER BY entry_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find open room entry logs: %w", err)
	}
	defer rows.Close()

	var logs []*model.RoomEntryLog
	for rows.Next() {
		log := &model.RoomEntryLog{}
		if err := rows.Scan(&log.ID, &log.UserID, &log.EntryAt, &log.ExitAt, &log.CreatedAt, &log.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan room entry log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate room entry logs: %w", err)
	}

	return logs, nil
}

// SetManyExitAt は指定ID群のログに退室時刻を一括設定する。
// すでに退室済みの行は変更しない。
func (r *PostgresRoomEntryLogRepo) SetManyExitAt(ctx context.Context, ids []string, exitAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE room_entry_logs SET exit_at = $2, updated_at = now()
		 WHERE id = ANY($1) AND exit_at IS NULL`,
		pq.Array(ids), exitAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set exit_at in bulk: %w", err)
	}

	return nil
}

// compile-time interface check
var _ RoomEntryLogRepository = (*PostgresRoomEntryLogRepo)(nil)
