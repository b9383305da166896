package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/roomkeeper/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Create は指定DiscordIDのユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, discordID string) (*model.User, error) {
	user := &model.User{
		ID:        uuid.NewString(),
		DiscordID: discordID,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, discord_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)`,
		user.ID, user.DiscordID, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

// FindByDiscordID はDiscordIDでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByDiscordID(ctx context.Context, discordID string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, discord_id, created_at, updated_at FROM users WHERE discord_id = $1`,
		discordID,
	).Scan(&user.ID, &user.DiscordID, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by discord id: %w", err)
	}

	return user, nil
}

// FindByStudentID は学籍番号に紐付くユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByStudentID(ctx context.Context, studentID int) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.discord_id, u.created_at, u.updated_at
		 FROM users u
		 JOIN student_cards sc ON sc.user_id = u.id
		 WHERE sc.student_id = $1`,
		studentID,
	).Scan(&user.ID, &user.DiscordID, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by student id: %w", err)
	}

	return user, nil
}

// FindByNfcIdm は登録済みNFCタグのIDmに紐付くユーザーを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByNfcIdm(ctx context.Context, idm string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.discord_id, u.created_at, u.updated_at
		 FROM users u
		 JOIN nfc_cards nc ON nc.user_id = u.id
		 WHERE nc.idm = $1`,
		idm,
	).Scan(&user.ID, &user.DiscordID, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by nfc idm: %w", err)
	}

	return user, nil
}

// FindByIDs は指定ID群のユーザーを取得する。存在しないIDは無視する。
func (r *PostgresUserRepo) FindByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, discord_id, created_at, updated_at FROM users WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find users by ids: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// FindAllEntryUsers は入室中の全ユーザーを入室時刻の昇順で返す。
func (r *PostgresUserRepo) FindAllEntryUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.discord_id, u.created_at, u.updated_at
		 FROM users u
		 JOIN room_entry_logs l ON l.user_id = u.id
		 WHERE l.exit_at IS NULL
		 ORDER BY l.entry_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find entry users: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

func scanUsers(rows *sql.Rows) ([]*model.User, error) {
	var users []*model.User
	for rows.Next() {
		user := &model.User{}
		if err := rows.Scan(&user.ID, &user.DiscordID, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
