// Package presence は入退室トグルと在室状況のドメインロジックを提供する。
package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/roomkeeper/internal/model"
	"github.com/hitoshi/roomkeeper/internal/repository"
)

// TouchStatus はカードタッチの結果（入室または退室）を表す。
type TouchStatus string

const (
	// TouchStatusEntry は入室処理されたことを示す。
	TouchStatusEntry TouchStatus = "entry"
	// TouchStatusExit は退室処理されたことを示す。
	TouchStatusExit TouchStatus = "exit"
)

// TouchInput はカードタッチ1回分の入力を表す。
// IDmは常に読み取られる。学生証として読めた場合のみStudentIDが設定される。
type TouchInput struct {
	Idm       string
	StudentID *int
}

// TouchResult はカードタッチの処理結果を表す。
type TouchResult struct {
	Status    TouchStatus
	Occupancy int            // トグル後の在室人数
	User      *model.User    // タッチしたユーザー
	UserInfo  model.UserInfo // 表示メタデータ。取得できなかった場合はゼロ値。
}

// EntryUser は在室ユーザーと表示メタデータの組を表す。
type EntryUser struct {
	User     *model.User
	UserInfo model.UserInfo // 取得できなかった場合はゼロ値
}

// ListEntryUsersResult は在室ユーザー一覧の結果を表す。
type ListEntryUsersResult struct {
	Users []EntryUser
}

// ExitAllResult は一括退室の結果を表す。
type ExitAllResult struct {
	Users []*model.User // 強制退室させられたユーザー
}

// UserInfoFetcher はDiscordの表示メタデータを取得するインターフェース。
// 未設定（nil）の場合、表示メタデータはゼロ値のまま返される。
type UserInfoFetcher interface {
	FetchUserInfo(ctx context.Context, discordID string) (*model.UserInfo, error)
}

// Collector は入退室メトリクスの収集インターフェース。
type Collector interface {
	RecordTouch(status string)
	RecordUnknownCardScan()
	SetOccupancy(count int)
	RecordSweepExited(count int)
}

// Service は入退室トグルと在室状況のサービス層。
// すべての操作は型付きの*model.AppErrorを返し、リポジトリ由来の
// 予期しない失敗はUNKNOWNエラーに包んで返す。
type Service struct {
	userRepo       repository.UserRepository
	unknownNfcRepo repository.UnknownNfcCardRepository
	entryLogRepo   repository.RoomEntryLogRepository
	userInfo       UserInfoFetcher
	metrics        Collector
}

// NewService はServiceの新しいインスタンスを生成する。
// userInfoとmetricsはnilを許容する（その場合は何もしない）。
func NewService(
	userRepo repository.UserRepository,
	unknownNfcRepo repository.UnknownNfcCardRepository,
	entryLogRepo repository.RoomEntryLogRepository,
	userInfo UserInfoFetcher,
	metrics Collector,
) *Service {
	return &Service{
		userRepo:       userRepo,
		unknownNfcRepo: unknownNfcRepo,
		entryLogRepo:   entryLogRepo,
		userInfo:       userInfo,
		metrics:        metrics,
	}
}

// TouchCard はクレデンシャルを解決し、入退室状態をトグルする。
//
// 解決順序:
//  1. 学籍番号が読めていれば学生証インデックスで解決する。
//     未登録ならSTUDENT_CARD_NOT_REGISTERED。
//  2. それ以外はNFCインデックスで解決する。未登録なら未登録タグを
//     （なければ表示コード付きで作成して）引き当て、コードを添えて
//     NFC_CARD_NOT_REGISTEREDを返す。
//
// トグルは「入室中ログがあれば閉じる、なければ作る」であり、
// 二重タッチは常に入室/退室の交互として扱う。拒否はしない。
func (s *Service) TouchCard(ctx context.Context, in TouchInput) (*TouchResult, error) {
	user, err := s.resolveUser(ctx, in)
	if err != nil {
		return nil, err
	}

	status, err := s.toggle(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	// トグル後の在室人数を数え直す（通知の整形に使う）
	entryUsers, err := s.userRepo.FindAllEntryUsers(ctx)
	if err != nil {
		return nil, model.NewUnknownError(fmt.Errorf("failed to count entry users: %w", err))
	}

	if s.metrics != nil {
		s.metrics.RecordTouch(string(status))
		s.metrics.SetOccupancy(len(entryUsers))
	}

	result := &TouchResult{
		Status:    status,
		Occupancy: len(entryUsers),
		User:      user,
	}

	// 表示メタデータの取得失敗でトグル自体は失敗させない。
	// 呼び出し側はゼロ値の場合メンション表記にフォールバックする。
	if s.userInfo != nil {
		info, err := s.userInfo.FetchUserInfo(ctx, user.DiscordID)
		if err != nil {
			slog.Warn("表示メタデータの取得に失敗しました",
				slog.String("discord_id", user.DiscordID),
				slog.String("error", err.Error()),
			)
		} else if info != nil {
			result.UserInfo = *info
		}
	}

	return result, nil
}

// resolveUser はタッチされたクレデンシャルからユーザーを解決する。
func (s *Service) resolveUser(ctx context.Context, in TouchInput) (*model.User, error) {
	if in.StudentID != nil {
		user, err := s.userRepo.FindByStudentID(ctx, *in.StudentID)
		if err != nil {
			return nil, model.NewUnknownError(fmt.Errorf("failed to resolve user by student id: %w", err))
		}
		if user == nil {
			return nil, model.NewStudentCardNotRegisteredError()
		}
		return user, nil
	}

	user, err := s.userRepo.FindByNfcIdm(ctx, in.Idm)
	if err != nil {
		return nil, model.NewUnknownError(fmt.Errorf("failed to resolve user by nfc idm: %w", err))
	}
	if user != nil {
		return user, nil
	}

	// 未登録タグ。既存の未登録レコードがあれば同じコードを案内し、
	// なければコードを発行する。
	unknown, err := s.unknownNfcRepo.FindByIdm(ctx, in.Idm)
	if err != nil {
		return nil, model.NewUnknownError(fmt.Errorf("failed to find unknown nfc card: %w", err))
	}
	if unknown == nil {
		unknown, err = s.unknownNfcRepo.Create(ctx, in.Idm)
		if err != nil {
			return nil, model.NewUnknownError(fmt.Errorf("failed to create unknown nfc card: %w", err))
		}
	}

	if s.metrics != nil {
		s.metrics.RecordUnknownCardScan()
	}

	return nil, model.NewNfcCardNotRegisteredError(unknown.Code)
}

// toggle は指定ユーザーの入退室状態を反転させる。
// 入室ログ作成が「入室中ログは1件まで」の一意制約に弾かれた場合は
// 同一クレデンシャルの同時スキャンとみなし、1回だけやり直す。
func (s *Service) toggle(ctx context.Context, userID string) (TouchStatus, error) {
	const maxAttempts = 2

	for attempt := 0; attempt < maxAttempts; attempt++ {
		open, err := s.entryLogRepo.FindLastEntryByUserID(ctx, userID)
		if err != nil {
			return "", model.NewUnknownError(fmt.Errorf("failed to find open entry log: %w", err))
		}

		if open != nil {
			closed, err := open.ExitRoom(time.Now().UTC())
			if err != nil {
				return "", model.NewUnknownError(fmt.Errorf("failed to close entry log: %w", err))
			}
			if err := s.entryLogRepo.Save(ctx, closed); err != nil {
				return "", model.NewUnknownError(fmt.Errorf("failed to save entry log: %w", err))
			}
			return TouchStatusExit, nil
		}

		_, err = s.entryLogRepo.Create(ctx, userID, time.Now().UTC())
		if err == nil {
			return TouchStatusEntry, nil
		}
		if !errors.Is(err, repository.ErrOpenEntryExists) {
			return "", model.NewUnknownError(fmt.Errorf("failed to create entry log: %w", err))
		}

		// 競合相手が先に入室ログを作成した。次の試行で退室として解決される。
		slog.Info("入室ログの作成が競合したため再試行します",
			slog.String("user_id", userID),
		)
	}

	return "", model.NewUnknownError(errors.New("entry log toggle kept conflicting"))
}

// ListEntryUsers は在室中の全ユーザーを表示メタデータ付きで返す。状態は変更しない。
// 表示メタデータの取得失敗は一覧取得自体を失敗させず、そのユーザーの
// メタデータはゼロ値のまま返す。
func (s *Service) ListEntryUsers(ctx context.Context) (*ListEntryUsersResult, error) {
	users, err := s.userRepo.FindAllEntryUsers(ctx)
	if err != nil {
		return nil, model.NewUnknownError(fmt.Errorf("failed to list entry users: %w", err))
	}

	entries := make([]EntryUser, 0, len(users))
	for _, u := range users {
		entry := EntryUser{User: u}
		if s.userInfo != nil {
			info, err := s.userInfo.FetchUserInfo(ctx, u.DiscordID)
			if err != nil {
				slog.Warn("表示メタデータの取得に失敗しました",
					slog.String("discord_id", u.DiscordID),
					slog.String("error", err.Error()),
				)
			} else if info != nil {
				entry.UserInfo = *info
			}
		}
		entries = append(entries, entry)
	}

	if s.metrics != nil {
		s.metrics.SetOccupancy(len(users))
	}

	return &ListEntryUsersResult{Users: entries}, nil
}

// ExitAllEntryUsers は入室中の全ログを無条件に閉じ、
// 強制退室させられたユーザーの一覧を返す。
// 入室直後のログも対象になる（経過時間による絞り込みはしない）。
// 入室中のログがなければ何も書き込まずに空の結果を返す。
func (s *Service) ExitAllEntryUsers(ctx context.Context) (*ExitAllResult, error) {
	logs, err := s.entryLogRepo.FindAllEntry(ctx)
	if err != nil {
		return nil, model.NewUnknownError(fmt.Errorf("failed to find open entry logs: %w", err))
	}
	if len(logs) == 0 {
		return &ExitAllResult{}, nil
	}

	ids := make([]string, 0, len(logs))
	userIDs := make([]string, 0, len(logs))
	for _, log := range logs {
		ids = append(ids, log.ID)
		userIDs = append(userIDs, log.UserID)
	}

	now := time.Now().UTC()
	if err := s.entryLogRepo.SetManyExitAt(ctx, ids, now); err != nil {
		return nil, model.NewUnknownError(fmt.Errorf("failed to close entry logs in bulk: %w", err))
	}

	users, err := s.userRepo.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, model.NewUnknownError(fmt.Errorf("failed to load exited users: %w", err))
	}

	if s.metrics != nil {
		s.metrics.RecordSweepExited(len(logs))
		s.metrics.SetOccupancy(0)
	}

	slog.Info("一括退室を実行しました",
		slog.Int("closed_count", len(logs)),
	)

	return &ExitAllResult{Users: users}, nil
}
