// Package sweep は閉室時刻の一括退室ジョブを提供する。
// 退室タッチを忘れたユーザーの入室ログが翌日まで開いたままにならないよう、
// 毎日決まった時刻に入室中の全ログを閉じる。
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/roomkeeper/internal/presence"
)

// BulkExiter は一括退室の実行インターフェース。
// presence.Serviceが満たす。
type BulkExiter interface {
	ExitAllEntryUsers(ctx context.Context) (*presence.ExitAllResult, error)
}

// Notifier は一括退室のDiscord通知インターフェース。
type Notifier interface {
	NotifyExitAll(ctx context.Context, mentions []string) error
}

// Job は一括退室ジョブ。冪等であり、在室者がいない場合は何もしない。
type Job struct {
	exiter   BulkExiter
	notifier Notifier // nilの場合は通知なし
	logger   *slog.Logger
}

// NewJob は新しいJobを生成する。
func NewJob(exiter BulkExiter, notifier Notifier, logger *slog.Logger) *Job {
	return &Job{
		exiter:   exiter,
		notifier: notifier,
		logger:   logger,
	}
}

// Run は入室中の全ログを閉じ、対象者がいればDiscordに通知する。
// 入室からの経過時間は考慮しない。閉室時刻の直前に入室したログも閉じる。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	result, err := j.exiter.ExitAllEntryUsers(ctx)
	if err != nil {
		j.logger.Error("一括退室ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("一括退室の実行に失敗: %w", err)
	}

	if len(result.Users) > 0 && j.notifier != nil {
		mentions := make([]string, 0, len(result.Users))
		for _, u := range result.Users {
			mentions = append(mentions, fmt.Sprintf("<@%s>", u.DiscordID))
		}
		if err := j.notifier.NotifyExitAll(ctx, mentions); err != nil {
			// 通知失敗はジョブの失敗にはしない（ログは既に閉じている）
			j.logger.Warn("一括退室通知の送信に失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}

	duration := time.Since(start)
	j.logger.Info("一括退室ジョブが完了しました",
		slog.Int("exited_count", len(result.Users)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// NextRun はnowを基準に次のsweepAt（"15:04"形式、loc時刻）の実行時刻を返す。
// 当日のsweepAtを過ぎている場合は翌日の同時刻を返す。
func NextRun(now time.Time, sweepAt string, loc *time.Location) (time.Time, error) {
	at, err := time.Parse("15:04", sweepAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("実行時刻のパースに失敗しました: %w", err)
	}

	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), at.Hour(), at.Minute(), 0, 0, loc)
	if !next.After(now) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, at.Hour(), at.Minute(), 0, 0, loc)
	}

	return next, nil
}

// Scheduler は一括退室ジョブを毎日sweepAtに実行する。
type Scheduler struct {
	job     *Job
	sweepAt string
	loc     *time.Location
	logger  *slog.Logger
}

// NewScheduler は新しいSchedulerを生成する。
func NewScheduler(job *Job, sweepAt string, loc *time.Location, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		job:     job,
		sweepAt: sweepAt,
		loc:     loc,
		logger:  logger,
	}
}

// Start は次の実行時刻まで待機と実行を繰り返す。
// コンテキストのキャンセルで停止するまでブロックする。
func (s *Scheduler) Start(ctx context.Context) error {
	for {
		next, err := NextRun(time.Now(), s.sweepAt, s.loc)
		if err != nil {
			return err
		}

		s.logger.Info("次回の一括退室を予約しました",
			slog.Time("next_run", next),
		)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if err := s.job.Run(ctx); err != nil {
			// 実行失敗でもスケジュールは継続する
			s.logger.Error("一括退室ジョブが失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}
}
