// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// 解決時にも期限切れセッションは個別に削除されるが、再訪しないユーザーの
// セッションが残り続けないよう一括削除を定期実行する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval は一括削除の既定の実行間隔。
const DefaultInterval = time.Hour

// SessionSweeper は期限切れセッションを一括削除し、削除件数を返すインターフェース。
// *auth.Serviceが実装する。
type SessionSweeper interface {
	SweepExpiredSessions(ctx context.Context) (int64, error)
}

// SessionSweepJob は期限切れセッションの一括削除ジョブ。
// 削除は冪等で、他のワーカーやセッション解決と並行して実行されてもよい。
type SessionSweepJob struct {
	sweeper  SessionSweeper
	logger   *slog.Logger
	Interval time.Duration // 実行間隔（デフォルト: 1時間）
}

// NewSessionSweepJob は新しいSessionSweepJobを生成する。
func NewSessionSweepJob(sweeper SessionSweeper, logger *slog.Logger) *SessionSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSweepJob{
		sweeper:  sweeper,
		logger:   logger,
		Interval: DefaultInterval,
	}
}

// Run は期限切れセッションを1回削除する。
// 削除対象がない場合でもエラーにならない。
func (j *SessionSweepJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.sweeper.SweepExpiredSessions(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回実行し、以降Interval毎に実行する。
// ctxがキャンセルされるまでブロックする。個々の実行の失敗はログに記録して継続する。
func (j *SessionSweepJob) Start(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	j.logger.Info("セッションクリーンアップジョブを開始します",
		slog.Duration("interval", interval),
	)

	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
