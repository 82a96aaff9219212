// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// ログアウトされずに放置されたセッション行を一定間隔でまとめて削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッションを削除するストレージを表す。
// repository.PostgresSessionRepo が満たす。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Recorder は削除件数を記録する。metrics.Collector が満たす。
type Recorder interface {
	RecordSessionsPurged(count int64)
}

// CleanupJob は期限切れセッションの削除ジョブ。
// 冪等な削除処理で、何度実行しても結果は変わらない。
type CleanupJob struct {
	purger   SessionPurger
	logger   *slog.Logger
	recorder Recorder
	Interval time.Duration // 実行間隔（デフォルト: 1時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// recorderがnilの場合は記録しない。
func NewCleanupJob(purger SessionPurger, recorder Recorder, logger *slog.Logger) *CleanupJob {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &CleanupJob{
		purger:   purger,
		logger:   logger,
		recorder: recorder,
		Interval: time.Hour,
	}
}

// Run は期限切れセッションを1回削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.purger.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	j.recorder.RecordSessionsPurged(deletedCount)

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start はIntervalごとにRunを実行する。
// コンテキストがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	j.logger.Info("セッションクリーンアップを開始しました",
		slog.Duration("interval", j.Interval),
	)

	// 起動直後に1回実行
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordSessionsPurged(int64) {}
