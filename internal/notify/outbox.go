package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/jusmemoriza/internal/metrics"
	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/repository"
)

// ReportNotifier は報告通知の送信インターフェース。
type ReportNotifier interface {
	NotifyReport(ctx context.Context, r *model.Report) error
}

var _ ReportNotifier = (*Notifier)(nil)

// Outbox は未通知の報告を定期的に再送するジョブ。
// 送信失敗時は失敗回数に応じて next_notify_at を後ろにずらす。
type Outbox struct {
	reportRepo     repository.ReportRepository
	notifier       ReportNotifier
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
	maxPerCycle    int
	maxConcurrency int
	now            func() time.Time
}

// NewOutbox はOutboxの新しいインスタンスを生成する。
// maxPerCycleが0以下の場合はデフォルト値50を使用する。
func NewOutbox(
	reportRepo repository.ReportRepository,
	notifier ReportNotifier,
	m metrics.MetricsCollector,
	logger *slog.Logger,
	maxPerCycle int,
) *Outbox {
	if maxPerCycle <= 0 {
		maxPerCycle = 50
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Outbox{
		reportRepo:     reportRepo,
		notifier:       notifier,
		metrics:        m,
		logger:         logger,
		maxPerCycle:    maxPerCycle,
		maxConcurrency: 4,
		now:            time.Now,
	}
}

// Start はintervalごとにRunOnceを実行する。コンテキストがキャンセルされるまで継続する。
func (o *Outbox) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	o.logger.Info("通知アウトボックスを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_per_cycle", o.maxPerCycle),
	)

	o.runAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("通知アウトボックスを停止しました")
			return
		case <-ticker.C:
			o.runAndLog(ctx)
		}
	}
}

func (o *Outbox) runAndLog(ctx context.Context) {
	if _, err := o.RunOnce(ctx); err != nil {
		o.logger.Error("通知サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は再送期限の来た報告を最大maxPerCycle件送信し、成功件数を返す。
func (o *Outbox) RunOnce(ctx context.Context) (int, error) {
	start := o.now()
	defer func() { o.metrics.RecordJobDuration("notify", time.Since(start)) }()

	reports, err := o.reportRepo.ListPendingNotify(ctx, start, o.maxPerCycle)
	if err != nil {
		return 0, err
	}
	if len(reports) == 0 {
		return 0, nil
	}

	sem := make(chan struct{}, o.maxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	sent := 0

	for _, r := range reports {
		wg.Add(1)
		sem <- struct{}{}

		go func(r *model.Report) {
			defer wg.Done()
			defer func() { <-sem }()

			if o.deliver(ctx, r) {
				mu.Lock()
				sent++
				mu.Unlock()
			}
		}(r)
	}
	wg.Wait()

	o.logger.Info("通知サイクルが完了しました",
		slog.Int("pending", len(reports)),
		slog.Int("sent", sent),
	)
	return sent, nil
}

// deliver は1件送信して結果を記録する。送信できた場合にtrueを返す。
func (o *Outbox) deliver(ctx context.Context, r *model.Report) bool {
	if err := o.notifier.NotifyReport(ctx, r); err != nil {
		if markErr := RecordFailure(ctx, o.reportRepo, r, err, o.now()); markErr != nil {
			o.logger.Error("通知失敗の記録に失敗しました",
				slog.String("report_id", r.ID),
				slog.String("error", markErr.Error()),
			)
		}
		o.logger.Warn("報告の通知に失敗しました",
			slog.String("report_id", r.ID),
			slog.Int("attempts", r.NotifyAttempts),
			slog.String("error", err.Error()),
		)
		return false
	}

	if err := o.reportRepo.MarkNotified(ctx, r.ID, o.now()); err != nil {
		o.logger.Error("通知済みの記録に失敗しました",
			slog.String("report_id", r.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// RecordFailure は失敗回数を1増やし、バックオフ後の次回試行時刻を記録する。
// r.NotifyAttempts と r.NextNotifyAt も更新する。
func RecordFailure(ctx context.Context, repo repository.ReportRepository, r *model.Report, cause error, now time.Time) error {
	r.NotifyAttempts++
	r.NextNotifyAt = now.Add(CalculateBackoff(r.NotifyAttempts))
	r.LastError = cause.Error()
	return repo.MarkNotifyFailed(ctx, r.ID, r.NotifyAttempts, r.NextNotifyAt, r.LastError)
}
