// Package ledgersync 是账本同步子系统: 出站方向把本地动作日志
// 搬运到账本网关，入站方向消费账本的权限变更事件。
// 同步对请求路径完全异步，账本抖动不影响预订读写。
package ledgersync

import (
	"context"
	"fmt"
	"time"

	"akwa/internal/pkg/metrics"
	"akwa/internal/service/inventory/domain"
	"akwa/internal/service/inventory/port"
	"akwa/internal/service/ledger"

	"github.com/rs/zerolog/log"
)

// Submitter 是出站提交的账本端口
type Submitter interface {
	SubmitAction(ctx context.Context, req *ledger.SubmitRequest) (*ledger.Receipt, error)
}

// Options 同步 Worker 的节奏参数
type Options struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// Worker 周期性地把待同步日志按条提交到账本。
// 顺序约束: 同一库存项内严格按写入序，某条未到重试时间或
// 提交失败时，该库存项本轮余下条目全部跳过；不同库存项互不影响。
type Worker struct {
	logs      domain.ActionLogRepository
	alerts    domain.AlertRepository
	notify    port.AlertNotifier
	submitter Submitter
	opts      Options
}

// NewWorker 创建同步 Worker。notify 可为 nil。
func NewWorker(logs domain.ActionLogRepository, alerts domain.AlertRepository,
	notify port.AlertNotifier, submitter Submitter, opts Options) *Worker {
	return &Worker{logs: logs, alerts: alerts, notify: notify, submitter: submitter, opts: opts}
}

// Run 阻塞运行直到 ctx 取消
func (w *Worker) Run(ctx context.Context) {
	log.Info().Dur("interval", w.opts.Interval).Int("batch", w.opts.BatchSize).
		Msg("ledger sync worker started")
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("ledger sync pass failed")
			}
		case <-ctx.Done():
			log.Info().Msg("ledger sync worker shutting down")
			return
		}
	}
}

// RunOnce 执行一轮同步
func (w *Worker) RunOnce(ctx context.Context) error {
	entries, err := w.logs.ListUnsynced(ctx, w.opts.BatchSize)
	if err != nil {
		return err
	}
	metrics.SyncBacklog.Set(float64(len(entries)))
	if len(entries) == 0 {
		return nil
	}

	now := time.Now()
	// 本轮已经卡住的库存项，后续条目不能越过前面的条目
	blocked := make(map[string]bool)

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if blocked[entry.ItemID] {
			continue
		}
		if !w.due(entry, now) {
			blocked[entry.ItemID] = true
			continue
		}
		if ok := w.submitOne(ctx, entry, now); !ok {
			blocked[entry.ItemID] = true
		}
	}
	return nil
}

// submitOne 提交单条日志，返回是否成功
func (w *Worker) submitOne(ctx context.Context, entry *domain.ActionLogEntry, now time.Time) bool {
	attempt := entry.AttemptCount + 1
	if err := w.logs.MarkAttempt(ctx, entry.ID, attempt, now); err != nil {
		log.Error().Err(err).Str("entry_id", entry.ID).Msg("failed to record sync attempt")
		return false
	}

	_, err := w.submitter.SubmitAction(ctx, &ledger.SubmitRequest{
		EntryID:   entry.ID,
		ProfileID: entry.ProfileID,
		ItemID:    entry.ItemID,
		Action:    string(entry.Kind),
		Payload:   entry.Payload,
	})
	if err != nil {
		metrics.LedgerSubmits.WithLabelValues("failure").Inc()
		log.Warn().Err(err).Str("entry_id", entry.ID).Str("item_id", entry.ItemID).
			Int("attempt", attempt).Msg("ledger submit failed")
		if attempt >= w.opts.MaxAttempts {
			w.exhaust(ctx, entry)
		}
		return false
	}

	if err := w.logs.MarkSynced(ctx, entry.ID); err != nil {
		// 提交已被账本接受，下一轮重提交靠 EntryID 幂等兜底
		log.Error().Err(err).Str("entry_id", entry.ID).Msg("failed to mark entry synced")
		return false
	}
	metrics.LedgerSubmits.WithLabelValues("success").Inc()
	return true
}

// exhaust 重试用尽: 标记 FAILED 并升级为告警，绝不静默丢弃
func (w *Worker) exhaust(ctx context.Context, entry *domain.ActionLogEntry) {
	metrics.LedgerSubmits.WithLabelValues("exhausted").Inc()
	if err := w.logs.MarkFailed(ctx, entry.ID); err != nil {
		log.Error().Err(err).Str("entry_id", entry.ID).Msg("failed to mark entry failed")
		return
	}

	alert := domain.NewAlert(entry.ProfileID, entry.ItemID,
		domain.AlertSyncExhausted, domain.SeverityCritical,
		fmt.Sprintf("action log entry %s exceeded %d ledger submit attempts", entry.ID, w.opts.MaxAttempts))
	if w.alerts != nil {
		if err := w.alerts.Save(ctx, alert); err != nil {
			log.Error().Err(err).Str("entry_id", entry.ID).Msg("failed to persist sync exhausted alert")
		}
	}
	if w.notify != nil {
		if err := w.notify.Notify(ctx, alert); err != nil {
			log.Warn().Err(err).Str("entry_id", entry.ID).Msg("failed to publish sync exhausted alert")
		}
	}
	log.Error().Err(domain.ErrLedgerSubmitExhausted).
		Str("entry_id", entry.ID).Str("item_id", entry.ItemID).
		Msg("entry marked failed")
}

// due 按指数退避判断条目是否到了重试时间。
// 第 n 次失败后等待 base * 2^(n-1)，上限 BackoffMax。
func (w *Worker) due(entry *domain.ActionLogEntry, now time.Time) bool {
	if entry.AttemptCount == 0 || entry.LastAttemptAt == nil {
		return true
	}
	wait := w.opts.BackoffBase
	for i := 1; i < entry.AttemptCount; i++ {
		wait *= 2
		if wait >= w.opts.BackoffMax {
			wait = w.opts.BackoffMax
			break
		}
	}
	return !now.Before(entry.LastAttemptAt.Add(wait))
}
