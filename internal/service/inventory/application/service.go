package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"akwa/internal/pkg/metrics"
	"akwa/internal/service/inventory/domain"
	"akwa/internal/service/inventory/port"
	"akwa/internal/service/permission"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ReservationService 编排库存核心的全部写路径。
// 并发模型: 单个库存项的数量变更通过 per-item 锁串行化，
// 不同库存项互不阻塞；权限检查和只读查询不取锁；
// 锁内绝不发起外部 I/O（账本调用、Kafka 投递都在锁外）。
type ReservationService struct {
	tx           domain.TxRunner
	items        domain.ItemRepository
	reservations domain.ReservationRepository
	alerts       domain.AlertRepository

	perm   port.PermissionChecker
	locker port.ItemLocker
	rules  port.RuleEngine
	notify port.AlertNotifier

	alertRules     []AlertRule
	reservationTTL time.Duration
	tracer         trace.Tracer
}

// NewReservationService 组装预订服务。alertRules 可为空。
func NewReservationService(
	tx domain.TxRunner,
	items domain.ItemRepository,
	reservations domain.ReservationRepository,
	alerts domain.AlertRepository,
	perm port.PermissionChecker,
	locker port.ItemLocker,
	rules port.RuleEngine,
	notify port.AlertNotifier,
	alertRules []AlertRule,
	reservationTTL time.Duration,
	tracer trace.Tracer,
) *ReservationService {
	return &ReservationService{
		tx: tx, items: items, reservations: reservations, alerts: alerts,
		perm: perm, locker: locker, rules: rules, notify: notify,
		alertRules: alertRules, reservationTTL: reservationTTL, tracer: tracer,
	}
}

// CreateReservation 创建一个 Pending 预订。流程:
// 权限检查（锁外，可能回源账本）→ 取 per-item 锁 →
// 单事务内 [数量划转 + 预订落盘 + 动作日志追加] → 放锁 → 规则评估。
func (s *ReservationService) CreateReservation(ctx context.Context, req *CreateReservationRequest) (*domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.CreateReservation")
	defer span.End()
	span.SetAttributes(
		attribute.String("item.id", req.ItemID),
		attribute.Int64("quantity", req.Quantity),
	)

	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", req.Quantity)
	}

	// 1. 权限检查。超时与拒绝对调用方同样是拦截，保写安全优先于可用性。
	granted, err := s.perm.IsPermitted(ctx, req.Actor, string(permission.CapReserveInventory))
	if err != nil {
		if errors.Is(err, domain.ErrPermissionCheckTimeout) {
			metrics.ReservationsDenied.WithLabelValues("permission_timeout").Inc()
			span.SetStatus(codes.Error, "permission check timed out")
			return nil, err
		}
		metrics.ReservationsDenied.WithLabelValues("permission_denied").Inc()
		return nil, domain.ErrPermissionDenied
	}
	if !granted {
		metrics.ReservationsDenied.WithLabelValues("permission_denied").Inc()
		span.AddEvent("permission denied")
		return nil, domain.ErrPermissionDenied
	}

	// 2. per-item 临界区。权限检查已经完成，锁内只剩本地事务。
	unlock, err := s.locker.Lock(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = s.reservationTTL
	}

	var created *domain.Reservation
	var fact domain.QuantityFact
	err = s.tx.InTx(ctx, func(r domain.Repos) error {
		item, err := r.Items().FindByID(ctx, req.ProfileID, req.ItemID)
		if err != nil {
			return err
		}
		if err := item.Reserve(req.Quantity); err != nil {
			return err
		}
		if err := r.Items().Save(ctx, item); err != nil {
			return err
		}

		res := domain.NewReservation(req.ItemID, req.ProfileID, req.CustomerID, req.Quantity, ttl)
		if err := r.Reservations().Save(ctx, res); err != nil {
			return err
		}

		entry, err := domain.NewActionLogEntry(req.ItemID, req.ProfileID, domain.ActionReserve, domain.ReservePayload{
			ReservationID: res.ID,
			CustomerID:    req.CustomerID,
			Quantity:      req.Quantity,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if err := r.ActionLog().Append(ctx, entry); err != nil {
			return err
		}

		created = res
		fact = quantityFact(item)
		return nil
	})
	unlock()
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientCapacity) {
			metrics.ReservationsDenied.WithLabelValues("insufficient_capacity").Inc()
			span.AddEvent("insufficient capacity")
		}
		return nil, err
	}

	metrics.ReservationsCreated.Inc()
	span.AddEvent("reservation created", trace.WithAttributes(attribute.String("reservation.id", created.ID)))

	// 3. 锁外评估告警规则（可能触发 Kafka 投递）
	s.evaluateRules(ctx, fact)
	return created, nil
}

// ConfirmReservation 将预订确认为可计费。幂等:
// 重复确认同一预订是 no-op，不是错误。
func (s *ReservationService) ConfirmReservation(ctx context.Context, reservationID string) error {
	ctx, span := s.tracer.Start(ctx, "inventory.ConfirmReservation")
	defer span.End()

	res, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return err
	}

	// 确认不改数量，但仍与清扫/释放竞争状态流转，需要进临界区
	unlock, err := s.locker.Lock(ctx, res.ItemID)
	if err != nil {
		return err
	}
	defer unlock()

	return s.tx.InTx(ctx, func(r domain.Repos) error {
		res, err := r.Reservations().FindByID(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := res.Confirm(); err != nil {
			return err
		}
		return r.Reservations().Save(ctx, res)
	})
}

// ReleaseReservation 释放一个 Pending/Confirmed 预订并归还容量。
// 与过期清扫并发竞争同一预订时，状态流转的胜者执行唯一一次
// 数量归还，败者拿到 ErrInvalidState。
func (s *ReservationService) ReleaseReservation(ctx context.Context, reservationID string) error {
	ctx, span := s.tracer.Start(ctx, "inventory.ReleaseReservation")
	defer span.End()

	res, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, res.ItemID)
	if err != nil {
		return err
	}

	var fact domain.QuantityFact
	err = s.tx.InTx(ctx, func(r domain.Repos) error {
		res, err := r.Reservations().FindByID(ctx, reservationID)
		if err != nil {
			return err
		}
		// 先流转状态: 已 Released/Expired 的预订在这里拦住，
		// 保证数量归还恰好一次
		if err := res.Release(); err != nil {
			return err
		}
		if err := r.Reservations().Save(ctx, res); err != nil {
			return err
		}

		item, err := r.Items().FindByID(ctx, res.ProfileID, res.ItemID)
		if err != nil {
			return err
		}
		if err := item.Release(res.Quantity); err != nil {
			return err
		}
		if err := r.Items().Save(ctx, item); err != nil {
			return err
		}

		entry, err := domain.NewActionLogEntry(res.ItemID, res.ProfileID, domain.ActionRelease, domain.ReservePayload{
			ReservationID: res.ID,
			CustomerID:    res.CustomerID,
			Quantity:      res.Quantity,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if err := r.ActionLog().Append(ctx, entry); err != nil {
			return err
		}
		fact = quantityFact(item)
		return nil
	})
	unlock()
	if err != nil {
		return err
	}

	s.evaluateRules(ctx, fact)
	return nil
}

// ExpireStaleReservations 清扫过期的 Pending 预订，返回本轮过期数。
// 对每个候选逐个取锁重查: 与手动释放竞争时，后到者看到状态
// 已流转就跳过，不会二次归还。
func (s *ReservationService) ExpireStaleReservations(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.ExpireStaleReservations")
	defer span.End()

	now := time.Now()
	ids, err := s.reservations.FindExpiredPending(ctx, now, 256)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		ok, err := s.expireOne(ctx, id, now)
		if err != nil {
			log.Error().Err(err).Str("reservation_id", id).Msg("failed to expire reservation")
			continue
		}
		if ok {
			expired++
			metrics.ReservationsExpired.Inc()
		}
	}
	span.SetAttributes(attribute.Int("expired", expired))
	return expired, nil
}

func (s *ReservationService) expireOne(ctx context.Context, reservationID string, now time.Time) (bool, error) {
	res, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotFound) {
			return false, nil
		}
		return false, err
	}

	unlock, err := s.locker.Lock(ctx, res.ItemID)
	if err != nil {
		return false, err
	}
	defer unlock()

	expired := false
	err = s.tx.InTx(ctx, func(r domain.Repos) error {
		res, err := r.Reservations().FindByID(ctx, reservationID)
		if err != nil {
			return err
		}
		// 锁内重查: 手动释放可能已经赢了这次竞争
		if !res.IsExpiredAt(now) {
			return nil
		}
		if err := res.Expire(); err != nil {
			return nil
		}
		if err := r.Reservations().Save(ctx, res); err != nil {
			return err
		}

		item, err := r.Items().FindByID(ctx, res.ProfileID, res.ItemID)
		if err != nil {
			return err
		}
		if err := item.Release(res.Quantity); err != nil {
			return err
		}
		if err := r.Items().Save(ctx, item); err != nil {
			return err
		}

		entry, err := domain.NewActionLogEntry(res.ItemID, res.ProfileID, domain.ActionRelease, domain.ReservePayload{
			ReservationID: res.ID,
			CustomerID:    res.CustomerID,
			Quantity:      res.Quantity,
			Timestamp:     now.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if err := r.ActionLog().Append(ctx, entry); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}

// RegisterItem 登记一个新的库存项并记录 create 动作
func (s *ReservationService) RegisterItem(ctx context.Context, req *RegisterItemRequest) (*domain.Item, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.RegisterItem")
	defer span.End()

	if err := s.requireManage(ctx, req.Actor); err != nil {
		return nil, err
	}

	item, err := domain.NewItem(req.ProfileID, req.Name, domain.ItemKind(req.Kind), req.Total)
	if err != nil {
		return nil, err
	}

	err = s.tx.InTx(ctx, func(r domain.Repos) error {
		if err := r.Items().Save(ctx, item); err != nil {
			return err
		}
		entry, err := domain.NewActionLogEntry(item.ID, item.ProfileID, domain.ActionCreate, domain.ItemPayload{
			Name:          item.Name,
			Kind:          string(item.Kind),
			TotalQuantity: item.TotalQuantity,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		return r.ActionLog().Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItemQuantity 调整库存项总量并记录 update 动作
func (s *ReservationService) UpdateItemQuantity(ctx context.Context, profileID, itemID, actor string, newTotal int64) error {
	ctx, span := s.tracer.Start(ctx, "inventory.UpdateItemQuantity")
	defer span.End()

	if err := s.requireManage(ctx, actor); err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, itemID)
	if err != nil {
		return err
	}

	var fact domain.QuantityFact
	err = s.tx.InTx(ctx, func(r domain.Repos) error {
		item, err := r.Items().FindByID(ctx, profileID, itemID)
		if err != nil {
			return err
		}
		if err := item.AdjustTotal(newTotal); err != nil {
			return err
		}
		if err := r.Items().Save(ctx, item); err != nil {
			return err
		}
		entry, err := domain.NewActionLogEntry(item.ID, item.ProfileID, domain.ActionUpdate, domain.ItemPayload{
			Name:          item.Name,
			Kind:          string(item.Kind),
			TotalQuantity: item.TotalQuantity,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		fact = quantityFact(item)
		return r.ActionLog().Append(ctx, entry)
	})
	unlock()
	if err != nil {
		return err
	}

	s.evaluateRules(ctx, fact)
	return nil
}

// DeactivateItem 软停用库存项。存在未终结预订时拒绝，
// 库存项在有 open 预订期间永远不会被抹掉。
func (s *ReservationService) DeactivateItem(ctx context.Context, profileID, itemID, actor string) error {
	ctx, span := s.tracer.Start(ctx, "inventory.DeactivateItem")
	defer span.End()

	if err := s.requireManage(ctx, actor); err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, itemID)
	if err != nil {
		return err
	}
	defer unlock()

	return s.tx.InTx(ctx, func(r domain.Repos) error {
		open, err := r.Reservations().CountOpenByItem(ctx, itemID)
		if err != nil {
			return err
		}
		if open > 0 {
			return domain.ErrOpenReservations
		}
		item, err := r.Items().FindByID(ctx, profileID, itemID)
		if err != nil {
			return err
		}
		item.Deactivate()
		if err := r.Items().Save(ctx, item); err != nil {
			return err
		}
		entry, err := domain.NewActionLogEntry(item.ID, item.ProfileID, domain.ActionUpdate, domain.ItemPayload{
			Name:          item.Name,
			Kind:          string(item.Kind),
			TotalQuantity: item.TotalQuantity,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		return r.ActionLog().Append(ctx, entry)
	})
}

// GetItem 只读查询，不进临界区
func (s *ReservationService) GetItem(ctx context.Context, profileID, itemID string) (*domain.Item, error) {
	return s.items.FindByID(ctx, profileID, itemID)
}

// Summary 返回租户级库存聚合，只读
func (s *ReservationService) Summary(ctx context.Context, profileID string) (*domain.ItemSummary, error) {
	return s.items.Summary(ctx, profileID)
}

// ExpiringSoon 返回时间窗内将要到期的 Pending 预订，只读
func (s *ReservationService) ExpiringSoon(ctx context.Context, profileID string, within time.Duration) ([]*domain.Reservation, error) {
	return s.reservations.FindExpiringSoon(ctx, profileID, within)
}

// UnresolvedAlerts 返回租户未解决的告警，只读
func (s *ReservationService) UnresolvedAlerts(ctx context.Context, profileID string) ([]*domain.Alert, error) {
	return s.alerts.ListUnresolved(ctx, profileID)
}

// FailedSyncEntries 返回重试用尽的动作日志，只读
func (s *ReservationService) FailedSyncEntries(ctx context.Context, profileID string, limit int) ([]*domain.ActionLogEntry, error) {
	var out []*domain.ActionLogEntry
	err := s.tx.InTx(ctx, func(r domain.Repos) error {
		entries, err := r.ActionLog().ListFailed(ctx, profileID, limit)
		if err != nil {
			return err
		}
		out = entries
		return nil
	})
	return out, err
}

func (s *ReservationService) requireManage(ctx context.Context, actor string) error {
	granted, err := s.perm.IsPermitted(ctx, actor, string(permission.CapManageInventory))
	if err != nil {
		if errors.Is(err, domain.ErrPermissionCheckTimeout) {
			return err
		}
		return domain.ErrPermissionDenied
	}
	if !granted {
		return domain.ErrPermissionDenied
	}
	return nil
}

// evaluateRules 在锁外评估告警规则；告警先落库再投递，
// 任一失败只记日志，不影响主流程。
func (s *ReservationService) evaluateRules(ctx context.Context, fact domain.QuantityFact) {
	if s.rules == nil {
		return
	}
	for _, rule := range s.alertRules {
		hit, err := s.rules.Evaluate(rule.Expr, fact)
		if err != nil {
			log.Error().Err(err).Str("rule", rule.Name).Msg("alert rule evaluation failed")
			continue
		}
		if !hit {
			continue
		}
		alert := domain.NewAlert(fact.ProfileID, fact.ItemID,
			domain.AlertKind(rule.Kind), domain.AlertSeverity(rule.Severity), rule.Message)
		if s.alerts != nil {
			if err := s.alerts.Save(ctx, alert); err != nil {
				log.Error().Err(err).Str("rule", rule.Name).Msg("failed to persist alert")
				continue
			}
		}
		if s.notify != nil {
			if err := s.notify.Notify(ctx, alert); err != nil {
				log.Warn().Err(err).Str("rule", rule.Name).Msg("failed to publish alert")
			}
		}
	}
}

func quantityFact(item *domain.Item) domain.QuantityFact {
	return domain.QuantityFact{
		ItemID:    item.ID,
		ProfileID: item.ProfileID,
		Total:     item.TotalQuantity,
		Available: item.AvailableQuantity,
		Reserved:  item.ReservedQuantity,
	}
}
