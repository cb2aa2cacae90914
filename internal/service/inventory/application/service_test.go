package application

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"akwa/internal/service/inventory/domain"
	"akwa/internal/service/inventory/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// memStore 是 domain.Repos + domain.TxRunner 的内存实现。
// 读写都走拷贝，模拟数据库的值语义。
type memStore struct {
	mu           sync.Mutex
	items        map[string]*domain.Item
	reservations map[string]*domain.Reservation
	logs         map[string]*domain.ActionLogEntry
	logOrder     []string
	alerts       []*domain.Alert
}

func newMemStore() *memStore {
	return &memStore{
		items:        make(map[string]*domain.Item),
		reservations: make(map[string]*domain.Reservation),
		logs:         make(map[string]*domain.ActionLogEntry),
	}
}

func (s *memStore) Items() domain.ItemRepository               { return &memItemRepo{s} }
func (s *memStore) Reservations() domain.ReservationRepository { return &memReservationRepo{s} }
func (s *memStore) ActionLog() domain.ActionLogRepository      { return &memActionLogRepo{s} }
func (s *memStore) Alerts() domain.AlertRepository             { return &memAlertRepo{s} }

func (s *memStore) InTx(_ context.Context, fn func(r domain.Repos) error) error {
	return fn(s)
}

func (s *memStore) logEntries(kind domain.ActionKind) []*domain.ActionLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.ActionLogEntry
	for _, id := range s.logOrder {
		if e := s.logs[id]; e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type memItemRepo struct{ s *memStore }

func (r *memItemRepo) Save(_ context.Context, item *domain.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *item
	r.s.items[item.ID] = &cp
	return nil
}

func (r *memItemRepo) FindByID(_ context.Context, profileID, itemID string) (*domain.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.items[itemID]
	if !ok || item.ProfileID != profileID {
		return nil, domain.ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (r *memItemRepo) Summary(_ context.Context, profileID string) (*domain.ItemSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	summary := &domain.ItemSummary{ProfileID: profileID}
	for _, item := range r.s.items {
		if item.ProfileID != profileID || !item.IsActive {
			continue
		}
		summary.ItemCount++
		summary.TotalQuantity += item.TotalQuantity
		summary.TotalAvailable += item.AvailableQuantity
		summary.TotalReserved += item.ReservedQuantity
	}
	return summary, nil
}

type memReservationRepo struct{ s *memStore }

func (r *memReservationRepo) Save(_ context.Context, res *domain.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *res
	r.s.reservations[res.ID] = &cp
	return nil
}

func (r *memReservationRepo) FindByID(_ context.Context, id string) (*domain.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *memReservationRepo) FindExpiredPending(_ context.Context, now time.Time, limit int) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []string
	for _, res := range r.s.reservations {
		if res.IsExpiredAt(now) {
			ids = append(ids, res.ID)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *memReservationRepo) FindExpiringSoon(_ context.Context, profileID string, within time.Duration) ([]*domain.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	var out []*domain.Reservation
	for _, res := range r.s.reservations {
		if res.ProfileID != profileID || res.State != domain.StatePending || res.ExpiresAt == nil {
			continue
		}
		if res.ExpiresAt.After(now) && !res.ExpiresAt.After(now.Add(within)) {
			cp := *res
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memReservationRepo) CountOpenByItem(_ context.Context, itemID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, res := range r.s.reservations {
		if res.ItemID == itemID && res.IsOpen() {
			count++
		}
	}
	return count, nil
}

type memActionLogRepo struct{ s *memStore }

func (r *memActionLogRepo) Append(_ context.Context, entry *domain.ActionLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.logs[entry.ID]; ok {
		return nil
	}
	cp := *entry
	r.s.logs[entry.ID] = &cp
	r.s.logOrder = append(r.s.logOrder, entry.ID)
	return nil
}

func (r *memActionLogRepo) ListUnsynced(_ context.Context, limit int) ([]*domain.ActionLogEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.ActionLogEntry
	for _, id := range r.s.logOrder {
		if e := r.s.logs[id]; e.SyncState == domain.SyncPending {
			cp := *e
			out = append(out, &cp)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memActionLogRepo) ListFailed(_ context.Context, profileID string, limit int) ([]*domain.ActionLogEntry, error) {
	return nil, nil
}

func (r *memActionLogRepo) MarkSynced(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.logs[id].SyncState = domain.SyncSynced
	return nil
}

func (r *memActionLogRepo) MarkAttempt(_ context.Context, id string, attempt int, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.logs[id].AttemptCount = attempt
	r.s.logs[id].LastAttemptAt = &at
	return nil
}

func (r *memActionLogRepo) MarkFailed(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.logs[id].SyncState = domain.SyncFailed
	return nil
}

type memAlertRepo struct{ s *memStore }

func (r *memAlertRepo) Save(_ context.Context, alert *domain.Alert) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *alert
	r.s.alerts = append(r.s.alerts, &cp)
	return nil
}

func (r *memAlertRepo) ListUnresolved(_ context.Context, profileID string) ([]*domain.Alert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Alert
	for _, a := range r.s.alerts {
		if a.ProfileID == profileID && !a.Resolved {
			out = append(out, a)
		}
	}
	return out, nil
}

// keyedLocker 进程内 per-item 互斥，测试用
type keyedLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *keyedLocker) Lock(_ context.Context, itemID string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[itemID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[itemID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock, nil
}

// fakePermChecker 可配置的权限检查桩
type fakePermChecker struct {
	granted bool
	err     error
}

func (f *fakePermChecker) IsPermitted(context.Context, string, string) (bool, error) {
	return f.granted, f.err
}

// soldOutRule 只命中售罄的快照
type soldOutRule struct{}

func (soldOutRule) Evaluate(_ string, fact domain.QuantityFact) (bool, error) {
	return fact.Available == 0, nil
}

type testEnv struct {
	svc   *ReservationService
	store *memStore
	perm  *fakePermChecker
	item  *domain.Item
}

func newTestEnv(t *testing.T, total int64, rules []AlertRule, engine port.RuleEngine) *testEnv {
	t.Helper()
	store := newMemStore()
	perm := &fakePermChecker{granted: true}

	item, err := domain.NewItem("profile-1", "会议室A", domain.KindRoom, total)
	require.NoError(t, err)
	require.NoError(t, store.Items().Save(context.Background(), item))

	svc := NewReservationService(
		store, store.Items(), store.Reservations(), store.Alerts(),
		perm, newKeyedLocker(), engine, nil,
		rules, 15*time.Minute, otel.Tracer("test"),
	)
	return &testEnv{svc: svc, store: store, perm: perm, item: item}
}

func createReq(env *testEnv, qty int64, ttl time.Duration) *CreateReservationRequest {
	return &CreateReservationRequest{
		ProfileID:  env.item.ProfileID,
		ItemID:     env.item.ID,
		CustomerID: "cust-1",
		Actor:      "0xabc",
		Quantity:   qty,
		TTL:        ttl,
	}
}

func TestCreateReservation(t *testing.T) {
	env := newTestEnv(t, 10, nil, nil)
	ctx := context.Background()

	res, err := env.svc.CreateReservation(ctx, createReq(env, 4, 0))
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, res.State)

	item, err := env.svc.GetItem(ctx, env.item.ProfileID, env.item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), item.AvailableQuantity)
	assert.Equal(t, int64(4), item.ReservedQuantity)
	assert.True(t, item.Invariant())

	// 动作日志与数量变更一起落盘
	logs := env.store.logEntries(domain.ActionReserve)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.SyncPending, logs[0].SyncState)
}

func TestCreateReservationRejectsOversell(t *testing.T) {
	env := newTestEnv(t, 10, nil, nil)
	ctx := context.Background()

	_, err := env.svc.CreateReservation(ctx, createReq(env, 4, 0))
	require.NoError(t, err)

	_, err = env.svc.CreateReservation(ctx, createReq(env, 7, 0))
	assert.ErrorIs(t, err, domain.ErrInsufficientCapacity)

	// 失败的预订不留任何痕迹
	item, _ := env.svc.GetItem(ctx, env.item.ProfileID, env.item.ID)
	assert.Equal(t, int64(6), item.AvailableQuantity)
	assert.Len(t, env.store.logEntries(domain.ActionReserve), 1)
}

func TestCreateReservationPermissionDenied(t *testing.T) {
	env := newTestEnv(t, 10, nil, nil)
	env.perm.granted = false

	_, err := env.svc.CreateReservation(context.Background(), createReq(env, 1, 0))

	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Empty(t, env.store.logEntries(domain.ActionReserve))
}

func TestCreateReservationPermissionTimeout(t *testing.T) {
	env := newTestEnv(t, 10, nil, nil)
	env.perm.granted = false
	env.perm.err = domain.ErrPermissionCheckTimeout

	_, err := env.svc.CreateReservation(context.Background(), createReq(env, 1, 0))

	assert.ErrorIs(t, err, domain.ErrPermissionCheckTimeout)
}

func TestConfirmReservationIsIdempotent(t *testing.T) {
	env := newTestEnv(t, 10, nil, nil)
	ctx := context.Background()

	res, err := env.svc.CreateReservation(ctx, createReq(env, 2, 0))
	require.NoError(t, err)

	require.NoError(t, env.svc.ConfirmReservation(ctx, res.ID))
	require.NoError(t, env.svc.ConfirmReservation(ctx, res.ID))

	stored, err := env.store.Reservations().FindByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateConfirmed, stored.State)
}

func TestReleaseReservationReturnsQuantityOnce(t *testing.T) {
	env := newTestEnv(t, 10, nil, nil)
	ctx := context.Background()

	res, err := env.svc.CreateReservation(ctx, createReq(env, 4, 0))
	require.NoError(t, err)

	require.NoError(t, env.svc.ReleaseReservation(ctx, res.ID))

	item, _ := env.svc.GetItem(ctx, env.item.ProfileID, env.item.ID)
	assert.Equal(t, int64(10), item.AvailableQuantity)
	assert.Equal(t, int64(0), item.ReservedQuantity)

	// 二次释放被状态机拦截，数量不会归还两次
	assert.ErrorIs(t, env.svc.ReleaseReservation(ctx, res.ID), domain.ErrInvalidState)
	item, _ = env.svc.GetItem(ctx, env.item.ProfileID, env.item.ID)
	assert.Equal(t, int64(10), item.AvailableQuantity)
	assert.Len(t, env.store.logEntries(domain.ActionRelease), 1)
}

func TestExpireStaleReservations(t *testing.T) {
	env := newTestEnv(t, 10, nil, nil)
	ctx := context.Background()

	res, err := env.svc.CreateReservation(ctx, createReq(env, 3, time.Nanosecond))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	expired, err := env.svc.ExpireStaleReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	stored, _ := env.store.Reservations().FindByID(ctx, res.ID)
	assert.Equal(t, domain.StateExpired, stored.State)

	item, _ := env.svc.GetItem(ctx, env.item.ProfileID, env.item.ID)
	assert.Equal(t, int64(10), item.AvailableQuantity)
}

func TestManualReleaseWinsOverSweep(t *testing.T) {
	env := newTestEnv(t, 10, nil, nil)
	ctx := context.Background()

	res, err := env.svc.CreateReservation(ctx, createReq(env, 3, time.Nanosecond))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	// 手动释放先到，清扫器随后不得二次归还
	require.NoError(t, env.svc.ReleaseReservation(ctx, res.ID))
	expired, err := env.svc.ExpireStaleReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)

	item, _ := env.svc.GetItem(ctx, env.item.ProfileID, env.item.ID)
	assert.Equal(t, int64(10), item.AvailableQuantity)
	assert.Len(t, env.store.logEntries(domain.ActionRelease), 1)
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	env := newTestEnv(t, 5, nil, nil)
	ctx := context.Background()

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = env.svc.CreateReservation(ctx, createReq(env, 1, 0))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrInsufficientCapacity)
		}
	}
	assert.Equal(t, 5, succeeded)

	item, _ := env.svc.GetItem(ctx, env.item.ProfileID, env.item.ID)
	assert.Equal(t, int64(0), item.AvailableQuantity)
	assert.Equal(t, int64(5), item.ReservedQuantity)
	assert.True(t, item.Invariant())
}

func TestDeactivateItemRejectsOpenReservations(t *testing.T) {
	env := newTestEnv(t, 10, nil, nil)
	ctx := context.Background()

	res, err := env.svc.CreateReservation(ctx, createReq(env, 2, 0))
	require.NoError(t, err)

	err = env.svc.DeactivateItem(ctx, env.item.ProfileID, env.item.ID, "0xabc")
	assert.ErrorIs(t, err, domain.ErrOpenReservations)

	// 预订终结后可以停用
	require.NoError(t, env.svc.ReleaseReservation(ctx, res.ID))
	require.NoError(t, env.svc.DeactivateItem(ctx, env.item.ProfileID, env.item.ID, "0xabc"))

	item, _ := env.svc.GetItem(ctx, env.item.ProfileID, env.item.ID)
	assert.False(t, item.IsActive)
}

func TestUpdateItemQuantity(t *testing.T) {
	env := newTestEnv(t, 10, nil, nil)
	ctx := context.Background()

	_, err := env.svc.CreateReservation(ctx, createReq(env, 4, 0))
	require.NoError(t, err)

	require.NoError(t, env.svc.UpdateItemQuantity(ctx, env.item.ProfileID, env.item.ID, "0xabc", 6))

	item, _ := env.svc.GetItem(ctx, env.item.ProfileID, env.item.ID)
	assert.Equal(t, int64(6), item.TotalQuantity)
	assert.Equal(t, int64(2), item.AvailableQuantity)
	assert.Len(t, env.store.logEntries(domain.ActionUpdate), 1)
}

func TestSoldOutAlertFires(t *testing.T) {
	rules := []AlertRule{{
		Name: "sold-out", Kind: string(domain.AlertSoldOut),
		Severity: string(domain.SeverityHigh), Expr: "available == 0", Message: "sold out",
	}}
	env := newTestEnv(t, 2, rules, soldOutRule{})
	ctx := context.Background()

	_, err := env.svc.CreateReservation(ctx, createReq(env, 2, 0))
	require.NoError(t, err)

	alerts, err := env.store.Alerts().ListUnresolved(ctx, env.item.ProfileID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertSoldOut, alerts[0].Kind)
}

func TestRegisterItem(t *testing.T) {
	env := newTestEnv(t, 1, nil, nil)
	ctx := context.Background()

	item, err := env.svc.RegisterItem(ctx, &RegisterItemRequest{
		ProfileID: "profile-1", Actor: "0xabc", Name: "车位B", Kind: string(domain.KindVehicle), Total: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), item.AvailableQuantity)
	assert.Len(t, env.store.logEntries(domain.ActionCreate), 1)
}
