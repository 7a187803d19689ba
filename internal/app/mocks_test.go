package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/pscheid92/stockpulse/internal/domain"
)

// --- Mock implementations ---

type mockUserRepo struct {
	getByIDFn          func(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	getByUsernameFn    func(ctx context.Context, username string) (*domain.User, error)
	createFn           func(ctx context.Context, username string, passwordHash []byte) (*domain.User, error)
	updateNotifyChatFn func(ctx context.Context, userID uuid.UUID, chatID *int64) error
	listNotifiableFn   func(ctx context.Context) ([]domain.User, error)
}

func (m *mockUserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, userID)
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepo) Create(ctx context.Context, username string, passwordHash []byte) (*domain.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, username, passwordHash)
	}
	return &domain.User{ID: uuid.New(), Username: username, PasswordHash: passwordHash}, nil
}

func (m *mockUserRepo) UpdateNotifyChat(ctx context.Context, userID uuid.UUID, chatID *int64) error {
	if m.updateNotifyChatFn != nil {
		return m.updateNotifyChatFn(ctx, userID, chatID)
	}
	return nil
}

func (m *mockUserRepo) ListNotifiable(ctx context.Context) ([]domain.User, error) {
	if m.listNotifiableFn != nil {
		return m.listNotifiableFn(ctx)
	}
	return nil, nil
}

type mockCategoryRepo struct {
	listFn    func(ctx context.Context, userID uuid.UUID) ([]domain.Category, error)
	getByIDFn func(ctx context.Context, userID uuid.UUID, categoryID int64) (*domain.Category, error)
	createFn  func(ctx context.Context, userID uuid.UUID, name string) (*domain.Category, error)
	deleteFn  func(ctx context.Context, userID uuid.UUID, categoryID int64) error
}

func (m *mockCategoryRepo) List(ctx context.Context, userID uuid.UUID) ([]domain.Category, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockCategoryRepo) GetByID(ctx context.Context, userID uuid.UUID, categoryID int64) (*domain.Category, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, userID, categoryID)
	}
	return nil, domain.ErrCategoryNotFound
}

func (m *mockCategoryRepo) Create(ctx context.Context, userID uuid.UUID, name string) (*domain.Category, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, name)
	}
	return &domain.Category{ID: 1, UserID: userID, Name: name}, nil
}

func (m *mockCategoryRepo) Delete(ctx context.Context, userID uuid.UUID, categoryID int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, categoryID)
	}
	return nil
}

type mockMaterialRepo struct {
	listFn    func(ctx context.Context, userID uuid.UUID, filter domain.MaterialFilter) ([]domain.Material, error)
	getByIDFn func(ctx context.Context, userID uuid.UUID, materialID int64) (*domain.Material, error)
	createFn  func(ctx context.Context, userID uuid.UUID, in domain.MaterialInput) (*domain.Material, error)
	updateFn  func(ctx context.Context, userID uuid.UUID, materialID int64, in domain.MaterialInput) (*domain.Material, error)
	deleteFn  func(ctx context.Context, userID uuid.UUID, materialID int64) error
}

func (m *mockMaterialRepo) List(ctx context.Context, userID uuid.UUID, filter domain.MaterialFilter) ([]domain.Material, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, filter)
	}
	return nil, nil
}

func (m *mockMaterialRepo) GetByID(ctx context.Context, userID uuid.UUID, materialID int64) (*domain.Material, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, userID, materialID)
	}
	return nil, domain.ErrMaterialNotFound
}

func (m *mockMaterialRepo) Create(ctx context.Context, userID uuid.UUID, in domain.MaterialInput) (*domain.Material, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockMaterialRepo) Update(ctx context.Context, userID uuid.UUID, materialID int64, in domain.MaterialInput) (*domain.Material, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, materialID, in)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockMaterialRepo) Delete(ctx context.Context, userID uuid.UUID, materialID int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, materialID)
	}
	return nil
}

type mockUsageRepo struct {
	recordFn       func(ctx context.Context, userID uuid.UUID, materialID int64, op domain.Operation, apply domain.ApplyFunc) (*domain.Material, *domain.UsageEntry, error)
	historyFn      func(ctx context.Context, userID uuid.UUID, materialID int64) ([]domain.UsageEntry, error)
	movementsFn    func(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]domain.UsageEntry, error)
	dailyOutflowFn func(ctx context.Context, materialID int64, from, to time.Time) ([]domain.DailyUsage, error)
}

func (m *mockUsageRepo) Record(ctx context.Context, userID uuid.UUID, materialID int64, op domain.Operation, apply domain.ApplyFunc) (*domain.Material, *domain.UsageEntry, error) {
	if m.recordFn != nil {
		return m.recordFn(ctx, userID, materialID, op, apply)
	}
	return nil, nil, fmt.Errorf("not implemented")
}

func (m *mockUsageRepo) History(ctx context.Context, userID uuid.UUID, materialID int64) ([]domain.UsageEntry, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, userID, materialID)
	}
	return nil, nil
}

func (m *mockUsageRepo) Movements(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]domain.UsageEntry, error) {
	if m.movementsFn != nil {
		return m.movementsFn(ctx, userID, from, to)
	}
	return nil, nil
}

func (m *mockUsageRepo) DailyOutflow(ctx context.Context, materialID int64, from, to time.Time) ([]domain.DailyUsage, error) {
	if m.dailyOutflowFn != nil {
		return m.dailyOutflowFn(ctx, materialID, from, to)
	}
	return nil, nil
}

type mockCache struct {
	mu            sync.Mutex
	entries       map[string]*domain.Forecast
	invalidated   []int64
	invalidateErr error
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]*domain.Forecast)}
}

func cacheKey(materialID int64, horizon int) string {
	return fmt.Sprintf("%d:%d", materialID, horizon)
}

func (m *mockCache) Get(_ context.Context, materialID int64, horizon int) (*domain.Forecast, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.entries[cacheKey(materialID, horizon)]
	return f, ok
}

func (m *mockCache) Set(_ context.Context, f *domain.Forecast) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[cacheKey(f.MaterialID, f.HorizonDays)] = f
}

func (m *mockCache) Invalidate(_ context.Context, materialID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, materialID)
	if m.invalidateErr != nil {
		return m.invalidateErr
	}
	for key, f := range m.entries {
		if f.MaterialID == materialID {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *mockCache) invalidations() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.invalidated...)
}

type mockNarrator struct {
	narrateFn func(ctx context.Context, f domain.Forecast) (string, error)
}

func (m *mockNarrator) Narrate(ctx context.Context, f domain.Forecast) (string, error) {
	return m.narrateFn(ctx, f)
}

type sentMessage struct {
	ChatID int64
	Text   string
}

type mockNotifier struct {
	mu     sync.Mutex
	sent   []sentMessage
	sendFn func(ctx context.Context, chatID int64, text string) error
}

func (m *mockNotifier) Send(ctx context.Context, chatID int64, text string) error {
	if m.sendFn != nil {
		if err := m.sendFn(ctx, chatID, text); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *mockNotifier) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

type mockExporter struct {
	exportFn func(report domain.TurnoverReport) ([]byte, error)
}

func (m *mockExporter) TurnoverReport(report domain.TurnoverReport) ([]byte, error) {
	return m.exportFn(report)
}

// --- Helpers ---

var (
	testUserID = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	testNow    = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	testToday  = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
)

type testDeps struct {
	users      *mockUserRepo
	categories *mockCategoryRepo
	materials  *mockMaterialRepo
	usage      *mockUsageRepo
	cache      *mockCache
	clock      *clockwork.FakeClock
}

func newTestDeps() *testDeps {
	return &testDeps{
		users:      &mockUserRepo{},
		categories: &mockCategoryRepo{},
		materials:  &mockMaterialRepo{},
		usage:      &mockUsageRepo{},
		cache:      newMockCache(),
		clock:      clockwork.NewFakeClockAt(testNow),
	}
}

func (d *testDeps) service(opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = d.cache
	}
	svc := NewService(Repositories{
		Users:      d.users,
		Categories: d.categories,
		Materials:  d.materials,
		Usage:      d.usage,
	}, opts, d.clock)
	svc.passwordCost = bcrypt.MinCost
	return svc
}

func ptr[T any](v T) *T { return &v }

func daysFromToday(days int) *time.Time {
	d := testToday.AddDate(0, 0, days)
	return &d
}
