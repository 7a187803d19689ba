package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/stockpulse/internal/adapter/metrics"
	"github.com/pscheid92/stockpulse/internal/domain"
)

func digestMaterials() []domain.Material {
	return []domain.Material{
		{ID: 1, Name: "Acetone", Unit: domain.UnitLiters, CurrentQuantity: 0, MinThreshold: 5},
		{ID: 2, Name: "Agar", Unit: domain.UnitKilograms, CurrentQuantity: 3, MinThreshold: 10, ExpirationDate: daysFromToday(-4)},
		{ID: 3, Name: "Buffer", Unit: domain.UnitLiters, CurrentQuantity: 2.5, MinThreshold: 5},
		{ID: 4, Name: "Gloves", Unit: domain.UnitPieces, CurrentQuantity: 100, MinThreshold: 10, ExpirationDate: daysFromToday(12)},
		{ID: 5, Name: "Tips", Unit: domain.UnitPieces, CurrentQuantity: 100, MinThreshold: 10},
	}
}

func TestBuildDigest(t *testing.T) {
	deps := newTestDeps()
	deps.materials.listFn = func(_ context.Context, _ uuid.UUID, filter domain.MaterialFilter) ([]domain.Material, error) {
		assert.Equal(t, testToday, filter.Today)
		return digestMaterials(), nil
	}
	svc := deps.service(Options{})

	text, err := svc.BuildDigest(context.Background(), testUserID)
	require.NoError(t, err)

	want := strings.Join([]string{
		"Inventory digest for 2026-03-10",
		"",
		"Critical (2)",
		"- Acetone: out of stock",
		"- Agar: expired 4 days ago",
		"",
		"Below threshold (1)",
		"- Buffer: 2.5 of 5 l",
		"",
		"Expiring soon (1)",
		"- Gloves: expires in 12 days",
	}, "\n")
	assert.Equal(t, want, text)
	assert.NotContains(t, text, "Tips")
}

func TestBuildDigest_NothingToReport(t *testing.T) {
	deps := newTestDeps()
	deps.materials.listFn = func(context.Context, uuid.UUID, domain.MaterialFilter) ([]domain.Material, error) {
		return []domain.Material{{ID: 5, Name: "Tips", CurrentQuantity: 100, MinThreshold: 10}}, nil
	}
	svc := deps.service(Options{})

	text, err := svc.BuildDigest(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestBuildDigest_TruncatesLongSections(t *testing.T) {
	deps := newTestDeps()
	deps.materials.listFn = func(context.Context, uuid.UUID, domain.MaterialFilter) ([]domain.Material, error) {
		var out []domain.Material
		for i := range 25 {
			out = append(out, domain.Material{ID: int64(i), Name: fmt.Sprintf("M%02d", i)})
		}
		return out, nil
	}
	svc := deps.service(Options{})

	text, err := svc.BuildDigest(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Contains(t, text, "Critical (25)")
	assert.Contains(t, text, "... and 5 more")
	assert.NotContains(t, text, "M20")
}

func TestSendDigests(t *testing.T) {
	alice, bob, carol, dave := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	deps := newTestDeps()
	deps.users.listNotifiableFn = func(context.Context) ([]domain.User, error) {
		return []domain.User{
			{ID: alice, NotifyChatID: ptr(int64(1))},
			{ID: bob, NotifyChatID: ptr(int64(2))},
			{ID: carol, NotifyChatID: ptr(int64(3))},
			{ID: dave, NotifyChatID: ptr(int64(4))},
		}, nil
	}
	deps.materials.listFn = func(_ context.Context, userID uuid.UUID, _ domain.MaterialFilter) ([]domain.Material, error) {
		switch userID {
		case bob:
			return []domain.Material{{ID: 9, Name: "Tips", CurrentQuantity: 100}}, nil
		case carol:
			return nil, errors.New("connection reset")
		}
		return digestMaterials(), nil
	}
	notifier := &mockNotifier{sendFn: func(_ context.Context, chatID int64, _ string) error {
		if chatID == 4 {
			return errors.New("chat not found")
		}
		return nil
	}}
	m := metrics.NewInventoryMetrics(prometheus.NewRegistry())
	svc := deps.service(Options{Notifier: notifier, Metrics: m})

	result, err := svc.SendDigests(context.Background())
	require.NoError(t, err)

	assert.Equal(t, DigestResult{Sent: 1, Skipped: 1, Failed: 2}, result)
	sent := notifier.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(1), sent[0].ChatID)
	assert.Contains(t, sent[0].Text, "Acetone")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DigestMessagesSent.WithLabelValues("sent")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DigestMessagesSent.WithLabelValues("error")))
}

func TestSendDigests_WithoutNotifier(t *testing.T) {
	deps := newTestDeps()
	deps.users.listNotifiableFn = func(context.Context) ([]domain.User, error) {
		t.Fatal("users must not be listed without a notifier")
		return nil, nil
	}
	svc := deps.service(Options{})

	result, err := svc.SendDigests(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result)
}

func TestSendDigests_ListFailure(t *testing.T) {
	deps := newTestDeps()
	deps.users.listNotifiableFn = func(context.Context) ([]domain.User, error) {
		return nil, errors.New("connection refused")
	}
	svc := deps.service(Options{Notifier: &mockNotifier{}})

	_, err := svc.SendDigests(context.Background())
	assert.Error(t, err)
}

func TestSendDigests_StopsOnCancelledContext(t *testing.T) {
	deps := newTestDeps()
	deps.users.listNotifiableFn = func(context.Context) ([]domain.User, error) {
		return []domain.User{{ID: uuid.New(), NotifyChatID: ptr(int64(1))}}, nil
	}
	deps.materials.listFn = func(context.Context, uuid.UUID, domain.MaterialFilter) ([]domain.Material, error) {
		return digestMaterials(), nil
	}
	notifier := &mockNotifier{}
	svc := deps.service(Options{Notifier: notifier})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.SendDigests(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, notifier.messages())
}
