package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tradegate/internal/domain/regime"
	"tradegate/pkg/errors"
	"tradegate/pkg/logger"
)

type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context) (*regime.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*regime.Snapshot), args.Error(1)
}

func (m *MockClassifier) ShouldTrade(ctx context.Context, snap *regime.Snapshot) (regime.TradeGate, error) {
	args := m.Called(ctx, snap)
	return args.Get(0).(regime.TradeGate), args.Error(1)
}

type MockRegimeRepository struct {
	mock.Mock
}

func (m *MockRegimeRepository) Store(ctx context.Context, snap *regime.Snapshot) error {
	return m.Called(ctx, snap).Error(0)
}

func (m *MockRegimeRepository) GetLatest(ctx context.Context) (*regime.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*regime.Snapshot), args.Error(1)
}

func (m *MockRegimeRepository) History(ctx context.Context, since time.Time, limit int) ([]*regime.Snapshot, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*regime.Snapshot), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, event interface{}) error {
	return m.Called(ctx, topic, key, event).Error(0)
}

func stressedSnapshot() *regime.Snapshot {
	return &regime.Snapshot{
		VolRegime:         regime.VolStressed,
		CorrelationRegime: regime.CorrelationHigh,
		RiskAppetite:      regime.RiskOff,
		Timestamp:         time.Date(2026, time.March, 9, 15, 0, 0, 0, time.UTC),
	}
}

func TestRegimeSnapshotWorker_StoresAndPublishes(t *testing.T) {
	ctx := context.Background()
	snap := stressedSnapshot()
	blocked := regime.TradeGate{Allowed: false, Reasons: []string{"Volatility regime is stressed"}}

	classifier := new(MockClassifier)
	classifier.On("Classify", ctx).Return(snap, nil)
	classifier.On("ShouldTrade", ctx, snap).Return(blocked, nil)

	repo := new(MockRegimeRepository)
	repo.On("Store", ctx, snap).Return(nil)

	pub := new(MockPublisher)
	pub.On("Publish", ctx, "regime.snapshots", "stressed", RegimeSnapshotEvent{Snapshot: snap, Gate: blocked}).Return(nil)
	pub.On("Publish", ctx, "risk.gate_blocked", "regime", blocked).Return(nil).Once()

	w := NewRegimeSnapshotWorker(classifier, repo, pub, time.Hour, true, logger.NewNop())

	require.NoError(t, w.Run(ctx))
	// an unchanged blocked gate is announced only once
	require.NoError(t, w.Run(ctx))

	repo.AssertNumberOfCalls(t, "Store", 2)
	pub.AssertNumberOfCalls(t, "Publish", 3)
	pub.AssertExpectations(t)
}

func TestRegimeSnapshotWorker_WithoutSinks(t *testing.T) {
	ctx := context.Background()
	snap := stressedSnapshot()

	classifier := new(MockClassifier)
	classifier.On("Classify", ctx).Return(snap, nil)
	classifier.On("ShouldTrade", ctx, snap).Return(regime.TradeGate{Allowed: true, Reasons: []string{}}, nil)

	w := NewRegimeSnapshotWorker(classifier, nil, nil, time.Hour, true, logger.NewNop())
	require.NoError(t, w.Run(ctx))
	assert.Equal(t, "regime_snapshot", w.Name())
}

func TestRegimeSnapshotWorker_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("classification failure", func(t *testing.T) {
		classifier := new(MockClassifier)
		classifier.On("Classify", ctx).Return(nil, context.Canceled)

		w := NewRegimeSnapshotWorker(classifier, nil, nil, time.Hour, true, logger.NewNop())
		err := w.Run(ctx)
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("store failure", func(t *testing.T) {
		snap := stressedSnapshot()
		classifier := new(MockClassifier)
		classifier.On("Classify", ctx).Return(snap, nil)
		classifier.On("ShouldTrade", ctx, snap).Return(regime.TradeGate{Allowed: true, Reasons: []string{}}, nil)
		repo := new(MockRegimeRepository)
		repo.On("Store", ctx, snap).Return(errors.ErrUnavailable)

		w := NewRegimeSnapshotWorker(classifier, repo, nil, time.Hour, true, logger.NewNop())
		err := w.Run(ctx)
		assert.True(t, errors.Is(err, errors.ErrUnavailable))
	})
}
