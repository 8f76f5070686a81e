package workers

import (
	"context"
	"time"

	"tradegate/internal/adapters/kafka"
	"tradegate/internal/domain/regime"
	"tradegate/pkg/errors"
	"tradegate/pkg/logger"
)

// RegimeClassifier produces a snapshot and its hard gate decision
type RegimeClassifier interface {
	Classify(ctx context.Context) (*regime.Snapshot, error)
	ShouldTrade(ctx context.Context, snap *regime.Snapshot) (regime.TradeGate, error)
}

// EventPublisher is the Kafka producer surface the worker needs
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event interface{}) error
}

// RegimeSnapshotEvent is published on every run
type RegimeSnapshotEvent struct {
	Snapshot *regime.Snapshot `json:"snapshot"`
	Gate     regime.TradeGate `json:"gate"`
}

// RegimeSnapshotWorker classifies the market on a schedule, stores each snapshot
// and announces it. Storage and publishing are both optional.
type RegimeSnapshotWorker struct {
	*BaseWorker
	classifier RegimeClassifier
	repo       regime.Repository
	events     EventPublisher

	lastGate *regime.TradeGate
}

// NewRegimeSnapshotWorker creates the worker. repo and events may be nil.
func NewRegimeSnapshotWorker(
	classifier RegimeClassifier,
	repo regime.Repository,
	events EventPublisher,
	interval time.Duration,
	enabled bool,
	log *logger.Logger,
) *RegimeSnapshotWorker {
	return &RegimeSnapshotWorker{
		BaseWorker: NewBaseWorker("regime_snapshot", interval, enabled, log),
		classifier: classifier,
		repo:       repo,
		events:     events,
	}
}

// Run performs one classification
func (w *RegimeSnapshotWorker) Run(ctx context.Context) error {
	snap, err := w.classifier.Classify(ctx)
	if err != nil {
		return errors.Wrap(err, "classify regime")
	}

	gate, err := w.classifier.ShouldTrade(ctx, snap)
	if err != nil {
		return errors.Wrap(err, "evaluate regime gate")
	}

	w.Log().Infow("regime snapshot",
		"vol_regime", snap.VolRegime,
		"correlation_regime", snap.CorrelationRegime,
		"risk_appetite", snap.RiskAppetite,
		"vix", snap.Details.Volatility.VIXCurrent,
		"trade_allowed", gate.Allowed,
	)

	if w.repo != nil {
		if err := w.repo.Store(ctx, snap); err != nil {
			return errors.Wrap(err, "store regime snapshot")
		}
	}

	if w.events != nil {
		ev := RegimeSnapshotEvent{Snapshot: snap, Gate: gate}
		if err := w.events.Publish(ctx, kafka.TopicRegimeSnapshot, string(snap.VolRegime), ev); err != nil {
			w.Log().Warnw("regime snapshot not published", "error", err)
		}
		if !gate.Allowed && w.gateChanged(gate) {
			if err := w.events.Publish(ctx, kafka.TopicGateBlocked, "regime", gate); err != nil {
				w.Log().Warnw("gate blocked event not published", "error", err)
			}
		}
	}

	w.lastGate = &gate
	return nil
}

// gateChanged reports whether the decision differs from the previous run
func (w *RegimeSnapshotWorker) gateChanged(gate regime.TradeGate) bool {
	if w.lastGate == nil || w.lastGate.Allowed != gate.Allowed {
		return true
	}
	if len(w.lastGate.Reasons) != len(gate.Reasons) {
		return true
	}
	for i := range gate.Reasons {
		if gate.Reasons[i] != w.lastGate.Reasons[i] {
			return true
		}
	}
	return false
}
