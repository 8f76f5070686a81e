package ticketservice

import (
	"context"
	"time"

	"tradegate/internal/adapters/kafka"
	"tradegate/internal/domain/ticket"
	"tradegate/internal/metrics"
	"tradegate/pkg/errors"
	"tradegate/pkg/logger"
)

// EventPublisher delivers ticket lifecycle events, implemented by the Kafka producer
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event interface{}) error
}

// NoopPublisher drops every event
type NoopPublisher struct{}

// Publish does nothing
func (NoopPublisher) Publish(context.Context, string, string, interface{}) error { return nil }

// Event is published after every successful store transition
type Event struct {
	TicketID   string        `json:"ticket_id"`
	TicketHash string        `json:"ticket_hash"`
	Underlying string        `json:"underlying,omitempty"`
	Strategy   string        `json:"strategy,omitempty"`
	Status     ticket.Status `json:"status"`
	Reason     *string       `json:"reason,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Service runs the ticket workflow on top of the store
type Service struct {
	repo   ticket.Repository
	events EventPublisher
	log    *logger.Logger
}

// NewService creates a ticket workflow service. events may be nil.
func NewService(repo ticket.Repository, events EventPublisher, log *logger.Logger) *Service {
	if events == nil {
		events = NoopPublisher{}
	}
	return &Service{
		repo:   repo,
		events: events,
		log:    log.Component("ticket_service"),
	}
}

// Propose stores t as pending
func (s *Service) Propose(ctx context.Context, t *ticket.Ticket) (*ticket.Record, error) {
	if t == nil || t.ID == "" {
		return nil, errors.NewValidationError("ticket_id", "ticket must carry an id", nil)
	}

	rec, err := s.repo.Propose(ctx, t)
	metrics.RecordTicketTransition("propose", err)
	if err != nil {
		return nil, errors.Wrapf(err, "propose ticket %s", t.ID)
	}

	s.log.Infow("ticket proposed",
		"ticket_id", rec.ID,
		"hash", rec.Hash,
		"underlying", t.Underlying,
		"strategy", t.Strategy,
		"actionable", t.Actionable(),
	)
	s.log.Breadcrumb(ctx, "ticket proposed", map[string]interface{}{"ticket_id": rec.ID, "hash": rec.Hash})
	s.publish(ctx, kafka.TopicTicketProposed, Event{
		TicketID:   rec.ID,
		TicketHash: rec.Hash,
		Underlying: rec.Symbol,
		Strategy:   rec.Strategy,
		Status:     rec.Status,
		Timestamp:  rec.CreatedAt,
	})
	return rec, nil
}

// Approve moves a pending ticket to approved
func (s *Service) Approve(ctx context.Context, id string) (*ticket.Decision, error) {
	d, err := s.repo.Approve(ctx, id)
	metrics.RecordTicketTransition("approve", err)
	if err != nil {
		s.logTransitionError(ctx, "approve", id, err)
		return nil, err
	}

	s.log.Infow("ticket approved", "ticket_id", id, "hash", d.TicketHash)
	s.log.Breadcrumb(ctx, "ticket approved", map[string]interface{}{"ticket_id": id, "hash": d.TicketHash})
	s.publish(ctx, kafka.TopicTicketApproved, Event{
		TicketID:   d.TicketID,
		TicketHash: d.TicketHash,
		Status:     ticket.StatusApproved,
		Timestamp:  d.Timestamp,
	})
	return d, nil
}

// Reject moves a pending ticket to rejected with an optional reason
func (s *Service) Reject(ctx context.Context, id string, reason *string) (*ticket.Decision, error) {
	d, err := s.repo.Reject(ctx, id, reason)
	metrics.RecordTicketTransition("reject", err)
	if err != nil {
		s.logTransitionError(ctx, "reject", id, err)
		return nil, err
	}

	s.log.Infow("ticket rejected", "ticket_id", id, "hash", d.TicketHash, "reason", d.Reason)
	s.log.Breadcrumb(ctx, "ticket rejected", map[string]interface{}{"ticket_id": id, "hash": d.TicketHash})
	s.publish(ctx, kafka.TopicTicketRejected, Event{
		TicketID:   d.TicketID,
		TicketHash: d.TicketHash,
		Status:     ticket.StatusRejected,
		Reason:     d.Reason,
		Timestamp:  d.Timestamp,
	})
	return d, nil
}

// Get loads one stored ticket
func (s *Service) Get(ctx context.Context, id string) (*ticket.Record, error) {
	return s.repo.Get(ctx, id)
}

// ListPending returns pending tickets, newest first
func (s *Service) ListPending(ctx context.Context) ([]*ticket.Record, error) {
	return s.repo.ListPending(ctx)
}

// AuditLog returns every approval and rejection in time order
func (s *Service) AuditLog(ctx context.Context) ([]*ticket.Decision, error) {
	return s.repo.AuditLog(ctx)
}

// logTransitionError keeps refused transitions out of the error tracker; store failures are reported
func (s *Service) logTransitionError(ctx context.Context, action, id string, err error) {
	switch {
	case errors.Is(err, errors.ErrNotFound), errors.Is(err, errors.ErrConflict):
		s.log.Warnw("ticket transition refused", "action", action, "ticket_id", id, "error", err)
	default:
		s.log.ErrorWithContext(ctx, errors.Wrapf(err, "%s ticket %s", action, id), map[string]string{
			"component": "ticket_service",
			"action":    action,
		})
	}
}

// publish is best effort: the store transition has already committed
func (s *Service) publish(ctx context.Context, topic string, ev Event) {
	if err := s.events.Publish(ctx, topic, ev.TicketID, ev); err != nil {
		s.log.Warnw("ticket event not delivered", "topic", topic, "ticket_id", ev.TicketID, "error", err)
	}
}
