package ticket

import "context"

// Repository is the ticket store. Approve and Reject run their status check and
// write as one atomic unit; a ticket that already left pending yields a conflict
// error naming its current status.
type Repository interface {
	Propose(ctx context.Context, t *Ticket) (*Record, error)
	Approve(ctx context.Context, id string) (*Decision, error)
	Reject(ctx context.Context, id string, reason *string) (*Decision, error)
	Get(ctx context.Context, id string) (*Record, error)
	ListPending(ctx context.Context) ([]*Record, error)
	AuditLog(ctx context.Context) ([]*Decision, error)
}
