package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"tradegate/internal/domain/ticket"
	"tradegate/internal/metrics"
	"tradegate/pkg/errors"
)

// Compile-time checks
var (
	_ ticket.Repository = (*TicketRepository)(nil)
	_ ticket.Ledger     = (*TicketRepository)(nil)
)

const ticketColumns = `ticket_id, ticket_hash, symbol, strategy, payload, status, created_at`

// TicketRepository implements ticket.Repository and ticket.Ledger on PostgreSQL or SQLite
type TicketRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db, now: time.Now}
}

// WithClock overrides the timestamp source
func (r *TicketRepository) WithClock(now func() time.Time) *TicketRepository {
	r.now = now
	return r
}

func (r *TicketRepository) isPostgres() bool {
	return r.db.DriverName() == "postgres"
}

// Migrate creates the five store tables if they do not exist
func (r *TicketRepository) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if r.isPostgres() {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate ticket store")
		}
	}
	return nil
}

// Propose stores t as pending under its content hash
func (r *TicketRepository) Propose(ctx context.Context, t *ticket.Ticket) (*ticket.Record, error) {
	hash, err := ticket.ContentHash(t)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash ticket")
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode ticket")
	}

	rec := &ticket.Record{
		ID:        t.ID,
		Hash:      hash,
		Symbol:    t.Underlying,
		Strategy:  t.Strategy,
		Payload:   string(payload),
		Status:    ticket.StatusPending,
		CreatedAt: r.timestamp(),
	}

	err = r.inTx(ctx, "propose", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO tickets (ticket_id, ticket_hash, symbol, strategy, payload, status, max_loss, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (ticket_id) DO NOTHING`),
			rec.ID, rec.Hash, rec.Symbol, rec.Strategy, rec.Payload, rec.Status, t.MaxLoss, rec.CreatedAt,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.Wrapf(errors.ErrAlreadyExists, "ticket %s", rec.ID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errors.ErrAlreadyExists) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to insert ticket")
	}
	return rec, nil
}

// Approve moves a pending ticket to approved and writes the audit row
func (r *TicketRepository) Approve(ctx context.Context, id string) (*ticket.Decision, error) {
	return r.decide(ctx, id, ticket.StatusApproved, nil)
}

// Reject moves a pending ticket to rejected and writes the audit row
func (r *TicketRepository) Reject(ctx context.Context, id string, reason *string) (*ticket.Decision, error) {
	return r.decide(ctx, id, ticket.StatusRejected, reason)
}

// decide runs lookup, status check, status update and audit insert as one transaction.
// The update is conditional on status = 'pending' so a concurrent decision loses cleanly.
func (r *TicketRepository) decide(ctx context.Context, id string, next ticket.Status, reason *string) (*ticket.Decision, error) {
	var d *ticket.Decision

	err := r.inTx(ctx, string(next), func(tx *sqlx.Tx) error {
		lookup := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_id = ?`
		if r.isPostgres() {
			lookup += ` FOR UPDATE`
		}

		var rec ticket.Record
		if err := tx.GetContext(ctx, &rec, tx.Rebind(lookup), id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errors.NewNotFound("ticket", id)
			}
			return errors.Wrap(err, "failed to load ticket")
		}
		if !rec.Status.CanTransitionTo(next) {
			return errors.NewConflict("ticket", id, rec.Status.String())
		}

		res, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE tickets SET status = ? WHERE ticket_id = ? AND status = ?`),
			next, id, ticket.StatusPending,
		)
		if err != nil {
			return errors.Wrap(err, "failed to update ticket status")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			current, lerr := currentStatus(ctx, tx, id)
			if lerr != nil {
				return lerr
			}
			return errors.NewConflict("ticket", id, current)
		}

		now := r.timestamp()
		if next == ticket.StatusApproved {
			_, err = tx.ExecContext(ctx,
				tx.Rebind(`INSERT INTO approvals (ticket_id, ticket_hash, approved_at) VALUES (?, ?, ?)`),
				id, rec.Hash, now,
			)
		} else {
			_, err = tx.ExecContext(ctx,
				tx.Rebind(`INSERT INTO rejections (ticket_id, ticket_hash, reason, rejected_at) VALUES (?, ?, ?, ?)`),
				id, rec.Hash, reason, now,
			)
		}
		if err != nil {
			return errors.Wrap(err, "failed to write audit row")
		}

		d = &ticket.Decision{
			TicketID:   id,
			TicketHash: rec.Hash,
			Action:     ticket.Action(next),
			Reason:     reason,
			Timestamp:  now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Get loads one ticket row
func (r *TicketRepository) Get(ctx context.Context, id string) (*ticket.Record, error) {
	var rec ticket.Record
	err := r.db.GetContext(ctx, &rec, r.db.Rebind(`SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("ticket", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get ticket")
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

// ListPending returns pending tickets, newest first
func (r *TicketRepository) ListPending(ctx context.Context) ([]*ticket.Record, error) {
	var recs []*ticket.Record
	err := r.db.SelectContext(ctx, &recs, r.db.Rebind(`
		SELECT `+ticketColumns+` FROM tickets
		WHERE status = ?
		ORDER BY created_at DESC, ticket_id`), ticket.StatusPending)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pending tickets")
	}
	for _, rec := range recs {
		rec.CreatedAt = rec.CreatedAt.UTC()
	}
	if recs == nil {
		recs = []*ticket.Record{}
	}
	return recs, nil
}

// AuditLog returns every approval and rejection in chronological order
func (r *TicketRepository) AuditLog(ctx context.Context) ([]*ticket.Decision, error) {
	var approvals, rejections []*ticket.Decision

	err := r.db.SelectContext(ctx, &approvals, `
		SELECT ticket_id, ticket_hash, approved_at AS "timestamp", 'approved' AS action, NULL AS reason
		FROM approvals`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read approvals")
	}
	err = r.db.SelectContext(ctx, &rejections, `
		SELECT ticket_id, ticket_hash, rejected_at AS "timestamp", 'rejected' AS action, reason
		FROM rejections`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read rejections")
	}

	out := make([]*ticket.Decision, 0, len(approvals)+len(rejections))
	out = append(out, approvals...)
	out = append(out, rejections...)
	for _, d := range out {
		d.Timestamp = d.Timestamp.UTC()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// RecordFill appends a fill for a stored ticket
func (r *TicketRepository) RecordFill(ctx context.Context, f *ticket.Fill) error {
	if f.FilledAt.IsZero() {
		f.FilledAt = r.timestamp()
	}
	_, err := r.db.ExecContext(ctx,
		r.db.Rebind(`INSERT INTO fills (ticket_id, fill_price, fill_qty, filled_at) VALUES (?, ?, ?, ?)`),
		f.TicketID, f.Price, f.Qty, f.FilledAt.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to record fill")
	}
	return nil
}

// RecordDailyPnL appends an end-of-day mark
func (r *TicketRepository) RecordDailyPnL(ctx context.Context, p *ticket.DailyPnL) error {
	if _, err := time.Parse("2006-01-02", p.Date); err != nil {
		return errors.NewValidationError("date", "must be YYYY-MM-DD", p.Date)
	}
	if p.RecordedAt.IsZero() {
		p.RecordedAt = r.timestamp()
	}
	_, err := r.db.ExecContext(ctx,
		r.db.Rebind(`INSERT INTO daily_pnl (date, realized, unrealized, total, recorded_at) VALUES (?, ?, ?, ?, ?)`),
		p.Date, p.Realized, p.Unrealized, p.Total, p.RecordedAt.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to record daily pnl")
	}
	return nil
}

// RealizedSince sums realized P&L dated on or after since
func (r *TicketRepository) RealizedSince(ctx context.Context, since string) (float64, error) {
	var total sql.NullFloat64
	err := r.db.GetContext(ctx, &total,
		r.db.Rebind(`SELECT SUM(realized) FROM daily_pnl WHERE date >= ?`), since)
	if err != nil {
		return 0, errors.Wrap(err, "failed to sum realized pnl")
	}
	return total.Float64, nil
}

// ApprovedMaxLossSince sums the max loss of tickets approved at or after since
func (r *TicketRepository) ApprovedMaxLossSince(ctx context.Context, since time.Time) (float64, error) {
	var total sql.NullFloat64
	err := r.db.GetContext(ctx, &total, r.db.Rebind(`
		SELECT SUM(t.max_loss) FROM tickets t
		JOIN approvals a ON a.ticket_id = t.ticket_id
		WHERE a.approved_at >= ?`), since.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "failed to sum approved max loss")
	}
	return total.Float64, nil
}

func (r *TicketRepository) inTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordDBQuery(r.db.DriverName(), op, time.Since(start), err)
	}()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// timestamp is UTC with microsecond precision so both drivers round-trip it exactly
func (r *TicketRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

func currentStatus(ctx context.Context, q DBTX, id string) (string, error) {
	var status string
	if err := q.GetContext(ctx, &status, q.Rebind(`SELECT status FROM tickets WHERE ticket_id = ?`), id); err != nil {
		return "", errors.Wrap(err, "failed to reload ticket status")
	}
	return status, nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS tickets (
		ticket_id   TEXT PRIMARY KEY,
		ticket_hash TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		strategy    TEXT NOT NULL DEFAULT '',
		payload     TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'pending',
		max_loss    DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_status_created ON tickets (status, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS approvals (
		id          BIGSERIAL PRIMARY KEY,
		ticket_id   TEXT NOT NULL,
		ticket_hash TEXT NOT NULL,
		approved_at TIMESTAMPTZ NOT NULL,
		UNIQUE (ticket_id, ticket_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS rejections (
		id          BIGSERIAL PRIMARY KEY,
		ticket_id   TEXT NOT NULL,
		ticket_hash TEXT NOT NULL,
		reason      TEXT,
		rejected_at TIMESTAMPTZ NOT NULL,
		UNIQUE (ticket_id, ticket_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS fills (
		id          BIGSERIAL PRIMARY KEY,
		ticket_id   TEXT NOT NULL,
		fill_price  DOUBLE PRECISION,
		fill_qty    INTEGER,
		filled_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS daily_pnl (
		id          BIGSERIAL PRIMARY KEY,
		date        TEXT NOT NULL,
		realized    DOUBLE PRECISION DEFAULT 0,
		unrealized  DOUBLE PRECISION DEFAULT 0,
		total       DOUBLE PRECISION DEFAULT 0,
		recorded_at TIMESTAMPTZ NOT NULL
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS tickets (
		ticket_id   TEXT PRIMARY KEY,
		ticket_hash TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		strategy    TEXT NOT NULL DEFAULT '',
		payload     TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'pending',
		max_loss    REAL NOT NULL DEFAULT 0,
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_status_created ON tickets (status, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS approvals (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_id   TEXT NOT NULL,
		ticket_hash TEXT NOT NULL,
		approved_at TIMESTAMP NOT NULL,
		UNIQUE (ticket_id, ticket_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS rejections (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_id   TEXT NOT NULL,
		ticket_hash TEXT NOT NULL,
		reason      TEXT,
		rejected_at TIMESTAMP NOT NULL,
		UNIQUE (ticket_id, ticket_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS fills (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_id   TEXT NOT NULL,
		fill_price  REAL,
		fill_qty    INTEGER,
		filled_at   TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS daily_pnl (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		date        TEXT NOT NULL,
		realized    REAL DEFAULT 0,
		unrealized  REAL DEFAULT 0,
		total       REAL DEFAULT 0,
		recorded_at TIMESTAMP NOT NULL
	)`,
}
