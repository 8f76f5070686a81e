package metrics

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"tradegate/pkg/logger"
)

// TicketStoreCollector reports ticket counts straight from the store on every scrape
type TicketStoreCollector struct {
	log *logger.Logger
	db  *sqlx.DB

	ticketsByStatus *prometheus.Desc
	auditRows       *prometheus.Desc
}

// NewTicketStoreCollector creates a collector over the ticket database
func NewTicketStoreCollector(log *logger.Logger, db *sqlx.DB) *TicketStoreCollector {
	return &TicketStoreCollector{
		log: log,
		db:  db,

		ticketsByStatus: prometheus.NewDesc(
			"tradegate_tickets",
			"Number of stored tickets by status",
			[]string{"status"}, nil,
		),
		auditRows: prometheus.NewDesc(
			"tradegate_audit_rows",
			"Number of approval and rejection rows",
			[]string{"action"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *TicketStoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ticketsByStatus
	ch <- c.auditRows
}

// Collect implements prometheus.Collector
func (c *TicketStoreCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectStatuses(ctx, ch)
	c.collectAudit(ctx, ch)
}

func (c *TicketStoreCollector) collectStatuses(ctx context.Context, ch chan<- prometheus.Metric) {
	var rows []struct {
		Status string `db:"status"`
		Count  int64  `db:"count"`
	}
	if err := c.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM tickets GROUP BY status`); err != nil {
		c.log.Warnw("failed to collect ticket counts", "error", err)
		return
	}
	for _, r := range rows {
		ch <- prometheus.MustNewConstMetric(c.ticketsByStatus, prometheus.GaugeValue, float64(r.Count), r.Status)
	}
}

func (c *TicketStoreCollector) collectAudit(ctx context.Context, ch chan<- prometheus.Metric) {
	for action, table := range map[string]string{"approved": "approvals", "rejected": "rejections"} {
		var n int64
		if err := c.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+table); err != nil {
			c.log.Warnw("failed to collect audit counts", "table", table, "error", err)
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.auditRows, prometheus.GaugeValue, float64(n), action)
	}
}
