package cmd

import (
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tradegate/internal/adapters/errors/sentry"
	"tradegate/internal/bootstrap"
	"tradegate/internal/domain/ticket"
	"tradegate/pkg/errors"
)

func newTicketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Propose, review and decide trade tickets",
	}

	cmd.AddCommand(
		newTicketSubmitCmd(),
		newTicketShowCmd(),
		newTicketPendingCmd(),
		newTicketApproveCmd(),
		newTicketRejectCmd(),
		newTicketAuditCmd(),
		newTicketFillCmd(),
		newTicketPnLCmd(),
		newTicketWatchCmd(),
	)
	return cmd
}

func newTicketSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <request.json>",
		Short: "Gate, risk-check and propose a ticket from a JSON request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readSubmitRequest(args[0])
			if err != nil {
				return err
			}
			in, err := req.buildInput()
			if err != nil {
				return err
			}

			return withContainer(func(c *bootstrap.Container) error {
				t, rec, err := c.Services.Pipeline.Submit(cmd.Context(), in, req.Positions)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(out, t)
				}
				printTicket(out, t)
				printf(out, "stored as %s (hash %s)\n", rec.Status, rec.Hash[:12])
				return nil
			})
		},
	}
}

func newTicketShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <ticket-id>",
		Short: "Print a stored ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *bootstrap.Container) error {
				rec, err := c.Services.Tickets.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				t, err := decodePayload(rec)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(out, t)
				}
				printTicket(out, t)
				printf(out, "status %s, hash %s, proposed %s\n", rec.Status, rec.Hash, humanize.Time(rec.CreatedAt))
				return nil
			})
		},
	}
}

func newTicketPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List tickets awaiting a decision, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *bootstrap.Container) error {
				records, err := c.Services.Tickets.ListPending(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(out, records)
				}
				if len(records) == 0 {
					printf(out, "no pending tickets\n")
					return nil
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				printf(tw, "ID\tSYMBOL\tSTRATEGY\tMAX LOSS\tGATES\tPROPOSED\n")
				for _, rec := range records {
					maxLoss, gates := "?", "?"
					if t, err := decodePayload(rec); err == nil {
						maxLoss = money(t.MaxLoss)
						gates = verdict(t.Actionable())
					}
					printf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", rec.ID, rec.Symbol, rec.Strategy, maxLoss, gates, humanize.Time(rec.CreatedAt))
				}
				return tw.Flush()
			})
		},
	}
}

func newTicketApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <ticket-id>",
		Short: "Approve a pending ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *bootstrap.Container) error {
				ctx := sentry.WithTicketID(cmd.Context(), args[0])
				d, err := c.Services.Tickets.Approve(ctx, args[0])
				if err != nil {
					return err
				}
				return printDecision(cmd.OutOrStdout(), d)
			})
		},
	}
}

func newTicketRejectCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <ticket-id>",
		Short: "Reject a pending ticket with an optional reason",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r *string
			if cmd.Flags().Changed("reason") {
				r = &reason
			}
			return withContainer(func(c *bootstrap.Container) error {
				ctx := sentry.WithTicketID(cmd.Context(), args[0])
				d, err := c.Services.Tickets.Reject(ctx, args[0], r)
				if err != nil {
					return err
				}
				return printDecision(cmd.OutOrStdout(), d)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the ticket was rejected")
	return cmd
}

func newTicketAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Print every approval and rejection in time order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *bootstrap.Container) error {
				entries, err := c.Services.Tickets.AuditLog(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(out, entries)
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				printf(tw, "TIME\tTICKET\tACTION\tHASH\tREASON\n")
				for _, d := range entries {
					reason := ""
					if d.Reason != nil {
						reason = *d.Reason
					}
					printf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Timestamp.Format(time.RFC3339), d.TicketID, d.Action, d.TicketHash[:12], reason)
				}
				return tw.Flush()
			})
		},
	}
}

func newTicketFillCmd() *cobra.Command {
	var (
		price float64
		qty   int
	)

	cmd := &cobra.Command{
		Use:   "fill <ticket-id>",
		Short: "Record a broker fill against an approved ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if qty <= 0 {
				return errors.NewValidationError("qty", "must be positive", qty)
			}
			return withContainer(func(c *bootstrap.Container) error {
				ctx := sentry.WithTicketID(cmd.Context(), args[0])
				rec, err := c.Services.Tickets.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if rec.Status != ticket.StatusApproved {
					return errors.NewConflict("ticket", rec.ID, string(rec.Status))
				}

				if err := c.Repos.Tickets.RecordFill(ctx, &ticket.Fill{TicketID: rec.ID, Price: price, Qty: qty}); err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "recorded fill %d @ %.2f for %s\n", qty, price, rec.ID)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&price, "price", 0, "fill price per contract")
	cmd.Flags().IntVar(&qty, "qty", 1, "contracts filled")
	return cmd
}

func newTicketPnLCmd() *cobra.Command {
	var (
		date                 string
		realized, unrealized float64
	)

	cmd := &cobra.Command{
		Use:   "pnl",
		Short: "Record the day's P&L mark and print the week to date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = time.Now().UTC().Format("2006-01-02")
			}
			return withContainer(func(c *bootstrap.Container) error {
				ctx := cmd.Context()
				mark := &ticket.DailyPnL{
					Date:       date,
					Realized:   realized,
					Unrealized: unrealized,
					Total:      realized + unrealized,
				}
				if err := c.Repos.Tickets.RecordDailyPnL(ctx, mark); err != nil {
					return err
				}

				day, _ := time.Parse("2006-01-02", date)
				monday := weekStartOf(day)
				week, err := c.Repos.Tickets.RealizedSince(ctx, monday)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				printf(out, "%s realized %s, unrealized %s\n", date, money(realized), money(unrealized))
				if equity := c.Config.Risk.Equity; equity > 0 {
					printf(out, "week since %s: %s (%.2f%% of %s equity)\n", monday, money(week), week/equity*100, money(equity))
				} else {
					printf(out, "week since %s: %s\n", monday, money(week))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "mark date as YYYY-MM-DD (default today, UTC)")
	cmd.Flags().Float64Var(&realized, "realized", 0, "realized P&L in dollars")
	cmd.Flags().Float64Var(&unrealized, "unrealized", 0, "unrealized P&L in dollars")
	return cmd
}

func printTicket(w io.Writer, t *ticket.Ticket) {
	printf(w, "%s %s %s (%d legs)\n", t.ID, t.Underlying, t.Strategy, len(t.Legs))
	for _, l := range t.Legs {
		printf(w, "  %-4s %-4s %8.2f x%d\n", l.Side, l.Type, l.Strike, l.Qty)
	}
	printf(w, "  credit mid %.2f limit %.2f, width %.2f, max loss %s\n", t.MidCredit, t.LimitCredit, t.Width, money(t.MaxLoss))
	printf(w, "  regime gate %s: %s\n", verdict(t.RegimeGate.Passed), reasons(t.RegimeGate.Reasons))
	printf(w, "  risk gate   %s: %s\n", verdict(t.RiskGate.Passed), reasons(t.RiskGate.Reasons))
	pa := t.RiskGate.PortfolioAfter
	printf(w, "  book after  delta %.3f vega %.3f gamma %.4f, week max loss %s\n", pa.Delta, pa.Vega, pa.Gamma, money(pa.MaxLossWeek))
}

func printDecision(w io.Writer, d *ticket.Decision) error {
	if jsonOutput {
		return printJSON(w, d)
	}
	printf(w, "%s %s at %s (hash %s)\n", d.TicketID, d.Action, d.Timestamp.Format(time.RFC3339), d.TicketHash)
	if d.Reason != nil {
		printf(w, "reason: %s\n", *d.Reason)
	}
	return nil
}
