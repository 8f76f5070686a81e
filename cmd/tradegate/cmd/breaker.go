package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"tradegate/internal/bootstrap"
	"tradegate/internal/services/breaker"
	ticketservice "tradegate/internal/services/ticket"
)

func newBreakerCmd() *cobra.Command {
	var (
		weeklyPnLPct  float64
		vixPercentile float64
		vixChangePct  float64
	)

	cmd := &cobra.Command{
		Use:   "breaker",
		Short: "Check every circuit-breaker kill switch against the current market and book",
		Long: `breaker classifies the current regime for the VIX readings and takes the weekly
P&L from the fill ledger. Any flag that is set overrides the live reading.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *bootstrap.Container) error {
				ctx := cmd.Context()
				now := time.Now().UTC()

				snap, err := c.Services.Regime.Classify(ctx)
				if err != nil {
					return err
				}
				elevated := snap.MacroElevated()

				in := breaker.Input{
					VIXPercentile:          snap.Details.Volatility.VIXPercentile,
					VIXDayChangePct:        snap.Details.Volatility.VIXChangePct,
					CalendarEvents:         c.Services.Calendar.Events(now),
					RegimeLabel:            &snap.VolRegime,
					MacroProximityElevated: &elevated,
				}

				if cmd.Flags().Changed("weekly-pnl-pct") {
					in.WeeklyPnLPct = weeklyPnLPct
				} else if equity := c.Config.Risk.Equity; equity > 0 {
					realized, err := c.Repos.Tickets.RealizedSince(ctx, ticketservice.WeekStart(now).Format("2006-01-02"))
					if err != nil {
						return err
					}
					in.WeeklyPnLPct = realized / equity * 100
				}
				if cmd.Flags().Changed("vix-percentile") {
					in.VIXPercentile = vixPercentile
				}
				if cmd.Flags().Changed("vix-change") {
					in.VIXDayChangePct = vixChangePct
				}

				res := c.Services.CircuitBreaker.CheckAll(in)
				out := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(out, res)
				}

				printf(out, "circuit breaker: %s\n", verdict(res.TradingAllowed))
				printf(out, "  weekly P&L     %.2f%%\n", in.WeeklyPnLPct)
				printf(out, "  VIX percentile %.1f\n", in.VIXPercentile)
				printf(out, "  VIX change     %.2f%%\n", in.VIXDayChangePct)
				printf(out, "  reasons        %s\n", reasons(res.Reasons))
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&weeklyPnLPct, "weekly-pnl-pct", 0, "weekly P&L as a percent of equity")
	cmd.Flags().Float64Var(&vixPercentile, "vix-percentile", 0, "VIX percentile rank over the last year")
	cmd.Flags().Float64Var(&vixChangePct, "vix-change", 0, "VIX day-over-day change in percent")
	return cmd
}
