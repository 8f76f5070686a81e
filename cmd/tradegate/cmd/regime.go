package cmd

import (
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tradegate/internal/bootstrap"
	"tradegate/internal/domain/regime"
	"tradegate/pkg/errors"
)

func newRegimeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regime",
		Short: "Classify the market regime and apply the hard trade gate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *bootstrap.Container) error {
				ctx := cmd.Context()

				snap, err := c.Services.Regime.Classify(ctx)
				if err != nil {
					return err
				}
				gate, err := c.Services.Regime.ShouldTrade(ctx, snap)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(out, struct {
						Snapshot *regime.Snapshot `json:"snapshot"`
						Gate     regime.TradeGate `json:"gate"`
					}{snap, gate})
				}

				d := snap.Details
				printf(out, "regime at %s\n", snap.Timestamp.Format("2006-01-02 15:04 MST"))
				printf(out, "  volatility    %-10s VIX %.2f (pct %.1f, %+.2f%% d/d)\n",
					snap.VolRegime, d.Volatility.VIXCurrent, d.Volatility.VIXPercentile, d.Volatility.VIXChangePct)
				printf(out, "  correlation   %-10s avg %.2f\n", snap.CorrelationRegime, d.Correlation.AvgCorrelation)
				printf(out, "  gamma         %-10s P/C OI %.2f\n", d.Gamma.Direction, d.Gamma.PutCallRatio)
				printf(out, "  macro         %-10s %s\n", d.Macro.Proximity, reasons(d.Macro.Signals))
				printf(out, "  ATR 5d/20d    %.2f\n", d.RealizedVol.Ratio)
				printf(out, "  risk appetite %s\n", snap.RiskAppetite)
				printf(out, "gate: %s (%s)\n", verdict(gate.Allowed), reasons(gate.Reasons))
				return nil
			})
		},
	}

	cmd.AddCommand(newRegimeHistoryCmd())
	return cmd
}

func newRegimeHistoryCmd() *cobra.Command {
	var (
		since time.Duration
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored regime snapshots, newest first (requires ClickHouse)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *bootstrap.Container) error {
				if c.Repos.Regime == nil {
					return errors.Wrap(errors.ErrUnavailable, "regime history needs ClickHouse (set CLICKHOUSE_ENABLED=true)")
				}

				snaps, err := c.Repos.Regime.History(cmd.Context(), time.Now().Add(-since), limit)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(out, snaps)
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				printf(tw, "TIME\tVOL\tCORRELATION\tAPPETITE\tVIX\tATR RATIO\n")
				for _, s := range snaps {
					printf(tw, "%s\t%s\t%s\t%s\t%.2f\t%.2f\n",
						s.Timestamp.Format(time.RFC3339), s.VolRegime, s.CorrelationRegime, s.RiskAppetite,
						s.Details.Volatility.VIXCurrent, s.Details.RealizedVol.Ratio)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "how far back to look")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum snapshots to print")
	return cmd
}
