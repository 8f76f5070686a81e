package cmd

import (
	"github.com/spf13/cobra"

	"tradegate/internal/domain/option"
	"tradegate/internal/services/pricing"
	"tradegate/pkg/errors"
)

type quoteFlags struct {
	spot, strike, days, sigma, rate, dividend float64
	kind                                      string
}

func (q *quoteFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&q.spot, "spot", 0, "underlying price")
	cmd.Flags().Float64Var(&q.strike, "strike", 0, "strike price")
	cmd.Flags().Float64Var(&q.days, "days", 0, "calendar days to expiry")
	cmd.Flags().Float64Var(&q.sigma, "sigma", 0.2, "annualized volatility as a decimal")
	cmd.Flags().Float64Var(&q.rate, "rate", 0.05, "risk-free rate as a decimal")
	cmd.Flags().Float64Var(&q.dividend, "dividend", 0, "continuous dividend yield as a decimal")
	cmd.Flags().StringVar(&q.kind, "kind", "call", "call or put")
}

func (q *quoteFlags) inputs() (option.Inputs, error) {
	kind := option.Kind(q.kind)
	if !kind.Valid() {
		return option.Inputs{}, errors.NewValidationError("kind", "must be call or put", q.kind)
	}
	if q.spot <= 0 || q.strike <= 0 {
		return option.Inputs{}, errors.NewValidationError("spot/strike", "must be positive", q.spot)
	}
	if q.days < 0 {
		return option.Inputs{}, errors.NewValidationError("days", "must not be negative", q.days)
	}
	return option.Inputs{
		Spot:          q.spot,
		Strike:        q.strike,
		T:             q.days / 365.0,
		Sigma:         q.sigma,
		Rate:          q.rate,
		DividendYield: q.dividend,
		Kind:          kind,
	}, nil
}

func newGreeksCmd() *cobra.Command {
	var q quoteFlags

	cmd := &cobra.Command{
		Use:   "greeks",
		Short: "Price an option and print its Greeks, probability ITM and breakeven",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := q.inputs()
			if err != nil {
				return err
			}
			if q.sigma <= 0 {
				return errors.NewValidationError("sigma", "must be positive", q.sigma)
			}

			m := pricing.NewEngine().OptionMetrics(in)
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, m)
			}

			printf(out, "%s %.2f @ spot %.2f, %.0f days, σ %.2f%%\n", in.Kind, in.Strike, in.Spot, q.days, in.Sigma*100)
			printf(out, "  price       %10.4f\n", m.Price)
			printf(out, "  delta       %10.4f\n", m.Delta)
			printf(out, "  gamma       %10.4f\n", m.Gamma)
			printf(out, "  vega/1%%     %10.4f\n", m.VegaPer1Pct)
			printf(out, "  theta/day   %10.4f\n", m.Theta)
			printf(out, "  rho/1%%      %10.4f\n", m.RhoPer1Pct)
			printf(out, "  P(ITM)      %10.4f\n", m.ProbabilityITM)
			printf(out, "  breakeven   %10.4f\n", m.Breakeven)
			printf(out, "  intrinsic   %10.4f\n", m.IntrinsicValue)
			printf(out, "  time value  %10.4f\n", m.TimeValue)
			return nil
		},
	}
	q.register(cmd)
	return cmd
}

func newIVCmd() *cobra.Command {
	var (
		q     quoteFlags
		price float64
	)

	cmd := &cobra.Command{
		Use:   "iv",
		Short: "Solve the implied volatility that reproduces a market price",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := q.inputs()
			if err != nil {
				return err
			}
			if price <= 0 {
				return errors.NewValidationError("price", "must be positive", price)
			}

			iv := pricing.NewEngine().ImpliedVolatility(price, in, pricing.DefaultIVOptions())
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, map[string]float64{"implied_volatility": iv})
			}
			printf(out, "implied volatility: %.4f (%.2f%%)\n", iv, iv*100)
			return nil
		},
	}
	q.register(cmd)
	cmd.Flags().Float64Var(&price, "price", 0, "observed option price")
	return cmd
}
