package cmd

import (
	"github.com/spf13/cobra"

	"tradegate/internal/bootstrap"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:   "tradegate",
	Short: "Options trade gating: pricing, regime, circuit breaker, risk and ticket approval",
	Long: `tradegate prices options, classifies the market regime, evaluates portfolio risk
and runs proposed trades through a human approval workflow.

Every proposed ticket is stored with a content hash. Approvals and rejections
are recorded in an append-only audit log.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")

	rootCmd.AddCommand(
		newServeCmd(),
		newGreeksCmd(),
		newIVCmd(),
		newBreakerCmd(),
		newRegimeCmd(),
		newTicketCmd(),
	)
}

// withContainer initializes the command-scoped dependencies, runs fn and releases them
func withContainer(fn func(c *bootstrap.Container) error) error {
	c := bootstrap.NewContainer()
	defer c.Close()

	if err := c.InitForCommand(); err != nil {
		return err
	}
	return fn(c)
}
