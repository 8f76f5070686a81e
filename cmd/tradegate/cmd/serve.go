package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tradegate/internal/bootstrap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the regime snapshot worker and the metrics endpoint until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := bootstrap.NewContainer()
			if err := c.Init(); err != nil {
				c.Close()
				return err
			}

			if err := c.Start(); err != nil {
				c.Shutdown()
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigChan:
				c.Log.Infow("Received shutdown signal", "signal", sig.String())
			case <-c.Context.Done():
				c.Log.Warn("Context cancelled, shutting down")
			}

			c.Shutdown()
			return nil
		},
	}
}
