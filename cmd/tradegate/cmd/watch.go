package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"

	"tradegate/internal/adapters/kafka"
	"tradegate/internal/bootstrap"
	ticketservice "tradegate/internal/services/ticket"
	"tradegate/pkg/errors"
)

func newTicketWatchCmd() *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow ticket lifecycle and gate events from Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := bootstrap.NewContainer()
			defer c.Close()
			if err := c.InitConfig(); err != nil {
				return err
			}
			if !c.Config.Kafka.Enabled {
				return errors.Wrap(errors.ErrUnavailable, "kafka is disabled (set KAFKA_ENABLED=true)")
			}

			consumer := kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers: c.Config.Kafka.Brokers,
				GroupID: group,
				Topics: []string{
					kafka.TopicTicketProposed,
					kafka.TopicTicketApproved,
					kafka.TopicTicketRejected,
					kafka.TopicGateBlocked,
				},
			}, c.Log)
			defer consumer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			err := consumer.Consume(ctx, func(ctx context.Context, msg kafkago.Message) error {
				if jsonOutput {
					printf(out, "%s\n", msg.Value)
					return nil
				}
				if msg.Topic == kafka.TopicGateBlocked {
					printf(out, "%s  %-18s %s\n", msg.Time.Format(time.RFC3339), msg.Topic, msg.Value)
					return nil
				}

				var ev ticketservice.Event
				if err := json.Unmarshal(msg.Value, &ev); err != nil {
					return errors.Wrap(err, "decode ticket event")
				}
				line := ev.TicketID + " " + string(ev.Status)
				if ev.Underlying != "" {
					line += " " + ev.Underlying + " " + ev.Strategy
				}
				if ev.Reason != nil {
					line += " (" + *ev.Reason + ")"
				}
				printf(out, "%s  %-18s %s\n", ev.Timestamp.Format(time.RFC3339), msg.Topic, line)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&group, "group", "tradegate-watch", "Kafka consumer group")
	return cmd
}
