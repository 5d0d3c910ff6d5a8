package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

const watchPrefetch = 50

// NewEventsCmd создаёт группу команд для событий RabbitMQ.
func NewEventsCmd(outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Observe session and runner events",
	}

	cmd.AddCommand(newEventsWatchCmd(outputFn))

	return cmd
}

func newEventsWatchCmd(outputFn func() *Output) *cobra.Command {
	var amqpURL string
	var pattern string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print events as they are published",
		Long: "Bind a temporary queue to the events exchange and print every event.\n" +
			"The pattern is an AMQP topic pattern over event types, e.g. 'runner.*'.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			logger := telemetry.Discard()

			conn, err := mq.Dial(amqpURL, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := mq.SetupTopology(conn); err != nil {
				return err
			}

			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				Declare: func(c *mq.Connection) (mq.Queue, error) {
					return mq.DeclareWatchQueue(c, pattern)
				},
				Handler: func(_ context.Context, msg *mq.Message) error {
					printEvent(out, msg)
					return nil
				},
				Prefetch: watchPrefetch,
			})

			err = consumer.Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&amqpURL, "url", defaultAMQPURL(), "RabbitMQ URL (env RABBITMQ_URL)")
	cmd.Flags().StringVar(&pattern, "pattern", mq.AllEvents, "Event type pattern")

	return cmd
}

// printEvent выводит событие одной строкой или JSON-объектом.
func printEvent(out *Output, msg *mq.Message) {
	if out.IsJSON() {
		out.JSON(msg)
		return
	}

	ev := msg.Payload
	result := string(ev.State)
	if ev.Result != nil {
		result = string(ev.Result.Status)
		if ev.Result.Message != "" {
			result += ": " + ev.Result.Message
		}
	}
	fmt.Fprintf(out.Writer(), "%s  %s  %s  %s  %s\n",
		msg.Timestamp.Format("15:04:05.000"),
		msg.Type,
		ev.Session,
		dash(ev.Runner),
		dash(result),
	)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func defaultAMQPURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return mq.DefaultURL()
}
