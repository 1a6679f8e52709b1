package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-ranker/internal/trigger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume matching tasks from RabbitMQ and run the bulk matching pass",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close(context.Background())

		url, err := rt.rabbitURL()
		if err != nil {
			return err
		}
		if url == "" {
			return errors.New("rabbitmq.url is required for the worker (or RABBITMQ_URL)")
		}

		consumer, err := trigger.NewRabbitMQ(url, rt.cfg.RabbitMQ.Queue, rt.logger.Named("trigger"))
		if err != nil {
			return err
		}
		defer consumer.Close()

		if drain, _ := cmd.Flags().GetBool("drain-pending"); drain {
			n, err := rt.matcher.ProcessPending(ctx)
			if err != nil {
				rt.logger.Warn("some pending jobs failed", zap.Error(err))
			}
			rt.logger.Info("pending jobs processed", zap.Int("count", n))
		}

		rt.logger.Info("worker started", zap.String("version", buildVersion()), zap.Int("prefetch", rt.cfg.RabbitMQ.Prefetch))
		return consumer.Consume(ctx, rt.cfg.RabbitMQ.Prefetch, rt.matcher.Handle)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().Bool("drain-pending", true, "process every pending job before consuming the queue")
}
