package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bluecarbon-mrv/portal/config"
	"github.com/bluecarbon-mrv/portal/internal/mq"
	"github.com/bluecarbon-mrv/portal/internal/notify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes portal events and sends notification mail",
	Long: `Consumes password reset, NGO registration and site submission events
from the configured message queue. Usage:

	bluecarbon worker
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()

		logger, err := newLogger(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		bus, err := mq.Open(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to open mq", zap.Error(err))
		}
		defer func() { _ = bus.Close() }()

		notifier := notify.New(notify.NewLogMailer(logger), logger)
		logger.Info("worker consuming", zap.String("group", notify.Group), zap.Strings("events", mq.Events))

		err = bus.Consume(ctx, notify.Group, mq.Events, notifier.Handle, notifier.Malformed)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("consume failed", zap.Error(err))
			return
		}
		logger.Info("worker stopped")
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
