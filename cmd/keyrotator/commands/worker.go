package commands

import (
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/systmms/keyrotator/internal/config"
	"github.com/systmms/keyrotator/internal/rotation"
	"github.com/systmms/keyrotator/internal/schedule"
)

// NewWorkerCommand creates the worker command.
func NewWorkerCommand(cfg *config.Config) *cobra.Command {
	var (
		pollInterval time.Duration
		metricsAddr  string
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume schedule expiries and delete superseded keys",
		Long: `Poll the schedule table's change feed and react to expiry removals:
delete the superseded access key and tell its owner, or push the schedule
forward by the retry delay when deletion fails.

Deletion is at-least-once. The worker never acts on inserts or
modifications, only on records the store evicted at their execute-at time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadSettings(cfg); err != nil {
				return err
			}

			ctx := cmd.Context()
			awsCfg, err := loadAWSConfig(ctx, cfg.Settings)
			if err != nil {
				return err
			}

			collab, err := buildCollaborators(ctx, cfg, awsCfg)
			if err != nil {
				return err
			}

			streamARN, err := collab.store.StreamARN(ctx)
			if err != nil {
				return err
			}
			if streamARN == "" {
				return fmt.Errorf("table '%s' has no stream; enable streams with old images", cfg.Settings.TableName)
			}

			rotation.InitMetrics()
			if metricsAddr != "" {
				go serveMetrics(cfg, metricsAddr)
			}

			worker := rotation.NewWorker(
				collab.dir,
				collab.scheduler,
				collab.notifiers,
				cfg.Logger,
				cfg.Settings.RetryAfter,
			)

			poller := schedule.NewPoller(
				dynamodbstreams.NewFromConfig(awsCfg),
				streamARN,
				worker.HandleEvent,
				cfg.Logger,
				pollInterval,
			)

			cfg.Logger.Info("Worker started, polling stream %s", streamARN)
			return poller.Run(ctx)
		},
	}

	cmd.Flags().DurationVar(&pollInterval, "poll-interval", schedule.DefaultPollInterval, "Change-feed poll interval")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for Prometheus metrics (disabled when empty)")

	return cmd
}

func serveMetrics(cfg *config.Config, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	cfg.Logger.Info("Serving metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		cfg.Logger.Error("Metrics listener stopped: %v", err)
	}
}
