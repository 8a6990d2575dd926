package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/keyrotator/internal/config"
	"github.com/systmms/keyrotator/internal/rotation"
)

// NewRotateCommand creates the rotate command.
func NewRotateCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Run one rotation pass over all principals",
		Long: `Enumerate every IAM user, create a replacement key pair for each key
older than the rotation threshold, notify the owner over their configured
channel, and mark the superseded key for deletion after the grace period.

Users without a notification_channel tag (and a matching endpoint tag) are
skipped: a key nobody can be told about must not be rotated.`,
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

			rotation.InitMetrics()

			coordinator := rotation.NewCoordinator(
				collab.dir,
				collab.dir,
				collab.notifiers,
				collab.scheduler,
				cfg.Logger,
				cfg.Settings.MaxKeyAgeDays,
				cfg.Settings.GraceDays,
				cfg.Settings.Concurrency,
			)

			if err := coordinator.RotateAll(ctx); err != nil {
				return fmt.Errorf("rotation pass failed: %w", err)
			}
			return nil
		},
	}

	return cmd
}
