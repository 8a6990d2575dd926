package commands

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/systmms/keyrotator/internal/config"
	"github.com/systmms/keyrotator/internal/directory"
	"github.com/systmms/keyrotator/internal/notify"
	"github.com/systmms/keyrotator/internal/rotation"
	"github.com/systmms/keyrotator/internal/schedule"
)

// loadSettings loads and validates configuration for a command run.
func loadSettings(cfg *config.Config) error {
	if err := cfg.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Settings.Validate(); err != nil {
		return err
	}
	return nil
}

// loadAWSConfig builds the shared AWS config. Static credentials and a
// custom endpoint come from the overlay for LocalStack runs.
func loadAWSConfig(ctx context.Context, settings config.Settings) (aws.Config, error) {
	var configOpts []func(*awsconfig.LoadOptions) error
	if settings.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(settings.Region))
	}

	// Use static credentials if provided (for LocalStack/testing)
	if settings.AccessKeyID != "" && settings.SecretAccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(settings.AccessKeyID, settings.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if settings.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(settings.Endpoint)
	}

	return awsCfg, nil
}

// collaborators bundles the wired service adapters a command runs against.
type collaborators struct {
	dir       *directory.IAMDirectory
	store     *schedule.DynamoDBStore
	notifiers *notify.Registry
	scheduler *rotation.Scheduler
}

// buildCollaborators wires the AWS adapters and the notifier registry.
func buildCollaborators(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (*collaborators, error) {
	notifiers, err := notify.BuildRegistry(ctx, awsCfg, cfg.Settings)
	if err != nil {
		return nil, err
	}

	store := schedule.NewDynamoDBStore(awsCfg, cfg.Settings.TableName)

	return &collaborators{
		dir:       directory.NewIAMDirectory(awsCfg),
		store:     store,
		notifiers: notifiers,
		scheduler: rotation.NewScheduler(store, cfg.Logger),
	}, nil
}
