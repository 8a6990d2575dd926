package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	krerrors "github.com/systmms/keyrotator/internal/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Load())

	assert.Equal(t, DefaultGraceDays, cfg.Settings.GraceDays)
	assert.Equal(t, DefaultMaxKeyAgeDays, cfg.Settings.MaxKeyAgeDays)
	assert.Equal(t, DefaultRetryAfter, cfg.Settings.RetryAfter)
	assert.Equal(t, DefaultConcurrency, cfg.Settings.Concurrency)
	assert.Equal(t, "ses", cfg.Settings.MailClient)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvTable, "deletion-schedule")
	t.Setenv(EnvGraceDays, "7")
	t.Setenv(EnvMaxKeyAge, "30")
	t.Setenv(EnvRetryAfter, "15")
	t.Setenv(EnvMailClient, "smtp")
	t.Setenv(EnvMailFrom, "security@example.com")
	t.Setenv(EnvSMTPHost, "mail.example.com")

	cfg := &Config{}
	require.NoError(t, cfg.Load())

	assert.Equal(t, "deletion-schedule", cfg.Settings.TableName)
	assert.Equal(t, 7, cfg.Settings.GraceDays)
	assert.Equal(t, 30, cfg.Settings.MaxKeyAgeDays)
	assert.Equal(t, 15*time.Minute, cfg.Settings.RetryAfter)
	assert.Equal(t, "smtp", cfg.Settings.MailClient)
	assert.Equal(t, "security@example.com", cfg.Settings.MailFrom)
	assert.NoError(t, cfg.Settings.Validate())
}

func TestLoad_InvalidEnvInteger(t *testing.T) {
	t.Setenv(EnvGraceDays, "soon")

	cfg := &Config{}
	err := cfg.Load()
	require.Error(t, err)

	var cfgErr krerrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, EnvGraceDays, cfgErr.Field)
}

func TestLoad_NegativeRetryRejected(t *testing.T) {
	t.Setenv(EnvRetryAfter, "-5")

	cfg := &Config{}
	err := cfg.Load()
	require.Error(t, err)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyrotator.yaml")
	overlay := `
table: deletion-schedule
region: eu-west-1
grace_days: 14
retry_after_mins: 3
mail_client: smtp
mail_from: security@example.com
smtp:
  host: mail.example.com
  port: 587
`
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0o600))

	cfg := &Config{Path: path}
	require.NoError(t, cfg.Load())

	assert.Equal(t, "deletion-schedule", cfg.Settings.TableName)
	assert.Equal(t, "eu-west-1", cfg.Settings.Region)
	assert.Equal(t, 14, cfg.Settings.GraceDays)
	assert.Equal(t, 3*time.Minute, cfg.Settings.RetryAfter)
	assert.Equal(t, 587, cfg.Settings.SMTP.Port)
}

func TestLoad_EnvWinsOverOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyrotator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grace_days: 14\n"), 0o600))

	t.Setenv(EnvGraceDays, "21")

	cfg := &Config{Path: path}
	require.NoError(t, cfg.Load())
	assert.Equal(t, 21, cfg.Settings.GraceDays)
}

func TestLoad_OverlaySchemaRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyrotator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grace_dayz: 14\n"), 0o600))

	cfg := &Config{Path: path}
	err := cfg.Load()
	require.Error(t, err)

	var cfgErr krerrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoad_OverlaySchemaRejectsWrongType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyrotator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grace_days: tomorrow\n"), 0o600))

	cfg := &Config{Path: path}
	require.Error(t, cfg.Load())
}

func TestLoad_MissingOverlayIsFine(t *testing.T) {
	cfg := &Config{Path: filepath.Join(t.TempDir(), "nope.yaml")}
	require.NoError(t, cfg.Load())
}

func TestSettings_Validate(t *testing.T) {
	t.Parallel()

	base := Settings{
		TableName:  "deletion-schedule",
		MailClient: "ses",
		MailFrom:   "security@example.com",
	}

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"valid ses", func(s *Settings) {}, ""},
		{"missing table", func(s *Settings) { s.TableName = "" }, "table"},
		{"bad mail client", func(s *Settings) { s.MailClient = "mailgun" }, "unsupported mail client"},
		{"missing from", func(s *Settings) { s.MailFrom = "" }, "sender address"},
		{"smtp without host", func(s *Settings) { s.MailClient = "smtp" }, "SMTP host"},
		{
			"smtp with host",
			func(s *Settings) { s.MailClient = "smtp"; s.SMTP.Host = "mail.example.com" },
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := base
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
