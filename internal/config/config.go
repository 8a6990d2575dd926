// Package config loads keyrotator settings.
//
// Settings come from environment variables first (the deployment surface),
// with an optional keyrotator.yaml overlay for local runs. The overlay is
// validated against an embedded JSON schema before it is applied.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	krerrors "github.com/systmms/keyrotator/internal/errors"
	"github.com/systmms/keyrotator/internal/logging"
)

// Defaults for the rotation lifecycle knobs.
const (
	DefaultGraceDays     = 10
	DefaultMaxKeyAgeDays = 80
	DefaultRetryAfter    = 5 * time.Minute
	DefaultConcurrency   = 10
)

// Environment variable names. The lifecycle knobs keep the names the
// deployed rotator has always used.
const (
	EnvTable       = "IAM_KEY_ROTATOR_TABLE"
	EnvGraceDays   = "DAYS_FOR_DELETION"
	EnvMaxKeyAge   = "ACCESS_KEY_AGE"
	EnvRetryAfter  = "RETRY_AFTER_MINS"
	EnvMailClient  = "MAIL_CLIENT"
	EnvMailFrom    = "MAIL_FROM"
	EnvRegion      = "AWS_REGION"
	EnvConcurrency = "ROTATOR_CONCURRENCY"
	EnvSMTPHost    = "SMTP_HOST"
	EnvSMTPPort    = "SMTP_PORT"
	EnvSMTPUser    = "SMTP_USERNAME"
	EnvSMTPPass    = "SMTP_PASSWORD"
)

// SMTPSettings configures the SMTP mail backend.
type SMTPSettings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Settings holds the resolved runtime configuration.
type Settings struct {
	// TableName is the schedule store table holding pending deletions.
	TableName string `yaml:"table"`

	// Region is the AWS region for all collaborators.
	Region string `yaml:"region"`

	// GraceDays is the grace period before a superseded key is destroyed.
	GraceDays int `yaml:"grace_days"`

	// MaxKeyAgeDays is the default rotation age threshold.
	MaxKeyAgeDays int `yaml:"max_key_age_days"`

	// RetryAfter is the delay added when a scheduled deletion fails.
	RetryAfter time.Duration `yaml:"-"`

	// RetryAfterMins mirrors RetryAfter for the YAML overlay.
	RetryAfterMins int `yaml:"retry_after_mins"`

	// MailClient selects the email backend: "ses" or "smtp".
	MailClient string `yaml:"mail_client"`

	// MailFrom is the sender identity for email notices.
	MailFrom string `yaml:"mail_from"`

	// Concurrency bounds the directory fan-out during a rotation pass.
	Concurrency int `yaml:"concurrency"`

	// SMTP configures the smtp mail client.
	SMTP SMTPSettings `yaml:"smtp"`

	// Endpoint overrides the AWS endpoint, for LocalStack runs.
	Endpoint string `yaml:"endpoint"`

	// AccessKeyID and SecretAccessKey are optional static credentials,
	// for LocalStack runs. Production deployments use the default chain.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Config is the runtime configuration handle threaded through commands.
type Config struct {
	Path           string
	Logger         *logging.Logger
	NonInteractive bool
	Settings       Settings
}

// Load resolves settings: defaults, then the YAML overlay if present,
// then environment variables.
func (c *Config) Load() error {
	s := Settings{
		GraceDays:     DefaultGraceDays,
		MaxKeyAgeDays: DefaultMaxKeyAgeDays,
		RetryAfter:    DefaultRetryAfter,
		MailClient:    "ses",
		Concurrency:   DefaultConcurrency,
	}

	if c.Path != "" {
		if err := loadOverlay(c.Path, &s); err != nil {
			return err
		}
	}

	if err := applyEnv(&s); err != nil {
		return err
	}

	c.Settings = s
	return nil
}

// loadOverlay reads and applies the keyrotator.yaml overlay. A missing
// file is not an error; the overlay is optional.
func loadOverlay(path string, s *Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return krerrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	if err := validateOverlay(data); err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return krerrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
		}
	}
	if s.RetryAfterMins > 0 {
		s.RetryAfter = time.Duration(s.RetryAfterMins) * time.Minute
	}
	return nil
}

func applyEnv(s *Settings) error {
	if v := os.Getenv(EnvTable); v != "" {
		s.TableName = v
	}
	if v := os.Getenv(EnvRegion); v != "" {
		s.Region = v
	}
	if v := os.Getenv(EnvMailClient); v != "" {
		s.MailClient = v
	}
	if v := os.Getenv(EnvMailFrom); v != "" {
		s.MailFrom = v
	}
	if v := os.Getenv(EnvSMTPHost); v != "" {
		s.SMTP.Host = v
	}
	if v := os.Getenv(EnvSMTPUser); v != "" {
		s.SMTP.Username = v
	}
	if v := os.Getenv(EnvSMTPPass); v != "" {
		s.SMTP.Password = v
	}

	intVars := []struct {
		env    string
		target *int
	}{
		{EnvGraceDays, &s.GraceDays},
		{EnvMaxKeyAge, &s.MaxKeyAgeDays},
		{EnvConcurrency, &s.Concurrency},
		{EnvSMTPPort, &s.SMTP.Port},
	}
	for _, iv := range intVars {
		v := os.Getenv(iv.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return krerrors.ConfigError{
				Field:      iv.env,
				Value:      v,
				Message:    "must be a positive integer",
				Suggestion: fmt.Sprintf("Set %s to a whole number of at least 1", iv.env),
			}
		}
		*iv.target = n
	}

	if v := os.Getenv(EnvRetryAfter); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return krerrors.ConfigError{
				Field:      EnvRetryAfter,
				Value:      v,
				Message:    "must be a positive integer number of minutes",
				Suggestion: "Set RETRY_AFTER_MINS to a value like 5",
			}
		}
		s.RetryAfter = time.Duration(n) * time.Minute
	}

	return nil
}

// Validate checks that the settings are usable for a rotate or worker run.
func (s Settings) Validate() error {
	if s.TableName == "" {
		return krerrors.ConfigError{
			Field:      "table",
			Message:    "schedule store table name is required",
			Suggestion: fmt.Sprintf("Set the %s environment variable or 'table' in keyrotator.yaml", EnvTable),
		}
	}

	switch strings.ToLower(s.MailClient) {
	case "ses", "smtp":
	default:
		return krerrors.ConfigError{
			Field:      "mail_client",
			Value:      s.MailClient,
			Message:    "unsupported mail client",
			Suggestion: "Supported mail clients: ses, smtp",
		}
	}

	if s.MailFrom == "" {
		return krerrors.ConfigError{
			Field:      "mail_from",
			Message:    "sender address is required",
			Suggestion: fmt.Sprintf("Set the %s environment variable, e.g. security@example.com", EnvMailFrom),
		}
	}

	if strings.EqualFold(s.MailClient, "smtp") && s.SMTP.Host == "" {
		return krerrors.ConfigError{
			Field:      "smtp.host",
			Message:    "SMTP host is required when mail_client is smtp",
			Suggestion: fmt.Sprintf("Set the %s environment variable", EnvSMTPHost),
		}
	}

	return nil
}

// yamlToJSON converts the overlay into JSON so the schema validator can
// consume it.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeYAML(doc))
}

// normalizeYAML rewrites map[interface{}]interface{} trees into
// map[string]interface{} so they survive json.Marshal.
func normalizeYAML(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(vv))
		for k, val := range vv {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(val)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(vv))
		for k, val := range vv {
			out[k] = normalizeYAML(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, val := range vv {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}
