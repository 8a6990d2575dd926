// Package errors defines the error taxonomy for keyrotator.
//
// Directory failures fall into two classes: transient (throttling,
// networking) which are retried at the granularity of the enclosing
// operation, and permanent (not-found, limit-exceeded, access-denied)
// which are logged and never retried.
package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/smithy-go"
)

// UserError is an error shown to the operator with actionable context.
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError is a configuration problem with a pointer at the offending field.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// DirectoryError wraps a failure talking to the credential directory.
type DirectoryError struct {
	Op        string // directory operation, e.g. "list-keys", "create-key"
	Principal string
	Err       error
}

func (e DirectoryError) Error() string {
	msg := fmt.Sprintf("directory %s failed", e.Op)
	if e.Principal != "" {
		msg += fmt.Sprintf(" for principal '%s'", e.Principal)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e DirectoryError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether the wrapped error is a permanent directory
// failure: retrying would produce the same outcome.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var noSuchEntity *types.NoSuchEntityException
	if errors.As(err, &noSuchEntity) {
		return true
	}
	var limitExceeded *types.LimitExceededException
	if errors.As(err, &limitExceeded) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchEntity", "LimitExceeded", "AccessDenied", "AccessDeniedException", "EntityAlreadyExists":
			return true
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"nosuchentity", "access denied", "accessdenied", "not authorized", "limitexceeded"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsRetryable reports whether the error looks transient: throttling,
// rate limiting, or a flaky network path.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "Throttling", "ThrottlingException", "RequestLimitExceeded", "ServiceUnavailable":
			return true
		}
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"rate limit",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
