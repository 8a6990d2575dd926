// Package rotation implements the credential lifecycle core: the
// eligibility policy, the rotation pass, and the deferred-deletion
// schedule/retry protocol.
package rotation

import (
	"strconv"

	"github.com/systmms/keyrotator/internal/directory"
)

// ShouldRotate reports whether the credential has outlived the threshold.
// The caller owns all other gating (zero keys, two-key ceiling).
func ShouldRotate(cred directory.Credential, effectiveMaxAgeDays int) bool {
	return cred.AgeDays > effectiveMaxAgeDays
}

// EffectiveMaxAge returns the per-principal override when it parses as a
// positive integer, else the configured default.
func EffectiveMaxAge(override string, defaultDays int) int {
	if override == "" {
		return defaultDays
	}
	n, err := strconv.Atoi(override)
	if err != nil || n <= 0 {
		return defaultDays
	}
	return n
}
