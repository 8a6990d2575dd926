package config

import (
	_ "embed"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	krerrors "github.com/systmms/keyrotator/internal/errors"
)

//go:embed schema.json
var overlaySchema string

// validateOverlay checks the YAML overlay against the embedded JSON schema
// before it is unmarshalled, so typos surface as field-level errors instead
// of silently falling back to defaults.
func validateOverlay(data []byte) error {
	jsonData, err := yamlToJSON(data)
	if err != nil {
		return krerrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
		}
	}

	schemaLoader := gojsonschema.NewStringLoader(overlaySchema)
	documentLoader := gojsonschema.NewBytesLoader(jsonData)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return krerrors.UserError{
			Message: "Failed to validate configuration file",
			Details: err.Error(),
			Err:     err,
		}
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return krerrors.ConfigError{
			Message:    "configuration file does not match the expected schema",
			Suggestion: strings.Join(problems, "; "),
		}
	}

	return nil
}
