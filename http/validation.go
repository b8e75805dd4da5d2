package http

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// sessionResponseSchema accepts a session response carrying a non-empty client secret
const sessionResponseSchema = `{
	"type": "object",
	"required": ["clientSecret"],
	"properties": {
		"clientSecret": {"type": "string", "minLength": 1},
		"customer_id": {"type": ["string", "null"]}
	}
}`

// leadResponseSchema accepts either a status or an error
const leadResponseSchema = `{
	"type": "object",
	"properties": {
		"status": {"type": "string"},
		"error": {"type": "string"}
	},
	"anyOf": [
		{"required": ["status"]},
		{"required": ["error"]}
	]
}`

var (
	sessionSchema = gojsonschema.NewStringLoader(sessionResponseSchema)
	leadSchema    = gojsonschema.NewStringLoader(leadResponseSchema)
)

// validateResponse checks a raw JSON body against a schema and returns one
// message per violation
func validateResponse(schema gojsonschema.JSONLoader, body []byte) ([]string, error) {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return violations, nil
}

// ValidateSessionResponse reports whether body is a usable session response
func ValidateSessionResponse(body []byte) error {
	violations, err := validateResponse(sessionSchema, body)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return fmt.Errorf("invalid session response: %s", strings.Join(violations, "; "))
	}
	return nil
}

// ValidateLeadResponse reports whether body is a well-formed lead response
func ValidateLeadResponse(body []byte) error {
	violations, err := validateResponse(leadSchema, body)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return fmt.Errorf("invalid lead response: %s", strings.Join(violations, "; "))
	}
	return nil
}
