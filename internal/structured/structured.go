// Package structured decodes JSON emitted by a text generation service.
// Output is stripped of markdown fences, validated against a JSON Schema and
// only then decoded into the target type, so a best-effort "respond with JSON"
// hint upstream never leaks malformed data into the pipeline.
package structured

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/jsonschema-go/jsonschema"
)

// ErrMalformed wraps every parse or validation failure.
var ErrMalformed = errors.New("malformed structured output")

// Schema is a compiled JSON Schema.
type Schema struct {
	resolved *jsonschema.Resolved
}

// MustCompile parses and resolves a schema document, panicking on error.
func MustCompile(doc string) *Schema {
	s, err := Compile(doc)
	if err != nil {
		panic(err)
	}
	return s
}

// Compile parses and resolves a schema document.
func Compile(doc string) (*Schema, error) {
	var schema jsonschema.Schema
	if err := json.Unmarshal([]byte(doc), &schema); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}
	return &Schema{resolved: resolved}, nil
}

// Decode cleans, validates and unmarshals raw into v.
func Decode(raw string, schema *Schema, v any) error {
	cleaned := CleanJSON(raw)
	if cleaned == "" {
		return fmt.Errorf("%w: empty response", ErrMalformed)
	}

	if schema != nil {
		var instance any
		if err := json.Unmarshal([]byte(cleaned), &instance); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if err := schema.resolved.Validate(instance); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// CleanJSON strips markdown fences that models like to wrap JSON in.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

// Preview truncates text for log and error messages.
func Preview(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return Truncate(s, limit) + "..."
}

// Truncate cuts s to at most limit bytes without splitting a UTF-8 sequence.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
