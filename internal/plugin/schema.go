package plugin

import (
	"fmt"
	"net/url"
)

// FieldKind restricts how a configuration value is validated.
type FieldKind string

const (
	FieldString FieldKind = "string"
	FieldURL    FieldKind = "url"
)

// Field is one declared configuration key.
type Field struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Kind     FieldKind `json:"kind"`
	Required bool      `json:"required"`
	Secret   bool      `json:"secret"`
}

// Schema declares the configuration a plugin accepts. Stored configuration is
// validated against it at install and update time.
type Schema struct {
	Fields []Field `json:"fields"`
}

// ValidationError reports configuration that does not satisfy the schema.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks config against the schema. Keys not declared by the schema
// are rejected, required keys must be present and non-empty, and URL fields
// must parse as absolute http(s) URLs.
func (s Schema) Validate(config map[string]string) error {
	declared := make(map[string]Field, len(s.Fields))
	for _, f := range s.Fields {
		declared[f.Name] = f
	}

	for key := range config {
		if _, ok := declared[key]; !ok {
			return &ValidationError{Field: key, Reason: "not a recognized setting"}
		}
	}

	for _, f := range s.Fields {
		value := config[f.Name]
		if value == "" {
			if f.Required {
				return &ValidationError{Field: f.Name, Reason: "is required"}
			}
			continue
		}
		if f.Kind == FieldURL {
			u, err := url.Parse(value)
			if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
				return &ValidationError{Field: f.Name, Reason: "must be an absolute http(s) URL"}
			}
		}
	}
	return nil
}
