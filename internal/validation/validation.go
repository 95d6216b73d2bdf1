package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// FieldError represents a single field validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []FieldError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *FieldError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []FieldError {
	return c.errors
}

// Summary joins all accumulated errors into a single message.
func (c *Collector) Summary() string {
	parts := make([]string, len(c.errors))
	for i, e := range c.errors {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Required returns an error if the value is empty.
func Required(field, value string) *FieldError {
	if value == "" {
		return &FieldError{Field: field, Message: "is required"}
	}
	return nil
}

// UTF8 returns an error if the value is not valid UTF-8.
func UTF8(field, value string) *FieldError {
	if !utf8.ValidString(value) {
		return &FieldError{Field: field, Message: "must be valid UTF-8"}
	}
	return nil
}

// NoNullBytes returns an error if the value contains null bytes.
func NoNullBytes(field, value string) *FieldError {
	if strings.Contains(value, "\x00") {
		return &FieldError{Field: field, Message: "must not contain null bytes"}
	}
	return nil
}

// MaxLength returns an error if the value exceeds max runes.
func MaxLength(field, value string, max int) *FieldError {
	if utf8.RuneCountInString(value) > max {
		return &FieldError{Field: field, Message: fmt.Sprintf("must not exceed %d characters", max)}
	}
	return nil
}

// IntRange returns an error if the value lies outside [min, max].
func IntRange(field string, value, min, max int) *FieldError {
	if value < min || value > max {
		return &FieldError{Field: field, Message: fmt.Sprintf("must be between %d and %d", min, max)}
	}
	return nil
}

// Text validates a free-form text field: UTF-8, no null bytes, bounded length.
func Text(field, value string, max int) *FieldError {
	if err := UTF8(field, value); err != nil {
		return err
	}
	if err := NoNullBytes(field, value); err != nil {
		return err
	}
	return MaxLength(field, value, max)
}
