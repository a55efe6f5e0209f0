package parser

import "fmt"

// ParseError reports a field that could not be located or converted.
type ParseError struct {
	Field string
	URL   string
	Err   error
}

func (e *ParseError) Error() string {
	if e.URL == "" {
		return fmt.Errorf("parse %s: %w", e.Field, e.Err).Error()
	}
	return fmt.Errorf("parse %s at %s: %w", e.Field, e.URL, e.Err).Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
