package domain

import "fmt"

// UnsupportedFormatError is returned for upload extensions other than csv and xlsx.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return "Unsupported file type"
	}
	return fmt.Sprintf("Unsupported file type %q", e.Ext)
}

type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("Missing '%s' column or equivalent", e.Column)
}

// ProviderError wraps any failure of the classify capability: transport,
// timeout, non-success status, or an empty response.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ParseError reports a summary line whose count is not a non-negative integer.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing summary line %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
