package normalize

import "fmt"

// ParseError marks a structurally malformed document. It is scoped to one
// source: the fetcher logs it and skips the source, the refresh continues.
type ParseError struct {
	Format string // "m3u" or "xmltv"
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
