package points

import (
	"errors"
	"fmt"
)

var (
	// ErrParse is returned when a numeric token cannot be
	// parsed.
	ErrParse = errors.New("points: malformed number")

	// ErrEmptyRecord is returned for a record that has no
	// numbers at all, not even a target.
	ErrEmptyRecord = errors.New("points: empty record")

	// ErrDimensionMismatch is returned when a record's
	// dimensionality differs from the first record's.
	ErrDimensionMismatch = errors.New("points: dimensionality mismatch")

	// ErrUnknownFormat is returned for an unsupported
	// dataset format name.
	ErrUnknownFormat = errors.New("points: unknown format")
)

// A ParseError describes where a dataset failed to parse.
type ParseError struct {
	// Record is the 1-based record (line) number.
	Record int

	// Token is the offending text, if any.
	Token string

	Err error
}

func (p *ParseError) Error() string {
	if p.Token != "" {
		return fmt.Sprintf("record %d: %v: %q", p.Record, p.Err, p.Token)
	}
	return fmt.Sprintf("record %d: %v", p.Record, p.Err)
}

func (p *ParseError) Unwrap() error {
	return p.Err
}
