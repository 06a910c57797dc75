package query

import (
	"errors"
	"fmt"
)

// ErrMalformedQuery is matched by every parse failure.
var ErrMalformedQuery = errors.New("malformed variant query")

// MalformedQueryError carries the offset (in bytes, into the upper-cased
// query) where parsing gave up.
type MalformedQueryError struct {
	Query string
	Pos   int
	Msg   string
}

func (e *MalformedQueryError) Error() string {
	return fmt.Sprintf("malformed variant query %q at position %d: %s", e.Query, e.Pos, e.Msg)
}

func (e *MalformedQueryError) Unwrap() error {
	return ErrMalformedQuery
}

func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedQuery)
}
