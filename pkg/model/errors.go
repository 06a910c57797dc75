package model

import (
	"errors"
	"fmt"
)

var (
	// ErrConflictingFilter: mutation lists and a variant query in one request.
	ErrConflictingFilter = errors.New("mutation filters and variantQuery cannot be combined")
	ErrUnknownField      = errors.New("unknown aggregation field")
	ErrBadParameter      = errors.New("bad parameter")
)

type UnsupportedOrderingError struct {
	OrderBy string
}

func (e *UnsupportedOrderingError) Error() string {
	return fmt.Sprintf("unsupported ordering %q", e.OrderBy)
}

func IsUnsupportedOrdering(err error) bool {
	var uoe *UnsupportedOrderingError
	return errors.As(err, &uoe)
}
