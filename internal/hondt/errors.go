package hondt

import "errors"

var (
	// ErrInvalidInput is returned when votes, seats, shares or electors fall outside the accepted domain.
	ErrInvalidInput = errors.New("invalid allocation input")
)
