package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrOutOfRange      = errors.New("out of range")
	ErrMissingLocation = errors.New("location is required")
	ErrMissingIdentity = errors.New("exactly one of user_id or session_id is required")
	ErrAlreadyVerified = errors.New("identity has already verified this incident")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidEvent    = errors.New("invalid event")
	ErrUnauthorized    = errors.New("unauthorized")
)

// OutOfRangeError сообщает фактическое расстояние и допустимый предел
type OutOfRangeError struct {
	Distance float64
	Limit    float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("must be within %.0f meters of the incident, measured %.0f meters", e.Limit, e.Distance)
}

func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}
