package errors

import "errors"

var (
	ErrInvalidStrikeInput = errors.New("invalid strike input")
	ErrStrikeNotFound     = errors.New("strike not found")
)
