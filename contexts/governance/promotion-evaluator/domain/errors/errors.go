package errors

import "errors"

var (
	ErrInvalidPromotionInput = errors.New("invalid promotion input")
	ErrUserNotFound          = errors.New("user not found")
)
