package errors

import "errors"

var (
	ErrInvalidValidationInput = errors.New("invalid validation input")
	ErrInvalidRating          = errors.New("rating must be between 1 and 5")
	ErrInvalidDecision        = errors.New("unknown validation decision")
	ErrTranslationNotFound    = errors.New("translation not found")
	ErrSelfValidation         = errors.New("validators cannot validate their own translation")
	ErrDuplicateValidation    = errors.New("validator already validated this translation")
)
