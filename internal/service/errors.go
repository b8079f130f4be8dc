// Package service provides business logic for the application.
package service

import (
	"errors"
	"fmt"
)

// Service errors. Handlers map these onto response codes with errors.Is.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrForbidden           = errors.New("access denied")
	ErrNotFound            = errors.New("not found")
	ErrOnboardingRequired  = errors.New("onboarding required")
	ErrGenerationFailed    = errors.New("generation failed")
	ErrFreePlanMissing     = errors.New("free plan missing")
	ErrCreateConversation  = errors.New("create conversation")
)

// ValidationError reports caller input that must be fixed before retrying.
type ValidationError struct {
	Message string
	Details map[string]any
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError with optional details.
func NewValidationError(message string, details map[string]any) *ValidationError {
	return &ValidationError{Message: message, Details: details}
}

// AsValidationError unwraps err into a ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// GenerationFailedError is returned when the backend fails after the user
// turn was stored. It matches ErrGenerationFailed.
type GenerationFailedError struct {
	ConversationID string
	Cause          error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Cause)
}

func (e *GenerationFailedError) Unwrap() []error {
	return []error{ErrGenerationFailed, e.Cause}
}
