package review

import (
	"errors"
	"fmt"
)

// Error taxonomy of the transition engine. Every failure leaves the
// application unchanged.
var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNoteRequired      = fmt.Errorf("%w: note required", ErrInvalidTransition)
	ErrMissingPayload    = fmt.Errorf("%w: form data required", ErrInvalidTransition)
	ErrUnauthorized      = errors.New("unauthorized")
	ErrUnknownAssignee   = errors.New("unknown assignee")
	ErrStaleState        = errors.New("stale state: already processed by someone else")
)
