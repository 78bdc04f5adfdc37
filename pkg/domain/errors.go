package domain

import "errors"

var (
	// ErrValidation indicates a field-shape failure such as a malformed
	// email or a missing required field.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidStateTransition is returned when a terminal friend request
	// is asked to transition again.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrDuplicateRequest is returned when a pending friend request already
	// exists between the same pair of users.
	ErrDuplicateRequest = errors.New("friend request already pending")

	// ErrForbidden indicates the acting user lacks permission for the
	// mutation.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyDeleted is returned when editing a soft-deleted message.
	ErrAlreadyDeleted = errors.New("message already deleted")

	ErrInvalidInviteCode  = errors.New("invalid invite code")
	ErrInvalidRole        = errors.New("invalid chat role")
	ErrInvalidContentKind = errors.New("invalid message content kind")
)
