package app

import "errors"

var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrRequestNotFound    = errors.New("friend request not found")

	// ErrInvalidCredentials is safe to show to end users; it does not
	// reveal whether the account exists.
	ErrInvalidCredentials = errors.New("incorrect email address or password")

	ErrTooManyRequests = errors.New("too many requests, slow down")

	ErrCodeInvalid     = errors.New("incorrect verification code")
	ErrCodeExpired     = errors.New("verification code expired")
	ErrTooManyAttempts = errors.New("too many verification attempts")
)
