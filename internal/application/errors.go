package application

import "errors"

// Typed failures surfaced to the transport layer. Messages are short,
// stable strings suitable for direct display; they never carry storage
// internals or password material.
var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email has been registered")
	ErrUsernameTaken      = errors.New("username has been taken")
	ErrInvalidCredentials = errors.New("username or password incorrect")
	ErrEmailNotRegistered = errors.New("email is not registered")

	// Failure kinds for collaborator errors; wrapped with context via %w.
	ErrHashing    = errors.New("failed to hash password")
	ErrStorage    = errors.New("storage error")
	ErrAssetStore = errors.New("asset store error")
	ErrTokenIssue = errors.New("failed to issue token")
)
