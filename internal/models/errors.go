package models

import "errors"

// Sentinel errors shared between the store, session and HTTP layers.
// Handlers map these to status codes; anything else becomes a generic 500.
var (
	ErrConflict           = errors.New("email or username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("record not found")
	ErrInvalidOTP         = errors.New("invalid or expired OTP")
	ErrSelfFollow         = errors.New("cannot follow yourself")
	ErrEmptyComment       = errors.New("comment cannot be empty")
)
