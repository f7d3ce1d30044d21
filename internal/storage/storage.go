package storage

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
	ErrTaskNotFound = errors.New("task not found")
	// ErrCodeMismatch is returned when an OTP challenge exists but the
	// supplied code does not match it. The challenge is left in place.
	ErrCodeMismatch = errors.New("otp code mismatch")
	// ErrChallengeAbsent is returned when no live challenge exists, including
	// when a concurrent verification consumed it first.
	ErrChallengeAbsent = errors.New("otp challenge absent")
)
