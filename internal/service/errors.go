package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a service wraps exactly one of them,
// so transports can map a failure with errors.Is without knowing the
// concrete sentinel.
var (
	ErrInvalid      = errors.New("invalid request")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

var (
	ErrMessageNotFound   = fmt.Errorf("message %w", ErrNotFound)
	ErrUserNotFound      = fmt.Errorf("user %w", ErrNotFound)
	ErrReplyNotFound     = fmt.Errorf("reply target %w", ErrNotFound)
	ErrForwardNotFound   = fmt.Errorf("forward source %w", ErrNotFound)
	ErrNotParticipant    = fmt.Errorf("%w: not a participant in this conversation", ErrForbidden)
	ErrNotMessageOwner   = fmt.Errorf("%w: only the message sender can perform this action", ErrForbidden)
	ErrNotRecipient      = fmt.Errorf("%w: only the recipient can acknowledge delivery", ErrForbidden)
	ErrEmptyMessage      = fmt.Errorf("%w: message, media, or forward is required", ErrInvalid)
	ErrEmptyText         = fmt.Errorf("%w: text is required", ErrInvalid)
	ErrEmptyEmoji        = fmt.Errorf("%w: emoji is required", ErrInvalid)
	ErrInvalidScope      = fmt.Errorf("%w: scope must be \"me\" or \"all\"", ErrInvalid)
	ErrSelfMessage       = fmt.Errorf("%w: cannot message yourself", ErrInvalid)
	ErrInvalidCreds      = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	ErrInvalidToken      = fmt.Errorf("%w: invalid or expired token", ErrUnauthorized)
	ErrReactionContended = fmt.Errorf("%w: message changed concurrently, retry", ErrConflict)
)

// ConflictError reports a unique field that is already taken.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return e.Field + " already taken"
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
