// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package util

import (
	"errors"
	"fmt"
)

// Common Errors forming the base of our error system
//
// Errors returned by Cargohold can be tested against these errors using
// errors.Is. They mirror the registry error taxonomy: absent resources,
// duplicates, losing writers, bad input, missing permission, failed
// authentication, transient storage faults and broken storage invariants.
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnauthenticated  = errors.New("credential rejected")
	ErrAlreadyExist     = errors.New("resource already exists")
	ErrNotExist         = errors.New("resource does not exist")
	ErrConflict         = errors.New("conflicting operation")
	ErrUnavailable      = errors.New("resource temporarily unavailable")

	// ErrInvariantBroken means a storage backend exposed state that the
	// publish protocol guarantees can never exist, e.g. an index stream out
	// of sync with the metadata it belongs to. It always indicates a bug.
	ErrInvariantBroken = errors.New("storage invariant broken")
)

// SilentWrap provides a simple wrapper for a wrapped error where the wrapped error message plays no part in the error message
// Especially useful for "untyped" errors created with "errors.New(…)" that can be classified as 'invalid argument', 'permission denied', 'exists already', or 'does not exist'
type SilentWrap struct {
	Message string
	Err     error
}

// Error returns the message
func (w SilentWrap) Error() string {
	return w.Message
}

// Unwrap returns the underlying error
func (w SilentWrap) Unwrap() error {
	return w.Err
}

// NewSilentWrapErrorf returns an error that formats as the given text but unwraps as the provided error
func NewSilentWrapErrorf(unwrap error, message string, args ...any) error {
	if len(args) == 0 {
		return SilentWrap{Message: message, Err: unwrap}
	}
	return SilentWrap{Message: fmt.Sprintf(message, args...), Err: unwrap}
}

// NewInvalidArgumentErrorf returns an error that formats as the given text but unwraps as an ErrInvalidArgument
func NewInvalidArgumentErrorf(message string, args ...any) error {
	return NewSilentWrapErrorf(ErrInvalidArgument, message, args...)
}

// NewPermissionDeniedErrorf returns an error that formats as the given text but unwraps as an ErrPermissionDenied
func NewPermissionDeniedErrorf(message string, args ...any) error {
	return NewSilentWrapErrorf(ErrPermissionDenied, message, args...)
}

// NewUnauthenticatedErrorf returns an error that formats as the given text but unwraps as an ErrUnauthenticated
func NewUnauthenticatedErrorf(message string, args ...any) error {
	return NewSilentWrapErrorf(ErrUnauthenticated, message, args...)
}

// NewAlreadyExistErrorf returns an error that formats as the given text but unwraps as an ErrAlreadyExist
func NewAlreadyExistErrorf(message string, args ...any) error {
	return NewSilentWrapErrorf(ErrAlreadyExist, message, args...)
}

// NewNotExistErrorf returns an error that formats as the given text but unwraps as an ErrNotExist
func NewNotExistErrorf(message string, args ...any) error {
	return NewSilentWrapErrorf(ErrNotExist, message, args...)
}

// NewConflictErrorf returns an error that formats as the given text but unwraps as an ErrConflict
func NewConflictErrorf(message string, args ...any) error {
	return NewSilentWrapErrorf(ErrConflict, message, args...)
}

// NewUnavailableErrorf returns an error that formats as the given text but unwraps as an ErrUnavailable
func NewUnavailableErrorf(message string, args ...any) error {
	return NewSilentWrapErrorf(ErrUnavailable, message, args...)
}

// NewInvariantBrokenErrorf returns an error that formats as the given text but unwraps as an ErrInvariantBroken
func NewInvariantBrokenErrorf(message string, args ...any) error {
	return NewSilentWrapErrorf(ErrInvariantBroken, message, args...)
}
