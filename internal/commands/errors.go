// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package commands

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned before any remote call when caller input
	// has the wrong shape.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotImplemented marks unsupported parameter combinations.
	ErrNotImplemented = errors.New("not implemented")
)

// ArgumentError describes a rejected argument.
type ArgumentError struct {
	Command string
	Arg     string
	Value   any
	Reason  string
}

func (e *ArgumentError) Error() string {
	if e.Arg == "" {
		return fmt.Sprintf("%s: %v: %s", e.Command, ErrInvalidArgument, e.Reason)
	}
	return fmt.Sprintf("%s: %v: %s %s (got %#v)", e.Command, ErrInvalidArgument, e.Arg, e.Reason, e.Value)
}

func (e *ArgumentError) Unwrap() error { return ErrInvalidArgument }

func invalidArgument(command, arg, reason string, value any) error {
	return &ArgumentError{Command: command, Arg: arg, Value: value, Reason: reason}
}

func notImplemented(command, what string) error {
	return fmt.Errorf("%s: %w: %s", command, ErrNotImplemented, what)
}
