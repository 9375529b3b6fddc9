package main

import (
	"errors"
	"fmt"
)

// ErrPublishDuplicate signals that an equivalent test already exists in the
// target repository. The pipeline reports a duplicate as skipped, not failed.
var ErrPublishDuplicate = errors.New("equivalent test already published")

// AuthenticationError is terminal: the run cannot observe anything real when
// the app never let it in. It carries the page identity for diagnosis.
type AuthenticationError struct {
	URL          string
	Title        string
	ElementCount int
	Reason       string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed at %q (title %q): %s", e.URL, e.Title, e.Reason)
}

// NavigationError is terminal: the context's target page could not be reached.
type NavigationError struct {
	URL    string
	Title  string
	Target string
	Reason string
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %q failed at %q (title %q): %s", e.Target, e.URL, e.Title, e.Reason)
}

// ObservationError is terminal: the page yielded no usable inventory, so any
// synthesized test would be fiction.
type ObservationError struct {
	URL          string
	Title        string
	ElementCount int
	Reason       string
}

func (e *ObservationError) Error() string {
	return fmt.Sprintf("observation failed at %q (title %q): %s", e.URL, e.Title, e.Reason)
}

// PublishError wraps a hosting failure. The generated test text survives in
// the run result so the operator can commit it by hand.
type PublishError struct {
	Path   string
	Reason string
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish of %q failed: %s", e.Path, e.Reason)
}

func (e *PublishError) Unwrap() error { return e.Err }
