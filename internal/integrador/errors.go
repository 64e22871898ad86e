// Package integrador exchanges XML documents with the Integrador process
// through its input and output directories.
//
// A command is written to input/ as "<id>-<template>" and the answer is the
// document in output/ whose Identificador/Valor equals id. Watcher turns
// directory events into parsed Responses, Channel matches them to armed
// Pending requests, and Client ties both to the session allocator.
package integrador

import "errors"

var (
	// ErrCorrelationTimeout is returned when no matching response arrived
	// before the wait deadline.
	ErrCorrelationTimeout = errors.New("integrador: correlation timeout")

	// ErrUnknownCommand is returned for commands without a request template.
	ErrUnknownCommand = errors.New("integrador: unknown command")

	// ErrMalformedResponse wraps parse failures of output documents.
	ErrMalformedResponse = errors.New("integrador: malformed response")

	// ErrInvalidIdentifier is returned for a caller-supplied request
	// identifier that is not a session number of the client's terminal.
	ErrInvalidIdentifier = errors.New("integrador: invalid identifier")

	// ErrWatchLost is returned by Watcher.Run when the watched directory
	// itself is removed or renamed.
	ErrWatchLost = errors.New("integrador: watched directory lost")
)
