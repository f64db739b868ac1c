package sandbox

import "errors"

var (
	// ErrPathDenied marks a path rejected by the guard: it escapes the
	// project root, contains a protected segment, or has a non-writable
	// extension.
	ErrPathDenied = errors.New("path denied by sandbox policy")

	// ErrCommandDenied marks a command rejected by the textual filter.
	ErrCommandDenied = errors.New("command denied by sandbox policy")
)
