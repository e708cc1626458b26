package command

import "errors"

// Sentinel errors for command handling.
var (
	// ErrUnknownCommand is returned by Invoke for a name not in the table.
	ErrUnknownCommand = errors.New("command: unknown command")

	// ErrInvalidCommand is returned by NewTable for an empty name or payload.
	ErrInvalidCommand = errors.New("command: invalid command")

	// ErrDuplicateCommand is returned by NewTable when a name or payload repeats.
	ErrDuplicateCommand = errors.New("command: duplicate command")
)
