package link

import "errors"

var (
	// ErrConnectCommand is returned when the reconnect command exits with an error.
	ErrConnectCommand = errors.New("link: connect command failed")

	// ErrInterfaceNotFound is returned when the watched interface does not exist.
	ErrInterfaceNotFound = errors.New("link: interface not found")
)
