package memdev

import "errors"

var (
	// ErrTransferFault is returned when the caller side of a read or write could not be accessed.
	ErrTransferFault = errors.New("transfer fault")
	// ErrInvalidSeek is returned when a seek target falls outside [0, capacity].
	ErrInvalidSeek = errors.New("invalid seek")
	// ErrUnsupportedOperation is returned for unknown control requests.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	ErrSessionClosed = errors.New("session closed")
)
