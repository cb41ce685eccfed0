package hornet

import "github.com/pkg/errors"

// ErrInvalidMessageIDLength is returned when a MessageId is constructed
// from a byte slice of the wrong length.
var ErrInvalidMessageIDLength = errors.New("invalid message ID length")
