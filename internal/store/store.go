package store

import (
	"errors"

	"github.com/wirechat/wirechat/internal/domain"
)

// ErrStoreUnavailable reports that the backing medium could not be
// written; the in-memory view is unchanged when it is returned.
var ErrStoreUnavailable = errors.New("message store unavailable")

// MessageStore is the durable append/delete log of chat messages.
// Implementations must keep the persisted state and the in-memory view
// in sync after every mutation: a failed write never advances what
// readers observe.
type MessageStore interface {
	// Append durably persists msg at the end of the history.
	Append(msg domain.Message) error

	// Remove deletes the message with the given id and persists the new
	// set. It returns (false, nil) when no such id exists; relative
	// order of the remaining messages is unchanged.
	Remove(id string) (bool, error)

	// All returns the full history in insertion order.
	All() []domain.Message

	// Len reports the number of stored messages.
	Len() int
}
