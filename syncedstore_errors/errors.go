// Provides common syncedstore errors definitions.
package syncedstore_errors

import "errors"

var (
	ErrKeyNotFound  = errors.New("syncedstore: key not found")
	ErrTypeMismatch = errors.New("syncedstore: stored type differs from requested type")
	ErrDecode       = errors.New("syncedstore: payload decode failed")
	ErrNoBackend    = errors.New("syncedstore: no durable backend configured")
	ErrEmit         = errors.New("syncedstore: notification sink failed")
	ErrPoisoned     = errors.New("syncedstore: entry poisoned by an earlier panic")
	ErrReleased     = errors.New("syncedstore: item released twice")

	ErrCommandUnknown = errors.New("syncedstore: command unknown")
)
