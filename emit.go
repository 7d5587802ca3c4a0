package syncedstore

// Emitter is the notification sink the store publishes changes to.
// It is externally owned; the store only ever calls Emit. The event
// name is EventName(key).
type Emitter interface {
	Emit(event string, upd Update) error
}

// EmitterFunc adapts a plain function to an Emitter.
type EmitterFunc func(event string, upd Update) error

func (f EmitterFunc) Emit(event string, upd Update) error {
	return f(event, upd)
}
