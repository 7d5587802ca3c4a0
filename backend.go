package syncedstore

// Backend is the durable key-value store used for optional load/save.
// Absence of a key is normal, reported via ok=false with a nil error.
// Values are the same encoded text the sink sees, as bytes.
type Backend interface {
	Get(key string) (value []byte, ok bool, err error)
	Set(key string, value []byte) error
	Close() error
}
