package syncedstore

import (
	"github.com/cespare/xxhash"
	lru "github.com/hashicorp/golang-lru/v2"
)

// emitCache remembers a hash of the last payload published per key so
// that a forced Emit of an unchanged value can be skipped when
// deduplication is on. Hashes, not payloads: values can be large.
type emitCache struct {
	hashes *lru.Cache[string, uint64]
}

func newEmitCache(size int) (*emitCache, error) {
	c, err := lru.New[string, uint64](size)
	if err != nil {
		return nil, err
	}
	return &emitCache{hashes: c}, nil
}

// note records the payload just published for key. Callers note only
// after the sink accepted the payload, so a failed publish never
// counts as delivered.
func (ec *emitCache) note(key, payload string) {
	ec.hashes.Add(key, xxhash.Sum64String(payload))
}

// changed reports whether payload differs from the last one noted for
// key. Pure check; nothing is recorded.
func (ec *emitCache) changed(key, payload string) bool {
	prev, ok := ec.hashes.Get(key)
	return !ok || prev != xxhash.Sum64String(payload)
}
