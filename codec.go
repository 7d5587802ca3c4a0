package syncedstore

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/puzpuzpuz/xsync/v3"
	sserr "github.com/synthlabs/tauri-svelte-synced-store/syncedstore_errors"
)

// codec is the per-key encode/decode pair. Built once, on the first
// Set for the key, and immutable afterwards. Both closures are pure;
// decode returns a value of the type the key was established with.
type codec struct {
	typ    reflect.Type
	encode func(v any) (string, error)
	decode func(text string) (any, error)
}

func codecFor[T any]() *codec {
	return &codec{
		typ: typeOf[T](),
		encode: func(v any) (string, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
		decode: func(text string) (any, error) {
			var v T
			if err := json.Unmarshal([]byte(text), &v); err != nil {
				return nil, fmt.Errorf("%w: %v", sserr.ErrDecode, err)
			}
			return v, nil
		},
	}
}

type codecRegistry struct {
	codecs *xsync.MapOf[string, *codec]
}

func newCodecRegistry() *codecRegistry {
	return &codecRegistry{codecs: xsync.NewMapOf[string, *codec]()}
}

// bind registers the codec for key unless one exists already, and
// returns the effective codec. The second return reports whether the
// existing codec was kept.
func (cr *codecRegistry) bind(key string, c *codec) (*codec, bool) {
	return cr.codecs.LoadOrStore(key, c)
}

// rebind force-replaces the codec for key.
func (cr *codecRegistry) rebind(key string, c *codec) {
	cr.codecs.Store(key, c)
}

func (cr *codecRegistry) lookup(key string) (*codec, error) {
	c, ok := cr.codecs.Load(key)
	if !ok {
		return nil, sserr.ErrKeyNotFound
	}
	return c, nil
}
