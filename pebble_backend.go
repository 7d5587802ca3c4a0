package syncedstore

import (
	"encoding/binary"

	"github.com/cockroachdb/pebble"
	pkgerrors "github.com/pkg/errors"
)

var WriteOptions = pebble.WriteOptions{Sync: false}

// SKey is the on-disk key for one state entry: lit S, then the length
// of the key, then the key itself. The length byte pair keeps the S
// keyspace prefix-free so other record kinds can live next to it.
func SKey(key string) []byte {
	ret := make([]byte, 0, 3+len(key))
	ret = append(ret, 'S')
	ret = binary.BigEndian.AppendUint16(ret, uint16(len(key)))
	return append(ret, key...)
}

// PebbleBackend stores encoded state values in a pebble database.
type PebbleBackend struct {
	db  *pebble.DB
	dir string
}

// OpenPebble opens (creating if absent) the backend database at dir.
func OpenPebble(dir string) (*PebbleBackend, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "syncedstore: backend open failed")
	}
	return &PebbleBackend{db: db, dir: dir}, nil
}

func (b *PebbleBackend) Dir() string {
	return b.dir
}

func (b *PebbleBackend) Get(key string) (value []byte, ok bool, err error) {
	val, clo, err := b.db.Get(SKey(key))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pkgerrors.Wrap(err, "syncedstore: backend get failed")
	}
	value = append([]byte(nil), val...)
	_ = clo.Close()
	return value, true, nil
}

func (b *PebbleBackend) Set(key string, value []byte) error {
	err := b.db.Set(SKey(key), value, &WriteOptions)
	return pkgerrors.Wrap(err, "syncedstore: backend set failed")
}

func (b *PebbleBackend) Close() error {
	return b.db.Close()
}

// DB exposes the underlying database, e.g. for the metrics collector.
func (b *PebbleBackend) DB() *pebble.DB {
	return b.db
}
