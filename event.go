package syncedstore

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// UpdateSuffix is appended to a key to form the event name subscribers see.
const UpdateSuffix = "_update"

func EventName(key string) string {
	return key + UpdateSuffix
}

// KeyOfEvent recovers the key from an event name, "" if the name
// does not carry the update suffix.
func KeyOfEvent(event string) string {
	if !strings.HasSuffix(event, UpdateSuffix) {
		return ""
	}
	return event[:len(event)-len(UpdateSuffix)]
}

// Update is the wire shape of a change notification: the key, its
// encoded value, and an optional monotonic stamp.
type Update struct {
	Version *Version `json:"version,omitempty"`
	Name    string   `json:"name"`
	Value   string   `json:"value"`
}

// Version is a 128-bit monotonic counter, carried as a decimal string
// on the wire since JSON numbers top out well below 2^128.
type Version struct {
	Hi uint64
	Lo uint64
}

func (v Version) Less(other Version) bool {
	if v.Hi != other.Hi {
		return v.Hi < other.Hi
	}
	return v.Lo < other.Lo
}

func (v Version) big() *big.Int {
	n := new(big.Int).SetUint64(v.Hi)
	n.Lsh(n, 64)
	return n.Or(n, new(big.Int).SetUint64(v.Lo))
}

func (v Version) String() string {
	return v.big().String()
}

func (v Version) MarshalJSON() ([]byte, error) {
	return []byte(`"` + v.String() + `"`), nil
}

func (v *Version) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 || n.BitLen() > 128 {
		return fmt.Errorf("bad version %q", s)
	}
	mask64 := new(big.Int).SetUint64(^uint64(0))
	v.Lo = new(big.Int).And(n, mask64).Uint64()
	v.Hi = new(big.Int).Rsh(n, 64).Uint64()
	return nil
}

// versionClock stamps outgoing updates. One small lock serializes
// increments so stamps never repeat or go backwards.
type versionClock struct {
	lock sync.Mutex
	cur  Version
}

func (c *versionClock) Next() Version {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.cur.Lo++
	if c.cur.Lo == 0 {
		c.cur.Hi++
	}
	return c.cur
}

func (c *versionClock) Current() Version {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.cur
}
