// Package dedup drops repeated deliveries. With QoS 1 the broker may resend a
// message it already delivered, so consumers key on the payload hash.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultTTL = 10 * time.Minute
	DefaultMax = 10000
)

type Deduper struct {
	mu    sync.Mutex
	ttl   time.Duration
	max   int
	clock clockwork.Clock
	seen  map[string]time.Time
}

// New returns a deduper remembering up to max keys for ttl each.
// A nil clock means the real one.
func New(ttl time.Duration, max int, clock clockwork.Clock) *Deduper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if max <= 0 {
		max = DefaultMax
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Deduper{ttl: ttl, max: max, clock: clock, seen: make(map[string]time.Time)}
}

// Key is the hex sha256 of payload.
func Key(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// ShouldProcess reports whether id is new within the window and records it.
// An empty id is always processed.
func (d *Deduper) ShouldProcess(id string) bool {
	if id == "" {
		return true
	}
	now := d.clock.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.seen[id]; ok && now.Before(exp) {
		return false
	}
	d.seen[id] = now.Add(d.ttl)
	if len(d.seen) > d.max {
		d.evict(now)
	}
	return true
}

// ShouldProcessPayload is ShouldProcess keyed on the payload hash.
func (d *Deduper) ShouldProcessPayload(payload []byte) bool {
	return d.ShouldProcess(Key(payload))
}

func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// evict drops expired keys first, then the ones closest to expiry, until the
// set fits max.
func (d *Deduper) evict(now time.Time) {
	for k, exp := range d.seen {
		if !now.Before(exp) {
			delete(d.seen, k)
		}
	}
	for len(d.seen) > d.max {
		var oldest string
		var oldestExp time.Time
		for k, exp := range d.seen {
			if oldest == "" || exp.Before(oldestExp) {
				oldest, oldestExp = k, exp
			}
		}
		delete(d.seen, oldest)
	}
}
