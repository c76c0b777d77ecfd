package webhook

import (
	"hash/fnv"
	"strconv"
	"sync"
	"time"
)

// Deduper suppresses repeat deliveries of the same message within a
// fixed window. Helpdesk platforms redeliver webhooks on slow acks, so
// the window only needs to cover retry bursts, not history.
type Deduper struct {
	ttl  time.Duration
	now  func() time.Time

	mu   sync.Mutex
	seen map[uint64]time.Time
}

// NewDeduper returns a Deduper with the given suppression window.
func NewDeduper(ttl time.Duration) *Deduper {
	return &Deduper{
		ttl:  ttl,
		now:  time.Now,
		seen: make(map[uint64]time.Time),
	}
}

// Fingerprint identifies a delivery by conversation, message id, and
// text. FNV-1a is enough here; collisions only cost a dropped message
// inside the window and the inputs are tiny.
func (ev *InboundEvent) Fingerprint() uint64 {
	h := fnv.New64a()
	h.Write([]byte(strconv.Itoa(ev.ConversationID)))
	h.Write([]byte{'|'})
	h.Write([]byte(ev.MessageID))
	h.Write([]byte{'|'})
	h.Write([]byte(ev.Text))
	return h.Sum64()
}

// Seen reports whether the event was already observed inside the window
// and records it either way. Expired entries are swept lazily on each
// call, so an idle deduper holds at most one burst of fingerprints.
func (d *Deduper) Seen(ev *InboundEvent) bool {
	now := d.now()
	fp := ev.Fingerprint()

	d.mu.Lock()
	defer d.mu.Unlock()

	for k, t := range d.seen {
		if now.Sub(t) > d.ttl {
			delete(d.seen, k)
		}
	}

	if t, ok := d.seen[fp]; ok && now.Sub(t) <= d.ttl {
		return true
	}
	d.seen[fp] = now
	return false
}
