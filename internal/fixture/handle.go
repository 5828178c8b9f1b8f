package fixture

import (
	"sync"
	"time"
)

// Handle identifies one synthetic record the harness created. Teardown only
// ever touches records it holds a Handle for; anything already in the
// database is out of bounds.
type Handle struct {
	Kind      Kind
	ID        string
	Role      string
	Name      string
	CreatedAt time.Time

	seq int
}

// Tracker records handles in creation order. It is safe for concurrent use;
// builders running in parallel share one tracker per run.
type Tracker struct {
	mu      sync.Mutex
	seq     int
	handles []Handle
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Add stamps the handle with the next creation sequence and records it.
func (t *Tracker) Add(h Handle) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	h.seq = t.seq
	t.handles = append(t.handles, h)
	return h
}

// Handles returns a copy of every tracked handle in creation order.
func (t *Tracker) Handles() []Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Handle, len(t.handles))
	copy(out, t.handles)
	return out
}

// Newest returns the most recently created handle of a kind.
func (t *Tracker) Newest(kind Kind) (Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.handles) - 1; i >= 0; i-- {
		if t.handles[i].Kind == kind {
			return t.handles[i], true
		}
	}
	return Handle{}, false
}

// Remove forgets a handle once its record is gone.
func (t *Tracker) Remove(kind Kind, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, h := range t.handles {
		if h.Kind == kind && h.ID == id {
			t.handles = append(t.handles[:i], t.handles[i+1:]...)
			return
		}
	}
}

// Len is the number of live handles.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}
