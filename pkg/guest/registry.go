package guest

import (
	"sync"

	"github.com/jingkaihe/vswitch/internal/errx"
)

// Registry is the unique owner of every live Guest, keyed by id. Per-core
// membership is tracked separately (by the coordinator) as sets of ids, not
// pointers, so the registry alone decides when a guest's memory is freed
// (spec.md §9).
type Registry struct {
	mu     sync.RWMutex
	guests map[uint64]*Guest
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{guests: make(map[uint64]*Guest)}
}

// Add registers a newly created guest. It is an error to add an id twice.
func (r *Registry) Add(g *Guest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guests[g.ID] = g
}

// Get looks up a guest by id.
func (r *Registry) Get(id uint64) (*Guest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.guests[id]
	if !ok {
		return nil, errx.With(ErrUnknownGuest, ": id=%d", id)
	}
	return g, nil
}

// Remove deletes a guest from the registry. Callers must only do this after
// the two-flag rendezvous has confirmed no worker still references it.
func (r *Registry) Remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.guests, id)
}

// All returns a snapshot slice of every currently registered guest, for
// stats dumps and removal scans.
func (r *Registry) All() []*Guest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Guest, 0, len(r.guests))
	for _, g := range r.guests {
		out = append(out, g)
	}
	return out
}

// Learn applies the MAC-learning transition (spec.md §3, §4.4) to a guest
// still in MacLearning, called by that guest's TX worker on its first
// packet. mac is the full 6-byte address just observed.
//
// A pool-id of NoPool (-1) means the control guest: the guest moves to
// Control (Learn does not touch core assignments; the calling worker
// releases the RX assignment afterwards). Otherwise the pool is acquired
// from pools; on a collision with an already-bound pool the guest remains
// in MacLearning (the caller should log once per pools.HasLoggedCollision)
// so it keeps attempting to learn on subsequent packets.
func (r *Registry) Learn(g *Guest, mac [6]byte, pools *PoolAllocator, numPools int) error {
	poolID := DerivePoolID(mac[5], numPools)
	g.MAC = mac

	if poolID == NoPool {
		g.PoolID = NoPool
		g.SetState(Control)
		return nil
	}

	if err := pools.Acquire(poolID); err != nil {
		return err
	}

	g.PoolID = poolID
	g.VLANTag = poolID + 1
	g.SetState(DataRx)
	return nil
}
