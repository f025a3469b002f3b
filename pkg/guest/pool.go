package guest

import (
	"sync"

	"github.com/jingkaihe/vswitch/internal/errx"
)

// NoPool is the pool id of a guest that has not yet been bound (still in
// MacLearning) or that will never bind one (the control guest).
const NoPool = -1

// DerivePoolID applies spec.md §3's pool-id derivation to the last byte of
// a learned MAC address: pool_id = (mac[5] mod (numPools+1)) - 1. A result
// of -1 designates the control guest.
func DerivePoolID(macLastByte byte, numPools int) int {
	return int(macLastByte)%(numPools+1) - 1
}

// PoolAllocator tracks which pools are currently bound to a DataRx guest.
// A guest's TX worker acquires a pool during MAC learning (via
// Registry.Learn) and the coordinator releases it on removal; mu
// serializes the two.
type PoolAllocator struct {
	mu        sync.Mutex
	numPools  int
	occupied  []bool
	collision bool // latched per spec.md §7's "log once" MAC-pool collision rule
}

// NewPoolAllocator returns an allocator for numPools pools, all free.
func NewPoolAllocator(numPools int) *PoolAllocator {
	return &PoolAllocator{numPools: numPools, occupied: make([]bool, numPools)}
}

// Acquire marks poolID occupied. It returns ErrPoolOutOfRange if poolID is
// not a valid data pool, and ErrPoolCollision (latching the one-shot log
// flag the caller should use to avoid repeated logging) if the pool is
// already bound to another guest.
func (p *PoolAllocator) Acquire(poolID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if poolID < 0 || poolID >= p.numPools {
		return errx.With(ErrPoolOutOfRange, ": pool=%d", poolID)
	}
	if p.occupied[poolID] {
		p.collision = true
		return errx.With(ErrPoolCollision, ": pool=%d", poolID)
	}
	p.occupied[poolID] = true
	return nil
}

// Release clears poolID's occupied bit, invoked when a DataRx guest is
// removed (spec.md §4.4).
func (p *PoolAllocator) Release(poolID int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if poolID >= 0 && poolID < p.numPools {
		p.occupied[poolID] = false
	}
}

// HasLoggedCollision reports (and does not reset) whether any collision has
// ever been observed, for the one-shot logging policy in spec.md §7.
func (p *PoolAllocator) HasLoggedCollision() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.collision
}
