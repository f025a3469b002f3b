// Package coordinator implements the lifecycle coordinator of spec.md
// §4.4: guest add/remove, core assignment on creation, and the two-flag
// rendezvous that lets a guest's memory be freed while workers keep
// polling lock-free.
package coordinator

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/jingkaihe/vswitch/pkg/guest"
	"github.com/jingkaihe/vswitch/pkg/table"
)

// Coordinator owns guest creation/removal and the per-core device lists.
// It is the only writer of the guest lists, which workers see as read-only
// (spec.md §5); it releases pool bits on removal, while pools are acquired
// by the worker that completes a guest's MAC learning.
type Coordinator struct {
	mu sync.Mutex

	cores    []*Core
	txCoreID int

	registry *guest.Registry
	pools    *guest.PoolAllocator
	table    *table.MatchingTable

	nextGuestID atomic.Uint64
}

// New builds a coordinator over numCores worker cores. The first core
// (index 0) is designated the single TX core for every guest, per spec.md
// §4.4's "a single TX core simplifies per-core batch ownership".
func New(numCores int, registry *guest.Registry, pools *guest.PoolAllocator, tbl *table.MatchingTable) (*Coordinator, error) {
	if numCores < 1 {
		return nil, ErrNoWorkerCores
	}
	cores := make([]*Core, numCores)
	for i := range cores {
		cores[i] = newCore(i)
	}
	return &Coordinator{cores: cores, txCoreID: 0, registry: registry, pools: pools, table: tbl}, nil
}

// Cores returns the coordinator's worker cores, for wiring into workers at
// startup.
func (c *Coordinator) Cores() []*Core { return c.cores }

// AddGuest implements the new-device callback's core-assignment half of
// spec.md §4.4: the guest is bound to the single TX core and to the
// least-loaded remaining core for RX, then registered.
func (c *Coordinator) AddGuest() *guest.Guest {
	id := c.nextGuestID.Add(1)
	g := guest.New(id)

	c.mu.Lock()
	defer c.mu.Unlock()

	txCore := c.cores[c.txCoreID]
	txCore.mu.Lock()
	txCore.TXGuests[id] = struct{}{}
	txCore.mu.Unlock()
	g.TXCore = txCore.ID

	rxCore := c.leastLoadedRXCoreLocked()
	rxCore.mu.Lock()
	rxCore.RXGuests[id] = struct{}{}
	rxCore.DeviceNum++
	rxCore.mu.Unlock()
	g.RXCore = rxCore.ID

	c.registry.Add(g)
	return g
}

func (c *Coordinator) leastLoadedRXCoreLocked() *Core {
	var best *Core
	for _, core := range c.cores {
		if len(c.cores) > 1 && core.ID == c.txCoreID {
			continue
		}
		if best == nil || core.DeviceNum < best.DeviceNum {
			best = core
		}
	}
	if best == nil {
		best = c.cores[c.txCoreID]
	}
	return best
}

// ReleaseRXAssignment drops g's RX core assignment, called when a guest
// transitions to Control: the control guest has no wire traffic, so its RX
// core slot is freed for data guests (spec.md §4.4).
func (c *Coordinator) ReleaseRXAssignment(g *guest.Guest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g.RXCore < 0 {
		return
	}
	core := c.cores[g.RXCore]
	core.mu.Lock()
	delete(core.RXGuests, g.ID)
	core.DeviceNum--
	core.mu.Unlock()
	g.RXCore = -1
}

// Remove runs the full removal protocol of spec.md §4.4: request removal,
// wait for the guest's owning workers to drain it to SafeRemove, then
// rendezvous with every core before releasing its pool and removing it from
// every list. It blocks indefinitely; there is no removal timeout
// (spec.md §5).
func (c *Coordinator) Remove(g *guest.Guest) {
	g.RequestRemove()
	for g.State() != guest.SafeRemove {
		runtime.Gosched()
	}

	for _, core := range c.cores {
		core.flag.Store(int32(Request))
	}
	for _, core := range c.cores {
		for core.Flag() != Ack {
			runtime.Gosched()
		}
	}

	c.mu.Lock()
	txCore := c.cores[g.TXCore]
	txCore.mu.Lock()
	delete(txCore.TXGuests, g.ID)
	txCore.mu.Unlock()
	if g.RXCore >= 0 {
		core := c.cores[g.RXCore]
		core.mu.Lock()
		delete(core.RXGuests, g.ID)
		core.DeviceNum--
		core.mu.Unlock()
	}
	if g.PoolID != guest.NoPool {
		c.pools.Release(g.PoolID)
		_ = c.table.Clear(g.VLANTag)
	}
	for _, core := range c.cores {
		core.flag.Store(int32(Idle))
	}
	c.mu.Unlock()

	c.registry.Remove(g.ID)
}
