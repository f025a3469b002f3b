// Package guest implements the per-guest lifecycle state machine and pool
// registry of spec.md §3/§4.4: MAC learning, pool/control classification,
// and safe removal under concurrent polling by data-plane workers.
package guest

import (
	"sync/atomic"

	"github.com/jingkaihe/vswitch/pkg/stats"
)

// Guest is one paravirtualized front-end attached to the switch. Its state
// and remove flag are accessed from both the owning worker and the
// coordinator, so both are atomics (spec.md §5: "volatile... across
// threads"); every other field is written once during MAC learning and
// read-only thereafter from any other goroutine's point of view.
type Guest struct {
	ID  uint64
	MAC [6]byte

	// PoolID is NoPool until MAC learning completes; DataRx guests hold
	// their bound pool id, Control holds NoPool permanently.
	PoolID int
	// VLANTag is the matching-table row index, PoolID+1 (row 0 reserved).
	VLANTag int
	RXQueue uint16

	TXCore int
	RXCore int

	state  atomic.Int32
	remove atomic.Bool

	Stats stats.Guest
}

// New returns a guest in MacLearning with no pool/core assignment beyond
// what the caller fills in.
func New(id uint64) *Guest {
	g := &Guest{ID: id, PoolID: NoPool, VLANTag: 0, RXCore: -1}
	g.state.Store(int32(MacLearning))
	return g
}

// State reads the guest's current lifecycle state.
func (g *Guest) State() State { return State(g.state.Load()) }

// SetState advances the guest's state. Callers are responsible for only
// ever moving forward along MacLearning -> {DataRx, Control} -> SafeRemove.
func (g *Guest) SetState(s State) { g.state.Store(int32(s)) }

// RequestRemove sets the remove flag; workers observe it on their next
// iteration over the guest and transition it to SafeRemove once drained.
func (g *Guest) RequestRemove() { g.remove.Store(true) }

// RemoveRequested reports whether removal has been requested.
func (g *Guest) RemoveRequested() bool { return g.remove.Load() }
