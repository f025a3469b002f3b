// Package memnic is the repo's reference nic.Port/transport.Transport
// runtime: in-memory, channel-based queues standing in for the external
// DPDK/vhost-user collaborator spec.md §1 and §6 assume. It is what
// cmd/vswitch wires by default and what internal/demoguest drives for
// end-to-end acceptance testing; a real deployment replaces this package
// with a cgo binding to the actual NIC driver without touching pkg/worker,
// pkg/classify, or pkg/control.
package memnic

// Buffer is a channel-friendly classify.Buffer backed by a plain byte
// slice with headroom, mirroring the teacher's mbuf-wrapper idiom without
// depending on DPDK's C memory pool.
type Buffer struct {
	backing  []byte
	start    int
	length   int
	refCount int
	direct   bool
	freed    bool
}

// NewBuffer wraps data with headroomCap bytes of spare room before it, for
// Prepend to use when the classifier pushes VLAN tags.
func NewBuffer(data []byte, headroomCap int) *Buffer {
	backing := make([]byte, headroomCap+len(data))
	copy(backing[headroomCap:], data)
	return &Buffer{
		backing:  backing,
		start:    headroomCap,
		length:   len(data),
		refCount: 1,
		direct:   true,
	}
}

func (b *Buffer) Bytes() []byte { return b.backing[b.start : b.start+b.length] }
func (b *Buffer) RefCount() int { return b.refCount }
func (b *Buffer) IsDirect() bool { return b.direct }

func (b *Buffer) Prepend(n int) bool {
	if b.start < n {
		return false
	}
	b.start -= n
	b.length += n
	return true
}

func (b *Buffer) ClearVLANOffloadFlags() {}
func (b *Buffer) HasTunnelOffload() bool { return false }
func (b *Buffer) ExtendOuterL2(n int)    {}
func (b *Buffer) ExtendInnerL2(n int)    {}

func (b *Buffer) Free() { b.freed = true }

// Freed reports whether Free has been called, for tests and diagnostics.
func (b *Buffer) Freed() bool { return b.freed }
