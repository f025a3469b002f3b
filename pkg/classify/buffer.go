package classify

// Buffer abstracts the mbuf-like packet buffer the classifier mutates in
// place. Implementations wrap whatever the transport layer hands workers
// (a vhost-user mbuf, a TAP read buffer, ...); classify never allocates.
type Buffer interface {
	// Bytes returns the buffer's current data region, starting at the
	// outer Ethernet header.
	Bytes() []byte

	// RefCount reports how many owners share this buffer's data.
	RefCount() int

	// IsDirect reports whether the buffer owns its data outright, as
	// opposed to being an indirect clone referencing another buffer's
	// storage.
	IsDirect() bool

	// Prepend grows the buffer by n bytes at the front, reusing reserved
	// headroom. It reports false without mutating anything if fewer than
	// n bytes of headroom remain. The newly exposed bytes are not
	// zeroed; the caller overwrites them before use.
	Prepend(n int) bool

	// ClearVLANOffloadFlags clears any "VLAN stripped on RX" / "insert
	// VLAN on TX" hardware offload markers, which no longer apply once
	// the switch has pushed its own tags in software.
	ClearVLANOffloadFlags()

	// HasTunnelOffload reports whether the buffer carries a tunnel
	// offload marker (e.g. outer/inner L2 length tracked separately).
	HasTunnelOffload() bool

	// ExtendOuterL2 grows the tracked outer L2 header length by n bytes.
	ExtendOuterL2(n int)

	// ExtendInnerL2 grows the tracked inner L2 header length by n bytes.
	ExtendInnerL2(n int)

	// Free releases the buffer back to its allocator. Every hop in the
	// pipeline that decides not to forward a buffer (shaper drop, no
	// headroom, NIC TX refusal, ...) must call Free exactly once.
	Free()
}
