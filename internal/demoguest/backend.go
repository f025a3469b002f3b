// Package demoguest is a demo/acceptance-test guest launcher: it exercises
// the switch's RX/TX path end to end against a real network device (a
// Linux TAP, or a macOS vz virtio-net attachment) instead of a unit-test
// fake. It is explicitly not on the fast path (spec.md's worker/classify/
// control packages never import it); it exists to let a developer attach a
// guest, watch MAC learning happen, push a control update, and see tagged
// traffic leave the NIC, without writing a real paravirtualized guest.
package demoguest

import "context"

// Config describes the demo guest to launch.
type Config struct {
	ID      string
	MAC     [6]byte
	Gateway string // host-side IP assigned to the TAP/attachment, e.g. "192.168.100.1/24"

	// Console, if true, attaches an interactive pty to the guest's
	// control stream (useful for driving the control-channel wire
	// format by hand while testing).
	Console bool
}

// Backend constructs a platform-specific Guest.
type Backend interface {
	Name() string
	Create(ctx context.Context, cfg *Config) (Guest, error)
}

// Guest is a running demo guest: something that can send and receive raw
// Ethernet frames, the same shape the switch's transport.Transport
// interface consumes on the other end.
type Guest interface {
	Start(ctx context.Context) error

	// Send transmits one raw Ethernet frame toward the switch.
	Send(frame []byte) error
	// Recv blocks for one raw Ethernet frame arriving from the switch.
	Recv() ([]byte, error)

	MAC() [6]byte
	Close() error
}
