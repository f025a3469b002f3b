// Package transport declares the guest-side burst enqueue/dequeue contract
// a data-plane worker drives. The actual socket-based attach handshake is
// an external collaborator per spec.md §1; this package only describes the
// steady-state burst primitives workers call every loop iteration.
package transport

import "github.com/jingkaihe/vswitch/pkg/classify"

// Direction distinguishes a guest's two virtqueues.
type Direction int

const (
	RX Direction = iota
	TX
)

// Transport is the guest-side burst interface a worker polls.
type Transport interface {
	// Dequeue drains up to maxBurst packets from guestID's queue in
	// direction dir (TX, in practice: packets the guest is sending
	// toward the wire).
	Dequeue(guestID uint64, dir Direction, maxBurst int) ([]classify.Buffer, error)

	// Enqueue hands buffers to guestID's queue in direction dir (RX, in
	// practice: packets arriving from the wire) and returns how many
	// were accepted.
	Enqueue(guestID uint64, dir Direction, buffers []classify.Buffer) (accepted int, err error)
}
