// Package nic declares the physical-port contract the data-plane worker
// drives: burst RX/TX keyed by a pool-scoped queue id, plus the per-pool
// VMDQ setup hooks a guest's lifecycle transitions touch. Driver
// configuration itself (queue setup, offload selection, promiscuous mode)
// is an external collaborator per spec.md §1 and is not implemented here.
package nic

import "github.com/jingkaihe/vswitch/pkg/classify"

// Port is the burst-oriented interface a worker polls.
type Port interface {
	// RXBurst drains up to maxBurst packets from the RX queue dedicated
	// to rxQueue (a pool-scoped VMDQ queue id).
	RXBurst(rxQueue uint16, maxBurst int) ([]classify.Buffer, error)

	// TXBurst hands buffers[:n] to the NIC TX queue identified by
	// txQueue, the worker's index within the enabled-core table. It
	// returns how many were accepted; the caller frees the remainder
	// locally (spec.md §7).
	TXBurst(txQueue uint16, buffers []classify.Buffer) (accepted int, err error)

	// BindPool registers mac for the given pool's RX queue and enables
	// on-chip VLAN stripping on it, called when a guest enters DataRx.
	BindPool(poolID int, mac [6]byte) error

	// UnbindPool reverses BindPool, called on guest removal.
	UnbindPool(poolID int) error
}
