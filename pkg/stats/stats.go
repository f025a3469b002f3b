// Package stats implements the per-guest counters of spec.md §4.6, split
// between the cross-core (atomic) half touched by a guest's RX worker and
// read by the coordinator, and the single-writer (plain) half touched only
// by the guest's TX worker.
package stats

import "sync/atomic"

// Guest holds one guest's counters.
type Guest struct {
	// RxTotal and RxSuccess are written by the guest's RX worker and read
	// by the coordinator on stats/destroy; both use atomic add.
	RxTotal   atomic.Uint64
	RxSuccess atomic.Uint64

	// TxTotal, TxTagged, TxSuccess, TxDropped are touched only by the
	// guest's own TX worker and use plain, non-atomic add.
	TxTotal   uint64
	TxTagged  uint64
	TxSuccess uint64
	TxDropped uint64
}

// AddRx records one NIC RX attempt and, if ok, one success, both atomically.
func (s *Guest) AddRx(ok bool) {
	s.RxTotal.Add(1)
	if ok {
		s.RxSuccess.Add(1)
	}
}

// AddTxAttempt records one dequeued TX packet, single-writer.
func (s *Guest) AddTxAttempt() { s.TxTotal++ }

// AddTxTagged records a successful classify+tag, single-writer.
func (s *Guest) AddTxTagged() { s.TxTagged++ }

// AddTxSuccess records n packets actually accepted by a NIC TX burst,
// single-writer; matches original_source's
// `tx_success += do_drain_mbuf_table(tx_q)`, crediting from the burst's
// real accepted count rather than the batch size offered to it.
func (s *Guest) AddTxSuccess(n int) { s.TxSuccess += uint64(n) }

// AddTxDropped records a shaper drop, single-writer. Buffers the NIC
// refuses are not counted here; they show as tx_tagged minus tx_success.
func (s *Guest) AddTxDropped() { s.TxDropped++ }

// Snapshot is a point-in-time, non-atomic copy of all counters, suitable
// for the USR1 dump; per spec.md §5 a torn read here is acceptable.
type Snapshot struct {
	RxTotal, RxSuccess                      uint64
	TxTotal, TxTagged, TxSuccess, TxDropped uint64
}

// Snapshot reads every counter once. The atomic half is read with Load; the
// plain half is read as-is, which may race with the owning TX worker — an
// accepted inconsistency, not a bug (spec.md §4.6).
func (s *Guest) Snapshot() Snapshot {
	return Snapshot{
		RxTotal:   s.RxTotal.Load(),
		RxSuccess: s.RxSuccess.Load(),
		TxTotal:   s.TxTotal,
		TxTagged:  s.TxTagged,
		TxSuccess: s.TxSuccess,
		TxDropped: s.TxDropped,
	}
}

// Reset zeroes every counter without synchronization, matching the
// USR2-style "transient inconsistency is acceptable" reset semantics of
// spec.md §4.6.
func (s *Guest) Reset() {
	s.RxTotal.Store(0)
	s.RxSuccess.Store(0)
	s.TxTotal = 0
	s.TxTagged = 0
	s.TxSuccess = 0
	s.TxDropped = 0
}
