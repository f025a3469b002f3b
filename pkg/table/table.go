package table

import "github.com/jingkaihe/vswitch/internal/errx"

// NumRows is the number of pool-indexed rows in a MatchingTable: row 0 is
// reserved for the control guest, rows 1..MaxPools belong to data guests
// (spec.md §3, §4.4 — row index equals vlan_tag, not the raw pool id).
const NumRows = MaxPools + 1

// MatchingTable is the single shared array of five-tuple rules and their
// embedded shaper state, indexed [row][slot]. Rules are installed only by
// the control-channel goroutine (Store), the owning worker updates a slot's
// shaper fields through Slot, and the coordinator clears a removed guest's
// row; all of this happens without any lock or atomic: spec.md §5 calls
// for readers to tolerate a torn read of an
// in-flight update rather than pay synchronization cost on the hot path, so
// this type deliberately exposes plain field access and no mutex.
type MatchingTable struct {
	rows [NumRows][EntriesPerGuest]MatchEntry
}

// NewMatchingTable returns an all-zero table; every slot's IsZero is true.
func NewMatchingTable() *MatchingTable {
	return &MatchingTable{}
}

// Row returns the slots for the given row (vlan_tag), for a reader to scan
// in slot order. The returned array is a copy: a caller that holds onto it
// across a concurrent Store sees a consistent (if possibly stale) snapshot.
func (t *MatchingTable) Row(row int) ([EntriesPerGuest]MatchEntry, error) {
	if row < 0 || row >= NumRows {
		return [EntriesPerGuest]MatchEntry{}, errx.With(ErrRowOutOfRange, ": row=%d", row)
	}
	return t.rows[row], nil
}

// Slot returns a pointer to one rule slot, for the data-plane worker to
// mutate in place when Shape debits tokens from it. The pointer aliases the
// table's backing storage; only the worker owning that row's guest should
// write through it.
func (t *MatchingTable) Slot(row, slot int) (*MatchEntry, error) {
	if row < 0 || row >= NumRows {
		return nil, errx.With(ErrRowOutOfRange, ": row=%d", row)
	}
	if slot < 0 || slot >= EntriesPerGuest {
		return nil, errx.With(ErrSlotOutOfRange, ": slot=%d", slot)
	}
	return &t.rows[row][slot], nil
}

// Store overwrites one rule slot. Only the control-channel goroutine calls
// this; it is the table's single writer per spec.md §5.
func (t *MatchingTable) Store(row, slot int, entry MatchEntry) error {
	if row < 0 || row >= NumRows {
		return errx.With(ErrRowOutOfRange, ": row=%d", row)
	}
	if slot < 0 || slot >= EntriesPerGuest {
		return errx.With(ErrSlotOutOfRange, ": slot=%d", slot)
	}
	t.rows[row][slot] = entry
	return nil
}

// Clear resets every slot in a row to its zero value, used when a guest is
// fully removed from its pool (spec.md §4.4 SafeRemove).
func (t *MatchingTable) Clear(row int) error {
	if row < 0 || row >= NumRows {
		return errx.With(ErrRowOutOfRange, ": row=%d", row)
	}
	t.rows[row] = [EntriesPerGuest]MatchEntry{}
	return nil
}

// Lookup scans row's slots in order and returns the first one whose
// five-tuple matches, mirroring the original's first-match-wins semantics
// (spec.md §4.1 step 1). ok is false if no slot matches or row is empty.
func (t *MatchingTable) Lookup(row int, protocol uint8, srcIP, dstIP [4]byte, srcPort, dstPort [2]byte) (slot int, ok bool) {
	if row < 0 || row >= NumRows {
		return 0, false
	}
	for i := range t.rows[row] {
		e := &t.rows[row][i]
		if e.IsZero() {
			continue
		}
		if e.Matches(protocol, srcIP, dstIP, srcPort, dstPort) {
			return i, true
		}
	}
	return 0, false
}
