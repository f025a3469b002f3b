package dump

import (
	"github.com/jingkaihe/vswitch/pkg/guest"
	"github.com/jingkaihe/vswitch/pkg/table"

	"github.com/fxamacker/cbor/v2"
)

// Snapshot is the CBOR-encodable form of the USR1 report, an alternative
// to the two text forms for callers that want a compact, typed dump
// (--dump-format=cbor) instead of parsing `parsable-` lines.
type Snapshot struct {
	Guests []GuestSnapshot `cbor:"guests"`
}

// GuestSnapshot pairs one guest's matching-table rows with its counters.
type GuestSnapshot struct {
	GuestID uint64             `cbor:"guest_id"`
	VLANTag int                `cbor:"vlan_tag"`
	MAC     [6]byte            `cbor:"mac"`
	RXQueue uint16             `cbor:"rx_queue"`
	TXCore  int                `cbor:"tx_core"`
	RXCore  int                `cbor:"rx_core"`
	Rows    []table.MatchEntry `cbor:"rows"`
	Stats   GuestStatsSnapshot `cbor:"stats"`
}

// GuestStatsSnapshot mirrors stats.Snapshot in a CBOR-friendly shape.
type GuestStatsSnapshot struct {
	RxTotal   uint64 `cbor:"rx_total"`
	RxSuccess uint64 `cbor:"rx_success"`
	TxTotal   uint64 `cbor:"tx_total"`
	TxTagged  uint64 `cbor:"tx_tagged"`
	TxSuccess uint64 `cbor:"tx_success"`
	TxDropped uint64 `cbor:"tx_dropped"`
}

// BuildSnapshot assembles a Snapshot from the live guest list and table,
// for guests currently in DataRx (the only state with meaningful rows).
func BuildSnapshot(guests []*guest.Guest, tbl *table.MatchingTable) Snapshot {
	var snap Snapshot
	for _, g := range guests {
		if g.State() != guest.DataRx {
			continue
		}
		row, err := tbl.Row(g.VLANTag)
		if err != nil {
			continue
		}
		s := g.Stats.Snapshot()
		snap.Guests = append(snap.Guests, GuestSnapshot{
			GuestID: g.ID,
			VLANTag: g.VLANTag,
			MAC:     g.MAC,
			RXQueue: g.RXQueue,
			TXCore:  g.TXCore,
			RXCore:  g.RXCore,
			Rows:    row[:],
			Stats: GuestStatsSnapshot{
				RxTotal:   s.RxTotal,
				RxSuccess: s.RxSuccess,
				TxTotal:   s.TxTotal,
				TxTagged:  s.TxTagged,
				TxSuccess: s.TxSuccess,
				TxDropped: s.TxDropped,
			},
		})
	}
	return snap
}

// MarshalCBOR encodes the current guest/table state as CBOR.
func MarshalCBOR(guests []*guest.Guest, tbl *table.MatchingTable) ([]byte, error) {
	return cbor.Marshal(BuildSnapshot(guests, tbl))
}
