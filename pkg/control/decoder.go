// Package control implements the in-band table-update channel described in
// spec.md §4.3: the control guest's TX stream carries ordinary Ethernet
// frames, and any frame whose EtherType equals a reserved sentinel is a
// matching-table update rather than data traffic.
package control

import (
	"github.com/jingkaihe/vswitch/internal/errx"
	"github.com/jingkaihe/vswitch/pkg/clock"
	"github.com/jingkaihe/vswitch/pkg/logging"
	"github.com/jingkaihe/vswitch/pkg/table"

	"golang.org/x/time/rate"
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/header"
)

// SentinelEtherType marks a control-guest frame as a table update rather
// than data traffic, on-wire value 0xbebe.
const SentinelEtherType tcpip.NetworkProtocolNumber = 0xbebe

const (
	poolIndexOffset = 0
	ruleSlotOffset  = 1
	entryOffset     = 2
)

// Decoder applies table-update frames to a MatchingTable. It is the table's
// single writer (spec.md §5): only one control guest's worker ever calls
// Decode for a given table.
type Decoder struct {
	Table   *table.MatchingTable
	Clock   clock.Source
	CPUFreq uint64

	// Limiter, if non-nil, caps the rate of accepted updates. The wire
	// protocol has no authentication (spec.md §4.3); this is this
	// repo's documented hardening against a compromised or malfunctioning
	// control guest hammering the table (see SPEC_FULL.md Q3), not a
	// substitute for real authentication.
	Limiter *rate.Limiter

	// Emitter, if non-nil, receives a control_update event for every
	// successfully applied table write.
	Emitter *logging.Emitter
}

// Decode inspects frame's Ethernet header. If the EtherType is not the
// sentinel, it returns ErrNotControlFrame and the caller drops the frame
// without further action, matching spec.md §4.3's "drop non-sentinel
// frames" rule. Otherwise it parses the pool index / rule slot / MatchEntry
// image and installs it, stamping LastTSC and scaling NTokens by CPUFreq.
func (d *Decoder) Decode(frame []byte) error {
	if len(frame) < header.EthernetMinimumSize {
		return ErrFrameTooShort
	}
	eth := header.Ethernet(frame)
	if eth.Type() != SentinelEtherType {
		return ErrNotControlFrame
	}

	if d.Limiter != nil && !d.Limiter.Allow() {
		return ErrRateLimited
	}

	payload := frame[header.EthernetMinimumSize:]
	if len(payload) < entryOffset+table.EntryWireLen() {
		return errx.With(ErrFrameTooShort, ": got %d want %d", len(payload), entryOffset+table.EntryWireLen())
	}

	row := int(payload[poolIndexOffset])
	slot := int(payload[ruleSlotOffset])

	entry, err := table.DecodeEntryWire(payload[entryOffset:])
	if err != nil {
		return err
	}

	entry.LoadFromControl(d.Clock.Now(), d.CPUFreq)

	if err := d.Table.Store(row, slot, entry); err != nil {
		return err
	}

	if d.Emitter != nil {
		_ = d.Emitter.Emit(logging.EventControlUpdate,
			"control table slot updated", "control", nil,
			&logging.ControlUpdateData{
				Row:       row,
				Slot:      slot,
				RateBps:   entry.RateBps,
				BurstBits: entry.BurstBits,
				NTags:     entry.NTags,
			})
	}
	return nil
}
