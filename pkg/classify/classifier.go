// Package classify implements the per-packet acceptance test and VLAN-style
// tag push described in spec.md §4.2: given an owned packet buffer and the
// guest's matching-table row, it decides whether the packet matches a
// shaped rule and, if so, rewrites the buffer in place with that rule's
// tags.
package classify

import (
	"github.com/jingkaihe/vswitch/pkg/clock"
	"github.com/jingkaihe/vswitch/pkg/logging"
	"github.com/jingkaihe/vswitch/pkg/table"

	"gvisor.dev/gvisor/pkg/tcpip/header"
)

// Classifier ties a matching table and clock source together so Classify
// can both look up a rule and run its token bucket.
type Classifier struct {
	Table   *table.MatchingTable
	Clock   clock.Source
	CPUFreq uint64

	// SkipShape disables the token-bucket accept/reject check (--do-shape=0):
	// a matched entry unconditionally passes. The bucket still runs (refill,
	// and a debit whenever it holds enough tokens for the packet) so it
	// stays meaningful if shaping is re-enabled later. Zero
	// value (false) is the normal, shaping-enabled behavior.
	SkipShape bool
	// SkipTag disables the tag-push buffer rewrite (--do-tag=0): a
	// matched, shaped packet is still considered forwardable (Classify
	// returns the tag count it would have pushed) but the buffer is left
	// untouched, per the do_tag=0 decision recorded in DESIGN.md. Zero
	// value (false) is the normal, tagging-enabled behavior.
	SkipTag bool

	// Emitter, if non-nil, receives a shaper_drop event whenever a matched
	// entry's token bucket rejects a packet.
	Emitter *logging.Emitter
}

// Classify runs the acceptance predicate against buf and, on a match that
// survives shaping, pushes that rule's tags. It returns the number of tags
// pushed; 0 means the caller must not forward buf, and buf is left
// untouched except for token-bucket bookkeeping on the matched entry.
// shaperDrop distinguishes why tags is 0: true only when a matched entry's
// token bucket rejected the packet (spec.md §7's "shaper drop" bucket,
// counted in tx_dropped); false for every other zero-return reason (no
// match, no tags configured, or a shared/indirect buffer that cannot be
// tagged — spec.md §7's "cannot tag" case, which is not counted in
// tx_dropped). guestID is used only to label a shaper_drop event; it has
// no effect on the classification itself.
func (c *Classifier) Classify(buf Buffer, row int, guestID uint64) (tags int, shaperDrop bool) {
	data := buf.Bytes()
	if len(data) < header.EthernetMinimumSize {
		return 0, false
	}
	eth := header.Ethernet(data)
	if eth.Type() != header.IPv4ProtocolNumber {
		return 0, false
	}

	l3 := data[header.EthernetMinimumSize:]
	if len(l3) < header.IPv4MinimumSize {
		return 0, false
	}
	ip := header.IPv4(l3)
	proto := ip.TransportProtocol()

	var srcPort, dstPort [2]byte
	switch proto {
	case header.TCPProtocolNumber:
		l4 := l3[ip.HeaderLength():]
		if len(l4) < header.TCPMinimumSize {
			return 0, false
		}
		tcp := header.TCP(l4)
		putPort(srcPort[:], tcp.SourcePort())
		putPort(dstPort[:], tcp.DestinationPort())
	case header.UDPProtocolNumber:
		l4 := l3[ip.HeaderLength():]
		if len(l4) < header.UDPMinimumSize {
			return 0, false
		}
		udp := header.UDP(l4)
		putPort(srcPort[:], udp.SourcePort())
		putPort(dstPort[:], udp.DestinationPort())
	default:
		return 0, false
	}

	srcIP := ip.SourceAddress().As4()
	dstIP := ip.DestinationAddress().As4()

	slotIdx, ok := c.Table.Lookup(row, uint8(proto), srcIP, dstIP, srcPort, dstPort)
	if !ok {
		return 0, false
	}
	entry, err := c.Table.Slot(row, slotIdx)
	if err != nil {
		return 0, false
	}

	shaped := entry.Shape(c.Clock.Now(), c.CPUFreq, uint64(ip.TotalLength()))
	if !shaped && !c.SkipShape {
		if c.Emitter != nil {
			_ = c.Emitter.Emit(logging.EventShaperDrop,
				"packet dropped by token bucket", "classify", nil,
				&logging.ShaperDropData{GuestID: guestID, Row: row, Slot: slotIdx})
		}
		return 0, true
	}

	k := int(entry.NTags)
	if k == 0 {
		return 0, false
	}

	if c.SkipTag {
		return k, false
	}

	if buf.RefCount() != 1 || !buf.IsDirect() {
		return 0, false
	}

	headroom := 4 * k
	if !buf.Prepend(headroom) {
		return 0, false
	}

	pushTags(buf.Bytes(), headroom, entry.Tags[:k])

	buf.ClearVLANOffloadFlags()
	if buf.HasTunnelOffload() {
		buf.ExtendOuterL2(headroom)
	} else {
		buf.ExtendInnerL2(headroom)
	}

	return k, false
}

// pushTags performs the buffer rewrite described in spec.md §4.2: move the
// two MAC addresses into the headroom just opened up, then write the tag
// array immediately after them. The original EtherType and everything past
// it already sits at the correct offset (12+headroom) because Prepend only
// shifts the start-of-data pointer; nothing after the MACs needs to move.
func pushTags(data []byte, headroom int, tags []table.Tag) {
	const macLen = 12
	copy(data[0:macLen], data[headroom:headroom+macLen])
	for i, tag := range tags {
		off := macLen + 4*i
		copy(data[off:off+4], tag[:])
	}
}

func putPort(dst []byte, port uint16) {
	dst[0] = byte(port >> 8)
	dst[1] = byte(port)
}
