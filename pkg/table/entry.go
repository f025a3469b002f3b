package table

import (
	"encoding/binary"

	"github.com/jingkaihe/vswitch/internal/errx"
)

const (
	// MaxPools bounds the pool-tag dimension of the matching table; row 0
	// is reserved (unused by any data guest) per spec.md §3.
	MaxPools = 64

	// EntriesPerGuest is the number of five-tuple rule slots searched, in
	// order, for each guest.
	EntriesPerGuest = 3

	// MaxTags is the largest number of VLAN-style tags a single rule may push.
	MaxTags = 10

	// tagWireLen is the on-wire size, in bytes, of one Tag (EtherType + VID).
	tagWireLen = 4

	// entryWireLen is the tightly-packed on-wire size of a MatchEntry as
	// carried in a control frame, with no padding between fields.
	entryWireLen = 1 + 4 + 4 + 2 + 2 + 8 + 8 + 8 + 8 + 2 + MaxTags*tagWireLen
)

// Tag is one on-wire VLAN-style tag: a 2-byte EtherType followed by a
// 2-byte VID, both in network byte order, copied verbatim into the packet.
type Tag [tagWireLen]byte

// NewTag builds a Tag from host values, encoding them on-wire (big-endian).
func NewTag(etherType, vid uint16) Tag {
	var t Tag
	binary.BigEndian.PutUint16(t[0:2], etherType)
	binary.BigEndian.PutUint16(t[2:4], vid)
	return t
}

// EtherType decodes the tag's EtherType field.
func (t Tag) EtherType() uint16 { return binary.BigEndian.Uint16(t[0:2]) }

// VID decodes the tag's VLAN id field.
func (t Tag) VID() uint16 { return binary.BigEndian.Uint16(t[2:4]) }

// MatchEntry is one five-tuple rule plus its embedded token-bucket state.
// Fields that participate in the packet match are kept in their on-wire
// (network) byte order so matching is a byte-exact comparison, per
// spec.md §4.1; the shaper's own bookkeeping fields are host values.
type MatchEntry struct {
	Protocol uint8
	SrcIP    [4]byte
	DstIP    [4]byte
	SrcPort  [2]byte
	DstPort  [2]byte

	RateBps   uint64
	BurstBits uint64
	NTokens   uint64
	LastTSC   uint64

	NTags uint16
	Tags  [MaxTags]Tag
}

// IsZero reports whether the entry has never been loaded (all-zero), the
// initial state of every slot at startup.
func (e *MatchEntry) IsZero() bool {
	return *e == MatchEntry{}
}

// Matches reports whether the packet's five-tuple exactly equals this
// entry's, comparing each field independently and in on-wire order (the
// portable reformulation of the original's contiguous-struct memcmp; see
// DESIGN.md).
func (e *MatchEntry) Matches(protocol uint8, srcIP, dstIP [4]byte, srcPort, dstPort [2]byte) bool {
	return e.Protocol == protocol &&
		e.SrcIP == srcIP &&
		e.DstIP == dstIP &&
		e.SrcPort == srcPort &&
		e.DstPort == dstPort
}

// EncodeWire serializes the entry into the tightly-packed on-wire image
// used by control frames (spec.md §6). Multi-byte rate/burst/token/tsc/tag
// fields are written little-endian (this repo's concrete resolution of
// "host-endian"); tags are copied as stored, in network byte order.
func (e *MatchEntry) EncodeWire() []byte {
	buf := make([]byte, entryWireLen)
	off := 0
	buf[off] = e.Protocol
	off++
	copy(buf[off:off+4], e.SrcIP[:])
	off += 4
	copy(buf[off:off+4], e.DstIP[:])
	off += 4
	copy(buf[off:off+2], e.SrcPort[:])
	off += 2
	copy(buf[off:off+2], e.DstPort[:])
	off += 2
	binary.LittleEndian.PutUint64(buf[off:off+8], e.RateBps)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:off+8], e.BurstBits)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:off+8], e.NTokens)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:off+8], e.LastTSC)
	off += 8
	binary.LittleEndian.PutUint16(buf[off:off+2], e.NTags)
	off += 2
	for i := range e.Tags {
		copy(buf[off:off+tagWireLen], e.Tags[i][:])
		off += tagWireLen
	}
	return buf
}

// DecodeEntryWire parses the tightly-packed on-wire image produced by
// EncodeWire. It does not touch LastTSC/NTokens scaling; callers apply the
// load-time adjustments described in spec.md §4.1/§4.3 (see control.Decoder).
func DecodeEntryWire(data []byte) (MatchEntry, error) {
	if len(data) < entryWireLen {
		return MatchEntry{}, errx.With(ErrWireTooShort, ": got %d want %d", len(data), entryWireLen)
	}

	var e MatchEntry
	off := 0
	e.Protocol = data[off]
	off++
	copy(e.SrcIP[:], data[off:off+4])
	off += 4
	copy(e.DstIP[:], data[off:off+4])
	off += 4
	copy(e.SrcPort[:], data[off:off+2])
	off += 2
	copy(e.DstPort[:], data[off:off+2])
	off += 2
	e.RateBps = binary.LittleEndian.Uint64(data[off : off+8])
	off += 8
	e.BurstBits = binary.LittleEndian.Uint64(data[off : off+8])
	off += 8
	e.NTokens = binary.LittleEndian.Uint64(data[off : off+8])
	off += 8
	e.LastTSC = binary.LittleEndian.Uint64(data[off : off+8])
	off += 8
	e.NTags = binary.LittleEndian.Uint16(data[off : off+2])
	off += 2
	if e.NTags > MaxTags {
		return MatchEntry{}, errx.With(ErrTooManyTags, ": n_tags=%d", e.NTags)
	}
	for i := range e.Tags {
		copy(e.Tags[i][:], data[off:off+tagWireLen])
		off += tagWireLen
	}
	return e, nil
}

// EntryWireLen is the fixed size, in bytes, of a MatchEntry's on-wire image.
func EntryWireLen() int { return entryWireLen }
