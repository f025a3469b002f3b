package classify

import (
	"net"
	"testing"

	"github.com/jingkaihe/vswitch/pkg/clock"
	"github.com/jingkaihe/vswitch/pkg/logging"
	"github.com/jingkaihe/vswitch/pkg/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/header"
)

type fakeBuffer struct {
	backing     []byte
	start       int
	length      int
	refcount    int
	direct      bool
	tunnel      bool
	outerL2     int
	innerL2     int
	vlanCleared bool
	freed       bool
}

func newFakeBuffer(headroom int, payload []byte) *fakeBuffer {
	backing := make([]byte, headroom+len(payload))
	copy(backing[headroom:], payload)
	return &fakeBuffer{backing: backing, start: headroom, length: len(payload), refcount: 1, direct: true}
}

func (b *fakeBuffer) Bytes() []byte { return b.backing[b.start : b.start+b.length] }
func (b *fakeBuffer) RefCount() int { return b.refcount }
func (b *fakeBuffer) IsDirect() bool { return b.direct }
func (b *fakeBuffer) Prepend(n int) bool {
	if b.start < n {
		return false
	}
	b.start -= n
	b.length += n
	return true
}
func (b *fakeBuffer) ClearVLANOffloadFlags() { b.vlanCleared = true }
func (b *fakeBuffer) HasTunnelOffload() bool { return b.tunnel }
func (b *fakeBuffer) ExtendOuterL2(n int)    { b.outerL2 += n }
func (b *fakeBuffer) ExtendInnerL2(n int)    { b.innerL2 += n }
func (b *fakeBuffer) Free()                  { b.freed = true }

func buildUDPFrame(srcIP, dstIP net.IP, srcPort, dstPort uint16, payloadLen int) []byte {
	payload := make([]byte, payloadLen)

	udpLen := header.UDPMinimumSize + len(payload)
	totalLen := header.IPv4MinimumSize + udpLen

	buf := make([]byte, header.EthernetMinimumSize+totalLen)

	eth := header.Ethernet(buf)
	eth.Encode(&header.EthernetFields{
		SrcAddr: tcpip.LinkAddress([]byte{0x02, 0, 0, 0, 0, 1}),
		DstAddr: tcpip.LinkAddress([]byte{0x02, 0, 0, 0, 0, 2}),
		Type:    header.IPv4ProtocolNumber,
	})

	ip := header.IPv4(buf[header.EthernetMinimumSize:])
	ip.Encode(&header.IPv4Fields{
		TotalLength: uint16(totalLen),
		Protocol:    uint8(header.UDPProtocolNumber),
		TTL:         64,
		SrcAddr:     tcpip.AddrFromSlice(srcIP.To4()),
		DstAddr:     tcpip.AddrFromSlice(dstIP.To4()),
	})

	udp := header.UDP(buf[header.EthernetMinimumSize+header.IPv4MinimumSize:])
	udp.Encode(&header.UDPFields{
		SrcPort: srcPort,
		DstPort: dstPort,
		Length:  uint16(udpLen),
	})

	return buf
}

func beBytes(v uint16) [2]byte {
	return [2]byte{byte(v >> 8), byte(v)}
}

func TestClassify_MatchAndTagPush(t *testing.T) {
	tbl := table.NewMatchingTable()
	srcIP := net.IPv4(10, 0, 0, 1)
	dstIP := net.IPv4(10, 0, 0, 2)
	entry := table.MatchEntry{
		Protocol:  uint8(header.UDPProtocolNumber),
		SrcIP:     [4]byte{10, 0, 0, 1},
		DstIP:     [4]byte{10, 0, 0, 2},
		SrcPort:   beBytes(5000),
		DstPort:   beBytes(80),
		RateBps:   0,
		BurstBits: 1_000_000_000,
		NTokens:   clock.DefaultFrequency * 1_000_000_000,
		NTags:     2,
	}
	entry.Tags[0] = table.NewTag(0x8100, 10)
	entry.Tags[1] = table.NewTag(0x8100, 20)
	require.NoError(t, tbl.Store(3, 0, entry))

	c := &Classifier{Table: tbl, Clock: clock.Monotonic{}, CPUFreq: clock.DefaultFrequency}

	frame := buildUDPFrame(srcIP, dstIP, 5000, 80, 32)
	buf := newFakeBuffer(64, frame)

	n, shaperDrop := c.Classify(buf, 3, 1)

	require.Equal(t, 2, n)
	assert.False(t, shaperDrop)
	data := buf.Bytes()
	assert.Equal(t, frame[0:12], data[0:12], "MAC addresses preserved at front")

	tag0 := table.Tag{}
	copy(tag0[:], data[12:16])
	assert.Equal(t, entry.Tags[0], tag0)

	tag1 := table.Tag{}
	copy(tag1[:], data[16:20])
	assert.Equal(t, entry.Tags[1], tag1)

	assert.Equal(t, uint16(0x8100), table.Tag(tag0).EtherType())
	assert.True(t, buf.vlanCleared)
	assert.Equal(t, 8, buf.innerL2)
}

func TestClassify_NoMatchReturnsZero(t *testing.T) {
	tbl := table.NewMatchingTable()
	c := &Classifier{Table: tbl, Clock: clock.Monotonic{}, CPUFreq: clock.DefaultFrequency}

	frame := buildUDPFrame(net.IPv4(1, 1, 1, 1), net.IPv4(2, 2, 2, 2), 1, 2, 16)
	buf := newFakeBuffer(64, frame)

	n, shaperDrop := c.Classify(buf, 1, 1)
	assert.Equal(t, 0, n)
	assert.False(t, shaperDrop)
}

func TestClassify_NonIPv4ReturnsZero(t *testing.T) {
	tbl := table.NewMatchingTable()
	c := &Classifier{Table: tbl, Clock: clock.Monotonic{}, CPUFreq: clock.DefaultFrequency}

	frame := make([]byte, header.EthernetMinimumSize+20)
	eth := header.Ethernet(frame)
	eth.Encode(&header.EthernetFields{
		SrcAddr: tcpip.LinkAddress([]byte{0, 0, 0, 0, 0, 1}),
		DstAddr: tcpip.LinkAddress([]byte{0, 0, 0, 0, 0, 2}),
		Type:    header.IPv6ProtocolNumber,
	})
	buf := newFakeBuffer(64, frame)

	n, shaperDrop := c.Classify(buf, 1, 1)
	assert.Equal(t, 0, n)
	assert.False(t, shaperDrop)
}

func TestClassify_DropsWhenSharedBuffer(t *testing.T) {
	tbl := table.NewMatchingTable()
	entry := table.MatchEntry{
		Protocol:  uint8(header.UDPProtocolNumber),
		SrcIP:     [4]byte{10, 0, 0, 1},
		DstIP:     [4]byte{10, 0, 0, 2},
		SrcPort:   beBytes(5000),
		DstPort:   beBytes(80),
		BurstBits: 1_000_000_000,
		NTokens:   clock.DefaultFrequency * 1_000_000_000,
		NTags:     1,
	}
	entry.Tags[0] = table.NewTag(0x8100, 10)
	require.NoError(t, tbl.Store(2, 0, entry))

	c := &Classifier{Table: tbl, Clock: clock.Monotonic{}, CPUFreq: clock.DefaultFrequency}
	frame := buildUDPFrame(net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 0, 2), 5000, 80, 16)
	buf := newFakeBuffer(64, frame)
	buf.refcount = 2

	n, shaperDrop := c.Classify(buf, 2, 1)
	assert.Equal(t, 0, n)
	assert.False(t, shaperDrop, "shared-buffer cannot-tag is not a shaper drop")
}

type captureSink struct{ events []*logging.Event }

func (s *captureSink) Write(e *logging.Event) error { s.events = append(s.events, e); return nil }
func (s *captureSink) Close() error                 { return nil }

func TestClassify_ShaperDropEmitsEvent(t *testing.T) {
	tbl := table.NewMatchingTable()
	entry := table.MatchEntry{
		Protocol:  uint8(header.UDPProtocolNumber),
		SrcIP:     [4]byte{10, 0, 0, 1},
		DstIP:     [4]byte{10, 0, 0, 2},
		SrcPort:   beBytes(5000),
		DstPort:   beBytes(80),
		RateBps:   0,
		BurstBits: 0,
		NTokens:   0,
		NTags:     1,
	}
	entry.Tags[0] = table.NewTag(0x8100, 10)
	require.NoError(t, tbl.Store(5, 0, entry))

	captured := &captureSink{}
	emitter := logging.NewEmitter(logging.EmitterConfig{RunID: "t", AgentSystem: "test"}, captured)
	c := &Classifier{Table: tbl, Clock: clock.Monotonic{}, CPUFreq: clock.DefaultFrequency, Emitter: emitter}

	frame := buildUDPFrame(net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 0, 2), 5000, 80, 16)
	buf := newFakeBuffer(64, frame)

	n, shaperDrop := c.Classify(buf, 5, 42)

	assert.Equal(t, 0, n)
	assert.True(t, shaperDrop)
	require.Len(t, captured.events, 1)
	assert.Equal(t, logging.EventShaperDrop, captured.events[0].EventType)
}

func TestClassify_NoHeadroomFailsSilently(t *testing.T) {
	tbl := table.NewMatchingTable()
	entry := table.MatchEntry{
		Protocol:  uint8(header.UDPProtocolNumber),
		SrcIP:     [4]byte{10, 0, 0, 1},
		DstIP:     [4]byte{10, 0, 0, 2},
		SrcPort:   beBytes(5000),
		DstPort:   beBytes(80),
		BurstBits: 1_000_000_000,
		NTokens:   clock.DefaultFrequency * 1_000_000_000,
		NTags:     1,
	}
	entry.Tags[0] = table.NewTag(0x8100, 10)
	require.NoError(t, tbl.Store(4, 0, entry))

	c := &Classifier{Table: tbl, Clock: clock.Monotonic{}, CPUFreq: clock.DefaultFrequency}
	frame := buildUDPFrame(net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 0, 2), 5000, 80, 16)
	buf := newFakeBuffer(0, frame)

	n, shaperDrop := c.Classify(buf, 4, 1)
	assert.Equal(t, 0, n)
	assert.False(t, shaperDrop)
}
