package worker

import (
	"testing"

	"github.com/jingkaihe/vswitch/pkg/classify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuf struct {
	data  []byte
	freed bool
}

func (f *fakeBuf) Bytes() []byte            { return f.data }
func (f *fakeBuf) RefCount() int            { return 1 }
func (f *fakeBuf) IsDirect() bool           { return true }
func (f *fakeBuf) Prepend(n int) bool       { return false }
func (f *fakeBuf) ClearVLANOffloadFlags()   {}
func (f *fakeBuf) HasTunnelOffload() bool   { return false }
func (f *fakeBuf) ExtendOuterL2(n int)      {}
func (f *fakeBuf) ExtendInnerL2(n int)      {}
func (f *fakeBuf) Free()                    { f.freed = true }

type fakePort struct {
	accept int
}

func (p *fakePort) RXBurst(rxQueue uint16, maxBurst int) ([]classify.Buffer, error) {
	return nil, nil
}
func (p *fakePort) TXBurst(txQueue uint16, buffers []classify.Buffer) (int, error) {
	n := p.accept
	if n > len(buffers) {
		n = len(buffers)
	}
	return n, nil
}
func (p *fakePort) BindPool(poolID int, mac [6]byte) error { return nil }
func (p *fakePort) UnbindPool(poolID int) error             { return nil }

func TestBatch_AppendAndFlush(t *testing.T) {
	b := NewBatch(0)
	port := &fakePort{accept: 1}

	buf1 := &fakeBuf{data: []byte{1}}
	buf2 := &fakeBuf{data: []byte{2}}

	full := b.Append(buf1)
	assert.False(t, full)
	b.Append(buf2)

	accepted, err := b.Flush(port)
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)
	assert.True(t, b.Empty())
	assert.False(t, buf1.freed)
	assert.True(t, buf2.freed, "NIC-refused tail buffer must be freed locally")
}

func TestBatch_FullAtMaxPktBurst(t *testing.T) {
	b := NewBatch(0)
	var full bool
	for i := 0; i < MaxPktBurst; i++ {
		full = b.Append(&fakeBuf{})
	}
	assert.True(t, full)
}
