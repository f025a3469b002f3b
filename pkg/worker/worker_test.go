package worker

import (
	"testing"
	"time"

	"github.com/jingkaihe/vswitch/pkg/classify"
	"github.com/jingkaihe/vswitch/pkg/clock"
	"github.com/jingkaihe/vswitch/pkg/control"
	"github.com/jingkaihe/vswitch/pkg/coordinator"
	"github.com/jingkaihe/vswitch/pkg/guest"
	"github.com/jingkaihe/vswitch/pkg/logging"
	"github.com/jingkaihe/vswitch/pkg/table"
	"github.com/jingkaihe/vswitch/pkg/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	txQueues map[uint64][]classify.Buffer
}

func (t *fakeTransport) Dequeue(guestID uint64, dir transport.Direction, maxBurst int) ([]classify.Buffer, error) {
	bufs := t.txQueues[guestID]
	if len(bufs) > maxBurst {
		bufs = bufs[:maxBurst]
	}
	delete(t.txQueues, guestID)
	return bufs, nil
}

func (t *fakeTransport) Enqueue(guestID uint64, dir transport.Direction, buffers []classify.Buffer) (int, error) {
	return len(buffers), nil
}

func ethernetFrame(srcMAC [6]byte) []byte {
	buf := make([]byte, 14)
	copy(buf[6:12], srcMAC[:])
	return buf
}

func newTestWorker(t *testing.T) (*Worker, *guest.Registry, *coordinator.Coordinator) {
	t.Helper()
	reg := guest.NewRegistry()
	pools := guest.NewPoolAllocator(8)
	tbl := table.NewMatchingTable()
	coord, err := coordinator.New(1, reg, pools, tbl)
	require.NoError(t, err)

	port := &fakePort{}
	tr := &fakeTransport{txQueues: map[uint64][]classify.Buffer{}}
	classifier := &classify.Classifier{Table: tbl, Clock: clock.Monotonic{}, CPUFreq: clock.DefaultFrequency}
	decoder := &control.Decoder{Table: tbl, Clock: clock.Monotonic{}, CPUFreq: clock.DefaultFrequency}

	w := NewWorker(coord.Cores()[0], 0, reg, pools, 8, port, tr, classifier, decoder, nil, coord)
	return w, reg, coord
}

func TestWorker_MacLearningTransitionsToDataRx(t *testing.T) {
	w, _, coord := newTestWorker(t)
	g := coord.AddGuest()

	tr := w.Transport.(*fakeTransport)
	tr.txQueues[g.ID] = []classify.Buffer{&fakeBuf{data: ethernetFrame([6]byte{0, 0, 0, 0, 0, 5})}}

	w.RunOnce()

	assert.Equal(t, guest.DataRx, g.State())
	assert.Equal(t, 4, g.PoolID)
}

func TestWorker_MacLearningToControl(t *testing.T) {
	w, _, coord := newTestWorker(t)
	g := coord.AddGuest()

	tr := w.Transport.(*fakeTransport)
	tr.txQueues[g.ID] = []classify.Buffer{&fakeBuf{data: ethernetFrame([6]byte{0, 0, 0, 0, 0, 0})}}

	w.RunOnce()

	assert.Equal(t, guest.Control, g.State())
}

type captureSink struct{ events []*logging.Event }

func (s *captureSink) Write(e *logging.Event) error { s.events = append(s.events, e); return nil }
func (s *captureSink) Close() error                 { return nil }

func TestWorker_PoolCollisionEmitsEventOnce(t *testing.T) {
	w, _, coord := newTestWorker(t)
	captured := &captureSink{}
	w.Emitter = logging.NewEmitter(logging.EmitterConfig{RunID: "t", AgentSystem: "test"}, captured)

	g1 := coord.AddGuest()
	g2 := coord.AddGuest()

	tr := w.Transport.(*fakeTransport)
	mac := [6]byte{0, 0, 0, 0, 0, 5}
	tr.txQueues[g1.ID] = []classify.Buffer{&fakeBuf{data: ethernetFrame(mac)}}
	tr.txQueues[g2.ID] = []classify.Buffer{&fakeBuf{data: ethernetFrame(mac)}}

	w.RunOnce()

	states := []guest.State{g1.State(), g2.State()}
	assert.Contains(t, states, guest.DataRx)
	assert.Contains(t, states, guest.MacLearning)

	require.Len(t, captured.events, 1)
	assert.Equal(t, logging.EventPoolCollision, captured.events[0].EventType)
}

func TestWorker_AcknowledgesRemovalRequest(t *testing.T) {
	w, reg, coord := newTestWorker(t)
	core := coord.Cores()[0]

	// Drive a real removal: Remove only returns once this core's worker
	// has moved the guest to SafeRemove and acknowledged the rendezvous.
	g := coord.AddGuest()
	done := make(chan struct{})
	go func() {
		coord.Remove(g)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for running := true; running; {
		select {
		case <-done:
			running = false
		case <-deadline:
			t.Fatal("worker never acknowledged the removal request")
		default:
			w.RunOnce()
		}
	}

	assert.Equal(t, guest.SafeRemove, g.State())
	assert.Equal(t, coordinator.Idle, core.Flag())
	_, err := reg.Get(g.ID)
	assert.Error(t, err)
}
