package memnic

import (
	"sync"

	"github.com/jingkaihe/vswitch/pkg/classify"
	"github.com/jingkaihe/vswitch/pkg/transport"
)

var _ transport.Transport = (*Transport)(nil)

// Transport is an in-memory transport.Transport: each guest gets a pair of
// buffered channels standing in for its two virtqueues. RegisterGuest must
// be called before a worker dequeues/enqueues for that guest id, mirroring
// the real attach handshake spec.md §1 treats as an external collaborator.
type Transport struct {
	mu sync.RWMutex
	rx map[uint64]chan *Buffer // wire -> guest
	tx map[uint64]chan *Buffer // guest -> wire
}

func NewTransport() *Transport {
	return &Transport{
		rx: make(map[uint64]chan *Buffer),
		tx: make(map[uint64]chan *Buffer),
	}
}

// RegisterGuest allocates the two virtqueues for guestID.
func (t *Transport) RegisterGuest(guestID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rx[guestID] = make(chan *Buffer, queueDepth)
	t.tx[guestID] = make(chan *Buffer, queueDepth)
}

// UnregisterGuest tears down guestID's virtqueues. Any buffers still queued
// are dropped.
func (t *Transport) UnregisterGuest(guestID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if q, ok := t.rx[guestID]; ok {
		close(q)
		delete(t.rx, guestID)
	}
	if q, ok := t.tx[guestID]; ok {
		close(q)
		delete(t.tx, guestID)
	}
}

func (t *Transport) queue(guestID uint64, dir transport.Direction) chan *Buffer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if dir == transport.RX {
		return t.rx[guestID]
	}
	return t.tx[guestID]
}

func (t *Transport) Dequeue(guestID uint64, dir transport.Direction, maxBurst int) ([]classify.Buffer, error) {
	q := t.queue(guestID, dir)
	if q == nil {
		return nil, nil
	}

	out := make([]classify.Buffer, 0, maxBurst)
	for i := 0; i < maxBurst; i++ {
		select {
		case buf, ok := <-q:
			if !ok {
				return out, nil
			}
			out = append(out, buf)
		default:
			return out, nil
		}
	}
	return out, nil
}

func (t *Transport) Enqueue(guestID uint64, dir transport.Direction, buffers []classify.Buffer) (int, error) {
	q := t.queue(guestID, dir)
	if q == nil {
		return 0, nil
	}

	accepted := 0
	for _, b := range buffers {
		buf, ok := b.(*Buffer)
		if !ok {
			continue
		}
		select {
		case q <- buf:
			accepted++
		default: // virtqueue full: drop, matching real ring-buffer backpressure
		}
	}
	return accepted, nil
}

// SendFromGuest is how a demoguest.Guest injects a frame it is "sending",
// landing it on its TX virtqueue for a worker to dequeue.
func (t *Transport) SendFromGuest(guestID uint64, frame []byte) bool {
	t.mu.RLock()
	q, ok := t.tx[guestID]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case q <- NewBuffer(frame, 4*10):
		return true
	default:
		return false
	}
}

// RecvForGuest is how a demoguest.Guest polls for a frame the switch has
// delivered to its RX virtqueue. ok is false if nothing is queued.
func (t *Transport) RecvForGuest(guestID uint64) (frame []byte, ok bool) {
	t.mu.RLock()
	q, exists := t.rx[guestID]
	t.mu.RUnlock()
	if !exists {
		return nil, false
	}
	select {
	case buf, open := <-q:
		if !open {
			return nil, false
		}
		return buf.Bytes(), true
	default:
		return nil, false
	}
}
