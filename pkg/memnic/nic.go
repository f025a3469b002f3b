package memnic

import (
	"sync"

	"github.com/jingkaihe/vswitch/pkg/classify"
	"github.com/jingkaihe/vswitch/pkg/nic"
)

const queueDepth = 256

var _ nic.Port = (*NIC)(nil)

// NIC is an in-memory nic.Port. A tagged frame handed to TXBurst is
// demultiplexed by its outermost VLAN tag and, if it matches a currently
// bound pool, redelivered to that pool's RX queue — the loopback behavior
// spec.md §6 assumes of the real NIC ("guest-to-guest traffic returns via
// the NIC"). A frame matching no bound pool is silently dropped, standing
// in for traffic that actually leaves over the physical wire.
type NIC struct {
	mu         sync.Mutex
	rxQueues   map[uint16]chan *Buffer
	vlanToPool map[int]uint16
}

// NewNIC returns an empty loopback NIC.
func NewNIC() *NIC {
	return &NIC{
		rxQueues:   make(map[uint16]chan *Buffer),
		vlanToPool: make(map[int]uint16),
	}
}

func (n *NIC) BindPool(poolID int, mac [6]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	rxQueue := uint16(poolID)
	if _, ok := n.rxQueues[rxQueue]; !ok {
		n.rxQueues[rxQueue] = make(chan *Buffer, queueDepth)
	}
	n.vlanToPool[poolID+1] = rxQueue // spec.md §3: vlan_tag = pool_id+1
	return nil
}

func (n *NIC) UnbindPool(poolID int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.vlanToPool, poolID+1)
	if q, ok := n.rxQueues[uint16(poolID)]; ok {
		close(q)
		delete(n.rxQueues, uint16(poolID))
	}
	return nil
}

func (n *NIC) RXBurst(rxQueue uint16, maxBurst int) ([]classify.Buffer, error) {
	n.mu.Lock()
	q, ok := n.rxQueues[rxQueue]
	n.mu.Unlock()
	if !ok {
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

func (n *NIC) TXBurst(txQueue uint16, buffers []classify.Buffer) (int, error) {
	for _, b := range buffers {
		n.deliver(b)
	}
	return len(buffers), nil
}

// deliver inspects a tagged frame's outermost VLAN id and, if it matches a
// bound pool, copies it onto that pool's RX queue.
func (n *NIC) deliver(b classify.Buffer) {
	data := b.Bytes()
	if len(data) < 16 || data[12] != 0x81 || data[13] != 0x00 {
		return
	}
	vid := int(data[14]&0x0F)<<8 | int(data[15])

	n.mu.Lock()
	rxQueue, ok := n.vlanToPool[vid]
	var q chan *Buffer
	if ok {
		q = n.rxQueues[rxQueue]
	}
	n.mu.Unlock()
	if q == nil {
		return
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	select {
	case q <- NewBuffer(cp, 4*10): // headroom for up to 10 further tag pushes
	default: // queue full: drop, matching a real NIC's ring-buffer backpressure
	}
}
