package worker

import (
	"github.com/jingkaihe/vswitch/pkg/classify"
	"github.com/jingkaihe/vswitch/pkg/nic"
)

// MaxPktBurst caps both a NIC burst and a per-core TX batch, matching
// spec.md §3's CoreBatch definition.
const MaxPktBurst = 32

// Batch is one worker's pending NIC TX batch: single-writer, touched only
// by the owning core's worker (spec.md §3/§5).
type Batch struct {
	TXQueueID uint16
	buffers   [MaxPktBurst]classify.Buffer
	len       int
}

// NewBatch returns an empty batch bound to txQueueID, the worker's index
// within the enabled-core table.
func NewBatch(txQueueID uint16) *Batch {
	return &Batch{TXQueueID: txQueueID}
}

// Append adds buf to the batch. It reports true if the batch is now full
// and must be flushed before any more packets can be appended.
func (b *Batch) Append(buf classify.Buffer) (full bool) {
	b.buffers[b.len] = buf
	b.len++
	return b.len >= MaxPktBurst
}

// Empty reports whether the batch currently holds no buffers.
func (b *Batch) Empty() bool { return b.len == 0 }

// Flush hands the batch to port's TX burst primitive and frees whatever the
// NIC refused, then resets the batch for reuse (spec.md §4.5 "Batch
// flush"). accepted is the number of buffers the NIC burst actually took,
// matching original_source's drain_virtio_tx() crediting tx_success from
// do_drain_mbuf_table()'s return value rather than the batch size.
func (b *Batch) Flush(port nic.Port) (accepted int, err error) {
	if b.len == 0 {
		return 0, nil
	}
	pending := b.buffers[:b.len]
	accepted, err = port.TXBurst(b.TXQueueID, pending)
	for i := accepted; i < b.len; i++ {
		pending[i].Free()
	}
	b.len = 0
	return accepted, err
}
