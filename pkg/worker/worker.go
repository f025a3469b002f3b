// Package worker implements the data-plane busy loop of spec.md §4.5: each
// worker owns two disjoint lists of guests (RX-from-NIC and TX-from-guest)
// and drives both every iteration, never sleeping and never taking a lock
// on the hot path.
package worker

import (
	"net"

	"github.com/jingkaihe/vswitch/pkg/classify"
	"github.com/jingkaihe/vswitch/pkg/control"
	"github.com/jingkaihe/vswitch/pkg/coordinator"
	"github.com/jingkaihe/vswitch/pkg/guest"
	"github.com/jingkaihe/vswitch/pkg/logging"
	"github.com/jingkaihe/vswitch/pkg/nic"
	"github.com/jingkaihe/vswitch/pkg/transport"
)

func macString(mac [6]byte) string {
	return net.HardwareAddr(mac[:]).String()
}

// Worker drives one enabled CPU core's share of guests.
type Worker struct {
	Core      *coordinator.Core
	TXQueueID uint16

	Registry    *guest.Registry
	Pools       *guest.PoolAllocator
	NumPools    int
	Port        nic.Port
	Transport   transport.Transport
	Classifier  *classify.Classifier
	Decoder     *control.Decoder
	Emitter     *logging.Emitter
	Coordinator *coordinator.Coordinator

	batch *Batch
}

// NewWorker returns a Worker with its per-core TX batch initialized.
// coord is used only to release a guest's RX core assignment once MAC
// learning resolves to Control (spec.md §4.4); it never touches guest
// lifecycle state itself.
func NewWorker(core *coordinator.Core, txQueueID uint16, registry *guest.Registry, pools *guest.PoolAllocator, numPools int, port nic.Port, tr transport.Transport, classifier *classify.Classifier, decoder *control.Decoder, emitter *logging.Emitter, coord *coordinator.Coordinator) *Worker {
	return &Worker{
		Core:        core,
		TXQueueID:   txQueueID,
		Registry:    registry,
		Pools:       pools,
		NumPools:    numPools,
		Port:        port,
		Transport:   tr,
		Classifier:  classifier,
		Decoder:     decoder,
		Emitter:     emitter,
		Coordinator: coord,
		batch:       NewBatch(txQueueID),
	}
}

// RunOnce executes exactly one iteration of the worker loop (spec.md §4.5
// steps 1-3). Run forever by calling this in a tight loop from a pinned
// goroutine; the loop itself never exits except by process signal.
func (w *Worker) RunOnce() {
	w.Core.AcknowledgeIfRequested()
	w.runRX()
	w.runTX()
}

func (w *Worker) runRX() {
	for _, id := range w.Core.SnapshotRX() {
		g, err := w.Registry.Get(id)
		if err != nil {
			continue
		}
		if g.RemoveRequested() {
			w.unlinkFromNIC(g)
			continue
		}
		if g.State() != guest.DataRx {
			continue
		}

		bufs, err := w.Port.RXBurst(g.RXQueue, MaxPktBurst)
		if err != nil {
			continue
		}
		accepted, _ := w.Transport.Enqueue(g.ID, transport.RX, bufs)
		for i := range bufs {
			g.Stats.AddRx(i < accepted)
		}
		for i := accepted; i < len(bufs); i++ {
			bufs[i].Free()
		}
	}
}

// unlinkFromNIC drains any residual RX burst for a guest whose removal has
// been requested, clearing its NIC-side pool bindings (spec.md §4.5 step 2).
func (w *Worker) unlinkFromNIC(g *guest.Guest) {
	if g.State() != guest.DataRx {
		return
	}
	bufs, err := w.Port.RXBurst(g.RXQueue, MaxPktBurst)
	if err == nil {
		for _, b := range bufs {
			b.Free()
		}
	}
	_ = w.Port.UnbindPool(g.PoolID)
}

func (w *Worker) runTX() {
	for _, id := range w.Core.SnapshotTX() {
		g, err := w.Registry.Get(id)
		if err != nil {
			continue
		}

		bufs, err := w.Transport.Dequeue(g.ID, transport.TX, MaxPktBurst)
		if err != nil {
			continue
		}

		switch g.State() {
		case guest.MacLearning:
			w.handleMacLearning(g, bufs)
		case guest.Control:
			w.handleControl(bufs)
		case guest.DataRx:
			w.handleData(g, bufs)
		default:
			for _, b := range bufs {
				b.Free()
			}
		}

		if !w.batch.Empty() {
			accepted, _ := w.batch.Flush(w.Port)
			if g.State() == guest.DataRx {
				g.Stats.AddTxSuccess(accepted)
			}
		}

		if g.RemoveRequested() {
			g.SetState(guest.SafeRemove)
		}
	}
}

func (w *Worker) handleMacLearning(g *guest.Guest, bufs []classify.Buffer) {
	if len(bufs) == 0 {
		return
	}
	first := bufs[0]
	data := first.Bytes()
	if len(data) >= 6 {
		var mac [6]byte
		copy(mac[:], data[6:12]) // source MAC, spec.md §4.4
		alreadyLogged := w.Pools.HasLoggedCollision()
		if err := w.Registry.Learn(g, mac, w.Pools, w.NumPools); err != nil {
			if w.Emitter != nil && !alreadyLogged && w.Pools.HasLoggedCollision() {
				poolID := guest.DerivePoolID(mac[5], w.NumPools)
				_ = w.Emitter.Emit(logging.EventPoolCollision,
					"MAC derived a pool id already bound to another guest", "worker", nil,
					&logging.PoolCollisionData{
						GuestID: g.ID,
						MAC:     macString(mac),
						PoolID:  poolID,
					})
			}
		}
		switch g.State() {
		case guest.DataRx:
			g.RXQueue = uint16(g.PoolID)
			_ = w.Port.BindPool(g.PoolID, mac)
		case guest.Control:
			// spec.md §4.4/S2: a control guest carries no wire traffic,
			// so its RX core slot is freed for data guests.
			if w.Coordinator != nil {
				w.Coordinator.ReleaseRXAssignment(g)
			}
		}
	}
	for _, b := range bufs {
		b.Free()
	}
}

func (w *Worker) handleControl(bufs []classify.Buffer) {
	for _, b := range bufs {
		_ = w.Decoder.Decode(b.Bytes())
		b.Free()
	}
}

func (w *Worker) handleData(g *guest.Guest, bufs []classify.Buffer) {
	for _, b := range bufs {
		g.Stats.AddTxAttempt()
		n, shaperDrop := w.Classifier.Classify(b, g.VLANTag, g.ID)
		if n == 0 {
			// Only a genuine shaper drop counts toward tx_dropped
			// (spec.md §7); no-match and cannot-tag returns just free
			// the buffer, leaving I6's "(unmatched drops)" bucket
			// implicit in tx_total - tx_tagged - tx_dropped.
			if shaperDrop {
				g.Stats.AddTxDropped()
			}
			b.Free()
			continue
		}
		g.Stats.AddTxTagged()
		// tx_success is credited from the NIC burst's actual accepted
		// count once the batch is flushed, not here (spec.md §7;
		// original_source's drain_virtio_tx()).
		if w.batch.Append(b) {
			accepted, _ := w.batch.Flush(w.Port)
			g.Stats.AddTxSuccess(accepted)
		}
	}
}
