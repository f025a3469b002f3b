// Package switchctx assembles the single switch context referenced in
// spec.md's Design Notes §9: one value, built once at startup, that owns
// the matching table, the guest registry, the pool allocator, and the
// per-core coordinator, and hands out the references workers need.
package switchctx

import (
	"github.com/jingkaihe/vswitch/pkg/classify"
	"github.com/jingkaihe/vswitch/pkg/clock"
	"github.com/jingkaihe/vswitch/pkg/control"
	"github.com/jingkaihe/vswitch/pkg/coordinator"
	"github.com/jingkaihe/vswitch/pkg/guest"
	"github.com/jingkaihe/vswitch/pkg/logging"
	"github.com/jingkaihe/vswitch/pkg/nic"
	"github.com/jingkaihe/vswitch/pkg/table"
	"github.com/jingkaihe/vswitch/pkg/transport"
	"github.com/jingkaihe/vswitch/pkg/worker"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Config carries the switch-wide settings a Context is built from, sourced
// from the CLI/viper layer in cmd/vswitch.
type Config struct {
	NumCores int
	NumPools int
	CPUFreq  uint64

	DoTag   bool
	DoShape bool

	// ControlRateLimit caps accepted control-channel updates per second,
	// per spec.md's Q3 hardening (zero disables the limiter).
	ControlRateLimit rate.Limit
	ControlBurst     int

	Port      nic.Port
	Transport transport.Transport
	Emitter   *logging.Emitter
}

// Context is the switch's single top-level value. It is safe to read its
// exported fields concurrently once Build has returned. Afterward the
// Coordinator changes guest lists and releases pools, workers acquire pools
// during MAC learning, and the Decoder writes table slots.
type Context struct {
	Config Config

	Table       *table.MatchingTable
	Pools       *guest.PoolAllocator
	Registry    *guest.Registry
	Coordinator *coordinator.Coordinator
	Clock       clock.Source

	Classifier *classify.Classifier
	Decoder    *control.Decoder
}

// Build wires a Context from cfg. It does not start any worker loops;
// callers (cmd/vswitch) spawn one Worker per enabled core against the
// returned Context.
func Build(cfg Config) (*Context, error) {
	clk := clock.Monotonic{}

	tbl := table.NewMatchingTable()
	pools := guest.NewPoolAllocator(cfg.NumPools)
	registry := guest.NewRegistry()

	coord, err := coordinator.New(cfg.NumCores, registry, pools, tbl)
	if err != nil {
		return nil, err
	}

	classifier := &classify.Classifier{
		Table:     tbl,
		Clock:     clk,
		CPUFreq:   cfg.CPUFreq,
		SkipShape: !cfg.DoShape,
		SkipTag:   !cfg.DoTag,
		Emitter:   cfg.Emitter,
	}

	var limiter *rate.Limiter
	if cfg.ControlRateLimit > 0 {
		limiter = rate.NewLimiter(cfg.ControlRateLimit, cfg.ControlBurst)
	}
	decoder := &control.Decoder{
		Table:   tbl,
		Clock:   clk,
		CPUFreq: cfg.CPUFreq,
		Limiter: limiter,
		Emitter: cfg.Emitter,
	}

	return &Context{
		Config:      cfg,
		Table:       tbl,
		Pools:       pools,
		Registry:    registry,
		Coordinator: coord,
		Clock:       clk,
		Classifier:  classifier,
		Decoder:     decoder,
	}, nil
}

// Workers builds one Worker per enabled core, ready for the caller to run
// each in its own pinned goroutine. Core 0 doubles as the single TX core
// (spec.md §4.4), so every worker shares the same TX queue id convention
// the coordinator assigned at AddGuest time.
func (c *Context) Workers() []*worker.Worker {
	cores := c.Coordinator.Cores()
	workers := make([]*worker.Worker, len(cores))
	for i, core := range cores {
		workers[i] = worker.NewWorker(
			core,
			uint16(core.ID),
			c.Registry,
			c.Pools,
			c.Config.NumPools,
			c.Config.Port,
			c.Config.Transport,
			c.Classifier,
			c.Decoder,
			c.Config.Emitter,
			c.Coordinator,
		)
	}
	return workers
}

// AddGuest wires a newly attached guest-transport socket into the switch,
// emitting a guest_lifecycle event if an Emitter is configured.
func (c *Context) AddGuest() *guest.Guest {
	g := c.Coordinator.AddGuest()
	if c.Config.Emitter != nil {
		_ = c.Config.Emitter.Emit(logging.EventGuestLifecycle,
			"guest attached, entering MacLearning", "switchctx", nil,
			&logging.GuestLifecycleData{
				GuestID:       g.ID,
				CorrelationID: uuid.New().String(),
				FromState:     "none",
				ToState:       g.State().String(),
				PoolID:        g.PoolID,
			})
	}
	return g
}

// RemoveGuest runs the coordinator's removal protocol and emits a
// guest_removed event.
func (c *Context) RemoveGuest(g *guest.Guest) {
	poolID := g.PoolID
	c.Coordinator.Remove(g)
	if c.Config.Emitter != nil {
		_ = c.Config.Emitter.Emit(logging.EventGuestRemoved,
			"guest removed", "switchctx", nil,
			&logging.GuestRemovedData{GuestID: g.ID, PoolID: poolID})
	}
}
