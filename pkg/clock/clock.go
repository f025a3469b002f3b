// Package clock supplies the monotonic tick source the token bucket scales
// its accounting against. Real TSC access (RDTSC) has no portable Go
// equivalent without per-architecture assembly, so the default source reads
// the runtime's monotonic clock in nanoseconds and treats cpu_freq as
// ticks-per-second, which reproduces the same scaled-integer arithmetic the
// original TSC-based design relies on (see SPEC_FULL.md, Q1).
package clock

import "time"

// Source yields monotonically non-decreasing ticks, analogous to rte_rdtsc().
type Source interface {
	// Now returns the current tick count.
	Now() uint64
}

// Monotonic is the default Source: nanoseconds since an arbitrary epoch.
type Monotonic struct{}

// epoch anchors Monotonic; time.Since reads its monotonic clock reading, so
// wall-clock steps do not move Now backwards.
var epoch = time.Now()

// Now implements Source.
func (Monotonic) Now() uint64 {
	return uint64(time.Since(epoch))
}

// DefaultFrequency is the tick rate, in ticks per second, matching Monotonic.
// Pass this as a MatchEntry/MatchingTable's cpu_freq unless a real TSC
// frequency is plugged in via a custom Source.
const DefaultFrequency uint64 = 1_000_000_000
