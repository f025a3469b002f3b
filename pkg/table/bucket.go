package table

// Shape runs the refill-then-debit algorithm from spec.md §4.1 against a
// matched packet. now is the current clock.Source tick, cpuFreq is the
// clock's ticks-per-second, and ipv4TotalLength is the packet's IPv4
// total_length field. It returns true if the packet has enough tokens and
// should be forwarded, mutating NTokens/LastTSC either way.
//
// Invariant I1 (NTokens <= cpuFreq*BurstBits) holds after every call: the
// refill step saturates at capacity before the debit step ever runs.
func (e *MatchEntry) Shape(now, cpuFreq, ipv4TotalLength uint64) bool {
	delta := now - e.LastTSC
	refill := delta * e.RateBps
	if delta != 0 && refill/delta != e.RateBps {
		// Multiplicative overflow: treat as a long idle period and
		// saturate straight to a full bucket.
		refill = cpuFreq * e.BurstBits
	}
	e.LastTSC = now

	capacity := cpuFreq * e.BurstBits
	if e.NTokens+refill > capacity {
		e.NTokens = capacity
	} else {
		e.NTokens += refill
	}

	cost := shapingCost(cpuFreq, ipv4TotalLength, uint64(e.NTags))
	if e.NTokens >= cost {
		e.NTokens -= cost
		return true
	}
	return false
}

// shapingCost computes 8·cpu_freq·line_size where line_size accounts for
// preamble, Ethernet header, FCS, inter-frame gap, the IPv4 payload length,
// and the tags about to be pushed (spec.md §4.1 step 6).
func shapingCost(cpuFreq, ipv4TotalLength, nTags uint64) uint64 {
	const (
		preamble = 8
		ethernet = 14
		fcs      = 4
		ifg      = 12
	)
	lineSize := uint64(preamble+ethernet+fcs+ifg) + ipv4TotalLength + 4*nTags
	return 8 * cpuFreq * lineSize
}

// LoadFromControl applies the load-time adjustments spec.md §4.1/§4.3
// require when an entry arrives over the control channel: NTokens (given in
// real tokens) is scaled into the same cpuFreq-scaled unit the refill step
// uses, and LastTSC is stamped with the current tick to avoid a spurious
// refill on the next shaped packet.
func (e *MatchEntry) LoadFromControl(now, cpuFreq uint64) {
	e.NTokens *= cpuFreq
	e.LastTSC = now
}
