package dump

import (
	"regexp"
	"testing"

	"github.com/jingkaihe/vswitch/pkg/table"

	"github.com/stretchr/testify/assert"
)

// TestMatchingTableLine_MatchesS6Regex reproduces scenario S3/S6 from
// spec.md §8: a control frame installing protocol=6, 10.0.0.1->10.0.0.2,
// ports 1000->2000, n_tags=2, burst_bits=1e6, rate_bps=1e9, tags (100,200).
func TestMatchingTableLine_MatchesS6Regex(t *testing.T) {
	e := table.MatchEntry{
		Protocol:  6,
		SrcIP:     [4]byte{10, 0, 0, 1},
		DstIP:     [4]byte{10, 0, 0, 2},
		SrcPort:   [2]byte{0x03, 0xE8},
		DstPort:   [2]byte{0x07, 0xD0},
		BurstBits: 1_000_000,
		RateBps:   1_000_000_000,
		NTags:     2,
	}
	e.Tags[0] = table.NewTag(0x8100, 100)
	e.Tags[1] = table.NewTag(0x8100, 200)

	line := MatchingTableLine(7, 0, e)

	re := regexp.MustCompile(`^parsable-matching_table=\d+-0-6-10\.0\.0\.1-10\.0\.0\.2-1000-2000-2-1000000-1000000000-100,200,0,0,0,0,0,0,0,0$`)
	assert.Regexp(t, re, line)
}
