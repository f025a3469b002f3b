// Package dump renders the USR1 matching-table/statistics report of
// spec.md §6: a human-readable table plus a machine-parsable form prefixed
// parsable-matching_table= / parsable-stats=.
package dump

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/jingkaihe/vswitch/pkg/guest"
	"github.com/jingkaihe/vswitch/pkg/table"
)

// MatchingTableLine formats one (vid, slot, entry) row exactly as
// `parsable-matching_table=<vid>-<slot>-<protocol>-<src_ip>-<dst_ip>-<src_port>-<dst_port>-<n_tags>-<burst_bits>-<rate_bps>-<tags_csv>`,
// where tags_csv is the 10 tag VIDs, zero-padded past n_tags.
func MatchingTableLine(vid int, slot int, e table.MatchEntry) string {
	srcIP := net.IP(e.SrcIP[:]).String()
	dstIP := net.IP(e.DstIP[:]).String()
	srcPort := uint16(e.SrcPort[0])<<8 | uint16(e.SrcPort[1])
	dstPort := uint16(e.DstPort[0])<<8 | uint16(e.DstPort[1])

	tagVIDs := make([]string, table.MaxTags)
	for i := 0; i < table.MaxTags; i++ {
		if i < int(e.NTags) {
			tagVIDs[i] = strconv.Itoa(int(e.Tags[i].VID()))
		} else {
			tagVIDs[i] = "0"
		}
	}

	return fmt.Sprintf("parsable-matching_table=%d-%d-%d-%s-%s-%d-%d-%d-%d-%d-%s",
		vid, slot, e.Protocol, srcIP, dstIP, srcPort, dstPort, e.NTags, e.BurstBits, e.RateBps, strings.Join(tagVIDs, ","))
}

// StatsLine formats one guest's counters as
// `parsable-stats=<vid>-<vlan_tag>-<mac>-<rx_queue>-<tx_core>/<rx_core>-<rx_total>-<rx_success>-<tx_total>-<tx_success>-<tx_tagged>-<tx_dropped>`.
func StatsLine(g *guest.Guest) string {
	s := g.Stats.Snapshot()
	return fmt.Sprintf("parsable-stats=%d-%d-%02x:%02x:%02x:%02x:%02x:%02x-%d-%d/%d-%d-%d-%d-%d-%d-%d",
		g.ID, g.VLANTag,
		g.MAC[0], g.MAC[1], g.MAC[2], g.MAC[3], g.MAC[4], g.MAC[5],
		g.RXQueue, g.TXCore, g.RXCore,
		s.RxTotal, s.RxSuccess, s.TxTotal, s.TxSuccess, s.TxTagged, s.TxDropped)
}

// WriteMatchingTable writes both the human-readable and parsable forms of
// the matching table for every DataRx guest in guests.
func WriteMatchingTable(w io.Writer, guests []*guest.Guest, tbl *table.MatchingTable) {
	fmt.Fprintln(w, "**Matching table**")
	fmt.Fprintf(w, "%-5s %-5s %-4s %-16s %-16s %-7s %-7s %-7s %-13s %-13s %s\n",
		"vID", "rule", "pro", "ip_source", "ip_destination", "sport", "dport", "n_tags", "burst_bits", "rate_bps", "tags_list")

	for _, g := range guests {
		if g.State() != guest.DataRx {
			continue
		}
		row, err := tbl.Row(g.VLANTag)
		if err != nil {
			continue
		}
		for slot, e := range row {
			fmt.Fprintf(w, "%5d %5d %4d %16s %16s %7d %7d %7d %13d %13d %s\n",
				g.ID, slot, e.Protocol,
				net.IP(e.SrcIP[:]).String(), net.IP(e.DstIP[:]).String(),
				uint16(e.SrcPort[0])<<8|uint16(e.SrcPort[1]),
				uint16(e.DstPort[0])<<8|uint16(e.DstPort[1]),
				e.NTags, e.BurstBits, e.RateBps,
				tagListString(e))
		}
	}

	for _, g := range guests {
		if g.State() != guest.DataRx {
			continue
		}
		row, err := tbl.Row(g.VLANTag)
		if err != nil {
			continue
		}
		for slot, e := range row {
			fmt.Fprintln(w, MatchingTableLine(int(g.ID), slot, e))
		}
	}
}

func tagListString(e table.MatchEntry) string {
	parts := make([]string, table.MaxTags)
	for i := 0; i < table.MaxTags; i++ {
		if i < int(e.NTags) {
			parts[i] = strconv.Itoa(int(e.Tags[i].VID()))
		} else {
			parts[i] = "0"
		}
	}
	return strings.Join(parts, ",")
}

// WriteStats writes both the human-readable and parsable forms of every
// guest's statistics.
func WriteStats(w io.Writer, guests []*guest.Guest) {
	fmt.Fprintln(w, "**Tagging application statistics**")
	fmt.Fprintf(w, "%-5s %-6s %-19s %-5s %-7s %-12s %-12s %-12s %-12s %-12s %-12s\n",
		"vID", "vlan", "mac_address", "RXq", "TX/RX", "rx_packets", "rx_success", "tx_packets", "tx_success", "tx_tagged", "tx_dropped")

	for _, g := range guests {
		s := g.Stats.Snapshot()
		fmt.Fprintf(w, "%5d %6d %02x:%02x:%02x:%02x:%02x:%02x %5d %3d/%3d %12d %12d %12d %12d %12d %12d\n",
			g.ID, g.VLANTag,
			g.MAC[0], g.MAC[1], g.MAC[2], g.MAC[3], g.MAC[4], g.MAC[5],
			g.RXQueue, g.TXCore, g.RXCore,
			s.RxTotal, s.RxSuccess, s.TxTotal, s.TxSuccess, s.TxTagged, s.TxDropped)
	}

	for _, g := range guests {
		fmt.Fprintln(w, StatsLine(g))
	}
}
