//go:build linux

package firewall

import (
	"fmt"

	"github.com/google/nftables"
	"github.com/google/nftables/binaryutil"
	"github.com/google/nftables/expr"
)

const (
	tableNamePrefix = "vswitch_mirror_"
	chainFwd        = "forward"

	// vlanEtherType is the 802.1Q EtherType the classifier writes at the
	// front of every tag it pushes (spec.md §4.2).
	vlanEtherType = 0x8100
	// vlanIDMask isolates the 12-bit VID from the tag control field; the
	// priority/DEI bits are not part of the pool-to-VLAN mapping.
	vlanIDMask = 0x0FFF
)

// NFTablesMirror is the Linux Mirror implementation: one nftables table
// per physical NIC interface, with one forward-chain accept rule per bound
// pool and a trailing drop rule for any tagged frame that matches none.
type NFTablesMirror struct {
	nicInterface string

	conn     *nftables.Conn
	table    *nftables.Table
	fwdChain *nftables.Chain

	rules  map[int]*nftables.Rule // poolID -> installed accept rule
	dropID *nftables.Rule
}

// NewNFTablesMirror returns a mirror bound to nicInterface, the physical
// NIC's host-visible interface name.
func NewNFTablesMirror(nicInterface string) *NFTablesMirror {
	return &NFTablesMirror{
		nicInterface: nicInterface,
		rules:        make(map[int]*nftables.Rule),
	}
}

func (m *NFTablesMirror) Setup() error {
	conn, err := nftables.New()
	if err != nil {
		return fmt.Errorf("nftables: open connection: %w", err)
	}
	m.conn = conn

	m.table = conn.AddTable(&nftables.Table{
		Family: nftables.TableFamilyIPv4,
		Name:   tableNamePrefix + m.nicInterface,
	})

	m.fwdChain = conn.AddChain(&nftables.Chain{
		Name:     chainFwd,
		Table:    m.table,
		Type:     nftables.ChainTypeFilter,
		Hooknum:  nftables.ChainHookForward,
		Priority: nftables.ChainPriorityFilter,
	})

	// Trailing rule: drop any VLAN-tagged frame on the NIC interface that
	// didn't match a bound pool's accept rule above it.
	m.dropID = conn.AddRule(&nftables.Rule{
		Table: m.table,
		Chain: m.fwdChain,
		Exprs: m.buildTaggedMatch(nil),
	})

	if err := conn.Flush(); err != nil {
		return fmt.Errorf("nftables: apply base rules: %w", err)
	}
	return nil
}

// BindPool inserts an accept rule for vlanTag ahead of the trailing drop
// rule. Rule ordering within a chain follows insertion order relative to
// existing handles, so the accept rule is added via Conn.InsertRule to
// land before the drop.
func (m *NFTablesMirror) BindPool(poolID int, vlanTag int) error {
	vid := uint16(vlanTag)
	rule := &nftables.Rule{
		Table: m.table,
		Chain: m.fwdChain,
		Exprs: m.buildTaggedMatch(&vid),
	}
	m.conn.InsertRule(rule)
	if err := m.conn.Flush(); err != nil {
		return fmt.Errorf("nftables: bind pool %d vlan %d: %w", poolID, vlanTag, err)
	}
	m.rules[poolID] = rule
	return nil
}

// UnbindPool removes the accept rule installed for poolID.
func (m *NFTablesMirror) UnbindPool(poolID int) error {
	rule, ok := m.rules[poolID]
	if !ok {
		return nil
	}
	delete(m.rules, poolID)
	if err := m.conn.DelRule(rule); err != nil {
		return fmt.Errorf("nftables: unbind pool %d: %w", poolID, err)
	}
	return m.conn.Flush()
}

// buildTaggedMatch matches an 802.1Q-tagged frame on the mirror's
// interface. When vid is non-nil it also matches the 12-bit VLAN id and
// accepts; when nil it matches any tagged frame and drops (the trailing
// catch-all).
func (m *NFTablesMirror) buildTaggedMatch(vid *uint16) []expr.Any {
	exprs := []expr.Any{
		&expr.Meta{Key: expr.MetaKeyIIFNAME, Register: 1},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     ifname(m.nicInterface),
		},
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseLLHeader,
			Offset:       12,
			Len:          2,
		},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     binaryutil.BigEndian.PutUint16(vlanEtherType),
		},
	}

	if vid == nil {
		return append(exprs, &expr.Verdict{Kind: expr.VerdictDrop})
	}

	exprs = append(exprs,
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseLLHeader,
			Offset:       14,
			Len:          2,
		},
		&expr.Bitwise{
			SourceRegister: 1,
			DestRegister:   1,
			Len:            2,
			Mask:           binaryutil.BigEndian.PutUint16(vlanIDMask),
			Xor:            binaryutil.BigEndian.PutUint16(0),
		},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     binaryutil.BigEndian.PutUint16(*vid),
		},
		&expr.Verdict{Kind: expr.VerdictAccept},
	)
	return exprs
}

// Close tears down the mirror's table entirely, called on process shutdown.
func (m *NFTablesMirror) Close() error {
	if m.conn == nil {
		return nil
	}
	m.conn.DelTable(m.table)
	return m.conn.Flush()
}

func ifname(n string) []byte {
	b := make([]byte, 16)
	copy(b, n)
	return b
}
