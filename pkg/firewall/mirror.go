// Package firewall implements the optional Host Firewall Mirror: a
// defense-in-depth layer that mirrors the switch's own pool bindings into
// a kernel nftables table on the physical NIC's interface, so a kernel-level
// rule independently enforces what VLAN-tagged traffic is allowed to leave
// the host even if the user-space fast path were compromised.
//
// This is not part of spec.md's fast path; it is a DOMAIN STACK addition
// gated by the --nftables-mirror CLI flag.
package firewall

// Mirror installs/removes kernel-level accept rules that track the
// switch's pool-to-VLAN bindings.
type Mirror interface {
	// Setup creates the mirror's own nftables table and base chains.
	Setup() error

	// BindPool installs a rule accepting traffic tagged with vlanTag on
	// the physical NIC interface, called when a guest enters DataRx.
	BindPool(poolID int, vlanTag int) error

	// UnbindPool removes the rule installed by BindPool, called on
	// guest removal.
	UnbindPool(poolID int) error

	// Close tears down the mirror's table entirely.
	Close() error
}
