package main

import (
	"github.com/jingkaihe/vswitch/pkg/firewall"
	"github.com/jingkaihe/vswitch/pkg/nic"
)

// mirroredPort wraps a nic.Port so every pool bind/unbind is mirrored into
// the optional kernel nftables table, keeping the --nftables-mirror layer
// in lockstep with the fast path's own pool bindings without involving
// pkg/worker in firewall concerns.
type mirroredPort struct {
	nic.Port
	mirror firewall.Mirror
}

func withMirror(port nic.Port, mirror firewall.Mirror) nic.Port {
	if mirror == nil {
		return port
	}
	return &mirroredPort{Port: port, mirror: mirror}
}

func (p *mirroredPort) BindPool(poolID int, mac [6]byte) error {
	if err := p.Port.BindPool(poolID, mac); err != nil {
		return err
	}
	return p.mirror.BindPool(poolID, poolID+1)
}

func (p *mirroredPort) UnbindPool(poolID int) error {
	if err := p.mirror.UnbindPool(poolID); err != nil {
		return err
	}
	return p.Port.UnbindPool(poolID)
}

var _ nic.Port = (*mirroredPort)(nil)
