//go:build darwin

package demoguest

import (
	"context"

	"github.com/jingkaihe/vswitch/internal/demoguest/darwin"
)

// NewBackend returns the platform's demo guest backend: a vz virtio-net
// attachment on macOS.
func NewBackend() Backend { return vzBackend{darwin.NewBackend()} }

type vzBackend struct{ b *darwin.Backend }

func (v vzBackend) Name() string { return v.b.Name() }

func (v vzBackend) Create(ctx context.Context, cfg *Config) (Guest, error) {
	g, err := v.b.Create(ctx, &darwin.Config{
		ID:      cfg.ID,
		MAC:     cfg.MAC,
		Gateway: cfg.Gateway,
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}
