//go:build linux

package demoguest

import (
	"context"

	"github.com/jingkaihe/vswitch/internal/demoguest/linux"
)

// NewBackend returns the platform's demo guest backend: a real TAP device
// on Linux.
func NewBackend() Backend { return tapBackend{linux.NewBackend()} }

type tapBackend struct{ b *linux.Backend }

func (t tapBackend) Name() string { return t.b.Name() }

func (t tapBackend) Create(ctx context.Context, cfg *Config) (Guest, error) {
	g, err := t.b.Create(ctx, &linux.Config{
		ID:      cfg.ID,
		MAC:     cfg.MAC,
		Gateway: cfg.Gateway,
		Console: cfg.Console,
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}
