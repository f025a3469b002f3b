package guest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivePoolID(t *testing.T) {
	// S1: MAC ..:05, num_pools=8 -> pool_id = 5%9-1 = 4
	assert.Equal(t, 4, DerivePoolID(5, 8))
	// S2: MAC ..:00 -> pool_id = 0%(N+1)-1 = -1 (control guest)
	assert.Equal(t, -1, DerivePoolID(0, 8))
}

func TestRegistry_LearnDataGuest(t *testing.T) {
	reg := NewRegistry()
	pools := NewPoolAllocator(8)
	g := New(1)
	reg.Add(g)

	err := reg.Learn(g, [6]byte{0, 0, 0, 0, 0, 5}, pools, 8)

	require.NoError(t, err)
	assert.Equal(t, DataRx, g.State())
	assert.Equal(t, 4, g.PoolID)
	assert.Equal(t, 5, g.VLANTag)
}

func TestRegistry_LearnControlGuest(t *testing.T) {
	reg := NewRegistry()
	pools := NewPoolAllocator(8)
	g := New(2)
	reg.Add(g)

	err := reg.Learn(g, [6]byte{0, 0, 0, 0, 0, 0}, pools, 8)

	require.NoError(t, err)
	assert.Equal(t, Control, g.State())
	assert.Equal(t, NoPool, g.PoolID)
}

func TestRegistry_LearnPoolCollisionKeepsLearning(t *testing.T) {
	reg := NewRegistry()
	pools := NewPoolAllocator(8)
	g1 := New(1)
	reg.Add(g1)
	require.NoError(t, reg.Learn(g1, [6]byte{0, 0, 0, 0, 0, 5}, pools, 8))

	g2 := New(2)
	reg.Add(g2)
	err := reg.Learn(g2, [6]byte{0, 0, 0, 0, 0, 5}, pools, 8)

	assert.True(t, errors.Is(err, ErrPoolCollision))
	assert.Equal(t, MacLearning, g2.State())
	assert.True(t, pools.HasLoggedCollision())
}

func TestPoolAllocator_ReleaseFreesPool(t *testing.T) {
	pools := NewPoolAllocator(4)
	require.NoError(t, pools.Acquire(1))
	assert.Error(t, pools.Acquire(1))

	pools.Release(1)
	assert.NoError(t, pools.Acquire(1))
}

func TestRegistry_RemoveAndGet(t *testing.T) {
	reg := NewRegistry()
	g := New(7)
	reg.Add(g)

	_, err := reg.Get(7)
	require.NoError(t, err)

	reg.Remove(7)
	_, err = reg.Get(7)
	assert.True(t, errors.Is(err, ErrUnknownGuest))
}
