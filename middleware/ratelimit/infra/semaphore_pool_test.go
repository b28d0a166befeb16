package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphorePool_LimitsSlots(t *testing.T) {
	p := NewSemaphorePool(2)
	ctx := context.Background()

	r1, ok := p.Acquire(ctx)
	require.True(t, ok)
	r2, ok := p.Acquire(ctx)
	require.True(t, ok)

	tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, ok = p.Acquire(tctx)
	assert.False(t, ok, "third acquire must wait and give up with the context")

	r1()
	r1() // release é idempotente
	r3, ok := p.Acquire(ctx)
	require.True(t, ok)

	r2()
	r3()
}
