package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillfield/implicore/token"
)

func TestRequestSucceedsWhenFree(t *testing.T) {
	h := token.NewAssemblyToken()
	tok, ok := h.Request()
	require.True(t, ok)
	require.NotNil(t, tok)
	tok.Release()
}

func TestRequestFailsWhileHeld(t *testing.T) {
	h := token.NewComputeToken()
	tok, ok := h.Request()
	require.True(t, ok)

	_, ok = h.Request()
	assert.False(t, ok)

	tok.Release()
	_, ok = h.Request()
	assert.True(t, ok)
}

func TestWaitBlocksUntilReleased(t *testing.T) {
	h := token.NewAssemblyToken()
	first, _ := h.Request()

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		tok, err := h.Wait(ctx)
		assert.NoError(t, err)
		if tok != nil {
			tok.Release()
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	first.Release()
	<-done
}

func TestWaitRespectsCancellation(t *testing.T) {
	h := token.NewComputeToken()
	held, _ := h.Request()
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReleaseIsIdempotent(t *testing.T) {
	h := token.NewAssemblyToken()
	tok, _ := h.Request()
	tok.Release()
	assert.NotPanics(t, func() { tok.Release() })
}
