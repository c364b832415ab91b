package monitor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWiresUpdatesAndErrors(t *testing.T) {
	m := New()
	var gotUpdate, gotErr bool
	m.OnUpdate(func(state, update any) { gotUpdate = true })
	m.OnError(func(err error, state any) { gotErr = true })

	ctx := m.Create("ctx-1")
	ctx.Publish("working", nil)
	ctx.PublishError(errors.New("boom"), "working")

	assert.True(t, gotUpdate)
	assert.True(t, gotErr)
}

func TestDeleteUnwiresBeforeRemoval(t *testing.T) {
	m := New()
	var calls int
	m.OnUpdate(func(state, update any) { calls++ })

	ctx := m.Create("ctx-1")
	ctx.Publish("a", nil)
	require.Equal(t, 1, calls)

	m.Delete("ctx-1")
	ctx.Publish("b", nil) // context no longer wired; must not reach the Monitor's listener.
	assert.Equal(t, 1, calls)

	_, ok := m.Get("ctx-1")
	assert.False(t, ok)
}

func TestSetUnwiresPriorContext(t *testing.T) {
	m := New()
	var calls int
	m.OnUpdate(func(state, update any) { calls++ })

	first := m.Create("ctx-1")
	second := NewContext()
	m.Set("ctx-1", second)

	first.Publish("stale", nil)
	assert.Equal(t, 0, calls, "replaced context must be unwired")

	second.Publish("fresh", nil)
	assert.Equal(t, 1, calls)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	m := New()
	var calls int
	unsub := m.OnUpdate(func(state, update any) { calls++ })

	ctx := m.Create("ctx-1")
	ctx.Publish("a", nil)
	require.Equal(t, 1, calls)

	unsub()
	ctx.Publish("b", nil)
	assert.Equal(t, 1, calls)
}
