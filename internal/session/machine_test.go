package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

func TestMachineStartsIdle(t *testing.T) {
	m := NewMachine(nil, nil)
	require.Equal(t, StateIdle, m.State())
}

func TestSessionCreateMovesToActive(t *testing.T) {
	m := NewMachine(func(Config) error { return nil }, func() {})
	err := m.HandleSessionCreate(wire.SessionCreate{ViewCount: 6, LayerCount: 2})
	require.Nil(t, err)
	require.Equal(t, StateActive, m.State())
	require.Equal(t, uint32(6), m.Config().ViewCount)
}

func TestDoubleSessionCreateIsFatalAndReturnsToIdle(t *testing.T) {
	destroyed := false
	m := NewMachine(func(Config) error { return nil }, func() { destroyed = true })

	require.Nil(t, m.HandleSessionCreate(wire.SessionCreate{}))
	require.Equal(t, StateActive, m.State())

	err := m.HandleSessionCreate(wire.SessionCreate{})
	require.NotNil(t, err)
	require.Equal(t, KindSession, err.Kind)
	require.Equal(t, Fatal, err.Severity)
	require.Equal(t, StateIdle, m.State())
	require.True(t, destroyed)
}

func TestSessionCreateAfterDestroySucceeds(t *testing.T) {
	m := NewMachine(func(Config) error { return nil }, func() {})

	require.Nil(t, m.HandleSessionCreate(wire.SessionCreate{}))
	m.HandleSessionDestroy()
	require.Equal(t, StateIdle, m.State())

	require.Nil(t, m.HandleSessionCreate(wire.SessionCreate{}))
	require.Equal(t, StateActive, m.State())
}

func TestOnCreateErrorKeepsIdle(t *testing.T) {
	m := NewMachine(func(Config) error { return errBoom }, nil)
	err := m.HandleSessionCreate(wire.SessionCreate{})
	require.NotNil(t, err)
	require.Equal(t, StateIdle, m.State())
}

var errBoom = &boomError{}

type boomError struct{}

func (*boomError) Error() string { return "boom" }

func TestRenderRequestRejectedWhileIdle(t *testing.T) {
	m := NewMachine(nil, nil)
	err := m.SubmitRenderRequest(wire.RenderRequest{RequestID: 1})
	require.NotNil(t, err)
	require.Equal(t, Transient, err.Severity)
}

func TestLatestRequestWinsCoalescing(t *testing.T) {
	m := NewMachine(func(Config) error { return nil }, nil)
	require.Nil(t, m.HandleSessionCreate(wire.SessionCreate{}))

	require.Nil(t, m.SubmitRenderRequest(wire.RenderRequest{RequestID: 1}))
	require.Nil(t, m.SubmitRenderRequest(wire.RenderRequest{RequestID: 2}))
	require.Nil(t, m.SubmitRenderRequest(wire.RenderRequest{RequestID: 3}))

	req, ok := m.TakeLatestRenderRequest()
	require.True(t, ok)
	require.Equal(t, uint32(3), req.RequestID)

	_, ok = m.TakeLatestRenderRequest()
	require.False(t, ok)
}

func TestRequeueDoesNotOverrideNewerRequest(t *testing.T) {
	m := NewMachine(func(Config) error { return nil }, nil)
	require.Nil(t, m.HandleSessionCreate(wire.SessionCreate{}))

	require.Nil(t, m.SubmitRenderRequest(wire.RenderRequest{RequestID: 1}))
	req, ok := m.TakeLatestRenderRequest()
	require.True(t, ok)
	require.Equal(t, uint32(1), req.RequestID)

	require.Nil(t, m.SubmitRenderRequest(wire.RenderRequest{RequestID: 2}))
	m.Requeue(req)

	got, ok := m.TakeLatestRenderRequest()
	require.True(t, ok)
	require.Equal(t, uint32(2), got.RequestID)
}
