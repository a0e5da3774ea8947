package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFramePoolAcquireUpToCapacity(t *testing.T) {
	p := NewFramePool()
	var got []*Frame
	for i := 0; i < FramesPerLayer; i++ {
		f, ok := p.Acquire()
		require.True(t, ok)
		require.Equal(t, FrameRecorded, f.State)
		got = append(got, f)
	}
	require.Equal(t, FramesPerLayer, p.Len())

	_, ok := p.Acquire()
	require.False(t, ok, "pool should report exhaustion past FramesPerLayer")
}

func TestFramePoolReleaseMakesFrameReusable(t *testing.T) {
	p := NewFramePool()
	f, ok := p.Acquire()
	require.True(t, ok)

	f.RequestID = 42
	f.State = FrameSent
	p.Release(f)
	require.Equal(t, 0, p.Len())
	require.Equal(t, FrameEmpty, f.State)
	require.Equal(t, uint32(0), f.RequestID)

	f2, ok := p.Acquire()
	require.True(t, ok)
	require.Same(t, f, f2)
}

func TestFrameReadyForPostProcessing(t *testing.T) {
	f := &Frame{}
	require.False(t, f.ReadyForPostProcessing())

	for i := range f.MeshComplete {
		f.MeshComplete[i] = true
	}
	require.False(t, f.ReadyForPostProcessing())

	f.EncoderComplete = true
	require.True(t, f.ReadyForPostProcessing())
}
