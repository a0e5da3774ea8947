package decode

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/streamproxy/internal/codec"
	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

func encodeLayerResponse(t *testing.T, requestID, layerIndex uint32, indices []wire.Index, vertices []wire.Vertex, image []byte) []byte {
	t.Helper()
	geometry, err := codec.Encode(indices, vertices)
	require.NoError(t, err)

	full := wire.EncodeLayerResponse(wire.LayerResponseHeader{RequestID: requestID, LayerIndex: layerIndex}, geometry, image)
	_, payload, err := wire.PeekType(full)
	require.NoError(t, err)
	return payload
}

func TestDecodeOneLayer(t *testing.T) {
	s := NewSession(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	indices := []wire.Index{0, 1, 2}
	vertices := []wire.Vertex{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0.5}}
	payload := encodeLayerResponse(t, 7, 1, indices, vertices, []byte{9, 9, 9})

	s.Feed(payload)

	select {
	case layer := <-s.Layers():
		require.Equal(t, uint32(7), layer.RequestID)
		require.Equal(t, uint32(1), layer.LayerIndex)
		require.Equal(t, indices, layer.Indices)
		require.Equal(t, vertices, layer.Vertices)
		require.Equal(t, []byte{9, 9, 9}, layer.Image)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decoded layer")
	}
}

func TestDecodeRejectsOutOfRangeLayer(t *testing.T) {
	s := NewSession(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	payload := encodeLayerResponse(t, 1, 5, nil, nil, nil)
	s.Feed(payload)

	select {
	case err := <-s.Errors():
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decode error")
	}
}

func TestScratchBuffersAreReusedAcrossFrames(t *testing.T) {
	s := NewSession(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	first := encodeLayerResponse(t, 1, 0, []wire.Index{0, 1, 2}, []wire.Vertex{{X: 0}, {X: 1}, {X: 2}}, []byte{1})
	s.Feed(first)
	var firstLayer DecodedLayer
	select {
	case firstLayer = <-s.Layers():
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	second := encodeLayerResponse(t, 2, 0, []wire.Index{0, 1}, []wire.Vertex{{X: 5}, {X: 6}}, []byte{2})
	s.Feed(second)
	select {
	case secondLayer := <-s.Layers():
		require.Equal(t, uint32(2), secondLayer.RequestID)
		require.Len(t, secondLayer.Vertices, 2)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
	require.Equal(t, uint32(1), firstLayer.RequestID)
	require.Equal(t, uint16(5), firstLayer.Vertices[0].X)
}
