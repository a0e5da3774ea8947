package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

func TestEncodeEmptyProducesBareHeader(t *testing.T) {
	buf, err := Encode(nil, nil)
	require.NoError(t, err)
	require.Len(t, buf, headerSize)
	require.Equal(t, make([]byte, 16), buf[headerSize-16:])

	idx, vtx, err := Decode(buf)
	require.NoError(t, err)
	require.Empty(t, idx)
	require.Empty(t, vtx)
}

func TestSingleTriangleRoundTrip(t *testing.T) {
	indices := []wire.Index{0, 1, 2}
	vertices := []wire.Vertex{
		{X: 0, Y: 0, Z: 0.0},
		{X: 1, Y: 0, Z: 0.5},
		{X: 0, Y: 1, Z: 1.0},
	}

	buf, err := Encode(indices, vertices)
	require.NoError(t, err)

	outIdx, outVtx, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, indices, outIdx)

	require.Len(t, outVtx, 3)
	for i, v := range vertices {
		require.Equal(t, v.X, outVtx[i].X)
		require.Equal(t, v.Y, outVtx[i].Y)
		require.InDelta(t, QuantizeDepth(v.Z), outVtx[i].Z, 1e-6)
	}
}

func TestRoundTripPreservesIndicesAndXYExactly(t *testing.T) {
	indices := make([]wire.Index, 0, 500)
	vertices := make([]wire.Vertex, 0, 200)

	seed := uint32(12345)
	next := func() uint32 {
		seed = seed*1664525 + 1013904223
		return seed
	}

	for i := 0; i < 200; i++ {
		vertices = append(vertices, wire.Vertex{
			X: uint16(next() % 4096),
			Y: uint16(next() % 4096),
			Z: float32(next()%10000) / 10000.0,
		})
	}
	for i := 0; i < 500; i++ {
		indices = append(indices, wire.Index(next())%200)
	}

	buf, err := Encode(indices, vertices)
	require.NoError(t, err)

	outIdx, outVtx, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, indices, outIdx)
	require.Len(t, outVtx, len(vertices))

	for i, v := range vertices {
		require.Equal(t, v.X, outVtx[i].X)
		require.Equal(t, v.Y, outVtx[i].Y)
		require.InDelta(t, QuantizeDepth(v.Z), outVtx[i].Z, 1.0/float64(0x7FFF))
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	indices := []wire.Index{5, 2, 9, 0, 1}
	vertices := []wire.Vertex{
		{X: 10, Y: 20, Z: 0.3},
		{X: 11, Y: 25, Z: 0.9},
	}

	a, err := Encode(indices, vertices)
	require.NoError(t, err)
	b, err := Encode(indices, vertices)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestDecodeRejectsTruncatedBuffer(t *testing.T) {
	buf, err := Encode([]wire.Index{0, 1, 2}, []wire.Vertex{{X: 1, Y: 1, Z: 0.1}, {X: 2, Y: 2, Z: 0.2}, {X: 3, Y: 3, Z: 0.3}})
	require.NoError(t, err)

	_, _, err = Decode(buf[:len(buf)-1])
	require.Error(t, err)
}

func TestZigZagRoundTrip(t *testing.T) {
	for _, d := range []int32{0, 1, -1, 32767, -32768, 1 << 24, -(1 << 24)} {
		require.Equal(t, d, unzigzag32(zigzag32(d)))
	}
	for _, d := range []int16{0, 1, -1, 32767, -32767} {
		require.Equal(t, d, unzigzag16(zigzag16(d)))
	}
}
