package loopgen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/streamproxy/internal/meshgen"
)

func flatGBuffer(w, h int, depth float32) meshgen.GBuffer {
	d := make([]float32, w*h)
	for i := range d {
		d[i] = depth
	}
	return meshgen.GBuffer{Width: w, Height: h, Depth: d}
}

func TestFlatSurfaceIsOneClosedLoop(t *testing.T) {
	g := New()
	g.loopLengthMin = 1
	require.NoError(t, g.Create(context.Background(), 6, 6))

	frame := g.CreateFrame().(*Frame)
	frame.SetGBuffer(flatGBuffer(6, 6, 0.3))

	require.NoError(t, g.SubmitFrame(context.Background(), frame))
	for _, c := range frame.closed {
		require.True(t, c)
	}

	var stat meshgen.Statistic
	indices, vertices, err := g.Triangulate(frame, &stat)
	require.NoError(t, err)
	require.Equal(t, uint32(1), stat.LoopCount)
	require.NotEmpty(t, vertices)
	require.NotEmpty(t, indices)
	require.Equal(t, 0, len(indices)%3)
}

func TestLoopsBelowMinimumAreDiscarded(t *testing.T) {
	g := New()
	g.loopLengthMin = 1000
	require.NoError(t, g.Create(context.Background(), 6, 6))

	frame := g.CreateFrame().(*Frame)
	frame.SetGBuffer(flatGBuffer(6, 6, 0.3))
	require.NoError(t, g.SubmitFrame(context.Background(), frame))

	var stat meshgen.Statistic
	indices, vertices, err := g.Triangulate(frame, &stat)
	require.NoError(t, err)
	require.Equal(t, uint32(0), stat.LoopCount)
	require.Empty(t, indices)
	require.Empty(t, vertices)
}

func TestDepthDiscontinuitySplitsRegions(t *testing.T) {
	g := New()
	g.loopLengthMin = 1
	require.NoError(t, g.Create(context.Background(), 8, 8))

	frame := g.CreateFrame().(*Frame)
	d := make([]float32, 8*8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x < 4 {
				d[y*8+x] = 0.1
			} else {
				d[y*8+x] = 0.9
			}
		}
	}
	frame.SetGBuffer(meshgen.GBuffer{Width: 8, Height: 8, Depth: d})
	require.NoError(t, g.SubmitFrame(context.Background(), frame))

	var stat meshgen.Statistic
	_, _, err := g.Triangulate(frame, &stat)
	require.NoError(t, err)
	require.GreaterOrEqual(t, stat.LoopCount, uint32(2))
}

func TestTriangulateLoopSquareProducesTwoTriangles(t *testing.T) {
	square := []point{{0, 0}, {2, 0}, {2, 2}, {0, 2}}
	loop := Loop{Points: square, Bridge: make([]bool, len(square)), Segments: compressToSegments(square)}
	tris := triangulateLoop(loop)
	require.Len(t, tris, 2)
}

func TestTriangulateLoopLShapeHandlesReflexVertex(t *testing.T) {
	// An L-shaped rectilinear polygon with one reflex vertex, on the 2x
	// corner grid: a 4x4 square with its top-right 2x2 quadrant removed.
	lshape := []point{
		{0, 0}, {4, 0}, {4, 2}, {2, 2}, {2, 4}, {0, 4},
	}
	loop := Loop{Points: lshape, Bridge: make([]bool, len(lshape)), Segments: compressToSegments(lshape)}
	tris := triangulateLoop(loop)
	require.Len(t, tris, len(lshape)-2)
}

func TestBridgeHolesSplicesEnclosedRing(t *testing.T) {
	outer := []point{{0, 0}, {8, 0}, {8, 8}, {0, 8}}
	hole := []point{{2, 2}, {2, 4}, {4, 4}, {4, 2}}

	pts, bridge := bridgeHoles(outer, [][]point{hole})
	require.Len(t, pts, len(bridge))
	require.Greater(t, len(pts), len(outer))

	var bridgeCount int
	for _, b := range bridge {
		if b {
			bridgeCount++
		}
	}
	require.Equal(t, 4, bridgeCount)
}

func TestCompressToSegmentsRoundTripsPoints(t *testing.T) {
	square := []point{{0, 0}, {1, 0}, {2, 0}, {2, 1}, {2, 2}, {1, 2}, {0, 2}, {0, 1}}
	segs := compressToSegments(square)
	require.Len(t, segs, 4)

	var rebuilt []point
	for _, seg := range segs {
		p := seg.Start
		for i := uint16(0); i < seg.Length; i++ {
			rebuilt = append(rebuilt, p)
			p = point{p.x + seg.Dir.x, p.y + seg.Dir.y}
		}
	}
	require.Equal(t, square, rebuilt)
}
