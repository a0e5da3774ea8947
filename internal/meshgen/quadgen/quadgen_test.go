package quadgen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/streamproxy/internal/meshgen"
	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

func flatGBuffer(w, h int, depth float32) meshgen.GBuffer {
	d := make([]float32, w*h)
	for i := range d {
		d[i] = depth
	}
	return meshgen.GBuffer{Width: w, Height: h, Depth: d}
}

func TestFlatSurfaceCollapsesToOneQuad(t *testing.T) {
	g := New()
	require.NoError(t, g.Create(context.Background(), 4, 4))

	frame := g.CreateFrame().(*Frame)
	frame.SetGBuffer(flatGBuffer(4, 4, 0.5))

	require.NoError(t, g.SubmitFrame(context.Background(), frame))
	require.Len(t, frame.leaves, 1)
	require.Equal(t, 4, frame.leaves[0].size)

	var stat meshgen.Statistic
	indices, vertices, err := g.Triangulate(frame, &stat)
	require.NoError(t, err)
	require.Len(t, vertices, 4)
	require.Len(t, indices, 6)
}

func TestDiscontinuityForcesRefinement(t *testing.T) {
	g := New()
	require.NoError(t, g.Create(context.Background(), 4, 4))

	frame := g.CreateFrame().(*Frame)
	gbuf := flatGBuffer(4, 4, 0.1)
	gbuf.Depth[4*4-1] = 0.9 // bottom-right corner jumps far away
	frame.SetGBuffer(gbuf)

	require.NoError(t, g.SubmitFrame(context.Background(), frame))
	require.Greater(t, len(frame.leaves), 1)
}

func TestApplyUpdatesThresholds(t *testing.T) {
	g := New()
	settings := wire.DefaultMeshSettings(wire.MeshGeneratorQuad)
	settings.Quad.DepthThreshold = 0.25
	settings.DepthMax = 0.8
	g.Apply(settings)
	require.Equal(t, float32(0.25), g.depthThreshold)
	require.Equal(t, float32(0.8), g.depthMax)
}
