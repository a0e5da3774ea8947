package linegen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/streamproxy/internal/meshgen"
)

func TestFlatSurfaceHasNoFeaturesAndFullyTriangulates(t *testing.T) {
	g := New()
	require.NoError(t, g.Create(context.Background(), 8, 8))

	frame := g.CreateFrame().(*Frame)
	d := make([]float32, 8*8)
	for i := range d {
		d[i] = 0.4
	}
	frame.SetGBuffer(meshgen.GBuffer{Width: 8, Height: 8, Depth: d})

	require.NoError(t, g.SubmitFrame(context.Background(), frame))
	for _, isFeature := range frame.feature {
		require.False(t, isFeature)
	}

	var stat meshgen.Statistic
	indices, vertices, err := g.Triangulate(frame, &stat)
	require.NoError(t, err)
	require.Equal(t, uint32(0), stat.LineCount)
	require.Len(t, indices, (8-1)*(8-1)*6)
	require.Len(t, vertices, (8-1)*(8-1)*4)
}

func TestSharpEdgePunchesHole(t *testing.T) {
	g := New()
	g.lineLengthMin = 1
	require.NoError(t, g.Create(context.Background(), 8, 8))

	frame := g.CreateFrame().(*Frame)
	d := make([]float32, 8*8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x >= 4 {
				d[y*8+x] = 0.9
			} else {
				d[y*8+x] = 0.1
			}
		}
	}
	frame.SetGBuffer(meshgen.GBuffer{Width: 8, Height: 8, Depth: d})

	require.NoError(t, g.SubmitFrame(context.Background(), frame))

	var stat meshgen.Statistic
	indices, _, err := g.Triangulate(frame, &stat)
	require.NoError(t, err)
	require.Greater(t, stat.LineCount, uint32(0))
	require.Less(t, len(indices), (8-1)*(8-1)*6)
}
