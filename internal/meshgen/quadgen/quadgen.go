// Package quadgen implements the quad-based mesh generator: a quadtree
// refinement of the depth buffer down to leaf quads whose four corners
// agree within a depth threshold, each leaf then split into two triangles
// by its corner pass. It supplements the spec's named generator kinds with
// the original implementation's simplest generator (see
// original_source/server/source/mesh_generator/quad_generator.cpp), whose
// copy/delta/refine/corner/write shader stages are reproduced here as CPU
// passes over the mapped depth buffer rather than as WGSL compute shaders.
package quadgen

import (
	"context"
	"time"

	"github.com/Carmen-Shannon/streamproxy/internal/meshgen"
	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

// Generator is a meshgen.Generator implementing quad-based tessellation.
type Generator struct {
	width, height  int
	depthMax       float32
	depthThreshold float32
}

// New constructs a quad generator with the original implementation's
// documented defaults (depth_max=0.995, depth_threshold=0.001).
func New() *Generator {
	return &Generator{depthMax: 0.995, depthThreshold: 0.001}
}

func (g *Generator) Kind() wire.MeshGeneratorKind { return wire.MeshGeneratorQuad }

func (g *Generator) Create(ctx context.Context, width, height int) error {
	g.width, g.height = width, height
	return nil
}

func (g *Generator) Destroy() {}

func (g *Generator) Apply(settings wire.MeshSettings) {
	g.depthMax = settings.DepthMax
	g.depthThreshold = settings.Quad.DepthThreshold
}

// Frame holds the depth/normal/object-id source buffers for one view, plus
// the quadtree this generator builds from them.
type Frame struct {
	gbuffer meshgen.GBuffer
	leaves  []quad
}

type quad struct {
	x, y, size int
}

func (f *Frame) DepthBuffer() any    { return f.gbuffer.Depth }
func (f *Frame) NormalBuffer() any   { return f.gbuffer.Normal }
func (f *Frame) ObjectIDBuffer() any { return f.gbuffer.ObjectID }

// SetGBuffer attaches the rendered source buffers for this view; called by
// the render step once the depth/normal/object-id render targets for this
// view have been populated.
func (f *Frame) SetGBuffer(g meshgen.GBuffer) { f.gbuffer = g }

func (g *Generator) CreateFrame() meshgen.GeneratorFrame { return &Frame{} }

func (g *Generator) DestroyFrame(frame meshgen.GeneratorFrame) {}

// SubmitFrame builds the quadtree refinement (the delta/refine/corner
// passes collapsed into one CPU sweep): starting from the coarsest square
// that covers the view, a quad is refined into four children whenever its
// corner depths disagree by more than depthThreshold, down to single
// pixels.
func (g *Generator) SubmitFrame(ctx context.Context, frame meshgen.GeneratorFrame) error {
	f := frame.(*Frame)
	size := 1
	for size < f.gbuffer.Width || size < f.gbuffer.Height {
		size *= 2
	}

	f.leaves = f.leaves[:0]
	g.refine(f, 0, 0, size)
	return nil
}

func (g *Generator) refine(f *Frame, x, y, size int) {
	if size <= 1 {
		if x < f.gbuffer.Width && y < f.gbuffer.Height {
			f.leaves = append(f.leaves, quad{x: x, y: y, size: 1})
		}
		return
	}
	if g.cornersAgree(f, x, y, size) {
		f.leaves = append(f.leaves, quad{x: x, y: y, size: size})
		return
	}
	half := size / 2
	g.refine(f, x, y, half)
	g.refine(f, x+half, y, half)
	g.refine(f, x, y+half, half)
	g.refine(f, x+half, y+half, half)
}

func (g *Generator) cornersAgree(f *Frame, x, y, size int) bool {
	corners := [4][2]int{
		{x, y}, {x + size - 1, y}, {x, y + size - 1}, {x + size - 1, y + size - 1},
	}
	var min, max float32
	first := true
	for _, c := range corners {
		if c[0] < 0 || c[0] >= f.gbuffer.Width || c[1] < 0 || c[1] >= f.gbuffer.Height {
			return false
		}
		d := f.gbuffer.Depth[c[1]*f.gbuffer.Width+c[0]]
		if d > g.depthMax {
			return false
		}
		if first {
			min, max = d, d
			first = false
			continue
		}
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return max-min <= g.depthThreshold
}

func (g *Generator) MapFrame(frame meshgen.GeneratorFrame) error { return nil }

func (g *Generator) UnmapFrame(frame meshgen.GeneratorFrame) {}

// Triangulate (the write pass) emits two triangles per leaf quad.
func (g *Generator) Triangulate(frame meshgen.GeneratorFrame, stat *meshgen.Statistic) ([]wire.Index, []wire.Vertex, error) {
	start := time.Now()
	f := frame.(*Frame)

	vertices := make([]wire.Vertex, 0, len(f.leaves)*4)
	indices := make([]wire.Index, 0, len(f.leaves)*6)

	for _, q := range f.leaves {
		base := wire.Index(len(vertices))
		corners := [4][2]int{
			{q.x, q.y}, {q.x + q.size, q.y}, {q.x, q.y + q.size}, {q.x + q.size, q.y + q.size},
		}
		for _, c := range corners {
			cx, cy := c[0], c[1]
			if cx >= f.gbuffer.Width {
				cx = f.gbuffer.Width - 1
			}
			if cy >= f.gbuffer.Height {
				cy = f.gbuffer.Height - 1
			}
			depth := f.gbuffer.Depth[cy*f.gbuffer.Width+cx]
			vertices = append(vertices, wire.Vertex{X: uint16(c[0]), Y: uint16(c[1]), Z: depth})
		}
		indices = append(indices, base, base+1, base+2, base+1, base+3, base+2)
	}

	stat.StageTimes[wire.StageWrite] = float32(time.Since(start).Seconds() * 1000)
	return indices, vertices, nil
}
