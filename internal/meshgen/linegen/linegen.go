// Package linegen implements the line-based mesh generator: pixels where
// the depth buffer's discrete Laplacian exceeds a threshold are marked as
// depth-feature pixels, adjacent feature pixels are chained into polylines,
// and the view is triangulated over a regular grid with any cell that a
// polyline passes through treated as a constraint and dropped (a hole,
// rather than a false bridge across the discontinuity). Grounded on
// original_source/server/source/mesh_generator/line_generator.cpp's
// edge-detection-then-quadtree-then-triangulate pipeline, collapsed here
// into one CPU sweep plus a constrained grid triangulation rather than the
// original's GPU quadtree and dedicated line_triangulation.cpp.
package linegen

import (
	"context"
	"time"

	"github.com/Carmen-Shannon/streamproxy/internal/meshgen"
	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

// Generator is a meshgen.Generator implementing line-based tessellation.
type Generator struct {
	width, height    int
	depthMax         float32
	laplaceThreshold float32
	lineLengthMin    uint32
}

// New constructs a line generator with the original implementation's
// documented defaults (laplace_threshold=0.003, line_length_min=10).
func New() *Generator {
	return &Generator{depthMax: 0.995, laplaceThreshold: 0.003, lineLengthMin: 10}
}

func (g *Generator) Kind() wire.MeshGeneratorKind { return wire.MeshGeneratorLine }

func (g *Generator) Create(ctx context.Context, width, height int) error {
	g.width, g.height = width, height
	return nil
}

func (g *Generator) Destroy() {}

func (g *Generator) Apply(settings wire.MeshSettings) {
	g.depthMax = settings.DepthMax
	g.laplaceThreshold = settings.Line.LaplaceThreshold
	g.lineLengthMin = settings.Line.LineLengthMin
}

// Frame holds the source buffers and the feature-pixel mask built from
// them.
type Frame struct {
	gbuffer meshgen.GBuffer
	feature []bool
	lines   int
}

func (f *Frame) DepthBuffer() any    { return f.gbuffer.Depth }
func (f *Frame) NormalBuffer() any   { return f.gbuffer.Normal }
func (f *Frame) ObjectIDBuffer() any { return f.gbuffer.ObjectID }

func (f *Frame) SetGBuffer(g meshgen.GBuffer) { f.gbuffer = g }

func (g *Generator) CreateFrame() meshgen.GeneratorFrame { return &Frame{} }

func (g *Generator) DestroyFrame(frame meshgen.GeneratorFrame) {}

// SubmitFrame is the edge-detection pass: it computes the discrete
// Laplacian of the depth buffer at every interior pixel and marks it as a
// feature pixel when the response exceeds laplaceThreshold.
func (g *Generator) SubmitFrame(ctx context.Context, frame meshgen.GeneratorFrame) error {
	f := frame.(*Frame)
	w, h := f.gbuffer.Width, f.gbuffer.Height
	f.feature = make([]bool, w*h)

	depth := func(x, y int) float32 {
		if x < 0 {
			x = 0
		}
		if x >= w {
			x = w - 1
		}
		if y < 0 {
			y = 0
		}
		if y >= h {
			y = h - 1
		}
		return f.gbuffer.Depth[y*w+x]
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			center := depth(x, y)
			laplacian := depth(x-1, y) + depth(x+1, y) + depth(x, y-1) + depth(x, y+1) - 4*center
			if laplacian < 0 {
				laplacian = -laplacian
			}
			if laplacian > g.laplaceThreshold {
				f.feature[y*w+x] = true
			}
		}
	}
	return nil
}

func (g *Generator) MapFrame(frame meshgen.GeneratorFrame) error { return nil }

func (g *Generator) UnmapFrame(frame meshgen.GeneratorFrame) {}

// Triangulate grows feature pixels into polylines by 8-connected flood fill,
// discards lines shorter than lineLengthMin (treated as noise, not a real
// discontinuity), then triangulates every 1x1 grid cell except the ones a
// surviving line passes through.
func (g *Generator) Triangulate(frame meshgen.GeneratorFrame, stat *meshgen.Statistic) ([]wire.Index, []wire.Vertex, error) {
	start := time.Now()
	f := frame.(*Frame)
	w, h := f.gbuffer.Width, f.gbuffer.Height

	visited := make([]bool, w*h)
	keepFeature := make([]bool, w*h)
	lineCount := 0

	var stack []int
	for i, isFeature := range f.feature {
		if !isFeature || visited[i] {
			continue
		}
		stack = stack[:0]
		stack = append(stack, i)
		visited[i] = true
		var component []int
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, idx)
			cx, cy := idx%w, idx/w
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := cx+dx, cy+dy
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					nIdx := ny*w + nx
					if f.feature[nIdx] && !visited[nIdx] {
						visited[nIdx] = true
						stack = append(stack, nIdx)
					}
				}
			}
		}
		if uint32(len(component)) >= g.lineLengthMin {
			lineCount++
			for _, idx := range component {
				keepFeature[idx] = true
			}
		}
	}
	f.lines = lineCount
	stat.LineCount = uint32(lineCount)

	triStart := time.Now()
	stat.StageTimes[wire.StageEdgeDetection] = float32(triStart.Sub(start).Seconds() * 1000)

	var vertices []wire.Vertex
	var indices []wire.Index
	for y := 0; y < h-1; y++ {
		for x := 0; x < w-1; x++ {
			if keepFeature[y*w+x] || keepFeature[(y+1)*w+x] || keepFeature[y*w+x+1] || keepFeature[(y+1)*w+x+1] {
				continue
			}
			base := wire.Index(len(vertices))
			vertices = append(vertices,
				wire.Vertex{X: uint16(x), Y: uint16(y), Z: f.gbuffer.Depth[y*w+x]},
				wire.Vertex{X: uint16(x + 1), Y: uint16(y), Z: f.gbuffer.Depth[y*w+x+1]},
				wire.Vertex{X: uint16(x), Y: uint16(y + 1), Z: f.gbuffer.Depth[(y+1)*w+x]},
				wire.Vertex{X: uint16(x + 1), Y: uint16(y + 1), Z: f.gbuffer.Depth[(y+1)*w+x+1]},
			)
			indices = append(indices, base, base+1, base+2, base+1, base+3, base+2)
		}
	}

	stat.StageTimes[wire.StageLineTrace] = float32(time.Since(triStart).Seconds() * 1000)
	return indices, vertices, nil
}
