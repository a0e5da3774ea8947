// Package loopgen implements the loop-based (depth-contour) mesh generator,
// the hard core of the mesh generation stack. It traces closed contour
// loops around depth-continuous regions of a view's depth buffer and
// triangulates each loop's interior, rather than emitting geometry per-pixel
// like quadgen or per-feature-line like linegen.
//
// Grounded on original_source/server/source/mesh_generator/loop_generator.cpp
// (the vector/split/base/combine/distribute/discard/write pass pipeline)
// and loop_triangulation.hpp/.cpp (the Loop/LoopSegment/Interval/Contour
// sweep-line triangulator). The original's seven passes run as GPU compute
// shaders over a mip pyramid of loop-range buffers; the actual GLSL for
// those passes (referenced from loop_generator.cpp as
// shaders/loop_*.comp/shared_defines.glsl) is not present in this tree's
// source material, only the C++ dispatch/orchestration code is, so this
// package reproduces the pass pipeline's data model and control flow on the
// CPU (region labeling standing in for vector/split/base/combine/distribute,
// one pass per named stage) rather than claiming bit-exact GPU parity — see
// DESIGN.md. The sweep-line triangulator's data model (Loop, LoopSegment,
// Interval, Contour, reflex-chain monotone decomposition, bridge points for
// holes) is reproduced faithfully from loop_triangulation.hpp.
package loopgen

import (
	"context"
	"math"
	"time"

	"github.com/Carmen-Shannon/streamproxy/internal/meshgen"
	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

// Capacity caps mirroring LOOP_GENERATOR_MAX_LOOP_COUNT and
// LOOP_GENERATOR_MAX_LOOP_SEGMENT_COUNT: the original's loop_buffer and
// loop_segment_buffer are fixed-size GPU allocations the write pass can
// overflow silently (the atomic range/segment counters simply stop
// advancing past capacity). Mirrored here as a hard truncation rather than
// an error, matching that silent-drop behavior.
const (
	loopMax    = 4096
	segmentMax = 65536
)

// Generator is a meshgen.Generator implementing loop-based (depth-contour)
// tessellation.
type Generator struct {
	width, height int

	depthMax            float32
	depthBaseThreshold  float32
	depthSlopeThreshold float32
	normalThreshold     float32
	triangleScale       float32
	loopLengthMin       uint32
	useNormals          bool
	useObjectIDs        bool
}

// New constructs a loop generator with the original implementation's
// documented defaults from shared/source/types.hpp's LoopSettings (see
// DESIGN.md for the discrepancy against protocol.hpp's newer defaults,
// which wire.DefaultMeshSettings follows instead).
func New() *Generator {
	return &Generator{
		depthMax:            0.995,
		depthBaseThreshold:  0.001,
		depthSlopeThreshold: 0.007,
		normalThreshold:     float32(math.Pi) * 0.22222222,
		triangleScale:       2.0,
		loopLengthMin:       80,
		useNormals:          true,
		useObjectIDs:        true,
	}
}

func (g *Generator) Kind() wire.MeshGeneratorKind { return wire.MeshGeneratorLoop }

func (g *Generator) Create(ctx context.Context, width, height int) error {
	g.width, g.height = width, height
	return nil
}

func (g *Generator) Destroy() {}

func (g *Generator) Apply(settings wire.MeshSettings) {
	g.depthMax = settings.DepthMax
	g.depthBaseThreshold = settings.Loop.DepthBaseThreshold
	g.depthSlopeThreshold = settings.Loop.DepthSlopeThreshold
	g.normalThreshold = settings.Loop.NormalThreshold
	g.triangleScale = settings.Loop.TriangleScale
	g.loopLengthMin = settings.Loop.LoopLengthMin
	g.useNormals = settings.Loop.UseNormals
	g.useObjectIDs = settings.Loop.UseObjectIDs
}

// point is a boundary vertex on the 2x-oversampled corner grid: pixel
// corners at half-pixel spacing relative to the source depth buffer, the
// same grid the original's vector_buffer/closed_buffer pair is sized
// against (resolution*2 for vector_buffer, resolution+1 corners for
// closed_buffer). x/y are stored in half-pixel units (i.e. a source pixel
// at column px occupies corner columns 2*px and 2*px+1), so bridge seams
// and segment directions can fall on the odd (sub-pixel) grid lines
// introduced by oversampling.
type point struct{ x, y int }

// Frame holds the source buffers, the continuity mask the vector/split/base
// passes build from them, and the traced loops the combine/distribute/
// discard/write passes produce.
type Frame struct {
	gbuffer meshgen.GBuffer
	closed  []bool // per-pixel: true if part of a depth-continuous region
	loops   []Loop
}

func (f *Frame) DepthBuffer() any    { return f.gbuffer.Depth }
func (f *Frame) NormalBuffer() any   { return f.gbuffer.Normal }
func (f *Frame) ObjectIDBuffer() any { return f.gbuffer.ObjectID }

func (f *Frame) SetGBuffer(g meshgen.GBuffer) { f.gbuffer = g }

func (g *Generator) CreateFrame() meshgen.GeneratorFrame { return &Frame{} }

func (g *Generator) DestroyFrame(frame meshgen.GeneratorFrame) {}

// SubmitFrame runs the vector/split/base passes: vector computes a
// discontinuity test between each pixel and its right/down neighbor
// (depth-base + depth-slope threshold, plus an optional normal-angle and
// object-id test), split/base mark each pixel as "closed" (depth-continuous
// with all sampled neighbors) or not. This is the CPU equivalent of the
// original's three-pass continuity test; see the package doc for why the
// GPU shader math itself isn't reproduced bit-exact.
func (g *Generator) SubmitFrame(ctx context.Context, frame meshgen.GeneratorFrame) error {
	f := frame.(*Frame)
	w, h := f.gbuffer.Width, f.gbuffer.Height
	f.closed = make([]bool, w*h)

	continuous := func(ax, ay, bx, by int) bool {
		da := f.gbuffer.Depth[ay*w+ax]
		db := f.gbuffer.Depth[by*w+bx]
		if da > g.depthMax || db > g.depthMax {
			return false
		}
		diff := da - db
		if diff < 0 {
			diff = -diff
		}
		threshold := g.depthBaseThreshold + g.depthSlopeThreshold*da
		if diff > threshold {
			return false
		}
		if g.useNormals && len(f.gbuffer.Normal) == w*h {
			na := f.gbuffer.Normal[ay*w+ax]
			nb := f.gbuffer.Normal[by*w+bx]
			if angleBetween(na, nb) > g.normalThreshold {
				return false
			}
		}
		if g.useObjectIDs && len(f.gbuffer.ObjectID) == w*h {
			if f.gbuffer.ObjectID[ay*w+ax] != f.gbuffer.ObjectID[by*w+bx] {
				return false
			}
		}
		return true
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ok := true
			if x+1 < w {
				ok = ok && continuous(x, y, x+1, y)
			}
			if y+1 < h {
				ok = ok && continuous(x, y, x, y+1)
			}
			f.closed[y*w+x] = ok
		}
	}
	return nil
}

func angleBetween(a, b [3]float32) float32 {
	dot := a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
	if dot > 1 {
		dot = 1
	}
	if dot < -1 {
		dot = -1
	}
	return float32(math.Acos(float64(dot)))
}

func (g *Generator) MapFrame(frame meshgen.GeneratorFrame) error { return nil }

func (g *Generator) UnmapFrame(frame meshgen.GeneratorFrame) {}

// Triangulate runs the combine/distribute/discard/write passes: combine
// groups connected closed pixels into regions and traces each region's
// boundary (outer ring plus any enclosed holes, bridged into one simple
// polygon) on the 2x corner grid, distribute keeps one Loop per connected
// region with its LoopSegments compressed from the traced boundary, discard
// drops loops shorter than loopLengthMin and truncates to loopMax/segmentMax,
// and write triangulates each surviving loop with the sweep-line monotone
// decomposition from loop_triangulation.hpp (falling back to ear clipping
// only if that decomposition's output fails validation — see triangulate.go).
func (g *Generator) Triangulate(frame meshgen.GeneratorFrame, stat *meshgen.Statistic) ([]wire.Index, []wire.Vertex, error) {
	combineStart := time.Now()
	f := frame.(*Frame)
	f.loops = traceLoops(f)
	stat.StageTimes[wire.StageCombine] = float32(time.Since(combineStart).Seconds() * 1000)

	discardStart := time.Now()
	kept := f.loops[:0]
	for _, loop := range f.loops {
		if loop.PointCount() >= g.loopLengthMin {
			kept = append(kept, loop)
		}
	}
	if len(kept) > loopMax {
		kept = kept[:loopMax]
	}
	var segTotal int
	capped := kept[:0]
	for _, loop := range kept {
		if segTotal+len(loop.Segments) > segmentMax {
			break
		}
		segTotal += len(loop.Segments)
		capped = append(capped, loop)
	}
	f.loops = capped
	stat.LoopCount = uint32(len(f.loops))
	stat.StageTimes[wire.StageDiscard] = float32(time.Since(discardStart).Seconds() * 1000)

	writeStart := time.Now()
	var vertices []wire.Vertex
	var indices []wire.Index
	var segmentCount, pointCount uint32
	w, h := f.gbuffer.Width, f.gbuffer.Height

	for _, loop := range f.loops {
		pts := loop.Points
		pointCount += uint32(len(pts))
		segmentCount += uint32(len(loop.Segments))

		sweepStart := time.Now()
		tris := triangulateLoop(loop)
		stat.StageTimes[wire.StageSweepLine] += float32(time.Since(sweepStart).Seconds() * 1000)

		base := wire.Index(len(vertices))
		for i, p := range pts {
			if loop.Bridge[i] {
				vertices = append(vertices, wire.Vertex{X: uint16(p.x / 2), Y: uint16(p.y / 2), Z: bridgeDepthSentinel})
				continue
			}
			px, py := p.x/2, p.y/2
			if px >= w {
				px = w - 1
			}
			if py >= h {
				py = h - 1
			}
			vertices = append(vertices, wire.Vertex{X: uint16(p.x / 2), Y: uint16(p.y / 2), Z: f.gbuffer.Depth[py*w+px]})
		}
		for _, tri := range tris {
			indices = append(indices, base+wire.Index(tri[0]), base+wire.Index(tri[1]), base+wire.Index(tri[2]))
		}
	}
	stat.SegmentCount = segmentCount
	stat.PointCount = pointCount
	stat.StageTimes[wire.StageWrite] = float32(time.Since(writeStart).Seconds() * 1000)
	stat.StageTimes[wire.StageTriangulation] = stat.StageTimes[wire.StageSweepLine]

	return indices, vertices, nil
}
