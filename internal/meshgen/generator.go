// Package meshgen defines the mesh generator contract shared by the three
// generator kinds (quadgen, linegen, loopgen) and the depth/normal/object-id
// source buffers every generator consumes, generalizing the original
// implementation's MeshGenerator/MeshGeneratorFrame abstract classes into a
// Go interface pair (see REDESIGN FLAGS: "replace with a generator-kind
// variant plus a Generator trait/interface").
package meshgen

import (
	"context"

	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

// GBuffer is the GPU-resident per-view source data a generator reads to
// extract geometry: the depth buffer plus the optional normal and
// object-id buffers used by threshold tests. Width/Height describe the
// layout all three slices share; Depth/Normal/ObjectID are row-major,
// Height rows of Width samples.
type GBuffer struct {
	Width, Height int
	Depth         []float32
	Normal        [][3]float32
	ObjectID      []uint32
}

// Statistic carries the per-view stage timings and geometry counts a
// generator reports back, matching the wire.ViewMetadata fields a
// completed triangulation fills in.
type Statistic struct {
	StageTimes               [24]float32
	LoopCount, SegmentCount  uint32
	PointCount, LineCount    uint32
}

// GeneratorFrame is one view's in-flight generator state: the GPU buffers a
// render pass wrote into and the staging area CreateFrame reserved for it.
type GeneratorFrame interface {
	// DepthBuffer/NormalBuffer/ObjectIDBuffer expose the GPU resources the
	// renderer writes into for this view, so the render pipeline can bind
	// them as render targets before each frame.
	DepthBuffer() any
	NormalBuffer() any
	ObjectIDBuffer() any
}

// Generator is the shared contract every mesh generation algorithm
// implements: create/destroy bind it to a resolution, Apply reconfigures
// its thresholds from session mesh settings, and the Create/Destroy/Submit/
// Map/Unmap/Triangulate frame operations mirror the GPU pass pipeline a
// render loop drives once per layer per view.
type Generator interface {
	Kind() wire.MeshGeneratorKind

	Create(ctx context.Context, width, height int) error
	Destroy()
	Apply(settings wire.MeshSettings)

	CreateFrame() GeneratorFrame
	DestroyFrame(frame GeneratorFrame)

	// SubmitFrame dispatches the GPU compute passes that extract geometry
	// from a GeneratorFrame's depth/normal/object-id buffers. It returns
	// once the passes are recorded; completion is observed via MapFrame.
	SubmitFrame(ctx context.Context, frame GeneratorFrame) error

	// MapFrame/UnmapFrame bracket CPU access to a frame's GPU-produced
	// intermediate buffers (e.g. the loop/segment buffers loopgen's CPU
	// sweep-line triangulator reads).
	MapFrame(frame GeneratorFrame) error
	UnmapFrame(frame GeneratorFrame)

	// Triangulate performs any CPU-side work needed to turn the mapped
	// frame's GPU output into a final index/vertex mesh, filling in
	// Statistic's stage timings and counts.
	Triangulate(frame GeneratorFrame, stat *Statistic) ([]wire.Index, []wire.Vertex, error)
}
