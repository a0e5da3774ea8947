// Package pipeline implements the per-layer frame lifecycle: the pool of
// reusable Frame slots a session's render loop draws from, and the state
// machine each Frame moves through from being recorded by the GPU to being
// handed off to the worker pool and finally reclaimed.
package pipeline

import (
	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

// FrameState is a Frame's position in its lifecycle:
//
//	Empty -> Recorded -> GpuInFlight -> MeshReady & EncoderReady -> CpuPostProcessing -> Sent -> Empty
//
// MeshReady and EncoderReady are tracked independently (mesh generation
// happens per-view, six in parallel, while encoding happens once per
// layer); CpuPostProcessing begins only once both have completed for every
// view.
type FrameState int

const (
	FrameEmpty FrameState = iota
	FrameRecorded
	FrameGpuInFlight
	FrameMeshReady
	FrameCpuPostProcessing
	FrameSent
)

func (s FrameState) String() string {
	switch s {
	case FrameEmpty:
		return "empty"
	case FrameRecorded:
		return "recorded"
	case FrameGpuInFlight:
		return "gpu_in_flight"
	case FrameMeshReady:
		return "mesh_ready"
	case FrameCpuPostProcessing:
		return "cpu_post_processing"
	case FrameSent:
		return "sent"
	default:
		return "unknown"
	}
}

// Frame is one in-flight unit of per-layer render/mesh/encode work, mirroring
// the original implementation's Frame struct (frame_buffers, mesh_generator_frame,
// encoder_frame, the per-view completion flags, and the per-view timers).
type Frame struct {
	State FrameState

	RequestID  uint32
	LayerIndex uint32

	ViewMatrices [wire.ViewCountMax]wire.Matrix

	// MeshGeneratorFrame is an opaque per-view GPU handle owned by the
	// active mesh generator (meshgen.Generator.CreateFrame); it is typed
	// as any here so this package does not depend on meshgen.
	MeshGeneratorFrame [wire.ViewCountMax]any
	MeshComplete        [wire.ViewCountMax]bool

	// EncoderFrame is the opaque GPU handle the color buffer is encoded
	// through, owned by the active encoder.Encoder.
	EncoderFrame    any
	EncoderComplete bool

	TimeLayer [wire.ViewCountMax]float32

	// Geometry/Image hold the CPU-side results once post-processing has
	// packed them for the wire: per-view encoded geometry blobs and the
	// single encoded video payload for the layer.
	Geometry [wire.ViewCountMax][]byte
	Image    []byte
}

// Reset returns the Frame to FrameEmpty and clears per-request state,
// without touching the GPU-owned handles (those are released by the
// generator/encoder that created them before Reset is called).
func (f *Frame) Reset() {
	f.State = FrameEmpty
	f.RequestID = 0
	f.LayerIndex = 0
	for i := range f.MeshComplete {
		f.MeshComplete[i] = false
		f.MeshGeneratorFrame[i] = nil
		f.Geometry[i] = nil
	}
	f.EncoderComplete = false
	f.EncoderFrame = nil
	f.Image = nil
}

// AllMeshComplete reports whether every view's mesh generation has finished.
func (f *Frame) AllMeshComplete() bool {
	for _, c := range f.MeshComplete {
		if !c {
			return false
		}
	}
	return true
}

// ReadyForPostProcessing reports whether both mesh generation (all views)
// and encoding have finished, the trigger to move to CpuPostProcessing.
func (f *Frame) ReadyForPostProcessing() bool {
	return f.AllMeshComplete() && f.EncoderComplete
}
