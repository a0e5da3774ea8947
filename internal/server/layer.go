// Package server wires the session state machine, per-layer frame pools,
// the mesh worker pool, the mesh generator, and the video encoder together
// into the render-request handling loop, grounded on
// original_source/server/source/session.hpp (Session/Frame) and
// worker.cpp's producer/consumer split between render submission and mesh
// triangulation.
package server

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Carmen-Shannon/streamproxy/internal/codec"
	"github.com/Carmen-Shannon/streamproxy/internal/encoder"
	"github.com/Carmen-Shannon/streamproxy/internal/meshgen"
	"github.com/Carmen-Shannon/streamproxy/internal/pipeline"
	"github.com/Carmen-Shannon/streamproxy/internal/session"
	"github.com/Carmen-Shannon/streamproxy/internal/wire"
	"github.com/Carmen-Shannon/streamproxy/internal/workerpool"
)

// Renderer renders one view of one layer's scene into the generator frame's
// bound depth/normal/object-id targets, and fills the layer's shared color
// target. It is the seam between this package's pipeline orchestration and
// the engine's WebGPU renderer: the renderer backend is free to batch all
// views of a layer into one render pass as long as it has populated every
// view's GeneratorFrame before returning.
type Renderer interface {
	RenderView(ctx context.Context, layer, view int, viewMatrix wire.Matrix, projection wire.Matrix, frame meshgen.GeneratorFrame) error
	CaptureColor(ctx context.Context, layer int) ([]byte, error)
}

// Publisher sends a fully encoded wire packet to the connected client.
type Publisher interface {
	Send(frame []byte) error
}

// LayerPipeline owns one session layer's frame pool, generator, worker pool,
// and encoder, and turns RenderRequests into LayerResponse packets.
type LayerPipeline struct {
	index      int
	viewCount  int
	generator  meshgen.Generator
	enc        encoder.Encoder
	renderer   Renderer
	publish    Publisher
	log        zerolog.Logger

	pool    *pipeline.FramePool
	workers *workerpool.Pool
}

// NewLayerPipeline constructs a layer's pipeline and starts its worker pool.
// Create must already have been called on generator and enc for the
// session's resolution before frames are submitted.
func NewLayerPipeline(index, viewCount int, generator meshgen.Generator, enc encoder.Encoder, renderer Renderer, publish Publisher, log zerolog.Logger) *LayerPipeline {
	lp := &LayerPipeline{
		index:     index,
		viewCount: viewCount,
		generator: generator,
		enc:       enc,
		renderer:  renderer,
		publish:   publish,
		log:       log,
		pool:      pipeline.NewFramePool(),
	}

	lp.workers = workerpool.New(viewCount, lp.triangulateView, lp.submitFrame)
	lp.workers.OnMeshError(func(view int, f *pipeline.Frame, err error) {
		lp.log.Error().Int("view", view).Uint32("request_id", f.RequestID).Err(err).Msg("mesh triangulation failed")
	})
	lp.workers.OnSubmitError(func(f *pipeline.Frame, err error) {
		lp.log.Error().Uint32("request_id", f.RequestID).Err(err).Msg("frame submit failed")
	})
	lp.workers.Start()
	return lp
}

// Close stops the worker pool. It does not own any generator/encoder frame
// handles beyond the lifetime of a single Submit, since those are created
// and destroyed per request (see Submit/submitFrame).
func (lp *LayerPipeline) Close() {
	lp.workers.Stop()
}

// Submit renders and dispatches one layer's share of a render request. It
// returns session.ErrBusy (via *session.Error) if the layer's frame pool is
// exhausted, matching the original's frame-pool-full backpressure.
func (lp *LayerPipeline) Submit(ctx context.Context, requestID uint32, viewMatrices [wire.ViewCountMax]wire.Matrix, projection wire.Matrix) *session.Error {
	frame, ok := lp.pool.Acquire()
	if !ok {
		return session.ErrBusy
	}
	frame.RequestID = requestID
	frame.LayerIndex = uint32(lp.index)
	frame.ViewMatrices = viewMatrices

	for v := 0; v < lp.viewCount; v++ {
		gf := lp.generator.CreateFrame()
		if err := lp.renderer.RenderView(ctx, lp.index, v, viewMatrices[v], projection, gf); err != nil {
			lp.generator.DestroyFrame(gf)
			lp.pool.Release(frame)
			return session.Transientf(session.KindGPU, "render view %d: %v", v, err)
		}
		if err := lp.generator.SubmitFrame(ctx, gf); err != nil {
			lp.generator.DestroyFrame(gf)
			lp.pool.Release(frame)
			return session.Transientf(session.KindGPU, "submit generator frame view %d: %v", v, err)
		}
		frame.MeshGeneratorFrame[v] = gf
	}

	color, err := lp.renderer.CaptureColor(ctx, lp.index)
	if err != nil {
		lp.releaseGeneratorFrames(frame)
		lp.pool.Release(frame)
		return session.Transientf(session.KindGPU, "capture color: %v", err)
	}
	frame.Image = color

	encFrame := lp.enc.CreateFrame()
	if err := lp.enc.Submit(ctx, encFrame, color); err != nil {
		lp.enc.DestroyFrame(encFrame)
		lp.releaseGeneratorFrames(frame)
		lp.pool.Release(frame)
		return session.Transientf(session.KindEncoder, "submit color frame: %v", err)
	}
	frame.EncoderFrame = encFrame

	frame.State = pipeline.FrameGpuInFlight
	lp.workers.Submit(frame)
	return nil
}

func (lp *LayerPipeline) releaseGeneratorFrames(frame *pipeline.Frame) {
	for v := 0; v < lp.viewCount; v++ {
		if gf, ok := frame.MeshGeneratorFrame[v].(meshgen.GeneratorFrame); ok && gf != nil {
			lp.generator.DestroyFrame(gf)
		}
	}
}

func (lp *LayerPipeline) triangulateView(view int, frame *pipeline.Frame) ([]wire.Index, []wire.Vertex, error) {
	gf, ok := frame.MeshGeneratorFrame[view].(meshgen.GeneratorFrame)
	if !ok || gf == nil {
		return nil, nil, fmt.Errorf("no generator frame bound for view %d", view)
	}

	if err := lp.generator.MapFrame(gf); err != nil {
		return nil, nil, fmt.Errorf("map generator frame: %w", err)
	}
	defer lp.generator.UnmapFrame(gf)

	var stat meshgen.Statistic
	indices, vertices, err := lp.generator.Triangulate(gf, &stat)
	if err != nil {
		return nil, nil, err
	}
	frame.TimeLayer[view] = stat.StageTimes[wire.StageWrite]
	return indices, vertices, nil
}

func (lp *LayerPipeline) submitFrame(frame *pipeline.Frame, indices []wire.Index, vertices []wire.Vertex) error {
	ctx := context.Background()
	encFrame := frame.EncoderFrame.(*encoder.Frame)
	imageBytes, err := lp.enc.Map(ctx, encFrame)
	lp.enc.Unmap(encFrame)
	lp.enc.DestroyFrame(encFrame)
	lp.releaseGeneratorFrames(frame)
	if err != nil {
		lp.pool.Release(frame)
		return fmt.Errorf("map encoded frame: %w", err)
	}

	geometry, err := codec.Encode(indices, vertices)
	if err != nil {
		lp.pool.Release(frame)
		return fmt.Errorf("encode geometry: %w", err)
	}

	header := wire.LayerResponseHeader{
		RequestID:    frame.RequestID,
		LayerIndex:   frame.LayerIndex,
		ViewMatrices: frame.ViewMatrices,
	}
	packet := wire.EncodeLayerResponse(header, geometry, imageBytes)

	if err := lp.publish.Send(packet); err != nil {
		lp.pool.Release(frame)
		return fmt.Errorf("send layer response: %w", err)
	}

	frame.State = pipeline.FrameSent
	lp.pool.Release(frame)
	return nil
}
