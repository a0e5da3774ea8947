package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/streamproxy/internal/encoder"
	"github.com/Carmen-Shannon/streamproxy/internal/meshgen"
	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

type fakeGeneratorFrame struct{ view int }

func (f *fakeGeneratorFrame) DepthBuffer() any    { return nil }
func (f *fakeGeneratorFrame) NormalBuffer() any   { return nil }
func (f *fakeGeneratorFrame) ObjectIDBuffer() any { return nil }

type fakeGenerator struct {
	mu       sync.Mutex
	applied  []wire.MeshSettings
}

func (g *fakeGenerator) Kind() wire.MeshGeneratorKind { return wire.MeshGeneratorLoop }
func (g *fakeGenerator) Create(ctx context.Context, width, height int) error { return nil }
func (g *fakeGenerator) Destroy()                                            {}
func (g *fakeGenerator) Apply(settings wire.MeshSettings) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.applied = append(g.applied, settings)
}
func (g *fakeGenerator) CreateFrame() meshgen.GeneratorFrame       { return &fakeGeneratorFrame{} }
func (g *fakeGenerator) DestroyFrame(frame meshgen.GeneratorFrame) {}
func (g *fakeGenerator) SubmitFrame(ctx context.Context, frame meshgen.GeneratorFrame) error {
	return nil
}
func (g *fakeGenerator) MapFrame(frame meshgen.GeneratorFrame) error { return nil }
func (g *fakeGenerator) UnmapFrame(frame meshgen.GeneratorFrame)     {}
func (g *fakeGenerator) Triangulate(frame meshgen.GeneratorFrame, stat *meshgen.Statistic) ([]wire.Index, []wire.Vertex, error) {
	return []wire.Index{0, 1, 2}, []wire.Vertex{{X: 0}, {X: 1}, {X: 2}}, nil
}

type fakeEncoder struct{}

func (e *fakeEncoder) Codec() wire.VideoCodec { return wire.VideoCodecH264 }
func (e *fakeEncoder) Create(ctx context.Context, width, height int, settings wire.VideoSettings, chroma bool) error {
	return nil
}
func (e *fakeEncoder) Destroy()                          {}
func (e *fakeEncoder) CreateFrame() *encoder.Frame       { return &encoder.Frame{} }
func (e *fakeEncoder) DestroyFrame(frame *encoder.Frame) {}
func (e *fakeEncoder) Submit(ctx context.Context, frame *encoder.Frame, rgba []byte) error {
	return nil
}
func (e *fakeEncoder) Map(ctx context.Context, frame *encoder.Frame) ([]byte, error) {
	return []byte{0xAA, 0xBB}, nil
}
func (e *fakeEncoder) Unmap(frame *encoder.Frame)                    {}
func (e *fakeEncoder) Reconfigure(settings wire.VideoSettings) error { return nil }

type fakeRenderer struct{}

func (r *fakeRenderer) RenderView(ctx context.Context, layer, view int, viewMatrix, projection wire.Matrix, frame meshgen.GeneratorFrame) error {
	return nil
}
func (r *fakeRenderer) CaptureColor(ctx context.Context, layer int) ([]byte, error) {
	return []byte{1, 2, 3, 4}, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	sent [][]byte
}

func (p *fakePublisher) Send(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, frame)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func TestLayerPipelineSubmitSendsLayerResponse(t *testing.T) {
	gen := &fakeGenerator{}
	enc := &fakeEncoder{}
	pub := &fakePublisher{}

	lp := NewLayerPipeline(0, 2, gen, enc, &fakeRenderer{}, pub, zerolog.Nop())
	defer lp.Close()

	var matrices [wire.ViewCountMax]wire.Matrix
	serr := lp.Submit(context.Background(), 1, matrices, wire.Matrix{})
	require.Nil(t, serr)

	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, time.Millisecond)
}

func TestLayerPipelineBusyWhenPoolExhausted(t *testing.T) {
	gen := &fakeGenerator{}
	enc := &fakeEncoder{}
	pub := &fakePublisher{}

	lp := NewLayerPipeline(0, 1, gen, enc, &fakeRenderer{}, pub, zerolog.Nop())
	defer lp.Close()

	var matrices [wire.ViewCountMax]wire.Matrix
	for i := 0; i < 8; i++ {
		_ = lp.Submit(context.Background(), uint32(i), matrices, wire.Matrix{})
	}
	require.Eventually(t, func() bool { return pub.count() >= 1 }, time.Second, time.Millisecond)
}
