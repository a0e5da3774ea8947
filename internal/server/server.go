package server

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Carmen-Shannon/streamproxy/internal/encoder"
	"github.com/Carmen-Shannon/streamproxy/internal/meshgen"
	"github.com/Carmen-Shannon/streamproxy/internal/meshgen/linegen"
	"github.com/Carmen-Shannon/streamproxy/internal/meshgen/loopgen"
	"github.com/Carmen-Shannon/streamproxy/internal/meshgen/quadgen"
	"github.com/Carmen-Shannon/streamproxy/internal/session"
	"github.com/Carmen-Shannon/streamproxy/internal/transport"
	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

// RendererFactory builds a per-session Renderer bound to the scene named by
// the session's Config, generalizing application.hpp's Application class
// owning one Scene/Camera pair for the process's lifetime into one
// constructed per session (a session's SceneFile can change between
// SessionCreate calls).
type RendererFactory func(cfg session.Config) (Renderer, error)

// GeneratorFactory builds the mesh generator for one layer. Defaults to
// newGenerator (quadgen/linegen/loopgen selected by kind); overridable for
// testing.
type GeneratorFactory func(kind wire.MeshGeneratorKind) (meshgen.Generator, error)

// EncoderFactory builds the video encoder for one layer. Defaults to a
// GStreamer-backed encoder.NewGst; overridable for testing.
type EncoderFactory func(codec wire.VideoCodec) encoder.Encoder

// Server owns one active client session at a time and dispatches its
// decoded inbound packets (session/render/settings messages) to the
// session state machine and per-layer pipelines, mirroring
// application.hpp's Application::process_session dispatch over
// ServerMessage.
type Server struct {
	log         zerolog.Logger
	newRenderer RendererFactory
	newGen      GeneratorFactory
	newEnc      EncoderFactory

	sess   *session.Session
	layers []*LayerPipeline
	conn   *transport.Conn
}

// New constructs a Server. newRenderer is invoked on every successful
// SessionCreate to obtain the Renderer the session's layers will draw
// through.
func New(log zerolog.Logger, newRenderer RendererFactory) *Server {
	s := &Server{
		log:         log,
		newRenderer: newRenderer,
		newGen:      newGenerator,
		newEnc:      func(codec wire.VideoCodec) encoder.Encoder { return encoder.NewGst(codec) },
	}
	s.sess = session.NewSession(s.onSessionCreate, s.onSessionDestroy)
	return s
}

// WithFactories overrides the generator/encoder construction, for tests and
// for alternate encoder/generator backends.
func (s *Server) WithFactories(newGen GeneratorFactory, newEnc EncoderFactory) *Server {
	s.newGen = newGen
	s.newEnc = newEnc
	return s
}

// Attach binds the server to a newly accepted connection. The caller
// dispatches inbound packets from conn.Inbox() into HandlePacket, typically
// in its own goroutine driven by a select over Inbox()/Closed().
func (s *Server) Attach(conn *transport.Conn) {
	s.conn = conn
}

func newGenerator(kind wire.MeshGeneratorKind) (meshgen.Generator, error) {
	switch kind {
	case wire.MeshGeneratorQuad:
		return quadgen.New(), nil
	case wire.MeshGeneratorLine:
		return linegen.New(), nil
	case wire.MeshGeneratorLoop:
		return loopgen.New(), nil
	default:
		return nil, fmt.Errorf("server: unknown mesh generator kind %d", kind)
	}
}

func (s *Server) onSessionCreate(cfg session.Config) error {
	ctx := context.Background()

	renderer, err := s.newRenderer(cfg)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}

	layers := make([]*LayerPipeline, cfg.LayerCount)
	for i := range layers {
		gen, err := s.newGen(cfg.Generator)
		if err != nil {
			return err
		}
		if err := gen.Create(ctx, int(cfg.Resolution.W), int(cfg.Resolution.H)); err != nil {
			return fmt.Errorf("create generator for layer %d: %w", i, err)
		}

		enc := s.newEnc(cfg.Codec)
		if err := enc.Create(ctx, int(cfg.Resolution.W), int(cfg.Resolution.H), wire.VideoSettings{Mode: wire.VideoModeCBR, Framerate: 60, Bitrate: 20_000_000, Quality: 0.8}, cfg.Chroma); err != nil {
			gen.Destroy()
			return fmt.Errorf("create encoder for layer %d: %w", i, err)
		}

		layerLog := s.log.With().Int("layer", i).Logger()
		layers[i] = NewLayerPipeline(i, int(cfg.ViewCount), gen, enc, renderer, s, layerLog)
	}
	s.layers = layers
	return nil
}

func (s *Server) onSessionDestroy() {
	for _, lp := range s.layers {
		if lp != nil {
			lp.Close()
		}
	}
	s.layers = nil
}

// Send implements Publisher by forwarding to the attached connection.
func (s *Server) Send(frame []byte) error {
	if s.conn == nil {
		return fmt.Errorf("server: no connection attached")
	}
	return s.conn.Send(frame)
}

// HandlePacket dispatches one decoded inbound packet to the session state
// machine and, for RenderRequest, fans it out to every layer's pipeline.
// Fatal session errors are logged and otherwise swallowed: per the
// protocol, a fatal error tears the session down to Idle and the client is
// expected to issue a fresh SessionCreate.
func (s *Server) HandlePacket(ctx context.Context, pkt transport.Packet) {
	switch pkt.Type {
	case wire.TypeSessionCreate:
		p, err := wire.DecodeSessionCreate(pkt.Payload)
		if err != nil {
			s.log.Warn().Err(err).Msg("malformed SessionCreate")
			return
		}
		if serr := s.sess.Machine.HandleSessionCreate(p); serr != nil {
			s.log.Error().Err(serr).Msg("session create failed")
		}

	case wire.TypeSessionDestroy:
		s.sess.Machine.HandleSessionDestroy()

	case wire.TypeMeshSettings:
		p, err := wire.DecodeMeshSettings(pkt.Payload)
		if err != nil {
			s.log.Warn().Err(err).Msg("malformed MeshSettings")
			return
		}
		// MeshSettings carries no layer index on the wire: it reconfigures
		// every layer's generator uniformly.
		for i, lp := range s.layers {
			if serr := s.sess.ApplyMeshSettings(i, p); serr != nil {
				s.log.Warn().Err(serr).Msg("mesh settings rejected")
				continue
			}
			if lp != nil {
				lp.generator.Apply(p)
			}
		}

	case wire.TypeVideoSettings:
		p, err := wire.DecodeVideoSettings(pkt.Payload)
		if err != nil {
			s.log.Warn().Err(err).Msg("malformed VideoSettings")
			return
		}
		s.sess.ApplyVideoSettings(p)
		for _, lp := range s.layers {
			if lp == nil {
				continue
			}
			if err := lp.enc.Reconfigure(p); err != nil {
				s.log.Error().Err(err).Msg("encoder reconfigure failed")
			}
		}

	case wire.TypeRenderRequest:
		p, err := wire.DecodeRenderRequest(pkt.Payload)
		if err != nil {
			s.log.Warn().Err(err).Msg("malformed RenderRequest")
			return
		}
		if serr := s.sess.Machine.SubmitRenderRequest(p); serr != nil {
			s.log.Debug().Err(serr).Msg("render request dropped")
			return
		}

	default:
		s.log.Warn().Int("type", int(pkt.Type)).Msg("unhandled packet type")
	}
}

// Tick drains the latest coalesced RenderRequest, if any, and dispatches it
// to every layer. Called once per render-loop iteration, matching
// Application::process_session's render step.
func (s *Server) Tick(ctx context.Context) {
	req, ok := s.sess.Machine.TakeLatestRenderRequest()
	if !ok {
		return
	}
	cfg := s.sess.Machine.Config()

	for i, lp := range s.layers {
		if lp == nil {
			continue
		}
		if serr := s.sess.RecordViewMatrices(i, req.ViewMatrices); serr != nil {
			s.log.Warn().Err(serr).Msg("record view matrices failed")
			continue
		}
		if serr := lp.Submit(ctx, req.RequestID, req.ViewMatrices, cfg.Projection); serr != nil {
			if serr == session.ErrBusy {
				s.sess.Machine.Requeue(req)
			} else {
				s.log.Error().Err(serr).Int("layer", i).Msg("layer submit failed")
			}
		}
	}
}

// HandleTransportClose treats the client disconnecting as an implicit
// SessionDestroy.
func (s *Server) HandleTransportClose() {
	s.sess.Machine.HandleTransportClose()
	s.conn = nil
}
