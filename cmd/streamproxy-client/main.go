// Command streamproxy-client is the thin client: it opens a session against
// a streamproxy-server, issues render requests from an orbiting camera, and
// reports the decoded mesh/image statistics for each layer it receives,
// mirroring stream_client.hpp's SessionClient driving loop without the
// original's on-screen GPU reassembly (see SPEC_FULL.md's Non-goals).
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Carmen-Shannon/streamproxy/client/decode"
	"github.com/Carmen-Shannon/streamproxy/common"
	"github.com/Carmen-Shannon/streamproxy/internal/telemetry"
	"github.com/Carmen-Shannon/streamproxy/internal/transport"
	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

func main() {
	addr := flag.String("server", "localhost:9000", "streamproxy-server address")
	path := flag.String("path", "/stream", "WebSocket endpoint path")
	scene := flag.String("scene", "scene.gltf", "scene file name, resolved by the server's scene directory")
	width := flag.Uint("width", 1280, "render width")
	height := flag.Uint("height", 720, "render height")
	layers := flag.Uint("layers", 1, "layer count")
	views := flag.Uint("views", 1, "view count per request")
	generator := flag.String("generator", "loop", "mesh generator: loop, quad, or line")
	fps := flag.Float64("fps", 30, "render request rate")
	orbitRadius := flag.Float64("radius", 5, "camera orbit radius")
	flag.Parse()

	log := telemetry.New(telemetry.Options{Pretty: true})

	if *views > wire.ViewCountMax {
		log.Fatal().Uint("views", *views).Int("max", wire.ViewCountMax).Msg("too many views requested")
	}
	if *layers == 0 || *views == 0 {
		log.Fatal().Msg("layers and views must be at least 1")
	}

	conn, err := transport.Dial(*addr, *path, log)
	if err != nil {
		log.Fatal().Err(err).Msg("dial failed")
	}
	defer conn.Close()

	genKind, err := parseGeneratorKind(*generator)
	if err != nil {
		log.Fatal().Err(err).Msg("bad generator flag")
	}

	var projection wire.Matrix
	common.Perspective(projection[:], float32(45*math.Pi/180), float32(*width)/float32(*height), 0.1, 1000)

	create := wire.SessionCreate{
		MeshGenerator:          genKind,
		VideoCodec:             wire.VideoCodecH264,
		ProjectionMatrix:       projection,
		ResolutionW:            uint32(*width),
		ResolutionH:            uint32(*height),
		LayerCount:             uint32(*layers),
		ViewCount:              uint32(*views),
		SceneFileName:          *scene,
		SceneScale:             1,
		SceneExposure:          1,
		SceneIndirectIntensity: 1,
	}
	if err := conn.Send(create.Encode()); err != nil {
		log.Fatal().Err(err).Msg("session create failed")
	}
	log.Info().Str("scene", *scene).Uint("layers", *layers).Uint("views", *views).Msg("session created")

	dec := decode.NewSession(int(*layers))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go dec.Run(ctx)
	go pumpInbound(ctx, conn, dec, log)
	go reportDecoded(ctx, dec, log)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / (*fps)))
	defer ticker.Stop()

	var requestID uint32
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Send(wire.EncodeSessionDestroy())
			return
		case <-ticker.C:
			requestID++
			req := wire.RenderRequest{RequestID: requestID}
			elapsed := time.Since(start).Seconds()
			for v := uint32(0); v < uint32(*views); v++ {
				azimuth := elapsed + float64(v)*(2*math.Pi/float64(*views))
				eyeX := float32(*orbitRadius * math.Cos(azimuth))
				eyeZ := float32(*orbitRadius * math.Sin(azimuth))
				common.LookAt(req.ViewMatrices[v][:], eyeX, 1, eyeZ, 0, 0, 0, 0, 1, 0)
			}
			if err := conn.Send(req.Encode()); err != nil {
				log.Error().Err(err).Msg("render request send failed")
			}
		}
	}
}

func pumpInbound(ctx context.Context, conn *transport.Conn, dec *decode.Session, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-conn.Inbox():
			if !ok {
				return
			}
			switch pkt.Type {
			case wire.TypeLayerResponse:
				dec.Feed(pkt.Payload)
			default:
				log.Debug().Int("type", int(pkt.Type)).Msg("unhandled inbound packet")
			}
		}
	}
}

func reportDecoded(ctx context.Context, dec *decode.Session, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case layer := <-dec.Layers():
			log.Info().
				Uint32("request_id", layer.RequestID).
				Uint32("layer", layer.LayerIndex).
				Int("vertices", len(layer.Vertices)).
				Int("indices", len(layer.Indices)).
				Int("image_bytes", len(layer.Image)).
				Msg("decoded layer")
		case err := <-dec.Errors():
			log.Warn().Err(err).Msg("decode error")
		}
	}
}

func parseGeneratorKind(s string) (wire.MeshGeneratorKind, error) {
	switch s {
	case "loop":
		return wire.MeshGeneratorLoop, nil
	case "quad":
		return wire.MeshGeneratorQuad, nil
	case "line":
		return wire.MeshGeneratorLine, nil
	default:
		return 0, fmt.Errorf("unknown generator %q (want loop, quad, or line)", s)
	}
}
