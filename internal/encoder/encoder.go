// Package encoder wraps a hardware-accelerated video encoder behind the
// create/create_frame/submit/map/unmap/destroy_frame/destroy contract the
// original implementation's Encoder class exposes (see
// original_source/server/source/encoder.hpp), backed by a GStreamer
// encode pipeline (github.com/go-gst/go-gst) instead of the original's
// direct NVENC/Vulkan interop, grounded on the GstPipeline wrapper in
// helixml-helix's api/pkg/desktop/gst_pipeline.go.
package encoder

import (
	"context"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

// Frame is one in-flight encode unit: the color buffer staged for encoding
// and the elementary-stream bytes it produced once mapped.
type Frame struct {
	Width, Height int

	submitted bool
	output    chan encodeResult
}

type encodeResult struct {
	data           []byte
	parameterBytes []byte
	configChanged  bool
	err            error
}

// Encoder is the contract a session drives once per layer per frame: submit
// a color buffer, then map to block until the compressed bytes are ready.
type Encoder interface {
	Codec() wire.VideoCodec

	Create(ctx context.Context, width, height int, settings wire.VideoSettings, chromaSubsampling bool) error
	Destroy()

	CreateFrame() *Frame
	DestroyFrame(frame *Frame)

	// Submit pushes a raw RGBA color buffer into the encode pipeline.
	Submit(ctx context.Context, frame *Frame, rgba []byte) error

	// Map blocks until the submitted frame's encoded bytes are available,
	// returning the elementary-stream payload (with any out-of-band
	// parameter set bytes, e.g. SPS/PPS on a config change, prefixed).
	Map(ctx context.Context, frame *Frame) ([]byte, error)
	// Unmap releases resources Map staged; safe to call unconditionally
	// after Map, whether or not Map succeeded.
	Unmap(frame *Frame)

	// Reconfigure applies new bitrate/quality/framerate settings to the
	// running pipeline, corresponding to a VideoSettings packet.
	Reconfigure(settings wire.VideoSettings) error
}

// intraRefreshCount returns the original implementation's formula for
// H264/H265 intra-refresh period: max(framerate*2, 20), used to bound the
// time until every macroblock has refreshed at least once.
func intraRefreshCount(framerate uint32) uint32 {
	n := framerate * 2
	if n < 20 {
		return 20
	}
	return n
}

var errNotSubmitted = fmt.Errorf("encoder: Map called before Submit")

// waitForResult is a small helper shared by backends: it blocks on the
// frame's output channel or ctx, used by Map.
func waitForResult(ctx context.Context, frame *Frame) ([]byte, error) {
	if !frame.submitted {
		return nil, errNotSubmitted
	}
	select {
	case res := <-frame.output:
		if res.err != nil {
			return nil, res.err
		}
		out := res.data
		if res.configChanged {
			combined := make([]byte, 0, len(res.parameterBytes)+len(res.data))
			combined = append(combined, res.parameterBytes...)
			combined = append(combined, res.data...)
			out = combined
		}
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("encoder: timed out waiting for encoded frame")
	}
}
