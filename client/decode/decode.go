// Package decode implements the thin client's receive side: a background
// worker that pulls raw LayerResponse frames off the wire, decompresses
// their geometry blob, and hands decoded layers to the caller through a
// channel, grounded on original_source/shared/source/stream_client.hpp's
// SessionClient (decoder_thread/messages_to_decode/decoded_layers).
//
// Where the original copies each decoded layer into a deque node allocated
// per frame, this package reuses one scratch Vertex/Index buffer pair per
// DecodedLayer slot and copies into it (the inline-copy ABI), trading a
// fixed small set of buffers for the original's per-frame heap churn.
package decode

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/streamproxy/internal/codec"
	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

// DecodedLayer is one fully decoded LayerResponse, ready for the renderer
// to consume. Vertices/Indices/Image alias scratch buffers owned by the
// Session that produced them and are only valid until the next receive on
// the same layer_index slot, whatever its request_id.
type DecodedLayer struct {
	RequestID  uint32
	LayerIndex uint32
	Header     wire.LayerResponseHeader
	Indices    []wire.Index
	Vertices   []wire.Vertex
	Image      []byte
}

// scratchSlot is one reusable decode destination, keyed by layer index so
// that layers decode independently without contending on a shared buffer.
type scratchSlot struct {
	indices  []wire.Index
	vertices []wire.Vertex
	image    []byte
}

// Session owns the decode worker and its scratch buffers for one streaming
// connection. Call Feed for every inbound wire.TypeLayerResponse packet and
// read decoded results from Layers.
type Session struct {
	layerCount int
	scratch    []scratchSlot

	in  chan []byte
	out chan DecodedLayer
	err chan error
}

// NewSession constructs a decode Session sized for layerCount concurrent
// layers (matching the session's configured layer count).
func NewSession(layerCount int) *Session {
	return &Session{
		layerCount: layerCount,
		scratch:    make([]scratchSlot, layerCount),
		in:         make(chan []byte, layerCount*2),
		out:        make(chan DecodedLayer, layerCount*2),
		err:        make(chan error, layerCount),
	}
}

// Layers is the channel of successfully decoded layers.
func (s *Session) Layers() <-chan DecodedLayer { return s.out }

// Errors is the channel of decode failures (malformed packets, geometry
// codec errors); the worker keeps running after reporting one.
func (s *Session) Errors() <-chan error { return s.err }

// Feed enqueues one raw LayerResponse payload (the bytes following the type
// tag, as produced by transport.Packet) for decoding. Feed does not block
// once Run is pumping; it blocks only if the caller races ahead of the
// worker by more than the channel's buffer.
func (s *Session) Feed(payload []byte) {
	s.in <- payload
}

// Run drives the decode worker until ctx is cancelled or the input channel
// is closed via Close.
func (s *Session) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-s.in:
			if !ok {
				return
			}
			s.decodeOne(payload)
		}
	}
}

// Close signals Run to stop once any already-queued payloads have drained.
func (s *Session) Close() {
	close(s.in)
}

func (s *Session) decodeOne(payload []byte) {
	header, geometry, image, err := wire.DecodeLayerResponse(payload)
	if err != nil {
		s.err <- fmt.Errorf("decode: layer response: %w", err)
		return
	}
	if int(header.LayerIndex) >= s.layerCount {
		s.err <- fmt.Errorf("decode: layer index %d out of range (have %d layers)", header.LayerIndex, s.layerCount)
		return
	}

	indices, vertices, err := codec.Decode(geometry)
	if err != nil {
		s.err <- fmt.Errorf("decode: geometry: %w", err)
		return
	}

	slot := &s.scratch[header.LayerIndex]
	slot.indices = append(slot.indices[:0], indices...)
	slot.vertices = append(slot.vertices[:0], vertices...)
	slot.image = append(slot.image[:0], image...)

	s.out <- DecodedLayer{
		RequestID:  header.RequestID,
		LayerIndex: header.LayerIndex,
		Header:     header,
		Indices:    slot.indices,
		Vertices:   slot.vertices,
		Image:      slot.image,
	}
}
