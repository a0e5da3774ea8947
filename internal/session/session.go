package session

import (
	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

// LayerSession is the per-layer render state that accompanies a session's
// Config: the mesh settings active for that layer and the view matrices the
// last dispatched RenderRequest carried for it.
type LayerSession struct {
	MeshSettings wire.MeshSettings
	ViewMatrices [wire.ViewCountMax]wire.Matrix
}

// Session is the full server-side state for one active client session: the
// coarse Machine, the per-layer mesh settings, and the encoder/video
// settings in effect. It mirrors the original implementation's Session
// class (create/destroy/render_frame/set_*), split here into a state
// machine (Machine) plus this plain data holder so the pipeline and
// transport layers can each own the parts they need without a god object.
type Session struct {
	Machine *Machine

	Video  wire.VideoSettings
	Layers []LayerSession
}

// NewSession builds a Session whose Machine invokes onCreate/onDestroy as it
// transitions, and whose per-layer settings are (re)initialized from the
// session's LayerCount and MeshGenerator kind every time a session is
// created.
func NewSession(onCreate func(Config) error, onDestroy func()) *Session {
	s := &Session{}
	s.Machine = NewMachine(func(cfg Config) error {
		s.Layers = make([]LayerSession, cfg.LayerCount)
		for i := range s.Layers {
			s.Layers[i].MeshSettings = wire.DefaultMeshSettings(cfg.Generator)
		}
		s.Video = wire.VideoSettings{
			Mode:      wire.VideoModeCBR,
			Framerate: 60,
			Bitrate:   20_000_000,
			Quality:   0.8,
		}
		if onCreate != nil {
			return onCreate(cfg)
		}
		return nil
	}, func() {
		s.Layers = nil
		if onDestroy != nil {
			onDestroy()
		}
	})
	return s
}

// ApplyMeshSettings updates the mesh settings for a single layer in place.
// Out-of-range layer indices are a protocol error (the client referenced a
// layer the session was not created with).
func (s *Session) ApplyMeshSettings(layer int, settings wire.MeshSettings) *Error {
	if layer < 0 || layer >= len(s.Layers) {
		return Transientf(KindProtocol, "mesh settings for layer %d, session has %d layers", layer, len(s.Layers))
	}
	s.Layers[layer].MeshSettings = settings
	return nil
}

// ApplyVideoSettings updates the session-wide encoder settings.
func (s *Session) ApplyVideoSettings(settings wire.VideoSettings) {
	s.Video = settings
}

// RecordViewMatrices stores the view matrices a RenderRequest carried for a
// given layer, so later stages (mesh generation, the layer response header)
// can report the matrices a mesh was actually generated from.
func (s *Session) RecordViewMatrices(layer int, matrices [wire.ViewCountMax]wire.Matrix) *Error {
	if layer < 0 || layer >= len(s.Layers) {
		return Transientf(KindProtocol, "render request for layer %d, session has %d layers", layer, len(s.Layers))
	}
	s.Layers[layer].ViewMatrices = matrices
	return nil
}
