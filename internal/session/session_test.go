package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

func TestNewSessionInitializesLayersOnCreate(t *testing.T) {
	s := NewSession(nil, nil)
	err := s.Machine.HandleSessionCreate(wire.SessionCreate{
		LayerCount: 3,
		MeshGenerator: wire.MeshGeneratorLoop,
	})
	require.Nil(t, err)
	require.Len(t, s.Layers, 3)
	for _, l := range s.Layers {
		require.Equal(t, wire.MeshGeneratorLoop, l.MeshSettings.Kind)
		require.True(t, l.MeshSettings.Loop.UseNormals)
	}
}

func TestNewSessionClearsLayersOnDestroy(t *testing.T) {
	s := NewSession(nil, nil)
	require.Nil(t, s.Machine.HandleSessionCreate(wire.SessionCreate{LayerCount: 2}))
	require.Len(t, s.Layers, 2)

	s.Machine.HandleSessionDestroy()
	require.Nil(t, s.Layers)
}

func TestApplyMeshSettingsOutOfRangeLayer(t *testing.T) {
	s := NewSession(nil, nil)
	require.Nil(t, s.Machine.HandleSessionCreate(wire.SessionCreate{LayerCount: 1}))

	err := s.ApplyMeshSettings(5, wire.MeshSettings{})
	require.NotNil(t, err)
	require.Equal(t, KindProtocol, err.Kind)
}

func TestApplyMeshSettingsUpdatesLayer(t *testing.T) {
	s := NewSession(nil, nil)
	require.Nil(t, s.Machine.HandleSessionCreate(wire.SessionCreate{LayerCount: 1}))

	settings := wire.DefaultMeshSettings(wire.MeshGeneratorQuad)
	settings.Quad.DepthThreshold = 0.02
	require.Nil(t, s.ApplyMeshSettings(0, settings))
	require.Equal(t, float32(0.02), s.Layers[0].MeshSettings.Quad.DepthThreshold)
}

func TestRecordViewMatricesOutOfRangeLayer(t *testing.T) {
	s := NewSession(nil, nil)
	require.Nil(t, s.Machine.HandleSessionCreate(wire.SessionCreate{LayerCount: 1}))

	var matrices [wire.ViewCountMax]wire.Matrix
	err := s.RecordViewMatrices(2, matrices)
	require.NotNil(t, err)
}

func TestApplyVideoSettings(t *testing.T) {
	s := NewSession(nil, nil)
	require.Nil(t, s.Machine.HandleSessionCreate(wire.SessionCreate{LayerCount: 1}))

	s.ApplyVideoSettings(wire.VideoSettings{Mode: wire.VideoModeCQ, Framerate: 30})
	require.Equal(t, wire.VideoModeCQ, s.Video.Mode)
	require.Equal(t, uint32(30), s.Video.Framerate)
}
