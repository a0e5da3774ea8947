package telemetry

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewEmitsLineDelimitedJSONByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf, Level: zerolog.InfoLevel})
	logger.Info().Str("scene_file", "sponza.gltf").Msg("session started")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "session started", decoded["message"])
	require.Equal(t, "sponza.gltf", decoded["scene_file"])
}

func TestLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf, Level: zerolog.WarnLevel})
	logger.Info().Msg("should be dropped")
	require.Empty(t, buf.Bytes())

	logger.Warn().Msg("should appear")
	require.NotEmpty(t, buf.Bytes())
}

func TestSessionLoggerTagsFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(Options{Output: &buf, Level: zerolog.InfoLevel})
	scoped := SessionLogger(base, 42, "sponza.gltf")
	scoped.Info().Msg("hello")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, float64(42), decoded["session_id"])
	require.Equal(t, "sponza.gltf", decoded["scene_file"])
}

func TestLayerLoggerAddsLayerField(t *testing.T) {
	var buf bytes.Buffer
	base := New(Options{Output: &buf, Level: zerolog.InfoLevel})
	scoped := LayerLogger(base, 3)
	scoped.Info().Msg("frame ready")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, float64(3), decoded["layer"])
}
