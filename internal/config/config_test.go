package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesOriginalFieldInitializers(t *testing.T) {
	cfg := Default()
	require.Equal(t, "./scene", cfg.SceneDirectory)
	require.Equal(t, "./study", cfg.StudyDirectory)
	require.Equal(t, float32(1.0), cfg.SceneScale)
	require.Equal(t, float32(1.0), cfg.SceneExposure)
	require.Equal(t, float32(1.0), cfg.SceneIndirect)
	require.Equal(t, float32(1.0), cfg.SkyIntensity)
	require.Equal(t, float32(0.0), cfg.SkyRotation)
}

func TestParseAppliesFlagsAndPositionalSceneFile(t *testing.T) {
	var got Config
	err := Parse([]string{"--scene_scale=2.5", "--sky_file_name=dawn.hdr", "sponza.gltf"}, func(cfg Config) error {
		got = cfg
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, float32(2.5), got.SceneScale)
	require.Equal(t, "dawn.hdr", got.SkyFileName)
	require.Equal(t, "sponza.gltf", got.SceneFileName)
}

func TestParseRejectsTooManyPositionalArgs(t *testing.T) {
	err := Parse([]string{"a.gltf", "b.gltf"}, func(Config) error { return nil })
	require.Error(t, err)
}

func TestParseSurfacesRunError(t *testing.T) {
	err := Parse(nil, func(Config) error { return errBoom })
	require.ErrorIs(t, err, errBoom)
}

var errBoom = boomError{}

type boomError struct{}

func (boomError) Error() string { return "boom" }
