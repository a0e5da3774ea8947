// Package config parses the server's command-line arguments, replacing
// command_parser.hpp/.cpp's hand-rolled "--name=value" flag scanner with a
// github.com/spf13/cobra command, grounded on the teacher's use of cobra for
// its own example/CLI entry points.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Config holds the scene/sky/directory parameters the original
// CommandParser exposed, plus the network settings a remote renderer also
// needs.
type Config struct {
	SceneDirectory string
	StudyDirectory string

	SceneFileName string
	SceneScale    float32
	SceneExposure float32
	SceneIndirect float32

	SkyFileName string
	SkyIntensity float32
	SkyRotation  float32

	ShaderDirectory string
	ComputeShader   string
	VertexShader    string
	FragmentShader  string

	ListenAddress string
	AdminAddress  string
}

// Default mirrors CommandParser's field initializers.
func Default() Config {
	return Config{
		SceneDirectory: "./scene",
		StudyDirectory: "./study",
		SceneScale:     1.0,
		SceneExposure:  1.0,
		SceneIndirect:  1.0,
		SkyIntensity:   1.0,
		SkyRotation:    0.0,
		ShaderDirectory: "./assets/shaders",
		ComputeShader:   "animate.wgsl",
		VertexShader:    "unlit.vert.wgsl",
		FragmentShader:  "unlit.frag.wgsl",
		ListenAddress:  ":9000",
		AdminAddress:   ":9001",
	}
}

// Parse builds the root cobra command, wires flags onto cfg's fields, and
// runs it against args (normally os.Args[1:]). run is invoked once flags
// have been bound, with the positional scene file name (if any) already
// stored in cfg.SceneFileName — the original treated the final bare
// argument as the scene file, which Cobra models as Args: MaximumNArgs(1).
func Parse(args []string, run func(Config) error) error {
	cfg := Default()

	root := &cobra.Command{
		Use:   "streamproxy-server [scene-file]",
		Short: "Remote rendering server: streams depth-contour meshes and encoded color frames over WebSocket",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			if len(posArgs) == 1 {
				cfg.SceneFileName = posArgs[0]
			}
			return run(cfg)
		},
	}

	flags := root.Flags()
	flags.StringVar(&cfg.SceneDirectory, "scene_directory", cfg.SceneDirectory, "directory scene files are resolved relative to")
	flags.StringVar(&cfg.StudyDirectory, "study_directory", cfg.StudyDirectory, "directory capture artifacts are written to")
	flags.Float32Var(&cfg.SceneScale, "scene_scale", cfg.SceneScale, "uniform scale applied to the loaded scene")
	flags.Float32Var(&cfg.SceneExposure, "scene_exposure", cfg.SceneExposure, "exposure applied to the rendered image")
	flags.Float32Var(&cfg.SceneIndirect, "scene_indirect_intensity", cfg.SceneIndirect, "indirect lighting intensity multiplier")
	flags.StringVar(&cfg.SkyFileName, "sky_file_name", cfg.SkyFileName, "environment map file name")
	flags.Float32Var(&cfg.SkyIntensity, "sky_intensity", cfg.SkyIntensity, "environment map intensity multiplier")
	flags.Float32Var(&cfg.SkyRotation, "sky_rotation", cfg.SkyRotation, "environment map rotation, in radians")
	flags.StringVar(&cfg.ShaderDirectory, "shader_directory", cfg.ShaderDirectory, "directory WGSL shader assets are resolved relative to")
	flags.StringVar(&cfg.ComputeShader, "compute_shader", cfg.ComputeShader, "compute shader file name (animator instance transforms)")
	flags.StringVar(&cfg.VertexShader, "vertex_shader", cfg.VertexShader, "vertex shader file name")
	flags.StringVar(&cfg.FragmentShader, "fragment_shader", cfg.FragmentShader, "fragment shader file name")
	flags.StringVar(&cfg.ListenAddress, "listen", cfg.ListenAddress, "address the WebSocket streaming endpoint binds to")
	flags.StringVar(&cfg.AdminAddress, "admin_listen", cfg.AdminAddress, "address the HTTP admin/capture endpoint binds to")

	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
