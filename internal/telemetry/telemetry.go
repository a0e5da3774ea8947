// Package telemetry configures the process-wide structured logger
// (github.com/rs/zerolog), replacing the teacher's log.Printf calls
// (engine/engine.go) and the original implementation's spdlog usage
// (command_parser.cpp, session.hpp) with leveled, field-structured output.
package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	// Level is the minimum level that is logged. Empty means InfoLevel.
	Level zerolog.Level
	// Pretty enables colorized console output, for local development; a
	// deployed server should leave this false and emit line-delimited JSON.
	Pretty bool
	// Output overrides the destination writer; nil means os.Stderr.
	Output io.Writer
}

// New builds the root logger for the process. Callers derive
// request/session-scoped loggers from it with .With().Str(...).Logger().
func New(opts Options) zerolog.Logger {
	var out io.Writer = os.Stderr
	if opts.Output != nil {
		out = opts.Output
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: colorable.NewColorable(os.Stderr), TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := zerolog.New(out).With().Timestamp().Logger()
	logger = logger.Level(opts.Level)
	return logger
}

// SessionLogger derives a logger scoped to one streaming session, tagging
// every line with its identifying fields the way the original's per-session
// log prefixing did.
func SessionLogger(base zerolog.Logger, sessionID uint64, sceneFile string) zerolog.Logger {
	return base.With().
		Uint64("session_id", sessionID).
		Str("scene_file", sceneFile).
		Logger()
}

// LayerLogger further scopes a session logger to one render layer, used by
// the worker pool and mesh generators when reporting per-frame timing and
// errors.
func LayerLogger(base zerolog.Logger, layer int) zerolog.Logger {
	return base.With().Int("layer", layer).Logger()
}
