// Command streamproxy-server is the remote rendering server: it accepts a
// single WebSocket client session, renders the requested scene from every
// configured view, extracts a depth-contour mesh per view, encodes the
// color buffer, and streams both back to the client, mirroring
// application.hpp's Application::run main loop.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Carmen-Shannon/streamproxy/internal/config"
	"github.com/Carmen-Shannon/streamproxy/internal/httpadmin"
	"github.com/Carmen-Shannon/streamproxy/internal/server"
	"github.com/Carmen-Shannon/streamproxy/internal/telemetry"
	"github.com/Carmen-Shannon/streamproxy/internal/transport"
)

// renderTickInterval paces Server.Tick the way Application::run's fixed-step
// render loop paces process_session: once per simulated display refresh
// rather than once per inbound packet.
const renderTickInterval = 16 * time.Millisecond

func main() {
	if err := config.Parse(os.Args[1:], run); err != nil {
		zerolog.Nop().Error().Err(err).Msg("config")
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	log := telemetry.New(telemetry.Options{Pretty: true})

	engineCfg := server.EngineConfig{
		SceneDirectory:  cfg.SceneDirectory,
		ShaderDirectory: cfg.ShaderDirectory,
		ComputeShader:   cfg.ComputeShader,
		VertexShader:    cfg.VertexShader,
		FragmentShader:  cfg.FragmentShader,
		Width:           1280,
		Height:          720,
	}

	srv := server.New(log, server.NewEngineRendererFactory(engineCfg, log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ts := transport.NewServer(log)
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", ts.Handler(func(conn *transport.Conn) {
		srv.Attach(conn)
		log.Info().Msg("client connected")
		go func() {
			for {
				select {
				case pkt, ok := <-conn.Inbox():
					if !ok {
						srv.HandleTransportClose()
						log.Info().Msg("client disconnected")
						return
					}
					srv.HandlePacket(ctx, pkt)
				case <-conn.Closed():
					srv.HandleTransportClose()
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	}))

	admin := httpadmin.NewHandler(log, func() []string { return listSceneFiles(cfg.SceneDirectory) }, httpadmin.NewOSFileStore(cfg.StudyDirectory))
	adminMux := http.NewServeMux()
	admin.Register(adminMux)

	errCh := make(chan error, 2)
	go func() {
		errCh <- http.ListenAndServe(cfg.ListenAddress, mux)
	}()
	go func() {
		errCh <- http.ListenAndServe(cfg.AdminAddress, adminMux)
	}()

	ticker := time.NewTicker(renderTickInterval)
	defer ticker.Stop()

	log.Info().Str("listen", cfg.ListenAddress).Str("admin", cfg.AdminAddress).Msg("streamproxy-server starting")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return nil
		case err := <-errCh:
			return err
		case <-ticker.C:
			srv.Tick(ctx)
		}
	}
}

func listSceneFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}
