package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"flyxion/internal/bridge"
	"flyxion/internal/config"
	"flyxion/internal/driver"
	"flyxion/internal/field"
	"flyxion/internal/metrics"
	servernet "flyxion/internal/net"
	"flyxion/internal/solver"
	"flyxion/internal/telemetry"
	"flyxion/logging"
	"flyxion/logging/lifecycle"
	"flyxion/logging/simulation"
	loggingSinks "flyxion/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Logger   telemetry.Logger
	Settings *config.Config
	// Listener overrides Settings.Server.Addr when set.
	Listener net.Listener
	// Sinks are added to the router and enabled alongside the configured ones.
	Sinks map[string]logging.Sink
}

// Run wires the solver, driver, bridge and HTTP server and blocks until ctx
// is cancelled or one of them fails.
func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := telemetry.OrDefault(cfg.Logger)

	settings := cfg.Settings
	if settings == nil {
		defaults, err := config.Load("")
		if err != nil {
			return err
		}
		settings = defaults
	}

	fallbackLogger := telemetry.StandardLogger(telemetryLogger)
	if fallbackLogger == nil {
		fallbackLogger = log.Default()
	}

	router, err := newRouter(settings, cfg.Sinks, fallbackLogger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	params := settings.Simulation.Params
	s, err := solver.NewSolver(params)
	if err != nil {
		return fmt.Errorf("failed to construct solver: %w", err)
	}

	if path := settings.InitialStatePath; path != "" {
		st, err := field.LoadFile(path)
		if err != nil {
			return fmt.Errorf("failed to load initial state: %w", err)
		}
		if err := s.Load(st); err != nil {
			return fmt.Errorf("failed to apply initial state: %w", err)
		}
		simulation.StateLoaded(ctx, router, simulation.StateLoadedPayload{Path: path, Width: st.Width, Height: st.Height})
	}

	recorder, err := metrics.NewRecorder(settings.Metrics.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to construct metrics recorder: %w", err)
	}
	if recorder != nil {
		defer recorder.Close()
		if err := settings.WriteYAML(filepath.Join(recorder.Dir(), "config.yaml")); err != nil {
			telemetryLogger.Printf("failed to write effective config: %v", err)
		}
	}

	b := bridge.New(s, bridge.Config{
		Interval:  settings.Broadcast.Interval,
		WriteWait: settings.Broadcast.WriteWait,
		Logger:    telemetryLogger,
		Publisher: logging.WithFields(router, map[string]any{"component": "bridge"}),
	})
	defer b.Close()

	d := driver.New(s, driver.Config{
		Interval:    settings.Simulation.StepInterval,
		Params:      params,
		Logger:      telemetryLogger,
		Publisher:   logging.WithFields(router, map[string]any{"component": "driver"}),
		Recorder:    recorder,
		RecordEvery: settings.Metrics.RecordEvery,
	})

	staticDir := ""
	if settings.Server.StaticDir != "" {
		if resolved, err := servernet.ResolveStaticDir(settings.Server.StaticDir); err == nil {
			staticDir = resolved
		} else {
			telemetryLogger.Printf("static assets disabled: %v", err)
		}
	}

	handler := servernet.NewHTTPHandler(s, b, d, servernet.HTTPHandlerConfig{
		StaticDir:     staticDir,
		StepInterval:  d.Interval(),
		Logger:        telemetryLogger,
		Observability: settings.Observability,
	})

	ln := cfg.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", settings.Server.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", settings.Server.Addr, err)
		}
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	telemetryLogger.Printf("server listening on %s (%dx%d lattice, %d tiles)", ln.Addr(), params.Width, params.Height, len(s.Tiles()))
	lifecycle.ServerStarted(ctx, router, lifecycle.ServerStartedPayload{
		Addr:                ln.Addr().String(),
		Width:               params.Width,
		Height:              params.Height,
		Tiles:               len(s.Tiles()),
		StepIntervalMillis:  d.Interval().Milliseconds(),
		BroadcastIntervalMs: b.Interval().Milliseconds(),
		Seed:                s.Seed(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.Run(gctx)
	})
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		b.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	runErr := g.Wait()
	reason := "context cancelled"
	if runErr != nil {
		reason = runErr.Error()
	}
	lifecycle.ServerStopped(context.Background(), router, s.Steps(), lifecycle.ServerStoppedPayload{
		Steps:   s.Steps(),
		Elapsed: s.Elapsed(),
		Reason:  reason,
	})
	telemetryLogger.Printf("server stopped after %d steps: %s", s.Steps(), reason)
	return runErr
}

func newRouter(settings *config.Config, extra map[string]logging.Sink, fallback *log.Logger) (*logging.Router, error) {
	logConfig := settings.RouterConfig()
	sinks := map[string]logging.Sink{
		"console": loggingSinks.NewConsoleSink(os.Stdout),
	}
	if logConfig.HasSink("json") {
		var w io.Writer = io.Discard
		if path := logConfig.JSON.FilePath; path != "" {
			file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, fmt.Errorf("failed to open json log %s: %w", path, err)
			}
			w = file
		}
		sinks["json"] = loggingSinks.NewJSON(w, logConfig.JSON.FlushInterval)
	}
	for name, sink := range extra {
		sinks[name] = sink
		if !logConfig.HasSink(name) {
			logConfig.EnabledSinks = append(logConfig.EnabledSinks, name)
		}
	}

	router, err := logging.NewRouter(logConfig, logging.SystemClock{}, fallback, sinks)
	if err != nil {
		return nil, fmt.Errorf("failed to construct logging router: %w", err)
	}
	return router, nil
}
