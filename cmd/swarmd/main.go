package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/auslab/swarm/internal/command"
	"github.com/auslab/swarm/internal/config"
	"github.com/auslab/swarm/internal/dispatcher"
	"github.com/auslab/swarm/internal/intake"
	"github.com/auslab/swarm/internal/logging"
	"github.com/auslab/swarm/internal/mission"
	"github.com/auslab/swarm/internal/monitor"
	intOtel "github.com/auslab/swarm/internal/otel"
	"github.com/auslab/swarm/internal/physics"
	"github.com/auslab/swarm/internal/publisher"
	"github.com/auslab/swarm/internal/server"
	"github.com/auslab/swarm/internal/swarm"
	"github.com/auslab/swarm/internal/telemetry"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

const serviceName = "swarmd"

func main() {
	configDir := pflag.StringP("config", "c", ".", "directory containing "+config.FileName)
	showVersion := pflag.BoolP("version", "v", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (built %s)\n", serviceName, Version, BuildDate)
		return
	}

	if err := run(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	sessionStart := time.Now()

	slogManager := logging.NewSlogManager()
	slogManager.Setup(logging.Options{Level: "info"})
	logger := slogManager.Logger()

	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		logger.Info("Loaded config", "dir", configDir)
	}

	logsDir := config.GetString("logsDir")
	logFile, logPath, err := logging.OpenSessionLog(logsDir, serviceName, sessionStart)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logOut := io.MultiWriter(os.Stderr, logFile)

	otelProvider, err := newOTelProvider(logsDir, sessionStart, logFile)
	if err != nil {
		logger.Error("Failed to initialize OTel provider", "error", err)
		otelProvider, _ = intOtel.New(intOtel.Config{})
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(ctx); err != nil {
			logger.Warn("OTel shutdown failed", "error", err)
		}
	}()

	graylogCfg := config.GetGraylogConfig()
	if graylogCfg.Enabled {
		if err := slogManager.ConnectGraylog(graylogCfg.Address); err != nil {
			logger.Error("Failed to connect to Graylog", "error", err)
		}
	}
	defer slogManager.Close()

	// the loop is built after logging, so the provider reads it through a pointer
	var loopRef atomic.Pointer[swarm.Loop]
	slogManager.SetDynamicAttrs(func() []slog.Attr {
		if l := loopRef.Load(); l != nil {
			return l.LogAttrs()
		}
		return nil
	})
	slogManager.Setup(logging.Options{
		Output:      logOut,
		Level:       config.GetString("logLevel"),
		LogProvider: otelProvider.LoggerProvider(),
	})
	logger = slogManager.Logger()
	logger.Info("Starting", "version", Version, "build", BuildDate, "log", logPath)

	zlog := newZerolog(logOut, config.GetString("logLevel"))

	presets, err := createStorageBackend(config.GetStorageConfig(), zlog)
	if err != nil {
		return fmt.Errorf("creating preset store: %w", err)
	}
	if err := presets.Init(); err != nil {
		return fmt.Errorf("initializing preset store: %w", err)
	}
	defer func() {
		if err := presets.Close(); err != nil {
			logger.Error("Failed to close preset store", "error", err)
		}
	}()

	engine := physics.NewKinematic(config.GetPhysicsConfig())
	defer engine.Close()

	queue, err := command.NewQueue(config.GetQueueCapacity(), config.GetLimits())
	if err != nil {
		return err
	}
	pub := publisher.New()

	geoOpts, err := geoOptions(config.GetGeoConfig(), logger)
	if err != nil {
		return err
	}
	loop, err := swarm.New(config.GetSwarmConfig(), queue, engine, pub, logger.With("component", "swarm"), geoOpts...)
	if err != nil {
		return err
	}
	loopRef.Store(loop)
	if err := loop.Init(); err != nil {
		return fmt.Errorf("spawning initial swarm: %w", err)
	}

	d, err := dispatcher.New(logger.With("component", "dispatcher"))
	if err != nil {
		return err
	}
	intake.NewManager(queue, pub, presets).RegisterHandlers(d)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := mission.NewRunner(ctx, d, mission.NewContext(), logger)
	runner.Register(d)

	camCfg, err := config.GetCameraConfig()
	if err != nil {
		return err
	}

	srv, err := server.New(config.GetServerConfig(), server.Dependencies{
		Dispatcher: d,
		State:      pub,
		Limits:     queue.Limits(),
		Presets:    presets,
		Missions:   runner,
		Camera:     physics.NewFixedCamera(camCfg),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx); err != nil {
			errCh <- fmt.Errorf("control loop: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Run(ctx); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled {
		tm := telemetry.NewManager(influxCfg, zlog)
		if err := tm.Connect(ctx); err != nil {
			logger.Error("Telemetry disabled", "error", err)
		} else {
			defer tm.Close()
			wg.Add(1)
			go func() {
				defer wg.Done()
				telemetry.NewExporter(tm, pub, influxCfg.Interval).Run(ctx)
			}()
		}
	}

	monitorCfg := config.GetMonitorConfig()
	if monitorCfg.Enabled {
		mon := monitor.NewService(monitor.Dependencies{
			Loop:     loop,
			Queue:    queue,
			State:    pub,
			Missions: runner.Status(),
			Dir:      logsDir,
			Interval: monitorCfg.Interval,
			Logger:   logger,
		})
		if err := mon.Start(); err != nil {
			logger.Error("Failed to start status monitor", "error", err)
		}
		defer mon.Stop()
	}

	// a loop halt leaves the server up so clients see 503s; only signals stop the daemon
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.Error("Component failed", "error", runErr)
		var eerr *physics.EngineError
		if errors.As(runErr, &eerr) {
			runErr = nil
			<-ctx.Done()
		}
	}

	logger.Info("Shutting down...")
	stop()
	runner.Cancel()
	wg.Wait()

	if err := slogManager.Flush(context.Background()); err != nil {
		logger.Warn("Failed to flush logs", "error", err)
	}
	logger.Info("Shutdown complete")
	return runErr
}

// newOTelProvider writes OTel logs to the session log and metric dumps to a
// sibling file. Disabled config yields a no-op provider.
func newOTelProvider(logsDir string, sessionStart time.Time, logFile io.Writer) (*intOtel.Provider, error) {
	otelCfg := config.GetOTelConfig()
	if !otelCfg.Enabled {
		return intOtel.New(intOtel.Config{})
	}

	metricsPath := filepath.Join(logsDir, fmt.Sprintf("%s.%s.metrics.json", serviceName, sessionStart.Format("20060102_150405")))
	metricsFile, err := os.Create(metricsPath)
	if err != nil {
		return nil, fmt.Errorf("creating metrics file: %w", err)
	}

	return intOtel.New(intOtel.Config{
		Enabled:        true,
		ServiceName:    otelCfg.ServiceName,
		BatchTimeout:   otelCfg.BatchTimeout,
		LogWriter:      logFile,
		MetricWriter:   metricsFile,
		MetricInterval: otelCfg.MetricInterval,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
	})
}

func newZerolog(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", serviceName).Logger()
}
