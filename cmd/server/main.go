package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"offroad-sim/internal/api"
	"offroad-sim/internal/collision"
	"offroad-sim/internal/config"
	"offroad-sim/internal/logging"
	"offroad-sim/internal/sim"
	"offroad-sim/internal/storage"
	"offroad-sim/internal/terrain"
	"offroad-sim/internal/vehicle"
)

var (
	configPath = flag.String("config", "", "Path to a JSON or YAML config file")
	port       = flag.Int("port", 0, "Port to listen on (overrides server.port)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	var logFile *os.File
	if cfg.LogFile != "" {
		logFile, err = os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file: %v\n", err)
			os.Exit(1)
		}
		defer logFile.Close()
	}
	var log *slog.Logger
	if logFile != nil {
		log = logging.Setup(logFile, cfg.LogLevel)
	} else {
		log = logging.Setup(nil, cfg.LogLevel)
	}
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	// Setup world
	ground, err := terrain.New(cfg.Terrain)
	if err != nil {
		return fmt.Errorf("terrain: %w", err)
	}

	dyn, err := vehicle.New(cfg.Vehicle, cfg.Sim.Spawn, vehicle.WithLogger(log))
	if err != nil {
		return fmt.Errorf("vehicle: %w", err)
	}

	colliders, err := cfg.Colliders()
	if err != nil {
		return fmt.Errorf("obstacles: %w", err)
	}
	opts := []collision.Option{collision.WithLogger(log)}
	if cfg.Sim.GridCellSize > 0 {
		opts = append(opts, collision.WithGrid(cfg.Sim.GridCellSize))
	}
	collisions, err := collision.NewEngine(colliders, cfg.Collision, opts...)
	if err != nil {
		return fmt.Errorf("collision: %w", err)
	}

	world, err := sim.NewWorld(sim.WorldConfig{
		Ground:     ground,
		Dynamics:   dyn,
		Collisions: collisions,
		Spawn:      cfg.Sim.Spawn,
		MaxDt:      cfg.Sim.MaxDt,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	// Optional trajectory recorder
	rec, err := storage.NewRecorder(cfg.Recorder, log)
	if err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	var simRec sim.Recorder
	if rec != nil {
		simRec = rec
		defer func() {
			if err := rec.Close(); err != nil {
				log.Error("closing recorder failed", "error", err)
			}
		}()
	}

	simEngine, err := sim.New(sim.Config{
		World:    world,
		TickHz:   cfg.Sim.TickHz,
		Recorder: simRec,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	server := api.NewServer(simEngine, log)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	simDone := make(chan error, 1)
	go func() { simDone <- simEngine.Run(ctx) }()

	httpErr := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port,
			"terrainSize", ground.Params().Size, "colliders", collisions.Len(),
			"breakThreshold", collisions.Options().BreakThreshold)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-httpErr:
		stop()
		<-simDone
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown error", "error", err)
	}
	if err := <-simDone; err != nil {
		log.Warn("simulation stopped with error", "error", err)
	}

	log.Info("shutdown complete")
	return nil
}
