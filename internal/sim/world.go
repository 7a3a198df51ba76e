package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"offroad-sim/internal/collision"
	"offroad-sim/internal/geometry/vector"
	"offroad-sim/internal/vehicle"
)

// DefaultMaxDt bounds a single integration step after a stall.
const DefaultMaxDt = 0.033

// World runs one tick in a fixed order: terrain sampling and dynamics, then
// collision resolution. It has a single writer and no locks; the actor Engine
// or a batch loop owns it.
type World struct {
	ground     vehicle.Terrain
	dyn        *vehicle.Dynamics
	collisions *collision.Engine
	spawn      vector.Vec3
	maxDt      float64
	log        *slog.Logger
	metrics    *worldMetrics

	index        uint64
	time         float64
	inputEnabled bool
}

// WorldConfig wires the three core components together.
type WorldConfig struct {
	Ground     vehicle.Terrain
	Dynamics   *vehicle.Dynamics
	Collisions *collision.Engine
	Spawn      vector.Vec3
	MaxDt      float64
	Logger     *slog.Logger
}

// NewWorld checks the wiring. A nil Collisions is an empty obstacle set.
func NewWorld(cfg WorldConfig) (*World, error) {
	if cfg.Ground == nil {
		return nil, errors.New("world: terrain is required")
	}
	if cfg.Dynamics == nil {
		return nil, errors.New("world: vehicle dynamics are required")
	}
	if cfg.MaxDt <= 0 {
		cfg.MaxDt = DefaultMaxDt
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Collisions == nil {
		empty, err := collision.NewEngine(nil, collision.DefaultOptions(), collision.WithLogger(cfg.Logger))
		if err != nil {
			return nil, fmt.Errorf("world: empty collision engine: %w", err)
		}
		cfg.Collisions = empty
	}

	wm, err := newWorldMetrics()
	if err != nil {
		return nil, fmt.Errorf("world: metrics: %w", err)
	}

	return &World{
		ground:     cfg.Ground,
		dyn:        cfg.Dynamics,
		collisions: cfg.Collisions,
		spawn:      cfg.Spawn,
		maxDt:      cfg.MaxDt,
		log:        cfg.Logger,
		metrics:    wm,

		inputEnabled: true,
	}, nil
}

// Tick clamps dt to MaxDt, integrates the vehicle and resolves collisions.
func (w *World) Tick(dt float64, in vehicle.Input) Frame {
	if math.IsNaN(dt) || dt < 0 {
		dt = 0
	}
	dt = math.Min(dt, w.maxDt)

	w.dyn.Integrate(dt, w.ground, in)
	res := w.collisions.Resolve(w.dyn.Body())

	for _, i := range res.Broken {
		c := w.collisions.Collider(i)
		w.log.Info("collider broken", "index", i, "kind", c.Kind, "x", c.X, "z", c.Z)
	}

	w.index++
	w.time += dt
	w.inputEnabled = in.Enabled

	f := w.frame(dt)
	f.Collisions = res
	w.metrics.record(f)
	return f
}

// Reset respawns the vehicle. Broken colliders stay broken.
func (w *World) Reset(at *vector.Vec3) {
	spawn := w.spawn
	if at != nil && at.IsFinite() {
		spawn = *at
	}
	w.dyn.Reset(spawn)
	w.log.Info("vehicle respawned", "x", spawn.X, "y", spawn.Y, "z", spawn.Z)
}

// Snapshot describes the current state without advancing it.
func (w *World) Snapshot() Frame {
	return w.frame(0)
}

// Colliders returns a copy of the obstacle arena.
func (w *World) Colliders() []collision.Collider {
	return w.collisions.Colliders()
}

// Vehicle returns a copy of the vehicle state.
func (w *World) Vehicle() vehicle.State {
	return w.dyn.State()
}

func (w *World) frame(dt float64) Frame {
	return Frame{
		Index:         w.index,
		Time:          w.time,
		Dt:            dt,
		Vehicle:       snapshotOf(w.dyn.State()),
		InputEnabled:  w.inputEnabled,
		BrokenTotal:   w.collisions.BrokenCount(),
		ColliderCount: w.collisions.Len(),
	}
}

// RunFixed drives w with one tick per input at a constant dt and returns
// every frame. Identical inputs on identically built worlds give identical
// frames.
func RunFixed(w *World, inputs []vehicle.Input, dt float64) []Frame {
	frames := make([]Frame, 0, len(inputs))
	for _, in := range inputs {
		frames = append(frames, w.Tick(dt, in))
	}
	return frames
}
