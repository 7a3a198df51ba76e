// Package vehicle integrates a single box-shaped vehicle over a height-field:
// smoothed throttle and steering, a forward/lateral velocity model, a
// spring-damper ride height, soft world walls and terrain-aligned orientation.
package vehicle

import (
	"fmt"
	"log/slog"
	"math"

	"offroad-sim/internal/geometry/vector"
	"offroad-sim/internal/terrain"
)

// Terrain is the height and normal source read each tick.
type Terrain interface {
	Sample(x, z float64) terrain.Sample
}

// Option configures a Dynamics.
type Option func(*Dynamics)

// WithLogger sets the logger used for degraded ticks.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dynamics) {
		if l != nil {
			d.log = l
		}
	}
}

// Dynamics owns the vehicle state. It is not safe for concurrent use; one
// goroutine drives Integrate and anything else that writes the body.
type Dynamics struct {
	cfg   Config
	state State
	log   *slog.Logger

	// contact point scratch, rebuilt every tick
	contacts [4]vector.Vec3
}

// New validates cfg and spawns the vehicle at spawn.
func New(cfg Config, spawn vector.Vec3, opts ...Option) (*Dynamics, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !spawn.IsFinite() {
		return nil, fmt.Errorf("%w: spawn position %v is not finite", ErrInvalidConfig, spawn)
	}

	d := &Dynamics{cfg: cfg, log: slog.Default()}
	for _, o := range opts {
		o(d)
	}
	d.Reset(spawn)
	return d, nil
}

// Reset puts the vehicle at spawn, at rest, facing +Z, with the suspension
// re-armed so the next tick snaps the support target to the terrain.
func (d *Dynamics) Reset(spawn vector.Vec3) {
	d.state = State{
		Position:     spawn,
		Width:        d.cfg.Width,
		Length:       d.cfg.Length,
		Height:       d.cfg.Height,
		Orientation:  vector.BodyOrientation(0, vector.Up),
		GroundNormal: vector.Up,
	}
}

// Config returns the tuning in use.
func (d *Dynamics) Config() Config { return d.cfg }

// State returns a copy of the current state.
func (d *Dynamics) State() State { return d.state }

// Body exposes the live state for the collision pass of the same tick.
func (d *Dynamics) Body() *State { return &d.state }

// Integrate advances the vehicle by dt seconds. The caller clamps dt; a
// non-positive or NaN dt leaves the state untouched.
func (d *Dynamics) Integrate(dt float64, ground Terrain, in Input) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return
	}
	c := &d.cfg
	s := &d.state

	// 1. input targets
	steerTarget, throttleTarget := 0.0, 0.0
	if in.Enabled {
		steerTarget = clamp(finiteOr(in.Steer, 0), -1, 1)
		throttleTarget = clamp(finiteOr(in.Throttle, 0), -1, 1)
	}
	s.Steer = steerTarget

	// 2. heading; no authority at rest
	speedFactor := clamp(s.PlanarSpeed()/c.SteerSpeedDivisor, 0, 1)
	s.Heading += steerTarget * c.TurnRate * dt * speedFactor

	// 3. throttle
	s.Throttle += (throttleTarget - s.Throttle) * approach(c.ThrottleSmoothing, dt)

	// 4. planar velocity in the heading basis
	fwd, lat := s.Forward(), s.Lateral()
	vf := s.Velocity.Dot(fwd)
	vl := s.Velocity.Dot(lat)

	vf += c.Accel * s.Throttle * dt
	vf = clamp(vf, c.MaxReverseSpeed, c.MaxForwardSpeed)
	vf *= math.Exp(-c.Drag * dt)
	vl *= math.Exp(-c.Grip * dt)

	s.Velocity = fwd.Mul(vf).Add(lat.Mul(vl))
	s.Velocity.Y = 0
	if s.Velocity.PlanarLen() < c.StopSpeed {
		s.Velocity = vector.Vec3{}
	}

	// 5. planar position
	s.Position.X += s.Velocity.X * dt
	s.Position.Z += s.Velocity.Z * dt

	// 6. soft world walls
	d.reflectWalls(dt)

	// 7. ground under the footprint
	ground0 := d.sampleSupport(ground)

	// 8. support target
	nominal := ground0.Height + c.Height*0.5 + c.Clearance
	if !s.Initialized {
		s.TargetHeight = nominal
		s.Initialized = true
	} else {
		limited := math.Min(nominal, s.TargetHeight+c.MaxTargetRise)
		alpha := 1.0
		if c.HeightSmoothing > 0 {
			alpha = 1 - math.Exp(-dt/c.HeightSmoothing)
		}
		s.TargetHeight += (limited - s.TargetHeight) * alpha
	}

	// 9. suspension; the support force cancels gravity at rest so only the
	// spring and damper terms remain
	accel := c.stiffness()*(s.TargetHeight-s.Position.Y) - c.damping()*s.VerticalVel
	s.VerticalVel += accel * dt
	s.VerticalVel = clamp(s.VerticalVel, -c.MaxVerticalSpeed, c.MaxVerticalSpeed)
	s.Position.Y += s.VerticalVel * dt
	if s.Position.Y < s.TargetHeight {
		s.Position.Y = s.TargetHeight
		if s.VerticalVel < 0 {
			s.VerticalVel = 0
		}
	}

	// 10. orientation: yaw, then tilt onto the ground normal
	s.GroundNormal = ground0.Normal
	s.Orientation = vector.BodyOrientation(s.Heading, ground0.Normal)
}

// reflectWalls clamps the position into the playable square, bounces the
// offending velocity component back with reduced magnitude and bleeds the
// throttle.
func (d *Dynamics) reflectWalls(dt float64) {
	c := &d.cfg
	s := &d.state
	limit := c.BoundsHalfSize

	hit := false
	if s.Position.X > limit {
		s.Position.X = limit
		s.Velocity.X = -s.Velocity.X * c.WallRetention
		hit = true
	} else if s.Position.X < -limit {
		s.Position.X = -limit
		s.Velocity.X = -s.Velocity.X * c.WallRetention
		hit = true
	}
	if s.Position.Z > limit {
		s.Position.Z = limit
		s.Velocity.Z = -s.Velocity.Z * c.WallRetention
		hit = true
	} else if s.Position.Z < -limit {
		s.Position.Z = -limit
		s.Velocity.Z = -s.Velocity.Z * c.WallRetention
		hit = true
	}

	if hit {
		s.Throttle *= math.Exp(-c.WallThrottleDamping * dt)
	}
	s.WallHit = hit
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// approach is the fraction of the remaining gap closed in dt by an
// exponential follower with the given rate.
func approach(rate, dt float64) float64 {
	return 1 - math.Exp(-rate*dt)
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
