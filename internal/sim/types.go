package sim

import (
	"math"
	"time"

	"offroad-sim/internal/collision"
	"offroad-sim/internal/geometry/vector"
	"offroad-sim/internal/vehicle"
)

// VehicleSnapshot is the read-only view of the vehicle handed to cameras,
// renderers and API clients.
type VehicleSnapshot struct {
	Position    vector.Vec3 `json:"position"`
	Velocity    vector.Vec3 `json:"velocity"` // planar
	VerticalVel float64     `json:"verticalVel"`
	Speed       float64     `json:"speed"`

	HeadingDeg  float64    `json:"headingDeg"`
	Orientation [4]float64 `json:"orientation"` // x, y, z, w

	Throttle     float64     `json:"throttle"`
	Steer        float64     `json:"steer"`
	TargetHeight float64     `json:"targetHeight"`
	GroundNormal vector.Vec3 `json:"groundNormal"`
	Support      string      `json:"support"`
	WallHit      bool        `json:"wallHit"`
}

// Frame is the outcome of one tick.
type Frame struct {
	Index uint64    `json:"index"`
	Time  float64   `json:"time"` // simulated seconds since start
	Dt    float64   `json:"dt"`
	TS    time.Time `json:"ts,omitempty"`

	Vehicle    VehicleSnapshot  `json:"vehicle"`
	Collisions collision.Result `json:"collisions"`

	InputEnabled  bool `json:"inputEnabled"`
	BrokenTotal   int  `json:"brokenTotal"`
	ColliderCount int  `json:"colliderCount"`
}

func snapshotOf(s vehicle.State) VehicleSnapshot {
	q := s.Orientation
	return VehicleSnapshot{
		Position:     s.Position,
		Velocity:     s.Velocity,
		VerticalVel:  s.VerticalVel,
		Speed:        s.PlanarSpeed(),
		HeadingDeg:   HeadingDeg(s.Heading),
		Orientation:  [4]float64{q.V[0], q.V[1], q.V[2], q.W},
		Throttle:     s.Throttle,
		Steer:        s.Steer,
		TargetHeight: s.TargetHeight,
		GroundNormal: s.GroundNormal,
		Support:      s.Support.String(),
		WallHit:      s.WallHit,
	}
}

// HeadingDeg maps a heading in radians to [0, 360) degrees.
func HeadingDeg(heading float64) float64 {
	deg := math.Mod(heading*180.0/math.Pi, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
