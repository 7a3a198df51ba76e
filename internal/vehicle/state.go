package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"offroad-sim/internal/geometry/vector"
)

// Support tells which terrain samples fed the last tick.
type Support int

const (
	// SupportContacts means all corner contact points were sampled.
	SupportContacts Support = iota
	// SupportCenter means a corner failed and the center sample was used.
	SupportCenter
	// SupportFlat means nothing could be sampled and flat ground was assumed.
	SupportFlat
)

func (s Support) String() string {
	switch s {
	case SupportContacts:
		return "contacts"
	case SupportCenter:
		return "center"
	case SupportFlat:
		return "flat"
	}
	return "unknown"
}

// Input is one tick of driver input. Positive Steer increases Heading.
// Enabled is false while input is suppressed (free camera); the vehicle
// still integrates and coasts.
type Input struct {
	Steer    float64 `json:"steer"`
	Throttle float64 `json:"throttle"`
	Enabled  bool    `json:"enabled"`
}

// State is the full kinematic and suspension state of the vehicle.
type State struct {
	Position vector.Vec3 `json:"position"`
	// Velocity is planar; Y is always zero. Vertical motion is VerticalVel.
	Velocity    vector.Vec3 `json:"velocity"`
	VerticalVel float64     `json:"verticalVel"`

	Heading  float64 `json:"heading"`
	Throttle float64 `json:"throttle"`
	Steer    float64 `json:"steer"`

	Width  float64 `json:"width"`
	Length float64 `json:"length"`
	Height float64 `json:"height"`

	TargetHeight float64 `json:"targetHeight"`
	Initialized  bool    `json:"initialized"`

	Orientation  mgl64.Quat  `json:"-"`
	GroundNormal vector.Vec3 `json:"groundNormal"`
	Support      Support     `json:"support"`
	WallHit      bool        `json:"wallHit"`
}

// Forward is the unit heading direction on the ground plane.
func (s State) Forward() vector.Vec3 {
	return vector.Vec3{X: math.Sin(s.Heading), Z: math.Cos(s.Heading)}
}

// Lateral is the unit ground-plane direction Forward turns toward as
// Heading increases.
func (s State) Lateral() vector.Vec3 {
	return vector.Vec3{X: math.Cos(s.Heading), Z: -math.Sin(s.Heading)}
}

// PlanarSpeed is the magnitude of the planar velocity.
func (s State) PlanarSpeed() float64 { return s.Velocity.PlanarLen() }

// ForwardSpeed is the signed velocity component along Forward.
func (s State) ForwardSpeed() float64 { return s.Velocity.Dot(s.Forward()) }
