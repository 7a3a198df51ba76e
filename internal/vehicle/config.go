package vehicle

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned when a tuning value is out of its usable range.
var ErrInvalidConfig = errors.New("invalid vehicle config")

// Config holds every tuning constant of the vehicle model. Rates are in 1/s,
// speeds in m/s, lengths in meters.
type Config struct {
	// Body extents (full sizes, not halves).
	Width  float64 `json:"width"`
	Length float64 `json:"length"`
	Height float64 `json:"height"`

	TurnRate          float64 `json:"turnRate"`          // rad/s at full steer
	SteerSpeedDivisor float64 `json:"steerSpeedDivisor"` // speed at which steering reaches full authority
	Accel             float64 `json:"accel"`             // m/s^2 at full throttle
	MaxForwardSpeed   float64 `json:"maxForwardSpeed"`
	MaxReverseSpeed   float64 `json:"maxReverseSpeed"` // <= 0
	Drag              float64 `json:"drag"`
	Grip              float64 `json:"grip"`
	ThrottleSmoothing float64 `json:"throttleSmoothing"`
	StopSpeed         float64 `json:"stopSpeed"`

	BoundsHalfSize      float64 `json:"boundsHalfSize"`
	WallRetention       float64 `json:"wallRetention"`
	WallThrottleDamping float64 `json:"wallThrottleDamping"`

	ContactInset     float64 `json:"contactInset"` // fraction of the half extents used for contact points
	Clearance        float64 `json:"clearance"`
	MaxTargetRise    float64 `json:"maxTargetRise"`   // max upward step of the support target per tick
	HeightSmoothing  float64 `json:"heightSmoothing"` // time constant, seconds
	SuspensionFreq   float64 `json:"suspensionFreq"`  // natural frequency, rad/s
	DampingRatio     float64 `json:"dampingRatio"`
	MaxVerticalSpeed float64 `json:"maxVerticalSpeed"`
}

// DefaultConfig returns the tuning of the 2x1x3 block car.
func DefaultConfig() Config {
	return Config{
		Width:  2,
		Length: 3,
		Height: 1,

		TurnRate:          1.2,
		SteerSpeedDivisor: 8,
		Accel:             20,
		MaxForwardSpeed:   28,
		MaxReverseSpeed:   -10,
		Drag:              0.35,
		Grip:              4,
		ThrottleSmoothing: 5,
		StopSpeed:         0.005,

		BoundsHalfSize:      180,
		WallRetention:       0.25,
		WallThrottleDamping: 12,

		ContactInset:     0.9,
		Clearance:        0.05,
		MaxTargetRise:    0.25,
		HeightSmoothing:  0.06,
		SuspensionFreq:   14,
		DampingRatio:     1,
		MaxVerticalSpeed: 12,
	}
}

// Validate checks the config once at construction so the tick never has to.
func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"width": c.Width, "length": c.Length, "height": c.Height,
		"steerSpeedDivisor": c.SteerSpeedDivisor,
		"maxForwardSpeed":   c.MaxForwardSpeed,
		"boundsHalfSize":    c.BoundsHalfSize,
		"maxTargetRise":     c.MaxTargetRise,
		"suspensionFreq":    c.SuspensionFreq,
		"maxVerticalSpeed":  c.MaxVerticalSpeed,
	} {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidConfig, name, v)
		}
	}
	for name, v := range map[string]float64{
		"turnRate": c.TurnRate, "accel": c.Accel,
		"drag": c.Drag, "grip": c.Grip,
		"throttleSmoothing":   c.ThrottleSmoothing,
		"stopSpeed":           c.StopSpeed,
		"wallThrottleDamping": c.WallThrottleDamping,
		"clearance":           c.Clearance,
		"heightSmoothing":     c.HeightSmoothing,
		"dampingRatio":        c.DampingRatio,
	} {
		if !(v >= 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be non-negative, got %v", ErrInvalidConfig, name, v)
		}
	}
	if !(c.MaxReverseSpeed <= 0) || math.IsInf(c.MaxReverseSpeed, 0) {
		return fmt.Errorf("%w: maxReverseSpeed must be <= 0, got %v", ErrInvalidConfig, c.MaxReverseSpeed)
	}
	if !(c.WallRetention >= 0 && c.WallRetention <= 1) {
		return fmt.Errorf("%w: wallRetention must be in [0,1], got %v", ErrInvalidConfig, c.WallRetention)
	}
	if !(c.ContactInset >= 0 && c.ContactInset <= 1) {
		return fmt.Errorf("%w: contactInset must be in [0,1], got %v", ErrInvalidConfig, c.ContactInset)
	}
	return nil
}

// stiffness and damping of a unit-mass spring with the configured natural
// frequency and damping ratio (ratio 1 is critical).
func (c Config) stiffness() float64 { return c.SuspensionFreq * c.SuspensionFreq }
func (c Config) damping() float64   { return 2 * c.DampingRatio * c.SuspensionFreq }
