// Package collision keeps the vehicle out of static circular obstacles.
//
// Obstacles live in an arena of Collider values. Resolution walks the arena in
// index order and every push-out is visible to the next obstacle, so the order
// of the list decides which obstacle wins when several overlap the vehicle in
// the same tick. The only state that changes after construction is Broken
// (plus the LastDist diagnostic), and it only ever goes from false to true.
package collision

import (
	"errors"
	"fmt"
	"math"

	"offroad-sim/internal/geometry/vector"
)

// ErrInvalidCollider is returned when colliders cannot be built from placements.
var ErrInvalidCollider = errors.New("invalid collider")

// Collider is a circular obstacle on the ground plane.
type Collider struct {
	X      float64 `json:"x"`
	Z      float64 `json:"z"`
	Radius float64 `json:"radius"`
	Kind   string  `json:"kind,omitempty"`

	Breakable bool `json:"breakable"`
	Broken    bool `json:"broken"`

	// LastDist is the center distance seen on the most recent check.
	LastDist float64 `json:"-"`
}

// valid reports whether the entry can take part in resolution.
func (c *Collider) valid() bool {
	return c.Radius > 0 && !math.IsInf(c.Radius, 0) &&
		!math.IsNaN(c.X) && !math.IsInf(c.X, 0) &&
		!math.IsNaN(c.Z) && !math.IsInf(c.Z, 0)
}

// Placement is a placed obstacle as produced by world population.
type Placement struct {
	Position vector.Vec3 `json:"position" mapstructure:"position"`
	Scale    vector.Vec3 `json:"scale" mapstructure:"scale"`
	Kind     string      `json:"kind" mapstructure:"kind"`
}

// BuildOptions controls how placements turn into colliders.
type BuildOptions struct {
	BaseRadius float64
	MinRadius  float64
	Breakable  bool
}

// RockBuildOptions are the defaults for breakable rocks.
func RockBuildOptions() BuildOptions {
	return BuildOptions{BaseRadius: 1, MinRadius: 0.01, Breakable: true}
}

// TreeBuildOptions are the defaults for unbreakable trees.
func TreeBuildOptions() BuildOptions {
	return BuildOptions{BaseRadius: 1, MinRadius: 0.05, Breakable: false}
}

// BuildColliders derives one collider per placement. The radius is the base
// radius times the largest absolute scale component (a zero component counts
// as 1), never below MinRadius.
func BuildColliders(ps []Placement, opt BuildOptions) ([]Collider, error) {
	if !(opt.BaseRadius > 0) || math.IsInf(opt.BaseRadius, 0) {
		return nil, fmt.Errorf("%w: base radius must be positive, got %v", ErrInvalidCollider, opt.BaseRadius)
	}
	if !(opt.MinRadius > 0) {
		return nil, fmt.Errorf("%w: min radius must be positive, got %v", ErrInvalidCollider, opt.MinRadius)
	}

	out := make([]Collider, 0, len(ps))
	for i, p := range ps {
		if !p.Position.IsFinite() || !p.Scale.IsFinite() {
			return nil, fmt.Errorf("%w: placement %d has non-finite position or scale", ErrInvalidCollider, i)
		}
		smax := math.Max(scaleOrOne(p.Scale.X), math.Max(scaleOrOne(p.Scale.Y), scaleOrOne(p.Scale.Z)))
		out = append(out, Collider{
			X:         p.Position.X,
			Z:         p.Position.Z,
			Radius:    math.Max(opt.MinRadius, opt.BaseRadius*smax),
			Kind:      p.Kind,
			Breakable: opt.Breakable,
			LastDist:  math.Inf(1),
		})
	}
	return out, nil
}

func scaleOrOne(s float64) float64 {
	if s == 0 {
		return 1
	}
	return math.Abs(s)
}
