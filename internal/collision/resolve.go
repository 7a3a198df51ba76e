package collision

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"offroad-sim/internal/vehicle"
)

// Options tunes the contact response.
type Options struct {
	Restitution     float64 `json:"restitution"`
	Friction        float64 `json:"friction"`
	RadiusFactor    float64 `json:"radiusFactor"`
	BreakThreshold  float64 `json:"breakThreshold"`
	PushEpsilon     float64 `json:"pushEpsilon"`
	GrazeDamping    float64 `json:"grazeDamping"`
	VerticalDamping float64 `json:"verticalDamping"`
}

// DefaultOptions returns the stock contact response.
func DefaultOptions() Options {
	return Options{
		Restitution:     0.45,
		Friction:        0.6,
		RadiusFactor:    0.7,
		BreakThreshold:  6,
		PushEpsilon:     1e-4,
		GrazeDamping:    0.98,
		VerticalDamping: 0.6,
	}
}

// Validate checks the ranges once, at construction.
func (o Options) Validate() error {
	switch {
	case !(o.Restitution >= 0):
		return fmt.Errorf("%w: restitution must be non-negative, got %v", ErrInvalidCollider, o.Restitution)
	case !(o.Friction >= 0):
		return fmt.Errorf("%w: friction must be non-negative, got %v", ErrInvalidCollider, o.Friction)
	case !(o.RadiusFactor > 0):
		return fmt.Errorf("%w: radius factor must be positive, got %v", ErrInvalidCollider, o.RadiusFactor)
	case !(o.BreakThreshold >= 0):
		return fmt.Errorf("%w: break threshold must be non-negative, got %v", ErrInvalidCollider, o.BreakThreshold)
	case !(o.PushEpsilon >= 0):
		return fmt.Errorf("%w: push epsilon must be non-negative, got %v", ErrInvalidCollider, o.PushEpsilon)
	case !(o.GrazeDamping >= 0 && o.GrazeDamping <= 1):
		return fmt.Errorf("%w: graze damping must be in [0,1], got %v", ErrInvalidCollider, o.GrazeDamping)
	case !(o.VerticalDamping >= 0 && o.VerticalDamping <= 1):
		return fmt.Errorf("%w: vertical damping must be in [0,1], got %v", ErrInvalidCollider, o.VerticalDamping)
	}
	return nil
}

// Result summarizes one resolution pass.
type Result struct {
	AnyHit   bool  `json:"anyHit"`
	HitCount int   `json:"hitCount"`
	Broken   []int `json:"broken,omitempty"` // indices broken during this pass
}

// VehicleRadius is the collision radius of the body under opt.
func VehicleRadius(body *vehicle.State, opt Options) float64 {
	return math.Max(0.05, math.Max(body.Width, body.Length)*opt.RadiusFactor)
}

// Resolve pushes body out of every overlapping, unbroken collider in list
// order and applies the contact response. Malformed entries are skipped.
// It never panics.
func Resolve(body *vehicle.State, colliders []Collider, opt Options, log *slog.Logger) Result {
	p := pass{body: body, colliders: colliders, opt: opt, log: log}
	return p.run()
}

type pass struct {
	body      *vehicle.State
	colliders []Collider
	opt       Options
	log       *slog.Logger

	// broad phase; nil grid means a linear scan
	grid       *Grid
	maxRadius  float64
	candidates []int

	radius float64
	res    Result
}

func (p *pass) run() (res Result) {
	if p.log == nil {
		p.log = slog.Default()
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("collision pass aborted", "panic", r)
			res = p.finish()
		}
	}()
	if p.body == nil {
		return Result{}
	}

	p.radius = VehicleRadius(p.body, p.opt)
	if p.grid == nil {
		for i := range p.colliders {
			p.visit(i)
		}
	} else {
		p.walkGrid()
	}
	return p.finish()
}

// walkGrid visits the same colliders as the linear scan, in the same order.
// Any collider the body can touch from a point within slack of the query
// center is in the candidate set. Once a push carries the body past that,
// the grid is queried again from where it stands and the walk resumes after
// the last visited index.
func (p *pass) walkGrid() {
	slack := p.radius + p.maxRadius + p.opt.PushEpsilon
	reach := 2 * slack

	qx, qz := p.body.Position.X, p.body.Position.Z
	p.candidates = p.grid.Query(qx, qz, reach, p.candidates)
	for k := 0; k < len(p.candidates); k++ {
		i := p.candidates[k]
		p.visit(i)

		pos := p.body.Position
		if math.Abs(pos.X-qx) <= slack && math.Abs(pos.Z-qz) <= slack {
			continue
		}
		qx, qz = pos.X, pos.Z
		p.candidates = p.grid.Query(qx, qz, reach, p.candidates)
		next, _ := slices.BinarySearch(p.candidates, i+1)
		k = next - 1
	}
}

func (p *pass) finish() Result {
	p.res.AnyHit = p.res.HitCount > 0
	return p.res
}

func (p *pass) visit(i int) {
	c := &p.colliders[i]
	if c.Broken {
		return
	}
	if !c.valid() {
		p.log.Debug("skipping malformed collider", "index", i, "radius", c.Radius)
		return
	}

	b := p.body
	dx := b.Position.X - c.X
	dz := b.Position.Z - c.Z
	dist := math.Hypot(dx, dz)

	nx, nz := 1.0, 0.0
	if dist > 0 {
		nx, nz = dx/dist, dz/dist
	}

	c.LastDist = dist
	penetration := p.radius + c.Radius - dist
	if penetration <= 0 {
		return
	}
	p.res.HitCount++

	push := penetration + p.opt.PushEpsilon
	b.Position.X += nx * push
	b.Position.Z += nz * push

	vn := b.Velocity.X*nx + b.Velocity.Z*nz
	if vn < 0 {
		k := (1 + p.opt.Restitution) * vn
		b.Velocity.X -= k * nx
		b.Velocity.Z -= k * nz
		b.Velocity = b.Velocity.Mul(math.Max(0, p.opt.Friction))
	} else {
		b.Velocity = b.Velocity.Mul(p.opt.GrazeDamping)
	}
	b.VerticalVel *= p.opt.VerticalDamping

	if c.Breakable && b.Velocity.PlanarLen() > p.opt.BreakThreshold {
		c.Broken = true
		p.res.Broken = append(p.res.Broken, i)
	}
}
