package collision

import (
	"log/slog"
	"math"

	"offroad-sim/internal/vehicle"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for skipped entries and recovered failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithGrid enables the broad phase with the given cell size in meters.
func WithGrid(cellSize float64) Option {
	return func(e *Engine) { e.cellSize = cellSize }
}

// Engine owns the collider arena for a session.
type Engine struct {
	colliders []Collider
	opt       Options
	log       *slog.Logger

	cellSize   float64
	grid       *Grid
	maxRadius  float64
	candidates []int
}

// NewEngine takes ownership of colliders. Malformed entries are kept in the
// arena (indices stay stable) but reported once here and skipped later.
func NewEngine(colliders []Collider, opt Options, opts ...Option) (*Engine, error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{colliders: colliders, opt: opt, log: slog.Default()}
	for _, o := range opts {
		o(e)
	}

	for i := range e.colliders {
		c := &e.colliders[i]
		if !c.valid() {
			e.log.Warn("malformed collider will be ignored", "index", i, "x", c.X, "z", c.Z, "radius", c.Radius)
			continue
		}
		e.maxRadius = math.Max(e.maxRadius, c.Radius)
	}
	if e.cellSize > 0 && len(e.colliders) > 0 {
		e.grid = NewGrid(e.colliders, e.cellSize)
	}

	return e, nil
}

// Resolve runs one pass against body. With the broad phase on, only nearby
// colliders are visited, still in ascending index order.
func (e *Engine) Resolve(body *vehicle.State) Result {
	p := pass{body: body, colliders: e.colliders, opt: e.opt, log: e.log}
	if e.grid != nil {
		p.grid = e.grid
		p.maxRadius = e.maxRadius
		p.candidates = e.candidates
	}
	res := p.run()
	e.candidates = p.candidates
	return res
}

// Options returns the contact response in use.
func (e *Engine) Options() Options { return e.opt }

// Len is the number of colliders in the arena, broken ones included.
func (e *Engine) Len() int { return len(e.colliders) }

// Collider returns a copy of entry i.
func (e *Engine) Collider(i int) Collider { return e.colliders[i] }

// Colliders returns a copy of the arena.
func (e *Engine) Colliders() []Collider {
	out := make([]Collider, len(e.colliders))
	copy(out, e.colliders)
	return out
}

// BrokenCount counts colliders that have been broken.
func (e *Engine) BrokenCount() int {
	n := 0
	for i := range e.colliders {
		if e.colliders[i].Broken {
			n++
		}
	}
	return n
}
