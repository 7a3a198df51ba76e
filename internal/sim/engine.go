package sim

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"offroad-sim/internal/collision"
	"offroad-sim/internal/vehicle"
)

// Recorder receives every frame the engine produces.
type Recorder interface {
	Record(f Frame) error
}

type stateReq struct {
	reply chan Frame
}

type collidersReq struct {
	reply chan []collision.Collider
}

type subscribeReq struct {
	ch chan Frame
}

// Engine drives a World from a wall-clock ticker. The Run goroutine is the
// only writer of the world; everything else talks to it over channels.
type Engine struct {
	world *World

	// Actor channels
	cmdCh          chan Command
	stateReqCh     chan stateReq
	collidersReqCh chan collidersReq
	subscribeCh    chan subscribeReq
	unsubCh        chan chan Frame

	tickHz   float64
	recorder Recorder
	log      *slog.Logger
}

type Config struct {
	World    *World
	TickHz   float64
	Recorder Recorder
	Logger   *slog.Logger
}

func New(cfg Config) (*Engine, error) {
	if cfg.World == nil {
		return nil, errors.New("sim: world is required")
	}
	if cfg.TickHz <= 0 {
		cfg.TickHz = 60
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		world:          cfg.World,
		cmdCh:          make(chan Command, 128),
		stateReqCh:     make(chan stateReq, 32),
		collidersReqCh: make(chan collidersReq, 8),
		subscribeCh:    make(chan subscribeReq, 32),
		unsubCh:        make(chan chan Frame, 32),
		tickHz:         cfg.TickHz,
		recorder:       cfg.Recorder,
		log:            cfg.Logger,
	}, nil
}

// Submit queues a command for the next loop iteration. Commands are dropped
// when the queue is full.
func (e *Engine) Submit(cmd Command) bool {
	select {
	case e.cmdCh <- cmd:
		return true
	default:
		e.log.Warn("command queue full, dropping command", "type", cmd.Type())
		return false
	}
}

// GetState returns the most recent frame.
func (e *Engine) GetState(ctx context.Context) (Frame, error) {
	req := stateReq{reply: make(chan Frame, 1)}
	select {
	case e.stateReqCh <- req:
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}

	select {
	case st := <-req.reply:
		return st, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// GetColliders returns a copy of the obstacle arena.
func (e *Engine) GetColliders(ctx context.Context) ([]collision.Collider, error) {
	req := collidersReq{reply: make(chan []collision.Collider, 1)}
	select {
	case e.collidersReqCh <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case cs := <-req.reply:
		return cs, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribe streams frames until ctx ends or unsub is called. Slow
// subscribers miss frames rather than stall the loop.
func (e *Engine) Subscribe(ctx context.Context) (<-chan Frame, func()) {
	ch := make(chan Frame, 32)

	select {
	case e.subscribeCh <- subscribeReq{ch: ch}:
	case <-ctx.Done():
		close(ch)
		return ch, func() {}
	}

	unsub := func() {
		select {
		case e.unsubCh <- ch:
		default:
		}
	}
	return ch, unsub
}

func (e *Engine) Run(ctx context.Context) error {
	// Actor-owned state
	now := time.Now()
	input := vehicle.Input{Enabled: true}
	freeLook := false
	last := e.world.Snapshot()

	subs := map[chan Frame]struct{}{}

	publish := func(f Frame) {
		for ch := range subs {
			select {
			case ch <- f:
			default:
				// slow subscriber -> drop frame
			}
		}
	}

	tick := time.NewTicker(time.Duration(float64(time.Second) / e.tickHz))
	defer tick.Stop()

	e.log.Info("simulation loop started", "tickHz", e.tickHz)

	for {
		select {
		case <-ctx.Done():
			for ch := range subs {
				close(ch)
			}
			e.log.Info("simulation loop stopped", "frames", last.Index)
			return nil

		case req := <-e.subscribeCh:
			subs[req.ch] = struct{}{}
			req.ch <- last

		case ch := <-e.unsubCh:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case req := <-e.stateReqCh:
			req.reply <- last

		case req := <-e.collidersReqCh:
			req.reply <- e.world.Colliders()

		case cmd := <-e.cmdCh:
			switch c := cmd.(type) {
			case InputCommand:
				input.Steer = c.Steer
				input.Throttle = c.Throttle
			case FreeLookCommand:
				freeLook = c.Enabled
				e.log.Debug("free look toggled", "enabled", freeLook)
			case ResetCommand:
				e.world.Reset(c.Position)
				last = e.world.Snapshot()
				last.TS = now
			}

		case t := <-tick.C:
			dt := t.Sub(now).Seconds()
			if dt <= 0 {
				dt = 1.0 / e.tickHz
			}
			now = t

			in := input
			in.Enabled = !freeLook

			f := e.world.Tick(dt, in)
			f.TS = t
			last = f

			if e.recorder != nil {
				if err := e.recorder.Record(f); err != nil {
					e.log.Warn("recording frame failed", "frame", f.Index, "error", err)
				}
			}
			publish(f)
		}
	}
}
