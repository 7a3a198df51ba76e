package sim

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "offroad-sim/internal/sim"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// worldMetrics are no-ops unless a global MeterProvider is installed.
type worldMetrics struct {
	ticks    metric.Int64Counter
	hits     metric.Int64Counter
	broken   metric.Int64Counter
	wallHits metric.Int64Counter
	dt       metric.Float64Histogram
}

func newWorldMetrics() (*worldMetrics, error) {
	m := meter()
	var (
		wm  worldMetrics
		err error
	)

	wm.ticks, err = m.Int64Counter("offroad.sim.ticks",
		metric.WithDescription("Simulation ticks executed"))
	if err != nil {
		return nil, err
	}
	wm.hits, err = m.Int64Counter("offroad.collision.hits",
		metric.WithDescription("Collider contacts resolved"))
	if err != nil {
		return nil, err
	}
	wm.broken, err = m.Int64Counter("offroad.collision.broken",
		metric.WithDescription("Breakable colliders broken"))
	if err != nil {
		return nil, err
	}
	wm.wallHits, err = m.Int64Counter("offroad.vehicle.wall_hits",
		metric.WithDescription("Ticks on which the vehicle hit the world boundary"))
	if err != nil {
		return nil, err
	}
	wm.dt, err = m.Float64Histogram("offroad.sim.dt",
		metric.WithDescription("Integrated tick length after clamping"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &wm, nil
}

func (wm *worldMetrics) record(f Frame) {
	ctx := context.Background()
	wm.ticks.Add(ctx, 1, metric.WithAttributes(attribute.Bool("input_enabled", f.InputEnabled)))
	wm.dt.Record(ctx, f.Dt)
	if f.Collisions.HitCount > 0 {
		wm.hits.Add(ctx, int64(f.Collisions.HitCount))
	}
	if n := len(f.Collisions.Broken); n > 0 {
		wm.broken.Add(ctx, int64(n))
	}
	if f.Vehicle.WallHit {
		wm.wallHits.Add(ctx, 1)
	}
}
