package vehicle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offroad-sim/internal/geometry/vector"
	"offroad-sim/internal/terrain"
)

const frame = 1.0 / 60

var flatGround = terrain.SamplerFunc(func(x, z float64) terrain.Sample { return terrain.Flat })

func drive(throttle, steer float64) Input {
	return Input{Throttle: throttle, Steer: steer, Enabled: true}
}

func newDynamics(t *testing.T, spawn vector.Vec3) *Dynamics {
	t.Helper()
	d, err := New(DefaultConfig(), spawn)
	require.NoError(t, err)
	return d
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cases := map[string]func(c *Config){
		"zero width":        func(c *Config) { c.Width = 0 },
		"negative drag":     func(c *Config) { c.Drag = -1 },
		"positive reverse":  func(c *Config) { c.MaxReverseSpeed = 3 },
		"retention above 1": func(c *Config) { c.WallRetention = 1.5 },
		"nan grip":          func(c *Config) { c.Grip = math.NaN() },
		"zero frequency":    func(c *Config) { c.SuspensionFreq = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			_, err := New(cfg, vector.Vec3{})
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := New(DefaultConfig(), vector.Vec3{X: math.Inf(1)})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestIntegrate_ForwardSpeedNeverExceedsMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BoundsHalfSize = 1e6 // keep the walls out of reach for the whole run
	d, err := New(cfg, vector.Vec3{Y: 1})
	require.NoError(t, err)
	maxF := d.Config().MaxForwardSpeed

	for i := 0; i < 1000; i++ {
		d.Integrate(frame, flatGround, drive(1, 0))
		require.LessOrEqual(t, d.State().ForwardSpeed(), maxF+1e-9, "tick %d", i)
	}
	assert.Greater(t, d.State().ForwardSpeed(), 0.9*maxF)
}

func TestIntegrate_ReverseSpeedNeverExceedsMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BoundsHalfSize = 1e6
	d, err := New(cfg, vector.Vec3{Y: 1})
	require.NoError(t, err)
	maxR := d.Config().MaxReverseSpeed

	for i := 0; i < 1000; i++ {
		d.Integrate(frame, flatGround, drive(-1, 0))
		require.GreaterOrEqual(t, d.State().ForwardSpeed(), maxR-1e-9, "tick %d", i)
	}
	assert.Less(t, d.State().ForwardSpeed(), 0.9*maxR)
}

func TestIntegrate_ThrottleSmoothing(t *testing.T) {
	d := newDynamics(t, vector.Vec3{Y: 1})
	d.Integrate(frame, flatGround, drive(1, 0))

	want := 1 - math.Exp(-d.Config().ThrottleSmoothing*frame)
	assert.InDelta(t, want, d.State().Throttle, 1e-12)

	d.Integrate(frame, flatGround, drive(5, 0))
	assert.LessOrEqual(t, d.State().Throttle, 1.0)
}

func TestIntegrate_NoPivotAtRest(t *testing.T) {
	d := newDynamics(t, vector.Vec3{Y: 1})
	for i := 0; i < 30; i++ {
		d.Integrate(frame, flatGround, drive(0, 1))
	}
	assert.Equal(t, 0.0, d.State().Heading)
}

func TestIntegrate_SteeringScalesWithSpeed(t *testing.T) {
	d := newDynamics(t, vector.Vec3{Y: 1})
	body := d.Body()
	body.Velocity = vector.Vec3{Z: 4}

	d.Integrate(frame, flatGround, drive(0, 1))

	cfg := d.Config()
	want := cfg.TurnRate * frame * 4 / cfg.SteerSpeedDivisor
	assert.InDelta(t, want, d.State().Heading, 1e-12)
}

func TestIntegrate_LateralGrip(t *testing.T) {
	d := newDynamics(t, vector.Vec3{Y: 1})
	body := d.Body()
	body.Velocity = vector.Vec3{X: 10} // heading 0 faces +Z, so this is all lateral

	d.Integrate(frame, flatGround, Input{})

	want := 10 * math.Exp(-d.Config().Grip*frame)
	assert.InDelta(t, want, d.State().Velocity.X, 1e-9)
	assert.InDelta(t, 0.0, d.State().Velocity.Z, 1e-12)
}

func TestIntegrate_SnapsTinyVelocityToZero(t *testing.T) {
	d := newDynamics(t, vector.Vec3{Y: 1})
	d.Body().Velocity = vector.Vec3{Z: 0.001}

	d.Integrate(frame, flatGround, Input{})
	assert.Equal(t, vector.Vec3{}, d.State().Velocity)
}

func TestIntegrate_InputDisabledCoasts(t *testing.T) {
	d := newDynamics(t, vector.Vec3{Y: 1})
	for i := 0; i < 120; i++ {
		d.Integrate(frame, flatGround, drive(1, 0))
	}
	moving := d.State().ForwardSpeed()
	throttle := d.State().Throttle

	d.Integrate(frame, flatGround, Input{Throttle: 1, Steer: 1, Enabled: false})

	st := d.State()
	assert.Less(t, st.Throttle, throttle)
	assert.Equal(t, 0.0, st.Steer)
	assert.Equal(t, 0.0, st.Heading)
	assert.Greater(t, st.ForwardSpeed(), 0.0)
	assert.Greater(t, st.Position.Z, 0.0)
	assert.Less(t, st.ForwardSpeed(), moving+d.Config().Accel*throttle*frame)
}

func TestIntegrate_BoundaryReflection(t *testing.T) {
	d := newDynamics(t, vector.Vec3{Y: 1})
	limit := d.Config().BoundsHalfSize

	body := d.Body()
	body.Heading = math.Pi / 2 // facing +X
	body.Position.X = limit - 0.01
	body.Velocity = vector.Vec3{X: 5}

	d.Integrate(frame, flatGround, Input{})

	st := d.State()
	assert.Equal(t, limit, st.Position.X)
	assert.True(t, st.WallHit)
	assert.Less(t, st.Velocity.X, 0.0)
	assert.InDelta(t, -5*d.Config().WallRetention, st.Velocity.X, 0.02)
}

func TestIntegrate_BoundaryDampsThrottle(t *testing.T) {
	d := newDynamics(t, vector.Vec3{Y: 1})
	limit := d.Config().BoundsHalfSize

	body := d.Body()
	body.Position.Z = -limit + 0.001
	body.Heading = math.Pi
	body.Velocity = vector.Vec3{Z: -8}
	body.Throttle = 1

	d.Integrate(frame, flatGround, drive(1, 0))

	st := d.State()
	assert.Equal(t, -limit, st.Position.Z)
	assert.Greater(t, st.Velocity.Z, 0.0)
	assert.Less(t, st.Throttle, 1.0)
}

func TestIntegrate_SettlesOntoGround(t *testing.T) {
	d := newDynamics(t, vector.Vec3{Y: 10})
	for i := 0; i < 180; i++ {
		d.Integrate(frame, flatGround, Input{})
	}

	cfg := d.Config()
	st := d.State()
	assert.True(t, st.Initialized)
	assert.InDelta(t, cfg.Height*0.5+cfg.Clearance, st.TargetHeight, 1e-12)
	assert.InDelta(t, st.TargetHeight, st.Position.Y, 1e-3)
	assert.InDelta(t, 0.0, st.VerticalVel, 1e-3)
}

func TestIntegrate_VerticalSpeedClamped(t *testing.T) {
	d := newDynamics(t, vector.Vec3{Y: 200})
	for i := 0; i < 60; i++ {
		d.Integrate(frame, flatGround, Input{})
		require.LessOrEqual(t, math.Abs(d.State().VerticalVel), d.Config().MaxVerticalSpeed)
	}
}

func TestIntegrate_NeverBelowSupport(t *testing.T) {
	hf, err := terrain.New(terrain.DefaultParams())
	require.NoError(t, err)

	d := newDynamics(t, vector.Vec3{Y: 10})
	for i := 0; i < 3000; i++ {
		steer := math.Sin(float64(i) * 0.01)
		d.Integrate(frame, hf, drive(1, steer))
		st := d.State()
		require.GreaterOrEqual(t, st.Position.Y, st.TargetHeight, "tick %d", i)
		require.LessOrEqual(t, math.Abs(st.Position.X), d.Config().BoundsHalfSize)
		require.LessOrEqual(t, math.Abs(st.Position.Z), d.Config().BoundsHalfSize)
	}
}

func TestIntegrate_TargetRiseIsLimited(t *testing.T) {
	height := 0.0
	step := terrain.SamplerFunc(func(x, z float64) terrain.Sample {
		return terrain.Sample{Height: height, Normal: vector.Up}
	})

	d := newDynamics(t, vector.Vec3{Y: 1})
	d.Integrate(frame, step, Input{})
	before := d.State().TargetHeight

	height = 5
	d.Integrate(frame, step, Input{})
	assert.LessOrEqual(t, d.State().TargetHeight-before, d.Config().MaxTargetRise+1e-12)
	assert.Greater(t, d.State().TargetHeight, before)
}

func TestIntegrate_CornerFailureFallsBackToCenter(t *testing.T) {
	d := newDynamics(t, vector.Vec3{Y: 1})
	body := d.Body()
	picky := terrain.SamplerFunc(func(x, z float64) terrain.Sample {
		if x != body.Position.X || z != body.Position.Z {
			panic("off-center")
		}
		return terrain.Sample{Height: 2, Normal: vector.Up}
	})

	d.Integrate(frame, picky, Input{})

	st := d.State()
	assert.Equal(t, SupportCenter, st.Support)
	assert.InDelta(t, 2+d.Config().Height*0.5+d.Config().Clearance, st.TargetHeight, 1e-12)
}

func TestIntegrate_UnavailableTerrainIsFlat(t *testing.T) {
	samplers := map[string]Terrain{
		"panics": terrain.SamplerFunc(func(x, z float64) terrain.Sample { panic("boom") }),
		"nan": terrain.SamplerFunc(func(x, z float64) terrain.Sample {
			return terrain.Sample{Height: math.NaN(), Normal: vector.Up}
		}),
		"zero normal": terrain.SamplerFunc(func(x, z float64) terrain.Sample {
			return terrain.Sample{Height: 3}
		}),
		"nil":         nil,
		"nil pointer": (*terrain.HeightField)(nil),
	}
	for name, ground := range samplers {
		t.Run(name, func(t *testing.T) {
			d := newDynamics(t, vector.Vec3{Y: 1})
			d.Integrate(frame, ground, drive(1, 0))

			st := d.State()
			assert.Equal(t, SupportFlat, st.Support)
			assert.Equal(t, vector.Up, st.GroundNormal)
			assert.InDelta(t, d.Config().Height*0.5+d.Config().Clearance, st.TargetHeight, 1e-12)
		})
	}
}

func TestIntegrate_OrientationFollowsSlope(t *testing.T) {
	const slope = 0.3
	incline := terrain.SamplerFunc(func(x, z float64) terrain.Sample {
		return terrain.Sample{Height: slope * x, Normal: vector.Vec3{X: -slope, Y: 1}.Normalize()}
	})

	d := newDynamics(t, vector.Vec3{Y: 1})
	d.Body().Heading = 0.4
	d.Integrate(frame, incline, Input{})

	st := d.State()
	n := vector.Vec3{X: -slope, Y: 1}.Normalize()
	up := vector.Rotate(st.Orientation, vector.Up)
	assert.InDelta(t, n.X, up.X, 1e-9)
	assert.InDelta(t, n.Y, up.Y, 1e-9)
	assert.InDelta(t, n.Z, up.Z, 1e-9)
	assert.Equal(t, SupportContacts, st.Support)
}

func TestIntegrate_NonPositiveDtIsNoop(t *testing.T) {
	d := newDynamics(t, vector.Vec3{Y: 4})
	before := d.State()

	d.Integrate(0, flatGround, drive(1, 1))
	d.Integrate(-frame, flatGround, drive(1, 1))
	d.Integrate(math.NaN(), flatGround, drive(1, 1))

	assert.Equal(t, before, d.State())
}

func TestIntegrate_Deterministic(t *testing.T) {
	hf, err := terrain.New(terrain.DefaultParams())
	require.NoError(t, err)

	run := func() []State {
		d := newDynamics(t, vector.Vec3{Y: 10})
		out := make([]State, 0, 600)
		for i := 0; i < 600; i++ {
			dt := frame
			if i%7 == 0 {
				dt = 0.033
			}
			d.Integrate(dt, hf, drive(math.Cos(float64(i)*0.02), math.Sin(float64(i)*0.05)))
			out = append(out, d.State())
		}
		return out
	}

	assert.Equal(t, run(), run())
}

func TestReset(t *testing.T) {
	d := newDynamics(t, vector.Vec3{Y: 1})
	for i := 0; i < 60; i++ {
		d.Integrate(frame, flatGround, drive(1, 1))
	}
	d.Reset(vector.Vec3{X: 3, Y: 8, Z: -2})

	st := d.State()
	assert.Equal(t, vector.Vec3{X: 3, Y: 8, Z: -2}, st.Position)
	assert.Equal(t, vector.Vec3{}, st.Velocity)
	assert.False(t, st.Initialized)
	assert.Equal(t, 0.0, st.Throttle)
	assert.Equal(t, d.Config().Width, st.Width)
}

func TestSupportString(t *testing.T) {
	assert.Equal(t, "contacts", SupportContacts.String())
	assert.Equal(t, "center", SupportCenter.String())
	assert.Equal(t, "flat", SupportFlat.String())
	assert.Equal(t, "unknown", Support(42).String())
}
