package vehicle

import (
	"math"

	"offroad-sim/internal/geometry/vector"
	"offroad-sim/internal/terrain"
)

// sampleSupport averages the ground under the four footprint corners. If any
// corner cannot be sampled the center sample is used instead, and if that fails
// too the ground is assumed flat at zero.
func (d *Dynamics) sampleSupport(ground Terrain) terrain.Sample {
	s := &d.state
	hw := s.Width * 0.5 * d.cfg.ContactInset
	hl := s.Length * 0.5 * d.cfg.ContactInset
	fwd, lat := s.Forward(), s.Lateral()

	d.contacts[0] = fwd.Mul(hl).Add(lat.Mul(hw))
	d.contacts[1] = fwd.Mul(hl).Sub(lat.Mul(hw))
	d.contacts[2] = fwd.Mul(-hl).Add(lat.Mul(hw))
	d.contacts[3] = fwd.Mul(-hl).Sub(lat.Mul(hw))

	var (
		sumH float64
		sumN vector.Vec3
		ok   = true
	)
	for _, off := range d.contacts {
		sm, good := safeSample(ground, s.Position.X+off.X, s.Position.Z+off.Z)
		if !good {
			ok = false
			break
		}
		sumH += sm.Height
		sumN = sumN.Add(sm.Normal)
	}
	if ok {
		if n := sumN.Normalize(); n.Len() > 0 {
			s.Support = SupportContacts
			return terrain.Sample{Height: sumH / float64(len(d.contacts)), Normal: n}
		}
	}

	if sm, good := safeSample(ground, s.Position.X, s.Position.Z); good {
		d.log.Debug("contact sample unavailable, using center",
			"x", s.Position.X, "z", s.Position.Z)
		s.Support = SupportCenter
		return sm
	}

	d.log.Debug("terrain sample unavailable, assuming flat ground",
		"x", s.Position.X, "z", s.Position.Z)
	s.Support = SupportFlat
	return terrain.Flat
}

// safeSample calls the sampler and rejects panics and non-finite results.
func safeSample(ground Terrain, x, z float64) (sm terrain.Sample, ok bool) {
	if ground == nil {
		return terrain.Sample{}, false
	}
	defer func() {
		if r := recover(); r != nil {
			sm, ok = terrain.Sample{}, false
		}
	}()

	sm = ground.Sample(x, z)
	if math.IsNaN(sm.Height) || math.IsInf(sm.Height, 0) || !sm.Normal.IsFinite() {
		return terrain.Sample{}, false
	}
	n := sm.Normal.Normalize()
	if n.Len() == 0 {
		return terrain.Sample{}, false
	}
	sm.Normal = n
	return sm, true
}
