// Package terrain builds the procedural height-field the vehicle drives on and
// answers continuous height and normal queries against it.
package terrain

import (
	"errors"
	"fmt"
	"math"

	"offroad-sim/internal/geometry/vector"
)

// ErrInvalidParams is returned by New when the shape parameters cannot
// describe a terrain.
var ErrInvalidParams = errors.New("invalid terrain parameters")

// sampleEpsilon keeps clamped queries strictly inside the outermost cells.
const sampleEpsilon = 0.001

// Params describes the square terrain and its procedural shape.
type Params struct {
	// Size is the side length of the square terrain in meters, centered on the origin.
	Size float64 `json:"size"`
	// Segments is the number of grid cells per side.
	Segments int `json:"segments"`

	// Amplitude scales the rolling base terrain.
	Amplitude float64 `json:"amplitude"`
	// FreqX and FreqZ are the angular frequencies of the base sinusoids.
	FreqX float64 `json:"freqX"`
	FreqZ float64 `json:"freqZ"`

	// EdgeWidthFrac is the width of the mountain band as a fraction of Size.
	EdgeWidthFrac float64 `json:"edgeWidthFrac"`
	// EdgePower shapes the ramp of the mountain band.
	EdgePower float64 `json:"edgePower"`
	// EdgeAmpFactor is the mountain height as a multiple of Amplitude.
	EdgeAmpFactor float64 `json:"edgeAmpFactor"`
}

// DefaultParams returns the default 400m world.
func DefaultParams() Params {
	return Params{
		Size:          400,
		Segments:      200,
		Amplitude:     2.2,
		FreqX:         0.12,
		FreqZ:         0.16,
		EdgeWidthFrac: 0.18,
		EdgePower:     2.2,
		EdgeAmpFactor: 12,
	}
}

// Validate reports parameter combinations that cannot produce a grid.
func (p Params) Validate() error {
	switch {
	case !(p.Size > 0) || math.IsInf(p.Size, 0):
		return fmt.Errorf("%w: size must be positive, got %v", ErrInvalidParams, p.Size)
	case p.Segments <= 0:
		return fmt.Errorf("%w: segments must be positive, got %d", ErrInvalidParams, p.Segments)
	case !finite(p.Amplitude, p.FreqX, p.FreqZ, p.EdgeAmpFactor):
		return fmt.Errorf("%w: amplitude and frequencies must be finite", ErrInvalidParams)
	case !(p.EdgeWidthFrac > 0 && p.EdgeWidthFrac <= 0.5):
		return fmt.Errorf("%w: edge width fraction must be in (0, 0.5], got %v", ErrInvalidParams, p.EdgeWidthFrac)
	case !(p.EdgePower > 0) || math.IsInf(p.EdgePower, 0):
		return fmt.Errorf("%w: edge power must be positive, got %v", ErrInvalidParams, p.EdgePower)
	}
	return nil
}

// Sample is the terrain height and unit surface normal at a point.
type Sample struct {
	Height float64     `json:"height"`
	Normal vector.Vec3 `json:"normal"`
}

// Flat is the sample used when nothing better is known.
var Flat = Sample{Height: 0, Normal: vector.Up}

// SamplerFunc adapts a plain function to anything that wants a Sample method.
type SamplerFunc func(x, z float64) Sample

// Sample calls f(x, z).
func (f SamplerFunc) Sample(x, z float64) Sample { return f(x, z) }

// HeightField is an immutable (N+1)x(N+1) grid of elevations and vertex normals.
// Vertex (i, j) sits at x = -Size/2 + i*step, z = -Size/2 + j*step.
type HeightField struct {
	params  Params
	n       int
	step    float64
	heights []float64
	normals []vector.Vec3
}

// New evaluates the procedural shape on the grid and derives vertex normals.
func New(p Params) (*HeightField, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := p.Segments
	hf := &HeightField{
		params:  p,
		n:       n,
		step:    p.Size / float64(n),
		heights: make([]float64, (n+1)*(n+1)),
		normals: make([]vector.Vec3, (n+1)*(n+1)),
	}

	for j := 0; j <= n; j++ {
		for i := 0; i <= n; i++ {
			x, z := hf.vertexXZ(i, j)
			hf.heights[hf.index(i, j)] = p.HeightAt(x, z)
		}
	}
	hf.computeNormals()

	return hf, nil
}

// HeightAt evaluates the closed-form terrain function: rolling sinusoids plus
// a mountain band that rises toward every edge.
func (p Params) HeightAt(x, z float64) float64 {
	base := p.Amplitude * (math.Sin(x*p.FreqX)*0.6 +
		math.Cos(z*p.FreqZ)*0.4 +
		math.Sin((x+z)*0.08)*0.3)

	half := p.Size / 2
	band := p.Size * p.EdgeWidthFrac
	distToEdge := math.Min(half-math.Abs(x), half-math.Abs(z))

	edge := 1 - clamp(distToEdge/band, 0, 1)
	edge = math.Pow(edge, p.EdgePower)

	return base + edge*p.Amplitude*p.EdgeAmpFactor
}

// computeNormals uses central differences (one-sided on the border), which is
// the normalized cross product of the two grid edges through the vertex.
func (hf *HeightField) computeNormals() {
	n := hf.n
	for j := 0; j <= n; j++ {
		for i := 0; i <= n; i++ {
			il, ir := max(i-1, 0), min(i+1, n)
			jd, ju := max(j-1, 0), min(j+1, n)

			dhdx := (hf.heights[hf.index(ir, j)] - hf.heights[hf.index(il, j)]) / (float64(ir-il) * hf.step)
			dhdz := (hf.heights[hf.index(i, ju)] - hf.heights[hf.index(i, jd)]) / (float64(ju-jd) * hf.step)

			hf.normals[hf.index(i, j)] = vector.Vec3{X: -dhdx, Y: 1, Z: -dhdz}.Normalize()
		}
	}
}

// Sample returns the bilinearly interpolated height and normal at (x, z).
// Points outside the terrain are clamped onto its border. NaN coordinates
// read as the terrain center.
func (hf *HeightField) Sample(x, z float64) Sample {
	if math.IsNaN(x) {
		x = 0
	}
	if math.IsNaN(z) {
		z = 0
	}
	half := hf.params.Size / 2
	cx := clamp(x, -half+sampleEpsilon, half-sampleEpsilon)
	cz := clamp(z, -half+sampleEpsilon, half-sampleEpsilon)

	u := (cx + half) / hf.step
	v := (cz + half) / hf.step

	i0 := min(int(math.Floor(u)), hf.n)
	j0 := min(int(math.Floor(v)), hf.n)
	i1 := min(i0+1, hf.n)
	j1 := min(j0+1, hf.n)

	fu := u - float64(i0)
	fv := v - float64(j0)

	w00 := (1 - fu) * (1 - fv)
	w10 := fu * (1 - fv)
	w01 := (1 - fu) * fv
	w11 := fu * fv

	i00, i10 := hf.index(i0, j0), hf.index(i1, j0)
	i01, i11 := hf.index(i0, j1), hf.index(i1, j1)

	h := hf.heights[i00]*w00 + hf.heights[i10]*w10 + hf.heights[i01]*w01 + hf.heights[i11]*w11

	nrm := hf.normals[i00].Mul(w00).
		Add(hf.normals[i10].Mul(w10)).
		Add(hf.normals[i01].Mul(w01)).
		Add(hf.normals[i11].Mul(w11)).
		Normalize()
	if nrm == (vector.Vec3{}) {
		nrm = vector.Up
	}

	return Sample{Height: h, Normal: nrm}
}

// Height returns the stored elevation of vertex (i, j).
func (hf *HeightField) Height(i, j int) float64 { return hf.heights[hf.index(i, j)] }

// Normal returns the stored unit normal of vertex (i, j).
func (hf *HeightField) Normal(i, j int) vector.Vec3 { return hf.normals[hf.index(i, j)] }

// VertexPosition returns the world position of vertex (i, j).
func (hf *HeightField) VertexPosition(i, j int) vector.Vec3 {
	x, z := hf.vertexXZ(i, j)
	return vector.Vec3{X: x, Y: hf.Height(i, j), Z: z}
}

func (hf *HeightField) Size() float64  { return hf.params.Size }
func (hf *HeightField) Segments() int  { return hf.n }
func (hf *HeightField) Step() float64  { return hf.step }
func (hf *HeightField) Params() Params { return hf.params }

func (hf *HeightField) index(i, j int) int { return j*(hf.n+1) + i }

func (hf *HeightField) vertexXZ(i, j int) (float64, float64) {
	half := hf.params.Size / 2
	return -half + float64(i)*hf.step, -half + float64(j)*hf.step
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
