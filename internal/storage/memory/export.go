package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"offroad-sim/internal/sim"
)

// Export is the root JSON structure of a trajectory file.
type Export struct {
	StartedAt  string       `json:"startedAt"`
	FrameCount int          `json:"frameCount"`
	Duration   float64      `json:"duration"` // simulated seconds
	Hits       int          `json:"hits"`
	WallHits   int          `json:"wallHits"`
	Samples    []Sample     `json:"samples"`
	Breaks     []BreakEvent `json:"breaks"`
}

// Sample is one frame reduced to what a replay needs.
type Sample struct {
	Frame       uint64     `json:"frame"`
	Time        float64    `json:"time"`
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"`
	HeadingDeg  float64    `json:"headingDeg"`
	Speed       float64    `json:"speed"`
	Throttle    float64    `json:"throttle"`
	Steer       float64    `json:"steer"`
	Support     string     `json:"support,omitempty"`
}

// BreakEvent marks the frame on which a collider broke.
type BreakEvent struct {
	Frame    uint64  `json:"frame"`
	Time     float64 `json:"time"`
	Collider int     `json:"collider"`
}

func sampleOf(f sim.Frame) Sample {
	v := f.Vehicle
	return Sample{
		Frame:       f.Index,
		Time:        f.Time,
		Position:    [3]float64{v.Position.X, v.Position.Y, v.Position.Z},
		Orientation: v.Orientation,
		HeadingDeg:  v.HeadingDeg,
		Speed:       v.Speed,
		Throttle:    v.Throttle,
		Steer:       v.Steer,
		Support:     v.Support,
	}
}

func (r *Recorder) buildExport() Export {
	e := Export{
		StartedAt:  r.startedAt.UTC().Format("2006-01-02T15:04:05Z"),
		FrameCount: len(r.samples),
		Hits:       r.hits,
		WallHits:   r.wallHits,
		Samples:    r.samples,
		Breaks:     r.breaks,
	}
	if e.Breaks == nil {
		e.Breaks = make([]BreakEvent, 0)
	}
	if n := len(r.samples); n > 0 {
		e.Duration = r.samples[n-1].Time - r.samples[0].Time
	}
	return e
}

// exportJSON writes the trajectory to OutputDir, gzipped when configured.
func (r *Recorder) exportJSON() error {
	export := r.buildExport()

	timestamp := r.startedAt.Format("20060102_150405")
	filename := fmt.Sprintf("trajectory_%s.json", timestamp)
	if r.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(r.cfg.OutputDir, filename)

	if err := os.MkdirAll(r.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if r.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	r.lastExportPath = outputPath
	return nil
}

func writeJSON(path string, data Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(data); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode trajectory: %w", err)
	}
	return gz.Close()
}
