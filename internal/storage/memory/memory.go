package memory

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"offroad-sim/internal/sim"
)

// Config holds the memory backend settings.
type Config struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("memory recorder closed")

// Recorder keeps the session trajectory in memory and exports it as JSON
// on Close.
type Recorder struct {
	cfg Config
	log *slog.Logger

	startedAt time.Time
	samples   []Sample
	breaks    []BreakEvent
	wallHits  int
	hits      int
	closed    bool

	lastExportPath string
	mu             sync.RWMutex
}

func New(cfg Config, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{cfg: cfg, log: log, startedAt: time.Now()}
}

// Record appends one sample per frame plus one event per broken collider.
func (r *Recorder) Record(f sim.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	r.samples = append(r.samples, sampleOf(f))
	for _, i := range f.Collisions.Broken {
		r.breaks = append(r.breaks, BreakEvent{Frame: f.Index, Time: f.Time, Collider: i})
	}
	r.hits += f.Collisions.HitCount
	if f.Vehicle.WallHit {
		r.wallHits++
	}
	return nil
}

// Len returns the number of recorded frames.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.samples)
}

// Close exports the recording. An empty recording writes nothing.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if len(r.samples) == 0 {
		return nil
	}
	if err := r.exportJSON(); err != nil {
		return err
	}
	r.log.Info("trajectory exported", "path", r.lastExportPath, "frames", len(r.samples))
	return nil
}

// ExportedFilePath is the file written by Close, empty before.
func (r *Recorder) ExportedFilePath() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastExportPath
}
