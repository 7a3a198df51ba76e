// Package storage records simulation frames for later replay and analysis.
package storage

import "offroad-sim/internal/sim"

// Recorder is implemented by every storage backend. Record is called from
// the simulation loop once per tick; Close flushes and releases resources.
type Recorder interface {
	Record(f sim.Frame) error
	Close() error
}

// Exporter is an optional interface for backends that write a file on Close.
type Exporter interface {
	ExportedFilePath() string
}
