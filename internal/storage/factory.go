package storage

import (
	"fmt"
	"log/slog"

	"offroad-sim/internal/config"
	"offroad-sim/internal/storage/memory"
	sqlitestorage "offroad-sim/internal/storage/sqlite"
)

// NewRecorder creates the backend selected by cfg.Type. The "none" type
// returns a nil Recorder.
func NewRecorder(cfg config.RecorderConfig, log *slog.Logger) (Recorder, error) {
	switch cfg.Type {
	case "", config.RecorderNone:
		return nil, nil
	case config.RecorderMemory:
		return memory.New(memory.Config{
			OutputDir:      cfg.OutputDir,
			CompressOutput: cfg.Compress,
		}, log), nil
	case config.RecorderSQLite:
		r, err := sqlitestorage.New(sqlitestorage.Config{
			Path:      cfg.SQLitePath,
			BatchSize: cfg.BatchSize,
		}, log)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown recorder type: %s", cfg.Type)
	}
}
