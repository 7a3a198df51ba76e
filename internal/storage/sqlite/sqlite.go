// Package sqlitestorage records frames into a SQLite file through GORM.
// Rows are buffered and written in batches inside one transaction.
package sqlitestorage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"offroad-sim/internal/sim"
)

const defaultBatchSize = 120

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("sqlite recorder closed")

// Config holds configuration for the SQLite backend.
type Config struct {
	Path      string
	BatchSize int
}

type Recorder struct {
	db      *gorm.DB
	cfg     Config
	log     *slog.Logger
	session Session

	frames  []FrameRow
	breaks  []BreakRow
	dropped int
	closed  bool
	mu     sync.Mutex
}

// New opens (or creates) the database at cfg.Path, migrates the schema and
// starts a new session.
func New(cfg Config, log *slog.Logger) (*Recorder, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite recorder: path is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if log == nil {
		log = slog.Default()
	}

	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := Open(cfg.Path, cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to migrate schema: %w", err), closeDB(db))
	}

	r := &Recorder{
		db:      db,
		cfg:     cfg,
		log:     log,
		session: Session{StartedAt: time.Now().UTC()},
		frames:  make([]FrameRow, 0, cfg.BatchSize),
	}
	if err := db.Create(&r.session).Error; err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create session: %w", err), closeDB(db))
	}
	log.Info("sqlite recorder opened", "path", cfg.Path, "session", r.session.ID)
	return r, nil
}

// Open returns a GORM handle on the SQLite file at path.
func Open(path string, batchSize int) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        batchSize,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SessionID is the primary key of the session rows are written under.
func (r *Recorder) SessionID() uint { return r.session.ID }

func (r *Recorder) Record(f sim.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	v := f.Vehicle
	r.frames = append(r.frames, FrameRow{
		SessionID:  r.session.ID,
		FrameIndex: f.Index,
		Time:       f.Time,
		Dt:         f.Dt,
		X:          v.Position.X,
		Y:          v.Position.Y,
		Z:          v.Position.Z,
		HeadingDeg: v.HeadingDeg,
		Speed:      v.Speed,
		Throttle:   v.Throttle,
		Steer:      v.Steer,
		Support:    v.Support,
		WallHit:    v.WallHit,
		Hits:       f.Collisions.HitCount,
	})
	for _, i := range f.Collisions.Broken {
		r.breaks = append(r.breaks, BreakRow{SessionID: r.session.ID, FrameIndex: f.Index, Collider: i})
	}

	if len(r.frames) >= r.cfg.BatchSize {
		return r.flush()
	}
	return nil
}

// flush writes the buffered rows. A failed batch is dropped so the buffer
// never outgrows one batch. Caller holds mu.
func (r *Recorder) flush() error {
	if len(r.frames) == 0 && len(r.breaks) == 0 {
		return nil
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if len(r.frames) > 0 {
			if err := tx.CreateInBatches(r.frames, r.cfg.BatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert frames: %w", err)
			}
		}
		if len(r.breaks) > 0 {
			if err := tx.Create(&r.breaks).Error; err != nil {
				return fmt.Errorf("failed to insert breaks: %w", err)
			}
		}
		return tx.Model(&r.session).
			Update("frames", gorm.Expr("frames + ?", len(r.frames))).Error
	})
	if err != nil {
		r.dropped += len(r.frames)
		r.log.Warn("dropping frame batch", "session", r.session.ID,
			"frames", len(r.frames), "breaks", len(r.breaks), "droppedTotal", r.dropped, "error", err)
		r.frames = r.frames[:0]
		r.breaks = r.breaks[:0]
		return err
	}

	r.log.Debug("flushed frames", "session", r.session.ID, "frames", len(r.frames), "breaks", len(r.breaks))
	r.frames = r.frames[:0]
	r.breaks = r.breaks[:0]
	return nil
}

// Close flushes pending rows, stamps the session end and closes the database.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	flushErr := r.flush()

	now := time.Now().UTC()
	endErr := r.db.Model(&r.session).Update("ended_at", &now).Error

	return errors.Join(flushErr, endErr, closeDB(r.db))
}

// Dropped counts frames lost to failed batch writes.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
