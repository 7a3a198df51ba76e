package sqlitestorage

import "time"

// Session is one recorder lifetime.
type Session struct {
	ID        uint `gorm:"primarykey"`
	StartedAt time.Time
	EndedAt   *time.Time
	Frames    int
}

// FrameRow is one tick of vehicle state.
type FrameRow struct {
	ID         uint   `gorm:"primarykey"`
	SessionID  uint   `gorm:"index:idx_frames_session_frame,priority:1"`
	FrameIndex uint64 `gorm:"index:idx_frames_session_frame,priority:2"`

	Time float64
	Dt   float64

	X, Y, Z    float64
	HeadingDeg float64
	Speed      float64
	Throttle   float64
	Steer      float64

	Support string `gorm:"size:16"`
	WallHit bool
	Hits    int
}

func (FrameRow) TableName() string { return "frames" }

// BreakRow records a collider broken on a given frame.
type BreakRow struct {
	ID         uint `gorm:"primarykey"`
	SessionID  uint `gorm:"index"`
	FrameIndex uint64
	Collider   int
}

func (BreakRow) TableName() string { return "breaks" }

var models = []any{&Session{}, &FrameRow{}, &BreakRow{}}
