package sim

import (
	"time"

	"offroad-sim/internal/geometry/vector"
)

type CommandType string

const (
	CmdInput    CommandType = "input"
	CmdFreeLook CommandType = "freelook"
	CmdReset    CommandType = "reset"
)

type Command interface {
	Type() CommandType
	ReceivedAt() time.Time
}

// InputCommand replaces the held steer and throttle axes until the next one.
type InputCommand struct {
	At       time.Time
	Steer    float64 `json:"steer"`
	Throttle float64 `json:"throttle"`
}

func (c InputCommand) Type() CommandType     { return CmdInput }
func (c InputCommand) ReceivedAt() time.Time { return c.At }

// FreeLookCommand toggles the free camera. While it is on, driver input is
// suppressed and the vehicle coasts.
type FreeLookCommand struct {
	At      time.Time
	Enabled bool `json:"enabled"`
}

func (c FreeLookCommand) Type() CommandType     { return CmdFreeLook }
func (c FreeLookCommand) ReceivedAt() time.Time { return c.At }

// ResetCommand respawns the vehicle, at Position if set, else at the spawn point.
type ResetCommand struct {
	At       time.Time
	Position *vector.Vec3 `json:"position,omitempty"`
}

func (c ResetCommand) Type() CommandType     { return CmdReset }
func (c ResetCommand) ReceivedAt() time.Time { return c.At }
