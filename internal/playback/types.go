package playback

import (
	"errors"
	"fmt"
	"strings"
)

type PlayState int

const (
	Stopped PlayState = iota
	Playing
	Paused
)

func (s PlayState) String() string {
	switch s {
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return "Stopped"
	}
}

type StopBehavior int

const (
	CurrentFrame StopBehavior = iota
	FirstFrame
	LastFrame
)

func (b StopBehavior) String() string {
	switch b {
	case FirstFrame:
		return "FirstFrame"
	case LastFrame:
		return "LastFrame"
	default:
		return "CurrentFrame"
	}
}

// ParseStopBehavior accepts the names returned by String, case-insensitively.
func ParseStopBehavior(s string) (StopBehavior, error) {
	switch strings.ToLower(s) {
	case "currentframe", "current_frame", "":
		return CurrentFrame, nil
	case "firstframe", "first_frame":
		return FirstFrame, nil
	case "lastframe", "last_frame":
		return LastFrame, nil
	}
	return CurrentFrame, fmt.Errorf("unknown stop behavior %q", s)
}

type LoopingMode int

const (
	Restart LoopingMode = iota
	AutoReverse
)

func (m LoopingMode) String() string {
	if m == AutoReverse {
		return "AutoReverse"
	}
	return "Restart"
}

func ParseLoopingMode(s string) (LoopingMode, error) {
	switch strings.ToLower(s) {
	case "restart", "":
		return Restart, nil
	case "autoreverse", "auto_reverse":
		return AutoReverse, nil
	}
	return Restart, fmt.Errorf("unknown looping mode %q", s)
}

type Direction int

const (
	Forward Direction = iota
	Backward
)

// Range is an inclusive frame window.
type Range struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

func (r Range) Contains(frame int) bool {
	return frame >= r.Start && frame <= r.End
}

func (r Range) Clamp(frame int) int {
	return max(r.Start, min(frame, r.End))
}

func (r Range) Span() int { return r.End - r.Start }

// RangeSpec is a requested play range: either explicit frames or one or two
// marker names. One marker selects that marker's range; two select from the
// start of the first to the end of the second.
type RangeSpec struct {
	Start, End int
	Markers    []string
}

func FrameRange(start, end int) RangeSpec {
	return RangeSpec{Start: start, End: end}
}

func MarkerRange(names ...string) RangeSpec {
	return RangeSpec{Markers: names}
}

// ErrInvalidRange is wrapped by RangeError.
var ErrInvalidRange = errors.New("invalid play range")

// RangeError reports a play range update that was ignored.
type RangeError struct {
	Spec   RangeSpec
	Reason string
}

func (e *RangeError) Error() string {
	if len(e.Spec.Markers) > 0 {
		return fmt.Sprintf("play range %v: %s", e.Spec.Markers, e.Reason)
	}
	return fmt.Sprintf("play range [%d, %d]: %s", e.Spec.Start, e.Spec.End, e.Reason)
}

func (e *RangeError) Unwrap() error { return ErrInvalidRange }

const (
	MinFrameSpeed = 0.01
	MaxFrameSpeed = 100.0
	// LoopForever as a loop count repeats until stopped.
	LoopForever = -1
)

// Config holds the playback settings a caller can change at any time.
type Config struct {
	LoopCount    int
	StopBehavior StopBehavior
	LoopingMode  LoopingMode
	FrameSpeed   float64
}

func DefaultConfig() Config {
	return Config{
		LoopCount:    LoopForever,
		StopBehavior: CurrentFrame,
		LoopingMode:  Restart,
		FrameSpeed:   1,
	}
}

// ClampFrameSpeed bounds speed to [MinFrameSpeed, MaxFrameSpeed]; zero,
// negative and NaN map to the minimum.
func ClampFrameSpeed(speed float64) float64 {
	if !(speed >= MinFrameSpeed) {
		return MinFrameSpeed
	}
	return min(speed, MaxFrameSpeed)
}

// Effect tells the owner of a Machine what a transition requires.
type Effect struct {
	// Render asks for Frame to be rasterized.
	Render bool
	Frame  int
	// Finished reports that playback stopped; LoopComplete is set when it
	// stopped because the loop count ran out.
	Finished     bool
	LoopComplete bool
}

// Snapshot is a copy of the machine state.
type Snapshot struct {
	State          PlayState
	CurrentFrame   int
	TotalFrames    int
	PlayRange      Range
	Direction      Direction
	RemainingLoops int
	Config         Config
	Markers        map[string]Range
}
