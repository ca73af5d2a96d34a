// Package playback implements the play/pause/stop/seek state machine of one
// animation instance: loop accounting, play range and marker resolution and
// stop behavior.
//
// A Machine is not safe for concurrent use; its owner serializes access.
package playback

import (
	"maps"
	"math"
)

type Machine struct {
	total   int
	markers map[string]Range

	cfg   Config
	rng   Range
	state PlayState
	frame int
	dir   Direction

	// remaining counts loops left in this session; LoopForever when unbounded.
	remaining int
	// carry is the fractional frame advance not yet applied.
	carry float64

	rendered     bool
	started      bool
	seekPending  bool
	seekFrame    int
	stoppedJumps bool
}

// New returns a stopped machine over totalFrames frames with the full range
// selected.
func New(totalFrames int, markers map[string]Range) *Machine {
	m := &Machine{
		total:   max(totalFrames, 0),
		markers: maps.Clone(markers),
		cfg:     DefaultConfig(),
	}
	if m.markers == nil {
		m.markers = map[string]Range{}
	}
	m.rng = Range{Start: 0, End: max(m.total-1, 0)}
	return m
}

func (m *Machine) State() PlayState     { return m.state }
func (m *Machine) CurrentFrame() int    { return m.frame }
func (m *Machine) PlayRange() Range     { return m.rng }
func (m *Machine) Config() Config       { return m.cfg }
func (m *Machine) TotalFrames() int     { return m.total }
func (m *Machine) Direction() Direction { return m.dir }

// Empty reports a machine with nothing to play. Every operation is a no-op.
func (m *Machine) Empty() bool { return m.total == 0 }

func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		State:          m.state,
		CurrentFrame:   m.frame,
		TotalFrames:    m.total,
		PlayRange:      m.rng,
		Direction:      m.dir,
		RemainingLoops: m.remaining,
		Config:         m.cfg,
		Markers:        maps.Clone(m.markers),
	}
}

// Play starts playback. From Stopped it rewinds to the range start, unless a
// jump while stopped left the frame inside the range, and resets the loop
// budget. From Paused it resumes where it was.
func (m *Machine) Play() Effect {
	if m.Empty() || m.state == Playing {
		return Effect{}
	}
	if m.state == Stopped {
		if !m.stoppedJumps || !m.rng.Contains(m.frame) {
			m.frame = m.rng.Start
		}
		m.dir = Forward
		m.remaining = loopBudget(m.cfg.LoopCount)
		m.rendered = false
		m.carry = 0
	}
	m.stoppedJumps = false
	m.state = Playing
	m.started = true
	return Effect{Render: true, Frame: m.frame}
}

// Pause freezes playback at the current frame. A seek queued while playing is
// applied first. The returned effect requests one more render so the paused
// frame is what ends up presented.
func (m *Machine) Pause() Effect {
	if m.state != Playing {
		return Effect{}
	}
	m.applySeek()
	m.state = Paused
	return Effect{Render: true, Frame: m.frame}
}

// Stop ends playback and resolves the frame per the stop behavior. Stopping
// an already stopped machine changes nothing.
func (m *Machine) Stop() Effect {
	if m.state == Stopped {
		return Effect{}
	}
	return m.stop(false)
}

func (m *Machine) stop(loopComplete bool) Effect {
	m.seekPending = false
	m.stoppedJumps = false
	switch m.cfg.StopBehavior {
	case FirstFrame:
		m.frame = m.rng.Start
	case LastFrame:
		m.frame = m.rng.End
	}
	m.state = Stopped
	m.dir = Forward
	m.carry = 0
	return Effect{
		Render:       true,
		Frame:        m.frame,
		Finished:     m.rendered,
		LoopComplete: loopComplete && m.rendered,
	}
}

// JumpTo moves to frame, clamped into the play range. While playing the jump
// is queued and applied before the next advance.
func (m *Machine) JumpTo(frame int) Effect {
	if m.Empty() {
		return Effect{}
	}
	frame = m.rng.Clamp(frame)
	if m.state == Playing {
		m.seekPending = true
		m.seekFrame = frame
		return Effect{}
	}
	m.frame = frame
	if m.state == Stopped {
		m.stoppedJumps = true
	}
	return Effect{Render: true, Frame: m.frame}
}

// DiscardPendingSeek drops a queued jump.
func (m *Machine) DiscardPendingSeek() { m.seekPending = false }

// PendingSeek reports the queued jump target, if any.
func (m *Machine) PendingSeek() (int, bool) { return m.seekFrame, m.seekPending }

// UpdatePlayRange replaces the play range. Unknown markers and empty specs
// leave the range untouched and return a *RangeError. Frame bounds are
// clamped to the animation and swapped when reversed. A current frame left
// outside the new range is moved to the nearest bound.
func (m *Machine) UpdatePlayRange(spec RangeSpec) error {
	if m.Empty() {
		return &RangeError{Spec: spec, Reason: "animation has no frames"}
	}
	r, err := m.resolve(spec)
	if err != nil {
		return err
	}
	m.rng = r
	m.frame = r.Clamp(m.frame)
	if m.seekPending {
		m.seekFrame = r.Clamp(m.seekFrame)
	}
	return nil
}

func (m *Machine) resolve(spec RangeSpec) (Range, error) {
	last := m.total - 1
	switch len(spec.Markers) {
	case 0:
		start := max(0, min(spec.Start, last))
		end := max(0, min(spec.End, last))
		if start > end {
			start, end = end, start
		}
		return Range{Start: start, End: end}, nil
	case 1:
		r, ok := m.markers[spec.Markers[0]]
		if !ok {
			return Range{}, &RangeError{Spec: spec, Reason: "unknown marker"}
		}
		return r, nil
	case 2:
		from, ok1 := m.markers[spec.Markers[0]]
		to, ok2 := m.markers[spec.Markers[1]]
		if !ok1 || !ok2 {
			return Range{}, &RangeError{Spec: spec, Reason: "unknown marker"}
		}
		start, end := from.Start, to.End
		if start > end {
			start, end = end, start
		}
		return Range{Start: start, End: end}, nil
	default:
		return Range{}, &RangeError{Spec: spec, Reason: "at most two markers"}
	}
}

// SetConfig applies every field of cfg. See the individual setters.
func (m *Machine) SetConfig(cfg Config) {
	m.SetLoopCount(cfg.LoopCount)
	m.SetStopBehavior(cfg.StopBehavior)
	m.SetLoopingMode(cfg.LoopingMode)
	m.SetFrameSpeed(cfg.FrameSpeed)
}

// SetLoopCount sets the number of loops; -1 loops forever. A running session
// restarts its loop budget.
func (m *Machine) SetLoopCount(n int) {
	if n < LoopForever {
		n = LoopForever
	}
	m.cfg.LoopCount = n
	if m.state != Stopped {
		m.remaining = loopBudget(n)
	}
}

func (m *Machine) SetStopBehavior(b StopBehavior) { m.cfg.StopBehavior = b }

func (m *Machine) SetLoopingMode(mode LoopingMode) {
	m.cfg.LoopingMode = mode
	if mode == Restart {
		m.dir = Forward
	}
}

func (m *Machine) SetFrameSpeed(speed float64) {
	m.cfg.FrameSpeed = ClampFrameSpeed(speed)
}

// MarkRendered records that a frame of the current session reached the
// screen. Stop only reports completion after that.
func (m *Machine) MarkRendered() {
	if m.state != Stopped {
		m.rendered = true
	}
}

// Advance moves playback forward by elapsedFrames frame periods, scaled by
// the frame speed. It applies a queued jump first. The first advance after
// Play only renders the current frame.
func (m *Machine) Advance(elapsedFrames float64) Effect {
	if m.state != Playing {
		return Effect{}
	}
	m.applySeek()
	if m.started {
		m.started = false
		return Effect{Render: true, Frame: m.frame}
	}

	total := m.carry + max(elapsedFrames, 0)*m.cfg.FrameSpeed
	delta := int(math.Round(total))
	m.carry = total - float64(delta)

	if done := m.step(delta); done {
		return m.stop(true)
	}
	return Effect{Render: true, Frame: m.frame}
}

func (m *Machine) applySeek() {
	if m.seekPending {
		m.frame = m.rng.Clamp(m.seekFrame)
		m.seekPending = false
	}
}

// step advances delta frames through the range and reports whether the loop
// budget ran out. On completion the frame is left on the boundary that ended
// the last loop.
func (m *Machine) step(delta int) bool {
	if delta <= 0 {
		return false
	}
	m.frame = m.rng.Clamp(m.frame)
	delta = m.skipCycles(delta)

	for delta > 0 {
		var room int
		if m.dir == Forward {
			room = m.rng.End - m.frame
		} else {
			room = m.frame - m.rng.Start
		}
		if delta <= room {
			if m.dir == Forward {
				m.frame += delta
			} else {
				m.frame -= delta
			}
			return false
		}
		delta -= room + 1
		if m.cross() {
			return true
		}
	}
	return false
}

// cross handles one step past the end of the range in the current direction.
func (m *Machine) cross() bool {
	countsLoop := m.cfg.LoopingMode == Restart || m.dir == Backward
	if countsLoop && m.remaining != LoopForever {
		m.remaining--
		if m.remaining <= 0 {
			m.remaining = 0
			if m.dir == Forward {
				m.frame = m.rng.End
			} else {
				m.frame = m.rng.Start
			}
			return true
		}
	}

	switch {
	case m.cfg.LoopingMode == Restart:
		m.dir = Forward
		m.frame = m.rng.Start
	case m.dir == Forward:
		m.dir = Backward
		m.frame = max(m.rng.End-1, m.rng.Start)
	default:
		m.dir = Forward
		m.frame = min(m.rng.Start+1, m.rng.End)
	}
	return false
}

// skipCycles removes whole loop cycles from delta without walking them,
// charging each to the loop budget as long as the budget outlasts them.
func (m *Machine) skipCycles(delta int) int {
	cycle := m.rng.Span() + 1
	if m.cfg.LoopingMode == AutoReverse {
		cycle = max(2*m.rng.Span(), 2)
	}
	full := delta / cycle
	if full == 0 {
		return delta
	}
	if m.remaining == LoopForever {
		return delta % cycle
	}
	if full < m.remaining {
		m.remaining -= full
		return delta % cycle
	}
	return delta
}

func loopBudget(loopCount int) int {
	if loopCount < 0 {
		return LoopForever
	}
	return max(loopCount, 1)
}
