package playback

import (
	"errors"
	"math"
	"testing"
)

// run plays m until it stops or maxTicks advances of one frame each happen.
// It returns every effect that reported completion.
func run(m *Machine, maxTicks int) []Effect {
	var finished []Effect
	for range maxTicks {
		eff := m.Advance(1)
		if eff.Render && m.State() != Stopped {
			m.MarkRendered()
		}
		if eff.Finished {
			finished = append(finished, eff)
		}
		if m.State() == Stopped {
			break
		}
	}
	return finished
}

func TestLoopCountScenario(t *testing.T) {
	tests := []struct {
		behavior  StopBehavior
		wantFrame int
	}{
		{FirstFrame, 1},
		{LastFrame, 3},
		{CurrentFrame, 3},
	}
	for _, tt := range tests {
		t.Run(tt.behavior.String(), func(t *testing.T) {
			m := New(100, nil)
			if err := m.UpdatePlayRange(FrameRange(1, 3)); err != nil {
				t.Fatal(err)
			}
			m.SetLoopCount(3)
			m.SetStopBehavior(tt.behavior)
			m.Play()

			finished := run(m, 1000)
			if m.State() != Stopped {
				t.Fatalf("state = %v, want Stopped", m.State())
			}
			if len(finished) != 1 || !finished[0].LoopComplete {
				t.Fatalf("finished effects = %+v, want exactly one loop-complete", finished)
			}
			if m.CurrentFrame() != tt.wantFrame {
				t.Errorf("frame = %d, want %d", m.CurrentFrame(), tt.wantFrame)
			}
		})
	}
}

func TestLoopCountVisitsEveryFrame(t *testing.T) {
	m := New(10, nil)
	m.UpdatePlayRange(FrameRange(2, 4))
	m.SetLoopCount(2)
	m.Play()

	var frames []int
	for range 50 {
		eff := m.Advance(1)
		m.MarkRendered()
		if m.State() == Stopped {
			break
		}
		frames = append(frames, eff.Frame)
	}
	want := []int{2, 3, 4, 2, 3, 4}
	if len(frames) != len(want) {
		t.Fatalf("frames = %v, want %v", frames, want)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Fatalf("frames = %v, want %v", frames, want)
		}
	}
}

func TestAutoReverseRoundTrip(t *testing.T) {
	m := New(10, nil)
	m.UpdatePlayRange(FrameRange(0, 3))
	m.SetLoopingMode(AutoReverse)
	m.SetLoopCount(1)
	m.SetStopBehavior(CurrentFrame)
	m.Play()

	var frames []int
	var finished []Effect
	for range 50 {
		eff := m.Advance(1)
		if eff.Finished {
			finished = append(finished, eff)
			break
		}
		m.MarkRendered()
		frames = append(frames, eff.Frame)
	}
	want := []int{0, 1, 2, 3, 2, 1, 0}
	if len(frames) != len(want) {
		t.Fatalf("frames = %v, want %v", frames, want)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Fatalf("frames = %v, want %v", frames, want)
		}
	}
	if len(finished) != 1 || !finished[0].LoopComplete {
		t.Fatalf("finished = %+v", finished)
	}
	if m.CurrentFrame() != 0 {
		t.Errorf("final frame = %d, want 0", m.CurrentFrame())
	}
}

func TestInfiniteLoopLargeDelta(t *testing.T) {
	m := New(10, nil)
	m.Play()
	m.Advance(0)
	m.Advance(1e6 + 3)
	if m.State() != Playing {
		t.Fatalf("state = %v, want Playing", m.State())
	}
	if got, want := m.CurrentFrame(), 3; got != want {
		t.Errorf("frame = %d, want %d", got, want)
	}
}

func TestFiniteLoopLargeDeltaStops(t *testing.T) {
	m := New(10, nil)
	m.SetLoopCount(5)
	m.SetStopBehavior(LastFrame)
	m.Play()
	m.Advance(0)
	m.MarkRendered()
	eff := m.Advance(1000)
	if !eff.Finished || !eff.LoopComplete {
		t.Fatalf("effect = %+v, want loop-complete finish", eff)
	}
	if m.CurrentFrame() != 9 {
		t.Errorf("frame = %d, want 9", m.CurrentFrame())
	}
}

func TestPlayRangeClamping(t *testing.T) {
	tests := []struct {
		name string
		spec RangeSpec
		want Range
	}{
		{"valid", FrameRange(10, 20), Range{10, 20}},
		{"past end", FrameRange(1, 100+100), Range{1, 99}},
		{"negative start", FrameRange(-5, 3), Range{0, 3}},
		{"reversed", FrameRange(30, 10), Range{10, 30}},
		{"single frame", FrameRange(7, 7), Range{7, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(100, nil)
			if err := m.UpdatePlayRange(tt.spec); err != nil {
				t.Fatal(err)
			}
			if got := m.Snapshot().PlayRange; got != tt.want {
				t.Errorf("range = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlayRangeProperty(t *testing.T) {
	const total = 12
	for start := 0; start < total; start++ {
		for end := start; end < total; end++ {
			m := New(total, nil)
			if err := m.UpdatePlayRange(FrameRange(start, end)); err != nil {
				t.Fatal(err)
			}
			m.Play()
			m.Advance(1)
			if got := m.Snapshot().PlayRange; got != (Range{start, end}) {
				t.Fatalf("range = %v, want [%d %d]", got, start, end)
			}
			if f := m.CurrentFrame(); f < start || f > end {
				t.Fatalf("frame %d outside [%d %d]", f, start, end)
			}
		}
	}
}

func TestMarkerRanges(t *testing.T) {
	markers := map[string]Range{
		"intro": {0, 23},
		"loop":  {24, 47},
		"outro": {48, 59},
	}
	m := New(60, markers)

	if err := m.UpdatePlayRange(MarkerRange("loop")); err != nil {
		t.Fatal(err)
	}
	if got := m.Snapshot().PlayRange; got != markers["loop"] {
		t.Errorf("range = %v, want %v", got, markers["loop"])
	}

	if err := m.UpdatePlayRange(MarkerRange("intro", "loop")); err != nil {
		t.Fatal(err)
	}
	if got := m.Snapshot().PlayRange; got != (Range{0, 47}) {
		t.Errorf("two-marker range = %v, want [0 47]", got)
	}

	before := m.PlayRange()
	err := m.UpdatePlayRange(MarkerRange("missing"))
	var rerr *RangeError
	if !errors.As(err, &rerr) || !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("err = %v, want *RangeError", err)
	}
	if m.PlayRange() != before {
		t.Errorf("range changed to %v after invalid marker", m.PlayRange())
	}
	if err := m.UpdatePlayRange(MarkerRange("a", "b", "c")); err == nil {
		t.Error("expected error for three markers")
	}
}

func TestPlayRangeMovesCurrentFrame(t *testing.T) {
	m := New(100, nil)
	m.JumpTo(50)
	m.UpdatePlayRange(FrameRange(10, 20))
	if m.CurrentFrame() != 20 {
		t.Errorf("frame = %d, want 20", m.CurrentFrame())
	}
	m.UpdatePlayRange(FrameRange(30, 40))
	if m.CurrentFrame() != 30 {
		t.Errorf("frame = %d, want 30", m.CurrentFrame())
	}
}

func TestFrameSpeedClamp(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, MinFrameSpeed},
		{-3, MinFrameSpeed},
		{math.NaN(), MinFrameSpeed},
		{0.5, 0.5},
		{100, 100},
		{250, MaxFrameSpeed},
		{math.Inf(1), MaxFrameSpeed},
	}
	for _, tt := range tests {
		m := New(10, nil)
		m.SetFrameSpeed(tt.in)
		if got := m.Config().FrameSpeed; got != tt.want {
			t.Errorf("SetFrameSpeed(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFrameSpeedScalesAdvance(t *testing.T) {
	m := New(100, nil)
	m.SetFrameSpeed(2)
	m.Play()
	m.Advance(1)
	m.Advance(1)
	if m.CurrentFrame() != 2 {
		t.Errorf("frame = %d, want 2", m.CurrentFrame())
	}

	m.SetFrameSpeed(0.5)
	m.Advance(1)
	m.Advance(1)
	if m.CurrentFrame() != 3 {
		t.Errorf("frame = %d after two half-speed ticks, want 3", m.CurrentFrame())
	}
}

func TestStopIdempotent(t *testing.T) {
	for _, b := range []StopBehavior{FirstFrame, LastFrame, CurrentFrame} {
		m := New(30, nil)
		m.SetStopBehavior(b)
		m.Play()
		m.Advance(0)
		m.MarkRendered()
		m.Advance(5)

		first := m.Stop()
		if !first.Finished || first.LoopComplete {
			t.Errorf("%v: first stop = %+v, want finished without loop completion", b, first)
		}
		frame := m.CurrentFrame()
		second := m.Stop()
		if second.Finished || second.Render {
			t.Errorf("%v: second stop = %+v, want no-op", b, second)
		}
		if m.CurrentFrame() != frame {
			t.Errorf("%v: second stop moved frame %d -> %d", b, frame, m.CurrentFrame())
		}
	}
}

func TestStopBeforeRenderDoesNotFinish(t *testing.T) {
	m := New(10, nil)
	m.Play()
	if eff := m.Stop(); eff.Finished {
		t.Fatalf("stop before any frame rendered reported finished: %+v", eff)
	}
}

func TestJumpPausedPlayPause(t *testing.T) {
	m := New(100, nil)
	m.UpdatePlayRange(FrameRange(10, 50))
	m.Play()
	m.Advance(0)
	m.Pause()

	m.JumpTo(80)
	m.Play()
	m.Pause()
	if m.CurrentFrame() != 50 {
		t.Errorf("frame = %d, want clamp(80, [10,50]) = 50", m.CurrentFrame())
	}

	m.JumpTo(25)
	m.Play()
	m.Pause()
	if m.CurrentFrame() != 25 {
		t.Errorf("frame = %d, want 25", m.CurrentFrame())
	}
}

func TestJumpWhilePlayingIsQueued(t *testing.T) {
	m := New(100, nil)
	m.Play()
	m.Advance(0)
	m.Advance(1)

	if eff := m.JumpTo(40); eff.Render {
		t.Errorf("jump while playing should not render immediately: %+v", eff)
	}
	if m.CurrentFrame() != 1 {
		t.Fatalf("frame changed before next advance: %d", m.CurrentFrame())
	}
	if f, ok := m.PendingSeek(); !ok || f != 40 {
		t.Fatalf("PendingSeek = %d, %v", f, ok)
	}
	m.Advance(1)
	if m.CurrentFrame() != 41 {
		t.Errorf("frame = %d, want 41", m.CurrentFrame())
	}

	m.JumpTo(10)
	m.DiscardPendingSeek()
	m.Advance(1)
	if m.CurrentFrame() != 42 {
		t.Errorf("discarded seek applied: frame = %d, want 42", m.CurrentFrame())
	}
}

func TestJumpWhileStoppedThenPlay(t *testing.T) {
	m := New(100, nil)
	m.JumpTo(30)
	m.Play()
	if m.CurrentFrame() != 30 {
		t.Errorf("play after stopped jump started at %d, want 30", m.CurrentFrame())
	}
	m.Stop()

	m.Play()
	if m.CurrentFrame() != 0 {
		t.Errorf("plain play started at %d, want range start 0", m.CurrentFrame())
	}
}

func TestPauseResumeKeepsLoops(t *testing.T) {
	m := New(10, nil)
	m.SetLoopCount(2)
	m.Play()
	m.Advance(0)
	m.MarkRendered()
	m.Advance(12)
	before := m.Snapshot()
	m.Pause()
	m.Play()
	after := m.Snapshot()
	if before.RemainingLoops != after.RemainingLoops || before.CurrentFrame != after.CurrentFrame {
		t.Errorf("resume changed state: before %+v after %+v", before, after)
	}
}

func TestEmptyAnimationIsInert(t *testing.T) {
	m := New(0, nil)
	for _, eff := range []Effect{m.Play(), m.JumpTo(3), m.Pause(), m.Stop(), m.Advance(5)} {
		if eff != (Effect{}) {
			t.Errorf("effect on empty machine = %+v", eff)
		}
	}
	if m.State() != Stopped || m.CurrentFrame() != 0 {
		t.Errorf("state %v frame %d", m.State(), m.CurrentFrame())
	}
	if err := m.UpdatePlayRange(FrameRange(0, 1)); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("UpdatePlayRange on empty = %v", err)
	}
}

func TestLoopCountZeroPlaysOnce(t *testing.T) {
	m := New(4, nil)
	m.SetLoopCount(0)
	m.Play()
	finished := run(m, 100)
	if len(finished) != 1 {
		t.Fatalf("finished %d times, want 1", len(finished))
	}
}

func TestParseEnums(t *testing.T) {
	if b, err := ParseStopBehavior("LastFrame"); err != nil || b != LastFrame {
		t.Errorf("ParseStopBehavior = %v, %v", b, err)
	}
	if _, err := ParseStopBehavior("sideways"); err == nil {
		t.Error("expected error")
	}
	if m, err := ParseLoopingMode("AUTOREVERSE"); err != nil || m != AutoReverse {
		t.Errorf("ParseLoopingMode = %v, %v", m, err)
	}
}
