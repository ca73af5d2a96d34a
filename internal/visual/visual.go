package visual

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/inamate/vecanim/internal/engine"
	"github.com/inamate/vecanim/internal/framecache"
	"github.com/inamate/vecanim/internal/playback"
	"github.com/inamate/vecanim/internal/rasterize"
	"github.com/inamate/vecanim/internal/texture"
)

var (
	ErrDestroyed     = errors.New("visual destroyed")
	ErrUnknownAction = errors.New("unknown action")
)

type Action int

const (
	ActionPlay Action = iota
	ActionPause
	ActionStop
	ActionJumpTo
	ActionFlush
	ActionUpdateProperty
	ActionSetDynamicProperty
)

var actionNames = []string{"play", "pause", "stop", "jumpTo", "flush", "updateProperty", "setDynamicProperty"}

func (a Action) String() string {
	if a >= 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

func ParseAction(s string) (Action, error) {
	for i, name := range actionNames {
		if strings.EqualFold(name, s) {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

type status int

const (
	statusLoading status = iota
	statusReady
	statusFailed
	statusDestroyed
)

func (s status) String() string {
	return [...]string{"loading", "ready", "failed", "destroyed"}[s]
}

type handlers struct {
	resourceReady     func(v *Visual)
	resourceFailed    func(v *Visual, err error)
	animationFinished func(v *Visual, loopComplete bool)
	renderRequest     func(v *Visual)
	frameReady        func(v *Visual, frame int)
}

// Visual is one animated vector image. Its methods are safe for concurrent
// use and never wait for rasterization; handlers run inside
// Manager.ProcessEvents.
type Visual struct {
	id     string
	m      *Manager
	opts   Options
	logger *slog.Logger

	mu             sync.Mutex
	status         status
	anim           *engine.Animation
	loadErr        error
	props          Properties
	task           *rasterize.Task
	handoff        *texture.Handoff
	deferred       []func()
	attached       bool
	pausedByDetach bool
	handlers       handlers
}

func newVisual(m *Manager, id string, opts Options) *Visual {
	return &Visual{
		id:       id,
		m:        m,
		opts:     opts,
		logger:   m.logger.With("visual", id),
		props:    opts.Properties,
		attached: true,
	}
}

func (v *Visual) ID() string  { return v.id }
func (v *Visual) URL() string { return v.opts.URL }

// LoadErr returns the load failure of a broken visual.
func (v *Visual) LoadErr() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loadErr
}

func (v *Visual) finishLoad(anim *engine.Animation, err error) {
	v.mu.Lock()
	if v.status == statusDestroyed {
		v.mu.Unlock()
		if err == nil {
			v.m.registry.Release(v.opts.URL)
		}
		return
	}
	if err == nil {
		err = v.activateLocked(anim)
		if err != nil {
			v.m.registry.Release(v.opts.URL)
		}
	}
	if err != nil {
		v.failLocked(err)
		v.mu.Unlock()
		v.logger.Warn("animation load failed", "url", v.opts.URL, "error", err)
		v.m.post(rasterize.Signal{Owner: v.id, Kind: rasterize.ResourceFailed, Err: err})
		return
	}
	v.mu.Unlock()
	v.logger.Debug("animation ready", "url", v.opts.URL, "frames", anim.TotalFrames())
	v.m.post(rasterize.Signal{Owner: v.id, Kind: rasterize.ResourceReady})
}

func (v *Visual) textureMode() texture.Mode {
	switch {
	case v.opts.NativeTexture:
		return texture.ModeNative
	case v.opts.FastTrackUploading:
		return texture.ModeFastTrack
	}
	return texture.ModeSync
}

func (v *Visual) activateLocked(anim *engine.Animation) error {
	w, h := v.props.targetSize(naturalSize(anim))
	policy, _ := texture.ParsePolicy(v.opts.ReleasePolicy)
	handoff, err := texture.NewHandoff(texture.Config{
		Mode:   v.textureMode(),
		Policy: policy,
		Device: v.m.device,
		Pool:   v.m.pool,
		Queue:  v.m.queue,
		URL:    v.opts.URL,
		Label:  v.id,
		Width:  w,
		Height: h,
		Logger: v.logger,
	})
	if err != nil {
		return err
	}

	markers := make(map[string]playback.Range)
	for name, r := range anim.Markers() {
		markers[name] = playback.Range{Start: r[0], End: r[1]}
	}
	var cache *framecache.Cache
	if v.m.cacheSize > 0 {
		cache = framecache.New(v.m.cacheSize)
	}
	task := rasterize.NewTask(rasterize.TaskConfig{
		ID:      v.id,
		Source:  anim,
		Markers: markers,
		Sink:    handoff,
		Bridge:  v.m.bridge,
		Runner:  v.m.runner,
		Cache:   cache,
		Width:   w,
		Height:  h,
		Logger:  v.m.logger,
	})

	v.anim, v.task, v.handoff = anim, task, handoff
	v.status = statusReady
	v.applyLocked(v.props)
	if !v.attached {
		handoff.Detach()
	}
	for _, fn := range v.deferred {
		fn()
	}
	v.deferred = nil
	task.RequestRender()
	return nil
}

func naturalSize(anim *engine.Animation) [2]int {
	w, h := anim.NaturalSize()
	return [2]int{w, h}
}

func (v *Visual) failLocked(err error) {
	v.status = statusFailed
	v.loadErr = err
	v.deferred = nil

	w, h := v.props.targetSize([2]int{brokenSize, brokenSize})
	handoff, herr := texture.NewHandoff(texture.Config{
		Mode:   texture.ModeSync,
		Policy: texture.OnDestroy,
		Device: v.m.device,
		Label:  v.id,
		Width:  w,
		Height: h,
		Logger: v.logger,
	})
	if herr != nil {
		v.logger.Error("placeholder texture failed", "error", herr)
		return
	}
	if img, err := brokenImage(w, h); err != nil {
		v.logger.Warn("placeholder paint failed", "error", err)
	} else {
		handoff.Show(img)
	}
	v.handoff = handoff
}

// DoAction runs one control action. Actions on a broken visual, or on an
// animation without frames, do nothing. Actions issued while the animation
// is loading run once it is ready.
func (v *Visual) DoAction(action Action, param any) error {
	var run func()
	switch action {
	case ActionPlay:
		run = func() { v.task.Play() }
	case ActionPause:
		run = func() { v.task.Pause() }
	case ActionStop:
		run = func() { v.task.Stop() }
	case ActionFlush:
		run = func() { v.task.Flush() }
	case ActionJumpTo:
		frame, err := toFrame(param)
		if err != nil {
			return err
		}
		run = func() { v.task.JumpTo(frame) }
	case ActionUpdateProperty:
		switch p := param.(type) {
		case map[string]any:
			return v.UpdateProperty(p)
		case Properties:
			return v.update(p)
		}
		return fmt.Errorf("updateProperty wants a property map, got %T", param)
	case ActionSetDynamicProperty:
		b, ok := param.(rasterize.Binding)
		if !ok {
			return fmt.Errorf("setDynamicProperty wants a binding, got %T", param)
		}
		return v.SetDynamicProperty(b)
	default:
		return fmt.Errorf("%w: %v", ErrUnknownAction, action)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	switch v.status {
	case statusDestroyed:
		return ErrDestroyed
	case statusFailed:
		return nil
	case statusLoading:
		v.deferred = append(v.deferred, run)
		return nil
	}
	run()
	return nil
}

func (v *Visual) Play() error            { return v.DoAction(ActionPlay, nil) }
func (v *Visual) Pause() error           { return v.DoAction(ActionPause, nil) }
func (v *Visual) Stop() error            { return v.DoAction(ActionStop, nil) }
func (v *Visual) JumpTo(frame int) error { return v.DoAction(ActionJumpTo, frame) }
func (v *Visual) Flush() error           { return v.DoAction(ActionFlush, nil) }

func toFrame(param any) (int, error) {
	switch n := param.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("jumpTo frame %v is not a whole number", n)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("jumpTo wants a frame number, got %T", param)
}

// UpdateProperty applies a batch of property changes. Playback settings
// are committed together right before the next frame. Malformed values are
// rejected here; a play range naming unknown markers is ignored when the
// batch is committed and the previous range stays in effect.
func (v *Visual) UpdateProperty(m map[string]any) error {
	p, err := ParseProperties(m)
	if err != nil {
		return err
	}
	return v.update(p)
}

func (v *Visual) update(p Properties) error {
	if err := p.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	switch v.status {
	case statusDestroyed:
		return ErrDestroyed
	case statusFailed:
		return nil
	}
	v.props.merge(p)
	if v.status == statusReady {
		v.applyLocked(p)
	}
	return nil
}

// applyLocked pushes the set fields of p into the task.
func (v *Visual) applyLocked(p Properties) {
	v.task.Enqueue(p.changes()...)
	if p.EnableFrameCache != nil {
		v.task.SetCacheEnabled(*p.EnableFrameCache)
	}
	if p.NotifyAfterRasterization != nil {
		v.task.SetNotifyAfterRasterization(*p.NotifyAfterRasterization)
	}
	if p.RenderScale != nil || p.DesiredWidth != nil || p.DesiredHeight != nil {
		w, h := v.props.targetSize(naturalSize(v.anim))
		v.handoff.Resize(w, h)
		v.task.SetSize(w, h)
	}
}

// SetDynamicProperty registers a per-frame property binding.
func (v *Visual) SetDynamicProperty(b rasterize.Binding) error {
	if b.Callback == nil {
		return errors.New("binding has no callback")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	switch v.status {
	case statusDestroyed:
		return ErrDestroyed
	case statusFailed:
		return nil
	case statusLoading:
		v.deferred = append(v.deferred, func() { v.task.SetBinding(b) })
		return nil
	}
	v.task.SetBinding(b)
	return nil
}

// SetSize sets the desired raster size.
func (v *Visual) SetSize(width, height int) error {
	return v.update(Properties{DesiredWidth: &width, DesiredHeight: &height})
}

// Attach marks the visual as on screen again, reacquiring a texture
// released on detach and resuming playback paused by Detach.
func (v *Visual) Attach() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.status == statusDestroyed {
		return ErrDestroyed
	}
	v.attached = true
	if v.handoff != nil {
		if err := v.handoff.Attach(); err != nil {
			return err
		}
	}
	if v.pausedByDetach {
		v.pausedByDetach = false
		v.task.Play()
	}
	if v.task != nil {
		v.task.RequestRender()
	}
	return nil
}

// Detach marks the visual as off screen: playback pauses and the texture
// is released if the release policy says so.
func (v *Visual) Detach() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.status == statusDestroyed || !v.attached {
		return
	}
	v.attached = false
	if v.task != nil && v.task.Snapshot().State == playback.Playing {
		v.task.Pause()
		v.pausedByDetach = true
	}
	if v.handoff != nil {
		v.handoff.Detach()
	}
}

// Destroy stops delivery of pending results, releases the texture per the
// release policy and drops the reference to the animation.
func (v *Visual) Destroy() {
	v.mu.Lock()
	if v.status == statusDestroyed {
		v.mu.Unlock()
		return
	}
	prev := v.status
	v.status = statusDestroyed
	v.deferred = nil
	if v.task != nil {
		v.task.Kill()
	}
	if v.handoff != nil {
		v.handoff.Destroy()
	}
	v.mu.Unlock()

	if prev == statusReady {
		v.m.registry.Release(v.opts.URL)
	}
	v.m.remove(v.id)
	v.logger.Info("visual destroyed")
}

// Texture returns the display texture; nil while loading or released.
func (v *Visual) Texture() texture.Texture {
	v.mu.Lock()
	ho := v.handoff
	v.mu.Unlock()
	if ho == nil {
		return nil
	}
	return ho.Texture()
}

// Image returns a copy of what the texture currently shows.
func (v *Visual) Image() (*image.RGBA, error) {
	tex := v.Texture()
	if tex == nil {
		return nil, errors.New("visual has no texture")
	}
	mt, ok := tex.(*texture.MemoryTexture)
	if !ok {
		return nil, fmt.Errorf("texture %s cannot be read back", tex.ID())
	}
	return mt.Image()
}

// Task returns the rasterize task, nil unless the animation is ready.
func (v *Visual) Task() *rasterize.Task {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.task
}

// Animation returns the loaded animation, nil unless ready.
func (v *Visual) Animation() *engine.Animation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.anim
}

func (v *Visual) OnResourceReady(fn func(v *Visual)) {
	v.mu.Lock()
	v.handlers.resourceReady = fn
	v.mu.Unlock()
}

func (v *Visual) OnResourceFailed(fn func(v *Visual, err error)) {
	v.mu.Lock()
	v.handlers.resourceFailed = fn
	v.mu.Unlock()
}

func (v *Visual) OnAnimationFinished(fn func(v *Visual, loopComplete bool)) {
	v.mu.Lock()
	v.handlers.animationFinished = fn
	v.mu.Unlock()
}

// OnRenderRequest is called when the visual needs one more render even if
// the renderer only renders on demand, such as after Pause.
func (v *Visual) OnRenderRequest(fn func(v *Visual)) {
	v.mu.Lock()
	v.handlers.renderRequest = fn
	v.mu.Unlock()
}

func (v *Visual) OnFrameReady(fn func(v *Visual, frame int)) {
	v.mu.Lock()
	v.handlers.frameReady = fn
	v.mu.Unlock()
}

func (v *Visual) handle(s rasterize.Signal) {
	v.mu.Lock()
	h, ho, st := v.handlers, v.handoff, v.status
	v.mu.Unlock()
	if st == statusDestroyed {
		return
	}
	switch s.Kind {
	case rasterize.FrameReady:
		if ho != nil && ho.NeedsCommit() {
			ho.Commit()
		}
		if h.frameReady != nil {
			h.frameReady(v, s.Frame)
		}
	case rasterize.ResourceReady:
		if h.resourceReady != nil {
			h.resourceReady(v)
		}
	case rasterize.ResourceFailed:
		if h.resourceFailed != nil {
			h.resourceFailed(v, s.Err)
		}
	case rasterize.AnimationFinished:
		if h.animationFinished != nil {
			h.animationFinished(v, s.LoopComplete)
		}
	case rasterize.RenderRequest:
		if h.renderRequest != nil {
			h.renderRequest(v)
		}
	}
}

func (v *Visual) commitPending() {
	v.mu.Lock()
	ho := v.handoff
	v.mu.Unlock()
	if ho != nil && ho.NeedsCommit() && ho.HasPending() {
		ho.Commit()
	}
}
