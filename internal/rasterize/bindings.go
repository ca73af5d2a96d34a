package rasterize

import (
	"errors"
	"fmt"
	"image/color"
	"strings"
	"sync"

	"github.com/inamate/vecanim/internal/engine"
)

// PropertyKind names the animatable property a binding overrides.
type PropertyKind int

const (
	FillColor PropertyKind = iota
	StrokeColor
	StrokeWidth
	Opacity
	Position
	Scale
	Rotation
	Anchor
)

var kindNames = map[PropertyKind]string{
	FillColor:   "fillColor",
	StrokeColor: "strokeColor",
	StrokeWidth: "strokeWidth",
	Opacity:     "opacity",
	Position:    "position",
	Scale:       "scale",
	Rotation:    "rotation",
	Anchor:      "anchor",
}

func (k PropertyKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("PropertyKind(%d)", int(k))
}

func ParsePropertyKind(s string) (PropertyKind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown property kind %q", s)
}

// Binding computes a property value for every rasterized frame. KeyPath is an
// object ID, or "*" for every object. Callback runs on a worker goroutine and
// must only depend on the frame number.
type Binding struct {
	ID       int
	KeyPath  string
	Kind     PropertyKind
	Callback func(frame int) (any, error)
}

// Vec2 is a two-component value for Position, Scale and Anchor bindings.
type Vec2 struct{ X, Y float64 }

// CallbackError reports a binding whose value was skipped for one frame.
type CallbackError struct {
	BindingID int
	KeyPath   string
	Frame     int
	Err       error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("binding %d (%s) at frame %d: %v", e.BindingID, e.KeyPath, e.Frame, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

var errNilCallback = errors.New("nil callback")

// Bindings is the dynamic property table of one task. Registration order is
// kept so later bindings win when two target the same property.
type Bindings struct {
	mu    sync.RWMutex
	order []int
	byID  map[int]Binding
}

func NewBindings() *Bindings {
	return &Bindings{byID: make(map[int]Binding)}
}

// Set registers b, replacing a binding with the same ID in place.
func (b *Bindings) Set(binding Binding) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.byID[binding.ID]; !ok {
		b.order = append(b.order, binding.ID)
	}
	b.byID[binding.ID] = binding
}

func (b *Bindings) Remove(id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.byID[id]; !ok {
		return false
	}
	delete(b.byID, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true
}

func (b *Bindings) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}

// Evaluate calls every binding for frame. A binding whose callback fails,
// panics or returns a value of the wrong type contributes nothing; its
// failure is returned as a *CallbackError.
func (b *Bindings) Evaluate(frame int) (engine.Overrides, []error) {
	b.mu.RLock()
	list := make([]Binding, 0, len(b.order))
	for _, id := range b.order {
		list = append(list, b.byID[id])
	}
	b.mu.RUnlock()

	out := engine.NewOverrides()
	var errs []error
	for _, bd := range list {
		v, err := call(bd, frame)
		if err == nil {
			err = apply(out, bd, v)
		}
		if err != nil {
			errs = append(errs, &CallbackError{BindingID: bd.ID, KeyPath: bd.KeyPath, Frame: frame, Err: err})
		}
	}
	return out, errs
}

func call(bd Binding, frame int) (v any, err error) {
	if bd.Callback == nil {
		return nil, errNilCallback
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return bd.Callback(frame)
}

func apply(out engine.Overrides, bd Binding, v any) error {
	key := bd.KeyPath
	if key == "" {
		key = engine.Wildcard
	}
	switch bd.Kind {
	case FillColor, StrokeColor:
		hex, err := toHex(v)
		if err != nil {
			return err
		}
		prop := "style.fill"
		if bd.Kind == StrokeColor {
			prop = "style.stroke"
		}
		out.SetString(key, prop, hex)
	case StrokeWidth, Opacity, Rotation:
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		prop := map[PropertyKind]string{
			StrokeWidth: "style.strokeWidth",
			Opacity:     "style.opacity",
			Rotation:    "transform.r",
		}[bd.Kind]
		out.SetNumber(key, prop, f)
	case Position, Scale, Anchor:
		vec, err := toVec2(v)
		if err != nil {
			return err
		}
		px, py := "transform.x", "transform.y"
		switch bd.Kind {
		case Scale:
			px, py = "transform.sx", "transform.sy"
		case Anchor:
			px, py = "transform.ax", "transform.ay"
		}
		out.SetNumber(key, px, vec.X)
		out.SetNumber(key, py, vec.Y)
	default:
		return fmt.Errorf("unsupported property kind %v", bd.Kind)
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("want number, got %T", v)
}

func toVec2(v any) (Vec2, error) {
	switch p := v.(type) {
	case Vec2:
		return p, nil
	case [2]float64:
		return Vec2{p[0], p[1]}, nil
	case []float64:
		if len(p) >= 2 {
			return Vec2{p[0], p[1]}, nil
		}
	}
	return Vec2{}, fmt.Errorf("want 2D vector, got %T", v)
}

func toHex(v any) (string, error) {
	switch c := v.(type) {
	case string:
		return c, nil
	case color.Color:
		n := color.NRGBAModel.Convert(c).(color.NRGBA)
		return fmt.Sprintf("#%02x%02x%02x%02x", n.R, n.G, n.B, n.A), nil
	}
	return "", fmt.Errorf("want color, got %T", v)
}
