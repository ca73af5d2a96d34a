package rasterize

import (
	"errors"
	"image/color"
	"testing"
)

func TestBindingsEvaluate(t *testing.T) {
	b := NewBindings()
	b.Set(Binding{ID: 1, KeyPath: "rect", Kind: FillColor, Callback: func(int) (any, error) {
		return color.NRGBA{R: 255, A: 255}, nil
	}})
	b.Set(Binding{ID: 2, KeyPath: "rect", Kind: Position, Callback: func(frame int) (any, error) {
		return Vec2{X: float64(frame), Y: 2}, nil
	}})
	b.Set(Binding{ID: 3, Kind: Opacity, Callback: func(int) (any, error) { return 0.5, nil }})

	out, errs := b.Evaluate(4)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if got := out.Strings["rect"]["style.fill"]; got != "#ff0000ff" {
		t.Errorf("fill = %q", got)
	}
	if out.Numeric["rect"]["transform.x"] != 4 || out.Numeric["rect"]["transform.y"] != 2 {
		t.Errorf("position = %v", out.Numeric["rect"])
	}
	if out.Numeric["*"]["style.opacity"] != 0.5 {
		t.Errorf("wildcard opacity = %v", out.Numeric["*"])
	}
}

func TestBindingsLaterWins(t *testing.T) {
	b := NewBindings()
	b.Set(Binding{ID: 1, KeyPath: "a", Kind: Rotation, Callback: func(int) (any, error) { return 10, nil }})
	b.Set(Binding{ID: 2, KeyPath: "a", Kind: Rotation, Callback: func(int) (any, error) { return 20, nil }})
	// Replacing ID 1 keeps its position in the order.
	b.Set(Binding{ID: 1, KeyPath: "a", Kind: Rotation, Callback: func(int) (any, error) { return 30, nil }})

	out, _ := b.Evaluate(0)
	if got := out.Numeric["a"]["transform.r"]; got != 20 {
		t.Errorf("rotation = %v, want 20", got)
	}
	if b.Len() != 2 {
		t.Errorf("Len() = %d", b.Len())
	}
	if !b.Remove(2) || b.Remove(2) {
		t.Error("Remove reported wrong result")
	}
	out, _ = b.Evaluate(0)
	if got := out.Numeric["a"]["transform.r"]; got != 30 {
		t.Errorf("rotation after remove = %v, want 30", got)
	}
}

func TestBindingsFailuresAreSkipped(t *testing.T) {
	boom := errors.New("boom")
	b := NewBindings()
	b.Set(Binding{ID: 1, KeyPath: "a", Kind: StrokeWidth, Callback: func(int) (any, error) { panic("bad") }})
	b.Set(Binding{ID: 2, KeyPath: "a", Kind: StrokeWidth, Callback: func(int) (any, error) { return nil, boom }})
	b.Set(Binding{ID: 3, KeyPath: "a", Kind: Scale, Callback: func(int) (any, error) { return "wide", nil }})
	b.Set(Binding{ID: 4, KeyPath: "a", Kind: Anchor})
	b.Set(Binding{ID: 5, KeyPath: "a", Kind: Scale, Callback: func(int) (any, error) { return []float64{2, 3}, nil }})

	out, errs := b.Evaluate(9)
	if len(errs) != 4 {
		t.Fatalf("got %d errors, want 4: %v", len(errs), errs)
	}
	for _, err := range errs {
		var cerr *CallbackError
		if !errors.As(err, &cerr) || cerr.Frame != 9 || cerr.KeyPath != "a" {
			t.Errorf("error %v is not a CallbackError for frame 9", err)
		}
	}
	if !errors.Is(errs[1], boom) {
		t.Errorf("callback error not wrapped: %v", errs[1])
	}
	if _, ok := out.Numeric["a"]["style.strokeWidth"]; ok {
		t.Error("failed binding contributed a value")
	}
	if out.Numeric["a"]["transform.sx"] != 2 || out.Numeric["a"]["transform.sy"] != 3 {
		t.Errorf("scale = %v", out.Numeric["a"])
	}
}

func TestParsePropertyKind(t *testing.T) {
	k, err := ParsePropertyKind("FillColor")
	if err != nil || k != FillColor {
		t.Errorf("got %v, %v", k, err)
	}
	if _, err := ParsePropertyKind("gradient"); err == nil {
		t.Error("expected error for unknown kind")
	}
	if Anchor.String() != "anchor" {
		t.Errorf("Anchor.String() = %q", Anchor.String())
	}
}
