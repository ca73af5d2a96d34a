package engine

import (
	"encoding/json"
	"errors"
	"image"
	"math"
	"testing"

	"github.com/inamate/vecanim/internal/document"
)

// testDoc is a 10 frame 20x20 document with one red square whose x moves
// from 0 to 10 over frames 0..9.
func testDoc(t *testing.T) *document.InDocument {
	t.Helper()
	doc := document.NewEmptyDocument("p", "test", "s", "root", "tl", 10)
	scene := doc.Scenes["s"]
	scene.Width, scene.Height = 20, 20
	doc.Scenes["s"] = scene

	root := doc.Objects["root"]
	root.Children = []string{"sq"}
	doc.Objects["root"] = root
	parent := "root"
	doc.Objects["sq"] = document.ObjectNode{
		ID:        "sq",
		Type:      document.ObjectTypeShapeRect,
		Parent:    &parent,
		Transform: document.Transform{SX: 1, SY: 1},
		Style:     document.Style{Fill: "#ff0000", Opacity: 1},
		Visible:   true,
		Data:      json.RawMessage(`{"width": 10, "height": 10}`),
	}

	tl := doc.Timelines["tl"]
	tl.Tracks = []string{"tx"}
	tl.Markers = []document.Marker{{Name: "mid", Frame: 3, Duration: 4}, {Name: "tail", Frame: 8, Duration: 50}}
	doc.Timelines["tl"] = tl
	doc.Tracks["tx"] = document.Track{ID: "tx", ObjectID: "sq", Property: "transform.x", Keys: []string{"k0", "k1"}}
	doc.Keyframes["k0"] = document.Keyframe{ID: "k0", Frame: 0, Value: json.RawMessage(`0`)}
	doc.Keyframes["k1"] = document.Keyframe{ID: "k1", Frame: 9, Value: json.RawMessage(`10`)}
	return doc
}

func TestLoadMetadata(t *testing.T) {
	data, err := json.Marshal(testDoc(t))
	if err != nil {
		t.Fatal(err)
	}
	a, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.TotalFrames() != 10 {
		t.Errorf("TotalFrames = %d, want 10", a.TotalFrames())
	}
	if a.FrameRate() != 60 {
		t.Errorf("FrameRate = %v, want 60", a.FrameRate())
	}
	if w, h := a.NaturalSize(); w != 20 || h != 20 {
		t.Errorf("NaturalSize = %dx%d", w, h)
	}
	markers := a.Markers()
	if got := markers["mid"]; got != [2]int{3, 7} {
		t.Errorf("marker mid = %v, want [3 7]", got)
	}
	if got := markers["tail"]; got != [2]int{8, 9} {
		t.Errorf("marker tail = %v, want clamped [8 9]", got)
	}
	if got := a.ContentInfo()["sq"]; got != [2]int{0, 9} {
		t.Errorf("content sq = %v, want [0 9]", got)
	}
}

func TestLoadMalformed(t *testing.T) {
	for _, data := range []string{"", "{}", `{"project": {"rootTimeline": "x"}}`} {
		if _, err := Load([]byte(data)); !errors.Is(err, ErrMalformed) {
			t.Errorf("Load(%q) = %v, want ErrMalformed", data, err)
		}
	}
}

func TestEvaluateTimelineInterpolates(t *testing.T) {
	doc := testDoc(t)
	tests := []struct {
		frame int
		want  float64
	}{
		{-5, 0},
		{0, 0},
		{3, 10.0 / 3},
		{9, 10},
		{20, 10},
	}
	for _, tt := range tests {
		got := EvaluateTimeline(doc, "tl", tt.frame).Numeric["sq"]["transform.x"]
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("frame %d: x = %v, want %v", tt.frame, got, tt.want)
		}
	}
}

func TestEasingEndpoints(t *testing.T) {
	easings := []document.EasingType{
		document.EasingLinear, document.EasingEaseIn, document.EasingEaseOut,
		document.EasingEaseInOut, document.EasingCubicIn, document.EasingCubicOut,
		document.EasingCubicInOut, document.EasingBackIn, document.EasingBackOut,
		document.EasingBackInOut, document.EasingElasticOut, document.EasingBounceOut,
	}
	for _, e := range easings {
		if got := applyEasing(0, e); math.Abs(got) > 1e-9 {
			t.Errorf("%s(0) = %v", e, got)
		}
		if got := applyEasing(1, e); math.Abs(got-1) > 1e-9 {
			t.Errorf("%s(1) = %v", e, got)
		}
	}
}

func TestStringTrackHolds(t *testing.T) {
	doc, _ := document.Sample("shapes")
	var rectID string
	for _, tr := range doc.Tracks {
		if tr.Property == "style.fill" {
			rectID = tr.ObjectID
		}
	}
	at := func(frame int) string {
		return EvaluateTimeline(doc, doc.Project.RootTimeline, frame).Strings[rectID]["style.fill"]
	}
	if got := at(10); got != "#e94560" {
		t.Errorf("frame 10 fill = %q", got)
	}
	if got := at(30); got != "#4a90e2" {
		t.Errorf("frame 30 fill = %q", got)
	}
}

func TestDynamicOverridesWin(t *testing.T) {
	a, err := New(testDoc(t))
	if err != nil {
		t.Fatal(err)
	}
	dyn := NewOverrides()
	dyn.SetNumber(Wildcard, "transform.x", 1)
	dyn.SetNumber("sq", "transform.x", 5)
	dyn.SetString("sq", "style.fill", "#00ff00")

	cmds := a.DrawCommands(0, dyn)
	if len(cmds) != 1 {
		t.Fatalf("got %d draw commands, want 1", len(cmds))
	}
	if cmds[0].Transform[4] != 5 {
		t.Errorf("translate x = %v, want 5", cmds[0].Transform[4])
	}
	if cmds[0].Fill != "#00ff00" {
		t.Errorf("fill = %q, want #00ff00", cmds[0].Fill)
	}
}

func TestWildcardTransformAppliesToLeavesOnly(t *testing.T) {
	doc := testDoc(t)
	// Put the square under a group so a wildcard would compound through it.
	parent := "root"
	doc.Objects["grp"] = document.ObjectNode{
		ID:        "grp",
		Type:      document.ObjectTypeGroup,
		Parent:    &parent,
		Transform: document.Transform{SX: 1, SY: 1},
		Style:     document.Style{Opacity: 1},
		Visible:   true,
		Children:  []string{"sq"},
	}
	root := doc.Objects["root"]
	root.Children = []string{"grp"}
	doc.Objects["root"] = root
	sq := doc.Objects["sq"]
	grp := "grp"
	sq.Parent = &grp
	doc.Objects["sq"] = sq

	a, err := New(doc)
	if err != nil {
		t.Fatal(err)
	}
	dyn := NewOverrides()
	dyn.SetNumber(Wildcard, "transform.x", 5)
	dyn.SetNumber(Wildcard, "transform.sx", 2)
	dyn.SetString(Wildcard, "style.fill", "#0000ff")

	cmds := a.DrawCommands(0, dyn)
	if len(cmds) != 1 {
		t.Fatalf("got %d draw commands, want 1", len(cmds))
	}
	if cmds[0].Transform[4] != 5 {
		t.Errorf("translate x = %v, want 5", cmds[0].Transform[4])
	}
	if cmds[0].Transform[0] != 2 {
		t.Errorf("scale x = %v, want 2", cmds[0].Transform[0])
	}
	if cmds[0].Fill != "#0000ff" {
		t.Errorf("fill = %q, want #0000ff", cmds[0].Fill)
	}
}

func TestRasterizePaintsShape(t *testing.T) {
	a, err := New(testDoc(t))
	if err != nil {
		t.Fatal(err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, 40, 40))
	if err := a.Rasterize(0, dst, NewOverrides()); err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	// Square covers scene [0,10) which is [0,20) at 2x.
	in := dst.RGBAAt(10, 10)
	if in.R < 200 || in.A < 200 {
		t.Errorf("pixel inside square = %v, want opaque red", in)
	}
	out := dst.RGBAAt(35, 35)
	if out.A != 0 {
		t.Errorf("pixel outside square = %v, want transparent", out)
	}
}

func TestRasterizeNoFrames(t *testing.T) {
	doc := document.NewEmptyDocument("p", "empty", "s", "root", "tl", 0)
	a, err := New(doc)
	if err != nil {
		t.Fatal(err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if err := a.Rasterize(0, dst, NewOverrides()); !errors.Is(err, ErrNoFrames) {
		t.Fatalf("Rasterize = %v, want ErrNoFrames", err)
	}
}

func TestFromTransformAnchorPivot(t *testing.T) {
	m := FromTransform(10, 20, 1, 1, 90, 5, 5)
	// The anchor itself maps to position + anchor regardless of rotation.
	x, y := m.TransformPoint(5, 5)
	if math.Abs(x-15) > 1e-9 || math.Abs(y-25) > 1e-9 {
		t.Errorf("anchor maps to (%v,%v), want (15,25)", x, y)
	}
}
