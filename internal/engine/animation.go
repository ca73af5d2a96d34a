package engine

import (
	"errors"
	"fmt"
	"image"
	"maps"

	"github.com/inamate/vecanim/internal/document"
)

var (
	// ErrMalformed is wrapped by every load failure.
	ErrMalformed = errors.New("malformed animation document")
	// ErrNoFrames is returned when rasterizing an animation with zero frames.
	ErrNoFrames = errors.New("animation has no frames")
)

const defaultFrameRate = 60

// Animation is an immutable, loaded animation document. It is safe for
// concurrent use: every method only reads the document.
type Animation struct {
	doc        *document.InDocument
	sceneID    string
	background string
	width      int
	height     int
	total      int
	fps        float64
	markers    map[string][2]int
	content    map[string][2]int
}

// Load parses and validates a JSON animation document.
func Load(data []byte) (*Animation, error) {
	doc, err := document.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return New(doc)
}

// New wraps an already decoded document. The document must not be mutated
// afterwards.
func New(doc *document.InDocument) (*Animation, error) {
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	tl, _ := doc.RootTimeline()
	scene := doc.Scenes[doc.Project.Scenes[0]]

	a := &Animation{
		doc:        doc,
		sceneID:    scene.ID,
		background: scene.Background,
		width:      scene.Width,
		height:     scene.Height,
		total:      tl.Length,
		fps:        float64(doc.Project.FPS),
		markers:    make(map[string][2]int, len(tl.Markers)),
		content:    make(map[string][2]int),
	}
	if a.fps <= 0 {
		a.fps = defaultFrameRate
	}
	if a.width <= 0 || a.height <= 0 {
		return nil, fmt.Errorf("%w: scene size %dx%d", ErrMalformed, a.width, a.height)
	}

	last := max(a.total-1, 0)
	for _, m := range tl.Markers {
		start := min(m.Frame, last)
		end := min(m.Frame+m.Duration, last)
		a.markers[m.Name] = [2]int{start, end}
	}

	KeyframeSpan(doc, doc.Project.RootTimeline, a.content)
	for _, obj := range doc.Objects {
		if obj.Type == document.ObjectTypeSymbol {
			if id := symbolTimelineID(obj.Data); id != "" {
				KeyframeSpan(doc, id, a.content)
			}
		}
	}
	return a, nil
}

func (a *Animation) TotalFrames() int { return a.total }

func (a *Animation) FrameRate() float64 { return a.fps }

// NaturalSize is the size of the first scene in document units.
func (a *Animation) NaturalSize() (int, int) { return a.width, a.height }

// Markers returns name -> inclusive [start, end], clamped to the frame count.
func (a *Animation) Markers() map[string][2]int {
	return maps.Clone(a.markers)
}

// ContentInfo returns, per animated object, the first and last keyframe.
func (a *Animation) ContentInfo() map[string][2]int {
	return maps.Clone(a.content)
}

// Document returns the underlying document. Callers must treat it as read-only.
func (a *Animation) Document() *document.InDocument { return a.doc }

// DrawCommands evaluates frame with the dynamic overrides applied.
func (a *Animation) DrawCommands(frame int, dyn Overrides) []DrawCommand {
	frame = a.clampFrame(frame)
	sg := BuildSceneGraph(a.doc, a.sceneID, frame, dyn)
	return CompileDrawCommands(sg)
}

// Rasterize renders frame into dst, scaling the scene to dst's size.
func (a *Animation) Rasterize(frame int, dst *image.RGBA, dyn Overrides) error {
	if a.total == 0 {
		return ErrNoFrames
	}
	b := dst.Bounds()
	if b.Empty() {
		return fmt.Errorf("rasterize frame %d: empty target", frame)
	}
	cmds := a.DrawCommands(frame, dyn)
	base := Scale(float64(b.Dx())/float64(a.width), float64(b.Dy())/float64(a.height))

	dc, err := paint(cmds, b.Dx(), b.Dy(), base, a.background)
	if err != nil {
		return fmt.Errorf("rasterize frame %d: %w", frame, err)
	}
	defer dc.Close()
	copyPixels(dc, dst)
	return nil
}

func (a *Animation) clampFrame(frame int) int {
	return max(0, min(frame, a.total-1))
}
