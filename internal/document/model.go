package document

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalid is wrapped by every structural validation failure.
var ErrInvalid = errors.New("invalid document")

type InDocument struct {
	Project   Project               `json:"project"`
	Scenes    map[string]Scene      `json:"scenes"`
	Objects   map[string]ObjectNode `json:"objects"`
	Timelines map[string]Timeline   `json:"timelines"`
	Tracks    map[string]Track      `json:"tracks"`
	Keyframes map[string]Keyframe   `json:"keyframes"`
	Assets    map[string]Asset      `json:"assets"`
}

type Project struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Version      int      `json:"version"`
	FPS          int      `json:"fps"`
	Scenes       []string `json:"scenes"`
	Assets       []string `json:"assets"`
	RootTimeline string   `json:"rootTimeline"`
}

type Scene struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Background string `json:"background"`
	Root       string `json:"root"`
}

type ObjectType string

const (
	ObjectTypeGroup        ObjectType = "Group"
	ObjectTypeShapeRect    ObjectType = "ShapeRect"
	ObjectTypeShapeEllipse ObjectType = "ShapeEllipse"
	ObjectTypeVectorPath   ObjectType = "VectorPath"
	ObjectTypeRasterImage  ObjectType = "RasterImage"
	ObjectTypeSymbol       ObjectType = "Symbol"
)

type Transform struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	SX float64 `json:"sx"`
	SY float64 `json:"sy"`
	R  float64 `json:"r"`
	AX float64 `json:"ax"`
	AY float64 `json:"ay"`
}

type Style struct {
	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
	Opacity     float64 `json:"opacity"`
}

type ObjectNode struct {
	ID        string          `json:"id"`
	Name      string          `json:"name,omitempty"`
	Type      ObjectType      `json:"type"`
	Parent    *string         `json:"parent"`
	Children  []string        `json:"children"`
	Transform Transform       `json:"transform"`
	Style     Style           `json:"style"`
	Visible   bool            `json:"visible"`
	Data      json.RawMessage `json:"data"`
}

type Timeline struct {
	ID      string   `json:"id"`
	Length  int      `json:"length"`
	Tracks  []string `json:"tracks"`
	Markers []Marker `json:"markers,omitempty"`
}

// Marker is a named frame window. It covers the inclusive range
// [Frame, Frame+Duration].
type Marker struct {
	Name     string `json:"name"`
	Frame    int    `json:"frame"`
	Duration int    `json:"duration"`
}

type Track struct {
	ID       string   `json:"id"`
	ObjectID string   `json:"objectId"`
	Property string   `json:"property"`
	Keys     []string `json:"keys"`
}

type EasingType string

const (
	EasingLinear     EasingType = "linear"
	EasingEaseIn     EasingType = "easeIn"
	EasingEaseOut    EasingType = "easeOut"
	EasingEaseInOut  EasingType = "easeInOut"
	EasingCubicIn    EasingType = "cubicIn"
	EasingCubicOut   EasingType = "cubicOut"
	EasingCubicInOut EasingType = "cubicInOut"
	EasingBackIn     EasingType = "backIn"
	EasingBackOut    EasingType = "backOut"
	EasingBackInOut  EasingType = "backInOut"
	EasingElasticOut EasingType = "elasticOut"
	EasingBounceOut  EasingType = "bounceOut"
)

type Keyframe struct {
	ID     string          `json:"id"`
	Frame  int             `json:"frame"`
	Value  json.RawMessage `json:"value"`
	Easing EasingType      `json:"easing"`
}

type Asset struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Name string          `json:"name"`
	URL  string          `json:"url"`
	Meta json.RawMessage `json:"meta"`
}

// Parse decodes and validates a document.
func Parse(data []byte) (*InDocument, error) {
	var doc InDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the references playback depends on: a root timeline with a
// non-negative length and at least one scene whose root object exists.
func (d *InDocument) Validate() error {
	tl, ok := d.Timelines[d.Project.RootTimeline]
	if !ok {
		return fmt.Errorf("%w: root timeline %q not found", ErrInvalid, d.Project.RootTimeline)
	}
	if tl.Length < 0 {
		return fmt.Errorf("%w: root timeline length %d", ErrInvalid, tl.Length)
	}
	if len(d.Project.Scenes) == 0 {
		return fmt.Errorf("%w: no scenes", ErrInvalid)
	}
	scene, ok := d.Scenes[d.Project.Scenes[0]]
	if !ok {
		return fmt.Errorf("%w: scene %q not found", ErrInvalid, d.Project.Scenes[0])
	}
	if _, ok := d.Objects[scene.Root]; !ok {
		return fmt.Errorf("%w: scene root %q not found", ErrInvalid, scene.Root)
	}
	for _, m := range tl.Markers {
		if m.Name == "" || m.Frame < 0 || m.Duration < 0 {
			return fmt.Errorf("%w: marker %q [%d +%d]", ErrInvalid, m.Name, m.Frame, m.Duration)
		}
	}
	return nil
}

// RootTimeline returns the project's root timeline.
func (d *InDocument) RootTimeline() (Timeline, bool) {
	tl, ok := d.Timelines[d.Project.RootTimeline]
	return tl, ok
}

// NewEmptyDocument creates a document with one scene, an empty root group and
// a root timeline of the given length.
func NewEmptyDocument(projectID, projectName, sceneID, rootID, timelineID string, length int) *InDocument {
	return &InDocument{
		Project: Project{
			ID:           projectID,
			Name:         projectName,
			Version:      1,
			FPS:          60,
			Scenes:       []string{sceneID},
			Assets:       []string{},
			RootTimeline: timelineID,
		},
		Scenes: map[string]Scene{
			sceneID: {
				ID:         sceneID,
				Name:       "Scene 1",
				Width:      320,
				Height:     240,
				Background: "",
				Root:       rootID,
			},
		},
		Objects: map[string]ObjectNode{
			rootID: {
				ID:        rootID,
				Type:      ObjectTypeGroup,
				Children:  []string{},
				Transform: Transform{SX: 1, SY: 1},
				Style:     Style{Opacity: 1},
				Visible:   true,
				Data:      json.RawMessage(`{}`),
			},
		},
		Timelines: map[string]Timeline{
			timelineID: {
				ID:     timelineID,
				Length: length,
				Tracks: []string{},
			},
		},
		Tracks:    map[string]Track{},
		Keyframes: map[string]Keyframe{},
		Assets:    map[string]Asset{},
	}
}
