package document

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/inamate/vecanim/internal/typeid"
)

var samples = map[string]func() *InDocument{
	"shapes": NewSampleDocument,
	"pulse":  NewPulseDocument,
}

// Sample builds the built-in document registered under name.
func Sample(name string) (*InDocument, bool) {
	build, ok := samples[name]
	if !ok {
		return nil, false
	}
	return build(), true
}

// SampleNames lists the built-in documents in name order.
func SampleNames() []string {
	names := make([]string, 0, len(samples))
	for name := range samples {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewSampleDocument is a 48 frame scene with three static shapes and a
// spinning symbol. Markers split it into "intro" and "outro".
func NewSampleDocument() *InDocument {
	sceneID := typeid.NewSceneID()
	rootID := typeid.NewObjectID()
	rectID := typeid.NewObjectID()
	ellipseID := typeid.NewObjectID()
	triangleID := typeid.NewObjectID()
	timelineID := typeid.NewTimelineID()

	spinnerID := typeid.NewObjectID()
	spinnerRectID := typeid.NewObjectID()
	spinnerEllipseID := typeid.NewObjectID()
	spinnerTimelineID := typeid.NewTimelineID()
	spinnerTrackID := typeid.NewTrackID()
	fillTrackID := typeid.NewTrackID()
	kf0ID, kf1ID := typeid.NewKeyframeID(), typeid.NewKeyframeID()
	kfRed, kfBlue := typeid.NewKeyframeID(), typeid.NewKeyframeID()

	doc := NewEmptyDocument(typeid.NewProjectID(), "Shapes", sceneID, rootID, timelineID, 48)
	doc.Project.FPS = 24
	scene := doc.Scenes[sceneID]
	scene.Width, scene.Height, scene.Background = 640, 360, "#1a1a2e"
	doc.Scenes[sceneID] = scene

	root := doc.Objects[rootID]
	root.Children = []string{rectID, ellipseID, triangleID, spinnerID}
	doc.Objects[rootID] = root

	doc.Objects[rectID] = shape(rectID, rootID, ObjectTypeShapeRect, 100, 100,
		Style{Fill: "#e94560", Stroke: "#000000", StrokeWidth: 2, Opacity: 1},
		`{"width": 100, "height": 75}`)
	doc.Objects[ellipseID] = shape(ellipseID, rootID, ObjectTypeShapeEllipse, 320, 180,
		Style{Fill: "#0f3460", Stroke: "#16213e", StrokeWidth: 2, Opacity: 1},
		`{"rx": 60, "ry": 40}`)
	doc.Objects[triangleID] = shape(triangleID, rootID, ObjectTypeVectorPath, 450, 100,
		Style{Fill: "#53d769", Stroke: "#2d6a4f", StrokeWidth: 2, Opacity: 1},
		`{"commands": [["M", 0, 75], ["L", 50, 0], ["L", 100, 75], ["Z"]]}`)

	spinner := shape(spinnerID, rootID, ObjectTypeSymbol, 250, 225, Style{Opacity: 1},
		fmt.Sprintf(`{"timelineId": %q}`, spinnerTimelineID))
	spinner.Children = []string{spinnerRectID, spinnerEllipseID}
	doc.Objects[spinnerID] = spinner
	doc.Objects[spinnerRectID] = shape(spinnerRectID, spinnerID, ObjectTypeShapeRect, -15, -25,
		Style{Fill: "#f5a623", Stroke: "#c78400", StrokeWidth: 2, Opacity: 1},
		`{"width": 30, "height": 50}`)
	doc.Objects[spinnerEllipseID] = shape(spinnerEllipseID, spinnerID, ObjectTypeShapeEllipse, 0, -35,
		Style{Fill: "#bd10e0", Stroke: "#8b0ba8", StrokeWidth: 2, Opacity: 1},
		`{"rx": 10, "ry": 10}`)

	tl := doc.Timelines[timelineID]
	tl.Tracks = []string{fillTrackID}
	tl.Markers = []Marker{
		{Name: "intro", Frame: 0, Duration: 23},
		{Name: "outro", Frame: 24, Duration: 23},
	}
	doc.Timelines[timelineID] = tl
	doc.Timelines[spinnerTimelineID] = Timeline{
		ID:     spinnerTimelineID,
		Length: 24,
		Tracks: []string{spinnerTrackID},
	}

	doc.Tracks[spinnerTrackID] = Track{
		ID: spinnerTrackID, ObjectID: spinnerID, Property: "transform.r",
		Keys: []string{kf0ID, kf1ID},
	}
	doc.Tracks[fillTrackID] = Track{
		ID: fillTrackID, ObjectID: rectID, Property: "style.fill",
		Keys: []string{kfRed, kfBlue},
	}
	doc.Keyframes[kf0ID] = Keyframe{ID: kf0ID, Frame: 0, Value: json.RawMessage(`0`), Easing: EasingLinear}
	doc.Keyframes[kf1ID] = Keyframe{ID: kf1ID, Frame: 23, Value: json.RawMessage(`360`), Easing: EasingLinear}
	doc.Keyframes[kfRed] = Keyframe{ID: kfRed, Frame: 0, Value: json.RawMessage(`"#e94560"`)}
	doc.Keyframes[kfBlue] = Keyframe{ID: kfBlue, Frame: 24, Value: json.RawMessage(`"#4a90e2"`)}
	return doc
}

// NewPulseDocument is a 100 frame circle that grows, fades and shrinks back,
// with one marker per phase.
func NewPulseDocument() *InDocument {
	sceneID := typeid.NewSceneID()
	rootID := typeid.NewObjectID()
	circleID := typeid.NewObjectID()
	timelineID := typeid.NewTimelineID()
	scaleX, scaleY, fade := typeid.NewTrackID(), typeid.NewTrackID(), typeid.NewTrackID()

	doc := NewEmptyDocument(typeid.NewProjectID(), "Pulse", sceneID, rootID, timelineID, 100)
	scene := doc.Scenes[sceneID]
	scene.Width, scene.Height, scene.Background = 200, 200, "#ffffff"
	doc.Scenes[sceneID] = scene

	root := doc.Objects[rootID]
	root.Children = []string{circleID}
	doc.Objects[rootID] = root
	doc.Objects[circleID] = shape(circleID, rootID, ObjectTypeShapeEllipse, 100, 100,
		Style{Fill: "#ff3b30", Opacity: 1}, `{"rx": 40, "ry": 40}`)

	tl := doc.Timelines[timelineID]
	tl.Tracks = []string{scaleX, scaleY, fade}
	tl.Markers = []Marker{
		{Name: "grow", Frame: 0, Duration: 49},
		{Name: "shrink", Frame: 50, Duration: 49},
	}
	doc.Timelines[timelineID] = tl

	addTrack := func(trackID, property string, easing EasingType, values map[int]string) {
		frames := make([]int, 0, len(values))
		for f := range values {
			frames = append(frames, f)
		}
		sort.Ints(frames)
		keys := make([]string, 0, len(frames))
		for _, f := range frames {
			id := typeid.NewKeyframeID()
			doc.Keyframes[id] = Keyframe{ID: id, Frame: f, Value: json.RawMessage(values[f]), Easing: easing}
			keys = append(keys, id)
		}
		doc.Tracks[trackID] = Track{ID: trackID, ObjectID: circleID, Property: property, Keys: keys}
	}
	addTrack(scaleX, "transform.sx", EasingEaseInOut, map[int]string{0: "0.5", 50: "2", 99: "0.5"})
	addTrack(scaleY, "transform.sy", EasingEaseInOut, map[int]string{0: "0.5", 50: "2", 99: "0.5"})
	addTrack(fade, "style.opacity", EasingLinear, map[int]string{0: "1", 50: "0.4", 99: "1"})
	return doc
}

func shape(id, parent string, t ObjectType, x, y float64, style Style, data string) ObjectNode {
	p := parent
	return ObjectNode{
		ID:        id,
		Type:      t,
		Parent:    &p,
		Children:  []string{},
		Transform: Transform{X: x, Y: y, SX: 1, SY: 1},
		Style:     style,
		Visible:   true,
		Data:      json.RawMessage(data),
	}
}
