package engine

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/inamate/vecanim/internal/document"
)

// PropertyOverrides holds numeric property values keyed by property path
// ("transform.x", "transform.r", "style.opacity").
type PropertyOverrides map[string]float64

// StringPropertyOverrides holds string property values such as colors.
type StringPropertyOverrides map[string]string

// Overrides carries per-object property values. It is produced by timeline
// evaluation and by dynamic property bindings. The object key "*" applies
// style values to every object and transform values to drawable leaves.
type Overrides struct {
	Numeric map[string]PropertyOverrides
	Strings map[string]StringPropertyOverrides
}

// Wildcard is the object key that matches every object.
const Wildcard = "*"

func NewOverrides() Overrides {
	return Overrides{
		Numeric: make(map[string]PropertyOverrides),
		Strings: make(map[string]StringPropertyOverrides),
	}
}

func (o Overrides) SetNumber(objectID, property string, v float64) {
	if o.Numeric[objectID] == nil {
		o.Numeric[objectID] = make(PropertyOverrides)
	}
	o.Numeric[objectID][property] = v
}

func (o Overrides) SetString(objectID, property, v string) {
	if o.Strings[objectID] == nil {
		o.Strings[objectID] = make(StringPropertyOverrides)
	}
	o.Strings[objectID][property] = v
}

// Merge copies every value of other into o, replacing existing ones.
func (o Overrides) Merge(other Overrides) {
	for objID, props := range other.Numeric {
		for k, v := range props {
			o.SetNumber(objID, k, v)
		}
	}
	for objID, props := range other.Strings {
		for k, v := range props {
			o.SetString(objID, k, v)
		}
	}
}

// Empty reports whether o carries no values.
func (o Overrides) Empty() bool {
	return len(o.Numeric) == 0 && len(o.Strings) == 0
}

// EvaluateTimeline evaluates every track of a timeline at frame. Numeric
// tracks are interpolated with the keyframe easing, string tracks hold the
// value of the keyframe at or before frame.
func EvaluateTimeline(doc *document.InDocument, timelineID string, frame int) Overrides {
	result := NewOverrides()

	timeline, ok := doc.Timelines[timelineID]
	if !ok {
		return result
	}

	for _, trackID := range timeline.Tracks {
		track, ok := doc.Tracks[trackID]
		if !ok {
			continue
		}
		keys := sortedKeyframes(doc, &track)
		if len(keys) == 0 {
			continue
		}
		if v, ok := interpolateNumber(keys, frame); ok {
			result.SetNumber(track.ObjectID, track.Property, v)
			continue
		}
		if s, ok := holdString(keys, frame); ok {
			result.SetString(track.ObjectID, track.Property, s)
		}
	}

	return result
}

// KeyframeSpan returns the first and last keyframe frame of every object
// animated by the timeline, widening any span already present in spans.
func KeyframeSpan(doc *document.InDocument, timelineID string, spans map[string][2]int) {
	timeline, ok := doc.Timelines[timelineID]
	if !ok {
		return
	}
	for _, trackID := range timeline.Tracks {
		track, ok := doc.Tracks[trackID]
		if !ok {
			continue
		}
		keys := sortedKeyframes(doc, &track)
		if len(keys) == 0 {
			continue
		}
		first, last := keys[0].Frame, keys[len(keys)-1].Frame
		if cur, ok := spans[track.ObjectID]; ok {
			first = min(first, cur[0])
			last = max(last, cur[1])
		}
		spans[track.ObjectID] = [2]int{first, last}
	}
}

func sortedKeyframes(doc *document.InDocument, track *document.Track) []document.Keyframe {
	keys := make([]document.Keyframe, 0, len(track.Keys))
	for _, id := range track.Keys {
		if kf, ok := doc.Keyframes[id]; ok {
			keys = append(keys, kf)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Frame < keys[j].Frame
	})
	return keys
}

// interpolateNumber evaluates sorted numeric keyframes at frame. Values are
// held before the first and after the last keyframe.
func interpolateNumber(keys []document.Keyframe, frame int) (float64, bool) {
	var prev, next *document.Keyframe
	for i := range keys {
		if keys[i].Frame <= frame {
			prev = &keys[i]
		}
		if keys[i].Frame >= frame && next == nil {
			next = &keys[i]
		}
	}

	switch {
	case prev == nil:
		return numberValue(next.Value)
	case next == nil, prev.Frame == next.Frame:
		return numberValue(prev.Value)
	}

	from, ok := numberValue(prev.Value)
	if !ok {
		return 0, false
	}
	to, ok := numberValue(next.Value)
	if !ok {
		return from, true
	}

	t := float64(frame-prev.Frame) / float64(next.Frame-prev.Frame)
	t = applyEasing(t, prev.Easing)
	return from + (to-from)*t, true
}

func holdString(keys []document.Keyframe, frame int) (string, bool) {
	held := keys[0]
	for _, kf := range keys {
		if kf.Frame <= frame {
			held = kf
		}
	}
	var s string
	if err := json.Unmarshal(held.Value, &s); err != nil {
		return "", false
	}
	return s, true
}

func numberValue(raw json.RawMessage) (float64, bool) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

// applyEasing maps the interpolation factor t in [0,1] through an easing curve.
func applyEasing(t float64, easing document.EasingType) float64 {
	switch easing {
	case document.EasingEaseIn:
		return t * t
	case document.EasingEaseOut:
		return t * (2 - t)
	case document.EasingEaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		return -1 + (4-2*t)*t
	case document.EasingCubicIn:
		return t * t * t
	case document.EasingCubicOut:
		u := 1 - t
		return 1 - u*u*u
	case document.EasingCubicInOut:
		if t < 0.5 {
			return 4 * t * t * t
		}
		u := -2*t + 2
		return 1 - u*u*u/2
	case document.EasingBackIn:
		const c1 = 1.70158
		return (c1+1)*t*t*t - c1*t*t
	case document.EasingBackOut:
		const c1 = 1.70158
		u := t - 1
		return 1 + (c1+1)*u*u*u + c1*u*u
	case document.EasingBackInOut:
		const c2 = 1.70158 * 1.525
		if t < 0.5 {
			return (math.Pow(2*t, 2) * ((c2+1)*2*t - c2)) / 2
		}
		return (math.Pow(2*t-2, 2)*((c2+1)*(t*2-2)+c2) + 2) / 2
	case document.EasingElasticOut:
		if t == 0 || t == 1 {
			return t
		}
		return math.Pow(2, -10*t)*math.Sin((t*10-0.75)*(2*math.Pi/3)) + 1
	case document.EasingBounceOut:
		return bounceOut(t)
	default:
		return t
	}
}

func bounceOut(t float64) float64 {
	const n1, d1 = 7.5625, 2.75
	switch {
	case t < 1/d1:
		return n1 * t * t
	case t < 2/d1:
		t -= 1.5 / d1
		return n1*t*t + 0.75
	case t < 2.5/d1:
		t -= 2.25 / d1
		return n1*t*t + 0.9375
	default:
		t -= 2.625 / d1
		return n1*t*t + 0.984375
	}
}

func applyTransform(base document.Transform, props PropertyOverrides) document.Transform {
	for k, v := range props {
		switch k {
		case "transform.x":
			base.X = v
		case "transform.y":
			base.Y = v
		case "transform.sx":
			base.SX = v
		case "transform.sy":
			base.SY = v
		case "transform.r":
			base.R = v
		case "transform.ax":
			base.AX = v
		case "transform.ay":
			base.AY = v
		}
	}
	return base
}

func applyStyle(base document.Style, nums PropertyOverrides, strs StringPropertyOverrides) document.Style {
	if v, ok := nums["style.opacity"]; ok {
		base.Opacity = v
	}
	if v, ok := nums["style.strokeWidth"]; ok {
		base.StrokeWidth = v
	}
	if v, ok := strs["style.fill"]; ok {
		base.Fill = v
	}
	if v, ok := strs["style.stroke"]; ok {
		base.Stroke = v
	}
	return base
}

// symbolTimelineID extracts the nested timeline of a Symbol object.
func symbolTimelineID(data json.RawMessage) string {
	var sym struct {
		TimelineID string `json:"timelineId"`
	}
	if err := json.Unmarshal(data, &sym); err != nil {
		return ""
	}
	return sym.TimelineID
}
