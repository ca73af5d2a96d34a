package engine

import (
	"encoding/json"

	"github.com/inamate/vecanim/internal/document"
)

// BuildSceneGraph evaluates the document at frame and resolves it into a
// scene graph. Values from dyn take precedence over timeline values; a
// per-object dynamic value wins over a wildcard one.
func BuildSceneGraph(doc *document.InDocument, sceneID string, frame int, dyn Overrides) *SceneGraph {
	sg := NewSceneGraph()

	scene, ok := doc.Scenes[sceneID]
	if !ok {
		return sg
	}
	root, ok := doc.Objects[scene.Root]
	if !ok {
		return sg
	}

	b := &builder{
		doc:      doc,
		frame:    frame,
		timeline: EvaluateTimeline(doc, doc.Project.RootTimeline, frame),
		dyn:      dyn,
		sg:       sg,
	}
	sg.Root = b.node(&root, Identity(), 1.0, 0)
	return sg
}

// maxDepth bounds recursion on cyclic parent/child references.
const maxDepth = 64

type builder struct {
	doc      *document.InDocument
	frame    int
	timeline Overrides
	dyn      Overrides
	sg       *SceneGraph
}

func (b *builder) node(obj *document.ObjectNode, parentWorld Matrix2D, parentOpacity float64, depth int) *SceneNode {
	if !obj.Visible || depth > maxDepth {
		return nil
	}
	if _, seen := b.sg.NodesByID[obj.ID]; seen {
		return nil
	}

	// A symbol's nested timeline runs in a loop of its own length and can
	// animate the symbol itself, so it is merged before the symbol resolves.
	if obj.Type == document.ObjectTypeSymbol {
		if tlID := symbolTimelineID(obj.Data); tlID != "" {
			local := b.frame
			if tl, ok := b.doc.Timelines[tlID]; ok && tl.Length > 0 {
				local = b.frame % tl.Length
			}
			b.timeline.Merge(EvaluateTimeline(b.doc, tlID, local))
		}
	}

	transform, style := b.resolve(obj)

	local := FromTransform(transform.X, transform.Y, transform.SX, transform.SY, transform.R, transform.AX, transform.AY)
	world := parentWorld.Multiply(local)
	opacity := parentOpacity * style.Opacity

	n := &SceneNode{
		ID:             obj.ID,
		Type:           nodeType(obj.Type),
		WorldTransform: world,
		Opacity:        opacity,
		Fill:           style.Fill,
		Stroke:         style.Stroke,
		StrokeWidth:    style.StrokeWidth,
	}

	switch obj.Type {
	case document.ObjectTypeShapeRect:
		n.Path = rectPath(obj.Data)
	case document.ObjectTypeShapeEllipse:
		n.Path = ellipsePath(obj.Data)
	case document.ObjectTypeVectorPath:
		n.Path = vectorPath(obj.Data)
	}

	b.sg.NodesByID[obj.ID] = n

	for _, childID := range obj.Children {
		child, ok := b.doc.Objects[childID]
		if !ok {
			continue
		}
		if c := b.node(&child, world, opacity, depth+1); c != nil {
			n.Children = append(n.Children, c)
		}
	}
	return n
}

// resolve layers timeline values, wildcard dynamic values and per-object
// dynamic values onto the document's base transform and style. Wildcard
// transforms apply to drawable leaves only, so nested groups do not compound
// them.
func (b *builder) resolve(obj *document.ObjectNode) (document.Transform, document.Style) {
	transform, style := obj.Transform, obj.Style
	leaf := drawable(obj.Type) && len(obj.Children) == 0
	layers := []struct {
		nums      PropertyOverrides
		strs      StringPropertyOverrides
		transform bool
	}{
		{b.timeline.Numeric[obj.ID], b.timeline.Strings[obj.ID], true},
		{b.dyn.Numeric[Wildcard], b.dyn.Strings[Wildcard], leaf},
		{b.dyn.Numeric[obj.ID], b.dyn.Strings[obj.ID], true},
	}
	for _, l := range layers {
		if l.transform {
			transform = applyTransform(transform, l.nums)
		}
		style = applyStyle(style, l.nums, l.strs)
	}
	return transform, style
}

func drawable(t document.ObjectType) bool {
	switch t {
	case document.ObjectTypeShapeRect, document.ObjectTypeShapeEllipse,
		document.ObjectTypeVectorPath, document.ObjectTypeRasterImage:
		return true
	}
	return false
}

func nodeType(t document.ObjectType) string {
	switch t {
	case document.ObjectTypeShapeRect, document.ObjectTypeShapeEllipse, document.ObjectTypeVectorPath:
		return "shape"
	case document.ObjectTypeSymbol:
		return "symbol"
	case document.ObjectTypeRasterImage:
		return "image"
	default:
		return "group"
	}
}

func rectPath(data json.RawMessage) []PathCommand {
	var r struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return nil
	}
	return []PathCommand{
		{"M", 0.0, 0.0},
		{"L", r.Width, 0.0},
		{"L", r.Width, r.Height},
		{"L", 0.0, r.Height},
		{"Z"},
	}
}

// ellipsePath approximates an ellipse centred on the origin with four cubic
// segments.
func ellipsePath(data json.RawMessage) []PathCommand {
	var e struct {
		RX float64 `json:"rx"`
		RY float64 `json:"ry"`
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return nil
	}
	const k = 0.5522847498
	rx, ry := e.RX, e.RY
	kx, ky := rx*k, ry*k
	return []PathCommand{
		{"M", rx, 0.0},
		{"C", rx, ky, kx, ry, 0.0, ry},
		{"C", -kx, ry, -rx, ky, -rx, 0.0},
		{"C", -rx, -ky, -kx, -ry, 0.0, -ry},
		{"C", kx, -ry, rx, -ky, rx, 0.0},
		{"Z"},
	}
}

func vectorPath(data json.RawMessage) []PathCommand {
	var p struct {
		Commands [][]any `json:"commands"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	out := make([]PathCommand, len(p.Commands))
	for i, cmd := range p.Commands {
		out[i] = PathCommand(cmd)
	}
	return out
}
