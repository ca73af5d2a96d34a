package engine

import "encoding/json"

// DrawCommand is one painter-ordered drawing operation. The rasterizer
// consumes them directly; the browser bridge ships them as JSON to a Canvas2D
// front end.
type DrawCommand struct {
	Op          string        `json:"op"`
	ObjectID    string        `json:"objectId,omitempty"`
	Transform   []float64     `json:"transform,omitempty"`
	Path        []PathCommand `json:"path,omitempty"`
	Fill        string        `json:"fill,omitempty"`
	Stroke      string        `json:"stroke,omitempty"`
	StrokeWidth float64       `json:"strokeWidth,omitempty"`
	Opacity     float64       `json:"opacity,omitempty"`
}

// CompileDrawCommands flattens a scene graph back to front.
func CompileDrawCommands(sg *SceneGraph) []DrawCommand {
	if sg == nil || sg.Root == nil {
		return nil
	}
	var cmds []DrawCommand
	compileNode(sg.Root, &cmds)
	return cmds
}

func compileNode(n *SceneNode, cmds *[]DrawCommand) {
	if len(n.Path) > 0 && n.Opacity > 0 {
		*cmds = append(*cmds, DrawCommand{
			Op:          "path",
			ObjectID:    n.ID,
			Transform:   n.WorldTransform.ToSlice(),
			Path:        n.Path,
			Fill:        n.Fill,
			Stroke:      n.Stroke,
			StrokeWidth: n.StrokeWidth,
			Opacity:     n.Opacity,
		})
	}
	for _, c := range n.Children {
		compileNode(c, cmds)
	}
}

// DrawCommandsToJSON serializes commands, returning "[]" on failure.
func DrawCommandsToJSON(cmds []DrawCommand) (string, error) {
	if cmds == nil {
		return "[]", nil
	}
	data, err := json.Marshal(cmds)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}
