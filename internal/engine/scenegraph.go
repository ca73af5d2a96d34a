package engine

// SceneGraph is the evaluated state of a document at one frame.
type SceneGraph struct {
	Root      *SceneNode
	NodesByID map[string]*SceneNode
}

// SceneNode is a resolved node: transforms are composed and opacity is
// inherited from the parent chain.
type SceneNode struct {
	ID   string
	Type string // "group", "shape", "symbol"

	WorldTransform Matrix2D
	Opacity        float64

	Children []*SceneNode

	Path        []PathCommand
	Fill        string
	Stroke      string
	StrokeWidth float64
}

// PathCommand is one path segment in Canvas2D order:
// ["M", x, y], ["L", x, y], ["Q", cx, cy, x, y], ["C", x1, y1, x2, y2, x, y], ["Z"].
type PathCommand []any

func NewSceneGraph() *SceneGraph {
	return &SceneGraph{NodesByID: make(map[string]*SceneNode)}
}

// Op returns the command letter, or "" when malformed.
func (p PathCommand) Op() string {
	if len(p) == 0 {
		return ""
	}
	op, _ := p[0].(string)
	return op
}

// Arg returns argument i (zero based, after the op) as a float.
func (p PathCommand) Arg(i int) float64 {
	if i+1 >= len(p) {
		return 0
	}
	switch n := p[i+1].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
