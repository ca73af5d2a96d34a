package visual

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/inamate/vecanim/internal/playback"
	"github.com/inamate/vecanim/internal/rasterize"
	"github.com/inamate/vecanim/internal/texture"
)

// Properties are the settings that can be changed after creation. Nil
// fields are left as they are.
type Properties struct {
	LoopCount                *int        `yaml:"loopCount,omitempty" json:"loopCount,omitempty"`
	PlayRange                *RangeValue `yaml:"playRange,omitempty" json:"playRange,omitempty"`
	StopBehavior             *string     `yaml:"stopBehavior,omitempty" json:"stopBehavior,omitempty"`
	LoopingMode              *string     `yaml:"loopingMode,omitempty" json:"loopingMode,omitempty"`
	FrameSpeedFactor         *float64    `yaml:"frameSpeedFactor,omitempty" json:"frameSpeedFactor,omitempty"`
	RenderScale              *float64    `yaml:"renderScale,omitempty" json:"renderScale,omitempty"`
	EnableFrameCache         *bool       `yaml:"enableFrameCache,omitempty" json:"enableFrameCache,omitempty"`
	NotifyAfterRasterization *bool       `yaml:"notifyAfterRasterization,omitempty" json:"notifyAfterRasterization,omitempty"`
	DesiredWidth             *int        `yaml:"desiredWidth,omitempty" json:"desiredWidth,omitempty"`
	DesiredHeight            *int        `yaml:"desiredHeight,omitempty" json:"desiredHeight,omitempty"`
}

// Options configure a new visual.
type Options struct {
	URL                string `yaml:"url" json:"url"`
	SynchronousLoading bool   `yaml:"synchronousLoading,omitempty" json:"synchronousLoading,omitempty"`
	FastTrackUploading bool   `yaml:"fastTrackUploading,omitempty" json:"fastTrackUploading,omitempty"`
	NativeTexture      bool   `yaml:"nativeTexture,omitempty" json:"nativeTexture,omitempty"`
	ReleasePolicy      string `yaml:"releasePolicy,omitempty" json:"releasePolicy,omitempty"`

	Properties `yaml:",inline"`
}

// RangeValue is a play range given as two frame numbers or one or two
// marker names.
type RangeValue struct {
	playback.RangeSpec
}

func (r *RangeValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.ShortTag() != "!!str" {
			return fmt.Errorf("line %d: play range %q is neither a pair of frames nor a marker name", node.Line, node.Value)
		}
		r.RangeSpec = playback.MarkerRange(node.Value)
		return nil
	case yaml.MappingNode:
		var rng playback.Range
		if err := node.Decode(&rng); err != nil {
			return err
		}
		r.RangeSpec = playback.FrameRange(rng.Start, rng.End)
		return nil
	case yaml.SequenceNode:
	default:
		return fmt.Errorf("line %d: invalid play range", node.Line)
	}

	if len(node.Content) == 0 || len(node.Content) > 2 {
		return fmt.Errorf("line %d: play range needs 1 or 2 values, got %d", node.Line, len(node.Content))
	}
	var frames []int
	if err := node.Decode(&frames); err == nil {
		if len(frames) != 2 {
			return fmt.Errorf("line %d: frame range needs start and end", node.Line)
		}
		r.RangeSpec = playback.FrameRange(frames[0], frames[1])
		return nil
	}
	var names []string
	if err := node.Decode(&names); err != nil {
		return fmt.Errorf("line %d: play range mixes frames and marker names", node.Line)
	}
	r.RangeSpec = playback.MarkerRange(names...)
	return nil
}

func (r RangeValue) MarshalYAML() (any, error) {
	if len(r.Markers) > 0 {
		return r.Markers, nil
	}
	return []int{r.Start, r.End}, nil
}

// ParseOptions reads creation options from a property map. Unknown keys
// and values of the wrong type are errors.
func ParseOptions(m map[string]any) (Options, error) {
	var opts Options
	if err := decodeMap(m, &opts); err != nil {
		return Options{}, err
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// ParseOptionsYAML reads creation options from a YAML document.
func ParseOptionsYAML(data []byte) (Options, error) {
	var opts Options
	if err := decodeStrict(data, &opts); err != nil {
		return Options{}, err
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// ParseProperties reads a property update map.
func ParseProperties(m map[string]any) (Properties, error) {
	var p Properties
	if err := decodeMap(m, &p); err != nil {
		return Properties{}, err
	}
	if err := p.Validate(); err != nil {
		return Properties{}, err
	}
	return p, nil
}

// decodeMap routes a loosely typed map through YAML so maps from JSON
// bodies, YAML files and Go callers share one set of decoding rules.
func decodeMap(m map[string]any, out any) error {
	if len(m) == 0 {
		return nil
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}
	return decodeStrict(data, out)
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode properties: %w", err)
	}
	return nil
}

func (o Options) Validate() error {
	if o.URL == "" {
		return errors.New("url is required")
	}
	if o.FastTrackUploading && o.NativeTexture {
		return errors.New("fastTrackUploading and nativeTexture are exclusive")
	}
	if _, err := texture.ParsePolicy(o.ReleasePolicy); err != nil {
		return err
	}
	return o.Properties.Validate()
}

func (p Properties) Validate() error {
	if p.StopBehavior != nil {
		if _, err := playback.ParseStopBehavior(*p.StopBehavior); err != nil {
			return err
		}
	}
	if p.LoopingMode != nil {
		if _, err := playback.ParseLoopingMode(*p.LoopingMode); err != nil {
			return err
		}
	}
	if p.RenderScale != nil && !(*p.RenderScale > 0 && *p.RenderScale <= 16) {
		return fmt.Errorf("renderScale must be in (0, 16], got %v", *p.RenderScale)
	}
	if p.DesiredWidth != nil && *p.DesiredWidth < 0 {
		return fmt.Errorf("desiredWidth must not be negative, got %d", *p.DesiredWidth)
	}
	if p.DesiredHeight != nil && *p.DesiredHeight < 0 {
		return fmt.Errorf("desiredHeight must not be negative, got %d", *p.DesiredHeight)
	}
	return nil
}

// merge copies the set fields of other into p.
func (p *Properties) merge(other Properties) {
	if other.LoopCount != nil {
		p.LoopCount = other.LoopCount
	}
	if other.PlayRange != nil {
		p.PlayRange = other.PlayRange
	}
	if other.StopBehavior != nil {
		p.StopBehavior = other.StopBehavior
	}
	if other.LoopingMode != nil {
		p.LoopingMode = other.LoopingMode
	}
	if other.FrameSpeedFactor != nil {
		p.FrameSpeedFactor = other.FrameSpeedFactor
	}
	if other.RenderScale != nil {
		p.RenderScale = other.RenderScale
	}
	if other.EnableFrameCache != nil {
		p.EnableFrameCache = other.EnableFrameCache
	}
	if other.NotifyAfterRasterization != nil {
		p.NotifyAfterRasterization = other.NotifyAfterRasterization
	}
	if other.DesiredWidth != nil {
		p.DesiredWidth = other.DesiredWidth
	}
	if other.DesiredHeight != nil {
		p.DesiredHeight = other.DesiredHeight
	}
}

// changes converts the playback settings in p into task changes.
func (p Properties) changes() []rasterize.Change {
	var out []rasterize.Change
	if p.LoopCount != nil {
		n := *p.LoopCount
		out = append(out, func(m *playback.Machine) error { m.SetLoopCount(n); return nil })
	}
	if p.StopBehavior != nil {
		b, _ := playback.ParseStopBehavior(*p.StopBehavior)
		out = append(out, func(m *playback.Machine) error { m.SetStopBehavior(b); return nil })
	}
	if p.LoopingMode != nil {
		mode, _ := playback.ParseLoopingMode(*p.LoopingMode)
		out = append(out, func(m *playback.Machine) error { m.SetLoopingMode(mode); return nil })
	}
	if p.FrameSpeedFactor != nil {
		speed := *p.FrameSpeedFactor
		out = append(out, func(m *playback.Machine) error { m.SetFrameSpeed(speed); return nil })
	}
	if p.PlayRange != nil {
		spec := p.PlayRange.RangeSpec
		out = append(out, func(m *playback.Machine) error { return m.UpdatePlayRange(spec) })
	}
	return out
}

// targetSize computes the raster size from the natural size, the desired
// size and the render scale. A single desired dimension keeps the aspect
// ratio.
func (p Properties) targetSize(natural [2]int) (int, int) {
	w, h := float64(natural[0]), float64(natural[1])
	dw, dh := 0, 0
	if p.DesiredWidth != nil {
		dw = *p.DesiredWidth
	}
	if p.DesiredHeight != nil {
		dh = *p.DesiredHeight
	}
	switch {
	case dw > 0 && dh > 0:
		w, h = float64(dw), float64(dh)
	case dw > 0 && w > 0:
		h, w = h*float64(dw)/w, float64(dw)
	case dh > 0 && h > 0:
		w, h = w*float64(dh)/h, float64(dh)
	}
	scale := 1.0
	if p.RenderScale != nil {
		scale = *p.RenderScale
	}
	return max(int(math.Round(w*scale)), 1), max(int(math.Round(h*scale)), 1)
}
