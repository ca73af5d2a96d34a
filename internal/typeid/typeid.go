package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixVisual   = "vis"
	PrefixTexture  = "tex"
	PrefixExport   = "exp"
	PrefixScene    = "scene"
	PrefixObject   = "obj"
	PrefixTimeline = "tl"
	PrefixTrack    = "track"
	PrefixKeyframe = "kf"
	PrefixAsset    = "asset"
	PrefixProject  = "proj"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewVisualID() string   { return New(PrefixVisual) }
func NewTextureID() string  { return New(PrefixTexture) }
func NewExportID() string   { return New(PrefixExport) }
func NewSceneID() string    { return New(PrefixScene) }
func NewObjectID() string   { return New(PrefixObject) }
func NewTimelineID() string { return New(PrefixTimeline) }
func NewTrackID() string    { return New(PrefixTrack) }
func NewKeyframeID() string { return New(PrefixKeyframe) }
func NewAssetID() string    { return New(PrefixAsset) }
func NewProjectID() string  { return New(PrefixProject) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
