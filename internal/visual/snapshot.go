package visual

import "maps"

// Snapshot keys.
const (
	KeyPlayState                = "playState"
	KeyCurrentFrame             = "currentFrame"
	KeyTotalFrameNumber         = "totalFrameNumber"
	KeyPlayRange                = "playRange"
	KeyMarkerInfo               = "markerInfo"
	KeyContentInfo              = "contentInfo"
	KeyEnableFrameCache         = "enableFrameCache"
	KeyNotifyAfterRasterization = "notifyAfterRasterization"
	KeyDroppedFrames            = "droppedFrames"
	KeyLoopCount                = "loopCount"
	KeyStopBehavior             = "stopBehavior"
	KeyLoopingMode              = "loopingMode"
	KeyFrameSpeedFactor         = "frameSpeedFactor"
	KeyURL                      = "url"
	KeyResourceStatus           = "resourceStatus"
	KeyWidth                    = "width"
	KeyHeight                   = "height"
)

// Snapshot is a read-only view of a visual's committed state, keyed by the
// Key constants.
type Snapshot map[string]any

// GetPropertySnapshot returns the state committed by the last scheduling
// step. Changes still queued for the next frame are not visible yet.
func (v *Visual) GetPropertySnapshot() Snapshot {
	v.mu.Lock()
	task, anim, status, props := v.task, v.anim, v.status, v.props
	v.mu.Unlock()

	s := Snapshot{
		KeyURL:              v.opts.URL,
		KeyResourceStatus:   status.String(),
		KeyPlayState:        "Stopped",
		KeyCurrentFrame:     0,
		KeyTotalFrameNumber: 0,
		KeyPlayRange:        [2]int{0, 0},
		KeyMarkerInfo:       map[string][2]int{},
		KeyContentInfo:      map[string][2]int{},
		KeyDroppedFrames:    int64(0),
	}
	if props.EnableFrameCache != nil {
		s[KeyEnableFrameCache] = *props.EnableFrameCache
	} else {
		s[KeyEnableFrameCache] = false
	}
	if props.NotifyAfterRasterization != nil {
		s[KeyNotifyAfterRasterization] = *props.NotifyAfterRasterization
	} else {
		s[KeyNotifyAfterRasterization] = false
	}
	if task == nil {
		return s
	}

	ts := task.Snapshot()
	markers := make(map[string][2]int, len(ts.Markers))
	for name, r := range ts.Markers {
		markers[name] = [2]int{r.Start, r.End}
	}
	maps.Copy(s, Snapshot{
		KeyPlayState:                ts.State.String(),
		KeyCurrentFrame:             ts.CurrentFrame,
		KeyTotalFrameNumber:         ts.TotalFrames,
		KeyPlayRange:                [2]int{ts.PlayRange.Start, ts.PlayRange.End},
		KeyMarkerInfo:               markers,
		KeyContentInfo:              anim.ContentInfo(),
		KeyEnableFrameCache:         ts.CacheEnabled,
		KeyNotifyAfterRasterization: ts.NotifyAfterRasterization,
		KeyDroppedFrames:            ts.DroppedFrames,
		KeyLoopCount:                ts.Config.LoopCount,
		KeyStopBehavior:             ts.Config.StopBehavior.String(),
		KeyLoopingMode:              ts.Config.LoopingMode.String(),
		KeyFrameSpeedFactor:         ts.Config.FrameSpeed,
		KeyWidth:                    ts.Width,
		KeyHeight:                   ts.Height,
	})
	return s
}
