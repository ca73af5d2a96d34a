//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/inamate/vecanim/internal/rasterize"
	"github.com/inamate/vecanim/internal/texture"
	"github.com/inamate/vecanim/internal/visual"
)

var (
	manager *visual.Manager
	current *visual.Visual
)

func main() {
	manager = visual.NewManager(visual.Config{Workers: 1, FrameCacheSize: 32})

	// Create the engine API object
	vecanim := js.Global().Get("Object").New()

	// --- Commands (page → engine) ---
	vecanim.Set("create", js.FuncOf(create))
	vecanim.Set("play", js.FuncOf(action(visual.ActionPlay)))
	vecanim.Set("pause", js.FuncOf(action(visual.ActionPause)))
	vecanim.Set("stop", js.FuncOf(action(visual.ActionStop)))
	vecanim.Set("flush", js.FuncOf(action(visual.ActionFlush)))
	vecanim.Set("jumpTo", js.FuncOf(jumpTo))
	vecanim.Set("updateProperty", js.FuncOf(updateProperty))
	vecanim.Set("setVisible", js.FuncOf(setVisible))
	vecanim.Set("destroy", js.FuncOf(destroy))
	vecanim.Set("tick", js.FuncOf(tick))

	// --- Queries (page ← engine) ---
	vecanim.Set("snapshot", js.FuncOf(snapshot))
	vecanim.Set("drawCommands", js.FuncOf(drawCommands))
	vecanim.Set("copyFrame", js.FuncOf(copyFrame))

	// Register on global scope
	js.Global().Set("vecanim", vecanim)

	// Signal that WASM is ready
	js.Global().Set("vecanimWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func result(err error) any {
	if err != nil {
		return js.ValueOf(map[string]any{"error": err.Error()})
	}
	return js.ValueOf(map[string]any{"ok": true})
}

// --- Command Handlers ---

// create replaces the current visual and loads its animation before
// returning. The argument is the options object as JSON, e.g.
// {"url": "sample://pulse", "loopCount": 2}.
func create(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf(map[string]any{"error": "missing options JSON"})
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(args[0].String()), &m); err != nil {
		return result(err)
	}
	opts, err := visual.ParseOptions(m)
	if err != nil {
		return result(err)
	}
	if current != nil {
		current.Destroy()
	}
	opts.SynchronousLoading = true
	v, err := manager.Create(opts)
	current = v
	if v == nil {
		return result(err)
	}
	out := map[string]any{"id": v.ID()}
	if err != nil {
		out["error"] = err.Error()
	}
	return js.ValueOf(out)
}

func action(a visual.Action) func(js.Value, []js.Value) any {
	return func(this js.Value, args []js.Value) any {
		if current == nil {
			return js.ValueOf(map[string]any{"error": "no visual"})
		}
		return result(current.DoAction(a, nil))
	}
}

func jumpTo(this js.Value, args []js.Value) any {
	if current == nil || len(args) < 1 {
		return nil
	}
	return result(current.JumpTo(args[0].Int()))
}

func updateProperty(this js.Value, args []js.Value) any {
	if current == nil || len(args) < 1 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(args[0].String()), &m); err != nil {
		return result(err)
	}
	return result(current.UpdateProperty(m))
}

// setVisible attaches or detaches the visual, as a page does when the
// canvas scrolls out of view.
func setVisible(this js.Value, args []js.Value) any {
	if current == nil || len(args) < 1 {
		return nil
	}
	if args[0].Bool() {
		return result(current.Attach())
	}
	current.Detach()
	return result(nil)
}

func destroy(this js.Value, args []js.Value) any {
	if current != nil {
		current.Destroy()
		current = nil
	}
	return nil
}

type tickSignal struct {
	Kind         string `json:"kind"`
	Frame        int    `json:"frame"`
	LoopComplete bool   `json:"loopComplete,omitempty"`
	Error        string `json:"error,omitempty"`
}

// tick is called from requestAnimationFrame. It delivers worker signals and
// returns them as JSON.
func tick(this js.Value, args []js.Value) any {
	sigs := manager.ProcessEvents()
	manager.FlushTextures()
	out := make([]tickSignal, 0, len(sigs))
	for _, s := range sigs {
		if current == nil || s.Owner != current.ID() {
			continue
		}
		ts := tickSignal{Kind: s.Kind.String(), Frame: s.Frame, LoopComplete: s.LoopComplete}
		if s.Kind == rasterize.ResourceFailed && s.Err != nil {
			ts.Error = s.Err.Error()
		}
		out = append(out, ts)
	}
	data, _ := json.Marshal(out)
	return js.ValueOf(string(data))
}

// --- Query Handlers ---

func snapshot(this js.Value, args []js.Value) any {
	if current == nil {
		return js.ValueOf("{}")
	}
	data, err := json.Marshal(current.GetPropertySnapshot())
	if err != nil {
		return js.ValueOf("{}")
	}
	return js.ValueOf(string(data))
}

// drawCommands returns the vector draw list of a frame for canvas rendering
// on the page. Without an argument it uses the current frame.
func drawCommands(this js.Value, args []js.Value) any {
	if current == nil {
		return js.ValueOf("[]")
	}
	anim, task := current.Animation(), current.Task()
	if anim == nil || task == nil {
		return js.ValueOf("[]")
	}
	frame := task.Snapshot().CurrentFrame
	if len(args) > 0 && args[0].Type() == js.TypeNumber {
		frame = args[0].Int()
	}
	dyn, _ := task.Bindings().Evaluate(frame)
	data, _ := json.Marshal(anim.DrawCommands(frame, dyn))
	return js.ValueOf(string(data))
}

// copyFrame copies the presented frame into a Uint8ClampedArray of
// width*height*4 bytes and returns {width, height}.
func copyFrame(this js.Value, args []js.Value) any {
	if current == nil || len(args) < 1 {
		return nil
	}
	tex, ok := current.Texture().(*texture.MemoryTexture)
	if !ok {
		return nil
	}
	img, err := tex.Image()
	if err != nil {
		return result(err)
	}
	js.CopyBytesToJS(args[0], img.Pix)
	b := img.Bounds()
	return js.ValueOf(map[string]any{"width": b.Dx(), "height": b.Dy()})
}
