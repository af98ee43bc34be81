package heuristic

import (
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/unveil/unveil/pkg/gatelib"
)

const framesScript = `
function isReady(el) {
	return (el.attrs["data-frames"] || "0") !== "0";
}
`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(log.New(io.Discard, "", 0), afero.NewMemMapFs(), "/heuristics")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestEngineLoadsStoredScripts(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/heuristics/frames.js":  framesScript,
		"/heuristics/broken.js":  "function isReady(el) {",
		"/heuristics/noready.js": "function other() { return true; }",
		"/heuristics/notes.txt":  "not a script",
	}
	for path, src := range files {
		if err := afero.WriteFile(fs, path, []byte(src), 0644); err != nil {
			t.Fatalf("WriteFile %s: %v", path, err)
		}
	}

	e, err := NewEngine(log.New(io.Discard, "", 0), fs, "/heuristics")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	names := e.List()
	if len(names) != 1 || names[0] != "frames" {
		t.Fatalf("loaded = %v, want [frames]", names)
	}
}

func TestEngineLoadEvalRemove(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Load("frames", framesScript); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ready, err := e.Eval("frames", gatelib.ElementRef{
		ID: "w1", Tag: "widget",
		Attrs: map[string]string{"data-frames": "9"},
	})
	if err != nil || !ready {
		t.Fatalf("Eval = %v, %v, want true", ready, err)
	}
	ready, err = e.Eval("frames", gatelib.ElementRef{
		ID: "w2", Tag: "widget",
		Attrs: map[string]string{"data-frames": "0"},
	})
	if err != nil || ready {
		t.Fatalf("Eval = %v, %v, want false", ready, err)
	}

	if names := e.List(); len(names) != 1 || names[0] != "frames" {
		t.Fatalf("List = %v", names)
	}
	if err := e.Remove("frames"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := e.Eval("frames", gatelib.ElementRef{ID: "w1"}); !errors.Is(err, ErrScriptNotFound) {
		t.Fatalf("Eval after remove err = %v", err)
	}
	if err := e.Remove("frames"); !errors.Is(err, ErrScriptNotFound) {
		t.Fatalf("second Remove err = %v", err)
	}
}

func TestEngineLoadPersistsScript(t *testing.T) {
	fs := afero.NewMemMapFs()
	e, err := NewEngine(log.New(io.Discard, "", 0), fs, "/heuristics")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.Load("frames", framesScript); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// A fresh engine over the same store picks the script back up.
	e2, err := NewEngine(log.New(io.Discard, "", 0), fs, "/heuristics")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if names := e2.List(); len(names) != 1 || names[0] != "frames" {
		t.Fatalf("reloaded = %v", names)
	}

	if err := e.Remove("frames"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ok, _ := afero.Exists(fs, "/heuristics/frames.js"); ok {
		t.Fatal("script file survived Remove")
	}
}

func TestEngineLoadErrors(t *testing.T) {
	e := newTestEngine(t)
	tests := []struct {
		label  string
		name   string
		source string
		want   error
	}{
		{"bad name slash", "a/b", framesScript, ErrInvalidName},
		{"bad name empty", "", framesScript, ErrInvalidName},
		{"bad name leading digit", "1frames", framesScript, ErrInvalidName},
		{"no isReady", "noready", "function other() {}", ErrReadyNotDefined},
	}
	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			if err := e.Load(tc.name, tc.source); !errors.Is(err, tc.want) {
				t.Fatalf("Load err = %v, want %v", err, tc.want)
			}
		})
	}

	if err := e.Load("broken", "function isReady(el) {"); err == nil {
		t.Fatal("syntax error accepted")
	}
	if len(e.List()) != 0 {
		t.Fatalf("failed loads registered: %v", e.List())
	}
}

func TestEvalInvalidReturnType(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Load("stringy", `function isReady(el) { return "yes"; }`); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := e.Eval("stringy", gatelib.ElementRef{ID: "w1"}); !errors.Is(err, ErrInvalidReturnType) {
		t.Fatalf("err = %v, want ErrInvalidReturnType", err)
	}
}

func TestEvalScriptThrow(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Load("angry", `function isReady(el) { throw new Error("nope"); }`); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := e.Eval("angry", gatelib.ElementRef{ID: "w1"}); err == nil {
		t.Fatal("thrown error swallowed")
	}
}

func TestEvalTimeout(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Load("spin", `function isReady(el) { while (true) {} }`); err != nil {
		t.Fatalf("Load: %v", err)
	}
	e.SetEvalTimeout(20 * time.Millisecond)

	start := time.Now()
	_, err := e.Eval("spin", gatelib.ElementRef{ID: "w1"})
	if !errors.Is(err, ErrEvalTimeout) {
		t.Fatalf("err = %v, want ErrEvalTimeout", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("interrupt took too long")
	}

	// The runtime stays usable after an interrupt.
	if err := e.Load("spin", framesScript); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, err := e.Eval("spin", gatelib.ElementRef{ID: "w1"}); err != nil {
		t.Fatalf("Eval after reload: %v", err)
	}
}

func TestReadyFn(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Load("frames", framesScript); err != nil {
		t.Fatalf("Load: %v", err)
	}

	fn, err := e.ReadyFn("frames", "")
	if err != nil {
		t.Fatalf("ReadyFn: %v", err)
	}
	if !fn(gatelib.ElementRef{ID: "w1", Complete: true}) {
		t.Fatal("complete element not short-circuited")
	}
	if !fn(gatelib.ElementRef{ID: "w2", Attrs: map[string]string{"data-frames": "3"}}) {
		t.Fatal("script verdict ignored")
	}
	if fn(gatelib.ElementRef{ID: "w3"}) {
		t.Fatal("unready element marked done")
	}

	// Complete only describes load completion. An element awaiting a
	// custom event still goes to the script.
	fn, err = e.ReadyFn("frames", "frames-done")
	if err != nil {
		t.Fatalf("ReadyFn: %v", err)
	}
	if fn(gatelib.ElementRef{ID: "w4", Complete: true}) {
		t.Fatal("complete short-circuited a custom event wait")
	}
	if !fn(gatelib.ElementRef{ID: "w5", Complete: true, Attrs: map[string]string{"data-frames": "3"}}) {
		t.Fatal("script verdict ignored for a custom event wait")
	}

	if _, err := e.ReadyFn("missing", ""); !errors.Is(err, ErrScriptNotFound) {
		t.Fatalf("missing heuristic err = %v", err)
	}
}

func TestScriptRequire(t *testing.T) {
	fs := afero.NewMemMapFs()
	helper := "module.exports = { threshold: 3 };\n"
	if err := afero.WriteFile(fs, "/heuristics/thresholds.js", []byte(helper), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	e, err := NewEngine(log.New(io.Discard, "", 0), fs, "/heuristics")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	src := `
var cfg = require("thresholds.js");
function isReady(el) {
	return parseInt(el.attrs["data-count"] || "0", 10) >= cfg.threshold;
}
`
	if err := e.Load("counted", src); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ready, err := e.Eval("counted", gatelib.ElementRef{
		ID: "w1", Attrs: map[string]string{"data-count": "4"},
	})
	if err != nil || !ready {
		t.Fatalf("Eval = %v, %v, want true", ready, err)
	}
	ready, err = e.Eval("counted", gatelib.ElementRef{
		ID: "w2", Attrs: map[string]string{"data-count": "2"},
	})
	if err != nil || ready {
		t.Fatalf("Eval = %v, %v, want false", ready, err)
	}
}

func TestScriptCannotMutateAttrs(t *testing.T) {
	e := newTestEngine(t)
	src := `function isReady(el) { el.attrs["data-frames"] = "0"; return true; }`
	if err := e.Load("mutator", src); err != nil {
		t.Fatalf("Load: %v", err)
	}
	attrs := map[string]string{"data-frames": "9"}
	if _, err := e.Eval("mutator", gatelib.ElementRef{ID: "w1", Attrs: attrs}); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if attrs["data-frames"] != "9" {
		t.Fatal("script mutated caller attrs")
	}
}

func TestValidName(t *testing.T) {
	long := strings.Repeat("a", 65)
	good := []string{"frames", "video-ready", "Deck_v2", "a"}
	bad := []string{"", "1a", "a b", "a/b", "..", long}
	for _, name := range good {
		if !validName(name) {
			t.Errorf("validName(%q) = false", name)
		}
	}
	for _, name := range bad {
		if validName(name) {
			t.Errorf("validName(%q) = true", name)
		}
	}
}
