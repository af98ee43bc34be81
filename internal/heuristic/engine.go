// Package heuristic loads and evaluates js readiness predicates. A script
// defines isReady(el) over one reported element; a gate that names a loaded
// heuristic uses it to decide which matched elements already count as done
// instead of waiting for their readiness event.
package heuristic

import (
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/unveil/unveil/pkg/gatelib"
)

type Engine struct {
	l  *log.Logger
	fs afero.Fs
	// dir is the heuristic script storage path
	// (the */heuristics/* directory).
	dir     string
	timeout time.Duration

	mu      sync.RWMutex
	scripts map[string]*Script
}

// NewEngine scans dir for stored scripts and loads each one. A script that
// fails to load is skipped with a log line rather than failing the daemon.
func NewEngine(l *log.Logger, fs afero.Fs, dir string) (*Engine, error) {
	if l == nil {
		l = log.Default()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if dir == "" {
		dir = gatelib.HeuristicsDir
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	e := &Engine{
		l:       l,
		fs:      fs,
		dir:     dir,
		timeout: DEF_EVAL_TIMEOUT,
		scripts: make(map[string]*Script),
	}
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), SCRIPT_EXT) {
			continue
		}
		name := strings.TrimSuffix(info.Name(), SCRIPT_EXT)
		if !validName(name) {
			continue
		}
		b, err := afero.ReadFile(fs, filepath.Join(dir, info.Name()))
		if err != nil {
			l.Println("heuristic: skipping unreadable script:", info.Name(), err.Error())
			continue
		}
		s, err := loadScript(l, fs, dir, name, string(b))
		if err != nil {
			l.Println("heuristic: skipping broken script:", info.Name(), err.Error())
			continue
		}
		e.scripts[name] = s
	}
	return e, nil
}

// SetEvalTimeout overrides the per-call interrupt budget.
func (e *Engine) SetEvalTimeout(d time.Duration) {
	e.mu.Lock()
	e.timeout = d
	e.mu.Unlock()
}

// Load validates, stores and activates a script under name. Loading an
// existing name replaces it.
func (e *Engine) Load(name, source string) error {
	if !validName(name) {
		return ErrInvalidName
	}
	s, err := loadScript(e.l, e.fs, e.dir, name, source)
	if err != nil {
		return err
	}
	path := filepath.Join(e.dir, name+SCRIPT_EXT)
	if err := afero.WriteFile(e.fs, path, []byte(source), 0644); err != nil {
		return err
	}
	e.mu.Lock()
	e.scripts[name] = s
	e.mu.Unlock()
	e.l.Println("heuristic: loaded", name)
	return nil
}

// List returns the loaded heuristic names, sorted.
func (e *Engine) List() []string {
	e.mu.RLock()
	names := make([]string, 0, len(e.scripts))
	for name := range e.scripts {
		names = append(names, name)
	}
	e.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Remove drops a loaded heuristic and deletes its stored script.
func (e *Engine) Remove(name string) error {
	e.mu.Lock()
	_, ok := e.scripts[name]
	delete(e.scripts, name)
	e.mu.Unlock()
	if !ok {
		return ErrScriptNotFound
	}
	return e.fs.Remove(filepath.Join(e.dir, name+SCRIPT_EXT))
}

// Eval runs the named predicate against el.
func (e *Engine) Eval(name string, el gatelib.ElementRef) (bool, error) {
	e.mu.RLock()
	s, ok := e.scripts[name]
	timeout := e.timeout
	e.mu.RUnlock()
	if !ok {
		return false, ErrScriptNotFound
	}
	return s.Eval(el, timeout)
}

// ReadyFn adapts the named heuristic to a gate's already-loaded check for
// elements awaiting event. A host-reported Complete wins only for the
// default load event, which is the one it describes; the script decides the
// rest. Eval failures leave the element pending.
func (e *Engine) ReadyFn(name, event string) (func(gatelib.ElementRef) bool, error) {
	e.mu.RLock()
	_, ok := e.scripts[name]
	e.mu.RUnlock()
	if !ok {
		return nil, ErrScriptNotFound
	}
	if event == "" {
		event = gatelib.DEF_CUSTOM_EVENT
	}
	return func(el gatelib.ElementRef) bool {
		if el.Complete && event == gatelib.DEF_CUSTOM_EVENT {
			return true
		}
		ready, err := e.Eval(name, el)
		if err != nil {
			e.l.Printf("heuristic: %s eval failed for element %s: %s\n", name, el.ID, err.Error())
			return false
		}
		return ready
	}, nil
}
