package heuristic

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dop251/goja"
	requirePkg "github.com/dop251/goja_nodejs/require"
	"github.com/spf13/afero"

	"github.com/unveil/unveil/pkg/gatelib"
)

// Script is one loaded readiness predicate. Each script runs in its own js
// runtime, isolated from the others; Eval serializes calls because a goja
// runtime is single-threaded.
type Script struct {
	name string

	mu sync.Mutex
	vm *goja.Runtime
	fn goja.Callable
}

// loadScript allocates a runtime, runs the source and binds the isReady
// symbol. require() resolves against dir through fs.
func loadScript(l *log.Logger, fs afero.Fs, dir, name, source string) (*Script, error) {
	vm := goja.New()
	registry := requirePkg.NewRegistryWithLoader(aferoLoader(fs))
	req := registry.Enable(vm)

	err := vm.Set("print", func(call goja.FunctionCall) goja.Value {
		args := make([]interface{}, 0, len(call.Arguments))
		for _, v := range call.Arguments {
			args = append(args, v.Export())
		}
		l.Println(append([]interface{}{"heuristic:", name + ":"}, args...)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = vm.Set("require", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return nil
		}
		modName := call.Arguments[0].String()
		v, err := req.Require(filepath.Join(dir, modName))
		if err != nil {
			l.Println("heuristic: failed to import module:", modName)
			return nil
		}
		return v
	})
	if err != nil {
		return nil, err
	}

	if _, err := vm.RunString(source); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	fn, ok := goja.AssertFunction(vm.Get(READY_CALLBACK))
	if !ok {
		return nil, ErrReadyNotDefined
	}
	return &Script{name: name, vm: vm, fn: fn}, nil
}

func aferoLoader(fs afero.Fs) requirePkg.SourceLoader {
	return func(path string) ([]byte, error) {
		b, err := afero.ReadFile(fs, path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, requirePkg.ModuleFileDoesNotExistError
			}
			return nil, err
		}
		return b, nil
	}
}

// Eval calls isReady(el) and interrupts the runtime once timeout elapses.
func (s *Script) Eval(el gatelib.ElementRef, timeout time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timeout > 0 {
		timer := time.AfterFunc(timeout, func() {
			s.vm.Interrupt(ErrEvalTimeout)
		})
		defer func() {
			timer.Stop()
			s.vm.ClearInterrupt()
		}()
	}

	v, err := s.fn(goja.Undefined(), elementValue(s.vm, el))
	if err != nil {
		var ie *goja.InterruptedError
		if errors.As(err, &ie) {
			return false, ErrEvalTimeout
		}
		return false, err
	}
	b, ok := v.Export().(bool)
	if !ok {
		return false, ErrInvalidReturnType
	}
	return b, nil
}

// elementValue maps an element onto a plain js object. Attrs are copied so
// scripts cannot reach back into tracker state.
func elementValue(vm *goja.Runtime, el gatelib.ElementRef) goja.Value {
	attrs := make(map[string]string, len(el.Attrs))
	for k, v := range el.Attrs {
		attrs[k] = v
	}
	return vm.ToValue(map[string]interface{}{
		"id":       el.ID,
		"tag":      el.Tag,
		"complete": el.Complete,
		"attrs":    attrs,
	})
}
