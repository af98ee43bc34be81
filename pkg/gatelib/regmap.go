package gatelib

import "sync"

// regMap is a small mutex-guarded generic map used for registries that are
// written from multiple goroutines.
type regMap[kT comparable, vT any] struct {
	mu sync.RWMutex
	m  map[kT]vT
}

func newRegMap[kT comparable, vT any]() *regMap[kT, vT] {
	return &regMap[kT, vT]{m: make(map[kT]vT)}
}

func (r *regMap[kT, vT]) Get(key kT) (vT, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.m[key]
	return v, ok
}

func (r *regMap[kT, vT]) Set(key kT, value vT) {
	r.mu.Lock()
	r.m[key] = value
	r.mu.Unlock()
}

// SetOnce stores value only when key is absent and reports whether it stored.
func (r *regMap[kT, vT]) SetOnce(key kT, value vT) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[key]; ok {
		return false
	}
	r.m[key] = value
	return true
}

func (r *regMap[kT, vT]) Delete(key kT) {
	r.mu.Lock()
	delete(r.m, key)
	r.mu.Unlock()
}

func (r *regMap[kT, vT]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

// Range calls fn for each entry until fn returns false.
func (r *regMap[kT, vT]) Range(fn func(key kT, value vT) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k, v := range r.m {
		if !fn(k, v) {
			return
		}
	}
}
