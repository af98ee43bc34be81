package gatelib

import (
	"log"
	"runtime/debug"
	"sync"
)

// safeGo runs fn in a goroutine with panic recovery. A panicking asset await
// or mutation loop must never take the whole run down or leave the fired
// flag inconsistent; the recovered value is logged and routed to onPanic.
// If wg is non-nil, it is decremented on completion (normal or panic).
func safeGo(l *log.Logger, wg *sync.WaitGroup, scope string, onPanic func(r interface{}), fn func()) {
	go func() {
		if wg != nil {
			defer wg.Done()
		}
		defer func() {
			if r := recover(); r != nil {
				if l != nil {
					l.Printf("PANIC [%s]: %v\n%s", scope, r, debug.Stack())
				}
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn()
	}()
}
