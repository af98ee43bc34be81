package server

import (
	"log"
	"sync"
)

// Pool tracks which connections are attached to which run. Broadcast writes
// go through each connection's SyncConn so streamed gate updates never
// interleave with request responses on the same wire.
type Pool struct {
	mu *sync.RWMutex
	m  map[string][]*SyncConn
	e  map[string]*Error
	l  *log.Logger
}

func NewPool(l *log.Logger) *Pool {
	if l == nil {
		l = log.Default()
	}
	return &Pool{
		mu: &sync.RWMutex{},
		m:  make(map[string][]*SyncConn),
		e:  make(map[string]*Error),
		l:  l,
	}
}

// AddRun registers a run with the pool. A nil conn registers the run with no
// attached connections, which keeps HasRun true for runs started over RPC.
func (p *Pool) AddRun(uid string, conn *SyncConn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn == nil {
		p.m[uid] = []*SyncConn{}
		return
	}
	p.m[uid] = []*SyncConn{conn}
}

// AddConnection attaches one more connection to a known run.
func (p *Pool) AddConnection(uid string, conn *SyncConn) {
	if conn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[uid] = append(p.m[uid], conn)
}

func (p *Pool) AddConnections(uid string, conns []*SyncConn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, conn := range conns {
		if conn == nil {
			continue
		}
		p.m[uid] = append(p.m[uid], conn)
	}
}

// HasRun reports whether the run is registered, attached or not.
func (p *Pool) HasRun(uid string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.m[uid]
	return ok
}

// Broadcast writes data to every connection attached to uid. Connections
// that fail are closed and dropped after the sweep; one dead client never
// blocks updates to the rest.
func (p *Pool) Broadcast(uid string, data []byte) error {
	p.mu.RLock()
	conns := make([]*SyncConn, len(p.m[uid]))
	copy(conns, p.m[uid])
	p.mu.RUnlock()

	var dead []*SyncConn
	var lastErr error
	for _, conn := range conns {
		if err := conn.Write(data); err != nil {
			dead = append(dead, conn)
			lastErr = err
		}
	}
	if dead != nil {
		p.discard(uid, dead)
	}
	return lastErr
}

// WriteError records a run error. A recorded critical error is never
// downgraded by a later warning.
func (p *Pool) WriteError(uid string, errType ErrorType, errMessage string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.e[uid]; ok && err.Type == ErrorTypeCritical && errType != ErrorTypeCritical {
		return
	}
	p.e[uid] = &Error{errType, errMessage}
}

// ForceWriteError overwrites any recorded error for the run.
func (p *Pool) ForceWriteError(uid string, errType ErrorType, errMessage string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.e[uid] = &Error{errType, errMessage}
}

func (p *Pool) GetError(uid string) *Error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.e[uid]
}

// DropRun forgets a run. Attached connections stay open; they belong to
// clients that may be following other runs.
func (p *Pool) DropRun(uid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, uid)
	delete(p.e, uid)
}

// discard closes dead connections and removes them from the run's slice.
func (p *Pool) discard(uid string, dead []*SyncConn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conns := p.m[uid]
	if conns == nil {
		return
	}
	kept := conns[:0]
	for _, conn := range conns {
		drop := false
		for _, d := range dead {
			if conn == d {
				drop = true
				break
			}
		}
		if drop {
			_ = conn.Conn.Close()
			continue
		}
		kept = append(kept, conn)
	}
	p.m[uid] = kept
}

func (p *Pool) removeConn(uid string, connIndex int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conns := p.m[uid]
	if connIndex < 0 || connIndex >= len(conns) {
		return
	}
	_ = conns[connIndex].Conn.Close()
	conns[connIndex] = conns[len(conns)-1]
	p.m[uid] = conns[:len(conns)-1]
}
