// Package presence tracks which users currently hold a live push
// connection. The registry is process-local: it is rebuilt from live
// connections after a restart, clients simply reconnect.
package presence

import (
	"sync"

	"go.uber.org/zap"
)

// Conn is one live push connection. Send must never block: it enqueues
// the event for the connection's writer and reports whether the event
// was accepted.
type Conn interface {
	Send(event string, payload any) bool
	Close()
}

// Registry keeps at most one connection per user. A new registration
// for an already-registered user replaces (and closes) the old handle.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
	log   *zap.SugaredLogger
}

func NewRegistry(log *zap.SugaredLogger) *Registry {
	return &Registry{
		conns: make(map[string]Conn),
		log:   log,
	}
}

func (r *Registry) Register(mobile string, c Conn) {
	r.mu.Lock()
	old := r.conns[mobile]
	r.conns[mobile] = c
	r.mu.Unlock()

	if old != nil && old != c {
		old.Close()
		r.log.Debugw("replaced live connection", "user", mobile)
	}
}

// Unregister removes the user's connection, but only if c is still the
// registered handle. A connection that was already replaced must not
// tear down its successor.
func (r *Registry) Unregister(mobile string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[mobile]; ok && cur == c {
		delete(r.conns, mobile)
	}
}

func (r *Registry) IsOnline(mobile string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[mobile]
	return ok
}

// Notify delivers an event to the user's connection if one exists.
// Offline users are a silent no-op; they reconcile on their next fetch.
func (r *Registry) Notify(mobile, event string, payload any) bool {
	r.mu.RLock()
	c, ok := r.conns[mobile]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if !c.Send(event, payload) {
		r.log.Warnw("push event dropped", "user", mobile, "event", event)
		return false
	}
	return true
}
