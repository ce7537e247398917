package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/lessonstream/internal/logger"
	"github.com/abhisek/lessonstream/internal/session"
)

// Registry holds the live sessions of this process. Sessions that are not
// touched for ttl are reset and dropped.
type Registry struct {
	ttl time.Duration
	log *logger.Logger
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	ctrl     *session.Controller
	lastSeen time.Time
}

func NewRegistry(ttl time.Duration, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		ttl:      ttl,
		log:      log.Named("registry"),
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// NewID returns a fresh session id.
func (r *Registry) NewID() string {
	return uuid.NewString()
}

func (r *Registry) Add(ctrl *session.Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[ctrl.ID()] = &entry{ctrl: ctrl, lastSeen: r.now()}
}

// Get returns the session and marks it as used.
func (r *Registry) Get(id string) (*session.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.ctrl, true
}

// Remove resets and drops the session. It reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		e.ctrl.Reset()
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the ttl and returns how many
// it dropped.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)
	var expired []*session.Controller

	r.mu.Lock()
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e.ctrl)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, ctrl := range expired {
		ctrl.Reset()
		r.log.Debug("session expired", "session", ctrl.ID())
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done, then resets every session.
func (r *Registry) Run(ctx context.Context) {
	if r.ttl > 0 {
		interval := r.ttl / 4
		if interval < time.Second {
			interval = time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					r.log.Info("expired idle sessions", "count", n)
				}
			case <-ctx.Done():
				break loop
			}
		}
	} else {
		<-ctx.Done()
	}
	r.closeAll()
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()
	for _, e := range all {
		e.ctrl.Reset()
	}
}
