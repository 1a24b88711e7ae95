// internal/services/session_service.go
package services

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/Corphon/CampaignStudio/internal/errors"
	"github.com/Corphon/CampaignStudio/internal/models"
	"github.com/Corphon/CampaignStudio/internal/utils"
)

// NotifierFactory builds the notification sink of a new session.
type NotifierFactory func(sessionID string) NotificationSink

// SessionService owns the live campaign sessions and expires idle ones.
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string]*CampaignSession

	deps        SessionDeps
	notifiers   NotifierFactory
	onEnd       []func(id string)
	defaultTone string
	ttl         time.Duration
}

// SessionServiceOption configures a SessionService.
type SessionServiceOption func(*SessionService)

// WithNotifierFactory adds a per-session notification sink next to the log notifier.
func WithNotifierFactory(f NotifierFactory) SessionServiceOption {
	return func(s *SessionService) { s.notifiers = f }
}

// WithDefaultTone sets the tone used when Create gets none.
func WithDefaultTone(tone string) SessionServiceOption {
	return func(s *SessionService) { s.defaultTone = tone }
}

// WithSessionTTL sets how long an unused session lives.
func WithSessionTTL(ttl time.Duration) SessionServiceOption {
	return func(s *SessionService) { s.ttl = ttl }
}

// NewSessionService creates an empty service. Call Start to begin idle expiry.
func NewSessionService(deps SessionDeps, opts ...SessionServiceOption) *SessionService {
	if deps.Locks == nil {
		deps.Locks = NewLockManager()
	}
	if deps.Metrics == nil {
		deps.Metrics = utils.NewPipelineMetrics(nil)
	}
	if deps.Logger == nil {
		deps.Logger = utils.GetLogger()
	}
	s := &SessionService{
		sessions:    make(map[string]*CampaignSession),
		deps:        deps,
		defaultTone: "professional",
		ttl:         2 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnEnd registers a hook run after a session is ended or expired.
func (s *SessionService) OnEnd(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = append(s.onEnd, fn)
}

// Create opens a new session for descriptor.
func (s *SessionService) Create(descriptor models.CampaignDescriptor, tone string) *CampaignSession {
	if tone == "" {
		tone = s.defaultTone
	}
	id := uuid.NewString()

	notifier := MultiNotifier{NewLogNotifier(s.deps.Logger, map[string]interface{}{"session_id": id})}
	if s.notifiers != nil {
		notifier = append(notifier, s.notifiers(id))
	}

	session := NewCampaignSession(id, descriptor, tone, notifier, s.deps)

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	s.deps.Locks.Touch(id)
	s.deps.Metrics.SessionOpened()
	s.deps.Logger.Info("campaign session created", map[string]interface{}{
		"session_id": id,
		"campaign":   session.Descriptor().Name,
	})
	return session
}

// Get returns a live session and marks it as used.
func (s *SessionService) Get(id string) (*CampaignSession, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.NewNotFoundError(fmt.Sprintf("session %s not found", id), nil)
	}
	s.deps.Locks.Touch(id)
	return session, nil
}

// End closes a session.
func (s *SessionService) End(id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	hooks := append([]func(string){}, s.onEnd...)
	s.mu.Unlock()

	if !ok {
		return appErrors.NewNotFoundError(fmt.Sprintf("session %s not found", id), nil)
	}
	s.deps.Locks.Remove(id)
	s.deps.Metrics.SessionClosed()
	for _, hook := range hooks {
		hook(id)
	}
	s.deps.Logger.Info("campaign session ended", map[string]interface{}{"session_id": id})
	return nil
}

// List returns the live session ids, sorted.
func (s *SessionService) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (s *SessionService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Start expires sessions idle for longer than the TTL.
func (s *SessionService) Start() {
	interval := s.ttl / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval <= 0 {
		interval = time.Second
	}
	s.deps.Locks.StartCleanup(interval, s.ttl, s.expire)
}

func (s *SessionService) expire(id string) {
	s.mu.RLock()
	_, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		s.deps.Locks.Remove(id)
		return
	}
	s.deps.Logger.Info("campaign session expired", map[string]interface{}{"session_id": id, "ttl": s.ttl.String()})
	_ = s.End(id)
}

// Stop ends idle expiry.
func (s *SessionService) Stop() {
	s.deps.Locks.Stop()
}
