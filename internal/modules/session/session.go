// Package session owns the per-caller cache and workflow instances. Each
// authenticated (company, subject) pair gets its own snapshot, loaded on first
// use and dropped after a period of inactivity.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/georgemunganga/watchdealer-backend/internal/modules/cache"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/gateway"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/tenant"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/workflow"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Session is one caller's view of their company's data.
type Session struct {
	Cache    *cache.Cache
	Workflow *workflow.Engine
}

type key struct {
	tenant  tenant.ID
	subject string
}

func (k key) String() string { return string(k.tenant) + "/" + k.subject }

type entry struct {
	sess     *Session
	lastUsed time.Time
}

// Manager hands out sessions keyed by the authenticated caller.
type Manager struct {
	gw      gateway.Gateway
	idleTTL time.Duration
	now     func() time.Time

	// LoadTimeout bounds a first load, which runs detached from the request
	// that started it.
	LoadTimeout time.Duration

	mu       sync.Mutex
	sessions map[key]*entry
	loading  singleflight.Group
}

func NewManager(gw gateway.Gateway, idleTTL time.Duration) *Manager {
	return &Manager{
		gw:          gw,
		idleTTL:     idleTTL,
		now:         time.Now,
		LoadTimeout: 30 * time.Second,
		sessions:    make(map[key]*entry),
	}
}

func keyFrom(ctx context.Context) (key, error) {
	s, err := tenant.SessionFromContext(ctx)
	if err != nil {
		return key{}, err
	}
	return key{tenant: s.CompanyID, subject: s.Subject}, nil
}

// Get returns the caller's session, loading its cache on first use.
// Concurrent first requests from the same caller share one load.
func (m *Manager) Get(ctx context.Context) (*Session, error) {
	k, err := keyFrom(ctx)
	if err != nil {
		return nil, err
	}
	if s := m.lookup(k); s != nil {
		return s, nil
	}

	v, err, _ := m.loading.Do(k.String(), func() (any, error) {
		if s := m.lookup(k); s != nil {
			return s, nil
		}
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.LoadTimeout)
		defer cancel()
		c := cache.New(k.tenant, m.gw)
		if err := c.Load(lctx); err != nil {
			return nil, err
		}
		s := &Session{Cache: c, Workflow: workflow.New(c)}
		m.mu.Lock()
		m.sessions[k] = &entry{sess: s, lastUsed: m.now()}
		m.mu.Unlock()
		logger.FromContext(ctx).Debug("session opened",
			zap.String("company_id", string(k.tenant)), zap.String("subject", k.subject))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (m *Manager) lookup(k key) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[k]
	if !ok {
		return nil
	}
	e.lastUsed = m.now()
	return e.sess
}

// Reload refetches the caller's snapshot. A failed reload keeps the old one.
func (m *Manager) Reload(ctx context.Context) (*Session, error) {
	k, err := keyFrom(ctx)
	if err != nil {
		return nil, err
	}
	s := m.lookup(k)
	if s == nil {
		return m.Get(ctx)
	}
	if err := s.Cache.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Close drops the caller's session. A later Get loads a fresh snapshot.
func (m *Manager) Close(ctx context.Context) error {
	k, err := keyFrom(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, k)
	m.mu.Unlock()
	return nil
}

// Len reports the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many went.
func (m *Manager) Sweep() int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTTL)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.sessions {
		if e.lastUsed.Before(cutoff) {
			delete(m.sessions, k)
			n++
		}
	}
	return n
}

// Run sweeps on every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				logger.Get().Info("evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}
