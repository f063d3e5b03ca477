package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/response-guard/internal/memory"
)

// closeConcurrency bounds parallel snapshot saves in CloseAll.
const closeConcurrency = 4

// Manager owns the open sessions of a process. Each session gets its own
// memory store, loaded from the persister on first use.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	persister Persister
	memOpts   memory.Options
	log       *zap.Logger
}

// NewManager creates a manager. ps may be nil for memory-only sessions.
func NewManager(ps Persister, opts memory.Options, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		sessions:  map[string]*Session{},
		persister: ps,
		memOpts:   opts,
		log:       log,
	}
}

// Open returns the session with id, loading its snapshot if it is not open
// yet. A failed load is logged and the session starts empty.
func (m *Manager) Open(ctx context.Context, id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s
	}
	mem := memory.New(m.memOpts)
	if m.persister != nil {
		snap, err := m.persister.Load(ctx, id)
		if err != nil {
			m.log.Warn("load session memory, starting empty", zap.String("session", id), zap.Error(err))
		} else if !snap.Empty() {
			mem.Restore(snap)
		}
	}
	s := NewSession(id, mem)
	m.sessions[id] = s
	return s
}

// Sessions returns the IDs of open sessions, sorted.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close saves and forgets one session.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.save(ctx, s)
}

// CloseAll saves and forgets every open session.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	open := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(closeConcurrency)
	for _, s := range open {
		g.Go(func() error { return m.save(ctx, s) })
	}
	return g.Wait()
}

func (m *Manager) save(ctx context.Context, s *Session) error {
	if m.persister == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := m.persister.Save(ctx, s.ID, s.mem.Snapshot()); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}
