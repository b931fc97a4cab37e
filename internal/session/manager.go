package session

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	tderrors "github.com/coachgrid/tabledit/internal/errors"
	"github.com/coachgrid/tabledit/internal/journal"
	"github.com/coachgrid/tabledit/internal/normalize"
	"github.com/coachgrid/tabledit/internal/notify"
	"github.com/coachgrid/tabledit/internal/observability"
	"github.com/coachgrid/tabledit/internal/schema"
	"github.com/coachgrid/tabledit/internal/snapshot"
	"github.com/coachgrid/tabledit/internal/source"
	"github.com/coachgrid/tabledit/internal/storage"
	"github.com/coachgrid/tabledit/internal/table"
	"github.com/coachgrid/tabledit/internal/validation"
	"github.com/coachgrid/tabledit/pkg/types"
)

// Config holds session manager settings.
type Config struct {
	// TTL is how long an idle session is kept.
	TTL time.Duration
	// EvictInterval is how often idle sessions are looked for.
	EvictInterval time.Duration
	// MaxSessions caps open sessions; zero means unlimited.
	MaxSessions int
	// JournalDir holds edit session journals. Empty disables journaling.
	JournalDir string
	// JournalSegmentSize is the journal segment rotation size in bytes.
	JournalSegmentSize int64
	// NormalizeOnEdit stores edited values in normalized form.
	NormalizeOnEdit bool
	// SnapshotCacheSize is the in-memory budget for fetched snapshot
	// objects in bytes. Zero disables the cache.
	SnapshotCacheSize int64
}

// DefaultConfig returns the default session settings.
func DefaultConfig() Config {
	return Config{
		TTL:                30 * time.Minute,
		EvictInterval:      time.Minute,
		JournalSegmentSize: 4 * 1024 * 1024,
		SnapshotCacheSize:  32 * 1024 * 1024,
	}
}

// Deps are the collaborators of a Manager. Objects and Metrics are optional.
type Deps struct {
	Registry *schema.Registry
	Source   *source.Store
	Notifier *notify.Notifier
	Objects  storage.ObjectStorage
	Metrics  *observability.Metrics
	Stats    *observability.EditStats
}

// Manager owns every open session.
type Manager struct {
	cfg      Config
	registry *schema.Registry
	source   *source.Store
	notifier *notify.Notifier
	metrics  *observability.Metrics
	stats    *observability.EditStats
	snapW    *snapshot.Writer
	snapR    *snapshot.Reader

	mu       sync.RWMutex
	sessions map[string]*Session

	sub    *notify.Subscriber
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewManager creates a manager. Call Start to run its background loops.
func NewManager(cfg Config, deps Deps) *Manager {
	m := &Manager{
		cfg:      cfg,
		registry: deps.Registry,
		source:   deps.Source,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		stats:    deps.Stats,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
	if deps.Objects != nil {
		m.snapW = snapshot.NewWriter(deps.Objects)
		m.snapR = snapshot.NewReader(deps.Objects)
		if cfg.SnapshotCacheSize > 0 {
			m.snapR.WithCache(snapshot.NewCache(cfg.SnapshotCacheSize))
		}
	}
	return m
}

// Start recovers journaled edit sessions and starts the eviction loop and
// the source refresh listener.
func (m *Manager) Start(ctx context.Context) error {
	if _, err := m.Recover(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if m.notifier != nil {
		m.sub = m.notifier.Subscribe()
		m.wg.Add(1)
		go m.listen(ctx, m.sub.Ch)
	}
	if m.cfg.TTL > 0 && m.cfg.EvictInterval > 0 {
		m.wg.Add(1)
		go m.evictLoop(ctx)
	}
	return nil
}

// Stop halts the background loops and closes every session. Journals of
// sessions with unsaved changes are kept for the next Start.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.sub != nil {
		m.notifier.Unsubscribe(m.sub.ID)
	}
	m.wg.Wait()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		m.release(s, false)
	}
}

// OpenEdit opens an edit session over the current source rows of a table.
func (m *Manager) OpenEdit(ctx context.Context, tableName string) (*View, error) {
	s, err := m.newEditSession(ctx, tableName, uuid.NewString())
	if err != nil {
		return nil, err
	}
	if err := m.add(s); err != nil {
		m.release(s, true)
		return nil, err
	}
	log.Printf("session: opened edit session %s on %s", s.ID, tableName)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(), nil
}

// OpenCreate opens a create session for a table.
func (m *Manager) OpenCreate(ctx context.Context, tableName string) (*View, error) {
	def, err := m.registry.Get(tableName)
	if err != nil {
		return nil, err
	}
	v, err := def.Validator()
	if err != nil {
		return nil, err
	}
	opts := m.tableOptions(v)
	ct, err := table.NewCreateTable[types.Record](def.Columns, opts...)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:       uuid.NewString(),
		Table:    tableName,
		Mode:     ModeCreate,
		def:      def,
		create:   ct,
		lastUsed: m.now(),
	}
	if err := m.add(s); err != nil {
		return nil, err
	}
	log.Printf("session: opened create session %s on %s", s.ID, tableName)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(), nil
}

// View returns the current state of a session.
func (m *Manager) View(id string) (*View, error) {
	var out *View
	err := m.with(id, func(s *Session) error {
		out = s.view()
		return nil
	})
	return out, err
}

// Close discards a session and its journal.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return errNotFound(id)
	}
	m.release(s, true)
	log.Printf("session: closed %s", id)
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Recover reopens every journaled edit session found in the journal
// directory and replays its operations over the current source rows.
// Journals of tables that are no longer defined are left alone.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	if m.cfg.JournalDir == "" {
		return 0, nil
	}
	tables, err := os.ReadDir(m.cfg.JournalDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("session: failed to read journal directory: %w", err)
	}

	var recovered int
	for _, td := range tables {
		if !td.IsDir() {
			continue
		}
		if _, err := m.registry.Get(td.Name()); err != nil {
			log.Printf("session: skipping journals of unknown table %s", td.Name())
			continue
		}
		dirs, err := os.ReadDir(filepath.Join(m.cfg.JournalDir, td.Name()))
		if err != nil {
			return recovered, fmt.Errorf("session: failed to read journal directory: %w", err)
		}
		for _, sd := range dirs {
			if !sd.IsDir() {
				continue
			}
			s, err := m.newEditSession(ctx, td.Name(), sd.Name())
			if err != nil {
				log.Printf("session: failed to recover %s/%s: %v", td.Name(), sd.Name(), err)
				continue
			}
			entries, err := s.journal.Entries()
			if err != nil {
				log.Printf("session: failed to read journal of %s: %v", s.ID, err)
				m.release(s, false)
				continue
			}
			stats := journal.Replay(entries, s.edit)
			if err := m.add(s); err != nil {
				m.release(s, false)
				return recovered, err
			}
			recovered++
			log.Printf("session: recovered %s on %s (%d applied, %d skipped)",
				s.ID, s.Table, stats.Applied, stats.Skipped)
		}
	}
	return recovered, nil
}

func (m *Manager) newEditSession(ctx context.Context, tableName, id string) (*Session, error) {
	def, err := m.registry.Get(tableName)
	if err != nil {
		return nil, err
	}
	v, err := def.Validator()
	if err != nil {
		return nil, err
	}
	rows, err := m.source.Load(ctx, tableName)
	if err != nil {
		return nil, err
	}
	et, err := table.NewEditTable[types.Record](def.Columns, rows, m.tableOptions(v)...)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:       id,
		Table:    tableName,
		Mode:     ModeEdit,
		def:      def,
		edit:     et,
		lastUsed: m.now(),
	}
	if m.cfg.JournalDir != "" {
		j, err := journal.Open(filepath.Join(m.cfg.JournalDir, tableName, id), m.cfg.JournalSegmentSize)
		if err != nil {
			return nil, err
		}
		s.journal = j
	}
	return s, nil
}

func (m *Manager) tableOptions(v *validation.Validator[types.Record]) []table.Option[types.Record] {
	opts := []table.Option[types.Record]{table.WithMapper[types.Record](normalize.RecordMapper{})}
	if v != nil {
		opts = append(opts, table.WithValidator(v))
	}
	if m.cfg.NormalizeOnEdit {
		opts = append(opts, table.WithNormalizeOnEdit[types.Record]())
	}
	return opts
}

func (m *Manager) add(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return tderrors.NewSessionError(tderrors.CodeSessionLimit,
			fmt.Sprintf("session limit of %d reached", m.cfg.MaxSessions))
	}
	m.sessions[s.ID] = s
	s.counted = m.metrics != nil
	if s.counted {
		m.metrics.OpenSessions.WithLabelValues(string(s.Mode)).Inc()
	}
	return nil
}

// release closes a session that is no longer registered. The journal is
// deleted when discard is set or nothing is left unsaved.
func (m *Manager) release(s *Session, discard bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	if s.counted {
		m.metrics.OpenSessions.WithLabelValues(string(s.Mode)).Dec()
	}
	if s.journal == nil {
		return
	}
	var err error
	if discard || !s.hasUnsavedChanges() {
		err = s.journal.Remove()
	} else {
		err = s.journal.Close()
	}
	if err != nil {
		log.Printf("session: failed to close journal of %s: %v", s.ID, err)
	}
}

// with runs fn on a session under its lock.
func (m *Manager) with(id string, fn func(s *Session) error) error {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return errNotFound(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errNotFound(id)
	}
	s.lastUsed = m.now()
	return fn(s)
}

func (m *Manager) evictLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.EvictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.EvictIdle(); n > 0 {
				log.Printf("session: evicted %d idle sessions", n)
			}
			if m.stats != nil {
				m.stats.Prune()
			}
		}
	}
}

// EvictIdle closes sessions idle for longer than the TTL. Session locks are
// never taken while the manager lock is held.
func (m *Manager) EvictIdle() int {
	threshold := m.now().Add(-m.cfg.TTL)

	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	var idle []*Session
	for _, s := range all {
		s.mu.Lock()
		expired := s.lastUsed.Before(threshold)
		s.mu.Unlock()
		if expired {
			idle = append(idle, s)
		}
	}
	if len(idle) == 0 {
		return 0
	}

	m.mu.Lock()
	evicted := idle[:0]
	for _, s := range idle {
		if m.sessions[s.ID] == s {
			delete(m.sessions, s.ID)
			evicted = append(evicted, s)
		}
	}
	m.mu.Unlock()

	for _, s := range evicted {
		m.release(s, false)
	}
	return len(evicted)
}

func errNotFound(id string) error {
	return tderrors.NewSessionError(tderrors.CodeSessionNotFound, fmt.Sprintf("session %q not found", id))
}
