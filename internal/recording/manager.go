package recording

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"live-support/pkg/logger"

	"github.com/google/uuid"
)

type entry struct {
	key       Key
	pipeline  Pipeline
	basePath  string
	startedAt time.Time
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Manager owns the live recorders. Start and Stop on the same key are
// serialized; different keys proceed independently.
type Manager struct {
	factory PipelineFactory
	repo    Repository
	dir     string
	log     *slog.Logger
	clock   func() time.Time
	newID   func() string

	mu      sync.Mutex
	entries map[Key]*entry
	locks   map[Key]*keyLock
}

func NewManager(factory PipelineFactory, repo Repository, dir string, l *slog.Logger) *Manager {
	return &Manager{
		factory: factory,
		repo:    repo,
		dir:     dir,
		log:     logger.Component(l, "recording"),
		clock:   time.Now,
		newID:   uuid.NewString,
		entries: make(map[Key]*entry),
		locks:   make(map[Key]*keyLock),
	}
}

func (m *Manager) lockKey(k Key) (unlock func()) {
	m.mu.Lock()
	l := m.locks[k]
	if l == nil {
		l = &keyLock{}
		m.locks[k] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, k)
		}
		m.mu.Unlock()
	}
}

func (m *Manager) take(k Key) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[k]
	delete(m.entries, k)
	return e
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func (m *Manager) basePath(k Key) string {
	prefix := k.SessionID
	if !k.HasSession() {
		prefix = m.newID()
	}
	name := fmt.Sprintf("%s_%s_%s",
		unsafeName.ReplaceAllString(prefix, "-"),
		unsafeName.ReplaceAllString(k.Role, "-"),
		m.newID(),
	)
	return filepath.Join(m.dir, name)
}

// Start begins recording for k from an SDP offer and returns the answer.
// A recorder already live for k is finalized first.
func (m *Manager) Start(ctx context.Context, k Key, offer Description) (Description, error) {
	if offer.SDP == "" {
		return Description{}, ErrMissingOffer
	}
	if offer.Type == "" {
		offer.Type = "offer"
	}
	if offer.Type != "offer" {
		return Description{}, ErrBadOfferType
	}

	unlock := m.lockKey(k)
	defer unlock()

	if prev := m.take(k); prev != nil {
		if _, err := m.finalize(ctx, prev); err != nil {
			m.log.Warn("finalize previous recorder", "key", k.String(), "err", err)
		}
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return Description{}, fmt.Errorf("recordings dir: %w", err)
	}

	base := m.basePath(k)
	p, answer, err := m.factory.Start(ctx, base, offer)
	if err != nil {
		return Description{}, fmt.Errorf("start recorder: %w", err)
	}

	m.mu.Lock()
	m.entries[k] = &entry{key: k, pipeline: p, basePath: base, startedAt: m.clock().UTC()}
	m.mu.Unlock()

	m.log.Info("recording started", "key", k.String(), "base", base)
	return answer, nil
}

// Stop finalizes the recorder for k. ok is false when nothing was live.
func (m *Manager) Stop(ctx context.Context, k Key) (md Metadata, ok bool, err error) {
	unlock := m.lockKey(k)
	defer unlock()

	e := m.take(k)
	if e == nil {
		return Metadata{}, false, nil
	}
	md, err = m.finalize(ctx, e)
	return md, true, err
}

// finalize closes the pipeline and persists what it wrote. A close failure is
// logged only; the files on disk are still the recording.
func (m *Manager) finalize(ctx context.Context, e *entry) (Metadata, error) {
	if err := e.pipeline.Close(ctx); err != nil {
		m.log.Warn("close recorder", "key", e.key.String(), "err", err)
	}

	files := e.pipeline.Files()
	md := Metadata{
		ID:        m.newID(),
		SessionID: e.key.SessionID,
		Role:      e.key.Role,
		Files:     files,
		CreatedAt: m.clock().UTC(),
	}
	if len(files) > 0 {
		md.FilePath = files[0]
	}
	size, err := totalSize(files)
	if err != nil {
		return md, fmt.Errorf("stat recording: %w", err)
	}
	md.Size = size

	if !e.key.HasSession() {
		md.SessionID = ""
		m.log.Info("recording stopped", "key", e.key.String(), "size", size, "persisted", false)
		return md, nil
	}
	if m.repo != nil {
		if err := m.repo.Save(ctx, md); err != nil {
			return md, fmt.Errorf("save recording: %w", err)
		}
	}
	m.log.Info("recording stopped", "key", e.key.String(), "size", size, "persisted", true)
	return md, nil
}

func totalSize(files []string) (int64, error) {
	var total int64
	for _, f := range files {
		st, err := os.Stat(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return 0, err
		}
		total += st.Size()
	}
	return total, nil
}

// Recordings lists the persisted recordings of a session, oldest first.
func (m *Manager) Recordings(ctx context.Context, sessionID string) ([]Metadata, error) {
	if m.repo == nil {
		return []Metadata{}, nil
	}
	out, err := m.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	if out == nil {
		out = []Metadata{}
	}
	return out, nil
}

// Active returns the keys with a live recorder.
func (m *Manager) Active() []Key {
	m.mu.Lock()
	out := make([]Key, 0, len(m.entries))
	for k := range m.entries {
		out = append(out, k)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Close stops every live recorder.
func (m *Manager) Close(ctx context.Context) error {
	var errs []error
	for _, k := range m.Active() {
		if _, _, err := m.Stop(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
