package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"agenthub/internal/domain"
)

// reloadDebounce coalesces the burst of events editors emit on save.
const reloadDebounce = 100 * time.Millisecond

// FileStore serves a read-only catalog from a YAML or JSON agents file.
// Call Watch to pick up edits without a restart.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	agents []domain.Agent

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewFileStore loads path and returns a store over its contents.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FileStore{path: path, logger: logger, done: make(chan struct{})}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the agents file. On error the previous contents are kept.
func (s *FileStore) Reload() error {
	agents, err := LoadAgentsFile(s.path)
	if err != nil {
		return err
	}
	for i := range agents {
		if agents[i].ID == "" {
			agents[i].ID = slugify(agents[i].Name)
		}
	}
	s.mu.Lock()
	s.agents = agents
	s.mu.Unlock()
	return nil
}

// slugify derives an ID for file entries that omit one.
func slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// Watch reloads the catalog whenever the agents file changes. It returns once
// the watcher is running; reloading stops when ctx is done or Close is called.
func (s *FileStore) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory so atomic rename-on-save is seen.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}
	s.watcher = w
	go s.loop(ctx, w)
	return nil
}

func (s *FileStore) loop(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()
	base := filepath.Base(s.path)
	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			if err := s.Reload(); err != nil {
				s.logger.Warn("agents file reload failed", "path", s.path, "error", err)
				continue
			}
			s.logger.Info("agents file reloaded", "path", s.path)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("agents file watcher error", "error", err)
		}
	}
}

// Close stops the watcher, if any.
func (s *FileStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *FileStore) snapshot() []domain.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agents
}

// MasterAgent returns the first active master in file order.
func (s *FileStore) MasterAgent(_ context.Context) (*domain.Agent, error) {
	for _, a := range s.snapshot() {
		if a.IsMaster && a.IsActive {
			return &a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *FileStore) Specialists(_ context.Context) ([]domain.Agent, error) {
	out := []domain.Agent{}
	for _, a := range s.snapshot() {
		if a.IsSpecialist() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *FileStore) List(_ context.Context, activeOnly bool) ([]domain.Agent, error) {
	out := []domain.Agent{}
	for _, a := range s.snapshot() {
		if !activeOnly || a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *FileStore) Get(_ context.Context, id string) (*domain.Agent, error) {
	for _, a := range s.snapshot() {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, domain.NewDomainError("FileStore.Get", domain.ErrNotFound, "agent "+id)
}

// Count returns the number of agents in the file.
func (s *FileStore) Count(_ context.Context) (int, error) {
	return len(s.snapshot()), nil
}

const readOnly = "file catalog is read-only"

func (s *FileStore) Create(context.Context, *domain.Agent) error {
	return domain.NewDomainError("FileStore.Create", domain.ErrForbidden, readOnly)
}

func (s *FileStore) Update(context.Context, *domain.Agent) error {
	return domain.NewDomainError("FileStore.Update", domain.ErrForbidden, readOnly)
}

func (s *FileStore) Delete(context.Context, string) error {
	return domain.NewDomainError("FileStore.Delete", domain.ErrForbidden, readOnly)
}

var _ domain.AgentStore = (*FileStore)(nil)
