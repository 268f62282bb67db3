package prompt

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
)

// PersonaStore holds persona overrides discovered in a directory and keeps
// them current while Watch runs. It implements service.PersonaProvider.
type PersonaStore struct {
	dir      string
	personas map[valueobject.Language]*PersonaFile
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewPersonaStore creates a store over dir. Call Load to read it.
func NewPersonaStore(dir string, logger *zap.Logger) *PersonaStore {
	return &PersonaStore{
		dir:      dir,
		personas: make(map[valueobject.Language]*PersonaFile),
		logger:   logger.With(zap.String("component", "persona-store")),
	}
}

// Persona implements service.PersonaProvider.
func (s *PersonaStore) Persona(language valueobject.Language) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.personas[language]
	if !ok {
		return "", false
	}
	return p.Content, true
}

// Languages lists the languages with an override, sorted.
func (s *PersonaStore) Languages() []valueobject.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]valueobject.Language, 0, len(s.personas))
	for l := range s.personas {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Load rescans the directory. A missing directory clears all overrides;
// invalid files are logged and skipped.
func (s *PersonaStore) Load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	next := make(map[valueobject.Language]*PersonaFile)
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		p, err := ParsePersonaFile(path)
		if err != nil {
			s.logger.Warn("Skipping persona file", zap.String("path", path), zap.Error(err))
			continue
		}
		if cur, ok := next[p.Language]; ok && (cur.Priority > p.Priority ||
			(cur.Priority == p.Priority && cur.FilePath < p.FilePath)) {
			continue
		}
		next[p.Language] = p
	}

	s.mu.Lock()
	s.personas = next
	s.mu.Unlock()

	s.logger.Info("Personas loaded", zap.String("dir", s.dir), zap.Int("count", len(next)))
	return nil
}

// Watch reloads on any change in the directory until ctx is done.
// It returns immediately when the directory cannot be watched.
func (s *PersonaStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ".md") {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.Load(); err != nil {
				s.logger.Warn("Persona reload failed", zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("Persona watcher error", zap.Error(err))
		}
	}
}
