package out

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"focuslog/internal/modules/tracker/domain"
	"focuslog/internal/platform/config"
)

// StaticClassifier marks configured programs and domains as productive.
// Programs match on full path or executable name; domains also match their subdomains.
type StaticClassifier struct {
	mu       sync.RWMutex
	programs map[string]struct{}
	domains  map[string]struct{}
}

func NewStaticClassifier(programs, domains []string) *StaticClassifier {
	c := &StaticClassifier{}
	c.Replace(programs, domains)
	return c
}

func (c *StaticClassifier) Replace(programs, domains []string) {
	p := make(map[string]struct{}, len(programs))
	for _, v := range programs {
		if v = strings.TrimSpace(v); v != "" {
			p[v] = struct{}{}
		}
	}
	d := make(map[string]struct{}, len(domains))
	for _, v := range domains {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			d[v] = struct{}{}
		}
	}
	c.mu.Lock()
	c.programs, c.domains = p, d
	c.mu.Unlock()
}

func (c *StaticClassifier) IsProductive(kind domain.Kind, identity string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch kind {
	case domain.KindProgram:
		if _, ok := c.programs[identity]; ok {
			return true
		}
		_, ok := c.programs[filepath.Base(identity)]
		return ok
	case domain.KindDomain:
		host := strings.ToLower(identity)
		for {
			if _, ok := c.domains[host]; ok {
				return true
			}
			dot := strings.IndexByte(host, '.')
			if dot < 0 {
				return false
			}
			host = host[dot+1:]
		}
	default:
		return false
	}
}

// WatchedClassifier reloads the productive lists whenever the config file changes.
type WatchedClassifier struct {
	*StaticClassifier
	path   string
	logger *slog.Logger
}

func NewWatchedClassifier(cfg config.Config, logger *slog.Logger) *WatchedClassifier {
	return &WatchedClassifier{
		StaticClassifier: NewStaticClassifier(cfg.ProductivePrograms, cfg.ProductiveDomains),
		path:             cfg.Path,
		logger:           logger,
	}
}

// Watch blocks until ctx is cancelled. The directory is watched so editors that
// replace the file on save are picked up.
func (c *WatchedClassifier) Watch(ctx context.Context) error {
	if c.path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	target := filepath.Clean(c.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				c.Reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("config watcher error", "error", err)
		}
	}
}

// Reload re-reads the config file; a broken file keeps the previous lists.
func (c *WatchedClassifier) Reload() {
	cfg, err := config.Load(c.path)
	if err != nil {
		c.logger.Warn("reload productive lists", "path", c.path, "error", err)
		return
	}
	c.Replace(cfg.ProductivePrograms, cfg.ProductiveDomains)
	c.logger.Info("productive lists reloaded", "programs", len(cfg.ProductivePrograms), "domains", len(cfg.ProductiveDomains))
}
