package sysusers

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/multiseat/userlist/internal/logging"
)

// Groups is a cached group-membership query over the group database. The
// cache is parsed lazily and invalidated when the file changes, so HasGroup
// stays a cheap synchronous check.
type Groups struct {
	path string
	log  logging.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	mu      sync.RWMutex
	members map[string]map[string]bool // group → usernames
	loaded  bool
}

// NewGroups starts watching the group database at path. Close releases the
// watcher.
func NewGroups(path string, log logging.Logger) (*Groups, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors and vipw-style tools replace the file,
	// which a watch on the file itself would lose track of.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	g := &Groups{
		path:    path,
		log:     log.With("module", "sysgroups"),
		watcher: watcher,
		done:    make(chan struct{}),
	}
	go g.watch()
	return g, nil
}

func (g *Groups) watch() {
	ctx := context.Background()
	for {
		select {
		case ev, ok := <-g.watcher.Events:
			if !ok {
				return
			}
			if ev.Name == g.path {
				g.log.Debug(ctx, "group database changed", "op", ev.Op.String())
				g.Invalidate()
			}
		case err, ok := <-g.watcher.Errors:
			if !ok {
				return
			}
			g.log.Warn(ctx, "group watch error", "error", err)
		case <-g.done:
			return
		}
	}
}

// Invalidate drops the cache; the next HasGroup reloads.
func (g *Groups) Invalidate() {
	g.mu.Lock()
	g.loaded = false
	g.members = nil
	g.mu.Unlock()
}

// HasGroup reports whether username is a member of group.
func (g *Groups) HasGroup(username, group string) bool {
	g.mu.RLock()
	if g.loaded {
		ok := g.members[group][username]
		g.mu.RUnlock()
		return ok
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.loaded {
		if err := g.load(); err != nil {
			g.log.Warn(context.Background(), "loading group database failed", "error", err)
			return false
		}
	}
	return g.members[group][username]
}

// load must run with g.mu held for writing.
func (g *Groups) load() error {
	fh, err := os.Open(g.path)
	if err != nil {
		return err
	}
	defer fh.Close()

	parsed, err := parseGroup(fh)
	if err != nil {
		return err
	}

	members := make(map[string]map[string]bool, len(parsed))
	for group, names := range parsed {
		set := make(map[string]bool, len(names))
		for _, n := range names {
			set[n] = true
		}
		members[group] = set
	}
	g.members = members
	g.loaded = true
	return nil
}

func (g *Groups) Close() error {
	close(g.done)
	return g.watcher.Close()
}
