// SPDX-License-Identifier: MPL-2.0

package devserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce coalesces rapid filesystem events (editor temp-file
// writes, bundler output bursts) into a single rebuild.
const defaultDebounce = 500 * time.Millisecond

// watchIgnores are always excluded: VCS metadata, dependency caches, and
// the dist dir itself, which the rebuild writes into.
var watchIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/dist/**",
	"**/*.swp",
	"**/*~",
	"**/.DS_Store",
}

// Watch rebuilds the app and refreshes the server's manifest whenever a
// source file matching the fedfile's watch patterns changes. It blocks
// until ctx is cancelled.
func (s *Server) Watch(ctx context.Context, runner *BuildRunner) error {
	patterns := s.ff.Serve.WatchPatterns
	for _, pat := range patterns {
		if _, err := doublestar.Match(pat, ""); err != nil {
			return fmt.Errorf("invalid watch pattern %q: %w", pat, err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	baseDir, err := filepath.Abs(s.ff.Dir())
	if err != nil {
		return fmt.Errorf("resolve watch dir: %w", err)
	}
	if err := addWatchDirs(fsw, baseDir); err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		pending int
		timer   *time.Timer
	)

	rebuild := func() {
		if ctx.Err() != nil {
			return
		}
		mu.Lock()
		n := pending
		pending = 0
		mu.Unlock()
		if n == 0 {
			return
		}

		s.logger.Info("source changed, rebuilding", "events", n)
		if runner != nil {
			if err := runner.Run(ctx); err != nil {
				s.logger.Error("rebuild failed", "err", err)
				return
			}
		}
		if err := s.Refresh(); err != nil {
			s.logger.Error("manifest refresh failed", "err", err)
		}
	}

	s.logger.Info("watching for changes", "dir", baseDir, "patterns", patterns)

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			return nil

		case evt, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watch: event channel closed")
			}

			if !s.handleWatchEvent(fsw, baseDir, patterns, evt) {
				continue
			}

			mu.Lock()
			pending++
			if timer == nil {
				timer = time.AfterFunc(defaultDebounce, rebuild)
			} else {
				timer.Reset(defaultDebounce)
			}
			mu.Unlock()

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: error channel closed")
			}
			s.logger.Warn("watch error", "err", err)
		}
	}
}

// handleWatchEvent extends the watch to directories created after startup
// and reports whether the event should trigger a rebuild. Directory
// registration happens before the pattern filter: file globs like
// "src/**/*.jsx" never match a bare directory path, but files created
// inside the new directory still have to be seen.
func (s *Server) handleWatchEvent(fsw *fsnotify.Watcher, baseDir string, patterns []string, evt fsnotify.Event) bool {
	rel, err := filepath.Rel(baseDir, evt.Name)
	if err != nil {
		rel = evt.Name
	}

	if evt.Has(fsnotify.Create) && !watchIgnored(rel) {
		if info, statErr := os.Stat(evt.Name); statErr == nil && info.IsDir() {
			if addErr := fsw.Add(evt.Name); addErr != nil {
				s.logger.Warn("watch new directory", "dir", evt.Name, "err", addErr)
			}
		}
	}

	return watchMatches(patterns, rel)
}

// addWatchDirs registers every non-ignored directory under baseDir.
func addWatchDirs(fsw *fsnotify.Watcher, baseDir string) error {
	return filepath.WalkDir(baseDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // skip inaccessible paths
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(baseDir, path)
		if err != nil {
			return nil
		}
		if watchIgnored(rel) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch directory %q: %w", path, err)
		}
		return nil
	})
}

// watchIgnored reports whether a base-relative path matches a built-in
// ignore pattern.
func watchIgnored(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range watchIgnores {
		if ok, err := doublestar.Match(pat, normalized); err == nil && ok {
			return true
		}
	}
	return false
}

// watchMatches reports whether a base-relative path triggers a rebuild.
// With no configured patterns every non-ignored path matches.
func watchMatches(patterns []string, rel string) bool {
	if watchIgnored(rel) {
		return false
	}
	if len(patterns) == 0 {
		return true
	}
	normalized := filepath.ToSlash(rel)
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, normalized); err == nil && ok {
			return true
		}
	}
	return false
}
