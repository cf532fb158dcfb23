// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package watch reports filesystem changes below a directory tree.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/z5labs/fnrun/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// IgnoredDirs are never watched.
var IgnoredDirs = []string{"node_modules", "vendor", "dist", "bin", ".git", ".hg", ".svn"}

// Ignored reports whether rel, a slash or OS separated path relative
// to the watched root, falls under an ignored directory or is hidden.
func Ignored(rel string) bool {
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == "" {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
		for _, dir := range IgnoredDirs {
			if part == dir {
				return true
			}
		}
	}
	return false
}

type options struct {
	logHandler slog.Handler
	ignore     func(string) bool
}

// Option
type Option func(*options)

// LogHandler
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// Ignore replaces [Ignored] as the filter deciding which paths are skipped.
func Ignore(f func(rel string) bool) Option {
	return func(o *options) {
		o.ignore = f
	}
}

// Watcher watches a directory recursively, picking up directories
// created after it started.
type Watcher struct {
	root   string
	log    *slog.Logger
	ignore func(string) bool
	fsw    *fsnotify.Watcher
}

// New starts watching root and every non ignored directory below it.
func New(root string, opts ...Option) (*Watcher, error) {
	o := &options{
		logHandler: logging.NoopHandler{},
		ignore:     Ignored,
	}
	for _, opt := range opts {
		opt(o)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:   abs,
		log:    slog.New(o.logHandler),
		ignore: o.ignore,
		fsw:    fsw,
	}
	err = w.addRecursive(abs)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run calls onChange for every relevant event until ctx is cancelled
// or the watcher is closed. Watch errors are logged and do not stop it.
func (w *Watcher) Run(ctx context.Context, onChange func(fsnotify.Event)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				w.watchIfDir(ev.Name)
			}
			w.log.DebugContext(ctx, "detected file change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			onChange(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.ErrorContext(ctx, "file watcher reported an error", logging.Error(err))
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return false
	}
	return !w.ignore(rel)
}

func (w *Watcher) watchIfDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	err = w.addRecursive(path)
	if err != nil {
		w.log.Error("failed to watch new directory", slog.String("path", path), logging.Error(err))
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// directories can disappear between the event and the walk
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		if w.ignore(rel) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}
