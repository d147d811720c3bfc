// Package weights manages the scorer's coefficient set: the compiled-in
// default, an optional TOML override file, and hot-reload when that file
// changes on disk, picked up by an fsnotify watcher goroutine.
package weights

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"

	"github.com/shellmem/shellmem/internal/scorer"
	"github.com/shellmem/shellmem/internal/shellmemerr"
)

// overrideFile mirrors scorer.Weights but leaves every field a pointer so
// a TOML file can override a subset of coefficients without zeroing the
// rest. Fields use TOML's snake_case convention.
type overrideFile struct {
	Offset              *float64 `toml:"offset"`
	Age                 *float64 `toml:"age"`
	Length              *float64 `toml:"length"`
	Exit                *float64 `toml:"exit"`
	RecentFailure       *float64 `toml:"recent_failure"`
	SelectedDir         *float64 `toml:"selected_dir"`
	Dir                 *float64 `toml:"dir"`
	Overlap             *float64 `toml:"overlap"`
	ImmediateOverlap    *float64 `toml:"immediate_overlap"`
	SelectedOccurrences *float64 `toml:"selected_occurrences"`
	Occurrences         *float64 `toml:"occurrences"`
	OutputBias          *float64 `toml:"output_bias"`
	OutputWeight        *float64 `toml:"output_weight"`
}

func (o overrideFile) apply(base scorer.Weights) scorer.Weights {
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&base.Offset, o.Offset)
	set(&base.Age, o.Age)
	set(&base.Length, o.Length)
	set(&base.Exit, o.Exit)
	set(&base.RecentFailure, o.RecentFailure)
	set(&base.SelectedDir, o.SelectedDir)
	set(&base.Dir, o.Dir)
	set(&base.Overlap, o.Overlap)
	set(&base.ImmediateOverlap, o.ImmediateOverlap)
	set(&base.SelectedOccurrences, o.SelectedOccurrences)
	set(&base.Occurrences, o.Occurrences)
	set(&base.OutputBias, o.OutputBias)
	set(&base.OutputWeight, o.OutputWeight)
	return base
}

// Store holds the currently active weight set and, if a path was given,
// watches that file for writes and swaps the active set atomically.
type Store struct {
	path    string
	active  atomic.Value // scorer.Weights
	mu      sync.Mutex
	cancel  context.CancelFunc
	onError func(error)
}

// NewStore builds a Store seeded with scorer.Default. If path is
// non-empty and exists, it's loaded immediately; if it does not exist
// yet, the default stands until it appears. onError, if non-nil, is
// called whenever a load fails — synchronously from NewStore for the
// initial load (including a missing file), and from the watcher
// goroutine for a failed reload or a watcher error; the previous
// weights remain active in that case.
func NewStore(ctx context.Context, path string, onError func(error)) (*Store, error) {
	s := &Store{path: path, onError: onError}
	s.active.Store(scorer.Default)

	if path != "" {
		if err := s.reload(); err != nil {
			if onError != nil {
				onError(err)
			}
		}
		if err := s.watch(ctx); err != nil {
			return nil, shellmemerr.New(shellmemerr.KindEnvironment, "watch weights file", err)
		}
	}

	return s, nil
}

// Current returns the active weight set. Safe to call concurrently with
// a reload triggered by the file watcher.
func (s *Store) Current() scorer.Weights {
	return s.active.Load().(scorer.Weights)
}

func (s *Store) reload() error {
	var ov overrideFile
	if _, err := toml.DecodeFile(s.path, &ov); err != nil {
		return shellmemerr.New(shellmemerr.KindEnvironment, "parse weights override "+s.path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active.Store(ov.apply(scorer.Default))
	return nil
}

func (s *Store) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := s.reload(); err != nil && s.onError != nil {
						s.onError(err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if s.onError != nil {
					s.onError(err)
				}
			}
		}
	}()

	// Watch the containing directory rather than the file itself so a
	// reload survives editors that replace the file instead of writing
	// into it in place.
	return watcher.Add(dirOf(s.path))
}

// Close stops the background watcher, if one was started.
func (s *Store) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
