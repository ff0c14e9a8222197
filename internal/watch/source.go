package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/maxkimambo/assetpipe/internal/logger"
	"github.com/maxkimambo/assetpipe/internal/matcher"
)

// EventKind classifies a change
type EventKind int

const (
	EventWrite EventKind = iota
	EventCreate
	EventRemove
	EventRename
)

// String returns a string representation of the EventKind
func (k EventKind) String() string {
	switch k {
	case EventCreate:
		return "create"
	case EventRemove:
		return "remove"
	case EventRename:
		return "rename"
	default:
		return "write"
	}
}

// Event is a change to a file, identified by its slash-separated path
// relative to the project directory
type Event struct {
	Path string
	Kind EventKind
}

// FSSource turns fsnotify notifications below a project directory into
// Events. Every directory under the static base of each pattern is watched,
// including directories created later.
type FSSource struct {
	root    string
	watcher *fsnotify.Watcher
	events  chan Event

	mu      sync.Mutex
	watched map[string]bool

	done      chan struct{}
	closeOnce sync.Once
}

// NewFSSource starts watching the directories the patterns can match in
func NewFSSource(root string, patterns []string) (*FSSource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	s := &FSSource{
		root:    root,
		watcher: w,
		events:  make(chan Event, 64),
		watched: make(map[string]bool),
		done:    make(chan struct{}),
	}

	for _, p := range patterns {
		if strings.HasPrefix(p, "!") {
			continue
		}
		base := filepath.Join(root, filepath.FromSlash(matcher.StaticBase(p)))
		if _, err := s.addTree(base); err != nil {
			w.Close()
			return nil, err
		}
	}

	go s.loop()
	return s, nil
}

// Events returns the channel changes are delivered on. It is closed by Close.
func (s *FSSource) Events() <-chan Event {
	return s.events
}

// Close stops watching
func (s *FSSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.watcher.Close()
	})
	return err
}

// addTree watches dir and every directory below it and returns the
// regular files found on the way. A missing dir is skipped so patterns may
// point at directories that do not exist yet.
func (s *FSSource) addTree(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			if d.Type().IsRegular() {
				files = append(files, p)
			}
			return nil
		}

		s.mu.Lock()
		seen := s.watched[p]
		s.watched[p] = true
		s.mu.Unlock()
		if seen {
			return nil
		}
		if err := s.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Op.WithFields(map[string]interface{}{"dir": dir}).Debug("Watching directory tree")
	return files, nil
}

func (s *FSSource) loop() {
	defer close(s.events)

	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handle(ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Op.WithFields(map[string]interface{}{"error": err.Error()}).Warn("File watcher error")
		}
	}
}

func (s *FSSource) handle(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			files, err := s.addTree(ev.Name)
			if err != nil {
				logger.Op.WithFields(map[string]interface{}{"error": err.Error()}).Warn("Cannot watch new directory")
			}
			// files written before the watch was registered have no event of their own
			for _, f := range files {
				s.emit(f, EventCreate)
			}
			return
		}
	}

	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		// the watch goes away with the directory; allow a re-add
		s.mu.Lock()
		delete(s.watched, ev.Name)
		s.mu.Unlock()
	}

	kind := EventWrite
	switch {
	case ev.Has(fsnotify.Create):
		kind = EventCreate
	case ev.Has(fsnotify.Remove):
		kind = EventRemove
	case ev.Has(fsnotify.Rename):
		kind = EventRename
	}

	s.emit(ev.Name, kind)
}

func (s *FSSource) emit(name string, kind EventKind) {
	rel, err := filepath.Rel(s.root, name)
	if err != nil {
		return
	}
	select {
	case s.events <- Event{Path: filepath.ToSlash(rel), Kind: kind}:
	case <-s.done:
	}
}
