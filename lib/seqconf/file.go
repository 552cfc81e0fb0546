package seqconf

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

type fileSource struct {
	path  string
	lower bool

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFileSource creates a source that reads a properties file. Watch observes the parent
// directory, so editors that replace the file through a rename are picked up as well.
func NewFileSource(path string, lowerCaseKeys bool) ISource {
	if path == "" {
		path = DefaultFileName
	}
	return &fileSource{
		path:  filepath.Clean(path),
		lower: lowerCaseKeys,
		done:  make(chan struct{}),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see seqconf.ISource)
// --------------------------------------------------------------------------

func (s *fileSource) Load() (map[string]string, error) {
	return LoadProperties(s.path, s.lower)
}

func (s *fileSource) Watch(onChange func(map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return errors.New("file source is already watched")
	}
	select {
	case <-s.done:
		return errors.New("file source is closed")
	default:
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", s.path, err)
	}
	s.watcher = watcher

	s.wg.Add(1)
	go s.watch(watcher, onChange)
	return nil
}

func (s *fileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)

	var err error
	if s.watcher != nil {
		err = s.watcher.Close()
	}
	s.wg.Wait()
	return err
}

// --------------------------------------------------------------------------
// Watch Loop
// --------------------------------------------------------------------------

func (s *fileSource) watch(watcher *fsnotify.Watcher, onChange func(map[string]string)) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			mapping, err := s.Load()
			if err != nil {
				// a rename away from the path or a half written file, keep the current mapping
				Logger.Warningf("ignoring change of %s: %v", s.path, err)
				continue
			}
			Logger.Infof("sequence config %s changed, %d sequences", s.path, len(mapping))
			onChange(mapping)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			Logger.Errorf("watching %s failed: %v", s.path, err)
		}
	}
}
