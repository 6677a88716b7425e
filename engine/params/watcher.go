package params

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// PresetWatcher watches a preset file and calls a callback when it is written or replaced.
// The directory is watched rather than the file, so atomic rename-over writes are seen.
type PresetWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func()
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewPresetWatcher starts watching path. onChange runs on the watcher goroutine; callers that
// touch frame state should only enqueue a command from it.
//
// Parameters:
//   - path: the preset file to watch
//   - onChange: the callback fired on write, create or rename of the file
//
// Returns:
//   - *PresetWatcher: the running watcher
//   - error: an error if the watcher cannot be created or the directory cannot be watched
func NewPresetWatcher(path string, onChange func()) (*PresetWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create preset watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("resolve preset path: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	pw := &PresetWatcher{
		watcher:  w,
		path:     abs,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	pw.wg.Add(1)
	go pw.loop()
	return pw, nil
}

func (pw *PresetWatcher) loop() {
	defer pw.wg.Done()
	for {
		select {
		case <-pw.done:
			return
		case ev, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != pw.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				if pw.onChange != nil {
					pw.onChange()
				}
			}
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[Presets] watcher error: %v", err)
		}
	}
}

// Close stops the watcher. Safe to call more than once.
func (pw *PresetWatcher) Close() error {
	var err error
	pw.once.Do(func() {
		close(pw.done)
		err = pw.watcher.Close()
		pw.wg.Wait()
	})
	return err
}
