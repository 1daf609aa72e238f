package buffer

import (
	"errors"
	"time"

	"github.com/fsnotify/fsnotify"
)

var errNoBackingFile = errors.New("buffer: watch requires a buffer loaded from a file")

// Watch starts watching the buffer's backing file for external
// modification, delivering events on ExternalChange(). Purely
// observational: it never mutates the buffer, and the caller decides
// what to do (warn the user, offer a reload). Calling Watch on a
// buffer with no backing path (new or from-bytes) is a no-op error.
func (b *Buffer) Watch() (stop func() error, err error) {
	if b.path == "" {
		return nil, errNoBackingFile
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(b.path); err != nil {
		watcher.Close()
		return nil, err
	}

	b.externalChange = make(chan ExternalChangeEvent, 1)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
					select {
					case b.externalChange <- ExternalChangeEvent{Path: b.path, At: time.Now()}:
					default:
						// A prior event is still unread; this is a
						// notification channel, not a queue, so drop.
					}
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return func() error {
		close(done)
		return watcher.Close()
	}, nil
}
