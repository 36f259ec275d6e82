package bridge

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watch reports creation of the device node so a pending backoff can be
// cut short. Without inotify the returned channel never fires.
func (l *Link) watch(ctx context.Context) <-chan struct{} {
	wake := make(chan struct{}, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		l.log.WithError(err).Debug("hotplug watch unavailable, using backoff only")
		return wake
	}
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		l.log.WithError(err).Debug("hotplug watch unavailable, using backoff only")
		w.Close()
		return wake
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Create) && filepath.Clean(ev.Name) == filepath.Clean(l.path) {
					select {
					case wake <- struct{}{}:
					default:
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.log.WithError(err).Debug("hotplug watch error")
			}
		}
	}()
	return wake
}
