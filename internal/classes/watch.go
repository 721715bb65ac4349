package classes

import (
	"context"
	"log"
	"sort"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/funvibe/formula/internal/config"
	"github.com/funvibe/formula/internal/utils"
)

// Watcher reports class files changing on disk. Notifications arrive on
// a background goroutine; the registry itself is only touched by Apply,
// which the owner of the registry calls from its own goroutine.
type Watcher struct {
	r       *Registry
	fw      *fsnotify.Watcher
	changed chan string
}

// Watch starts watching the class directory until ctx is done. It needs
// a DirLoader.
func (r *Registry) Watch(ctx context.Context) (*Watcher, error) {
	dl, ok := r.loader.(*DirLoader)
	if !ok {
		return nil, errors.New("watching classes needs a directory loader")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating class watcher")
	}
	if err := fw.Add(dl.Dir); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "watching %s", dl.Dir)
	}
	w := &Watcher{r: r, fw: fw, changed: make(chan string, 64)}
	go w.loop(ctx)
	return w, nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.changed)
	defer w.fw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !config.HasClassExt(ev.Name) || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			select {
			case w.changed <- utils.ExtractClassName(ev.Name):
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("class watcher: %v", err)
		}
	}
}

// Changes delivers the names of changed classes. It is closed when the
// watcher stops.
func (w *Watcher) Changes() <-chan string {
	return w.changed
}

// Apply invalidates every class reported changed so far and returns
// their names.
func (w *Watcher) Apply() []string {
	seen := map[string]bool{}
	var names []string
drain:
	for {
		select {
		case n, ok := <-w.changed:
			if !ok {
				break drain
			}
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		default:
			break drain
		}
	}
	sort.Strings(names)
	for _, n := range names {
		w.r.Invalidate(n)
	}
	return names
}
