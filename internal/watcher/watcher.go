// Package watcher reloads the gateway's configuration file when it changes on
// disk, swapping the shared config.Store pointer so handlers observe the new
// values without a restart.
package watcher

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/copilotgw/gateway/internal/config"
)

// Watcher watches a single config file and reloads it into a config.Store on
// every write event.
type Watcher struct {
	path   string
	store  *config.Store
	fsw    *fsnotify.Watcher
	closed chan struct{}
}

// New starts watching configPath, reloading into store on change. Callers
// must call Close when done.
func New(configPath string, store *config.Store) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(configPath)
	if err = fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{path: filepath.Clean(configPath), store: store, fsw: fsw, closed: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := config.LoadConfig(w.path)
			if err != nil {
				log.Warnf("config reload failed, keeping previous config: %v", err)
				continue
			}
			w.store.Set(cfg)
			log.Infof("config reloaded from %s", w.path)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warnf("config watcher error: %v", err)
		case <-w.closed:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.closed)
	return w.fsw.Close()
}
