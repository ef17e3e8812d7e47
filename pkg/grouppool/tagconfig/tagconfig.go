// Package tagconfig loads a YAML file describing a grouppool.Pool's
// desired tag reservations and keeps the running pool in sync with it
// by watching the file for changes, the way NoiseFS's pkg/sync
// FileWatcher debounces fsnotify events before acting on them.
package tagconfig

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/shadowmoose/grouppool/pkg/grouppool"
)

// Document is the on-disk shape of a tag-capacity config file:
//
//	useGenericSlots: true
//	tags:
//	  ingest: 4
//	  "":     8
type Document struct {
	UseGenericSlots bool        `yaml:"useGenericSlots"`
	Tags            map[string]int `yaml:"tags"`
}

// Load parses path into a Document.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("tagconfig: read %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("tagconfig: parse %s: %w", path, err)
	}
	return doc, nil
}

// Apply calls pool.Adjust once per tag in doc, returning the first
// error encountered (if any) after attempting every tag.
func Apply(pool *grouppool.Pool, doc Document) error {
	var firstErr error
	for name, size := range doc.Tags {
		if _, err := pool.Adjust(grouppool.Tag(name), size, doc.UseGenericSlots); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("tagconfig: adjust %q to %d: %w", name, size, err)
		}
	}
	return firstErr
}

// Watcher watches a tag-capacity config file and reapplies it to a
// Pool whenever it changes, debouncing rapid successive writes from
// editors that truncate-then-write.
type Watcher struct {
	path string
	pool *grouppool.Pool

	watcher *fsnotify.Watcher

	mu        sync.Mutex
	debounce  *time.Timer
	onApplyErr func(error)

	done chan struct{}
}

// NewWatcher starts watching path and applying it to pool on every
// change. onApplyErr, if non-nil, receives any error from a failed
// reapply (the watcher itself keeps running afterward).
func NewWatcher(path string, pool *grouppool.Pool, onApplyErr func(error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("tagconfig: create watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("tagconfig: watch %s: %w", path, err)
	}

	w := &Watcher{
		path:       path,
		pool:       pool,
		watcher:    fw,
		onApplyErr: onApplyErr,
		done:       make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.scheduleReload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.onApplyErr != nil {
				w.onApplyErr(fmt.Errorf("tagconfig: watch error: %w", err))
			}
		case <-w.done:
			return
		}
	}
}

// scheduleReload debounces bursts of write events (many editors
// truncate and rewrite a file across several fsnotify events) into a
// single reload 50ms after the last one.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(50*time.Millisecond, w.reload)
}

func (w *Watcher) reload() {
	doc, err := Load(w.path)
	if err != nil {
		if w.onApplyErr != nil {
			w.onApplyErr(err)
		}
		return
	}
	if err := Apply(w.pool, doc); err != nil && w.onApplyErr != nil {
		w.onApplyErr(err)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	w.mu.Lock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
