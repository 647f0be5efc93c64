package approval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// answerFile is the contract of a `<dir>/<stepID>.json` decision file.
type answerFile struct {
	Approved bool `json:"approved"`
}

// FileResponder resolves pending broker requests from JSON answer files
// dropped into a directory, so a human or an external tool can approve
// steps from outside the process. A file named `<stepID>.json` containing
// `{"approved": true}` approves that step.
type FileResponder struct {
	broker  *Broker
	dir     string
	watcher *fsnotify.Watcher
	done    chan struct{}
	errs    chan error
}

// NewFileResponder creates a responder watching dir, creating it first if
// needed.
func NewFileResponder(broker *Broker, dir string) (*FileResponder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create approval directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch approval directory: %w", err)
	}

	r := &FileResponder{
		broker:  broker,
		dir:     dir,
		watcher: watcher,
		done:    make(chan struct{}),
		errs:    make(chan error, 10),
	}

	// Answer files written before the watch began still count.
	r.scanExisting()

	go r.processEvents()
	return r, nil
}

// Errors returns the channel of watcher errors. Errors are dropped when
// the channel is full.
func (r *FileResponder) Errors() <-chan error {
	return r.errs
}

// Close stops watching. Pending requests stay pending.
func (r *FileResponder) Close() error {
	select {
	case <-r.done:
		return nil
	default:
	}
	close(r.done)
	return r.watcher.Close()
}

func (r *FileResponder) processEvents() {
	for {
		select {
		case <-r.done:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				r.tryResolve(event.Name)
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			select {
			case r.errs <- err:
			default:
			}
		}
	}
}

func (r *FileResponder) scanExisting() {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			r.tryResolve(filepath.Join(r.dir, entry.Name()))
		}
	}
}

// tryResolve parses an answer file and resolves the matching request.
// Partially written or foreign files are ignored; a later Write event
// retries them.
func (r *FileResponder) tryResolve(path string) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, ".json") {
		return
	}
	stepID := strings.TrimSuffix(name, ".json")

	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var answer answerFile
	if err := json.Unmarshal(data, &answer); err != nil {
		return
	}

	if r.broker.Resolve(stepID, answer.Approved) {
		// Consumed answers are removed so a re-run of the same step ID
		// asks again instead of silently reusing a stale decision.
		_ = os.Remove(path)
	}
}
