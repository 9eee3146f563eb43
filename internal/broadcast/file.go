// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/jotline/jotline/internal/logger"
	"github.com/jotline/jotline/models"
)

const notifyFile = "notify.json"

// envelope is what actually lands in the notify file. Origin lets each
// instance drop its own writes when the watcher fires for them.
type envelope struct {
	Origin string         `json:"origin"`
	Cmd    models.Command `json:"cmd"`
}

// FileBroadcaster exchanges commands through a watched file in the replica
// directory. Every instance watching the same directory sees every write;
// writes carry the publisher's instance id so they can be filtered out on
// the way back in.
type FileBroadcaster struct {
	origin  string
	path    string
	log     *logger.Logger
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	closed bool

	cmds   chan models.Command
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Broadcaster = (*FileBroadcaster)(nil)

// NewFileBroadcaster starts watching dir for sibling publications. The
// directory is created if missing.
func NewFileBroadcaster(dir string, log *logger.Logger) (*FileBroadcaster, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create broadcast dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &FileBroadcaster{
		origin:  uuid.NewString(),
		path:    filepath.Join(dir, notifyFile),
		log:     log.WithComponent("broadcast"),
		watcher: watcher,
		cmds:    make(chan models.Command, 8),
		cancel:  cancel,
	}
	b.wg.Add(1)
	go b.watch(ctx)
	return b, nil
}

// Publish writes cmd to the notify file. The write is atomic via a rename
// so watchers never read a torn file.
func (b *FileBroadcaster) Publish(cmd models.Command) error {
	data, err := json.Marshal(envelope{Origin: b.origin, Cmd: cmd})
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write notify file: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("publish notify file: %w", err)
	}
	b.log.Debug().Str("cmd", cmd.Name).Msg("published")
	return nil
}

func (b *FileBroadcaster) Commands() <-chan models.Command { return b.cmds }

func (b *FileBroadcaster) watch(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != notifyFile {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			b.deliver(ctx)
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.log.Warn().Err(err).Msg("watch error")
		}
	}
}

func (b *FileBroadcaster) deliver(ctx context.Context) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		// Racing a sibling's rename; the next event retries.
		return
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		b.log.Warn().Err(err).Msg("bad notify payload")
		return
	}
	if env.Origin == b.origin {
		return
	}
	select {
	case b.cmds <- env.Cmd:
	case <-ctx.Done():
	}
}

// Close stops the watcher and closes the Commands channel.
func (b *FileBroadcaster) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	err := b.watcher.Close()
	b.wg.Wait()
	close(b.cmds)
	return err
}
