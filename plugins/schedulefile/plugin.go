// Package schedulefile provides declarative automation for gorocrail.
// Actions are described in a TOML file and registered with the client;
// the file is watched and actions are reloaded on change, so schedules
// can be edited without restarting the process.
package schedulefile

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gorocrail/gorocrail/pkg/log"
	"github.com/gorocrail/gorocrail/pkg/rocrail"
)

// Plugin loads automation actions from a TOML schedule file and keeps
// them in sync with the file's contents.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	path          string
	debounceDelay time.Duration

	// Runtime state
	client     *rocrail.Client
	logger     log.Logger
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	debounce   *time.Timer
	registered []string
}

// Config holds configuration options for the schedule file plugin.
type Config struct {
	// DebounceDelay is the delay to wait after a file change before
	// reloading. Editors often produce several events per save.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a schedule file plugin reading from the given path.
func New(path string, cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		path:          path,
		debounceDelay: cfg.DebounceDelay,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "schedulefile"
}

// Initialize loads the schedule file and starts the change watcher.
// A missing or malformed file fails initialization; reload errors
// after a successful start keep the previous actions instead.
func (p *Plugin) Initialize(ctx context.Context, cfg rocrail.PluginConfig) error {
	p.mu.Lock()
	p.client = cfg.Client
	p.logger = cfg.Logger
	p.mu.Unlock()

	if p.path == "" {
		return fmt.Errorf("schedulefile: path not configured")
	}

	if err := p.reload(); err != nil {
		return fmt.Errorf("schedulefile: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	// Set the watch up before returning so that changes made as soon
	// as Initialize completes are not missed.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Error("schedule watcher: failed to create watcher", log.Err(err))
		return nil
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		p.logger.Error("schedule watcher: failed to watch directory", log.Err(err))
		return nil
	}

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	return nil
}

// Shutdown stops the watcher and removes the registered actions.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.unregisterLocked()
	return nil
}

// reload swaps the registered action set for the file's current
// contents. The file is fully parsed and compiled before anything is
// unregistered, so a broken edit never drops the running schedule.
func (p *Plugin) reload() error {
	actions, err := loadScheduleFile(p.path, p.client)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.unregisterLocked()
	for _, a := range actions {
		if err := p.client.Register(a); err != nil {
			return fmt.Errorf("register %q: %w", a.Name, err)
		}
		p.registered = append(p.registered, a.Name)
	}

	p.logger.Info("schedule loaded",
		log.String("path", p.path),
		log.Int("actions", len(actions)))
	return nil
}

func (p *Plugin) unregisterLocked() {
	for _, name := range p.registered {
		p.client.Unregister(name)
	}
	p.registered = nil
}

// watchLoop watches the schedule file's directory for changes. The
// directory is watched rather than the file so that rename-based saves
// keep working.
func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	base := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.debounceReload(p.debounceDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("schedule watcher: watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}

	p.debounce = time.AfterFunc(delay, func() {
		if err := p.reload(); err != nil {
			p.logger.Error("schedule reload failed, keeping previous actions",
				log.Err(err))
		}
	})
}

// Ensure Plugin implements rocrail.Plugin.
var _ rocrail.Plugin = (*Plugin)(nil)
