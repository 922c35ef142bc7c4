package rocrail

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorocrail/gorocrail/pkg/conn"
	"github.com/gorocrail/gorocrail/pkg/frame"
	"github.com/gorocrail/gorocrail/pkg/log"
	"github.com/gorocrail/gorocrail/pkg/model"
	"github.com/gorocrail/gorocrail/pkg/sched"
)

// Client is a Rocrail server client that can be embedded in other
// applications. Use New() to create an instance, then Start() to
// connect.
type Client struct {
	config Config
	opts   options
	logger log.Logger

	lifecycle *lifecycle
	model     *model.Model

	mu      sync.RWMutex
	conn    *conn.Conn
	sched   *sched.Scheduler
	actions []*sched.Action
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a new Client with the given configuration.
// The instance is created in StateStopped; call Start() to connect.
// Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		config: cfg,
		opts:   o,
		logger: o.logger,
	}
	c.lifecycle = newLifecycle(o.logger, c.emitStateChange)
	c.model = model.New(c, o.logger)
	return c, nil
}

// Start connects to the server and begins dispatching documents.
// Returns an error if already running or if the connection fails.
// The provided context bounds the lifetime of the connection.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lifecycle.canStart() {
		return ErrAlreadyRunning
	}
	if err := c.lifecycle.transitionTo(StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.ctx = runCtx
	c.cancel = cancel

	nc := conn.New(conn.Config{
		Addr:        c.config.Addr(),
		DialTimeout: c.config.DialTimeout,
		ReadTimeout: c.config.ReadTimeout,
		StopTimeout: c.config.StopTimeout,
	}, c.logger)
	if c.opts.dialer != nil {
		nc.SetDialer(c.opts.dialer)
	}
	nc.SetShutdownInfo(c.model)
	nc.SetDocumentHandler(c.handleDocument)
	nc.OnUnexpectedDisconnect(c.handleUnexpectedDisconnect)

	s := sched.New(c.model, c.config.Scheduler, c.logger)
	for _, a := range c.actions {
		if err := s.Register(a); err != nil {
			s.Stop()
			cancel()
			_ = c.lifecycle.transitionTo(StateCrashed, "action registration failed")
			return err
		}
	}
	c.model.SetClockHandler(s.OnClockAdvanced)
	c.model.SetObjectHandler(s.OnObjectChanged)

	pluginCfg := PluginConfig{
		Host:   c.config.Host,
		Port:   c.config.Port,
		Client: c,
		Logger: c.logger,
	}
	for i, p := range c.opts.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			c.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			c.shutdownPlugins(i)
			s.Stop()
			cancel()
			_ = c.lifecycle.transitionTo(StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		c.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	if err := nc.Start(runCtx); err != nil {
		c.shutdownPlugins(len(c.opts.plugins))
		s.Stop()
		cancel()
		_ = c.lifecycle.transitionTo(StateCrashed, "connect failed")
		return err
	}

	c.conn = nc
	c.sched = s

	if c.config.RequestPlan {
		if err := c.model.Init(); err != nil {
			c.logger.Warn("plan request failed", log.Err(err))
		}
	}

	return c.lifecycle.transitionTo(StateRunning, "connected")
}

// Stop disconnects from the server and shuts down the scheduler.
// Outstanding action scripts are abandoned. The scheduler and plugin
// teardown is bounded by ShutdownTimeout; a teardown stuck in user code
// is abandoned. Returns nil on graceful shutdown, ErrShutdownTimeout
// if the reader or the teardown had to be forced.
func (c *Client) Stop() error {
	c.mu.Lock()

	if !c.lifecycle.canStop() {
		c.mu.Unlock()
		return ErrNotRunning
	}
	if err := c.lifecycle.transitionTo(StateStopping, "Stop() called"); err != nil {
		c.mu.Unlock()
		return err
	}

	nc := c.conn
	s := c.sched
	cancel := c.cancel
	c.conn = nil
	c.sched = nil
	c.mu.Unlock()

	// The scheduler waits on its monitor and plugins run arbitrary
	// shutdown code; track them as a worker so the wait can be bounded.
	c.lifecycle.addWorker()
	go func() {
		defer c.lifecycle.workerDone()
		if s != nil {
			s.Stop()
		}
		c.shutdownPlugins(len(c.opts.plugins))
	}()

	var stopErr error
	if nc != nil {
		stopErr = nc.Stop()
	}
	if cancel != nil {
		cancel()
	}

	teardownErr := c.lifecycle.waitWithTimeout(ShutdownTimeout)

	if errors.Is(stopErr, conn.ErrStopTimeout) || teardownErr != nil {
		_ = c.lifecycle.transitionTo(StateCrashed, "shutdown timeout")
		return ErrShutdownTimeout
	}
	_ = c.lifecycle.transitionTo(StateStopped, "graceful shutdown")
	return stopErr
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (c *Client) Status() State {
	return c.lifecycle.current()
}

// Model returns the layout model. The model is populated once the
// server's plan document arrives after Start.
func (c *Client) Model() *model.Model {
	return c.model
}

// Register adds an automation action. Actions survive a Stop/Start
// cycle; registering while running takes effect immediately.
func (c *Client) Register(a *sched.Action) error {
	c.wrapCallbacks(a)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sched != nil {
		if err := c.sched.Register(a); err != nil {
			return err
		}
	} else if a.Script == nil {
		return sched.ErrNilScript
	}
	c.actions = append(c.actions, a)
	return nil
}

// Actions returns the names of the registered actions, in registration
// order.
func (c *Client) Actions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.actions))
	for i, a := range c.actions {
		names[i] = a.Name
	}
	return names
}

// Unregister removes every action with the given name, from the live
// scheduler and from the set replayed on restart.
func (c *Client) Unregister(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := false
	if c.sched != nil {
		removed = c.sched.Unregister(name)
	}
	kept := c.actions[:0]
	for _, a := range c.actions {
		if a.Name == name {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	c.actions = kept
	return removed
}

// Send transmits a raw command body to the server. Most callers want
// the typed command methods on Client or on the model's objects.
func (c *Client) Send(msgType, body string) error {
	c.mu.RLock()
	nc := c.conn
	c.mu.RUnlock()
	if nc == nil {
		return conn.ErrNotConnected
	}
	return nc.Send(msgType, body)
}

func (c *Client) handleDocument(doc *frame.Document) {
	c.model.Decode(doc)
	if c.opts.eventHandler != nil {
		c.opts.eventHandler.OnDocument(DocumentEvent{Document: doc})
	}
}

func (c *Client) handleUnexpectedDisconnect() {
	snapshot := c.model.ExportState()

	// Detach so a later Start builds everything fresh. The conn's
	// reader is already winding down; only the scheduler needs an
	// explicit stop.
	c.mu.Lock()
	s := c.sched
	cancel := c.cancel
	c.conn = nil
	c.sched = nil
	c.mu.Unlock()
	if s != nil {
		s.Stop()
	}
	if cancel != nil {
		cancel()
	}

	_ = c.lifecycle.transitionTo(StateCrashed, "connection lost")
	if c.opts.eventHandler != nil {
		c.opts.eventHandler.OnUnexpectedDisconnect(DisconnectEvent{Snapshot: snapshot})
	}
}

func (c *Client) emitStateChange(previous, current State, reason string) {
	if c.opts.eventHandler == nil {
		return
	}
	c.opts.eventHandler.OnStateChange(StateChangeEvent{
		Previous: previous,
		Current:  current,
		Reason:   reason,
	})
}

// shutdownPlugins shuts down the first n plugins in reverse order.
func (c *Client) shutdownPlugins(n int) {
	ctx := context.Background()
	for i := n - 1; i >= 0; i-- {
		p := c.opts.plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			c.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
		} else {
			c.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}
}

// wrapCallbacks layers the OnActionDone event over an action's own
// callbacks.
func (c *Client) wrapCallbacks(a *sched.Action) {
	if c.opts.eventHandler == nil {
		return
	}
	name := a.Name
	onSuccess := a.OnSuccess
	onError := a.OnError
	a.OnSuccess = func(result interface{}, elapsed time.Duration) {
		if onSuccess != nil {
			onSuccess(result, elapsed)
		}
		c.opts.eventHandler.OnActionDone(ActionDoneEvent{Name: name, Elapsed: elapsed})
	}
	a.OnError = func(err error, elapsed time.Duration) {
		if onError != nil {
			onError(err, elapsed)
		}
		c.opts.eventHandler.OnActionDone(ActionDoneEvent{Name: name, Err: err, Elapsed: elapsed})
	}
}
