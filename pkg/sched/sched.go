package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gorocrail/gorocrail/pkg/condition"
	"github.com/gorocrail/gorocrail/pkg/log"
	"github.com/gorocrail/gorocrail/pkg/model"
)

var (
	// ErrActionTimeout is delivered to OnError when a script exceeds
	// its timeout. The script keeps running until it observes its
	// context; there is no preemption.
	ErrActionTimeout = errors.New("action timed out")

	// ErrNilScript is returned by Register for an action without a script.
	ErrNilScript = errors.New("action has no script")

	// ErrStopped is returned by Register after Stop.
	ErrStopped = errors.New("scheduler is stopped")
)

// Config holds scheduler tuning knobs.
type Config struct {
	// Workers is the size of the script worker pool.
	Workers int

	// QueueSize bounds pending script submissions. A full queue drops
	// the submission with a log entry rather than stalling the reader.
	QueueSize int

	// PollInterval is the monitor loop cadence.
	PollInterval time.Duration

	// DefaultTimeout applies to actions registered with Timeout == 0.
	DefaultTimeout time.Duration
}

// SetDefaults fills zero fields with sane values.
func (c *Config) SetDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 16
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 60 * time.Second
	}
}

// task is one submitted script run, tracked by the monitor until its
// callback fires or its timeout abandons it.
type task struct {
	id        string
	action    *Action
	ctx       context.Context
	cancel    context.CancelFunc
	submitted time.Time

	done    chan struct{}
	dropped bool
	result  interface{}
	err     error
}

// Scheduler matches registered actions against fast-clock ticks and
// object updates, runs their scripts on a bounded worker pool, and
// enforces per-action timeouts from a single monitor loop.
type Scheduler struct {
	cfg    Config
	model  *model.Model
	eval   *condition.Evaluator
	logger log.Logger

	mu           sync.Mutex
	timeActions  []*Action
	eventActions []*Action
	stopped      bool

	tasks       chan *task
	trackCh     chan *task
	stopCh      chan struct{}
	stopOnce    sync.Once
	monitorDone chan struct{}
}

// New creates a scheduler bound to m and starts its worker pool and
// monitor loop. The logger may be nil.
func New(m *model.Model, cfg Config, logger log.Logger) *Scheduler {
	cfg.SetDefaults()
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	s := &Scheduler{
		cfg:         cfg,
		model:       m,
		eval:        condition.New(m),
		logger:      logger,
		tasks:       make(chan *task, cfg.QueueSize),
		trackCh:     make(chan *task, cfg.QueueSize+cfg.Workers),
		stopCh:      make(chan struct{}),
		monitorDone: make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		go s.worker()
	}
	go s.monitor()
	return s
}

// Register adds an action. Event patterns are compiled here so a bad
// pattern surfaces to the caller instead of silently never matching.
func (s *Scheduler) Register(a *Action) error {
	if a.Script == nil {
		return ErrNilScript
	}
	if a.Timeout <= 0 {
		a.Timeout = s.cfg.DefaultTimeout
	}
	if a.Kind == TriggerEvent {
		re, err := compileObjectPattern(a.Pattern)
		if err != nil {
			return fmt.Errorf("compile object pattern %q: %w", a.Pattern, err)
		}
		a.idPattern = re
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	switch a.Kind {
	case TriggerEvent:
		s.eventActions = append(s.eventActions, a)
	default:
		s.timeActions = append(s.timeActions, a)
	}
	s.logger.Debug("action registered",
		log.String("name", a.Name),
		log.String("kind", a.Kind.String()),
		log.String("pattern", a.Pattern))
	return nil
}

// Unregister removes every action with the given name. In-flight runs
// of the removed actions finish normally. Returns true if anything was
// removed.
func (s *Scheduler) Unregister(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := false
	filter := func(actions []*Action) []*Action {
		kept := actions[:0]
		for _, a := range actions {
			if a.Name == name {
				removed = true
				continue
			}
			kept = append(kept, a)
		}
		return kept
	}
	s.timeActions = filter(s.timeActions)
	s.eventActions = filter(s.eventActions)
	if removed {
		s.logger.Debug("action unregistered", log.String("name", name))
	}
	return removed
}

// OnClockAdvanced evaluates time actions for a clock tick. Called from
// the document-dispatch path; it only filters and submits.
func (s *Scheduler) OnClockAdvanced(hour, minute int) {
	key := fireKey{hour, minute}
	scope := condition.Scope{Hour: hour, Minute: minute}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	for _, a := range s.timeActions {
		if !matchTimePattern(a.Pattern, hour, minute) {
			continue
		}
		if a.hasFired && a.lastFired == key {
			continue
		}
		if !s.conditionHolds(a, scope) {
			continue
		}
		a.lastFired = key
		a.hasFired = true
		s.submit(a)
	}
}

// OnObjectChanged evaluates event actions for a tracked-object update.
func (s *Scheduler) OnObjectChanged(objType, objID string, obj interface{}) {
	clock := s.model.Clock()
	scope := condition.Scope{
		Hour:    clock.Hour,
		Minute:  clock.Minute,
		ObjType: objType,
		ObjID:   objID,
		Obj:     obj,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	for _, a := range s.eventActions {
		if a.idPattern != nil && !a.idPattern.MatchString(objID) {
			continue
		}
		if !s.conditionHolds(a, scope) {
			continue
		}
		s.submit(a)
	}
}

// Stop shuts the scheduler down. Outstanding scripts are cancelled and
// abandoned, not waited for; their callbacks never fire.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.monitorDone
}

func (s *Scheduler) conditionHolds(a *Action, scope condition.Scope) bool {
	ok, err := s.eval.Eval(a.Condition, scope)
	if err != nil {
		s.logger.Warn("condition failed, skipping action",
			log.String("name", a.Name),
			log.Err(err))
		return false
	}
	return ok
}

// submit hands a script to the pool. Caller holds s.mu. Both queue
// handoffs are non-blocking: a full queue drops the submission so the
// dispatch path never stalls on a busy pool or monitor.
func (s *Scheduler) submit(a *Action) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		id:        uuid.NewString(),
		action:    a,
		ctx:       ctx,
		cancel:    cancel,
		submitted: time.Now(),
		done:      make(chan struct{}),
	}
	select {
	case s.trackCh <- t:
	default:
		cancel()
		s.logger.Warn("monitor queue full, dropping action",
			log.String("name", a.Name))
		return
	}
	select {
	case s.tasks <- t:
		s.logger.Debug("action submitted",
			log.String("task", t.id),
			log.String("name", a.Name))
	default:
		// Already tracked; mark it so the monitor discards it without
		// a callback.
		cancel()
		t.dropped = true
		close(t.done)
		s.logger.Warn("task queue full, dropping action",
			log.String("name", a.Name))
	}
}

func (s *Scheduler) worker() {
	for {
		select {
		case <-s.stopCh:
			return
		case t := <-s.tasks:
			s.run(t)
		}
	}
}

func (s *Scheduler) run(t *task) {
	defer func() {
		if r := recover(); r != nil {
			t.err = fmt.Errorf("script panic: %v", r)
		}
		close(t.done)
	}()
	t.result, t.err = t.action.Script(t.ctx, s.model)
}

// monitor owns the tracked-task queue. Each poll it reaps finished
// tasks, firing exactly one callback per task, and cancels tasks past
// their timeout.
func (s *Scheduler) monitor() {
	defer close(s.monitorDone)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	var tracked []*task
	for {
		select {
		case <-s.stopCh:
			for _, t := range tracked {
				t.cancel()
			}
			return
		case t := <-s.trackCh:
			tracked = append(tracked, t)
		case <-ticker.C:
			tracked = s.poll(tracked)
		}
	}
}

func (s *Scheduler) poll(tracked []*task) []*task {
	remaining := tracked[:0]
	for _, t := range tracked {
		elapsed := time.Since(t.submitted)
		select {
		case <-t.done:
			if t.dropped {
				continue
			}
			if t.err != nil {
				s.logger.Warn("action failed",
					log.String("task", t.id),
					log.String("name", t.action.Name),
					log.Duration("elapsed", elapsed),
					log.Err(t.err))
				s.invokeError(t.action, t.err, elapsed)
			} else {
				s.logger.Debug("action done",
					log.String("task", t.id),
					log.String("name", t.action.Name),
					log.Duration("elapsed", elapsed))
				s.invokeSuccess(t.action, t.result, elapsed)
			}
		default:
			if elapsed > t.action.Timeout {
				t.cancel()
				s.logger.Warn("action timed out",
					log.String("task", t.id),
					log.String("name", t.action.Name),
					log.Duration("elapsed", elapsed))
				s.invokeError(t.action, ErrActionTimeout, elapsed)
			} else {
				remaining = append(remaining, t)
			}
		}
	}
	return remaining
}

func (s *Scheduler) invokeSuccess(a *Action, result interface{}, elapsed time.Duration) {
	if a.OnSuccess == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("onSuccess callback panicked",
				log.String("name", a.Name),
				log.Any("panic", r))
		}
	}()
	a.OnSuccess(result, elapsed)
}

func (s *Scheduler) invokeError(a *Action, err error, elapsed time.Duration) {
	if a.OnError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("onError callback panicked",
				log.String("name", a.Name),
				log.Any("panic", r))
		}
	}()
	a.OnError(err, elapsed)
}
