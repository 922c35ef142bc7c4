package sched

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorocrail/gorocrail/pkg/model"
)

func TestMatchTimePattern(t *testing.T) {
	tests := []struct {
		pattern string
		hour    int
		minute  int
		want    bool
	}{
		{"12:30", 12, 30, true},
		{"12:30", 12, 31, false},
		{"12:30", 13, 30, false},

		{"*:00", 0, 0, true},
		{"*:00", 12, 0, true},
		{"*:00", 12, 30, false},
		{"*:15", 23, 15, true},
		{"*:15", 12, 0, false},

		{"*/2:00", 0, 0, true},
		{"*/2:00", 2, 0, true},
		{"*/2:00", 1, 0, false},
		{"*/2:00", 2, 30, false},
		{"*/3:30", 6, 30, true},
		{"*/3:30", 2, 30, false},

		{"*:*/15", 0, 0, true},
		{"*:*/15", 0, 45, true},
		{"*:*/15", 0, 10, false},
		{"*:*/15", 12, 30, true},
		{"12:*/10", 12, 20, true},
		{"12:*/10", 12, 15, false},
		{"12:*/10", 13, 0, false},

		{"*:*", 12, 34, true},
		{"*", 5, 6, true},
		{"", 23, 59, true},

		// Malformed patterns never match.
		{"12", 12, 0, false},
		{"ab:cd", 12, 0, false},
		{"12:30:45", 12, 30, false},
		{"*/x:00", 0, 0, false},
		{"*/0:00", 0, 0, false},
	}

	for _, tt := range tests {
		got := matchTimePattern(tt.pattern, tt.hour, tt.minute)
		if got != tt.want {
			t.Errorf("matchTimePattern(%q, %d, %d) = %t, want %t",
				tt.pattern, tt.hour, tt.minute, got, tt.want)
		}
	}
}

func TestCompileObjectPattern(t *testing.T) {
	tests := []struct {
		pattern string
		objID   string
		want    bool
	}{
		{"fb1", "fb1", true},
		{"fb1", "fb2", false},
		{"fb*", "fb1", true},
		{"fb*", "fbMain", true},
		{"fb*", "sw1", false},
		{"*", "anything", true},
		{"", "fb1", true},
		{"lc*", "lc_big", true},
		{"lc*", "fb1", false},
	}

	for _, tt := range tests {
		re, err := compileObjectPattern(tt.pattern)
		if err != nil {
			t.Errorf("compileObjectPattern(%q): %v", tt.pattern, err)
			continue
		}
		got := re == nil || re.MatchString(tt.objID)
		if got != tt.want {
			t.Errorf("pattern %q against %q = %t, want %t", tt.pattern, tt.objID, got, tt.want)
		}
	}
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New(model.New(nil, nil), Config{
		Workers:      2,
		PollInterval: 5 * time.Millisecond,
	}, nil)
	t.Cleanup(s.Stop)
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestTimeActionFires(t *testing.T) {
	s := newTestScheduler(t)

	var runs, successes atomic.Int32
	err := s.Register(&Action{
		Name:    "noon",
		Pattern: "12:30",
		Script: func(context.Context, *model.Model) (interface{}, error) {
			runs.Add(1)
			return "done", nil
		},
		OnSuccess: func(result interface{}, elapsed time.Duration) {
			if result == "done" {
				successes.Add(1)
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	s.OnClockAdvanced(12, 29)
	s.OnClockAdvanced(12, 30)

	waitFor(t, "success callback", func() bool { return successes.Load() == 1 })
	if runs.Load() != 1 {
		t.Errorf("script ran %d times, want 1", runs.Load())
	}
}

func TestUnregisterStopsFiring(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	if err := s.Register(&Action{
		Name:    "doomed",
		Pattern: "*:*",
		Script: func(context.Context, *model.Model) (interface{}, error) {
			runs.Add(1)
			return nil, nil
		},
	}); err != nil {
		t.Fatal(err)
	}

	s.OnClockAdvanced(8, 0)
	waitFor(t, "first run", func() bool { return runs.Load() == 1 })

	if !s.Unregister("doomed") {
		t.Fatal("Unregister should report removal")
	}
	if s.Unregister("doomed") {
		t.Error("second Unregister should report nothing removed")
	}

	s.OnClockAdvanced(8, 1)
	time.Sleep(20 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Errorf("script ran %d times after unregister, want 1", got)
	}
}

func TestDuplicateTickSuppressed(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	if err := s.Register(&Action{
		Pattern: "12:*",
		Script: func(context.Context, *model.Model) (interface{}, error) {
			runs.Add(1)
			return nil, nil
		},
	}); err != nil {
		t.Fatal(err)
	}

	s.OnClockAdvanced(12, 30)
	s.OnClockAdvanced(12, 30)
	s.OnClockAdvanced(12, 30)
	s.OnClockAdvanced(12, 31)

	waitFor(t, "two runs", func() bool { return runs.Load() == 2 })
	time.Sleep(20 * time.Millisecond)
	if got := runs.Load(); got != 2 {
		t.Errorf("script ran %d times, want 2", got)
	}
}

func TestEventActionPatternMatch(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	if err := s.Register(&Action{
		Kind:    TriggerEvent,
		Pattern: "fb*",
		Script: func(context.Context, *model.Model) (interface{}, error) {
			runs.Add(1)
			return nil, nil
		},
	}); err != nil {
		t.Fatal(err)
	}

	s.OnObjectChanged("fb", "fb1", nil)
	s.OnObjectChanged("sw", "sw1", nil)
	s.OnObjectChanged("fb", "fbMain", nil)

	waitFor(t, "two runs", func() bool { return runs.Load() == 2 })
	time.Sleep(20 * time.Millisecond)
	if got := runs.Load(); got != 2 {
		t.Errorf("script ran %d times, want 2", got)
	}
}

func TestConditionGatesFiring(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	if err := s.Register(&Action{
		Pattern:   "*:*",
		Condition: "hour >= 10",
		Script: func(context.Context, *model.Model) (interface{}, error) {
			runs.Add(1)
			return nil, nil
		},
	}); err != nil {
		t.Fatal(err)
	}

	s.OnClockAdvanced(9, 0)
	s.OnClockAdvanced(10, 0)

	waitFor(t, "one run", func() bool { return runs.Load() == 1 })
	time.Sleep(20 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Errorf("script ran %d times, want 1", got)
	}
}

func TestBrokenConditionFailsClosed(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	if err := s.Register(&Action{
		Pattern:   "*:*",
		Condition: "is_active(",
		Script: func(context.Context, *model.Model) (interface{}, error) {
			runs.Add(1)
			return nil, nil
		},
	}); err != nil {
		t.Fatal(err)
	}

	s.OnClockAdvanced(12, 0)
	time.Sleep(30 * time.Millisecond)
	if got := runs.Load(); got != 0 {
		t.Errorf("script ran %d times, want 0", got)
	}
}

func TestTimeoutCancelsAndReportsOnce(t *testing.T) {
	s := newTestScheduler(t)

	var callbacks atomic.Int32
	errCh := make(chan error, 1)
	released := make(chan struct{})
	if err := s.Register(&Action{
		Name:    "slow",
		Pattern: "*:*",
		Timeout: 30 * time.Millisecond,
		Script: func(ctx context.Context, _ *model.Model) (interface{}, error) {
			<-ctx.Done()
			close(released)
			return nil, ctx.Err()
		},
		OnSuccess: func(interface{}, time.Duration) { callbacks.Add(1) },
		OnError: func(err error, _ time.Duration) {
			callbacks.Add(1)
			select {
			case errCh <- err:
			default:
			}
		},
	}); err != nil {
		t.Fatal(err)
	}

	s.OnClockAdvanced(8, 0)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrActionTimeout) {
			t.Errorf("OnError got %v, want ErrActionTimeout", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnError never fired")
	}

	// Cancellation released the script; its late completion must not
	// trigger a second callback.
	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("script context never cancelled")
	}
	time.Sleep(30 * time.Millisecond)
	if got := callbacks.Load(); got != 1 {
		t.Errorf("callbacks fired %d times, want 1", got)
	}
}

func TestScriptErrorReportsOnError(t *testing.T) {
	s := newTestScheduler(t)

	boom := errors.New("boom")
	errCh := make(chan error, 1)
	if err := s.Register(&Action{
		Pattern: "*:*",
		Script: func(context.Context, *model.Model) (interface{}, error) {
			return nil, boom
		},
		OnError: func(err error, _ time.Duration) { errCh <- err },
	}); err != nil {
		t.Fatal(err)
	}

	s.OnClockAdvanced(8, 0)
	select {
	case err := <-errCh:
		if !errors.Is(err, boom) {
			t.Errorf("OnError got %v, want boom", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnError never fired")
	}
}

func TestScriptPanicBecomesError(t *testing.T) {
	s := newTestScheduler(t)

	errCh := make(chan error, 1)
	if err := s.Register(&Action{
		Pattern: "*:*",
		Script: func(context.Context, *model.Model) (interface{}, error) {
			panic("kaboom")
		},
		OnError: func(err error, _ time.Duration) { errCh <- err },
	}); err != nil {
		t.Fatal(err)
	}

	s.OnClockAdvanced(8, 0)
	select {
	case err := <-errCh:
		if !strings.Contains(err.Error(), "kaboom") {
			t.Errorf("OnError got %v, want panic message", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnError never fired")
	}
}

func TestCallbackPanicIsContained(t *testing.T) {
	s := newTestScheduler(t)

	if err := s.Register(&Action{
		Pattern: "9:00",
		Script: func(context.Context, *model.Model) (interface{}, error) {
			return nil, nil
		},
		OnSuccess: func(interface{}, time.Duration) { panic("bad callback") },
	}); err != nil {
		t.Fatal(err)
	}
	var runs atomic.Int32
	if err := s.Register(&Action{
		Pattern: "10:00",
		Script: func(context.Context, *model.Model) (interface{}, error) {
			runs.Add(1)
			return nil, nil
		},
	}); err != nil {
		t.Fatal(err)
	}

	s.OnClockAdvanced(9, 0)
	s.OnClockAdvanced(10, 0)

	// The second action still runs after the first one's callback blew up.
	waitFor(t, "second action", func() bool { return runs.Load() == 1 })
}

func TestDispatchReturnsPromptlyUnderBackpressure(t *testing.T) {
	s := New(model.New(nil, nil), Config{
		Workers:      1,
		QueueSize:    1,
		PollInterval: time.Millisecond,
	}, nil)
	t.Cleanup(s.Stop)

	block := make(chan struct{})
	defer close(block)
	if err := s.Register(&Action{
		Name:    "sluggish",
		Kind:    TriggerEvent,
		Pattern: "*",
		Script: func(context.Context, *model.Model) (interface{}, error) {
			return nil, nil
		},
		OnSuccess: func(interface{}, time.Duration) { <-block },
	}); err != nil {
		t.Fatal(err)
	}

	// The monitor is parked in the slow callback, so its queue fills.
	// Every dispatch must still return promptly, dropping the overflow
	// instead of stalling the calling goroutine.
	for i := 0; i < 20; i++ {
		start := time.Now()
		s.OnObjectChanged("fb", "fb1", nil)
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Fatalf("dispatch %d took %v, want prompt return", i, elapsed)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestScheduler(t)

	if err := s.Register(&Action{}); !errors.Is(err, ErrNilScript) {
		t.Errorf("nil script: got %v, want ErrNilScript", err)
	}

	noop := func(context.Context, *model.Model) (interface{}, error) { return nil, nil }
	a := &Action{Script: noop}
	if err := s.Register(a); err != nil {
		t.Fatal(err)
	}
	if a.Timeout != 60*time.Second {
		t.Errorf("default timeout = %v, want 60s", a.Timeout)
	}
}

func TestRegisterAfterStop(t *testing.T) {
	s := New(model.New(nil, nil), Config{PollInterval: 5 * time.Millisecond}, nil)
	s.Stop()
	s.Stop() // idempotent

	noop := func(context.Context, *model.Model) (interface{}, error) { return nil, nil }
	if err := s.Register(&Action{Script: noop}); !errors.Is(err, ErrStopped) {
		t.Errorf("got %v, want ErrStopped", err)
	}
}
