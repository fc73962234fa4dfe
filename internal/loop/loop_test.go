package loop

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tools.zach/dev/ctrlc"
	"tools.zach/dev/ctrlc/internal/logger"
)

// scriptPoller returns events from script in order, then Continue forever.
type scriptPoller struct {
	script []ctrlc.Event
	calls  int
}

func (p *scriptPoller) Poll() ctrlc.Event {
	p.calls++
	if len(p.script) == 0 {
		return ctrlc.Continue
	}
	ev := p.script[0]
	p.script = p.script[1:]
	return ev
}

// countingStep counts calls and fails on step failAt (0 = never).
func countingStep(calls *int, failAt int) StepFunc {
	return func(_ context.Context, n int) error {
		*calls++
		if n == failAt {
			return errors.New("disk full")
		}
		return nil
	}
}

func TestRunStopReasons(t *testing.T) {
	tests := []struct {
		name      string
		script    []ctrlc.Event
		maxSteps  int
		wantSteps int
		want      StopReason
	}{
		{"quit before any step", []ctrlc.Event{ctrlc.Quit}, 0, 0, ReasonQuit},
		{"quit after two steps", []ctrlc.Event{ctrlc.Continue, ctrlc.Continue, ctrlc.Quit}, 0, 2, ReasonQuit},
		{"error treated as stop", []ctrlc.Event{ctrlc.Continue, ctrlc.Error}, 0, 1, ReasonError},
		{"max steps", nil, 5, 5, ReasonCompleted},
		{"quit wins over max steps", []ctrlc.Event{ctrlc.Continue, ctrlc.Quit}, 1, 1, ReasonQuit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			l := &Loop{
				Poller:   &scriptPoller{script: tt.script},
				Step:     countingStep(&calls, 0),
				MaxSteps: tt.maxSteps,
			}
			res, err := l.Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if res.Reason != tt.want {
				t.Errorf("Reason = %q, want %q", res.Reason, tt.want)
			}
			if res.Steps != tt.wantSteps || calls != tt.wantSteps {
				t.Errorf("Steps = %d (calls %d), want %d", res.Steps, calls, tt.wantSteps)
			}
		})
	}
}

func TestRunPollsBeforeEveryStep(t *testing.T) {
	p := &scriptPoller{}
	var calls int
	l := &Loop{Poller: p, Step: countingStep(&calls, 0), MaxSteps: 4}
	if _, err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// One poll per step plus the poll that sees the limit.
	if p.calls != 5 {
		t.Errorf("Poll called %d times, want 5", p.calls)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		Poller: &scriptPoller{},
		Step: func(_ context.Context, n int) error {
			if n == 3 {
				cancel()
			}
			return nil
		},
		Interval: time.Hour,
	}

	done := make(chan Result, 1)
	go func() {
		res, _ := l.Run(ctx)
		done <- res
	}()

	select {
	case res := <-done:
		if res.Reason != ReasonCancelled || res.Steps != 3 {
			t.Errorf("got %+v, want cancelled after 3 steps", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancellation did not interrupt the interval wait")
	}
}

func TestRunStepError(t *testing.T) {
	var calls int
	l := &Loop{Poller: &scriptPoller{}, Step: countingStep(&calls, 3)}

	res, err := l.Run(context.Background())
	if err == nil {
		t.Fatal("expected step error")
	}
	if !strings.Contains(err.Error(), "step 3: disk full") {
		t.Errorf("error = %v, want it wrapped with the step number", err)
	}
	if res.Reason != ReasonFailed || res.Steps != 2 {
		t.Errorf("got %+v, want failed after 2 completed steps", res)
	}
}

func TestRunRaisesOnce(t *testing.T) {
	var raised atomic.Int32
	var calls int
	l := &Loop{
		Poller:         &scriptPoller{},
		Step:           countingStep(&calls, 0),
		MaxSteps:       6,
		InterruptAfter: 2,
		Raise: func() error {
			raised.Add(1)
			return nil
		},
	}
	if _, err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := raised.Load(); got != 1 {
		t.Errorf("Raise called %d times, want 1", got)
	}
}

func TestRunRaiseFailureLogged(t *testing.T) {
	var buf bytes.Buffer
	var calls int
	l := &Loop{
		Poller:         &scriptPoller{},
		Step:           countingStep(&calls, 0),
		MaxSteps:       2,
		InterruptAfter: 1,
		Raise:          func() error { return errors.New("unsupported") },
		Log:            slog.New(logger.NewHandler(&buf, logger.LevelInfo)),
	}
	res, err := l.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Reason != ReasonCompleted {
		t.Errorf("Reason = %q, want completed", res.Reason)
	}
	if !strings.Contains(buf.String(), "[WARN] raise interrupt failed | error=unsupported") {
		t.Errorf("missing warning in log:\n%s", buf.String())
	}
}

func TestRunWithBridge(t *testing.T) {
	b := ctrlc.New()
	defer b.Disarm()

	l := &Loop{
		Poller: b,
		Step: func(_ context.Context, n int) error {
			if n == 3 {
				return b.RequestQuit()
			}
			return nil
		},
	}
	res, err := l.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Reason != ReasonQuit || res.Steps != 3 {
		t.Errorf("got %+v, want quit after 3 steps", res)
	}
}
