// Package loop runs a tick-driven unit of work until an interrupt, a quit
// request, a step limit, or context cancellation stops it.
//
// The loop polls its [Poller] before every step, so a pending quit is always
// seen before more work starts.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tools.zach/dev/ctrlc"
	"tools.zach/dev/ctrlc/internal/logger"
)

// StopReason records why a run ended.
type StopReason string

const (
	// ReasonQuit means a quit request was polled.
	ReasonQuit StopReason = "quit"
	// ReasonError means the bridge reported it can no longer deliver events.
	ReasonError StopReason = "error"
	// ReasonCancelled means the context was cancelled.
	ReasonCancelled StopReason = "cancelled"
	// ReasonCompleted means MaxSteps steps ran.
	ReasonCompleted StopReason = "completed"
	// ReasonFailed means a step returned an error.
	ReasonFailed StopReason = "failed"
)

// Poller is the consuming side of an interrupt bridge. *ctrlc.Bridge
// satisfies this interface.
type Poller interface {
	Poll() ctrlc.Event
}

// StepFunc performs one unit of work. n counts from 1.
type StepFunc func(ctx context.Context, n int) error

// Loop drives Step until something stops it.
type Loop struct {
	Poller Poller
	Step   StepFunc
	// Interval is the pause between steps. Zero runs steps back to back.
	Interval time.Duration
	// MaxSteps ends the run after this many steps (0 = unbounded).
	MaxSteps int
	// InterruptAfter calls Raise once after this many steps (0 = never).
	InterruptAfter int
	// Raise delivers an interrupt to the process, usually ctrlc.Raise.
	Raise func() error
	Log   *slog.Logger
}

// Result summarizes a finished run.
type Result struct {
	Steps   int
	Reason  StopReason
	Elapsed time.Duration
}

// Run executes steps until the poller reports Quit or Error, ctx is
// cancelled, MaxSteps is reached, or a step fails. Only a failed step
// produces a non-nil error.
func (l *Loop) Run(ctx context.Context) (Result, error) {
	log := l.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	start := time.Now()
	res := Result{}

	stop := func(reason StopReason) Result {
		res.Reason = reason
		res.Elapsed = time.Since(start)
		log.Info("loop stopped", "reason", reason, "steps", res.Steps, "elapsed", res.Elapsed)
		return res
	}

	log.Info("loop started", "max_steps", l.MaxSteps, "interval", l.Interval)
	for {
		switch ev := l.Poller.Poll(); ev {
		case ctrlc.Quit:
			return stop(ReasonQuit), nil
		case ctrlc.Error:
			log.Warn("interrupt bridge unavailable, stopping")
			return stop(ReasonError), nil
		}
		if ctx.Err() != nil {
			return stop(ReasonCancelled), nil
		}
		if l.MaxSteps > 0 && res.Steps >= l.MaxSteps {
			return stop(ReasonCompleted), nil
		}

		n := res.Steps + 1
		logger.Trace(log, "step", "n", n)
		if err := l.Step(ctx, n); err != nil {
			stop(ReasonFailed)
			return res, fmt.Errorf("step %d: %w", n, err)
		}
		res.Steps = n

		if l.InterruptAfter > 0 && n == l.InterruptAfter && l.Raise != nil {
			log.Info("raising interrupt", "after_steps", n)
			if err := l.Raise(); err != nil {
				log.Warn("raise interrupt failed", "error", err)
			}
		}

		if l.Interval > 0 {
			t := time.NewTimer(l.Interval)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
	}
}
