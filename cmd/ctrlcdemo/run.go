package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"tools.zach/dev/ctrlc"
	"tools.zach/dev/ctrlc/internal/config"
	"tools.zach/dev/ctrlc/internal/control"
	"tools.zach/dev/ctrlc/internal/logger"
	"tools.zach/dev/ctrlc/internal/loop"
	"tools.zach/dev/ctrlc/internal/notify"
	"tools.zach/dev/ctrlc/internal/paths"
	"tools.zach/dev/ctrlc/internal/stopfile"
)

// errBridgeLost is returned when the loop stopped because the interrupt
// bridge could no longer deliver events.
var errBridgeLost = errors.New("interrupt bridge stopped delivering events")

// notifyTimeout bounds the shutdown webhook including retries.
const notifyTimeout = 30 * time.Second

// runOptions carries the run command's flags. Negative overrides keep the
// config value.
type runOptions struct {
	DataDir        paths.DataDir
	MaxSteps       int
	InterruptAfter int
	// Stderr receives mirrored log lines when log.stderr is set.
	Stderr io.Writer
}

// exitStatus maps a stop reason to the command result.
func exitStatus(res loop.Result) error {
	if res.Reason == loop.ReasonError {
		return errBridgeLost
	}
	return nil
}

// executeRun wires the bridge, its producers, and the loop, then runs until
// something stops the loop.
func executeRun(ctx context.Context, opts runOptions) (loop.Result, error) {
	d := opts.DataDir
	if err := d.Ensure(); err != nil {
		return loop.Result{}, fmt.Errorf("create data dir: %w", err)
	}

	if alive, pid := checkStalePID(d); alive {
		return loop.Result{}, fmt.Errorf("already running (pid %d)", pid)
	}

	cfg, err := config.Load(d.Root)
	if err != nil {
		return loop.Result{}, fmt.Errorf("load config: %w", err)
	}
	if opts.MaxSteps >= 0 {
		cfg.Loop.MaxSteps = opts.MaxSteps
	}
	if opts.InterruptAfter >= 0 {
		cfg.Loop.InterruptAfter = opts.InterruptAfter
	}
	if err := cfg.Validate(); err != nil {
		return loop.Result{}, err
	}

	log, logCloser, err := newLogger(cfg, d, opts.Stderr)
	if err != nil {
		return loop.Result{}, fmt.Errorf("init logger: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(log)
	log.Info("ctrlcdemo starting", "version", resolveVersion(), "data_dir", d.Root)

	token := pidToken()
	pidFile, err := writePID(d, token)
	if err != nil {
		return loop.Result{}, err
	}
	defer removePID(d, token, pidFile)

	b := ctrlc.New(ctrlc.WithLogger(log))
	defer b.Disarm()

	if cfg.StopFile.Enabled {
		w, err := stopfile.New(cfg.TriggerDir(d), cfg.StopFile.Patterns, b.Producer(),
			stopfile.WithPollInterval(cfg.PollInterval()),
			stopfile.WithLogger(log),
		)
		if err != nil {
			return loop.Result{}, err
		}
		defer w.Close()
		if w.Polling() {
			log.Info("using polling mode for stop files")
		}
	}

	if cfg.Control.Enabled {
		stop, err := startControl(ctx, cfg, d, b.Producer(), log)
		if err != nil {
			return loop.Result{}, err
		}
		defer stop()
	}

	defer forwardSignals(b.Producer(), log)()

	l := &loop.Loop{
		Poller:         b,
		Step:           workStep(log),
		Interval:       cfg.Tick(),
		MaxSteps:       cfg.Loop.MaxSteps,
		InterruptAfter: cfg.Loop.InterruptAfter,
		Raise:          ctrlc.Raise,
		Log:            log,
	}
	res, runErr := l.Run(ctx)

	n := notify.New(cfg.Notify.URL, cfg.Notify.Title, cfg.Notify.RetryMax)
	if n.Enabled() {
		nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		msg := fmt.Sprintf("%s stopped (%s) after %d steps in %s",
			paths.BinaryName, res.Reason, res.Steps, res.Elapsed.Round(time.Millisecond))
		if err := n.Send(nctx, msg); err != nil {
			log.Warn("shutdown notification failed", "error", err)
		}
		cancel()
	}
	return res, runErr
}

// newLogger builds the process logger from the [log] config section.
func newLogger(cfg *config.Config, d paths.DataDir, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	opts := logger.Options{
		Level:      logger.ParseLevel(cfg.Log.Level),
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}
	if cfg.Log.ToFile {
		opts.Path = d.Log()
	}
	if cfg.Log.Stderr {
		if stderr == nil {
			stderr = os.Stderr
		}
		opts.Mirror = stderr
	}
	return logger.NewLogger(opts)
}

// startControl opens the control endpoint and serves it until the returned
// stop function is called. A second instance on the same address is fatal;
// any other listen failure only disables the endpoint.
func startControl(ctx context.Context, cfg *config.Config, d paths.DataDir, p *ctrlc.Producer, log *slog.Logger) (func(), error) {
	addr := cfg.Control.Address
	if addr == "" {
		addr = control.DefaultAddress(d)
	}
	ln, err := control.Listen(addr)
	if err != nil {
		p.Close()
		if errors.Is(err, control.ErrInUse) {
			return nil, err
		}
		log.Warn("control endpoint disabled", "address", addr, "error", err)
		return func() {}, nil
	}
	log.Info("control endpoint listening", "address", addr)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- control.Serve(ctx, ln, p) }()
	return func() {
		cancel()
		if err := <-done; err != nil {
			log.Warn("control endpoint stopped", "error", err)
		}
	}, nil
}

// forwardSignals turns [terminationSignals] into quit requests through p
// until the returned stop function is called. Stop releases p.
func forwardSignals(p *ctrlc.Producer, log *slog.Logger) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, terminationSignals...)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer p.Close()
		for {
			select {
			case <-done:
				return
			case sig := <-ch:
				if err := p.RequestQuit(); err != nil {
					log.Warn("termination signal ignored", "signal", sig.String(), "error", err)
					continue
				}
				log.Info("termination signal, quit requested", "signal", sig.String())
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
			wg.Wait()
		})
	}
}

// workStep stands in for one unit of real work.
func workStep(log *slog.Logger) loop.StepFunc {
	return func(_ context.Context, n int) error {
		log.Debug("working", "step", n)
		return nil
	}
}
