package handshake

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/danmuck/bridgectl/internal/bridge"
	"github.com/danmuck/bridgectl/internal/dispatch"
	"github.com/danmuck/bridgectl/internal/observability"
	"github.com/danmuck/bridgectl/internal/regmap"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidPollInterval = errors.New("handshake: invalid poll interval")
	ErrNilWindow           = errors.New("handshake: nil window")
	ErrNilDispatcher       = errors.New("handshake: nil dispatcher")
)

type State int

const (
	Idle State = iota
	CommandPending
	Processing
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CommandPending:
		return "command_pending"
	case Processing:
		return "processing"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Dispatcher executes one command to completion.
type Dispatcher interface {
	Dispatch(cmd dispatch.Command) dispatch.Result
}

// Config controls polling. Neither the dispatch nor the acknowledgement
// wait has a timeout.
type Config struct {
	// PollInterval is the sleep between idle samples of valid.
	PollInterval time.Duration
	// AckPollInterval is the sleep between samples while waiting for the
	// host to clear valid. Zero only yields the processor.
	AckPollInterval time.Duration
	// AckWarnAfter logs once per cycle when the host is slow to clear
	// valid. Zero disables the warning.
	AckWarnAfter time.Duration
	// Layout selects the registers; Layout.HasStatus enables the status
	// register write before done.
	Layout regmap.Layout
}

func DefaultConfig() Config {
	return Config{
		PollInterval:    10 * time.Millisecond,
		AckPollInterval: time.Millisecond,
		AckWarnAfter:    30 * time.Second,
		Layout:          regmap.Default(),
	}
}

// Status is a copy of the loop's progress for diagnostics.
type Status struct {
	State       State
	Cycles      uint64
	HasLast     bool
	LastCommand dispatch.Command
	LastResult  dispatch.Result
	LastAt      time.Time
	Stalled     bool
}

// Loop is the single flow of control that owns the handshake.
type Loop struct {
	win        bridge.Window
	dispatcher Dispatcher
	cfg        Config
	logger     zerolog.Logger

	mu     sync.RWMutex
	status Status
}

func New(win bridge.Window, d Dispatcher, cfg Config, logger zerolog.Logger) (*Loop, error) {
	if win == nil {
		return nil, ErrNilWindow
	}
	if d == nil {
		return nil, ErrNilDispatcher
	}
	if cfg.PollInterval <= 0 || cfg.AckPollInterval < 0 {
		return nil, ErrInvalidPollInterval
	}
	if err := cfg.Layout.Validate(win.Span()); err != nil {
		return nil, err
	}
	return &Loop{
		win:        win,
		dispatcher: d,
		cfg:        cfg,
		logger:     logger.With().Str("component", "handshake").Logger(),
	}, nil
}

// Run resynchronises with the window and then polls until ctx is done.
// Cancellation is only observed while idle or waiting for the host; a running
// tool is always waited for.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info().
		Dur("poll_interval", l.cfg.PollInterval).
		Bool("status_register", l.cfg.Layout.HasStatus).
		Msg("listening for host commands")

	if err := l.Resync(ctx); err != nil {
		return l.stopped(err)
	}
	for {
		handled, err := l.Step(ctx)
		if err != nil {
			return l.stopped(err)
		}
		if handled {
			continue
		}
		if err := pause(ctx, l.cfg.PollInterval); err != nil {
			return l.stopped(err)
		}
	}
}

// Resync finishes a cycle left open by a previous process: if done is
// already asserted the command behind it was handled, so the loop only waits
// for the host to release valid.
func (l *Loop) Resync(ctx context.Context) error {
	if l.win.ReadRegister(l.cfg.Layout.Done) == 0 {
		return nil
	}
	l.logger.Warn().Msg("done already asserted at startup; waiting for host to release valid")
	l.setState(Completed)
	return l.awaitRelease(ctx)
}

// Step samples valid once. When a command is pending it runs the whole
// cycle, back to Idle, and reports handled. A done ctx is reported before
// valid is sampled, so no command is taken after shutdown.
func (l *Loop) Step(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	lay := l.cfg.Layout
	if l.win.ReadRegister(lay.Valid) == 0 {
		return false, nil
	}

	l.setState(CommandPending)
	cmd := dispatch.Command{
		Code: l.win.ReadRegister(lay.Type),
		Addr: l.win.ReadRegister(lay.Addr),
		Data: l.win.ReadRegister(lay.Data),
	}
	l.logger.Info().Stringer("command", cmd).Msg("received command")

	l.setState(Processing)
	res := l.dispatcher.Dispatch(cmd)
	l.record(cmd, res)

	if lay.HasStatus {
		l.win.WriteRegister(lay.Status, statusCode(cmd, res))
	}
	l.win.WriteRegister(lay.Done, 1)
	l.setState(Completed)

	return true, l.awaitRelease(ctx)
}

// Status returns a copy of the current progress.
func (l *Loop) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

func (l *Loop) awaitRelease(ctx context.Context) error {
	lay := l.cfg.Layout
	start := time.Now()
	warned := false
	for l.win.ReadRegister(lay.Valid) != 0 {
		if !warned && l.cfg.AckWarnAfter > 0 && time.Since(start) >= l.cfg.AckWarnAfter {
			warned = true
			l.setStalled(true)
			l.logger.Warn().
				Dur("waited", time.Since(start)).
				Msg("host has not cleared valid; bridge is stalled")
		}
		if err := pause(ctx, l.cfg.AckPollInterval); err != nil {
			return err
		}
	}
	l.win.WriteRegister(lay.Done, 0)

	observability.RecordAckWait(time.Since(start))
	if warned {
		l.setStalled(false)
		l.logger.Info().Dur("waited", time.Since(start)).Msg("host released valid")
	}
	l.setState(Idle)
	return nil
}

func (l *Loop) record(cmd dispatch.Command, res dispatch.Result) {
	result := "ok"
	switch {
	case !cmd.Kind().Known():
		result = "unknown"
	case !res.OK:
		result = "failed"
	}
	observability.RecordCommand(cmd.Kind().String(), result, res.Duration, res.Invoked)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.Cycles++
	l.status.HasLast = true
	l.status.LastCommand = cmd
	l.status.LastResult = res
	l.status.LastAt = time.Now()
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.status.State = s
	l.mu.Unlock()
}

func (l *Loop) setStalled(v bool) {
	observability.SetAckStalled(v)
	l.mu.Lock()
	l.status.Stalled = v
	l.mu.Unlock()
}

func (l *Loop) stopped(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		l.logger.Info().Stringer("state", l.Status().State).Msg("poll loop stopped")
		return nil
	}
	return err
}

func statusCode(cmd dispatch.Command, res dispatch.Result) uint32 {
	switch {
	case !cmd.Kind().Known():
		return regmap.StatusUnknown
	case !res.OK:
		return regmap.StatusFailed
	default:
		return regmap.StatusOK
	}
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		runtime.Gosched()
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
