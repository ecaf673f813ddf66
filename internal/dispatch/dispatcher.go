package dispatch

import (
	"strings"

	"github.com/danmuck/bridgectl/internal/tools"
	"github.com/rs/zerolog"
)

// Dispatcher turns one command into at most one external invocation.
type Dispatcher struct {
	templates Templates
	runner    tools.CommandRunner
	logger    zerolog.Logger
}

func New(templates Templates, runner tools.CommandRunner, logger zerolog.Logger) *Dispatcher {
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	own := make(Templates, len(templates))
	for k, t := range templates {
		own[k] = t
	}
	return &Dispatcher{
		templates: own,
		runner:    runner,
		logger:    logger.With().Str("component", "dispatch").Logger(),
	}
}

// Dispatch runs the tool for cmd and waits for it. It never fails: problems
// are reported through Result.
func (d *Dispatcher) Dispatch(cmd Command) Result {
	kind := cmd.Kind()
	if !kind.Known() {
		d.logger.Warn().
			Str("code", hex32(cmd.Code)).
			Msg("unknown command")
		return Result{OK: false, Message: MsgUnrecognized}
	}

	tmpl, ok := d.templates[kind]
	if !ok {
		d.logger.Error().Str("kind", kind.String()).Msg("no tool configured")
		return Result{OK: false, Message: "no tool configured for " + kind.String()}
	}

	inv := tmpl.Render(cmd)
	d.logger.Info().
		Str("kind", kind.String()).
		Str("addr", hex32(cmd.Addr)).
		Str("data", hex32(cmd.Data)).
		Stringer("invocation", inv).
		Msg("running tool")

	out, err := d.runner.Run(inv)
	res := Result{
		OK:       err == nil && out.ExitCode == 0,
		Message:  MsgOK,
		Invoked:  true,
		ExitCode: out.ExitCode,
		Duration: out.Duration,
	}
	if res.OK {
		d.logger.Info().
			Str("kind", kind.String()).
			Dur("duration", out.Duration).
			Msg("tool finished")
		return res
	}

	res.Message = "tool failed"
	if err != nil {
		res.Message = err.Error()
	}
	d.logger.Error().
		Err(err).
		Str("kind", kind.String()).
		Int("exit_code", out.ExitCode).
		Str("stderr", strings.TrimSpace(string(out.Stderr))).
		Dur("duration", out.Duration).
		Msg("tool failed")
	return res
}
