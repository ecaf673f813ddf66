package tools

import (
	"errors"
	"os/exec"
	"strings"
	"time"
)

// MaxCapture bounds how much of each output stream is kept.
const MaxCapture = 4096

// Exit code reported when the executable could not be started.
const ExitNotStarted = 127

// Invocation is one external process launch.
type Invocation struct {
	Name string
	Args []string
	Dir  string
}

// String renders the invocation for logs. It is never executed.
func (inv Invocation) String() string {
	parts := make([]string, 0, len(inv.Args)+1)
	parts = append(parts, inv.Name)
	for _, arg := range inv.Args {
		if arg == "" || strings.ContainsAny(arg, " \t\"'") {
			arg = "\"" + strings.ReplaceAll(arg, "\"", "\\\"") + "\""
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// Outcome is what the bridge keeps from a finished process.
type Outcome struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// CommandRunner abstracts process execution for the dispatcher.
type CommandRunner interface {
	Run(inv Invocation) (Outcome, error)
}

// ExecRunner executes commands on the local host and waits for them without
// a deadline.
type ExecRunner struct{}

func (r ExecRunner) Run(inv Invocation) (Outcome, error) {
	cmd := exec.Command(inv.Name, inv.Args...)
	cmd.Dir = inv.Dir
	stdout := &tailBuffer{max: MaxCapture}
	stderr := &tailBuffer{max: MaxCapture}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	out := Outcome{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if err == nil {
		return out, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, err
	}

	out.ExitCode = 1
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		out.ExitCode = ExitNotStarted
	}
	return out, err
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= b.max {
		b.buf = append(b.buf[:0], p[len(p)-b.max:]...)
		return n, nil
	}
	if over := len(b.buf) + len(p) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	b.buf = append(b.buf, p...)
	return n, nil
}

func (b *tailBuffer) Bytes() []byte {
	return b.buf
}
