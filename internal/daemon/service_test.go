package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/bridgectl/internal/bridge"
	"github.com/danmuck/bridgectl/internal/dispatch"
	"github.com/danmuck/bridgectl/internal/regmap"
	"github.com/danmuck/bridgectl/internal/testutil/testlog"
	"github.com/danmuck/bridgectl/internal/tools"
)

type syncRunner struct {
	mu    sync.Mutex
	calls []tools.Invocation
}

func (r *syncRunner) Run(inv tools.Invocation) (tools.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, inv)
	return tools.Outcome{}, nil
}

func waitFor(t *testing.T, win bridge.Window, off regmap.Offset, want uint32) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for win.ReadRegister(off) != want {
		if time.Now().After(deadline) {
			t.Errorf("timed out waiting for %s=%d", regmap.Name(off), want)
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRunContextMapFailureIsFatal(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Window.Device = filepath.Join(t.TempDir(), "no-such-mem")
	svc := NewServiceWithConfig(cfg, testlog.Start(t))

	err := svc.RunContext(context.Background())
	var mapErr *bridge.MapError
	if !errors.As(err, &mapErr) {
		t.Fatalf("expected MapError, got %v", err)
	}
}

func TestRunContextSimulatedStopsOnCancel(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Simulate = true
	cfg.ReportStatus = true
	svc := NewServiceWithConfig(cfg, testlog.Start(t))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := svc.RunContext(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunContextEndToEndOverSharedMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "window.bin")
	if err := os.WriteFile(path, make([]byte, bridge.DefaultSpan), 0o600); err != nil {
		t.Fatalf("write backing file: %v", err)
	}

	cfg := DefaultServiceConfig()
	cfg.Window = bridge.Config{Device: path, Base: 0, Span: bridge.DefaultSpan}
	cfg.Handshake.PollInterval = time.Millisecond
	runner := &syncRunner{}
	svc := NewServiceWithConfig(cfg, testlog.Start(t)).WithRunner(runner)

	host, err := bridge.Open(cfg.Window)
	if err != nil {
		t.Fatalf("open host view: %v", err)
	}
	defer host.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.RunContext(ctx)
	}()

	for _, code := range []uint32{uint32(dispatch.KindSprite), 0x99} {
		host.WriteRegister(regmap.CmdType, code)
		host.WriteRegister(regmap.CmdAddr, 0xC000)
		host.WriteRegister(regmap.CmdData, 0)
		host.WriteRegister(regmap.CmdValid, 1)
		waitFor(t, host, regmap.CmdDone, 1)
		host.WriteRegister(regmap.CmdValid, 0)
		waitFor(t, host, regmap.CmdDone, 0)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("service did not stop")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.calls) != 1 {
		t.Fatalf("expected exactly one tool invocation, got %d", len(runner.calls))
	}
	if runner.calls[0].Args[1] != "sprite" {
		t.Fatalf("unexpected invocation: %+v", runner.calls[0])
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestRunContextSimulatedHandlesRaisedCommand(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Simulate = true
	cfg.Handshake.PollInterval = time.Millisecond
	cfg.AdminAddr = freeAddr(t)
	runner := &syncRunner{}
	svc := NewServiceWithConfig(cfg, testlog.Start(t)).WithRunner(runner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.RunContext(ctx)
	}()

	url := "http://" + cfg.AdminAddr + "/simulate/command"
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Post(url, "application/json", strings.NewReader(`{"command":"sid","data":"0x3"}`))
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusAccepted {
				t.Fatalf("unexpected status code: %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("admin server never came up: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	for {
		runner.mu.Lock()
		n := len(runner.calls)
		runner.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("simulated command never dispatched")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("service did not stop")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.calls) != 1 || runner.calls[0].Args[1] != "sid" {
		t.Fatalf("unexpected invocations: %+v", runner.calls)
	}
}

func TestTemplatesDefaultToToolsDir(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.ToolsDir = "/opt/creator"
	if got := cfg.Templates()[dispatch.KindBuild].Args[0]; got != "/opt/creator/creator_cli.py" {
		t.Fatalf("unexpected build script: %q", got)
	}
	cfg.Tools = dispatch.Templates{dispatch.KindBuild: {Name: "make"}}
	if got := cfg.Templates()[dispatch.KindBuild].Name; got != "make" {
		t.Fatalf("unexpected override: %q", got)
	}
}
