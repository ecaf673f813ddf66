package daemon

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/bridgectl/internal/admin"
	"github.com/danmuck/bridgectl/internal/bridge"
	"github.com/danmuck/bridgectl/internal/dispatch"
	"github.com/danmuck/bridgectl/internal/handshake"
	"github.com/danmuck/bridgectl/internal/tools"
	"github.com/rs/zerolog"
)

// ServiceConfig configures the bridge process.
type ServiceConfig struct {
	Window   bridge.Config
	Simulate bool
	// ReportStatus enables the CMD_STATUS register write before done.
	ReportStatus bool
	Handshake    handshake.Config
	ToolsDir     string
	// Tools replaces the default templates when non-nil.
	Tools       dispatch.Templates
	AdminAddr   string
	AdminToken  string
	CorsOrigins []string
}

// DefaultServiceConfig maps the deployment window with the creator tools.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Window:    bridge.DefaultConfig(),
		Handshake: handshake.DefaultConfig(),
		ToolsDir:  "..",
	}
}

// Templates resolves the tool templates in effect.
func (c ServiceConfig) Templates() dispatch.Templates {
	if c.Tools != nil {
		return c.Tools
	}
	return dispatch.DefaultTemplates(c.ToolsDir)
}

// Service runs the bridge until the process is signalled.
type Service struct {
	cfg    ServiceConfig
	logger zerolog.Logger
	runner tools.CommandRunner
	open   func(bridge.Config) (bridge.Window, error)
}

func NewService(logger zerolog.Logger) *Service {
	return NewServiceWithConfig(DefaultServiceConfig(), logger)
}

func NewServiceWithConfig(cfg ServiceConfig, logger zerolog.Logger) *Service {
	if cfg.ReportStatus {
		cfg.Handshake.Layout = cfg.Handshake.Layout.WithStatus()
	}
	return &Service{
		cfg:    cfg,
		logger: logger,
		runner: tools.ExecRunner{},
		open:   openWindow(cfg.Simulate),
	}
}

// WithRunner swaps the process runner.
func (s *Service) WithRunner(r tools.CommandRunner) *Service {
	s.runner = r
	return s
}

// Run blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext opens the window and polls until ctx is done. Failing to map
// the window is fatal and returned as a *bridge.MapError.
func (s *Service) RunContext(ctx context.Context) error {
	win, err := s.open(s.cfg.Window)
	if err != nil {
		return err
	}
	defer func() {
		if err := win.Close(); err != nil {
			s.logger.Error().Err(err).Msg("release register window")
		}
	}()
	s.logger.Info().
		Str("device", s.deviceName()).
		Str("base", fmt.Sprintf("0x%08X", s.cfg.Window.Base)).
		Str("span", fmt.Sprintf("0x%X", win.Span())).
		Msg("bridge mapped")

	d := dispatch.New(s.cfg.Templates(), s.runner, s.logger)
	loop, err := handshake.New(win, d, s.cfg.Handshake, s.logger)
	if err != nil {
		return err
	}

	opts := admin.Options{
		Addr:        strings.TrimSpace(s.cfg.AdminAddr),
		CorsOrigins: s.cfg.CorsOrigins,
		Token:       s.cfg.AdminToken,
		Window:      s.windowInfo(win),
	}
	if mem, ok := win.(*bridge.MemWindow); ok && s.cfg.Simulate {
		host := bridge.NewSimHost(mem, s.cfg.Handshake.Layout)
		opts.Host = host
		hostCtx, stopHost := context.WithCancel(ctx)
		hostDone := make(chan struct{})
		go func() {
			defer close(hostDone)
			host.Run(hostCtx, s.cfg.Handshake.PollInterval)
		}()
		defer func() {
			stopHost()
			<-hostDone
		}()
		if opts.Addr == "" {
			s.logger.Warn().Msg("simulate mode without admin_addr; nothing can raise commands")
		}
	}

	if opts.Addr != "" {
		srv := admin.New(opts, loop, s.logger)
		go func() {
			if err := srv.Serve(); err != nil {
				s.logger.Error().Err(err).Msg("admin server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return loop.Run(ctx)
}

func (s *Service) deviceName() string {
	if s.cfg.Simulate {
		return "simulated"
	}
	return s.cfg.Window.Device
}

func (s *Service) windowInfo(win bridge.Window) admin.WindowInfo {
	return admin.WindowInfo{
		Device:       s.deviceName(),
		Base:         fmt.Sprintf("0x%08X", s.cfg.Window.Base),
		Span:         fmt.Sprintf("0x%X", win.Span()),
		Simulated:    s.cfg.Simulate,
		StatusOutput: s.cfg.Handshake.Layout.HasStatus,
	}
}

func openWindow(simulate bool) func(bridge.Config) (bridge.Window, error) {
	if simulate {
		return func(cfg bridge.Config) (bridge.Window, error) {
			span := cfg.Span
			if span == 0 {
				span = bridge.DefaultSpan
			}
			return bridge.NewMemWindow(span), nil
		}
	}
	return func(cfg bridge.Config) (bridge.Window, error) {
		win, err := bridge.Open(cfg)
		if err != nil {
			return nil, err
		}
		return win, nil
	}
}
