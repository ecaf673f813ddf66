package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/bridgectl/internal/config"
	"github.com/danmuck/bridgectl/internal/daemon"
)

// loadServiceConfig overlays the keys present in path onto the defaults.
func loadServiceConfig(path string) (daemon.ServiceConfig, error) {
	cfg := daemon.DefaultServiceConfig()

	// strict pass first so misspelled keys fail instead of being ignored
	if _, err := config.LoadFile(path); err != nil {
		return daemon.ServiceConfig{}, err
	}

	var raw config.FileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return daemon.ServiceConfig{}, fmt.Errorf("load bridge config: %w", err)
	}

	if meta.IsDefined("device") {
		cfg.Window.Device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("base") {
		cfg.Window.Base = raw.Base
	}
	if meta.IsDefined("span") {
		cfg.Window.Span = raw.Span
	}
	if meta.IsDefined("simulate") {
		cfg.Simulate = raw.Simulate
	}

	if meta.IsDefined("poll_interval") {
		d, err := config.ParseDuration(raw.PollInterval)
		if err != nil {
			return daemon.ServiceConfig{}, fmt.Errorf("parse poll_interval: %w", err)
		}
		cfg.Handshake.PollInterval = d
	}
	if meta.IsDefined("ack_poll_interval") {
		d, err := config.ParseDuration(raw.AckPollInterval)
		if err != nil {
			return daemon.ServiceConfig{}, fmt.Errorf("parse ack_poll_interval: %w", err)
		}
		cfg.Handshake.AckPollInterval = d
	}
	if meta.IsDefined("ack_warn_after") {
		d, err := config.ParseDuration(raw.AckWarnAfter)
		if err != nil {
			return daemon.ServiceConfig{}, fmt.Errorf("parse ack_warn_after: %w", err)
		}
		cfg.Handshake.AckWarnAfter = d
	}
	if meta.IsDefined("report_status") {
		cfg.ReportStatus = raw.ReportStatus
	}

	if meta.IsDefined("tools_dir") {
		cfg.ToolsDir = strings.TrimSpace(raw.ToolsDir)
	}
	if meta.IsDefined("tools") {
		tmpls, err := config.Templates(cfg.Templates(), raw.Tools)
		if err != nil {
			return daemon.ServiceConfig{}, err
		}
		cfg.Tools = tmpls
	}

	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}

	return cfg, nil
}
