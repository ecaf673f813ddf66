package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/bridgectl/internal/dispatch"
	"github.com/pelletier/go-toml/v2"
)

// FileConfig is the on-disk bridgectl configuration.
type FileConfig struct {
	Device          string                `toml:"device"`
	Base            uint64                `toml:"base"`
	Span            uint32                `toml:"span"`
	Simulate        bool                  `toml:"simulate"`
	PollInterval    string                `toml:"poll_interval"`
	AckPollInterval string                `toml:"ack_poll_interval"`
	AckWarnAfter    string                `toml:"ack_warn_after"`
	ReportStatus    bool                  `toml:"report_status"`
	ToolsDir        string                `toml:"tools_dir"`
	AdminAddr       string                `toml:"admin_addr"`
	AdminToken      string                `toml:"admin_token"`
	CorsOrigins     []string              `toml:"cors_origins"`
	Tools           map[string]ToolConfig `toml:"tools"`
}

// ToolConfig overrides the invocation for one command kind. Exactly one of
// Command and Argv is set.
type ToolConfig struct {
	Command string   `toml:"command"`
	Argv    []string `toml:"argv"`
	Dir     string   `toml:"dir"`
}

// LoadFile strictly decodes path: unknown keys are errors.
func LoadFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	var cfg FileConfig
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return FileConfig{}, fmt.Errorf("config parse failed (%s): %s", path, strict.String())
		}
		return FileConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return FileConfig{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that decode but cannot be used.
func Validate(cfg FileConfig) error {
	if cfg.Base%4 != 0 {
		return fmt.Errorf("base 0x%X is not word aligned", cfg.Base)
	}
	if cfg.Span%4 != 0 {
		return fmt.Errorf("span 0x%X is not a whole number of registers", cfg.Span)
	}
	for key, raw := range map[string]string{
		"poll_interval":     cfg.PollInterval,
		"ack_poll_interval": cfg.AckPollInterval,
		"ack_warn_after":    cfg.AckWarnAfter,
	} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if _, err := ParseDuration(raw); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	if d, _ := ParseDuration(cfg.PollInterval); strings.TrimSpace(cfg.PollInterval) != "" && d <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if _, err := Templates(nil, cfg.Tools); err != nil {
		return err
	}
	return nil
}

// ParseDuration parses a duration and rejects negative values.
func ParseDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return d, nil
}

// Templates overlays tool overrides onto base.
func Templates(base dispatch.Templates, overrides map[string]ToolConfig) (dispatch.Templates, error) {
	out := make(dispatch.Templates, len(base))
	for k, t := range base {
		out[k] = t
	}
	for name, tool := range overrides {
		kind, err := dispatch.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("tools.%s: %w", name, err)
		}
		tmpl, err := tool.template()
		if err != nil {
			return nil, fmt.Errorf("tools.%s: %w", name, err)
		}
		out[kind] = tmpl
	}
	return out, nil
}

func (c ToolConfig) template() (dispatch.Template, error) {
	hasCommand := strings.TrimSpace(c.Command) != ""
	hasArgv := len(c.Argv) > 0
	var (
		tmpl dispatch.Template
		err  error
	)
	switch {
	case hasCommand && hasArgv:
		return dispatch.Template{}, fmt.Errorf("set either command or argv, not both")
	case hasCommand:
		tmpl, err = dispatch.ParseTemplate(c.Command)
	default:
		tmpl, err = dispatch.TemplateFromArgv(c.Argv)
	}
	if err != nil {
		return dispatch.Template{}, err
	}
	tmpl.Dir = strings.TrimSpace(c.Dir)
	return tmpl, nil
}
