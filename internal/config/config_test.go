package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/danmuck/bridgectl/internal/dispatch"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestTemplatesLoad(t *testing.T) {
	for _, kind := range []string{"bridge", "simulate"} {
		body, err := Template(kind)
		if err != nil {
			t.Fatalf("template %s: %v", kind, err)
		}
		if _, err := LoadFile(writeConfig(t, body)); err != nil {
			t.Fatalf("load %s template: %v", kind, err)
		}
	}
	if _, err := Template("ghost"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "poll_intervall = \"10ms\"\n")
	_, err := LoadFile(path)
	if err == nil || !strings.Contains(err.Error(), "poll_intervall") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadFileRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"duration":     "poll_interval = \"soon\"\n",
		"zero poll":    "poll_interval = \"0s\"\n",
		"unaligned":    "base = 0xFF200002\n",
		"unknown tool": "[tools.debug]\ncommand = \"true\"\n",
		"both forms":   "[tools.build]\ncommand = \"make\"\nargv = [\"make\"]\n",
		"empty tool":   "[tools.build]\ncommand = \"  \"\n",
		"bad quoting":  "[tools.build]\ncommand = \"make \\\"unterminated\"\n",
	}
	for name, body := range cases {
		if _, err := LoadFile(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestTemplatesOverlay(t *testing.T) {
	base := dispatch.DefaultTemplates("/opt/creator")
	out, err := Templates(base, map[string]ToolConfig{
		"sprite": {Command: `spritegen --prompt "Random Sprite" --at {addr}`, Dir: "/srv"},
		"sid":    {Argv: []string{"sidlab", "--compose", "Demo Sound"}},
	})
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	want := dispatch.Template{Name: "spritegen", Args: []string{"--prompt", "Random Sprite", "--at", "{addr}"}, Dir: "/srv"}
	if !reflect.DeepEqual(out[dispatch.KindSprite], want) {
		t.Fatalf("unexpected sprite template: %+v", out[dispatch.KindSprite])
	}
	if out[dispatch.KindSid].Name != "sidlab" {
		t.Fatalf("unexpected sid template: %+v", out[dispatch.KindSid])
	}
	if !reflect.DeepEqual(out[dispatch.KindBuild], base[dispatch.KindBuild]) {
		t.Fatalf("build template should be inherited")
	}
	if base[dispatch.KindSprite].Name != "python3" {
		t.Fatalf("overlay mutated base")
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteTemplate(path, "bridge", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteTemplate(path, "bridge", false); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
	if err := WriteTemplate(path, "simulate", true); err != nil {
		t.Fatalf("forced write: %v", err)
	}
}
