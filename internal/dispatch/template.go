package dispatch

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/danmuck/bridgectl/internal/tools"
	"github.com/google/shlex"
)

var ErrEmptyTemplate = errors.New("dispatch: empty command template")

// Template is the fixed argument list for one command kind. Arguments may
// contain {code}, {addr} and {data}; they are replaced after splitting, so
// register payloads never add or split arguments.
type Template struct {
	Name string
	Args []string
	Dir  string
}

// Templates holds one template per known kind.
type Templates map[Kind]Template

// ParseTemplate splits a command line with POSIX quoting rules. No shell is
// involved at any point.
func ParseTemplate(line string) (Template, error) {
	argv, err := shlex.Split(line)
	if err != nil {
		return Template{}, fmt.Errorf("dispatch: parse template %q: %w", line, err)
	}
	return TemplateFromArgv(argv)
}

// TemplateFromArgv builds a template from an explicit argument vector.
func TemplateFromArgv(argv []string) (Template, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return Template{}, ErrEmptyTemplate
	}
	args := make([]string, len(argv)-1)
	copy(args, argv[1:])
	return Template{Name: argv[0], Args: args}, nil
}

// Render produces the invocation for cmd.
func (t Template) Render(cmd Command) tools.Invocation {
	r := strings.NewReplacer(
		"{code}", hex32(cmd.Code),
		"{addr}", hex32(cmd.Addr),
		"{data}", hex32(cmd.Data),
	)
	args := make([]string, len(t.Args))
	for i, arg := range t.Args {
		args[i] = r.Replace(arg)
	}
	return tools.Invocation{Name: t.Name, Args: args, Dir: t.Dir}
}

func hex32(v uint32) string {
	return fmt.Sprintf("0x%08X", v)
}

// DefaultTemplates returns the creator tool invocations, rooted at toolsDir.
func DefaultTemplates(toolsDir string) Templates {
	if toolsDir == "" {
		toolsDir = ".."
	}
	cli := filepath.Join(toolsDir, "creator_cli.py")
	return Templates{
		KindBuild: {
			Name: "python3",
			Args: []string{cli, "build", "--source", "project.asm", "--inject"},
		},
		KindSprite: {
			Name: "python3",
			Args: []string{cli, "sprite", "--generate", "Random Sprite", "--output", "/tmp/sprite.bin", "--format", "bin"},
		},
		KindSid: {
			Name: "python3",
			Args: []string{cli, "sid", "--compose", "Demo Sound", "--output", "/tmp/sound.asm"},
		},
		KindAIConfig: {
			Name: "python3",
			Args: []string{filepath.Join(toolsDir, "ai_service", "config_tool.py"), "--list"},
		},
	}
}
