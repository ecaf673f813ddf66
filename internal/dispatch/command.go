package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownKind = errors.New("dispatch: unknown command kind")

// Kind is the command-type register value.
type Kind uint32

const (
	KindBuild    Kind = 0x10
	KindSprite   Kind = 0x20
	KindSid      Kind = 0x30
	KindAIConfig Kind = 0x40
)

var kindNames = map[Kind]string{
	KindBuild:    "build",
	KindSprite:   "sprite",
	KindSid:      "sid",
	KindAIConfig: "ai_config",
}

// Kinds returns the known kinds in code order.
func Kinds() []Kind {
	return []Kind{KindBuild, KindSprite, KindSid, KindAIConfig}
}

// Known reports whether k is one of the recognised command codes.
func (k Kind) Known() bool {
	_, ok := kindNames[k]
	return ok
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02X)", uint32(k))
}

// ParseKind resolves a kind name as used in config files.
func ParseKind(name string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == key {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Command is one snapshot of the command registers.
type Command struct {
	Code uint32
	Addr uint32
	Data uint32
}

func (c Command) Kind() Kind {
	return Kind(c.Code)
}

func (c Command) String() string {
	return fmt.Sprintf("%s addr=0x%08X data=0x%08X", c.Kind(), c.Addr, c.Data)
}

const (
	MsgOK           = "ok"
	MsgUnrecognized = "unrecognized command code"
)

// Result is the dispatcher's verdict on one command.
type Result struct {
	OK       bool
	Message  string
	Invoked  bool
	ExitCode int
	Duration time.Duration
}
