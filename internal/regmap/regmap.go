// Package regmap describes the shared FPGA register window.
//
// The layout is shared verbatim with the bridge peripheral in the FPGA design
// and with the host-side firmware. A mismatch between them is a deployment
// error that this package cannot detect.
package regmap

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrSpanTooSmall = errors.New("regmap: window span too small for layout")
	ErrUnaligned    = errors.New("regmap: register offset not word aligned")
	ErrUnknownName  = errors.New("regmap: unknown register name")
)

// Offset is a byte offset from the window base.
type Offset uint32

// Width is the size of every register in bytes.
const Width = 4

// Register offsets (bridge peripheral memory map).
const (
	CmdType   Offset = 0x00
	CmdAddr   Offset = 0x04
	CmdData   Offset = 0x08
	CmdValid  Offset = 0x10 // 1 = host raised a command
	CmdDone   Offset = 0x14 // 1 = command processed
	CmdStatus Offset = 0x18 // optional, see Layout.Status
)

// Status register values, written only when the status register is enabled.
const (
	StatusOK      uint32 = 0
	StatusFailed  uint32 = 1
	StatusUnknown uint32 = 2
)

// Layout is the set of registers a deployment uses.
type Layout struct {
	Type  Offset
	Addr  Offset
	Data  Offset
	Valid Offset
	Done  Offset

	// Status is only part of the layout when HasStatus is set.
	Status    Offset
	HasStatus bool
}

// Default returns the bridge layout without the status register.
func Default() Layout {
	return Layout{
		Type:   CmdType,
		Addr:   CmdAddr,
		Data:   CmdData,
		Valid:  CmdValid,
		Done:   CmdDone,
		Status: CmdStatus,
	}
}

// WithStatus returns a copy of l with the status register enabled.
func (l Layout) WithStatus() Layout {
	l.HasStatus = true
	return l
}

// Offsets returns every offset in use, ascending.
func (l Layout) Offsets() []Offset {
	out := []Offset{l.Type, l.Addr, l.Data, l.Valid, l.Done}
	if l.HasStatus {
		out = append(out, l.Status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Size is the minimum window span covering the layout.
func (l Layout) Size() uint32 {
	offs := l.Offsets()
	return uint32(offs[len(offs)-1]) + Width
}

// Validate checks that a window of span bytes can hold the layout.
func (l Layout) Validate(span uint32) error {
	for _, off := range l.Offsets() {
		if off%Width != 0 {
			return fmt.Errorf("%w: 0x%02X", ErrUnaligned, uint32(off))
		}
	}
	if need := l.Size(); span < need {
		return fmt.Errorf("%w: span=0x%X need=0x%X", ErrSpanTooSmall, span, need)
	}
	return nil
}

var names = map[string]Offset{
	"type":   CmdType,
	"addr":   CmdAddr,
	"data":   CmdData,
	"valid":  CmdValid,
	"done":   CmdDone,
	"status": CmdStatus,
}

// Lookup resolves a register name such as "valid" or "CMD_VALID".
func Lookup(name string) (Offset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimPrefix(key, "cmd_")
	if off, ok := names[key]; ok {
		return off, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownName, name)
}

// Name returns the short register name for off, or its hex form.
func Name(off Offset) string {
	for name, o := range names {
		if o == off {
			return name
		}
	}
	return fmt.Sprintf("0x%02X", uint32(off))
}
