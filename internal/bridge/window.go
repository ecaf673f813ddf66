package bridge

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/danmuck/bridgectl/internal/regmap"
)

var (
	ErrWindowClosed  = errors.New("bridge: window closed")
	ErrInvalidWindow = errors.New("bridge: invalid window")
)

// Window is the only sanctioned access path to the register window.
type Window interface {
	ReadRegister(off regmap.Offset) uint32
	WriteRegister(off regmap.Offset, v uint32)
	Span() uint32
	Close() error
}

// MapError reports a failure to open or map the register window.
type MapError struct {
	Op     string
	Device string
	Base   uint64
	Span   uint32
	Err    error
}

func (e *MapError) Error() string {
	return fmt.Sprintf("bridge: %s %s base=0x%08X span=0x%X: %v", e.Op, e.Device, e.Base, e.Span, e.Err)
}

func (e *MapError) Unwrap() error {
	return e.Err
}

// MemWindow is an in-process register window. It stands in for the FPGA in
// tests and in simulate mode.
type MemWindow struct {
	words  []uint32
	closed atomic.Bool
}

// NewMemWindow allocates a zeroed window of span bytes.
func NewMemWindow(span uint32) *MemWindow {
	return &MemWindow{words: make([]uint32, span/regmap.Width)}
}

func (w *MemWindow) ReadRegister(off regmap.Offset) uint32 {
	return atomic.LoadUint32(w.word(off))
}

func (w *MemWindow) WriteRegister(off regmap.Offset, v uint32) {
	atomic.StoreUint32(w.word(off), v)
}

func (w *MemWindow) Span() uint32 {
	return uint32(len(w.words)) * regmap.Width
}

func (w *MemWindow) Close() error {
	w.closed.Store(true)
	return nil
}

func (w *MemWindow) word(off regmap.Offset) *uint32 {
	if w.closed.Load() {
		panic(ErrWindowClosed)
	}
	if off%regmap.Width != 0 || int(off/regmap.Width) >= len(w.words) {
		panic(fmt.Sprintf("bridge: register offset 0x%X outside window span 0x%X", uint32(off), w.Span()))
	}
	return &w.words[off/regmap.Width]
}
