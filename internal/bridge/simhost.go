package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/danmuck/bridgectl/internal/regmap"
)

var ErrHostBusy = errors.New("bridge: host command still in flight")

// SimHost drives a MemWindow from the host side of the handshake.
type SimHost struct {
	win    *MemWindow
	layout regmap.Layout

	mu sync.Mutex
}

func NewSimHost(win *MemWindow, layout regmap.Layout) *SimHost {
	return &SimHost{win: win, layout: layout}
}

// Raise writes a command and asserts valid. It refuses while valid or done
// is still set from the previous command.
func (h *SimHost) Raise(code, addr, data uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.win.ReadRegister(h.layout.Valid) != 0 || h.win.ReadRegister(h.layout.Done) != 0 {
		return ErrHostBusy
	}
	h.win.WriteRegister(h.layout.Type, code)
	h.win.WriteRegister(h.layout.Addr, addr)
	h.win.WriteRegister(h.layout.Data, data)
	h.win.WriteRegister(h.layout.Valid, 1)
	return nil
}

// Acknowledge clears valid if done has been asserted and reports whether it
// did.
func (h *SimHost) Acknowledge() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.win.ReadRegister(h.layout.Done) == 0 || h.win.ReadRegister(h.layout.Valid) == 0 {
		return false
	}
	h.win.WriteRegister(h.layout.Valid, 0)
	return true
}

// Run acknowledges completed commands every interval until ctx is done.
func (h *SimHost) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Acknowledge()
		}
	}
}
