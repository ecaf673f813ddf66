package bridge

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/danmuck/bridgectl/internal/regmap"
	"golang.org/x/sys/unix"
)

const (
	DefaultDevice = "/dev/mem"
	DefaultBase   = 0xFF200000 // lightweight HPS-to-FPGA bridge
	DefaultSpan   = 0x1000
)

// Config selects the physical window to map.
type Config struct {
	Device string
	Base   uint64
	Span   uint32
}

// DefaultConfig returns the deployment window of the bridge peripheral.
func DefaultConfig() Config {
	return Config{Device: DefaultDevice, Base: DefaultBase, Span: DefaultSpan}
}

// DevMem is a register window mapped from a memory device.
type DevMem struct {
	cfg     Config
	mapping []byte
	regs    []byte
	closed  atomic.Bool
	once    sync.Once
}

var _ Window = (*DevMem)(nil)

// Open maps cfg.Span bytes at physical address cfg.Base. Bases that are not
// page aligned are mapped from the containing page.
func Open(cfg Config) (*DevMem, error) {
	if cfg.Device == "" {
		cfg.Device = DefaultDevice
	}
	if cfg.Span == 0 || cfg.Span%regmap.Width != 0 || cfg.Base%regmap.Width != 0 {
		return nil, &MapError{Op: "validate", Device: cfg.Device, Base: cfg.Base, Span: cfg.Span, Err: ErrInvalidWindow}
	}

	fd, err := unix.Open(cfg.Device, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &MapError{Op: "open", Device: cfg.Device, Base: cfg.Base, Span: cfg.Span, Err: err}
	}
	// the mapping outlives the descriptor
	defer unix.Close(fd)

	page := uint64(unix.Getpagesize())
	pageBase := cfg.Base &^ (page - 1)
	delta := int(cfg.Base - pageBase)

	mapping, err := unix.Mmap(fd, int64(pageBase), delta+int(cfg.Span), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, &MapError{Op: "mmap", Device: cfg.Device, Base: cfg.Base, Span: cfg.Span, Err: err}
	}

	return &DevMem{
		cfg:     cfg,
		mapping: mapping,
		regs:    mapping[delta : delta+int(cfg.Span)],
	}, nil
}

func (m *DevMem) ReadRegister(off regmap.Offset) uint32 {
	return atomic.LoadUint32(m.word(off))
}

func (m *DevMem) WriteRegister(off regmap.Offset, v uint32) {
	atomic.StoreUint32(m.word(off), v)
}

func (m *DevMem) Span() uint32 {
	return m.cfg.Span
}

// Config returns the window the handle was opened with.
func (m *DevMem) Config() Config {
	return m.cfg
}

// Close unmaps the window. The first call reports an unmap failure; later
// calls return nil.
func (m *DevMem) Close() error {
	var err error
	m.once.Do(func() {
		m.closed.Store(true)
		if uerr := unix.Munmap(m.mapping); uerr != nil {
			err = &MapError{Op: "munmap", Device: m.cfg.Device, Base: m.cfg.Base, Span: m.cfg.Span, Err: uerr}
		}
		m.mapping = nil
		m.regs = nil
	})
	return err
}

func (m *DevMem) word(off regmap.Offset) *uint32 {
	if m.closed.Load() {
		panic(ErrWindowClosed)
	}
	if off%regmap.Width != 0 || uint32(off)+regmap.Width > m.cfg.Span {
		panic(fmt.Sprintf("bridge: register offset 0x%X outside window span 0x%X", uint32(off), m.cfg.Span))
	}
	return (*uint32)(unsafe.Pointer(&m.regs[off]))
}
