package regmap

import (
	"errors"
	"testing"
)

func TestDefaultLayoutMatchesBridgePeripheral(t *testing.T) {
	l := Default()
	if l.Type != 0x00 || l.Addr != 0x04 || l.Data != 0x08 || l.Valid != 0x10 || l.Done != 0x14 {
		t.Fatalf("unexpected layout: %+v", l)
	}
	if l.HasStatus {
		t.Fatalf("status register must be opt-in")
	}
	if got := l.Size(); got != 0x18 {
		t.Fatalf("unexpected size: 0x%X", got)
	}
	if got := l.WithStatus().Size(); got != 0x1C {
		t.Fatalf("unexpected size with status: 0x%X", got)
	}
}

func TestValidateSpan(t *testing.T) {
	l := Default()
	if err := l.Validate(0x1000); err != nil {
		t.Fatalf("validate 0x1000: %v", err)
	}
	if err := l.Validate(0x18); err != nil {
		t.Fatalf("validate exact span: %v", err)
	}
	if err := l.Validate(0x14); !errors.Is(err, ErrSpanTooSmall) {
		t.Fatalf("expected ErrSpanTooSmall, got %v", err)
	}
	if err := l.WithStatus().Validate(0x18); !errors.Is(err, ErrSpanTooSmall) {
		t.Fatalf("expected ErrSpanTooSmall with status, got %v", err)
	}

	bad := Default()
	bad.Done = 0x15
	if err := bad.Validate(0x1000); !errors.Is(err, ErrUnaligned) {
		t.Fatalf("expected ErrUnaligned, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	cases := map[string]Offset{
		"valid":     CmdValid,
		"CMD_VALID": CmdValid,
		" done ":    CmdDone,
		"cmd_type":  CmdType,
		"status":    CmdStatus,
	}
	for name, want := range cases {
		got, err := Lookup(name)
		if err != nil {
			t.Fatalf("lookup %q: %v", name, err)
		}
		if got != want {
			t.Fatalf("lookup %q: got 0x%X want 0x%X", name, got, want)
		}
	}
	if _, err := Lookup("irq"); !errors.Is(err, ErrUnknownName) {
		t.Fatalf("expected ErrUnknownName, got %v", err)
	}
	if Name(CmdDone) != "done" || Name(0x40) != "0x40" {
		t.Fatalf("unexpected names: %q %q", Name(CmdDone), Name(0x40))
	}
}
