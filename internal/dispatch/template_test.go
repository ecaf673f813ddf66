package dispatch

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseTemplateUsesPosixQuoting(t *testing.T) {
	tmpl, err := ParseTemplate(`python3 ../creator_cli.py sprite --generate "Random Sprite" --output '/tmp/out dir/sprite.bin'`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tmpl.Name != "python3" {
		t.Fatalf("unexpected name: %q", tmpl.Name)
	}
	want := []string{"../creator_cli.py", "sprite", "--generate", "Random Sprite", "--output", "/tmp/out dir/sprite.bin"}
	if !reflect.DeepEqual(tmpl.Args, want) {
		t.Fatalf("unexpected args: %q", tmpl.Args)
	}
}

func TestParseTemplateRejectsEmpty(t *testing.T) {
	if _, err := ParseTemplate("   "); !errors.Is(err, ErrEmptyTemplate) {
		t.Fatalf("expected ErrEmptyTemplate, got %v", err)
	}
	if _, err := TemplateFromArgv(nil); !errors.Is(err, ErrEmptyTemplate) {
		t.Fatalf("expected ErrEmptyTemplate for nil argv, got %v", err)
	}
}

func TestRenderSubstitutesPlaceholdersPerArgument(t *testing.T) {
	tmpl := Template{
		Name: "inject",
		Args: []string{"--at={addr}", "--len", "{data}", "--kind", "{code}", "{addr};rm -rf /"},
		Dir:  "/srv/tools",
	}
	inv := tmpl.Render(Command{Code: 0x20, Addr: 0xC000, Data: 64})
	want := []string{"--at=0x0000C000", "--len", "0x00000040", "--kind", "0x00000020", "0x0000C000;rm -rf /"}
	if !reflect.DeepEqual(inv.Args, want) {
		t.Fatalf("unexpected args: %q", inv.Args)
	}
	if inv.Dir != "/srv/tools" || inv.Name != "inject" {
		t.Fatalf("unexpected invocation: %+v", inv)
	}
	if tmpl.Args[0] != "--at={addr}" {
		t.Fatalf("render mutated template: %q", tmpl.Args)
	}
}

func TestKindNames(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Fatalf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if Kind(0x99).String() != "unknown(0x99)" {
		t.Fatalf("unexpected unknown name: %q", Kind(0x99).String())
	}
	if _, err := ParseKind("debug"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}
