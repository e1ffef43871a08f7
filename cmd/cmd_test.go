package cmd

import (
	"testing"

	"esocc/emu"
	"esocc/obj"

	"github.com/kr/pretty"
	"github.com/pterm/pterm"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		s    string
		want int64
		ok   bool
	}{
		{"0", 0, true},
		{"512", 512, true},
		{"0x200", 0x200, true},
		{"-1", 0, false},
		{"base", 0, false},
	}

	for _, test := range tests {
		got, err := parseAddress(test.s)
		if (err == nil) != test.ok || got != test.want {
			t.Errorf("parseAddress(%q) = %d, %v; want %d, ok %v", test.s, got, err, test.want, test.ok)
		}
	}
}

func TestPaths(t *testing.T) {
	if got := withExt("out.bin", outputExt("asm")); got != "out.s" {
		t.Errorf("withExt = %s; want out.s", got)
	}

	if got := withExt("dir/prog", outputExt("obj")); got != "dir/prog.o" {
		t.Errorf("withExt = %s; want dir/prog.o", got)
	}

	want := []string{"a.o", "b.o"}
	if diff := pretty.Diff(splitList(" a.o, ,b.o,"), want); len(diff) > 0 {
		t.Errorf("splitList differs:\n%v", diff)
	}
}

func TestObjectTables(t *testing.T) {
	o := obj.New("video", "dcpu16", 16, 1)
	o.Section(obj.SecText).Units = []uint32{0x7c01, 0, 0x8b83}
	o.Symbols = []*obj.Symbol{
		{Name: "puts", Linkage: obj.LinkImported},
		{Name: "draw", Section: obj.SecText, Offset: 2, Linkage: obj.LinkExported},
	}
	o.Relocs = []*obj.Reloc{{Section: obj.SecText, Offset: 1, Symbol: "puts", Kind: obj.RelocAbs}}

	wantSymbols := pterm.TableData{
		{"Symbol", "Linkage", "Section", "Offset"},
		{"draw", "exported", ".text", "0x02"},
		{"puts", "imported", "", ""},
	}

	if diff := pretty.Diff(symbolTable(o), wantSymbols); len(diff) > 0 {
		t.Errorf("symbol table differs:\n%v", diff)
	}

	wantRelocs := pterm.TableData{
		{"Section", "Offset", "Kind", "Symbol", "Addend"},
		{".text", "0x01", "abs", "puts", "0"},
	}

	if diff := pretty.Diff(relocTable(o), wantRelocs); len(diff) > 0 {
		t.Errorf("relocation table differs:\n%v", diff)
	}

	if got := len(sectionTable(o)); got != 3 {
		t.Errorf("section table has %d rows; want 3", got)
	}
}

func TestDumpUnits(t *testing.T) {
	units := []uint32{1, 2, 3, 4, 5, 6, 7, 8, 0xffff}
	want := "0000: 0001 0002 0003 0004 0005 0006 0007 0008\n0008: ffff\n"

	if got := dumpUnits(units, 16); got != want {
		t.Errorf("dumpUnits = %q; want %q", got, want)
	}
}

func TestMachineTable(t *testing.T) {
	cpu := emu.New()
	cpu.Regs[emu.RegA] = 0xfffe
	cpu.PC = 0x10

	data := machineTable(cpu)
	if diff := pretty.Diff(data[1], []string{"A", "0xfffe", "-2"}); len(diff) > 0 {
		t.Errorf("register A row differs:\n%v", diff)
	}

	if diff := pretty.Diff(data[9], []string{"PC", "0x0010", "16"}); len(diff) > 0 {
		t.Errorf("register PC row differs:\n%v", diff)
	}
}
