package build

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"esocc/asm"
	"esocc/assemble"
	"esocc/ast"
	"esocc/common"
	"esocc/emu"
	"esocc/link"
	"esocc/obj"
	"esocc/report"
	"esocc/samples"
	"esocc/target"

	"github.com/kr/pretty"
)

func libcallTarget() *target.Target {
	tgt := target.Default()
	tgt.Division.Mode = "libcall"
	return tgt
}

// threeRegisterTarget is the default target restricted to three allocatable
// registers, so that most functions spill.
func threeRegisterTarget() *target.Target {
	tgt := target.Default()
	tgt.Registers.Allocatable = []string{"A", "B", "C"}
	return tgt
}

// runProgram builds a binary and runs it to completion.
func runProgram(t *testing.T, tgt *target.Target, profile *Profile, units ...*ast.TranslationUnit) (*emu.CPU, *Output) {
	t.Helper()

	c := NewCompiler(tgt, profile)

	out, err := c.Build("prog", units)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	cpu := emu.New()
	if err := cpu.Load(out.Image, profile.Base); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := cpu.Run(1000000); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	return cpu, out
}

// symbolAddress returns the load address of a symbol of a linked program.
func symbolAddress(t *testing.T, o *obj.Object, base int64, name string) int64 {
	t.Helper()

	sym, ok := o.Lookup(name)
	if !ok {
		t.Fatalf("program has no symbol `%s`", name)
	}

	return o.Layout(base)[sym.Section] + sym.Offset
}

func TestFeatures(t *testing.T) {
	tests := []struct {
		name    string
		tgt     *target.Target
		profile func(*Profile)
	}{
		{"native", target.Default(), func(*Profile) {}},
		{"libcall", libcallTarget(), func(*Profile) {}},
		{"no-peephole", target.Default(), func(p *Profile) { p.Peephole = false }},
		{"serial", target.Default(), func(p *Profile) { p.Workers = 1 }},
		{"based", target.Default(), func(p *Profile) { p.Base = 0x1000 }},
	}

	for _, test := range tests {
		profile := DefaultProfile()
		test.profile(profile)

		cpu, out := runProgram(t, test.tgt, profile, samples.Features())

		addr := symbolAddress(t, out.Object, profile.Base, "results")
		got := make([]uint16, len(samples.FeatureResults))
		copy(got, cpu.Memory[addr:])

		if diff := pretty.Diff(got, samples.FeatureResults); len(diff) > 0 {
			t.Errorf("%s: results differ:\n%v", test.name, diff)
		}
	}
}

func TestRegisterPressure(t *testing.T) {
	threeLibcall := threeRegisterTarget()
	threeLibcall.Division.Mode = "libcall"

	tests := []struct {
		name     string
		tgt      *target.Target
		peephole bool
	}{
		{"native", target.Default(), true},
		{"three registers", threeRegisterTarget(), true},
		{"three registers without peephole", threeRegisterTarget(), false},
		{"three registers libcall", threeLibcall, true},
	}

	for _, test := range tests {
		profile := DefaultProfile()
		profile.Peephole = test.peephole

		cpu, out := runProgram(t, test.tgt, profile, samples.Pressure())

		addr := symbolAddress(t, out.Object, profile.Base, "results")
		got := make([]uint16, len(samples.PressureResults))
		copy(got, cpu.Memory[addr:])

		if diff := pretty.Diff(got, samples.PressureResults); len(diff) > 0 {
			t.Errorf("%s: results differ:\n%v", test.name, diff)
		}
	}

	// The features program also runs correctly when it spills.
	cpu, out := runProgram(t, threeRegisterTarget(), DefaultProfile(), samples.Features())

	addr := symbolAddress(t, out.Object, 0, "results")
	got := make([]uint16, len(samples.FeatureResults))
	copy(got, cpu.Memory[addr:])

	if diff := pretty.Diff(got, samples.FeatureResults); len(diff) > 0 {
		t.Errorf("features on three registers: results differ:\n%v", diff)
	}
}

func TestDiag(t *testing.T) {
	want := []uint16{'H' | 3, 'e' | 3, 'l' | 3, 'o' | 3, 0}

	lib, app := samples.DiagSplit()
	programs := map[string][]*ast.TranslationUnit{
		"single": {samples.Diag()},
		"split":  {app, lib},
	}

	for name, units := range programs {
		cpu, _ := runProgram(t, target.Default(), DefaultProfile(), units...)

		got := cpu.Memory[samples.VideoRAM : samples.VideoRAM+len(want)]
		if diff := pretty.Diff(got, want); len(diff) > 0 {
			t.Errorf("%s: video memory differs:\n%v", name, diff)
		}
	}
}

func TestMissingLibrary(t *testing.T) {
	_, app := samples.DiagSplit()

	_, err := NewCompiler(target.Default(), nil).Build("prog", []*ast.TranslationUnit{app})

	var le *report.LinkError
	if !errors.As(err, &le) || le.Symbol != "draw_line" {
		t.Errorf("Build error = %v; want undefined draw_line", err)
	}
}

func TestDivisionRuntime(t *testing.T) {
	tgt := libcallTarget()

	rt, err := DivisionRuntime(tgt)
	if err != nil {
		t.Fatalf("DivisionRuntime failed: %v", err)
	}

	pairs := [][2]int16{
		{7, 2}, {-7, 2}, {7, -2}, {-7, -2}, {100, 7}, {0, 5}, {5, 0},
		{-32768, -1}, {-32768, 3}, {32767, -32768}, {-1, 1}, {1000, 1000},
	}

	eval := func(routine string, a, b int16) uint16 {
		src := "SET PUSH, " + itoa(b) + "\nSET PUSH, " + itoa(a) + "\nJSR " + routine +
			"\nADD SP, 2\nSUB PC, 1\n"

		s, err := asm.Parse("call", src, tgt)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}

		prog, err := assemble.Assemble("call", s, tgt)
		if err != nil {
			t.Fatalf("Assemble failed: %v", err)
		}

		res, err := link.Link([]*obj.Object{prog, rt}, link.Options{Mode: link.Flat})
		if err != nil {
			t.Fatalf("Link failed: %v", err)
		}

		cpu := emu.New()
		if err := cpu.Load(res.Image, 0); err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		if err := cpu.Run(10000); err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		if cpu.Regs[emu.RegX] != 0 {
			t.Errorf("%s clobbered X", routine)
		}

		return cpu.Regs[emu.RegA]
	}

	for _, p := range pairs {
		a, b := p[0], p[1]
		ua, ub := uint16(a), uint16(b)

		var divs, mods, divu, modu uint16
		if b != 0 {
			divs = uint16(int32(a) / int32(b))
			mods = uint16(int32(a) % int32(b))
			divu, modu = ua/ub, ua%ub
		}

		checks := []struct {
			routine string
			want    uint16
		}{
			{"__divs", divs},
			{"__mods", mods},
			{"__divu", divu},
			{"__modu", modu},
		}

		for _, c := range checks {
			if got := eval(c.routine, a, b); got != c.want {
				t.Errorf("%s(%d, %d) = %#x; want %#x", c.routine, a, b, got, c.want)
			}
		}
	}
}

func itoa(v int16) string {
	return strconv.Itoa(int(v))
}

func TestDeterministicOutput(t *testing.T) {
	var first string
	for _, workers := range []int{1, 2, 8} {
		profile := DefaultProfile()
		profile.Workers = workers

		u, err := NewCompiler(target.Default(), profile).Compile(samples.Features())
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}

		text := u.Asm.String()
		if first == "" {
			first = text
		} else if text != first {
			t.Errorf("output with %d workers differs from the serial output", workers)
		}
	}
}

func TestOutputKinds(t *testing.T) {
	dir := t.TempDir()
	lib, app := samples.DiagSplit()

	profile := DefaultProfile()
	profile.Output = OutputObj
	profile.EmitIR = true
	profile.EmitLLVM = true

	c := NewCompiler(target.Default(), profile)

	out, err := c.Build("video", []*ast.TranslationUnit{app, lib})
	if err != nil {
		t.Fatalf("Build(obj) failed: %v", err)
	}

	path := filepath.Join(dir, "video"+common.ObjectFileExt)
	if err := c.Write(out, path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	o, err := obj.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	sameImage(t, o, out.Object)

	if sym, ok := o.Lookup("draw_line"); !ok || sym.Linkage != obj.LinkExported {
		t.Errorf("linked object does not export draw_line")
	}

	for _, name := range []string{"app.ir", "app.ll", "video.ir", "video.ll"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("side file %s was not written: %v", name, err)
		}
	}

	profile.Output = OutputAsm
	if _, err := c.Build("both", []*ast.TranslationUnit{app, lib}); err == nil {
		t.Errorf("assembly output of two units succeeded")
	}

	out, err = c.Build("diag", []*ast.TranslationUnit{samples.Diag()})
	if err != nil {
		t.Fatalf("Build(asm) failed: %v", err)
	}

	path = filepath.Join(dir, "diag"+common.AsmFileExt)
	if err := c.Write(out, path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	text, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	// The written assembly must assemble to the same object.
	s, err := asm.Parse("diag", string(text), target.Default())
	if err != nil {
		t.Fatalf("Parse of written assembly failed: %v", err)
	}

	again, err := assemble.Assemble("diag", s, target.Default())
	if err != nil {
		t.Fatalf("Assemble of written assembly failed: %v", err)
	}

	sameImage(t, again, out.Object)

	profile.Output = OutputBin
	out, err = c.Build("diag", []*ast.TranslationUnit{samples.Diag()})
	if err != nil {
		t.Fatalf("Build(bin) failed: %v", err)
	}

	path = filepath.Join(dir, "diag"+common.BinaryFileExt)
	if err := c.Write(out, path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if len(data) != 2*len(out.Image) {
		t.Errorf("binary is %d bytes; want %d", len(data), 2*len(out.Image))
	}
}

func sameImage(t *testing.T, got, want *obj.Object) {
	t.Helper()

	a, err := got.Resolve(0)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	b, err := want.Resolve(0)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if diff := pretty.Diff(a, b); len(diff) > 0 {
		t.Errorf("object images differ:\n%v", diff)
	}
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()

	p, err := LoadProfile(filepath.Join(dir, common.ProfileFileName))
	if err != nil {
		t.Fatalf("LoadProfile(missing) failed: %v", err)
	}

	if diff := pretty.Diff(p, DefaultProfile()); len(diff) > 0 {
		t.Errorf("missing profile differs from the default:\n%v", diff)
	}

	path := filepath.Join(dir, common.ProfileFileName)
	src := "output = \"obj\"\npeephole = false\nbase-address = 512\nlink-objects = [\"lib.o\"]\n"
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	p, err = LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}

	if p.Output != OutputObj || p.Peephole || !p.Verify || p.Base != 512 {
		t.Errorf("LoadProfile = %+v; want obj output, no peephole, verify, base 512", p)
	}

	if len(p.LinkObjects) != 1 || p.LinkObjects[0] != "lib.o" {
		t.Errorf("LinkObjects = %v; want [lib.o]", p.LinkObjects)
	}

	if err := os.WriteFile(path, []byte("output = \"exe\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadProfile(path); err == nil {
		t.Errorf("LoadProfile accepted an unknown output kind")
	}
}
