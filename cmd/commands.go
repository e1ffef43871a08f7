package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"esocc/asm"
	"esocc/assemble"
	"esocc/build"
	"esocc/common"
	"esocc/emu"
	"esocc/link"
	"esocc/obj"
	"esocc/report"
	"esocc/samples"
	"esocc/target"

	"github.com/ComedicChimera/olive"
	"github.com/pterm/pterm"
)

// defaultSteps is the step limit of `run` when none is given.
const defaultSteps = 1000000

// execDemoCommand compiles one of the built-in samples according to the
// profile.
func execDemoCommand(result *olive.ArgParseResult, profile *build.Profile, tgt *target.Target) {
	name, _ := result.PrimaryArg()

	units, ok := samples.Unit(name)
	if !ok {
		report.ReportFatal("unknown sample `%s`; the samples are: %s", name, strings.Join(samples.Names(), ", "))
	}

	if kind, ok := stringArg(result, "kind"); ok {
		if profile.OutputPath == build.DefaultProfile().OutputPath {
			profile.OutputPath = withExt(profile.OutputPath, outputExt(kind))
		}

		profile.Output = kind
	}

	if out, ok := stringArg(result, "output"); ok {
		profile.OutputPath = out
	}

	applyBase(result, profile)

	profile.EmitIR = profile.EmitIR || result.HasFlag("emit-ir")
	profile.EmitLLVM = profile.EmitLLVM || result.HasFlag("emit-llvm")
	if result.HasFlag("no-peephole") {
		profile.Peephole = false
	}

	if err := profile.Validate(); err != nil {
		report.ReportFatal("%s", err)
	}

	extra := readObjects(profile.LinkObjects)

	report.ReportCompileHeader(tgt.Name)

	c := build.NewCompiler(tgt, profile)

	out, err := c.Build(name, units, extra...)
	if err != nil {
		fail(err)
	}

	if err := c.Write(out, profile.OutputPath); err != nil {
		fail(err)
	}

	finish(profile.OutputPath)
}

// execAsmCommand assembles a text assembly file.
func execAsmCommand(result *olive.ArgParseResult, tgt *target.Target) {
	path, _ := result.PrimaryArg()

	outPath, ok := stringArg(result, "output")
	if !ok {
		outPath = withExt(path, common.ObjectFileExt)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	report.ReportBeginPhase("Assembling")

	s, err := asm.Parse(path, string(readFile(path)), tgt)
	if err != nil {
		fail(err)
	}

	o, err := assemble.Assemble(name, s, tgt)
	if err != nil {
		fail(err)
	}

	if err := o.WriteFile(outPath); err != nil {
		fail(err)
	}

	finish(outPath)
}

// execLinkCommand links object files into a relocatable object or a flat
// binary.
func execLinkCommand(result *olive.ArgParseResult, profile *build.Profile, tgt *target.Target) {
	list, _ := result.PrimaryArg()
	paths := append(splitList(list), profile.LinkObjects...)

	objects := readObjects(paths)
	if len(objects) == 0 {
		report.ReportFatal("no objects to link")
	}

	applyBase(result, profile)

	mode, ext := link.Relocatable, common.ObjectFileExt
	if result.HasFlag("bin") {
		mode, ext = link.Flat, common.BinaryFileExt
	}

	outPath, ok := stringArg(result, "output")
	if !ok {
		outPath = common.DefaultOutputName + ext
	}

	c := build.NewCompiler(tgt, profile)

	if result.HasFlag("startup") {
		var err error
		if objects, err = c.ProgramObjects(objects); err != nil {
			fail(err)
		}
	}

	name := strings.TrimSuffix(filepath.Base(outPath), filepath.Ext(outPath))

	res, err := c.Link(name, objects, mode)
	if err != nil {
		fail(err)
	}

	if mode == link.Flat {
		err = os.WriteFile(outPath, link.Flatten(res.Image, tgt.UnitBits, tgt.BigEndian()), 0644)
	} else {
		err = res.Object.WriteFile(outPath)
	}

	if err != nil {
		fail(err)
	}

	finish(outPath)
}

// readObjects reads object files, exiting on the first failure.
func readObjects(paths []string) []*obj.Object {
	var objects []*obj.Object
	for _, path := range paths {
		o, err := obj.ReadFile(path)
		if err != nil {
			report.ReportFatal("reading %s: %s", path, err)
		}

		objects = append(objects, o)
	}

	return objects
}

// execRunCommand runs a flat binary on the emulator and prints the final
// machine state.
func execRunCommand(result *olive.ArgParseResult, profile *build.Profile, tgt *target.Target) {
	path, _ := result.PrimaryArg()

	applyBase(result, profile)

	steps := int64(defaultSteps)
	if s, ok := stringArg(result, "steps"); ok {
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil || n <= 0 {
			report.ReportFatal("invalid step limit `%s`", s)
		}

		steps = n
	}

	image, err := obj.Units(readFile(path), tgt.UnitBits, tgt.BigEndian())
	if err != nil {
		report.ReportFatal("%s", err)
	}

	cpu := emu.New()
	if err := cpu.Load(image, profile.Base); err != nil {
		report.ReportFatal("%s", err)
	}

	if err := cpu.Run(steps); err != nil {
		if !errors.Is(err, emu.ErrStepLimit) {
			report.ReportFatal("%s", err)
		}

		report.ReportWarning("Emulator", "program did not halt within %d steps", steps)
	}

	if err := pterm.DefaultTable.WithHasHeader().WithData(machineTable(cpu)).Render(); err != nil {
		report.ReportFatal("%s", err)
	}
}

// machineTable tabulates the registers of a CPU.
func machineTable(cpu *emu.CPU) pterm.TableData {
	data := pterm.TableData{{"Register", "Value", "Signed"}}
	for i, name := range emu.RegisterNames {
		data = append(data, registerRow(name, cpu.Regs[i]))
	}

	data = append(data,
		registerRow("PC", cpu.PC),
		registerRow("SP", cpu.SP),
		registerRow("EX", cpu.EX),
		registerRow("IA", cpu.IA),
		[]string{"steps", strconv.FormatInt(cpu.Steps, 10), ""},
	)

	return data
}

func registerRow(name string, v uint16) []string {
	return []string{name, fmt.Sprintf("0x%04x", v), strconv.Itoa(int(int16(v)))}
}

// execTargetCommand prints the resolved target description.
func execTargetCommand(tgt *target.Target) {
	data, err := tgt.Encode()
	if err != nil {
		report.ReportFatal("%s", err)
	}

	fmt.Print(string(data))
}
