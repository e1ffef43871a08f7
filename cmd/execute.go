package cmd

import (
	"os"

	"esocc/common"
	"esocc/report"

	"github.com/ComedicChimera/olive"
)

// Execute is the main entry point for the `esocc` CLI utility
func Execute() {
	// set up the argument parser and all its extended commands and arguments
	cli := olive.NewCLI("esocc", "esocc is a C compiler back end and toolchain for the DCPU-16", true)
	cli.AddSelectorArg("loglevel", "ll", "the compiler log level", false, []string{"silent", "error", "warn", "verbose"})
	cli.AddStringArg("profile", "p", "the path to the build profile", false)
	cli.AddStringArg("target", "t", "the path to a target description", false)

	demoCmd := cli.AddSubcommand("demo", "compile one of the built-in sample programs", true)
	demoCmd.AddPrimaryArg("sample", "the name of the sample to compile", true)
	demoCmd.AddStringArg("output", "o", "the output path", false)
	demoCmd.AddSelectorArg("kind", "k", "the output kind", false, []string{"asm", "obj", "bin"})
	demoCmd.AddStringArg("base", "b", "the load address of the binary", false)
	demoCmd.AddFlag("emit-ir", "ir", "write the IR of every unit next to the output")
	demoCmd.AddFlag("emit-llvm", "el", "write the LLVM export of every unit next to the output")
	demoCmd.AddFlag("no-peephole", "np", "disable the peephole optimizer")

	asmCmd := cli.AddSubcommand("asm", "assemble a text assembly file to an object", true)
	asmCmd.AddPrimaryArg("file", "the assembly file", true)
	asmCmd.AddStringArg("output", "o", "the output path", false)

	linkCmd := cli.AddSubcommand("link", "link objects", true)
	linkCmd.AddPrimaryArg("objects", "a comma separated list of object files", true)
	linkCmd.AddStringArg("output", "o", "the output path", false)
	linkCmd.AddFlag("bin", "bin", "produce a flat binary instead of a relocatable object")
	linkCmd.AddFlag("startup", "s", "link the startup object and the runtime the target needs")
	linkCmd.AddStringArg("base", "b", "the load address of the binary", false)

	objdumpCmd := cli.AddSubcommand("objdump", "display the contents of an object file", true)
	objdumpCmd.AddPrimaryArg("file", "the object file", true)
	objdumpCmd.AddFlag("verbose", "v", "dump the whole object structure")
	objdumpCmd.AddFlag("units", "u", "dump the units of every section")

	runCmd := cli.AddSubcommand("run", "run a flat binary on the emulator", true)
	runCmd.AddPrimaryArg("image", "the binary to run", true)
	runCmd.AddStringArg("steps", "s", "the maximum number of instructions to execute", false)
	runCmd.AddStringArg("base", "b", "the load address of the binary", false)

	cli.AddSubcommand("target", "print the resolved target description", false)
	cli.AddSubcommand("version", "print the esocc version", false)

	// run the argument parser
	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		report.PrintErrorMessage("CLI Usage Error", err)
		os.Exit(1)
	}

	// process the inputed command line
	subcmdName, subResult, _ := result.Subcommand()
	if subcmdName == "version" {
		report.PrintInfoMessage("esocc Version", common.EsoccVersion)
		return
	}

	profile, tgt := configure(result)

	switch subcmdName {
	case "demo":
		execDemoCommand(subResult, profile, tgt)
	case "asm":
		execAsmCommand(subResult, tgt)
	case "link":
		execLinkCommand(subResult, profile, tgt)
	case "objdump":
		execObjdumpCommand(subResult)
	case "run":
		execRunCommand(subResult, profile, tgt)
	case "target":
		execTargetCommand(tgt)
	}
}
