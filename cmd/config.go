package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"esocc/build"
	"esocc/common"
	"esocc/report"
	"esocc/target"

	"github.com/ComedicChimera/olive"
)

// configure loads the build profile and the target description and
// initializes the reporter.  The global command-line arguments override the
// values the profile sets.
func configure(result *olive.ArgParseResult) (*build.Profile, *target.Target) {
	path := common.ProfileFileName
	if p, ok := result.Arguments["profile"]; ok {
		path = p.(string)
	}

	profile, perr := build.LoadProfile(path)

	logLevel := "verbose"
	if perr == nil {
		logLevel = profile.LogLevel
	}

	if ll, ok := result.Arguments["loglevel"]; ok {
		logLevel = ll.(string)
	}

	report.InitReporter(report.LogLevelNames[logLevel])

	if perr != nil {
		report.ReportFatal("%s", perr)
	}

	profile.LogLevel = logLevel

	if t, ok := result.Arguments["target"]; ok {
		profile.TargetPath = t.(string)
	}

	if profile.TargetPath == "" {
		return profile, target.Default()
	}

	tgt, err := target.Load(profile.TargetPath)
	if err != nil {
		report.ReportFatal("%s", err)
	}

	return profile, tgt
}

// parseAddress parses an address argument.  Hexadecimal and octal prefixes are
// accepted.
func parseAddress(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address `%s`", s)
	}

	if v < 0 {
		return 0, fmt.Errorf("negative address %d", v)
	}

	return v, nil
}

// stringArg returns the value of an optional string argument.
func stringArg(result *olive.ArgParseResult, name string) (string, bool) {
	if v, ok := result.Arguments[name]; ok {
		return v.(string), true
	}

	return "", false
}

// applyBase overrides the profile's base address with the `base` argument.
func applyBase(result *olive.ArgParseResult, profile *build.Profile) {
	if s, ok := stringArg(result, "base"); ok {
		base, err := parseAddress(s)
		if err != nil {
			report.ReportFatal("%s", err)
		}

		profile.Base = base
	}
}

// outputExt returns the file extension of an output kind.
func outputExt(kind string) string {
	switch kind {
	case build.OutputAsm:
		return common.AsmFileExt
	case build.OutputObj:
		return common.ObjectFileExt
	default:
		return common.BinaryFileExt
	}
}

// withExt replaces the extension of a path.
func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// splitList splits a comma separated list of paths, dropping empty entries.
func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}

// readFile reads an input file, exiting on failure.
func readFile(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		report.ReportFatal("%s", err)
	}

	return data
}

// finish ends the last phase and displays the concluding message.  The
// process exits with a failure status if any error was reported.
func finish(outputPath string) {
	report.ReportEndPhase()
	report.ReportCompilationFinished(outputPath)

	if report.AnyErrors() {
		os.Exit(1)
	}
}

// fail reports an error returned by the toolchain and exits.
func fail(err error) {
	report.ReportError(err)
	finish("")
}
