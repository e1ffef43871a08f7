package report

import (
	"errors"
	"fmt"
	"os"
)

// ReportICE reports an internal compiler error and exits.  These errors are
// always displayed regardless of log level.
func ReportICE(message string, args ...interface{}) {
	r := reporter()
	r.m.Lock()
	defer r.m.Unlock()

	displayEndPhase(false)
	displayICE(fmt.Sprintf(message, args...))

	os.Exit(-1)
}

// ReportFatal reports a fatal error.  These are errors that should cause all
// compilation to stop immediately but are expected: missing files, bad
// configuration, and so on.
func ReportFatal(message string, args ...interface{}) {
	r := reporter()
	if r.logLevel > LogLevelSilent {
		r.m.Lock()
		defer r.m.Unlock()

		displayEndPhase(false)
		displayFatal(fmt.Sprintf(message, args...))
	}

	os.Exit(1)
}

// ReportError reports an error returned by one of the compiler's passes.  The
// error is displayed according to its kind.
func ReportError(err error) {
	r := reporter()
	r.m.Lock()
	defer r.m.Unlock()

	r.errorCount++

	var ie *InternalError
	if errors.As(err, &ie) {
		// internal errors are always shown
		displayEndPhase(false)
		displayICE(err.Error())
		return
	}

	if r.logLevel > LogLevelSilent {
		displayEndPhase(false)
		displayError(err)
	}
}

// ReportWarning reports a warning message.
func ReportWarning(tag, message string, args ...interface{}) {
	r := reporter()
	r.m.Lock()
	defer r.m.Unlock()

	r.warnCount++

	if r.logLevel >= LogLevelWarn {
		PrintWarningMessage(tag, fmt.Sprintf(message, args...))
	}
}

// ReportInfo reports an informational message.  These are only displayed at
// the verbose log level.
func ReportInfo(tag, message string, args ...interface{}) {
	r := reporter()
	if r.logLevel == LogLevelVerbose {
		r.m.Lock()
		defer r.m.Unlock()

		PrintInfoMessage(tag, fmt.Sprintf(message, args...))
	}
}

// -----------------------------------------------------------------------------

// AnyErrors returns whether or not any errors were reported.
func AnyErrors() bool {
	return reporter().errorCount > 0
}

// -----------------------------------------------------------------------------
// Below are all the "aesthetic" reporting functions that will only run if the
// log level is to verbose.

// ReportCompileHeader displays the compiler version and target.
func ReportCompileHeader(target string) {
	if reporter().logLevel == LogLevelVerbose {
		displayCompileHeader(target)
	}
}

// ReportBeginPhase begins a new compilation phase, ending the previous one if
// one is still running.
func ReportBeginPhase(phase string) {
	r := reporter()
	if r.logLevel == LogLevelVerbose {
		r.m.Lock()
		defer r.m.Unlock()

		displayEndPhase(true)
		displayBeginPhase(phase)
	}
}

// ReportEndPhase ends the current compilation phase.
func ReportEndPhase() {
	r := reporter()
	if r.logLevel == LogLevelVerbose {
		r.m.Lock()
		defer r.m.Unlock()

		displayEndPhase(r.errorCount == 0)
	}
}

// ReportCompilationFinished displays the concluding message for compilation.
func ReportCompilationFinished(outputPath string) {
	r := reporter()
	if r.logLevel > LogLevelSilent {
		displayCompilationFinished(r.errorCount == 0, r.errorCount, r.warnCount, outputPath)
	}
}
