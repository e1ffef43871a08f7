package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"esocc/common"

	"github.com/pterm/pterm"
)

var (
	SuccessColorFG = pterm.FgLightGreen
	SuccessStyleBG = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	WarnColorFG    = pterm.FgYellow
	WarnStyleBG    = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	ErrorColorFG   = pterm.FgRed
	ErrorStyleBG   = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	InfoColorFG    = SuccessColorFG
	InfoStyleBG    = SuccessStyleBG
)

// PrintErrorMessage prints a standard Go error to the console
func PrintErrorMessage(tag string, err error) {
	ErrorStyleBG.Print(tag)
	ErrorColorFG.Println(" " + err.Error())
}

// PrintWarningMessage prints a warning message to the console
func PrintWarningMessage(tag, msg string) {
	WarnStyleBG.Print(tag)
	WarnColorFG.Println(" " + msg)
}

// PrintInfoMessage prints an informational message to the user
func PrintInfoMessage(tag, msg string) {
	InfoStyleBG.Print(tag)
	InfoColorFG.Println(" " + msg)
}

// -----------------------------------------------------------------------------

const icePostlude = `
This is a bug in the compiler: the pass that produced this input broke one of
its contracts.  Please open an issue with the input that triggered it.`

// displayICE displays an internal compiler error message.
func displayICE(message string) {
	fmt.Print("\n")
	ErrorStyleBG.Print("ICE")
	ErrorColorFG.Println(" " + message)
	InfoColorFG.Println(icePostlude)
}

// displayFatal displays a fatal error message.
func displayFatal(message string) {
	fmt.Print("\n")
	ErrorStyleBG.Print("Fatal Error")
	ErrorColorFG.Println(" " + message)
}

// displayError displays a pass error tagged by its kind.
func displayError(err error) {
	var te *TargetError
	var le *LinkError
	var se *SyntaxError

	switch {
	case errors.As(err, &te):
		PrintErrorMessage("Target Error", err)
	case errors.As(err, &le):
		PrintErrorMessage("Link Error", err)
	case errors.As(err, &se):
		PrintErrorMessage("Syntax Error", err)
	default:
		PrintErrorMessage("Error", err)
	}
}

// -----------------------------------------------------------------------------

// displayCompileHeader displays all the compiler information before starting
// compilation.
func displayCompileHeader(target string) {
	fmt.Print("esocc ")
	InfoColorFG.Print("v" + common.EsoccVersion)
	fmt.Print(" -- target: ")
	InfoColorFG.Println(target)
}

// phaseSpinner stores the current phase spinner
var phaseSpinner *pterm.SpinnerPrinter
var currentPhase string
var phaseStartTime time.Time

const maxPhaseLength = len("Assembling")

// displayBeginPhase displays the beginning of a compilation phase
func displayBeginPhase(phase string) {
	currentPhase = phase
	phaseText := phase + "..." + strings.Repeat(" ", maxPhaseLength-len(phase)+2)
	phaseSpinner = pterm.DefaultSpinner.WithStyle(pterm.NewStyle(InfoColorFG))

	phaseSpinner.SuccessPrinter = &pterm.PrefixPrinter{
		MessageStyle: pterm.NewStyle(pterm.FgDefault),
		Prefix: pterm.Prefix{
			Style: SuccessStyleBG,
			Text:  "Done",
		},
	}

	phaseSpinner.FailPrinter = &pterm.PrefixPrinter{
		MessageStyle: pterm.NewStyle(pterm.FgDefault),
		Prefix: pterm.Prefix{
			Style: ErrorStyleBG,
			Text:  "Fail",
		},
	}

	phaseSpinner.Start(phaseText)
	phaseStartTime = time.Now()
}

// displayEndPhase displays the end of a compilation phase
func displayEndPhase(success bool) {
	if phaseSpinner != nil {
		if success {
			phaseSpinner.Success(
				currentPhase+strings.Repeat(" ", maxPhaseLength-len(currentPhase)+2),
				fmt.Sprintf("(%.3fs)", time.Since(phaseStartTime).Seconds()),
			)
		} else {
			phaseSpinner.Fail(currentPhase + strings.Repeat(" ", maxPhaseLength-len(currentPhase)+2))
		}

		phaseSpinner = nil
	}
}

// displayCompilationFinished displays a compilation finished message
func displayCompilationFinished(success bool, errorCount, warningCount int, outputPath string) {
	fmt.Print("\n")

	if success {
		SuccessColorFG.Print("All done! ")
	} else {
		ErrorColorFG.Print("Oh no! ")
	}

	fmt.Print("(")

	switch errorCount {
	case 0:
		SuccessColorFG.Print(0)
		fmt.Print(" errors, ")
	case 1:
		ErrorColorFG.Print(1)
		fmt.Print(" error, ")
	default:
		ErrorColorFG.Print(errorCount)
		fmt.Print(" errors, ")
	}

	switch warningCount {
	case 0:
		SuccessColorFG.Print(0)
		fmt.Println(" warnings)")
	case 1:
		WarnColorFG.Print(1)
		fmt.Println(" warning)")
	default:
		WarnColorFG.Print(warningCount)
		fmt.Println(" warnings)")
	}

	if success && outputPath != "" {
		fmt.Print("output written to ")
		InfoColorFG.Println(outputPath)
	}
}
