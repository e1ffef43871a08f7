package report

import (
	"fmt"
	"strings"
)

// Violation is a single broken structural invariant found by a checking pass.
// The location fields are optional: a negative block or instruction index
// means the violation is not tied to one.
type Violation struct {
	// The function the violation was found in.  Empty for module-level
	// violations.
	Func string

	// The block and instruction indices of the violation.
	Block, Instr int

	// The description of the broken invariant.
	Message string
}

func (v Violation) String() string {
	sb := strings.Builder{}

	if v.Func != "" {
		sb.WriteString(v.Func)

		if v.Block >= 0 {
			fmt.Fprintf(&sb, ":b%d", v.Block)
		}

		if v.Instr >= 0 {
			fmt.Fprintf(&sb, ":i%d", v.Instr)
		}

		sb.WriteString(": ")
	}

	sb.WriteString(v.Message)
	return sb.String()
}

// -----------------------------------------------------------------------------

// InternalError is an internal-invariant violation: a pass detected that the
// structure it was handed breaks a contract of an earlier pass.  These always
// indicate a defect in the compiler itself.
type InternalError struct {
	// The phase that detected the error, eg. `lower` or `verify`.
	Phase string

	// The function being processed, if any.
	Func string

	// The error message.
	Message string

	// The individual violations if the error was produced by a checker.
	Violations []Violation
}

func (ie *InternalError) Error() string {
	sb := strings.Builder{}
	sb.WriteString(ie.Phase)
	sb.WriteString(": ")

	if ie.Func != "" {
		sb.WriteString("in `")
		sb.WriteString(ie.Func)
		sb.WriteString("`: ")
	}

	sb.WriteString(ie.Message)

	for _, v := range ie.Violations {
		sb.WriteString("\n  ")
		sb.WriteString(v.String())
	}

	return sb.String()
}

// ICE creates a new internal error for the given phase and function.
func ICE(phase, fn string, msg string, args ...interface{}) *InternalError {
	return &InternalError{Phase: phase, Func: fn, Message: fmt.Sprintf(msg, args...)}
}

// -----------------------------------------------------------------------------

// TargetError is a target-capability error: the target description cannot
// satisfy something a pass needs, such as enough registers for a single
// instruction or an encodable immediate.
type TargetError struct {
	// The name of the target.
	Target string

	// The function and instruction that could not be handled.  Both may be
	// empty when the error concerns the description itself.
	Func, Instr string

	// The error message.
	Message string
}

func (te *TargetError) Error() string {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "target %s: ", te.Target)

	if te.Func != "" {
		fmt.Fprintf(&sb, "in `%s`: ", te.Func)
	}

	sb.WriteString(te.Message)

	if te.Instr != "" {
		fmt.Fprintf(&sb, " (at `%s`)", te.Instr)
	}

	return sb.String()
}

// Capability creates a new target-capability error.
func Capability(target, fn, instr string, msg string, args ...interface{}) *TargetError {
	return &TargetError{
		Target:  target,
		Func:    fn,
		Instr:   instr,
		Message: fmt.Sprintf(msg, args...),
	}
}

// -----------------------------------------------------------------------------

// LinkErrorKind is the kind of a link-resolution failure.
type LinkErrorKind int

// Enumeration of link error kinds.
const (
	LinkUndefined LinkErrorKind = iota
	LinkDuplicate
)

// LinkError is a link-resolution error.  These are user-visible: they result
// from an inconsistent set of input modules.
type LinkError struct {
	Kind LinkErrorKind

	// The symbol that could not be resolved.
	Symbol string

	// The modules involved.  For undefined symbols this is the referencing
	// module; for duplicates it is both defining modules.
	Modules []string
}

func (le *LinkError) Error() string {
	switch le.Kind {
	case LinkDuplicate:
		return fmt.Sprintf("duplicate symbol `%s` defined in %s", le.Symbol, strings.Join(le.Modules, " and "))
	default:
		return fmt.Sprintf("undefined symbol `%s` referenced in %s", le.Symbol, strings.Join(le.Modules, ", "))
	}
}

// Undefined creates an undefined-symbol link error.
func Undefined(sym, module string) *LinkError {
	return &LinkError{Kind: LinkUndefined, Symbol: sym, Modules: []string{module}}
}

// Duplicate creates a duplicate-symbol link error.
func Duplicate(sym, first, second string) *LinkError {
	return &LinkError{Kind: LinkDuplicate, Symbol: sym, Modules: []string{first, second}}
}

// -----------------------------------------------------------------------------

// CatchInternal recovers from an internal error raised via `panic` within a
// phase and stores it into the error pointed to by errp.  Deep recursive
// passes (such as lowering) raise internal errors this way rather than
// threading them through every return.  Any other panic value is re-raised.
// NB: This function must ALWAYS be deferred.
func CatchInternal(errp *error) {
	if x := recover(); x != nil {
		switch v := x.(type) {
		case *InternalError:
			*errp = v
		case *TargetError:
			*errp = v
		default:
			panic(x)
		}
	}
}

// -----------------------------------------------------------------------------

// SyntaxError is an error in hand-written assembly source.
type SyntaxError struct {
	File    string
	Line    int
	Message string
}

func (se *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", se.File, se.Line, se.Message)
}

// Syntax creates a new syntax error.
func Syntax(file string, line int, msg string, args ...interface{}) *SyntaxError {
	return &SyntaxError{File: file, Line: line, Message: fmt.Sprintf(msg, args...)}
}
