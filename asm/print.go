package asm

import (
	"fmt"
	"strings"
	"sync"

	"esocc/target"
)

// defaultTarget decides which symbols String escapes.
var defaultTarget = sync.OnceValue(target.Default)

// escapeSymbol writes name so that the parser reads it back as a symbol.
func escapeSymbol(tgt *target.Target, name string) string {
	if strings.HasPrefix(name, "$") || IsReserved(tgt, name) {
		return "$" + name
	}

	return name
}

// formatValue prints small values in decimal and addresses in hex.
func formatValue(v int64) string {
	if v >= 0x100 {
		return fmt.Sprintf("0x%x", v)
	}

	return fmt.Sprint(v)
}

// formatOffset prints a signed addend or displacement, omitting zero.
func formatOffset(v int64) string {
	switch {
	case v > 0:
		return "+" + formatValue(v)
	case v < 0:
		return "-" + formatValue(-v)
	default:
		return ""
	}
}

func (o Operand) String() string {
	return o.format(defaultTarget())
}

func (o Operand) format(tgt *target.Target) string {
	switch o.Kind {
	case OpdReg:
		return o.Reg
	case OpdMem:
		return "[" + o.Reg + formatOffset(o.Value) + "]"
	case OpdLit:
		if o.Value < 0 {
			return "-" + formatValue(-o.Value)
		}

		return formatValue(o.Value)
	case OpdMemLit:
		return "[" + formatValue(o.Value) + "]"
	case OpdSym:
		return escapeSymbol(tgt, o.Sym) + formatOffset(o.Value)
	case OpdMemSym:
		return "[" + escapeSymbol(tgt, o.Sym) + formatOffset(o.Value) + "]"
	case OpdPush:
		return "PUSH"
	case OpdPop:
		return "POP"
	case OpdPeek:
		return "PEEK"
	case OpdPick:
		return "PICK " + formatValue(o.Value)
	case OpdSP:
		return "SP"
	case OpdPC:
		return "PC"
	case OpdEX:
		return "EX"
	default:
		return "<none>"
	}
}

func (in *Instr) String() string {
	return in.format(defaultTarget())
}

func (in *Instr) format(tgt *target.Target) string {
	sb := strings.Builder{}

	switch in.Kind {
	case KindLabel:
		sb.WriteString(escapeSymbol(tgt, in.Label))
		sb.WriteRune(':')
	case KindDirective:
		sb.WriteString(in.Mnemonic)

		for i, arg := range in.Args {
			if i == 0 {
				sb.WriteRune(' ')
			} else {
				sb.WriteString(", ")
			}

			sb.WriteString(arg.format(tgt))
		}
	default:
		sb.WriteString("    ")
		sb.WriteString(in.Mnemonic)
		sb.WriteRune(' ')

		if in.B.Kind != OpdNone {
			sb.WriteString(in.B.format(tgt))
			sb.WriteString(", ")
		}

		sb.WriteString(in.A.format(tgt))
	}

	if in.Comment != "" {
		for sb.Len() < 28 {
			sb.WriteRune(' ')
		}

		sb.WriteString(" ; ")
		sb.WriteString(in.Comment)
	}

	return sb.String()
}

// String renders the stream as assembly source for the default target.
func (s Stream) String() string {
	return s.Text(defaultTarget())
}

// Text renders the stream as assembly source which Parse accepts for tgt.
// Symbols spelled like one of its registers are escaped with `$`.
func (s Stream) Text(tgt *target.Target) string {
	sb := strings.Builder{}
	for _, in := range s {
		sb.WriteString(in.format(tgt))
		sb.WriteRune('\n')
	}

	return sb.String()
}
