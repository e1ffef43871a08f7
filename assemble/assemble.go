// Package assemble encodes an assembly stream into a relocatable object.
// Every absolute symbol reference and every forward branch becomes a
// relocation; backward branches are encoded directly since their targets are
// known when they are reached.
package assemble

import (
	"esocc/asm"
	"esocc/obj"
	"esocc/report"
	"esocc/target"
)

// Assembler holds the state of assembling one stream.
type Assembler struct {
	tgt  *target.Target
	name string

	o *obj.Object

	// The symbols of the object by name.
	symbols map[string]*obj.Symbol

	// The `.global` and `.extern` directives in order.
	decls []*asm.Instr

	// The branch form chosen for each BRA during layout.
	branches map[*asm.Instr]branchForm

	sec obj.SectionKind
}

// branchForm is the encoding of a relative branch.
type branchForm struct {
	backward bool

	// The displacement of backward branches and whether it fits in a short
	// literal.
	disp  int64
	short bool
}

// Assemble assembles a stream into an object named name.
func Assemble(name string, s asm.Stream, tgt *target.Target) (o *obj.Object, err error) {
	defer report.CatchInternal(&err)

	a := &Assembler{
		tgt:      tgt,
		name:     name,
		o:        obj.New(name, tgt.Name, tgt.UnitBits, tgt.SectionAlign),
		symbols:  make(map[string]*obj.Symbol),
		branches: make(map[*asm.Instr]branchForm),
	}

	if err := a.layout(s); err != nil {
		return nil, err
	}

	if err := a.encode(s); err != nil {
		return nil, err
	}

	if err := a.finishSymbols(); err != nil {
		return nil, err
	}

	return a.o, nil
}

func (a *Assembler) errorf(in *asm.Instr, msg string, args ...interface{}) error {
	line := 0
	if in != nil {
		line = in.Line
	}

	return report.Syntax(a.name, line, msg, args...)
}

// -----------------------------------------------------------------------------

// layout is the first pass: it defines every label and fixes the size of
// every entry.
func (a *Assembler) layout(s asm.Stream) error {
	var offsets [obj.NumSections]int64
	a.sec = obj.SecText

	for _, in := range s {
		switch in.Kind {
		case asm.KindLabel:
			if _, ok := a.symbols[in.Label]; ok {
				return a.errorf(in, "label `%s` defined twice", in.Label)
			}

			sym := &obj.Symbol{Name: in.Label, Section: a.sec, Offset: offsets[a.sec], Linkage: obj.LinkLocal}
			a.symbols[in.Label] = sym
			a.o.Symbols = append(a.o.Symbols, sym)
		case asm.KindDirective:
			size, err := a.directive(in, offsets[a.sec])
			if err != nil {
				return err
			}

			offsets[a.sec] += size
		default:
			size, err := a.instrSize(in, offsets[a.sec])
			if err != nil {
				return err
			}

			if a.sec != obj.SecText {
				return a.errorf(in, "instruction outside of .text")
			}

			offsets[a.sec] += size
		}
	}

	return nil
}

// directive applies a directive during layout and returns its size.
func (a *Assembler) directive(in *asm.Instr, offset int64) (int64, error) {
	switch in.Mnemonic {
	case asm.DirText:
		a.sec = obj.SecText
	case asm.DirData:
		a.sec = obj.SecData
	case asm.DirGlobal, asm.DirExtern:
		a.decls = append(a.decls, in)
	case asm.DirWord:
		return int64(len(in.Args)), nil
	case asm.DirFill:
		return in.Args[0].Value, nil
	case asm.DirAlign:
		return obj.AlignUp(offset, int(in.Args[0].Value)) - offset, nil
	default:
		return 0, a.errorf(in, "unknown directive `%s`", in.Mnemonic)
	}

	return 0, nil
}

// instrSize returns the size of an instruction, choosing the form of
// relative branches.
func (a *Assembler) instrSize(in *asm.Instr, offset int64) (int64, error) {
	op, ok := a.tgt.Opcode(in.Mnemonic)
	if !ok {
		return 0, a.errorf(in, "unknown instruction `%s`", in.Mnemonic)
	}

	if op.Kind == target.KindPseudo {
		return a.branchSize(in, offset)
	}

	size := int64(1)
	if a.hasNextWord(in.A, true) {
		size++
	}

	if op.Kind == target.KindBasic && a.hasNextWord(in.B, false) {
		size++
	}

	return size, nil
}

// branchSize chooses the form of a relative branch.  A branch to a label
// already defined in the same section is backward and its displacement is
// known; any other branch takes a full word patched by a relocation.
func (a *Assembler) branchSize(in *asm.Instr, offset int64) (int64, error) {
	if in.A.Kind != asm.OpdSym {
		return 0, a.errorf(in, "branch target must be a label")
	}

	sym, ok := a.symbols[in.A.Sym]
	if !ok || sym.Section != a.sec {
		a.branches[in] = branchForm{}
		return 2, nil
	}

	target := sym.Offset + in.A.Value

	// PC has advanced past the instruction when the displacement applies
	if d := offset + 1 - target; a.tgt.IsShortLiteral(d) && d >= 0 {
		a.branches[in] = branchForm{backward: true, disp: d, short: true}
		return 1, nil
	}

	a.branches[in] = branchForm{backward: true, disp: offset + 2 - target}
	return 2, nil
}

// hasNextWord returns whether an operand needs an extra word.  Only the a
// operand may use the short literal form.
func (a *Assembler) hasNextWord(opd asm.Operand, isA bool) bool {
	switch opd.Kind {
	case asm.OpdMem:
		return opd.Value != 0
	case asm.OpdLit:
		return !isA || !a.tgt.IsShortLiteral(opd.Value)
	case asm.OpdMemLit, asm.OpdSym, asm.OpdMemSym, asm.OpdPick:
		return true
	}

	return false
}

// finishSymbols applies the `.global` and `.extern` declarations and imports
// every symbol that is referenced but not defined.
func (a *Assembler) finishSymbols() error {
	for _, in := range a.decls {
		for _, arg := range in.Args {
			sym, ok := a.symbols[arg.Sym]

			switch {
			case in.Mnemonic == asm.DirExtern && ok && sym.Linkage != obj.LinkImported:
				return a.errorf(in, "external symbol `%s` is defined locally", arg.Sym)
			case in.Mnemonic == asm.DirExtern:
				a.importSymbol(arg.Sym)
			case !ok || sym.Linkage == obj.LinkImported:
				return a.errorf(in, "global symbol `%s` is not defined", arg.Sym)
			default:
				sym.Linkage = obj.LinkExported
			}
		}
	}

	for _, r := range a.o.Relocs {
		a.importSymbol(r.Symbol)
	}

	return nil
}

func (a *Assembler) importSymbol(name string) {
	if _, ok := a.symbols[name]; ok {
		return
	}

	sym := &obj.Symbol{Name: name, Linkage: obj.LinkImported}
	a.symbols[name] = sym
	a.o.Symbols = append(a.o.Symbols, sym)
}
