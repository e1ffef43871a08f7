package codegen

import (
	"sort"

	"esocc/asm"
	"esocc/ir"
)

// wordsPerLine is the number of `.dw` items emitted per line of data.
const wordsPerLine = 8

// Module assembles a complete unit from the streams of a module's functions.
// bodies[i] is the stream of m.Funcs[i] and is ignored for declarations.
// Exported definitions are declared global and every symbol that is used but
// not defined in the unit is declared external.
func Module(m *ir.Module, bodies []asm.Stream) asm.Stream {
	defined := make(map[string]bool)
	for i, f := range m.Funcs {
		if !f.IsDeclaration() && i < len(bodies) {
			for _, in := range bodies[i] {
				if in.Kind == asm.KindLabel {
					defined[in.Label] = true
				}
			}
		}
	}

	for _, g := range m.Globals {
		defined[g.Name] = true
	}

	var s asm.Stream
	for _, sym := range m.Symbols() {
		if sym.Linkage == ir.LinkExported && defined[sym.Name] {
			s = append(s, asm.Directive(asm.DirGlobal, asm.Sym(sym.Name, 0)))
		}
	}

	for _, name := range externs(m, bodies, defined) {
		s = append(s, asm.Directive(asm.DirExtern, asm.Sym(name, 0)))
	}

	s = append(s, asm.Directive(asm.DirText))
	for i, f := range m.Funcs {
		if !f.IsDeclaration() && i < len(bodies) {
			s = append(s, bodies[i]...)
		}
	}

	if len(m.Globals) > 0 {
		s = append(s, asm.Directive(asm.DirData))

		for _, g := range m.Globals {
			s = append(s, Data(g)...)
		}
	}

	return s
}

// externs returns the symbols referenced but not defined by the unit:
// imported symbols in declaration order followed by any others (such as
// runtime routines) in name order.
func externs(m *ir.Module, bodies []asm.Stream, defined map[string]bool) []string {
	used := make(map[string]bool)
	note := func(opd asm.Operand) {
		if opd.IsSymbolic() && !defined[opd.Sym] {
			used[opd.Sym] = true
		}
	}

	for _, body := range bodies {
		for _, in := range body {
			note(in.A)
			note(in.B)
		}
	}

	for _, g := range m.Globals {
		for _, item := range g.Init {
			if item.Sym != "" {
				note(asm.Sym(item.Sym, 0))
			}
		}
	}

	var names []string
	for _, sym := range m.Symbols() {
		if used[sym.Name] {
			names = append(names, sym.Name)
			delete(used, sym.Name)
		}
	}

	var rest []string
	for name := range used {
		rest = append(rest, name)
	}
	sort.Strings(rest)

	return append(names, rest...)
}

// Data emits the label and initial contents of a global.
func Data(g *ir.Global) asm.Stream {
	label := asm.Label(g.Name)
	if g.ReadOnly {
		label.WithComment("read-only")
	}

	s := asm.Stream{label}

	var line []asm.Operand
	flush := func() {
		if len(line) > 0 {
			s = append(s, asm.Directive(asm.DirWord, line...))
			line = nil
		}
	}

	for _, item := range g.Init {
		if item.Sym != "" {
			line = append(line, asm.Sym(item.Sym, item.Value))
		} else {
			line = append(line, asm.Lit(item.Value))
		}

		if len(line) == wordsPerLine {
			flush()
		}
	}

	flush()

	if rest := g.Size - len(g.Init); rest > 0 {
		s = append(s, asm.Directive(asm.DirFill, asm.Lit(int64(rest)), asm.Lit(0)))
	}

	return s
}
