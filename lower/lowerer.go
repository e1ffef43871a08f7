// Package lower converts a typed AST into the SSA form of the IR.
package lower

import (
	"fmt"

	"esocc/ast"
	"esocc/ir"
	"esocc/report"
	"esocc/typing"
)

// Lowerer is the construct responsible for converting a translation unit into
// an IR module.  Lowering is serial: the lowerer is the only writer of the
// module's symbol table, which is frozen once lowering completes.
type Lowerer struct {
	unit *ast.TranslationUnit
	mod  *ir.Module

	// strings maps string literal contents to the anonymous globals holding
	// them so identical literals share storage.
	strings map[string]string
}

// NewLowerer creates a new lowerer for a translation unit.
func NewLowerer(unit *ast.TranslationUnit) *Lowerer {
	return &Lowerer{
		unit:    unit,
		mod:     ir.NewModule(unit.Name),
		strings: make(map[string]string),
	}
}

// Lower converts a translation unit into an IR module in SSA form.  The
// returned error is always an internal error: the typed AST is trusted to be
// well formed.
func Lower(unit *ast.TranslationUnit) (m *ir.Module, err error) {
	defer report.CatchInternal(&err)

	return NewLowerer(unit).Lower(), nil
}

// Lower performs the conversion.  Internal errors are raised via `panic` and
// must be caught by the caller with report.CatchInternal.
func (l *Lowerer) Lower() *ir.Module {
	// declare every top-level symbol first so that bodies may refer to
	// functions and globals defined later in the unit
	for _, decl := range l.unit.Decls {
		l.declare(decl)
	}

	for _, decl := range l.unit.Decls {
		if vd, ok := decl.(*ast.VarDecl); ok {
			l.lowerGlobal(vd)
		}
	}

	for _, decl := range l.unit.Decls {
		if fd, ok := decl.(*ast.FuncDecl); ok && fd.Body != nil {
			l.mod.Funcs = append(l.mod.Funcs, l.lowerFunc(fd))
		}
	}

	// functions that were only ever declared become imported declarations
	for _, sym := range l.mod.Symbols() {
		if sym.Kind == ir.SymFunc && sym.Linkage == ir.LinkImported {
			l.mod.Funcs = append(l.mod.Funcs, ir.NewFunc(sym.Name, ir.LinkImported))
		}
	}

	l.mod.Freeze()
	return l.mod
}

// declare adds a top-level declaration to the module's symbol table.
func (l *Lowerer) declare(decl ast.Decl) {
	switch v := decl.(type) {
	case *ast.FuncDecl:
		linkage := ir.LinkImported
		if v.Body != nil {
			linkage = linkageOf(v.Sym, true)
		}

		l.mustDeclare(v.Sym.Name, ir.SymFunc, linkage)
	case *ast.VarDecl:
		defined := v.Init != nil || v.Sym.Storage != ast.StorageExtern
		l.mustDeclare(v.Sym.Name, ir.SymData, linkageOf(v.Sym, defined))
	default:
		l.ice("", "unknown declaration %T", decl)
	}
}

func (l *Lowerer) mustDeclare(name string, kind ir.SymbolKind, linkage ir.Linkage) {
	if _, err := l.mod.Declare(name, kind, linkage); err != nil {
		panic(err)
	}
}

// linkageOf determines the linkage of a top-level symbol.
func linkageOf(sym *ast.Symbol, defined bool) ir.Linkage {
	switch {
	case !defined:
		return ir.LinkImported
	case sym.Storage == ast.StorageStatic:
		return ir.LinkLocal
	default:
		return ir.LinkExported
	}
}

// lookup returns the module symbol for an AST symbol, raising an internal
// error if it was never declared.
func (l *Lowerer) lookup(fn string, sym *ast.Symbol) *ir.Symbol {
	if sym == nil {
		l.ice(fn, "reference to an unresolved identifier")
	}

	msym, ok := l.mod.Lookup(sym.Name)
	if !ok {
		l.ice(fn, "reference to undeclared symbol `%s`", sym.Name)
	}

	return msym
}

// ice raises an internal error.
func (l *Lowerer) ice(fn string, msg string, args ...interface{}) {
	panic(report.ICE("lower", fn, msg, args...))
}

// -----------------------------------------------------------------------------

// stringGlobal returns the name of the anonymous global holding a string
// literal, creating it on first use.
func (l *Lowerer) stringGlobal(s string) string {
	if name, ok := l.strings[s]; ok {
		return name
	}

	name := fmt.Sprintf("__str_%d", len(l.strings))
	l.strings[s] = name
	l.mustDeclare(name, ir.SymData, ir.LinkLocal)

	init := make([]ir.DataItem, len(s)+1)
	for i := 0; i < len(s); i++ {
		init[i] = ir.DataItem{Value: int64(s[i])}
	}

	l.mod.Globals = append(l.mod.Globals, &ir.Global{
		Name:     name,
		Size:     len(s) + 1,
		Linkage:  ir.LinkLocal,
		Init:     init,
		ReadOnly: true,
	})

	return name
}

// -----------------------------------------------------------------------------

// widthOf returns the IR width of values of a scalar type.
func widthOf(typ typing.Type) ir.Width {
	if typing.IsByte(typ) {
		return ir.WidthByte
	}

	return ir.WidthWord
}

// normalize truncates a constant to the range of a scalar type.
func normalize(v int64, typ typing.Type) int64 {
	if !typing.IsByte(typ) {
		return v
	}

	if typing.IsSigned(typ) {
		return int64(int8(v))
	}

	return v & 0xff
}
