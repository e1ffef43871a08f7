// Package llvmexport converts IR modules into LLVM IR text.  The export is a
// debugging aid: it lets the output of lowering be inspected and checked with
// the LLVM tools.  Every value is an i16 target unit; byte values stay
// normalized inside a unit.  Addresses are integers and memory is accessed
// through inttoptr.
package llvmexport

import (
	"fmt"

	"esocc/ir"
	"esocc/report"

	llvm "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
)

// unit is the LLVM type of every IR value.
var unit = types.I16

// Exporter converts one IR module.
type Exporter struct {
	src *ir.Module
	mod *llvm.Module

	// Functions and globals by symbol name.
	funcs   map[string]*llvm.Func
	globals map[string]*llvm.Global
}

// Module exports an IR module.
func Module(m *ir.Module) (mod *llvm.Module, err error) {
	defer report.CatchInternal(&err)

	e := &Exporter{
		src:     m,
		mod:     llvm.NewModule(),
		funcs:   make(map[string]*llvm.Func),
		globals: make(map[string]*llvm.Global),
	}

	e.mod.SourceFilename = m.Name

	for _, f := range m.Funcs {
		e.declareFunc(f)
	}

	for _, g := range m.Globals {
		e.declareGlobal(g)
	}

	// Symbols referenced only through the symbol table are imports.
	for _, sym := range m.Symbols() {
		if e.lookup(sym.Name) != nil {
			continue
		}

		if sym.Kind == ir.SymFunc {
			e.funcs[sym.Name] = e.mod.NewFunc(sym.Name, unit)
		} else {
			e.globals[sym.Name] = e.mod.NewGlobal(sym.Name, unit)
		}
	}

	for _, g := range m.Globals {
		e.initGlobal(g)
	}

	for _, f := range m.Funcs {
		if !f.IsDeclaration() {
			newFuncExporter(e, f).export()
		}
	}

	return e.mod, nil
}

// Text exports an IR module and returns its LLVM source text.
func Text(m *ir.Module) (string, error) {
	mod, err := Module(m)
	if err != nil {
		return "", err
	}

	return mod.String(), nil
}

// -----------------------------------------------------------------------------

func (e *Exporter) declareFunc(f *ir.Func) {
	params := make([]*llvm.Param, len(f.Params))
	for i, p := range f.Params {
		params[i] = llvm.NewParam(fmt.Sprintf("v%d", p), unit)
	}

	var ret types.Type = types.Void
	if f.HasResult {
		ret = unit
	}

	lf := e.mod.NewFunc(f.Name, ret, params...)
	if f.Linkage == ir.LinkLocal {
		lf.Linkage = enum.LinkageInternal
	}

	e.funcs[f.Name] = lf
}

func (e *Exporter) declareGlobal(g *ir.Global) {
	var lg *llvm.Global
	if g.Linkage == ir.LinkImported {
		lg = e.mod.NewGlobal(g.Name, types.NewArray(uint64(g.Size), unit))
	} else {
		lg = e.mod.NewGlobalDef(g.Name, constant.NewZeroInitializer(types.NewArray(uint64(g.Size), unit)))
	}

	if g.Linkage == ir.LinkLocal {
		lg.Linkage = enum.LinkageInternal
	}

	lg.Immutable = g.ReadOnly
	e.globals[g.Name] = lg
}

// initGlobal sets the initializer of a defined global once every symbol its
// contents refer to is declared.
func (e *Exporter) initGlobal(g *ir.Global) {
	if g.Linkage == ir.LinkImported || len(g.Init) == 0 {
		return
	}

	typ := types.NewArray(uint64(g.Size), unit)
	elems := make([]constant.Constant, g.Size)
	for i := range elems {
		elems[i] = constant.NewInt(unit, 0)

		if i >= len(g.Init) {
			continue
		}

		item := g.Init[i]
		if item.Sym == "" {
			elems[i] = constant.NewInt(unit, item.Value)
			continue
		}

		addr := e.symbolAddress(item.Sym)
		elems[i] = addr
		if item.Value != 0 {
			elems[i] = constant.NewAdd(addr, constant.NewInt(unit, item.Value))
		}
	}

	e.globals[g.Name].Init = constant.NewArray(typ, elems...)
}

func (e *Exporter) lookup(name string) constant.Constant {
	if lf, ok := e.funcs[name]; ok {
		return lf
	}

	if lg, ok := e.globals[name]; ok {
		return lg
	}

	return nil
}

// symbolAddress returns the address of a symbol as a unit.
func (e *Exporter) symbolAddress(name string) constant.Constant {
	c := e.lookup(name)
	if c == nil {
		panic(report.ICE("llvmexport", "", "reference to undeclared symbol `%s`", name))
	}

	return constant.NewPtrToInt(c, unit)
}

// callee returns the function named by a direct call, declaring runtime
// routines that the module does not mention.
func (e *Exporter) callee(name string, nargs int) *llvm.Func {
	if lf, ok := e.funcs[name]; ok {
		return lf
	}

	params := make([]*llvm.Param, nargs)
	for i := range params {
		params[i] = llvm.NewParam("", unit)
	}

	lf := e.mod.NewFunc(name, unit, params...)
	e.funcs[name] = lf
	return lf
}
