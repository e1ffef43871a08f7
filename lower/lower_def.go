package lower

import (
	"esocc/ast"
	"esocc/ir"
	"esocc/typing"
)

// loopTargets are the jump targets of `break` and `continue` in the innermost
// enclosing breakable statement.  Switches have no continue target.
type loopTargets struct {
	brk, cont ir.BlockID
	hasCont   bool
}

// funcLowerer lowers a single function body.
type funcLowerer struct {
	l    *Lowerer
	decl *ast.FuncDecl
	fn   *ir.Func
	b    *ir.Builder
	ssa  *ssaBuilder

	// frameVars maps memory-resident locals to their frame objects.
	frameVars map[*ast.Symbol]int

	// addrTaken is the set of scalars that must live in the frame.
	addrTaken map[*ast.Symbol]bool

	loops []loopTargets
}

// lowerFunc lowers a function definition.
func (l *Lowerer) lowerFunc(fd *ast.FuncDecl) *ir.Func {
	sym := l.lookup("", fd.Sym)
	sig := fd.Signature()
	if sig == nil {
		l.ice(fd.Sym.Name, "function symbol does not have a function type")
	}

	fn := ir.NewFunc(fd.Sym.Name, sym.Linkage)
	if !typing.IsVoid(sig.ReturnType) {
		if !typing.IsScalar(sig.ReturnType) {
			l.ice(fn.Name, "functions returning aggregates are not supported")
		}

		fn.HasResult = true
		fn.ResultWidth = widthOf(sig.ReturnType)
	}

	b := ir.NewBuilder(fn)
	fl := &funcLowerer{
		l:         l,
		decl:      fd,
		fn:        fn,
		b:         b,
		ssa:       newSSABuilder(fn, b),
		frameVars: make(map[*ast.Symbol]int),
		addrTaken: addressTaken(fd.Body),
	}

	entry := fn.NewBlock("entry")
	fl.ssa.seal(entry)
	b.SetBlock(entry)

	for _, param := range fd.Params {
		if !typing.IsScalar(param.Type) {
			l.ice(fn.Name, "parameter `%s` of aggregate type is not supported", param.Name)
		}

		v := fn.NewParam(widthOf(param.Type), typing.IsSigned(param.Type), param.Name)

		if fl.addrTaken[param] {
			slot := fn.NewFrameObject(ir.FrameLocal, 1, param.Name)
			fl.frameVars[param] = slot
			b.Store(b.FrameAddr(slot, 0), 0, ir.V(v), widthOf(param.Type))
		} else {
			fl.ssa.write(param, entry, v)
		}
	}

	fl.lowerBlock(fd.Body)

	// falling off the end of the function
	if !b.Terminated() {
		fl.returnDefault()
	}

	cleanup(fn)
	return fn
}

// ice raises an internal error attributed to the current function.
func (fl *funcLowerer) ice(msg string, args ...interface{}) {
	fl.l.ice(fl.fn.Name, msg, args...)
}

// isRegisterVar returns whether sym is a local tracked as SSA values.
func (fl *funcLowerer) isRegisterVar(sym *ast.Symbol) bool {
	if sym.Kind != ast.SymLocal && sym.Kind != ast.SymParam {
		return false
	}

	_, inFrame := fl.frameVars[sym]
	return !inFrame && !fl.addrTaken[sym] && typing.IsScalar(sym.Type)
}

// newBlock creates a new block.
func (fl *funcLowerer) newBlock(name string) ir.BlockID {
	return fl.fn.NewBlock(name)
}

// setBlock moves the insertion point to blk.
func (fl *funcLowerer) setBlock(blk ir.BlockID) {
	fl.b.SetBlock(blk)
}

// jump terminates the current block with a jump unless it already ended.
func (fl *funcLowerer) jump(target ir.BlockID) {
	if !fl.b.Terminated() {
		fl.b.Jump(target)
	}
}

// startDead starts a new block after an unconditional transfer of control.
// Code lowered into it is unreachable and pruned later.
func (fl *funcLowerer) startDead() {
	blk := fl.newBlock("dead")
	fl.ssa.seal(blk)
	fl.setBlock(blk)
}

// returnDefault returns zero (or nothing) from the function.
func (fl *funcLowerer) returnDefault() {
	if fl.fn.HasResult {
		zero := ir.Imm(0)
		fl.b.Return(&zero)
	} else {
		fl.b.Return(nil)
	}
}

// tempVar creates a synthetic local used to merge values across control flow
// through the same phi construction as source variables.
func (fl *funcLowerer) tempVar(typ typing.Type) *ast.Symbol {
	return &ast.Symbol{Name: "tmp", Type: typ, Kind: ast.SymLocal}
}
