package lower

import (
	"esocc/ast"
	"esocc/ir"
	"esocc/typing"
)

// expr lowers an expression evaluated for its value.  Integer constants are
// returned as immediates; callers that need a value use materialize.
func (fl *funcLowerer) expr(e ast.Expr) ir.Operand {
	switch v := e.(type) {
	case *ast.IntLit:
		return ir.Imm(normalize(v.Value, v.Type()))
	case *ast.StringLit:
		return ir.V(fl.b.Addr(fl.l.stringGlobal(v.Value), 0))
	case *ast.Ident:
		return fl.ident(v)
	case *ast.Binary:
		return fl.binary(v)
	case *ast.Unary:
		return fl.unary(v)
	case *ast.Assign:
		return fl.assign(v)
	case *ast.IncDec:
		return fl.incDec(v)
	case *ast.Call:
		return fl.call(v)
	case *ast.Index, *ast.Member:
		return fl.loadLValue(e)
	case *ast.Cast:
		return fl.cast(v)
	case *ast.Cond:
		return fl.ternary(v)
	case *ast.Comma:
		var last ir.Operand
		for _, sub := range v.Exprs {
			last = fl.expr(sub)
		}

		return last
	default:
		fl.ice("unknown expression %T", e)
		return ir.Operand{}
	}
}

// materialize turns an operand of type typ into a value.
func (fl *funcLowerer) materialize(op ir.Operand, typ typing.Type) ir.ValueID {
	if op.IsValue() {
		return op.Value
	}

	return fl.b.Const(op.Imm, widthOf(typ), typing.IsSigned(typ))
}

// value lowers an expression and materializes its result.
func (fl *funcLowerer) value(e ast.Expr) ir.ValueID {
	return fl.materialize(fl.expr(e), e.Type())
}

// -----------------------------------------------------------------------------

func (fl *funcLowerer) ident(id *ast.Ident) ir.Operand {
	sym := id.Sym
	if sym == nil {
		fl.ice("reference to an unresolved identifier")
	}

	if sym.Kind == ast.SymFunc {
		msym := fl.l.lookup(fl.fn.Name, sym)
		return ir.V(fl.b.Addr(msym.Name, 0))
	}

	if fl.isRegisterVar(sym) {
		return ir.V(fl.ssa.read(sym, fl.b.Block()))
	}

	return fl.loadLValue(id)
}

// loadLValue reads the object designated by an lvalue expression.  Arrays
// decay to the address of their first element; structs and functions evaluate
// to their address.
func (fl *funcLowerer) loadLValue(e ast.Expr) ir.Operand {
	a := fl.addrOf(e)

	typ := e.Type()
	if !typing.IsScalar(typ) || typing.Func(typ) != nil && !isPointer(typ) {
		return ir.V(fl.addrValue(a))
	}

	return ir.V(fl.b.Load(a.base, a.off, widthOf(typ), typing.IsSigned(typ)))
}

func isPointer(typ typing.Type) bool {
	_, ok := typing.InnerType(typ).(*typing.PointerType)
	return ok
}

// -----------------------------------------------------------------------------

// promotedSigned returns whether a value of typ takes part in arithmetic as a
// signed quantity after the integer promotions.
func promotedSigned(typ typing.Type) bool {
	if it, ok := typing.InnerType(typ).(*typing.IntType); ok {
		// all char types promote to int
		return it.Signed || it.Kind == typing.Char
	}

	return false
}

// arithSigned returns whether an operation between values of types l and r is
// signed under the usual arithmetic conversions.
func arithSigned(l, r typing.Type) bool {
	return promotedSigned(l) && promotedSigned(r)
}

// elemSize returns the size of the element a pointer-like type points to.
func elemSize(typ typing.Type) int64 {
	elem := typing.ElemType(typ)
	if elem == nil || elem.Size() == 0 {
		return 1
	}

	return int64(elem.Size())
}

// scale multiplies an integer operand by n.
func (fl *funcLowerer) scale(op ir.Operand, n int64) ir.Operand {
	if n == 1 {
		return op
	}

	if !op.IsValue() {
		return ir.Imm(op.Imm * n)
	}

	return ir.V(fl.b.Binary(ir.OpMul, op, ir.Imm(n), false))
}

var binaryOpcodes = map[ast.Oper]ir.Opcode{
	ast.OpAdd: ir.OpAdd,
	ast.OpSub: ir.OpSub,
	ast.OpMul: ir.OpMul,
	ast.OpDiv: ir.OpDiv,
	ast.OpMod: ir.OpMod,
	ast.OpAnd: ir.OpAnd,
	ast.OpOr:  ir.OpOr,
	ast.OpXor: ir.OpXor,
	ast.OpShl: ir.OpShl,
	ast.OpShr: ir.OpShr,
}

var conditions = map[ast.Oper]ir.Cond{
	ast.OpEq: ir.CondEq,
	ast.OpNe: ir.CondNe,
	ast.OpLt: ir.CondLt,
	ast.OpLe: ir.CondLe,
	ast.OpGt: ir.CondGt,
	ast.OpGe: ir.CondGe,
}

func (fl *funcLowerer) binary(e *ast.Binary) ir.Operand {
	switch {
	case e.Op == ast.OpLogAnd || e.Op == ast.OpLogOr:
		return fl.condValue(e)
	case e.Op.IsComparison():
		x, y := fl.expr(e.L), fl.expr(e.R)
		cond, signed := conditions[e.Op], arithSigned(e.L.Type(), e.R.Type())

		cond, x, y = fl.orderCompare(cond, x, y, e.L.Type(), e.R.Type())
		return ir.V(fl.b.Cmp(cond, signed, x, y))
	}

	x, y := fl.expr(e.L), fl.expr(e.R)
	return fl.arith(e.Op, x, y, e.L.Type(), e.R.Type())
}

// orderCompare puts the value operand of a comparison first, swapping the
// condition or materializing the left operand if both are constants.
func (fl *funcLowerer) orderCompare(cond ir.Cond, x, y ir.Operand, lt, rt typing.Type) (ir.Cond, ir.Operand, ir.Operand) {
	if x.IsValue() {
		return cond, x, y
	}

	if y.IsValue() {
		return cond.Swap(), y, x
	}

	return cond, ir.V(fl.materialize(x, lt)), y
}

// arith lowers an arithmetic operator applied to operands of types lt and rt,
// including the pointer forms of addition and subtraction.
func (fl *funcLowerer) arith(op ast.Oper, x, y ir.Operand, lt, rt typing.Type) ir.Operand {
	opc, ok := binaryOpcodes[op]
	if !ok {
		fl.ice("`%s` is not an arithmetic operator", op)
	}

	lp, rp := typing.IsPointerLike(lt), typing.IsPointerLike(rt)
	signed := arithSigned(lt, rt)

	switch {
	case lp && rp:
		// pointer difference counts elements
		diff := ir.V(fl.b.Binary(ir.OpSub, ir.V(fl.materialize(x, lt)), y, false))
		if n := elemSize(lt); n > 1 {
			return ir.V(fl.b.Binary(ir.OpDiv, diff, ir.Imm(n), true))
		}

		return diff
	case lp:
		y = fl.scale(y, elemSize(lt))
		signed = false
	case rp:
		x, y = y, fl.scale(x, elemSize(rt))
		lt = rt
		signed = false
	case opc == ir.OpShl || opc == ir.OpShr:
		signed = promotedSigned(lt)
	}

	if !x.IsValue() {
		if y.IsValue() && opc.IsCommutative() {
			x, y = y, x
		} else {
			x = ir.V(fl.materialize(x, lt))
		}
	}

	return ir.V(fl.b.Binary(opc, x, y, signed))
}

func (fl *funcLowerer) unary(e *ast.Unary) ir.Operand {
	switch e.Op {
	case ast.OpPlus:
		return fl.expr(e.X)
	case ast.OpNeg:
		x := fl.expr(e.X)
		if !x.IsValue() {
			return ir.Imm(normalize(-x.Imm, e.Type()))
		}

		return ir.V(fl.b.Unary(ir.OpNeg, x.Value, typing.IsSigned(e.Type())))
	case ast.OpCompl:
		x := fl.expr(e.X)
		if !x.IsValue() {
			return ir.Imm(normalize(^x.Imm, e.Type()))
		}

		return ir.V(fl.b.Unary(ir.OpNot, x.Value, typing.IsSigned(e.Type())))
	case ast.OpNot:
		x := fl.expr(e.X)
		if !x.IsValue() {
			if x.Imm == 0 {
				return ir.Imm(1)
			}

			return ir.Imm(0)
		}

		return ir.V(fl.b.Cmp(ir.CondEq, false, x, ir.Imm(0)))
	case ast.OpDeref:
		return fl.loadLValue(e)
	case ast.OpAddrOf:
		return ir.V(fl.addrValue(fl.addrOf(e.X)))
	default:
		fl.ice("unknown unary operator `%s`", e.Op)
		return ir.Operand{}
	}
}

// cast lowers a conversion.  Every scalar occupies one unit so only
// conversions into a byte type change the representation.
func (fl *funcLowerer) cast(e *ast.Cast) ir.Operand {
	x := fl.expr(e.X)

	to, from := e.Type(), e.X.Type()
	if typing.IsVoid(to) || !typing.IsByte(to) {
		return x
	}

	if typing.IsByte(from) && typing.IsSigned(from) == typing.IsSigned(to) {
		return x
	}

	if !x.IsValue() {
		return ir.Imm(normalize(x.Imm, to))
	}

	return ir.V(fl.b.Conv(x.Value, ir.WidthByte, typing.IsSigned(to)))
}

// convertTo normalizes the result of an arithmetic operation before it is
// stored into an object of type typ.
func (fl *funcLowerer) convertTo(op ir.Operand, typ typing.Type) ir.Operand {
	if !typing.IsByte(typ) {
		return op
	}

	if !op.IsValue() {
		return ir.Imm(normalize(op.Imm, typ))
	}

	return ir.V(fl.b.Conv(op.Value, ir.WidthByte, typing.IsSigned(typ)))
}

// -----------------------------------------------------------------------------

func (fl *funcLowerer) assign(e *ast.Assign) ir.Operand {
	lt := e.L.Type()

	if typing.IsAggregate(lt) {
		if e.Op != ast.OpNone {
			fl.ice("compound assignment to an aggregate")
		}

		dst := fl.addrOf(e.L)
		src := fl.addrOf(e.R)
		fl.copyObject(dst, src, lt)
		return ir.V(fl.addrValue(dst))
	}

	if id, ok := e.L.(*ast.Ident); ok && fl.isRegisterVar(id.Sym) {
		var val ir.Operand
		if e.Op == ast.OpNone {
			val = fl.expr(e.R)
		} else {
			old := ir.V(fl.ssa.read(id.Sym, fl.b.Block()))
			val = fl.convertTo(fl.arith(e.Op, old, fl.expr(e.R), lt, e.R.Type()), lt)
		}

		fl.ssa.write(id.Sym, fl.b.Block(), fl.materialize(val, lt))
		return val
	}

	a := fl.addrOf(e.L)

	var val ir.Operand
	if e.Op == ast.OpNone {
		val = fl.expr(e.R)
	} else {
		old := ir.V(fl.b.Load(a.base, a.off, widthOf(lt), typing.IsSigned(lt)))
		val = fl.convertTo(fl.arith(e.Op, old, fl.expr(e.R), lt, e.R.Type()), lt)
	}

	fl.b.Store(a.base, a.off, val, widthOf(lt))
	return val
}

func (fl *funcLowerer) incDec(e *ast.IncDec) ir.Operand {
	typ := e.X.Type()

	op := ast.OpAdd
	if e.Dec {
		op = ast.OpSub
	}

	if id, ok := e.X.(*ast.Ident); ok && fl.isRegisterVar(id.Sym) {
		old := ir.V(fl.ssa.read(id.Sym, fl.b.Block()))
		val := fl.convertTo(fl.arith(op, old, ir.Imm(1), typ, typing.IntT), typ)
		fl.ssa.write(id.Sym, fl.b.Block(), fl.materialize(val, typ))

		if e.Post {
			return old
		}

		return val
	}

	a := fl.addrOf(e.X)
	old := ir.V(fl.b.Load(a.base, a.off, widthOf(typ), typing.IsSigned(typ)))
	val := fl.convertTo(fl.arith(op, old, ir.Imm(1), typ, typing.IntT), typ)
	fl.b.Store(a.base, a.off, val, widthOf(typ))

	if e.Post {
		return old
	}

	return val
}

// -----------------------------------------------------------------------------

func (fl *funcLowerer) call(e *ast.Call) ir.Operand {
	args := make([]ir.Operand, len(e.Args))
	for i, arg := range e.Args {
		// arrays decay to their address
		if typing.Struct(arg.Type()) != nil {
			fl.ice("struct arguments are not supported")
		}

		args[i] = fl.expr(arg)
	}

	typ := e.Type()
	hasResult := !typing.IsVoid(typ)
	width, signed := widthOf(typ), typing.IsSigned(typ)

	var result ir.ValueID
	if id, ok := e.Func.(*ast.Ident); ok && id.Sym != nil && id.Sym.Kind == ast.SymFunc {
		msym := fl.l.lookup(fl.fn.Name, id.Sym)
		if msym.Kind != ir.SymFunc {
			fl.ice("call to `%s` which is not a function", msym.Name)
		}

		result = fl.b.Call(msym.Name, args, hasResult, width, signed)
	} else {
		callee := fl.calleeValue(e.Func)

		// immediates are not allowed as the callee of an indirect call
		result = fl.b.CallIndirect(callee, args, hasResult, width, signed)
	}

	if !hasResult {
		return ir.Imm(0)
	}

	return ir.V(result)
}

// calleeValue evaluates the target of an indirect call.  `(*fp)(...)` and
// `fp(...)` are equivalent.
func (fl *funcLowerer) calleeValue(e ast.Expr) ir.ValueID {
	if u, ok := e.(*ast.Unary); ok && u.Op == ast.OpDeref && typing.Func(u.X.Type()) != nil {
		return fl.calleeValue(u.X)
	}

	return fl.value(e)
}

// -----------------------------------------------------------------------------

// ternary lowers `c ? a : b` by merging the arms through a synthetic variable.
func (fl *funcLowerer) ternary(e *ast.Cond) ir.Operand {
	typ := e.Type()
	thenBlk, elseBlk, join := fl.newBlock("cond.then"), fl.newBlock("cond.else"), fl.newBlock("cond.end")

	fl.lowerCond(e.Cond, thenBlk, elseBlk)
	fl.ssa.seal(thenBlk)
	fl.ssa.seal(elseBlk)

	if typing.IsVoid(typ) {
		fl.setBlock(thenBlk)
		fl.expr(e.Then)
		fl.jump(join)

		fl.setBlock(elseBlk)
		fl.expr(e.Else)
		fl.jump(join)

		fl.ssa.seal(join)
		fl.setBlock(join)
		return ir.Imm(0)
	}

	tmp := fl.tempVar(typ)

	fl.setBlock(thenBlk)
	v := fl.value(e.Then)
	fl.ssa.write(tmp, fl.b.Block(), v)
	fl.jump(join)

	fl.setBlock(elseBlk)
	v = fl.value(e.Else)
	fl.ssa.write(tmp, fl.b.Block(), v)
	fl.jump(join)

	fl.ssa.seal(join)
	fl.setBlock(join)
	return ir.V(fl.ssa.read(tmp, join))
}

// condValue lowers a short-circuit operator used for its value.
func (fl *funcLowerer) condValue(e ast.Expr) ir.Operand {
	tmp := fl.tempVar(typing.IntT)
	t, f, join := fl.newBlock("bool.true"), fl.newBlock("bool.false"), fl.newBlock("bool.end")

	fl.lowerCond(e, t, f)
	fl.ssa.seal(t)
	fl.ssa.seal(f)

	fl.setBlock(t)
	fl.ssa.write(tmp, t, fl.b.Const(1, ir.WidthWord, true))
	fl.jump(join)

	fl.setBlock(f)
	fl.ssa.write(tmp, f, fl.b.Const(0, ir.WidthWord, true))
	fl.jump(join)

	fl.ssa.seal(join)
	fl.setBlock(join)
	return ir.V(fl.ssa.read(tmp, join))
}

// lowerCond lowers an expression evaluated for its truth, transferring
// control to t if it is nonzero and to f otherwise.  The caller seals t and f
// once it has added any other predecessors.
func (fl *funcLowerer) lowerCond(e ast.Expr, t, f ir.BlockID) {
	switch v := e.(type) {
	case *ast.Binary:
		switch {
		case v.Op == ast.OpLogAnd:
			mid := fl.newBlock("and.rhs")
			fl.lowerCond(v.L, mid, f)
			fl.ssa.seal(mid)
			fl.setBlock(mid)
			fl.lowerCond(v.R, t, f)
			return
		case v.Op == ast.OpLogOr:
			mid := fl.newBlock("or.rhs")
			fl.lowerCond(v.L, t, mid)
			fl.ssa.seal(mid)
			fl.setBlock(mid)
			fl.lowerCond(v.R, t, f)
			return
		case v.Op.IsComparison():
			x, y := fl.expr(v.L), fl.expr(v.R)
			cond, signed := conditions[v.Op], arithSigned(v.L.Type(), v.R.Type())

			cond, x, y = fl.orderCompare(cond, x, y, v.L.Type(), v.R.Type())
			fl.b.Branch(cond, signed, x, y, t, f)
			return
		}
	case *ast.Unary:
		if v.Op == ast.OpNot {
			fl.lowerCond(v.X, f, t)
			return
		}
	}

	x := fl.expr(e)
	if !x.IsValue() {
		if x.Imm != 0 {
			fl.b.Jump(t)
		} else {
			fl.b.Jump(f)
		}

		return
	}

	fl.b.Branch(ir.CondNe, false, x, ir.Imm(0), t, f)
}
