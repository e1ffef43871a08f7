package lower

import (
	"esocc/ast"
	"esocc/ir"
	"esocc/typing"
)

// addr is the address of an object: a base pointer value plus a constant
// displacement folded into the accessing load or store.
type addr struct {
	base ir.ValueID
	off  int64
}

// addrValue materializes an address as a single value.
func (fl *funcLowerer) addrValue(a addr) ir.ValueID {
	if a.off == 0 {
		return a.base
	}

	return fl.b.Binary(ir.OpAdd, ir.V(a.base), ir.Imm(a.off), false)
}

// addrOf computes the address of an lvalue expression.
func (fl *funcLowerer) addrOf(e ast.Expr) addr {
	switch v := e.(type) {
	case *ast.Ident:
		return fl.symAddr(v.Sym)
	case *ast.StringLit:
		return addr{base: fl.b.Addr(fl.l.stringGlobal(v.Value), 0)}
	case *ast.Unary:
		if v.Op == ast.OpDeref {
			return fl.pointerAddr(v.X)
		}
	case *ast.Index:
		// an array is addressed in place while a pointer is loaded first
		var base addr
		if _, ok := typing.InnerType(v.X.Type()).(*typing.ArrayType); ok {
			base = fl.addrOf(v.X)
		} else {
			base = addr{base: fl.value(v.X)}
		}

		idx := fl.scale(fl.expr(v.Index), elemSize(v.X.Type()))
		if !idx.IsValue() {
			base.off += idx.Imm
			return base
		}

		return addr{base: fl.b.Binary(ir.OpAdd, idx, ir.V(base.base), false), off: base.off}
	case *ast.Member:
		var base addr
		var st *typing.StructType
		if v.Arrow {
			base = addr{base: fl.value(v.X)}
			st = typing.Struct(typing.ElemType(v.X.Type()))
		} else {
			base = fl.addrOf(v.X)
			st = typing.Struct(v.X.Type())
		}

		if st == nil {
			fl.ice("member access on a non-struct type")
		}

		off, _, ok := st.Offsetof(v.Field)
		if !ok {
			fl.ice("struct %s has no field `%s`", st.Repr(), v.Field)
		}

		base.off += int64(off)
		return base
	case *ast.Comma:
		for _, sub := range v.Exprs[:len(v.Exprs)-1] {
			fl.expr(sub)
		}

		return fl.addrOf(v.Exprs[len(v.Exprs)-1])
	}

	fl.ice("expression %T is not addressable", e)
	return addr{}
}

// pointerAddr computes the address designated by a pointer expression,
// folding a constant offset `p + n` into the displacement.
func (fl *funcLowerer) pointerAddr(p ast.Expr) addr {
	if bin, ok := p.(*ast.Binary); ok && (bin.Op == ast.OpAdd || bin.Op == ast.OpSub) && typing.IsPointerLike(bin.L.Type()) {
		if lit, ok := bin.R.(*ast.IntLit); ok {
			off := lit.Value * elemSize(bin.L.Type())
			if bin.Op == ast.OpSub {
				off = -off
			}

			a := fl.pointerAddr(bin.L)
			a.off += off
			return a
		}
	}

	return addr{base: fl.value(p)}
}

// symAddr returns the address of a memory-resident variable.
func (fl *funcLowerer) symAddr(sym *ast.Symbol) addr {
	if sym == nil {
		fl.ice("reference to an unresolved identifier")
	}

	if slot, ok := fl.frameVars[sym]; ok {
		return addr{base: fl.b.FrameAddr(slot, 0)}
	}

	switch sym.Kind {
	case ast.SymGlobal, ast.SymFunc:
		msym := fl.l.lookup(fl.fn.Name, sym)
		return addr{base: fl.b.Addr(msym.Name, 0)}
	}

	fl.ice("local `%s` has no storage", sym.Name)
	return addr{}
}

// -----------------------------------------------------------------------------

// copyObject copies an aggregate unit by unit.
func (fl *funcLowerer) copyObject(dst, src addr, typ typing.Type) {
	for i := int64(0); i < int64(typ.Size()); i++ {
		unit := fl.b.Load(src.base, src.off+i, ir.WidthWord, false)
		fl.b.Store(dst.base, dst.off+i, ir.V(unit), ir.WidthWord)
	}
}

// initUnit is a single unit of a local aggregate initializer.
type initUnit struct {
	val   ir.Operand
	width ir.Width
	set   bool
}

// initLocal stores an initializer into a frame object.  Units not covered by
// the initializer are zeroed.
func (fl *funcLowerer) initLocal(dst addr, typ typing.Type, init ast.Initializer) {
	if e, ok := init.(ast.Expr); ok && typing.Struct(typ) != nil && typing.Struct(e.Type()) != nil {
		fl.copyObject(dst, fl.addrOf(e), typ)
		return
	}

	units := make([]initUnit, typ.Size())
	fl.collectInit(units, 0, typ, init)

	for i, u := range units {
		if !u.set {
			u.val, u.width = ir.Imm(0), ir.WidthWord
		}

		fl.b.Store(dst.base, dst.off+int64(i), u.val, u.width)
	}
}

// collectInit evaluates the items of an initializer for an object of type typ
// at unit offset off in source order.
func (fl *funcLowerer) collectInit(units []initUnit, off int, typ typing.Type, init ast.Initializer) {
	switch t := typing.InnerType(typ).(type) {
	case *typing.ArrayType:
		if s, ok := init.(*ast.StringLit); ok {
			for i := 0; i < len(s.Value) && i < t.Len; i++ {
				units[off+i] = initUnit{
					val:   ir.Imm(normalize(int64(s.Value[i]), t.ElemType)),
					width: widthOf(t.ElemType),
					set:   true,
				}
			}

			return
		}

		list, ok := init.(*ast.InitList)
		if !ok {
			fl.ice("array initializer must be a list or string")
		}

		esize := t.ElemType.Size()
		for i, item := range list.Items {
			if i >= t.Len {
				break
			}

			fl.collectInit(units, off+i*esize, t.ElemType, item)
		}
	case *typing.StructType:
		list, ok := init.(*ast.InitList)
		if !ok {
			fl.ice("struct initializer must be a list")
		}

		foff := 0
		for i, item := range list.Items {
			if i >= len(t.Fields) || t.Union && i > 0 {
				break
			}

			fl.collectInit(units, off+foff, t.Fields[i].Type, item)
			foff += t.Fields[i].Type.Size()
		}
	default:
		// braces around a scalar are allowed
		if list, ok := init.(*ast.InitList); ok {
			if len(list.Items) > 0 {
				fl.collectInit(units, off, typ, list.Items[0])
			}

			return
		}

		e, ok := init.(ast.Expr)
		if !ok {
			fl.ice("invalid scalar initializer")
		}

		units[off] = initUnit{val: fl.expr(e), width: widthOf(typ), set: true}
	}
}
