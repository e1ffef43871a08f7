package lower

import (
	"esocc/ast"
	"esocc/ir"
	"esocc/typing"
)

// lowerGlobal lowers a global variable definition.  Pure `extern`
// declarations produce no data.
func (l *Lowerer) lowerGlobal(vd *ast.VarDecl) {
	if vd.Init == nil && vd.Sym.Storage == ast.StorageExtern {
		return
	}

	sym := l.lookup("", vd.Sym)
	size := vd.Sym.Type.Size()

	var init []ir.DataItem
	if vd.Init != nil {
		init = make([]ir.DataItem, size)
		l.flattenInit(init, 0, vd.Sym.Type, vd.Init)
		init = trimZeros(init)
	}

	// a tentative definition followed by a real one keeps the initializer
	if g := l.mod.Global(vd.Sym.Name); g != nil {
		if init != nil {
			g.Init = init
		}

		return
	}

	l.mod.Globals = append(l.mod.Globals, &ir.Global{
		Name:    vd.Sym.Name,
		Size:    size,
		Linkage: sym.Linkage,
		Init:    init,
	})
}

// trimZeros drops trailing zero units: they are implied by the global's size.
// An all-zero initializer stays non-nil so the global is still emitted as
// initialized data.
func trimZeros(items []ir.DataItem) []ir.DataItem {
	n := len(items)
	for n > 0 && items[n-1].Value == 0 && items[n-1].Sym == "" {
		n--
	}

	return items[:n:n]
}

// flattenInit writes the units of an initializer for a value of type typ at
// offset off into out.
func (l *Lowerer) flattenInit(out []ir.DataItem, off int, typ typing.Type, init ast.Initializer) {
	switch t := typing.InnerType(typ).(type) {
	case *typing.ArrayType:
		if s, ok := init.(*ast.StringLit); ok {
			for i := 0; i < len(s.Value) && i < t.Len; i++ {
				out[off+i] = ir.DataItem{Value: normalize(int64(s.Value[i]), t.ElemType)}
			}

			return
		}

		list, ok := init.(*ast.InitList)
		if !ok {
			l.ice("", "array initializer must be a list or string")
		}

		esize := t.ElemType.Size()
		for i, item := range list.Items {
			if i >= t.Len {
				break
			}

			l.flattenInit(out, off+i*esize, t.ElemType, item)
		}
	case *typing.StructType:
		list, ok := init.(*ast.InitList)
		if !ok {
			l.ice("", "struct initializer must be a list")
		}

		for i, item := range list.Items {
			if i >= len(t.Fields) || (t.Union && i > 0) {
				break
			}

			foff, ftyp, _ := t.Offsetof(t.Fields[i].Name)
			l.flattenInit(out, off+foff, ftyp, item)
		}
	default:
		if list, ok := init.(*ast.InitList); ok {
			// a braced scalar initializer
			if len(list.Items) > 0 {
				l.flattenInit(out, off, typ, list.Items[0])
			}

			return
		}

		expr, ok := init.(ast.Expr)
		if !ok {
			l.ice("", "invalid scalar initializer %T", init)
		}

		value, sym := l.constValue(expr)
		if sym == "" {
			value = normalize(value, typ)
		}

		out[off] = ir.DataItem{Value: value, Sym: sym}
	}
}

// constValue evaluates a constant initializer expression to a value and an
// optional symbol whose address the value is relative to.
func (l *Lowerer) constValue(expr ast.Expr) (int64, string) {
	switch v := expr.(type) {
	case *ast.IntLit:
		return v.Value, ""
	case *ast.Cast:
		value, sym := l.constValue(v.X)
		if sym == "" {
			value = normalize(value, v.Type())
		}

		return value, sym
	case *ast.StringLit:
		return 0, l.stringGlobal(v.Value)
	case *ast.Ident:
		// arrays and functions decay to their address
		if typing.IsAggregate(v.Type()) || v.Sym.Kind == ast.SymFunc {
			l.lookup("", v.Sym)
			return 0, v.Sym.Name
		}
	case *ast.Unary:
		if v.Op == ast.OpAddrOf {
			return l.constAddr(v.X)
		}
	case *ast.Binary:
		if v.Op == ast.OpAdd || v.Op == ast.OpSub {
			base, sym := l.constValue(v.L)
			delta, dsym := l.constValue(v.R)
			if dsym != "" {
				l.ice("", "initializer adds two addresses")
			}

			if sym != "" {
				if elem := typing.ElemType(v.L.Type()); elem != nil {
					delta *= int64(elem.Size())
				}
			}

			if v.Op == ast.OpSub {
				delta = -delta
			}

			return base + delta, sym
		}
	}

	l.ice("", "initializer is not a constant expression")
	return 0, ""
}

// constAddr evaluates the address of a static lvalue.
func (l *Lowerer) constAddr(expr ast.Expr) (int64, string) {
	switch v := expr.(type) {
	case *ast.Ident:
		if v.Sym.Kind != ast.SymGlobal && v.Sym.Kind != ast.SymFunc {
			l.ice("", "address of `%s` is not constant", v.Sym.Name)
		}

		l.lookup("", v.Sym)
		return 0, v.Sym.Name
	case *ast.Index:
		idx, isym := l.constValue(v.Index)
		if isym != "" {
			l.ice("", "array index in initializer is not constant")
		}

		base, sym := l.constAddr(v.X)
		return base + idx*int64(v.Type().Size()), sym
	case *ast.Member:
		st := typing.Struct(v.X.Type())
		if v.Arrow {
			l.ice("", "member access through a pointer in initializer")
		}

		off, _, _ := st.Offsetof(v.Field)
		base, sym := l.constAddr(v.X)
		return base + int64(off), sym
	case *ast.StringLit:
		return 0, l.stringGlobal(v.Value)
	}

	l.ice("", "initializer takes the address of a non-static object")
	return 0, ""
}
