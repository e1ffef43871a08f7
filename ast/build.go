package ast

import "esocc/typing"

// The functions in this file construct typed nodes the way a front end would
// after checking, applying C's result-type rules.  They exist so that tools
// and tests can build well-typed trees without a parser.

// Int creates an `int` constant.
func Int(v int64) *IntLit {
	return &IntLit{ExprBase: ExprBase{Typ: typing.IntT}, Value: v}
}

// Lit creates a constant of the given type.
func Lit(v int64, typ typing.Type) *IntLit {
	return &IntLit{ExprBase: ExprBase{Typ: typ}, Value: v}
}

// Str creates a string literal.
func Str(s string) *StringLit {
	return &StringLit{
		ExprBase: ExprBase{Typ: &typing.ArrayType{ElemType: typing.CharType, Len: len(s) + 1}},
		Value:    s,
	}
}

// Ref creates a reference to a symbol.
func Ref(sym *Symbol) *Ident {
	return &Ident{ExprBase: ExprBase{Typ: sym.Type}, Sym: sym}
}

// Bin creates a binary operation.
func Bin(op Oper, l, r Expr) *Binary {
	var typ typing.Type

	switch {
	case op.IsComparison() || op == OpLogAnd || op == OpLogOr:
		typ = typing.IntT
	case typing.IsPointerLike(l.Type()) && typing.IsPointerLike(r.Type()):
		typ = typing.IntT
	case typing.IsPointerLike(l.Type()):
		typ = decay(l.Type())
	case typing.IsPointerLike(r.Type()):
		typ = decay(r.Type())
	case op == OpShl || op == OpShr:
		typ = promote(l.Type())
	default:
		typ = arith(l.Type(), r.Type())
	}

	return &Binary{ExprBase: ExprBase{Typ: typ}, Op: op, L: l, R: r}
}

// Un creates a unary operation.
func Un(op Oper, x Expr) *Unary {
	var typ typing.Type

	switch op {
	case OpNot:
		typ = typing.IntT
	case OpDeref:
		typ = typing.ElemType(x.Type())
	case OpAddrOf:
		typ = &typing.PointerType{ElemType: x.Type()}
	default:
		typ = promote(x.Type())
	}

	return &Unary{ExprBase: ExprBase{Typ: typ}, Op: op, X: x}
}

// Set creates a plain assignment.  A conversion is inserted when the types of
// the operands differ in width.
func Set(l, r Expr) *Assign {
	return &Assign{ExprBase: ExprBase{Typ: l.Type()}, L: l, R: Conv(r, l.Type())}
}

// SetOp creates a compound assignment.
func SetOp(op Oper, l, r Expr) *Assign {
	return &Assign{ExprBase: ExprBase{Typ: l.Type()}, Op: op, L: l, R: r}
}

// Inc creates an increment or decrement.
func Inc(x Expr, dec, post bool) *IncDec {
	return &IncDec{ExprBase: ExprBase{Typ: x.Type()}, X: x, Dec: dec, Post: post}
}

// CallOf creates a call through the given function expression.
func CallOf(fn Expr, args ...Expr) *Call {
	ft := typing.Func(fn.Type())

	var ret typing.Type = typing.Void
	if ft != nil {
		ret = ft.ReturnType

		for i, arg := range args {
			if i < len(ft.ParamTypes) {
				args[i] = Conv(arg, ft.ParamTypes[i])
			}
		}
	}

	return &Call{ExprBase: ExprBase{Typ: ret}, Func: fn, Args: args}
}

// At creates an array subscript.
func At(x, index Expr) *Index {
	return &Index{ExprBase: ExprBase{Typ: typing.ElemType(x.Type())}, X: x, Index: index}
}

// Dot creates a member access.  It returns nil if the field does not exist.
func Dot(x Expr, field string, arrow bool) *Member {
	st := typing.Struct(x.Type())
	if arrow {
		st = typing.Struct(typing.ElemType(x.Type()))
	}

	if st == nil {
		return nil
	}

	_, ftyp, ok := st.Offsetof(field)
	if !ok {
		return nil
	}

	return &Member{ExprBase: ExprBase{Typ: ftyp}, X: x, Field: field, Arrow: arrow}
}

// Conv converts x to typ if their widths or kinds differ.  Otherwise x is
// returned unchanged.
func Conv(x Expr, typ typing.Type) Expr {
	if !typing.IsScalar(typ) || !typing.IsScalar(x.Type()) {
		return x
	}

	if typing.IsByte(typ) == typing.IsByte(x.Type()) && typing.IsSigned(typ) == typing.IsSigned(x.Type()) {
		return x
	}

	if lit, ok := x.(*IntLit); ok {
		return Lit(lit.Value, typ)
	}

	return &Cast{ExprBase: ExprBase{Typ: typ}, X: x}
}

// Ternary creates a conditional expression.
func Ternary(cond, then, els Expr) *Cond {
	return &Cond{ExprBase: ExprBase{Typ: then.Type()}, Cond: cond, Then: then, Else: els}
}

// -----------------------------------------------------------------------------

// decay converts array types to pointer types.
func decay(typ typing.Type) typing.Type {
	if at, ok := typing.InnerType(typ).(*typing.ArrayType); ok {
		return &typing.PointerType{ElemType: at.ElemType}
	}

	return typ
}

// promote applies the integer promotions.
func promote(typ typing.Type) typing.Type {
	if it, ok := typing.InnerType(typ).(*typing.IntType); ok && it.Kind != typing.Int {
		// every integer type is one unit so unsigned short does not fit in
		// a signed int
		if !it.Signed && it.Kind == typing.Short {
			return typing.UIntType
		}

		return typing.IntT
	}

	return typ
}

// arith applies the usual arithmetic conversions.
func arith(l, r typing.Type) typing.Type {
	l, r = promote(l), promote(r)

	if !typing.IsSigned(l) || !typing.IsSigned(r) {
		return typing.UIntType
	}

	return typing.IntT
}
