package typing

// InnerType strips away any typedef wrapping.
func InnerType(typ Type) Type {
	for {
		if nt, ok := typ.(*NamedType); ok {
			typ = nt.Type
		} else {
			return typ
		}
	}
}

// IsVoid returns whether typ is `void`.
func IsVoid(typ Type) bool {
	_, ok := InnerType(typ).(*VoidType)
	return ok
}

// IsScalar returns whether values of typ fit in a single register: integers,
// pointers, and function pointers.
func IsScalar(typ Type) bool {
	switch InnerType(typ).(type) {
	case *IntType, *PointerType, *FuncType:
		return true
	}

	return false
}

// IsAggregate returns whether typ is an array, struct, or union.
func IsAggregate(typ Type) bool {
	switch InnerType(typ).(type) {
	case *ArrayType, *StructType:
		return true
	}

	return false
}

// IsSigned returns whether arithmetic on typ is signed.  Pointers are unsigned
// addresses.
func IsSigned(typ Type) bool {
	if it, ok := InnerType(typ).(*IntType); ok {
		return it.Signed
	}

	return false
}

// IsByte returns whether values of typ are byte-width.
func IsByte(typ Type) bool {
	if it, ok := InnerType(typ).(*IntType); ok {
		return it.IsByte()
	}

	return false
}

// ElemType returns the element type of a pointer or array type.  It returns nil
// for all other types.
func ElemType(typ Type) Type {
	switch v := InnerType(typ).(type) {
	case *PointerType:
		return v.ElemType
	case *ArrayType:
		return v.ElemType
	}

	return nil
}

// IsPointerLike returns whether typ is a pointer or array (which decays).
func IsPointerLike(typ Type) bool {
	return ElemType(typ) != nil
}

// Struct returns the struct type underlying typ or nil.
func Struct(typ Type) *StructType {
	st, _ := InnerType(typ).(*StructType)
	return st
}

// Func returns the function type underlying typ (or pointed to by typ) or nil.
func Func(typ Type) *FuncType {
	switch v := InnerType(typ).(type) {
	case *FuncType:
		return v
	case *PointerType:
		ft, _ := InnerType(v.ElemType).(*FuncType)
		return ft
	}

	return nil
}
