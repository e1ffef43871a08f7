package typing

import "testing"

func TestStructLayout(t *testing.T) {
	point := &StructType{Name: "point", Fields: []Field{
		{Name: "x", Type: IntT},
		{Name: "y", Type: IntT},
	}}

	sprite := &StructType{Name: "sprite", Fields: []Field{
		{Name: "pos", Type: point},
		{Name: "tiles", Type: &ArrayType{ElemType: UCharType, Len: 4}},
		{Name: "color", Type: UShortType},
	}}

	if got := sprite.Size(); got != 7 {
		t.Errorf("sizeof(struct sprite) = %d; want 7", got)
	}

	tests := []struct {
		field string
		want  int
	}{
		{"pos", 0},
		{"tiles", 2},
		{"color", 6},
	}

	for _, test := range tests {
		off, _, ok := sprite.Offsetof(test.field)
		if !ok {
			t.Fatalf("Offsetof(%s) not found", test.field)
		}

		if off != test.want {
			t.Errorf("Offsetof(%s) = %d; want %d", test.field, off, test.want)
		}
	}

	if _, _, ok := sprite.Offsetof("missing"); ok {
		t.Errorf("Offsetof(missing) found a field")
	}
}

func TestUnionLayout(t *testing.T) {
	u := &StructType{Union: true, Fields: []Field{
		{Name: "word", Type: UIntType},
		{Name: "pair", Type: &ArrayType{ElemType: CharType, Len: 2}},
	}}

	if got := u.Size(); got != 2 {
		t.Errorf("sizeof(union) = %d; want 2", got)
	}

	if off, _, _ := u.Offsetof("pair"); off != 0 {
		t.Errorf("Offsetof(pair) = %d; want 0", off)
	}
}

func TestTypedefUnwrap(t *testing.T) {
	wchar := &NamedType{Name: "wchar_t", Type: UShortType}
	ptr := &PointerType{ElemType: wchar}

	if !IsScalar(wchar) || IsSigned(wchar) || IsByte(wchar) {
		t.Errorf("wchar_t classified incorrectly")
	}

	if ElemType(ptr) != wchar {
		t.Errorf("ElemType(%s) = %v; want wchar_t", ptr.Repr(), ElemType(ptr))
	}

	if got := ptr.Repr(); got != "wchar_t*" {
		t.Errorf("Repr = %q; want %q", got, "wchar_t*")
	}
}
