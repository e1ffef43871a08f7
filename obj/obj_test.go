package obj

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"esocc/report"

	"github.com/kr/pretty"
)

// sample builds a small object: a text section with an absolute reference to
// a data word and a relative reference forward into the text section.
func sample() *Object {
	o := New("sample", "dcpu16", 16, 1)
	o.Section(SecText).Units = []uint32{0x7c01, 0, 0x7f82, 0, 0x8b83}
	o.Section(SecData).Units = []uint32{0x1234, 0}

	o.Symbols = []*Symbol{
		{Name: "start", Section: SecText, Offset: 0, Linkage: LinkExported},
		{Name: "end", Section: SecText, Offset: 4, Linkage: LinkLocal},
		{Name: "value", Section: SecData, Offset: 0, Linkage: LinkLocal},
	}

	o.Relocs = []*Reloc{
		{Section: SecText, Offset: 1, Symbol: "value", Kind: RelocAbs},
		{Section: SecText, Offset: 3, Symbol: "end", Kind: RelocRel, Addend: -1},
		{Section: SecData, Offset: 1, Symbol: "start", Kind: RelocAbs, Addend: 2},
	}

	return o
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		addr  int64
		align int
		want  int64
	}{
		{0, 1, 0},
		{5, 1, 5},
		{5, 4, 8},
		{8, 4, 8},
		{3, 0, 3},
	}

	for _, test := range tests {
		if got := AlignUp(test.addr, test.align); got != test.want {
			t.Errorf("AlignUp(%d, %d) = %d; want %d", test.addr, test.align, got, test.want)
		}
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		base int64
		want []uint32
	}{
		// value at 5, end at 4: 4 - 1 - 3 = 0, start+2 = 2
		{0, []uint32{0x7c01, 5, 0x7f82, 0, 0x8b83, 0x1234, 2}},
		{0x100, []uint32{0x7c01, 0x105, 0x7f82, 0, 0x8b83, 0x1234, 0x102}},
	}

	for _, test := range tests {
		image, err := sample().Resolve(test.base)
		if err != nil {
			t.Fatalf("Resolve(%d) failed: %v", test.base, err)
		}

		if !reflect.DeepEqual(image, test.want) {
			t.Errorf("Resolve(%d) = %x; want %x", test.base, image, test.want)
		}
	}
}

func TestResolveAligned(t *testing.T) {
	o := sample()
	o.Section(SecData).Align = 4

	image, err := o.Resolve(0)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	want := []uint32{0x7c01, 8, 0x7f82, 0, 0x8b83, 0, 0, 0, 0x1234, 2}
	if !reflect.DeepEqual(image, want) {
		t.Errorf("Resolve() = %x; want %x", image, want)
	}
}

func TestResolveUndefined(t *testing.T) {
	tests := []struct {
		name   string
		relocs []*Reloc
	}{
		{"referenced", []*Reloc{{Section: SecText, Offset: 3, Symbol: "draw_line"}}},
		{"unreferenced", nil},
	}

	for _, test := range tests {
		o := sample()
		o.Symbols = append(o.Symbols, &Symbol{Name: "draw_line", Linkage: LinkImported})
		o.Relocs = append(o.Relocs, test.relocs...)

		_, err := o.Resolve(0)

		var le *report.LinkError
		if !errors.As(err, &le) {
			t.Errorf("Resolve() with %s import = %v; want a link error", test.name, err)
			continue
		}

		want := &report.LinkError{Kind: report.LinkUndefined, Symbol: "draw_line", Modules: []string{"sample"}}
		if diff := pretty.Diff(le, want); len(diff) > 0 {
			t.Errorf("Resolve() with %s import error differs:\n%v", test.name, diff)
		}
	}
}

func TestBytes(t *testing.T) {
	units := []uint32{0x1234, 0xabcd}

	tests := []struct {
		big  bool
		want []byte
	}{
		{true, []byte{0x12, 0x34, 0xab, 0xcd}},
		{false, []byte{0x34, 0x12, 0xcd, 0xab}},
	}

	for _, test := range tests {
		data := Bytes(units, 16, test.big)
		if !bytes.Equal(data, test.want) {
			t.Errorf("Bytes(big=%v) = %x; want %x", test.big, data, test.want)
		}

		back, err := Units(data, 16, test.big)
		if err != nil || !reflect.DeepEqual(back, units) {
			t.Errorf("Units(big=%v) = %x, %v; want %x", test.big, back, err, units)
		}
	}

	if _, err := Units([]byte{1, 2, 3}, 16, true); err == nil {
		t.Errorf("Units() accepted a partial unit")
	}
}

func TestFileRoundTrip(t *testing.T) {
	o := sample()

	var buf bytes.Buffer
	if _, err := o.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() failed: %v", err)
	}

	back := &Object{}
	if _, err := back.ReadFrom(&buf); err != nil {
		t.Fatalf("ReadFrom() failed: %v", err)
	}

	if diff := pretty.Diff(back, o); len(diff) > 0 {
		t.Errorf("round trip differs: %v", diff)
	}
}

func TestReadGarbage(t *testing.T) {
	o := &Object{}
	if _, err := o.ReadFrom(bytes.NewReader([]byte("not an object"))); !errors.Is(err, ErrFormat) {
		t.Errorf("ReadFrom(garbage) = %v; want ErrFormat", err)
	}
}
