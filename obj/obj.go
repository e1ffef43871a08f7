// Package obj defines the relocatable object format produced by the assembler
// and consumed by the linker.  Sections hold target units (words on a
// word-addressed machine); every offset and address is counted in units.
package obj

import (
	"fmt"
	"sort"

	"esocc/report"
)

// SectionKind identifies one of the two sections of an object.
type SectionKind uint8

// Enumeration of sections in layout order.
const (
	SecText SectionKind = iota
	SecData

	NumSections
)

func (sk SectionKind) String() string {
	if sk == SecData {
		return ".data"
	}

	return ".text"
}

// Section is the contents of one section.
type Section struct {
	Kind SectionKind

	// The alignment of the section start in units.
	Align int

	Units []uint32
}

// Linkage is the visibility of a symbol.
type Linkage uint8

// Enumeration of linkages.
const (
	LinkLocal Linkage = iota
	LinkExported
	LinkImported
)

func (l Linkage) String() string {
	switch l {
	case LinkExported:
		return "exported"
	case LinkImported:
		return "imported"
	default:
		return "local"
	}
}

// Symbol is a named location.  Imported symbols have no section or offset.
type Symbol struct {
	Name    string
	Section SectionKind
	Offset  int64
	Linkage Linkage
}

// RelocKind is the computation used to patch a relocation.
type RelocKind uint8

// Enumeration of relocation kinds.  S is the symbol address, A the addend,
// and P the address of the patched unit.
const (
	RelocAbs RelocKind = iota // S + A
	RelocRel                  // S + A - P
)

func (rk RelocKind) String() string {
	if rk == RelocRel {
		return "rel"
	}

	return "abs"
}

// Reloc is a deferred patch of a single unit.
type Reloc struct {
	Section SectionKind
	Offset  int64
	Symbol  string
	Kind    RelocKind
	Addend  int64
}

// Object is a relocatable object module.
type Object struct {
	Name string

	// The target the object was assembled for and its unit width.
	Target   string
	UnitBits int

	Sections [NumSections]*Section
	Symbols  []*Symbol
	Relocs   []*Reloc
}

// New creates an empty object.
func New(name, target string, unitBits int, align int) *Object {
	o := &Object{Name: name, Target: target, UnitBits: unitBits}
	for k := range o.Sections {
		o.Sections[k] = &Section{Kind: SectionKind(k), Align: align}
	}

	return o
}

// Section returns the section of the given kind.
func (o *Object) Section(kind SectionKind) *Section {
	return o.Sections[kind]
}

// Lookup finds a symbol by name.
func (o *Object) Lookup(name string) (*Symbol, bool) {
	for _, sym := range o.Symbols {
		if sym.Name == name {
			return sym, true
		}
	}

	return nil, false
}

// Mask returns the mask of a single unit.
func (o *Object) Mask() uint32 {
	if o.UnitBits >= 32 {
		return ^uint32(0)
	}

	return uint32(1)<<uint(o.UnitBits) - 1
}

// Size returns the total size of the sections in units.
func (o *Object) Size() int {
	size := 0
	for _, sec := range o.Sections {
		size += len(sec.Units)
	}

	return size
}

// SortedSymbols returns the symbols ordered by section and offset, imports
// last.
func (o *Object) SortedSymbols() []*Symbol {
	syms := append([]*Symbol(nil), o.Symbols...)
	sort.SliceStable(syms, func(i, j int) bool {
		a, b := syms[i], syms[j]

		if (a.Linkage == LinkImported) != (b.Linkage == LinkImported) {
			return b.Linkage == LinkImported
		}

		if a.Section != b.Section {
			return a.Section < b.Section
		}

		return a.Offset < b.Offset
	})

	return syms
}

// -----------------------------------------------------------------------------

// Layout computes the address of each section when the object is placed at
// base: the sections follow one another, each aligned to its own alignment.
func (o *Object) Layout(base int64) [NumSections]int64 {
	var addrs [NumSections]int64

	addr := base
	for k, sec := range o.Sections {
		addr = AlignUp(addr, sec.Align)
		addrs[k] = addr
		addr += int64(len(sec.Units))
	}

	return addrs
}

// AlignUp rounds addr up to a multiple of align.
func AlignUp(addr int64, align int) int64 {
	if align <= 1 {
		return addr
	}

	a := int64(align)
	return (addr + a - 1) / a * a
}

// Patch computes the value of a relocation given the address of its symbol
// and of the patched unit.
func (r *Reloc) Patch(symAddr, unitAddr int64, mask uint32) uint32 {
	v := symAddr + r.Addend
	if r.Kind == RelocRel {
		v -= unitAddr
	}

	return uint32(v) & mask
}

// Resolve places the object at base and resolves every relocation against
// its own symbols, returning the flat image.  It fails if the object
// imports or references a symbol it does not define.
func (o *Object) Resolve(base int64) ([]uint32, error) {
	addrs := o.Layout(base)

	symAddrs := make(map[string]int64)
	for _, sym := range o.Symbols {
		if sym.Linkage == LinkImported {
			return nil, report.Undefined(sym.Name, o.Name)
		}

		symAddrs[sym.Name] = addrs[sym.Section] + sym.Offset
	}

	image := o.Image(addrs, base)
	for _, r := range o.Relocs {
		s, ok := symAddrs[r.Symbol]
		if !ok {
			return nil, report.Undefined(r.Symbol, o.Name)
		}

		p := addrs[r.Section] + r.Offset
		image[p-base] = r.Patch(s, p, o.Mask())
	}

	return image, nil
}

// Image copies the sections into a flat image starting at base given the
// section addresses.  Alignment gaps are zero.
func (o *Object) Image(addrs [NumSections]int64, base int64) []uint32 {
	end := base
	for k, sec := range o.Sections {
		if e := addrs[k] + int64(len(sec.Units)); e > end {
			end = e
		}
	}

	image := make([]uint32, end-base)
	for k, sec := range o.Sections {
		copy(image[addrs[k]-base:], sec.Units)
	}

	return image
}

// Bytes serializes units into bytes, unitBits/8 bytes per unit in the given
// byte order.
func Bytes(units []uint32, unitBits int, bigEndian bool) []byte {
	n := (unitBits + 7) / 8
	out := make([]byte, 0, len(units)*n)

	for _, u := range units {
		for i := 0; i < n; i++ {
			shift := uint(8 * i)
			if bigEndian {
				shift = uint(8 * (n - 1 - i))
			}

			out = append(out, byte(u>>shift))
		}
	}

	return out
}

// Units is the inverse of Bytes.  A trailing partial unit is an error.
func Units(data []byte, unitBits int, bigEndian bool) ([]uint32, error) {
	n := (unitBits + 7) / 8
	if len(data)%n != 0 {
		return nil, fmt.Errorf("image size %d is not a multiple of the %d byte unit", len(data), n)
	}

	units := make([]uint32, len(data)/n)
	for i := range units {
		var u uint32
		for j := 0; j < n; j++ {
			shift := uint(8 * j)
			if bigEndian {
				shift = uint(8 * (n - 1 - j))
			}

			u |= uint32(data[i*n+j]) << shift
		}

		units[i] = u
	}

	return units, nil
}
