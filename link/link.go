// Package link merges relocatable objects.  Linking runs in two phases: every
// object's sections are placed and its symbols collected into one table, and
// only then is any relocation resolved, so a reference may name a symbol
// exported by an object that appears later in the input list.
package link

import (
	"fmt"

	"esocc/obj"
	"esocc/report"
)

// Mode selects the kind of output the linker produces.
type Mode int

// Enumeration of link modes.
const (
	// Relocatable produces another object: relocations whose result depends
	// on the load address are kept.
	Relocatable Mode = iota

	// Flat produces a binary image placed at Options.Base with every
	// relocation applied.
	Flat
)

// Options configures a link.
type Options struct {
	Mode Mode

	// The name given to the merged object.
	Name string

	// The load address of a flat image.
	Base int64
}

// Result is the output of a link.  Object is always set; Image is set only in
// flat mode.
type Result struct {
	Object *obj.Object
	Image  []uint32
}

// placedSymbol is a symbol of an input object after section placement.
type placedSymbol struct {
	// The name of the symbol in the merged object.  Locals are renamed when
	// they collide.
	name string

	section obj.SectionKind
	offset  int64

	// The index of the defining object.
	owner int
}

// Linker holds the state of a single link.
type Linker struct {
	objects []*obj.Object
	opts    Options

	out *obj.Object

	// The offset of each input section within the merged section.
	placement [][obj.NumSections]int64

	// Exported symbols by name.
	global map[string]*placedSymbol

	// Symbols defined by each input object, by their original name.
	locals []map[string]*placedSymbol

	// Names already used in the merged symbol table.
	taken map[string]struct{}
}

// Link links objects in order according to opts.
func Link(objects []*obj.Object, opts Options) (*Result, error) {
	if len(objects) == 0 {
		return nil, fmt.Errorf("no objects to link")
	}

	l := &Linker{
		objects: objects,
		opts:    opts,
		global:  make(map[string]*placedSymbol),
		locals:  make([]map[string]*placedSymbol, len(objects)),
		taken:   make(map[string]struct{}),
	}

	if err := l.collect(); err != nil {
		return nil, err
	}

	if err := l.patch(); err != nil {
		return nil, err
	}

	res := &Result{Object: l.out}
	if opts.Mode == Flat {
		image, err := l.out.Resolve(opts.Base)
		if err != nil {
			return nil, err
		}

		res.Image = image
	}

	return res, nil
}

// -----------------------------------------------------------------------------

// collect places every input section and builds the symbol tables.
func (l *Linker) collect() error {
	first := l.objects[0]
	name := l.opts.Name
	if name == "" {
		name = first.Name
	}

	align := 1
	for _, sec := range first.Sections {
		if sec.Align > align {
			align = sec.Align
		}
	}

	l.out = obj.New(name, first.Target, first.UnitBits, align)
	l.placement = make([][obj.NumSections]int64, len(l.objects))

	for i, o := range l.objects {
		if o.Target != first.Target || o.UnitBits != first.UnitBits {
			return fmt.Errorf("object %s targets %s but %s targets %s", o.Name, o.Target, first.Name, first.Target)
		}

		for k, sec := range o.Sections {
			merged := l.out.Sections[k]

			offset := obj.AlignUp(int64(len(merged.Units)), sec.Align)
			for int64(len(merged.Units)) < offset {
				merged.Units = append(merged.Units, 0)
			}

			l.placement[i][k] = offset
			merged.Units = append(merged.Units, sec.Units...)
		}
	}

	// Exported symbols claim their names before any local is renamed.
	for i, o := range l.objects {
		l.locals[i] = make(map[string]*placedSymbol)

		for _, sym := range o.Symbols {
			if sym.Linkage != obj.LinkExported {
				continue
			}

			if prev, ok := l.global[sym.Name]; ok {
				return report.Duplicate(sym.Name, l.objects[prev.owner].Name, o.Name)
			}

			ps := l.place(i, sym, sym.Name)
			l.global[sym.Name] = ps
			l.locals[i][sym.Name] = ps
			l.taken[sym.Name] = struct{}{}

			l.out.Symbols = append(l.out.Symbols, &obj.Symbol{
				Name:    ps.name,
				Section: ps.section,
				Offset:  ps.offset,
				Linkage: obj.LinkExported,
			})
		}
	}

	for i, o := range l.objects {
		for _, sym := range o.Symbols {
			if sym.Linkage != obj.LinkLocal {
				continue
			}

			ps := l.place(i, sym, l.uniqueName(sym.Name, o.Name))
			l.locals[i][sym.Name] = ps
			l.taken[ps.name] = struct{}{}

			l.out.Symbols = append(l.out.Symbols, &obj.Symbol{
				Name:    ps.name,
				Section: ps.section,
				Offset:  ps.offset,
				Linkage: obj.LinkLocal,
			})
		}
	}

	return nil
}

// place computes the merged position of a symbol defined by object i.
func (l *Linker) place(i int, sym *obj.Symbol, name string) *placedSymbol {
	return &placedSymbol{
		name:    name,
		section: sym.Section,
		offset:  l.placement[i][sym.Section] + sym.Offset,
		owner:   i,
	}
}

// uniqueName returns name if it is free in the merged table, otherwise a
// variant qualified by the module name.
func (l *Linker) uniqueName(name, module string) string {
	if _, ok := l.taken[name]; !ok {
		return name
	}

	candidate := fmt.Sprintf("%s$%s", name, module)
	for n := 1; ; n++ {
		if _, ok := l.taken[candidate]; !ok {
			return candidate
		}

		candidate = fmt.Sprintf("%s$%s.%d", name, module, n)
	}
}

// lookup resolves a symbol referenced by object i: its own definitions come
// first, then the exported symbols of every object.
func (l *Linker) lookup(i int, name string) (*placedSymbol, bool) {
	if ps, ok := l.locals[i][name]; ok {
		return ps, true
	}

	ps, ok := l.global[name]
	return ps, ok
}

// -----------------------------------------------------------------------------

// patch checks every import and resolves every relocation.  Relative relocations against a symbol in
// the same section do not depend on the load address and are applied now;
// all others are carried into the merged object.
func (l *Linker) patch() error {
	mask := l.out.Mask()

	for i, o := range l.objects {
		// an import must resolve even when nothing refers to it
		for _, sym := range o.Symbols {
			if sym.Linkage != obj.LinkImported {
				continue
			}

			if _, ok := l.lookup(i, sym.Name); !ok {
				return report.Undefined(sym.Name, o.Name)
			}
		}

		for _, r := range o.Relocs {
			ps, ok := l.lookup(i, r.Symbol)
			if !ok {
				return report.Undefined(r.Symbol, o.Name)
			}

			offset := l.placement[i][r.Section] + r.Offset

			if r.Kind == obj.RelocRel && ps.section == r.Section {
				sec := l.out.Sections[r.Section]
				sec.Units[offset] = r.Patch(ps.offset, offset, mask)
				continue
			}

			l.out.Relocs = append(l.out.Relocs, &obj.Reloc{
				Section: r.Section,
				Offset:  offset,
				Symbol:  ps.name,
				Kind:    r.Kind,
				Addend:  r.Addend,
			})
		}
	}

	return nil
}

// Flatten serializes a flat image into bytes in the byte order of the target.
func Flatten(image []uint32, unitBits int, bigEndian bool) []byte {
	return obj.Bytes(image, unitBits, bigEndian)
}
