package ir

import (
	"fmt"
	"strings"
)

// String renders the module in a readable textual form.
func (m *Module) String() string {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "module %s\n", m.Name)

	for _, g := range m.Globals {
		sb.WriteString("\n")
		sb.WriteString(g.String())
	}

	for _, f := range m.Funcs {
		sb.WriteString("\n")
		sb.WriteString(f.String())
	}

	return sb.String()
}

func (g *Global) String() string {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "global %s %s [%d]", g.Linkage, g.Name, g.Size)

	if g.Init != nil {
		sb.WriteString(" = {")
		for i, item := range g.Init {
			if i > 0 {
				sb.WriteString(", ")
			}

			if item.Sym != "" {
				fmt.Fprintf(&sb, "&%s%+d", item.Sym, item.Value)
			} else {
				fmt.Fprint(&sb, item.Value)
			}
		}
		sb.WriteString("}")
	}

	sb.WriteString("\n")
	return sb.String()
}

func (f *Func) String() string {
	sb := strings.Builder{}

	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = f.valueRepr(p)
	}

	fmt.Fprintf(&sb, "func %s %s(%s)", f.Linkage, f.Name, strings.Join(params, ", "))
	if f.IsDeclaration() {
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString(" {\n")

	for i, obj := range f.Frame {
		fmt.Fprintf(&sb, "  frame %d: %s %s [%d]\n", i, frameKindNames[obj.Kind], obj.Name, obj.Size)
	}

	for _, blk := range f.Blocks {
		fmt.Fprintf(&sb, "b%d %s:", blk.ID, blk.Name)
		if len(blk.Preds) > 0 {
			preds := make([]string, len(blk.Preds))
			for i, p := range blk.Preds {
				preds[i] = fmt.Sprintf("b%d", p)
			}
			fmt.Fprintf(&sb, "  ; preds: %s", strings.Join(preds, ", "))
		}
		sb.WriteString("\n")

		for _, id := range blk.Instrs {
			sb.WriteString("    ")
			sb.WriteString(f.InstrString(id))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

var frameKindNames = [...]string{"local", "spill", "arg", "scratch"}

func (f *Func) valueRepr(id ValueID) string {
	v := &f.Values[id]
	if v.Name != "" {
		return fmt.Sprintf("v%d.%s:%s", id, v.Name, v.Width)
	}

	return fmt.Sprintf("v%d:%s", id, v.Width)
}

// InstrString renders a single instruction.
func (f *Func) InstrString(id InstrID) string {
	in := &f.Instrs[id]
	sb := strings.Builder{}

	if in.Dest != NoValue {
		sb.WriteString(f.valueRepr(in.Dest))
		sb.WriteString(" = ")
	}

	sb.WriteString(in.Op.String())

	switch in.Op {
	case OpCmp, OpBranch:
		sb.WriteString(".")
		sb.WriteString(in.Cond.String())
	case OpLoad, OpStore:
		sb.WriteString(".")
		sb.WriteString(in.Width.String())
	}

	if in.Op.HasSignedness() {
		if in.Signed {
			sb.WriteString(".s")
		} else {
			sb.WriteString(".u")
		}
	}

	args := make([]string, 0, len(in.Args)+1)
	switch in.Op {
	case OpAddr:
		args = append(args, fmt.Sprintf("%s%+d", in.Sym, in.Offset))
	case OpFrameAddr:
		args = append(args, fmt.Sprintf("frame%d%+d", in.Slot, in.Offset))
	case OpSpill, OpReload:
		args = append(args, fmt.Sprintf("frame%d", in.Slot))
	case OpCall:
		if in.Sym != "" {
			args = append(args, in.Sym)
		}
	}

	for _, arg := range in.Args {
		args = append(args, arg.String())
	}

	if (in.Op == OpLoad || in.Op == OpStore) && in.Offset != 0 {
		args = append(args, fmt.Sprintf("%+d", in.Offset))
	}

	for _, t := range in.Targets {
		args = append(args, fmt.Sprintf("b%d", t))
	}

	if len(args) > 0 {
		sb.WriteString(" ")
		sb.WriteString(strings.Join(args, ", "))
	}

	return sb.String()
}
