package regalloc

import (
	"fmt"

	"esocc/ir"
)

// spillCosts estimates the cost of keeping each value in memory: every
// definition and use counts one plus the loop depth of the block it occurs
// in.  Phi operands count in the predecessor they flow in from.
func spillCosts(f *ir.Func) map[ir.ValueID]int {
	costs := make(map[ir.ValueID]int)

	for _, blk := range f.Blocks {
		weight := 1 + blk.LoopDepth

		for _, id := range blk.Instrs {
			in := f.Instr(id)

			if in.Dest != ir.NoValue {
				costs[in.Dest] += weight
			}

			if in.Op == ir.OpPhi {
				for i, arg := range in.Args {
					if arg.IsValue() {
						costs[arg.Value] += 1 + f.Blocks[blk.Preds[i]].LoopDepth
					}
				}

				continue
			}

			in.Uses(func(_ int, v ir.ValueID) {
				costs[v] += weight
			})
		}
	}

	return costs
}

// spill makes v memory resident.  Parameters stay in their incoming argument
// slot and phi destinations are written directly by the moves that replace
// the phi.  Any other definition writes a fresh temporary which is stored to
// a new spill slot.  Uses that cannot read memory load the value into a fresh
// temporary first.
func (a *allocator) spill(v ir.ValueID) {
	f := a.fn
	val := *f.Value(v)

	var slot int
	var spillAfter ir.InstrID = ir.NoInstr

	switch {
	case val.Param >= 0:
		slot = f.ArgSlot(val.Param)
	case val.Def == ir.NoInstr:
		a.ice("spilled value v%d has no definition", v)
	default:
		slot = f.NewFrameObject(ir.FrameSpill, 1, fmt.Sprintf("v%d", v))

		if f.Instr(val.Def).Op != ir.OpPhi {
			tmp := a.freshValue(val.Width, val.Signed)
			f.Instrs[val.Def].Dest = tmp
			f.Values[tmp].Def = val.Def
			f.Values[v].Def = ir.NoInstr
			spillAfter = val.Def
		}
	}

	a.memory[v] = slot
	a.spilled++

	for _, blk := range f.Blocks {
		instrs := make([]ir.InstrID, 0, len(blk.Instrs)+2)

		for _, id := range blk.Instrs {
			if f.Instr(id).Op != ir.OpPhi {
				instrs = append(instrs, a.rewriteUses(id, v, slot, blk.ID)...)
			}

			instrs = append(instrs, id)

			if id == spillAfter {
				store := f.AddInstr(ir.Instr{
					Op:    ir.OpSpill,
					Dest:  ir.NoValue,
					Args:  []ir.Operand{ir.V(f.Instrs[id].Dest)},
					Slot:  slot,
					Block: blk.ID,
				})

				instrs = append(instrs, store)
			}
		}

		blk.Instrs = instrs
	}
}

// rewriteUses rewrites the uses of the memory-resident value v by
// instruction id.  It returns the reloads to insert before the instruction.
func (a *allocator) rewriteUses(id ir.InstrID, v ir.ValueID, slot int, blk ir.BlockID) []ir.InstrID {
	f := a.fn
	in := f.Instr(id)

	uses := false
	in.Uses(func(_ int, u ir.ValueID) {
		if u == v {
			uses = true
		}
	})

	if !uses {
		return nil
	}

	// move the spilled operand into the position that can read memory
	if len(in.Args) == 2 && in.Args[0] == ir.V(v) && in.Args[1].IsValue() && in.Args[1].Value != v && !a.inMemory(in.Args[1].Value) {
		switch {
		case in.Op.IsBinary() && in.Op.IsCommutative():
			in.Args[0], in.Args[1] = in.Args[1], in.Args[0]
		case in.Op == ir.OpCmp || in.Op == ir.OpBranch:
			in.Args[0], in.Args[1] = in.Args[1], in.Args[0]
			in.Cond = in.Cond.Swap()
		}
	}

	reload := ir.NoValue
	for i, arg := range in.Args {
		if arg != ir.V(v) || in.AllowsMemory(i) {
			continue
		}

		if reload == ir.NoValue {
			reload = a.freshValue(f.Values[v].Width, f.Values[v].Signed)
		}

		in.Args[i] = ir.V(reload)
	}

	if reload == ir.NoValue {
		return nil
	}

	rid := f.AddInstr(ir.Instr{Op: ir.OpReload, Dest: reload, Slot: slot, Block: blk})
	return []ir.InstrID{rid}
}

// freshValue creates a short-lived temporary introduced by spilling.  Such
// values are never spilled themselves.
func (a *allocator) freshValue(width ir.Width, signed bool) ir.ValueID {
	v := a.fn.NewValue(width, signed)
	a.fresh.add(v)
	return v
}
