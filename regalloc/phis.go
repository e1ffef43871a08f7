package regalloc

import (
	"esocc/ir"
)

// move is a single pending transfer of a phi operand into a phi destination.
type move struct {
	dest ir.ValueID
	src  ir.ValueID
}

// eliminatePhis replaces every phi by copies placed at the end of each
// predecessor.  The copies along one edge form a parallel move which is
// sequentialized so that no location is overwritten before it is read.
// Critical edges were split before allocation so each predecessor of a block
// with phis has that block as its only successor.
func (a *allocator) eliminatePhis() {
	f := a.fn

	for _, blk := range f.Blocks {
		phis := f.Phis(blk.ID)
		if len(phis) == 0 {
			continue
		}

		for pi, pred := range blk.Preds {
			if len(f.Blocks[pred].Succs) != 1 {
				a.ice("phi operands flow along a critical edge b%d -> b%d", pred, blk.ID)
			}

			var moves []move
			for _, phi := range phis {
				in := f.Instr(phi)
				arg := in.Args[pi]
				if !arg.IsValue() {
					a.ice("phi operand is not a value")
				}

				if a.locs[in.Dest] != a.locs[arg.Value] {
					moves = append(moves, move{dest: in.Dest, src: arg.Value})
				}
			}

			a.insertBeforeTerminator(pred, a.sequentialize(moves, pred))
		}

		blk.Instrs = blk.Instrs[len(phis):]
	}
}

// sequentialize orders a parallel move.  A move is emitted once no other
// pending move still reads its destination; a cycle is broken by saving one
// source in the frame's scratch slot.
func (a *allocator) sequentialize(moves []move, blk ir.BlockID) []ir.InstrID {
	var out []ir.InstrID

	for len(moves) > 0 {
		ready := -1
		for i, m := range moves {
			blocked := false
			for j, other := range moves {
				if j != i && a.locs[other.src] == a.locs[m.dest] {
					blocked = true
					break
				}
			}

			if !blocked {
				ready = i
				break
			}
		}

		if ready >= 0 {
			m := moves[ready]
			out = append(out, a.copyInstr(m.dest, m.src, blk))
			moves = append(moves[:ready], moves[ready+1:]...)
			continue
		}

		// every pending move is part of a cycle
		saved := moves[0].src
		scratch := a.freshValue(a.fn.Values[saved].Width, a.fn.Values[saved].Signed)
		a.locs = append(a.locs, Loc{Kind: LocFrame, Frame: a.scratchSlot()})
		out = append(out, a.copyInstr(scratch, saved, blk))

		for i := range moves {
			if a.locs[moves[i].src] == a.locs[saved] {
				moves[i].src = scratch
			}
		}
	}

	return out
}

// copyInstr creates (but does not place) a copy of src into the location of
// dest.  Several copies may write the same phi destination, one per
// predecessor, so the result is no longer in SSA form.
func (a *allocator) copyInstr(dest, src ir.ValueID, blk ir.BlockID) ir.InstrID {
	return a.fn.AddInstr(ir.Instr{Op: ir.OpCopy, Dest: dest, Args: []ir.Operand{ir.V(src)}, Block: blk})
}

// scratchSlot returns the frame's scratch slot, creating it on first use.
func (a *allocator) scratchSlot() int {
	for i, obj := range a.fn.Frame {
		if obj.Kind == ir.FrameScratch {
			return i
		}
	}

	return a.fn.NewFrameObject(ir.FrameScratch, 1, "scratch")
}

func (a *allocator) insertBeforeTerminator(b ir.BlockID, ids []ir.InstrID) {
	if len(ids) == 0 {
		return
	}

	blk := a.fn.Blocks[b]
	n := len(blk.Instrs) - 1

	instrs := make([]ir.InstrID, 0, len(blk.Instrs)+len(ids))
	instrs = append(instrs, blk.Instrs[:n]...)
	instrs = append(instrs, ids...)
	instrs = append(instrs, blk.Instrs[n])
	blk.Instrs = instrs
}
