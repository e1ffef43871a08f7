package regalloc

import (
	"sort"

	"esocc/ir"
)

// valueSet is a set of values.
type valueSet map[ir.ValueID]struct{}

func (s valueSet) add(v ir.ValueID) bool {
	if _, ok := s[v]; ok {
		return false
	}

	s[v] = struct{}{}
	return true
}

func (s valueSet) has(v ir.ValueID) bool {
	_, ok := s[v]
	return ok
}

func (s valueSet) copy() valueSet {
	c := make(valueSet, len(s))
	for v := range s {
		c[v] = struct{}{}
	}

	return c
}

// sorted returns the members of the set in ascending order.
func (s valueSet) sorted() []ir.ValueID {
	vs := make([]ir.ValueID, 0, len(s))
	for v := range s {
		vs = append(vs, v)
	}

	sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
	return vs
}

// -----------------------------------------------------------------------------

// liveness holds the values live on entry to and exit from every block.  Phi
// destinations are live on entry to their block; phi operands are live on exit
// from the matching predecessor only.
type liveness struct {
	in, out []valueSet
}

// blockSummary is the local dataflow information of a block.
type blockSummary struct {
	// Values used before any definition in the block, excluding phi operands.
	upward valueSet

	// Values defined by non-phi instructions (and parameters in the entry).
	defs valueSet

	// Values defined by the block's phis.
	phiDefs valueSet
}

// computeLiveness solves the liveness equations over the register-resident
// values of f:
//
//	LiveIn(B)  = PhiDefs(B) ∪ UEVar(B) ∪ (LiveOut(B) - Defs(B))
//	LiveOut(B) = ∪ over successors S of (LiveIn(S) - PhiDefs(S)) ∪ PhiUses(B→S)
func computeLiveness(f *ir.Func, inReg func(ir.ValueID) bool) *liveness {
	n := len(f.Blocks)
	sums := make([]blockSummary, n)

	for _, blk := range f.Blocks {
		sum := blockSummary{upward: make(valueSet), defs: make(valueSet), phiDefs: make(valueSet)}

		if blk.ID == 0 {
			for _, p := range f.Params {
				if inReg(p) {
					sum.defs.add(p)
				}
			}
		}

		for _, id := range blk.Instrs {
			in := f.Instr(id)

			if in.Op == ir.OpPhi {
				if inReg(in.Dest) {
					sum.phiDefs.add(in.Dest)
				}

				continue
			}

			in.Uses(func(_ int, v ir.ValueID) {
				if inReg(v) && !sum.defs.has(v) && !sum.phiDefs.has(v) {
					sum.upward.add(v)
				}
			})

			if in.Dest != ir.NoValue && inReg(in.Dest) {
				sum.defs.add(in.Dest)
			}
		}

		sums[blk.ID] = sum
	}

	lv := &liveness{in: make([]valueSet, n), out: make([]valueSet, n)}
	for i := range lv.in {
		lv.in[i] = make(valueSet)
		lv.out[i] = make(valueSet)
	}

	// iterate in postorder so most successors are visited first
	rpo := f.ReversePostorder()
	for changed := true; changed; {
		changed = false

		for i := len(rpo) - 1; i >= 0; i-- {
			b := rpo[i]
			blk := f.Blocks[b]
			out := lv.out[b]

			for _, s := range blk.Succs {
				for v := range lv.in[s] {
					if !sums[s].phiDefs.has(v) && out.add(v) {
						changed = true
					}
				}

				for _, v := range phiUses(f, b, s, inReg) {
					if out.add(v) {
						changed = true
					}
				}
			}

			in := lv.in[b]
			for v := range sums[b].phiDefs {
				if in.add(v) {
					changed = true
				}
			}

			for v := range sums[b].upward {
				if in.add(v) {
					changed = true
				}
			}

			for v := range out {
				if !sums[b].defs.has(v) && in.add(v) {
					changed = true
				}
			}
		}
	}

	return lv
}

// phiUses returns the register-resident phi operands of s flowing in along the
// edge from pred.
func phiUses(f *ir.Func, pred, s ir.BlockID, inReg func(ir.ValueID) bool) []ir.ValueID {
	var uses []ir.ValueID

	for pi, p := range f.Blocks[s].Preds {
		if p != pred {
			continue
		}

		for _, phi := range f.Phis(s) {
			arg := f.Instr(phi).Args[pi]
			if arg.IsValue() && inReg(arg.Value) {
				uses = append(uses, arg.Value)
			}
		}
	}

	return uses
}
