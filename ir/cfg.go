package ir

import "sort"

// ReversePostorder returns the blocks reachable from entry in reverse
// postorder.
func (f *Func) ReversePostorder() []BlockID {
	visited := make([]bool, len(f.Blocks))
	post := make([]BlockID, 0, len(f.Blocks))

	// iterative depth-first search to avoid deep recursion on long chains
	type frame struct {
		b    BlockID
		next int
	}

	stack := []frame{{b: 0}}
	visited[0] = true

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succs := f.Blocks[top.b].Succs

		if top.next < len(succs) {
			s := succs[top.next]
			top.next++

			if !visited[s] {
				visited[s] = true
				stack = append(stack, frame{b: s})
			}
		} else {
			post = append(post, top.b)
			stack = stack[:len(stack)-1]
		}
	}

	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}

	return post
}

// Reachable returns the set of blocks reachable from entry.
func (f *Func) Reachable() []bool {
	reach := make([]bool, len(f.Blocks))
	for _, b := range f.ReversePostorder() {
		reach[b] = true
	}

	return reach
}

// -----------------------------------------------------------------------------

// DomTree is the dominator tree of a function.
type DomTree struct {
	// The immediate dominator of each block.  The entry is its own immediate
	// dominator and unreachable blocks have -1.
	Idom []BlockID

	// The reverse postorder number of each block (-1 if unreachable).
	order []int
}

// Dominators computes the dominator tree using the iterative algorithm of
// Cooper, Harvey, and Kennedy.
func (f *Func) Dominators() *DomTree {
	rpo := f.ReversePostorder()

	order := make([]int, len(f.Blocks))
	idom := make([]BlockID, len(f.Blocks))
	for i := range order {
		order[i] = -1
		idom[i] = -1
	}

	for i, b := range rpo {
		order[b] = i
	}

	idom[0] = 0

	intersect := func(a, b BlockID) BlockID {
		for a != b {
			for order[a] > order[b] {
				a = idom[a]
			}

			for order[b] > order[a] {
				b = idom[b]
			}
		}

		return a
	}

	for changed := true; changed; {
		changed = false

		for _, b := range rpo[1:] {
			newIdom := BlockID(-1)

			for _, p := range f.Blocks[b].Preds {
				if idom[p] == -1 {
					continue
				}

				if newIdom == -1 {
					newIdom = p
				} else {
					newIdom = intersect(p, newIdom)
				}
			}

			if newIdom != idom[b] {
				idom[b] = newIdom
				changed = true
			}
		}
	}

	return &DomTree{Idom: idom, order: order}
}

// Dominates returns whether a dominates b.  Every block dominates itself.
func (dt *DomTree) Dominates(a, b BlockID) bool {
	if dt.Idom[b] == -1 || dt.Idom[a] == -1 {
		return false
	}

	for {
		if a == b {
			return true
		}

		if b == 0 {
			return false
		}

		b = dt.Idom[b]
	}
}

// ComputeLoopDepths sets the LoopDepth of every block to the number of natural
// loops containing it.
func (f *Func) ComputeLoopDepths() {
	dt := f.Dominators()

	for _, blk := range f.Blocks {
		blk.LoopDepth = 0
	}

	for _, blk := range f.Blocks {
		for _, h := range blk.Succs {
			// a back edge targets a block that dominates its source
			if !dt.Dominates(h, blk.ID) {
				continue
			}

			inLoop := make(map[BlockID]bool)
			inLoop[h] = true

			work := []BlockID{blk.ID}
			for len(work) > 0 {
				b := work[len(work)-1]
				work = work[:len(work)-1]

				if inLoop[b] {
					continue
				}

				inLoop[b] = true
				work = append(work, f.Blocks[b].Preds...)
			}

			for b := range inLoop {
				f.Blocks[b].LoopDepth++
			}
		}
	}
}

// -----------------------------------------------------------------------------

// Prune removes every block unreachable from entry, dropping the phi operands
// that flowed in along removed edges, and renumbers the remaining blocks.  It
// returns the number of blocks removed.
func (f *Func) Prune() int {
	reach := f.Reachable()

	removed := 0
	for _, blk := range f.Blocks {
		if reach[blk.ID] {
			continue
		}

		removed++
		for _, s := range blk.Succs {
			if reach[s] {
				f.removePred(s, blk.ID)
			}
		}
	}

	if removed == 0 {
		return 0
	}

	remap := make([]BlockID, len(f.Blocks))
	kept := make([]*Block, 0, len(f.Blocks)-removed)
	for _, blk := range f.Blocks {
		if reach[blk.ID] {
			remap[blk.ID] = BlockID(len(kept))
			kept = append(kept, blk)
		} else {
			remap[blk.ID] = -1
		}
	}

	for _, blk := range kept {
		blk.ID = remap[blk.ID]

		for i, p := range blk.Preds {
			blk.Preds[i] = remap[p]
		}

		for i, s := range blk.Succs {
			blk.Succs[i] = remap[s]
		}

		for _, id := range blk.Instrs {
			in := &f.Instrs[id]
			in.Block = blk.ID

			for i, t := range in.Targets {
				in.Targets[i] = remap[t]
			}
		}
	}

	f.Blocks = kept
	return removed
}

// removePred removes every edge from pred into b along with the matching phi
// operands.
func (f *Func) removePred(b, pred BlockID) {
	blk := f.Blocks[b]

	for i := len(blk.Preds) - 1; i >= 0; i-- {
		if blk.Preds[i] != pred {
			continue
		}

		blk.Preds = append(blk.Preds[:i], blk.Preds[i+1:]...)

		for _, phi := range f.Phis(b) {
			in := &f.Instrs[phi]
			if i < len(in.Args) {
				in.Args = append(in.Args[:i], in.Args[i+1:]...)
			}
		}
	}
}

// SplitCriticalEdges inserts an empty block on every edge whose source has
// several successors and whose destination has several predecessors and
// starts with phis.  The new block takes the source's place in the
// destination's predecessor list so phi operand order is preserved.  It
// returns the number of edges split.
func (f *Func) SplitCriticalEdges() int {
	split := 0
	n := len(f.Blocks)

	for bi := 0; bi < n; bi++ {
		src := f.Blocks[bi]
		if len(src.Succs) < 2 {
			continue
		}

		for si, dst := range src.Succs {
			if len(f.Blocks[dst].Preds) < 2 || len(f.Phis(dst)) == 0 {
				continue
			}

			mid := f.NewBlock(src.Name + ".split")
			midBlk := f.Blocks[mid]

			jump := f.AddInstr(Instr{Op: OpJump, Dest: NoValue, Targets: []BlockID{dst}, Block: mid})
			midBlk.Instrs = []InstrID{jump}
			midBlk.Preds = []BlockID{src.ID}
			midBlk.Succs = []BlockID{dst}

			src.Succs[si] = mid

			term := f.Terminator(src.ID)
			for ti, t := range term.Targets {
				if t == dst {
					term.Targets[ti] = mid
					break
				}
			}

			dstBlk := f.Blocks[dst]
			for pi, p := range dstBlk.Preds {
				if p == src.ID {
					dstBlk.Preds[pi] = mid
					break
				}
			}

			split++
		}
	}

	return split
}

// -----------------------------------------------------------------------------

// Clone returns a deep copy of the function.
func (f *Func) Clone() *Func {
	nf := &Func{
		Name:        f.Name,
		Linkage:     f.Linkage,
		Params:      append([]ValueID(nil), f.Params...),
		HasResult:   f.HasResult,
		ResultWidth: f.ResultWidth,
		Values:      append([]Value(nil), f.Values...),
		Instrs:      make([]Instr, len(f.Instrs)),
		Blocks:      make([]*Block, len(f.Blocks)),
		Frame:       append([]FrameObject(nil), f.Frame...),
	}

	for i, in := range f.Instrs {
		in.Args = append([]Operand(nil), in.Args...)
		in.Targets = append([]BlockID(nil), in.Targets...)
		nf.Instrs[i] = in
	}

	for i, blk := range f.Blocks {
		nb := *blk
		nb.Instrs = append([]InstrID(nil), blk.Instrs...)
		nb.Preds = append([]BlockID(nil), blk.Preds...)
		nb.Succs = append([]BlockID(nil), blk.Succs...)
		nf.Blocks[i] = &nb
	}

	return nf
}

// Compact rebuilds the value and instruction arenas so that they contain only
// the instructions placed in blocks and the values those instructions and the
// parameters refer to.  IDs are reassigned densely preserving relative order.
func (f *Func) Compact() {
	keepValue := make(map[ValueID]bool)
	for _, p := range f.Params {
		keepValue[p] = true
	}

	for _, blk := range f.Blocks {
		for _, id := range blk.Instrs {
			in := &f.Instrs[id]
			if in.Dest != NoValue {
				keepValue[in.Dest] = true
			}

			in.Uses(func(_ int, v ValueID) {
				keepValue[v] = true
			})
		}
	}

	ids := make([]ValueID, 0, len(keepValue))
	for v := range keepValue {
		ids = append(ids, v)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	vmap := make(map[ValueID]ValueID, len(ids))
	values := make([]Value, len(ids))
	for i, old := range ids {
		vmap[old] = ValueID(i)
		values[i] = f.Values[old]
		values[i].ID = ValueID(i)
		values[i].Def = NoInstr
	}

	instrs := make([]Instr, 0, len(f.Instrs))
	for _, blk := range f.Blocks {
		for i, id := range blk.Instrs {
			in := f.Instrs[id]
			in.Block = blk.ID

			if in.Dest != NoValue {
				in.Dest = vmap[in.Dest]
				values[in.Dest].Def = InstrID(len(instrs))
			}

			in.Args = append([]Operand(nil), in.Args...)
			in.ReplaceUses(func(v ValueID) ValueID { return vmap[v] })

			blk.Instrs[i] = InstrID(len(instrs))
			instrs = append(instrs, in)
		}
	}

	for i, p := range f.Params {
		f.Params[i] = vmap[p]
	}

	f.Values = values
	f.Instrs = instrs
}
