package lower

import "esocc/ir"

// cleanup prepares a freshly lowered function for the rest of the pipeline:
// it prunes unreachable blocks, removes trivial and dead phis, and compacts
// the arenas.
func cleanup(fn *ir.Func) {
	fn.Prune()

	alias := make(map[ir.ValueID]ir.ValueID)
	resolve := func(v ir.ValueID) ir.ValueID {
		root := v
		for {
			next, ok := alias[root]
			if !ok {
				break
			}
			root = next
		}

		// path compression
		for v != root {
			next := alias[v]
			alias[v] = root
			v = next
		}

		return root
	}

	removeTrivialPhis(fn, alias, resolve)

	for _, blk := range fn.Blocks {
		for _, id := range blk.Instrs {
			fn.Instrs[id].ReplaceUses(resolve)
		}
	}

	removeDeadPhis(fn)
	fn.Compact()
}

// removeTrivialPhis removes phis whose operands are all the same value (or the
// phi itself), recording an alias from the phi to that value.  Removing one
// phi may make others trivial so this runs to a fixpoint.
func removeTrivialPhis(fn *ir.Func, alias map[ir.ValueID]ir.ValueID, resolve func(ir.ValueID) ir.ValueID) {
	b := ir.NewBuilder(fn)

	for changed := true; changed; {
		changed = false

		for _, blk := range fn.Blocks {
			kept := blk.Instrs[:0]

			for _, id := range blk.Instrs {
				in := &fn.Instrs[id]
				if in.Op != ir.OpPhi {
					kept = append(kept, id)
					continue
				}

				same := ir.NoValue
				trivial := true
				for _, arg := range in.Args {
					v := resolve(arg.Value)
					if v == in.Dest || v == same {
						continue
					}

					if same != ir.NoValue {
						trivial = false
						break
					}

					same = v
				}

				if !trivial {
					kept = append(kept, id)
					continue
				}

				// the entry block never has phis so inserting into it here
				// does not disturb the block being filtered
				if same == ir.NoValue {
					dv := fn.Value(in.Dest)
					same = b.ConstAtEntry(0, dv.Width, dv.Signed)
				}

				alias[in.Dest] = same
				changed = true
			}

			blk.Instrs = kept
		}
	}
}

// removeDeadPhis removes phis whose results are never used by a non-phi
// instruction, directly or through other phis.
func removeDeadPhis(fn *ir.Func) {
	live := make(map[ir.ValueID]bool)
	var work []ir.ValueID

	phiOf := make(map[ir.ValueID]ir.InstrID)
	for _, blk := range fn.Blocks {
		for _, id := range blk.Instrs {
			in := &fn.Instrs[id]
			if in.Op == ir.OpPhi {
				phiOf[in.Dest] = id
				continue
			}

			in.Uses(func(_ int, v ir.ValueID) {
				if !live[v] {
					live[v] = true
					work = append(work, v)
				}
			})
		}
	}

	for len(work) > 0 {
		v := work[len(work)-1]
		work = work[:len(work)-1]

		if id, ok := phiOf[v]; ok {
			fn.Instrs[id].Uses(func(_ int, u ir.ValueID) {
				if !live[u] {
					live[u] = true
					work = append(work, u)
				}
			})
		}
	}

	for _, blk := range fn.Blocks {
		kept := blk.Instrs[:0]
		for _, id := range blk.Instrs {
			in := &fn.Instrs[id]
			if in.Op == ir.OpPhi && !live[in.Dest] {
				continue
			}

			kept = append(kept, id)
		}

		blk.Instrs = kept
	}
}
