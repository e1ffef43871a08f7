package regalloc

import (
	"esocc/ir"
)

// graph is the interference graph of the register-resident values of a
// function.  Two values interfere if one is defined while the other is live.
type graph struct {
	nodes valueSet
	adj   map[ir.ValueID]valueSet

	// The number of program points each value is live at.
	rangeLen map[ir.ValueID]int

	// The values live across each call (and each division lowered to a
	// runtime call), excluding its result.
	across map[ir.InstrID][]ir.ValueID
}

func newGraph() *graph {
	return &graph{
		nodes:    make(valueSet),
		adj:      make(map[ir.ValueID]valueSet),
		rangeLen: make(map[ir.ValueID]int),
		across:   make(map[ir.InstrID][]ir.ValueID),
	}
}

func (g *graph) addNode(v ir.ValueID) {
	if g.nodes.add(v) {
		g.adj[v] = make(valueSet)
	}
}

func (g *graph) addEdge(a, b ir.ValueID) {
	if a == b {
		return
	}

	g.addNode(a)
	g.addNode(b)
	g.adj[a].add(b)
	g.adj[b].add(a)
}

// interferes returns whether a and b interfere.
func (g *graph) interferes(a, b ir.ValueID) bool {
	return g.adj[a].has(b)
}

// buildGraph builds the interference graph by walking every block backwards
// from its live-out set.  There is no move exception: a copy's source and
// destination interfere if the source is live after the copy.
func buildGraph(f *ir.Func, lv *liveness, inReg func(ir.ValueID) bool, clobbers func(*ir.Instr) bool) *graph {
	g := newGraph()

	for _, blk := range f.Blocks {
		live := lv.out[blk.ID].copy()
		for v := range live {
			g.addNode(v)
		}

		phis := 0
		for i := len(blk.Instrs) - 1; i >= 0; i-- {
			id := blk.Instrs[i]
			in := f.Instr(id)

			if in.Op == ir.OpPhi {
				phis = i + 1
				break
			}

			if in.Dest != ir.NoValue && inReg(in.Dest) {
				g.addNode(in.Dest)
				for v := range live {
					g.addEdge(in.Dest, v)
				}

				delete(live, in.Dest)
			}

			if clobbers(in) {
				g.across[id] = live.sorted()
			}

			in.Uses(func(_ int, v ir.ValueID) {
				if inReg(v) {
					g.addNode(v)
					live.add(v)
				}
			})

			for v := range live {
				g.rangeLen[v]++
			}
		}

		// phi destinations are defined simultaneously at the top of the
		// block
		var dests []ir.ValueID
		for _, id := range blk.Instrs[:phis] {
			if d := f.Instr(id).Dest; inReg(d) {
				dests = append(dests, d)
			}
		}

		for i, d := range dests {
			g.addNode(d)
			g.rangeLen[d]++

			for _, e := range dests[i+1:] {
				g.addEdge(d, e)
			}

			for v := range live {
				g.addEdge(d, v)
			}
		}

		if blk.ID == 0 {
			var params []ir.ValueID
			for _, p := range f.Params {
				if inReg(p) {
					params = append(params, p)
				}
			}

			for i, p := range params {
				g.addNode(p)
				g.rangeLen[p]++

				for _, q := range params[i+1:] {
					g.addEdge(p, q)
				}

				for v := range live {
					g.addEdge(p, v)
				}
			}
		}
	}

	return g
}
