package regalloc

import (
	"esocc/ir"
)

// spillOrder reports whether a is a better spill candidate than b.
type spillOrder func(a, b ir.ValueID) bool

// color colors g with k colors by Chaitin-Briggs simplification and
// optimistic selection.  Nodes that could not be colored are returned in
// ascending order.
func (g *graph) color(k int, better spillOrder) (map[ir.ValueID]int, []ir.ValueID) {
	nodes := g.nodes.sorted()

	degree := make(map[ir.ValueID]int, len(nodes))
	for _, v := range nodes {
		degree[v] = len(g.adj[v])
	}

	removed := make(valueSet, len(nodes))
	stack := make([]ir.ValueID, 0, len(nodes))

	for len(stack) < len(nodes) {
		pick := ir.NoValue
		for _, v := range nodes {
			if !removed.has(v) && degree[v] < k {
				pick = v
				break
			}
		}

		// every remaining node is constrained: push the best spill
		// candidate optimistically
		if pick == ir.NoValue {
			for _, v := range nodes {
				if !removed.has(v) && (pick == ir.NoValue || better(v, pick)) {
					pick = v
				}
			}
		}

		removed.add(pick)
		stack = append(stack, pick)

		for n := range g.adj[pick] {
			if !removed.has(n) {
				degree[n]--
			}
		}
	}

	colors := make(map[ir.ValueID]int, len(nodes))
	var uncolored []ir.ValueID

	for i := len(stack) - 1; i >= 0; i-- {
		v := stack[i]

		used := make([]bool, k)
		for n := range g.adj[v] {
			if c, ok := colors[n]; ok {
				used[c] = true
			}
		}

		c := 0
		for c < k && used[c] {
			c++
		}

		if c < k {
			colors[v] = c
		} else {
			uncolored = append(uncolored, v)
		}
	}

	return colors, sortedIDs(uncolored)
}

func sortedIDs(vs []ir.ValueID) []ir.ValueID {
	s := make(valueSet, len(vs))
	for _, v := range vs {
		s.add(v)
	}

	return s.sorted()
}
