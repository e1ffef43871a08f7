// Package regalloc assigns every SSA value of a function a physical location:
// a register or a frame slot.  Allocation colors an interference graph and,
// when coloring fails, spills values to the frame and tries again.
package regalloc

import (
	"fmt"
	"sort"

	"esocc/ir"
	"esocc/report"
	"esocc/target"
)

// Config is the machine model seen by the allocator.
type Config struct {
	// The name of the target, for error messages.
	Target string

	// The number of allocatable registers.
	NumRegs int

	// Whether division and modulo are calls to runtime routines and so
	// clobber the caller-saved registers like any other call.
	LibcallDivision bool
}

// ConfigFor derives the allocator configuration from a target description.
func ConfigFor(tgt *target.Target) Config {
	return Config{
		Target:          tgt.Name,
		NumRegs:         tgt.NumAllocatable(),
		LibcallDivision: !tgt.NativeDivision(),
	}
}

// LocKind is the kind of a physical location.
type LocKind uint8

// Enumeration of location kinds.
const (
	LocNone LocKind = iota
	LocReg
	LocFrame
)

// Loc is a physical location.
type Loc struct {
	Kind LocKind

	// The register color of LocReg locations: an index into the target's
	// allocatable registers.
	Reg int

	// The frame object of LocFrame locations.
	Frame int
}

func (l Loc) String() string {
	switch l.Kind {
	case LocReg:
		return fmt.Sprintf("r%d", l.Reg)
	case LocFrame:
		return fmt.Sprintf("fr%d", l.Frame)
	default:
		return "-"
	}
}

// Result is the outcome of allocating a function.
type Result struct {
	// The rewritten function: spill code is explicit, critical edges are
	// split, and phis are replaced by copies.  It is no longer in SSA form.
	Func *ir.Func

	// The location of every value, indexed by value ID.
	Locs []Loc

	// The register colors used, in ascending order.
	UsedRegs []int

	// The register-resident values live across each call and each division
	// performed by a runtime call.  The call's result is not included.
	LiveAcross map[ir.InstrID][]ir.ValueID

	// The number of coloring rounds and the number of values spilled.
	Rounds, Spilled int
}

// Loc returns the location of a value.
func (r *Result) Loc(v ir.ValueID) Loc {
	return r.Locs[v]
}

// -----------------------------------------------------------------------------

// Allocate allocates registers for a function.  The input function is not
// modified.
func Allocate(fn *ir.Func, cfg Config) (res *Result, err error) {
	defer report.CatchInternal(&err)

	a := newAllocator(fn, cfg)
	a.allocate()
	a.eliminatePhis()

	return a.result(), nil
}

// allocator holds the state of the spill fixpoint for one function.
type allocator struct {
	cfg Config
	fn  *ir.Func

	// The memory-resident values and their frame objects.
	memory map[ir.ValueID]int

	// The temporaries created by spilling.
	fresh valueSet

	// The number of values before allocation, bounding the number of rounds.
	limit int

	graph      *graph
	colors     map[ir.ValueID]int
	locs       []Loc
	rounds     int
	spilled    int
	liveAcross map[ir.InstrID][]ir.ValueID
}

func newAllocator(fn *ir.Func, cfg Config) *allocator {
	f := fn.Clone()
	f.SplitCriticalEdges()
	f.ComputeLoopDepths()

	return &allocator{
		cfg:    cfg,
		fn:     f,
		memory: make(map[ir.ValueID]int),
		fresh:  make(valueSet),
		limit:  len(f.Values),
	}
}

func (a *allocator) ice(msg string, args ...interface{}) {
	panic(report.ICE("regalloc", a.fn.Name, msg, args...))
}

func (a *allocator) inMemory(v ir.ValueID) bool {
	_, ok := a.memory[v]
	return ok
}

func (a *allocator) inReg(v ir.ValueID) bool {
	return !a.inMemory(v)
}

// clobbers returns whether an instruction destroys the caller-saved
// registers.
func (a *allocator) clobbers(in *ir.Instr) bool {
	switch in.Op {
	case ir.OpCall:
		return true
	case ir.OpDiv, ir.OpMod:
		return a.cfg.LibcallDivision
	}

	return false
}

// allocate runs the build-color-spill fixpoint until every register-resident
// value is colored.
func (a *allocator) allocate() {
	a.checkPressure()

	// parameters that are never used stay in their argument slots
	used := make(valueSet)
	for _, blk := range a.fn.Blocks {
		for _, id := range blk.Instrs {
			a.fn.Instr(id).Uses(func(_ int, v ir.ValueID) {
				used.add(v)
			})
		}
	}

	for i, p := range a.fn.Params {
		if !used.has(p) {
			a.memory[p] = a.fn.ArgSlot(i)
		}
	}

	for {
		a.rounds++
		if a.rounds > a.limit+1 {
			a.ice("register allocation did not converge after %d rounds", a.limit)
		}

		lv := computeLiveness(a.fn, a.inReg)
		a.graph = buildGraph(a.fn, lv, a.inReg, a.clobbers)

		costs := spillCosts(a.fn)
		better := func(x, y ir.ValueID) bool {
			xf, yf := a.fresh.has(x), a.fresh.has(y)
			switch {
			case xf != yf:
				return yf
			case costs[x] != costs[y]:
				return costs[x] < costs[y]
			case a.graph.rangeLen[x] != a.graph.rangeLen[y]:
				return a.graph.rangeLen[x] > a.graph.rangeLen[y]
			default:
				return x < y
			}
		}

		colors, uncolored := a.graph.color(a.cfg.NumRegs, better)
		if len(uncolored) == 0 {
			a.colors = colors
			a.liveAcross = a.graph.across
			break
		}

		var victims []ir.ValueID
		for _, v := range uncolored {
			if !a.fresh.has(v) {
				victims = append(victims, v)
			}
		}

		if len(victims) == 0 {
			panic(report.Capability(a.cfg.Target, a.fn.Name, "",
				"%d registers cannot hold the spill temporaries live at once", a.cfg.NumRegs))
		}

		for _, v := range victims {
			a.spill(v)
		}
	}

	a.locs = make([]Loc, len(a.fn.Values))
	for v, c := range a.colors {
		a.locs[v] = Loc{Kind: LocReg, Reg: c}
	}

	for v, slot := range a.memory {
		a.locs[v] = Loc{Kind: LocFrame, Frame: slot}
	}
}

// checkPressure rejects functions containing an instruction that needs more
// registers at once than the target has.
func (a *allocator) checkPressure() {
	for _, blk := range a.fn.Blocks {
		for _, id := range blk.Instrs {
			in := a.fn.Instr(id)

			need := in.RegisterOperands()
			if in.Dest != ir.NoValue {
				need++
			}

			if need > a.cfg.NumRegs {
				panic(report.Capability(a.cfg.Target, a.fn.Name, a.fn.InstrString(id),
					"instruction needs %d registers but only %d are allocatable", need, a.cfg.NumRegs))
			}
		}
	}
}

func (a *allocator) result() *Result {
	seen := make(map[int]bool)
	for _, loc := range a.locs {
		if loc.Kind == LocReg {
			seen[loc.Reg] = true
		}
	}

	used := make([]int, 0, len(seen))
	for c := range seen {
		used = append(used, c)
	}
	sort.Ints(used)

	return &Result{
		Func:       a.fn,
		Locs:       a.locs,
		UsedRegs:   used,
		LiveAcross: a.liveAcross,
		Rounds:     a.rounds,
		Spilled:    a.spilled,
	}
}
