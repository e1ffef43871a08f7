package ir

import (
	"fmt"

	"esocc/report"
)

// verifier collects the violations found in a single function.
type verifier struct {
	fn         *Func
	violations []report.Violation
}

// Verify checks every structural invariant of the module and returns the list
// of violations.  An empty list means the module is well formed.  Verify never
// modifies the module.
func Verify(m *Module) []report.Violation {
	var violations []report.Violation

	seen := make(map[string]bool)
	for _, f := range m.Funcs {
		if seen[f.Name] {
			violations = append(violations, report.Violation{Block: -1, Instr: -1, Message: fmt.Sprintf("function `%s` defined twice", f.Name)})
		}
		seen[f.Name] = true

		violations = append(violations, VerifyFunc(f)...)
	}

	for _, g := range m.Globals {
		if seen[g.Name] {
			violations = append(violations, report.Violation{Block: -1, Instr: -1, Message: fmt.Sprintf("global `%s` collides with another symbol", g.Name)})
		}
		seen[g.Name] = true

		if len(g.Init) > g.Size {
			violations = append(violations, report.Violation{Block: -1, Instr: -1, Message: fmt.Sprintf("global `%s` has %d initial units but size %d", g.Name, len(g.Init), g.Size)})
		}
	}

	return violations
}

// Check verifies the module and wraps any violations into an internal error.
func Check(m *Module) error {
	if violations := Verify(m); len(violations) > 0 {
		return &report.InternalError{
			Phase:      "verify",
			Message:    fmt.Sprintf("%d invariant violation(s)", len(violations)),
			Violations: violations,
		}
	}

	return nil
}

// VerifyFunc checks the structural invariants of a single SSA function.
func VerifyFunc(f *Func) []report.Violation {
	if f.IsDeclaration() {
		return nil
	}

	v := &verifier{fn: f}
	v.checkBlocks()

	// dominance checks are meaningless on a malformed graph
	if len(v.violations) == 0 {
		v.checkDefinitions()
	}

	return v.violations
}

func (v *verifier) errorf(b BlockID, instr InstrID, msg string, args ...interface{}) {
	v.violations = append(v.violations, report.Violation{
		Func:    v.fn.Name,
		Block:   int(b),
		Instr:   int(instr),
		Message: fmt.Sprintf(msg, args...),
	})
}

// -----------------------------------------------------------------------------

// checkBlocks checks block shape, terminators, edges, and operand shapes.
func (v *verifier) checkBlocks() {
	f := v.fn

	for i, blk := range f.Blocks {
		if blk.ID != BlockID(i) {
			v.errorf(BlockID(i), -1, "block at index %d has id %d", i, blk.ID)
		}
	}

	if len(f.Entry().Preds) != 0 {
		v.errorf(0, -1, "entry block has predecessors")
	}

	reach := f.Reachable()
	for _, blk := range f.Blocks {
		if !reach[blk.ID] {
			v.errorf(blk.ID, -1, "block is unreachable from entry")
		}

		if len(blk.Instrs) == 0 {
			v.errorf(blk.ID, -1, "block is empty")
			continue
		}

		inPhis := true
		for pos, id := range blk.Instrs {
			if int(id) < 0 || int(id) >= len(f.Instrs) {
				v.errorf(blk.ID, id, "instruction index out of range")
				continue
			}

			in := &f.Instrs[id]
			if in.Block != blk.ID {
				v.errorf(blk.ID, id, "instruction records owner b%d", in.Block)
			}

			last := pos == len(blk.Instrs)-1
			if in.Op.IsTerminator() && !last {
				v.errorf(blk.ID, id, "terminator `%s` is not the last instruction", in.Op)
			} else if !in.Op.IsTerminator() && last {
				v.errorf(blk.ID, id, "block does not end in a terminator")
			}

			if in.Op == OpPhi {
				if !inPhis {
					v.errorf(blk.ID, id, "phi after a non-phi instruction")
				}

				if len(in.Args) != len(blk.Preds) {
					v.errorf(blk.ID, id, "phi has %d operands but the block has %d predecessors", len(in.Args), len(blk.Preds))
				}
			} else {
				inPhis = false
			}

			v.checkShape(blk.ID, id, in)
		}

		v.checkEdges(blk)
	}
}

// checkEdges checks that the successor list mirrors the terminator's targets
// and that predecessor lists mirror successor lists.
func (v *verifier) checkEdges(blk *Block) {
	f := v.fn

	term := f.Terminator(blk.ID)
	if term == nil {
		return
	}

	if len(term.Targets) != len(blk.Succs) {
		v.errorf(blk.ID, -1, "terminator has %d targets but block has %d successors", len(term.Targets), len(blk.Succs))
		return
	}

	for i, t := range term.Targets {
		if t != blk.Succs[i] {
			v.errorf(blk.ID, -1, "successor %d is b%d but terminator targets b%d", i, blk.Succs[i], t)
		}

		if int(t) < 0 || int(t) >= len(f.Blocks) {
			v.errorf(blk.ID, -1, "branch target b%d out of range", t)
			continue
		}

		if countOf(f.Blocks[t].Preds, blk.ID) != countOf(blk.Succs, t) {
			v.errorf(blk.ID, -1, "edge to b%d is not mirrored in its predecessor list", t)
		}
	}

	for _, p := range blk.Preds {
		if int(p) < 0 || int(p) >= len(f.Blocks) || countOf(f.Blocks[p].Succs, blk.ID) == 0 {
			v.errorf(blk.ID, -1, "predecessor b%d has no edge to this block", p)
		}
	}
}

func countOf(list []BlockID, b BlockID) int {
	n := 0
	for _, x := range list {
		if x == b {
			n++
		}
	}

	return n
}

// checkShape checks an instruction's operands and result against its opcode.
func (v *verifier) checkShape(b BlockID, id InstrID, in *Instr) {
	f := v.fn

	if in.Op >= NumOpcodes {
		v.errorf(b, id, "invalid opcode %d", in.Op)
		return
	}

	info := opTable[in.Op]

	switch info.dest {
	case destAlways:
		if in.Dest == NoValue {
			v.errorf(b, id, "`%s` has no result", in.Op)
		}
	case destNever:
		if in.Dest != NoValue {
			v.errorf(b, id, "`%s` must not have a result", in.Op)
		}
	}

	if in.Dest != NoValue && (int(in.Dest) < 0 || int(in.Dest) >= len(f.Values)) {
		v.errorf(b, id, "result v%d out of range", in.Dest)
		return
	}

	if info.arity >= 0 && len(in.Args) != info.arity {
		v.errorf(b, id, "`%s` takes %d operands but has %d", in.Op, info.arity, len(in.Args))
	}

	for i, arg := range in.Args {
		if arg.IsValue() {
			if int(arg.Value) < 0 || int(arg.Value) >= len(f.Values) {
				v.errorf(b, id, "operand %d references v%d out of range", i, arg.Value)
			}
		} else if !in.AllowsImm(i) {
			v.errorf(b, id, "operand %d of `%s` may not be an immediate", i, in.Op)
		}
	}

	switch in.Op {
	case OpJump:
		if len(in.Targets) != 1 {
			v.errorf(b, id, "jump must have one target")
		}
	case OpBranch:
		if len(in.Targets) != 2 {
			v.errorf(b, id, "branch must have two targets")
		}
	case OpReturn:
		if len(in.Args) > 1 {
			v.errorf(b, id, "return takes at most one operand")
		}

		if f.HasResult != (len(in.Args) == 1) {
			v.errorf(b, id, "return operand does not match the function's result")
		}
	case OpCall:
		if in.IsIndirectCall() && len(in.Args) == 0 {
			v.errorf(b, id, "indirect call has no callee")
		}
	case OpAddr:
		if in.Sym == "" {
			v.errorf(b, id, "address of an unnamed symbol")
		}
	case OpFrameAddr, OpSpill, OpReload:
		if in.Slot < 0 || in.Slot >= len(f.Frame) {
			v.errorf(b, id, "frame object %d out of range", in.Slot)
		}
	}

	if len(in.Targets) > 0 && !in.Op.IsTerminator() {
		v.errorf(b, id, "`%s` has branch targets", in.Op)
	}

	if in.Dest == NoValue {
		return
	}

	dest := &f.Values[in.Dest]
	switch in.Op {
	case OpLoad:
		if dest.Width != in.Width {
			v.errorf(b, id, "load result width does not match access width")
		}
	case OpCmp:
		if dest.Width != WidthWord {
			v.errorf(b, id, "comparison result must be word width")
		}
	case OpConst:
		if !dest.IsConst || len(in.Args) == 1 && dest.Const != in.Args[0].Imm {
			v.errorf(b, id, "constant result is not tagged with its value")
		}
	default:
		if in.Op.IsBinary() && dest.Width != WidthWord {
			v.errorf(b, id, "arithmetic result must be word width")
		}
	}
}

// -----------------------------------------------------------------------------

// checkDefinitions checks that every value is defined exactly once and that
// every use is dominated by its definition.
func (v *verifier) checkDefinitions() {
	f := v.fn

	defBlock := make([]BlockID, len(f.Values))
	defPos := make([]int, len(f.Values))
	defCount := make([]int, len(f.Values))
	for i := range defBlock {
		defBlock[i] = -1
	}

	for _, p := range f.Params {
		defCount[p]++
		defBlock[p] = 0
		defPos[p] = -1
	}

	for _, blk := range f.Blocks {
		for pos, id := range blk.Instrs {
			in := &f.Instrs[id]
			if in.Dest == NoValue {
				continue
			}

			defCount[in.Dest]++
			defBlock[in.Dest] = blk.ID
			defPos[in.Dest] = pos

			if f.Values[in.Dest].Def != id {
				v.errorf(blk.ID, id, "v%d records definition i%d", in.Dest, f.Values[in.Dest].Def)
			}
		}
	}

	for i, n := range defCount {
		if n > 1 {
			v.errorf(defBlock[i], -1, "v%d is defined %d times", i, n)
		}
	}

	dt := f.Dominators()

	for _, blk := range f.Blocks {
		for pos, id := range blk.Instrs {
			in := &f.Instrs[id]

			in.Uses(func(i int, val ValueID) {
				if defCount[val] == 0 {
					v.errorf(blk.ID, id, "v%d is used but never defined", val)
					return
				}

				db := defBlock[val]

				if in.Op == OpPhi {
					// a phi operand must be available at the end of its
					// incoming predecessor
					if i < len(blk.Preds) && !dt.Dominates(db, blk.Preds[i]) {
						v.errorf(blk.ID, id, "phi operand v%d does not dominate predecessor b%d", val, blk.Preds[i])
					}

					return
				}

				if db == blk.ID {
					if defPos[val] >= pos {
						v.errorf(blk.ID, id, "v%d is used before its definition", val)
					}
				} else if !dt.Dominates(db, blk.ID) {
					v.errorf(blk.ID, id, "definition of v%d does not dominate its use", val)
				}
			})
		}
	}
}
