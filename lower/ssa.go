package lower

import (
	"esocc/ast"
	"esocc/ir"
	"esocc/typing"
)

// pendingPhi is a phi created in a block whose predecessors were not yet all
// known.  Its operands are filled in when the block is sealed.
type pendingPhi struct {
	sym *ast.Symbol
	phi ir.InstrID
}

// ssaBuilder tracks the reaching definition of every register-resident local
// per block and creates phis on demand.  A block is sealed once no further
// predecessors will be added to it.
type ssaBuilder struct {
	fn *ir.Func
	b  *ir.Builder

	defs       map[*ast.Symbol]map[ir.BlockID]ir.ValueID
	incomplete map[ir.BlockID][]pendingPhi
	sealed     map[ir.BlockID]bool
}

func newSSABuilder(fn *ir.Func, b *ir.Builder) *ssaBuilder {
	return &ssaBuilder{
		fn:         fn,
		b:          b,
		defs:       make(map[*ast.Symbol]map[ir.BlockID]ir.ValueID),
		incomplete: make(map[ir.BlockID][]pendingPhi),
		sealed:     make(map[ir.BlockID]bool),
	}
}

// write records v as the current definition of sym in blk.
func (s *ssaBuilder) write(sym *ast.Symbol, blk ir.BlockID, v ir.ValueID) {
	defs, ok := s.defs[sym]
	if !ok {
		defs = make(map[ir.BlockID]ir.ValueID)
		s.defs[sym] = defs
	}

	defs[blk] = v
}

// read returns the definition of sym reaching the end of blk.
func (s *ssaBuilder) read(sym *ast.Symbol, blk ir.BlockID) ir.ValueID {
	if v, ok := s.defs[sym][blk]; ok {
		return v
	}

	return s.readRecursive(sym, blk)
}

func (s *ssaBuilder) readRecursive(sym *ast.Symbol, blk ir.BlockID) ir.ValueID {
	width, signed := widthOf(sym.Type), typing.IsSigned(sym.Type)
	preds := s.fn.Blocks[blk].Preds

	var val ir.ValueID
	switch {
	case !s.sealed[blk]:
		phi, id := s.b.Phi(blk, width, signed)
		s.incomplete[blk] = append(s.incomplete[blk], pendingPhi{sym: sym, phi: id})
		val = phi
	case len(preds) == 0:
		// the variable is read before any assignment
		val = s.b.ConstAtEntry(0, width, signed)
	case len(preds) == 1:
		val = s.read(sym, preds[0])
	default:
		phi, id := s.b.Phi(blk, width, signed)

		// record the phi first to break cycles through loops
		s.write(sym, blk, phi)
		s.addOperands(sym, id, blk)
		val = phi
	}

	s.write(sym, blk, val)
	return val
}

// addOperands fills in a phi's operands from every predecessor of blk in
// predecessor order.
func (s *ssaBuilder) addOperands(sym *ast.Symbol, phi ir.InstrID, blk ir.BlockID) {
	for _, pred := range s.fn.Blocks[blk].Preds {
		s.b.AddPhiArg(phi, s.read(sym, pred))
	}
}

// seal marks blk as having all its predecessors and completes its pending
// phis.
func (s *ssaBuilder) seal(blk ir.BlockID) {
	if s.sealed[blk] {
		return
	}

	s.sealed[blk] = true

	for _, p := range s.incomplete[blk] {
		s.addOperands(p.sym, p.phi, blk)
	}

	delete(s.incomplete, blk)
}
