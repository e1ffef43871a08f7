package ir

// Linkage is the visibility of a function or global.
type Linkage int

// Enumeration of linkage kinds.
const (
	LinkExported Linkage = iota
	LinkLocal
	LinkImported
)

func (l Linkage) String() string {
	switch l {
	case LinkLocal:
		return "local"
	case LinkImported:
		return "imported"
	default:
		return "exported"
	}
}

// FrameKind is the kind of a frame object.
type FrameKind int

// Enumeration of frame object kinds.
const (
	// A memory-resident local: an aggregate or an address-taken scalar.
	FrameLocal FrameKind = iota

	// A spill slot created by the register allocator.
	FrameSpill

	// An incoming argument slot.  These are owned by the caller.
	FrameArg

	// The scratch slot used to break cyclic parallel moves.
	FrameScratch
)

// FrameObject is a named region of a function's stack frame.
type FrameObject struct {
	Kind FrameKind
	Size int
	Name string

	// The parameter index of FrameArg objects.
	Arg int
}

// Block is a basic block.  Blocks refer to their neighbours by ID only.
type Block struct {
	ID   BlockID
	Name string

	// The instructions of the block in order.  Phis come first and the last
	// instruction is the only terminator.
	Instrs []InstrID

	Preds, Succs []BlockID

	// The loop nesting depth.  This is only valid after ComputeLoopDepths.
	LoopDepth int
}

// Func is a function: an arena of values and instructions organized into
// blocks.  Blocks[0] is the entry block and every block's ID is its index.
type Func struct {
	Name    string
	Linkage Linkage

	// The parameter values in order.
	Params []ValueID

	// Whether the function returns a value and, if so, its width.
	HasResult   bool
	ResultWidth Width

	Values []Value
	Instrs []Instr
	Blocks []*Block
	Frame  []FrameObject
}

// NewFunc creates a new function with no blocks.
func NewFunc(name string, linkage Linkage) *Func {
	return &Func{Name: name, Linkage: linkage}
}

// IsDeclaration returns whether the function has no body.
func (f *Func) IsDeclaration() bool {
	return len(f.Blocks) == 0
}

// Entry returns the entry block.
func (f *Func) Entry() *Block {
	return f.Blocks[0]
}

// Value returns the value with the given ID.
func (f *Func) Value(id ValueID) *Value {
	return &f.Values[id]
}

// Instr returns the instruction with the given ID.
func (f *Func) Instr(id InstrID) *Instr {
	return &f.Instrs[id]
}

// Block returns the block with the given ID.
func (f *Func) Block(id BlockID) *Block {
	return f.Blocks[id]
}

// NewValue allocates a new value.
func (f *Func) NewValue(width Width, signed bool) ValueID {
	id := ValueID(len(f.Values))
	f.Values = append(f.Values, Value{ID: id, Width: width, Signed: signed, Def: NoInstr, Param: -1})
	return id
}

// NewParam appends a new parameter.
func (f *Func) NewParam(width Width, signed bool, name string) ValueID {
	id := f.NewValue(width, signed)
	f.Values[id].Param = len(f.Params)
	f.Values[id].Name = name
	f.Params = append(f.Params, id)
	return id
}

// NewBlock appends a new empty block.
func (f *Func) NewBlock(name string) BlockID {
	id := BlockID(len(f.Blocks))
	f.Blocks = append(f.Blocks, &Block{ID: id, Name: name})
	return id
}

// NewFrameObject appends a frame object and returns its index.
func (f *Func) NewFrameObject(kind FrameKind, size int, name string) int {
	f.Frame = append(f.Frame, FrameObject{Kind: kind, Size: size, Name: name})
	return len(f.Frame) - 1
}

// ArgSlot returns the frame object for the incoming argument slot of the
// given parameter, creating it if necessary.
func (f *Func) ArgSlot(param int) int {
	for i, obj := range f.Frame {
		if obj.Kind == FrameArg && obj.Arg == param {
			return i
		}
	}

	f.Frame = append(f.Frame, FrameObject{Kind: FrameArg, Size: 1, Name: "arg", Arg: param})
	return len(f.Frame) - 1
}

// AddInstr appends an instruction to the arena without placing it in a block.
// If the instruction has a result, the result's definition is recorded.
func (f *Func) AddInstr(in Instr) InstrID {
	id := InstrID(len(f.Instrs))
	f.Instrs = append(f.Instrs, in)

	if in.Dest != NoValue {
		f.Values[in.Dest].Def = id
	}

	return id
}

// Terminator returns the last instruction of a block or nil if the block is
// empty or not yet terminated.
func (f *Func) Terminator(b BlockID) *Instr {
	blk := f.Blocks[b]
	if len(blk.Instrs) == 0 {
		return nil
	}

	in := &f.Instrs[blk.Instrs[len(blk.Instrs)-1]]
	if !in.Op.IsTerminator() {
		return nil
	}

	return in
}

// Phis returns the phi instructions at the start of a block.
func (f *Func) Phis(b BlockID) []InstrID {
	blk := f.Blocks[b]
	n := 0
	for n < len(blk.Instrs) && f.Instrs[blk.Instrs[n]].Op == OpPhi {
		n++
	}

	return blk.Instrs[:n]
}

// AddEdge records a control-flow edge.
func (f *Func) AddEdge(from, to BlockID) {
	f.Blocks[from].Succs = append(f.Blocks[from].Succs, to)
	f.Blocks[to].Preds = append(f.Blocks[to].Preds, from)
}

// PredIndex returns the position of pred in b's predecessor list or -1.
func (f *Func) PredIndex(b, pred BlockID) int {
	for i, p := range f.Blocks[b].Preds {
		if p == pred {
			return i
		}
	}

	return -1
}

// -----------------------------------------------------------------------------

// DataItem is one unit of a global's initial contents: a constant, or the
// address of a symbol plus the constant as addend.
type DataItem struct {
	Value int64
	Sym   string
}

// Global is a global data object.
type Global struct {
	Name    string
	Size    int
	Linkage Linkage

	// The initial contents.  Units beyond len(Init) are zero; a nil Init
	// means the whole object is zero-filled.
	Init []DataItem

	ReadOnly bool
}
