package llvmexport

import (
	"fmt"

	"esocc/ir"
	"esocc/report"

	llvm "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// funcExporter converts the body of one function.
type funcExporter struct {
	e  *Exporter
	f  *ir.Func
	lf *llvm.Func

	blocks []*llvm.Block
	vals   []value.Value

	// The storage of each frame object.
	frame []*llvm.InstAlloca

	// Phis whose incoming values are filled in once every block is done.
	phis []pendingPhi

	cur ir.InstrID
}

type pendingPhi struct {
	phi *llvm.InstPhi
	in  *ir.Instr
}

func newFuncExporter(e *Exporter, f *ir.Func) *funcExporter {
	return &funcExporter{
		e:      e,
		f:      f,
		lf:     e.funcs[f.Name],
		blocks: make([]*llvm.Block, len(f.Blocks)),
		vals:   make([]value.Value, len(f.Values)),
		frame:  make([]*llvm.InstAlloca, len(f.Frame)),
		cur:    ir.NoInstr,
	}
}

func (fe *funcExporter) ice(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if fe.cur != ir.NoInstr {
		msg += fmt.Sprintf(" (at `%s`)", fe.f.InstrString(fe.cur))
	}

	panic(report.ICE("llvmexport", fe.f.Name, "%s", msg))
}

func (fe *funcExporter) export() {
	rpo := fe.f.ReversePostorder()

	for _, b := range rpo {
		blk := fe.f.Block(b)

		name := blk.Name
		if name == "" {
			name = "b"
		}

		fe.blocks[b] = fe.lf.NewBlock(fmt.Sprintf("%s%d", name, b))
	}

	for i, p := range fe.f.Params {
		fe.vals[p] = fe.lf.Params[i]
	}

	entry := fe.blocks[0]
	for i, obj := range fe.f.Frame {
		size := obj.Size
		if size < 1 {
			size = 1
		}

		fe.frame[i] = entry.NewAlloca(types.NewArray(uint64(size), unit))

		// Incoming arguments are copied into their slots.
		if obj.Kind == ir.FrameArg && obj.Arg < len(fe.lf.Params) {
			entry.NewStore(fe.lf.Params[obj.Arg], fe.slot(entry, i, 0))
		}
	}

	for _, b := range rpo {
		for _, id := range fe.f.Block(b).Instrs {
			fe.cur = id
			fe.instr(fe.blocks[b], fe.f.Instr(id))
		}
	}

	fe.cur = ir.NoInstr
	for _, pp := range fe.phis {
		for i, arg := range pp.in.Args {
			pp.phi.Incs[i].X = fe.operand(arg)
		}
	}
}

// operand returns the LLVM value of an IR operand.
func (fe *funcExporter) operand(o ir.Operand) value.Value {
	if !o.IsValue() {
		return constant.NewInt(unit, o.Imm)
	}

	v := fe.vals[o.Value]
	if v == nil {
		fe.ice("use of v%d before its definition", o.Value)
	}

	return v
}

// slot returns a pointer to unit offset of frame object i.
func (fe *funcExporter) slot(blk *llvm.Block, i int, offset int64) value.Value {
	alloca := fe.frame[i]
	return blk.NewGetElementPtr(alloca.ElemType, alloca, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, offset))
}

// pointer converts an address and displacement into a unit pointer.
func (fe *funcExporter) pointer(blk *llvm.Block, addr value.Value, offset int64) value.Value {
	ptr := blk.NewIntToPtr(addr, types.NewPointer(unit))
	if offset == 0 {
		return ptr
	}

	return blk.NewGetElementPtr(unit, ptr, constant.NewInt(unit, offset))
}

func (fe *funcExporter) define(in *ir.Instr, v value.Value) {
	if in.Dest != ir.NoValue {
		fe.vals[in.Dest] = v
	}
}

var unsignedPreds = [...]enum.IPred{enum.IPredEQ, enum.IPredNE, enum.IPredULT, enum.IPredULE, enum.IPredUGT, enum.IPredUGE}
var signedPreds = [...]enum.IPred{enum.IPredEQ, enum.IPredNE, enum.IPredSLT, enum.IPredSLE, enum.IPredSGT, enum.IPredSGE}

func pred(c ir.Cond, signed bool) enum.IPred {
	if signed {
		return signedPreds[c]
	}

	return unsignedPreds[c]
}

func (fe *funcExporter) instr(blk *llvm.Block, in *ir.Instr) {
	arg := func(i int) value.Value {
		return fe.operand(in.Args[i])
	}

	switch in.Op {
	case ir.OpConst:
		fe.define(in, constant.NewInt(unit, in.Args[0].Imm))
	case ir.OpCopy:
		fe.define(in, arg(0))
	case ir.OpConv:
		x := arg(0)
		if fe.f.Value(in.Dest).Width == ir.WidthByte {
			t := blk.NewTrunc(x, types.I8)
			if in.Signed {
				x = blk.NewSExt(t, unit)
			} else {
				x = blk.NewZExt(t, unit)
			}
		}

		fe.define(in, x)
	case ir.OpAdd:
		fe.define(in, blk.NewAdd(arg(0), arg(1)))
	case ir.OpSub:
		fe.define(in, blk.NewSub(arg(0), arg(1)))
	case ir.OpMul:
		fe.define(in, blk.NewMul(arg(0), arg(1)))
	case ir.OpDiv:
		if in.Signed {
			fe.define(in, blk.NewSDiv(arg(0), arg(1)))
		} else {
			fe.define(in, blk.NewUDiv(arg(0), arg(1)))
		}
	case ir.OpMod:
		if in.Signed {
			fe.define(in, blk.NewSRem(arg(0), arg(1)))
		} else {
			fe.define(in, blk.NewURem(arg(0), arg(1)))
		}
	case ir.OpAnd:
		fe.define(in, blk.NewAnd(arg(0), arg(1)))
	case ir.OpOr:
		fe.define(in, blk.NewOr(arg(0), arg(1)))
	case ir.OpXor:
		fe.define(in, blk.NewXor(arg(0), arg(1)))
	case ir.OpShl:
		fe.define(in, blk.NewShl(arg(0), arg(1)))
	case ir.OpShr:
		if in.Signed {
			fe.define(in, blk.NewAShr(arg(0), arg(1)))
		} else {
			fe.define(in, blk.NewLShr(arg(0), arg(1)))
		}
	case ir.OpNeg:
		fe.define(in, blk.NewSub(constant.NewInt(unit, 0), arg(0)))
	case ir.OpNot:
		fe.define(in, blk.NewXor(arg(0), constant.NewInt(unit, -1)))
	case ir.OpCmp:
		c := blk.NewICmp(pred(in.Cond, in.Signed), arg(0), arg(1))
		fe.define(in, blk.NewZExt(c, unit))
	case ir.OpAddr:
		addr := value.Value(fe.e.symbolAddress(in.Sym))
		if in.Offset != 0 {
			addr = blk.NewAdd(addr, constant.NewInt(unit, in.Offset))
		}

		fe.define(in, addr)
	case ir.OpFrameAddr:
		fe.define(in, blk.NewPtrToInt(fe.slot(blk, in.Slot, in.Offset), unit))
	case ir.OpLoad:
		fe.define(in, blk.NewLoad(unit, fe.pointer(blk, arg(0), in.Offset)))
	case ir.OpStore:
		blk.NewStore(arg(1), fe.pointer(blk, arg(0), in.Offset))
	case ir.OpSpill:
		blk.NewStore(arg(0), fe.slot(blk, in.Slot, 0))
	case ir.OpReload:
		fe.define(in, blk.NewLoad(unit, fe.slot(blk, in.Slot, 0)))
	case ir.OpCall:
		fe.call(blk, in)
	case ir.OpPhi:
		preds := fe.f.Block(in.Block).Preds
		if len(preds) != len(in.Args) {
			fe.ice("phi has %d operands for %d predecessors", len(in.Args), len(preds))
		}

		incs := make([]*llvm.Incoming, len(preds))
		for i, p := range preds {
			incs[i] = llvm.NewIncoming(constant.NewInt(unit, 0), fe.blocks[p])
		}

		phi := blk.NewPhi(incs...)
		fe.phis = append(fe.phis, pendingPhi{phi: phi, in: in})
		fe.define(in, phi)
	case ir.OpJump:
		blk.NewBr(fe.blocks[in.Targets[0]])
	case ir.OpBranch:
		c := blk.NewICmp(pred(in.Cond, in.Signed), arg(0), arg(1))
		blk.NewCondBr(c, fe.blocks[in.Targets[0]], fe.blocks[in.Targets[1]])
	case ir.OpReturn:
		switch {
		case !fe.f.HasResult:
			blk.NewRet(nil)
		case len(in.Args) == 0:
			blk.NewRet(constant.NewInt(unit, 0))
		default:
			blk.NewRet(arg(0))
		}
	default:
		fe.ice("unknown opcode %s", in.Op)
	}
}

func (fe *funcExporter) call(blk *llvm.Block, in *ir.Instr) {
	args := in.CallArgs()
	vals := make([]value.Value, len(args))
	for i, a := range args {
		vals[i] = fe.operand(a)
	}

	var callee value.Value
	var ret types.Type = unit

	if in.IsIndirectCall() {
		params := make([]types.Type, len(args))
		for i := range params {
			params[i] = unit
		}

		sig := types.NewFunc(unit, params...)
		callee = blk.NewIntToPtr(fe.operand(in.Args[0]), types.NewPointer(sig))
	} else {
		lf := fe.e.callee(in.Sym, len(args))
		callee = lf
		ret = lf.Sig.RetType
	}

	call := blk.NewCall(callee, vals...)

	if in.Dest != ir.NoValue {
		if ret.Equal(types.Void) {
			fe.define(in, constant.NewInt(unit, 0))
		} else {
			fe.define(in, call)
		}
	}
}
