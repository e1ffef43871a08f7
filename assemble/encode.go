package assemble

import (
	"esocc/asm"
	"esocc/obj"
	"esocc/report"
	"esocc/target"
)

// nextWord is the extra word following an instruction word: a constant or a
// symbol reference to be patched by an absolute relocation.
type nextWord struct {
	present bool
	value   int64
	sym     string
}

// encode is the second pass: it emits the units of every entry.
func (a *Assembler) encode(s asm.Stream) error {
	a.sec = obj.SecText

	for _, in := range s {
		switch in.Kind {
		case asm.KindLabel:
			if sym := a.symbols[in.Label]; sym.Section != a.sec || sym.Offset != a.offset() {
				panic(report.ICE("assemble", "", "label `%s` moved from %d to %d between passes", in.Label, sym.Offset, a.offset()))
			}
		case asm.KindDirective:
			if err := a.encodeDirective(in); err != nil {
				return err
			}
		default:
			if err := a.encodeInstr(in); err != nil {
				return err
			}
		}
	}

	return nil
}

func (a *Assembler) section() *obj.Section {
	return a.o.Section(a.sec)
}

func (a *Assembler) offset() int64 {
	return int64(len(a.section().Units))
}

func (a *Assembler) emit(u uint32) {
	sec := a.section()
	sec.Units = append(sec.Units, u&a.o.Mask())
}

// emitNext emits an extra word, recording a relocation for symbols.
func (a *Assembler) emitNext(nw nextWord) {
	if !nw.present {
		return
	}

	if nw.sym != "" {
		a.o.Relocs = append(a.o.Relocs, &obj.Reloc{
			Section: a.sec,
			Offset:  a.offset(),
			Symbol:  nw.sym,
			Kind:    obj.RelocAbs,
			Addend:  nw.value,
		})

		a.emit(0)
		return
	}

	a.emit(uint32(nw.value))
}

func (a *Assembler) encodeDirective(in *asm.Instr) error {
	switch in.Mnemonic {
	case asm.DirText:
		a.sec = obj.SecText
	case asm.DirData:
		a.sec = obj.SecData
	case asm.DirWord:
		for _, arg := range in.Args {
			switch arg.Kind {
			case asm.OpdLit:
				if !a.tgt.FitsImmediate(arg.Value) {
					return a.errorf(in, "value %d does not fit in a unit", arg.Value)
				}

				a.emit(uint32(arg.Value))
			case asm.OpdSym:
				a.emitNext(nextWord{present: true, value: arg.Value, sym: arg.Sym})
			default:
				return a.errorf(in, "invalid .dw item %s", arg)
			}
		}
	case asm.DirFill:
		count, value := in.Args[0].Value, in.Args[1].Value
		if !a.tgt.FitsImmediate(value) {
			return a.errorf(in, "fill value %d does not fit in a unit", value)
		}

		for i := int64(0); i < count; i++ {
			a.emit(uint32(value))
		}
	case asm.DirAlign:
		for end := obj.AlignUp(a.offset(), int(in.Args[0].Value)); a.offset() < end; {
			a.emit(0)
		}
	}

	return nil
}

func (a *Assembler) encodeInstr(in *asm.Instr) error {
	op, _ := a.tgt.Opcode(in.Mnemonic)
	enc := a.tgt.Encoding

	if op.Kind == target.KindPseudo {
		return a.encodeBranch(in)
	}

	acode, anext, err := a.operand(in, in.A, true)
	if err != nil {
		return err
	}

	if op.Kind == target.KindSpecial {
		a.emit(uint32(op.Code)<<uint(enc.OpcodeBits) | uint32(acode)<<uint(enc.OpcodeBits+enc.BBits))
		a.emitNext(anext)
		return nil
	}

	bcode, bnext, err := a.operand(in, in.B, false)
	if err != nil {
		return err
	}

	a.emit(uint32(op.Code) | uint32(bcode)<<uint(enc.OpcodeBits) | uint32(acode)<<uint(enc.OpcodeBits+enc.BBits))

	// the a operand's extra word comes first
	a.emitNext(anext)
	a.emitNext(bnext)
	return nil
}

// encodeBranch encodes a relative branch as an addition to or subtraction
// from PC.
func (a *Assembler) encodeBranch(in *asm.Instr) error {
	form := a.branches[in]
	codes := a.tgt.Operands
	enc := a.tgt.Encoding

	mnemonic := a.tgt.Mnemonic("add")
	if form.backward {
		mnemonic = a.tgt.Mnemonic("sub")
	}

	op, _ := a.tgt.Opcode(mnemonic)

	acode := codes.Next
	if form.short {
		acode = codes.ShortLiteral + int(form.disp) - a.tgt.Immediates.ShortMin
	}

	a.emit(uint32(op.Code) | uint32(codes.PC)<<uint(enc.OpcodeBits) | uint32(acode)<<uint(enc.OpcodeBits+enc.BBits))

	switch {
	case form.short:
	case form.backward:
		a.emit(uint32(form.disp))
	default:
		// PC points past the extra word when the addition happens
		a.o.Relocs = append(a.o.Relocs, &obj.Reloc{
			Section: a.sec,
			Offset:  a.offset(),
			Symbol:  in.A.Sym,
			Kind:    obj.RelocRel,
			Addend:  in.A.Value - 1,
		})

		a.emit(0)
	}

	return nil
}

// operand returns the operand field value of an operand and its extra word.
// isA selects the a field, which alone can hold short literals and POP.
func (a *Assembler) operand(in *asm.Instr, opd asm.Operand, isA bool) (int, nextWord, error) {
	codes := a.tgt.Operands
	none := nextWord{}

	regCode := func() (int, error) {
		code, ok := a.tgt.RegCode(opd.Reg)
		if !ok {
			return 0, a.errorf(in, "unknown register `%s`", opd.Reg)
		}

		return code, nil
	}

	switch opd.Kind {
	case asm.OpdReg:
		rc, err := regCode()
		return codes.Register + rc, none, err
	case asm.OpdMem:
		rc, err := regCode()
		if err != nil {
			return 0, none, err
		}

		if opd.Value == 0 {
			return codes.RegisterIndirect + rc, none, nil
		}

		if !a.tgt.FitsDisplacement(opd.Value) {
			return 0, none, a.errorf(in, "displacement %d is too wide", opd.Value)
		}

		return codes.RegisterDisplaced + rc, nextWord{present: true, value: opd.Value}, nil
	case asm.OpdPush:
		if isA {
			return 0, none, a.errorf(in, "PUSH cannot be a source operand")
		}

		return codes.PushPop, none, nil
	case asm.OpdPop:
		if !isA {
			return 0, none, a.errorf(in, "POP cannot be a destination operand")
		}

		return codes.PushPop, none, nil
	case asm.OpdPeek:
		return codes.Peek, none, nil
	case asm.OpdPick:
		return codes.Pick, nextWord{present: true, value: opd.Value}, nil
	case asm.OpdSP:
		return codes.SP, none, nil
	case asm.OpdPC:
		return codes.PC, none, nil
	case asm.OpdEX:
		return codes.EX, none, nil
	case asm.OpdMemLit:
		return codes.IndirectNext, nextWord{present: true, value: opd.Value}, nil
	case asm.OpdMemSym:
		return codes.IndirectNext, nextWord{present: true, value: opd.Value, sym: opd.Sym}, nil
	case asm.OpdLit:
		if !a.tgt.FitsImmediate(opd.Value) {
			return 0, none, a.errorf(in, "literal %d is too wide", opd.Value)
		}

		if isA && a.tgt.IsShortLiteral(opd.Value) {
			return codes.ShortLiteral + int(opd.Value) - a.tgt.Immediates.ShortMin, none, nil
		}

		return codes.Next, nextWord{present: true, value: opd.Value}, nil
	case asm.OpdSym:
		return codes.Next, nextWord{present: true, value: opd.Value, sym: opd.Sym}, nil
	}

	return 0, none, a.errorf(in, "missing operand")
}
