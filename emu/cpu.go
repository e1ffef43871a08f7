// Package emu is a DCPU-16 emulator.  It runs flat images produced by the
// linker and is used by the `run` command and the end-to-end tests.  Hardware
// devices are not emulated: HWN reports no devices.
package emu

import (
	"errors"
	"fmt"
)

// MemorySize is the number of words of memory.
const MemorySize = 0x10000

// RegisterNames are the names of the general purpose registers in encoding
// order.
var RegisterNames = [...]string{"A", "B", "C", "X", "Y", "Z", "I", "J"}

// Enumeration of register indices.
const (
	RegA = iota
	RegB
	RegC
	RegX
	RegY
	RegZ
	RegI
	RegJ
)

// Basic opcodes.
const (
	opSpecial = 0x00
	opSET     = 0x01
	opADD     = 0x02
	opSUB     = 0x03
	opMUL     = 0x04
	opMLI     = 0x05
	opDIV     = 0x06
	opDVI     = 0x07
	opMOD     = 0x08
	opMDI     = 0x09
	opAND     = 0x0a
	opBOR     = 0x0b
	opXOR     = 0x0c
	opSHR     = 0x0d
	opASR     = 0x0e
	opSHL     = 0x0f
	opIFB     = 0x10
	opIFC     = 0x11
	opIFE     = 0x12
	opIFN     = 0x13
	opIFG     = 0x14
	opIFA     = 0x15
	opIFL     = 0x16
	opIFU     = 0x17
	opADX     = 0x1a
	opSBX     = 0x1b
	opSTI     = 0x1e
	opSTD     = 0x1f
)

// Special opcodes.
const (
	spJSR = 0x01
	spINT = 0x08
	spIAG = 0x09
	spIAS = 0x0a
	spRFI = 0x0b
	spIAQ = 0x0c
	spHWN = 0x10
	spHWQ = 0x11
	spHWI = 0x12
)

// maxQueuedInterrupts is the depth at which the interrupt queue catches fire.
const maxQueuedInterrupts = 256

// ErrStepLimit is returned by Run when the program does not halt within the
// step budget.
var ErrStepLimit = errors.New("step limit reached")

// CPU is the state of the machine.
type CPU struct {
	Regs [8]uint16

	PC, SP, EX, IA uint16

	Memory [MemorySize]uint16

	// Halted is set once the program jumps to itself.
	Halted bool

	// Steps counts executed instructions, skipped ones excluded.
	Steps int64

	queueing bool
	queue    []uint16
}

// New creates a machine with cleared memory and registers.
func New() *CPU {
	return &CPU{}
}

// Load copies a flat image into memory at base.
func (c *CPU) Load(image []uint32, base int64) error {
	if base < 0 || base+int64(len(image)) > MemorySize {
		return fmt.Errorf("image of %d words does not fit in memory at %#x", len(image), base)
	}

	for i, u := range image {
		if u > 0xffff {
			return fmt.Errorf("image word %d (%#x) is wider than 16 bits", i, u)
		}

		c.Memory[base+int64(i)] = uint16(u)
	}

	c.PC = uint16(base)
	return nil
}

// Register returns the value of a register by name.
func (c *CPU) Register(name string) (uint16, bool) {
	for i, rn := range RegisterNames {
		if rn == name {
			return c.Regs[i], true
		}
	}

	switch name {
	case "SP":
		return c.SP, true
	case "PC":
		return c.PC, true
	case "EX":
		return c.EX, true
	case "IA":
		return c.IA, true
	}

	return 0, false
}

// Run steps the machine until it halts or maxSteps instructions have run.
func (c *CPU) Run(maxSteps int64) error {
	for !c.Halted {
		if maxSteps > 0 && c.Steps >= maxSteps {
			return ErrStepLimit
		}

		if err := c.Step(); err != nil {
			return err
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// locKind is the kind of an operand location.
type locKind int

const (
	locReg locKind = iota
	locMem
	locLit
	locSP
	locPC
	locEX
)

// loc is a resolved operand.  Literals hold their value; the other kinds are
// read and written through the machine.
type loc struct {
	kind  locKind
	index uint16
}

func (c *CPU) read(l loc) uint16 {
	switch l.kind {
	case locReg:
		return c.Regs[l.index]
	case locMem:
		return c.Memory[l.index]
	case locSP:
		return c.SP
	case locPC:
		return c.PC
	case locEX:
		return c.EX
	default:
		return l.index
	}
}

// write stores into a location.  Writes to literals are ignored.
func (c *CPU) write(l loc, v uint16) {
	switch l.kind {
	case locReg:
		c.Regs[l.index] = v
	case locMem:
		c.Memory[l.index] = v
	case locSP:
		c.SP = v
	case locPC:
		c.PC = v
	case locEX:
		c.EX = v
	}
}

func (c *CPU) nextWord() uint16 {
	w := c.Memory[c.PC]
	c.PC++
	return w
}

func (c *CPU) push(v uint16) {
	c.SP--
	c.Memory[c.SP] = v
}

func (c *CPU) pop() uint16 {
	v := c.Memory[c.SP]
	c.SP++
	return v
}

// operand resolves an operand code, consuming its next word and applying the
// stack pointer side effects of PUSH and POP.
func (c *CPU) operand(code uint16, isA bool) loc {
	switch {
	case code < 0x08:
		return loc{locReg, code}
	case code < 0x10:
		return loc{locMem, c.Regs[code-0x08]}
	case code < 0x18:
		return loc{locMem, c.Regs[code-0x10] + c.nextWord()}
	case code >= 0x20:
		return loc{locLit, code - 0x21}
	}

	switch code {
	case 0x18:
		if isA {
			l := loc{locMem, c.SP}
			c.SP++
			return l
		}

		c.SP--
		return loc{locMem, c.SP}
	case 0x19:
		return loc{locMem, c.SP}
	case 0x1a:
		return loc{locMem, c.SP + c.nextWord()}
	case 0x1b:
		return loc{kind: locSP}
	case 0x1c:
		return loc{kind: locPC}
	case 0x1d:
		return loc{kind: locEX}
	case 0x1e:
		return loc{locMem, c.nextWord()}
	default:
		return loc{locLit, c.nextWord()}
	}
}

// hasNextWord reports whether an operand code is followed by a word.
func hasNextWord(code uint16) bool {
	return (code >= 0x10 && code < 0x18) || code == 0x1a || code == 0x1e || code == 0x1f
}

func isConditional(op uint16) bool {
	return op >= opIFB && op <= opIFU
}

// skip steps over the instruction at PC without executing it, and over every
// conditional that follows it.
func (c *CPU) skip() {
	for {
		w := c.Memory[c.PC]
		c.PC++

		op, b, a := w&0x1f, (w>>5)&0x1f, w>>10
		if hasNextWord(a) {
			c.PC++
		}

		if op != opSpecial && hasNextWord(b) {
			c.PC++
		}

		if !isConditional(op) {
			return
		}
	}
}

// Step executes one instruction.
func (c *CPU) Step() error {
	if c.Halted {
		return nil
	}

	if !c.queueing && len(c.queue) > 0 && c.IA != 0 {
		msg := c.queue[0]
		c.queue = c.queue[1:]
		c.trigger(msg)
	}

	start := c.PC

	w := c.nextWord()
	op, b, a := w&0x1f, (w>>5)&0x1f, w>>10

	var err error
	if op == opSpecial {
		err = c.special(b, a)
	} else {
		err = c.basic(op, b, a)
	}

	if err != nil {
		return fmt.Errorf("at %#04x: %w", start, err)
	}

	c.Steps++
	if c.PC == start {
		c.Halted = true
	}

	return nil
}

func (c *CPU) basic(op, bCode, aCode uint16) error {
	// Operand a is resolved before operand b.
	al := c.operand(aCode, true)
	av := c.read(al)
	bl := c.operand(bCode, false)
	bv := c.read(bl)

	switch op {
	case opSET:
		c.write(bl, av)
	case opADD:
		r := uint32(bv) + uint32(av)
		c.write(bl, uint16(r))
		c.EX = uint16(r >> 16)
	case opSUB:
		r := int32(bv) - int32(av)
		c.write(bl, uint16(r))
		c.EX = 0
		if r < 0 {
			c.EX = 0xffff
		}
	case opMUL:
		r := uint32(bv) * uint32(av)
		c.write(bl, uint16(r))
		c.EX = uint16(r >> 16)
	case opMLI:
		r := int32(int16(bv)) * int32(int16(av))
		c.write(bl, uint16(r))
		c.EX = uint16(r >> 16)
	case opDIV:
		if av == 0 {
			c.write(bl, 0)
			c.EX = 0
		} else {
			c.write(bl, bv/av)
			c.EX = uint16((uint32(bv) << 16) / uint32(av))
		}
	case opDVI:
		if av == 0 {
			c.write(bl, 0)
			c.EX = 0
		} else {
			x, y := int32(int16(bv)), int32(int16(av))
			c.write(bl, uint16(x/y))
			c.EX = uint16((x << 16) / y)
		}
	case opMOD:
		if av == 0 {
			c.write(bl, 0)
		} else {
			c.write(bl, bv%av)
		}
	case opMDI:
		if av == 0 {
			c.write(bl, 0)
		} else {
			c.write(bl, uint16(int32(int16(bv))%int32(int16(av))))
		}
	case opAND:
		c.write(bl, bv&av)
	case opBOR:
		c.write(bl, bv|av)
	case opXOR:
		c.write(bl, bv^av)
	case opSHR:
		c.write(bl, uint16(uint32(bv)>>av))
		c.EX = uint16((uint32(bv) << 16) >> av)
	case opASR:
		x := int32(int16(bv))
		c.write(bl, uint16(x>>av))
		c.EX = uint16((x << 16) >> av)
	case opSHL:
		r := uint32(bv) << av
		c.write(bl, uint16(r))
		c.EX = uint16(r >> 16)
	case opIFB, opIFC, opIFE, opIFN, opIFG, opIFA, opIFL, opIFU:
		if !compare(op, bv, av) {
			c.skip()
		}
	case opADX:
		r := uint32(bv) + uint32(av) + uint32(c.EX)
		c.write(bl, uint16(r))
		c.EX = 0
		if r > 0xffff {
			c.EX = 1
		}
	case opSBX:
		r := int32(bv) - int32(av) + int32(c.EX)
		c.write(bl, uint16(r))
		switch {
		case r < 0:
			c.EX = 0xffff
		case r > 0xffff:
			c.EX = 1
		default:
			c.EX = 0
		}
	case opSTI, opSTD:
		c.write(bl, av)
		if op == opSTI {
			c.Regs[RegI]++
			c.Regs[RegJ]++
		} else {
			c.Regs[RegI]--
			c.Regs[RegJ]--
		}
	default:
		return fmt.Errorf("invalid opcode %#02x", op)
	}

	return nil
}

// compare evaluates the condition of an IF instruction.
func compare(op, b, a uint16) bool {
	switch op {
	case opIFB:
		return b&a != 0
	case opIFC:
		return b&a == 0
	case opIFE:
		return b == a
	case opIFN:
		return b != a
	case opIFG:
		return b > a
	case opIFA:
		return int16(b) > int16(a)
	case opIFL:
		return b < a
	default:
		return int16(b) < int16(a)
	}
}

func (c *CPU) special(op, aCode uint16) error {
	al := c.operand(aCode, true)
	av := c.read(al)

	switch op {
	case spJSR:
		c.push(c.PC)
		c.PC = av
	case spINT:
		return c.interrupt(av)
	case spIAG:
		c.write(al, c.IA)
	case spIAS:
		c.IA = av
	case spRFI:
		c.queueing = false
		c.Regs[RegA] = c.pop()
		c.PC = c.pop()
	case spIAQ:
		c.queueing = av != 0
	case spHWN:
		c.write(al, 0)
	case spHWQ, spHWI:
		return fmt.Errorf("no hardware device %d", av)
	default:
		return fmt.Errorf("invalid special opcode %#02x", op)
	}

	return nil
}

// interrupt raises a software interrupt.  Interrupts are ignored while IA is
// zero and queued while queueing is on.
func (c *CPU) interrupt(msg uint16) error {
	if c.IA == 0 {
		return nil
	}

	if c.queueing {
		if len(c.queue) >= maxQueuedInterrupts {
			return fmt.Errorf("interrupt queue overflow")
		}

		c.queue = append(c.queue, msg)
		return nil
	}

	c.trigger(msg)
	return nil
}

func (c *CPU) trigger(msg uint16) {
	c.queueing = true
	c.push(c.PC)
	c.push(c.Regs[RegA])
	c.PC = c.IA
	c.Regs[RegA] = msg
}
