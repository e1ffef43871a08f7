package build

import (
	"esocc/asm"
	"esocc/assemble"
	"esocc/obj"
	"esocc/target"
)

// startupSource is the program entry: it calls `main` and halts by jumping to
// itself.
const startupSource = `
.extern main
.global _start, _halt
.text
_start:
	JSR main
_halt:
	SUB PC, 1
`

// divisionSource implements the division runtime used when the target has no
// native division.  Every routine follows the stackcall convention.  The
// shared core divides A by B by shift and subtract, leaving the quotient in A
// and the remainder in C.  Division by zero yields zero for both.
const divisionSource = `
.global __divu, __modu, __divs, __mods
.text
__udivmod:
	SET C, 0
	IFE B, 0
	BRA __udivmod.zero
	SET PUSH, 16
__udivmod.loop:
	IFB C, 0x8000
	BRA __udivmod.carry
	SHL C, 1
	SHL A, 1
	BOR C, EX
	IFL C, B
	BRA __udivmod.next
	SUB C, B
	BOR A, 1
	BRA __udivmod.next
__udivmod.carry:
	SHL C, 1
	SHL A, 1
	BOR C, EX
	SUB C, B
	BOR A, 1
__udivmod.next:
	SUB PEEK, 1
	IFN PEEK, 0
	BRA __udivmod.loop
	ADD SP, 1
	SET PC, POP
__udivmod.zero:
	SET A, 0
	SET PC, POP

__divu:
	SET PUSH, J
	SET J, SP
	SET A, [J+2]
	SET B, [J+3]
	JSR __udivmod
	SET SP, J
	SET J, POP
	SET PC, POP

__modu:
	SET PUSH, J
	SET J, SP
	SET A, [J+2]
	SET B, [J+3]
	JSR __udivmod
	SET A, C
	SET SP, J
	SET J, POP
	SET PC, POP

__divs:
	SET PUSH, J
	SET J, SP
	SET PUSH, X
	SET X, 0
	SET A, [J+2]
	SET B, [J+3]
	IFA A, -1
	BRA __divs.apos
	XOR X, 1
	SET C, 0
	SUB C, A
	SET A, C
__divs.apos:
	IFA B, -1
	BRA __divs.bpos
	XOR X, 1
	SET C, 0
	SUB C, B
	SET B, C
__divs.bpos:
	JSR __udivmod
	IFE X, 0
	BRA __divs.done
	SET C, 0
	SUB C, A
	SET A, C
__divs.done:
	SET X, POP
	SET SP, J
	SET J, POP
	SET PC, POP

__mods:
	SET PUSH, J
	SET J, SP
	SET PUSH, X
	SET X, 0
	SET A, [J+2]
	SET B, [J+3]
	IFA A, -1
	BRA __mods.apos
	SET X, 1
	SET C, 0
	SUB C, A
	SET A, C
__mods.apos:
	IFA B, -1
	BRA __mods.bpos
	SET C, 0
	SUB C, B
	SET B, C
__mods.bpos:
	JSR __udivmod
	SET A, C
	IFE X, 0
	BRA __mods.done
	SET A, 0
	SUB A, C
__mods.done:
	SET X, POP
	SET SP, J
	SET J, POP
	SET PC, POP
`

// Startup assembles the startup object.
func Startup(tgt *target.Target) (*obj.Object, error) {
	return assembleSource("crt0", startupSource, tgt)
}

// DivisionRuntime assembles the division routines called in libcall mode.
func DivisionRuntime(tgt *target.Target) (*obj.Object, error) {
	return assembleSource("divrt", divisionSource, tgt)
}

func assembleSource(name, src string, tgt *target.Target) (*obj.Object, error) {
	s, err := asm.Parse(name, src, tgt)
	if err != nil {
		return nil, err
	}

	return assemble.Assemble(name, s, tgt)
}
