package emu

import (
	"errors"
	"testing"

	"esocc/asm"
	"esocc/assemble"
	"esocc/target"
)

func load(t *testing.T, src string) *CPU {
	t.Helper()

	tgt := target.Default()

	s, err := asm.Parse("test", src, tgt)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	o, err := assemble.Assemble("test", s, tgt)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	image, err := o.Resolve(0)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	c := New()
	if err := c.Load(image, 0); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	return c
}

func run(t *testing.T, src string) *CPU {
	t.Helper()

	c := load(t, src)
	if err := c.Run(10000); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	return c
}

func TestInstructions(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		a, ex uint16
	}{
		{"set", "SET A, 0x1234", 0x1234, 0},
		{"add", "SET A, 0xffff\nADD A, 2", 1, 1},
		{"sub", "SET A, 1\nSUB A, 2", 0xffff, 0xffff},
		{"mul", "SET A, 0x1000\nMUL A, 0x20", 0, 2},
		{"mli", "SET A, -3\nMLI A, 5", 0xfff1, 0xffff},
		{"div", "SET A, 7\nDIV A, 2", 3, 0x8000},
		{"div-zero", "SET A, 7\nDIV A, 0", 0, 0},
		{"dvi", "SET A, -7\nDVI A, 2", 0xfffd, 0x8000},
		{"mod", "SET A, 7\nMOD A, 3", 1, 0},
		{"mdi", "SET A, -7\nMDI A, 16", 0xfff9, 0},
		{"and", "SET A, 0xff0f\nAND A, 0x0ff0", 0x0f00, 0},
		{"bor", "SET A, 0xf000\nBOR A, 0x000f", 0xf00f, 0},
		{"xor", "SET A, 0xff00\nXOR A, -1", 0x00ff, 0},
		{"shr", "SET A, 0x8001\nSHR A, 1", 0x4000, 0x8000},
		{"asr", "SET A, 0x8000\nASR A, 4", 0xf800, 0},
		{"shl", "SET A, 0x8001\nSHL A, 1", 2, 1},
		{"adx", "SET EX, 1\nSET A, 1\nADX A, 1", 3, 0},
		{"sbx", "SET EX, 0\nSET A, 1\nSBX A, 2", 0xffff, 0xffff},
		{"ifb-taken", "IFB 6, 2\nSET A, 1", 1, 0},
		{"ifc-skipped", "IFC 6, 2\nSET A, 1", 0, 0},
		{"ifa-signed", "SET B, -1\nIFA B, 1\nSET A, 1", 0, 0},
		{"ifg-unsigned", "SET B, -1\nIFG B, 1\nSET A, 1", 1, 0},
		{"ifu-signed", "SET B, -1\nIFU B, 1\nSET A, 1", 1, 0},
		{"skip-chain", "IFE 1, 2\nIFE 1, 1\nSET A, 1\nSET B, 2\nSET A, B", 2, 0},
		{"skip-next-words", "SET A, 5\nIFN A, 5\nSET [0x1000], 0x1234\nADD A, 1", 6, 0},
		{"sti", "SET I, 0\nSET J, 0\nSTI A, 9\nSET A, I", 1, 0},
	}

	for _, test := range tests {
		c := run(t, test.src+"\nhalt: SET PC, halt")

		if c.Regs[RegA] != test.a {
			t.Errorf("%s: A = %#x; want %#x", test.name, c.Regs[RegA], test.a)
		}

		if c.EX != test.ex {
			t.Errorf("%s: EX = %#x; want %#x", test.name, c.EX, test.ex)
		}
	}
}

func TestStack(t *testing.T) {
	c := run(t, `
	SET PUSH, 1
	SET PUSH, 2
	SET B, PEEK
	SET C, PICK 1
	SET [SP], 7
	SET A, POP
	SET X, POP
	SUB PC, 1
`)

	want := map[string]uint16{"A": 7, "B": 2, "C": 1, "X": 1, "SP": 0}
	for name, v := range want {
		if got, _ := c.Register(name); got != v {
			t.Errorf("%s = %#x; want %#x", name, got, v)
		}
	}
}

func TestCallAndFrame(t *testing.T) {
	c := run(t, `
	SET PUSH, 20
	SET PUSH, 22
	JSR add
	ADD SP, 2
halt:
	SUB PC, 1
add:
	SET PUSH, J
	SET J, SP
	SET A, [J+2]
	ADD A, [J+3]
	SET SP, J
	SET J, POP
	SET PC, POP
`)

	if c.Regs[RegA] != 42 {
		t.Errorf("A = %d; want 42", c.Regs[RegA])
	}

	if c.SP != 0 {
		t.Errorf("SP = %#x; want 0", c.SP)
	}
}

func TestBranches(t *testing.T) {
	c := run(t, `
	SET A, 0
	SET B, 10
loop:
	ADD A, B
	SUB B, 1
	IFN B, 0
	BRA loop
	BRA done
	SET A, 0
done:
	SUB PC, 1
`)

	if c.Regs[RegA] != 55 {
		t.Errorf("A = %d; want 55", c.Regs[RegA])
	}
}

func TestInterrupts(t *testing.T) {
	c := run(t, `
	IAS handler
	INT 5
	SET B, A
	SUB PC, 1
handler:
	SET C, A
	SET A, 9
	RFI 0
`)

	if c.Regs[RegC] != 5 {
		t.Errorf("C = %d; want 5", c.Regs[RegC])
	}

	if c.Regs[RegB] != 0 {
		t.Errorf("B = %d; want 0 (A restored by RFI)", c.Regs[RegB])
	}
}

func TestStepLimit(t *testing.T) {
	c := load(t, "loop: ADD A, 1\nBRA loop")

	if err := c.Run(100); !errors.Is(err, ErrStepLimit) {
		t.Errorf("Run error = %v; want %v", err, ErrStepLimit)
	}

	if c.Steps != 100 {
		t.Errorf("Steps = %d; want 100", c.Steps)
	}
}

func TestHardware(t *testing.T) {
	c := run(t, "SET A, 3\nHWN A\nSUB PC, 1")
	if c.Regs[RegA] != 0 {
		t.Errorf("HWN A = %d; want 0", c.Regs[RegA])
	}

	c = load(t, "HWI 0")
	if err := c.Run(10); err == nil {
		t.Errorf("HWI succeeded without a device")
	}
}

func TestLoadBounds(t *testing.T) {
	c := New()
	if err := c.Load(make([]uint32, 2), MemorySize-1); err == nil {
		t.Errorf("Load past the end of memory succeeded")
	}

	if err := c.Load([]uint32{0x10000}, 0); err == nil {
		t.Errorf("Load of a 17-bit word succeeded")
	}
}
