// Package build drives the compilation pipeline: it lowers translation units,
// runs the back end over every function, assembles the result, and links
// programs.  The C front end is an external collaborator: it hands typed
// translation units to Compiler.Compile.
package build

import (
	"fmt"

	"esocc/asm"
	"esocc/assemble"
	"esocc/ast"
	"esocc/codegen"
	"esocc/ir"
	"esocc/link"
	"esocc/llvmexport"
	"esocc/lower"
	"esocc/obj"
	"esocc/peephole"
	"esocc/regalloc"
	"esocc/report"
	"esocc/target"

	"golang.org/x/sync/errgroup"
)

// Compiler holds the configuration shared by every unit of a build.
type Compiler struct {
	tgt     *target.Target
	profile *Profile
	cfg     regalloc.Config
}

// Unit is a compiled translation unit.
type Unit struct {
	Name   string
	Module *ir.Module
	Asm    asm.Stream
	Object *obj.Object

	// The IR text and its LLVM export, set when the profile asks for them.
	IRText   string
	LLVMText string
}

// NewCompiler creates a compiler for a target and profile.
func NewCompiler(tgt *target.Target, profile *Profile) *Compiler {
	if profile == nil {
		profile = DefaultProfile()
	}

	return &Compiler{tgt: tgt, profile: profile, cfg: regalloc.ConfigFor(tgt)}
}

// Target returns the target the compiler generates code for.
func (c *Compiler) Target() *target.Target {
	return c.tgt
}

// Compile compiles a translation unit to an object.  Any failure aborts the
// unit: no partial object is ever returned.
func (c *Compiler) Compile(tu *ast.TranslationUnit) (*Unit, error) {
	report.ReportBeginPhase("Lowering")

	m, err := lower.Lower(tu)
	if err != nil {
		return nil, err
	}

	// Lowering freezes the symbol table; this is the point after which the
	// functions may be processed concurrently.
	if !m.Frozen() {
		m.Freeze()
	}

	if c.profile.Verify {
		if err := ir.Check(m); err != nil {
			return nil, err
		}
	}

	u := &Unit{Name: tu.Name, Module: m}

	if c.profile.EmitIR {
		u.IRText = m.String()
	}

	if c.profile.EmitLLVM {
		if u.LLVMText, err = llvmexport.Text(m); err != nil {
			return nil, err
		}
	}

	report.ReportBeginPhase("Generating")

	bodies, err := c.generate(m)
	if err != nil {
		return nil, err
	}

	u.Asm = codegen.Module(m, bodies)

	report.ReportBeginPhase("Assembling")

	if u.Object, err = assemble.Assemble(tu.Name, u.Asm, c.tgt); err != nil {
		return nil, err
	}

	report.ReportEndPhase()
	return u, nil
}

// generate runs register allocation, code generation, and peephole
// optimization over every defined function of the module concurrently.  Each
// worker owns its function; the results are stored by function index so the
// output order does not depend on scheduling.
func (c *Compiler) generate(m *ir.Module) ([]asm.Stream, error) {
	bodies := make([]asm.Stream, len(m.Funcs))

	var g errgroup.Group
	g.SetLimit(c.profile.Workers)

	for i, f := range m.Funcs {
		if f.IsDeclaration() {
			continue
		}

		i, f := i, f
		g.Go(func() error {
			res, err := regalloc.Allocate(f, c.cfg)
			if err != nil {
				return err
			}

			s, err := codegen.Function(res, c.tgt)
			if err != nil {
				return err
			}

			if c.profile.Peephole {
				s = peephole.Optimize(s, c.tgt)
			}

			bodies[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return bodies, nil
}

// -----------------------------------------------------------------------------

// Output is the product of a build.
type Output struct {
	Units []*Unit

	// The final object: the single unit's object, or the linked program.
	Object *obj.Object

	// The flat image of binary builds.
	Image []uint32
}

// Build compiles every unit and produces the output selected by the profile.
// Binary builds link the startup object first, then the division runtime when
// the target needs it, then the units and the extra objects in order.
func (c *Compiler) Build(name string, units []*ast.TranslationUnit, extra ...*obj.Object) (*Output, error) {
	if len(units) == 0 && len(extra) == 0 {
		return nil, fmt.Errorf("nothing to build")
	}

	out := &Output{}

	var objects []*obj.Object
	for _, tu := range units {
		u, err := c.Compile(tu)
		if err != nil {
			return nil, err
		}

		out.Units = append(out.Units, u)
		objects = append(objects, u.Object)
	}

	objects = append(objects, extra...)

	switch c.profile.Output {
	case OutputAsm:
		if len(out.Units) != 1 || len(extra) != 0 {
			return nil, fmt.Errorf("assembly output needs exactly one translation unit")
		}

		out.Object = out.Units[0].Object
		return out, nil
	case OutputObj:
		if len(objects) == 1 {
			out.Object = objects[0]
			return out, nil
		}

		res, err := c.Link(name, objects, link.Relocatable)
		if err != nil {
			return nil, err
		}

		out.Object = res.Object
		return out, nil
	}

	program, err := c.ProgramObjects(objects)
	if err != nil {
		return nil, err
	}

	res, err := c.Link(name, program, link.Flat)
	if err != nil {
		return nil, err
	}

	out.Object, out.Image = res.Object, res.Image
	return out, nil
}

// ProgramObjects prepends the startup object and, on targets without native
// division, the division runtime.
func (c *Compiler) ProgramObjects(objects []*obj.Object) ([]*obj.Object, error) {
	crt0, err := Startup(c.tgt)
	if err != nil {
		return nil, report.ICE("build", "", "startup object does not assemble: %s", err)
	}

	program := []*obj.Object{crt0}

	if !c.tgt.NativeDivision() {
		rt, err := DivisionRuntime(c.tgt)
		if err != nil {
			return nil, report.ICE("build", "", "division runtime does not assemble: %s", err)
		}

		program = append(program, rt)
	}

	return append(program, objects...), nil
}

// Link links objects in the given mode at the profile's base address.
func (c *Compiler) Link(name string, objects []*obj.Object, mode link.Mode) (*link.Result, error) {
	report.ReportBeginPhase("Linking")

	res, err := link.Link(objects, link.Options{Mode: mode, Name: name, Base: c.profile.Base})
	if err != nil {
		return nil, err
	}

	report.ReportEndPhase()
	return res, nil
}
