package lower

import (
	"esocc/ast"
	"esocc/ir"
	"esocc/typing"
)

func (fl *funcLowerer) lowerBlock(block *ast.Block) {
	if block == nil {
		return
	}

	for _, stmt := range block.Stmts {
		fl.lowerStmt(stmt)
	}
}

// lowerStmt lowers a single statement into the current block.
func (fl *funcLowerer) lowerStmt(stmt ast.Stmt) {
	switch v := stmt.(type) {
	case nil:
		// empty statement
	case *ast.Block:
		fl.lowerBlock(v)
	case *ast.ExprStmt:
		fl.expr(v.X)
	case *ast.LocalDecl:
		fl.lowerLocalDecl(v)
	case *ast.If:
		fl.lowerIf(v)
	case *ast.While:
		fl.lowerWhile(v)
	case *ast.DoWhile:
		fl.lowerDoWhile(v)
	case *ast.For:
		fl.lowerFor(v)
	case *ast.Switch:
		fl.lowerSwitch(v)
	case *ast.Break:
		if len(fl.loops) == 0 {
			fl.ice("`break` outside of a loop or switch")
		}

		fl.jump(fl.loops[len(fl.loops)-1].brk)
		fl.startDead()
	case *ast.Continue:
		for i := len(fl.loops) - 1; i >= 0; i-- {
			if fl.loops[i].hasCont {
				fl.jump(fl.loops[i].cont)
				fl.startDead()
				return
			}
		}

		fl.ice("`continue` outside of a loop")
	case *ast.Return:
		if v.Value != nil && fl.fn.HasResult {
			val := fl.expr(v.Value)
			fl.b.Return(&val)
		} else {
			if v.Value != nil {
				fl.expr(v.Value)
			}

			fl.returnDefault()
		}

		fl.startDead()
	default:
		fl.ice("unknown statement %T", stmt)
	}
}

func (fl *funcLowerer) lowerLocalDecl(decl *ast.LocalDecl) {
	sym := decl.Sym
	if sym.Storage != ast.StorageDefault {
		fl.ice("local `%s` has static or extern storage", sym.Name)
	}

	if fl.addrTaken[sym] || !typing.IsScalar(sym.Type) {
		slot, ok := fl.frameVars[sym]
		if !ok {
			slot = fl.fn.NewFrameObject(ir.FrameLocal, sym.Type.Size(), sym.Name)
			fl.frameVars[sym] = slot
		}

		if decl.Init != nil {
			fl.initLocal(addr{base: fl.b.FrameAddr(slot, 0)}, sym.Type, decl.Init)
		}

		return
	}

	if decl.Init == nil {
		return
	}

	var val ir.Operand
	if list, ok := decl.Init.(*ast.InitList); ok {
		if len(list.Items) == 0 {
			val = ir.Imm(0)
		} else if e, ok := list.Items[0].(ast.Expr); ok {
			val = fl.expr(e)
		} else {
			fl.ice("nested braces around scalar `%s`", sym.Name)
		}
	} else {
		val = fl.expr(decl.Init.(ast.Expr))
	}

	fl.ssa.write(sym, fl.b.Block(), fl.materialize(val, sym.Type))
}

// -----------------------------------------------------------------------------

func (fl *funcLowerer) lowerIf(stmt *ast.If) {
	then, end := fl.newBlock("if.then"), fl.newBlock("if.end")

	els := end
	if stmt.Else != nil {
		els = fl.newBlock("if.else")
	}

	fl.lowerCond(stmt.Cond, then, els)
	fl.ssa.seal(then)

	fl.setBlock(then)
	fl.lowerStmt(stmt.Then)
	fl.jump(end)

	if stmt.Else != nil {
		fl.ssa.seal(els)
		fl.setBlock(els)
		fl.lowerStmt(stmt.Else)
		fl.jump(end)
	}

	fl.ssa.seal(end)
	fl.setBlock(end)
}

func (fl *funcLowerer) lowerWhile(stmt *ast.While) {
	head, body, exit := fl.newBlock("while.head"), fl.newBlock("while.body"), fl.newBlock("while.end")

	fl.jump(head)
	fl.setBlock(head)
	fl.lowerCond(stmt.Cond, body, exit)
	fl.ssa.seal(body)

	fl.setBlock(body)
	fl.loopBody(stmt.Body, exit, head)
	fl.jump(head)

	fl.ssa.seal(head)
	fl.ssa.seal(exit)
	fl.setBlock(exit)
}

func (fl *funcLowerer) lowerDoWhile(stmt *ast.DoWhile) {
	body, cond, exit := fl.newBlock("do.body"), fl.newBlock("do.cond"), fl.newBlock("do.end")

	fl.jump(body)
	fl.setBlock(body)
	fl.loopBody(stmt.Body, exit, cond)
	fl.jump(cond)

	fl.ssa.seal(cond)
	fl.setBlock(cond)
	fl.lowerCond(stmt.Cond, body, exit)

	fl.ssa.seal(body)
	fl.ssa.seal(exit)
	fl.setBlock(exit)
}

func (fl *funcLowerer) lowerFor(stmt *ast.For) {
	fl.lowerStmt(stmt.Init)

	head, body, post, exit := fl.newBlock("for.head"), fl.newBlock("for.body"), fl.newBlock("for.post"), fl.newBlock("for.end")

	fl.jump(head)
	fl.setBlock(head)
	if stmt.Cond != nil {
		fl.lowerCond(stmt.Cond, body, exit)
	} else {
		fl.b.Jump(body)
	}

	fl.ssa.seal(body)

	fl.setBlock(body)
	fl.loopBody(stmt.Body, exit, post)
	fl.jump(post)

	fl.ssa.seal(post)
	fl.setBlock(post)
	if stmt.Post != nil {
		fl.expr(stmt.Post)
	}

	fl.jump(head)

	fl.ssa.seal(head)
	fl.ssa.seal(exit)
	fl.setBlock(exit)
}

// loopBody lowers the body of a loop with the given break and continue
// targets.
func (fl *funcLowerer) loopBody(body ast.Stmt, brk, cont ir.BlockID) {
	fl.loops = append(fl.loops, loopTargets{brk: brk, cont: cont, hasCont: true})
	fl.lowerStmt(body)
	fl.loops = fl.loops[:len(fl.loops)-1]
}

// lowerSwitch lowers a switch as a chain of equality tests followed by the
// case bodies laid out in source order so control falls through.
func (fl *funcLowerer) lowerSwitch(stmt *ast.Switch) {
	tag := fl.value(stmt.Tag)
	exit := fl.newBlock("switch.end")

	bodies := make([]ir.BlockID, len(stmt.Cases))
	dflt := exit
	for i, c := range stmt.Cases {
		bodies[i] = fl.newBlock("switch.case")
		if c.Default {
			dflt = bodies[i]
		}
	}

	for i, c := range stmt.Cases {
		for _, val := range c.Values {
			next := fl.newBlock("switch.test")
			fl.b.Branch(ir.CondEq, false, ir.V(tag), ir.Imm(normalize(val, stmt.Tag.Type())), bodies[i], next)
			fl.ssa.seal(next)
			fl.setBlock(next)
		}
	}

	fl.b.Jump(dflt)

	// `continue` inside a switch refers to the enclosing loop
	targets := loopTargets{brk: exit}
	if n := len(fl.loops); n > 0 {
		targets.cont, targets.hasCont = fl.loops[n-1].cont, fl.loops[n-1].hasCont
	}

	fl.loops = append(fl.loops, targets)
	for i, c := range stmt.Cases {
		if i > 0 {
			fl.jump(bodies[i])
		}

		fl.ssa.seal(bodies[i])
		fl.setBlock(bodies[i])

		for _, s := range c.Body {
			fl.lowerStmt(s)
		}
	}
	fl.loops = fl.loops[:len(fl.loops)-1]

	fl.jump(exit)
	fl.ssa.seal(exit)
	fl.setBlock(exit)
}
