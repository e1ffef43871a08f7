package lower

import "esocc/ast"

// addressTaken returns the set of locals and parameters whose address is taken
// somewhere in the body.  These live in the frame instead of in SSA values.
func addressTaken(body *ast.Block) map[*ast.Symbol]bool {
	taken := make(map[*ast.Symbol]bool)

	visitStmt(body, func(e ast.Expr) {
		u, ok := e.(*ast.Unary)
		if !ok || u.Op != ast.OpAddrOf {
			return
		}

		// &x, &x.f, &x[i] all require x in memory
		x := u.X
		for {
			switch v := x.(type) {
			case *ast.Member:
				if !v.Arrow {
					x = v.X
					continue
				}
			case *ast.Index:
				x = v.X
				continue
			case *ast.Ident:
				if v.Sym.Kind == ast.SymLocal || v.Sym.Kind == ast.SymParam {
					taken[v.Sym] = true
				}
			}

			break
		}
	})

	return taken
}

// visitStmt calls fn on every expression nested in a statement.
func visitStmt(stmt ast.Stmt, fn func(ast.Expr)) {
	switch v := stmt.(type) {
	case nil:
	case *ast.Block:
		for _, s := range v.Stmts {
			visitStmt(s, fn)
		}
	case *ast.ExprStmt:
		visitExpr(v.X, fn)
	case *ast.LocalDecl:
		visitInit(v.Init, fn)
	case *ast.If:
		visitExpr(v.Cond, fn)
		visitStmt(v.Then, fn)
		visitStmt(v.Else, fn)
	case *ast.While:
		visitExpr(v.Cond, fn)
		visitStmt(v.Body, fn)
	case *ast.DoWhile:
		visitStmt(v.Body, fn)
		visitExpr(v.Cond, fn)
	case *ast.For:
		visitStmt(v.Init, fn)
		visitExpr(v.Cond, fn)
		visitExpr(v.Post, fn)
		visitStmt(v.Body, fn)
	case *ast.Switch:
		visitExpr(v.Tag, fn)
		for _, c := range v.Cases {
			for _, s := range c.Body {
				visitStmt(s, fn)
			}
		}
	case *ast.Return:
		visitExpr(v.Value, fn)
	}
}

func visitInit(init ast.Initializer, fn func(ast.Expr)) {
	switch v := init.(type) {
	case *ast.InitList:
		for _, item := range v.Items {
			visitInit(item, fn)
		}
	case ast.Expr:
		visitExpr(v, fn)
	}
}

// visitExpr calls fn on expr and every subexpression.
func visitExpr(expr ast.Expr, fn func(ast.Expr)) {
	if expr == nil {
		return
	}

	fn(expr)

	switch v := expr.(type) {
	case *ast.Binary:
		visitExpr(v.L, fn)
		visitExpr(v.R, fn)
	case *ast.Unary:
		visitExpr(v.X, fn)
	case *ast.Assign:
		visitExpr(v.L, fn)
		visitExpr(v.R, fn)
	case *ast.IncDec:
		visitExpr(v.X, fn)
	case *ast.Call:
		visitExpr(v.Func, fn)
		for _, arg := range v.Args {
			visitExpr(arg, fn)
		}
	case *ast.Index:
		visitExpr(v.X, fn)
		visitExpr(v.Index, fn)
	case *ast.Member:
		visitExpr(v.X, fn)
	case *ast.Cast:
		visitExpr(v.X, fn)
	case *ast.Cond:
		visitExpr(v.Cond, fn)
		visitExpr(v.Then, fn)
		visitExpr(v.Else, fn)
	case *ast.Comma:
		for _, e := range v.Exprs {
			visitExpr(e, fn)
		}
	}
}
