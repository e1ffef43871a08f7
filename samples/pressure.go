package samples

import (
	"esocc/ast"
	"esocc/typing"
)

// PressureResults are the values `main` of the Pressure unit stores into the
// global `results`.
var PressureResults = []uint16{
	1816, // pressure(10)
	36,   // pressure(0)
	231,  // rotate(4)
	312,  // rotate(5)
	123,  // rotate(0)
}

// Pressure keeps more values live across a loop and a call than the target
// has registers, and rotates three variables through a loop so that their
// phis form a cycle.
func Pressure() *ast.TranslationUnit {
	intT := typing.IntT

	results := global("results", &typing.ArrayType{ElemType: intT, Len: len(PressureResults)}, ast.StorageDefault)

	// int id(int v) { return v; }
	idV := param("v", intT)
	idSym := function("id", ast.StorageStatic, intT, idV)
	id := &ast.FuncDecl{
		Sym:    idSym,
		Params: []*ast.Symbol{idV},
		Body:   block(ret(ast.Ref(idV))),
	}

	// int pressure(int n) {
	//     int a = 1, b = 2, c = 3, d = 4, e = 5, f = 6, g = 7, h = 8, s = 0;
	//     for (int i = 0; i < n; i++) {
	//         s += a * i + b + c * d + e - f + g * h + id(i);
	//         a += 1; c += 2; h += 1;
	//     }
	//     return s + a + b + c + d + e + f + g + h;
	// }
	pN := param("n", intT)
	pI := local("i", intT)

	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	vars := make([]*ast.Symbol, len(names))
	stmts := make([]ast.Stmt, 0, len(names)+3)
	for i, name := range names {
		vars[i] = local(name, intT)
		stmts = append(stmts, decl(vars[i], ast.Int(int64(i+1))))
	}

	pS := local("s", intT)
	stmts = append(stmts, decl(pS, ast.Int(0)))

	a, b, c, d, e, f, g, h := vars[0], vars[1], vars[2], vars[3], vars[4], vars[5], vars[6], vars[7]
	mul := func(l, r *ast.Symbol) ast.Expr { return ast.Bin(ast.OpMul, ast.Ref(l), ast.Ref(r)) }

	step := ast.Bin(ast.OpAdd, mul(a, pI), ast.Ref(b))
	step = ast.Bin(ast.OpAdd, step, mul(c, d))
	step = ast.Bin(ast.OpAdd, step, ast.Ref(e))
	step = ast.Bin(ast.OpSub, step, ast.Ref(f))
	step = ast.Bin(ast.OpAdd, step, mul(g, h))
	step = ast.Bin(ast.OpAdd, step, call(idSym, ast.Ref(pI)))

	stmts = append(stmts, &ast.For{
		Init: decl(pI, ast.Int(0)),
		Cond: ast.Bin(ast.OpLt, ast.Ref(pI), ast.Ref(pN)),
		Post: ast.Inc(ast.Ref(pI), false, true),
		Body: block(
			do(ast.SetOp(ast.OpAdd, ast.Ref(pS), step)),
			do(ast.SetOp(ast.OpAdd, ast.Ref(a), ast.Int(1))),
			do(ast.SetOp(ast.OpAdd, ast.Ref(c), ast.Int(2))),
			do(ast.SetOp(ast.OpAdd, ast.Ref(h), ast.Int(1))),
		),
	})

	total := ast.Expr(ast.Ref(pS))
	for _, v := range vars {
		total = ast.Bin(ast.OpAdd, total, ast.Ref(v))
	}
	stmts = append(stmts, ret(total))

	pressure := &ast.FuncDecl{
		Sym:    function("pressure", ast.StorageStatic, intT, pN),
		Params: []*ast.Symbol{pN},
		Body:   block(stmts...),
	}

	// int rotate(int n) {
	//     int a = 1, b = 2, c = 3;
	//     for (int i = 0; i < n; i++) { int t = a; a = b; b = c; c = t; }
	//     return a * 100 + b * 10 + c;
	// }
	rN, rI := param("n", intT), local("i", intT)
	rA, rB, rC, rT := local("a", intT), local("b", intT), local("c", intT), local("t", intT)
	rotate := &ast.FuncDecl{
		Sym:    function("rotate", ast.StorageStatic, intT, rN),
		Params: []*ast.Symbol{rN},
		Body: block(
			decl(rA, ast.Int(1)),
			decl(rB, ast.Int(2)),
			decl(rC, ast.Int(3)),
			&ast.For{
				Init: decl(rI, ast.Int(0)),
				Cond: ast.Bin(ast.OpLt, ast.Ref(rI), ast.Ref(rN)),
				Post: ast.Inc(ast.Ref(rI), false, true),
				Body: block(
					decl(rT, ast.Ref(rA)),
					do(ast.Set(ast.Ref(rA), ast.Ref(rB))),
					do(ast.Set(ast.Ref(rB), ast.Ref(rC))),
					do(ast.Set(ast.Ref(rC), ast.Ref(rT))),
				),
			},
			ret(ast.Bin(ast.OpAdd,
				ast.Bin(ast.OpAdd, ast.Bin(ast.OpMul, ast.Ref(rA), ast.Int(100)), ast.Bin(ast.OpMul, ast.Ref(rB), ast.Int(10))),
				ast.Ref(rC),
			)),
		),
	}

	calls := []ast.Expr{
		call(pressure.Sym, ast.Int(10)),
		call(pressure.Sym, ast.Int(0)),
		call(rotate.Sym, ast.Int(4)),
		call(rotate.Sym, ast.Int(5)),
		call(rotate.Sym, ast.Int(0)),
	}

	var body []ast.Stmt
	for i, x := range calls {
		body = append(body, do(ast.Set(ast.At(ast.Ref(results), ast.Int(int64(i))), x)))
	}

	mainDecl := &ast.FuncDecl{
		Sym:  function("main", ast.StorageDefault, typing.Void),
		Body: block(body...),
	}

	return &ast.TranslationUnit{
		Name:  "pressure",
		Decls: []ast.Decl{mainDecl, &ast.VarDecl{Sym: results}, id, pressure, rotate},
	}
}
