package samples

import (
	"esocc/ast"
	"esocc/typing"
)

// FeatureResults are the values `main` of the Features unit stores into the
// global `results`, reinterpreted as 16-bit words.
var FeatureResults = []uint16{
	55,     // sum(10)
	120,    // fact(5)
	20,     // classify(2)
	30,     // classify(7)
	3,      // max(3, -4)
	0xfffd, // -7 / 2
	2,      // 100 % 7
	5,      // length("hello")
	12,     // area of a copied struct
	21,     // swap through pointers
	1,      // short-circuit logic
	44,     // (unsigned char)300
	0xffc8, // (signed char)200
	7,      // do-while count
	3,      // sum of a partially initialized array
	42,     // call through a function pointer
	16,     // compound assignments
}

// Features exercises the statement and expression forms supported by the
// back end.  Its `main` stores each result into `results` in order.
func Features() *ast.TranslationUnit {
	intT, uintT := typing.IntT, typing.UIntType
	charPtr := &typing.PointerType{ElemType: typing.CharType}
	intPtr := &typing.PointerType{ElemType: intT}

	results := global("results", &typing.ArrayType{ElemType: intT, Len: len(FeatureResults)}, ast.StorageDefault)

	var decls []ast.Decl

	// int sum(int n) { int s = 0; for (int i = 1; i <= n; i++) s += i; return s; }
	sumN := param("n", intT)
	sumS, sumI := local("s", intT), local("i", intT)
	sum := &ast.FuncDecl{
		Sym:    function("sum", ast.StorageStatic, intT, sumN),
		Params: []*ast.Symbol{sumN},
		Body: block(
			decl(sumS, ast.Int(0)),
			&ast.For{
				Init: decl(sumI, ast.Int(1)),
				Cond: ast.Bin(ast.OpLe, ast.Ref(sumI), ast.Ref(sumN)),
				Post: ast.Inc(ast.Ref(sumI), false, true),
				Body: do(ast.SetOp(ast.OpAdd, ast.Ref(sumS), ast.Ref(sumI))),
			},
			ret(ast.Ref(sumS)),
		),
	}
	decls = append(decls, sum)

	// int fact(int n) { if (n <= 1) return 1; return n * fact(n - 1); }
	factN := param("n", intT)
	factSym := function("fact", ast.StorageStatic, intT, factN)
	fact := &ast.FuncDecl{
		Sym:    factSym,
		Params: []*ast.Symbol{factN},
		Body: block(
			&ast.If{Cond: ast.Bin(ast.OpLe, ast.Ref(factN), ast.Int(1)), Then: ret(ast.Int(1))},
			ret(ast.Bin(ast.OpMul, ast.Ref(factN), call(factSym, ast.Bin(ast.OpSub, ast.Ref(factN), ast.Int(1))))),
		),
	}
	decls = append(decls, fact)

	// int classify(int k) {
	//     int r = 0;
	//     switch (k) { case 1: return 10; case 2: case 3: r = 20; break; default: r = 30; }
	//     return r;
	// }
	clsK, clsR := param("k", intT), local("r", intT)
	classify := &ast.FuncDecl{
		Sym:    function("classify", ast.StorageStatic, intT, clsK),
		Params: []*ast.Symbol{clsK},
		Body: block(
			decl(clsR, ast.Int(0)),
			&ast.Switch{
				Tag: ast.Ref(clsK),
				Cases: []*ast.Case{
					{Values: []int64{1}, Body: []ast.Stmt{ret(ast.Int(10))}},
					{Values: []int64{2, 3}, Body: []ast.Stmt{do(ast.Set(ast.Ref(clsR), ast.Int(20))), &ast.Break{}}},
					{Default: true, Body: []ast.Stmt{do(ast.Set(ast.Ref(clsR), ast.Int(30)))}},
				},
			},
			ret(ast.Ref(clsR)),
		),
	}
	decls = append(decls, classify)

	// int max(int a, int b) { return a > b ? a : b; }
	maxA, maxB := param("a", intT), param("b", intT)
	maxFn := &ast.FuncDecl{
		Sym:    function("max", ast.StorageStatic, intT, maxA, maxB),
		Params: []*ast.Symbol{maxA, maxB},
		Body:   block(ret(ast.Ternary(ast.Bin(ast.OpGt, ast.Ref(maxA), ast.Ref(maxB)), ast.Ref(maxA), ast.Ref(maxB)))),
	}
	decls = append(decls, maxFn)

	// int divide(int a, int b) { return a / b; }
	// int modulo(int a, int b) { return a % b; }
	divA, divB := param("a", intT), param("b", intT)
	divide := &ast.FuncDecl{
		Sym:    function("divide", ast.StorageStatic, intT, divA, divB),
		Params: []*ast.Symbol{divA, divB},
		Body:   block(ret(ast.Bin(ast.OpDiv, ast.Ref(divA), ast.Ref(divB)))),
	}
	modA, modB := param("a", uintT), param("b", uintT)
	modulo := &ast.FuncDecl{
		Sym:    function("modulo", ast.StorageStatic, uintT, modA, modB),
		Params: []*ast.Symbol{modA, modB},
		Body:   block(ret(ast.Bin(ast.OpMod, ast.Ref(modA), ast.Ref(modB)))),
	}
	decls = append(decls, divide, modulo)

	// int length(char *s) { int n = 0; while (*s++) n++; return n; }
	lenS, lenN := param("s", charPtr), local("n", intT)
	length := &ast.FuncDecl{
		Sym:    function("length", ast.StorageStatic, intT, lenS),
		Params: []*ast.Symbol{lenS},
		Body: block(
			decl(lenN, ast.Int(0)),
			&ast.While{
				Cond: deref(ast.Inc(ast.Ref(lenS), false, true)),
				Body: do(ast.Inc(ast.Ref(lenN), false, true)),
			},
			ret(ast.Ref(lenN)),
		),
	}
	decls = append(decls, length)

	// struct point { int x; int y; };
	// int area(void) { struct point p, q; p.x = 3; p.y = 4; q = p; return q.x * q.y; }
	point := &typing.StructType{Name: "point", Fields: []typing.Field{{Name: "x", Type: intT}, {Name: "y", Type: intT}}}
	areaP, areaQ := local("p", point), local("q", point)
	area := &ast.FuncDecl{
		Sym: function("area", ast.StorageStatic, intT),
		Body: block(
			decl(areaP, nil),
			decl(areaQ, nil),
			do(ast.Set(ast.Dot(ast.Ref(areaP), "x", false), ast.Int(3))),
			do(ast.Set(ast.Dot(ast.Ref(areaP), "y", false), ast.Int(4))),
			do(ast.Set(ast.Ref(areaQ), ast.Ref(areaP))),
			ret(ast.Bin(ast.OpMul, ast.Dot(ast.Ref(areaQ), "x", false), ast.Dot(ast.Ref(areaQ), "y", false))),
		),
	}
	decls = append(decls, area)

	// void swap(int *a, int *b) { int t = *a; *a = *b; *b = t; }
	// int swapped(void) { int a = 1, b = 2; swap(&a, &b); return a * 10 + b; }
	swA, swB, swT := param("a", intPtr), param("b", intPtr), local("t", intT)
	swapSym := function("swap", ast.StorageStatic, typing.Void, swA, swB)
	swap := &ast.FuncDecl{
		Sym:    swapSym,
		Params: []*ast.Symbol{swA, swB},
		Body: block(
			decl(swT, deref(ast.Ref(swA))),
			do(ast.Set(deref(ast.Ref(swA)), deref(ast.Ref(swB)))),
			do(ast.Set(deref(ast.Ref(swB)), ast.Ref(swT))),
		),
	}
	sdA, sdB := local("a", intT), local("b", intT)
	swapped := &ast.FuncDecl{
		Sym: function("swapped", ast.StorageStatic, intT),
		Body: block(
			decl(sdA, ast.Int(1)),
			decl(sdB, ast.Int(2)),
			do(call(swapSym, addrOf(ast.Ref(sdA)), addrOf(ast.Ref(sdB)))),
			ret(ast.Bin(ast.OpAdd, ast.Bin(ast.OpMul, ast.Ref(sdA), ast.Int(10)), ast.Ref(sdB))),
		),
	}
	decls = append(decls, swap, swapped)

	// int logic(int x, int y, int z) { return x > 0 && y > 0 || z; }
	lgX, lgY, lgZ := param("x", intT), param("y", intT), param("z", intT)
	logic := &ast.FuncDecl{
		Sym:    function("logic", ast.StorageStatic, intT, lgX, lgY, lgZ),
		Params: []*ast.Symbol{lgX, lgY, lgZ},
		Body: block(ret(ast.Bin(ast.OpLogOr,
			ast.Bin(ast.OpLogAnd, ast.Bin(ast.OpGt, ast.Ref(lgX), ast.Int(0)), ast.Bin(ast.OpGt, ast.Ref(lgY), ast.Int(0))),
			ast.Ref(lgZ),
		))),
	}
	decls = append(decls, logic)

	// int narrow(int v, int s) { return s ? (signed char)v : (unsigned char)v; }
	nV, nS := param("v", intT), param("s", intT)
	narrow := &ast.FuncDecl{
		Sym:    function("narrow", ast.StorageStatic, intT, nV, nS),
		Params: []*ast.Symbol{nV, nS},
		Body: block(
			&ast.If{
				Cond: ast.Ref(nS),
				Then: ret(ast.Conv(ast.Conv(ast.Ref(nV), typing.CharType), intT)),
				Else: ret(ast.Conv(ast.Conv(ast.Ref(nV), typing.UCharType), intT)),
			},
		),
	}
	decls = append(decls, narrow)

	// int count(int limit) { int n = 0; do n++; while (n < limit); return n; }
	cL, cN := param("limit", intT), local("n", intT)
	count := &ast.FuncDecl{
		Sym:    function("count", ast.StorageStatic, intT, cL),
		Params: []*ast.Symbol{cL},
		Body: block(
			decl(cN, ast.Int(0)),
			&ast.DoWhile{
				Body: do(ast.Inc(ast.Ref(cN), false, true)),
				Cond: ast.Bin(ast.OpLt, ast.Ref(cN), ast.Ref(cL)),
			},
			ret(ast.Ref(cN)),
		),
	}
	decls = append(decls, count)

	// int partial(void) { int a[4] = {1, 2}; return a[0] + a[1] + a[2] + a[3]; }
	pA := local("a", &typing.ArrayType{ElemType: intT, Len: 4})
	partial := &ast.FuncDecl{
		Sym: function("partial", ast.StorageStatic, intT),
		Body: block(
			decl(pA, &ast.InitList{Items: []ast.Initializer{ast.Int(1), ast.Int(2)}}),
			ret(ast.Bin(ast.OpAdd,
				ast.Bin(ast.OpAdd, ast.At(ast.Ref(pA), ast.Int(0)), ast.At(ast.Ref(pA), ast.Int(1))),
				ast.Bin(ast.OpAdd, ast.At(ast.Ref(pA), ast.Int(2)), ast.At(ast.Ref(pA), ast.Int(3))),
			)),
		),
	}
	decls = append(decls, partial)

	// int twice(int v) { return v + v; }
	// int indirect(void) { int (*f)(int) = twice; return f(21); }
	twV := param("v", intT)
	twiceSym := function("twice", ast.StorageStatic, intT, twV)
	twice := &ast.FuncDecl{
		Sym:    twiceSym,
		Params: []*ast.Symbol{twV},
		Body:   block(ret(ast.Bin(ast.OpAdd, ast.Ref(twV), ast.Ref(twV)))),
	}
	fp := local("f", &typing.PointerType{ElemType: twiceSym.Type})
	indirect := &ast.FuncDecl{
		Sym: function("indirect", ast.StorageStatic, intT),
		Body: block(
			decl(fp, ast.Ref(twiceSym)),
			ret(ast.CallOf(ast.Ref(fp), ast.Int(21))),
		),
	}
	decls = append(decls, twice, indirect)

	// int compound(void) { int x = 5; x <<= 2; x -= 3; x ^= 1; return x; }
	cx := local("x", intT)
	compound := &ast.FuncDecl{
		Sym: function("compound", ast.StorageStatic, intT),
		Body: block(
			decl(cx, ast.Int(5)),
			do(ast.SetOp(ast.OpShl, ast.Ref(cx), ast.Int(2))),
			do(ast.SetOp(ast.OpSub, ast.Ref(cx), ast.Int(3))),
			do(ast.SetOp(ast.OpXor, ast.Ref(cx), ast.Int(1))),
			ret(ast.Ref(cx)),
		),
	}
	decls = append(decls, compound)

	// void main(void) { results[0] = sum(10); ... }
	calls := []ast.Expr{
		call(sum.Sym, ast.Int(10)),
		call(factSym, ast.Int(5)),
		call(classify.Sym, ast.Int(2)),
		call(classify.Sym, ast.Int(7)),
		call(maxFn.Sym, ast.Int(3), ast.Int(-4)),
		call(divide.Sym, ast.Int(-7), ast.Int(2)),
		call(modulo.Sym, ast.Int(100), ast.Int(7)),
		call(length.Sym, ast.Str("hello")),
		call(area.Sym),
		call(swapped.Sym),
		call(logic.Sym, ast.Int(1), ast.Int(0), ast.Int(5)),
		call(narrow.Sym, ast.Int(300), ast.Int(0)),
		call(narrow.Sym, ast.Int(200), ast.Int(1)),
		call(count.Sym, ast.Int(7)),
		call(partial.Sym),
		call(indirect.Sym),
		call(compound.Sym),
	}

	var stmts []ast.Stmt
	for i, c := range calls {
		stmts = append(stmts, do(ast.Set(ast.At(ast.Ref(results), ast.Int(int64(i))), c)))
	}

	mainDecl := &ast.FuncDecl{
		Sym:  function("main", ast.StorageDefault, typing.Void),
		Body: block(stmts...),
	}

	all := append([]ast.Decl{mainDecl, &ast.VarDecl{Sym: results}}, decls...)
	return &ast.TranslationUnit{Name: "features", Decls: all}
}
