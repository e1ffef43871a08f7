// Package samples provides typed translation units as a C front end would
// hand them to the back end.  They are compiled by the `demo` command and
// shared by the tests of the compiler passes.
package samples

import (
	"sort"

	"esocc/ast"
	"esocc/typing"
)

// Unit returns the named sample translation units.  The boolean is false if
// no such sample exists.
func Unit(name string) ([]*ast.TranslationUnit, bool) {
	switch name {
	case "diag":
		return []*ast.TranslationUnit{Diag()}, true
	case "diag-split":
		lib, app := DiagSplit()
		return []*ast.TranslationUnit{app, lib}, true
	case "features":
		return []*ast.TranslationUnit{Features()}, true
	case "pressure":
		return []*ast.TranslationUnit{Pressure()}, true
	}

	return nil, false
}

// Names lists the available samples.
func Names() []string {
	names := []string{"diag", "diag-split", "features", "pressure"}
	sort.Strings(names)
	return names
}

// -----------------------------------------------------------------------------

func global(name string, typ typing.Type, storage ast.Storage) *ast.Symbol {
	return &ast.Symbol{Name: name, Type: typ, Kind: ast.SymGlobal, Storage: storage}
}

func local(name string, typ typing.Type) *ast.Symbol {
	return &ast.Symbol{Name: name, Type: typ, Kind: ast.SymLocal}
}

func param(name string, typ typing.Type) *ast.Symbol {
	return &ast.Symbol{Name: name, Type: typ, Kind: ast.SymParam}
}

func function(name string, storage ast.Storage, ret typing.Type, params ...*ast.Symbol) *ast.Symbol {
	ptypes := make([]typing.Type, len(params))
	for i, p := range params {
		ptypes[i] = p.Type
	}

	return &ast.Symbol{
		Name:    name,
		Type:    &typing.FuncType{ReturnType: ret, ParamTypes: ptypes},
		Kind:    ast.SymFunc,
		Storage: storage,
	}
}

func block(stmts ...ast.Stmt) *ast.Block {
	return &ast.Block{Stmts: stmts}
}

func do(e ast.Expr) ast.Stmt {
	return &ast.ExprStmt{X: e}
}

func decl(sym *ast.Symbol, init ast.Initializer) ast.Stmt {
	return &ast.LocalDecl{Sym: sym, Init: init}
}

func ret(e ast.Expr) ast.Stmt {
	return &ast.Return{Value: e}
}

func deref(e ast.Expr) ast.Expr {
	return ast.Un(ast.OpDeref, e)
}

func addrOf(e ast.Expr) ast.Expr {
	return ast.Un(ast.OpAddrOf, e)
}

func call(fn *ast.Symbol, args ...ast.Expr) ast.Expr {
	return ast.CallOf(ast.Ref(fn), args...)
}

// -----------------------------------------------------------------------------

// WCharType is the `wchar_t` typedef of the video memory samples.
var WCharType = &typing.NamedType{Name: "wchar_t", Type: typing.ShortType}

// VideoRAM is the address of the memory mapped display.
const VideoRAM = 0x8000

// drawLine builds `draw_line` which writes a string to one row of video
// memory:
//
//	void draw_line(int line, wchar_t *string, int fgcol, int bgcol) {
//	    wchar_t *vram = video_ram + line * 32;
//	    int col = fgcol | bgcol;
//	    while (*string) {
//	        *vram = col | *string;
//	        vram++;
//	        string++;
//	    }
//	}
func drawLine(storage ast.Storage, videoRAM *ast.Symbol) *ast.FuncDecl {
	wptr := &typing.PointerType{ElemType: WCharType}

	line, str := param("line", typing.IntT), param("string", wptr)
	fg, bg := param("fgcol", typing.IntT), param("bgcol", typing.IntT)
	vram, col := local("vram", wptr), local("col", typing.IntT)

	return &ast.FuncDecl{
		Sym:    function("draw_line", storage, typing.Void, line, str, fg, bg),
		Params: []*ast.Symbol{line, str, fg, bg},
		Body: block(
			decl(vram, ast.Bin(ast.OpAdd, ast.Ref(videoRAM), ast.Bin(ast.OpMul, ast.Ref(line), ast.Int(32)))),
			decl(col, ast.Bin(ast.OpOr, ast.Ref(fg), ast.Ref(bg))),
			&ast.While{
				Cond: deref(ast.Ref(str)),
				Body: block(
					do(ast.Set(deref(ast.Ref(vram)), ast.Bin(ast.OpOr, ast.Ref(col), deref(ast.Ref(str))))),
					do(ast.Inc(ast.Ref(vram), false, true)),
					do(ast.Inc(ast.Ref(str), false, true)),
				),
			},
		),
	}
}

func videoRAMGlobal(storage ast.Storage) *ast.VarDecl {
	wptr := &typing.PointerType{ElemType: WCharType}
	sym := global("video_ram", wptr, storage)
	return &ast.VarDecl{Sym: sym, Init: ast.Conv(ast.Int(VideoRAM), wptr)}
}

// diagMain builds the `main` of the display diagnostic.  The message buffer
// `ch` is filled with "Helo" and drawn on the first line with color 3.
func diagMain(mainSym, drawLineSym *ast.Symbol) (*ast.VarDecl, *ast.FuncDecl) {
	ch := global("ch", &typing.ArrayType{ElemType: WCharType, Len: 5}, ast.StorageStatic)

	var stmts []ast.Stmt
	for i, c := range "Helo\x00" {
		stmts = append(stmts, do(ast.Set(ast.At(ast.Ref(ch), ast.Int(int64(i))), ast.Int(int64(c)))))
	}

	stmts = append(stmts, do(call(drawLineSym, ast.Int(0), ast.Ref(ch), ast.Int(0), ast.Int(3))))

	return &ast.VarDecl{Sym: ch}, &ast.FuncDecl{Sym: mainSym, Body: block(stmts...)}
}

// Diag is the display diagnostic program in a single unit.
func Diag() *ast.TranslationUnit {
	mainSym := function("main", ast.StorageDefault, typing.Void)
	vram := videoRAMGlobal(ast.StorageStatic)
	dl := drawLine(ast.StorageStatic, vram.Sym)
	ch, mainDecl := diagMain(mainSym, dl.Sym)

	return &ast.TranslationUnit{
		Name: "diag",
		Decls: []ast.Decl{
			// main is declared first so it is the first function
			&ast.FuncDecl{Sym: mainSym},
			vram,
			dl,
			ch,
			mainDecl,
		},
	}
}

// DiagSplit is the display diagnostic split into a library unit exporting
// `draw_line` and an application unit importing it.
func DiagSplit() (lib, app *ast.TranslationUnit) {
	vram := videoRAMGlobal(ast.StorageStatic)
	dl := drawLine(ast.StorageDefault, vram.Sym)

	lib = &ast.TranslationUnit{Name: "video", Decls: []ast.Decl{vram, dl}}

	// the application sees only a prototype
	proto := &ast.FuncDecl{Sym: &ast.Symbol{
		Name: "draw_line",
		Type: dl.Sym.Type,
		Kind: ast.SymFunc,
	}}

	mainSym := function("main", ast.StorageDefault, typing.Void)
	ch, mainDecl := diagMain(mainSym, proto.Sym)

	app = &ast.TranslationUnit{Name: "app", Decls: []ast.Decl{proto, ch, mainDecl}}
	return
}
