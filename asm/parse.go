package asm

import (
	"strconv"
	"strings"

	"esocc/report"
	"esocc/target"
)

// parser converts assembly text into a stream.  Register names and mnemonics
// are case-insensitive; symbols are case-sensitive.  A symbol spelled like a
// register or a stack operand is written with a leading `$`.
type parser struct {
	file   string
	tgt    *target.Target
	lineNo int
}

// Parse parses assembly source.  The target supplies the register names and
// the instruction set used to validate mnemonics.
func Parse(file, src string, tgt *target.Target) (Stream, error) {
	p := &parser{file: file, tgt: tgt}

	var s Stream
	for i, raw := range strings.Split(src, "\n") {
		p.lineNo = i + 1

		entries, err := p.parseLine(raw)
		if err != nil {
			return nil, err
		}

		s = append(s, entries...)
	}

	return s, nil
}

func (p *parser) errorf(msg string, args ...interface{}) error {
	return report.Syntax(p.file, p.lineNo, msg, args...)
}

func (p *parser) parseLine(raw string) ([]*Instr, error) {
	line, comment := splitComment(raw)
	line = strings.TrimSpace(line)

	var entries []*Instr
	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 || strings.ContainsAny(line[:colon], " \t\"'[") {
			break
		}

		name, err := p.symbolName(line[:colon])
		if err != nil {
			return nil, err
		}

		entries = append(entries, &Instr{Kind: KindLabel, Label: name, Line: p.lineNo})
		line = strings.TrimSpace(line[colon+1:])
	}

	if line == "" {
		if comment != "" && len(entries) > 0 {
			entries[len(entries)-1].Comment = comment
		}

		return entries, nil
	}

	var in *Instr
	var err error
	if line[0] == '.' {
		in, err = p.parseDirective(line)
	} else {
		in, err = p.parseInstr(line)
	}

	if err != nil {
		return nil, err
	}

	in.Comment = comment
	in.Line = p.lineNo
	return append(entries, in), nil
}

func (p *parser) parseDirective(line string) (*Instr, error) {
	name, rest := splitMnemonic(line)
	name = strings.ToLower(name)

	fields, err := p.splitOperands(rest)
	if err != nil {
		return nil, err
	}

	dir := Directive(name)

	switch name {
	case DirText, DirData:
		if len(fields) != 0 {
			return nil, p.errorf("%s takes no arguments", name)
		}
	case DirGlobal, DirExtern:
		if len(fields) == 0 {
			return nil, p.errorf("%s expects at least one symbol", name)
		}

		for _, f := range fields {
			name, err := p.symbolName(f)
			if err != nil {
				return nil, err
			}

			dir.Args = append(dir.Args, Sym(name, 0))
		}
	case DirWord:
		if len(fields) == 0 {
			return nil, p.errorf(".dw expects at least one value")
		}

		for _, f := range fields {
			if strings.HasPrefix(f, "\"") {
				s, err := strconv.Unquote(f)
				if err != nil {
					return nil, p.errorf("invalid string literal %s", f)
				}

				for _, c := range []byte(s) {
					dir.Args = append(dir.Args, Lit(int64(c)))
				}

				continue
			}

			opd, err := p.parseValue(f)
			if err != nil {
				return nil, err
			}

			dir.Args = append(dir.Args, opd)
		}
	case DirFill, DirAlign:
		want := 2
		if name == DirAlign {
			want = 1
		}

		if len(fields) != want && !(name == DirFill && len(fields) == 1) {
			return nil, p.errorf("%s expects %d arguments", name, want)
		}

		for _, f := range fields {
			opd, err := p.parseValue(f)
			if err != nil {
				return nil, err
			}

			if opd.Kind != OpdLit {
				return nil, p.errorf("%s arguments must be constants", name)
			}

			dir.Args = append(dir.Args, opd)
		}

		if name == DirFill && len(dir.Args) == 1 {
			dir.Args = append(dir.Args, Lit(0))
		}

		if dir.Args[0].Value < 0 || name == DirAlign && dir.Args[0].Value == 0 {
			return nil, p.errorf("invalid %s count %d", name, dir.Args[0].Value)
		}
	default:
		return nil, p.errorf("unknown directive `%s`", name)
	}

	return dir, nil
}

func (p *parser) parseInstr(line string) (*Instr, error) {
	mnemonic, rest := splitMnemonic(line)
	mnemonic = strings.ToUpper(mnemonic)

	op, ok := p.tgt.Opcode(mnemonic)
	if !ok {
		return nil, p.errorf("unknown instruction `%s`", mnemonic)
	}

	fields, err := p.splitOperands(rest)
	if err != nil {
		return nil, err
	}

	want := 1
	if op.Kind == target.KindBasic {
		want = 2
	}

	if len(fields) != want {
		return nil, p.errorf("`%s` expects %d operands but got %d", mnemonic, want, len(fields))
	}

	opds := make([]Operand, len(fields))
	for i, f := range fields {
		if opds[i], err = p.parseOperand(f); err != nil {
			return nil, err
		}
	}

	if want == 2 {
		return Op(mnemonic, opds[0], opds[1]), nil
	}

	return Special(mnemonic, opds[0]), nil
}

// parseOperand parses a single instruction operand.
func (p *parser) parseOperand(text string) (Operand, error) {
	upper := strings.ToUpper(text)

	switch upper {
	case "PUSH", "[--SP]":
		return Push, nil
	case "POP", "[SP++]":
		return Pop, nil
	case "PEEK", "[SP]":
		return Peek, nil
	case "SP":
		return SP, nil
	case "PC":
		return PC, nil
	case "EX":
		return EX, nil
	}

	if strings.HasPrefix(upper, "PICK ") {
		n, err := p.parseConst(strings.TrimSpace(text[5:]))
		if err != nil {
			return Operand{}, err
		}

		return Pick(n), nil
	}

	if p.tgt.IsRegister(upper) {
		return Reg(upper), nil
	}

	if strings.HasPrefix(text, "[") {
		if !strings.HasSuffix(text, "]") {
			return Operand{}, p.errorf("unterminated memory operand `%s`", text)
		}

		return p.parseMemory(strings.TrimSpace(text[1 : len(text)-1]))
	}

	return p.parseValue(text)
}

// parseMemory parses the contents of a bracketed operand.
func (p *parser) parseMemory(inner string) (Operand, error) {
	terms, err := splitTerms(inner)
	if err != nil {
		return Operand{}, p.errorf("%s in `[%s]`", err, inner)
	}

	var reg, sym string
	var disp int64
	for _, t := range terms {
		upper := strings.ToUpper(t.text)

		switch {
		case upper == "SP" && t.sign > 0:
			reg = "SP"
		case p.tgt.IsRegister(upper) && t.sign > 0:
			if reg != "" {
				return Operand{}, p.errorf("two registers in `[%s]`", inner)
			}

			reg = upper
		case p.isSymbol(t.text) && t.sign > 0:
			if sym != "" {
				return Operand{}, p.errorf("two symbols in `[%s]`", inner)
			}

			sym, _ = p.symbolName(t.text)
		default:
			n, err := p.parseConst(t.text)
			if err != nil {
				return Operand{}, err
			}

			disp += t.sign * n
		}
	}

	switch {
	case reg != "" && sym != "":
		return Operand{}, p.errorf("register and symbol in `[%s]` are not supported", inner)
	case reg == "SP":
		if disp == 0 {
			return Peek, nil
		}

		return Pick(disp), nil
	case reg != "":
		return Mem(reg, disp), nil
	case sym != "":
		return MemSym(sym, disp), nil
	default:
		return MemLit(disp), nil
	}
}

// parseValue parses a constant or a symbol plus an optional constant.
func (p *parser) parseValue(text string) (Operand, error) {
	terms, err := splitTerms(text)
	if err != nil {
		return Operand{}, p.errorf("%s in `%s`", err, text)
	}

	var sym string
	var value int64
	for _, t := range terms {
		if p.isSymbol(t.text) && t.sign > 0 && sym == "" {
			sym, _ = p.symbolName(t.text)
			continue
		}

		n, err := p.parseConst(t.text)
		if err != nil {
			return Operand{}, err
		}

		value += t.sign * n
	}

	if sym != "" {
		return Sym(sym, value), nil
	}

	return Lit(value), nil
}

// parseConst parses a number in any Go integer base or a character literal.
func (p *parser) parseConst(text string) (int64, error) {
	if len(text) >= 3 && text[0] == '\'' && text[len(text)-1] == '\'' {
		c, _, tail, err := strconv.UnquoteChar(text[1:len(text)-1], '\'')
		if err != nil || tail != "" {
			return 0, p.errorf("invalid character literal %s", text)
		}

		return int64(c), nil
	}

	n, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		return 0, p.errorf("invalid number `%s`", text)
	}

	return n, nil
}

// splitOperands splits comma-separated operands, ignoring commas inside
// brackets and quotes.
func (p *parser) splitOperands(rest string) ([]string, error) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil, nil
	}

	var fields []string
	depth, start := 0, 0
	var quote byte

	for i := 0; i < len(rest); i++ {
		c := rest[i]

		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
		case c == ',' && depth == 0:
			fields = append(fields, strings.TrimSpace(rest[start:i]))
			start = i + 1
		}
	}

	if quote != 0 || depth != 0 {
		return nil, p.errorf("unbalanced operand `%s`", rest)
	}

	fields = append(fields, strings.TrimSpace(rest[start:]))

	for _, f := range fields {
		if f == "" {
			return nil, p.errorf("empty operand")
		}
	}

	return fields, nil
}

// -----------------------------------------------------------------------------

// term is a signed summand of an address expression.
type term struct {
	sign int64
	text string
}

// splitTerms splits `a+b-3` into signed terms.
func splitTerms(s string) ([]term, error) {
	var terms []term

	sign := int64(1)
	start := 0
	expectTerm := true

	flush := func(end int) error {
		text := strings.TrimSpace(s[start:end])
		if text == "" {
			return errEmptyTerm
		}

		terms = append(terms, term{sign: sign, text: text})
		return nil
	}

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case c == '\'':
			// skip over a character literal
			if j := strings.IndexByte(s[i+1:], '\''); j >= 0 {
				i += j + 1
			}

			expectTerm = false
		case (c == '+' || c == '-') && expectTerm:
			if strings.TrimSpace(s[start:i]) != "" {
				return nil, errEmptyTerm
			}

			if c == '-' {
				sign = -sign
			}

			start = i + 1
		case c == '+' || c == '-':
			if err := flush(i); err != nil {
				return nil, err
			}

			sign = 1
			if c == '-' {
				sign = -1
			}

			start = i + 1
			expectTerm = true
		case c != ' ' && c != '\t':
			expectTerm = false
		}
	}

	if err := flush(len(s)); err != nil {
		return nil, err
	}

	return terms, nil
}

type termError string

func (te termError) Error() string {
	return string(te)
}

const errEmptyTerm = termError("missing term")

// splitMnemonic splits the first word off a line.
func splitMnemonic(line string) (string, string) {
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		return line[:i], line[i+1:]
	}

	return line, ""
}

// splitComment splits a trailing `;` comment off a line.  Semicolons inside
// quotes do not start comments.
func splitComment(line string) (string, string) {
	var quote byte

	for i := 0; i < len(line); i++ {
		c := line[i]

		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ';':
			return line[:i], strings.TrimSpace(line[i+1:])
		}
	}

	return line, ""
}

// isSymbol reports whether text names a symbol rather than a register.
func (p *parser) isSymbol(text string) bool {
	_, err := p.symbolName(text)
	return err == nil
}

// symbolName returns the symbol written as text, removing the escape.
func (p *parser) symbolName(text string) (string, error) {
	if strings.HasPrefix(text, "$") && isIdentifier(text[1:]) {
		return text[1:], nil
	}

	if !isIdentifier(text) {
		return "", p.errorf("invalid symbol `%s`", text)
	}

	if IsReserved(p.tgt, text) {
		return "", p.errorf("`%s` is a register name; write the symbol as `$%s`", text, text)
	}

	return text, nil
}

// IsReserved reports whether name would be read as a register or a stack
// operand instead of a symbol.
func IsReserved(tgt *target.Target, name string) bool {
	upper := strings.ToUpper(name)
	switch upper {
	case "SP", "PC", "EX", "PUSH", "POP", "PEEK", "PICK":
		return true
	}

	return tgt.IsRegister(upper)
}

// isIdentifier returns whether s is a valid symbol name.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == '.', c == '$':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}

	return true
}
