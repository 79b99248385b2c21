package syntax

import (
	"strings"

	"github.com/duskshell/dusk/token"
)

// arithParser is a small, independent Pratt parser over the text
// captured from inside $(( )), (( )) and array-index brackets. It is
// intentionally separate from Parser: arithmetic expressions are
// captured as a balanced-paren substring by the lexer first (see
// lexArithExpansion), then reparsed here rather than threaded through
// the main token stream, matching how the teacher's own arithmetic
// parser works from a dedicated arithmParser over pre-sliced text.
type arithParser struct {
	src string
	off int

	tok token.Token
	val string
}

func parseArithString(src string) ArithmExpr {
	ap := &arithParser{src: src}
	ap.next()
	x := ap.expr(0)
	return x
}

var arithBinPrec = map[token.Token]int{
	token.Comma:    1,
	token.Assgn:    2,
	token.AddAssgn: 2, token.SubAssgn: 2, token.MulAssgn: 2, token.QuoAssgn: 2,
	token.RemAssgn: 2, token.AndAssgn: 2, token.OrAssgn: 2, token.XorAssgn: 2,
	token.ShlAssgn: 2, token.ShrAssgn: 2,
	token.Quest: 3,
	token.OrOr:  4,
	token.AndAndArith: 5,
	token.Or:    6,
	token.Xor:   7,
	token.And:   8,
	token.Eql:   9, token.Neq: 9,
	token.Lss: 10, token.Gtr: 10, token.Leq: 10, token.Geq: 10,
	token.Shl: 11, token.Shr: 11,
	token.Add: 12, token.Sub: 12,
	token.Mul: 13, token.Quo: 13, token.Rem: 13,
	token.Pow: 14,
}

func (ap *arithParser) expr(minPrec int) ArithmExpr {
	left := ap.unary()
	for {
		prec, ok := arithBinPrec[ap.tok]
		if !ok || prec < minPrec {
			return left
		}
		op := ap.tok
		opPos := Pos(ap.off + 1)
		if op == token.Quest {
			ap.next()
			then := ap.expr(0)
			if ap.tok != token.Colon {
				left = &TernaryArithm{Cond: left, X: then, Y: then, QuestPos: opPos}
				continue
			}
			ap.next()
			els := ap.expr(prec)
			left = &TernaryArithm{Cond: left, X: then, Y: els, QuestPos: opPos}
			continue
		}
		ap.next()
		nextMin := prec + 1
		if op == token.Assgn || isArithAssignOp(op) {
			nextMin = prec // right-associative
		}
		right := ap.expr(nextMin)
		left = &BinaryArithm{OpPos: opPos, Op: op, X: left, Y: right}
	}
}

func isArithAssignOp(t token.Token) bool {
	switch t {
	case token.AddAssgn, token.SubAssgn, token.MulAssgn, token.QuoAssgn,
		token.RemAssgn, token.AndAssgn, token.OrAssgn, token.XorAssgn,
		token.ShlAssgn, token.ShrAssgn:
		return true
	}
	return false
}

func (ap *arithParser) unary() ArithmExpr {
	pos := Pos(ap.off + 1)
	switch ap.tok {
	case token.Not, token.Sub, token.Add, token.TNot, token.AddAdd, token.SubSub:
		op := ap.tok
		ap.next()
		x := ap.unary()
		return &UnaryArithm{OpPos: pos, Op: op, X: x}
	case token.LParen:
		ap.next()
		x := ap.expr(0)
		rparen := Pos(ap.off + 1)
		if ap.tok == token.RParen {
			ap.next()
		}
		post := &ParenArithm{Lparen: pos, Rparen: rparen, X: x}
		return ap.postfix(post)
	}
	return ap.postfix(ap.primary())
}

func (ap *arithParser) postfix(x ArithmExpr) ArithmExpr {
	for ap.tok == token.AddAdd || ap.tok == token.SubSub {
		op := ap.tok
		pos := Pos(ap.off + 1)
		ap.next()
		x = &UnaryArithm{OpPos: pos, Op: op, X: x, Post: true}
	}
	return x
}

func (ap *arithParser) primary() ArithmExpr {
	pos := Pos(ap.off + 1)
	val := ap.val
	ap.next()
	return &Word{Parts: []WordPart{&Lit{ValuePos: pos, Value: val}}}
}

func (ap *arithParser) next() {
	for ap.off < len(ap.src) && (ap.src[ap.off] == ' ' || ap.src[ap.off] == '\t' || ap.src[ap.off] == '\n') {
		ap.off++
	}
	if ap.off >= len(ap.src) {
		ap.tok = token.EOF
		return
	}
	b := ap.src[ap.off]
	two := func(n byte) bool { return ap.off+1 < len(ap.src) && ap.src[ap.off+1] == n }
	switch {
	case b == '+' && two('+'):
		ap.tok, ap.off = token.AddAdd, ap.off+2
	case b == '-' && two('-'):
		ap.tok, ap.off = token.SubSub, ap.off+2
	case b == '+' && two('='):
		ap.tok, ap.off = token.AddAssgn, ap.off+2
	case b == '-' && two('='):
		ap.tok, ap.off = token.SubAssgn, ap.off+2
	case b == '*' && two('*'):
		ap.tok, ap.off = token.Pow, ap.off+2
	case b == '*' && two('='):
		ap.tok, ap.off = token.MulAssgn, ap.off+2
	case b == '/' && two('='):
		ap.tok, ap.off = token.QuoAssgn, ap.off+2
	case b == '%' && two('='):
		ap.tok, ap.off = token.RemAssgn, ap.off+2
	case b == '&' && two('&'):
		ap.tok, ap.off = token.AndAndArith, ap.off+2
	case b == '&' && two('='):
		ap.tok, ap.off = token.AndAssgn, ap.off+2
	case b == '|' && two('|'):
		ap.tok, ap.off = token.OrOr, ap.off+2
	case b == '|' && two('='):
		ap.tok, ap.off = token.OrAssgn, ap.off+2
	case b == '^' && two('='):
		ap.tok, ap.off = token.XorAssgn, ap.off+2
	case b == '=' && two('='):
		ap.tok, ap.off = token.Eql, ap.off+2
	case b == '!' && two('='):
		ap.tok, ap.off = token.Neq, ap.off+2
	case b == '<' && two('<') && ap.off+2 < len(ap.src) && ap.src[ap.off+2] == '=':
		ap.tok, ap.off = token.ShlAssgn, ap.off+3
	case b == '>' && two('>') && ap.off+2 < len(ap.src) && ap.src[ap.off+2] == '=':
		ap.tok, ap.off = token.ShrAssgn, ap.off+3
	case b == '<' && two('<'):
		ap.tok, ap.off = token.Shl, ap.off+2
	case b == '>' && two('>'):
		ap.tok, ap.off = token.Shr, ap.off+2
	case b == '<' && two('='):
		ap.tok, ap.off = token.Leq, ap.off+2
	case b == '>' && two('='):
		ap.tok, ap.off = token.Geq, ap.off+2
	case b == '<':
		ap.tok, ap.off = token.Lss, ap.off+1
	case b == '>':
		ap.tok, ap.off = token.Gtr, ap.off+1
	case b == '+':
		ap.tok, ap.off = token.Add, ap.off+1
	case b == '-':
		ap.tok, ap.off = token.Sub, ap.off+1
	case b == '*':
		ap.tok, ap.off = token.Mul, ap.off+1
	case b == '/':
		ap.tok, ap.off = token.Quo, ap.off+1
	case b == '%':
		ap.tok, ap.off = token.Rem, ap.off+1
	case b == '&':
		ap.tok, ap.off = token.And, ap.off+1
	case b == '|':
		ap.tok, ap.off = token.Or, ap.off+1
	case b == '^':
		ap.tok, ap.off = token.Xor, ap.off+1
	case b == '~':
		ap.tok, ap.off = token.TNot, ap.off+1
	case b == '!':
		ap.tok, ap.off = token.Not, ap.off+1
	case b == '=':
		ap.tok, ap.off = token.Assgn, ap.off+1
	case b == '?':
		ap.tok, ap.off = token.Quest, ap.off+1
	case b == ':':
		ap.tok, ap.off = token.Colon, ap.off+1
	case b == '(':
		ap.tok, ap.off = token.LParen, ap.off+1
	case b == ')':
		ap.tok, ap.off = token.RParen, ap.off+1
	case b == ',':
		ap.tok, ap.off = token.Comma, ap.off+1
	default:
		start := ap.off
		for ap.off < len(ap.src) && !strings.ContainsRune(" \t\n+-*/%&|^~!=<>?:(),", rune(ap.src[ap.off])) {
			ap.off++
		}
		ap.tok, ap.val = token.Lit, ap.src[start:ap.off]
	}
}

// parseTestExpr parses the contents of [[ ... ]], already split into
// words by the caller's ordinary word lexer; see parser_grammar.go's
// testClause for how those words are collected.
func parseTestExpr(words []*Word) TestExpr {
	tp := &testExprParser{words: words}
	return tp.expr(0)
}

type testExprParser struct {
	words []*Word
	off   int
}

func (tp *testExprParser) peekLit() (string, bool) {
	if tp.off >= len(tp.words) {
		return "", false
	}
	return tp.words[tp.off].Lit()
}

func (tp *testExprParser) expr(minPrec int) TestExpr {
	left := tp.unary()
	for {
		lit, ok := tp.peekLit()
		if !ok {
			return left
		}
		var op token.Token
		var prec int
		switch lit {
		case "&&":
			op, prec = token.AndAnd, 1
		case "||":
			op, prec = token.OrOr, 0
		case "-a":
			op, prec = token.AndAnd, 1
		case "-o":
			op, prec = token.OrOr, 0
		case "==", "=", "!=", "=~", "-eq", "-ne", "-lt", "-le", "-gt", "-ge",
			"-nt", "-ot", "-ef":
			op, prec = binTestOp(lit), 2
		default:
			return left
		}
		if prec < minPrec {
			return left
		}
		opPos := tp.words[tp.off].Pos()
		tp.off++
		if prec == 2 {
			right := tp.words[tp.off]
			tp.off++
			left = &BinaryTest{OpPos: opPos, Op: op, X: left, Y: right}
			continue
		}
		right := tp.expr(prec + 1)
		left = &BinaryTest{OpPos: opPos, Op: op, X: left, Y: right}
	}
}

func binTestOp(lit string) token.Token {
	switch lit {
	case "==", "=":
		return token.Eql
	case "!=":
		return token.Neq
	case "=~":
		return token.TsReMatch
	case "-eq":
		return token.TsEql
	case "-ne":
		return token.TsNeq
	case "-lt":
		return token.TsLt
	case "-le":
		return token.TsLe
	case "-gt":
		return token.TsGt
	case "-ge":
		return token.TsGe
	case "-nt":
		return token.TsNewer
	case "-ot":
		return token.TsOlder
	case "-ef":
		return token.TsSame
	}
	return token.ILLEGAL
}

func (tp *testExprParser) unary() TestExpr {
	if lit, ok := tp.peekLit(); ok {
		if lit == "!" {
			pos := tp.words[tp.off].Pos()
			tp.off++
			return &NegatedTest{Exclam: pos, X: tp.unary()}
		}
		if lit == "(" {
			pos := tp.words[tp.off].Pos()
			tp.off++
			x := tp.expr(0)
			var rparen Pos
			if l, ok := tp.peekLit(); ok && l == ")" {
				rparen = tp.words[tp.off].Pos()
				tp.off++
			}
			return &ParenTest{Lparen: pos, X: x, Rparen: rparen}
		}
		if op, isUnary := unaryTestOp(lit); isUnary {
			pos := tp.words[tp.off].Pos()
			tp.off++
			x := tp.words[tp.off]
			tp.off++
			return &UnaryTest{OpPos: pos, Op: op, X: x}
		}
	}
	w := tp.words[tp.off]
	tp.off++
	return w
}

func unaryTestOp(lit string) (token.Token, bool) {
	switch lit {
	case "-e":
		return token.TsExists, true
	case "-f":
		return token.TsRegFile, true
	case "-d":
		return token.TsDirect, true
	case "-h", "-L":
		return token.TsSymLink, true
	case "-p":
		return token.TsFIFO, true
	case "-S":
		return token.TsSocket, true
	case "-b":
		return token.TsBlckSpc, true
	case "-c":
		return token.TsCharSp, true
	case "-g":
		return token.TsGIDSet, true
	case "-u":
		return token.TsUIDSet, true
	case "-k":
		return token.TsSticky, true
	case "-r":
		return token.TsRead, true
	case "-w":
		return token.TsWrite, true
	case "-x":
		return token.TsExec, true
	case "-s":
		return token.TsSize, true
	case "-t":
		return token.TsFdTerm, true
	case "-z":
		return token.TsEmpStr, true
	case "-n":
		return token.TsNempStr, true
	case "-o":
		return token.TsOptSet, true
	case "-v":
		return token.TsVarSet, true
	}
	return token.ILLEGAL, false
}

// --- ${...} body mini-grammar -----------------------------------------

// parseParamExpBody parses the text captured between ${ and } by
// lexParamExpBraced. The dollar position is passed through so the
// resulting ParamExp carries an accurate Pos().
func parseParamExpBody(src string, dollar Pos) *ParamExp {
	pe := &ParamExp{Dollar: dollar}
	i := 0
	if i < len(src) && src[i] == '#' && !(len(src) > 1 && isNameStart(src[1]) && src[1:] == "") {
		// "${#name}" (length) vs "${#}" (param count) vs "${#-}" etc:
		// only treat '#' as the length operator when what follows looks
		// like a parameter name/special-parameter, not an operator.
		if rest := src[1:]; rest != "" && (isNameStart(rest[0]) || rest[0] == '@' || rest[0] == '*' || (rest[0] >= '0' && rest[0] <= '9')) {
			pe.Length = true
			i++
		}
	}
	if i < len(src) && src[i] == '!' {
		pe.Excl = true
		i++
	}
	start := i
	switch {
	case i < len(src) && (src[i] >= '0' && src[i] <= '9'):
		for i < len(src) && src[i] >= '0' && src[i] <= '9' {
			i++
		}
	case i < len(src) && isNameStart(src[i]):
		for i < len(src) && isNameCont(src[i]) {
			i++
		}
	case i < len(src):
		i++ // special parameter: @ * # ? - $ !
	}
	pe.Param = &Lit{ValuePos: dollar + 1, Value: src[start:i]}

	if i >= len(src) {
		return pe
	}

	if src[i] == '[' {
		depth := 1
		j := i + 1
		for j < len(src) && depth > 0 {
			switch src[j] {
			case '[':
				depth++
			case ']':
				depth--
			}
			j++
		}
		idx := src[i+1 : j-1]
		if strings.Contains(idx, ":") && !strings.ContainsAny(idx, "'\"") {
			// heuristics aside, array index text is opaque arithmetic;
			// treat plainly to avoid misparsing a[0:1]-shaped literals.
		}
		pe.Index = &Index{Word: litWord(idx)}
		i = j
	}

	if i >= len(src) {
		return pe
	}

	switch {
	case src[i] == ':' && i+1 < len(src) && src[i+1] == '-':
		pe.Exp = &Expansion{Op: token.ColonMinus, Word: litWord(src[i+2:])}
	case src[i] == '-':
		pe.Exp = &Expansion{Op: token.Minus, Word: litWord(src[i+1:])}
	case src[i] == ':' && i+1 < len(src) && src[i+1] == '=':
		pe.Exp = &Expansion{Op: token.ColonEqual, Word: litWord(src[i+2:])}
	case src[i] == '=':
		pe.Exp = &Expansion{Op: token.Equal, Word: litWord(src[i+1:])}
	case src[i] == ':' && i+1 < len(src) && src[i+1] == '?':
		pe.Exp = &Expansion{Op: token.ColonQuest, Word: litWord(src[i+2:])}
	case src[i] == '?':
		pe.Exp = &Expansion{Op: token.Quest, Word: litWord(src[i+1:])}
	case src[i] == ':' && i+1 < len(src) && src[i+1] == '+':
		pe.Exp = &Expansion{Op: token.ColonPlus, Word: litWord(src[i+2:])}
	case src[i] == '+':
		pe.Exp = &Expansion{Op: token.Plus, Word: litWord(src[i+1:])}
	case src[i] == ':':
		rest := src[i+1:]
		if off := strings.IndexByte(rest, ':'); off >= 0 {
			pe.Slice = &Slice{Offset: litWord(rest[:off]), Length: litWord(rest[off+1:])}
		} else {
			pe.Slice = &Slice{Offset: litWord(rest)}
		}
	case strings.HasPrefix(src[i:], "##"):
		pe.Exp = &Expansion{Op: token.DblHash, Word: litWord(src[i+2:])}
	case src[i] == '#':
		pe.Exp = &Expansion{Op: token.Hash, Word: litWord(src[i+1:])}
	case strings.HasPrefix(src[i:], "%%"):
		pe.Exp = &Expansion{Op: token.DblPerc, Word: litWord(src[i+2:])}
	case src[i] == '%':
		pe.Exp = &Expansion{Op: token.Perc, Word: litWord(src[i+1:])}
	case strings.HasPrefix(src[i:], "^^"):
		pe.Exp = &Expansion{Op: token.DblCaret, Word: litWord(src[i+2:])}
	case src[i] == '^':
		pe.Exp = &Expansion{Op: token.Caret, Word: litWord(src[i+1:])}
	case strings.HasPrefix(src[i:], ",,"):
		pe.Exp = &Expansion{Op: token.DblComma, Word: litWord(src[i+2:])}
	case src[i] == ',':
		pe.Exp = &Expansion{Op: token.Comma, Word: litWord(src[i+1:])}
	case src[i] == '/':
		body := src[i+1:]
		rep := &Replace{}
		rest := body
		if strings.HasPrefix(rest, "/") {
			rep.All = true
			rest = rest[1:]
		} else if strings.HasPrefix(rest, "#") {
			rep.Prefix = true
			rest = rest[1:]
		} else if strings.HasPrefix(rest, "%") {
			rep.Suffix = true
			rest = rest[1:]
		}
		if off := strings.IndexByte(rest, '/'); off >= 0 {
			rep.Orig = litWord(rest[:off])
			rep.With = litWord(rest[off+1:])
		} else {
			rep.Orig = litWord(rest)
		}
		pe.Repl = rep
	}
	return pe
}

func litWord(s string) *Word {
	if s == "" {
		return &Word{Parts: []WordPart{&Lit{Value: ""}}}
	}
	sub := NewParser()
	w := sub.lexWordFromString(s)
	return w
}

// lexWordFromString lexes s as a standalone word, reusing the same word
// scanner used for ordinary source text so that nested expansions inside
// a parameter-expansion operand (e.g. ${x:-$y}) are still recognized.
func (p *Parser) lexWordFromString(s string) *Word {
	save := p.src
	saveOff := p.off
	p.src = []byte(s)
	p.off = 0
	w := p.lexWord()
	p.src = save
	p.off = saveOff
	return w
}
