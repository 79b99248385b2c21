package syntax

import "github.com/duskshell/dusk/token"

// Word is the expansion-time view of a token: an ordered sequence of
// segments, each individually tagged with how it was quoted, so the
// expander in package expand can apply per-segment rules (a single
// WORD token like "a"$b'c' becomes three WordParts here).
type Word struct {
	Parts []WordPart
}

func (w *Word) Pos() Pos { return partsFirstPos(w.Parts) }
func (w *Word) End() Pos { return partsLastEnd(w.Parts) }

func partsFirstPos(ps []WordPart) Pos {
	if len(ps) == 0 {
		return 0
	}
	return ps[0].Pos()
}

func partsLastEnd(ps []WordPart) Pos {
	if len(ps) == 0 {
		return 0
	}
	return ps[len(ps)-1].End()
}

// Lit returns the word's value if it is a single, unquoted literal
// segment, and ok=false otherwise. Used when the grammar calls for a
// bare name rather than a fully expandable word (for-loop variable,
// case pattern delimiters, etc).
func (w *Word) Lit() (string, bool) {
	if len(w.Parts) != 1 {
		return "", false
	}
	l, ok := w.Parts[0].(*Lit)
	if !ok {
		return "", false
	}
	return l.Value, true
}

// WordPart is one segment of a Word.
type WordPart interface {
	Node
	wordPartNode()
}

func (*Lit) wordPartNode()       {}
func (*SglQuoted) wordPartNode() {}
func (*DblQuoted) wordPartNode() {}
func (*ParamExp) wordPartNode()  {}
func (*CmdSubst) wordPartNode()  {}
func (*ArithmExp) wordPartNode() {}
func (*ProcSubst) wordPartNode() {}
func (*ArrayExpr) wordPartNode() {}
func (*ExtGlob) wordPartNode()   {}

// Lit is a literal, unquoted run of text: no expansion applies to it
// beyond pathname/brace expansion of the word it belongs to.
type Lit struct {
	ValuePos Pos
	Value    string
}

func (l *Lit) Pos() Pos { return l.ValuePos }
func (l *Lit) End() Pos { return l.ValuePos + Pos(len(l.Value)) }

// SglQuoted is 'literal text' (or, with Dollar set, $'ANSI-C text' which
// has already been escape-decoded by the lexer).
type SglQuoted struct {
	Position Pos
	Dollar   bool
	Value    string
}

func (q *SglQuoted) Pos() Pos { return q.Position }
func (q *SglQuoted) End() Pos {
	extra := 2
	if q.Dollar {
		extra = 3
	}
	return q.Position + Pos(len(q.Value)+extra)
}

// DblQuoted is "..." (or, with Dollar set, a $"..." locale string, which
// this interpreter treats as an ordinary double-quoted string since it
// carries no locale database).
type DblQuoted struct {
	Position Pos
	Dollar   bool
	Parts    []WordPart
}

func (q *DblQuoted) Pos() Pos { return q.Position }
func (q *DblQuoted) End() Pos { return partsLastEnd(q.Parts) + 1 }

// CmdSubst is $(...) or `...`.
type CmdSubst struct {
	Left, Right Pos
	Backquotes  bool
	Stmts       []*Stmt
}

func (c *CmdSubst) Pos() Pos { return c.Left }
func (c *CmdSubst) End() Pos { return c.Right + 1 }

// ProcSubst is <(...) or >(...).
type ProcSubst struct {
	OpPos, Rparen Pos
	Op            token.Token // ProcIn or ProcOut
	Stmts         []*Stmt
}

func (p *ProcSubst) Pos() Pos { return p.OpPos }
func (p *ProcSubst) End() Pos { return p.Rparen + 1 }

// ParamExp is a ${...} or bare $name parameter expansion.
type ParamExp struct {
	Dollar, Rbrace Pos
	Short          bool // true for $name, DOLLBR-less
	Length         bool // ${#name}
	Excl           bool // ${!name} / ${!name[@]} / ${!prefix*}
	Param          *Lit
	Index          *Index
	Slice          *Slice
	Repl           *Replace
	Exp            *Expansion
	NamesOp        token.Token // 0, Mul (${!p*}) or token.And (${!p@})
}

func (p *ParamExp) Pos() Pos { return p.Dollar }
func (p *ParamExp) End() Pos {
	if p.Rbrace > 0 {
		return p.Rbrace + 1
	}
	return p.Param.End()
}

// Index is NAME[expr] array indexing.
type Index struct{ Word *Word }

// Slice is the ${name:offset:length} substring operator.
type Slice struct{ Offset, Length *Word }

// Replace is the ${name/pat/rep} family.
type Replace struct {
	All, Prefix, Suffix bool
	Orig, With          *Word
}

// Expansion covers every ${name OP word} modifier other than Replace:
// :-  -  :=  =  :?  ?  :+  +  #  ##  %  %%  ^  ^^  ,  ,,
type Expansion struct {
	Op   token.Token
	Word *Word
}

// ArrayExpr is NAME=(elem elem...), used both as an assignment value and
// (inside an ArrayExpr-as-WordPart context) array literal.
type ArrayExpr struct {
	Lparen, Rparen Pos
	Elems          []*ArrayElem
}

func (a *ArrayExpr) Pos() Pos { return a.Lparen }
func (a *ArrayExpr) End() Pos { return a.Rparen + 1 }

// ArrayElem is one element of an array literal, optionally with an
// explicit [index]= for sparse/associative arrays.
type ArrayElem struct {
	Index *Word
	Value *Word
}

// ExtGlob is a bash extended glob like @(a|b), only meaningful when
// extglob-style matching is requested from package pattern.
type ExtGlob struct {
	OpPos Pos
	Op    byte // '@', '*', '+', '?', '!'
	Pattern *Lit
}

func (e *ExtGlob) Pos() Pos { return e.OpPos }
func (e *ExtGlob) End() Pos { return e.Pattern.End() + 1 }
