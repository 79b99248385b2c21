// Package syntax turns shell source text into an abstract syntax tree and
// back. It implements the preprocessor, lexer and parser stages of the
// pipeline: Input -> Lexer -> Parser -> Expander -> Executor.
package syntax

import "github.com/duskshell/dusk/token"

// Pos and Position are re-exported from package token so that callers of
// package syntax rarely need to import token directly.
type (
	Pos      = token.Pos
	Position = token.Position
)

// Node is implemented by every AST node.
type Node interface {
	Pos() Pos
	End() Pos
}

// File is a whole parsed program: a flat command list plus enough
// position bookkeeping to translate a Pos back into line/column.
type File struct {
	Name  string
	Stmts []*Stmt
	lines []int // offset of the first byte of each line; lines[0] == 0
}

func (f *File) Pos() Pos { return firstPos(f.Stmts) }
func (f *File) End() Pos { return lastEnd(f.Stmts) }

// Position resolves a Pos recorded while parsing this file into a human
// readable line/column/offset triple.
func (f *File) Position(p Pos) Position {
	off := int(p) - 1
	lo, hi := 0, len(f.lines)
	for lo < hi {
		mid := (lo + hi) / 2
		if f.lines[mid] <= off {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	line := lo
	if line == 0 {
		return Position{}
	}
	return Position{Offset: off, Line: line, Column: off - f.lines[line-1] + 1}
}

func firstPos(stmts []*Stmt) Pos {
	if len(stmts) == 0 {
		return 0
	}
	return stmts[0].Pos()
}

func lastEnd(stmts []*Stmt) Pos {
	if len(stmts) == 0 {
		return 0
	}
	return stmts[len(stmts)-1].End()
}

// Stmt wraps a Command with the surrounding machinery the grammar allows
// on any statement: a leading "!", trailing "&", redirections and leading
// variable assignments (only meaningful when Cmd is nil or a CallExpr).
type Stmt struct {
	Position   Pos
	Cmd        Command
	Negated    bool
	Background bool
	Coprocess  bool
	Assigns    []*Assign
	Redirs     []*Redirect

	// Pipeline records the execution context this statement runs under:
	// STATEMENT when it is the sole/last member of its AndOrList, or
	// PIPELINE when it is one stage of a multi-command pipe. Compound
	// commands run a subshell in the latter case; this flag is what the
	// parser sets and the executor reads back.
	Pipeline bool
}

func (s *Stmt) Pos() Pos { return s.Position }
func (s *Stmt) End() Pos {
	end := s.Position
	if s.Negated {
		end++
	}
	if s.Cmd != nil {
		end = maxPos(end, s.Cmd.End())
	}
	for _, a := range s.Assigns {
		end = maxPos(end, a.End())
	}
	for _, r := range s.Redirs {
		end = maxPos(end, r.End())
	}
	return end
}

func maxPos(a, b Pos) Pos {
	if b > a {
		return b
	}
	return a
}

// Command is any node that can stand directly as a Stmt's body.
type Command interface {
	Node
	commandNode()
}

func (*CallExpr) commandNode()     {}
func (*IfClause) commandNode()     {}
func (*WhileClause) commandNode()  {}
func (*ForClause) commandNode()    {}
func (*CStyleLoop) commandNode()   {}
func (*CaseClause) commandNode()   {}
func (*SelectClause) commandNode() {}
func (*Block) commandNode()        {}
func (*Subshell) commandNode()     {}
func (*BinaryCmd) commandNode()    {}
func (*FuncDecl) commandNode()     {}
func (*ArithmCmd) commandNode()    {}
func (*TestClause) commandNode()   {}

// Assign is a leading `name=value` (or `name+=value`) attached to a
// simple command, or a standalone variable assignment statement.
type Assign struct {
	Name   *Lit
	Index  *Index // NAME[expr]=value
	Append bool
	Array  *ArrayExpr // NAME=(elems...)
	Value  *Word
}

func (a *Assign) Pos() Pos {
	if a.Name != nil {
		return a.Name.Pos()
	}
	return a.Value.Pos()
}
func (a *Assign) End() Pos {
	if a.Array != nil {
		return a.Array.End()
	}
	if a.Value != nil {
		return a.Value.End()
	}
	return a.Name.End()
}

// Redirect is a single `<`, `>`, `>>`, `<<`, `<<<`, `n>&m`, ... applied to
// the command or compound command it is attached to.
type Redirect struct {
	OpPos  Pos
	Op     token.Token
	N      *Lit  // explicit source fd, e.g. the "2" in 2>&1
	Word   *Word // target, or the word for <<<
	Hdoc   *Word // collected here-doc body, filled in by the heredoc pass
	HdocQuoted bool
}

func (r *Redirect) Pos() Pos {
	if r.N != nil {
		return r.N.Pos()
	}
	return r.OpPos
}
func (r *Redirect) End() Pos {
	if r.Word != nil {
		return r.Word.End()
	}
	return r.OpPos + 2
}

// CallExpr is a simple command: argv plus anything resolved by the
// executor before running it.
type CallExpr struct {
	Args []*Word
}

func (c *CallExpr) Pos() Pos { return c.Args[0].Pos() }
func (c *CallExpr) End() Pos { return c.Args[len(c.Args)-1].End() }

// Subshell is `( list )`, executed in a forked child with an independent
// copy of mutable shell state.
type Subshell struct {
	Lparen, Rparen Pos
	Stmts          []*Stmt
}

func (s *Subshell) Pos() Pos { return s.Lparen }
func (s *Subshell) End() Pos { return s.Rparen + 1 }

// Block is `{ list ; }`, executed in the current shell context.
type Block struct {
	Lbrace, Rbrace Pos
	Stmts          []*Stmt
}

func (b *Block) Pos() Pos { return b.Lbrace }
func (b *Block) End() Pos { return b.Rbrace + 1 }

// IfClause is `if cond; then body; elif ...; else ...; fi`.
type IfClause struct {
	If, Fi    Pos
	CondStmts []*Stmt
	ThenStmts []*Stmt
	Elifs     []*Elif
	ElseStmts []*Stmt
}

func (c *IfClause) Pos() Pos { return c.If }
func (c *IfClause) End() Pos { return c.Fi + 2 }

// Elif is one `elif cond; then body` clause.
type Elif struct {
	Elif      Pos
	CondStmts []*Stmt
	ThenStmts []*Stmt
}

// WhileClause is `while cond; do body; done`.
type WhileClause struct {
	While, Done Pos
	Until       bool // true for an UntilClause reusing this shape
	CondStmts   []*Stmt
	DoStmts     []*Stmt
}

func (c *WhileClause) Pos() Pos { return c.While }
func (c *WhileClause) End() Pos { return c.Done + 4 }

// UntilClause is `until cond; do body; done`; it is parsed and executed
// with the same shape as WhileClause with the condition inverted, so it
// is represented by the same struct carrying Until=true. UntilClause is
// a type alias, not a distinct Go type: it is the same type as
// WhileClause.
type UntilClause = WhileClause

// ForClause is `for name in words; do body; done`.
type ForClause struct {
	For, Done Pos
	Var       *Lit
	Items     []*Word // nil means the iterable defaults to "$@"
	DoStmts   []*Stmt
}

func (c *ForClause) Pos() Pos { return c.For }
func (c *ForClause) End() Pos { return c.Done + 4 }

// CStyleLoop is the C-style `for ((init; cond; update)); do body; done`.
type CStyleLoop struct {
	For, Done          Pos
	Init, Cond, Update ArithmExpr
	DoStmts            []*Stmt
}

func (c *CStyleLoop) Pos() Pos { return c.For }
func (c *CStyleLoop) End() Pos { return c.Done + 4 }

// SelectClause is `select name in words; do body; done`.
type SelectClause struct {
	Select, Done Pos
	Var          *Lit
	Items        []*Word
	DoStmts      []*Stmt
}

func (c *SelectClause) Pos() Pos { return c.Select }
func (c *SelectClause) End() Pos { return c.Done + 4 }

// CaseClause is `case word in pat) body;; esac`.
type CaseClause struct {
	Case, Esac Pos
	Word       *Word
	Items      []*CaseItem
}

func (c *CaseClause) Pos() Pos { return c.Case }
func (c *CaseClause) End() Pos { return c.Esac + 4 }

// CaseItem is one `pattern[|pattern...]) body terminator` arm.
type CaseItem struct {
	Patterns   []*Word
	Stmts      []*Stmt
	Terminator token.Token // DblSemi, SemiAnd or DblSemiAnd
}

// BinaryCmd is a pipeline stage connector: `|`, `|&`, `&&` or `||`.
type BinaryCmd struct {
	OpPos    Pos
	Op       token.Token
	X, Y     *Stmt
}

func (b *BinaryCmd) Pos() Pos { return b.X.Pos() }
func (b *BinaryCmd) End() Pos { return b.Y.End() }

// FuncDecl declares a shell function.
type FuncDecl struct {
	Position Pos
	Name     *Lit
	Body     *Stmt
}

func (f *FuncDecl) Pos() Pos { return f.Position }
func (f *FuncDecl) End() Pos { return f.Body.End() }

// ArithmCmd is the standalone `(( expr ))` command.
type ArithmCmd struct {
	Left, Right Pos
	X           ArithmExpr
}

func (a *ArithmCmd) Pos() Pos { return a.Left }
func (a *ArithmCmd) End() Pos { return a.Right + 2 }

// TestClause is `[[ expr ]]`.
type TestClause struct {
	Left, Right Pos
	X           TestExpr
}

func (t *TestClause) Pos() Pos { return t.Left }
func (t *TestClause) End() Pos { return t.Right + 2 }
