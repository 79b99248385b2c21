package syntax

import "github.com/duskshell/dusk/token"

// ArithmExp is $((...)), the arithmetic-expansion word part.
type ArithmExp struct {
	Left, Right Pos
	X           ArithmExpr
}

func (a *ArithmExp) Pos() Pos { return a.Left }
func (a *ArithmExp) End() Pos { return a.Right + 2 }

// ArithmExpr is any node that can appear inside an arithmetic context:
// $((...)), ((...)), a C-style for's three clauses, and array indices.
type ArithmExpr interface {
	Node
	arithmExprNode()
}

func (*Word) arithmExprNode()          {}
func (*BinaryArithm) arithmExprNode()  {}
func (*UnaryArithm) arithmExprNode()   {}
func (*ParenArithm) arithmExprNode()   {}
func (*TernaryArithm) arithmExprNode() {}

// BinaryArithm is `x op y`, including assignment and comma operators.
type BinaryArithm struct {
	OpPos Pos
	Op    token.Token
	X, Y  ArithmExpr
}

func (b *BinaryArithm) Pos() Pos { return b.X.Pos() }
func (b *BinaryArithm) End() Pos { return b.Y.End() }

// TernaryArithm is `cond ? x : y`.
type TernaryArithm struct {
	QuestPos Pos
	Cond, X, Y ArithmExpr
}

func (t *TernaryArithm) Pos() Pos { return t.Cond.Pos() }
func (t *TernaryArithm) End() Pos { return t.Y.End() }

// UnaryArithm is `op x` or, for Inc/Dec, `x op` when Post is set.
type UnaryArithm struct {
	OpPos Pos
	Op    token.Token
	Post  bool
	X     ArithmExpr
}

func (u *UnaryArithm) Pos() Pos {
	if u.Post {
		return u.X.Pos()
	}
	return u.OpPos
}
func (u *UnaryArithm) End() Pos {
	if u.Post {
		return u.OpPos + 2
	}
	return u.X.End()
}

// ParenArithm is `( x )` used purely for grouping.
type ParenArithm struct {
	Lparen, Rparen Pos
	X              ArithmExpr
}

func (p *ParenArithm) Pos() Pos { return p.Lparen }
func (p *ParenArithm) End() Pos { return p.Rparen + 1 }

// TestExpr is any node inside [[ ... ]].
type TestExpr interface {
	Node
	testExprNode()
}

func (*Word) testExprNode()        {}
func (*BinaryTest) testExprNode()  {}
func (*UnaryTest) testExprNode()   {}
func (*ParenTest) testExprNode()   {}
func (*NegatedTest) testExprNode() {}

// BinaryTest is `x op y`: string/numeric comparisons, -nt/-ot/-ef,
// =~, and the logical && / ||.
type BinaryTest struct {
	OpPos Pos
	Op    token.Token
	X, Y  TestExpr
}

func (b *BinaryTest) Pos() Pos { return b.X.Pos() }
func (b *BinaryTest) End() Pos { return b.Y.End() }

// UnaryTest is `op x`: the file/string test operators (-e, -f, -z, ...).
type UnaryTest struct {
	OpPos Pos
	Op    token.Token
	X     TestExpr
}

func (u *UnaryTest) Pos() Pos { return u.OpPos }
func (u *UnaryTest) End() Pos { return u.X.End() }

// ParenTest is `( x )` grouping inside [[ ]].
type ParenTest struct {
	Lparen, Rparen Pos
	X              TestExpr
}

func (p *ParenTest) Pos() Pos { return p.Lparen }
func (p *ParenTest) End() Pos { return p.Rparen + 1 }

// NegatedTest is `! x` inside [[ ]].
type NegatedTest struct {
	Exclam Pos
	X      TestExpr
}

func (n *NegatedTest) Pos() Pos { return n.Exclam }
func (n *NegatedTest) End() Pos { return n.X.End() }
