// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/duskshell/dusk/syntax"
	"github.com/duskshell/dusk/token"
)

// ExpandArithm evaluates an arithmetic expression, recursing into variable
// values the way `$((x))` does when x itself holds a numeric string.
func (c *Context) ExpandArithm(ctx context.Context, expr syntax.ArithmExpr) int {
	switch x := expr.(type) {
	case *syntax.Word:
		str := c.ExpandLiteral(ctx, x)
		return c.arithVarOrLit(str, 0)
	case *syntax.ParenArithm:
		return c.ExpandArithm(ctx, x.X)
	case *syntax.UnaryArithm:
		switch x.Op {
		case token.AddAdd, token.SubSub:
			name, _ := x.X.(*syntax.Word).Lit()
			old := atoi(c.envGet(name))
			val := old
			if x.Op == token.AddAdd {
				val++
			} else {
				val--
			}
			c.envSet(name, strconv.FormatInt(val, 10))
			if x.Post {
				return int(old)
			}
			return int(val)
		}
		val := c.ExpandArithm(ctx, x.X)
		switch x.Op {
		case token.Not:
			return oneIf(val == 0)
		case token.TNot:
			return ^val
		case token.Add:
			return val
		default: // token.Sub
			return -val
		}
	case *syntax.TernaryArithm:
		if c.ExpandArithm(ctx, x.Cond) != 0 {
			return c.ExpandArithm(ctx, x.X)
		}
		return c.ExpandArithm(ctx, x.Y)
	case *syntax.BinaryArithm:
		switch x.Op {
		case token.Assgn, token.AddAssgn, token.SubAssgn, token.MulAssgn,
			token.QuoAssgn, token.RemAssgn, token.AndAssgn, token.OrAssgn,
			token.XorAssgn, token.ShlAssgn, token.ShrAssgn:
			return c.assgnArithm(ctx, x)
		}
		left := c.ExpandArithm(ctx, x.X)
		right := c.ExpandArithm(ctx, x.Y)
		return binArithm(x.Op, left, right)
	default:
		panic(fmt.Sprintf("unexpected arithmetic expression: %T", expr))
	}
}

func (c *Context) arithVarOrLit(str string, depth int) int64 {
	if depth > maxNameRefDepth {
		return 0
	}
	if isValidName(str) {
		val := c.envGet(str)
		if val == "" {
			return 0
		}
		if val == str {
			return 0
		}
		return c.arithVarOrLit(val, depth+1)
	}
	return atoi(str)
}

func isValidName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}

func atoi(s string) int64 {
	s = strings.TrimSpace(s)
	n, _ := strconv.ParseInt(s, 0, 64)
	return n
}

func oneIf(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (c *Context) assgnArithm(ctx context.Context, b *syntax.BinaryArithm) int {
	name, _ := b.X.(*syntax.Word).Lit()
	val := atoi(c.envGet(name))
	arg := int64(c.ExpandArithm(ctx, b.Y))
	switch b.Op {
	case token.Assgn:
		val = arg
	case token.AddAssgn:
		val += arg
	case token.SubAssgn:
		val -= arg
	case token.MulAssgn:
		val *= arg
	case token.QuoAssgn:
		if arg != 0 {
			val /= arg
		}
	case token.RemAssgn:
		if arg != 0 {
			val %= arg
		}
	case token.AndAssgn:
		val &= arg
	case token.OrAssgn:
		val |= arg
	case token.XorAssgn:
		val ^= arg
	case token.ShlAssgn:
		val <<= uint(arg)
	case token.ShrAssgn:
		val >>= uint(arg)
	}
	c.envSet(name, strconv.FormatInt(val, 10))
	return int(val)
}

func intPow(a, b int) int {
	p := 1
	for b > 0 {
		if b&1 != 0 {
			p *= a
		}
		b >>= 1
		a *= a
	}
	return p
}

func binArithm(op token.Token, x, y int) int {
	switch op {
	case token.Add:
		return x + y
	case token.Sub:
		return x - y
	case token.Mul:
		return x * y
	case token.Quo:
		if y == 0 {
			return 0
		}
		return x / y
	case token.Rem:
		if y == 0 {
			return 0
		}
		return x % y
	case token.Pow:
		return intPow(x, y)
	case token.Eql:
		return oneIf(x == y)
	case token.Gtr:
		return oneIf(x > y)
	case token.Lss:
		return oneIf(x < y)
	case token.Neq:
		return oneIf(x != y)
	case token.Leq:
		return oneIf(x <= y)
	case token.Geq:
		return oneIf(x >= y)
	case token.And:
		return x & y
	case token.Or:
		return x | y
	case token.Xor:
		return x ^ y
	case token.Shr:
		return x >> uint(y)
	case token.Shl:
		return x << uint(y)
	case token.AndAndArith:
		return oneIf(x != 0 && y != 0)
	case token.OrOr:
		return oneIf(x != 0 || y != 0)
	default: // token.Comma
		return y
	}
}
