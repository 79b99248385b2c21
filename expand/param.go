// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/duskshell/dusk/pattern"
	"github.com/duskshell/dusk/syntax"
	"github.com/duskshell/dusk/token"
)

// indexLit returns the literal text of a parameter-expansion index, or
// "" if it isn't a single unquoted literal (which is all "@" and "*"
// ever are).
func indexLit(idx *syntax.Index) string {
	if idx == nil {
		return ""
	}
	s, _ := idx.Word.Lit()
	return s
}

// UnsetParameterError is raised by ${param:?message} when param is unset
// or empty.
type UnsetParameterError struct {
	Expr    *syntax.ParamExp
	Message string
}

func (u UnsetParameterError) Error() string { return u.Message }

func (c *Context) paramExp(ctx context.Context, pe *syntax.ParamExp) string {
	name := pe.Param.Value
	index := pe.Index
	switch name {
	case "@", "*":
		index = &syntax.Index{Word: &syntax.Word{Parts: []syntax.WordPart{&syntax.Lit{Value: name}}}}
	}

	var vr Variable
	switch name {
	case "LINENO":
		vr = Variable{Set: true, Kind: String, Str: strconv.Itoa(int(pe.Dollar))}
	default:
		vr = c.Env.Get(name)
	}
	set := vr.IsSet()
	str := c.varStr(vr, 0)
	if index != nil {
		str = c.varIndex(ctx, vr, index, 0)
	}

	slicePos := func(w *syntax.Word) int {
		p := c.ExpandArithm(ctx, w)
		if p < 0 {
			p += len(str)
			if p < 0 {
				p = len(str)
			}
		} else if p > len(str) {
			p = len(str)
		}
		return p
	}

	elems := []string{str}
	if indexLit(index) == "@" || indexLit(index) == "*" {
		switch vr.Kind {
		case Indexed:
			elems = vr.List
		case Associative:
			var keys []string
			for k := range vr.Map {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			elems = elems[:0]
			for _, k := range keys {
				elems = append(elems, vr.Map[k])
			}
		case Unknown:
			elems = nil
		}
	}

	switch {
	case pe.Length:
		n := len(elems)
		if indexLit(index) != "@" && indexLit(index) != "*" {
			n = utf8.RuneCountInString(str)
		}
		str = strconv.Itoa(n)
	case pe.Excl:
		var strs []string
		switch {
		case pe.NamesOp != 0:
			strs = c.namesByPrefix(name)
		case vr.Kind == NameRef:
			strs = append(strs, vr.Str)
		case vr.Kind == Indexed:
			for i, e := range vr.List {
				if e != "" {
					strs = append(strs, strconv.Itoa(i))
				}
			}
		case vr.Kind == Associative:
			for k := range vr.Map {
				strs = append(strs, k)
			}
		case str != "":
			vr = c.Env.Get(str)
			strs = append(strs, c.varStr(vr, 0))
		}
		sort.Strings(strs)
		str = strings.Join(strs, " ")
	case pe.Slice != nil:
		if pe.Slice.Offset != nil {
			str = str[slicePos(pe.Slice.Offset):]
		}
		if pe.Slice.Length != nil {
			n := c.ExpandArithm(ctx, pe.Slice.Length)
			if n > len(str) {
				n = len(str)
			}
			if n < 0 {
				n = 0
			}
			str = str[:n]
		}
	case pe.Repl != nil:
		orig := c.ExpandLiteral(ctx, pe.Repl.Orig)
		with := c.ExpandLiteral(ctx, pe.Repl.With)
		n := 1
		if pe.Repl.All {
			n = -1
		}
		locs := findAllIndex(orig, str, n)
		var buf strings.Builder
		last := 0
		for _, loc := range locs {
			buf.WriteString(str[last:loc[0]])
			buf.WriteString(with)
			last = loc[1]
		}
		buf.WriteString(str[last:])
		str = buf.String()
	case pe.Exp != nil:
		arg := c.ExpandLiteral(ctx, pe.Exp.Word)
		switch op := pe.Exp.Op; op {
		case token.ColonPlus:
			if str == "" {
				break
			}
			fallthrough
		case token.Plus:
			if set {
				str = arg
			}
		case token.Minus:
			if set {
				break
			}
			fallthrough
		case token.ColonMinus:
			if str == "" {
				str = arg
			}
		case token.Quest:
			if set {
				break
			}
			fallthrough
		case token.ColonQuest:
			if str == "" {
				c.err(UnsetParameterError{Expr: pe, Message: arg})
			}
		case token.Equal:
			if set {
				break
			}
			fallthrough
		case token.ColonEqual:
			if str == "" {
				c.envSet(name, arg)
				str = arg
			}
		case token.DblHash, token.Hash, token.DblPerc, token.Perc:
			suffix := op == token.DblPerc || op == token.Perc
			greedy := op == token.DblHash || op == token.DblPerc
			for i, elem := range elems {
				elems[i] = removePattern(elem, arg, suffix, greedy)
			}
			str = strings.Join(elems, " ")
		case token.DblCaret, token.Caret, token.DblComma, token.Comma:
			caseFunc := unicode.ToLower
			if op == token.DblCaret || op == token.Caret {
				caseFunc = unicode.ToUpper
			}
			all := op == token.DblCaret || op == token.DblComma
			rx, err := pattern.Regexp(arg, pattern.Shortest)
			if err != nil {
				return str
			}
			re := regexp.MustCompile(rx)
			for i, elem := range elems {
				rs := []rune(elem)
				for ri, r := range rs {
					if re.MatchString(string(r)) {
						rs[ri] = caseFunc(r)
						if !all {
							break
						}
					}
				}
				elems[i] = string(rs)
			}
			str = strings.Join(elems, " ")
		}
	}
	return str
}

func removePattern(str, pat string, fromEnd, greedy bool) string {
	mode := pattern.Mode(0)
	if !greedy {
		mode |= pattern.Shortest
	}
	expr, err := pattern.Regexp(pat, mode)
	if err != nil {
		return str
	}
	if fromEnd {
		expr = "(" + expr + ")$"
	} else {
		expr = "^(" + expr + ")"
	}
	re := regexp.MustCompile(expr)
	if loc := re.FindStringSubmatchIndex(str); loc != nil {
		str = str[:loc[2]] + str[loc[3]:]
	}
	return str
}

func (c *Context) varStr(vr Variable, depth int) string {
	if depth > maxNameRefDepth {
		return ""
	}
	if vr.Kind == NameRef {
		vr = c.Env.Get(vr.Str)
		return c.varStr(vr, depth+1)
	}
	return vr.String()
}

func (c *Context) varIndex(ctx context.Context, vr Variable, idx *syntax.Index, depth int) string {
	if depth > maxNameRefDepth {
		return ""
	}
	lit := indexLit(idx)
	switch vr.Kind {
	case NameRef:
		vr = c.Env.Get(vr.Str)
		return c.varIndex(ctx, vr, idx, depth+1)
	case Indexed:
		switch lit {
		case "@":
			return strings.Join(vr.List, " ")
		case "*":
			return c.ifsJoin(vr.List)
		}
		i := c.ExpandArithm(ctx, idx.Word)
		if i >= 0 && i < len(vr.List) {
			return vr.List[i]
		}
		return ""
	case Associative:
		if lit == "@" || lit == "*" {
			var keys []string
			for k := range vr.Map {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			var strs []string
			for _, k := range keys {
				strs = append(strs, vr.Map[k])
			}
			if lit == "*" {
				return c.ifsJoin(strs)
			}
			return strings.Join(strs, " ")
		}
		return vr.Map[c.ExpandLiteral(ctx, idx.Word)]
	default:
		if c.ExpandArithm(ctx, idx.Word) == 0 {
			return vr.Str
		}
		return ""
	}
}

func (c *Context) namesByPrefix(prefix string) []string {
	var names []string
	c.Env.Each(func(name string, vr Variable) bool {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return true
	})
	return names
}

const maxNameRefDepth = 100
