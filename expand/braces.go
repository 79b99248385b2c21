// Copyright (c) 2018, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"strconv"
	"strings"

	"github.com/duskshell/dusk/syntax"
)

// Braces performs brace expansion on a word. There is no dedicated AST
// node for {a,b} or {1..5}: the grammar treats the braces as ordinary
// literal text, and expansion rewrites the Lit segment that contains
// them into several sibling words, the same way pathname expansion
// turns one word into several later in the pipeline. This keeps brace
// expansion a pure text transform with no parser involvement, which
// matches how little the construct has to do with quoting or
// expansion ordering: bash performs it textually, before any other
// expansion, directly on the source word.
//
// Malformed brace expressions are left alone rather than rejected, so
// "a{b{c,d}" expands to "a{bc" and "a{bd", matching bash.
func Braces(word *syntax.Word) []*syntax.Word {
	return braceExpand(word)
}

func braceExpand(word *syntax.Word) []*syntax.Word {
	for i, part := range word.Parts {
		lit, ok := part.(*syntax.Lit)
		if !ok {
			continue
		}
		open := braceOpen(lit.Value)
		if open < 0 {
			continue
		}
		close, alts := braceAlts(lit.Value, open)
		if close < 0 || len(alts) == 0 {
			continue
		}
		var out []*syntax.Word
		for _, alt := range alts {
			parts := make([]syntax.WordPart, 0, len(word.Parts))
			parts = append(parts, word.Parts[:i]...)
			head := lit.Value[:open]
			tail := lit.Value[close+1:]
			parts = append(parts, &syntax.Lit{ValuePos: lit.ValuePos, Value: head + alt + tail})
			parts = append(parts, word.Parts[i+1:]...)
			out = append(out, braceExpand(&syntax.Word{Parts: parts})...)
		}
		return out
	}
	return []*syntax.Word{word}
}

// braceOpen finds the first '{' that could begin a brace expression,
// i.e. is eventually followed by a matching '}' containing a ',' or
// '..' at the same nesting depth.
func braceOpen(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		if close, _ := braceAlts(s, i); close >= 0 {
			return i
		}
	}
	return -1
}

// braceAlts finds the '}' matching the '{' at open and returns the
// literal alternatives it spells, or close=-1 if it does not contain a
// valid brace expression.
func braceAlts(s string, open int) (close int, alts []string) {
	depth := 0
	start := open + 1
	var parts []string
	hasComma := false
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				parts = append(parts, s[start:i])
				if !hasComma && len(parts) == 1 {
					if seq := braceSequence(parts[0]); seq != nil {
						return i, seq
					}
					return -1, nil
				}
				return i, parts
			}
		case ',':
			if depth == 1 {
				parts = append(parts, s[start:i])
				start = i + 1
				hasComma = true
			}
		}
	}
	return -1, nil
}

// braceSequence recognizes {x..y} and {x..y..incr} numeric or
// single-letter range expressions.
func braceSequence(s string) []string {
	fields := strings.Split(s, "..")
	if len(fields) != 2 && len(fields) != 3 {
		return nil
	}
	incr := 1
	if len(fields) == 3 {
		n, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil
		}
		if n == 0 {
			n = 1
		}
		incr = n
	}
	if len(fields[0]) == 1 && len(fields[1]) == 1 && isLetterByte(fields[0][0]) && isLetterByte(fields[1][0]) {
		from, to := rune(fields[0][0]), rune(fields[1][0])
		if incr < 0 {
			incr = -incr
		}
		var out []string
		if from <= to {
			for r := from; r <= to; r += rune(incr) {
				out = append(out, string(r))
			}
		} else {
			for r := from; r >= to; r -= rune(incr) {
				out = append(out, string(r))
			}
		}
		return out
	}
	from, err1 := strconv.Atoi(fields[0])
	to, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		return nil
	}
	width := 0
	if strings.HasPrefix(fields[0], "0") && len(fields[0]) > 1 {
		width = len(fields[0])
	}
	if strings.HasPrefix(fields[1], "0") && len(fields[1]) > 1 && len(fields[1]) > width {
		width = len(fields[1])
	}
	if incr < 0 {
		incr = -incr
	}
	var out []string
	fmtInt := func(n int) string {
		str := strconv.Itoa(n)
		if width > 0 {
			neg := strings.HasPrefix(str, "-")
			if neg {
				str = str[1:]
			}
			for len(str) < width {
				str = "0" + str
			}
			if neg {
				str = "-" + str
			}
		}
		return str
	}
	if from <= to {
		for n := from; n <= to; n += incr {
			out = append(out, fmtInt(n))
		}
	} else {
		for n := from; n >= to; n -= incr {
			out = append(out, fmtInt(n))
		}
	}
	return out
}

func isLetterByte(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
