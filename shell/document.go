// Copyright (c) 2018, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package shell

import (
	"fmt"
	"strings"

	"github.com/duskshell/dusk/syntax"
)

// wordFromDocument parses s as a single word the way an unquoted
// here-document body is parsed: parameter and arithmetic expansions keep
// their meaning, a backslash escapes only $, a backtick, another
// backslash, or a trailing newline, and everything else - including
// whitespace - is literal. Command substitutions are rejected, since
// Expand and Fields must not run arbitrary programs.
func wordFromDocument(s string) (*syntax.Word, error) {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteByte('\\')
			if i+1 < len(s) {
				b.WriteByte(s[i+1])
				i++
			}
		default:
			b.WriteByte(s[i])
		}
	}
	b.WriteByte('"')
	b.WriteByte('\n')

	p := syntax.NewParser()
	file, err := p.Parse(strings.NewReader(b.String()), "")
	if err != nil {
		return nil, err
	}
	word := firstWord(file)
	if word == nil {
		return &syntax.Word{}, nil
	}
	// The synthetic leading quote shifts every first-line column by one.
	if err := rejectCmdSubst(file, word, -1); err != nil {
		return nil, err
	}
	return word, nil
}

// wordsFromFields parses s the way a simple command's argument list is
// parsed: unquoted whitespace separates fields, quoting groups them.
// Multiple top-level statements are flattened, since Fields is only
// concerned with the resulting words, not control flow.
func wordsFromFields(s string) ([]*syntax.Word, error) {
	p := syntax.NewParser()
	file, err := p.Parse(strings.NewReader(s), "")
	if err != nil {
		return nil, err
	}
	var words []*syntax.Word
	for _, st := range file.Stmts {
		ce, ok := st.Cmd.(*syntax.CallExpr)
		if !ok {
			continue
		}
		words = append(words, ce.Args...)
	}
	for _, w := range words {
		if err := rejectCmdSubst(file, w, 0); err != nil {
			return nil, err
		}
	}
	return words, nil
}

func firstWord(file *syntax.File) *syntax.Word {
	if len(file.Stmts) == 0 {
		return nil
	}
	ce, ok := file.Stmts[0].Cmd.(*syntax.CallExpr)
	if !ok || len(ce.Args) == 0 {
		return nil
	}
	return ce.Args[0]
}

// colShift compensates for the synthetic wrapping wordFromDocument adds
// around the input before reparsing it; it only holds for positions on
// line 1, which covers every practical use of Expand/Fields.
func rejectCmdSubst(file *syntax.File, w *syntax.Word, colShift int) error {
	report := func(left syntax.Pos) error {
		pos := file.Position(left)
		if pos.Line == 1 {
			pos.Column += colShift
		}
		return fmt.Errorf("unexpected command substitution at %d:%d", pos.Line, pos.Column)
	}
	for _, part := range w.Parts {
		if cs, ok := part.(*syntax.CmdSubst); ok {
			return report(cs.Left)
		}
		if dq, ok := part.(*syntax.DblQuoted); ok {
			for _, inner := range dq.Parts {
				if cs, ok := inner.(*syntax.CmdSubst); ok {
					return report(cs.Left)
				}
			}
		}
	}
	return nil
}
