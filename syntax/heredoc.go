package syntax

import (
	"strings"

	"github.com/duskshell/dusk/token"
)

// drainPendingHeredocs fills in the Hdoc body of every here-doc redirect
// queued in p.pendingHeredocs, reading from p.off forward. Per spec
// §3.4, a here-doc body is the text following the newline that ends the
// command line carrying the "<<"/"<<-" operator, up to a line that is
// exactly the delimiter (leading tabs stripped first when the operator
// is "<<-"). The lexer calls this immediately after it scans that
// terminating newline, which is why p.off is already the right place
// to start reading: this keeps the whole parse a single left-to-right
// pass over p.src rather than a second pass keyed off remembered
// offsets, matching how the teacher's own parser interleaves heredoc
// collection with ordinary token scanning instead of deferring it.
func (p *Parser) drainPendingHeredocs() {
	if len(p.pendingHeredocs) == 0 {
		return
	}
	off := p.off
	for _, r := range p.pendingHeredocs {
		delim, quoted := heredocDelimiter(r.Word)
		r.HdocQuoted = quoted
		stripTabs := r.Op == token.DHeredoc
		body, next, err := scanHeredocBody(p.src, off, delim, stripTabs)
		if err != nil {
			p.posErr(r.Pos(), true, err.Error())
			p.pendingHeredocs = nil
			return
		}
		r.Hdoc = &Word{Parts: []WordPart{&Lit{Value: body}}}
		off = next
	}
	p.pendingHeredocs = nil
	p.off = off
}

// collectHeredocs is the ParseBytes-time safety net: any here-doc whose
// delimiter line never arrived by EOF is reported as an incomplete
// parse rather than silently losing the redirect's body.
func (p *Parser) collectHeredocs() error {
	p.drainPendingHeredocs()
	if p.err != nil {
		return p.err
	}
	return nil
}

func heredocDelimiter(w *Word) (delim string, quoted bool) {
	var b strings.Builder
	quoted = false
	for _, part := range w.Parts {
		switch v := part.(type) {
		case *Lit:
			b.WriteString(v.Value)
		case *SglQuoted:
			quoted = true
			b.WriteString(v.Value)
		case *DblQuoted:
			quoted = true
			for _, p2 := range v.Parts {
				if l, ok := p2.(*Lit); ok {
					b.WriteString(l.Value)
				}
			}
		}
	}
	return b.String(), quoted
}

// scanHeredocBody reads lines starting at start until one equals delim
// exactly (after stripping leading tabs when stripTabs is set),
// returning the body text and the offset right after the delimiter
// line.
func scanHeredocBody(src []byte, start int, delim string, stripTabs bool) (string, int, error) {
	i := start
	var body strings.Builder
	for {
		lineStart := i
		for i < len(src) && src[i] != '\n' {
			i++
		}
		line := string(src[lineStart:i])
		hadNewline := i < len(src)
		if hadNewline {
			i++
		}
		cmp := line
		if stripTabs {
			cmp = strings.TrimLeft(line, "\t")
		}
		if cmp == delim {
			return body.String(), i, nil
		}
		if stripTabs {
			line = strings.TrimLeft(line, "\t")
		}
		body.WriteString(line)
		if hadNewline {
			body.WriteByte('\n')
		}
		if !hadNewline {
			return body.String(), i, errUnterminatedHeredoc(delim)
		}
	}
}

type heredocError string

func (e heredocError) Error() string { return string(e) }

func errUnterminatedHeredoc(delim string) error {
	return heredocError("here-document delimiter '" + delim + "' not found before EOF")
}
