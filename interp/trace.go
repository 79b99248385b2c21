// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"bytes"
	"strings"
)

// tracer accumulates one `set -x` trace line per simple command and
// flushes it to stderr, prefixed by PS4, once the statement finishes.
// Unlike the upstream pretty-printer this only traces simple commands:
// reproducing bash's full compound-statement trace would mean carrying
// along a source-printer for every syntax.Command node, which is out of
// scope here.
type tracer struct {
	r   *Runner
	buf bytes.Buffer
}

func (r *Runner) tracer() *tracer {
	if !r.opts[optXTrace] {
		return nil
	}
	return &tracer{r: r}
}

// call records one simple-command invocation for the trace line; a nil
// receiver is the common case when xtrace is off, so callers don't need
// to check the option themselves.
func (tr *tracer) call(name string, args ...string) {
	if tr == nil {
		return
	}
	tr.buf.WriteString(name)
	for _, a := range args {
		tr.buf.WriteByte(' ')
		tr.buf.WriteString(quoteTraceField(a))
	}
	tr.buf.WriteByte('\n')
}

func (tr *tracer) flush() {
	if tr == nil || tr.buf.Len() == 0 {
		return
	}
	ps4 := tr.r.getVar("PS4")
	if ps4 == "" {
		ps4 = "+ "
	}
	for _, line := range strings.Split(strings.TrimSuffix(tr.buf.String(), "\n"), "\n") {
		tr.r.errf("%s%s\n", ps4, line)
	}
}

func quoteTraceField(s string) string {
	if s == "" {
		return "''"
	}
	needsQuote := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\'', '"', '$', '\\', '*', '?', '[', '|', ';', '&', '<', '>', '(', ')', '`':
			needsQuote = true
		}
	}
	if !needsQuote {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
