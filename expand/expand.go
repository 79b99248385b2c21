// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/duskshell/dusk/pattern"
	"github.com/duskshell/dusk/syntax"
)

// Context holds the state a single expansion pass needs: the variable
// environment it reads and writes, the options that change expansion
// behavior (nullglob/globstar-style shopts), and the hooks the
// interpreter supplies for the two expansions that require running
// more shell code or opening file descriptors (command substitution
// and process substitution). A Context is cheap to construct and is
// rebuilt by the interpreter for every command it expands; the
// allocation pools below exist only to cut down on garbage across the
// many small field slices a typical expansion produces.
type Context struct {
	Env WriteEnviron

	NoGlob   bool
	GlobStar bool

	// Subshell runs cs.Stmts in a fresh subshell copy of the current
	// state and copies its stdout into w, for $(...) and `...`.
	Subshell func(ctx context.Context, w io.Writer, stmts []*syntax.Stmt)

	// ProcSubst opens a pipe or FIFO backing a <(...) / >(...)
	// expression and returns the path a child process should use,
	// such as /dev/fd/63.
	ProcSubst func(ctx context.Context, ps *syntax.ProcSubst) (string, error)

	// OnError reports a non-fatal expansion error, such as
	// ${var:?msg} on an unset variable. If nil, the error is raised as
	// a panic so it is never silently dropped.
	OnError func(error)

	bufferAlloc bytes.Buffer
	fieldAlloc  [4]fieldPart
	fieldsAlloc [4][]fieldPart

	ifs string
}

func (c *Context) prepareIFS() {
	vr := c.Env.Get("IFS")
	if !vr.IsSet() {
		c.ifs = " \t\n"
	} else {
		c.ifs = vr.String()
	}
}

func (c *Context) ifsRune(r rune) bool {
	for _, r2 := range c.ifs {
		if r == r2 {
			return true
		}
	}
	return false
}

func (c *Context) ifsJoin(strs []string) string {
	sep := ""
	if c.ifs != "" {
		sep = c.ifs[:1]
	}
	return strings.Join(strs, sep)
}

func (c *Context) err(err error) {
	if c.OnError == nil {
		panic(err)
	}
	c.OnError(err)
}

func (c *Context) strBuilder() *bytes.Buffer {
	b := &c.bufferAlloc
	b.Reset()
	return b
}

func (c *Context) envGet(name string) string {
	return c.Env.Get(name).String()
}

func (c *Context) envSet(name, value string) {
	c.Env.Set(name, Variable{Set: true, Kind: String, Str: value})
}

// ExpandLiteral expands word with no field splitting or pathname
// expansion: the form used for here-doc delimiters, case patterns'
// surrounding text, and the right-hand side of most parameter
// expansion operators.
func (c *Context) ExpandLiteral(ctx context.Context, word *syntax.Word) string {
	if word == nil {
		return ""
	}
	field := c.wordField(ctx, word.Parts, quoteDouble)
	return c.fieldJoin(field)
}

// ExpandFormat implements the printf-style conversions the printf
// builtin and the $'...' %b-less relatives need.
func (c *Context) ExpandFormat(format string, args []string) (string, int, error) {
	buf := c.strBuilder()
	esc := false
	var fmts []rune
	initialArgs := len(args)

	for _, r := range format {
		switch {
		case esc:
			esc = false
			switch r {
			case 'n':
				buf.WriteRune('\n')
			case 'r':
				buf.WriteRune('\r')
			case 't':
				buf.WriteRune('\t')
			case '\\':
				buf.WriteRune('\\')
			default:
				buf.WriteRune('\\')
				buf.WriteRune(r)
			}

		case len(fmts) > 0:
			switch r {
			case '%':
				buf.WriteByte('%')
				fmts = nil
			case 'c':
				var b byte
				if len(args) > 0 {
					arg := ""
					arg, args = args[0], args[1:]
					if len(arg) > 0 {
						b = arg[0]
					}
				}
				buf.WriteByte(b)
				fmts = nil
			case '+', '-', ' ':
				if len(fmts) > 1 {
					return "", 0, fmt.Errorf("invalid format char: %c", r)
				}
				fmts = append(fmts, r)
			case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
				fmts = append(fmts, r)
			case 's', 'd', 'i', 'u', 'o', 'x':
				arg := ""
				if len(args) > 0 {
					arg, args = args[0], args[1:]
				}
				var farg any = arg
				if r != 's' {
					n, _ := strconv.ParseInt(arg, 0, 0)
					if r == 'i' || r == 'd' {
						farg = int(n)
					} else {
						farg = uint(n)
					}
					if r == 'i' || r == 'u' {
						r = 'd'
					}
				}
				fmts = append(fmts, r)
				fmt.Fprintf(buf, string(fmts), farg)
				fmts = nil
			default:
				return "", 0, fmt.Errorf("invalid format char: %c", r)
			}
		case r == '\\':
			esc = true
		case args != nil && r == '%':
			fmts = []rune{r}
		default:
			buf.WriteRune(r)
		}
	}
	if len(fmts) > 0 {
		return "", 0, fmt.Errorf("missing format char")
	}
	return buf.String(), initialArgs - len(args), nil
}

func (c *Context) fieldJoin(parts []fieldPart) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0].val
	}
	buf := c.strBuilder()
	for _, part := range parts {
		buf.WriteString(part.val)
	}
	return buf.String()
}

func (c *Context) escapedGlobField(parts []fieldPart) (escaped string, hasGlob bool) {
	buf := c.strBuilder()
	for _, part := range parts {
		if part.quote > quoteNone {
			buf.WriteString(pattern.QuoteMeta(part.val, 0))
			continue
		}
		buf.WriteString(part.val)
		if pattern.HasMeta(part.val, 0) {
			hasGlob = true
		}
	}
	if hasGlob {
		escaped = buf.String()
	}
	return escaped, hasGlob
}

// ExpandFields performs the full word-expansion pipeline of spec §4.4:
// brace expansion, then per-word field splitting, then pathname
// expansion of any field that still contains an unquoted glob
// metacharacter.
func (c *Context) ExpandFields(ctx context.Context, words ...*syntax.Word) []string {
	c.prepareIFS()

	fields := make([]string, 0, len(words))
	dir := c.envGet("PWD")
	baseDir := pattern.QuoteMeta(dir, 0)
	for _, w := range words {
		for _, expWord := range Braces(w) {
			for _, field := range c.wordFields(ctx, expWord.Parts) {
				path, doGlob := c.escapedGlobField(field)
				var matches []string
				abs := filepath.IsAbs(path)
				if doGlob && !c.NoGlob {
					if !abs {
						path = filepath.Join(baseDir, path)
					}
					matches = globPath(path, c.GlobStar)
				}
				if len(matches) == 0 {
					fields = append(fields, c.fieldJoin(field))
					continue
				}
				for _, match := range matches {
					if !abs {
						endSeparator := strings.HasSuffix(match, string(filepath.Separator))
						match, _ = filepath.Rel(dir, match)
						if endSeparator {
							match += string(filepath.Separator)
						}
					}
					fields = append(fields, match)
				}
			}
		}
	}
	return fields
}

// ExpandPattern expands word the way a case arm or a [[ == ]] right-
// hand side does: like ExpandLiteral, but quoted text is pattern-
// escaped rather than left as plain characters, so that a quoted "*"
// matches a literal asterisk.
func (c *Context) ExpandPattern(ctx context.Context, word *syntax.Word) string {
	field := c.wordField(ctx, word.Parts, quoteSingle)
	buf := c.strBuilder()
	for _, part := range field {
		if part.quote > quoteNone {
			buf.WriteString(pattern.QuoteMeta(part.val, 0))
		} else {
			buf.WriteString(part.val)
		}
	}
	return buf.String()
}

type fieldPart struct {
	val   string
	quote quoteLevel
}

type quoteLevel uint

const (
	quoteNone quoteLevel = iota
	quoteDouble
	quoteSingle
)

func (c *Context) wordField(ctx context.Context, wps []syntax.WordPart, ql quoteLevel) []fieldPart {
	var field []fieldPart
	for i, wp := range wps {
		switch x := wp.(type) {
		case *syntax.Lit:
			s := x.Value
			if i == 0 {
				s = c.expandUser(s)
			}
			if ql == quoteDouble && strings.Contains(s, "\\") {
				s = unescapeDouble(c.strBuilder(), s)
			}
			field = append(field, fieldPart{val: s})
		case *syntax.SglQuoted:
			fp := fieldPart{quote: quoteSingle, val: x.Value}
			if x.Dollar {
				fp.val, _, _ = c.ExpandFormat(fp.val, nil)
			}
			field = append(field, fp)
		case *syntax.DblQuoted:
			for _, part := range c.wordField(ctx, x.Parts, quoteDouble) {
				part.quote = quoteDouble
				field = append(field, part)
			}
		case *syntax.ParamExp:
			field = append(field, fieldPart{val: c.paramExp(ctx, x)})
		case *syntax.CmdSubst:
			field = append(field, fieldPart{val: c.cmdSubst(ctx, x)})
		case *syntax.ArithmExp:
			field = append(field, fieldPart{val: strconv.Itoa(c.ExpandArithm(ctx, x.X))})
		case *syntax.ProcSubst:
			field = append(field, fieldPart{val: c.procSubst(ctx, x)})
		case *syntax.ExtGlob:
			field = append(field, fieldPart{val: string(x.Op) + "(" + x.Pattern.Value + ")"})
		default:
			panic(fmt.Sprintf("unhandled word part: %T", x))
		}
	}
	return field
}

func unescapeDouble(buf *bytes.Buffer, s string) string {
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '\n':
				i++
				continue
			case '"', '\\', '$', '`':
				continue
			}
		}
		buf.WriteByte(b)
	}
	return buf.String()
}

func (c *Context) cmdSubst(ctx context.Context, cs *syntax.CmdSubst) string {
	buf := c.strBuilder()
	c.Subshell(ctx, buf, cs.Stmts)
	return strings.TrimRight(buf.String(), "\n")
}

func (c *Context) procSubst(ctx context.Context, ps *syntax.ProcSubst) string {
	if c.ProcSubst == nil {
		return ""
	}
	path, err := c.ProcSubst(ctx, ps)
	if err != nil {
		c.err(err)
		return ""
	}
	return path
}

func (c *Context) wordFields(ctx context.Context, wps []syntax.WordPart) [][]fieldPart {
	fields := c.fieldsAlloc[:0]
	curField := c.fieldAlloc[:0]
	allowEmpty := false
	flush := func() {
		if len(curField) == 0 {
			return
		}
		fields = append(fields, curField)
		curField = nil
	}
	splitAdd := func(val string) {
		for i, field := range strings.FieldsFunc(val, c.ifsRune) {
			if i > 0 {
				flush()
			}
			curField = append(curField, fieldPart{val: field})
		}
	}
	for i, wp := range wps {
		switch x := wp.(type) {
		case *syntax.Lit:
			s := x.Value
			if i == 0 {
				s = c.expandUser(s)
			}
			if strings.Contains(s, "\\") {
				buf := c.strBuilder()
				for j := 0; j < len(s); j++ {
					b := s[j]
					if b == '\\' {
						j++
						if j < len(s) {
							b = s[j]
						}
					}
					buf.WriteByte(b)
				}
				s = buf.String()
			}
			curField = append(curField, fieldPart{val: s})
		case *syntax.SglQuoted:
			allowEmpty = true
			fp := fieldPart{quote: quoteSingle, val: x.Value}
			if x.Dollar {
				fp.val, _, _ = c.ExpandFormat(fp.val, nil)
			}
			curField = append(curField, fp)
		case *syntax.DblQuoted:
			allowEmpty = true
			if len(x.Parts) == 1 {
				pe, _ := x.Parts[0].(*syntax.ParamExp)
				if elems := c.quotedElems(pe); elems != nil {
					for i, elem := range elems {
						if i > 0 {
							flush()
						}
						curField = append(curField, fieldPart{quote: quoteDouble, val: elem})
					}
					continue
				}
			}
			for _, part := range c.wordField(ctx, x.Parts, quoteDouble) {
				part.quote = quoteDouble
				curField = append(curField, part)
			}
		case *syntax.ParamExp:
			splitAdd(c.paramExp(ctx, x))
		case *syntax.CmdSubst:
			splitAdd(c.cmdSubst(ctx, x))
		case *syntax.ArithmExp:
			curField = append(curField, fieldPart{val: strconv.Itoa(c.ExpandArithm(ctx, x.X))})
		case *syntax.ProcSubst:
			curField = append(curField, fieldPart{val: c.procSubst(ctx, x)})
		case *syntax.ExtGlob:
			curField = append(curField, fieldPart{val: string(x.Op) + "(" + x.Pattern.Value + ")"})
		default:
			panic(fmt.Sprintf("unhandled word part: %T", x))
		}
	}
	flush()
	if allowEmpty && len(fields) == 0 {
		fields = append(fields, curField)
	}
	return fields
}

// quotedElems checks if a parameter expansion is exactly "${@}" or
// "${foo[@]}", the two cases where double-quoting splits into several
// separately-quoted fields instead of joining into one.
func (c *Context) quotedElems(pe *syntax.ParamExp) []string {
	if pe == nil || pe.Excl || pe.Length {
		return nil
	}
	if pe.Param.Value == "@" {
		vr := c.Env.Get("@")
		return vr.List
	}
	if indexLit(pe.Index) != "@" {
		return nil
	}
	vr := c.Env.Get(pe.Param.Value)
	if vr.Kind == Indexed {
		return vr.List
	}
	return nil
}

func (c *Context) expandUser(field string) string {
	if len(field) == 0 || field[0] != '~' {
		return field
	}
	name := field[1:]
	rest := ""
	if i := strings.Index(name, "/"); i >= 0 {
		rest = name[i:]
		name = name[:i]
	}
	if name == "" {
		return c.Env.Get("HOME").String() + rest
	}
	u, err := user.Lookup(name)
	if err != nil {
		return field
	}
	return u.HomeDir + rest
}

func findAllIndex(pat, name string, n int) [][]int {
	expr, err := pattern.Regexp(pat, 0)
	if err != nil {
		return nil
	}
	re := regexp.MustCompile(expr)
	return re.FindAllStringIndex(name, n)
}

// globPath expands an absolute glob pattern against the filesystem,
// delegating to package pattern's doublestar-backed Glob instead of
// the walk-one-segment-at-a-time approach an earlier draft of this
// expander used, so that "**" gets doublestar's real recursive
// globstar semantics rather than an approximation. When the globstar
// shopt is off, "**" is first collapsed to "*" so it behaves like bash
// does without the option: matching within one path segment only.
func globPath(path string, globStar bool) []string {
	rel := strings.TrimPrefix(filepath.ToSlash(path), "/")
	patSegs := strings.Split(rel, "/")
	if !globStar {
		rel = strings.ReplaceAll(rel, "**", "*")
	}
	matches, err := pattern.Glob(os.DirFS("/"), rel)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if hiddenMismatch(patSegs, strings.Split(m, "/")) {
			continue
		}
		out = append(out, "/"+m)
	}
	sort.Strings(out)
	return out
}

// hiddenMismatch reports whether a glob match contains a dotfile path
// segment that wasn't explicitly asked for: bash's pathname expansion
// never matches a leading "." unless the corresponding pattern segment
// itself starts with one.
func hiddenMismatch(patSegs, nameSegs []string) bool {
	for i, name := range nameSegs {
		if !strings.HasPrefix(name, ".") {
			continue
		}
		if i >= len(patSegs) {
			return true
		}
		if !strings.HasPrefix(patSegs[i], ".") {
			return true
		}
	}
	return false
}

// ReadFields splits s on IFS the way the read builtin does: up to n
// fields (the last absorbing any remainder), honoring backslash
// escapes unless raw is set (read -r).
func (c *Context) ReadFields(s string, n int, raw bool) []string {
	c.prepareIFS()
	type pos struct{ start, end int }
	var fpos []pos

	runes := make([]rune, 0, len(s))
	infield := false
	esc := false
	for _, r := range s {
		if infield {
			if c.ifsRune(r) && (raw || !esc) {
				fpos[len(fpos)-1].end = len(runes)
				infield = false
			}
		} else {
			if !c.ifsRune(r) && (raw || !esc) {
				fpos = append(fpos, pos{start: len(runes), end: -1})
				infield = true
			}
		}
		if r == '\\' {
			if raw || esc {
				runes = append(runes, r)
			}
			esc = !esc
			continue
		}
		runes = append(runes, r)
		esc = false
	}
	if len(fpos) == 0 {
		return nil
	}
	if infield {
		fpos[len(fpos)-1].end = len(runes)
	}

	switch {
	case n == 1:
		fpos[0].start, fpos[0].end = 0, len(runes)
		fpos = fpos[:1]
	case n != -1 && n < len(fpos):
		fpos[n-1].end = fpos[len(fpos)-1].end
		fpos = fpos[:n]
	}

	fields := make([]string, len(fpos))
	for i, p := range fpos {
		fields[i] = string(runes[p.start:p.end])
	}
	return fields
}
