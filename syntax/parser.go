package syntax

import (
	"bufio"
	"fmt"
	"io"

	"github.com/duskshell/dusk/token"
)

// LangVariant names a grammar dialect, mirroring the teacher's own
// Bash/POSIX/MirBSDKorn split. The parser records the variant but does
// not consult it: every variant parses the same superset grammar,
// including [[ ]], arrays, $'' and process substitution.
type LangVariant int

const (
	LangBash LangVariant = iota
	LangPOSIX
	LangMirBSDKorn
)

// ParserOption configures a Parser returned by NewParser.
type ParserOption func(*Parser)

// Variant records the grammar dialect. LangBash is the default.
func Variant(l LangVariant) ParserOption {
	return func(p *Parser) { p.lang = l }
}

// KeepComments records whether comments should be kept. The parser
// stores the flag but does not consult it: comments are skipped during
// lexing either way, and no AST node carries them.
func KeepComments(keep bool) ParserOption {
	return func(p *Parser) { p.keepComments = keep }
}

// Parser turns shell source into an AST. A Parser combines the lexer and
// the recursive-descent/Pratt parser because both stages need to share
// quote-state and paren-depth bookkeeping as they advance through the
// same byte stream; splitting them into independent types would just
// mean threading that state across a second interface.
type Parser struct {
	lang         LangVariant
	keepComments bool

	f    *File
	name string
	src  []byte
	off  int // current byte offset into src

	tok     token.Token
	tokPos  Pos
	val     string // literal text / operator spelling for the current token
	word    *Word  // populated when tok is Lit/LitWord

	// peeked holds a single token of lookahead, used by statement-level
	// grammar rules that must decide between e.g. a simple command and
	// a compound command after seeing one word.
	hasPeek bool
	peekTok token.Token
	peekPos Pos
	peekVal string
	peekWord *Word

	// arithDepth counts open (( arithmetic commands, so that )) is read
	// as the closing token only inside one.
	arithDepth int

	// atCmdStart is true at a position where a reserved word may be
	// recognized: start of input, or right after ; & \n | && || then
	// do else elif ! { (.
	atCmdStart bool

	// inTestExpr is set while scanning the body of [[ ... ]], where
	// < > ( ) are literal word characters (operand/grouping tokens of
	// the test grammar) rather than redirection/subshell operators.
	inTestExpr bool

	// err is the first parse error encountered; once set, further
	// parsing methods return immediately.
	err *ParserError

	// pendingHeredocs lists here-doc redirects (in source order) that
	// still need their bodies collected once parsing reaches the next
	// newline, per the "collected before execution" rule in spec §3.4.
	pendingHeredocs []*Redirect

	incomplete bool // set when err indicates the input is just unfinished
}

// NewParser creates a Parser. Apply ParserOptions to change its dialect.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{lang: LangBash, atCmdStart: true}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse reads r fully and parses it as a complete program.
func (p *Parser) Parse(r io.Reader, name string) (*File, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return p.ParseBytes(src, name)
}

// ParseBytes parses an already-read buffer. The input preprocessor
// (StripEscapedNewlines) is applied here, once, before lexing.
func (p *Parser) ParseBytes(src []byte, name string) (*File, error) {
	p.reset()
	p.name = name
	p.src = StripEscapedNewlines(src)
	p.computeLines()
	p.next()
	stmts := p.stmtList(nil)
	if p.err != nil {
		return nil, p.err
	}
	if err := p.collectHeredocs(); err != nil {
		return nil, err
	}
	p.f.Stmts = stmts
	return p.f, nil
}

func (p *Parser) reset() {
	p.f = &File{Name: p.name}
	p.off = 0
	p.hasPeek = false
	p.atCmdStart = true
	p.err = nil
	p.incomplete = false
	p.pendingHeredocs = nil
}

func (p *Parser) computeLines() {
	lines := []int{0}
	for i, b := range p.src {
		if b == '\n' {
			lines = append(lines, i+1)
		}
	}
	p.f.lines = lines
}

// Incomplete reports whether the last parse error means "need more
// input" rather than a hard syntax error, for use by an interactive
// front end that wants to keep appending lines until a statement is
// complete (spec §4.8/§9).
func (p *Parser) Incomplete() bool { return p.incomplete }

// InteractiveStmts parses one top-level statement list at a time from r,
// calling fn after each complete, here-doc-resolved batch of statements
// becomes available; it stops at EOF or when fn returns false. This
// mirrors the teacher's InteractiveSeq: each line the reader hands back
// is fed to the same incremental parser state, and a ParserError with
// Incomplete set means "ask for one more line, don't report a failure".
func (p *Parser) InteractiveStmts(r *bufio.Reader, fn func([]*Stmt) bool) error {
	p.reset()
	var buf []byte
	for {
		line, err := r.ReadBytes('\n')
		buf = append(buf, line...)
		if len(line) == 0 && err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		f, perr := p.ParseBytes(buf, p.name)
		if perr != nil {
			var pe *ParserError
			if ok := asParserError(perr, &pe); ok && pe.Incomplete {
				if err == io.EOF {
					return pe
				}
				continue // ask the caller for one more line
			}
			return perr
		}
		buf = buf[:0]
		if !fn(f.Stmts) {
			return nil
		}
	}
}

func asParserError(err error, target **ParserError) bool {
	pe, ok := err.(*ParserError)
	if ok {
		*target = pe
	}
	return ok
}

func (p *Parser) posErr(pos Pos, incomplete bool, format string, a ...any) {
	if p.err != nil {
		return
	}
	e := &ParserError{
		Filename:   p.name,
		Pos:        p.f.Position(pos),
		Message:    fmt.Sprintf(format, a...),
		Incomplete: incomplete,
	}
	p.err = e
	p.incomplete = incomplete
}

func (p *Parser) curErr(format string, a ...any) {
	p.posErr(p.tokPos, false, format, a...)
}

func (p *Parser) failed() bool { return p.err != nil }
