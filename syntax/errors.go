package syntax

import "fmt"

// LexerError describes malformed input at a source position. The lexer
// does not build it: unterminated quotes and unterminated $(, ${, $((
// or [[ are reported as a *ParserError with Incomplete set.
type LexerError struct {
	Filename string
	Pos      Position
	Message  string
}

func (e *LexerError) Error() string {
	if e.Filename != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.Filename, e.Pos.Line, e.Pos.Column, e.Message)
	}
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// ParserError is returned when the token stream does not match the
// grammar. In non-interactive mode the shell exits 2 on any ParserError.
type ParserError struct {
	Filename string
	Pos      Position
	Message  string
	// Incomplete marks errors that are really "need more input": an
	// open quote, here-doc, brace, paren or a trailing backslash. The
	// interactive front end uses this to keep reading instead of
	// reporting a hard failure.
	Incomplete bool
}

func (e *ParserError) Error() string {
	if e.Filename != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.Filename, e.Pos.Line, e.Pos.Column, e.Message)
	}
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}
