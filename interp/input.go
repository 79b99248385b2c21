// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/duskshell/dusk/syntax"
)

// InputSource is the interactive front end's external collaborator: a
// source of command-line text. ReadLine returns "", io.EOF at EOF.
type InputSource interface {
	ReadLine() (string, error)
	IsInteractive() bool
	Name() string
}

// FileInputSource reads lines from an arbitrary reader, such as a script
// file or a pipe.
type FileInputSource struct {
	name string
	r    *bufio.Reader
}

// NewFileInputSource wraps r as a non-interactive InputSource.
func NewFileInputSource(name string, r io.Reader) *FileInputSource {
	return &FileInputSource{name: name, r: bufio.NewReader(r)}
}

func (f *FileInputSource) ReadLine() (string, error) {
	line, err := f.r.ReadString('\n')
	if line == "" && err != nil {
		return "", err
	}
	return line, nil
}

func (f *FileInputSource) IsInteractive() bool { return false }
func (f *FileInputSource) Name() string        { return f.name }

// StringInputSource hands back a fixed command string, one call, no
// continuation lines — used for `-c command`.
type StringInputSource struct {
	body string
	used bool
}

func NewStringInputSource(body string) *StringInputSource {
	return &StringInputSource{body: body}
}

func (s *StringInputSource) ReadLine() (string, error) {
	if s.used {
		return "", io.EOF
	}
	s.used = true
	return s.body, nil
}

func (s *StringInputSource) IsInteractive() bool { return false }
func (s *StringInputSource) Name() string        { return "" }

// MultiLineInputHandler feeds an InputSource's lines to a parser that may
// report "need more input" (an open quote, here-doc, brace, paren, a
// trailing backslash, or an incomplete control structure), accumulating
// lines into one buffer until a complete command is parsed. The buffer
// returned alongside the parsed statements is what the caller should
// record as a single history entry, even though it spans several lines.
type MultiLineInputHandler struct {
	Source InputSource
	Parser *syntax.Parser

	// PS1 and PS2 are the primary and continuation prompts; either may
	// be a fixed string or produced by expanding $PS1/$PS2 before each
	// call to Next.
	PS1, PS2 string

	// Prompt is called before each line is read, with the prompt text
	// to display. A nil Prompt means no prompts are shown, which suits
	// non-interactive sources.
	Prompt func(s string)
}

// Next reads and parses one complete top-level statement list, returning
// io.EOF once the source is exhausted without producing any more input.
func (m *MultiLineInputHandler) Next() (stmts []*syntax.Stmt, raw string, err error) {
	var buf strings.Builder
	prompt := m.PS1
	for {
		if m.Prompt != nil {
			m.Prompt(prompt)
		}
		line, rerr := m.Source.ReadLine()
		buf.WriteString(line)
		if line == "" && rerr != nil {
			if rerr == io.EOF && buf.Len() > 0 {
				rerr = fmt.Errorf("%s: unexpected EOF", m.Source.Name())
			}
			return nil, buf.String(), rerr
		}
		file, perr := m.Parser.ParseBytes([]byte(buf.String()), m.Source.Name())
		if perr != nil {
			if m.Parser.Incomplete() && rerr == nil {
				prompt = m.PS2
				continue
			}
			return nil, buf.String(), perr
		}
		return file.Stmts, buf.String(), nil
	}
}
