// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package main

import (
	"errors"
	"io"

	"github.com/chzyer/readline"

	"github.com/duskshell/dusk/interp"
)

// readlineInputSource is the interactive InputSource (spec §4.8): line
// editing and history recall on top of a real terminal, backed by
// github.com/chzyer/readline.
type readlineInputSource struct {
	name string
	rl   *readline.Instance
}

// newReadlineInputSource builds an interactive InputSource. history is
// loaded into the line editor's own recall buffer up front; Save is left
// to interp.History, which is the canonical store the `history` builtin
// and HISTFILE persistence use.
func newReadlineInputSource(name, prompt string, history []string) (*readlineInputSource, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}
	for _, line := range history {
		rl.SaveHistory(line)
	}
	return &readlineInputSource{name: name, rl: rl}, nil
}

func (r *readlineInputSource) ReadLine() (string, error) {
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		// An interrupted line is discarded, not EOF; the caller starts
		// the next prompt fresh.
		return "", nil
	}
	if err == io.EOF {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	return line + "\n", nil
}

func (r *readlineInputSource) IsInteractive() bool { return true }
func (r *readlineInputSource) Name() string        { return r.name }

func (r *readlineInputSource) setPrompt(p string) {
	r.rl.SetPrompt(p)
}

func (r *readlineInputSource) Close() error {
	return r.rl.Close()
}

var _ interp.InputSource = (*readlineInputSource)(nil)
