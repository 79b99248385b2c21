// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// History holds the in-memory command log and, when HISTFILE names a
// path, persists it between sessions. New file: the teacher targets
// embedding and has no interactive history of its own.
package interp

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
)

// History is the shell's command history, shared between the
// `history` builtin and an interactive front-end's recall.
type History struct {
	Path    string
	MaxSize int

	lines []string
}

// NewHistory builds a History backed by path, loading any existing
// entries; a load failure is non-fatal, matching bash's behavior of
// starting with an empty history rather than refusing to start.
func NewHistory(path string, maxSize int) *History {
	h := &History{Path: path, MaxSize: maxSize}
	if path == "" {
		return h
	}
	f, err := os.Open(path)
	if err != nil {
		return h
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		h.lines = append(h.lines, scanner.Text())
	}
	h.trim()
	return h
}

// Add appends a command line to history, skipping consecutive
// duplicates the way bash's HISTCONTROL=ignoredups does by default.
func (h *History) Add(line string) {
	line = strings.TrimRight(line, "\n")
	if line == "" {
		return
	}
	if n := len(h.lines); n > 0 && h.lines[n-1] == line {
		return
	}
	h.lines = append(h.lines, line)
	h.trim()
}

func (h *History) trim() {
	if h.MaxSize > 0 && len(h.lines) > h.MaxSize {
		h.lines = h.lines[len(h.lines)-h.MaxSize:]
	}
}

// All returns every remembered line, oldest first.
func (h *History) All() []string {
	return h.lines
}

// Save persists the history to Path using a rename-into-place write, so
// a crash mid-write never corrupts the file a concurrent shell might
// also be reading.
func (h *History) Save() error {
	if h.Path == "" {
		return nil
	}
	var sb strings.Builder
	for _, l := range h.lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return renameio.WriteFile(h.Path, []byte(sb.String()), 0o600)
}

// historyBuiltin implements the `history` builtin: with no arguments it
// lists every entry, and `history -c` clears it.
func (r *Runner) historyBuiltin(args []string) exitStatus {
	if r.History == nil {
		r.History = NewHistory("", 500)
	}
	if len(args) == 1 && args[0] == "-c" {
		r.History.lines = nil
		return exitStatus{}
	}
	n := len(r.History.lines)
	if len(args) == 1 {
		if v, err := strconv.Atoi(args[0]); err == nil && v > 0 && v < n {
			n = v
		}
	}
	start := len(r.History.lines) - n
	for i := start; i < len(r.History.lines); i++ {
		fmt.Fprintf(r.stdout, "%5d  %s\n", i+1, r.History.lines[i])
	}
	return exitStatus{}
}
