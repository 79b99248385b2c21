// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// dusk is an interactive, POSIX-compatible shell built on top of
// [github.com/duskshell/dusk/interp].
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/duskshell/dusk/fileutil"
	"github.com/duskshell/dusk/interp"
	"github.com/duskshell/dusk/syntax"
)

// version is overridden at release build time via -ldflags.
var version = "dev"

type flags struct {
	command     string
	stdin       bool
	interactive bool
	norc        bool
	rcfile      string
	debugAST    bool
	debugTokens bool
}

func main() {
	err := rootRun()
	if err == nil {
		return
	}
	if _, ok := interp.IsExitStatus(err); !ok {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCodeFor(err))
}

// rootRun builds and executes the cobra command tree, returning whatever
// error the chosen run mode produced.
func rootRun() error {
	var f flags
	root := &cobra.Command{
		Use:           "dusk [options] [script [args...]]",
		Short:         "dusk is a POSIX-compatible interactive shell",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAll(f, args)
		},
	}
	root.Flags().StringVarP(&f.command, "command", "c", "", "execute the given command")
	root.Flags().BoolVarP(&f.stdin, "stdin", "s", false, "read the script from stdin")
	root.Flags().BoolVarP(&f.interactive, "interactive", "i", false, "force interactive mode")
	root.Flags().BoolVar(&f.norc, "norc", false, "skip loading the rc file")
	root.Flags().StringVar(&f.rcfile, "rcfile", "", "path to an rc file, instead of ~/.duskrc")
	root.Flags().BoolVar(&f.debugAST, "debug-ast", false, "dump each parsed command's syntax tree")
	root.Flags().BoolVar(&f.debugTokens, "debug-tokens", false, "dump each parsed command's literal tokens")
	root.SetVersionTemplate("dusk version {{.Version}}\n")

	return root.Execute()
}

// exitCodeFor maps a run error to the exit status spec §6 names: the
// status of the last command (carried in an exitStatus error), 2 for a
// parser error, 1 for a lexer error or anything else.
func exitCodeFor(err error) int {
	if code, ok := interp.IsExitStatus(err); ok {
		return int(code)
	}
	var lerr *syntax.LexerError
	if errors.As(err, &lerr) {
		return 1
	}
	var perr *syntax.ParserError
	if errors.As(err, &perr) {
		return 2
	}
	return 1
}

func runAll(f flags, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var scriptArgs []string
	if len(args) > 1 {
		scriptArgs = args[1:]
	}

	opts := []interp.RunnerOption{
		interp.StdIO(os.Stdin, os.Stdout, os.Stderr),
		interp.Params(scriptArgs...),
	}

	interactive := f.interactive
	if f.command == "" && !f.stdin && len(args) == 0 {
		interactive = interactive || term.IsTerminal(int(os.Stdin.Fd()))
	}
	opts = append(opts, interp.Interactive(interactive))

	r, err := interp.New(opts...)
	if err != nil {
		return err
	}
	r.History = interp.NewHistory(histfilePath(), histSize())
	r.Jobs.Claim(interactive)

	if interactive && !f.norc {
		if err := loadRC(ctx, r, rcfilePath(f.rcfile)); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}

	switch {
	case f.command != "":
		return runSource(ctx, r, f, interp.NewStringInputSource(f.command))
	case interactive:
		return runInteractive(ctx, r, f)
	case f.stdin || len(args) == 0:
		return runSource(ctx, r, f, interp.NewFileInputSource("", os.Stdin))
	default:
		path := args[0]
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		if info, err := src.Stat(); err == nil && fileutil.CouldBeScript(info) == fileutil.ConfNotScript {
			fmt.Fprintf(os.Stderr, "dusk: warning: %s doesn't look like a shell script\n", path)
		}
		return runSource(ctx, r, f, interp.NewFileInputSource(path, src))
	}
}

// runSource parses and runs every complete statement list that in comes
// up with, stopping at the first error or at EOF.
func runSource(ctx context.Context, r *interp.Runner, f flags, in interp.InputSource) error {
	h := &interp.MultiLineInputHandler{
		Source: in,
		Parser: syntax.NewParser(),
	}
	for {
		stmts, _, err := h.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if len(stmts) == 0 {
			continue
		}
		file := &syntax.File{Stmts: stmts}
		if f.debugAST {
			debugAST(os.Stderr, file)
		}
		if f.debugTokens {
			debugTokens(os.Stderr, file)
		}
		if err := r.Run(ctx, file); err != nil {
			if _, ok := interp.IsExitStatus(err); ok {
				return err
			}
			fmt.Fprintln(os.Stderr, "dusk:", err)
		}
		if r.Exited() {
			return nil
		}
	}
}

func runInteractive(ctx context.Context, r *interp.Runner, f flags) error {
	ps1, ps2 := "$ ", "> "
	rl, err := newReadlineInputSource("", ps1, r.History.All())
	if err != nil {
		return err
	}
	defer rl.Close()
	defer r.History.Save()

	h := &interp.MultiLineInputHandler{
		Source: rl,
		Parser: syntax.NewParser(),
		PS1:    ps1,
		PS2:    ps2,
		Prompt: rl.setPrompt,
	}
	for {
		stmts, raw, err := h.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			fmt.Fprintln(os.Stderr, "dusk:", err)
			continue
		}
		if len(stmts) == 0 {
			continue
		}
		r.History.Add(raw)
		file := &syntax.File{Stmts: stmts}
		if f.debugAST {
			debugAST(os.Stderr, file)
		}
		if f.debugTokens {
			debugTokens(os.Stderr, file)
		}
		if err := r.Run(ctx, file); err != nil {
			if _, ok := interp.IsExitStatus(err); ok {
				return err
			}
			fmt.Fprintln(os.Stderr, "dusk:", err)
		}
		if r.Exited() {
			return nil
		}
	}
}

func rcfilePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".duskrc")
}

func histfilePath() string {
	if p := os.Getenv("HISTFILE"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".dusk_history")
}

func histSize() int {
	const def = 500
	v := strings.TrimSpace(os.Getenv("HISTSIZE"))
	if v == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n <= 0 {
		return def
	}
	return n
}
