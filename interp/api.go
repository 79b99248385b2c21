// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/duskshell/dusk/expand"
	"github.com/duskshell/dusk/syntax"
)

// Runner interprets shell programs. It cannot be used concurrently, but a
// Runner can be copied via Subshell to run concurrently in an independent
// context, the way a forked subshell does.
//
// Use New to build a new Runner, and don't instantiate one directly.
type Runner struct {
	// Env is the inherited environment the Runner was given, such as
	// os.Environ() wrapped by EnvFromList. It is never mutated; the
	// Runner's own variables in Vars shadow it.
	Env expand.WriteEnviron

	// Dir is the interpreter's working directory.
	Dir string

	// Params holds the current positional parameters ($1, $2, ...).
	Params []string

	// Vars holds every variable declared by the script at global scope,
	// including exported ones; local function variables live in
	// funcStack instead.
	Vars map[string]expand.Variable
	// Funcs holds every function declared by the script.
	Funcs map[string]*syntax.Stmt
	// alias holds simple-word alias substitutions set by the `alias`
	// builtin.
	alias map[string]aliasEntry

	funcStack []*funcScope

	// Interactive marks the Runner as driving an interactive session:
	// it changes job-control and prompt behavior but not scripting
	// semantics.
	Interactive bool

	// Handlers, overridable for embedding and tests.
	CallHandler     CallHandlerFunc
	execHandler     ExecHandlerFunc
	execMiddlewares []func(ExecHandlerFunc) ExecHandlerFunc
	openHandler     OpenHandlerFunc
	readDirHandler  ReadDirHandlerFunc2
	statHandler     StatHandlerFunc

	stdin  *os.File
	stdout io.Writer
	stderr io.Writer

	ecfg *expand.Context

	filename string

	opts [len(shellOptsTable) + len(onlySetOptsTable)]bool

	lastExit uint8
	exit     exitStatus

	dirStack []string

	// tempDir lazily holds the directory process substitution FIFOs are
	// created in.
	tempDir string

	// Jobs is the shell's job table, consulted and mutated by jobs, fg,
	// bg, wait and kill.
	Jobs *jobTable
	// signals is the shell's trap/signal dispatch table.
	signals *signalState

	// History holds the in-memory and on-disk command history, used by
	// the `history` builtin and an interactive front-end's
	// up-arrow recall.
	History *History

	breakEnclosing, contnEnclosing int
	inFunc                         int
	inSource                       int

	randState randSource
	startTime time.Time

	// ifs caches the current IFS value; refreshed by ifsUpdated whenever
	// IFS is assigned.
	ifs string

	// lastBgJob is the most recent job started with `&`, backing the
	// `$!` special parameter.
	lastBgJob *Job
}

type aliasEntry struct {
	args  []*syntax.Word
	blank bool
}

// randSource is a tiny wrapper around math/rand so RANDOM reads don't
// need a full expand.Environ round-trip to a PRNG.
type randSource struct{ r *rand.Rand }

func (s *randSource) next() uint16 {
	if s.r == nil {
		s.r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return uint16(s.r.Intn(1 << 15))
}

func (r *Runner) secondsElapsed() float64 {
	return time.Since(r.startTime).Seconds()
}

// exitStatus carries both the numeric exit code and the control-flow
// reason execution unwound, distinguishing a plain nonzero return from
// `exit`, `return`, or a fatal handler error so callers up the stack know
// whether to keep unwinding.
type exitStatus struct {
	code      uint8
	returning bool
	exiting   bool
	fatalErr  error
}

func oneIf(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// ShellExitStatus builds the sentinel error an ExecHandlerFunc or
// CallHandlerFunc can return to set a specific exit status without
// halting the Runner.
func ShellExitStatus(code uint8) error { return exitStatusErr(code) }

type exitStatusErr uint8

func (e exitStatusErr) Error() string { return fmt.Sprintf("exit status %d", uint8(e)) }

// IsExitStatus reports whether err was created with ShellExitStatus, and
// if so, returns the status code.
func IsExitStatus(err error) (uint8, bool) {
	var e exitStatusErr
	if errors.As(err, &e) {
		return uint8(e), true
	}
	return 0, false
}

// RunnerOption configures a Runner, following the functional-options
// pattern.
type RunnerOption func(*Runner) error

// New builds a new Runner, applying options in order. With no options,
// the Runner defaults to running in the current directory, sharing the
// process's environment and standard streams, and using the default
// handlers.
func New(opts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		startTime: time.Now(),
		Jobs:      newJobTable(),
		signals:   newSignalState(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.Env == nil {
		env, err := EnvFromList(os.Environ())
		if err != nil {
			return nil, err
		}
		r.Env = env
	}
	if r.Dir == "" {
		dir, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not get current dir: %w", err)
		}
		r.Dir = dir
	}
	if r.stdin == nil {
		r.stdin = os.Stdin
	}
	if r.stdout == nil {
		r.stdout = os.Stdout
	}
	if r.stderr == nil {
		r.stderr = os.Stderr
	}
	if r.execHandler == nil {
		r.execHandler = DefaultExecHandler(2 * time.Second)
	}
	if r.openHandler == nil {
		r.openHandler = DefaultOpenHandler()
	}
	if r.readDirHandler == nil {
		r.readDirHandler = DefaultReadDirHandler2()
	}
	if r.statHandler == nil {
		r.statHandler = DefaultStatHandler()
	}
	return r, nil
}

// Env sets the interpreter's environment. If nil, a new environment is
// built from the current process's environment.
func Env(env expand.WriteEnviron) RunnerOption {
	return func(r *Runner) error {
		r.Env = env
		return nil
	}
}

// Dir sets the interpreter's working directory. If empty, the process's
// current directory is used.
func Dir(path string) RunnerOption {
	return func(r *Runner) error {
		if path == "" {
			return nil
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("could not stat: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", path)
		}
		r.Dir = path
		return nil
	}
}

// Params populates the shell options and positional parameters, as if
// set via a command line such as `sh -e -o pipefail -- arg1 arg2`.
func Params(args ...string) RunnerOption {
	return func(r *Runner) error {
		args, err := setOptions(&r.opts, args)
		if err != nil {
			return err
		}
		r.Params = args
		return nil
	}
}

// Interactive marks the Runner as interactive.
func Interactive(i bool) RunnerOption {
	return func(r *Runner) error {
		r.Interactive = i
		return nil
	}
}

// StdIO configures the standard input, output and error streams.
func StdIO(in io.Reader, out, err io.Writer) RunnerOption {
	return func(r *Runner) error {
		r.stdout, r.stderr = out, err
		if in == nil {
			r.stdin = nil
			return nil
		}
		if f, ok := in.(*os.File); ok {
			r.stdin = f
			return nil
		}
		pr, pw, pipeErr := os.Pipe()
		if pipeErr != nil {
			return pipeErr
		}
		go func() {
			io.Copy(pw, in)
			pw.Close()
		}()
		r.stdin = pr
		return nil
	}
}

// CallHandler sets the call handler, run on every simple command.
func CallHandler(f CallHandlerFunc) RunnerOption {
	return func(r *Runner) error { r.CallHandler = f; return nil }
}

// ExecHandlers appends exec-handler middlewares. The first middleware is
// the outermost: it runs first and its next calls the following one, the
// way http.Handler middleware chains compose.
func ExecHandlers(middlewares ...func(ExecHandlerFunc) ExecHandlerFunc) RunnerOption {
	return func(r *Runner) error {
		r.execMiddlewares = append(r.execMiddlewares, middlewares...)
		return nil
	}
}

// OpenHandler sets the file-open handler.
func OpenHandler(f OpenHandlerFunc) RunnerOption {
	return func(r *Runner) error { r.openHandler = f; return nil }
}

// ReadDirHandler sets the directory-listing handler used by globbing.
func ReadDirHandler(f ReadDirHandlerFunc2) RunnerOption {
	return func(r *Runner) error { r.readDirHandler = f; return nil }
}

// StatHandler sets the file-stat handler.
func StatHandler(f StatHandlerFunc) RunnerOption {
	return func(r *Runner) error { r.statHandler = f; return nil }
}

// Reset empties the Runner's state, as if it had just been returned from
// New. This is only needed if a Runner is reused to run multiple
// programs; a single Run call always leaves the Runner ready for reuse.
func (r *Runner) Reset() error {
	r.Vars = make(map[string]expand.Variable, 16)
	r.Funcs = make(map[string]*syntax.Stmt, 4)
	r.alias = make(map[string]aliasEntry, 4)
	r.funcStack = nil
	r.dirStack = nil
	r.exit = exitStatus{}
	r.lastExit = 0

	u, _ := os.UserHomeDir()
	r.setVarString("HOME", u)
	r.setVarString("UID", strconv.Itoa(os.Getuid()))
	r.setVarString("EUID", strconv.Itoa(os.Geteuid()))
	r.setVarString("GID", strconv.Itoa(os.Getgid()))
	r.setVarString("PWD", r.Dir)
	r.setVarString("IFS", " \t\n")
	r.setVarString("OPTIND", "1")
	r.ifsUpdated()

	env := runnerEnviron{r}
	r.ecfg = &expand.Context{
		Env:       env,
		NoGlob:    r.opts[optNoGlob],
		GlobStar:  r.opts[optGlobStar],
		Subshell:  r.subshellExpand,
		ProcSubst: r.procSubstExpand,
		OnError:   func(err error) { r.onExpandError(err) },
	}
	return nil
}

func (r *Runner) setVarString(name, val string) {
	r.Vars[name] = expand.Variable{Set: true, Kind: expand.String, Str: val}
}

func (r *Runner) setExit(code uint8) { r.lastExit = code }

func (r *Runner) errf(format string, args ...any) {
	fmt.Fprintf(r.stderr, format, args...)
}

// Run interprets a node, which must be one of [*syntax.File], [*syntax.Stmt],
// or [syntax.Command]. If a non-nil error is returned, it will typically
// carry the exit status, retrievable via [IsExitStatus].
//
// Run can be called multiple times synchronously to interpret programs
// incrementally; to reuse a Runner without keeping the interpreter state,
// call Reset.
func (r *Runner) Run(ctx context.Context, node syntax.Node) error {
	if r.Vars == nil {
		if err := r.Reset(); err != nil {
			return err
		}
	}
	if r.Jobs == nil {
		r.Jobs = newJobTable()
	}
	if r.signals == nil {
		r.signals = newSignalState()
	}
	r.exit = exitStatus{}
	hc := HandlerContext{
		Env:    runnerEnviron{r},
		Dir:    r.Dir,
		Stdin:  r.stdin,
		Stdout: r.stdout,
		Stderr: r.stderr,
	}
	ctx = context.WithValue(ctx, handlerCtxKey{}, hc)
	switch x := node.(type) {
	case *syntax.File:
		r.filename = x.Name
		r.stmts(ctx, x.Stmts)
	case *syntax.Stmt:
		r.stmt(ctx, x)
	case syntax.Command:
		r.cmd(ctx, x)
	default:
		return fmt.Errorf("interp Run: unsupported node type %T", x)
	}
	if r.exit.fatalErr != nil {
		return r.exit.fatalErr
	}
	r.lastExit = r.exit.code
	if r.exit.code != 0 {
		return ShellExitStatus(r.exit.code)
	}
	return nil
}

// Exited reports whether the Runner has encountered an `exit` builtin
// call, a signal for an outer interpreter loop driving it statement by
// statement to stop.
func (r *Runner) Exited() bool { return r.exit.exiting }

// Subshell makes a copy of the Runner, suitable for use concurrently
// with the original. The copy has the same environment, including
// variables and functions, but they can all be modified independently.
func (r *Runner) Subshell() *Runner {
	return r.subshell(false)
}

func (r *Runner) subshell(background bool) *Runner {
	r2 := &Runner{}
	*r2 = *r
	r2.Vars = make(map[string]expand.Variable, len(r.Vars))
	for k, v := range r.Vars {
		r2.Vars[k] = v
	}
	r2.Funcs = make(map[string]*syntax.Stmt, len(r.Funcs))
	for k, v := range r.Funcs {
		r2.Funcs[k] = v
	}
	r2.alias = make(map[string]aliasEntry, len(r.alias))
	for k, v := range r.alias {
		r2.alias[k] = v
	}
	r2.funcStack = nil
	for _, scope := range r.funcStack {
		cp := &funcScope{vars: make(map[string]expand.Variable, len(scope.vars))}
		for k, v := range scope.vars {
			cp.vars[k] = v
		}
		r2.funcStack = append(r2.funcStack, cp)
	}
	r2.Params = append([]string(nil), r.Params...)
	r2.dirStack = append([]string(nil), r.dirStack...)
	env := runnerEnviron{r2}
	r2.ecfg = &expand.Context{
		Env:       env,
		NoGlob:    r.opts[optNoGlob],
		GlobStar:  r.opts[optGlobStar],
		Subshell:  r2.subshellExpand,
		ProcSubst: r2.procSubstExpand,
		OnError:   func(err error) { r2.onExpandError(err) },
	}
	if background {
		r2.Jobs = r.Jobs
	} else {
		j := *r.Jobs
		r2.Jobs = &j
	}
	return r2
}

func (r *Runner) onExpandError(err error) {
	if u, ok := err.(expand.UnsetParameterError); ok {
		r.errf("%s\n", u.Message)
		r.exit = exitStatus{code: 1, exiting: true}
		return
	}
	r.errf("%v\n", err)
	r.exit = exitStatus{code: 1}
}
