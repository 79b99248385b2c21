// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/duskshell/dusk/expand"
	"github.com/duskshell/dusk/syntax"
)

// IsBuiltin reports whether name is one of the builtins this shell
// implements, bounded to the special and regular builtins plus the job
// control commands.
func IsBuiltin(name string) bool {
	switch name {
	case ":", ".", "source", "eval", "exec", "exit", "export", "readonly",
		"return", "set", "shift", "times", "trap", "unset",
		"cd", "pwd", "echo", "printf", "test", "[", "read", "type",
		"help", "history", "alias", "unalias", "declare", "local",
		"getopts", "pushd", "popd", "dirs",
		"jobs", "fg", "bg", "wait", "kill":
		return true
	}
	return false
}

// atoiSafe is like strconv.Atoi but ignores errors and trims whitespace, the
// way bash's arithmetic coercions do when a variable holds garbage.
func atoiSafe(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func (r *Runner) builtin(ctx context.Context, pos syntax.Pos, name string, args []string) (exit exitStatus) {
	failf := func(code uint8, format string, fargs ...any) exitStatus {
		r.errf(format, fargs...)
		exit.code = code
		return exit
	}
	switch name {
	case ":":
	case "exit":
		switch len(args) {
		case 0:
			exit.code = r.lastExit
		case 1:
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return failf(2, "exit: %q: numeric argument required\n", args[0])
			}
			exit.code = uint8(n)
		default:
			return failf(1, "exit: too many arguments\n")
		}
		exit.exiting = true
	case "return":
		if r.inFunc == 0 && r.inSource == 0 {
			return failf(1, "return: can only be used in a function or sourced script\n")
		}
		switch len(args) {
		case 0:
		case 1:
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return failf(2, "return: %q: numeric argument required\n", args[0])
			}
			exit.code = uint8(n)
		default:
			return failf(2, "return: too many arguments\n")
		}
		exit.returning = true
	case "set":
		rest, err := setOptions(&r.opts, args)
		if err != nil {
			return failf(2, "set: %v\n", err)
		}
		if len(rest) > 0 || (len(args) > 0 && args[len(args)-1] == "--") {
			r.Params = rest
		}
	case "shift":
		n := 1
		if len(args) == 1 {
			if v, err := strconv.Atoi(args[0]); err == nil {
				n = v
			}
		} else if len(args) > 1 {
			return failf(2, "shift: usage: shift [n]\n")
		}
		if n >= len(r.Params) {
			r.Params = nil
		} else {
			r.Params = r.Params[n:]
		}
	case "unset":
		vars, funcs := true, true
		i := 0
		for ; i < len(args); i++ {
			switch args[i] {
			case "-v":
				funcs = false
			case "-f":
				vars = false
			default:
				goto names
			}
		}
	names:
		for _, arg := range args[i:] {
			if vars && r.lookupVar(arg).IsSet() {
				r.delVar(arg)
			} else if funcs {
				delete(r.Funcs, arg)
			}
		}
	case "export", "readonly":
		if len(args) == 0 {
			names := make([]string, 0, len(r.Vars))
			for n, vr := range r.Vars {
				want := (name == "export" && vr.Exported) || (name == "readonly" && vr.ReadOnly)
				if want {
					names = append(names, n)
				}
			}
			sort.Strings(names)
			for _, n := range names {
				fmt.Fprintf(r.stdout, "%s=%q\n", n, r.getVar(n))
			}
			break
		}
		for _, arg := range args {
			n, val, hasVal := strings.Cut(arg, "=")
			vr := r.lookupVar(n)
			if hasVal {
				vr = expand.Variable{Set: true, Kind: expand.String, Str: val}
			} else if !vr.IsSet() {
				vr = expand.Variable{Set: false, Kind: expand.String}
			}
			if name == "export" {
				vr.Exported = true
			} else {
				vr.ReadOnly = true
			}
			r.setVarInternal(n, vr)
		}
	case "declare", "local":
		exit = r.declareBuiltin(ctx, name, args)
	case "echo":
		newline, doExpand := true, false
		i := 0
	echoOpts:
		for ; i < len(args); i++ {
			switch args[i] {
			case "-n":
				newline = false
			case "-e":
				doExpand = true
			case "-E":
			default:
				break echoOpts
			}
		}
		rest := args[i:]
		for j, arg := range rest {
			if j > 0 {
				fmt.Fprint(r.stdout, " ")
			}
			if doExpand {
				arg, _, _ = r.ecfg.ExpandFormat(arg, nil)
			}
			fmt.Fprint(r.stdout, arg)
		}
		if newline {
			fmt.Fprint(r.stdout, "\n")
		}
	case "printf":
		if len(args) == 0 {
			return failf(2, "printf: usage: printf format [arguments]\n")
		}
		format, rest := args[0], args[1:]
		for {
			s, n, err := r.ecfg.ExpandFormat(format, rest)
			if err != nil {
				return failf(1, "printf: %v\n", err)
			}
			fmt.Fprint(r.stdout, s)
			rest = rest[n:]
			if n == 0 || len(rest) == 0 {
				break
			}
		}
	case "pwd":
		fmt.Fprintf(r.stdout, "%s\n", r.getVar("PWD"))
	case "cd":
		var path string
		switch len(args) {
		case 0:
			path = r.getVar("HOME")
		case 1:
			path = args[0]
			if path == "-" {
				path = r.getVar("OLDPWD")
				fmt.Fprintf(r.stdout, "%s\n", path)
			}
		default:
			return failf(2, "cd: usage: cd [dir]\n")
		}
		exit.code = uint8(r.changeDir(ctx, path))
	case "test", "[":
		if name == "[" {
			if len(args) == 0 || args[len(args)-1] != "]" {
				return failf(2, "[: missing matching ]\n")
			}
			args = args[:len(args)-1]
		}
		ok, err := evalClassicTest(r, ctx, args)
		if err != nil {
			return failf(2, "test: %v\n", err)
		}
		exit.code = oneIf(!ok)
	case "read":
		exit = r.readBuiltin(ctx, args)
	case "type":
		exit = r.typeBuiltin(args)
	case "help":
		names := make([]string, 0)
		for _, n := range strings.Fields(":  . source eval exec exit export readonly return set shift times trap unset cd pwd echo printf test read type help history alias unalias declare local getopts pushd popd dirs jobs fg bg wait kill") {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintf(r.stdout, "builtins: %s\n", strings.Join(names, " "))
	case "history":
		exit = r.historyBuiltin(args)
	case "alias":
		exit = r.aliasBuiltin(args)
	case "unalias":
		for _, n := range args {
			delete(r.alias, n)
		}
	case "getopts":
		exit = r.getoptsBuiltin(args)
	case "dirs":
		for i := len(r.dirStack) - 1; i >= 0; i-- {
			fmt.Fprintf(r.stdout, "%s", r.dirStack[i])
			if i > 0 {
				fmt.Fprint(r.stdout, " ")
			}
		}
		fmt.Fprint(r.stdout, "\n")
	case "pushd":
		exit = r.pushdBuiltin(ctx, args)
	case "popd":
		exit = r.popdBuiltin(ctx, args)
	case "eval":
		src := strings.Join(args, " ")
		file, err := r.parseSource(src, "eval")
		if err != nil {
			return failf(1, "eval: %v\n", err)
		}
		r.stmts(ctx, file.Stmts)
		exit = r.exit
	case "source", ".":
		exit = r.sourceBuiltin(ctx, pos, args)
	case "exec":
		if len(args) == 0 {
			break
		}
		r.execExternal(ctx, args)
		exit = r.exit
		exit.exiting = true
	case "trap":
		exit = r.trapBuiltin(args)
	case "times":
		fmt.Fprintf(r.stdout, "%s\n0m0.000s 0m0.000s\n", time.Since(r.startTime).Round(time.Millisecond))
	case "jobs":
		for _, j := range r.Jobs.All() {
			fmt.Fprintln(r.stdout, formatJobLine(j, j == r.Jobs.Current()))
		}
	case "fg", "bg":
		exit = r.fgBgBuiltin(name, args)
	case "wait":
		exit = r.waitBuiltin(args)
	case "kill":
		exit = r.killBuiltin(args)
	default:
		return failf(2, "%s: not implemented\n", name)
	}
	return exit
}

// evalClassicTest evaluates a `test`/`[` argument list. It supports the
// common 0/1/2/3-argument forms from POSIX test(1); compound expressions
// joined with -a/-o are out of scope, matching this shell's bounded
// builtin set.
func evalClassicTest(r *Runner, ctx context.Context, args []string) (bool, error) {
	switch len(args) {
	case 0:
		return false, nil
	case 1:
		return args[0] != "", nil
	case 2:
		if args[0] == "!" {
			ok, err := evalClassicTest(r, ctx, args[1:])
			return !ok, err
		}
		return evalUnaryTest(r, ctx, args[0], args[1])
	case 3:
		if args[0] == "!" {
			ok, err := evalClassicTest(r, ctx, args[1:])
			return !ok, err
		}
		return evalBinaryTest(args[0], args[1], args[2])
	case 4:
		if args[0] == "!" {
			ok, err := evalBinaryTest(args[1], args[2], args[3])
			return !ok, err
		}
	}
	return false, fmt.Errorf("unsupported test expression")
}

func evalUnaryTest(r *Runner, ctx context.Context, op, operand string) (bool, error) {
	switch op {
	case "-e":
		return statPath(operand) != nil, nil
	case "-f":
		info := statPath(operand)
		return info != nil && info.Mode().IsRegular(), nil
	case "-d":
		return statMode(operand, os.ModeDir), nil
	case "-p":
		return statMode(operand, os.ModeNamedPipe), nil
	case "-S":
		return statMode(operand, os.ModeSocket), nil
	case "-L", "-h":
		info, err := os.Lstat(operand)
		return err == nil && info.Mode()&os.ModeSymlink != 0, nil
	case "-s":
		info := statPath(operand)
		return info != nil && info.Size() > 0, nil
	case "-r":
		return r.access(ctx, operand, access_R_OK) == nil, nil
	case "-w":
		return r.access(ctx, operand, access_W_OK) == nil, nil
	case "-x":
		return r.access(ctx, operand, access_X_OK) == nil, nil
	case "-z":
		return operand == "", nil
	case "-n":
		return operand != "", nil
	default:
		return false, fmt.Errorf("%s: unknown unary operator", op)
	}
}

func evalBinaryTest(lhs, op, rhs string) (bool, error) {
	switch op {
	case "=", "==":
		return lhs == rhs, nil
	case "!=":
		return lhs != rhs, nil
	case "-eq":
		return atoiSafe(lhs) == atoiSafe(rhs), nil
	case "-ne":
		return atoiSafe(lhs) != atoiSafe(rhs), nil
	case "-le":
		return atoiSafe(lhs) <= atoiSafe(rhs), nil
	case "-ge":
		return atoiSafe(lhs) >= atoiSafe(rhs), nil
	case "-lt":
		return atoiSafe(lhs) < atoiSafe(rhs), nil
	case "-gt":
		return atoiSafe(lhs) > atoiSafe(rhs), nil
	case "-nt":
		i1, i2 := statPath(lhs), statPath(rhs)
		return i1 != nil && i2 != nil && i1.ModTime().After(i2.ModTime()), nil
	case "-ot":
		i1, i2 := statPath(lhs), statPath(rhs)
		return i1 != nil && i2 != nil && i1.ModTime().Before(i2.ModTime()), nil
	case "<":
		return lhs < rhs, nil
	case ">":
		return lhs > rhs, nil
	default:
		return false, fmt.Errorf("%s: unknown binary operator", op)
	}
}

func (r *Runner) declareBuiltin(ctx context.Context, name string, args []string) exitStatus {
	local := name == "local"
	if local && r.inFunc == 0 {
		r.errf("local: can only be used in a function\n")
		return exitStatus{code: 1}
	}
	i := 0
	attrExport, attrReadOnly, attrArray, attrAssoc, attrInt := false, false, false, false, false
loop:
	for ; i < len(args); i++ {
		switch args[i] {
		case "-x":
			attrExport = true
		case "-r":
			attrReadOnly = true
		case "-a":
			attrArray = true
		case "-A":
			attrAssoc = true
		case "-i":
			attrInt = true
		default:
			break loop
		}
	}
	for _, arg := range args[i:] {
		n, val, hasVal := strings.Cut(arg, "=")
		var vr expand.Variable
		switch {
		case attrAssoc:
			vr = expand.Variable{Set: true, Kind: expand.Associative, Map: map[string]string{}}
		case attrArray:
			vr = expand.Variable{Set: true, Kind: expand.Indexed}
		case hasVal:
			if attrInt {
				val = strconv.Itoa(atoiSafe(val))
			}
			vr = expand.Variable{Set: true, Kind: expand.String, Str: val}
		default:
			vr = r.lookupVar(n)
			if !vr.IsSet() {
				vr = expand.Variable{Set: false, Kind: expand.String}
			}
		}
		vr.Exported = vr.Exported || attrExport
		vr.ReadOnly = vr.ReadOnly || attrReadOnly
		vr.Local = local
		r.setVarInternal(n, vr)
	}
	return exitStatus{}
}

func (r *Runner) readBuiltin(ctx context.Context, args []string) exitStatus {
	var prompt string
	raw := false
	i := 0
	for ; i < len(args); i++ {
		switch args[i] {
		case "-r":
			raw = true
		case "-p":
			i++
			if i >= len(args) {
				r.errf("read: -p: option requires an argument\n")
				return exitStatus{code: 2}
			}
			prompt = args[i]
		default:
			goto names
		}
	}
names:
	names := args[i:]
	if prompt != "" {
		fmt.Fprint(r.stderr, prompt)
	}
	line, err := r.readLine(ctx)
	if !raw {
		line = strings.ReplaceAll(line, "\\\n", "")
	}
	if len(names) == 0 {
		names = []string{"REPLY"}
	}
	values := r.ecfg.ReadFields(line, len(names), raw)
	for i, n := range names {
		val := ""
		if i < len(values) {
			val = values[i]
		}
		r.setVarInternal(n, expand.Variable{Set: true, Kind: expand.String, Str: val})
	}
	if err != nil {
		return exitStatus{code: 1}
	}
	return exitStatus{}
}

func (r *Runner) typeBuiltin(args []string) exitStatus {
	anyMissing := false
	for _, arg := range args {
		switch {
		case r.Funcs[arg] != nil:
			fmt.Fprintf(r.stdout, "%s is a function\n", arg)
		case IsBuiltin(arg):
			fmt.Fprintf(r.stdout, "%s is a shell builtin\n", arg)
		default:
			if path, err := LookPathDir(r.Dir, runnerEnviron{r}, arg); err == nil {
				fmt.Fprintf(r.stdout, "%s is %s\n", arg, path)
			} else {
				r.errf("type: %s: not found\n", arg)
				anyMissing = true
			}
		}
	}
	return exitStatus{code: oneIf(anyMissing)}
}

func (r *Runner) aliasBuiltin(args []string) exitStatus {
	if len(args) == 0 {
		names := make([]string, 0, len(r.alias))
		for n := range r.alias {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(r.stdout, "alias %s='%s'\n", n, aliasText(r.alias[n]))
		}
		return exitStatus{}
	}
	for _, arg := range args {
		n, src, hasEq := strings.Cut(arg, "=")
		if !hasEq {
			als, ok := r.alias[n]
			if !ok {
				r.errf("alias: %s: not found\n", n)
				continue
			}
			fmt.Fprintf(r.stdout, "alias %s='%s'\n", n, aliasText(als))
			continue
		}
		p := syntax.NewParser()
		file, err := p.ParseBytes([]byte(src), "alias")
		if err != nil {
			r.errf("alias: %v\n", err)
			continue
		}
		var wargs []*syntax.Word
		if len(file.Stmts) > 0 {
			if ce, ok := file.Stmts[0].Cmd.(*syntax.CallExpr); ok {
				wargs = ce.Args
			}
		}
		if r.alias == nil {
			r.alias = map[string]aliasEntry{}
		}
		r.alias[n] = aliasEntry{args: wargs, blank: strings.HasSuffix(src, " ")}
	}
	return exitStatus{}
}

func aliasText(a aliasEntry) string {
	var sb strings.Builder
	for i, w := range a.args {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if lit, ok := w.Lit(); ok {
			sb.WriteString(lit)
		}
	}
	if a.blank {
		sb.WriteByte(' ')
	}
	return sb.String()
}

func (r *Runner) getoptsBuiltin(args []string) exitStatus {
	if len(args) < 2 {
		r.errf("getopts: usage: getopts optstring name [arg ...]\n")
		return exitStatus{code: 2}
	}
	optstr, name := args[0], args[1]
	rest := args[2:]
	if len(rest) == 0 {
		rest = r.Params
	}
	optind := atoiSafe(r.getVar("OPTIND"))
	if optind < 1 {
		optind = 1
	}
	idx := optind - 1
	if idx >= len(rest) {
		r.setVarInternal(name, expand.Variable{Set: true, Kind: expand.String, Str: "?"})
		return exitStatus{code: 1}
	}
	arg := rest[idx]
	if len(arg) < 2 || arg[0] != '-' {
		r.setVarInternal(name, expand.Variable{Set: true, Kind: expand.String, Str: "?"})
		return exitStatus{code: 1}
	}
	opt := arg[1]
	i := strings.IndexByte(optstr, opt)
	diagnose := !strings.HasPrefix(optstr, ":")
	if i < 0 {
		if diagnose {
			r.errf("getopts: illegal option -- %c\n", opt)
		}
		r.setVarInternal(name, expand.Variable{Set: true, Kind: expand.String, Str: "?"})
		r.setVarInternal("OPTIND", expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(optind + 1)})
		return exitStatus{}
	}
	needsArg := i+1 < len(optstr) && optstr[i+1] == ':'
	if needsArg {
		if idx+1 >= len(rest) {
			if diagnose {
				r.errf("getopts: option requires an argument -- %c\n", opt)
			}
			r.setVarInternal(name, expand.Variable{Set: true, Kind: expand.String, Str: ":"})
			return exitStatus{code: 1}
		}
		r.setVarInternal("OPTARG", expand.Variable{Set: true, Kind: expand.String, Str: rest[idx+1]})
		optind += 2
	} else {
		optind++
	}
	r.setVarInternal(name, expand.Variable{Set: true, Kind: expand.String, Str: string(opt)})
	r.setVarInternal("OPTIND", expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(optind)})
	return exitStatus{}
}

func (r *Runner) pushdBuiltin(ctx context.Context, args []string) exitStatus {
	if len(args) != 1 {
		r.errf("pushd: usage: pushd dir\n")
		return exitStatus{code: 2}
	}
	if code := r.changeDir(ctx, args[0]); code != 0 {
		return exitStatus{code: uint8(code)}
	}
	r.dirStack = append(r.dirStack, r.Dir)
	return exitStatus{}
}

func (r *Runner) popdBuiltin(ctx context.Context, args []string) exitStatus {
	if len(r.dirStack) < 2 {
		r.errf("popd: directory stack empty\n")
		return exitStatus{code: 1}
	}
	r.dirStack = r.dirStack[:len(r.dirStack)-1]
	top := r.dirStack[len(r.dirStack)-1]
	if code := r.changeDir(ctx, top); code != 0 {
		return exitStatus{code: uint8(code)}
	}
	return exitStatus{}
}

func (r *Runner) sourceBuiltin(ctx context.Context, pos syntax.Pos, args []string) exitStatus {
	if len(args) < 1 {
		r.errf("source: need filename\n")
		return exitStatus{code: 2}
	}
	data, err := os.ReadFile(r.absPath(args[0]))
	if err != nil {
		r.errf("source: %v\n", err)
		return exitStatus{code: 1}
	}
	p := syntax.NewParser()
	file, err := p.ParseBytes(data, args[0])
	if err != nil {
		r.errf("source: %v\n", err)
		return exitStatus{code: 1}
	}
	oldParams := r.Params
	if len(args) > 1 {
		r.Params = args[1:]
	}
	r.inSource++
	r.stmts(ctx, file.Stmts)
	r.inSource--
	r.Params = oldParams
	exit := r.exit
	exit.returning = false
	return exit
}

func (r *Runner) trapBuiltin(args []string) exitStatus {
	if len(args) == 0 {
		return exitStatus{}
	}
	action := args[0]
	for _, sig := range args[1:] {
		if err := r.setTrap(sig, action); err != nil {
			r.errf("%v\n", err)
			return exitStatus{code: 1}
		}
	}
	return exitStatus{}
}

func (r *Runner) fgBgBuiltin(name string, args []string) exitStatus {
	var job *Job
	if len(args) > 0 {
		id := atoiSafe(strings.TrimPrefix(args[0], "%"))
		job = r.Jobs.ByID(id)
	} else {
		job = r.Jobs.Current()
	}
	if job == nil {
		r.errf("%s: no such job\n", name)
		return exitStatus{code: 1}
	}
	job.State = JobRunning
	if name == "fg" {
		r.Jobs.GrabTerminal(job.PGID)
	}
	return exitStatus{}
}

func (r *Runner) waitBuiltin(args []string) exitStatus {
	if len(args) == 0 {
		for {
			r.Jobs.ReapAll()
			done := true
			for _, j := range r.Jobs.All() {
				if j.State == JobRunning {
					done = false
				}
			}
			if done {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		return exitStatus{}
	}
	id := atoiSafe(strings.TrimPrefix(args[0], "%"))
	job := r.Jobs.ByID(id)
	if job == nil {
		r.errf("wait: %s: not a child of this shell\n", args[0])
		return exitStatus{code: 1}
	}
	for job.State == JobRunning {
		r.Jobs.ReapAll()
		time.Sleep(10 * time.Millisecond)
	}
	return exitStatus{code: oneIf(job.State == JobTerminated)}
}

func (r *Runner) killBuiltin(args []string) exitStatus {
	sigName := "TERM"
	i := 0
	if len(args) > 0 && strings.HasPrefix(args[0], "-") {
		sigName = strings.ToUpper(strings.TrimPrefix(args[0], "-"))
		i = 1
	}
	sig, ok := nameToSignal[sigName]
	if !ok {
		r.errf("kill: %s: invalid signal specification\n", sigName)
		return exitStatus{code: 1}
	}
	for _, arg := range args[i:] {
		id := atoiSafe(strings.TrimPrefix(arg, "%"))
		if strings.HasPrefix(arg, "%") {
			if job := r.Jobs.ByID(id); job != nil {
				if job.PGID > 0 {
					syscallKillGroup(job.PGID, sig)
					continue
				}
				for _, pid := range job.Pids {
					syscallKill(pid, sig)
				}
				continue
			}
		}
		syscallKill(id, sig)
	}
	return exitStatus{}
}
