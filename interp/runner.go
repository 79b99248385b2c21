// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/duskshell/dusk/expand"
	"github.com/duskshell/dusk/pattern"
	"github.com/duskshell/dusk/syntax"
	"github.com/duskshell/dusk/token"
)

func contextBackground() context.Context { return context.Background() }

// parseSource parses an inline fragment of shell text, e.g. a trap
// action or an `eval` argument, under the same grammar as the rest of
// the shell.
func (r *Runner) parseSource(src, name string) (*syntax.File, error) {
	p := syntax.NewParser()
	return p.ParseBytes([]byte(src), name)
}

// stmts runs a statement list, stopping early once the Runner has begun
// unwinding for exit/return/break/continue.
func (r *Runner) stmts(ctx context.Context, stmts []*syntax.Stmt) {
	for _, stmt := range stmts {
		r.stmt(ctx, stmt)
		if r.exit.exiting || r.exit.returning || r.breakEnclosing > 0 || r.contnEnclosing > 0 {
			return
		}
		if r.Interactive && r.Interrupted() {
			r.exit = exitStatus{code: 130}
			return
		}
	}
}

func (r *Runner) stmt(ctx context.Context, st *syntax.Stmt) {
	if st.Background {
		r.runBackground(ctx, st)
		return
	}
	r.stmtSync(ctx, st)
}

func (r *Runner) stmtSync(ctx context.Context, st *syntax.Stmt) {
	tr := r.tracer()
	for _, as := range st.Assigns {
		r.doAssign(ctx, as)
	}
	if st.Cmd == nil {
		r.exit = exitStatus{code: 0}
		tr.flush()
		return
	}
	oldRedirs := r.pushRedirs(ctx, st.Redirs)
	defer r.popRedirs(oldRedirs)

	r.cmd(ctx, st.Cmd)
	if st.Negated {
		r.exit.code = oneIf(r.exit.code == 0)
	}
	if r.opts[optErrExit] && r.exit.code != 0 && !r.exit.exiting {
		r.exit.exiting = true
	}
	tr.flush()
}

func (r *Runner) runBackground(ctx context.Context, st *syntax.Stmt) {
	bg := r.subshell(true)
	job := r.Jobs.Add(0, nil, stmtCmdline(st))
	jc := newJobContext(r.Jobs, job).forStage(true)
	bgCtx := withJobContext(ctx, jc)
	go func() {
		bg.stmtSync(bgCtx, &syntax.Stmt{Cmd: st.Cmd, Redirs: st.Redirs, Assigns: st.Assigns})
		jc.closeReady()
		if job.State == JobRunning {
			job.State = JobDone
		}
	}()
	// Block only long enough for the real pid (and so the process
	// group) to come into being, the way fork() returning is what lets
	// a real shell print "[1] 12345" synchronously; the command itself
	// keeps running in the background goroutine above.
	job.PGID = jc.awaitReady()
	r.lastBgJob = job
	fmt.Fprintf(r.stdout, "[%d] %d\n", job.ID, job.PGID)
}

func stmtCmdline(st *syntax.Stmt) string {
	if ce, ok := st.Cmd.(*syntax.CallExpr); ok && len(ce.Args) > 0 {
		lit, _ := ce.Args[0].Lit()
		return lit
	}
	return "<compound command>"
}

// cmd is the central command dispatcher, one case per syntax.Command
// implementor.
func (r *Runner) cmd(ctx context.Context, cm syntax.Command) {
	switch x := cm.(type) {
	case *syntax.Block:
		r.stmts(ctx, x.Stmts)
	case *syntax.Subshell:
		r.runSubshell(ctx, x.Stmts)
	case *syntax.CallExpr:
		r.call(ctx, x)
	case *syntax.BinaryCmd:
		r.binaryCmd(ctx, x)
	case *syntax.IfClause:
		r.ifClause(ctx, x)
	case *syntax.WhileClause:
		r.whileClause(ctx, x)
	case *syntax.ForClause:
		r.forClause(ctx, x)
	case *syntax.CStyleLoop:
		r.cStyleLoop(ctx, x)
	case *syntax.SelectClause:
		r.selectClause(ctx, x)
	case *syntax.CaseClause:
		r.caseClause(ctx, x)
	case *syntax.FuncDecl:
		r.setFunc(x.Name.Value, x.Body)
		r.exit = exitStatus{code: 0}
	case *syntax.ArithmCmd:
		n := r.ecfg.ExpandArithm(ctx, x.X)
		r.exit = exitStatus{code: oneIf(n == 0)}
	case *syntax.TestClause:
		ok := r.testExpr(ctx, x.X)
		r.exit = exitStatus{code: oneIf(!ok)}
	default:
		panic(fmt.Sprintf("interp: unhandled command node %T", cm))
	}
}

func (r *Runner) runSubshell(ctx context.Context, stmts []*syntax.Stmt) {
	sub := r.subshell(false)
	sub.stmts(ctx, stmts)
	r.exit = sub.exit
	r.lastExit = sub.lastExit
}

func (r *Runner) setFunc(name string, body *syntax.Stmt) {
	if r.Funcs == nil {
		r.Funcs = make(map[string]*syntax.Stmt, 4)
	}
	r.Funcs[name] = body
}

func (r *Runner) binaryCmd(ctx context.Context, b *syntax.BinaryCmd) {
	switch b.Op {
	case token.AndAnd:
		r.stmt(ctx, b.X)
		if r.exit.code == 0 && !r.exit.exiting {
			r.stmt(ctx, b.Y)
		}
	case token.OrOr:
		r.stmt(ctx, b.X)
		if r.exit.code != 0 && !r.exit.exiting {
			r.stmt(ctx, b.Y)
		}
	case token.Or, token.OrAnd:
		r.pipeline(ctx, b)
	default:
		panic(fmt.Sprintf("interp: unhandled binary command op %v", b.Op))
	}
}

// pipeline flattens the right-leaning chain of "|"/"|&" BinaryCmd nodes
// into stages, wires os.Pipe()s between consecutive stages, and waits
// for all of them; the pipeline's own exit status is the last stage's,
// unless `pipefail` is set.
func (r *Runner) pipeline(ctx context.Context, top *syntax.BinaryCmd) {
	var stages []*syntax.Stmt
	var mergeErr []bool
	cur := syntax.Command(top)
	for {
		b, ok := cur.(*syntax.BinaryCmd)
		if !ok || (b.Op != token.Or && b.Op != token.OrAnd) {
			stages = append(stages, &syntax.Stmt{Cmd: cur})
			mergeErr = append(mergeErr, false)
			break
		}
		stages = append(stages, b.X)
		mergeErr = append(mergeErr, b.Op == token.OrAnd)
		cur = b.Y.Cmd
	}

	n := len(stages)
	runners := make([]*Runner, n)
	pipes := make([]*os.File, 0, (n-1)*2)
	for i := range runners {
		runners[i] = r.subshell(false)
	}

	// Every stage joins one process group, the first stage founds it
	// (spec 4.5). A pipeline running as the body of a background job
	// (runBackground already attached a jobContext to ctx) shares that
	// job, so its pids land in the entry already printed to the user;
	// a foreground pipeline gets its own transient job purely to
	// coordinate the pgid and to transfer the terminal to it (4.6).
	existing := jobContextFrom(ctx)
	foreground := existing == nil
	var job *Job
	var jc *jobContext
	if foreground {
		job = r.Jobs.Add(0, nil, stmtCmdline(stages[0]))
		jc = newJobContext(r.Jobs, job)
	} else {
		job = existing.job
		jc = existing
	}

	var prevR *os.File
	for i := 0; i < n; i++ {
		sub := runners[i]
		if prevR != nil {
			sub.stdin = prevR
		}
		if i < n-1 {
			pr, pw, err := os.Pipe()
			if err != nil {
				r.errf("pipe: %v\n", err)
				r.exit = exitStatus{code: 1}
				return
			}
			sub.stdout = pw
			if mergeErr[i] {
				sub.stderr = pw
			}
			pipes = append(pipes, pr, pw)
			prevR = pr
		}
	}

	var wg sync.WaitGroup
	exits := make([]exitStatus, n)
	for i := 0; i < n; i++ {
		i := i
		stageCtx := withJobContext(ctx, jc.forStage(i == 0))
		wg.Add(1)
		go func() {
			defer wg.Done()
			runners[i].stmt(stageCtx, stages[i])
			if i == 0 {
				// Safety net: unblock later stages even if stage 0
				// never reached an external command (e.g. a builtin
				// or compound command as the pipeline's first leg).
				jc.closeReady()
			}
			exits[i] = runners[i].exit
			if wc, ok := runners[i].stdout.(io.Closer); ok && i < n-1 {
				wc.Close()
			}
		}()
	}

	if foreground {
		r.Jobs.GrabTerminal(jc.awaitReady())
	}

	wg.Wait()
	for _, f := range pipes {
		f.Close()
	}

	if foreground {
		r.Jobs.GrabTerminal(r.Jobs.shellPG)
		r.Jobs.Remove(job.ID)
	}

	last := exits[n-1]
	if r.opts[optPipeFail] {
		for _, e := range exits {
			if e.code != 0 {
				last = e
			}
		}
	}
	r.exit = last
}

func (r *Runner) ifClause(ctx context.Context, c *syntax.IfClause) {
	r.stmts(ctx, c.CondStmts)
	if r.exit.code == 0 {
		r.stmts(ctx, c.ThenStmts)
		return
	}
	for _, elif := range c.Elifs {
		r.stmts(ctx, elif.CondStmts)
		if r.exit.code == 0 {
			r.stmts(ctx, elif.ThenStmts)
			return
		}
	}
	r.stmts(ctx, c.ElseStmts)
}

func (r *Runner) loopBody(ctx context.Context, body []*syntax.Stmt) (brk bool) {
	r.stmts(ctx, body)
	if r.breakEnclosing > 0 {
		r.breakEnclosing--
		return true
	}
	if r.contnEnclosing > 0 {
		r.contnEnclosing--
		if r.contnEnclosing > 0 {
			return true
		}
	}
	return r.exit.exiting || r.exit.returning
}

func (r *Runner) whileClause(ctx context.Context, w *syntax.WhileClause) {
	r.exit = exitStatus{code: 0}
	for {
		r.stmts(ctx, w.CondStmts)
		cond := r.exit.code == 0
		if w.Until {
			cond = r.exit.code != 0
		}
		if !cond || r.exit.exiting {
			return
		}
		if r.loopBody(ctx, w.DoStmts) {
			return
		}
	}
}

func (r *Runner) forClause(ctx context.Context, f *syntax.ForClause) {
	items := f.Items
	var words []string
	if items == nil {
		words = r.Params
	} else {
		words = r.ecfg.ExpandFields(ctx, items...)
	}
	r.exit = exitStatus{code: 0}
	for _, w := range words {
		r.setVarInternal(f.Var.Value, expand.Variable{Set: true, Kind: expand.String, Str: w})
		if r.loopBody(ctx, f.DoStmts) {
			return
		}
	}
}

func (r *Runner) cStyleLoop(ctx context.Context, c *syntax.CStyleLoop) {
	if c.Init != nil {
		r.ecfg.ExpandArithm(ctx, c.Init)
	}
	r.exit = exitStatus{code: 0}
	for c.Cond == nil || r.ecfg.ExpandArithm(ctx, c.Cond) != 0 {
		if r.loopBody(ctx, c.DoStmts) {
			return
		}
		if c.Update != nil {
			r.ecfg.ExpandArithm(ctx, c.Update)
		}
	}
}

func (r *Runner) selectClause(ctx context.Context, s *syntax.SelectClause) {
	items := r.ecfg.ExpandFields(ctx, s.Items...)
	ps3 := r.getVar("PS3")
	if ps3 == "" {
		ps3 = "#? "
	}
	for {
		for i, it := range items {
			fmt.Fprintf(r.stdout, "%d) %s\n", i+1, it)
		}
		fmt.Fprint(r.stderr, ps3)
		line, err := r.readLine(ctx)
		if err != nil {
			return
		}
		r.setVarInternal("REPLY", expand.Variable{Set: true, Kind: expand.String, Str: line})
		idx := -1
		fmt.Sscanf(strings.TrimSpace(line), "%d", &idx)
		choice := ""
		if idx >= 1 && idx <= len(items) {
			choice = items[idx-1]
		}
		r.setVarInternal(s.Var.Value, expand.Variable{Set: true, Kind: expand.String, Str: choice})
		if r.loopBody(ctx, s.DoStmts) {
			return
		}
	}
}

func (r *Runner) readLine(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	one := make([]byte, 1)
	for {
		n, err := r.stdin.Read(one)
		if n > 0 {
			if one[0] == '\n' {
				return buf.String(), nil
			}
			buf.WriteByte(one[0])
		}
		if err != nil {
			if buf.Len() > 0 {
				return buf.String(), nil
			}
			return "", err
		}
	}
}

func (r *Runner) caseClause(ctx context.Context, c *syntax.CaseClause) {
	word := r.ecfg.ExpandLiteral(ctx, c.Word)
	r.exit = exitStatus{code: 0}
	mode := pattern.Mode(0)
	if r.opts[optNoCaseGlob] {
		mode |= pattern.NoGlobCase
	}
item:
	for _, item := range c.Items {
		for _, pat := range item.Patterns {
			expr := r.ecfg.ExpandPattern(ctx, pat)
			if regexpMatch(expr, word, mode) {
				r.stmts(ctx, item.Stmts)
				break item
			}
		}
	}
}

// regexpMatch compiles a shell pattern as an entire-string regular
// expression and reports whether it matches word; used by case clauses
// and the `[[ == ]]`/`[[ != ]]` pattern tests.
func regexpMatch(expr, word string, mode pattern.Mode) bool {
	restr, err := pattern.Regexp(expr, mode|pattern.EntireString)
	if err != nil {
		return false
	}
	rx, err := regexp.Compile(restr)
	if err != nil {
		return false
	}
	return rx.MatchString(word)
}

func (r *Runner) testExpr(ctx context.Context, te syntax.TestExpr) bool {
	switch x := te.(type) {
	case *syntax.Word:
		return r.ecfg.ExpandLiteral(ctx, x) != ""
	case *syntax.ParenTest:
		return r.testExpr(ctx, x.X)
	case *syntax.NegatedTest:
		return !r.testExpr(ctx, x.X)
	case *syntax.UnaryTest:
		return r.unaryTest(ctx, x)
	case *syntax.BinaryTest:
		return r.binaryTest(ctx, x)
	default:
		panic(fmt.Sprintf("interp: unhandled test expr %T", te))
	}
}

func (r *Runner) unaryTest(ctx context.Context, x *syntax.UnaryTest) bool {
	operand := r.ecfg.ExpandLiteral(ctx, wordOf(x.X))
	switch x.Op {
	case token.TsExists:
		return statPath(operand) != nil
	case token.TsRegFile:
		info := statPath(operand)
		return info != nil && info.Mode().IsRegular()
	case token.TsDirect:
		return statMode(operand, os.ModeDir)
	case token.TsFIFO:
		return statMode(operand, os.ModeNamedPipe)
	case token.TsSocket:
		return statMode(operand, os.ModeSocket)
	case token.TsSymLink:
		info, err := os.Lstat(operand)
		return err == nil && info.Mode()&os.ModeSymlink != 0
	case token.TsGIDSet:
		return statMode(operand, os.ModeSetgid)
	case token.TsUIDSet:
		return statMode(operand, os.ModeSetuid)
	case token.TsSticky:
		return statMode(operand, os.ModeSticky)
	case token.TsSize:
		info := statPath(operand)
		return info != nil && info.Size() > 0
	case token.TsRead:
		return r.access(ctx, operand, access_R_OK) == nil
	case token.TsWrite:
		return r.access(ctx, operand, access_W_OK) == nil
	case token.TsExec:
		return r.access(ctx, operand, access_X_OK) == nil
	case token.TsEmpStr:
		return operand == ""
	case token.TsNempStr:
		return operand != ""
	case token.TsVarSet:
		return r.lookupVar(operand).IsSet()
	case token.TsOptSet:
		idx := nameIndex(operand)
		return idx >= 0 && r.opts[idx]
	case token.TsFdTerm:
		var stream any
		switch operand {
		case "0":
			stream = r.stdin
		case "1":
			stream = r.stdout
		case "2":
			stream = r.stderr
		}
		f, ok := stream.(*os.File)
		return ok && f != nil && termAttached(f.Fd())
	default:
		return false
	}
}

// wordOf wraps a TestExpr known to be a *syntax.Word back into itself,
// since UnaryTest/BinaryTest operands are typed as the TestExpr
// interface but are always plain words in this grammar.
func wordOf(te syntax.TestExpr) *syntax.Word {
	w, _ := te.(*syntax.Word)
	return w
}

func statPath(name string) os.FileInfo {
	info, err := os.Stat(name)
	if err != nil {
		return nil
	}
	return info
}

func statMode(name string, mode os.FileMode) bool {
	info := statPath(name)
	return info != nil && info.Mode()&mode != 0
}

func (r *Runner) binaryTest(ctx context.Context, x *syntax.BinaryTest) bool {
	if x.Op == token.AndAnd || x.Op == token.OrOr {
		left := r.testExpr(ctx, x.X)
		switch x.Op {
		case token.AndAnd:
			return left && r.testExpr(ctx, x.Y)
		default:
			return left || r.testExpr(ctx, x.Y)
		}
	}
	lhs := r.ecfg.ExpandLiteral(ctx, wordOf(x.X))
	switch x.Op {
	case token.TsReMatch:
		rhs := r.ecfg.ExpandLiteral(ctx, wordOf(x.Y))
		rx, err := regexp.Compile(rhs)
		return err == nil && rx.MatchString(lhs)
	case token.Eql:
		rhs := r.ecfg.ExpandPattern(ctx, wordOf(x.Y))
		return regexpMatch(rhs, lhs, 0)
	case token.Neq:
		rhs := r.ecfg.ExpandPattern(ctx, wordOf(x.Y))
		return !regexpMatch(rhs, lhs, 0)
	}
	rhs := r.ecfg.ExpandLiteral(ctx, wordOf(x.Y))
	switch x.Op {
	case token.TsNewer:
		i1, i2 := statPath(lhs), statPath(rhs)
		return i1 != nil && i2 != nil && i1.ModTime().After(i2.ModTime())
	case token.TsOlder:
		i1, i2 := statPath(lhs), statPath(rhs)
		return i1 != nil && i2 != nil && i1.ModTime().Before(i2.ModTime())
	case token.TsSame:
		i1, i2 := statPath(lhs), statPath(rhs)
		return i1 != nil && i2 != nil && os.SameFile(i1, i2)
	case token.TsEql:
		return atoi(lhs) == atoi(rhs)
	case token.TsNeq:
		return atoi(lhs) != atoi(rhs)
	case token.TsLe:
		return atoi(lhs) <= atoi(rhs)
	case token.TsGe:
		return atoi(lhs) >= atoi(rhs)
	case token.TsLt:
		return atoi(lhs) < atoi(rhs)
	case token.TsGt:
		return atoi(lhs) > atoi(rhs)
	case token.Lss:
		return lhs < rhs
	case token.Gtr:
		return lhs > rhs
	default:
		return false
	}
}

func atoi(s string) int {
	n := 0
	neg := false
	for i, c := range s {
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		return -n
	}
	return n
}

// doAssign handles one leading/standalone `name=value` assignment,
// including array literals and the `name+=value` append form.
func (r *Runner) doAssign(ctx context.Context, as *syntax.Assign) {
	name := as.Name.Value
	if as.Value != nil {
		val := r.ecfg.ExpandLiteral(ctx, as.Value)
		if as.Append {
			val = r.getVar(name) + val
		}
		var index *int
		if as.Index != nil {
			i := r.ecfg.ExpandArithm(ctx, as.Index.Word)
			index = &i
		}
		r.assignScalar(name, val, index)
		return
	}
	if as.Array != nil {
		r.assignArray(ctx, name, as.Array, as.Append)
	}
}

func (r *Runner) assignScalar(name, val string, index *int) {
	if index == nil {
		r.setVarInternal(name, expand.Variable{Set: true, Kind: expand.String, Str: val})
		return
	}
	cur := r.lookupVar(name)
	list := append([]string(nil), cur.List...)
	for len(list) <= *index {
		list = append(list, "")
	}
	list[*index] = val
	r.setVarInternal(name, expand.Variable{Set: true, Kind: expand.Indexed, List: list})
}

func (r *Runner) assignArray(ctx context.Context, name string, arr *syntax.ArrayExpr, appendTo bool) {
	assoc := false
	for _, el := range arr.Elems {
		if el.Index != nil && len(el.Index.Parts) > 0 {
			switch el.Index.Parts[0].(type) {
			case *syntax.DblQuoted, *syntax.SglQuoted:
				assoc = true
			}
		}
	}
	if assoc {
		m := map[string]string{}
		if appendTo {
			if cur := r.lookupVar(name); cur.Kind == expand.Associative {
				for k, v := range cur.Map {
					m[k] = v
				}
			}
		}
		for _, el := range arr.Elems {
			k := r.ecfg.ExpandLiteral(ctx, el.Index)
			m[k] = r.ecfg.ExpandLiteral(ctx, el.Value)
		}
		r.setVarInternal(name, expand.Variable{Set: true, Kind: expand.Associative, Map: m})
		return
	}
	var list []string
	if appendTo {
		if cur := r.lookupVar(name); cur.Kind == expand.Indexed {
			list = append(list, cur.List...)
		}
	}
	next := len(list)
	for _, el := range arr.Elems {
		idx := next
		if el.Index != nil {
			idx = r.ecfg.ExpandArithm(ctx, el.Index)
		}
		for len(list) <= idx {
			list = append(list, "")
		}
		list[idx] = r.ecfg.ExpandLiteral(ctx, el.Value)
		next = idx + 1
	}
	r.setVarInternal(name, expand.Variable{Set: true, Kind: expand.Indexed, List: list})
}

// call runs a *syntax.CallExpr: expand assignments and fields, run alias
// substitution, then dispatch to a function, builtin, or external exec.
func (r *Runner) call(ctx context.Context, ce *syntax.CallExpr) {
	if len(ce.Args) == 0 {
		r.exit = exitStatus{code: 0}
		return
	}
	fields := r.expandArgsWithAlias(ctx, ce.Args)
	if len(fields) == 0 {
		r.exit = exitStatus{code: 0}
		return
	}
	if r.CallHandler != nil {
		var err error
		fields, err = r.CallHandler(ctx, fields)
		if err != nil {
			r.exit = exitStatus{code: 1, fatalErr: err}
			return
		}
	}
	name := fields[0]
	tr := r.tracer()
	tr.call(name, fields[1:]...)

	if body, ok := r.Funcs[name]; ok {
		r.callFunc(ctx, body, fields)
		return
	}
	if IsBuiltin(name) {
		r.exit = r.builtin(ctx, ce.Pos(), name, fields[1:])
		return
	}
	r.execExternal(ctx, fields)
}

func (r *Runner) expandArgsWithAlias(ctx context.Context, args []*syntax.Word) []string {
	if len(args) > 0 && r.opts[optExpandAliases] {
		if lit, ok := args[0].Lit(); ok {
			if a, ok := r.alias[lit]; ok {
				merged := append(append([]*syntax.Word(nil), a.args...), args[1:]...)
				return r.ecfg.ExpandFields(ctx, merged...)
			}
		}
	}
	return r.ecfg.ExpandFields(ctx, args...)
}

func (r *Runner) callFunc(ctx context.Context, body *syntax.Stmt, fields []string) {
	oldParams := r.Params
	r.Params = fields[1:]
	r.pushFuncScope()
	r.inFunc++
	r.stmtSync(ctx, body)
	r.inFunc--
	r.popFuncScope()
	r.Params = oldParams
	if r.exit.returning {
		r.exit.returning = false
	}
}

func (r *Runner) execExternal(ctx context.Context, fields []string) {
	hc := HandlerCtx(ctx)
	hc.Env = runnerEnviron{r}
	hc.Dir = r.Dir
	hc.Stdin, hc.Stdout, hc.Stderr = r.stdin, r.stdout, r.stderr
	ctx = context.WithValue(ctx, handlerCtxKey{}, hc)

	handler := r.execHandler
	for i := len(r.execMiddlewares) - 1; i >= 0; i-- {
		handler = r.execMiddlewares[i](handler)
	}
	err := handler(ctx, fields)
	switch {
	case err == nil:
		r.exit = exitStatus{code: 0}
	default:
		if code, ok := IsExitStatus(err); ok {
			r.exit = exitStatus{code: code}
		} else if ee, ok := err.(*exec.ExitError); ok {
			r.exit = exitStatus{code: uint8(ee.ExitCode())}
		} else {
			r.exit = exitStatus{code: 1, fatalErr: err}
		}
	}
}

// pushRedirs applies a statement's redirections against the Runner's
// current file descriptors, returning what to restore afterward.
func (r *Runner) pushRedirs(ctx context.Context, rs []*syntax.Redirect) (old []func()) {
	for _, rd := range rs {
		restore := r.redir(ctx, rd)
		if restore != nil {
			old = append(old, restore)
		}
	}
	return old
}

func (r *Runner) popRedirs(old []func()) {
	for i := len(old) - 1; i >= 0; i-- {
		old[i]()
	}
}

func (r *Runner) redir(ctx context.Context, rd *syntax.Redirect) func() {
	fd := 1
	switch rd.Op {
	case token.Lss, token.RdrInOut, token.DplIn:
		fd = 0
	}
	if rd.N != nil {
		fmt.Sscanf(rd.N.Value, "%d", &fd)
	}

	switch rd.Op {
	case token.Shl, token.DHeredoc:
		body := rd.Hdoc.Lit
		_ = body
		text := r.ecfg.ExpandLiteral(ctx, rd.Hdoc)
		if rd.Op == token.DHeredoc {
			text = stripHdocTabs(text)
		}
		return r.setStream(fd, hdocReader(text))
	case token.WHeredoc:
		body := r.ecfg.ExpandLiteral(ctx, rd.Word) + "\n"
		return r.setStream(fd, hdocReader(body))
	case token.Lss:
		f, err := r.openRedirTarget(ctx, rd, os.O_RDONLY, 0)
		if err != nil {
			return nil
		}
		return r.setStream(fd, f)
	case token.Gtr:
		f, err := r.openRedirTarget(ctx, rd, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return nil
		}
		return r.setStream(fd, f)
	case token.Shr:
		f, err := r.openRedirTarget(ctx, rd, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil
		}
		return r.setStream(fd, f)
	case token.RdrInOut:
		f, err := r.openRedirTarget(ctx, rd, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil
		}
		return r.setStream(fd, f)
	case token.RdrAll, token.AppAll:
		flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if rd.Op == token.AppAll {
			flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		}
		f, err := r.openRedirTarget(ctx, rd, flag, 0o644)
		if err != nil {
			return nil
		}
		restoreOut := r.setStream(1, f)
		restoreErr := r.setStream(2, f)
		return func() { restoreErr(); restoreOut() }
	case token.DplOut, token.DplIn:
		target := r.ecfg.ExpandLiteral(ctx, rd.Word)
		if target == "-" {
			return r.setStream(fd, nil)
		}
		return nil
	default:
		return nil
	}
}

func (r *Runner) openRedirTarget(ctx context.Context, rd *syntax.Redirect, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	path := r.ecfg.ExpandLiteral(ctx, rd.Word)
	hc := HandlerCtx(ctx)
	hc.Dir = r.Dir
	ctx = context.WithValue(ctx, handlerCtxKey{}, hc)
	f, err := r.openHandler(ctx, path, flag, perm)
	if err != nil {
		r.errf("%v\n", err)
		r.exit = exitStatus{code: 1}
		return nil, err
	}
	return f, nil
}

func (r *Runner) setStream(fd int, rwc io.ReadWriteCloser) func() {
	switch fd {
	case 0:
		old := r.stdin
		switch v := rwc.(type) {
		case *os.File:
			r.stdin = v
		case nil:
			r.stdin = nil
		default:
			pr, pw, _ := os.Pipe()
			go func() { io.Copy(pw, v); pw.Close() }()
			r.stdin = pr
		}
		return func() { r.stdin = old }
	case 1:
		old := r.stdout
		r.stdout = rwc
		return func() { r.stdout = old }
	case 2:
		old := r.stderr
		r.stderr = rwc
		return func() { r.stderr = old }
	default:
		return func() {}
	}
}

func hdocReader(body string) io.ReadWriteCloser {
	return nopWriteCloser{strings.NewReader(body)}
}

type nopWriteCloser struct{ io.Reader }

func (nopWriteCloser) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("cannot write to a here-doc")
}
func (nopWriteCloser) Close() error { return nil }

func stripHdocTabs(body string) string {
	lines := strings.Split(body, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimLeft(l, "\t")
	}
	return strings.Join(lines, "\n")
}

// subshellExpand backs expand.Context.Subshell: it runs a command
// substitution's statement list in a forked copy of the Runner and
// captures its stdout, the way `$(...)` and backquotes do.
func (r *Runner) subshellExpand(ctx context.Context, w io.Writer, stmts []*syntax.Stmt) {
	sub := r.subshell(false)
	sub.stdout = w
	sub.stmts(ctx, stmts)
	r.lastExit = sub.exit.code
}

// procSubstExpand backs expand.Context.ProcSubst: it creates a FIFO,
// forks a copy of the Runner to stream through it in the background, and
// returns the path for the enclosing word to use, e.g. as an argument to
// diff for `diff <(cmd1) <(cmd2)`.
func (r *Runner) procSubstExpand(ctx context.Context, ps *syntax.ProcSubst) (string, error) {
	dir := r.procSubstDir()
	path := filepath.Join(dir, fmt.Sprintf("%d", procSubstCounter.next()))
	if err := mkfifo(path, 0o600); err != nil {
		return "", err
	}
	sub := r.subshell(true)
	go func() {
		flag := os.O_WRONLY
		if ps.Op == token.ProcIn {
			flag = os.O_RDONLY
		}
		f, err := os.OpenFile(path, flag, 0)
		if err != nil {
			return
		}
		defer f.Close()
		defer os.Remove(path)
		if ps.Op == token.ProcIn {
			sub.stdout = f
		} else {
			sub.stdin = f
		}
		sub.stmts(ctx, ps.Stmts)
	}()
	return path, nil
}

var procSubstCounter counter

type counter struct {
	mu sync.Mutex
	n  uint64
}

func (c *counter) next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

func (r *Runner) procSubstDir() string {
	if r.tempDir != "" {
		return r.tempDir
	}
	dir, err := os.MkdirTemp("", "dusk-procsubst")
	if err != nil {
		dir = os.TempDir()
	}
	r.tempDir = dir
	return dir
}

func (r *Runner) changeDir(ctx context.Context, path string) int {
	path = r.absPath(path)
	info, err := r.statHandler(ctx, path, true)
	if err != nil || !info.IsDir() {
		return 1
	}
	r.Dir = path
	r.setVarInternal("OLDPWD", expand.Variable{Set: true, Kind: expand.String, Str: r.getVar("PWD")})
	r.setVarInternal("PWD", expand.Variable{Set: true, Kind: expand.String, Str: path})
	return 0
}

func (r *Runner) absPath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(r.Dir, path)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
