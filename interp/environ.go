// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"os"
	"strconv"
	"strings"

	"github.com/duskshell/dusk/expand"
)

// funcScope is one entry of the function-call local variable stack. Each
// nested function invocation pushes a scope; `local` writes land in the
// top one and are popped on return, the same way bash scopes locals to
// the innermost function activation.
type funcScope struct {
	vars map[string]expand.Variable
}

// runnerEnviron adapts a Runner's layered variable storage (process
// environment, shell-global Vars, and the function-local scope stack) to
// the single expand.WriteEnviron the expander needs. Lookup order is
// locals (innermost scope first), then shell globals, then the inherited
// process environment; Set writes to the innermost local scope if one
// declared the name, otherwise to the shell globals.
type runnerEnviron struct {
	r *Runner
}

func (e runnerEnviron) Get(name string) expand.Variable {
	return e.r.lookupVar(name)
}

func (e runnerEnviron) Set(name string, vr expand.Variable) error {
	return e.r.setVarInternal(name, vr)
}

func (e runnerEnviron) Each(fn func(name string, vr expand.Variable) bool) {
	seen := map[string]bool{}
	for i := len(e.r.funcStack) - 1; i >= 0; i-- {
		for name, vr := range e.r.funcStack[i].vars {
			if seen[name] {
				continue
			}
			seen[name] = true
			if !fn(name, vr) {
				return
			}
		}
	}
	for name, vr := range e.r.Vars {
		if seen[name] {
			continue
		}
		seen[name] = true
		if !fn(name, vr) {
			return
		}
	}
	e.r.Env.Each(func(name string, vr expand.Variable) bool {
		if seen[name] {
			return true
		}
		seen[name] = true
		return fn(name, vr)
	})
}

// lookupVar resolves a variable name through the dynamic special
// parameters ($?, $$, positional params, ...), the function-local scope
// stack, the shell's own globals, and finally the inherited process
// environment, in that order.
func (r *Runner) lookupVar(name string) expand.Variable {
	if name == "" {
		return expand.Variable{}
	}
	if vr, ok := r.dynamicVar(name); ok {
		return vr
	}
	for i := len(r.funcStack) - 1; i >= 0; i-- {
		if vr, ok := r.funcStack[i].vars[name]; ok {
			return vr
		}
	}
	if vr, ok := r.Vars[name]; ok {
		return vr
	}
	if vr := r.Env.Get(name); vr.IsSet() || vr.Declared() {
		return vr
	}
	if r.opts[optNoUnset] {
		r.errf("%s: unbound variable\n", name)
		r.setExit(1)
	}
	return expand.Variable{}
}

// dynamicVar resolves the special parameters that are computed on every
// read rather than stored: the positional-parameter family, process
// identity, and a handful of bash extensions the builtin set exercises
// (RANDOM, SECONDS). LINENO is resolved by the expander, not here.
func (r *Runner) dynamicVar(name string) (expand.Variable, bool) {
	str := func(s string) (expand.Variable, bool) {
		return expand.Variable{Set: true, Kind: expand.String, Str: s}, true
	}
	switch name {
	case "#":
		return str(strconv.Itoa(len(r.Params)))
	case "@", "*":
		return expand.Variable{Set: true, Kind: expand.Indexed, List: r.Params}, true
	case "?":
		return str(strconv.Itoa(int(r.lastExit)))
	case "$":
		return str(strconv.Itoa(os.Getpid()))
	case "PPID":
		return str(strconv.Itoa(os.Getppid()))
	case "0":
		if r.filename != "" {
			return str(r.filename)
		}
		return str("dusk")
	case "RANDOM":
		return str(strconv.Itoa(int(r.randState.next())))
	case "SECONDS":
		return str(strconv.FormatFloat(r.secondsElapsed(), 'f', -1, 64))
	case "!":
		if r.lastBgJob == nil {
			return str("")
		}
		return str(strconv.Itoa(r.lastBgJob.PGID))
	case "-":
		var b strings.Builder
		if r.Interactive {
			b.WriteByte('i')
		}
		for idx, opt := range shellOptsTable {
			if opt.flag != "" && r.opts[idx] {
				b.WriteString(opt.flag)
			}
		}
		return str(b.String())
	}
	if len(name) == 1 && name[0] >= '1' && name[0] <= '9' {
		i := int(name[0] - '1')
		if i < len(r.Params) {
			return str(r.Params[i])
		}
		return str("")
	}
	return expand.Variable{}, false
}

// setVarInternal stores a variable, honoring read-only and scoping it to
// the innermost function activation when one is active and the name is
// already local there (mirrors bash: a plain assignment inside a
// function updates an existing local rather than shadowing at global
// scope a second time).
func (r *Runner) setVarInternal(name string, vr expand.Variable) error {
	cur := r.lookupVar(name)
	if cur.ReadOnly && vr.Kind != expand.KeepValue {
		r.errf("%s: readonly variable\n", name)
		r.setExit(1)
		return nil
	}
	if vr.Kind == expand.KeepValue {
		vr.Kind = cur.Kind
		vr.Str, vr.List, vr.Map = cur.Str, cur.List, cur.Map
		vr.Set = cur.Set
	}
	if r.opts[optAllExport] && vr.Kind == expand.String {
		vr.Exported = true
	}
	if n := len(r.funcStack); n > 0 {
		if _, local := r.funcStack[n-1].vars[name]; local || vr.Local {
			vr.Local = true
			r.funcStack[n-1].vars[name] = vr
			if name == "IFS" {
				r.ifsUpdated()
			}
			return nil
		}
	}
	if !vr.IsSet() && !vr.Declared() {
		delete(r.Vars, name)
	} else {
		r.Vars[name] = vr
	}
	if name == "IFS" {
		r.ifsUpdated()
	}
	return nil
}

func (r *Runner) getVar(name string) string {
	return r.lookupVar(name).String()
}

func (r *Runner) delVar(name string) {
	vr := r.lookupVar(name)
	if vr.ReadOnly {
		r.errf("%s: readonly variable\n", name)
		r.setExit(1)
		return
	}
	for i := len(r.funcStack) - 1; i >= 0; i-- {
		if _, ok := r.funcStack[i].vars[name]; ok {
			delete(r.funcStack[i].vars, name)
			return
		}
	}
	delete(r.Vars, name)
}

func (r *Runner) ifsUpdated() {
	runes := r.getVar("IFS")
	r.ifs = runes
}

// pushFuncScope begins a new local-variable scope for a function call.
func (r *Runner) pushFuncScope() {
	r.funcStack = append(r.funcStack, &funcScope{vars: map[string]expand.Variable{}})
}

func (r *Runner) popFuncScope() {
	r.funcStack = r.funcStack[:len(r.funcStack)-1]
}

// EnvFromList builds an expand.Environ from a "key=value" slice such as
// os.Environ(), the shape every exec'd child process and the initial
// Runner environment are built from.
func EnvFromList(list []string) (expand.WriteEnviron, error) {
	pairs := make([]string, 0, len(list))
	for _, kv := range list {
		if !strings.Contains(kv, "=") {
			continue
		}
		pairs = append(pairs, kv)
	}
	return writeListEnviron{expand.ListEnviron(pairs...)}, nil
}

// writeListEnviron adapts the read-only expand.ListEnviron into a
// WriteEnviron whose Set is a no-op; the process environment a Runner
// inherits is never mutated directly, only shadowed by Runner.Vars.
type writeListEnviron struct {
	expand.Environ
}

func (writeListEnviron) Set(name string, vr expand.Variable) error { return nil }

func execEnv(env expand.Environ) []string {
	list := make([]string, 0, 64)
	env.Each(func(name string, vr expand.Variable) bool {
		if vr.Exported && vr.Kind == expand.String {
			list = append(list, name+"="+vr.Str)
		}
		return true
	})
	return list
}
