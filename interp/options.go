// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import "fmt"

// Shell options settable via `set -o name` / `set +o name` or their short
// flags. The bash extensions beyond the POSIX set are also toggled with
// `set -o name` / `set +o name`; there is no `shopt` builtin. The index
// into Runner.opts is fixed at init time by position in these two tables.
const (
	optAllExport = iota
	optNoExec
	optNoGlob
	optNoLog
	optNoUnset
	optMonitor
	optNoExit
	optPipeFail
	optErrExit
	optNoCaseGlob
	optXTrace
)

var shellOptsTable = [...]struct {
	flag string
	name string
}{
	optAllExport:  {"a", "allexport"},
	optNoExec:     {"n", "noexec"},
	optNoGlob:     {"f", "noglob"},
	optNoLog:      {"", "nolog"},
	optNoUnset:    {"u", "nounset"},
	optMonitor:    {"m", "monitor"},
	optNoExit:     {"", "noexit"},
	optPipeFail:   {"", "pipefail"},
	optErrExit:    {"e", "errexit"},
	optNoCaseGlob: {"", "noglobcase"},
	optXTrace:     {"x", "xtrace"},
}

// onlySetOptsTable holds the bash extensions that have no single-letter
// flag; they are set only by name with `set -o`.
const (
	optGlobStar = len(shellOptsTable) + iota
	optNullGlob
	optDotGlob
	optExpandAliases
)

var onlySetOptsTable = [...]struct{ name string }{
	optGlobStar - len(shellOptsTable):      {"globstar"},
	optNullGlob - len(shellOptsTable):      {"nullglob"},
	optDotGlob - len(shellOptsTable):       {"dotglob"},
	optExpandAliases - len(shellOptsTable): {"expand_aliases"},
}

func flagIndex(flag byte) int {
	for i, opt := range shellOptsTable {
		if opt.flag != "" && opt.flag[0] == flag {
			return i
		}
	}
	return -1
}

func nameIndex(name string) int {
	for i, opt := range shellOptsTable {
		if opt.name == name {
			return i
		}
	}
	for i, opt := range onlySetOptsTable {
		if opt.name == name {
			return len(shellOptsTable) + i
		}
	}
	return -1
}

// setOptions parses a `set`-style argument list, applying any leading `-o
// name`/`+o name` and single-letter flags to opts, and returning the
// remaining positional arguments.
func setOptions(opts *[len(shellOptsTable) + len(onlySetOptsTable)]bool, args []string) ([]string, error) {
	i := 0
	for ; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			i++
			break
		}
		if len(arg) < 2 || (arg[0] != '-' && arg[0] != '+') {
			break
		}
		enable := arg[0] == '-'
		if arg[1] == 'o' {
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("set: -o requires an argument")
			}
			idx := nameIndex(args[i])
			if idx < 0 {
				return nil, fmt.Errorf("set: invalid option name %q", args[i])
			}
			opts[idx] = enable
			continue
		}
		for _, c := range arg[1:] {
			idx := flagIndex(byte(c))
			if idx < 0 {
				return nil, fmt.Errorf("set: invalid option: -%c", c)
			}
			opts[idx] = enable
		}
	}
	return args[i:], nil
}
