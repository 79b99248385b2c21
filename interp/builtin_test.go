// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"testing"
)

func runScript(t *testing.T, src string, opts ...RunnerOption) (stdout, stderr string, err error) {
	t.Helper()
	var out, errBuf concBuffer
	allOpts := append([]RunnerOption{StdIO(nil, &out, &errBuf)}, opts...)
	r, rerr := New(allOpts...)
	if rerr != nil {
		t.Fatal(rerr)
	}
	file := parse(t, nil, src)
	err = r.Run(context.Background(), file)
	return out.String(), errBuf.String(), err
}

var builtinCases = []struct {
	name string
	src  string
	want string
}{
	{"EchoPlain", "echo hello world", "hello world\n"},
	{"EchoDashN", "echo -n no-newline", "no-newline"},
	{"Pwd", "cd /tmp && pwd", "/tmp\n"},
	{"Export", "export FOO=bar; echo $FOO", "bar\n"},
	{"Unset", "FOO=bar; unset FOO; echo \"[$FOO]\"", "[]\n"},
	{"TestBracket", `[ 1 -lt 2 ] && echo yes || echo no`, "yes\n"},
	{"TestString", `[ -z "" ] && echo empty`, "empty\n"},
	{"Shift", "set -- a b c; shift; echo $1", "b\n"},
	{"ColonIsNoop", ": ignored; echo after", "after\n"},
	{"DeclareVar", "declare x=5; echo $x", "5\n"},
}

func TestBuiltins(t *testing.T) {
	t.Parallel()
	for _, tc := range builtinCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, stderr, err := runScript(t, tc.src)
			if err != nil {
				if _, ok := IsExitStatus(err); !ok {
					t.Fatalf("unexpected error: %v (stderr: %s)", err, stderr)
				}
			}
			if got != tc.want {
				t.Fatalf("want %q, got %q (stderr: %s)", tc.want, got, stderr)
			}
		})
	}
}

func TestExitBuiltin(t *testing.T) {
	t.Parallel()
	_, _, err := runScript(t, "exit 3")
	code, ok := IsExitStatus(err)
	if !ok || code != 3 {
		t.Fatalf("want exit status 3, got %v", err)
	}
}

func TestHistoryBuiltin(t *testing.T) {
	t.Parallel()
	var out concBuffer
	r, err := New(StdIO(nil, &out, &out))
	if err != nil {
		t.Fatal(err)
	}
	r.History = NewHistory("", 10)
	r.History.Add("echo one")
	r.History.Add("echo two")

	file := parse(t, nil, "history")
	if err := r.Run(context.Background(), file); err != nil {
		t.Fatal(err)
	}
	want := "    1  echo one\n    2  echo two\n"
	if got := out.String(); got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestIsBuiltin(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"cd", "echo", "export", "test", "["} {
		if !IsBuiltin(name) {
			t.Errorf("want %q recognized as a builtin", name)
		}
	}
	if IsBuiltin("definitely-not-a-builtin") {
		t.Error("want an arbitrary program name not recognized as a builtin")
	}
}
