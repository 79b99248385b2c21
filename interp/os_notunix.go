// Copyright (c) 2017, Andrey Nering <andrey.nering@gmail.com>
// See LICENSE for licensing information

//go:build !unix

package interp

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"
)

func mkfifo(path string, mode uint32) error {
	return fmt.Errorf("unsupported")
}

const (
	access_R_OK uint32 = 4
	access_W_OK uint32 = 2
	access_X_OK uint32 = 1
)

func syscallKill(pid int, sig syscall.Signal) error {
	return fmt.Errorf("kill: unsupported on this platform")
}

func syscallKillGroup(pgid int, sig syscall.Signal) error {
	return fmt.Errorf("kill: unsupported on this platform")
}

// setJobProcAttr is a no-op: process groups have no equivalent here.
func setJobProcAttr(cmd *exec.Cmd, pgid int) {}

// access attempts to emulate [unix.Access] on non-Unix platforms, relying
// on what [io/fs.FileInfo] gives us.
func (r *Runner) access(ctx context.Context, path string, mode uint32) error {
	info, err := r.statHandler(ctx, path, true)
	if err != nil {
		return err
	}
	m := info.Mode()
	switch mode {
	case access_R_OK:
		if m&0o400 == 0 {
			return fmt.Errorf("file is not readable")
		}
	case access_W_OK:
		if m&0o200 == 0 {
			return fmt.Errorf("file is not writable")
		}
	case access_X_OK:
		if m&0o100 == 0 {
			return fmt.Errorf("file is not executable")
		}
	}
	return nil
}

type waitStatus struct{}

func (waitStatus) Signaled() bool { return false }
func (waitStatus) Signal() int    { return 0 }
