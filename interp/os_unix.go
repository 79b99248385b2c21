// Copyright (c) 2017, Andrey Nering <andrey.nering@gmail.com>
// See LICENSE for licensing information

//go:build unix

package interp

import (
	"context"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// mkfifo creates the named pipe process substitution streams through.
func mkfifo(path string, mode uint32) error {
	return unix.Mkfifo(path, mode)
}

// access is similar to checking the permission bits from [io/fs.FileInfo],
// but it also takes into account the current user's role.
func (r *Runner) access(ctx context.Context, path string, mode uint32) error {
	return unix.Access(path, mode)
}

type waitStatus = syscall.WaitStatus

const (
	access_R_OK = unix.R_OK
	access_W_OK = unix.W_OK
	access_X_OK = unix.X_OK
)

func syscallKill(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}

// syscallKillGroup signals every process in pgid at once, the form `kill
// %job` should prefer once a job's pgid is known, per spec 4.6.
func syscallKillGroup(pgid int, sig syscall.Signal) error {
	return syscall.Kill(-pgid, sig)
}

// setJobProcAttr puts the child being started into its own process
// group (pgid 0: it becomes the leader, pgid == its own pid) or into an
// already-running one (pgid > 0: typically an earlier pipeline stage),
// per spec 4.5's "puts the child in its own process group".
func setJobProcAttr(cmd *exec.Cmd, pgid int) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pgid: pgid}
}
