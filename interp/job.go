// Job control: process groups, terminal ownership, and the Jobs table
// consulted by the jobs/fg/bg/wait/kill builtins (spec 4.6). The teacher
// this interpreter is built from targets embedding and has no job
// control of its own; this file is new, grounded in the general POSIX
// job-control protocol (setpgid/tcsetpgrp around fork, SIGCHLD-driven
// reaping) rather than ported from any single teacher file.
package interp

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// JobState is the lifecycle state of a job in the Jobs table.
type JobState int

const (
	JobRunning JobState = iota
	JobStopped
	JobDone
	JobTerminated
)

func (s JobState) String() string {
	switch s {
	case JobRunning:
		return "Running"
	case JobStopped:
		return "Stopped"
	case JobDone:
		return "Done"
	case JobTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Job is one entry of the Jobs table: a pipeline run as its own process
// group, tracked from the moment it is forked until it is reaped and
// reported to the user.
type Job struct {
	ID      int
	PGID    int
	Pids    []int
	Cmdline string
	State   JobState
	Signal  int // valid when State == JobTerminated
	notified bool
}

// jobTable is the shell's own Jobs table (spec 3.3's "jobs"), mutated
// only by the shell process in response to SIGCHLD or an explicit wait.
type jobTable struct {
	mu      sync.Mutex
	jobs    []*Job
	nextID  int
	termFd  int // controlling terminal fd, or -1 if none
	shellPG int
}

func newJobTable() *jobTable {
	return &jobTable{nextID: 1, termFd: -1}
}

// Add registers a newly forked pipeline as a job and returns it. Callers
// print "[id] pgid" for background jobs right after this, per spec 4.6.
// pgid is usually unknown yet (0) at this point: it is filled in by
// addPid once the job's first real child starts.
func (jt *jobTable) Add(pgid int, pids []int, cmdline string) *Job {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	j := &Job{ID: jt.nextID, PGID: pgid, Pids: pids, Cmdline: cmdline, State: JobRunning}
	jt.nextID++
	jt.jobs = append(jt.jobs, j)
	return j
}

// addPid records a child that was just started as part of j. The first
// pid recorded becomes j's process group id, since that child is the
// one given Setpgid with Pgid 0 (see jobContext/setJobProcAttr) to found
// the group every later stage joins.
func (jt *jobTable) addPid(j *Job, pid int) {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	j.Pids = append(j.Pids, pid)
	if j.PGID <= 0 {
		j.PGID = pid
	}
}

// pgidOf reads j.PGID under the table's lock, since addPid can race with
// readers such as the `!` special parameter or the `jobs` builtin.
func (jt *jobTable) pgidOf(j *Job) int {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	return j.PGID
}

// jobContext threads process-group formation through a job's (or a
// foreground pipeline's) external command executions via the context
// passed to ExecHandlerFunc: the first stage becomes the process group
// leader (Setpgid, Pgid 0); every later stage waits for the leader's pid
// and joins that same group, per spec 4.5's "puts the child in its own
// process group" and 4.6's pgid-based terminal transfer.
type jobContext struct {
	job    *Job
	jobs   *jobTable
	leader bool

	shared *jobContextShared
}

// jobContextShared is the state every stage of the same job/pipeline
// shares; jobContext copies are per-stage views onto it.
type jobContextShared struct {
	ready chan struct{}
	once  sync.Once
}

// newJobContext builds the coordination state for one job (or one
// foreground pipeline run), shared by every stage's ExecHandlerFunc call.
func newJobContext(jobs *jobTable, job *Job) *jobContext {
	return &jobContext{job: job, jobs: jobs, shared: &jobContextShared{ready: make(chan struct{})}}
}

// forStage returns the per-stage view of jc: leader is true only for the
// pipeline's first stage.
func (jc *jobContext) forStage(leader bool) *jobContext {
	return &jobContext{job: jc.job, jobs: jc.jobs, leader: leader, shared: jc.shared}
}

// closeReady unblocks any stage waiting on the leader's pid. Safe to call
// more than once (e.g. the leader stage turns out to be a builtin that
// never execs, so pipeline() closes it itself once that stage is done to
// avoid leaving followers waiting forever).
func (jc *jobContext) closeReady() {
	jc.shared.once.Do(func() { close(jc.shared.ready) })
}

// awaitReady blocks until the leader's pid is known (or closeReady's
// fallback fires), then returns the job's current pgid.
func (jc *jobContext) awaitReady() int {
	<-jc.shared.ready
	return jc.jobs.pgidOf(jc.job)
}

// Remove drops a job from the table, e.g. once its completion has been
// reported to the user.
func (jt *jobTable) Remove(id int) {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	for i, j := range jt.jobs {
		if j.ID == id {
			jt.jobs = append(jt.jobs[:i], jt.jobs[i+1:]...)
			return
		}
	}
}

// ByID finds a job, or nil.
func (jt *jobTable) ByID(id int) *Job {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	for _, j := range jt.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// Current returns the most recently added job still in the table, the
// target of a bare `fg`/`bg` with no job argument.
func (jt *jobTable) Current() *Job {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	if len(jt.jobs) == 0 {
		return nil
	}
	return jt.jobs[len(jt.jobs)-1]
}

// All returns a snapshot of the job list, in table order, for `jobs`.
func (jt *jobTable) All() []*Job {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	out := make([]*Job, len(jt.jobs))
	copy(out, jt.jobs)
	return out
}

// reapOne calls waitpid(WNOHANG) for any child and updates the matching
// job's state, returning whether a state transition happened worth
// reporting to the user at the next prompt.
func (jt *jobTable) reapOne() bool {
	var ws unix.WaitStatus
	pid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED, nil)
	if err != nil || pid <= 0 {
		return false
	}
	jt.mu.Lock()
	defer jt.mu.Unlock()
	for _, j := range jt.jobs {
		for _, p := range j.Pids {
			if p != pid {
				continue
			}
			switch {
			case ws.Exited() || ws.Signaled():
				j.State = JobDone
				if ws.Signaled() {
					j.State = JobTerminated
					j.Signal = int(ws.Signal())
				}
			case ws.Stopped():
				j.State = JobStopped
			case ws.Continued():
				j.State = JobRunning
			}
			j.notified = false
			return true
		}
	}
	return false
}

// ReapAll drains every pending SIGCHLD-reportable child without
// blocking; called from the signal handler and from the prompt loop.
func (jt *jobTable) ReapAll() {
	for jt.reapOne() {
	}
}

// PendingNotifications returns, and marks as delivered, the jobs whose
// state changed since the last report, for printing right before the
// next prompt per spec 4.6.
func (jt *jobTable) PendingNotifications() []*Job {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	var out []*Job
	kept := jt.jobs[:0]
	for _, j := range jt.jobs {
		if !j.notified && (j.State == JobDone || j.State == JobTerminated || j.State == JobStopped) {
			out = append(out, j)
			j.notified = true
		}
		if j.State != JobDone && j.State != JobTerminated {
			kept = append(kept, j)
		}
	}
	jt.jobs = kept
	return out
}

// GrabTerminal makes pgid the foreground process group of the
// controlling terminal, per spec 4.6's "foreground pipelines transfer
// terminal ownership". Ignored when there is no controlling terminal
// (non-interactive scripts, pipelines in tests).
func (jt *jobTable) GrabTerminal(pgid int) {
	if jt.termFd < 0 {
		return
	}
	unix.IoctlSetPointerInt(jt.termFd, unix.TIOCSPGRP, pgid)
}

// Claim looks for a controlling terminal on stdin and, if interactive,
// takes ownership for the shell's own process group.
func (jt *jobTable) Claim(interactive bool) {
	if !interactive {
		return
	}
	if !termAttached(os.Stdin.Fd()) {
		return
	}
	jt.termFd = int(os.Stdin.Fd())
	jt.shellPG, _ = unix.Getpgid(os.Getpid())
	jt.GrabTerminal(jt.shellPG)
}

func termAttached(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
	return err == nil
}

// formatJobLine renders one `jobs` builtin row.
func formatJobLine(j *Job, current bool) string {
	mark := " "
	if current {
		mark = "+"
	}
	state := j.State.String()
	if j.State == JobTerminated {
		state = fmt.Sprintf("Terminated(%d)", j.Signal)
	}
	return fmt.Sprintf("[%d]%s  %-12s %s", j.ID, mark, state, j.Cmdline)
}
