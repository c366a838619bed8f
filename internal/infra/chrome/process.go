package chrome

import (
	"errors"
	"os"
	"sync/atomic"
	"syscall"

	"pdfgen/internal/domain"
)

var _ domain.Process = (*process)(nil)

// process wraps the browser's OS process for the reaper.
type process struct {
	p      *os.Process
	killed atomic.Bool
}

func newProcess(p *os.Process) *process {
	return &process{p: p}
}

func (p *process) Pid() int {
	return p.p.Pid
}

// Killed reports true once Kill succeeded or the process has exited and been reaped.
// Signal 0 probes liveness on Unix; on Windows it is unsupported and only Kill flips the state.
func (p *process) Killed() bool {
	if p.killed.Load() {
		return true
	}
	if err := p.p.Signal(syscall.Signal(0)); errors.Is(err, os.ErrProcessDone) {
		p.killed.Store(true)
		return true
	}
	return false
}

// Kill sends SIGKILL. A process that is already gone counts as killed.
func (p *process) Kill() error {
	err := p.p.Kill()
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		p.killed.Store(true)
		return nil
	}
	return err
}
