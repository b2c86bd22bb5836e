package runner

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"
)

// ProcessStatus is the supervised state of a worker process.
type ProcessStatus string

const (
	StatusRunning ProcessStatus = "RUNNING"
	StatusStopped ProcessStatus = "STOPPED"
	StatusExited  ProcessStatus = "EXITED"
	StatusErrored ProcessStatus = "ERRORED"
)

// ProcessInfo is a snapshot of one supervised process.
type ProcessInfo struct {
	Name   string
	PID    int
	Status ProcessStatus
}

// Runner supervises named worker processes.
type Runner interface {
	Start(name, bin string, args []string) error
	Stop(name string) error
	Remove(name string) error
	List() []ProcessInfo
	Status(name string) (ProcessInfo, bool)
}

type process struct {
	cmd    *exec.Cmd
	status ProcessStatus
}

// ProcessRunner runs workers as child OS processes.
type ProcessRunner struct {
	mu        sync.Mutex
	processes map[string]*process
}

func NewProcessRunner() *ProcessRunner {
	return &ProcessRunner{processes: make(map[string]*process)}
}

// Start launches bin with args under the given name. A name may be restarted
// once its previous process is no longer running.
func (r *ProcessRunner) Start(name, bin string, args []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.processes[name]; ok && p.status == StatusRunning {
		return fmt.Errorf("process %s already running (pid %d)", name, p.cmd.Process.Pid)
	}

	cmd := exec.Command(bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}

	p := &process{cmd: cmd, status: StatusRunning}
	r.processes[name] = p
	log.Printf("Runner: started %s (pid %d)", name, cmd.Process.Pid)

	go func() {
		err := cmd.Wait()
		r.mu.Lock()
		defer r.mu.Unlock()
		if p.status == StatusStopped {
			return
		}
		if err != nil {
			p.status = StatusErrored
			log.Printf("Runner: %s exited with error: %v", name, err)
			return
		}
		p.status = StatusExited
		log.Printf("Runner: %s exited", name)
	}()
	return nil
}

// Stop terminates the named process with SIGTERM.
func (r *ProcessRunner) Stop(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.processes[name]
	if !ok {
		return fmt.Errorf("process %s not found", name)
	}
	if p.status != StatusRunning {
		return nil
	}
	p.status = StatusStopped
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("stop %s: %w", name, err)
	}
	log.Printf("Runner: stopped %s (pid %d)", name, p.cmd.Process.Pid)
	return nil
}

// Remove stops the process if needed and forgets it.
func (r *ProcessRunner) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.processes[name]
	if !ok {
		return nil
	}
	if p.status == StatusRunning {
		p.status = StatusStopped
		if err := p.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("kill %s: %w", name, err)
		}
	}
	delete(r.processes, name)
	return nil
}

// List snapshots all supervised processes.
func (r *ProcessRunner) List() []ProcessInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]ProcessInfo, 0, len(r.processes))
	for name, p := range r.processes {
		infos = append(infos, ProcessInfo{Name: name, PID: p.cmd.Process.Pid, Status: p.status})
	}
	return infos
}

// Status reports one process by name.
func (r *ProcessRunner) Status(name string) (ProcessInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.processes[name]
	if !ok {
		return ProcessInfo{}, false
	}
	return ProcessInfo{Name: name, PID: p.cmd.Process.Pid, Status: p.status}, true
}
