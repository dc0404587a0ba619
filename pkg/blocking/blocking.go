// pkg/blocking/blocking.go - detection of running processes that get in the way of an install.

package blocking

import (
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/windowsadmins/msikit/pkg/logging"
)

// Process is the part of a running process the checks look at.
type Process struct {
	PID     int32
	PPID    int32
	Name    string
	Exe     string
	Cmdline string
}

// Checker inspects the process table.
type Checker struct {
	list func() ([]Process, error)
	self int32
}

// New returns a Checker over the live process table.
func New() *Checker {
	return &Checker{list: runningProcesses, self: int32(os.Getpid())}
}

func runningProcesses() ([]Process, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		info := Process{PID: p.Pid, Name: name}
		info.PPID, _ = p.Ppid()
		info.Exe, _ = p.Exe()
		info.Cmdline, _ = p.Cmdline()
		out = append(out, info)
	}
	return out, nil
}

// InstallerBusy lists msiexec.exe client processes other than our own
// children. The Windows Installer service host (msiexec /V) is ignored since
// it lingers idle after every install.
func (c *Checker) InstallerBusy() []Process {
	procs, err := c.list()
	if err != nil {
		logging.Debug("Failed to get process list", "error", err)
		return nil
	}
	var busy []Process
	for _, p := range procs {
		if !strings.EqualFold(p.Name, "msiexec.exe") {
			continue
		}
		if p.PID == c.self || p.PPID == c.self {
			continue
		}
		if isServiceHost(p.Cmdline) {
			continue
		}
		busy = append(busy, p)
	}
	return busy
}

func isServiceHost(cmdline string) bool {
	for _, f := range strings.Fields(strings.ToLower(cmdline)) {
		if f == "/v" || f == "-v" {
			return true
		}
	}
	return false
}
