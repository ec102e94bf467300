// Package deps probes the external tools voicelog shells out to.
package deps

import (
	"os/exec"
	"strings"
)

// Status represents the installation status of a dependency
type Status struct {
	Installed bool
	Path      string
	Version   string
}

// CheckPwRecord checks if the PipeWire recorder is installed and returns its status
func CheckPwRecord() Status {
	return check("pw-record", "--version")
}

// CheckNotifySend checks if notify-send is installed and returns its status
func CheckNotifySend() Status {
	return check("notify-send", "--version")
}

func check(name, versionFlag string) Status {
	path, err := exec.LookPath(name)
	if err != nil {
		return Status{Installed: false}
	}

	status := Status{
		Installed: true,
		Path:      path,
	}

	// first line of --version output is the version string
	cmd := exec.Command(path, versionFlag)
	output, err := cmd.Output()
	if err == nil {
		lines := strings.Split(string(output), "\n")
		if len(lines) > 0 {
			status.Version = strings.TrimSpace(lines[0])
		}
	}

	return status
}
