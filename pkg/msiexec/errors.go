package msiexec

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned when running msiexec off Windows.
var ErrUnsupported = errors.New("msiexec: only available on Windows")

// Windows Installer exit codes worth naming.
const (
	ExitUserExit             = 1602
	ExitInstallFailure       = 1603
	ExitUnknownProduct       = 1605
	ExitAlreadyRunning       = 1618
	ExitPackageOpenFailed    = 1619
	ExitPackageInvalid       = 1620
	ExitProductVersion       = 1638
	ExitSuccessRebootStarted = 1641
	ExitSuccessRebootNeeded  = 3010
)

var exitDescriptions = map[int]string{
	ExitUserExit:             "the user cancelled the installation",
	ExitInstallFailure:       "fatal error during installation",
	ExitUnknownProduct:       "this action is only valid for products that are currently installed",
	ExitAlreadyRunning:       "another installation is already in progress",
	ExitPackageOpenFailed:    "the installation package could not be opened",
	ExitPackageInvalid:       "the installation package is not a valid Windows Installer package",
	ExitProductVersion:       "another version of this product is already installed",
	ExitSuccessRebootStarted: "the installer has initiated a restart",
	ExitSuccessRebootNeeded:  "a restart is required to complete the install",
}

// DescribeExitCode returns a short explanation of a known exit code, or "".
func DescribeExitCode(code int) string {
	return exitDescriptions[code]
}

// ExitError is a non-zero msiexec exit.
type ExitError struct {
	Code    int
	LogFile string
	// ProcessedLog holds the log lines that mention errors.
	ProcessedLog string
	Err          error
}

func (e *ExitError) Error() string {
	if desc := DescribeExitCode(e.Code); desc != "" {
		return fmt.Sprintf("msiexec exited with code %d (%s): %v", e.Code, desc, e.Err)
	}
	return fmt.Sprintf("msiexec exited with code %d: %v", e.Code, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the process exit code.
func (e *ExitError) ExitCode() int { return e.Code }
