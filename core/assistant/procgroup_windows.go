//go:build windows

package assistant

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"
)

func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.CREATE_NO_WINDOW,
	}
}

// killProcessTree uses taskkill because Windows has no process groups that
// can be signalled as a whole.
func killProcessTree(process *os.Process) error {
	if process == nil {
		return nil
	}

	taskkill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(process.Pid))
	taskkill.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.CREATE_NO_WINDOW}
	if output, err := taskkill.CombinedOutput(); err != nil {
		if killErr := process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			return fmt.Errorf("taskkill failed (%s): %w", output, errors.Join(err, killErr))
		}
	}
	return nil
}
