// Package supervisor owns unportd's own process lifecycle: the pid-file
// singleton check, detaching into the background, and the graceful
// shutdown sequence triggered by Ctrl+C, SIGTERM, or a control-plane
// Shutdown request.
package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/stanley-fork/unport/internal/config"
	"github.com/stanley-fork/unport/internal/unporterr"
)

// IsRunning reports whether a live unportd process currently owns cfg's
// pid file. A nil signal-probe error or EPERM (process exists but is owned
// by another user, e.g. started via sudo) both count as alive.
func IsRunning(cfg *config.Config) bool {
	pid, ok := readPid(cfg.PidPath)
	if !ok {
		return false
	}
	return processAlive(pid)
}

// AcquireSingleton verifies no other unportd owns cfg's pid file, removes
// any stale pid file left by a crashed daemon, and writes the current
// process's pid. Returns ErrDaemonAlreadyRunning if a live daemon is found.
func AcquireSingleton(cfg *config.Config) error {
	if pid, ok := readPid(cfg.PidPath); ok {
		if processAlive(pid) {
			return unporterr.Wrap(unporterr.KindDaemonAlreadyRunning,
				fmt.Errorf("%w (pid %d)", unporterr.ErrDaemonAlreadyRunning, pid))
		}
		if err := os.Remove(cfg.PidPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale pid file: %w", err)
		}
	}

	if err := os.WriteFile(cfg.PidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// ReleaseSingleton removes the pid file. Safe to call even if it is
// already gone.
func ReleaseSingleton(cfg *config.Config) error {
	if err := os.Remove(cfg.PidPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// maxLogBytes is the size past which the previous daemon.log is gzipped
// aside before a detached daemon reopens it.
const maxLogBytes = 10 << 20

// Detach re-execs the current binary with the "daemon" "run" subcommand
// plus any extraArgs, redirecting its stdout/stderr to cfg.LogPath, and
// returns once the child has been spawned. The parent process is expected
// to exit immediately after Detach returns.
func Detach(cfg *config.Config, extraArgs ...string) error {
	if err := cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve current executable: %w", err)
	}

	if err := RotateLog(cfg.LogPath, maxLogBytes); err != nil {
		return fmt.Errorf("rotate daemon log: %w", err)
	}
	logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("create daemon log file: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(exe, append([]string{"daemon", "run"}, extraArgs...)...)
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn daemon process: %w", err)
	}

	fmt.Printf("Daemon started in background (pid %d). Logs at: %s\n", cmd.Process.Pid, cfg.LogPath)
	return nil
}

// Stop sends SIGTERM to the daemon owning cfg's pid file and removes the
// stale pid file if the process is already gone.
func Stop(cfg *config.Config) error {
	pid, ok := readPid(cfg.PidPath)
	if !ok {
		return unporterr.ErrDaemonUnavailable
	}

	if !processAlive(pid) {
		os.Remove(cfg.PidPath)
		return unporterr.ErrDaemonUnavailable
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	return nil
}

// NotifyOnInterrupt returns a channel that receives once when the process
// gets SIGINT or SIGTERM.
func NotifyOnInterrupt() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}

func readPid(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return pid, true
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
