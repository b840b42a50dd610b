package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stanley-fork/unport/internal/clientrt"
	"github.com/stanley-fork/unport/internal/config"
	"github.com/stanley-fork/unport/internal/supervisor"
)

func newDaemonCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the unport daemon",
	}
	cmd.AddCommand(
		newDaemonStartCmd(cfg),
		newDaemonRunCmd(cfg),
		newDaemonStopCmd(cfg),
		newDaemonStatusCmd(cfg),
	)
	return cmd
}

func newDaemonStartCmd(cfg *config.Config) *cobra.Command {
	var detach, withTLS bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon (port 80, and 443 with --tls)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if supervisor.IsRunning(cfg) {
				return fmt.Errorf("daemon is already running")
			}
			if detach {
				var extra []string
				if withTLS {
					extra = append(extra, "--tls")
				}
				return supervisor.Detach(cfg, extra...)
			}
			return supervisor.RunDaemon(cfg, supervisor.Options{TLS: withTLS})
		},
	}
	cmd.Flags().BoolVar(&detach, "detach", false, "run in the background, logging to the state directory")
	cmd.Flags().BoolVar(&withTLS, "tls", false, "also serve https on port 443")
	return cmd
}

// "daemon run" is the foreground path the detached parent re-execs into;
// it is hidden because users normally go through "daemon start".
func newDaemonRunCmd(cfg *config.Config) *cobra.Command {
	var withTLS bool

	cmd := &cobra.Command{
		Use:    "run",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return supervisor.RunDaemon(cfg, supervisor.Options{TLS: withTLS})
		},
	}
	cmd.Flags().BoolVar(&withTLS, "tls", false, "also serve https on port 443")
	return cmd
}

func newDaemonStopCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Ask over the control socket first; SIGTERM through the pid
			// file covers a daemon whose socket is gone or wedged.
			if err := clientrt.New(cfg.SocketPath).Shutdown(); err != nil {
				if err := supervisor.Stop(cfg); err != nil {
					return err
				}
			}
			fmt.Println("Daemon stopped.")
			return nil
		},
	}
}

func newDaemonStatusCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the daemon is running, its uptime, and service count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(cfg.PidPath)
			if err != nil {
				fmt.Println("Daemon: stopped")
				return nil
			}
			if !supervisor.IsRunning(cfg) {
				fmt.Println("Daemon: stopped (stale pid file)")
				return nil
			}

			fmt.Printf("Daemon: running (up %s)\n", formatDuration(time.Since(info.ModTime())))

			services, err := clientrt.New(cfg.SocketPath).List()
			if err != nil {
				return fmt.Errorf("query services: %w", err)
			}
			fmt.Printf("Services: %d registered\n", len(services))
			return nil
		},
	}
}

// formatDuration renders an uptime in its two largest units (seconds only
// under a minute).
func formatDuration(d time.Duration) string {
	switch secs := int64(d.Seconds()); {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	case secs < 86400:
		return fmt.Sprintf("%dh %dm", secs/3600, (secs%3600)/60)
	default:
		return fmt.Sprintf("%dd %dh", secs/86400, (secs%86400)/3600)
	}
}
