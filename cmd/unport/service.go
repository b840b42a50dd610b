package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stanley-fork/unport/internal/clientrt"
	"github.com/stanley-fork/unport/internal/config"
)

func newStartCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the current project and register it with the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			code, err := clientrt.Run(cwd, clientrt.New(cfg.SocketPath))
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
}

func newStopCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <domain>",
		Short: "Stop a registered service and terminate its process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// A bare project name means its .localhost domain.
			domain := args[0]
			if !strings.Contains(domain, ".") {
				domain += ".localhost"
			}
			if err := clientrt.New(cfg.SocketPath).Stop(domain); err != nil {
				return err
			}
			fmt.Printf("Stopped %s.\n", domain)
			return nil
		},
	}
}

func newListCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := clientrt.New(cfg.SocketPath).List()
			if err != nil {
				return err
			}
			if len(services) == 0 {
				fmt.Println("No services registered.")
				return nil
			}
			for _, s := range services {
				fmt.Printf("  http://%-30s -> localhost:%-5d (pid %d)\n", s.Domain, s.Port, s.Pid)
			}
			return nil
		},
	}
}
