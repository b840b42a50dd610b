// Command unport is the developer-facing CLI and, via "unport daemon run",
// the daemon process itself. The daemon routes http://<name>.localhost to
// locally running dev servers registered through the control socket.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/stanley-fork/unport/internal/config"
	"github.com/stanley-fork/unport/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.Default()

	root := &cobra.Command{
		Use:           "unport",
		Short:         "Stable *.localhost hostnames for local dev servers, no port juggling",
		Version:       version.Version(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newDaemonCmd(cfg),
		newStartCmd(cfg),
		newStopCmd(cfg),
		newListCmd(cfg),
		newCertCmd(cfg),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
