package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stanley-fork/unport/internal/config"
	"github.com/stanley-fork/unport/internal/registry"
	"github.com/stanley-fork/unport/internal/tlsmaterial"
)

func newCertCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Manage the local CA and server certificate",
	}
	cmd.AddCommand(
		newCertRegenerateCmd(cfg),
		newCertTrustCmd(cfg),
		newCertUntrustCmd(cfg),
	)
	return cmd
}

func newCertRegenerateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate",
		Short: "Reissue the server certificate covering all registered domains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.EnsureDirs(); err != nil {
				return err
			}

			tm := tlsmaterial.New(cfg)
			if err := tm.EnsureCA(); err != nil {
				return fmt.Errorf("bootstrap CA: %w", err)
			}

			var domains []string
			for _, b := range registry.Load(cfg.RegistryPath).List() {
				domains = append(domains, b.Domain)
			}
			if err := tm.GenerateLeaf(domains); err != nil {
				return fmt.Errorf("issue server certificate: %w", err)
			}

			fmt.Printf("Certificate regenerated for %d registered domain(s).\n", len(domains))
			fmt.Println("Restart the daemon for the new certificate to take effect.")
			return nil
		},
	}
}

func newCertTrustCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "trust",
		Short: "Install the local CA into the system trust store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.EnsureDirs(); err != nil {
				return err
			}
			tm := tlsmaterial.New(cfg)
			if err := tm.EnsureCA(); err != nil {
				return fmt.Errorf("bootstrap CA: %w", err)
			}
			return tm.TrustCA(false)
		},
	}
}

func newCertUntrustCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "untrust",
		Short: "Remove the local CA from the system trust store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tlsmaterial.New(cfg).TrustCA(true)
		},
	}
}
