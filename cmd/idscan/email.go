package main

import (
	"path/filepath"

	"github.com/nao1215/idscan/internal/config"
	"github.com/nao1215/idscan/internal/model"
	"github.com/spf13/cobra"
)

// NewEmailCmd creates the email command.
func NewEmailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "email [email-address]",
		Short: "Probe public sites for accounts under the given email addresses",
		Long: `Email probes public sites for accounts registered under the given
email addresses.

It loads the email site catalog, probes every entry through a bounded
worker pool, and reports the sites where the address is registered.
Addresses are lowercased before probing so repeated runs and database
history agree on the value.

With --scan-localpart the local part of each address (alice for
alice@example.com) is additionally probed as a username against the
regular username catalogs, since many people reuse it as a handle.

Results are saved to a local database by default so that later runs
can be compared with 'idscan compare'.

Examples:
  # Probe an email address across the email catalog
  idscan email alice@example.com

  # Also probe the local part as a username
  idscan email --scan-localpart alice@example.com

  # Probe several addresses with a custom catalog
  idscan email --email-sites ./email-sites.json alice@example.com bob@example.com

  # Route probes through a local SOCKS5 proxy
  idscan email --proxy 127.0.0.1:9050 alice@example.com`,
		Args: cobra.ArbitraryArgs,
		RunE: runEmailCmd,
	}

	addProbeFlags(cmd)

	// Email-only flags
	cmd.Flags().String("email-sites", filepath.Join(config.XDGDataDir(), config.DefaultEmailSitesFileName),
		"Email site catalog path")
	cmd.Flags().Bool("scan-localpart", false,
		"Also probe the address's local part as a username")

	return cmd
}

// runEmailCmd executes the email command.
func runEmailCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildProbeConfig(cmd, args)
	if err != nil {
		return err
	}

	cfg.EmailSitesPath, err = cmd.Flags().GetString("email-sites")
	if err != nil {
		return err
	}

	cfg.ScanLocalPart, err = cmd.Flags().GetBool("scan-localpart")
	if err != nil {
		return err
	}

	return runProbeCommand(cfg, model.ModeEmail)
}
