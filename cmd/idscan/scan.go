package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nao1215/idscan/internal/config"
	"github.com/nao1215/idscan/internal/database"
	"github.com/nao1215/idscan/internal/log"
	"github.com/nao1215/idscan/internal/model"
	"github.com/nao1215/idscan/internal/pipeline"
	"github.com/nao1215/idscan/internal/probe"
	"github.com/nao1215/idscan/internal/report"
	"github.com/nao1215/idscan/internal/tor"
	"github.com/spf13/cobra"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [username]",
		Short: "Probe public sites for accounts under the given usernames",
		Long: `Scan probes public sites for accounts registered under the given
usernames.

It loads the site catalogs (a Sherlock-style manifest and a
WhatsMyName-style site list), filters them, probes every remaining
site through a bounded worker pool, and reports the profiles whose
presence the catalog rules confirm. Profile pages are also mined for
metadata such as display name, bio, and avatar URL.

Results are saved to a local database by default so that later runs
can be compared with 'idscan compare'.

Examples:
  # Probe a username across all catalogs
  idscan scan alice

  # Probe several usernames in one run
  idscan scan alice bob carol

  # Only probe coding and social sites, including adult ones
  idscan scan --category coding --category social --nsfw alice

  # Route probes through a local SOCKS5 proxy
  idscan scan --proxy 127.0.0.1:9050 alice

  # Start an embedded Tor daemon for the run
  idscan scan --tor alice

  # Write a Markdown report to a file
  idscan scan --markdown --output report.md alice

Configuration file (.idscan) example:
  sites:
    github:
      headers:
        Authorization: "Bearer token"
    facebook:
      disabled: true
  strict:
    denyList:
      - facebook
      - instagram`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	addProbeFlags(cmd)

	return cmd
}

// addProbeFlags registers the flags shared by the scan and email commands.
func addProbeFlags(cmd *cobra.Command) {
	// Catalog flags
	cmd.Flags().String("manifest", filepath.Join(config.XDGDataDir(), config.DefaultManifestFileName),
		"Manifest catalog path (Sherlock-style data.json)")
	cmd.Flags().String("sites", filepath.Join(config.XDGDataDir(), config.DefaultSitesFileName),
		"Site-list catalog path (WhatsMyName-style JSON)")
	cmd.Flags().StringSliceP("category", "C", nil,
		"Probe only catalog entries in these categories (repeatable)")
	cmd.Flags().Bool("nsfw", false,
		"Include adult sites in the probe run")

	// Probe behavior flags
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of probes in flight at once")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each probe request")
	cmd.Flags().Bool("strict", false,
		"Drop manifest hits on noisy networks unless the page mentions the identifier")
	cmd.Flags().Bool("no-dedupe", false,
		"Keep records that repeat a network, identifier, and URL across catalogs")

	// Proxy flags
	cmd.Flags().StringP("proxy", "p", "",
		"Route probes through a SOCKS5 proxy at the specified address (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route probes through it")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .idscan in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().BoolP("quiet", "q", false,
		"Suppress the progress indicator")

	// Persistence
	cmd.Flags().Bool("no-save-db", false,
		"Skip saving scan results to the local database")
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildProbeConfig(cmd, args)
	if err != nil {
		return err
	}

	return runProbeCommand(cfg, model.ModeUsername)
}

// runProbeCommand validates the configuration, wires logging and signal
// handling, and executes the probe run for the given mode.
func runProbeCommand(cfg *config.Config, mode model.ScanMode) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Interrupts cancel the context; the pipeline then finishes with
	// partial results instead of discarding the run.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runProbe(ctx, cfg, mode, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildProbeConfig creates a Config from the flags shared by the scan
// and email commands.
func buildProbeConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	// Get flag values
	var err error

	cfg.ManifestPath, err = cmd.Flags().GetString("manifest")
	if err != nil {
		return nil, err
	}

	cfg.SitesPath, err = cmd.Flags().GetString("sites")
	if err != nil {
		return nil, err
	}

	cfg.Categories, err = cmd.Flags().GetStringSlice("category")
	if err != nil {
		return nil, err
	}

	nsfw, err := cmd.Flags().GetBool("nsfw")
	if err != nil {
		return nil, err
	}
	cfg.ExcludeNSFW = !nsfw

	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.Strict, err = cmd.Flags().GetBool("strict")
	if err != nil {
		return nil, err
	}

	noDedupe, err := cmd.Flags().GetBool("no-dedupe")
	if err != nil {
		return nil, err
	}
	cfg.Dedupe = !noDedupe

	cfg.ProxyAddress, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}

	cfg.UseTor, err = cmd.Flags().GetBool("tor")
	if err != nil {
		return nil, err
	}

	cfg.TorStartupTimeout, err = cmd.Flags().GetDuration("tor-timeout")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load per-site overrides from the config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		// User explicitly specified a config file that doesn't exist
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		// Use empty config if no file found and user didn't explicitly specify one
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	// Strict filter tuning comes from the config file; empty lists fall
	// back to the package defaults.
	cfg.StrictDenyList = cfg.SiteConfigs.Strict.DenyList
	cfg.StrictURLFragments = cfg.SiteConfigs.Strict.URLFragments

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.Quiet, err = cmd.Flags().GetBool("quiet")
	if err != nil {
		return nil, err
	}
	// JSON reports go to stdout; keep the stream clean for pipes.
	if cfg.JSONReport {
		cfg.Quiet = true
	}

	noSave, err := cmd.Flags().GetBool("no-save-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave
	cfg.DBDir = config.XDGDataDir()

	cfg.Verbose = getVerboseFlag(cmd)

	// Get positional arguments (usernames or email addresses)
	cfg.Identifiers = args

	return cfg, nil
}

// runProbe executes a probe run end to end: identifier normalization,
// database and client setup, the pipeline itself, and report output.
func runProbe(ctx context.Context, cfg *config.Config, mode model.ScanMode, logger *slog.Logger) error {
	if err := normalizeIdentifiers(cfg, mode); err != nil {
		return err
	}

	logger.Info("starting probe run",
		"mode", string(mode),
		"identifiers", cfg.Identifiers,
		"concurrency", cfg.Concurrency,
		"saveToDB", cfg.SaveToDB,
	)

	// Open database connection if saving is enabled
	var db *database.ScanDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	client, cleanup, err := buildHTTPClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	p := pipeline.ScanPipeline(client, cfg, db,
		progressPrinter(cfg, os.Stderr),
		pipeline.WithLogger(logger),
	)

	scanReport := model.NewScanReport(cfg.Identifiers, mode)

	if !cfg.JSONReport {
		fmt.Printf("Probing %s...\n", strings.Join(cfg.Identifiers, ", "))
	}
	startTime := time.Now()

	execErr := p.Execute(ctx, scanReport)
	if execErr != nil && scanReport.TotalProbes == 0 {
		// Failed before any probing; there is nothing to report.
		return execErr
	}

	if !cfg.JSONReport {
		elapsed := time.Since(startTime).Round(time.Millisecond)
		if scanReport.Interrupted {
			fmt.Printf("Run interrupted after %s; reporting partial results\n\n", elapsed)
		} else {
			fmt.Printf("Run completed in %s\n\n", elapsed)
		}
	}

	if err := outputReport(cfg, scanReport); err != nil {
		logger.Error("report output failed", "error", err)
		if execErr == nil {
			execErr = err
		}
	}

	return execErr
}

// normalizeIdentifiers validates the raw identifier arguments and
// replaces them with their canonical forms, so the probes, the report,
// and the database rows all agree on the value.
func normalizeIdentifiers(cfg *config.Config, mode model.ScanMode) error {
	for i, raw := range cfg.Identifiers {
		var id model.Identifier
		var err error
		if mode == model.ModeEmail {
			id, err = model.NewEmail(raw)
		} else {
			id, err = model.NewUsername(raw)
		}
		if err != nil {
			return fmt.Errorf("invalid identifier %q: %w", raw, err)
		}
		cfg.Identifiers[i] = id.String()
	}
	return nil
}

// buildHTTPClient creates the HTTP client probes run through: direct,
// via an external SOCKS5 proxy, or via an embedded Tor daemon. The
// returned cleanup stops the embedded daemon when one was started.
func buildHTTPClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*http.Client, func(), error) {
	switch {
	case cfg.UseTor:
		client, embeddedTor, err := startEmbeddedTor(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			logger.Info("stopping embedded Tor daemon...")
			if err := embeddedTor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}
		return client.NewHTTPClient(), cleanup, nil

	case cfg.ProxyAddress != "":
		client, err := tor.NewClient(cfg.ProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create proxy client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, nil, fmt.Errorf("proxy check failed: %s (make sure a SOCKS5 proxy is running at %s)",
				status, cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		return client.NewHTTPClient(), func() {}, nil

	default:
		return newDirectClient(cfg.Timeout), func() {}, nil
	}
}

// newDirectClient builds the HTTP client for unproxied probe runs.
// It mirrors the proxied client's behavior: a cookie jar for sites that
// only render profiles after a cookie-setting redirect, and a redirect
// cap against loops.
func newDirectClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// startEmbeddedTor starts an embedded Tor daemon using tornago.
// Returns the Tor client and embedded Tor manager on success.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*tor.Client, *tor.EmbeddedTor, error) {
	if !cfg.JSONReport {
		fmt.Println("Starting embedded Tor daemon...")
		fmt.Printf("This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")
	}

	embeddedTor := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
	)

	// Start the embedded Tor daemon
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", embeddedTor.SocksAddr(),
		"controlAddr", embeddedTor.ControlAddr(),
	)

	// Create a client using the embedded Tor's SOCKS proxy
	client, err := embeddedTor.NewClient(cfg.Timeout)
	if err != nil {
		_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	// Verify the connection
	status := client.CheckConnection(ctx)
	if status != tor.ProxyStatusOK {
		_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %s", status)
	}

	return client, embeddedTor, nil
}

// progressPrinter returns the progress sink for the run, rendering a
// single in-place line, or nil when progress output is suppressed.
func progressPrinter(cfg *config.Config, out io.Writer) probe.ProgressFunc {
	if cfg.Quiet {
		return nil
	}

	return func(done, total int, label string) {
		if total == 0 {
			return
		}
		// \r redraws the line in place; the fixed-width label wipes
		// leftovers when it shrinks between ticks.
		fmt.Fprintf(out, "\r[%d/%d] %-32.32s", done, total, label)
		if done >= total {
			fmt.Fprintln(out)
		}
	}
}

// outputReport writes the scan report in the requested format.
func outputReport(cfg *config.Config, scanReport *model.ScanReport) error {
	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports reveal which sites an identifier was found on, so the
		// file is owner-readable only.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	// JSON output (full report with all data)
	if cfg.JSONReport {
		writer := report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
		_, err := writer.Write(scanReport)
		return err
	}

	// Markdown output
	if cfg.MarkdownReport {
		writer := report.NewMarkdownWriter(output)
		_, err := writer.Write(scanReport)
		return err
	}

	// Human-readable report (default)
	writer := report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	_, err := writer.Write(scanReport)
	return err
}
