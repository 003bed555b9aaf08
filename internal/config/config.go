package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are chosen for clearnet presence probing; Tor runs
// typically need a longer timeout, set via CLI flags.
const (
	// DefaultTimeout is the per-request timeout. Presence probes hit
	// hundreds of unrelated hosts, so a short timeout keeps one dead
	// site from eating minutes of a run. 15 seconds absorbs slow CDNs
	// without stalling the pool.
	DefaultTimeout = 15 * time.Second

	// DefaultConcurrency is the number of probes in flight at once.
	// Twenty keeps a 400-site manifest run around a minute without
	// hammering any single host; the ceiling is global, so per-host
	// pressure stays low in practice.
	DefaultConcurrency = 20

	// DefaultUserAgent mimics a common browser. Several catalog sites
	// answer bot User-Agents with a block page that defeats the match
	// markers, so a descriptive scanner UA would skew results.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 5MB is sufficient for any profile page while preventing memory
	// exhaustion from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	// Port 9050 is the default for the Tor daemon's SOCKS port.
	// We use 127.0.0.1 instead of localhost to avoid DNS resolution
	// overhead and potential issues with IPv6 resolution on some systems.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTorStartupTimeout is the maximum time to wait for the
	// embedded Tor daemon to bootstrap. 3 minutes is typically enough
	// for most network conditions.
	DefaultTorStartupTimeout = 3 * time.Minute

	// AppName is the application name used for XDG directory paths.
	AppName = "idscan"

	// DefaultManifestFileName is the file name of the manifest catalog
	// (Sherlock-style data.json) under the XDG data directory.
	DefaultManifestFileName = "data.json"

	// DefaultSitesFileName is the file name of the username site-list
	// catalog (WhatsMyName-style) under the XDG data directory.
	DefaultSitesFileName = "wmn-data.json"

	// DefaultEmailSitesFileName is the file name of the email site-list
	// catalog under the XDG data directory.
	DefaultEmailSitesFileName = "email-sites.json"
)

// Config holds all configuration options for idscan.
// This struct is designed to be populated from CLI flags and the config
// file, then passed through the application via dependency injection
// rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., ProbeConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// Identifiers are the usernames or email addresses to probe.
	// Must contain at least one value.
	Identifiers []string

	// ScanLocalPart additionally probes an email's local part against
	// the username catalogs. Only meaningful in email mode.
	ScanLocalPart bool

	// ManifestPath is the path to the manifest catalog (dialect A).
	// Defaults to data.json in the XDG data directory.
	ManifestPath string

	// SitesPath is the path to the username site-list catalog
	// (dialect B). Defaults to wmn-data.json in the XDG data directory.
	SitesPath string

	// EmailSitesPath is the path to the email site-list catalog.
	// Defaults to email-sites.json in the XDG data directory.
	EmailSitesPath string

	// Categories restricts probing to catalog entries whose category is
	// in this list (case-insensitive). Empty means all categories.
	Categories []string

	// ExcludeNSFW drops adult sites from the catalog before probing.
	// On by default; the --nsfw allow flag turns it off.
	ExcludeNSFW bool

	// Concurrency is the number of probes in flight at once, enforced
	// globally across the whole run.
	Concurrency int

	// Timeout is the per-request timeout. It bounds how long a single
	// unresponsive site can occupy a probe slot.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with probe requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Responses larger than this are truncated. Set to 0 for the default.
	MaxBodySize int64

	// Strict enables the false-positive filter on manifest results.
	Strict bool

	// Dedupe collapses records that repeat a (network, identifier, URL)
	// triple across catalogs. On by default.
	Dedupe bool

	// StrictDenyList overrides the built-in deny-list of noisy networks.
	// Empty means use the package defaults.
	StrictDenyList []string

	// StrictURLFragments overrides the built-in suspicious-URL fragment
	// list. Empty means use the package defaults.
	StrictURLFragments []string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// Quiet suppresses the progress indicator. Implied by JSON output
	// so piped output stays clean.
	Quiet bool

	// JSONReport enables JSON report output instead of human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of
	// human-readable format. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// DBDir is the directory path for storing the SQLite database.
	// Scan results saved there feed the compare command.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB indicates whether to save scan results to the database.
	SaveToDB bool

	// ProxyAddress routes probes through an external SOCKS5 proxy in
	// "host:port" format. Empty means direct connections.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes probes through
	// it. Mutually exclusive with ProxyAddress.
	UseTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to start and bootstrap. Only used when UseTor is set.
	TorStartupTimeout time.Duration

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .idscan in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds per-site overrides loaded from the config file.
	// This is populated by LoadConfigFile and applied to the catalog
	// before probing.
	SiteConfigs *File
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout,
// concurrency, NSFW exclusion). This also serves as documentation of
// what the defaults are.
func NewConfig() *Config {
	return &Config{
		ManifestPath:      filepath.Join(XDGDataDir(), DefaultManifestFileName),
		SitesPath:         filepath.Join(XDGDataDir(), DefaultSitesFileName),
		EmailSitesPath:    filepath.Join(XDGDataDir(), DefaultEmailSitesFileName),
		ExcludeNSFW:       true,
		Concurrency:       DefaultConcurrency,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		Dedupe:            true,
		DBDir:             XDGDataDir(),
		TorStartupTimeout: DefaultTorStartupTimeout,
	}
}

// XDGDataDir returns the XDG data directory for idscan.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/idscan
// On macOS: ~/Library/Application Support/idscan
// On Windows: %LOCALAPPDATA%\idscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for idscan.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.config/idscan
// On macOS: ~/Library/Application Support/idscan
// On Windows: %APPDATA%\idscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for idscan.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.cache/idscan
// On macOS: ~/Library/Caches/idscan
// On Windows: %LOCALAPPDATA%\idscan\cache
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any probing begins.
//
// We chose to return the first error found rather than collecting all
// errors because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	// We must have at least one identifier to probe
	if len(c.Identifiers) == 0 {
		return ErrNoIdentifier
	}

	// Timeout must be positive; zero timeout would cause immediate failures
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	// Concurrency must be positive; zero would mean no probing
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	// JSONReport and MarkdownReport are mutually exclusive
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	// MaxBodySize must be non-negative; 0 means use the default
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	// Embedded Tor and an external proxy cannot both route the client
	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}

	return nil
}
