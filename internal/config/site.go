package config

// SiteConfig holds site-specific configuration for a single network.
// This allows customizing probe behavior per site without editing the
// catalog files themselves.
type SiteConfig struct {
	// Cookie is an HTTP cookie to send when probing this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	// They override headers declared in the catalog entry on key conflicts.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Disabled excludes this site from probe runs entirely.
	Disabled bool `yaml:"disabled,omitempty"`
}

// StrictConfig customizes the strict result filter.
// Empty lists fall back to the package defaults in internal/aggregate.
type StrictConfig struct {
	// DenyList names networks whose hits require identifier evidence.
	// Entries are matched against the normalized network slug.
	DenyList []string `yaml:"denyList,omitempty"`

	// URLFragments are URL substrings that mark a hit as suspicious.
	// Matching is case-insensitive.
	URLFragments []string `yaml:"urlFragments,omitempty"`
}

// File represents the structure of the .idscan configuration file.
type File struct {
	// Sites maps network slugs to their site-specific configurations.
	// Keys should be the normalized slug (e.g., "github", "hacker-news").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Strict customizes the strict result filter lists.
	Strict StrictConfig `yaml:"strict,omitempty"`
}

// GetSiteConfig returns the configuration for a specific network slug.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(slug string) SiteConfig {
	// Start with defaults
	result := cf.Defaults

	// Override with site-specific configuration if present
	if siteConfig, ok := cf.Sites[slug]; ok {
		if siteConfig.Cookie != "" {
			result.Cookie = siteConfig.Cookie
		}
		if len(siteConfig.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			for k, v := range siteConfig.Headers {
				result.Headers[k] = v
			}
		}
		if siteConfig.Disabled {
			result.Disabled = true
		}
	}

	return result
}
