package catalog

import "strings"

// FilterOptions controls which catalog entries a run probes.
type FilterOptions struct {
	// ExcludeNSFW drops entries marked as adult content.
	ExcludeNSFW bool

	// Categories is a case-insensitive allow-list. When non-empty, only
	// entries whose category is a member are kept; entries without a
	// category are dropped. When empty, all categories pass.
	Categories []string
}

// Filter returns the catalog entries that survive the options. It is a
// pure function: the input slice is never modified and no I/O happens.
func Filter(sites []SiteDefinition, opts FilterOptions) []SiteDefinition {
	allowed := make(map[string]struct{}, len(opts.Categories))
	for _, c := range opts.Categories {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			allowed[c] = struct{}{}
		}
	}

	filtered := make([]SiteDefinition, 0, len(sites))
	for _, site := range sites {
		if opts.ExcludeNSFW && site.NSFW {
			continue
		}
		if len(allowed) > 0 {
			if site.Category == "" {
				continue
			}
			if _, ok := allowed[strings.ToLower(site.Category)]; !ok {
				continue
			}
		}
		filtered = append(filtered, site)
	}
	return filtered
}
