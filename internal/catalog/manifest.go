package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/nao1215/idscan/internal/model"
)

// schemaKey is a sentinel entry in manifest catalogs pointing at the
// JSON schema. It is not a site and must be ignored.
const schemaKey = "$schema"

// manifestEntry mirrors one manifest dialect entry. Marker fields use
// loose types because real catalogs mix scalars and lists.
type manifestEntry struct {
	URL           string         `json:"url"`
	URLMain       string         `json:"urlMain"`
	ErrorType     any            `json:"errorType"`
	ErrorCode     any            `json:"errorCode"`
	ErrorMsg      any            `json:"errorMsg"`
	Headers       map[string]any `json:"headers"`
	RequestMethod string         `json:"request_method"`
	IsNSFW        bool           `json:"isNSFW"`
}

// LoadManifestFile loads a manifest dialect catalog from disk.
// A missing file returns ErrCatalogNotFound.
func LoadManifestFile(path string) ([]SiteDefinition, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided catalog path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCatalogNotFound
		}
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	return LoadManifest(f)
}

// LoadManifest parses a manifest dialect catalog: a JSON object mapping
// site names to entries. The "$schema" key and non-object values are
// ignored; entries without a URL template are skipped. Entries are
// returned sorted by name so runs are deterministic regardless of JSON
// map ordering.
func LoadManifest(r io.Reader) ([]SiteDefinition, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		if name == schemaKey {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	sites := make([]SiteDefinition, 0, len(names))
	for _, name := range names {
		var entry manifestEntry
		if err := json.Unmarshal(raw[name], &entry); err != nil {
			// Non-object values and shape mismatches skip the entry,
			// never the catalog.
			continue
		}
		if entry.URL == "" {
			continue
		}

		sites = append(sites, SiteDefinition{
			Name:        name,
			Source:      model.SourceManifest,
			URLTemplate: entry.URL,
			HomeURL:     entry.URLMain,
			Method:      normalizeMethod(entry.RequestMethod),
			Headers:     stringMap(entry.Headers),
			NSFW:        entry.IsNSFW,
			Rule: MatchRule{
				Kinds:          ruleKinds(entry.ErrorType),
				NotFoundCodes:  intList(entry.ErrorCode),
				AbsenceMarkers: stringList(entry.ErrorMsg),
			},
		})
	}
	return sites, nil
}

// ruleKinds coerces the errorType field (string or list of strings) into
// the known rule kinds. Unknown values are dropped; the classifier then
// falls back to its conservative default.
func ruleKinds(value any) []RuleKind {
	var kinds []RuleKind
	appendKind := func(s string) {
		switch RuleKind(s) {
		case RuleStatusCode, RuleMessage, RuleResponseURL:
			kinds = append(kinds, RuleKind(s))
		}
	}

	switch v := value.(type) {
	case string:
		appendKind(v)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				appendKind(s)
			}
		}
	}
	return kinds
}

// intList coerces an errorCode field (number or list of numbers) into a
// status code list. JSON numbers decode as float64.
func intList(value any) []int {
	switch v := value.(type) {
	case float64:
		return []int{int(v)}
	case []any:
		var codes []int
		for _, item := range v {
			if f, ok := item.(float64); ok {
				codes = append(codes, int(f))
			}
		}
		return codes
	default:
		return nil
	}
}

// stringList coerces an errorMsg field (string or list of strings) into
// a marker list.
func stringList(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []any:
		var markers []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				markers = append(markers, s)
			}
		}
		return markers
	default:
		return nil
	}
}

// stringMap keeps only string-valued headers. Real catalogs occasionally
// carry junk values; dropping them beats dropping the site.
func stringMap(values map[string]any) map[string]string {
	if len(values) == 0 {
		return nil
	}
	headers := make(map[string]string, len(values))
	for k, v := range values {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}
