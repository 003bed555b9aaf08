package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nao1215/idscan/internal/model"
)

// siteListEntry mirrors one site-list dialect entry. Username lists use
// the first block of fields; email-oriented lists add the second.
type siteListEntry struct {
	Name     string `json:"name"`
	URICheck string `json:"uri_check"`
	ECode    *int   `json:"e_code"`
	EString  string `json:"e_string"`
	MCode    *int   `json:"m_code"`
	MString  string `json:"m_string"`
	Category string `json:"cat"`

	Method         string         `json:"method"`
	Data           string         `json:"data"`
	Headers        map[string]any `json:"headers"`
	InputOperation string         `json:"input_operation"`
}

// siteListDocument is the wrapped form of the dialect, as published by
// WhatsMyName-style projects. Bare arrays are also accepted.
type siteListDocument struct {
	Sites []json.RawMessage `json:"sites"`
}

// LoadSiteListFile loads a username site-list catalog from disk.
// A missing file returns ErrCatalogNotFound.
func LoadSiteListFile(path string) ([]SiteDefinition, error) {
	return loadSiteListFile(path, model.SourceSiteList)
}

// LoadEmailSiteListFile loads an email-oriented site-list catalog from
// disk. A missing file returns ErrCatalogNotFound.
func LoadEmailSiteListFile(path string) ([]SiteDefinition, error) {
	return loadSiteListFile(path, model.SourceEmailSiteList)
}

func loadSiteListFile(path, source string) ([]SiteDefinition, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided catalog path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCatalogNotFound
		}
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	return loadSiteList(f, source)
}

// LoadSiteList parses a username site-list catalog: either a JSON object
// with a "sites" array or a bare JSON array of entries. Entries missing
// a name, URL template, or expected status/substring pair are skipped;
// document order is preserved.
func LoadSiteList(r io.Reader) ([]SiteDefinition, error) {
	return loadSiteList(r, model.SourceSiteList)
}

// LoadEmailSiteList parses an email-oriented site-list catalog. The
// document forms and skip semantics match LoadSiteList; entries are
// labeled with the email source so their records are distinguishable.
func LoadEmailSiteList(r io.Reader) ([]SiteDefinition, error) {
	return loadSiteList(r, model.SourceEmailSiteList)
}

func loadSiteList(r io.Reader, source string) ([]SiteDefinition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	entries, err := siteListEntries(data)
	if err != nil {
		return nil, err
	}

	sites := make([]SiteDefinition, 0, len(entries))
	for _, raw := range entries {
		var entry siteListEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		if entry.Name == "" || entry.URICheck == "" || entry.ECode == nil || entry.EString == "" {
			continue
		}

		pair := &ConditionPair{
			ExpectedStatus: *entry.ECode,
			ExpectedBody:   entry.EString,
			MissBody:       entry.MString,
		}
		if entry.MCode != nil {
			pair.MissStatus = *entry.MCode
		}

		sites = append(sites, SiteDefinition{
			Name:           entry.Name,
			Source:         source,
			URLTemplate:    entry.URICheck,
			Method:         normalizeMethod(entry.Method),
			Headers:        stringMap(entry.Headers),
			BodyTemplate:   entry.Data,
			Category:       entry.Category,
			NSFW:           isNSFWCategory(entry.Category),
			InputOperation: entry.InputOperation,
			Rule:           MatchRule{Conditions: pair},
		})
	}
	return sites, nil
}

// siteListEntries unwraps the two accepted document forms.
func siteListEntries(data []byte) ([]json.RawMessage, error) {
	var doc siteListDocument
	if err := json.Unmarshal(data, &doc); err == nil && doc.Sites != nil {
		return doc.Sites, nil
	}

	var bare []json.RawMessage
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return bare, nil
}
