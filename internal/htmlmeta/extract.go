package htmlmeta

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/idscan/internal/model"
)

// PageMeta holds the metadata extracted from one page. The zero value
// means nothing was found.
type PageMeta struct {
	// Title is the page title, from the title tag or og:title.
	Title string

	// Description is the description meta tag or og:description.
	Description string

	// ImageURL is the social preview image (og:image), resolved against
	// the page URL when relative.
	ImageURL string
}

// IsZero reports whether no metadata was extracted.
func (m PageMeta) IsZero() bool {
	return m == PageMeta{}
}

// AddTo merges the extracted metadata into a record metadata map,
// writing only the keys that carry values.
func (m PageMeta) AddTo(metadata map[string]any) {
	if m.Title != "" {
		metadata[model.MetaTitle] = m.Title
	}
	if m.Description != "" {
		metadata[model.MetaDescription] = m.Description
	}
	if m.ImageURL != "" {
		metadata[model.MetaOGImage] = m.ImageURL
	}
}

// Extract parses the body and returns the page metadata. baseURL is the
// final URL of the page and anchors relative image URLs; an unparsable
// baseURL leaves image URLs as-is. Extraction is best-effort: malformed
// HTML yields whatever was recognizable and an empty body yields the
// zero value. It never fails.
func Extract(body, baseURL string) PageMeta {
	if body == "" {
		return PageMeta{}
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return PageMeta{}
	}

	var meta PageMeta
	var ogTitle string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if meta.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					meta.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				name := getAttr(n, "name")
				if name == "" {
					name = getAttr(n, "property") // OpenGraph uses property
				}
				content := strings.TrimSpace(getAttr(n, "content"))
				if name == "" || content == "" {
					break
				}
				switch strings.ToLower(name) {
				case "og:title":
					if ogTitle == "" {
						ogTitle = content
					}
				case "description", "og:description":
					if meta.Description == "" {
						meta.Description = content
					}
				case "og:image":
					if meta.ImageURL == "" {
						meta.ImageURL = resolveURL(baseURL, content)
					}
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if meta.Title == "" {
		meta.Title = ogTitle
	}
	return meta
}

// resolveURL resolves a possibly-relative reference against the page URL.
// On any parse failure the reference is returned unchanged; a wrong but
// present image URL is more useful than none.
func resolveURL(baseURL, ref string) string {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
