package ingestion

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Source kinds recorded in chunk metadata.
const (
	KindPDF      = "pdf"
	KindText     = "text"
	KindMarkdown = "markdown"
	KindWeb      = "web"
)

// InferredMetadata holds what can be guessed about a source from its name
// alone. Empty fields are omitted from chunk metadata.
type InferredMetadata struct {
	// Kind is one of pdf, text, markdown, web.
	Kind string
	// Host is the URL hostname for web sources.
	Host string
	// DocType classifies web documentation (reference, tutorial, guide, api,
	// changelog, blog).
	DocType string
}

// docTypeSegments maps URL path segments to a documentation type. The first
// matching segment wins.
var docTypeSegments = map[string]string{
	"docs":            "reference",
	"reference":       "reference",
	"manual":          "reference",
	"rules":           "reference",
	"guide":           "guide",
	"guides":          "guide",
	"how-to":          "guide",
	"tutorial":        "tutorial",
	"tutorials":       "tutorial",
	"getting-started": "tutorial",
	"quick-start":     "tutorial",
	"api":             "api",
	"changelog":       "changelog",
	"releases":        "changelog",
	"blog":            "blog",
	"news":            "blog",
}

// InferMetadata inspects a source path or URL and returns best-effort
// metadata.
//
// Web sources whose path ends in .pdf, .md or .txt take that kind; other
// URLs are "web" with a DocType inferred from the path, for example:
//
//	https://example.com/docs/rules/setup     → reference
//	https://example.com/tutorials/first-game → tutorial
func InferMetadata(source string) InferredMetadata {
	if isURL(source) {
		return inferURL(source)
	}
	return InferredMetadata{Kind: kindFromExt(source)}
}

func inferURL(raw string) InferredMetadata {
	m := InferredMetadata{Kind: KindWeb}
	parsed, err := url.Parse(raw)
	if err != nil {
		return m
	}
	m.Host = strings.ToLower(parsed.Hostname())

	path := strings.ToLower(parsed.Path)
	if k := kindFromExt(path); k != KindText || strings.HasSuffix(path, ".txt") {
		m.Kind = k
	}
	for _, seg := range trimSegments(path) {
		if dt, ok := docTypeSegments[seg]; ok {
			m.DocType = dt
			break
		}
	}
	return m
}

// kindFromExt maps a file extension to a kind; unknown extensions are text.
func kindFromExt(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF
	case ".md", ".markdown":
		return KindMarkdown
	}
	return KindText
}

// apply copies the non-empty fields into meta.
func (m InferredMetadata) apply(meta map[string]any) {
	if m.Kind != "" {
		meta["kind"] = m.Kind
	}
	if m.Host != "" {
		meta["host"] = m.Host
	}
	if m.DocType != "" {
		meta["doc_type"] = m.DocType
	}
}

// isURL reports whether s is an http(s) URL.
func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// trimSegments splits a URL path into non-empty segments.
func trimSegments(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
