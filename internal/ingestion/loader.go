package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// supportedExts are the file extensions picked up when walking a directory.
var supportedExts = []string{".pdf", ".txt", ".md", ".markdown"}

// Page is one unit of loaded text: a PDF page, or a whole text file.
type Page struct {
	// Source is the file path or URL the text came from.
	Source string
	// Page is the zero-based page number; always 0 for non-PDF sources.
	Page int
	// Text is the extracted text.
	Text string
}

// loader reads sources from disk or HTTP.
type loader struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// load returns the pages of target, which may be a file, a directory
// (walked recursively, supported extensions only, sorted by path) or an
// http(s) URL.
func (l *loader) load(ctx context.Context, target string) ([]Page, error) {
	if isURL(target) {
		return l.fetch(ctx, target)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return loadFile(target)
	}

	var pages []Page
	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !slices.Contains(supportedExts, strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := loadFile(path)
		if err != nil {
			return err
		}
		pages = append(pages, p...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

// loadFile reads a single file by extension.
func loadFile(path string) ([]Page, error) {
	if kindFromExt(path) == KindPDF {
		return loadPDF(path, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []Page{{Source: path, Text: string(data)}}, nil
}

// loadPDF extracts plain text page by page. Pages without a content stream
// are skipped; numbering still follows the document.
func loadPDF(path, source string) ([]Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", source, err)
	}
	defer f.Close()

	var pages []Page
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read pdf %s page %d: %w", source, i, err)
		}
		pages = append(pages, Page{Source: source, Page: i - 1, Text: text})
	}
	return pages, nil
}

// fetch downloads a URL source. PDFs are spooled to a temporary file for the
// PDF reader; HTML has its markup stripped.
func (l *loader) fetch(ctx context.Context, rawURL string) ([]Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/plain, text/markdown, text/html, application/pdf")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	if resp.ContentLength > l.maxBytes {
		return nil, fmt.Errorf("%s is %d bytes, over the %d byte limit", rawURL, resp.ContentLength, l.maxBytes)
	}
	body := http.MaxBytesReader(nil, resp.Body, l.maxBytes)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	var pages []Page
	switch {
	case mediaType == "application/pdf" || (mediaType == "" && InferMetadata(rawURL).Kind == KindPDF):
		pages, err = spoolPDF(body, rawURL)
	case mediaType == "text/html":
		var text string
		text, err = htmlText(body)
		pages = []Page{{Source: rawURL, Text: text}}
	default:
		var data []byte
		data, err = io.ReadAll(body)
		pages = []Page{{Source: rawURL, Text: string(data)}}
	}
	if tooLarge := (*http.MaxBytesError)(nil); errors.As(err, &tooLarge) {
		return nil, fmt.Errorf("%s exceeds the %d byte limit", rawURL, tooLarge.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return pages, nil
}

func spoolPDF(body io.Reader, source string) ([]Page, error) {
	tmp, err := os.CreateTemp("", "ragq-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, body); err != nil {
		return nil, fmt.Errorf("save pdf: %w", err)
	}
	return loadPDF(tmp.Name(), source)
}

// skipTags hold no visible text.
var skipTags = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
}

// blockTags start or end a line of visible text.
var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Tr: true, atom.Table: true, atom.Section: true, atom.Article: true, atom.Pre: true,
	atom.Blockquote: true, atom.Header: true, atom.Footer: true, atom.Title: true,
}

// htmlText reduces an HTML document to its visible text with entities
// decoded, keeping block boundaries as line breaks.
func htmlText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", err
			}
			return b.String(), nil
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			switch {
			case skipTags[a] && tt == html.StartTagToken:
				skip++
			case skipTags[a] && tt == html.EndTagToken:
				skip = max(0, skip-1)
			case blockTags[a] && skip == 0:
				b.WriteByte('\n')
			}
		}
	}
}
