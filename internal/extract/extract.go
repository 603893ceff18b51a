package extract

import (
	"bytes"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/webcrawler/internal/log"
	"github.com/nao1215/webcrawler/internal/model"
)

// Selectors for the content classes we collect.
const (
	titleSelector     = "h1, h2, h3, h4, h5, h6"
	paragraphSelector = "p, div, section, article, span"
)

// unwantedText matches boilerplate such as bylines and pagination.
var unwantedText = regexp.MustCompile(`(?i)(Posted On|By|Next|Previous|Comments)`)

// whitespace collapses runs of any whitespace.
var whitespace = regexp.MustCompile(`\s+`)

// skippedSchemes are href prefixes that never point at a crawlable page.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// Extractor converts a response body into ExtractedContent.
type Extractor interface {
	Extract(pageURL, contentType string, body []byte) model.ExtractedContent
}

// HTML extracts titles, paragraphs, links and images from HTML or XML
// documents.
type HTML struct {
	logger *slog.Logger
}

// Option configures HTML.
type Option func(*HTML)

// WithLogger sets the logger for degraded extractions.
func WithLogger(logger *slog.Logger) Option {
	return func(h *HTML) {
		h.logger = logger
	}
}

// NewHTML creates an HTML extractor.
func NewHTML(opts ...Option) *HTML {
	h := &HTML{}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = log.Discard()
	}
	return h
}

// Extract parses body and collects content. Relative links and image
// sources are resolved against pageURL, or against <base href> when the
// document declares one.
func (h *HTML) Extract(pageURL, contentType string, body []byte) model.ExtractedContent {
	content := model.ExtractedContent{
		URL:        pageURL,
		Titles:     []string{},
		Paragraphs: []string{},
		Links:      []string{},
		Images:     []string{},
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		h.logger.Debug("extraction degraded", "url", pageURL, "content_type", contentType, "error", err)
		return content
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = &url.URL{}
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	content.Titles = filterText(doc.Find(titleSelector))
	content.Paragraphs = filterText(doc.Find(paragraphSelector))

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link := resolve(base, href)
		if link == "" || !isAbsolute(link) {
			return
		}
		content.Links = append(content.Links, link)
	})

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if img := resolveImage(base, src); img != "" {
			content.Images = append(content.Images, img)
		}
	})

	return content
}

// filterText returns the cleaned text of every selected element, skipping
// blank and boilerplate elements.
func filterText(sel *goquery.Selection) []string {
	out := []string{}
	sel.Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if strings.TrimSpace(text) == "" || unwantedText.MatchString(text) {
			return
		}
		out = append(out, cleanText(text))
	})
	return out
}

// cleanText collapses whitespace and trims the result.
func cleanText(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// resolve resolves href against base. It returns "" for empty, fragment-only
// and non-navigable references.
func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}
	lower := strings.ToLower(href)
	for _, prefix := range skippedSchemes {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// resolveImage is resolve for image sources, which keeps inline data: URIs
// verbatim.
func resolveImage(base *url.URL, src string) string {
	src = strings.TrimSpace(src)
	if strings.HasPrefix(strings.ToLower(src), "data:") {
		return src
	}
	return resolve(base, src)
}

// isAbsolute reports whether raw has both a scheme and a host.
func isAbsolute(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
