package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ScriptWriter/internal/ports"
	"ScriptWriter/internal/structured"
)

const defaultExcerptChars = 2000

// PageFetcher downloads a source link and reduces it to readable paragraph text.
type PageFetcher struct {
	client   *http.Client
	maxChars int
}

var _ ports.PageFetcher = (*PageFetcher)(nil)

// NewPageFetcher wires an HTTP client; maxChars defaults to 2000.
func NewPageFetcher(client *http.Client, maxChars int) *PageFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if maxChars <= 0 {
		maxChars = defaultExcerptChars
	}
	return &PageFetcher{client: client, maxChars: maxChars}
}

// Excerpt returns the leading paragraph text of the page at link.
func (p *PageFetcher) Excerpt(ctx context.Context, link string) (string, error) {
	if err := validateLink(link); err != nil {
		return "", err
	}

	doc, err := p.fetchDocument(ctx, link)
	if err != nil {
		return "", err
	}

	text := extractText(doc, p.maxChars)
	if text == "" {
		return "", fmt.Errorf("no readable text at %s", link)
	}
	return text, nil
}

func (p *PageFetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "ScriptWriter/1.0")
	req.Header.Set("Accept", "text/html")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func extractText(doc *goquery.Document, maxChars int) string {
	doc.Find("script, style, nav, header, footer, aside, form").Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	var sb strings.Builder
	root.Find("p, li, h1, h2, h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		line := strings.Join(strings.Fields(s.Text()), " ")
		if len(line) < 20 {
			return true
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(line)
		return sb.Len() < maxChars
	})

	text := sb.String()
	return strings.TrimSpace(structured.Truncate(text, maxChars))
}

func validateLink(link string) error {
	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return fmt.Errorf("invalid link %s: %w", link, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported link scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("link %s has no host", link)
	}
	return nil
}
