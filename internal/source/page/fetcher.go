// Package page fetches HTML pages with Colly and hands them to adapters as
// goquery documents.
package page

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/net/html"

	"github.com/JakeFAU/dropwatch/internal/httpx"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher loads single pages; it never follows links.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnHTML(string, colly.HTMLCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. A nil transport uses the shared pooled transport.
func New(cfg Config, transport http.RoundTripper) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if transport == nil {
		transport = httpx.NewTransport()
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(transport)
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Document fetches url and returns its parsed root. Non-2xx responses are
// reported as *httpx.StatusError; network failures wrap httpx.ErrTransport.
func (f *Fetcher) Document(ctx context.Context, url string) (*goquery.Selection, error) {
	var (
		doc      *goquery.Selection
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)
	configureHooks(collector, url, &doc, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return nil, fetchErr
		}
		if err != nil {
			return nil, fmt.Errorf("%w: visit %s: %w", httpx.ErrTransport, url, err)
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s returned no html document", httpx.ErrTransport, url)
	}
	return doc, nil
}

func configureHooks(hooks collectorHooks, url string, doc **goquery.Selection, fetchErr *error) {
	hooks.OnHTML("html", func(e *colly.HTMLElement) {
		if *doc == nil {
			*doc = e.DOM
		}
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 && (r.StatusCode < 200 || r.StatusCode > 299) {
			*fetchErr = &httpx.StatusError{Method: http.MethodGet, URL: url, StatusCode: r.StatusCode}
			return
		}
		*fetchErr = fmt.Errorf("%w: GET %s: %w", httpx.ErrTransport, url, err)
	})
}

// SpacedText joins the trimmed text nodes under sel with single spaces.
func SpacedText(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}
