// Package rewardlink scrapes blog pages that list promo codes as paragraphs
// ending in a "Reward Link" anchor.
package rewardlink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/dropwatch/internal/notify"
	"github.com/JakeFAU/dropwatch/internal/source"
	"github.com/JakeFAU/dropwatch/internal/source/page"
)

// DefaultURL is the Clash of Clans codes page.
const DefaultURL = "https://www.ldplayer.net/blog/clash-of-clans-codes.html"

const (
	defaultAnchorText = "Reward Link"
	defaultKeyPrefix  = "COC"
	defaultTitle      = "🎉 New Clash of Clans code detected!"
)

// Options customizes the scraper. Zero values select the Clash of Clans page.
type Options struct {
	URL        string
	AnchorText string
	KeyPrefix  string
	Title      string
}

func (o Options) withDefaults() Options {
	if o.URL == "" {
		o.URL = DefaultURL
	}
	if o.AnchorText == "" {
		o.AnchorText = defaultAnchorText
	}
	if o.KeyPrefix == "" {
		o.KeyPrefix = defaultKeyPrefix
	}
	if o.Title == "" {
		o.Title = defaultTitle
	}
	return o
}

// Source implements source.Source over a reward-link page.
type Source struct {
	fetcher *page.Fetcher
	opts    Options
	now     func() time.Time
	logger  *zap.Logger
}

// New builds a Source.
func New(fetcher *page.Fetcher, opts Options, logger *zap.Logger) (*Source, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{fetcher: fetcher, opts: opts.withDefaults(), now: time.Now, logger: logger}, nil
}

// Name implements source.Source.
func (s *Source) Name() string {
	return "rewardlink"
}

// Candidates returns one candidate per paragraph carrying a reward anchor.
func (s *Source) Candidates(ctx context.Context) ([]source.Candidate, error) {
	doc, err := s.fetcher.Document(ctx, s.opts.URL)
	if err != nil {
		return nil, err
	}
	var out []source.Candidate
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		link, ok := s.rewardHref(p)
		if !ok {
			return
		}
		text := strings.TrimSpace(p.Text())
		out = append(out, source.Candidate{
			Name: text,
			Hints: source.Hints{
				HasMetadata: true,
				Attrs:       map[string]string{"text": text, "link": link},
			},
		})
	})
	s.logger.Debug("reward links scraped", zap.String("url", s.opts.URL), zap.Int("count", len(out)))
	return out, nil
}

func (s *Source) rewardHref(p *goquery.Selection) (string, bool) {
	var (
		href  string
		found bool
	)
	p.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.TrimSpace(a.Text()) != s.opts.AnchorText {
			return true
		}
		href, found = a.Attr("href")
		return !found
	})
	return href, found
}

// Key is PREFIX|text|link.
func (s *Source) Key(c source.Candidate) string {
	return s.opts.KeyPrefix + "|" + c.Attr("text") + "|" + c.Attr("link")
}

// Build renders a plain-text announcement; the scraped data is complete.
func (s *Source) Build(_ context.Context, c source.Candidate) (notify.Payload, error) {
	link := c.Attr("link")
	if link == "" {
		return notify.Payload{}, fmt.Errorf("%w: %q has no reward link", source.ErrNotFound, c.Name)
	}
	return notify.Payload{
		Title: s.opts.Title,
		Fields: []notify.Field{
			{Label: "Code", Value: c.Attr("text")},
			{Label: "Link", Value: link},
		},
		URL:       link,
		Timestamp: s.now().UTC(),
		Plain:     true,
	}, nil
}
