// Package qrcodes scrapes a codes page whose QR-code section pairs an image
// paragraph with a "Reward:" paragraph, and decodes each QR image.
package qrcodes

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/dropwatch/internal/notify"
	"github.com/JakeFAU/dropwatch/internal/qr"
	"github.com/JakeFAU/dropwatch/internal/source"
	"github.com/JakeFAU/dropwatch/internal/source/page"
)

// DefaultURL is the Clash Royale codes page.
const DefaultURL = "https://www.pockettactics.com/clash-royale/codes"

const (
	defaultKeyPrefix = "CR"
	defaultTitle     = "🃏 New Clash Royale QR code detected!"
	sectionMarker    = "qr code"
	rewardMarker     = "Reward:"
)

// Options customizes the scraper. Zero values select the Clash Royale page.
type Options struct {
	URL       string
	KeyPrefix string
	Title     string
}

func (o Options) withDefaults() Options {
	if o.URL == "" {
		o.URL = DefaultURL
	}
	if o.KeyPrefix == "" {
		o.KeyPrefix = defaultKeyPrefix
	}
	if o.Title == "" {
		o.Title = defaultTitle
	}
	return o
}

// Source implements source.Source over a QR-code page.
type Source struct {
	fetcher *page.Fetcher
	decoder qr.Decoder
	opts    Options
	now     func() time.Time
	logger  *zap.Logger
}

// New builds a Source.
func New(fetcher *page.Fetcher, decoder qr.Decoder, opts Options, logger *zap.Logger) (*Source, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}
	if decoder == nil {
		return nil, fmt.Errorf("qr decoder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		fetcher: fetcher,
		decoder: decoder,
		opts:    opts.withDefaults(),
		now:     time.Now,
		logger:  logger,
	}, nil
}

// Name implements source.Source.
func (s *Source) Name() string {
	return "qrcodes"
}

// Candidates lists rewards in the QR-code section. Each QR image is decoded
// here because the decoded URL is part of the dedup key; candidates whose
// image cannot be decoded carry HasMetadata=false and are retried next run.
func (s *Source) Candidates(ctx context.Context) ([]source.Candidate, error) {
	doc, err := s.fetcher.Document(ctx, s.opts.URL)
	if err != nil {
		return nil, err
	}
	heading := findSection(doc)
	if heading == nil {
		s.logger.Warn("qr code section not found", zap.String("url", s.opts.URL))
		return nil, nil
	}

	base, _ := url.Parse(s.opts.URL)
	var out []source.Candidate
	for _, p := range rewardParagraphs(heading) {
		reward := strings.TrimSpace(strings.Replace(page.SpacedText(p), rewardMarker, "", 1))
		img := previousImage(p)
		if img == "" {
			continue
		}
		img = resolve(base, img)

		hints := source.Hints{Attrs: map[string]string{"reward": reward, "image": img}}
		decoded, err := s.decoder.Decode(ctx, img)
		if err != nil {
			s.logger.Warn("qr decode failed",
				zap.String("reward", reward),
				zap.String("image", img),
				zap.Error(err),
			)
		} else {
			hints.HasMetadata = true
			hints.Attrs["qr_url"] = decoded
		}
		out = append(out, source.Candidate{Name: reward, Hints: hints})
	}
	s.logger.Debug("qr codes scraped", zap.String("url", s.opts.URL), zap.Int("count", len(out)))
	return out, nil
}

func findSection(doc *goquery.Selection) *goquery.Selection {
	var heading *goquery.Selection
	doc.Find("h2").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(h.Text()), sectionMarker) {
			heading = h
			return false
		}
		return true
	})
	return heading
}

// rewardParagraphs walks the elements after heading up to the next h2 and
// returns the paragraphs whose <strong> mentions the reward marker.
func rewardParagraphs(heading *goquery.Selection) []*goquery.Selection {
	var out []*goquery.Selection
	heading.NextUntil("h2").Each(func(_ int, sib *goquery.Selection) {
		candidates := sib.Find("p")
		if goquery.NodeName(sib) == "p" {
			candidates = sib.AddSelection(candidates)
		}
		candidates.Each(func(_ int, p *goquery.Selection) {
			if strings.Contains(p.Find("strong").First().Text(), rewardMarker) {
				out = append(out, p)
			}
		})
	})
	return out
}

// previousImage returns the src of the first image found in the preceding
// sibling paragraphs, nearest first.
func previousImage(p *goquery.Selection) string {
	var src string
	p.PrevAllFiltered("p").EachWithBreak(func(_ int, prev *goquery.Selection) bool {
		if v, ok := prev.Find("img").First().Attr("src"); ok && v != "" {
			src = v
			return false
		}
		return true
	})
	return src
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// Key is PREFIX|reward|decoded-url.
func (s *Source) Key(c source.Candidate) string {
	return s.opts.KeyPrefix + "|" + c.Attr("reward") + "|" + c.Attr("qr_url")
}

// Build renders a plain-text announcement.
func (s *Source) Build(_ context.Context, c source.Candidate) (notify.Payload, error) {
	target := c.Attr("qr_url")
	if target == "" {
		return notify.Payload{}, fmt.Errorf("%w: %q has no decoded qr code", source.ErrNotFound, c.Name)
	}
	return notify.Payload{
		Title: s.opts.Title,
		Fields: []notify.Field{
			{Label: "Reward", Value: c.Attr("reward")},
			{Label: "QR", Value: target},
		},
		URL:          target,
		ThumbnailURL: c.Attr("image"),
		Timestamp:    s.now().UTC(),
		Plain:        true,
	}, nil
}
