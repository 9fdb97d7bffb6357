package srrdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/dropwatch/internal/notify"
	"github.com/JakeFAU/dropwatch/internal/release"
	"github.com/JakeFAU/dropwatch/internal/source"
)

const embedColor = 0x00FFE0

// Source announces new Switch releases.
type Source struct {
	client    *Client
	extractor *release.Extractor
	now       func() time.Time
	logger    *zap.Logger
}

// New builds a Source. The extractor's caches live as long as the Source,
// so build one Source per run.
func New(client *Client, opts release.Options, logger *zap.Logger) (*Source, error) {
	if client == nil {
		return nil, fmt.Errorf("srrdb client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		client:    client,
		extractor: release.NewExtractor(client, opts, logger),
		now:       time.Now,
		logger:    logger,
	}, nil
}

// Name implements source.Source.
func (s *Source) Name() string {
	return "srrdb"
}

// Candidates lists the newest releases.
func (s *Source) Candidates(ctx context.Context) ([]source.Candidate, error) {
	results, err := s.client.scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]source.Candidate, 0, len(results))
	for _, r := range results {
		out = append(out, source.Candidate{
			Name:  r.Release,
			Hints: source.Hints{HasMetadata: bool(r.HasNFO)},
		})
	}
	return out, nil
}

// Key is the release name; scene names are unique.
func (s *Source) Key(c source.Candidate) string {
	return c.Name
}

// Build extracts the release metadata and renders the announcement.
func (s *Source) Build(ctx context.Context, c source.Candidate) (notify.Payload, error) {
	rec, err := s.extractor.Extract(ctx, c.Name)
	if errors.Is(err, release.ErrNotFound) {
		return notify.Payload{}, fmt.Errorf("%w: %w", source.ErrNotFound, err)
	}
	if err != nil {
		return notify.Payload{}, err
	}
	return Payload(rec, s.now()), nil
}

// Payload renders the announcement for a release record.
func Payload(rec release.Record, now time.Time) notify.Payload {
	return notify.Payload{
		Title: "New Switch release",
		Fields: []notify.Field{
			{Label: "Name", Value: "`" + rec.Title + "`"},
			{Label: "Type", Value: "`" + string(release.KindOf(rec.Title)) + "`"},
			{Label: "TitleID", Value: "`" + rec.TitleID + "`"},
			{Label: "Size", Value: "`" + rec.Size + "`"},
			{Label: "Source", Value: "`" + release.Group(rec.Title) + "`"},
		},
		Footer:       "See it on the eShop: " + rec.EShopURL,
		ThumbnailURL: rec.ThumbURL,
		Color:        embedColor,
		Timestamp:    now.UTC(),
	}
}
