package release

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/JakeFAU/dropwatch/internal/titleid"
)

const (
	// DefaultThumbURL is the Tinfoil cover template, keyed by base title ID.
	DefaultThumbURL = "https://tinfoil.media/ti/%s/1024/1024/"
	// DefaultEShopURL is the storefront template, keyed by base title ID.
	DefaultEShopURL = "https://ec.nintendo.com/apps/%s/FR"
)

// Options tunes the URLs derived for a record.
type Options struct {
	ThumbURL string
	EShopURL string
}

// Extractor derives Records and memoizes fetches for its own lifetime. One
// Extractor serves one run of one channel.
type Extractor struct {
	catalog Catalog
	opts    Options
	logger  *zap.Logger

	details map[string]Details
	nfos    map[string]string
}

// NewExtractor builds an Extractor over catalog.
func NewExtractor(catalog Catalog, opts Options, logger *zap.Logger) *Extractor {
	if opts.ThumbURL == "" {
		opts.ThumbURL = DefaultThumbURL
	}
	if opts.EShopURL == "" {
		opts.EShopURL = DefaultEShopURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		catalog: catalog,
		opts:    opts,
		logger:  logger,
		details: make(map[string]Details),
		nfos:    make(map[string]string),
	}
}

// NFOText returns the decoded NFO memoized for a title ID.
func (e *Extractor) NFOText(titleID string) (string, bool) {
	text, ok := e.nfos[titleID]
	return text, ok
}

// Extract derives the Record for the named release.
func (e *Extractor) Extract(ctx context.Context, name string) (Record, error) {
	details, err := e.lookupDetails(ctx, name)
	if err != nil {
		return Record{}, err
	}

	nfoURL, ok := e.resolveNFO(name, details)
	if !ok {
		return Record{}, fmt.Errorf("%s: no nfo: %w", name, ErrNotFound)
	}
	if len(details.ArchivedFiles) == 0 {
		return Record{}, fmt.Errorf("%s: no archived files: %w", name, ErrNotFound)
	}

	tid, text, err := e.parseNFO(ctx, nfoURL)
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", name, err)
	}
	base, err := titleid.NormalizeString(tid)
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", name, err)
	}
	if _, cached := e.nfos[tid]; !cached {
		e.nfos[tid] = text
	}

	primary := details.ArchivedFiles[0]
	return Record{
		TitleID:     tid,
		BaseTitleID: base,
		Title:       name,
		Size:        HumanSize(primary.Size),
		CRC:         primary.CRC,
		ProofURL:    e.proofURL(name, details),
		NFOURL:      nfoURL,
		ThumbURL:    fmt.Sprintf(e.opts.ThumbURL, base),
		EShopURL:    fmt.Sprintf(e.opts.EShopURL, base),
	}, nil
}

func (e *Extractor) lookupDetails(ctx context.Context, name string) (Details, error) {
	if d, ok := e.details[name]; ok {
		return d, nil
	}
	d, err := e.catalog.Details(ctx, name)
	if err != nil {
		return Details{}, fmt.Errorf("details for %s: %w", name, err)
	}
	e.details[name] = d
	return d, nil
}

// resolveNFO prefers an NFO in the main listing and falls back to one
// attached as an addendum.
func (e *Extractor) resolveNFO(name string, d Details) (string, bool) {
	for _, f := range d.Files {
		if isNFO(f.Name) {
			return e.catalog.FileURL(name, f.Name), true
		}
	}
	for _, add := range d.Adds {
		if isNFO(add.Name) {
			return e.catalog.AddendumURL(name, add), true
		}
	}
	return "", false
}

func isNFO(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".nfo")
}

func (e *Extractor) proofURL(name string, d Details) string {
	for _, f := range d.Files {
		if strings.Contains(f.Name, "Proof/") && strings.HasSuffix(strings.ToLower(f.Name), ".jpg") {
			return e.catalog.FileURL(name, f.Name)
		}
	}
	return ""
}

func (e *Extractor) parseNFO(ctx context.Context, url string) (string, string, error) {
	e.logger.Debug("parsing nfo", zap.String("url", url))
	raw, err := e.catalog.Fetch(ctx, url)
	if err != nil {
		return "", "", fmt.Errorf("fetch nfo: %w", err)
	}
	text := DecodeNFO(raw)
	tid, ok := titleid.Parse(text)
	if !ok {
		e.logger.Info("no title id in nfo", zap.String("url", url))
		return "", "", fmt.Errorf("no title id in %s: %w", url, ErrNotFound)
	}
	return tid, text, nil
}

// DecodeNFO decodes CP437 bytes. Every byte maps to a rune, so decoding
// cannot fail.
func DecodeNFO(raw []byte) string {
	out, err := charmap.CodePage437.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
