package release

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/dropwatch/internal/titleid"
)

// ErrNotFound reports that a release has no usable NFO or title ID.
var ErrNotFound = errors.New("release metadata not found")

// File is one entry of a release listing.
type File struct {
	Name string
	Size int64
	CRC  string
}

// Addendum is a file attached to a release after the fact.
type Addendum struct {
	ID   string
	Name string
}

// Details is the file listing of one release.
type Details struct {
	Name          string
	Files         []File
	ArchivedFiles []File
	Adds          []Addendum
}

// Catalog resolves release listings and document URLs. Fetch errors must
// keep non-2xx statuses typed (httpx.StatusError).
type Catalog interface {
	Details(ctx context.Context, name string) (Details, error)
	FileURL(release, file string) string
	AddendumURL(release string, add Addendum) string
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Record is the metadata derived for one release.
type Record struct {
	TitleID     string
	BaseTitleID string
	Title       string
	Size        string
	CRC         string
	ProofURL    string
	NFOURL      string
	ThumbURL    string
	EShopURL    string
}

// Verify re-derives the base title ID and checks it matches.
func (r Record) Verify() error {
	base, err := titleid.NormalizeString(r.TitleID)
	if err != nil {
		return fmt.Errorf("verify record %s: %w", r.Title, err)
	}
	if base != r.BaseTitleID {
		return fmt.Errorf("verify record %s: base title id %s, want %s", r.Title, r.BaseTitleID, base)
	}
	return nil
}
