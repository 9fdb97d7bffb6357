// Package release derives structured metadata for scene releases from their
// file listings and NFO documents.
//
// The Extractor resolves a release's NFO (an addendum NFO wins over one in
// the main file list), decodes it as CP437, locates the title ID, and
// computes the base title ID used for cover art and storefront links.
// Failures are split so callers can choose a policy: ErrNotFound means the
// release genuinely lacks the data, while an httpx.StatusError or
// httpx.ErrTransport means the upstream is unhealthy and the release should
// be retried on a later run.
package release
