package qrcodes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dropwatch/internal/qr"
	"github.com/JakeFAU/dropwatch/internal/source"
	"github.com/JakeFAU/dropwatch/internal/source/page"
)

const codesPage = `<html><body>
<h2>Clash Royale codes</h2>
<p><strong>Reward:</strong> not in the qr section</p>
<h2>Clash Royale QR codes</h2>
<p><strong>Reward:</strong> orphan without image</p>
<p><img src="/img/qr-gems.png" alt="qr"></p>
<p>Scan it with your phone.</p>
<p><strong>Reward:</strong> 10 Gems</p>
<div class="box">
  <p><img src="https://cdn.example.com/qr-emote.png"></p>
</div>
<p><img src="/img/qr-broken.png"></p>
<p><strong>Reward:</strong>  Emote <em>pack</em></p>
<h2>How to redeem</h2>
<p><img src="/img/after.png"></p>
<p><strong>Reward:</strong> after the section</p>
</body></html>`

type decodeStub struct {
	calls atomic.Int32
}

func (d *decodeStub) Decode(_ context.Context, imageURL string) (string, error) {
	d.calls.Add(1)
	if strings.HasSuffix(imageURL, "/img/qr-gems.png") {
		return "https://link.clashroyale.com/?gems", nil
	}
	return "", qr.ErrNoCode
}

func newTestSource(t *testing.T, body string, dec qr.Decoder) *Source {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	src, err := New(page.New(page.Config{Timeout: time.Second}, nil), dec, Options{URL: srv.URL + "/codes"}, nil)
	require.NoError(t, err)
	src.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return src
}

func TestCandidates(t *testing.T) {
	t.Parallel()

	dec := &decodeStub{}
	src := newTestSource(t, codesPage, dec)

	got, err := src.Candidates(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.EqualValues(t, 2, dec.calls.Load())

	assert.Equal(t, "10 Gems", got[0].Name)
	assert.True(t, got[0].Hints.HasMetadata)
	assert.True(t, strings.HasSuffix(got[0].Attr("image"), "/img/qr-gems.png"))
	assert.True(t, strings.HasPrefix(got[0].Attr("image"), "http://"))
	assert.Equal(t, "CR|10 Gems|https://link.clashroyale.com/?gems", src.Key(got[0]))

	assert.Equal(t, "Emote pack", got[1].Name)
	assert.False(t, got[1].Hints.HasMetadata)
	assert.Empty(t, got[1].Attr("qr_url"))
}

func TestCandidatesWithoutSection(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, `<html><body><h2>Codes</h2><p>nothing</p></body></html>`, &decodeStub{})
	got, err := src.Candidates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBuild(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, codesPage, &decodeStub{})
	c := source.Candidate{
		Name: "10 Gems",
		Hints: source.Hints{HasMetadata: true, Attrs: map[string]string{
			"reward": "10 Gems",
			"image":  "https://cdn/qr.png",
			"qr_url": "https://link/?gems",
		}},
	}
	p, err := src.Build(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, p.Plain)
	assert.Equal(t, "🃏 New Clash Royale QR code detected!\n**Reward:** 10 Gems\n**QR:** https://link/?gems", p.Text())
	assert.Equal(t, "https://cdn/qr.png", p.ThumbnailURL)

	_, err = src.Build(context.Background(), source.Candidate{Name: "x"})
	assert.True(t, errors.Is(err, source.ErrNotFound))
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, &decodeStub{}, Options{}, nil)
	require.Error(t, err)
	_, err = New(page.New(page.Config{}, nil), nil, Options{}, nil)
	require.Error(t, err)
}
