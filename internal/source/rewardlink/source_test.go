package rewardlink

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dropwatch/internal/httpx"
	"github.com/JakeFAU/dropwatch/internal/source"
	"github.com/JakeFAU/dropwatch/internal/source/page"
)

const codesPage = `<html><body>
<h1>Clash of Clans codes</h1>
<p>Intro text with <a href="https://example.com/other">a link</a>.</p>
<p>Free Builder Potion - <a href="https://link.clashofclans.com/en?action=CommonReward&amp;code=abc">Reward Link</a></p>
<p>No anchor here</p>
<p>Rune of Gold <a>Reward Link</a></p>
<p>
  Hammer of Heroes - <a href="https://link.clashofclans.com/en?code=def"> Reward Link </a>
</p>
</body></html>`

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	src, err := New(page.New(page.Config{Timeout: time.Second}, nil), Options{URL: srv.URL}, nil)
	require.NoError(t, err)
	src.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return src
}

func TestCandidates(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(codesPage))
	})

	got, err := src.Candidates(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Free Builder Potion - Reward Link", got[0].Name)
	assert.True(t, got[0].Hints.HasMetadata)
	assert.Equal(t, "https://link.clashofclans.com/en?action=CommonReward&code=abc", got[0].Attr("link"))
	assert.Equal(t,
		"COC|Free Builder Potion - Reward Link|https://link.clashofclans.com/en?action=CommonReward&code=abc",
		src.Key(got[0]))

	assert.Equal(t, "Hammer of Heroes -  Reward Link", got[1].Name)
	assert.Equal(t, "https://link.clashofclans.com/en?code=def", got[1].Attr("link"))
}

func TestCandidatesUpstreamFailure(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := src.Candidates(context.Background())
	status, ok := httpx.StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestBuild(t *testing.T) {
	t.Parallel()

	src, err := New(page.New(page.Config{}, nil), Options{}, nil)
	require.NoError(t, err)
	src.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	c := source.Candidate{
		Name:  "Gem pack",
		Hints: source.Hints{HasMetadata: true, Attrs: map[string]string{"text": "Gem pack", "link": "https://x/y"}},
	}
	p, err := src.Build(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, p.Plain)
	assert.Equal(t, "🎉 New Clash of Clans code detected!\n**Code:** Gem pack\n**Link:** https://x/y", p.Text())

	_, err = src.Build(context.Background(), source.Candidate{Name: "bare"})
	assert.True(t, errors.Is(err, source.ErrNotFound))
}

func TestNewRequiresFetcher(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Options{}, nil)
	require.Error(t, err)
}
