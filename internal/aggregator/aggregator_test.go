package aggregator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briefwire/briefwire/internal/cache"
	"github.com/briefwire/briefwire/internal/config"
	"github.com/briefwire/briefwire/internal/models"
)

type fakeSource struct {
	name string
	raws []models.RawArticle
	err  error
}

func (f *fakeSource) FetchArticles(ctx context.Context, limit int) ([]models.RawArticle, error) {
	return f.raws, f.err
}

func (f *fakeSource) GetName() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

type panicSource struct{}

func (panicSource) FetchArticles(ctx context.Context, limit int) ([]models.RawArticle, error) {
	panic("unexpected nil entry")
}

func (panicSource) GetName() string { return "panicky" }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		FallbackPath:      filepath.Join(t.TempDir(), "fallback.json"),
		EnrichLimit:       15,
		EnrichConcurrency: 2,
		FeedItemLimit:     10,
		PageSize:          50,
		RequestTimeout:    5 * time.Second,
		RefreshTimeout:    5 * time.Second,
		CacheRetention:    time.Hour,
		ServerPort:        "0",
	}
}

func newTestAggregator(t *testing.T, cfg *config.Config, srcs ...models.NewsSource) *Aggregator {
	t.Helper()
	cacheLayer := cache.New(cfg.CacheRetention)
	t.Cleanup(cacheLayer.Close)

	a := New(cfg, cacheLayer, nil, zerolog.Nop())
	a.sources = srcs
	return a
}

func writeFallback(t *testing.T, path, payload string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))
}

func TestRefreshLiveSuccess(t *testing.T) {
	src := &fakeSource{raws: []models.RawArticle{
		{
			Title:       "Markets rally",
			Description: "Stocks climbed across the board.",
			URL:         "https://example.com/markets",
			PublishedAt: "2026-08-24T08:00:00Z",
			Source:      models.Source{Name: "Bloomberg Markets"},
		},
		{
			Title:       "Markets rally",
			Description: "Same story from a second wire.",
			URL:         "https://example.com/markets",
			PublishedAt: "2026-08-24T09:00:00Z",
			Source:      models.Source{Name: "Reuters"},
		},
		{
			Title:       "New handset revealed",
			Description: "A phone launch drew crowds.",
			URL:         "https://example.com/phone",
			PublishedAt: "2026-08-25T07:00:00Z",
			Source:      models.Source{Name: "TechCrunch"},
		},
	}}

	a := newTestAggregator(t, testConfig(t), src)
	require.NoError(t, a.Refresh(context.Background()))

	snap := a.Snapshot()
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Equal(t, OriginLive, snap.Origin)
	assert.Empty(t, snap.Notice)
	assert.Empty(t, snap.Err)
	assert.NotEmpty(t, snap.RefreshID)

	require.Len(t, snap.Articles, 2, "duplicate title+url collapses to one")
	assert.Equal(t, "New handset revealed", snap.Articles[0].Title, "newest first")
	assert.Equal(t, "Stocks climbed across the board.", snap.Articles[1].Summary,
		"first occurrence of a duplicate wins")
	assert.Equal(t, "business", snap.Articles[1].Category, "source heuristic fills the category")

	assert.Equal(t, 2, a.cache.Count())
}

func TestRefreshFallbackWhenLiveEmpty(t *testing.T) {
	cfg := testConfig(t)
	writeFallback(t, cfg.FallbackPath, `{"articles":[
		{"title":"Archived story","description":"Saved for rainy days.","url":"https://example.com/archived","publishedAt":"2026-08-20T12:00:00Z","source":{"name":"TechDigital News"}},
		{"title":"Older archive","description":"Even older.","url":"https://example.com/older","publishedAt":"2026-08-19T12:00:00Z","source":"Wire"}
	]}`)

	a := newTestAggregator(t, cfg, &fakeSource{})
	require.NoError(t, a.Refresh(context.Background()))

	snap := a.Snapshot()
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Equal(t, OriginFallback, snap.Origin)
	assert.Equal(t, noticeFallback, snap.Notice)

	require.Len(t, snap.Articles, 2)
	assert.Equal(t, "Archived story", snap.Articles[0].Title)
	assert.Equal(t, "technology", snap.Articles[0].Category, "fallback records run the full pipeline")
}

func TestRefreshEmptyFallbackIsEmptySuccess(t *testing.T) {
	cfg := testConfig(t)
	writeFallback(t, cfg.FallbackPath, `{"articles":[]}`)

	a := newTestAggregator(t, cfg, &fakeSource{})
	require.NoError(t, a.Refresh(context.Background()))

	snap := a.Snapshot()
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Equal(t, OriginFallback, snap.Origin)
	assert.Empty(t, snap.Err)
	assert.Empty(t, snap.Articles, "an empty readable fallback must not degrade to the placeholder")
}

func TestRefreshPlaceholderWhenFallbackMissing(t *testing.T) {
	a := newTestAggregator(t, testConfig(t), &fakeSource{})
	require.NoError(t, a.Refresh(context.Background()))

	snap := a.Snapshot()
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Equal(t, OriginPlaceholder, snap.Origin)
	assert.Equal(t, noticePlaceholder, snap.Notice)

	require.Len(t, snap.Articles, 1)
	assert.Equal(t, "News temporarily unavailable", snap.Articles[0].Title)
	assert.Equal(t, "general", snap.Articles[0].Category)
}

func TestRefreshQuotaRetainsPriorWindow(t *testing.T) {
	live := &fakeSource{raws: []models.RawArticle{{
		Title:       "Yesterday's lead",
		Description: "Still worth showing.",
		URL:         "https://example.com/lead",
		PublishedAt: "2026-08-24T10:00:00Z",
	}}}

	a := newTestAggregator(t, testConfig(t), live)
	require.NoError(t, a.Refresh(context.Background()))
	require.Equal(t, OriginLive, a.Snapshot().Origin)

	a.sources = []models.NewsSource{&fakeSource{
		err: &models.StatusError{Code: 429, Message: "newsapi rate limit exceeded"},
	}}
	require.NoError(t, a.Refresh(context.Background()))

	snap := a.Snapshot()
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Equal(t, OriginLive, snap.Origin, "retained window keeps its origin")
	assert.Equal(t, noticeQuotaRetained, snap.Notice)
	require.Len(t, snap.Articles, 1)
	assert.Equal(t, "Yesterday's lead", snap.Articles[0].Title)
}

func TestRefreshPaymentRequiredHasDistinctNotice(t *testing.T) {
	live := &fakeSource{raws: []models.RawArticle{{
		Title:       "Paid-for story",
		Description: "From better days.",
		URL:         "https://example.com/paid",
		PublishedAt: "2026-08-24T10:00:00Z",
	}}}

	a := newTestAggregator(t, testConfig(t), live)
	require.NoError(t, a.Refresh(context.Background()))

	a.sources = []models.NewsSource{&fakeSource{
		err: &models.StatusError{Code: 402, Message: "newsapi plan upgrade required"},
	}}
	require.NoError(t, a.Refresh(context.Background()))

	snap := a.Snapshot()
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Equal(t, noticePaymentRetained, snap.Notice, "402 must read differently from 429")
	require.Len(t, snap.Articles, 1)
}

func TestRefreshQuotaWithoutPriorUsesFallback(t *testing.T) {
	cfg := testConfig(t)
	writeFallback(t, cfg.FallbackPath, `{"articles":[{"title":"Offline item","url":"https://example.com/offline"}]}`)

	a := newTestAggregator(t, cfg, &fakeSource{
		err: &models.StatusError{Code: 402, Message: "newsapi plan upgrade required"},
	})
	require.NoError(t, a.Refresh(context.Background()))

	snap := a.Snapshot()
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Equal(t, OriginFallback, snap.Origin)
	assert.Equal(t, noticePaymentOffline, snap.Notice, "quota wording wins over the generic offline notice")
	require.Len(t, snap.Articles, 1)
	assert.Equal(t, "Offline item", snap.Articles[0].Title)
}

func TestRefreshRateLimitWithoutPriorKeepsQuotaNotice(t *testing.T) {
	a := newTestAggregator(t, testConfig(t), &fakeSource{
		err: &models.StatusError{Code: 429, Message: "newsapi rate limit exceeded"},
	})
	require.NoError(t, a.Refresh(context.Background()))

	snap := a.Snapshot()
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Equal(t, OriginPlaceholder, snap.Origin)
	assert.Equal(t, noticeQuotaOffline, snap.Notice, "429 wording survives even the placeholder path")
}

func TestRefreshRecoversFromPanic(t *testing.T) {
	a := newTestAggregator(t, testConfig(t), panicSource{})
	a.setState(State{Status: StatusSuccess, Origin: OriginLive, Articles: []models.Article{{Title: "Kept"}}})

	err := a.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, "failed to fetch news, please try again", err.Error())

	snap := a.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, "failed to fetch news, please try again", snap.Err)
	require.Len(t, snap.Articles, 1, "prior window must survive a failed refresh")
	assert.Equal(t, "Kept", snap.Articles[0].Title)
	assert.Equal(t, OriginLive, snap.Origin)
}

func TestRefreshCoalescesWhileRunning(t *testing.T) {
	a := newTestAggregator(t, testConfig(t), &fakeSource{})

	a.mu.Lock()
	a.refreshing = true
	a.state = State{Status: StatusLoading}
	a.mu.Unlock()

	require.NoError(t, a.Refresh(context.Background()))
	assert.Equal(t, StatusLoading, a.Snapshot().Status, "second caller must not touch the state")
}

func TestRefreshCancelledContextKeepsPriorWindow(t *testing.T) {
	a := newTestAggregator(t, testConfig(t), &fakeSource{})
	a.setState(State{Status: StatusSuccess, Origin: OriginLive, Articles: []models.Article{{Title: "Kept"}}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.Refresh(ctx)
	require.ErrorIs(t, err, context.Canceled)

	snap := a.Snapshot()
	assert.Equal(t, StatusSuccess, snap.Status)
	require.Len(t, snap.Articles, 1)
	assert.Equal(t, "Kept", snap.Articles[0].Title)
}

func TestArticlesFiltersAndSorts(t *testing.T) {
	a := newTestAggregator(t, testConfig(t))
	a.setState(State{Status: StatusSuccess, Origin: OriginLive, Articles: []models.Article{
		{Title: "Tech A", Category: "technology", PublishedAt: "2026-08-23T10:00:00Z"},
		{Title: "Biz", Category: "business", PublishedAt: "2026-08-25T10:00:00Z"},
		{Title: "Tech B", Category: "technology", PublishedAt: "2026-08-24T10:00:00Z"},
	}})

	tech := a.Articles("technology", models.SortOldest)
	require.Len(t, tech, 2)
	assert.Equal(t, "Tech A", tech[0].Title)
	assert.Equal(t, "Tech B", tech[1].Title)

	all := a.Articles("all", models.SortNewest)
	require.Len(t, all, 3)
	assert.Equal(t, "Biz", all[0].Title)
}

func TestTopicsAndChatServeFromState(t *testing.T) {
	a := newTestAggregator(t, testConfig(t))
	a.setState(State{Status: StatusSuccess, Origin: OriginLive, Articles: []models.Article{
		{Title: "Cup final tonight", Summary: "The football season ends.", Category: "sports"},
		{Title: "Chip plant opens", Summary: "A software hub grows.", Category: "technology"},
	}})

	groups := a.Topics()
	require.NotEmpty(t, groups)

	found := a.Chat("football")
	require.Len(t, found.Articles, 1)
	assert.Equal(t, "Cup final tonight", found.Articles[0].Title)

	missed := a.Chat("volcano")
	assert.Empty(t, missed.Articles)
	assert.Contains(t, missed.Reply, "couldn't find")
}
