package aggregator

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briefwire/briefwire/internal/metrics"
	"github.com/briefwire/briefwire/internal/models"
)

func seededServer(t *testing.T) (*Aggregator, *httptest.Server) {
	t.Helper()
	a := newTestAggregator(t, testConfig(t))
	a.setState(State{
		Status:      StatusSuccess,
		Origin:      OriginLive,
		LastRefresh: time.Now(),
		Articles: []models.Article{
			{Title: "Quantum software breakthrough", Summary: "A new chip design ships.", Category: "technology", URL: "https://example.com/quantum", PublishedAt: "2026-08-25T08:00:00Z", Source: models.Source{Name: "TechWire"}},
			{Title: "League cup upset", Summary: "The team won late.", Category: "sports", URL: "https://example.com/cup", PublishedAt: "2026-08-24T08:00:00Z", Source: models.Source{Name: "ESPN"}},
			{Title: "Tech giants merge", Summary: "Two firms combine operations.", Category: "technology", URL: "https://example.com/merger", PublishedAt: "2026-08-23T08:00:00Z", Source: models.Source{Name: "TechWire"}},
		},
	})

	server := httptest.NewServer(a.routes())
	t.Cleanup(server.Close)
	return a, server
}

func TestHealthEndpoint(t *testing.T) {
	metrics.Global.RecordRefresh(time.Millisecond, 0, 0)
	_, server := seededServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestStatsEndpoint(t *testing.T) {
	_, server := seededServer(t)

	resp, err := http.Get(server.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(3), body["articles"])
	assert.Contains(t, body, "cache")
	assert.Contains(t, body, "metrics")
}

func TestNewsEndpointFiltersAndSorts(t *testing.T) {
	_, server := seededServer(t)

	resp, err := http.Get(server.URL + "/api/news?category=technology&sort=oldest")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status   string           `json:"status"`
		Origin   string           `json:"origin"`
		Count    int              `json:"count"`
		Articles []models.Article `json:"articles"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "live", body.Origin)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, "Tech giants merge", body.Articles[0].Title, "oldest first")
	assert.Equal(t, "Quantum software breakthrough", body.Articles[1].Title)
}

func TestNewsEndpointOmitsEmptyNotice(t *testing.T) {
	_, server := seededServer(t)

	resp, err := http.Get(server.URL + "/api/news")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotContains(t, body, "notice")
	assert.NotContains(t, body, "error")
	assert.Equal(t, float64(3), body["count"])
}

func TestNewsEndpointRejectsPost(t *testing.T) {
	_, server := seededServer(t)

	resp, err := http.Post(server.URL+"/api/news", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "method not allowed", body["error"])
}

func TestTopicsEndpoint(t *testing.T) {
	_, server := seededServer(t)

	resp, err := http.Get(server.URL + "/api/topics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Count  int                 `json:"count"`
		Topics []models.TopicGroup `json:"topics"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	require.NotZero(t, body.Count)
	assert.Equal(t, "Technology", body.Topics[0].Topic, "largest group first")
	assert.Len(t, body.Topics[0].Articles, 2)
}

func TestChatEndpoint(t *testing.T) {
	_, server := seededServer(t)

	resp, err := http.Post(server.URL+"/api/chat", "application/json", strings.NewReader(`{"query":"quantum"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Reply    string           `json:"reply"`
		Articles []models.Article `json:"articles"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, "Found 1 story matching your search:", body.Reply)
	require.Len(t, body.Articles, 1)
	assert.Equal(t, "Quantum software breakthrough", body.Articles[0].Title)
}

func TestChatEndpointNoMatches(t *testing.T) {
	_, server := seededServer(t)

	resp, err := http.Post(server.URL+"/api/chat", "application/json", strings.NewReader(`{"query":"volcano"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Reply    string           `json:"reply"`
		Articles []models.Article `json:"articles"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Contains(t, body.Reply, "couldn't find")
	assert.NotNil(t, body.Articles)
	assert.Empty(t, body.Articles)
}

func TestChatEndpointRejectsBadBody(t *testing.T) {
	_, server := seededServer(t)

	resp, err := http.Post(server.URL+"/api/chat", "application/json", strings.NewReader(`{"query":`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRefreshEndpointRunsCycle(t *testing.T) {
	a := newTestAggregator(t, testConfig(t), &fakeSource{raws: []models.RawArticle{{
		Title:       "Fresh story",
		Description: "Just in.",
		URL:         "https://example.com/fresh",
		PublishedAt: "2026-08-25T09:00:00Z",
	}}})
	server := httptest.NewServer(a.routes())
	t.Cleanup(server.Close)

	resp, err := http.Post(server.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(1), body["count"])

	getResp, err := http.Get(server.URL + "/api/refresh")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, getResp.StatusCode)
}

func TestRefreshEndpointEmptyWindowRendersArray(t *testing.T) {
	cfg := testConfig(t)
	writeFallback(t, cfg.FallbackPath, `{"articles":[]}`)
	a := newTestAggregator(t, cfg, &fakeSource{})
	server := httptest.NewServer(a.routes())
	t.Cleanup(server.Close)

	resp, err := http.Post(server.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(0), body["count"])
	articles, ok := body["articles"].([]interface{})
	require.True(t, ok, "articles must be an array even when empty, matching /api/news")
	assert.Empty(t, articles)
}

func TestFeedEndpoints(t *testing.T) {
	_, server := seededServer(t)

	rssResp, err := http.Get(server.URL + "/feed.xml")
	require.NoError(t, err)
	defer rssResp.Body.Close()

	require.Equal(t, http.StatusOK, rssResp.StatusCode)
	assert.Contains(t, rssResp.Header.Get("Content-Type"), "application/rss+xml")

	rssBody := readAll(t, rssResp)
	assert.Contains(t, rssBody, "<rss")
	assert.Contains(t, rssBody, "Quantum software breakthrough")
	assert.Contains(t, rssBody, "https://example.com/quantum")

	atomResp, err := http.Get(server.URL + "/feed.atom")
	require.NoError(t, err)
	defer atomResp.Body.Close()

	require.Equal(t, http.StatusOK, atomResp.StatusCode)
	assert.Contains(t, atomResp.Header.Get("Content-Type"), "application/atom+xml")
	assert.Contains(t, readAll(t, atomResp), "<feed")
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}
