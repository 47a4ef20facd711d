package aggregator

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/feeds"

	"github.com/briefwire/briefwire/internal/metrics"
	"github.com/briefwire/briefwire/internal/models"
	"github.com/briefwire/briefwire/internal/pipeline"
)

func (a *Aggregator) startHTTPServer() {
	a.server = &http.Server{
		Addr:    ":" + a.config.ServerPort,
		Handler: a.routes(),
	}

	go func() {
		a.logger.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error().Err(err).Msg("http server error")
		}
	}()
}

// routes builds the handler, split out so tests can serve it from httptest.
func (a *Aggregator) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/stats", a.statsHandler)
	mux.HandleFunc("/api/news", a.newsHandler)
	mux.HandleFunc("/api/topics", a.topicsHandler)
	mux.HandleFunc("/api/refresh", a.refreshHandler)
	mux.HandleFunc("/api/chat", a.chatHandler)
	mux.HandleFunc("/feed.xml", a.rssHandler)
	mux.HandleFunc("/feed.atom", a.atomHandler)
	return mux
}

func (a *Aggregator) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if !metrics.Global.Healthy() {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"articles":  len(a.Snapshot().Articles),
	})
}

func (a *Aggregator) statsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Stats())
}

type newsResponse struct {
	Status      Status           `json:"status"`
	Origin      Origin           `json:"origin"`
	Notice      string           `json:"notice,omitempty"`
	Error       string           `json:"error,omitempty"`
	LastRefresh time.Time        `json:"last_refresh"`
	Count       int              `json:"count"`
	Articles    []models.Article `json:"articles"`
}

func (a *Aggregator) newsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query()
	order := models.SortNewest
	if query.Get("sort") == string(models.SortOldest) {
		order = models.SortOldest
	}

	snap := a.Snapshot()
	articles := a.Articles(query.Get("category"), order)
	if articles == nil {
		articles = []models.Article{}
	}

	writeJSON(w, http.StatusOK, newsResponse{
		Status:      snap.Status,
		Origin:      snap.Origin,
		Notice:      snap.Notice,
		Error:       snap.Err,
		LastRefresh: snap.LastRefresh,
		Count:       len(articles),
		Articles:    articles,
	})
}

func (a *Aggregator) topicsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	groups := a.Topics()
	if groups == nil {
		groups = []models.TopicGroup{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(groups),
		"topics": groups,
	})
}

func (a *Aggregator) refreshHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Service-scoped context: a client disconnect must not abort the shared
	// pipeline mid-flight.
	ctx, cancel := context.WithTimeout(context.Background(), a.config.RefreshTimeout)
	defer cancel()

	if err := a.Refresh(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	snap := a.Snapshot()
	articles := snap.Articles
	if articles == nil {
		articles = []models.Article{}
	}
	writeJSON(w, http.StatusOK, newsResponse{
		Status:      snap.Status,
		Origin:      snap.Origin,
		Notice:      snap.Notice,
		Error:       snap.Err,
		LastRefresh: snap.LastRefresh,
		Count:       len(articles),
		Articles:    articles,
	})
}

func (a *Aggregator) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, a.Chat(req.Query))
}

func (a *Aggregator) rssHandler(w http.ResponseWriter, r *http.Request) {
	rss, err := a.buildFeed(r).ToRss()
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to generate rss feed")
		writeError(w, http.StatusInternalServerError, "failed to generate feed")
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(rss))
}

func (a *Aggregator) atomHandler(w http.ResponseWriter, r *http.Request) {
	atom, err := a.buildFeed(r).ToAtom()
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to generate atom feed")
		writeError(w, http.StatusInternalServerError, "failed to generate feed")
		return
	}

	w.Header().Set("Content-Type", "application/atom+xml")
	w.Write([]byte(atom))
}

func (a *Aggregator) buildFeed(r *http.Request) *feeds.Feed {
	snap := a.Snapshot()

	base := a.config.SiteURL
	if base == "" {
		base = "http://" + r.Host
	}

	feed := &feeds.Feed{
		Title:       "Briefwire",
		Link:        &feeds.Link{Href: base + "/feed.xml"},
		Description: "Aggregated headlines, summarized and grouped by topic",
		Created:     snap.LastRefresh,
	}

	articles := snap.Articles
	if limit := a.config.FeedItemLimit; limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	for _, article := range articles {
		item := &feeds.Item{
			Title:       article.Title,
			Link:        &feeds.Link{Href: article.URL},
			Description: article.Summary,
			Author:      &feeds.Author{Name: article.Source.DisplayName()},
			Created:     pipeline.ParsePublished(article.PublishedAt),
		}
		feed.Items = append(feed.Items, item)
	}
	return feed
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
