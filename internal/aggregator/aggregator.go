package aggregator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/briefwire/briefwire/internal/ai"
	"github.com/briefwire/briefwire/internal/cache"
	"github.com/briefwire/briefwire/internal/chat"
	"github.com/briefwire/briefwire/internal/classify"
	"github.com/briefwire/briefwire/internal/config"
	"github.com/briefwire/briefwire/internal/metrics"
	"github.com/briefwire/briefwire/internal/models"
	"github.com/briefwire/briefwire/internal/pipeline"
	"github.com/briefwire/briefwire/internal/report"
	"github.com/briefwire/briefwire/internal/retry"
	"github.com/briefwire/briefwire/internal/scheduler"
	"github.com/briefwire/briefwire/internal/sources"
	"github.com/briefwire/briefwire/internal/telegram"
)

const refreshFailedMessage = "failed to fetch news, please try again"

const (
	noticeQuotaRetained   = "News quota exhausted; showing previously fetched headlines."
	noticePaymentRetained = "News plan limit reached; showing previously fetched headlines."
	noticeSourceQuota     = "News API quota exhausted; showing remaining sources."
	noticeSourcePayment   = "News API plan limit reached; showing remaining sources."
	noticeQuotaOffline    = "News quota exhausted; live headlines will return later."
	noticePaymentOffline  = "News plan limit reached; live headlines will return later."
	noticeEnrichQuota     = "AI annotation quota exhausted; plain summaries are shown."
	noticeFallback        = "Live news is unavailable; showing offline headlines."
	noticePlaceholder     = "Live news is unavailable right now."
)

const (
	fetchAttempts   = 2
	fetchRetryDelay = 500 * time.Millisecond
)

type Aggregator struct {
	config   *config.Config
	cache    *cache.Cache
	bot      *telegram.Bot
	aiClient *ai.Client
	sources  []models.NewsSource
	sched    *scheduler.Scheduler
	logger   zerolog.Logger

	server *http.Server

	mu         sync.RWMutex
	state      State
	refreshing bool
}

var _ telegram.Provider = (*Aggregator)(nil)

func New(cfg *config.Config, cacheLayer *cache.Cache, bot *telegram.Bot, logger zerolog.Logger) *Aggregator {
	var newsSources []models.NewsSource
	if cfg.NewsAPIKey != "" {
		newsSources = append(newsSources, sources.NewNewsAPIClient(cfg.NewsAPIKey, cfg.NewsAPIBaseURL, cfg.NewsAPICountry, cfg.RequestTimeout))
	}
	if len(cfg.Feeds) > 0 {
		newsSources = append(newsSources, sources.NewRSSSource(cfg.Feeds, cfg.FeedItemLimit, logger))
	}

	return &Aggregator{
		config:   cfg,
		cache:    cacheLayer,
		bot:      bot,
		aiClient: ai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.RequestTimeout, logger),
		sources:  newsSources,
		sched:    scheduler.NewScheduler(logger),
		logger:   logger,
		state:    State{Status: StatusIdle, Origin: OriginNone},
	}
}

// Run does an eager first refresh, then serves HTTP, the cron schedule, and
// the Telegram bot until ctx ends.
func (a *Aggregator) Run(ctx context.Context) error {
	refreshCtx, cancel := context.WithTimeout(ctx, a.config.RefreshTimeout)
	if err := a.Refresh(refreshCtx); err != nil {
		a.logger.Warn().Err(err).Msg("initial refresh failed")
	}
	cancel()

	if a.config.RefreshSchedule != "" {
		err := a.sched.AddTask("refresh", a.config.RefreshSchedule, func() {
			taskCtx, taskCancel := context.WithTimeout(context.Background(), a.config.RefreshTimeout)
			defer taskCancel()
			if err := a.Refresh(taskCtx); err != nil {
				a.logger.Error().Err(err).Msg("scheduled refresh failed")
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule refresh: %w", err)
		}
		a.sched.Start()
		defer a.sched.Stop()
	}

	if a.bot != nil {
		a.bot.Start(ctx, a)
	}

	a.startHTTPServer()

	<-ctx.Done()
	return a.shutdown()
}

// Refresh runs one fetch cycle: live sources, enrichment, normalization,
// dedupe, sort, with fallback handling when the live path yields nothing.
// Concurrent calls coalesce into the running cycle.
func (a *Aggregator) Refresh(ctx context.Context) (err error) {
	a.mu.Lock()
	if a.refreshing {
		a.mu.Unlock()
		return nil
	}
	a.refreshing = true
	prior := a.state
	a.state.Status = StatusLoading
	a.state.Err = ""
	a.state.Notice = ""
	a.mu.Unlock()

	started := time.Now()
	runID := uuid.NewString()
	log := a.logger.With().Str("refresh_id", runID).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("refresh panicked")
			metrics.Global.RecordRefreshFailure(refreshFailedMessage)
			// Prior articles stay visible; only the status and message change.
			a.setState(State{
				Status:      StatusError,
				Articles:    prior.Articles,
				Err:         refreshFailedMessage,
				Origin:      prior.Origin,
				LastRefresh: time.Now(),
				RefreshID:   runID,
			})
			err = errors.New(refreshFailedMessage)
		}
		a.mu.Lock()
		a.refreshing = false
		a.mu.Unlock()
	}()

	raws, liveErr := a.fetchLive(ctx, log)

	if ctx.Err() != nil {
		a.setState(prior)
		return ctx.Err()
	}

	if len(raws) == 0 {
		if models.IsQuotaError(liveErr) && len(prior.Articles) > 0 {
			retained := prior
			retained.Status = StatusSuccess
			retained.Err = ""
			retained.Notice = noticeQuotaRetained
			if models.IsPaymentRequired(liveErr) {
				retained.Notice = noticePaymentRetained
			}
			retained.LastRefresh = time.Now()
			retained.RefreshID = runID
			a.setState(retained)
			metrics.Global.RecordRefresh(time.Since(started), 0, 0)
			log.Warn().Msg("quota exhausted, retaining previous window")
			return nil
		}
		a.serveOffline(ctx, liveErr, runID, started, log)
		return nil
	}

	notice := ""
	if models.IsQuotaError(liveErr) {
		notice = noticeSourceQuota
		if models.IsPaymentRequired(liveErr) {
			notice = noticeSourcePayment
		}
	}

	articles, enrichNotice, duplicates := a.process(ctx, raws, log)
	if notice == "" {
		notice = enrichNotice
	}

	a.commit(ctx, State{
		Status:      StatusSuccess,
		Articles:    articles,
		Notice:      notice,
		Origin:      OriginLive,
		LastRefresh: time.Now(),
		RefreshID:   runID,
	}, len(raws), duplicates, started, log)
	return nil
}

// fetchLive fans out over the configured sources. The returned error is the
// most telling one: a quota signal wins over any other failure. A panic in a
// source goroutine is re-raised here so the caller's recover sees it.
func (a *Aggregator) fetchLive(ctx context.Context, log zerolog.Logger) ([]models.RawArticle, error) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		raws     []models.RawArticle
		errs     []error
		panicVal interface{}
	)

	for _, source := range a.sources {
		wg.Add(1)
		go func(src models.NewsSource) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					if panicVal == nil {
						panicVal = r
					}
					mu.Unlock()
				}
			}()

			var fetched []models.RawArticle
			err := retry.WithRetry(ctx, retry.Config{MaxAttempts: fetchAttempts, Delay: fetchRetryDelay, Backoff: true}, func() error {
				var fetchErr error
				fetched, fetchErr = src.FetchArticles(ctx, a.config.PageSize)
				return fetchErr
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("source", src.GetName()).Msg("source fetch failed")
				errs = append(errs, err)
				return
			}
			raws = append(raws, fetched...)
		}(source)
	}

	wg.Wait()

	if panicVal != nil {
		panic(panicVal)
	}

	var firstErr error
	for _, e := range errs {
		if models.IsQuotaError(e) {
			return raws, e
		}
		if firstErr == nil {
			firstErr = e
		}
	}
	return raws, firstErr
}

func (a *Aggregator) process(ctx context.Context, raws []models.RawArticle, log zerolog.Logger) ([]models.Article, string, int) {
	notice := ""
	enriched, err := a.aiClient.EnrichBatch(ctx, raws, a.config.EnrichLimit, a.config.EnrichConcurrency)
	if err != nil {
		log.Warn().Err(err).Msg("enrichment quota exhausted")
		notice = noticeEnrichQuota
	}

	articles := pipeline.NormalizeAll(enriched)
	before := len(articles)
	articles = pipeline.Dedupe(articles)
	duplicates := before - len(articles)

	return pipeline.SortByDate(articles, models.SortNewest), notice, duplicates
}

// serveOffline serves the fallback file, or a placeholder when even that is
// unavailable. Offline data skips enrichment; it is already stale.
func (a *Aggregator) serveOffline(ctx context.Context, liveErr error, runID string, started time.Time, log zerolog.Logger) {
	if liveErr != nil {
		log.Warn().Err(liveErr).Msg("live fetch yielded nothing, using offline data")
	}

	// An empty but readable fallback file stays an empty success; only a
	// load failure degrades to the placeholder.
	raws, err := sources.LoadFallback(a.config.FallbackPath)
	origin := OriginFallback
	notice := noticeFallback
	if err != nil {
		log.Warn().Err(err).Str("path", a.config.FallbackPath).Msg("fallback data unavailable")
		raws = []models.RawArticle{sources.PlaceholderArticle()}
		origin = OriginPlaceholder
		notice = noticePlaceholder
	}

	// A quota signal stays user-visible even with nothing to retain.
	if models.IsQuotaError(liveErr) {
		notice = noticeQuotaOffline
		if models.IsPaymentRequired(liveErr) {
			notice = noticePaymentOffline
		}
	}

	articles := pipeline.SortByDate(pipeline.Dedupe(pipeline.NormalizeAll(raws)), models.SortNewest)

	metrics.Global.IncrementFallbackServed()
	a.commit(ctx, State{
		Status:      StatusSuccess,
		Articles:    articles,
		Notice:      notice,
		Origin:      origin,
		LastRefresh: time.Now(),
		RefreshID:   runID,
	}, 0, 0, started, log)
}

func (a *Aggregator) commit(ctx context.Context, state State, fetched, duplicates int, started time.Time, log zerolog.Logger) {
	a.setState(state)
	a.cache.ReplaceAll(state.Articles)
	metrics.Global.RecordRefresh(time.Since(started), fetched, duplicates)

	if state.Origin == OriginLive {
		a.exportReport(state.Articles, state.LastRefresh, log)
		a.pushDigest(ctx, state.Articles, log)
	}

	log.Info().
		Int("articles", len(state.Articles)).
		Str("origin", string(state.Origin)).
		Dur("took", time.Since(started)).
		Msg("refresh complete")
}

func (a *Aggregator) exportReport(articles []models.Article, generatedAt time.Time, log zerolog.Logger) {
	if a.config.ReportPath == "" {
		return
	}
	if err := report.WriteMarkdown(a.config.ReportPath, articles, generatedAt); err != nil {
		log.Warn().Err(err).Str("path", a.config.ReportPath).Msg("report write failed")
	}
}

// pushDigest sends articles not pushed before to the digest chat and marks
// them, so restarts do not re-announce the same headlines within retention.
func (a *Aggregator) pushDigest(ctx context.Context, articles []models.Article, log zerolog.Logger) {
	if a.bot == nil {
		return
	}

	fresh := make([]models.Article, 0, len(articles))
	for _, article := range articles {
		if !a.cache.WasPushed(article.Key()) {
			fresh = append(fresh, article)
		}
	}
	if len(fresh) == 0 {
		return
	}

	if err := a.bot.SendDigest(ctx, fresh); err != nil {
		log.Warn().Err(err).Msg("digest push failed")
		return
	}
	for _, article := range fresh {
		a.cache.MarkPushed(article.Key())
	}
}

// Snapshot returns a copy of the current state.
func (a *Aggregator) Snapshot() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	state := a.state
	state.Articles = append([]models.Article(nil), a.state.Articles...)
	return state
}

// Articles returns the current window, optionally filtered by category and
// re-sorted. Category matching is case-insensitive.
func (a *Aggregator) Articles(category string, order models.SortOrder) []models.Article {
	snap := a.Snapshot()
	return pipeline.SortByDate(pipeline.FilterByCategory(snap.Articles, strings.ToLower(category)), order)
}

func (a *Aggregator) Topics() []models.TopicGroup {
	snap := a.Snapshot()
	return classify.GroupByTopic(snap.Articles)
}

// Stats reports the aggregator view plus cache and process counters.
func (a *Aggregator) Stats() map[string]interface{} {
	snap := a.Snapshot()
	return map[string]interface{}{
		"status":       snap.Status,
		"origin":       snap.Origin,
		"articles":     len(snap.Articles),
		"last_refresh": snap.LastRefresh,
		"cache":        a.cache.Stats(),
		"metrics":      metrics.Global.GetStats(),
	}
}

func (a *Aggregator) Chat(query string) chat.Response {
	metrics.Global.IncrementChatQueries()
	snap := a.Snapshot()
	return chat.Answer(snap.Articles, query)
}

func (a *Aggregator) setState(state State) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
}

func (a *Aggregator) shutdown() error {
	a.logger.Info().Msg("shutting down aggregator")

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}
	return nil
}
