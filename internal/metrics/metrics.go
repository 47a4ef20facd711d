package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	RefreshCount      int64
	RefreshFailures   int64
	ArticlesFetched   int64
	ArticlesEnriched  int64
	EnrichFailures    int64
	DuplicatesRemoved int64
	FallbackServed    int64
	ChatQueries       int64

	LastRefreshDuration  time.Duration
	TotalRefreshDuration time.Duration
	AvgRefreshDuration   time.Duration

	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string

	healthy   bool
	startTime time.Time
}

var Global = &Metrics{healthy: true, startTime: time.Now()}

func (m *Metrics) RecordRefresh(duration time.Duration, fetched, duplicates int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RefreshCount++
	m.ArticlesFetched += int64(fetched)
	m.DuplicatesRemoved += int64(duplicates)
	m.LastRefreshDuration = duration
	m.TotalRefreshDuration += duration
	m.AvgRefreshDuration = m.TotalRefreshDuration / time.Duration(m.RefreshCount)
	m.LastRunTime = time.Now()
	m.healthy = true
}

func (m *Metrics) RecordRefreshFailure(errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RefreshFailures++
	m.LastError = errMsg
	m.LastErrorTime = time.Now()
	m.healthy = false
}

func (m *Metrics) IncrementEnriched() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesEnriched++
}

func (m *Metrics) IncrementEnrichFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnrichFailures++
}

func (m *Metrics) IncrementFallbackServed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FallbackServed++
}

func (m *Metrics) IncrementChatQueries() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatQueries++
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"refresh_count":         m.RefreshCount,
		"refresh_failures":      m.RefreshFailures,
		"articles_fetched":      m.ArticlesFetched,
		"articles_enriched":     m.ArticlesEnriched,
		"enrich_failures":       m.EnrichFailures,
		"duplicates_removed":    m.DuplicatesRemoved,
		"fallback_served":       m.FallbackServed,
		"chat_queries":          m.ChatQueries,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"avg_refresh_duration":  m.AvgRefreshDuration.String(),
		"last_run_time":         m.LastRunTime,
		"last_error":            m.LastError,
		"last_error_time":       m.LastErrorTime,
		"is_healthy":            m.healthy,
		"uptime":                time.Since(m.startTime).String(),
	}
}
