package sources

import (
	"context"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/briefwire/briefwire/internal/config"
	"github.com/briefwire/briefwire/internal/models"
	"github.com/briefwire/briefwire/internal/summary"
)

// RSSSource fans out over the configured feeds. A dead feed logs a warning
// and contributes nothing; it never fails the batch.
type RSSSource struct {
	feeds        []config.Feed
	perFeedLimit int
	logger       zerolog.Logger
}

func NewRSSSource(feeds []config.Feed, perFeedLimit int, logger zerolog.Logger) *RSSSource {
	if perFeedLimit <= 0 {
		perFeedLimit = 10
	}
	return &RSSSource{
		feeds:        feeds,
		perFeedLimit: perFeedLimit,
		logger:       logger,
	}
}

func (s *RSSSource) FetchArticles(ctx context.Context, limit int) ([]models.RawArticle, error) {
	if len(s.feeds) == 0 {
		return nil, nil
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		all []models.RawArticle
	)

	for _, feed := range s.feeds {
		wg.Add(1)
		go func(feed config.Feed) {
			defer wg.Done()

			items, err := s.fetchFeed(ctx, feed)
			if err != nil {
				s.logger.Warn().Err(err).Str("feed", feed.Name).Str("url", feed.URL).Msg("feed fetch failed")
				return
			}

			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
		}(feed)
	}

	wg.Wait()

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *RSSSource) fetchFeed(ctx context.Context, feed config.Feed) ([]models.RawArticle, error) {
	// gofeed.Parser is not safe for concurrent use; one per fetch.
	parsed, err := gofeed.NewParser().ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, err
	}

	name := feed.Name
	if name == "" {
		name = parsed.Title
	}

	items := parsed.Items
	if len(items) > s.perFeedLimit {
		items = items[:s.perFeedLimit]
	}

	raws := make([]models.RawArticle, 0, len(items))
	for _, item := range items {
		pub := item.Published
		if pub == "" {
			pub = item.Updated
		}
		if pub == "" && item.PublishedParsed != nil {
			pub = item.PublishedParsed.Format(time.RFC3339)
		}

		raw := models.RawArticle{
			Title:       item.Title,
			Description: summary.StripHTML(item.Description),
			Link:        item.Link,
			PubDate:     pub,
			Source:      models.Source{Name: name},
			Category:    feed.Category,
		}
		if item.Content != "" {
			raw.Content = summary.StripHTML(item.Content)
		}
		if item.Image != nil {
			raw.Image = item.Image.URL
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

func (s *RSSSource) GetName() string {
	return "rss"
}
