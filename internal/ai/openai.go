package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"

	"github.com/briefwire/briefwire/internal/metrics"
	"github.com/briefwire/briefwire/internal/models"
)

const (
	DefaultLimit       = 15
	DefaultConcurrency = 5
)

const systemPrompt = `You are a news assistant. For each article you receive, reply with one JSON object of the form {"summary": "...", "category": "..."}. The summary is one or two plain sentences. The category must be exactly one of: tech, sports, politics, business, entertainment. Reply with JSON only.`

var allowedCategories = map[string]struct{}{
	"tech":          {},
	"sports":        {},
	"politics":      {},
	"business":      {},
	"entertainment": {},
}

type Enrichment struct {
	Summary  string `json:"summary"`
	Category string `json:"category"`
}

type Client struct {
	client      openai.Client
	model       string
	callTimeout time.Duration
	logger      zerolog.Logger
	enabled     bool
}

func NewClient(apiKey, model string, callTimeout time.Duration, logger zerolog.Logger, opts ...option.RequestOption) *Client {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		client:      openai.NewClient(clientOpts...),
		model:       model,
		callTimeout: callTimeout,
		logger:      logger,
		enabled:     apiKey != "",
	}
}

func (c *Client) Enabled() bool {
	return c.enabled
}

// EnrichBatch annotates up to limit records with a model-written summary and
// category. Records are isolated from each other: a failed call leaves its
// record untouched for the non-AI path. The returned error is at most a quota
// signal; enrichment never fails a batch.
func (c *Client) EnrichBatch(ctx context.Context, raws []models.RawArticle, limit, concurrency int) ([]models.RawArticle, error) {
	if !c.enabled || len(raws) == 0 {
		return raws, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	n := len(raws)
	if n > limit {
		n = limit
	}

	out := make([]models.RawArticle, len(raws))
	copy(out, raws)

	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, concurrency)
		mu       sync.Mutex
		quotaErr error
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					metrics.Global.IncrementEnrichFailures()
					c.logger.Error().Interface("panic", r).Str("title", out[i].Title).Msg("enrichment panicked")
				}
			}()
			sem <- struct{}{}
			defer func() { <-sem }()

			body := out[i].Description
			if body == "" {
				body = out[i].Content
			}

			enr, err := c.Enrich(ctx, out[i].Title, body)
			if err != nil {
				metrics.Global.IncrementEnrichFailures()
				c.logger.Warn().Err(err).Str("title", out[i].Title).Msg("enrichment failed")
				if models.IsQuotaError(err) {
					mu.Lock()
					if quotaErr == nil {
						quotaErr = err
					}
					mu.Unlock()
				}
				return
			}

			metrics.Global.IncrementEnriched()
			if enr.Summary != "" {
				out[i].Summary = enr.Summary
			}
			if cat := strings.ToLower(strings.TrimSpace(enr.Category)); isAllowedCategory(cat) {
				out[i].Category = cat
			}
		}(i)
	}

	wg.Wait()
	return out, quotaErr
}

// Enrich asks the model for a summary and category of a single article.
func (c *Client) Enrich(ctx context.Context, title, body string) (Enrichment, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var sb strings.Builder
	sb.WriteString("Title: ")
	sb.WriteString(title)
	sb.WriteString("\nDescription: ")
	sb.WriteString(body)

	response, err := c.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(sb.String()),
		},
		Temperature: openai.Float(0.1),
		MaxTokens:   openai.Int(300),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == 429 || apiErr.StatusCode == 402) {
			return Enrichment{}, &models.StatusError{Code: apiErr.StatusCode, Message: "openai quota exhausted"}
		}
		return Enrichment{}, fmt.Errorf("openai request failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return Enrichment{}, fmt.Errorf("no response from openai")
	}

	payload := ExtractJSON(response.Choices[0].Message.Content)

	var enr Enrichment
	if err := json.Unmarshal([]byte(payload), &enr); err != nil {
		return Enrichment{}, fmt.Errorf("failed to parse openai response: %w", err)
	}
	return enr, nil
}

// ExtractJSON pulls the first JSON object out of a model reply, tolerating
// markdown code fences and surrounding prose.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)

	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		rest = strings.TrimPrefix(rest, "JSON")
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		s = strings.TrimSpace(rest)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func isAllowedCategory(category string) bool {
	_, ok := allowedCategories[category]
	return ok
}
