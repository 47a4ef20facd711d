package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/briefwire/briefwire/internal/models"
)

type NewsAPIClient struct {
	apiKey  string
	baseURL string
	country string
	client  *http.Client
}

type newsAPIResponse struct {
	Status       string              `json:"status"`
	TotalResults int                 `json:"totalResults"`
	Code         string              `json:"code"`
	Message      string              `json:"message"`
	Articles     []models.RawArticle `json:"articles"`
}

func NewNewsAPIClient(apiKey, baseURL, country string, timeout time.Duration) *NewsAPIClient {
	if baseURL == "" {
		baseURL = "https://newsapi.org/v2"
	}
	if country == "" {
		country = "us"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NewsAPIClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		country: country,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *NewsAPIClient) FetchArticles(ctx context.Context, limit int) ([]models.RawArticle, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("newsapi: no API key configured")
	}

	endpoint := fmt.Sprintf("%s/top-headlines?country=%s&pageSize=%d&apiKey=%s",
		c.baseURL, url.QueryEscape(c.country), limit, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, &models.StatusError{Code: resp.StatusCode, Message: "newsapi rate limit exceeded"}
	case http.StatusPaymentRequired:
		return nil, &models.StatusError{Code: resp.StatusCode, Message: "newsapi plan upgrade required"}
	default:
		return nil, fmt.Errorf("newsapi returned status %d", resp.StatusCode)
	}

	var apiResp newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, err
	}
	if apiResp.Status != "ok" {
		return nil, fmt.Errorf("newsapi error: %s", apiResp.Status)
	}

	return apiResp.Articles, nil
}

func (c *NewsAPIClient) GetName() string {
	return "newsapi"
}
