package aggregator

import (
	"time"

	"github.com/briefwire/briefwire/internal/models"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Origin records where the current window came from.
type Origin string

const (
	OriginNone        Origin = "none"
	OriginLive        Origin = "live"
	OriginFallback    Origin = "fallback"
	OriginPlaceholder Origin = "placeholder"
)

// State is a point-in-time snapshot of the news window. Notice carries
// degradations worth surfacing (quota exhausted, offline data) while Status
// stays success; Err is set only when a refresh fails outright, and even then
// the prior window stays in Articles.
type State struct {
	Status      Status           `json:"status"`
	Articles    []models.Article `json:"articles"`
	Err         string           `json:"error,omitempty"`
	Notice      string           `json:"notice,omitempty"`
	Origin      Origin           `json:"origin"`
	LastRefresh time.Time        `json:"last_refresh"`
	RefreshID   string           `json:"refresh_id,omitempty"`
}
