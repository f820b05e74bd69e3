package aiclient

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/glowdesk/aiclient/cache"
)

// InsightsReport is the periodic performance digest for a salon.
type InsightsReport struct {
	SalonID     string    `json:"salon_id"`
	Period      string    `json:"period"`
	Summary     string    `json:"summary"`
	Highlights  []string  `json:"highlights"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Insights fetches the performance digest for a salon over a period
// ("day", "week", "month"). Responses are cached per salon and period.
func (c *Client) Insights(ctx context.Context, salonID, period string) (*InsightsReport, error) {
	var report InsightsReport
	err := c.do(ctx, http.MethodGet, "/v1/insights/"+salonID+"?period="+period, nil, &report, &CachePolicy{
		Key: cache.Key("insights", map[string]any{"salon_id": salonID, "period": period}),
		TTL: c.cfg.CacheTTL,
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ForecastPoint is one projected revenue data point.
type ForecastPoint struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
}

// RevenueForecast is the projected revenue curve for a salon.
type RevenueForecast struct {
	SalonID    string          `json:"salon_id"`
	Points     []ForecastPoint `json:"points"`
	Confidence float64         `json:"confidence"`
}

// Forecast fetches the revenue projection for the next horizonWeeks
// weeks. Forecasts move slowly, so they cache longer than insights.
func (c *Client) Forecast(ctx context.Context, salonID string, horizonWeeks int) (*RevenueForecast, error) {
	var forecast RevenueForecast
	err := c.do(ctx, http.MethodGet, "/v1/forecast/"+salonID, nil, &forecast, &CachePolicy{
		Key: cache.Key("forecast", map[string]any{"salon_id": salonID, "weeks": horizonWeeks}),
		TTL: 3 * c.cfg.CacheTTL,
	})
	if err != nil {
		return nil, err
	}
	return &forecast, nil
}

// ChurnAlert flags a client at risk of not coming back.
type ChurnAlert struct {
	ClientID        string  `json:"client_id"`
	ClientName      string  `json:"client_name"`
	RiskScore       float64 `json:"risk_score"`
	LastVisit       string  `json:"last_visit"`
	SuggestedAction string  `json:"suggested_action"`
}

// ChurnAlerts fetches the at-risk client list for a salon.
func (c *Client) ChurnAlerts(ctx context.Context, salonID string) ([]ChurnAlert, error) {
	var alerts []ChurnAlert
	err := c.do(ctx, http.MethodGet, "/v1/churn/"+salonID, nil, &alerts, &CachePolicy{
		Key: cache.Key("churn", map[string]any{"salon_id": salonID}),
		TTL: c.cfg.CacheTTL,
	})
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// SmartAction is a recommended operational move for the salon owner.
type SmartAction struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
}

// SmartActions fetches the current recommendations for a salon.
func (c *Client) SmartActions(ctx context.Context, salonID string) ([]SmartAction, error) {
	var actions []SmartAction
	err := c.do(ctx, http.MethodGet, "/v1/actions/"+salonID, nil, &actions, &CachePolicy{
		Key: cache.Key("actions", map[string]any{"salon_id": salonID}),
		TTL: c.cfg.CacheTTL,
	})
	if err != nil {
		return nil, err
	}
	return actions, nil
}

// CampaignRequest describes the marketing campaign to generate.
type CampaignRequest struct {
	SalonID  string `json:"salon_id"`
	Audience string `json:"audience"`
	Tone     string `json:"tone"`
	Channel  string `json:"channel"` // "sms" or "email"
}

// Campaign is a generated marketing message.
type Campaign struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Channel string `json:"channel"`
}

// GenerateCampaign asks the backend to draft a marketing campaign.
// Generation is not idempotent, so the result is never cached.
func (c *Client) GenerateCampaign(ctx context.Context, req CampaignRequest) (*Campaign, error) {
	var campaign Campaign
	if err := c.do(ctx, http.MethodPost, "/v1/campaigns", req, &campaign, nil); err != nil {
		return nil, err
	}
	return &campaign, nil
}

// InvalidateSalon drops every cached entry derived for the salon,
// across all endpoint families. Call it when the salon's underlying
// data (bookings, staff, services) changed and stale insights would
// mislead the dashboard.
func (c *Client) InvalidateSalon(salonID string) int {
	pattern := regexp.MustCompile(`:salon_id="` + regexp.QuoteMeta(salonID) + `"`)
	return c.cache.InvalidatePattern(context.Background(), pattern)
}
