// Package catalog loads activity templates from an Airtable-style records
// endpoint, falling back to the built-in list.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	appLog "timely/internal/log"
	"timely/internal/model"
	"timely/internal/slots"
)

// ErrBadResponse is returned by Fetch for non-2xx answers.
var ErrBadResponse = errors.New("catalog: unexpected response")

type recordsResponse struct {
	Records []record `json:"records"`
}

type record struct {
	ID     string `json:"id"`
	Fields fields `json:"fields"`
}

type fields struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Category          string   `json:"category"`
	EstimatedDuration int      `json:"estimatedDuration"`
	SuggestedTimes    []string `json:"suggestedTimes"`
	Location          string   `json:"location"`
	Emoji             string   `json:"emoji"`
}

// Client fetches the activity catalog.
type Client struct {
	url    string
	apiKey string
	http   *http.Client

	mu       sync.Mutex
	lastGood []model.Activity
}

// New returns a Client for url. An empty url serves the built-in catalog.
func New(url, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:    strings.TrimSpace(url),
		apiKey: apiKey,
		http:   &http.Client{Timeout: timeout},
	}
}

// Activities returns the remote catalog. When no URL is configured, or the
// fetch fails, it returns the last good remote result or the built-in
// activities; fetch failures are logged, never returned.
func (c *Client) Activities(ctx context.Context) ([]model.Activity, error) {
	if c.url == "" {
		return model.DefaultActivities(), nil
	}

	acts, err := c.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.mu.Lock()
		cached := c.lastGood
		c.mu.Unlock()
		if cached != nil {
			appLog.Warn("catalog fetch failed; serving last good catalog", "reason", err.Error())
			return append([]model.Activity(nil), cached...), nil
		}
		appLog.Warn("catalog fetch failed; serving built-in activities", "reason", err.Error())
		return model.DefaultActivities(), nil
	}

	c.mu.Lock()
	c.lastGood = append([]model.Activity(nil), acts...)
	c.mu.Unlock()
	return acts, nil
}

// Fetch performs a single request and decodes the records.
func (c *Client) Fetch(ctx context.Context) ([]model.Activity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s", ErrBadResponse, resp.Status)
	}

	var body recordsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}

	out := make([]model.Activity, 0, len(body.Records))
	for _, r := range body.Records {
		if r.ID == "" || strings.TrimSpace(r.Fields.Title) == "" {
			continue
		}
		out = append(out, toActivity(r))
	}
	appLog.Debug("catalog fetched", "records", len(body.Records), "activities", len(out))
	return out, nil
}

func toActivity(r record) model.Activity {
	cat, ok := model.ParseCategory(r.Fields.Category)
	if !ok {
		appLog.Warn("unknown activity category; using other", "id", r.ID, "category", r.Fields.Category)
	}
	dur := r.Fields.EstimatedDuration
	if dur <= 0 {
		dur = slots.DefaultDurationMinutes
	}
	emoji := r.Fields.Emoji
	if emoji == "" {
		emoji = cat.Emoji()
	}
	return model.Activity{
		ID:              r.ID,
		Title:           strings.TrimSpace(r.Fields.Title),
		Description:     r.Fields.Description,
		Category:        cat,
		DurationMinutes: dur,
		SuggestedTimes:  r.Fields.SuggestedTimes,
		Location:        r.Fields.Location,
		Emoji:           emoji,
	}
}
