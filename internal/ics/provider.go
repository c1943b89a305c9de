package ics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	appLog "timely/internal/log"
	"timely/internal/model"
	"timely/internal/slots"
)

// DefaultTTL is how long fetched calendars are reused before BusyIntervals
// triggers another fetch.
const DefaultTTL = 5 * time.Minute

// ProviderConfig wires a Provider.
type ProviderConfig struct {
	Sources  []Source
	CacheDir string
	Client   *http.Client
	// Location is the civil zone occurrences are normalized to.
	Location *time.Location
	TTL      time.Duration
	// Local, when set, contributes events confirmed by this service.
	Local *LocalCalendar
	// OnSourceError is called once per failing source per refresh.
	OnSourceError func(Source, error)

	MaxOccurrencesPerEvent int
}

// Provider turns the configured ICS subscriptions into busy time.
type Provider struct {
	cfg     ProviderConfig
	fetcher *Fetcher
	now     func() time.Time

	mu        sync.Mutex
	events    []ParsedEvent
	fetchedAt time.Time
	lastErr   error
}

// NewProvider builds a Provider. Nothing is fetched until the first Refresh
// or BusyIntervals call.
func NewProvider(cfg ProviderConfig) *Provider {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Provider{
		cfg:     cfg,
		fetcher: NewFetcher(cfg.CacheDir, cfg.Client),
		now:     time.Now,
	}
}

// Refresh re-fetches and re-parses every source.
//
// It fails with ErrAccessDenied when any source rejects us, and with
// ErrUnavailable when sources are configured but none produced a body. On
// failure the previously fetched events are left in place.
func (p *Provider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshLocked(ctx)
}

func (p *Provider) refreshLocked(ctx context.Context) error {
	results, errs := p.fetcher.FetchAll(ctx, p.cfg.Sources)
	if err := ctx.Err(); err != nil {
		return err
	}

	var denied error
	for _, err := range errs {
		var se *SourceError
		if errors.As(err, &se) {
			p.sourceFailed(se.Source, se.Err)
		}
		if denied == nil && errors.Is(err, ErrAccessDenied) {
			denied = err
		}
	}

	parsed := make([]ParsedEvent, 0)
	for _, res := range results {
		evs, err := ParseICS(res.Source, res.Body)
		if err != nil {
			p.sourceFailed(res.Source, err)
			continue
		}
		parsed = append(parsed, evs...)
	}

	switch {
	case denied != nil:
		p.lastErr = denied
		return denied
	case len(p.cfg.Sources) > 0 && len(results) == 0:
		p.lastErr = fmt.Errorf("%w: all %d sources failed", ErrUnavailable, len(p.cfg.Sources))
		return p.lastErr
	}

	p.events = parsed
	p.fetchedAt = p.now()
	p.lastErr = nil
	appLog.Info("calendar refresh completed", "sources", len(p.cfg.Sources), "events", len(parsed), "failed", len(errs))
	return nil
}

func (p *Provider) sourceFailed(src Source, err error) {
	if p.cfg.OnSourceError != nil {
		p.cfg.OnSourceError(src, err)
	}
}

// Occurrences returns every concrete occurrence overlapping rng, including
// the local calendar's, sorted by start. Cancelled and transparent
// occurrences are included; callers filter with Occurrence.Blocks.
func (p *Provider) Occurrences(ctx context.Context, rng slots.DateRange) ([]model.Occurrence, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.fetchedAt.IsZero() || p.now().Sub(p.fetchedAt) >= p.cfg.TTL {
		if err := p.refreshLocked(ctx); err != nil {
			p.mu.Unlock()
			return nil, err
		}
	}
	events := make([]ParsedEvent, len(p.events), len(p.events)+8)
	copy(events, p.events)
	p.mu.Unlock()

	if p.cfg.Local != nil {
		body, err := p.cfg.Local.Body()
		if err != nil {
			return nil, fmt.Errorf("local calendar: %w", err)
		}
		if len(body) > 0 {
			evs, err := ParseICS(p.cfg.Local.Source(), body)
			if err != nil {
				return nil, fmt.Errorf("local calendar: %w", err)
			}
			events = append(events, evs...)
		}
	}

	res, err := ExpandOccurrences(events, ExpandConfig{
		Location:               p.cfg.Location,
		RangeStart:             rng.Start,
		RangeEnd:               rng.End,
		MaxOccurrencesPerEvent: p.cfg.MaxOccurrencesPerEvent,
	})
	if err != nil {
		return nil, err
	}
	return res.Occurrences, nil
}

// BusyIntervals returns the blocking occurrences overlapping rng as busy
// intervals, sorted by start.
func (p *Provider) BusyIntervals(ctx context.Context, rng slots.DateRange) ([]slots.BusyInterval, error) {
	occs, err := p.Occurrences(ctx, rng)
	if err != nil {
		return nil, err
	}
	busy := make([]slots.BusyInterval, 0, len(occs))
	for _, o := range occs {
		if o.Blocks() {
			busy = append(busy, o.Busy())
		}
	}
	return busy, nil
}

// LastError is the error of the most recent refresh, nil after a success.
func (p *Provider) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}
