// Package web exposes the planner, the preference store and the calendar
// over a small JSON API.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"timely/internal/config"
	"timely/internal/ics"
	appLog "timely/internal/log"
	"timely/internal/metrics"
	"timely/internal/model"
	"timely/internal/planner"
	"timely/internal/slots"
	"timely/internal/store"
)

// maxDays bounds the days query parameter.
const maxDays = 62

// Calendar is what the API reads busy time from.
type Calendar interface {
	Occurrences(ctx context.Context, rng slots.DateRange) ([]model.Occurrence, error)
}

// Deps are the collaborators a Server serves. Metrics and Local are
// optional.
type Deps struct {
	Config   *config.Config
	Planner  *planner.Planner
	Calendar Calendar
	Local    *ics.LocalCalendar
	Store    store.Store
	Metrics  *metrics.Metrics
}

// Server provides the HTTP API.
type Server struct {
	deps Deps
	loc  *time.Location
	mux  *http.ServeMux

	// Short-lived cache for /api/busy, keyed by the requested range, so a
	// UI polling the endpoint does not re-expand calendars every time.
	busyMu    sync.RWMutex
	busyCache map[busyKey]busyCacheEntry
}

type busyKey struct {
	start time.Time
	days  int
	all   bool
}

type busyCacheEntry struct {
	resp      busyResponse
	updatedAt time.Time
}

const busyCacheTTL = 30 * time.Second

// NewServer constructs a new Server.
func NewServer(deps Deps) *Server {
	s := &Server{
		deps:      deps,
		loc:       deps.Config.Location(),
		mux:       http.NewServeMux(),
		busyCache: make(map[busyKey]busyCacheEntry),
	}
	s.registerRoutes()
	return s
}

// Handler returns the router wrapped in metrics and, when configured,
// basic auth.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.deps.Config.Listen)
		h = s.basicAuthMiddleware(h)
	}
	if s.deps.Metrics != nil {
		h = s.deps.Metrics.Middleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. Empty
// credentials count as disabled.
func (s *Server) basicAuthEnabled() bool {
	ba := s.deps.Config.BasicAuth
	return ba != nil && ba.Username != "" && ba.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.deps.Config.BasicAuth.Username
	password := s.deps.Config.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Timely", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.deps.Metrics != nil {
		s.mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}

	s.mux.HandleFunc("GET /api/activities", s.handleListActivities)
	s.mux.HandleFunc("POST /api/activities", s.handleCreateActivity)

	s.mux.HandleFunc("GET /api/busy", s.handleBusy)
	s.mux.HandleFunc("GET /api/slots", s.handleSlots)
	s.mux.HandleFunc("POST /api/slots/custom", s.handleCustomSlot)

	s.mux.HandleFunc("GET /api/selection", s.handleGetSelection)
	s.mux.HandleFunc("POST /api/selection", s.handleSelectSlot)
	s.mux.HandleFunc("DELETE /api/selection", s.handleClearSelection)
	s.mux.HandleFunc("GET /api/updates", s.handleUpdates)

	s.mux.HandleFunc("POST /api/events", s.handleConfirm)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)

	s.mux.HandleFunc("GET /api/preferences", s.handleGetPreferences)
	s.mux.HandleFunc("PUT /api/preferences", s.handlePutPreferences)
	s.mux.HandleFunc("POST /api/reset", s.handleReset)

	s.mux.HandleFunc("GET /api/groups", s.handleListGroups)
	s.mux.HandleFunc("POST /api/groups", s.handleCreateGroup)
	s.mux.HandleFunc("DELETE /api/groups/{id}", s.handleDeleteGroup)

	s.mux.HandleFunc("GET /calendar.ics", s.handleCalendarFile)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, slots.ErrInvalidRange),
		errors.Is(err, slots.ErrInvalidDuration),
		errors.Is(err, slots.ErrInvalidTime),
		errors.Is(err, store.ErrInvalid),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ics.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, planner.ErrUnknownActivity),
		errors.Is(err, planner.ErrUnknownSlot),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, planner.ErrSlotUnavailable),
		errors.Is(err, planner.ErrNoSelection),
		errors.Is(err, planner.ErrSessionChanged):
		return http.StatusConflict
	case errors.Is(err, ics.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail logs server-side failures and writes the error body.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		appLog.Error("api request failed", err, "method", r.Method, "path", r.URL.Path, "status", status)
	} else {
		appLog.Debug("api request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "reason", err.Error())
	}
	writeError(w, status, err.Error())
}

var errBadRequest = errors.New("bad request")

// decodeJSON reads a JSON body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// rangeFromQuery reads ?date=YYYY-MM-DD&days=N, defaulting to today and the
// configured horizon.
func (s *Server) rangeFromQuery(r *http.Request) (slots.DateRange, int, error) {
	q := r.URL.Query()

	day := time.Now().In(s.loc)
	if v := q.Get("date"); v != "" {
		d, err := slots.ParseCivilDate(v)
		if err != nil {
			return slots.DateRange{}, 0, err
		}
		day = d.In(s.loc)
	}

	days, err := parseIntDefault(q.Get("days"), s.deps.Config.HorizonDays)
	if err != nil {
		return slots.DateRange{}, 0, fmt.Errorf("%w: days: %v", errBadRequest, err)
	}
	if days <= 0 || days > maxDays {
		return slots.DateRange{}, 0, fmt.Errorf("%w: days must be between 1 and %d", errBadRequest, maxDays)
	}
	return slots.DaysFrom(day, days), days, nil
}

// parseIntDefault returns def for an empty string and an error for
// anything that is not an integer.
func parseIntDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
