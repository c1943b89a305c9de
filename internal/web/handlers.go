package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	appLog "timely/internal/log"
	"timely/internal/model"
	"timely/internal/planner"
	"timely/internal/slots"
)

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	acts, err := s.deps.Planner.Activities(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acts)
}

func (s *Server) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}

	cat, _ := model.ParseCategory(req.Category)
	act := model.Activity{
		ID:              uuid.NewString(),
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		Category:        cat,
		DurationMinutes: req.DurationMinutes,
		SuggestedTimes:  req.SuggestedTimes,
		Location:        req.Location,
		Emoji:           req.Emoji,
		Custom:          true,
	}
	if act.Emoji == "" {
		act.Emoji = cat.Emoji()
	}
	if act.DurationMinutes == 0 {
		act.DurationMinutes = slots.DefaultDurationMinutes
	}

	if err := s.deps.Store.SaveCustomActivity(r.Context(), act); err != nil {
		fail(w, r, err)
		return
	}
	appLog.Info("custom activity created", "id", act.ID, "title", act.Title)
	writeJSON(w, http.StatusCreated, act)
}

// handleBusy lists blocking calendar occurrences for
// GET /api/busy?date=YYYY-MM-DD&days=N. all=1 adds the free ones too.
func (s *Server) handleBusy(w http.ResponseWriter, r *http.Request) {
	rng, days, err := s.rangeFromQuery(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	all := r.URL.Query().Get("all") == "1"
	key := busyKey{start: rng.Start, days: days, all: all}
	s.busyMu.RLock()
	entry, ok := s.busyCache[key]
	s.busyMu.RUnlock()
	if ok && time.Since(entry.updatedAt) < busyCacheTTL {
		writeJSON(w, http.StatusOK, entry.resp)
		return
	}

	occs, err := s.deps.Calendar.Occurrences(r.Context(), rng)
	if err != nil {
		fail(w, r, err)
		return
	}

	resp := busyResponse{
		RangeStart: rng.Start,
		RangeEnd:   rng.End,
		Timezone:   s.loc.String(),
		Busy:       make([]busyDTO, 0, len(occs)),
	}
	for _, o := range occs {
		if !all && !o.Blocks() {
			continue
		}
		resp.Busy = append(resp.Busy, busyDTO{
			SourceID: o.SourceID,
			Summary:  o.Summary,
			AllDay:   o.AllDay,
			Start:    o.Start,
			End:      o.End,
			Free:     !o.Blocks(),
		})
	}

	s.busyMu.Lock()
	for k, e := range s.busyCache {
		if time.Since(e.updatedAt) >= busyCacheTTL {
			delete(s.busyCache, k)
		}
	}
	s.busyCache[key] = busyCacheEntry{resp: resp, updatedAt: time.Now()}
	s.busyMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// invalidateBusy drops cached busy responses after a new event is written.
func (s *Server) invalidateBusy() {
	s.busyMu.Lock()
	clear(s.busyCache)
	s.busyMu.Unlock()
}

// handleSlots proposes slots for
// GET /api/slots?date=YYYY-MM-DD&days=N&activity=ID&only_available=1.
func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	rng, _, err := s.rangeFromQuery(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	ctx := r.Context()
	if id := r.URL.Query().Get("activity"); id != "" {
		snap := s.deps.Planner.Snapshot()
		if snap.Activity == nil || snap.Activity.ID != id {
			if _, err := s.deps.Planner.SelectActivity(ctx, id); err != nil {
				fail(w, r, err)
				return
			}
		}
	}

	prop, err := s.deps.Planner.Propose(ctx, rng)
	if err != nil {
		fail(w, r, err)
		return
	}
	onlyAvailable := r.URL.Query().Get("only_available") == "1"
	writeJSON(w, http.StatusOK, toProposalResponse(prop, onlyAvailable))
}

func (s *Server) handleCustomSlot(w http.ResponseWriter, r *http.Request) {
	var req customSlotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}

	date, err := slots.ParseCivilDate(req.Date)
	if err != nil {
		fail(w, r, err)
		return
	}
	start, err := slots.ParseCivilTime(req.Time)
	if err != nil {
		fail(w, r, err)
		return
	}

	var minutes int
	if req.DurationMinutes != nil {
		minutes = *req.DurationMinutes
	} else if snap := s.deps.Planner.Snapshot(); snap.Activity != nil && snap.Activity.DurationMinutes > 0 {
		minutes = snap.Activity.DurationMinutes
	} else {
		prefs, err := s.deps.Store.Preferences(r.Context())
		if err != nil {
			fail(w, r, err)
			return
		}
		minutes = prefs.DefaultDuration
	}

	slot, err := s.deps.Planner.CustomSlot(date, start, minutes)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotDTO(slot))
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSelectionResponse(s.deps.Planner.Snapshot()))
}

func (s *Server) handleSelectSlot(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if _, err := s.deps.Planner.SelectSlot(req.SlotID); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSelectionResponse(s.deps.Planner.Snapshot()))
}

// handleClearSelection resets the session. ?keep_proposal=1 only drops the
// selected slot.
func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("keep_proposal") == "1" {
		s.deps.Planner.ClearSelection()
	} else {
		s.deps.Planner.Reset()
	}
	writeJSON(w, http.StatusOK, toSelectionResponse(s.deps.Planner.Snapshot()))
}

// handleUpdates streams session changes as server-sent events.
func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	updates, cancel := s.deps.Planner.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			payload := toSelectionResponse(u.Snapshot)
			payload.ConfirmedEvent = u.Event
			data, err := json.Marshal(payload)
			if err != nil {
				appLog.Error("failed to encode update", err, "kind", string(u.Kind))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", u.Kind, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	ctx := r.Context()

	attendees := make([]model.Attendee, 0, len(req.Attendees))
	for _, a := range req.Attendees {
		attendees = append(attendees, model.Attendee{ID: uuid.NewString(), Name: a.Name, Email: a.Email})
	}
	if req.GroupID != "" {
		groups, err := s.deps.Store.Groups(ctx)
		if err != nil {
			fail(w, r, err)
			return
		}
		found := false
		for _, g := range groups {
			if g.ID == req.GroupID {
				attendees = append(attendees, g.Attendees()...)
				found = true
				break
			}
		}
		if !found {
			writeError(w, http.StatusNotFound, "unknown group "+req.GroupID)
			return
		}
	}

	ev, err := s.deps.Planner.Confirm(ctx, planner.ConfirmRequest{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Attendees:   attendees,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	s.invalidateBusy()
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := s.deps.Store.History(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.deps.Store.Preferences(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs model.Preferences
	if err := decodeJSON(w, r, &prefs); err != nil {
		fail(w, r, err)
		return
	}
	if err := s.deps.Store.SavePreferences(r.Context(), prefs); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// handleReset clears everything the store holds and ends the planning
// session. Events already written to the local calendar are kept.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.Reset(r.Context()); err != nil {
		fail(w, r, err)
		return
	}
	s.deps.Planner.Reset()
	appLog.Info("user data reset")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.deps.Store.Groups(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupDTOs(groups))
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}

	now := time.Now()
	color := model.GroupColor(strings.ToLower(req.Color))
	if color == "" {
		color = model.GroupBlue
	}
	g := model.Group{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Color:       color,
		CreatedAt:   now,
		IsActive:    true,
		Members:     make([]model.GroupMember, 0, len(req.Members)),
	}
	for _, m := range req.Members {
		g.Members = append(g.Members, model.GroupMember{
			ID:          uuid.NewString(),
			Name:        m.Name,
			Email:       m.Email,
			PhoneNumber: m.PhoneNumber,
			IsAdmin:     m.IsAdmin,
			JoinedAt:    now,
		})
	}

	if err := s.deps.Store.SaveGroup(r.Context(), g); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, groupDTO{Group: g, ColorHex: g.Color.Hex()})
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.DeleteGroup(r.Context(), r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCalendarFile serves the local calendar so it can be subscribed to.
func (s *Server) handleCalendarFile(w http.ResponseWriter, r *http.Request) {
	if s.deps.Local == nil {
		http.NotFound(w, r)
		return
	}
	body, err := s.deps.Local.Body()
	if err != nil {
		fail(w, r, err)
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusNotFound, "no events confirmed yet")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
