package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/parley/internal/calendar"
	"github.com/nidhogg/parley/internal/negotiation"
	"github.com/nidhogg/parley/internal/notify"
	"github.com/nidhogg/parley/internal/profile"
	"github.com/nidhogg/parley/internal/scheduling"
	"github.com/nidhogg/parley/internal/store"
	"go.uber.org/zap"
)

// Persistence is the storage surface the handlers need. *store.Store
// implements it; tests substitute an in-memory fake.
type Persistence interface {
	ListBlocks(ctx context.Context, partyID string) ([]calendar.Block, error)
	AddCalendarBlock(ctx context.Context, b calendar.Block) (string, error)
	CreateMeeting(ctx context.Context, m calendar.Meeting) (string, error)
	ListMeetings(ctx context.Context) ([]calendar.Meeting, error)
	SetStatus(ctx context.Context, meetingID string, status calendar.MeetingStatus, finalTime time.Time) error
	CommitSchedule(ctx context.Context, meetingID, title string, start, end time.Time, participants []store.Participant) error
	SaveNegotiation(ctx context.Context, meetingID string, r *negotiation.Result) (string, error)
	GetNegotiation(ctx context.Context, id string) (*store.NegotiationRecord, error)
	ListNegotiations(ctx context.Context) ([]*store.NegotiationRecord, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	searcher    *scheduling.Searcher
	engine      *negotiation.Engine
	persistence Persistence
	parties     map[string]scheduling.Party
	order       []string // party iteration order, as configured
	horizonDays int
	events      *notify.EventStream
	fanout      *notify.Fanout
	logger      *zap.Logger
}

// NewHandler creates a new API handler. events may be nil when Redis is not
// configured; persistence may be nil when Postgres is not configured, in
// which case the write endpoints answer 503.
func NewHandler(
	searcher *scheduling.Searcher,
	engine *negotiation.Engine,
	persistence Persistence,
	parties []scheduling.Party,
	horizonDays int,
	events *notify.EventStream,
	fanout *notify.Fanout,
	logger *zap.Logger,
) *Handler {
	byID := make(map[string]scheduling.Party, len(parties))
	order := make([]string, 0, len(parties))
	for _, p := range parties {
		byID[p.ID] = p
		order = append(order, p.ID)
	}
	if fanout == nil {
		fanout = notify.NewFanout(logger)
	}
	return &Handler{
		searcher:    searcher,
		engine:      engine,
		persistence: persistence,
		parties:     byID,
		order:       order,
		horizonDays: horizonDays,
		events:      events,
		fanout:      fanout,
		logger:      logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/profiles", h.listProfiles)
		r.Get("/parties", h.listParties)

		r.Post("/negotiate", h.negotiate)
		r.Post("/schedule", h.schedule)
		r.Post("/negotiations", h.runNegotiation)
		r.Get("/negotiations", h.listNegotiations)
		r.Get("/negotiations/{negotiationID}", h.getNegotiation)

		r.Get("/meetings", h.listMeetings)
		r.Post("/meetings/{meetingID}/cancel", h.cancelMeeting)
		r.Get("/calendar/{partyID}", h.getCalendar)
		r.Post("/calendar/{partyID}/blocks", h.addBlock)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   "parley",
		"persisted": h.persistence != nil,
	})
}

func (h *Handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, profile.All())
}

func (h *Handler) listParties(w http.ResponseWriter, r *http.Request) {
	out := make([]scheduling.Party, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.parties[id])
	}
	writeJSON(w, http.StatusOK, out)
}

// meetingRequest is the wire shape for search and negotiation requests.
// Dates and times arrive as strings the way the original clients send them.
type meetingRequest struct {
	Title         string   `json:"title"`
	PreferredDate string   `json:"preferred_date"` // YYYY-MM-DD
	PreferredTime string   `json:"preferred_time"` // HH:MM
	DurationMin   int      `json:"duration_minutes"`
	Priority      int      `json:"priority,omitempty"`
	Participants  []string `json:"participants,omitempty"` // defaults to all configured parties
	InitiatorID   string   `json:"initiator_id,omitempty"` // defaults to first participant
}

// timeSlot is the wire shape for one ranked candidate.
type timeSlot struct {
	StartTime     string                            `json:"start_time"`
	EndTime       string                            `json:"end_time"`
	DurationMin   int                               `json:"duration_minutes"`
	QualityScore  int                               `json:"quality_score"`
	DayOfWeek     string                            `json:"day_of_week"`
	DateFormatted string                            `json:"date_formatted"`
	TimeFormatted string                            `json:"time_formatted"`
	Conflicts     map[string][]scheduling.Conflict  `json:"conflicts,omitempty"`
}

type searchResponse struct {
	Success      bool                  `json:"success"`
	Slots        []timeSlot            `json:"available_slots"`
	TotalFound   int                   `json:"total_slots_found"`
	SearchWindow map[string]string     `json:"search_window"`
	SelectedSlot *timeSlot             `json:"selected_slot,omitempty"`
	MeetingID    string                `json:"meeting_id,omitempty"`
	Message      string                `json:"message"`
	Timestamp    string                `json:"timestamp"`
}

func (h *Handler) negotiate(w http.ResponseWriter, r *http.Request) {
	intent, parties, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	slots, err := h.searcher.Search(r.Context(), intent, parties, h.horizonDays)
	if err != nil {
		h.writeSchedulingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Success:      true,
		Slots:        formatSlots(slots, intent.DurationMin),
		TotalFound:   len(slots),
		SearchWindow: h.window(intent.PreferredStart, h.horizonDays),
		Message:      fmt.Sprintf("Found %d available time slots", len(slots)),
		Timestamp:    time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	if h.persistence == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "persistence not configured"})
		return
	}
	intent, parties, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	slotIndex := 0
	if v := r.URL.Query().Get("slot_index"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &slotIndex); err != nil || slotIndex < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "slot_index must be a non-negative integer"})
			return
		}
	}

	slots, err := h.searcher.Search(r.Context(), intent, parties, h.horizonDays)
	if err != nil {
		h.writeSchedulingError(w, err)
		return
	}
	if len(slots) == 0 {
		writeJSON(w, http.StatusOK, searchResponse{
			Success:   false,
			Message:   "No available time slots found",
			Timestamp: time.Now().Format(time.RFC3339),
		})
		return
	}
	if slotIndex >= len(slots) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("invalid slot index, available slots: 0-%d", len(slots)-1),
		})
		return
	}

	selected := slots[slotIndex]
	meetingID, err := h.commit(r.Context(), intent, parties, selected.Start, selected.End)
	if err != nil {
		h.writeCommitError(w, err)
		return
	}

	formatted := formatSlots(slots, intent.DurationMin)
	writeJSON(w, http.StatusOK, searchResponse{
		Success:      true,
		Slots:        formatted,
		TotalFound:   len(slots),
		SearchWindow: h.window(intent.PreferredStart, h.horizonDays),
		SelectedSlot: &formatted[slotIndex],
		MeetingID:    meetingID,
		Message:      "Meeting scheduled successfully",
		Timestamp:    time.Now().Format(time.RFC3339),
	})
}

type negotiationResponse struct {
	Success    bool               `json:"success"`
	Outcome    string             `json:"outcome"`
	FinalStart string             `json:"final_start,omitempty"`
	FinalEnd   string             `json:"final_end,omitempty"`
	Rounds     int                `json:"rounds"`
	Reason     string             `json:"reason,omitempty"`
	MeetingID  string             `json:"meeting_id,omitempty"`
	Trace      []negotiation.Step `json:"trace"`
	Timestamp  string             `json:"timestamp"`
}

func (h *Handler) runNegotiation(w http.ResponseWriter, r *http.Request) {
	intent, parties, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	result, err := h.engine.Run(r.Context(), intent, parties)
	if err != nil {
		h.writeSchedulingError(w, err)
		return
	}

	resp := negotiationResponse{
		Success:   result.Agreed(),
		Outcome:   string(result.Outcome),
		Rounds:    result.Rounds,
		Reason:    result.Reason,
		Trace:     result.Trace,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if result.Agreed() {
		resp.FinalStart = result.FinalStart.Format(time.RFC3339)
		resp.FinalEnd = result.FinalEnd.Format(time.RFC3339)
		if h.persistence != nil {
			meetingID, err := h.commit(r.Context(), intent, parties, result.FinalStart, result.FinalEnd)
			if err != nil {
				h.writeCommitError(w, err)
				return
			}
			resp.MeetingID = meetingID
			if _, err := h.persistence.SaveNegotiation(r.Context(), meetingID, result); err != nil {
				h.logger.Warn("failed to save negotiation", zap.Error(err))
			}
		}
		names := make([]string, len(parties))
		for i, p := range parties {
			names[i] = p.Name
		}
		h.fanout.Announce(r.Context(), notify.MeetingScheduled(intent.Title, result.FinalStart, result.FinalEnd, names))
	} else {
		if h.persistence != nil {
			if _, err := h.persistence.SaveNegotiation(r.Context(), "", result); err != nil {
				h.logger.Warn("failed to save negotiation", zap.Error(err))
			}
		}
		h.fanout.Announce(r.Context(), notify.NegotiationEnded(intent.Title, string(result.Outcome), result.Reason, result.Rounds))
	}

	h.publishTrace(r.Context(), intent.Title, result)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listNegotiations(w http.ResponseWriter, r *http.Request) {
	if h.persistence == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "persistence not configured"})
		return
	}
	records, err := h.persistence.ListNegotiations(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) getNegotiation(w http.ResponseWriter, r *http.Request) {
	if h.persistence == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "persistence not configured"})
		return
	}
	rec, err := h.persistence.GetNegotiation(r.Context(), chi.URLParam(r, "negotiationID"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "negotiation not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) cancelMeeting(w http.ResponseWriter, r *http.Request) {
	if h.persistence == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "persistence not configured"})
		return
	}
	meetingID := chi.URLParam(r, "meetingID")
	if err := h.persistence.SetStatus(r.Context(), meetingID, calendar.MeetingCancelled, time.Time{}); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if h.events != nil {
		_ = h.events.Publish(r.Context(), &notify.Event{Type: "cancelled", MeetingID: meetingID})
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": meetingID, "status": string(calendar.MeetingCancelled)})
}

func (h *Handler) listMeetings(w http.ResponseWriter, r *http.Request) {
	if h.persistence == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "persistence not configured"})
		return
	}
	meetings, err := h.persistence.ListMeetings(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"meetings":       meetings,
		"total_meetings": len(meetings),
	})
}

func (h *Handler) getCalendar(w http.ResponseWriter, r *http.Request) {
	if h.persistence == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "persistence not configured"})
		return
	}
	partyID := chi.URLParam(r, "partyID")
	if _, ok := h.parties[partyID]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown party"})
		return
	}
	blocks, err := h.persistence.ListBlocks(r.Context(), partyID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"party_id":        partyID,
		"calendar_blocks": blocks,
		"total_blocks":    len(blocks),
	})
}

type blockRequest struct {
	Title    string `json:"title"`
	Start    string `json:"start_time"` // RFC3339
	End      string `json:"end_time"`
	Kind     string `json:"kind"`
	Priority int    `json:"priority"`
	Moveable bool   `json:"moveable"`
}

func (h *Handler) addBlock(w http.ResponseWriter, r *http.Request) {
	if h.persistence == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "persistence not configured"})
		return
	}
	partyID := chi.URLParam(r, "partyID")
	if _, ok := h.parties[partyID]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown party"})
		return
	}
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_time must be RFC3339"})
		return
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end_time must be RFC3339"})
		return
	}
	if !start.Before(end) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_time must be before end_time"})
		return
	}

	id, err := h.persistence.AddCalendarBlock(r.Context(), calendar.Block{
		PartyID:  partyID,
		Title:    req.Title,
		Start:    start,
		End:      end,
		Kind:     calendar.Kind(req.Kind),
		Priority: req.Priority,
		Moveable: req.Moveable,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "party_id": partyID})
}

// --- helpers ---

// parseRequest decodes and resolves a meeting request into a validated-shape
// intent and party list. Responds with a 400 and returns ok=false on any
// malformed input; semantic validation happens inside the core.
func (h *Handler) parseRequest(w http.ResponseWriter, r *http.Request) (scheduling.MeetingIntent, []scheduling.Party, bool) {
	var req meetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return scheduling.MeetingIntent{}, nil, false
	}

	preferred, err := time.ParseInLocation("2006-01-02 15:04", req.PreferredDate+" "+req.PreferredTime, time.Local)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "preferred_date must be YYYY-MM-DD and preferred_time HH:MM",
		})
		return scheduling.MeetingIntent{}, nil, false
	}

	ids := req.Participants
	if len(ids) == 0 {
		ids = h.order
	}
	parties := make([]scheduling.Party, 0, len(ids))
	for _, id := range ids {
		p, ok := h.parties[id]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown party %q", id)})
			return scheduling.MeetingIntent{}, nil, false
		}
		parties = append(parties, p)
	}

	initiator := req.InitiatorID
	if initiator == "" && len(parties) > 0 {
		initiator = parties[0].ID
	}
	priority := req.Priority
	if priority == 0 {
		priority = 7
	}

	intent := scheduling.MeetingIntent{
		Title:          req.Title,
		DurationMin:    req.DurationMin,
		PreferredStart: preferred,
		Priority:       priority,
		InitiatorID:    initiator,
		ParticipantIDs: ids,
	}
	return intent, parties, true
}

// commit persists the meeting and claims the slot for every participant.
func (h *Handler) commit(ctx context.Context, intent scheduling.MeetingIntent, parties []scheduling.Party, start, end time.Time) (string, error) {
	meetingID, err := h.persistence.CreateMeeting(ctx, calendar.Meeting{
		InitiatorID:    intent.InitiatorID,
		Title:          intent.Title,
		DurationMin:    intent.DurationMin,
		PreferredStart: intent.PreferredStart,
		PreferredEnd:   intent.End(),
		Priority:       intent.Priority,
	})
	if err != nil {
		return "", err
	}

	// CommitSchedule owns the participant writes so they land in the same
	// transaction as the slot claim.
	participants := make([]store.Participant, len(parties))
	for i, p := range parties {
		participants[i] = store.Participant{PartyID: p.ID, AgentRef: p.AgentRef}
	}
	if err := h.persistence.CommitSchedule(ctx, meetingID, intent.Title, start, end, participants); err != nil {
		return "", err
	}

	if h.events != nil {
		_ = h.events.Publish(ctx, &notify.Event{
			Type:      "scheduled",
			MeetingID: meetingID,
			Title:     intent.Title,
			SlotStart: start,
		})
	}
	return meetingID, nil
}

// publishTrace mirrors the negotiation trace onto the event stream.
func (h *Handler) publishTrace(ctx context.Context, title string, result *negotiation.Result) {
	if h.events == nil {
		return
	}
	for _, step := range result.Trace {
		_ = h.events.Publish(ctx, &notify.Event{
			Type:      "transition",
			Title:     title,
			Round:     step.Round,
			PartyID:   step.PartyID,
			Action:    string(step.Action),
			SlotStart: step.ProposedTime,
		})
	}
	_ = h.events.Publish(ctx, &notify.Event{
		Type:      "outcome",
		Title:     title,
		Outcome:   string(result.Outcome),
		Round:     result.Rounds,
		SlotStart: result.FinalStart,
	})
}

func (h *Handler) window(preferred time.Time, horizonDays int) map[string]string {
	horizon := time.Duration(horizonDays) * 24 * time.Hour
	return map[string]string{
		"start": preferred.Add(-horizon).Format(time.RFC3339),
		"end":   preferred.Add(horizon).Format(time.RFC3339),
	}
}

// writeSchedulingError maps core errors onto HTTP statuses: validation
// failures are the caller's fault, infrastructure failures are not — and
// neither is ever dressed up as an empty result.
func (h *Handler) writeSchedulingError(w http.ResponseWriter, err error) {
	var ve *scheduling.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": ve.Error(),
			"field": ve.Field,
		})
		return
	}
	if scheduling.IsInfra(err) {
		h.logger.Error("infrastructure failure", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": "infrastructure failure",
			"cause": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func (h *Handler) writeCommitError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrSlotTaken) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": store.ErrSlotTaken.Error()})
		return
	}
	h.logger.Error("commit failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func formatSlots(slots []scheduling.CandidateSlot, durationMin int) []timeSlot {
	out := make([]timeSlot, len(slots))
	for i, s := range slots {
		out[i] = timeSlot{
			StartTime:     s.Start.Format(time.RFC3339),
			EndTime:       s.End.Format(time.RFC3339),
			DurationMin:   durationMin,
			QualityScore:  s.Score,
			DayOfWeek:     s.Start.Format("Monday"),
			DateFormatted: s.Start.Format("2006-01-02"),
			TimeFormatted: s.Start.Format("15:04"),
			Conflicts:     s.Conflicts,
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
