package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Evalutik/hardstop/internal/authgate"
	"github.com/Evalutik/hardstop/internal/engine"
	"github.com/Evalutik/hardstop/internal/instance"
	"github.com/Evalutik/hardstop/internal/storage"
)

type armRequest struct {
	// Exactly one of DurationMinutes or Target selects the deadline.
	DurationMinutes float64 `json:"duration_minutes,omitempty"`
	Target          string  `json:"target,omitempty"` // RFC 3339
	// Optional cancellation password; empty means any cancel succeeds.
	Password string `json:"password,omitempty"`
}

type cancelRequest struct {
	Password string `json:"password"`
}

type statusResponse struct {
	State            string  `json:"state"`
	Target           string  `json:"target,omitempty"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

type resultResponse struct {
	Result string `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type eventResponse struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type eventsResponse struct {
	Events []eventResponse `json:"events"`
}

// HandleArm seeds the cancellation credential and arms the deadline.
// A rejected arm must leave the active timer's credential untouched, so
// the armed check comes before the store is written: only a request that
// can still win is allowed to seed. If arming then fails anyway, the
// seeded credential is wiped so a stale secret cannot outlive a failed
// arm; ErrAlreadyArmed is the exception (the live credential belongs to
// the other timer).
func (h *Handler) HandleArm(w http.ResponseWriter, r *http.Request) {
	var req armRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	target, err := resolveTarget(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.armMu.Lock()
	defer h.armMu.Unlock()

	if h.engine.State() == engine.StateArmed {
		writeError(w, http.StatusConflict, "another timer is already armed")
		return
	}

	if err := h.store.Seed(req.Password); err != nil {
		// Includes protection failures: never arm with weakened protection.
		h.logger.Error("credential setup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "credential setup failed")
		return
	}

	if err := h.engine.Arm(target, req.Password != ""); err != nil {
		if !errors.Is(err, instance.ErrAlreadyArmed) {
			if wipeErr := h.store.Wipe(); wipeErr != nil {
				h.logger.Warn("failed to wipe credential after failed arm", "error", wipeErr)
			}
		}
		switch {
		case errors.Is(err, instance.ErrAlreadyArmed):
			writeError(w, http.StatusConflict, "another timer is already armed")
		case errors.Is(err, engine.ErrPastDeadline):
			writeError(w, http.StatusBadRequest, "target time must be in the future")
		case errors.Is(err, engine.ErrAlreadyFired):
			writeError(w, http.StatusGone, "shutdown already fired")
		default:
			h.logger.Error("arm failed", "error", err)
			writeError(w, http.StatusInternalServerError, "arm failed")
		}
		return
	}

	h.metrics.RecordArmed(target)
	writeJSON(w, http.StatusOK, h.statusNow())
}

// HandleCancel validates the candidate secret and reports the outcome.
// The three rejection shapes are deliberately distinct: denied (403),
// nothing to cancel (409), already fired (410).
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := h.gate.Cancel(req.Password)
	switch {
	case err == nil:
		h.metrics.RecordCancelAttempt("accepted")
		h.metrics.RecordDisarmed()
		writeJSON(w, http.StatusOK, resultResponse{Result: "cancelled"})
	case errors.Is(err, authgate.ErrAuthDenied):
		h.metrics.RecordCancelAttempt("denied")
		h.appendEvent(r, storage.Event{Kind: "cancel_denied"})
		writeJSON(w, http.StatusForbidden, resultResponse{Result: "denied"})
	case errors.Is(err, engine.ErrAlreadyFired):
		h.metrics.RecordCancelAttempt("already_fired")
		writeJSON(w, http.StatusGone, resultResponse{Result: "already_fired"})
	case errors.Is(err, engine.ErrNotArmed):
		h.metrics.RecordCancelAttempt("not_armed")
		writeJSON(w, http.StatusConflict, resultResponse{Result: "nothing_to_cancel"})
	default:
		h.logger.Error("cancel failed", "error", err)
		writeError(w, http.StatusInternalServerError, "cancel failed")
	}
}

// HandleStatus reports the current timer state and remaining time.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.statusNow())
}

// HandleEvents returns the most recent audit-trail entries.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	events, err := h.audit.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	resp := eventsResponse{Events: make([]eventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, eventResponse{
			ID:        e.ID,
			Kind:      e.Kind,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleUninstall removes all persisted state. Refused while a timer is
// armed: uninstalling is not a bypass.
func (h *Handler) HandleUninstall(w http.ResponseWriter, r *http.Request) {
	if h.engine.State() == engine.StateArmed {
		writeError(w, http.StatusConflict, "a timer is armed; cancel it first")
		return
	}

	if err := h.store.Wipe(); err != nil {
		h.logger.Error("failed to wipe credential", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove credential")
		return
	}
	if err := h.dfile.Clear(); err != nil {
		h.logger.Error("failed to clear deadline record", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove deadline record")
		return
	}
	if err := h.audit.Purge(r.Context()); err != nil {
		h.logger.Error("failed to purge audit trail", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to purge audit trail")
		return
	}

	writeJSON(w, http.StatusOK, resultResponse{Result: "uninstalled"})
}

func (h *Handler) statusNow() statusResponse {
	st := h.engine.Status()
	resp := statusResponse{
		State:            st.State.String(),
		RemainingSeconds: st.Remaining.Seconds(),
	}
	if !st.Target.IsZero() {
		resp.Target = st.Target.Format(time.RFC3339)
	}
	return resp
}

func (h *Handler) appendEvent(r *http.Request, e storage.Event) {
	if err := h.audit.Append(r.Context(), e.Kind, e.Detail); err != nil {
		h.logger.Warn("failed to append audit event", "kind", e.Kind, "error", err)
	}
}

func resolveTarget(req armRequest) (time.Time, error) {
	switch {
	case req.Target != "" && req.DurationMinutes != 0:
		return time.Time{}, errors.New("specify either target or duration_minutes, not both")
	case req.Target != "":
		t, err := time.Parse(time.RFC3339, req.Target)
		if err != nil {
			return time.Time{}, errors.New("target must be RFC 3339")
		}
		return t, nil
	case req.DurationMinutes > 0:
		return time.Now().Add(time.Duration(req.DurationMinutes * float64(time.Minute))), nil
	default:
		return time.Time{}, errors.New("duration_minutes must be positive")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
