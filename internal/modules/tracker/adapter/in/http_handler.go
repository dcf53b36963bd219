package in

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	trackerdto "focuslog/internal/modules/tracker/dto"
	trackerin "focuslog/internal/modules/tracker/port/in"
	apperrors "focuslog/internal/platform/errors"
)

const maxEventBody = 64 << 10

// HTTPHandler is the ingest facade for browser extensions and window watchers.
// Focus events are queued for the single consumer; reads go straight to the usecase.
type HTTPHandler struct {
	usecase        trackerin.Usecase
	events         chan<- trackerdto.Event
	allowedOrigins []string
	logger         *slog.Logger
	now            func() time.Time
}

func NewHTTPHandler(usecase trackerin.Usecase, events chan<- trackerdto.Event, allowedOrigins []string, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{usecase: usecase, events: events, allowedOrigins: allowedOrigins, logger: logger, now: time.Now}
}

func (h *HTTPHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/events/program", h.programEvent)
		r.Post("/events/tab", h.tabEvent)
		r.Post("/events/player", h.playerEvent)
		r.Post("/heartbeat", h.heartbeat)
		r.Get("/summaries", h.summaries)
		r.Get("/sessions", h.sessions)
		r.Get("/mysteries", h.mysteries)
		r.Get("/current", h.current)
	})
	return r
}

func (h *HTTPHandler) healthz(w http.ResponseWriter, r *http.Request) {
	current, err := h.usecase.Current(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "active": current.Active})
}

func (h *HTTPHandler) programEvent(w http.ResponseWriter, r *http.Request) {
	var event trackerdto.ProgramFocusEvent
	if !decode(w, r, &event) {
		return
	}
	h.enqueue(w, trackerdto.ProgramEvent(event))
}

func (h *HTTPHandler) tabEvent(w http.ResponseWriter, r *http.Request) {
	var event trackerdto.TabFocusEvent
	if !decode(w, r, &event) {
		return
	}
	h.enqueue(w, trackerdto.TabEvent(event))
}

func (h *HTTPHandler) playerEvent(w http.ResponseWriter, r *http.Request) {
	var event trackerdto.PlayerStateEvent
	if !decode(w, r, &event) {
		return
	}
	h.enqueue(w, trackerdto.PlayerEvent(event))
}

func (h *HTTPHandler) enqueue(w http.ResponseWriter, event trackerdto.Event) {
	if err := event.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	select {
	case h.events <- event:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	default:
		h.logger.Warn("event queue full", "kind", string(event.Kind))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event queue is full"})
	}
}

func (h *HTTPHandler) heartbeat(w http.ResponseWriter, r *http.Request) {
	var input trackerdto.HeartbeatInput
	if r.ContentLength != 0 {
		if !decode(w, r, &input) {
			return
		}
	}
	if input.Timestamp.IsZero() {
		input.Timestamp = h.now()
	}
	if err := h.usecase.RecordHeartbeat(r.Context(), input); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) summaries(w http.ResponseWriter, r *http.Request) {
	rows, err := h.usecase.DaySummaries(r.Context(), h.dayQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summaries": rows})
}

func (h *HTTPHandler) sessions(w http.ResponseWriter, r *http.Request) {
	rows, err := h.usecase.DayLogs(r.Context(), h.dayQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": rows})
}

func (h *HTTPHandler) mysteries(w http.ResponseWriter, r *http.Request) {
	rows, err := h.usecase.Mysteries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mysteries": rows})
}

func (h *HTTPHandler) current(w http.ResponseWriter, r *http.Request) {
	current, err := h.usecase.Current(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (h *HTTPHandler) dayQuery(r *http.Request) trackerdto.DayQuery {
	q := trackerdto.DayQuery{Family: r.URL.Query().Get("family"), Day: r.URL.Query().Get("day")}
	if q.Family == "" {
		q.Family = "program"
	}
	if q.Day == "" {
		q.Day = h.now().Format("2006-01-02")
	}
	return q
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, apperrors.ErrDatabaseUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
