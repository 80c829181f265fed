package rest

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"mandate-reconciler/internal/domain"
	"mandate-reconciler/internal/repository"
)

type EventPublisher interface {
	Push(ctx context.Context, bodies ...string) error
	Len(ctx context.Context) (int64, error)
}

type AuditReader interface {
	ListRecent(ctx context.Context, limit int) ([]repository.ReconciliationRecord, error)
}

type Handler struct {
	queue EventPublisher
	audit AuditReader
}

func NewHandler(queue EventPublisher, audit AuditReader) *Handler {
	return &Handler{queue: queue, audit: audit}
}

func (h *Handler) InitRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(30*time.Second),
	)

	r.Get("/health", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", h.enqueueEvent)
		r.Get("/reconciliations", h.listReconciliations)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	depth, err := h.queue.Len(r.Context())
	if err != nil {
		ErrorInternal(w, "queue unreachable")
		return
	}
	Success(w, "ok", map[string]any{"queue_depth": depth})
}

// enqueueEvent accepts a raw mandate event and puts it on the notification
// feed. The body is pushed untouched so the dispatcher sees exactly what an
// external producer would have sent.
func (h *Handler) enqueueEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		ErrorBadRequest(w, "failed to read body")
		return
	}
	if len(body) == 0 {
		ErrorBadRequest(w, "empty body")
		return
	}

	var event domain.MandateEvent
	if err := json.Unmarshal(body, &event); err != nil {
		ErrorBadRequest(w, "body is not a valid mandate event")
		return
	}
	if event.EventType == "" && event.Type == "" {
		ErrorBadRequest(w, "event_type or type is required")
		return
	}

	if err := h.queue.Push(r.Context(), string(body)); err != nil {
		ErrorInternal(w, "failed to enqueue event")
		return
	}
	SuccessAccepted(w, "event enqueued", map[string]any{"event_type": event.EventType})
}

type reconciliationView struct {
	ID             string    `json:"id"`
	EventType      string    `json:"event_type"`
	ProposalRef    string    `json:"proposal_ref"`
	PaymentsPlanID string    `json:"payments_plan_id"`
	ScheduleID     int64     `json:"schedule_id"`
	InstalmentID   int64     `json:"instalment_id"`
	Outcome        string    `json:"outcome"`
	Detail         string    `json:"detail,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (h *Handler) listReconciliations(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			ErrorBadRequest(w, "invalid limit")
			return
		}
		limit = parsed
	}

	records, err := h.audit.ListRecent(r.Context(), limit)
	if err != nil {
		ErrorInternal(w, "failed to load reconciliations")
		return
	}

	views := make([]reconciliationView, 0, len(records))
	for _, rec := range records {
		views = append(views, reconciliationView{
			ID:             rec.ID,
			EventType:      rec.EventType,
			ProposalRef:    rec.ProposalRef,
			PaymentsPlanID: rec.PaymentsPlanID,
			ScheduleID:     rec.ScheduleID,
			InstalmentID:   rec.InstalmentID,
			Outcome:        rec.Outcome,
			Detail:         rec.Detail,
			CreatedAt:      rec.CreatedAt,
		})
	}
	Success(w, "reconciliations", views)
}
