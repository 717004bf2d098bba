// Package handler wires notification endpoints to the dispatcher.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"healthfinance/internal/notification/models"
	id "healthfinance/pkg/domain"
	dErrors "healthfinance/pkg/domain-errors"
	"healthfinance/pkg/platform/httputil"
	"healthfinance/pkg/requestcontext"
)

// Service is the dispatcher surface the transport needs.
type Service interface {
	Create(ctx context.Context, req models.Request) (*models.Notification, error)
	CreateBulk(ctx context.Context, req models.BulkRequest) ([]*models.Notification, error)
	Get(ctx context.Context, nid id.NotificationID) (*models.Notification, error)
	ListByStatus(ctx context.Context, status models.Status) ([]*models.Notification, error)
	ListByRecipient(ctx context.Context, recipientID string) ([]*models.Notification, error)
	Resend(ctx context.Context, nid id.NotificationID) (*models.Notification, error)
	Delete(ctx context.Context, nid id.NotificationID) error

	CreateTemplate(ctx context.Context, req models.TemplateRequest) (*models.Template, error)
	GetTemplate(ctx context.Context, name string) (*models.Template, error)
	ListTemplates(ctx context.Context) ([]*models.Template, error)
}

// Handler exposes the notification dispatch engine over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a notification handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts notification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/notifications", h.handleCreate)
	r.Post("/notifications/bulk", h.handleCreateBulk)
	r.Get("/notifications", h.handleListByStatus)
	r.Get("/notifications/{id}", h.handleGet)
	r.Post("/notifications/{id}/resend", h.handleResend)
	r.Delete("/notifications/{id}", h.handleDelete)
	r.Get("/patients/{id}/notifications", h.handleListByRecipient)

	r.Post("/notification-templates", h.handleCreateTemplate)
	r.Get("/notification-templates", h.handleListTemplates)
	r.Get("/notification-templates/{name}", h.handleGetTemplate)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[models.Request](w, r, h.logger)
	if !ok {
		return
	}

	n, err := h.service.Create(ctx, req)
	if err != nil {
		h.logError(ctx, "notification create failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, n)
}

func (h *Handler) handleCreateBulk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[models.BulkRequest](w, r, h.logger)
	if !ok {
		return
	}

	list, err := h.service.CreateBulk(ctx, req)
	if err != nil {
		h.logError(ctx, "bulk notification create failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, list)
}

func (h *Handler) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[models.TemplateRequest](w, r, h.logger)
	if !ok {
		return
	}

	tpl, err := h.service.CreateTemplate(ctx, req)
	if err != nil {
		h.logError(ctx, "template create failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, tpl)
}

func (h *Handler) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tpl, err := h.service.GetTemplate(ctx, chi.URLParam(r, "name"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tpl)
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := h.service.ListTemplates(ctx)
	if err != nil {
		h.logError(ctx, "template list failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := h.service.Get(ctx, id.NotificationID(chi.URLParam(r, "id")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, n)
}

func (h *Handler) handleListByStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := models.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = models.StatusPending
	}

	list, err := h.service.ListByStatus(ctx, status)
	if err != nil {
		h.logError(ctx, "notification list failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) handleListByRecipient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := h.service.ListByRecipient(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.logError(ctx, "notification list failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) handleResend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := h.service.Resend(ctx, id.NotificationID(chi.URLParam(r, "id")))
	if err != nil {
		h.logError(ctx, "notification resend failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, n)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.service.Delete(ctx, id.NotificationID(chi.URLParam(r, "id"))); err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if h.logger == nil {
		return
	}
	if dErrors.CodeOf(err) == dErrors.CodeNotFound {
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
