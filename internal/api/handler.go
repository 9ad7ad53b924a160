package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MarcineQ18/apilo-notifier1/internal/apilo"
	"github.com/MarcineQ18/apilo-notifier1/internal/circuitbreaker"
	"github.com/MarcineQ18/apilo-notifier1/internal/db"
)

// TemplateStore defines the persistence operations the admin API needs.
type TemplateStore interface {
	ListEmailTemplates(ctx context.Context) ([]db.Template, error)
	GetEmailTemplate(ctx context.Context, id int64) (*db.Template, error)
	GetEmailTemplateByKey(ctx context.Context, key string) (*db.Template, error)
	UpsertEmailTemplate(ctx context.Context, tpl db.EmailTemplate) error
	DeleteEmailTemplate(ctx context.Context, id int64) error
	SetEmailTemplateSKUs(ctx context.Context, templateID int64, skus []string) error

	ListSMSTemplates(ctx context.Context) ([]db.Template, error)
	GetSMSTemplate(ctx context.Context, id int64) (*db.Template, error)
	GetSMSTemplateByKey(ctx context.Context, key string) (*db.Template, error)
	UpsertSMSTemplate(ctx context.Context, tpl db.SMSTemplate) error
	DeleteSMSTemplate(ctx context.Context, id int64) error
	SetSMSTemplateSKUs(ctx context.Context, templateID int64, skus []string) error

	StatusFromIDs(ctx context.Context, def []int) ([]int, error)
	SetStatusFromIDs(ctx context.Context, ids []int) error
	StatusToID(ctx context.Context, def int) (int, error)
	SetStatusToID(ctx context.Context, id int) error
}

// StatusMapClient fetches the order status catalog from the order service.
type StatusMapClient interface {
	GetStatusMap(ctx context.Context) ([]apilo.OrderData, error)
}

// TemplateRequest is the incoming body for template create/update.
// Subject and IsHTML are ignored for the SMS channel.
type TemplateRequest struct {
	TemplateKey string   `json:"template_key"`
	Name        string   `json:"name"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	IsHTML      bool     `json:"is_html"`
	Priority    *int     `json:"priority"`
	IsActive    *bool    `json:"is_active"`
	SKUs        []string `json:"skus"`
}

// StatusSettings is the status routing configuration body.
type StatusSettings struct {
	StatusFromIDs []int `json:"status_from_ids"`
	StatusToID    int   `json:"status_to_id"`
}

// ErrorResponse represents an error in problem+json format.
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler holds dependencies for the admin API handlers.
type Handler struct {
	logger   *zap.Logger
	store    TemplateStore
	orders   StatusMapClient // nil when the order API is not configured
	breakers []*circuitbreaker.CircuitBreaker
}

// NewHandler creates a new admin API handler. orders may be nil.
func NewHandler(logger *zap.Logger, store TemplateStore, orders StatusMapClient, breakers ...*circuitbreaker.CircuitBreaker) *Handler {
	return &Handler{
		logger:   logger,
		store:    store,
		orders:   orders,
		breakers: breakers,
	}
}

// ListEmailTemplates handles GET /api/templates/email
func (h *Handler) ListEmailTemplates(w http.ResponseWriter, r *http.Request) {
	tpls, err := h.store.ListEmailTemplates(r.Context())
	if err != nil {
		h.logger.Error("failed to list email templates", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list templates", "")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  tpls,
		"count": len(tpls),
	})
}

// GetEmailTemplate handles GET /api/templates/email/{id}
func (h *Handler) GetEmailTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}
	tpl, err := h.store.GetEmailTemplate(r.Context(), id)
	if err != nil {
		h.templateError(w, id, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tpl)
}

// UpsertEmailTemplate handles POST /api/templates/email. The template_key
// decides whether a row is created or updated.
func (h *Handler) UpsertEmailTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := h.decodeTemplate(w, r)
	if !ok {
		return
	}

	_, existsErr := h.store.GetEmailTemplateByKey(ctx, req.TemplateKey)
	created := errors.Is(existsErr, db.ErrTemplateNotFound)

	tpl := db.EmailTemplate{
		TemplateKey: req.TemplateKey,
		Name:        req.Name,
		Subject:     req.Subject,
		Body:        req.Body,
		IsHTML:      req.IsHTML,
		Priority:    valueOr(req.Priority, 100),
		IsActive:    valueOr(req.IsActive, true),
	}
	if err := h.store.UpsertEmailTemplate(ctx, tpl); err != nil {
		h.logger.Error("failed to upsert email template",
			zap.Error(err),
			zap.String("template_key", req.TemplateKey),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to save template", "")
		return
	}

	saved, err := h.store.GetEmailTemplateByKey(ctx, req.TemplateKey)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to load saved template", "")
		return
	}

	if req.SKUs != nil {
		if err := h.store.SetEmailTemplateSKUs(ctx, saved.ID, req.SKUs); err != nil {
			h.logger.Error("failed to set email template skus", zap.Error(err), zap.Int64("id", saved.ID))
			h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to save SKU list", "")
			return
		}
		saved, err = h.store.GetEmailTemplate(ctx, saved.ID)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to load saved template", "")
			return
		}
	}

	h.logger.Info("email template saved",
		zap.String("template_key", req.TemplateKey),
		zap.Int64("id", saved.ID),
		zap.Bool("created", created),
	)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, saved)
}

// DeleteEmailTemplate handles DELETE /api/templates/email/{id}
func (h *Handler) DeleteEmailTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteEmailTemplate(r.Context(), id); err != nil {
		h.templateError(w, id, err)
		return
	}
	h.logger.Info("email template deleted", zap.Int64("id", id))
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// SetEmailTemplateSKUs handles PUT /api/templates/email/{id}/skus
func (h *Handler) SetEmailTemplateSKUs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.templateID(w, r)
	if !ok {
		return
	}
	if _, err := h.store.GetEmailTemplate(ctx, id); err != nil {
		h.templateError(w, id, err)
		return
	}

	var req struct {
		SKUs []string `json:"skus"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if err := h.store.SetEmailTemplateSKUs(ctx, id, req.SKUs); err != nil {
		h.logger.Error("failed to set email template skus", zap.Error(err), zap.Int64("id", id))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to save SKU list", "")
		return
	}

	tpl, err := h.store.GetEmailTemplate(ctx, id)
	if err != nil {
		h.templateError(w, id, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tpl)
}

// ListSMSTemplates handles GET /api/templates/sms
func (h *Handler) ListSMSTemplates(w http.ResponseWriter, r *http.Request) {
	tpls, err := h.store.ListSMSTemplates(r.Context())
	if err != nil {
		h.logger.Error("failed to list sms templates", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list templates", "")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  tpls,
		"count": len(tpls),
	})
}

// GetSMSTemplate handles GET /api/templates/sms/{id}
func (h *Handler) GetSMSTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}
	tpl, err := h.store.GetSMSTemplate(r.Context(), id)
	if err != nil {
		h.templateError(w, id, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tpl)
}

// UpsertSMSTemplate handles POST /api/templates/sms
func (h *Handler) UpsertSMSTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := h.decodeTemplate(w, r)
	if !ok {
		return
	}

	_, existsErr := h.store.GetSMSTemplateByKey(ctx, req.TemplateKey)
	created := errors.Is(existsErr, db.ErrTemplateNotFound)

	tpl := db.SMSTemplate{
		TemplateKey: req.TemplateKey,
		Name:        req.Name,
		Body:        req.Body,
		Priority:    valueOr(req.Priority, 100),
		IsActive:    valueOr(req.IsActive, true),
	}
	if err := h.store.UpsertSMSTemplate(ctx, tpl); err != nil {
		h.logger.Error("failed to upsert sms template",
			zap.Error(err),
			zap.String("template_key", req.TemplateKey),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to save template", "")
		return
	}

	saved, err := h.store.GetSMSTemplateByKey(ctx, req.TemplateKey)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to load saved template", "")
		return
	}

	if req.SKUs != nil {
		if err := h.store.SetSMSTemplateSKUs(ctx, saved.ID, req.SKUs); err != nil {
			h.logger.Error("failed to set sms template skus", zap.Error(err), zap.Int64("id", saved.ID))
			h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to save SKU list", "")
			return
		}
		saved, err = h.store.GetSMSTemplate(ctx, saved.ID)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to load saved template", "")
			return
		}
	}

	h.logger.Info("sms template saved",
		zap.String("template_key", req.TemplateKey),
		zap.Int64("id", saved.ID),
		zap.Bool("created", created),
	)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, saved)
}

// DeleteSMSTemplate handles DELETE /api/templates/sms/{id}
func (h *Handler) DeleteSMSTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteSMSTemplate(r.Context(), id); err != nil {
		h.templateError(w, id, err)
		return
	}
	h.logger.Info("sms template deleted", zap.Int64("id", id))
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// SetSMSTemplateSKUs handles PUT /api/templates/sms/{id}/skus
func (h *Handler) SetSMSTemplateSKUs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.templateID(w, r)
	if !ok {
		return
	}
	if _, err := h.store.GetSMSTemplate(ctx, id); err != nil {
		h.templateError(w, id, err)
		return
	}

	var req struct {
		SKUs []string `json:"skus"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if err := h.store.SetSMSTemplateSKUs(ctx, id, req.SKUs); err != nil {
		h.logger.Error("failed to set sms template skus", zap.Error(err), zap.Int64("id", id))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to save SKU list", "")
		return
	}

	tpl, err := h.store.GetSMSTemplate(ctx, id)
	if err != nil {
		h.templateError(w, id, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tpl)
}

// GetStatusSettings handles GET /api/settings/statuses
func (h *Handler) GetStatusSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	fromIDs, err := h.store.StatusFromIDs(ctx, nil)
	if err != nil {
		h.logger.Error("failed to read status settings", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to read settings", "")
		return
	}
	toID, err := h.store.StatusToID(ctx, 0)
	if err != nil {
		h.logger.Error("failed to read status settings", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to read settings", "")
		return
	}
	if fromIDs == nil {
		fromIDs = []int{}
	}

	h.writeJSON(w, http.StatusOK, StatusSettings{
		StatusFromIDs: fromIDs,
		StatusToID:    toID,
	})
}

// UpdateStatusSettings handles PUT /api/settings/statuses. A status_to_id of
// zero disables status advancement.
func (h *Handler) UpdateStatusSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req StatusSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if len(req.StatusFromIDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing status_from_ids",
			"at least one source status id is required")
		return
	}
	for _, id := range req.StatusFromIDs {
		if id <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid status_from_ids",
				"status ids must be positive")
			return
		}
	}
	if req.StatusToID < 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid status_to_id",
			"status_to_id must be >= 0")
		return
	}

	if err := h.store.SetStatusFromIDs(ctx, req.StatusFromIDs); err != nil {
		h.logger.Error("failed to save status settings", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to save settings", "")
		return
	}
	if err := h.store.SetStatusToID(ctx, req.StatusToID); err != nil {
		h.logger.Error("failed to save status settings", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to save settings", "")
		return
	}

	h.logger.Info("status settings updated",
		zap.Ints("status_from_ids", req.StatusFromIDs),
		zap.Int("status_to_id", req.StatusToID),
	)
	h.writeJSON(w, http.StatusOK, req)
}

// GetStatusMap handles GET /api/status-map by proxying the order service
// status catalog.
func (h *Handler) GetStatusMap(w http.ResponseWriter, r *http.Request) {
	if h.orders == nil {
		h.writeError(w, http.StatusServiceUnavailable, "upstream_unavailable",
			"Order API not configured", "")
		return
	}

	statuses, err := h.orders.GetStatusMap(r.Context())
	if err != nil {
		h.logger.Error("failed to fetch status map", zap.Error(err))
		h.writeError(w, http.StatusBadGateway, "upstream_error", "Failed to fetch status map", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  statuses,
		"count": len(statuses),
	})
}

// ListBreakers handles GET /api/breakers
func (h *Handler) ListBreakers(w http.ResponseWriter, r *http.Request) {
	stats := make([]circuitbreaker.Stats, 0, len(h.breakers))
	for _, cb := range h.breakers {
		stats = append(stats, cb.Stats())
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  stats,
		"count": len(stats),
	})
}

// ResetBreaker handles POST /api/breakers/{name}/reset
func (h *Handler) ResetBreaker(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	for _, cb := range h.breakers {
		if cb.Stats().Name == name {
			cb.Reset()
			h.logger.Info("circuit breaker reset via admin api", zap.String("name", name))
			h.writeJSON(w, http.StatusOK, cb.Stats())
			return
		}
	}
	h.writeError(w, http.StatusNotFound, "not_found", "Circuit breaker not found", "")
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decodeTemplate(w http.ResponseWriter, r *http.Request) (TemplateRequest, bool) {
	var req TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return req, false
	}
	if req.TemplateKey == "" || req.Name == "" || req.Body == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields",
			"template_key, name, and body are required")
		return req, false
	}
	if req.Priority != nil && *req.Priority < 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid priority",
			"priority must be >= 0")
		return req, false
	}
	return req, true
}

func (h *Handler) templateID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid template ID",
			"ID must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) templateError(w http.ResponseWriter, id int64, err error) {
	if errors.Is(err, db.ErrTemplateNotFound) {
		h.writeError(w, http.StatusNotFound, "not_found", "Template not found", "")
		return
	}
	h.logger.Error("template operation failed", zap.Error(err), zap.Int64("id", id))
	h.writeError(w, http.StatusInternalServerError, "database_error", "Template operation failed", "")
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
