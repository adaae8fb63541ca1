package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mailcast/mailcast/internal/db"
	"github.com/mailcast/mailcast/internal/dispatch"
	"github.com/mailcast/mailcast/internal/metrics"
	"github.com/mailcast/mailcast/internal/redis"
)

// MessageStore defines the message content operations the API needs
type MessageStore interface {
	CreateMessage(ctx context.Context, m *db.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*db.Message, error)
	ListMessages(ctx context.Context, scope db.Scope, limit, offset int) ([]*db.Message, error)
	UpdateMessage(ctx context.Context, m *db.Message, scope db.Scope) error
	DeleteMessage(ctx context.Context, id uuid.UUID, scope db.Scope) error
}

// RecipientStore defines the recipient directory operations the API needs
type RecipientStore interface {
	CreateRecipient(ctx context.Context, r *db.Recipient) error
	GetRecipient(ctx context.Context, id uuid.UUID) (*db.Recipient, error)
	ListRecipients(ctx context.Context, scope db.Scope, limit, offset int) ([]*db.Recipient, error)
	UpdateRecipient(ctx context.Context, r *db.Recipient, scope db.Scope) error
	DeleteRecipient(ctx context.Context, id uuid.UUID, scope db.Scope) error
	CountRecipients(ctx context.Context) (int, error)
}

// CampaignStore defines the campaign operations the API needs
type CampaignStore interface {
	CreateCampaign(ctx context.Context, c *db.Campaign, recipientIDs []uuid.UUID) error
	GetCampaign(ctx context.Context, id uuid.UUID) (*db.Campaign, error)
	ListCampaigns(ctx context.Context, scope db.Scope, limit, offset int) ([]*db.Campaign, error)
	DeleteCampaign(ctx context.Context, id uuid.UUID, scope db.Scope) error
	ActivateCampaign(ctx context.Context, id uuid.UUID) (*db.Campaign, error)
	CompleteCampaign(ctx context.Context, id uuid.UUID) (*db.Campaign, error)
	CountCampaigns(ctx context.Context) (total, active int, err error)
}

// AttemptStore exposes the attempt history read
type AttemptStore interface {
	ListForCampaign(ctx context.Context, campaignID uuid.UUID) ([]*db.Attempt, error)
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger     *zap.Logger
	messages   MessageStore
	recipients RecipientStore
	campaigns  CampaignStore
	attempts   AttemptStore
	cache      *redis.Cache // nil if Redis not configured
}

// NewHandler creates a new API handler
func NewHandler(logger *zap.Logger, messages MessageStore, recipients RecipientStore, campaigns CampaignStore, attempts AttemptStore) *Handler {
	return &Handler{
		logger:     logger,
		messages:   messages,
		recipients: recipients,
		campaigns:  campaigns,
		attempts:   attempts,
	}
}

// NewHandlerWithCache creates a handler whose stats endpoint reads through
// the cache-aside layer.
func NewHandlerWithCache(logger *zap.Logger, messages MessageStore, recipients RecipientStore, campaigns CampaignStore, attempts AttemptStore, cache *redis.Cache) *Handler {
	h := NewHandler(logger, messages, recipients, campaigns, attempts)
	h.cache = cache
	return h
}

// Cache entity kinds for stats invalidation
const (
	cacheKindCampaignStats  = "campaign_stats"
	cacheKindRecipientStats = "recipient_stats"
)

// scopeFromRequest builds the capability scope from the actor headers.
// Authentication happens upstream; the boundary receives a verified identity.
func scopeFromRequest(r *http.Request) (db.Scope, error) {
	actor := r.Header.Get("X-Actor-ID")
	if actor == "" {
		return db.Scope{}, errors.New("missing X-Actor-ID header")
	}
	actorID, err := uuid.Parse(actor)
	if err != nil {
		return db.Scope{}, errors.New("invalid X-Actor-ID header")
	}
	return db.Scope{
		ActorID: actorID,
		Admin:   r.Header.Get("X-Actor-Role") == "admin",
	}, nil
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
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

// writeStoreError maps repository sentinels onto HTTP statuses.
func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", "Not Found", err.Error())
	case errors.Is(err, db.ErrDuplicateCampaign),
		errors.Is(err, db.ErrDuplicateEmail):
		h.writeError(w, http.StatusConflict, "duplicate", "Conflict", err.Error())
	case errors.Is(err, db.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, "invalid_transition", "Conflict", err.Error())
	default:
		h.logger.Error("store operation failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal", "Internal Server Error", "")
	}
}

func idParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// --- Messages ---

// MessageRequest represents incoming message content
type MessageRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// CreateMessage handles POST /v1/messages
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Bad Request", err.Error())
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if req.Title == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "title is required")
		return
	}

	m := &db.Message{
		ID:      uuid.New(),
		Title:   req.Title,
		Body:    req.Body,
		OwnerID: scope.ActorID,
	}
	if err := h.messages.CreateMessage(r.Context(), m); err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, m)
}

// GetMessage handles GET /v1/messages/{id}
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Bad Request", err.Error())
		return
	}
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid message ID", "")
		return
	}

	m, err := h.messages.GetMessage(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if !scope.CanAccess(m.OwnerID) {
		h.writeError(w, http.StatusNotFound, "not_found", "Not Found", "")
		return
	}

	h.writeJSON(w, http.StatusOK, m)
}

// ListMessages handles GET /v1/messages
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Bad Request", err.Error())
		return
	}
	limit, offset := pagination(r)

	messages, err := h.messages.ListMessages(r.Context(), scope, limit, offset)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if messages == nil {
		messages = []*db.Message{}
	}

	h.writeJSON(w, http.StatusOK, messages)
}

// UpdateMessage handles PUT /v1/messages/{id}
func (h *Handler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Bad Request", err.Error())
		return
	}
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid message ID", "")
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if req.Title == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "title is required")
		return
	}

	m := &db.Message{ID: id, Title: req.Title, Body: req.Body}
	if err := h.messages.UpdateMessage(r.Context(), m, scope); err != nil {
		h.writeStoreError(w, err)
		return
	}

	updated, err := h.messages.GetMessage(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// DeleteMessage handles DELETE /v1/messages/{id}
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Bad Request", err.Error())
		return
	}
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid message ID", "")
		return
	}

	if err := h.messages.DeleteMessage(r.Context(), id, scope); err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.invalidateStats(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// --- Recipients ---

// RecipientRequest represents an incoming recipient
type RecipientRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Comment string `json:"comment"`
}

// CreateRecipient handles POST /v1/recipients
func (h *Handler) CreateRecipient(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Bad Request", err.Error())
		return
	}

	var req RecipientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if req.Name == "" || req.Email == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "name and email are required")
		return
	}

	rec := &db.Recipient{
		ID:      uuid.New(),
		Name:    req.Name,
		Email:   req.Email,
		Comment: req.Comment,
		OwnerID: scope.ActorID,
	}
	if err := h.recipients.CreateRecipient(r.Context(), rec); err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.invalidateStats(r.Context())
	h.writeJSON(w, http.StatusCreated, rec)
}

// GetRecipient handles GET /v1/recipients/{id}
func (h *Handler) GetRecipient(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Bad Request", err.Error())
		return
	}
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid recipient ID", "")
		return
	}

	rec, err := h.recipients.GetRecipient(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if !scope.CanAccess(rec.OwnerID) {
		h.writeError(w, http.StatusNotFound, "not_found", "Not Found", "")
		return
	}

	h.writeJSON(w, http.StatusOK, rec)
}

// ListRecipients handles GET /v1/recipients
func (h *Handler) ListRecipients(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Bad Request", err.Error())
		return
	}
	limit, offset := pagination(r)

	recipients, err := h.recipients.ListRecipients(r.Context(), scope, limit, offset)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if recipients == nil {
		recipients = []*db.Recipient{}
	}

	h.writeJSON(w, http.StatusOK, recipients)
}

// UpdateRecipient handles PUT /v1/recipients/{id}
func (h *Handler) UpdateRecipient(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Bad Request", err.Error())
		return
	}
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid recipient ID", "")
		return
	}

	var req RecipientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if req.Name == "" || req.Email == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "name and email are required")
		return
	}

	rec := &db.Recipient{ID: id, Name: req.Name, Email: req.Email, Comment: req.Comment}
	if err := h.recipients.UpdateRecipient(r.Context(), rec, scope); err != nil {
		h.writeStoreError(w, err)
		return
	}

	updated, err := h.recipients.GetRecipient(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// DeleteRecipient handles DELETE /v1/recipients/{id}
func (h *Handler) DeleteRecipient(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Bad Request", err.Error())
		return
	}
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid recipient ID", "")
		return
	}

	if err := h.recipients.DeleteRecipient(r.Context(), id, scope); err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.invalidateStats(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// --- Campaigns ---

// CampaignRequest represents an incoming campaign
type CampaignRequest struct {
	MessageID    string    `json:"message_id"`
	RecipientIDs []string  `json:"recipient_ids"`
	Recurrence   string    `json:"recurrence"`
	FirstFireAt  time.Time `json:"first_fire_at"`
}

// CreateCampaign handles POST /v1/campaigns.
// A message may back at most one campaign; a duplicate returns 409.
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Bad Request", err.Error())
		return
	}

	var req CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	messageID, err := uuid.Parse(req.MessageID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid message_id", "")
		return
	}
	if !dispatch.ValidRecurrence(req.Recurrence) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid recurrence", "recurrence must be daily, weekly, or monthly")
		return
	}
	if req.FirstFireAt.IsZero() {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "first_fire_at is required")
		return
	}
	if req.FirstFireAt.Before(time.Now()) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid first_fire_at", "first_fire_at must not be in the past")
		return
	}
	if len(req.RecipientIDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "at least one recipient is required")
		return
	}

	recipientIDs := make([]uuid.UUID, 0, len(req.RecipientIDs))
	for _, raw := range req.RecipientIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid recipient ID", raw)
			return
		}
		recipientIDs = append(recipientIDs, id)
	}

	// The referenced message must exist and be visible to the actor.
	m, err := h.messages.GetMessage(r.Context(), messageID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if !scope.CanAccess(m.OwnerID) {
		h.writeError(w, http.StatusNotFound, "not_found", "Not Found", "")
		return
	}

	c := &db.Campaign{
		ID:          uuid.New(),
		MessageID:   messageID,
		Recurrence:  req.Recurrence,
		Status:      db.StatusCreated,
		FirstFireAt: req.FirstFireAt,
		OwnerID:     scope.ActorID,
	}
	if err := h.campaigns.CreateCampaign(r.Context(), c, recipientIDs); err != nil {
		h.writeStoreError(w, err)
		return
	}

	metrics.RecordCampaignCreated()
	h.invalidateStats(r.Context())
	h.writeJSON(w, http.StatusCreated, c)
}

// GetCampaign handles GET /v1/campaigns/{id}
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Bad Request", err.Error())
		return
	}
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid campaign ID", "")
		return
	}

	c, err := h.campaigns.GetCampaign(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if !scope.CanAccess(c.OwnerID) {
		h.writeError(w, http.StatusNotFound, "not_found", "Not Found", "")
		return
	}

	h.writeJSON(w, http.StatusOK, c)
}

// ListCampaigns handles GET /v1/campaigns
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Bad Request", err.Error())
		return
	}
	limit, offset := pagination(r)

	campaigns, err := h.campaigns.ListCampaigns(r.Context(), scope, limit, offset)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if campaigns == nil {
		campaigns = []*db.Campaign{}
	}

	h.writeJSON(w, http.StatusOK, campaigns)
}

// DeleteCampaign handles DELETE /v1/campaigns/{id}. Attempt history cascades.
func (h *Handler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Bad Request", err.Error())
		return
	}
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid campaign ID", "")
		return
	}

	if err := h.campaigns.DeleteCampaign(r.Context(), id, scope); err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.invalidateStats(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// ActivateCampaign handles POST /v1/campaigns/{id}/activate.
// Only a created campaign can be activated; activation seeds the schedule
// from first_fire_at.
func (h *Handler) ActivateCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaigns.ActivateCampaign)
}

// CompleteCampaign handles POST /v1/campaigns/{id}/complete.
// Completed is terminal; the dispatcher never considers the campaign again.
func (h *Handler) CompleteCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaigns.CompleteCampaign)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, uuid.UUID) (*db.Campaign, error)) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Bad Request", err.Error())
		return
	}
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid campaign ID", "")
		return
	}

	c, err := h.campaigns.GetCampaign(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if !scope.CanAccess(c.OwnerID) {
		h.writeError(w, http.StatusNotFound, "not_found", "Not Found", "")
		return
	}

	updated, err := apply(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.invalidateStats(r.Context())
	h.writeJSON(w, http.StatusOK, updated)
}

// --- Attempts ---

// NumberedAttempt pairs an attempt with its 1-based position in the
// campaign's history.
type NumberedAttempt struct {
	Number  int         `json:"number"`
	Attempt *db.Attempt `json:"attempt"`
}

// ListAttempts handles GET /v1/campaigns/{id}/attempts. Attempts come back
// in creation order, numbered 1..N.
func (h *Handler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Bad Request", err.Error())
		return
	}
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid campaign ID", "")
		return
	}

	c, err := h.campaigns.GetCampaign(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if !scope.CanAccess(c.OwnerID) {
		h.writeError(w, http.StatusNotFound, "not_found", "Not Found", "")
		return
	}

	attempts, err := h.attempts.ListForCampaign(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	numbered := make([]NumberedAttempt, len(attempts))
	for i, a := range attempts {
		numbered[i] = NumberedAttempt{Number: i + 1, Attempt: a}
	}

	h.writeJSON(w, http.StatusOK, numbered)
}

// --- Stats ---

// Stats summarizes the system for the dashboard view.
type Stats struct {
	TotalCampaigns  int `json:"total_campaigns"`
	ActiveCampaigns int `json:"active_campaigns"`
	TotalRecipients int `json:"total_recipients"`
}

// GetStats handles GET /v1/stats, reading through the cache-aside layer
// when Redis is configured.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	compute := func(ctx context.Context) (Stats, error) {
		total, active, err := h.campaigns.CountCampaigns(ctx)
		if err != nil {
			return Stats{}, err
		}
		recipients, err := h.recipients.CountRecipients(ctx)
		if err != nil {
			return Stats{}, err
		}
		return Stats{
			TotalCampaigns:  total,
			ActiveCampaigns: active,
			TotalRecipients: recipients,
		}, nil
	}

	var stats Stats
	var err error
	if h.cache != nil {
		stats, err = redis.GetOrCompute(r.Context(), h.cache, cacheKindCampaignStats, compute)
	} else {
		stats, err = compute(r.Context())
	}
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// invalidateStats drops cached stats after a write. Best effort: a failed
// invalidation only extends staleness until the TTL expires.
func (h *Handler) invalidateStats(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, cacheKindCampaignStats, cacheKindRecipientStats); err != nil {
		h.logger.Warn("failed to invalidate stats cache", zap.Error(err))
	}
}
