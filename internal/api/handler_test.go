package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mailcast/mailcast/internal/db"
)

// fakeStores backs every handler interface with in-memory maps, scoped the
// same way the real repositories are.
type fakeStores struct {
	messages   map[uuid.UUID]*db.Message
	recipients map[uuid.UUID]*db.Recipient
	campaigns  map[uuid.UUID]*db.Campaign
	attempts   map[uuid.UUID][]*db.Attempt
}

func newFakeStores() *fakeStores {
	return &fakeStores{
		messages:   make(map[uuid.UUID]*db.Message),
		recipients: make(map[uuid.UUID]*db.Recipient),
		campaigns:  make(map[uuid.UUID]*db.Campaign),
		attempts:   make(map[uuid.UUID][]*db.Attempt),
	}
}

func (f *fakeStores) CreateMessage(ctx context.Context, m *db.Message) error {
	m.CreatedAt = time.Now()
	f.messages[m.ID] = m
	return nil
}

func (f *fakeStores) GetMessage(ctx context.Context, id uuid.UUID) (*db.Message, error) {
	m, ok := f.messages[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return m, nil
}

func (f *fakeStores) ListMessages(ctx context.Context, scope db.Scope, limit, offset int) ([]*db.Message, error) {
	var out []*db.Message
	for _, m := range f.messages {
		if scope.CanAccess(m.OwnerID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStores) UpdateMessage(ctx context.Context, m *db.Message, scope db.Scope) error {
	existing, ok := f.messages[m.ID]
	if !ok || !scope.CanAccess(existing.OwnerID) {
		return db.ErrNotFound
	}
	existing.Title = m.Title
	existing.Body = m.Body
	return nil
}

func (f *fakeStores) DeleteMessage(ctx context.Context, id uuid.UUID, scope db.Scope) error {
	existing, ok := f.messages[id]
	if !ok || !scope.CanAccess(existing.OwnerID) {
		return db.ErrNotFound
	}
	delete(f.messages, id)
	return nil
}

func (f *fakeStores) CreateRecipient(ctx context.Context, r *db.Recipient) error {
	for _, existing := range f.recipients {
		if existing.Email == r.Email {
			return db.ErrDuplicateEmail
		}
	}
	r.CreatedAt = time.Now()
	f.recipients[r.ID] = r
	return nil
}

func (f *fakeStores) GetRecipient(ctx context.Context, id uuid.UUID) (*db.Recipient, error) {
	r, ok := f.recipients[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return r, nil
}

func (f *fakeStores) ListRecipients(ctx context.Context, scope db.Scope, limit, offset int) ([]*db.Recipient, error) {
	var out []*db.Recipient
	for _, r := range f.recipients {
		if scope.CanAccess(r.OwnerID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStores) UpdateRecipient(ctx context.Context, r *db.Recipient, scope db.Scope) error {
	existing, ok := f.recipients[r.ID]
	if !ok || !scope.CanAccess(existing.OwnerID) {
		return db.ErrNotFound
	}
	existing.Name = r.Name
	existing.Email = r.Email
	existing.Comment = r.Comment
	return nil
}

func (f *fakeStores) DeleteRecipient(ctx context.Context, id uuid.UUID, scope db.Scope) error {
	existing, ok := f.recipients[id]
	if !ok || !scope.CanAccess(existing.OwnerID) {
		return db.ErrNotFound
	}
	delete(f.recipients, id)
	return nil
}

func (f *fakeStores) CountRecipients(ctx context.Context) (int, error) {
	return len(f.recipients), nil
}

func (f *fakeStores) CreateCampaign(ctx context.Context, c *db.Campaign, recipientIDs []uuid.UUID) error {
	for _, existing := range f.campaigns {
		if existing.MessageID == c.MessageID {
			return db.ErrDuplicateCampaign
		}
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.campaigns[c.ID] = c
	return nil
}

func (f *fakeStores) GetCampaign(ctx context.Context, id uuid.UUID) (*db.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return c, nil
}

func (f *fakeStores) ListCampaigns(ctx context.Context, scope db.Scope, limit, offset int) ([]*db.Campaign, error) {
	var out []*db.Campaign
	for _, c := range f.campaigns {
		if scope.CanAccess(c.OwnerID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStores) DeleteCampaign(ctx context.Context, id uuid.UUID, scope db.Scope) error {
	existing, ok := f.campaigns[id]
	if !ok || !scope.CanAccess(existing.OwnerID) {
		return db.ErrNotFound
	}
	delete(f.campaigns, id)
	return nil
}

func (f *fakeStores) ActivateCampaign(ctx context.Context, id uuid.UUID) (*db.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if c.Status != db.StatusCreated {
		return nil, db.ErrInvalidTransition
	}
	c.Status = db.StatusActive
	next := c.FirstFireAt
	c.NextFireAt = &next
	return c, nil
}

func (f *fakeStores) CompleteCampaign(ctx context.Context, id uuid.UUID) (*db.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if c.Status != db.StatusActive {
		return nil, db.ErrInvalidTransition
	}
	c.Status = db.StatusCompleted
	return c, nil
}

func (f *fakeStores) CountCampaigns(ctx context.Context) (total, active int, err error) {
	for _, c := range f.campaigns {
		total++
		if c.Status == db.StatusActive {
			active++
		}
	}
	return total, active, nil
}

func (f *fakeStores) ListForCampaign(ctx context.Context, campaignID uuid.UUID) ([]*db.Attempt, error) {
	return f.attempts[campaignID], nil
}

func newTestRouter(stores *fakeStores) *chi.Mux {
	h := NewHandler(zap.NewNop(), stores, stores, stores, stores)
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Post("/messages", h.CreateMessage)
		r.Get("/messages", h.ListMessages)
		r.Get("/messages/{id}", h.GetMessage)
		r.Put("/messages/{id}", h.UpdateMessage)
		r.Delete("/messages/{id}", h.DeleteMessage)

		r.Post("/recipients", h.CreateRecipient)
		r.Get("/recipients", h.ListRecipients)

		r.Post("/campaigns", h.CreateCampaign)
		r.Get("/campaigns", h.ListCampaigns)
		r.Get("/campaigns/{id}", h.GetCampaign)
		r.Delete("/campaigns/{id}", h.DeleteCampaign)
		r.Post("/campaigns/{id}/activate", h.ActivateCampaign)
		r.Post("/campaigns/{id}/complete", h.CompleteCampaign)
		r.Get("/campaigns/{id}/attempts", h.ListAttempts)

		r.Get("/stats", h.GetStats)
	})
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path string, actor uuid.UUID, role string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != uuid.Nil {
		req.Header.Set("X-Actor-ID", actor.String())
	}
	if role != "" {
		req.Header.Set("X-Actor-Role", role)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seedMessage(stores *fakeStores, owner uuid.UUID) *db.Message {
	m := &db.Message{ID: uuid.New(), Title: "Weekly digest", Body: "Hello", OwnerID: owner}
	stores.messages[m.ID] = m
	return m
}

func seedCampaign(stores *fakeStores, owner uuid.UUID, status string) *db.Campaign {
	c := &db.Campaign{
		ID:          uuid.New(),
		MessageID:   uuid.New(),
		Recurrence:  db.RecurrenceWeekly,
		Status:      status,
		FirstFireAt: time.Now().Add(24 * time.Hour),
		OwnerID:     owner,
	}
	stores.campaigns[c.ID] = c
	return c
}

func TestCreateMessage(t *testing.T) {
	stores := newFakeStores()
	router := newTestRouter(stores)
	owner := uuid.New()

	rec := doRequest(t, router, http.MethodPost, "/v1/messages", owner, "", MessageRequest{Title: "Digest", Body: "Hi"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var got db.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Title != "Digest" {
		t.Errorf("expected title 'Digest', got %q", got.Title)
	}
	if got.OwnerID != owner {
		t.Errorf("expected owner %s, got %s", owner, got.OwnerID)
	}
}

func TestCreateMessage_MissingActorHeader(t *testing.T) {
	router := newTestRouter(newFakeStores())

	rec := doRequest(t, router, http.MethodPost, "/v1/messages", uuid.Nil, "", MessageRequest{Title: "Digest"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateMessage_MissingTitle(t *testing.T) {
	router := newTestRouter(newFakeStores())

	rec := doRequest(t, router, http.MethodPost, "/v1/messages", uuid.New(), "", MessageRequest{Body: "no title"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetMessage_OtherOwnerHidden(t *testing.T) {
	stores := newFakeStores()
	router := newTestRouter(stores)
	m := seedMessage(stores, uuid.New())

	rec := doRequest(t, router, http.MethodGet, "/v1/messages/"+m.ID.String(), uuid.New(), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign message, got %d", rec.Code)
	}
}

func TestGetMessage_AdminSeesAll(t *testing.T) {
	stores := newFakeStores()
	router := newTestRouter(stores)
	m := seedMessage(stores, uuid.New())

	rec := doRequest(t, router, http.MethodGet, "/v1/messages/"+m.ID.String(), uuid.New(), "admin", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
}

func TestCreateRecipient_DuplicateEmail(t *testing.T) {
	stores := newFakeStores()
	router := newTestRouter(stores)
	owner := uuid.New()

	body := RecipientRequest{Name: "Alice", Email: "alice@example.com"}
	rec := doRequest(t, router, http.MethodPost, "/v1/recipients", owner, "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodPost, "/v1/recipients", owner, "", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", rec.Code)
	}
}

func TestCreateCampaign(t *testing.T) {
	stores := newFakeStores()
	router := newTestRouter(stores)
	owner := uuid.New()
	m := seedMessage(stores, owner)

	body := CampaignRequest{
		MessageID:    m.ID.String(),
		RecipientIDs: []string{uuid.New().String()},
		Recurrence:   db.RecurrenceWeekly,
		FirstFireAt:  time.Now().Add(time.Hour),
	}
	rec := doRequest(t, router, http.MethodPost, "/v1/campaigns", owner, "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var got db.Campaign
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != db.StatusCreated {
		t.Errorf("expected status %q, got %q", db.StatusCreated, got.Status)
	}
	if got.NextFireAt != nil {
		t.Error("next_fire_at must be unset before activation")
	}
}

func TestCreateCampaign_DuplicateMessage(t *testing.T) {
	stores := newFakeStores()
	router := newTestRouter(stores)
	owner := uuid.New()
	m := seedMessage(stores, owner)

	body := CampaignRequest{
		MessageID:    m.ID.String(),
		RecipientIDs: []string{uuid.New().String()},
		Recurrence:   db.RecurrenceDaily,
		FirstFireAt:  time.Now().Add(time.Hour),
	}
	rec := doRequest(t, router, http.MethodPost, "/v1/campaigns", owner, "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodPost, "/v1/campaigns", owner, "", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second campaign on same message, got %d", rec.Code)
	}
}

func TestCreateCampaign_Validation(t *testing.T) {
	stores := newFakeStores()
	router := newTestRouter(stores)
	owner := uuid.New()
	m := seedMessage(stores, owner)

	valid := func() CampaignRequest {
		return CampaignRequest{
			MessageID:    m.ID.String(),
			RecipientIDs: []string{uuid.New().String()},
			Recurrence:   db.RecurrenceDaily,
			FirstFireAt:  time.Now().Add(time.Hour),
		}
	}

	tests := []struct {
		name   string
		mutate func(*CampaignRequest)
	}{
		{"bad recurrence", func(r *CampaignRequest) { r.Recurrence = "hourly" }},
		{"first fire in the past", func(r *CampaignRequest) { r.FirstFireAt = time.Now().Add(-time.Hour) }},
		{"no recipients", func(r *CampaignRequest) { r.RecipientIDs = nil }},
		{"bad message id", func(r *CampaignRequest) { r.MessageID = "nope" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := valid()
			tt.mutate(&body)
			rec := doRequest(t, router, http.MethodPost, "/v1/campaigns", owner, "", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateCampaign_ForeignMessage(t *testing.T) {
	stores := newFakeStores()
	router := newTestRouter(stores)
	m := seedMessage(stores, uuid.New())

	body := CampaignRequest{
		MessageID:    m.ID.String(),
		RecipientIDs: []string{uuid.New().String()},
		Recurrence:   db.RecurrenceDaily,
		FirstFireAt:  time.Now().Add(time.Hour),
	}
	rec := doRequest(t, router, http.MethodPost, "/v1/campaigns", uuid.New(), "", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign message, got %d", rec.Code)
	}
}

func TestActivateCampaign(t *testing.T) {
	stores := newFakeStores()
	router := newTestRouter(stores)
	owner := uuid.New()
	c := seedCampaign(stores, owner, db.StatusCreated)

	rec := doRequest(t, router, http.MethodPost, "/v1/campaigns/"+c.ID.String()+"/activate", owner, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got db.Campaign
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != db.StatusActive {
		t.Errorf("expected status %q, got %q", db.StatusActive, got.Status)
	}
	if got.NextFireAt == nil || !got.NextFireAt.Equal(c.FirstFireAt) {
		t.Errorf("activation must seed next_fire_at from first_fire_at, got %v", got.NextFireAt)
	}
}

func TestActivateCampaign_AlreadyActive(t *testing.T) {
	stores := newFakeStores()
	router := newTestRouter(stores)
	owner := uuid.New()
	c := seedCampaign(stores, owner, db.StatusActive)

	rec := doRequest(t, router, http.MethodPost, "/v1/campaigns/"+c.ID.String()+"/activate", owner, "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCompleteCampaign(t *testing.T) {
	stores := newFakeStores()
	router := newTestRouter(stores)
	owner := uuid.New()
	c := seedCampaign(stores, owner, db.StatusActive)

	rec := doRequest(t, router, http.MethodPost, "/v1/campaigns/"+c.ID.String()+"/complete", owner, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got db.Campaign
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != db.StatusCompleted {
		t.Errorf("expected status %q, got %q", db.StatusCompleted, got.Status)
	}
}

func TestCompleteCampaign_IsTerminal(t *testing.T) {
	stores := newFakeStores()
	router := newTestRouter(stores)
	owner := uuid.New()
	c := seedCampaign(stores, owner, db.StatusCompleted)

	rec := doRequest(t, router, http.MethodPost, "/v1/campaigns/"+c.ID.String()+"/activate", owner, "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 reactivating a completed campaign, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/v1/campaigns/"+c.ID.String()+"/complete", owner, "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 completing a completed campaign, got %d", rec.Code)
	}
}

func TestTransition_ForeignCampaign(t *testing.T) {
	stores := newFakeStores()
	router := newTestRouter(stores)
	c := seedCampaign(stores, uuid.New(), db.StatusCreated)

	rec := doRequest(t, router, http.MethodPost, "/v1/campaigns/"+c.ID.String()+"/activate", uuid.New(), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign campaign, got %d", rec.Code)
	}
	if c.Status != db.StatusCreated {
		t.Errorf("foreign actor must not change status, got %q", c.Status)
	}
}

func TestListAttempts_NumberedOldestFirst(t *testing.T) {
	stores := newFakeStores()
	router := newTestRouter(stores)
	owner := uuid.New()
	c := seedCampaign(stores, owner, db.StatusActive)

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		outcome := db.OutcomeSuccess
		if i == 1 {
			outcome = db.OutcomeFailure
		}
		stores.attempts[c.ID] = append(stores.attempts[c.ID], &db.Attempt{
			ID:         uuid.New(),
			CampaignID: c.ID,
			OccurredAt: base.Add(time.Duration(i) * 24 * time.Hour),
			Outcome:    outcome,
			Response:   fmt.Sprintf("attempt %d", i),
		})
	}

	rec := doRequest(t, router, http.MethodGet, "/v1/campaigns/"+c.ID.String()+"/attempts", owner, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got []NumberedAttempt
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(got))
	}
	for i, na := range got {
		if na.Number != i+1 {
			t.Errorf("attempt %d: expected number %d, got %d", i, i+1, na.Number)
		}
	}
	if got[1].Attempt.Outcome != db.OutcomeFailure {
		t.Errorf("expected second attempt failure, got %q", got[1].Attempt.Outcome)
	}
}

func TestListCampaigns_ScopedToOwner(t *testing.T) {
	stores := newFakeStores()
	router := newTestRouter(stores)
	owner := uuid.New()
	seedCampaign(stores, owner, db.StatusCreated)
	seedCampaign(stores, uuid.New(), db.StatusCreated)

	rec := doRequest(t, router, http.MethodGet, "/v1/campaigns", owner, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []*db.Campaign
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 campaign for owner, got %d", len(got))
	}

	rec = doRequest(t, router, http.MethodGet, "/v1/campaigns", uuid.New(), "admin", nil)
	var all []*db.Campaign
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 campaigns for admin, got %d", len(all))
	}
}

func TestGetStats(t *testing.T) {
	stores := newFakeStores()
	router := newTestRouter(stores)
	owner := uuid.New()
	seedCampaign(stores, owner, db.StatusActive)
	seedCampaign(stores, owner, db.StatusCreated)
	stores.recipients[uuid.New()] = &db.Recipient{ID: uuid.New(), Email: "a@example.com", OwnerID: owner}

	rec := doRequest(t, router, http.MethodGet, "/v1/stats", owner, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.TotalCampaigns != 2 || got.ActiveCampaigns != 1 || got.TotalRecipients != 1 {
		t.Errorf("unexpected stats: %+v", got)
	}
}

func TestDeleteCampaign_NotFound(t *testing.T) {
	router := newTestRouter(newFakeStores())

	rec := doRequest(t, router, http.MethodDelete, "/v1/campaigns/"+uuid.New().String(), uuid.New(), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
