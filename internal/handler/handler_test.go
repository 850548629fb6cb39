package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"tenantchat/internal/accesstypes"
	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
	"tenantchat/internal/httputil"
	"tenantchat/internal/repository/memory"
	authsvc "tenantchat/internal/service/auth"
	"tenantchat/internal/service/chat"
	"tenantchat/internal/service/rag"
	"tenantchat/internal/service/tenant"
)

// testServer runs the real services on the memory store. The caller is chosen
// per request with the X-Test-User header, standing in for the bearer token.
type testServer struct {
	t       *testing.T
	handler http.Handler
	users   repositories.UserRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	registry, err := accesstypes.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}

	users := memory.NewUserRepository(store)
	businesses := memory.NewBusinessRepository(store)
	grants := memory.NewBusinessAccessRepository(store)
	conversations := memory.NewConversationRepository(store)
	tx := memory.NewTransactionManager(store)
	engine := authsvc.NewEngine(grants, nil, time.Second, logger)
	locks := chat.NewLocker()

	mux := NewRouter(Handlers{
		Business: NewBusinessHandler(
			tenant.NewBusinessService(businesses, users, tx, logger),
			tenant.NewAccessService(grants, businesses, registry, nil, logger),
			logger,
		),
		User: NewUserHandler(tenant.NewUserService(users, businesses, logger), logger),
		Conversation: NewConversationHandler(
			chat.NewConversationService(conversations, engine, registry, tx, locks, logger),
			chat.NewMessageService(conversations, memory.NewMessageRepository(store), engine, registry, tx, locks, logger),
			logger,
		),
		Rag: NewRagHandler(
			rag.NewService(memory.NewRagChunkRepository(store), memory.NewRagQueryRepository(store), businesses, engine, registry, nil, 2, logger),
			logger,
		),
	})

	s := &testServer{t: t, users: users}
	s.handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Test-User"); id != "" {
			u, err := users.GetByID(r.Context(), id)
			if err != nil {
				httputil.RespondError(w, http.StatusUnauthorized, "unknown test user")
				return
			}
			r = httputil.WithPrincipal(r, u.Principal())
		}
		mux.ServeHTTP(w, r)
	})
	return s
}

func (s *testServer) user(role models.UserRole) string {
	s.t.Helper()
	id := uuid.NewString()
	if err := s.users.Create(context.Background(), &models.User{ID: id, Email: id + "@example.com", Role: role}); err != nil {
		s.t.Fatal(err)
	}
	return id
}

// do sends a request and decodes the JSON response into out when non-nil
func (s *testServer) do(method, path, as string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if as != "" {
		req.Header.Set("X-Test-User", as)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			s.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, want, rec.Body.String())
	}
}

func problemReason(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	reason, _ := body["reason"].(string)
	return reason
}

func TestBusinessAndGrantFlow(t *testing.T) {
	s := newTestServer(t)
	xOwner := s.user(models.UserRoleMember)
	yOwner := s.user(models.UserRoleMember)

	var x, y models.Business
	expectStatus(t, s.do("POST", "/api/businesses", xOwner, map[string]interface{}{"name": "X"}, &x), http.StatusCreated)
	expectStatus(t, s.do("POST", "/api/businesses", yOwner, map[string]interface{}{"name": "Y"}, &y), http.StatusCreated)

	// self grant is a malformed request, not a denial
	rec := s.do("POST", "/api/businesses/"+y.ID+"/grants", yOwner, map[string]interface{}{
		"accessing_business_id": y.ID, "access_type": "read-rag",
	}, nil)
	expectStatus(t, rec, http.StatusBadRequest)

	rec = s.do("POST", "/api/businesses/"+y.ID+"/grants", xOwner, map[string]interface{}{
		"accessing_business_id": x.ID, "access_type": "read-rag",
	}, nil)
	expectStatus(t, rec, http.StatusForbidden)
	if reason := problemReason(t, rec); reason != "not_business_owner" {
		t.Errorf("reason = %q", reason)
	}

	var grant models.BusinessAccess
	rec = s.do("POST", "/api/businesses/"+y.ID+"/grants", yOwner, map[string]interface{}{
		"accessing_business_id": x.ID,
		"access_type":           "read-rag",
		"expires_at":            time.Now().Add(time.Hour).Format(time.RFC3339),
	}, &grant)
	expectStatus(t, rec, http.StatusCreated)
	if grant.TargetBusinessID != y.ID || !grant.HasAccess {
		t.Errorf("grant = %+v", grant)
	}

	var listed []models.BusinessAccess
	expectStatus(t, s.do("GET", "/api/businesses/"+x.ID+"/grants", xOwner, nil, &listed), http.StatusOK)
	if len(listed) != 1 {
		t.Errorf("accessing side sees %d grants", len(listed))
	}

	var revoked models.BusinessAccess
	expectStatus(t, s.do("DELETE", "/api/grants/"+grant.ID, yOwner, nil, &revoked), http.StatusOK)
	if revoked.HasAccess {
		t.Error("grant still active after revoke")
	}

	// fee cleared with explicit null
	var updated models.Business
	expectStatus(t, s.do("PATCH", "/api/businesses/"+x.ID, xOwner, map[string]interface{}{"is_public": true, "public_access_fee": 3}, &updated), http.StatusOK)
	if updated.PublicAccessFee == nil || *updated.PublicAccessFee != 3 {
		t.Fatalf("fee = %v", updated.PublicAccessFee)
	}
	var cleared models.Business
	expectStatus(t, s.do("PATCH", "/api/businesses/"+x.ID, xOwner, map[string]interface{}{"public_access_fee": nil}, &cleared), http.StatusOK)
	if cleared.PublicAccessFee != nil || !cleared.IsPublic {
		t.Errorf("after clear = %+v", cleared)
	}

	// owners cannot delete their account
	expectStatus(t, s.do("DELETE", "/api/users/"+xOwner, xOwner, nil, nil), http.StatusConflict)
	expectStatus(t, s.do("DELETE", "/api/businesses/"+y.ID, yOwner, nil, nil), http.StatusNoContent)
	expectStatus(t, s.do("GET", "/api/grants/"+grant.ID, xOwner, nil, nil), http.StatusNotFound)
}

func TestConversationAccess(t *testing.T) {
	s := newTestServer(t)
	owner := s.user(models.UserRoleMember)
	outsider := s.user(models.UserRoleMember)

	var conv models.Conversation
	expectStatus(t, s.do("POST", "/api/conversations", owner, map[string]interface{}{"title": "hi", "visibility": "public"}, &conv), http.StatusCreated)
	expectStatus(t, s.do("POST", "/api/conversations/"+conv.ID+"/messages", owner, map[string]interface{}{
		"messages": []map[string]string{{"role": "user", "content": "question"}, {"role": "assistant", "content": "answer"}},
	}, nil), http.StatusCreated)

	// public reads need no token
	var msgs []models.Message
	expectStatus(t, s.do("GET", "/api/conversations/"+conv.ID+"/messages", "", nil, &msgs), http.StatusOK)
	if len(msgs) != 2 {
		t.Fatalf("anonymous saw %d messages", len(msgs))
	}
	expectStatus(t, s.do("GET", "/api/messages/"+msgs[0].ID, "", nil, nil), http.StatusOK)

	// writes need a user, and the right one
	expectStatus(t, s.do("POST", "/api/messages/"+msgs[0].ID+"/vote", "", map[string]string{"direction": "up"}, nil), http.StatusUnauthorized)
	rec := s.do("POST", "/api/messages/"+msgs[0].ID+"/vote", outsider, map[string]string{"direction": "up"}, nil)
	expectStatus(t, rec, http.StatusForbidden)
	if reason := problemReason(t, rec); reason != string(models.ReasonNoOwningTenant) {
		t.Errorf("reason = %q", reason)
	}

	after := stamp(conv.CreatedAt.Add(-time.Minute))
	rec = s.do("DELETE", "/api/conversations/"+conv.ID+"/messages?after="+after, outsider, nil, nil)
	expectStatus(t, rec, http.StatusForbidden)
	expectStatus(t, s.do("GET", "/api/conversations/"+conv.ID+"/messages", owner, nil, &msgs), http.StatusOK)
	if len(msgs) != 2 {
		t.Fatalf("denied delete removed messages: %d left", len(msgs))
	}

	var deleted map[string]int64
	expectStatus(t, s.do("DELETE", "/api/conversations/"+conv.ID+"/messages?after="+after+"&up_to_sequence=1", owner, nil, &deleted), http.StatusOK)
	if deleted["deleted"] != 1 {
		t.Errorf("deleted = %v", deleted)
	}

	expectStatus(t, s.do("DELETE", "/api/conversations/"+conv.ID+"/messages", owner, nil, nil), http.StatusBadRequest)
	expectStatus(t, s.do("GET", "/api/conversations/not-a-uuid", owner, nil, nil), http.StatusBadRequest)
	expectStatus(t, s.do("GET", "/api/conversations/"+uuid.NewString(), owner, nil, nil), http.StatusNotFound)
}

func TestRagQueryFlow(t *testing.T) {
	s := newTestServer(t)
	owner := s.user(models.UserRoleMember)
	stranger := s.user(models.UserRoleMember)

	var b models.Business
	expectStatus(t, s.do("POST", "/api/businesses", owner, map[string]interface{}{"name": "KB"}, &b), http.StatusCreated)
	expectStatus(t, s.do("POST", "/api/businesses/"+b.ID+"/rag/chunks", owner, map[string]interface{}{
		"chunks": []map[string]interface{}{{"text": "open 9-5", "embedding": []float32{1, 0}}},
	}, nil), http.StatusCreated)

	var result struct {
		Query   models.RagQuery      `json:"query"`
		Sources []models.ScoredChunk `json:"sources"`
	}
	expectStatus(t, s.do("POST", "/api/businesses/"+b.ID+"/rag/query", owner, map[string]interface{}{
		"query_text": "when are you open?", "embedding": []float32{1, 0},
	}, &result), http.StatusOK)
	if len(result.Sources) != 1 || result.Query.ResponseText != "open 9-5" {
		t.Errorf("result = %+v", result)
	}

	rec := s.do("POST", "/api/businesses/"+b.ID+"/rag/query", stranger, map[string]interface{}{
		"query_text": "?", "embedding": []float32{1, 0},
	}, nil)
	expectStatus(t, rec, http.StatusForbidden)
	if reason := problemReason(t, rec); reason != string(models.ReasonNoTenantAffiliation) {
		t.Errorf("reason = %q", reason)
	}

	var queries []models.RagQuery
	expectStatus(t, s.do("GET", "/api/businesses/"+b.ID+"/rag/queries?limit=5", owner, nil, &queries), http.StatusOK)
	if len(queries) != 1 {
		t.Errorf("queries = %d", len(queries))
	}
	expectStatus(t, s.do("GET", "/api/businesses/"+b.ID+"/rag/queries?limit=five", owner, nil, nil), http.StatusBadRequest)
}

func TestMe(t *testing.T) {
	s := newTestServer(t)
	id := s.user(models.UserRoleAdmin)

	expectStatus(t, s.do("GET", "/api/me", "", nil, nil), http.StatusUnauthorized)

	var me struct {
		Principal models.Principal `json:"principal"`
		User      models.User      `json:"user"`
	}
	expectStatus(t, s.do("GET", "/api/me", id, nil, &me), http.StatusOK)
	if me.Principal.UserID != id || me.User.Role != models.UserRoleAdmin {
		t.Errorf("me = %+v", me)
	}
	expectStatus(t, s.do("GET", "/health", "", nil, nil), http.StatusOK)
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantRetry  bool
	}{
		{"validation", fmt.Errorf("%w: name is required", domain.ErrValidation), http.StatusBadRequest, false},
		{"invalid grant", fmt.Errorf("%w: self grant", domain.ErrInvalidGrant), http.StatusBadRequest, false},
		{"unauthenticated", domain.ErrUnauthorized, http.StatusUnauthorized, false},
		{"denied", &domain.DeniedError{Reason: "no_grant", Operation: "read"}, http.StatusForbidden, false},
		{"not found", fmt.Errorf("business x: %w", domain.ErrNotFound), http.StatusNotFound, false},
		{"integrity", &domain.IntegrityError{Message: "owner"}, http.StatusConflict, false},
		{"conflict", &domain.ConflictError{Message: "dup", ResourceType: "grant", ResourceID: "g"}, http.StatusConflict, false},
		{"unavailable", &domain.UnavailableError{Op: "grant lookup", Err: context.DeadlineExceeded}, http.StatusServiceUnavailable, true},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleError(rec, tt.err)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Retry-After") != ""; got != tt.wantRetry {
				t.Errorf("Retry-After present = %v", got)
			}
		})
	}
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
