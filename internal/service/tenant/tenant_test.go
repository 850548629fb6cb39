package tenant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"tenantchat/internal/accesstypes"
	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
	"tenantchat/internal/domain/services"
	"tenantchat/internal/repository/memory"
	authsvc "tenantchat/internal/service/auth"
)

type testEnv struct {
	ctx        context.Context
	now        time.Time
	users      repositories.UserRepository
	businesses repositories.BusinessRepository
	grants     repositories.BusinessAccessRepository
	chunks     repositories.RagChunkRepository
	bizSvc     services.BusinessService
	accessSvc  services.AccessService
	userSvc    services.UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	registry, err := accesstypes.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}

	env := &testEnv{
		ctx:        context.Background(),
		now:        time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
		users:      memory.NewUserRepository(store),
		businesses: memory.NewBusinessRepository(store),
		grants:     memory.NewBusinessAccessRepository(store),
		chunks:     memory.NewRagChunkRepository(store),
	}
	store.SetClock(func() time.Time { return env.now })
	clock := func() time.Time { return env.now }

	env.bizSvc = NewBusinessService(env.businesses, env.users, memory.NewTransactionManager(store), logger)
	env.accessSvc = NewAccessService(env.grants, env.businesses, registry, clock, logger)
	env.userSvc = NewUserService(env.users, env.businesses, logger)
	return env
}

// principal re-reads the user so the affiliation is current
func (e *testEnv) principal(t *testing.T, userID string) models.Principal {
	t.Helper()
	u, err := e.users.GetByID(e.ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	return u.Principal()
}

func (e *testEnv) addUser(t *testing.T, id string, role models.UserRole) {
	t.Helper()
	if err := e.users.Create(e.ctx, &models.User{ID: id, Email: id + "@example.com", Role: role}); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) addBusiness(t *testing.T, owner, name string) *models.Business {
	t.Helper()
	b, err := e.bizSvc.CreateBusiness(e.ctx, e.principal(t, owner), &services.CreateBusinessRequest{Name: name})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func ptr[T any](v T) *T { return &v }

func TestCreateBusiness(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", models.UserRoleMember)

	tests := []struct {
		name    string
		req     services.CreateBusinessRequest
		wantErr error
	}{
		{"private", services.CreateBusinessRequest{Name: "  Acme  "}, nil},
		{"public with fee", services.CreateBusinessRequest{Name: "Pub", IsPublic: true, PublicAccessFee: ptr(9.5)}, nil},
		{"fee on private", services.CreateBusinessRequest{Name: "Bad", PublicAccessFee: ptr(1.0)}, domain.ErrValidation},
		{"negative fee", services.CreateBusinessRequest{Name: "Neg", IsPublic: true, PublicAccessFee: ptr(-1.0)}, domain.ErrValidation},
		{"blank name", services.CreateBusinessRequest{Name: "   "}, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			b, err := env.bizSvc.CreateBusiness(env.ctx, env.principal(t, "alice"), &req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if b.OwnerID != "alice" || b.Name == "" || b.Name[0] == ' ' {
				t.Errorf("business = %+v", b)
			}
		})
	}

	// first business became the creator's affiliation; the second did not replace it
	p := env.principal(t, "alice")
	owned, _ := env.businesses.ListByOwner(env.ctx, "alice")
	if len(owned) != 2 || p.BusinessID == nil {
		t.Fatalf("affiliation = %v, owned = %+v", p.BusinessID, owned)
	}
	affiliated, err := env.businesses.GetByID(env.ctx, *p.BusinessID)
	if err != nil || affiliated.Name != "Acme" {
		t.Errorf("affiliated with %+v, want Acme", affiliated)
	}

	if _, err := env.bizSvc.CreateBusiness(env.ctx, models.Principal{}, &services.CreateBusinessRequest{Name: "x"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("anonymous create err = %v", err)
	}
}

func TestUpdateBusiness(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", models.UserRoleMember)
	env.addUser(t, "mallory", models.UserRoleMember)
	env.addUser(t, "root", models.UserRoleAdmin)
	b := env.addBusiness(t, "alice", "Acme")

	updated, err := env.bizSvc.UpdateBusiness(env.ctx, env.principal(t, "alice"), b.ID,
		&services.UpdateBusinessRequest{IsPublic: ptr(true), PublicAccessFee: ptr(4.0)})
	if err != nil || !updated.IsPublic || *updated.PublicAccessFee != 4.0 {
		t.Fatalf("publish = %+v, %v", updated, err)
	}

	updated, err = env.bizSvc.UpdateBusiness(env.ctx, env.principal(t, "root"), b.ID,
		&services.UpdateBusinessRequest{IsPublic: ptr(false)})
	if err != nil || updated.IsPublic || updated.PublicAccessFee != nil {
		t.Fatalf("unpublish should clear fee: %+v, %v", updated, err)
	}

	_, err = env.bizSvc.UpdateBusiness(env.ctx, env.principal(t, "alice"), b.ID,
		&services.UpdateBusinessRequest{PublicAccessFee: ptr(2.0)})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("fee on private business err = %v", err)
	}

	_, err = env.bizSvc.UpdateBusiness(env.ctx, env.principal(t, "mallory"), b.ID,
		&services.UpdateBusinessRequest{Name: ptr("Mine now")})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("non-owner update err = %v", err)
	}
}

func TestTransferAndDeleteBusiness(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", models.UserRoleMember)
	env.addUser(t, "bob", models.UserRoleMember)
	x := env.addBusiness(t, "alice", "X")
	y := env.addBusiness(t, "bob", "Y")

	_, err := env.bizSvc.TransferOwnership(env.ctx, env.principal(t, "alice"), x.ID, &services.TransferOwnershipRequest{NewOwnerID: "ghost"})
	if !errors.Is(err, domain.ErrIntegrityViolation) {
		t.Fatalf("transfer to missing user err = %v", err)
	}
	moved, err := env.bizSvc.TransferOwnership(env.ctx, env.principal(t, "alice"), x.ID, &services.TransferOwnershipRequest{NewOwnerID: "bob"})
	if err != nil || moved.OwnerID != "bob" {
		t.Fatalf("transfer = %+v, %v", moved, err)
	}

	if _, err := env.accessSvc.Grant(env.ctx, env.principal(t, "bob"), &services.GrantRequest{
		TargetBusinessID: y.ID, AccessingBusinessID: x.ID, AccessType: "read-rag",
	}); err != nil {
		t.Fatal(err)
	}
	chunk := &models.RagChunk{BusinessID: &x.ID, ChunkText: "kb", Embedding: []float32{1}}
	if err := env.chunks.CreateBatch(env.ctx, []*models.RagChunk{chunk}); err != nil {
		t.Fatal(err)
	}

	if err := env.bizSvc.DeleteBusiness(env.ctx, env.principal(t, "alice"), x.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("former owner delete err = %v", err)
	}
	if err := env.bizSvc.DeleteBusiness(env.ctx, env.principal(t, "bob"), x.ID); err != nil {
		t.Fatal(err)
	}

	grants, _ := env.grants.ListForBusiness(env.ctx, y.ID)
	if len(grants) != 0 {
		t.Errorf("grants survived deletion: %+v", grants)
	}
	kept, err := env.chunks.GetByID(env.ctx, chunk.ID)
	if err != nil || kept.BusinessID != nil {
		t.Errorf("chunk should survive orphaned: %+v, %v", kept, err)
	}
	if p := env.principal(t, "alice"); p.BusinessID != nil {
		t.Errorf("alice still affiliated with deleted business: %v", *p.BusinessID)
	}
}

func TestGrant_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", models.UserRoleMember)
	env.addUser(t, "bob", models.UserRoleMember)
	x := env.addBusiness(t, "alice", "X")
	y := env.addBusiness(t, "bob", "Y")
	past := env.now.Add(-time.Minute)

	tests := []struct {
		name    string
		as      string
		req     services.GrantRequest
		wantErr error
	}{
		{"self grant", "alice", services.GrantRequest{TargetBusinessID: x.ID, AccessingBusinessID: x.ID, AccessType: "read-rag"}, domain.ErrInvalidGrant},
		{"missing target id", "alice", services.GrantRequest{AccessingBusinessID: y.ID, AccessType: "read-rag"}, domain.ErrInvalidGrant},
		{"unknown target", "alice", services.GrantRequest{TargetBusinessID: "nope", AccessingBusinessID: y.ID, AccessType: "read-rag"}, domain.ErrInvalidGrant},
		{"unknown accessing", "alice", services.GrantRequest{TargetBusinessID: x.ID, AccessingBusinessID: "nope", AccessType: "read-rag"}, domain.ErrInvalidGrant},
		{"missing access type", "alice", services.GrantRequest{TargetBusinessID: x.ID, AccessingBusinessID: y.ID}, domain.ErrInvalidGrant},
		{"expired on arrival", "alice", services.GrantRequest{TargetBusinessID: x.ID, AccessingBusinessID: y.ID, AccessType: "read-rag", ExpiresAt: &past}, domain.ErrInvalidGrant},
		{"not target owner", "bob", services.GrantRequest{TargetBusinessID: x.ID, AccessingBusinessID: y.ID, AccessType: "read-rag"}, domain.ErrForbidden},
		{"opaque access type accepted", "alice", services.GrantRequest{TargetBusinessID: x.ID, AccessingBusinessID: y.ID, AccessType: "custom-tag"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := env.accessSvc.Grant(env.ctx, env.principal(t, tt.as), &req)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGrant_IdempotentAndRevoke(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", models.UserRoleMember)
	env.addUser(t, "bob", models.UserRoleMember)
	x := env.addBusiness(t, "alice", "X")
	y := env.addBusiness(t, "bob", "Y")
	owner := env.principal(t, "bob")

	req := services.GrantRequest{TargetBusinessID: y.ID, AccessingBusinessID: x.ID, AccessType: "read-rag"}
	first, err := env.accessSvc.Grant(env.ctx, owner, &req)
	if err != nil {
		t.Fatal(err)
	}
	again := req
	second, err := env.accessSvc.Grant(env.ctx, owner, &again)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("re-grant created a second grant")
	}
	list, err := env.accessSvc.ListGrants(env.ctx, owner, y.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListGrants = %d rows, %v", len(list), err)
	}

	// the accessing side can see it too; outsiders cannot
	if _, err := env.accessSvc.GetGrant(env.ctx, env.principal(t, "alice"), first.ID); err != nil {
		t.Errorf("accessing member GetGrant err = %v", err)
	}
	env.addUser(t, "eve", models.UserRoleMember)
	if _, err := env.accessSvc.ListGrants(env.ctx, env.principal(t, "eve"), y.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("outsider ListGrants err = %v", err)
	}

	if _, err := env.accessSvc.Revoke(env.ctx, env.principal(t, "alice"), first.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("accessing side must not revoke: %v", err)
	}
	revoked, err := env.accessSvc.Revoke(env.ctx, owner, first.ID)
	if err != nil || revoked.HasAccess {
		t.Fatalf("Revoke = %+v, %v", revoked, err)
	}
	if active, _ := env.grants.IsActive(env.ctx, y.ID, x.ID, "read-rag", env.now); active {
		t.Error("revoked grant still active")
	}
	if _, err := env.grants.GetByID(env.ctx, first.ID); err != nil {
		t.Errorf("revoke must keep the row: %v", err)
	}
}

// U owns X; Y grants X read-rag for one hour. A member of X (not U) can read
// Y's chunk now and is denied two hours later.
func TestCrossTenantGrantScenario(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "u", models.UserRoleMember)
	env.addUser(t, "y-owner", models.UserRoleMember)
	env.addUser(t, "x-member", models.UserRoleMember)
	x := env.addBusiness(t, "u", "X")
	y := env.addBusiness(t, "y-owner", "Y")
	if err := env.users.SetBusiness(env.ctx, "x-member", &x.ID); err != nil {
		t.Fatal(err)
	}

	expires := env.now.Add(time.Hour)
	if _, err := env.accessSvc.Grant(env.ctx, env.principal(t, "y-owner"), &services.GrantRequest{
		TargetBusinessID: y.ID, AccessingBusinessID: x.ID, AccessType: "read-rag", ExpiresAt: &expires,
	}); err != nil {
		t.Fatal(err)
	}

	chunk := models.RagChunk{ID: "chunk-y", BusinessID: &y.ID}
	engine := authsvc.NewEngine(env.grants, nil, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	member := env.principal(t, "x-member")

	d, err := engine.Authorize(env.ctx, member, chunk.Ref("read-rag"), models.OperationRead, env.now)
	if err != nil || !d.Allow || d.Reason != models.ReasonGrantActive {
		t.Fatalf("at now: %+v, %v", d, err)
	}

	d, err = engine.Authorize(env.ctx, member, chunk.Ref("read-rag"), models.OperationRead, env.now.Add(2*time.Hour))
	if err != nil || d.Allow || d.Reason != models.ReasonNoGrant {
		t.Fatalf("at now+2h: %+v, %v", d, err)
	}
}

func TestUserService(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", models.UserRoleMember)
	env.addUser(t, "bob", models.UserRoleMember)
	env.addUser(t, "root", models.UserRoleAdmin)
	x := env.addBusiness(t, "alice", "X")
	admin := env.principal(t, "root")

	if _, err := env.userSvc.SetUserBusiness(env.ctx, env.principal(t, "bob"), "bob", &services.SetUserBusinessRequest{BusinessID: &x.ID}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("self-join err = %v", err)
	}
	if _, err := env.userSvc.SetUserBusiness(env.ctx, admin, "bob", &services.SetUserBusinessRequest{BusinessID: ptr("missing")}); !errors.Is(err, domain.ErrIntegrityViolation) {
		t.Errorf("dangling business err = %v", err)
	}
	u, err := env.userSvc.SetUserBusiness(env.ctx, admin, "bob", &services.SetUserBusinessRequest{BusinessID: &x.ID})
	if err != nil || u.BusinessID == nil || *u.BusinessID != x.ID {
		t.Fatalf("admin set = %+v, %v", u, err)
	}
	u, err = env.userSvc.SetUserBusiness(env.ctx, env.principal(t, "bob"), "bob", &services.SetUserBusinessRequest{})
	if err != nil || u.BusinessID != nil {
		t.Fatalf("self leave = %+v, %v", u, err)
	}

	if err := env.userSvc.DeleteUser(env.ctx, env.principal(t, "alice"), "alice"); !errors.Is(err, domain.ErrIntegrityViolation) {
		t.Errorf("deleting an owner err = %v", err)
	}
	if err := env.userSvc.DeleteUser(env.ctx, env.principal(t, "alice"), "bob"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("deleting someone else err = %v", err)
	}
	if err := env.userSvc.DeleteUser(env.ctx, env.principal(t, "bob"), "bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.userSvc.GetUser(env.ctx, admin, "bob"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetUser after delete err = %v", err)
	}
}

// transferOnUpdate moves ownership right before the wrapped Update runs, the way a
// transfer committed between an update's read and write would.
type transferOnUpdate struct {
	repositories.BusinessRepository
	newOwner string
}

func (r *transferOnUpdate) Update(ctx context.Context, b *models.Business) error {
	if err := r.BusinessRepository.SetOwner(ctx, b.ID, r.newOwner); err != nil {
		return err
	}
	return r.BusinessRepository.Update(ctx, b)
}

func TestUpdateBusiness_KeepsConcurrentTransfer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	ctx := context.Background()
	users := memory.NewUserRepository(store)
	businesses := memory.NewBusinessRepository(store)
	for _, id := range []string{"alice", "bob"} {
		if err := users.Create(ctx, &models.User{ID: id, Email: id + "@example.com"}); err != nil {
			t.Fatal(err)
		}
	}
	alice, _ := users.GetByID(ctx, "alice")

	plain := NewBusinessService(businesses, users, memory.NewTransactionManager(store), logger)
	x, err := plain.CreateBusiness(ctx, alice.Principal(), &services.CreateBusinessRequest{Name: "X"})
	if err != nil {
		t.Fatal(err)
	}

	racing := NewBusinessService(&transferOnUpdate{BusinessRepository: businesses, newOwner: "bob"}, users, memory.NewTransactionManager(store), logger)
	renamed, err := racing.UpdateBusiness(ctx, alice.Principal(), x.ID, &services.UpdateBusinessRequest{Name: ptr("X2")})
	if err != nil {
		t.Fatal(err)
	}
	if renamed.Name != "X2" || renamed.OwnerID != "bob" {
		t.Errorf("returned business = %+v", renamed)
	}

	stored, err := businesses.GetByID(ctx, x.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.OwnerID != "bob" {
		t.Fatalf("owner = %q, want bob: update restored the previous owner", stored.OwnerID)
	}
	if err := plain.DeleteBusiness(ctx, alice.Principal(), x.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("former owner delete err = %v", err)
	}
}

func TestBusinessGetForUpdate_RequiresTransaction(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", models.UserRoleMember)
	x := env.addBusiness(t, "alice", "X")

	if _, err := env.businesses.GetForUpdate(env.ctx, x.ID); err == nil {
		t.Error("GetForUpdate outside a transaction should fail")
	}
}
