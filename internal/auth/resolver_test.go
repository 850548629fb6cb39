package auth

import (
	"context"
	"errors"
	"testing"

	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
)

type fakeVerifier struct {
	claims map[string]*models.SupabaseClaims
}

func (f *fakeVerifier) VerifyToken(token string) (*models.SupabaseClaims, error) {
	c, ok := f.claims[token]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return c, nil
}

func (f *fakeVerifier) Close() error { return nil }

type fakeUsers struct {
	users     map[string]*models.User
	createErr error
	creates   int
	// lostRace stores the row but reports a conflict, like a concurrent insert
	lostRace bool
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.creates++
	if f.lostRace {
		cp := *u
		f.users[u.ID] = &cp
		return domain.ErrConflict
	}
	if f.createErr != nil {
		return f.createErr
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) SetBusiness(context.Context, string, *string) error { return nil }
func (f *fakeUsers) Delete(context.Context, string) error               { return nil }

func TestResolver_Resolve(t *testing.T) {
	biz := "biz-x"
	verifier := &fakeVerifier{claims: map[string]*models.SupabaseClaims{
		"tok-known": {Email: "known@example.com"},
		"tok-new":   {Email: "jane.doe@example.com", UserMetadata: map[string]interface{}{"name": "Jane"}},
	}}
	verifier.claims["tok-known"].Subject = "u-known"
	verifier.claims["tok-new"].Subject = "u-new"

	users := &fakeUsers{users: map[string]*models.User{
		"u-known": {ID: "u-known", Role: models.UserRoleAdmin, BusinessID: &biz},
	}}
	r := NewResolver(verifier, users, testLogger())
	ctx := context.Background()

	t.Run("existing user carries stored affiliation", func(t *testing.T) {
		p, err := r.Resolve(ctx, "tok-known")
		if err != nil {
			t.Fatal(err)
		}
		if p.UserID != "u-known" || !p.MemberOf("biz-x") || !p.IsAdmin() {
			t.Errorf("principal = %+v", p)
		}
	})

	t.Run("first sight provisions member", func(t *testing.T) {
		p, err := r.Resolve(ctx, "tok-new")
		if err != nil {
			t.Fatal(err)
		}
		if p.UserID != "u-new" || p.BusinessID != nil || p.Role != models.UserRoleMember {
			t.Errorf("principal = %+v", p)
		}
		if users.users["u-new"].Name != "Jane" {
			t.Errorf("name = %q", users.users["u-new"].Name)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		if _, err := r.Resolve(ctx, "bogus"); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("lost provisioning race re-reads", func(t *testing.T) {
		racy := &fakeUsers{users: map[string]*models.User{}, lostRace: true}
		rr := NewResolver(verifier, racy, testLogger())
		p, err := rr.Resolve(ctx, "tok-new")
		if err != nil {
			t.Fatal(err)
		}
		if p.UserID != "u-new" || racy.creates != 1 {
			t.Errorf("principal = %+v, creates = %d", p, racy.creates)
		}
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		broken := &fakeUsers{users: map[string]*models.User{}, createErr: errors.New("db down")}
		rr := NewResolver(verifier, broken, testLogger())
		if _, err := rr.Resolve(ctx, "tok-new"); err == nil || errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("err = %v", err)
		}
	})
}
