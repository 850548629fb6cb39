package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
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
	messages   repositories.MessageRepository
	convSvc    services.ConversationService
	msgSvc     services.MessageService
	locks      *Locker
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
		messages:   memory.NewMessageRepository(store),
		locks:      NewLocker(),
	}
	store.SetClock(func() time.Time { return env.now })

	engine := authsvc.NewEngine(env.grants, nil, time.Second, logger)
	engine.SetClock(func() time.Time { return env.now })
	conversations := memory.NewConversationRepository(store)
	tx := memory.NewTransactionManager(store)

	env.convSvc = NewConversationService(conversations, engine, registry, tx, env.locks, logger)
	env.msgSvc = NewMessageService(conversations, env.messages, engine, registry, tx, env.locks, logger)
	return env
}

func (e *testEnv) addUser(t *testing.T, id string, businessID *string) models.Principal {
	t.Helper()
	u := &models.User{ID: id, Email: id + "@example.com", Role: models.UserRoleMember}
	if err := e.users.Create(e.ctx, u); err != nil {
		t.Fatal(err)
	}
	if businessID != nil {
		if err := e.users.SetBusiness(e.ctx, id, businessID); err != nil {
			t.Fatal(err)
		}
	}
	return models.Principal{UserID: id, BusinessID: businessID, Role: models.UserRoleMember}
}

func (e *testEnv) addBusiness(t *testing.T, owner string) string {
	t.Helper()
	b := &models.Business{OwnerID: owner, Name: owner + "-biz"}
	if err := e.businesses.Create(e.ctx, b); err != nil {
		t.Fatal(err)
	}
	return b.ID
}

func (e *testEnv) conversation(t *testing.T, owner models.Principal, vis models.Visibility, contents ...string) *models.Conversation {
	t.Helper()
	conv, err := e.convSvc.CreateConversation(e.ctx, owner, &services.CreateConversationRequest{Title: "chat", Visibility: vis})
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) > 0 {
		req := &services.SaveMessagesRequest{}
		for _, c := range contents {
			req.Messages = append(req.Messages, services.NewMessage{Role: models.MessageRoleUser, Content: c})
		}
		if _, err := e.msgSvc.SaveMessages(e.ctx, owner, conv.ID, req); err != nil {
			t.Fatal(err)
		}
	}
	return conv
}

func (e *testEnv) count(t *testing.T, conversationID string) int {
	t.Helper()
	n, err := e.messages.CountByConversation(e.ctx, conversationID)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func denialReason(err error) string {
	var denied *domain.DeniedError
	if errors.As(err, &denied) {
		return denied.Reason
	}
	return ""
}

// world: alice owns X and writes a private conversation scoped to X.
// bob is a member of X, eve belongs to Z, drifter has no business.
type world struct {
	env                   *testEnv
	x, z                  string
	alice, bob, eve, drif models.Principal
}

func newWorld(t *testing.T) *world {
	t.Helper()
	env := newTestEnv(t)
	w := &world{env: env}
	env.addUser(t, "alice", nil)
	env.addUser(t, "zed", nil)
	w.x = env.addBusiness(t, "alice")
	w.z = env.addBusiness(t, "zed")
	if err := env.users.SetBusiness(env.ctx, "alice", &w.x); err != nil {
		t.Fatal(err)
	}
	w.alice = models.Principal{UserID: "alice", BusinessID: &w.x, Role: models.UserRoleMember}
	w.bob = env.addUser(t, "bob", &w.x)
	w.eve = env.addUser(t, "eve", &w.z)
	w.drif = env.addUser(t, "drifter", nil)
	return w
}

func TestDeleteMessagesAfter_DeniedLeavesMessages(t *testing.T) {
	w := newWorld(t)
	env := w.env
	conv := env.conversation(t, w.alice, models.VisibilityPrivate, "one", "two", "three")

	tests := []struct {
		name       string
		principal  models.Principal
		wantReason models.DecisionReason
	}{
		{"other tenant without grant", w.eve, models.ReasonNoGrant},
		{"no affiliation", w.drif, models.ReasonNoTenantAffiliation},
		{"anonymous", models.Principal{}, models.ReasonNoTenantAffiliation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := env.count(t, conv.ID)
			n, err := env.msgSvc.DeleteMessagesAfter(env.ctx, tt.principal, conv.ID,
				&services.DeleteMessagesAfterRequest{After: env.now.Add(-time.Hour)})
			if !errors.Is(err, domain.ErrForbidden) {
				t.Fatalf("err = %v, want forbidden", err)
			}
			if got := denialReason(err); got != string(tt.wantReason) {
				t.Errorf("reason = %q, want %q", got, tt.wantReason)
			}
			if n != 0 || env.count(t, conv.ID) != before {
				t.Errorf("denied delete touched messages: n=%d count=%d before=%d", n, env.count(t, conv.ID), before)
			}
		})
	}

	// a member of X may regenerate
	n, err := env.msgSvc.DeleteMessagesAfter(env.ctx, w.bob, conv.ID,
		&services.DeleteMessagesAfterRequest{After: env.now})
	if err != nil || n != 3 {
		t.Fatalf("member delete = %d, %v", n, err)
	}
}

func TestDeleteMessagesAfter_Bounds(t *testing.T) {
	w := newWorld(t)
	env := w.env
	t0 := env.now
	conv := env.conversation(t, w.alice, models.VisibilityPrivate, "early")
	other := env.conversation(t, w.alice, models.VisibilityPrivate, "elsewhere")

	env.now = t0.Add(time.Minute)
	if _, err := env.msgSvc.SaveMessages(env.ctx, w.alice, conv.ID, &services.SaveMessagesRequest{
		Messages: []services.NewMessage{
			{Role: models.MessageRoleUser, Content: "edit me"},
			{Role: models.MessageRoleAssistant, Content: "old answer"},
		},
	}); err != nil {
		t.Fatal(err)
	}
	observed := int64(3)

	// a concurrent writer lands after the regenerate request observed sequence 3
	if _, err := env.msgSvc.SaveMessages(env.ctx, w.bob, conv.ID, &services.SaveMessagesRequest{
		Messages: []services.NewMessage{{Role: models.MessageRoleUser, Content: "newer"}},
	}); err != nil {
		t.Fatal(err)
	}

	n, err := env.msgSvc.DeleteMessagesAfter(env.ctx, w.alice, conv.ID, &services.DeleteMessagesAfterRequest{
		After:        t0.Add(time.Minute),
		UpToSequence: &observed,
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}

	left, err := env.msgSvc.ListMessages(env.ctx, w.alice, conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	var contents []string
	for _, m := range left {
		contents = append(contents, m.Content)
	}
	if len(contents) != 2 || contents[0] != "early" || contents[1] != "newer" {
		t.Errorf("remaining = %v, want [early newer]", contents)
	}
	if env.count(t, other.ID) != 1 {
		t.Error("delete crossed into another conversation")
	}

	if _, err := env.msgSvc.DeleteMessagesAfter(env.ctx, w.alice, conv.ID, &services.DeleteMessagesAfterRequest{}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("missing timestamp err = %v", err)
	}
	if _, err := env.msgSvc.DeleteMessagesAfter(env.ctx, w.alice, "missing", &services.DeleteMessagesAfterRequest{After: t0}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing conversation err = %v", err)
	}
}

func TestPublicConversation(t *testing.T) {
	w := newWorld(t)
	env := w.env
	public := env.conversation(t, w.alice, models.VisibilityPublic, "hello world")
	private := env.conversation(t, w.alice, models.VisibilityPrivate, "secret")
	anon := models.Principal{}

	if _, err := env.convSvc.GetConversation(env.ctx, anon, public.ID); err != nil {
		t.Errorf("anonymous read of public conversation: %v", err)
	}
	msgs, err := env.msgSvc.ListMessages(env.ctx, anon, public.ID)
	if err != nil || len(msgs) != 1 {
		t.Errorf("anonymous list = %d, %v", len(msgs), err)
	}
	if _, err := env.msgSvc.GetMessage(env.ctx, w.eve, msgs[0].ID); err != nil {
		t.Errorf("other tenant read of public message: %v", err)
	}

	if _, err := env.convSvc.GetConversation(env.ctx, anon, private.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("anonymous read of private conversation err = %v", err)
	}
	_, err = env.convSvc.GetConversation(env.ctx, w.drif, private.ID)
	if got := denialReason(err); got != string(models.ReasonNoTenantAffiliation) {
		t.Errorf("unaffiliated read reason = %q", got)
	}

	// public does not extend to writes
	_, err = env.msgSvc.SaveMessages(env.ctx, w.eve, public.ID, &services.SaveMessagesRequest{
		Messages: []services.NewMessage{{Role: models.MessageRoleUser, Content: "spam"}},
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("outsider write to public conversation err = %v", err)
	}
	vis := models.VisibilityPrivate
	if _, err := env.convSvc.UpdateConversation(env.ctx, w.eve, public.ID, &services.UpdateConversationRequest{Visibility: &vis}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("outsider visibility change err = %v", err)
	}
}

func TestVoteRequiresWrite(t *testing.T) {
	w := newWorld(t)
	env := w.env
	conv := env.conversation(t, w.alice, models.VisibilityPublic, "vote on me")
	msgs, _ := env.msgSvc.ListMessages(env.ctx, w.alice, conv.ID)
	id := msgs[0].ID

	if _, err := env.msgSvc.Vote(env.ctx, w.eve, id, models.VoteUp); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("outsider vote err = %v", err)
	}
	if _, err := env.msgSvc.Vote(env.ctx, w.bob, id, "sideways"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bad direction err = %v", err)
	}
	m, err := env.msgSvc.Vote(env.ctx, w.bob, id, models.VoteUp)
	if err != nil || m.Upvotes != 1 {
		t.Fatalf("member vote = %+v, %v", m, err)
	}
	m, err = env.msgSvc.Vote(env.ctx, w.alice, id, models.VoteDown)
	if err != nil || m.Upvotes != 1 || m.Downvotes != 1 {
		t.Fatalf("owner vote = %+v, %v", m, err)
	}
}

func TestCrossTenantGrantOnConversations(t *testing.T) {
	w := newWorld(t)
	env := w.env
	conv := env.conversation(t, w.alice, models.VisibilityPrivate, "shared")

	if _, err := env.convSvc.ListBusinessConversations(env.ctx, w.eve, w.x); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("list without grant err = %v", err)
	}

	grant := &models.BusinessAccess{
		TargetBusinessID:    w.x,
		AccessingBusinessID: w.z,
		HasAccess:           true,
		AccessType:          "read-conversations",
	}
	if err := env.grants.Upsert(env.ctx, grant); err != nil {
		t.Fatal(err)
	}

	list, err := env.convSvc.ListBusinessConversations(env.ctx, w.eve, w.x)
	if err != nil || len(list) != 1 {
		t.Fatalf("list with grant = %d, %v", len(list), err)
	}
	if _, err := env.msgSvc.ListMessages(env.ctx, w.eve, conv.ID); err != nil {
		t.Errorf("read with grant: %v", err)
	}
	_, err = env.msgSvc.DeleteMessagesAfter(env.ctx, w.eve, conv.ID, &services.DeleteMessagesAfterRequest{After: env.now})
	if got := denialReason(err); got != string(models.ReasonNoGrant) {
		t.Errorf("read grant must not allow writes, reason = %q (%v)", got, err)
	}
}

func TestCreateConversation(t *testing.T) {
	w := newWorld(t)
	env := w.env

	conv, err := env.convSvc.CreateConversation(env.ctx, w.bob, &services.CreateConversationRequest{Title: "  hi  "})
	if err != nil {
		t.Fatal(err)
	}
	if conv.Visibility != models.VisibilityPrivate || conv.Title != "hi" || conv.BusinessID == nil || *conv.BusinessID != w.x {
		t.Errorf("conversation = %+v", conv)
	}

	tests := []struct {
		name      string
		principal models.Principal
		req       services.CreateConversationRequest
		wantErr   error
	}{
		{"anonymous", models.Principal{}, services.CreateConversationRequest{}, domain.ErrUnauthorized},
		{"foreign business", w.eve, services.CreateConversationRequest{BusinessID: &w.x}, domain.ErrForbidden},
		{"bad visibility", w.bob, services.CreateConversationRequest{Visibility: "friends"}, domain.ErrValidation},
		{"unaffiliated personal chat", w.drif, services.CreateConversationRequest{Title: "mine"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := env.convSvc.CreateConversation(env.ctx, tt.principal, &req)
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

	mine, err := env.convSvc.ListMyConversations(env.ctx, w.drif)
	if err != nil || len(mine) != 1 || mine[0].BusinessID != nil {
		t.Errorf("drifter conversations = %+v, %v", mine, err)
	}
}

func TestDeleteConversation(t *testing.T) {
	w := newWorld(t)
	env := w.env
	conv := env.conversation(t, w.alice, models.VisibilityPrivate, "a", "b")

	if err := env.convSvc.DeleteConversation(env.ctx, w.eve, conv.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("outsider delete err = %v", err)
	}
	if err := env.convSvc.DeleteConversation(env.ctx, w.alice, conv.ID); err != nil {
		t.Fatal(err)
	}
	if env.count(t, conv.ID) != 0 {
		t.Error("messages survived conversation delete")
	}
	if _, err := env.convSvc.GetConversation(env.ctx, w.alice, conv.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get after delete err = %v", err)
	}
}

func TestSaveMessages_ConcurrentSequences(t *testing.T) {
	w := newWorld(t)
	env := w.env
	conv := env.conversation(t, w.alice, models.VisibilityPrivate)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.msgSvc.SaveMessages(env.ctx, w.bob, conv.ID, &services.SaveMessagesRequest{
				Messages: []services.NewMessage{
					{Role: models.MessageRoleUser, Content: "q"},
					{Role: models.MessageRoleAssistant, Content: "a"},
				},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := env.msgSvc.ListMessages(env.ctx, w.alice, conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2*writers {
		t.Fatalf("got %d messages", len(msgs))
	}
	for i, m := range msgs {
		if m.Sequence != int64(i+1) {
			t.Fatalf("sequence gap at %d: %d", i, m.Sequence)
		}
		// each batch lands contiguously
		if want := models.MessageRoleUser; i%2 == 0 && m.Role != want {
			t.Errorf("message %d role = %s, batches interleaved", i, m.Role)
		}
	}
	if env.locks.held() != 0 {
		t.Errorf("locker still tracks %d conversations", env.locks.held())
	}
}

func TestSaveMessages_Validation(t *testing.T) {
	w := newWorld(t)
	env := w.env
	conv := env.conversation(t, w.alice, models.VisibilityPrivate)

	tests := []struct {
		name string
		msgs []services.NewMessage
	}{
		{"empty batch", nil},
		{"bad role", []services.NewMessage{{Role: "robot", Content: "x"}}},
		{"empty content", []services.NewMessage{{Role: models.MessageRoleUser}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.msgSvc.SaveMessages(env.ctx, w.alice, conv.ID, &services.SaveMessagesRequest{Messages: tt.msgs})
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
		})
	}
}
