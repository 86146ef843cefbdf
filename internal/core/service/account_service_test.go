package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/linkrelay/panel/internal/core/domain"
	"github.com/linkrelay/panel/internal/core/ports"
)

type accountFixture struct {
	svc   *AccountService
	repo  *stubActorRepo
	audit *recordingAudit
}

func newAccountFixture(actors ...*domain.Actor) *accountFixture {
	f := &accountFixture{
		repo:  newStubActorRepo(actors...),
		audit: &recordingAudit{},
	}
	f.svc = NewAccountService(f.repo, f.repo, &fakeHasher{}, f.audit, nil, zerolog.Nop())
	return f
}

func boolPtr(b bool) *bool { return &b }

func TestAccountService_ChangePassword_Self(t *testing.T) {
	f := newAccountFixture(memberActor())
	self := domain.Direct{Actor: memberActor()}
	ctx := context.Background()

	err := f.svc.ChangePassword(ctx, self, ports.ChangePasswordInput{TargetUserID: 2, NewPassword: "newpass"})
	if !errors.Is(err, domain.ErrCurrentPasswordRequired) {
		t.Fatalf("expected ErrCurrentPasswordRequired, got %v", err)
	}

	err = f.svc.ChangePassword(ctx, self, ports.ChangePasswordInput{TargetUserID: 2, CurrentPassword: "nope", NewPassword: "newpass"})
	if !errors.Is(err, domain.ErrCurrentPasswordMismatch) {
		t.Fatalf("expected ErrCurrentPasswordMismatch, got %v", err)
	}

	err = f.svc.ChangePassword(ctx, self, ports.ChangePasswordInput{TargetUserID: 2, CurrentPassword: "alicepass", NewPassword: "newpass"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.repo.passwordUpdates[2] != "hashed:newpass" {
		t.Fatalf("password not stored, got %q", f.repo.passwordUpdates[2])
	}

	ev, _ := f.audit.last()
	if ev.Action != domain.AuditPasswordChange || ev.ActorID != 2 {
		t.Fatalf("unexpected audit event %+v", ev)
	}
}

func TestAccountService_ChangePassword_Rules(t *testing.T) {
	other := memberActor()
	other.ID = 3
	other.Username = "bob"
	f := newAccountFixture(adminActor(), memberActor(), other)
	ctx := context.Background()

	err := f.svc.ChangePassword(ctx, domain.Direct{Actor: memberActor()}, ports.ChangePasswordInput{TargetUserID: 3, CurrentPassword: "x", NewPassword: "newpass"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("member changing another member: expected ErrForbidden, got %v", err)
	}

	err = f.svc.ChangePassword(ctx, domain.Direct{Actor: memberActor()}, ports.ChangePasswordInput{TargetUserID: 2, CurrentPassword: "alicepass", NewPassword: "12345"})
	if !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("short password: expected ErrWeakPassword, got %v", err)
	}

	if err := f.svc.ChangePassword(ctx, domain.Direct{Actor: adminActor()}, ports.ChangePasswordInput{TargetUserID: 3, NewPassword: "resetpw"}); err != nil {
		t.Fatalf("admin reset should not need the current password, got %v", err)
	}
	if f.repo.passwordUpdates[3] != "hashed:resetpw" {
		t.Fatal("admin reset not stored")
	}
}

func TestAccountService_ChangePassword_WhileImpersonating(t *testing.T) {
	f := newAccountFixture(adminActor(), memberActor())
	imp, err := domain.NewImpersonation(adminActor(), memberActor())
	if err != nil {
		t.Fatal(err)
	}

	if err := f.svc.ChangePassword(context.Background(), imp, ports.ChangePasswordInput{TargetUserID: 2, NewPassword: "fromadmin"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ev, _ := f.audit.last()
	if ev.ActorID != 1 || ev.ActorRole != domain.RoleAdmin {
		t.Fatalf("audit must name the real admin, got %+v", ev)
	}
}

func TestAccountService_SetStatus_BanPausesAssignments(t *testing.T) {
	f := newAccountFixture(adminActor(), memberActor())

	got, err := f.svc.SetStatus(context.Background(), domain.Direct{Actor: adminActor()}, 2,
		domain.AccountStatus{IsBanned: boolPtr(true), BannedReason: "spam"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsBanned || got.BannedAt == nil || got.BotEnabled {
		t.Fatalf("ban not applied: %+v", got)
	}

	stored, _ := f.repo.FindByID(context.Background(), 2)
	if !stored.IsBanned || stored.BannedReason != "spam" {
		t.Fatalf("ban not persisted: %+v", stored)
	}
	if len(f.repo.paused) != 1 || f.repo.paused[0] != 2 {
		t.Fatalf("expected assignments paused for 2, got %v", f.repo.paused)
	}
	if f.repo.cacheBumps != 1 {
		t.Fatalf("expected one bot cache invalidation, got %d", f.repo.cacheBumps)
	}
}

func TestAccountService_SetStatus_PauseFailureKeepsStanding(t *testing.T) {
	f := newAccountFixture(adminActor(), memberActor())
	boom := errors.New("user_channels unavailable")
	f.repo.pauseErr = boom

	_, err := f.svc.SetStatus(context.Background(), domain.Direct{Actor: adminActor()}, 2,
		domain.AccountStatus{IsBanned: boolPtr(true)}, "")
	if !errors.Is(err, boom) {
		t.Fatalf("expected the pause error, got %v", err)
	}

	stored, _ := f.repo.FindByID(context.Background(), 2)
	if stored.IsBanned || !stored.BotEnabled {
		t.Fatalf("ban must not be stored when the pause fails: %+v", stored)
	}
	if f.audit.count() != 0 || f.repo.cacheBumps != 0 {
		t.Fatal("failed change must not be audited or invalidate the cache")
	}
}

func TestAccountService_SetStatus_CacheFailureIsNotFatal(t *testing.T) {
	f := newAccountFixture(adminActor(), memberActor())
	f.repo.cacheErr = errors.New("cache_version missing")

	got, err := f.svc.SetStatus(context.Background(), domain.Direct{Actor: adminActor()}, 2,
		domain.AccountStatus{IsActive: boolPtr(false)}, "")
	if err != nil {
		t.Fatalf("cache invalidation errors must not fail the change, got %v", err)
	}
	if got.IsActive || len(f.repo.paused) != 1 {
		t.Fatalf("deactivation not applied: %+v paused=%v", got, f.repo.paused)
	}
	if f.audit.count() != 1 {
		t.Fatalf("expected the change audited, got %d events", f.audit.count())
	}
}

func TestAccountService_SetStatus_ActivateDoesNotPause(t *testing.T) {
	idle := memberActor()
	idle.IsActive = false
	f := newAccountFixture(adminActor(), idle)

	if _, err := f.svc.SetStatus(context.Background(), domain.Direct{Actor: adminActor()}, 2,
		domain.AccountStatus{IsActive: boolPtr(true)}, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.repo.paused) != 0 {
		t.Fatal("activation must not pause assignments")
	}
	if f.repo.statusUpdates != 1 || f.repo.cacheBumps != 1 {
		t.Fatalf("expected one write and one invalidation, got %d/%d", f.repo.statusUpdates, f.repo.cacheBumps)
	}
}

func TestAccountService_SetStatus_Rejections(t *testing.T) {
	f := newAccountFixture(adminActor(), memberActor())
	ctx := context.Background()
	ban := domain.AccountStatus{IsBanned: boolPtr(true)}

	if _, err := f.svc.SetStatus(ctx, domain.Direct{Actor: memberActor()}, 2, ban, ""); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("member caller: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, domain.Direct{Actor: adminActor()}, 1, ban, ""); !errors.Is(err, domain.ErrActorNotFound) {
		t.Fatalf("admin target: expected ErrActorNotFound, got %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, domain.Direct{Actor: adminActor()}, 42, ban, ""); !errors.Is(err, domain.ErrActorNotFound) {
		t.Fatalf("missing target: expected ErrActorNotFound, got %v", err)
	}
	if f.repo.statusUpdates != 0 {
		t.Fatal("rejected calls must not write")
	}
}

func TestAccountService_EnsureAdmin(t *testing.T) {
	f := newAccountFixture(memberActor())
	ctx := context.Background()

	created, err := f.svc.EnsureAdmin(ctx, "superadmin", "bootstrap")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Role != domain.RoleAdmin || created.PasswordHash != "hashed:bootstrap" || created.ID == 0 {
		t.Fatalf("unexpected admin: %+v", created)
	}

	again, err := f.svc.EnsureAdmin(ctx, "SuperAdmin", "rotated")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.ID != created.ID || f.repo.passwordUpdates[created.ID] != "hashed:rotated" {
		t.Fatal("second call should rotate the existing admin's password")
	}

	if _, err := f.svc.EnsureAdmin(ctx, "alice", "whatever"); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("member username: expected ErrUserExists, got %v", err)
	}
	if _, err := f.svc.EnsureAdmin(ctx, "x", "123"); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("short password: expected ErrWeakPassword, got %v", err)
	}
}
