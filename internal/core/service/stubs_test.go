package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/linkrelay/panel/internal/core/domain"
)

// ---------------------------------------------------------------------------
// In-memory stubs shared by the service tests
// ---------------------------------------------------------------------------

type stubActorRepo struct {
	mu      sync.Mutex
	byID    map[int64]*domain.Actor
	nextID  int64
	findErr error // if set, every lookup returns this error

	passwordUpdates map[int64]string
	statusUpdates   int

	// SaveStatus behaves like one transaction: pauseErr fails it as a whole.
	pauseErr   error
	paused     []int64
	cacheErr   error
	cacheBumps int
}

func newStubActorRepo(actors ...*domain.Actor) *stubActorRepo {
	r := &stubActorRepo{
		byID:            make(map[int64]*domain.Actor),
		nextID:          100,
		passwordUpdates: make(map[int64]string),
	}
	for _, a := range actors {
		clone := *a
		r.byID[a.ID] = &clone
	}
	return r
}

func (r *stubActorRepo) FindByID(_ context.Context, id int64) (*domain.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	a, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrActorNotFound
	}
	clone := *a
	return &clone, nil
}

func (r *stubActorRepo) FindByUsername(_ context.Context, username string) (*domain.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, a := range r.byID {
		if strings.EqualFold(a.Username, username) {
			clone := *a
			return &clone, nil
		}
	}
	return nil, domain.ErrActorNotFound
}

func (r *stubActorRepo) Create(_ context.Context, actor *domain.Actor) (*domain.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if strings.EqualFold(a.Username, actor.Username) {
			return nil, domain.ErrUserExists
		}
	}
	r.nextID++
	clone := *actor
	clone.ID = r.nextID
	r.byID[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *stubActorRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return domain.ErrActorNotFound
	}
	a.PasswordHash = hash
	r.passwordUpdates[id] = hash
	return nil
}

func (r *stubActorRepo) SaveStatus(_ context.Context, actor *domain.Actor, pause bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[actor.ID]; !ok {
		return 0, domain.ErrActorNotFound
	}
	if pause && r.pauseErr != nil {
		return 0, r.pauseErr
	}
	clone := *actor
	r.byID[actor.ID] = &clone
	r.statusUpdates++
	if !pause {
		return 0, nil
	}
	r.paused = append(r.paused, actor.ID)
	return 3, nil
}

func (r *stubActorRepo) BumpCacheVersion(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cacheErr != nil {
		return r.cacheErr
	}
	r.cacheBumps++
	return nil
}

// set replaces a stored actor, simulating an out-of-band write.
func (r *stubActorRepo) set(a *domain.Actor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *a
	r.byID[a.ID] = &clone
}

func (r *stubActorRepo) remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// fakeHasher stores "hashed:<password>" and counts Verify calls. delay
// stands in for the cost of bcrypt.
type fakeHasher struct {
	mu       sync.Mutex
	verifies int
	delay    time.Duration
}

func (h *fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (h *fakeHasher) Verify(password, hash string) bool {
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	return hash == "hashed:"+password
}

func (h *fakeHasher) verifyCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifies
}

type recordingAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *recordingAudit) Record(e domain.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAudit) last() (domain.AuditEvent, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) == 0 {
		return domain.AuditEvent{}, false
	}
	return a.events[len(a.events)-1], true
}

func (a *recordingAudit) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func adminActor() *domain.Actor {
	return &domain.Actor{ID: 1, Username: "root", PasswordHash: "hashed:rootpass", Role: domain.RoleAdmin, IsActive: true}
}

func memberActor() *domain.Actor {
	return &domain.Actor{ID: 2, Username: "Alice", PasswordHash: "hashed:alicepass", Role: domain.RoleUser, IsActive: true, BotEnabled: true}
}

func int64Ptr(v int64) *int64 { return &v }
