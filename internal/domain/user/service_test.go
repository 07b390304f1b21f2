package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/alcortex/alcortex/internal/platform/kvstore"
)

type fakeRegistry struct {
	users map[string]*User
	down  bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{users: make(map[string]*User)}
}

var errRegistryDown = errors.New("connection refused")

func (r *fakeRegistry) Register(_ context.Context, u *User) error {
	if r.down {
		return errRegistryDown
	}
	r.users[u.Email] = u
	return nil
}

func (r *fakeRegistry) GetByEmail(_ context.Context, email string) (*User, error) {
	if r.down {
		return nil, errRegistryDown
	}
	u, ok := r.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (r *fakeRegistry) List(_ context.Context) ([]*User, error) {
	if r.down {
		return nil, errRegistryDown
	}
	out := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func newTestService(remote Repository) (*Service, *LocalRegistry) {
	local := NewLocalRegistry(kvstore.NewMemoryStore())
	return NewService(remote, local, time.Second, zerolog.Nop()), local
}

func TestService_RegisterNormalizesEmail(t *testing.T) {
	remote := newFakeRegistry()
	svc, _ := newTestService(remote)

	u := &User{Email: "  Dr.Sinta@Alcortex.ID ", Name: "Sinta"}
	if err := svc.Register(context.Background(), u); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, ok := remote.users["dr.sinta@alcortex.id"]; !ok {
		t.Fatalf("email not normalized, registry holds %v", remote.users)
	}
	if u.RegisteredAt.IsZero() {
		t.Fatal("registration time not stamped")
	}
}

func TestService_RegisterRejectsBadEmail(t *testing.T) {
	svc, _ := newTestService(newFakeRegistry())

	for _, email := range []string{"", "not-an-email", "@@"} {
		err := svc.Register(context.Background(), &User{Email: email})
		if !errors.Is(err, ErrInvalidEmail) {
			t.Fatalf("Register(%q) = %v, want ErrInvalidEmail", email, err)
		}
	}
}

func TestService_RegisterFallsBackLocally(t *testing.T) {
	remote := newFakeRegistry()
	remote.down = true
	svc, local := newTestService(remote)
	ctx := context.Background()

	if err := svc.Register(ctx, &User{Email: "dr.sinta@alcortex.id", Name: "Sinta"}); err != nil {
		t.Fatalf("Register with fallback: %v", err)
	}
	u, err := local.GetByEmail(ctx, "dr.sinta@alcortex.id")
	if err != nil {
		t.Fatalf("local GetByEmail: %v", err)
	}
	if u.Name != "Sinta" {
		t.Fatalf("local user = %+v", u)
	}
}

func TestLocalRegistry_UpsertKeepsRegistrationTime(t *testing.T) {
	local := NewLocalRegistry(kvstore.NewMemoryStore())
	ctx := context.Background()
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := local.Register(ctx, &User{Email: "a@b.id", Name: "A", RegisteredAt: first}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := local.Register(ctx, &User{Email: "a@b.id", Name: "A2", RegisteredAt: first.Add(time.Hour)}); err != nil {
		t.Fatalf("Register update: %v", err)
	}

	users, err := local.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("got %d users, want 1", len(users))
	}
	if users[0].Name != "A2" || !users[0].RegisteredAt.Equal(first) {
		t.Fatalf("upsert result = %+v", users[0])
	}
}
