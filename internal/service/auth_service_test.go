package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-user-service/internal/event"
	"go-user-service/internal/model"
	"go-user-service/internal/password"
	"go-user-service/internal/repository"
	"go-user-service/internal/token"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

type fixture struct {
	svc   *AuthService
	repo  *repository.MemoryUserRepository
	clock *testClock
	bus   *event.InMemoryBus
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	codec, err := token.NewCodec("test-secret", token.WithClock(clock.Now))
	require.NoError(t, err)

	repo := repository.NewMemoryUserRepository()
	bus := event.NewBus()
	svc := NewAuthService(repo, password.NewHasher(bcrypt.MinCost), codec, bus)

	return fixture{svc: svc, repo: repo, clock: clock, bus: bus}
}

func registerAlice(t *testing.T, svc *AuthService) model.PublicUser {
	t.Helper()

	user, err := svc.Register(context.Background(), model.RegisterRequest{
		Username:        "alice",
		Email:           "a@x.com",
		AdmissionNumber: "A1",
		Password:        "pw",
	})
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	user := registerAlice(t, f.svc)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, "A1", user.AdmissionNumber)

	stored, err := f.repo.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "pw", stored.PasswordHash)
	assert.True(t, password.NewHasher(bcrypt.MinCost).Verify("pw", stored.PasswordHash))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Register(ctx, model.RegisterRequest{
		Username: "first", Email: "dup@x.com", AdmissionNumber: "D1", Password: "pw1",
	})
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, model.RegisterRequest{
		Username: "second", Email: " DUP@x.com", AdmissionNumber: "D2", Password: "pw2",
	})
	require.ErrorIs(t, err, model.ErrEmailTaken)

	count, err := f.repo.CountByEmail(ctx, "dup@x.com")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := f.repo.FindByEmail(ctx, "dup@x.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, "first", stored.Username)
	assert.Equal(t, "D1", stored.AdmissionNumber)
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	tests := []struct {
		name string
		req  model.RegisterRequest
	}{
		{name: "missing username", req: model.RegisterRequest{Email: "b@x.com", AdmissionNumber: "B1", Password: "pw"}},
		{name: "missing email", req: model.RegisterRequest{Username: "b", AdmissionNumber: "B1", Password: "pw"}},
		{name: "invalid email", req: model.RegisterRequest{Username: "b", Email: "not-an-email", AdmissionNumber: "B1", Password: "pw"}},
		{name: "display name email", req: model.RegisterRequest{Username: "b", Email: "Bob <b@x.com>", AdmissionNumber: "B1", Password: "pw"}},
		{name: "missing admission number", req: model.RegisterRequest{Username: "b", Email: "b@x.com", Password: "pw"}},
		{name: "missing password", req: model.RegisterRequest{Username: "b", Email: "b@x.com", AdmissionNumber: "B1"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tc.req)
			require.ErrorIs(t, err, model.ErrInvalidInput)
		})
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	user := registerAlice(t, f.svc)

	result, err := f.svc.Login(context.Background(), "A@x.com", "pw")
	require.NoError(t, err)

	assert.Equal(t, user, result.PublicUser)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.NotEqual(t, result.AccessToken, result.RefreshToken)
}

func TestLoginTokenLifetimes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	registerAlice(t, f.svc)

	result, err := f.svc.Login(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)

	codec, err := token.NewCodec("test-secret", token.WithClock(f.clock.Now))
	require.NoError(t, err)

	access, err := codec.Decode(result.AccessToken)
	require.NoError(t, err)
	assert.True(t, access.ExpiresAt.Equal(f.clock.now.Add(AccessTokenLifetime)))
	assert.Equal(t, result.ID, access.Subject)

	refresh, err := codec.Decode(result.RefreshToken)
	require.NoError(t, err)
	assert.True(t, refresh.ExpiresAt.Equal(f.clock.now.Add(RefreshTokenLifetime)))
	assert.Equal(t, result.ID, refresh.Subject)
}

func TestLoginInvalidCredentials(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	registerAlice(t, f.svc)

	_, err := f.svc.Login(context.Background(), "a@x.com", "wrong")
	require.ErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), "nobody@x.com", "pw")
	require.ErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), "", "pw")
	require.ErrorIs(t, err, model.ErrInvalidCredentials)
}

type countingHasher struct {
	password.Hasher
	verifies atomic.Int32
	hashes   atomic.Int32
}

func (h *countingHasher) Hash(plaintext string) (string, error) {
	h.hashes.Add(1)
	return h.Hasher.Hash(plaintext)
}

func (h *countingHasher) Verify(plaintext string, hash string) bool {
	h.verifies.Add(1)
	return h.Hasher.Verify(plaintext, hash)
}

func TestLoginUnknownEmailDoesPasswordWork(t *testing.T) {
	t.Parallel()

	codec, err := token.NewCodec("test-secret")
	require.NoError(t, err)
	hasher := &countingHasher{Hasher: *password.NewHasher(bcrypt.MinCost)}
	svc := NewAuthService(repository.NewMemoryUserRepository(), hasher, codec, nil)

	for i := 0; i < 3; i++ {
		_, err = svc.Login(context.Background(), "nobody@x.com", "pw")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)
	}

	assert.Equal(t, int32(3), hasher.verifies.Load())
	assert.Equal(t, int32(1), hasher.hashes.Load(), "decoy hash is computed once")
}

func TestResolveIdentity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	registerAlice(t, f.svc)

	result, err := f.svc.Login(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)

	user, err := f.svc.ResolveIdentity(context.Background(), result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, result.ID, user.ID)

	f.clock.now = f.clock.now.Add(AccessTokenLifetime + time.Second)
	_, err = f.svc.ResolveIdentity(context.Background(), result.AccessToken)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	// the refresh token outlives the access token
	_, err = f.svc.ResolveIdentity(context.Background(), result.RefreshToken)
	require.NoError(t, err)
}

func TestResolveIdentityTamperedToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	registerAlice(t, f.svc)

	result, err := f.svc.Login(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)

	tampered := []byte(result.AccessToken)
	i := len(tampered) - 10
	if tampered[i] == 'A' {
		tampered[i] = 'B'
	} else {
		tampered[i] = 'A'
	}

	_, err = f.svc.ResolveIdentity(context.Background(), string(tampered))
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestResolveIdentityMissingSubjectOrUser(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	codec, err := token.NewCodec("test-secret", token.WithClock(f.clock.Now))
	require.NoError(t, err)

	noSubject, err := codec.Issue("", time.Hour)
	require.NoError(t, err)
	_, err = f.svc.ResolveIdentity(context.Background(), noSubject)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	malformed, err := codec.Issue("not-an-id", time.Hour)
	require.NoError(t, err)
	_, err = f.svc.ResolveIdentity(context.Background(), malformed)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	user := registerAlice(t, f.svc)
	tok, err := codec.Issue(user.ID, time.Hour)
	require.NoError(t, err)
	require.NoError(t, f.repo.Delete(context.Background(), user.ID))

	_, err = f.svc.ResolveIdentity(context.Background(), tok)
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestEndToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, model.RegisterRequest{
		Username: "alice", Email: "a@x.com", AdmissionNumber: "A1", Password: "pw",
	})
	require.NoError(t, err)

	result, err := f.svc.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	user, err := f.svc.ResolveIdentity(ctx, result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)

	f.clock.now = f.clock.now.Add(AccessTokenLifetime)
	_, err = f.svc.ResolveIdentity(ctx, result.AccessToken)
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestGetUserByID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	user := registerAlice(t, f.svc)

	got, err := f.svc.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user, got)

	_, err = f.svc.GetUserByID(context.Background(), "bad-id")
	require.ErrorIs(t, err, model.ErrMalformedIdentifier)

	_, err = f.svc.GetUserByID(context.Background(), "65a1f0c2e4b0a1b2c3d4e5f6")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestEventsArePublished(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	events, unsubscribe := f.bus.Subscribe()
	defer unsubscribe()

	registerAlice(t, f.svc)
	_, err := f.svc.Login(context.Background(), "a@x.com", "wrong")
	require.Error(t, err)
	_, err = f.svc.Login(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)

	var got []event.Type
	for len(got) < 3 {
		select {
		case e := <-events:
			got = append(got, e.Type)
		case <-time.After(time.Second):
			t.Fatalf("only received %v", got)
		}
	}
	assert.Equal(t, []event.Type{event.TypeUserRegistered, event.TypeUserLoginFailed, event.TypeUserLoggedIn}, got)
}

func TestStoreFailuresPropagate(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("connection reset")
	codec, err := token.NewCodec("test-secret")
	require.NoError(t, err)

	repo := new(repository.MockUserRepository)
	repo.On("FindByEmail", mock.Anything, "a@x.com").Return(model.User{}, storeErr)
	svc := NewAuthService(repo, password.NewHasher(bcrypt.MinCost), codec, nil)

	_, err = svc.Login(context.Background(), "a@x.com", "pw")
	require.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = svc.Register(context.Background(), model.RegisterRequest{
		Username: "alice", Email: "a@x.com", AdmissionNumber: "A1", Password: "pw",
	})
	require.ErrorIs(t, err, storeErr)

	repo.AssertExpectations(t)
}

func TestRegisterRaceLosesToStoreConstraint(t *testing.T) {
	t.Parallel()

	codec, err := token.NewCodec("test-secret")
	require.NoError(t, err)

	repo := new(repository.MockUserRepository)
	repo.On("FindByEmail", mock.Anything, "race@x.com").Return(model.User{}, model.ErrNotFound)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(u model.User) bool {
		return u.Email == "race@x.com" && u.PasswordHash != "" && u.PasswordHash != "pw"
	})).Return(model.User{}, model.ErrEmailTaken)
	svc := NewAuthService(repo, password.NewHasher(bcrypt.MinCost), codec, nil)

	_, err = svc.Register(context.Background(), model.RegisterRequest{
		Username: "late", Email: "race@x.com", AdmissionNumber: "R1", Password: "pw",
	})
	require.ErrorIs(t, err, model.ErrEmailTaken)
	repo.AssertExpectations(t)
}

func TestResolveIdentityStoreFailure(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("timeout")
	codec, err := token.NewCodec("test-secret")
	require.NoError(t, err)

	repo := new(repository.MockUserRepository)
	repo.On("FindByID", mock.Anything, "65a1f0c2e4b0a1b2c3d4e5f6").Return(model.User{}, storeErr)
	svc := NewAuthService(repo, password.NewHasher(bcrypt.MinCost), codec, nil)

	tok, err := codec.Issue("65a1f0c2e4b0a1b2c3d4e5f6", time.Hour)
	require.NoError(t, err)

	_, err = svc.ResolveIdentity(context.Background(), tok)
	require.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, model.ErrUnauthorized)
}
