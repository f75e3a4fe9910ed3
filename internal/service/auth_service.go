package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"go-user-service/internal/event"
	"go-user-service/internal/model"
	"go-user-service/internal/token"
	"go-user-service/pkg/apierror"
)

const (
	AccessTokenLifetime  = 30 * time.Minute
	RefreshTokenLifetime = 7 * 24 * time.Hour
)

// UserStore is the credential store the authenticator reads and writes.
// Implementations return model.ErrNotFound, model.ErrMalformedIdentifier and
// model.ErrEmailTaken for the corresponding conditions.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByID(ctx context.Context, id string) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
}

type passwordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext string, hash string) bool
}

type tokenCodec interface {
	Issue(subject string, lifetime time.Duration) (string, error)
	Decode(tokenString string) (*token.Claims, error)
}

type AuthService struct {
	users  UserStore
	hasher passwordHasher
	tokens tokenCodec
	events event.Bus

	decoyOnce sync.Once
	decoyHash string
}

// NewAuthService wires the authenticator. events may be nil.
func NewAuthService(users UserStore, hasher passwordHasher, tokens tokenCodec, events event.Bus) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		events: events,
	}
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.PublicUser, error) {
	username := strings.TrimSpace(req.Username)
	admission := strings.TrimSpace(req.AdmissionNumber)
	email, err := parseEmail(req.Email)
	if err != nil {
		return model.PublicUser{}, err
	}

	if username == "" || admission == "" || req.Password == "" {
		return model.PublicUser{}, apierror.Wrap(model.ErrInvalidInput,
			"BAD_REQUEST", "username, email, admission_number and password are required", http.StatusBadRequest)
	}

	_, err = s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return model.PublicUser{}, model.ErrEmailTaken
	case !errors.Is(err, model.ErrNotFound):
		return model.PublicUser{}, fmt.Errorf("check email: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.PublicUser{}, apierror.Wrap(model.ErrInvalidInput,
			"BAD_REQUEST", "password cannot be hashed", http.StatusBadRequest)
	}

	// The store's unique email constraint still rejects a concurrent duplicate
	// that slipped past the check above.
	created, err := s.users.Create(ctx, model.User{
		Username:        username,
		Email:           email,
		AdmissionNumber: admission,
		PasswordHash:    hash,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, model.ErrEmailTaken) {
			return model.PublicUser{}, model.ErrEmailTaken
		}
		return model.PublicUser{}, fmt.Errorf("create user: %w", err)
	}

	s.publish(event.Event{Type: event.TypeUserRegistered, UserID: created.ID, Email: created.Email})
	return created.Public(), nil
}

func (s *AuthService) Login(ctx context.Context, email string, password string) (model.LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return model.LoginResult{}, model.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		// Same bcrypt work as a wrong password, so timing does not reveal
		// which emails are registered.
		s.hasher.Verify(password, s.decoy())
		s.publish(event.Event{Type: event.TypeUserLoginFailed, Email: email, Reason: "unknown email"})
		return model.LoginResult{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.LoginResult{}, fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.publish(event.Event{Type: event.TypeUserLoginFailed, UserID: user.ID, Email: email, Reason: "password mismatch"})
		return model.LoginResult{}, model.ErrInvalidCredentials
	}

	accessToken, err := s.tokens.Issue(user.ID, AccessTokenLifetime)
	if err != nil {
		return model.LoginResult{}, fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := s.tokens.Issue(user.ID, RefreshTokenLifetime)
	if err != nil {
		return model.LoginResult{}, fmt.Errorf("issue refresh token: %w", err)
	}

	s.publish(event.Event{Type: event.TypeUserLoggedIn, UserID: user.ID, Email: user.Email})

	return model.LoginResult{
		PublicUser:   user.Public(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Authenticate decodes tokenString and returns its subject without touching
// the store.
func (s *AuthService) Authenticate(tokenString string) (string, error) {
	claims, err := s.tokens.Decode(strings.TrimSpace(tokenString))
	if err != nil {
		return "", model.ErrUnauthorized
	}
	if claims.Subject == "" {
		return "", model.ErrUnauthorized
	}
	return claims.Subject, nil
}

// ResolveIdentity maps a token to the user it names. Every failure, including
// a subject that no longer exists, is model.ErrUnauthorized.
func (s *AuthService) ResolveIdentity(ctx context.Context, tokenString string) (model.PublicUser, error) {
	subject, err := s.Authenticate(tokenString)
	if err != nil {
		s.publish(event.Event{Type: event.TypeIdentityRejected, Reason: "invalid token"})
		return model.PublicUser{}, err
	}

	user, err := s.users.FindByID(ctx, subject)
	if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrMalformedIdentifier) {
		s.publish(event.Event{Type: event.TypeIdentityRejected, UserID: subject, Reason: "unknown subject"})
		return model.PublicUser{}, model.ErrUnauthorized
	}
	if err != nil {
		return model.PublicUser{}, fmt.Errorf("resolve identity: %w", err)
	}

	return user.Public(), nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id string) (model.PublicUser, error) {
	user, err := s.users.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return model.PublicUser{}, err
	}
	return user.Public(), nil
}

func (s *AuthService) decoy() string {
	s.decoyOnce.Do(func() {
		hash, err := s.hasher.Hash("decoy-password-never-issued")
		if err != nil {
			return
		}
		s.decoyHash = hash
	})
	return s.decoyHash
}

func (s *AuthService) publish(e event.Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(e)
}

func parseEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apierror.Wrap(model.ErrInvalidInput,
			"BAD_REQUEST", "username, email, admission_number and password are required", http.StatusBadRequest)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apierror.Wrap(model.ErrInvalidInput,
			"BAD_REQUEST", "email is not a valid address", http.StatusBadRequest)
	}
	return email, nil
}
