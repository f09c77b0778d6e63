package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNoSubject = errors.New("session token has no subject")

// Identity is the opaque user the process acts as.
type Identity struct {
	UID       string
	Anonymous bool
}

type Provider interface {
	Resolve(ctx context.Context) (Identity, error)
}

// TokenProvider resolves the identity from a pre-issued session token. The
// token's subject becomes the uid. Without a secret the signature is not
// checked.
type TokenProvider struct {
	Token  string
	Secret []byte
}

func (p *TokenProvider) Resolve(ctx context.Context) (Identity, error) {
	claims := &jwt.RegisteredClaims{}
	if len(p.Secret) == 0 {
		if _, _, err := jwt.NewParser().ParseUnverified(p.Token, claims); err != nil {
			return Identity{}, fmt.Errorf("failed to parse session token: %w", err)
		}
	} else {
		_, err := jwt.ParseWithClaims(p.Token, claims, func(t *jwt.Token) (interface{}, error) {
			return p.Secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return Identity{}, fmt.Errorf("failed to verify session token: %w", err)
		}
	}
	if claims.Subject == "" {
		return Identity{}, ErrNoSubject
	}
	return Identity{UID: claims.Subject}, nil
}

// AnonymousProvider mints a fresh anonymous identity.
type AnonymousProvider struct{}

func (AnonymousProvider) Resolve(ctx context.Context) (Identity, error) {
	return Identity{UID: uuid.NewString(), Anonymous: true}, nil
}

// NewProvider picks token-based resolution when a token is configured.
func NewProvider(token, secret string) Provider {
	if token != "" {
		return &TokenProvider{Token: token, Secret: []byte(secret)}
	}
	return AnonymousProvider{}
}

// Session holds the resolved identity for the process. Listeners registered
// with OnChange are called, in registration order, whenever it is set or
// cleared.
type Session struct {
	mu        sync.RWMutex
	current   *Identity
	listeners []func(Identity, bool)
	logger    *zap.Logger
}

func NewSession(logger *zap.Logger) *Session {
	return &Session{logger: logger}
}

// Resolve runs the provider once. A failure is logged and leaves the session
// unresolved.
func (s *Session) Resolve(ctx context.Context, p Provider) bool {
	id, err := p.Resolve(ctx)
	if err != nil {
		s.logger.Error("Auth resolution failed", zap.Error(err))
		return false
	}
	s.set(&id)
	s.logger.Info("Identity resolved",
		zap.String("uid", id.UID),
		zap.Bool("anonymous", id.Anonymous))
	return true
}

// SignOut clears the identity.
func (s *Session) SignOut() {
	s.set(nil)
	s.logger.Info("Identity cleared")
}

func (s *Session) Current() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Identity{}, false
	}
	return *s.current, true
}

func (s *Session) OnChange(fn func(id Identity, resolved bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) set(id *Identity) {
	s.mu.Lock()
	s.current = id
	listeners := append([]func(Identity, bool)(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		if id == nil {
			fn(Identity{}, false)
		} else {
			fn(*id, true)
		}
	}
}
