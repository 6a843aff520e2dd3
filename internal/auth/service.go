package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/penang-gov/surveillance/internal/shared/config"
	"github.com/penang-gov/surveillance/internal/shared/metrics"
	"golang.org/x/crypto/bcrypt"
)

// Service authenticates roles against their shared passwords and issues
// bearer tokens backed by revocable sessions.
type Service struct {
	store      Store
	jwtSecret  []byte
	sessionTTL time.Duration
	hashes     map[Role][]byte
}

// NewService hashes the configured role passwords and wires the store.
func NewService(cfg config.AuthConfig, store Store) (*Service, error) {
	hashes := make(map[Role][]byte, len(Roles))
	for role, password := range map[Role]string{
		RoleClinician:      cfg.ClinicianPassword,
		RoleEpidemiologist: cfg.EpidemiologistPassword,
		RoleAdmin:          cfg.AdminPassword,
	} {
		if password == "" {
			return nil, fmt.Errorf("no password configured for role %s", role)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password for role %s: %w", role, err)
		}
		hashes[role] = hash
	}

	return &Service{
		store:      store,
		jwtSecret:  []byte(cfg.JWTSecret),
		sessionTTL: cfg.SessionTTL,
		hashes:     hashes,
	}, nil
}

// Claims is the JWT payload for a role session
type Claims struct {
	Role      Role   `json:"role"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Login verifies the shared password for a role and returns a signed bearer
// token plus the session it refers to.
func (s *Service) Login(ctx context.Context, role Role, password, ipAddress string) (string, *Session, error) {
	if !role.Valid() {
		return "", nil, fmt.Errorf("unknown role %q", role)
	}

	if err := bcrypt.CompareHashAndPassword(s.hashes[role], []byte(password)); err != nil {
		metrics.RecordLoginAttempt(string(role), false)
		return "", nil, fmt.Errorf("invalid password for role %s", role)
	}

	now := time.Now()
	session := &Session{
		ID:        uuid.New().String(),
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
		IPAddress: ipAddress,
	}

	if err := s.store.Put(ctx, session); err != nil {
		return "", nil, fmt.Errorf("failed to store session: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:      role,
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(role),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	metrics.RecordLoginAttempt(string(role), true)
	return signed, session, nil
}

// Authenticate validates a bearer token and loads its session. A token whose
// session was revoked is rejected even if the signature is still valid.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	session, err := s.store.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("session revoked or expired: %w", err)
	}
	if session.IsExpired() {
		return nil, fmt.Errorf("session expired")
	}

	return session, nil
}

// Logout revokes the session behind a bearer token
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	session, err := s.Authenticate(ctx, tokenString)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, session.ID)
}
