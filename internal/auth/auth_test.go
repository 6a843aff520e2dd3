package auth

import (
	"context"
	"testing"
	"time"

	"github.com/penang-gov/surveillance/internal/shared/config"
)

func testConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:              "test-secret",
		SessionTTL:             time.Hour,
		ClinicianPassword:      "klinik-test",
		EpidemiologistPassword: "siasat-test",
		AdminPassword:          "admin-test",
	}
}

func testService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(testConfig(), NewMemoryStore())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

// TestLoginAndAuthenticate tests the token round trip
func TestLoginAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := testService(t)

	token, session, err := svc.Login(ctx, RoleClinician, "klinik-test", "10.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.Role != RoleClinician {
		t.Errorf("Expected role %s, got %s", RoleClinician, session.Role)
	}

	got, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != session.ID {
		t.Errorf("Expected session %s, got %s", session.ID, got.ID)
	}
}

// TestLoginRejectsBadCredentials tests password and role validation
func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := testService(t)

	tests := []struct {
		name     string
		role     Role
		password string
	}{
		{"Wrong password", RoleClinician, "wrong"},
		{"Other role's password", RoleClinician, "admin-test"},
		{"Unknown role", Role("nurse"), "klinik-test"},
		{"Empty password", RoleAdmin, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := svc.Login(ctx, tt.role, tt.password, ""); err == nil {
				t.Error("Expected login to fail")
			}
		})
	}
}

// TestLogoutRevokesSession tests that a logged-out token stops working
func TestLogoutRevokesSession(t *testing.T) {
	ctx := context.Background()
	svc := testService(t)

	token, _, err := svc.Login(ctx, RoleEpidemiologist, "siasat-test", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	// Signature is still valid but the session is gone
	if _, err := svc.Authenticate(ctx, token); err == nil {
		t.Error("Expected authentication to fail after logout")
	}
}

// TestAuthenticateRejectsGarbage tests token parsing failures
func TestAuthenticateRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	svc := testService(t)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := svc.Authenticate(ctx, token); err == nil {
			t.Errorf("Expected failure for token %q", token)
		}
	}
}

// TestMemoryStoreExpiry tests that expired sessions are not returned
func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	session := &Session{
		ID:        "expired",
		Role:      RoleAdmin,
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	if err := store.Put(ctx, session); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, err := store.Get(ctx, "expired"); err == nil {
		t.Error("Expected expired session to be rejected")
	}
}

// TestHasPermission tests the role/permission matrix
func TestHasPermission(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleClinician, PermCaseRegister, true},
		{RoleClinician, PermCaseFinalize, false},
		{RoleEpidemiologist, PermCaseFinalize, true},
		{RoleEpidemiologist, PermLinelistExport, false},
		{RoleAdmin, PermLinelistExport, true},
		{RoleAdmin, PermCaseRegister, false},
		{Role("nurse"), PermCaseRead, false},
	}

	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.perm); got != tt.want {
			t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}
