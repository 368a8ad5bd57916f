package httpapi

import (
	"strings"
	"testing"
	"time"

	"github.com/harshith-99/meat-shop/internal/domain"
)

func TestAuthManagerSignAndParse(t *testing.T) {
	auth := NewAuthManager("unit-test-secret", time.Hour, nil)

	expiresAt := time.Now().UTC().Add(time.Hour)
	token, err := auth.sign("manager1", domain.RoleManager, "br-main", expiresAt)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	actor, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if actor.Username != "manager1" || actor.Role != domain.RoleManager || actor.BranchID != "br-main" {
		t.Fatalf("actor = %+v", actor)
	}
}

func TestParseTokenRejectsTampered(t *testing.T) {
	auth := NewAuthManager("unit-test-secret", time.Hour, nil)

	token, err := auth.sign("staff1", domain.RoleStaff, "br-main", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
	if _, err := auth.ParseToken(tampered); err == nil {
		t.Fatal("tampered token accepted")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	auth := NewAuthManager("unit-test-secret", time.Hour, nil)

	token, err := auth.sign("staff1", domain.RoleStaff, "br-main", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestCreateUserValidation(t *testing.T) {
	auth := NewAuthManager("unit-test-secret", time.Hour, nil)

	cases := []struct {
		name string
		req  domain.UserCreateRequest
	}{
		{"short username", domain.UserCreateRequest{Username: "ab", Password: "secret99", Role: domain.RoleStaff, BranchID: "br-main"}},
		{"short password", domain.UserCreateRequest{Username: "staffer", Password: "123", Role: domain.RoleStaff, BranchID: "br-main"}},
		{"bad role", domain.UserCreateRequest{Username: "staffer", Password: "secret99", Role: "owner", BranchID: "br-main"}},
		{"missing branch", domain.UserCreateRequest{Username: "staffer", Password: "secret99", Role: domain.RoleStaff}},
	}
	for _, tc := range cases {
		if _, err := auth.CreateUser(tc.req); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}

	user, err := auth.CreateUser(domain.UserCreateRequest{
		Username: "Staffer",
		Password: "secret99",
		Role:     domain.RoleStaff,
		BranchID: "br-main",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Username != "staffer" {
		t.Fatalf("username = %s, want lowercased", user.Username)
	}

	if _, err := auth.CreateUser(domain.UserCreateRequest{
		Username: "staffer",
		Password: "secret99",
		Role:     domain.RoleStaff,
		BranchID: "br-main",
	}); err == nil {
		t.Fatal("duplicate username accepted")
	}
}

func TestSuperAdminNeedsNoBranch(t *testing.T) {
	auth := NewAuthManager("unit-test-secret", time.Hour, nil)

	user, err := auth.CreateUser(domain.UserCreateRequest{
		Username: "rootadmin",
		Password: "secret99",
		Role:     domain.RoleSuperAdmin,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.BranchID != "" {
		t.Fatalf("branch = %q, want empty", user.BranchID)
	}
}
