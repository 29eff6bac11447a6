package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testConfig = Config{Secret: "test-secret", Issuer: "timeclock.identity"}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testConfig.Secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestParseValidToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub":             "worker-1",
		"organization_id": "org-1",
		"role":            "manager",
		"scopes":          []string{ScopeShiftsClock, ScopeShiftsRead},
		"iss":             testConfig.Issuer,
		"exp":             time.Now().Add(time.Hour).Unix(),
	})

	claims, err := Parse(token, testConfig)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if claims.Subject != "worker-1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.OrganizationID != "org-1" {
		t.Fatalf("unexpected organization %q", claims.OrganizationID)
	}
	if !claims.IsManager() {
		t.Fatal("expected manager role")
	}
	if !claims.HasScope(ScopeShiftsClock) || !claims.HasScope(ScopeShiftsRead) {
		t.Fatal("missing expected scopes")
	}
	if claims.HasScope(ScopePerimeterManage) {
		t.Fatal("unexpected perimeter scope")
	}
}

func TestParseDefaultsToWorkerRole(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub":             "worker-1",
		"organization_id": "org-1",
		"iss":             testConfig.Issuer,
		"exp":             time.Now().Add(time.Hour).Unix(),
	})

	claims, err := Parse(token, testConfig)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if claims.Role != RoleWorker {
		t.Fatalf("expected worker role, got %q", claims.Role)
	}
}

func TestParseRejectsMissingOrganization(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub": "worker-1",
		"iss": testConfig.Issuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := Parse(token, testConfig); err == nil {
		t.Fatal("expected error for token without organization_id")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub":             "worker-1",
		"organization_id": "org-1",
		"iss":             "someone-else",
		"exp":             time.Now().Add(time.Hour).Unix(),
	})

	if _, err := Parse(token, testConfig); err == nil {
		t.Fatal("expected error for wrong issuer")
	}
}

func TestParseRejectsUnknownRole(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub":             "worker-1",
		"organization_id": "org-1",
		"role":            "superuser",
		"iss":             testConfig.Issuer,
		"exp":             time.Now().Add(time.Hour).Unix(),
	})

	if _, err := Parse(token, testConfig); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
