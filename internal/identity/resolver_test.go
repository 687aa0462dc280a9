package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/worktide/ai-gateway/internal/domain"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func errType(t *testing.T, err error) domain.ErrorType {
	t.Helper()
	var gwErr *domain.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %T: %v", err, err)
	}
	return gwErr.Type
}

func TestResolve_ValidToken(t *testing.T) {
	r := NewJWTResolver(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":       "user-42",
		"tenant_id": "tenant-7",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	id, err := r.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id.CallerID != "user-42" || id.TenantID != "tenant-7" {
		t.Errorf("identity = %+v", id)
	}
}

func TestResolve_EmptyCredential(t *testing.T) {
	r := NewJWTResolver(testSecret)
	_, err := r.Resolve(context.Background(), "")
	if errType(t, err) != domain.ErrorTypeAuth {
		t.Errorf("want auth error, got %v", err)
	}
}

func TestResolve_WrongSecret(t *testing.T) {
	r := NewJWTResolver(testSecret)
	token := signToken(t, "other-secret", jwt.MapClaims{
		"sub":       "user-42",
		"tenant_id": "tenant-7",
	})

	_, err := r.Resolve(context.Background(), token)
	if errType(t, err) != domain.ErrorTypeAuth {
		t.Errorf("want auth error, got %v", err)
	}
}

func TestResolve_ExpiredToken(t *testing.T) {
	r := NewJWTResolver(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":       "user-42",
		"tenant_id": "tenant-7",
		"exp":       time.Now().Add(-time.Hour).Unix(),
	})

	_, err := r.Resolve(context.Background(), token)
	if errType(t, err) != domain.ErrorTypeAuth {
		t.Errorf("want auth error, got %v", err)
	}
}

func TestResolve_WrongAlgorithmRejected(t *testing.T) {
	r := NewJWTResolver(testSecret)
	// alg=none style tokens must never validate.
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":       "user-42",
		"tenant_id": "tenant-7",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	_, resolveErr := r.Resolve(context.Background(), token)
	if errType(t, resolveErr) != domain.ErrorTypeAuth {
		t.Errorf("want auth error, got %v", resolveErr)
	}
}

func TestResolve_MissingTenantIsNotFound(t *testing.T) {
	r := NewJWTResolver(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{"sub": "user-42"})

	_, err := r.Resolve(context.Background(), token)
	if errType(t, err) != domain.ErrorTypeNotFound {
		t.Errorf("tenant-less token must resolve to not_found, got %v", err)
	}
}

func TestResolve_MissingSubject(t *testing.T) {
	r := NewJWTResolver(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{"tenant_id": "tenant-7"})

	_, err := r.Resolve(context.Background(), token)
	if errType(t, err) != domain.ErrorTypeAuth {
		t.Errorf("subject-less token must fail auth, got %v", err)
	}
}
