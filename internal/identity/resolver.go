// Package identity resolves bearer credentials to a caller and tenant.
package identity

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/worktide/ai-gateway/internal/domain"
)

// Identity is the resolved principal behind a request.
type Identity struct {
	CallerID string
	TenantID string
}

// Resolver validates a raw bearer credential and maps it to an identity.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (*Identity, error)
}

// JWTResolver validates HS256 tokens issued by the HR platform's identity
// service. The tenant ID travels in the "tenant_id" claim, the caller in
// the registered subject.
type JWTResolver struct {
	secret []byte
}

var _ Resolver = (*JWTResolver)(nil)

// NewJWTResolver creates a resolver for tokens signed with secret.
func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

type tokenClaims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// Resolve validates the credential and extracts (callerID, tenantID).
// A syntactically valid token without a tenant claim resolves the caller
// but not a tenant, which is a distinct failure (404, not 401).
func (r *JWTResolver) Resolve(_ context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, domain.ErrAuth("missing credential")
	}

	var claims tokenClaims
	token, err := jwt.ParseWithClaims(credential, &claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, domain.ErrAuth("invalid credential").WithCause(err)
	}

	if claims.Subject == "" {
		return nil, domain.ErrAuth("credential has no subject")
	}
	if claims.TenantID == "" {
		return nil, domain.ErrNoTenant()
	}

	return &Identity{CallerID: claims.Subject, TenantID: claims.TenantID}, nil
}
