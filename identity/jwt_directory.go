package identity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-payledger/core"
)

// JWTDirectoryConfig configures HS256 identity assertions.
type JWTDirectoryConfig struct {
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// JWTDirectory resolves accounts from signed identity assertions. The claims
// follow the Firebase ID token layout: sub, email, name, auth_time and a
// firebase object with sign_in_provider, identities and tenant.
type JWTDirectory struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTDirectory(cfg JWTDirectoryConfig) (*JWTDirectory, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, fmt.Errorf("identity: signing secret is required")
	}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if issuer := strings.TrimSpace(cfg.Issuer); issuer != "" {
		options = append(options, jwt.WithIssuer(issuer))
	}
	if audience := strings.TrimSpace(cfg.Audience); audience != "" {
		options = append(options, jwt.WithAudience(audience))
	}
	return &JWTDirectory{
		secret: []byte(secret),
		parser: jwt.NewParser(options...),
	}, nil
}

func (d *JWTDirectory) LookupAccount(_ context.Context, assertion string) (core.AccountRecord, error) {
	if d == nil || d.parser == nil {
		return core.AccountRecord{}, core.IdentityUnavailable("account directory is not configured", nil)
	}
	assertion = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(assertion), "Bearer "))
	if assertion == "" {
		return core.AccountRecord{}, core.IdentityRejected("identity assertion is empty", nil)
	}

	claims := jwt.MapClaims{}
	token, err := d.parser.ParseWithClaims(assertion, claims, func(*jwt.Token) (any, error) {
		return d.secret, nil
	})
	if err != nil {
		return core.AccountRecord{}, core.IdentityRejected("identity assertion rejected", err)
	}
	if token == nil || !token.Valid {
		return core.AccountRecord{}, core.IdentityRejected("identity assertion rejected", nil)
	}
	return accountFromClaims(claims)
}

func accountFromClaims(claims jwt.MapClaims) (core.AccountRecord, error) {
	subject, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		subject = claimString(claims, "user_id")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return core.AccountRecord{}, core.IdentityRejected("identity assertion has no subject", nil)
	}

	account := core.AccountRecord{
		UID:         subject,
		Email:       claimString(claims, "email"),
		DisplayName: claimString(claims, "name"),
	}
	if created := claimTime(claims, "created_at"); created != nil {
		account.CreatedAt = *created
	} else if issued, err := claims.GetIssuedAt(); err == nil && issued != nil {
		account.CreatedAt = issued.Time.UTC()
	}
	account.LastLoginAt = claimTime(claims, "auth_time")

	firebase, _ := claims["firebase"].(map[string]any)
	providers := map[string]struct{}{}
	if provider, ok := firebase["sign_in_provider"].(string); ok && strings.TrimSpace(provider) != "" {
		providers[strings.TrimSpace(provider)] = struct{}{}
	}
	if identities, ok := firebase["identities"].(map[string]any); ok {
		for provider := range identities {
			if strings.TrimSpace(provider) != "" && provider != "email" {
				providers[provider] = struct{}{}
			}
		}
	}
	if tenant, ok := firebase["tenant"].(string); ok {
		account.TenantID = strings.TrimSpace(tenant)
	}
	for provider := range providers {
		account.ProviderIDs = append(account.ProviderIDs, provider)
	}
	sort.Strings(account.ProviderIDs)
	return account, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	value, ok := claims[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func claimTime(claims jwt.MapClaims, key string) *time.Time {
	switch value := claims[key].(type) {
	case float64:
		parsed := time.Unix(int64(value), 0).UTC()
		return &parsed
	case int64:
		parsed := time.Unix(value, 0).UTC()
		return &parsed
	}
	return nil
}

var _ core.AccountDirectory = (*JWTDirectory)(nil)
