package store

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestJWTSessionStoreIssuesAndResolves(t *testing.T) {
	s := newTestSessionStore(t, JWTOptions{KeyID: "kid-active", TTL: time.Minute})

	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	userID, ok, err := s.GetUserIDByToken(token)
	if err != nil || !ok || userID != "user-1" {
		t.Fatalf("unexpected verify result: ok=%v userID=%q err=%v", ok, userID, err)
	}

	keys := s.JWKS()
	if len(keys) != 1 || keys[0].Kid != "kid-active" {
		t.Fatalf("unexpected jwks: %+v", keys)
	}
	if keys[0].Kty != "RSA" || keys[0].Alg != "RS256" || keys[0].N == "" || keys[0].E == "" {
		t.Fatalf("unexpected jwk fields: %+v", keys[0])
	}
}

func TestJWTSessionStoreEnforcesAudience(t *testing.T) {
	key := generateRSAKey(t)
	signing, err := NewJWTSessionStore(key, JWTOptions{Issuer: "issuer-a", Audience: "aud-a"})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	verify, err := NewJWTSessionStore(key, JWTOptions{Issuer: "issuer-a", Audience: "aud-b"})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, err := signing.NewSession("user-claim")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, _, err := verify.GetUserIDByToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected audience mismatch to fail, got %v", err)
	}
}

func TestJWTSessionStoreRevokesByJTI(t *testing.T) {
	s := newTestSessionStore(t, JWTOptions{Revoker: NewMemoryTokenRevoker()})

	token, err := s.NewSession("user-revoke")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	other, err := s.NewSession("user-revoke")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(token); !errors.Is(err, ErrTokenRevoked) || ok {
		t.Fatalf("expected revoked token to fail, ok=%v err=%v", ok, err)
	}
	if _, ok, err := s.GetUserIDByToken(other); err != nil || !ok {
		t.Fatalf("expected sibling token to stay valid, ok=%v err=%v", ok, err)
	}
	if err := s.DeleteSession("garbage"); err != nil {
		t.Fatalf("deleting an invalid token should be a no-op, got %v", err)
	}
}

func TestJWTSessionStoreRevokesByUserCutoff(t *testing.T) {
	s := newTestSessionStore(t, JWTOptions{Revoker: NewMemoryTokenRevoker()})

	token, err := s.NewSession("user-cutoff")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.RevokeUserSessions("user-cutoff", time.Now().UTC()); err != nil {
		t.Fatalf("revoke user: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(token); !errors.Is(err, ErrTokenRevoked) || ok {
		t.Fatalf("expected user-revoked token to fail, ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionStoreVerifiesPreviousKeyDuringRotation(t *testing.T) {
	oldKey := generateRSAKey(t)
	oldStore, err := NewJWTSessionStore(oldKey, JWTOptions{KeyID: "kid-old"})
	if err != nil {
		t.Fatalf("old store: %v", err)
	}
	oldToken, err := oldStore.NewSession("user-2")
	if err != nil {
		t.Fatalf("old token: %v", err)
	}

	rotated, err := NewJWTSessionStore(generateRSAKey(t), JWTOptions{
		KeyID:      "kid-new",
		VerifyKeys: map[string]*rsa.PublicKey{"kid-old": &oldKey.PublicKey},
	})
	if err != nil {
		t.Fatalf("rotated store: %v", err)
	}
	if userID, ok, err := rotated.GetUserIDByToken(oldToken); err != nil || !ok || userID != "user-2" {
		t.Fatalf("expected old token to verify, ok=%v userID=%q err=%v", ok, userID, err)
	}
	if len(rotated.JWKS()) != 2 {
		t.Fatalf("expected 2 jwks entries, got %d", len(rotated.JWKS()))
	}

	unrotated, err := NewJWTSessionStore(generateRSAKey(t), JWTOptions{KeyID: "kid-new"})
	if err != nil {
		t.Fatalf("unrotated store: %v", err)
	}
	if _, _, err := unrotated.GetUserIDByToken(oldToken); err == nil {
		t.Fatalf("expected error for unknown kid")
	}
}

func TestJWTSessionStoreFromPEM(t *testing.T) {
	key := generateRSAKey(t)
	dir := t.TempDir()
	privatePath := filepath.Join(dir, "private.pem")
	publicPath := filepath.Join(dir, "public.pem")

	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(privatePath, privatePEM, 0o600); err != nil {
		t.Fatalf("write private key: %v", err)
	}
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	if err := os.WriteFile(publicPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER}), 0o644); err != nil {
		t.Fatalf("write public key: %v", err)
	}

	s, err := NewJWTSessionStoreFromPEM(privatePath, map[string]string{"kid-prev": publicPath}, JWTOptions{})
	if err != nil {
		t.Fatalf("from pem: %v", err)
	}
	if len(s.JWKS()) != 2 {
		t.Fatalf("expected active and previous keys, got %+v", s.JWKS())
	}
	if _, err := NewJWTSessionStoreFromPEM(filepath.Join(dir, "missing.pem"), nil, JWTOptions{}); err == nil {
		t.Fatalf("expected missing key file to fail")
	}
}

func TestJWTSessionStoreRejectsMalformedClaims(t *testing.T) {
	key := generateRSAKey(t)
	s, err := NewJWTSessionStore(key, JWTOptions{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	now := time.Now().UTC()
	base := jwt.RegisteredClaims{
		Subject:   "user-x",
		Issuer:    defaultJWTIssuer,
		Audience:  jwt.ClaimStrings{defaultJWTAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
		ID:        "jti-x",
	}

	tests := []struct {
		name   string
		mutate func(*jwt.RegisteredClaims, *jwt.Token)
	}{
		{name: "missing kid", mutate: func(_ *jwt.RegisteredClaims, tok *jwt.Token) { delete(tok.Header, "kid") }},
		{name: "missing jti", mutate: func(c *jwt.RegisteredClaims, _ *jwt.Token) { c.ID = "" }},
		{name: "future iat", mutate: func(c *jwt.RegisteredClaims, _ *jwt.Token) {
			c.IssuedAt = jwt.NewNumericDate(now.Add(2 * time.Minute))
		}},
		{name: "expired", mutate: func(c *jwt.RegisteredClaims, _ *jwt.Token) {
			c.ExpiresAt = jwt.NewNumericDate(now.Add(-2 * time.Minute))
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			claims := base
			tok := jwt.New(jwt.SigningMethodRS256)
			tok.Header["kid"] = defaultJWTKeyID
			tc.mutate(&claims, tok)
			tok.Claims = claims
			signed, err := tok.SignedString(key)
			if err != nil {
				t.Fatalf("sign token: %v", err)
			}
			if _, _, err := s.GetUserIDByToken(signed); !errors.Is(err, ErrTokenInvalid) {
				t.Fatalf("expected ErrTokenInvalid, got %v", err)
			}
		})
	}
}

func generateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return key
}

func newTestSessionStore(t *testing.T, opts JWTOptions) *JWTSessionStore {
	t.Helper()
	s, err := NewJWTSessionStore(generateRSAKey(t), opts)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	return s
}
