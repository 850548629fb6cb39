package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestVerifier(t *testing.T) (*SupabaseJWTVerifier, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	kf := func(*jwt.Token) (interface{}, error) { return &key.PublicKey, nil }
	return NewJWTVerifierWithKeyfunc(kf, testLogger()), key
}

func sign(t *testing.T, key *ecdsa.PrivateKey, claims models.SupabaseClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestVerifyToken(t *testing.T) {
	v, key := newTestVerifier(t)
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	valid := models.SupabaseClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: future},
		Email:            "a@example.com",
		Role:             "authenticated",
	}

	tests := []struct {
		name    string
		token   func() string
		wantErr bool
	}{
		{"valid", func() string { return sign(t, key, valid) }, false},
		{"empty", func() string { return "" }, true},
		{"garbage", func() string { return "not.a.jwt" }, true},
		{"expired", func() string {
			c := valid
			c.ExpiresAt = past
			return sign(t, key, c)
		}, true},
		{"no expiry", func() string {
			c := valid
			c.ExpiresAt = nil
			return sign(t, key, c)
		}, true},
		{"anon role", func() string {
			c := valid
			c.Role = "anon"
			return sign(t, key, c)
		}, true},
		{"anonymous session", func() string {
			c := valid
			c.IsAnonymous = true
			return sign(t, key, c)
		}, true},
		{"missing subject", func() string {
			c := valid
			c.Subject = ""
			return sign(t, key, c)
		}, true},
		{"hmac rejected", func() string {
			s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, valid).SignedString([]byte("secret"))
			return s
		}, true},
		{"other key", func() string {
			other, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
			return sign(t, other, valid)
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.VerifyToken(tt.token())
			if tt.wantErr {
				if !errors.Is(err, domain.ErrUnauthorized) {
					t.Fatalf("err = %v, want ErrUnauthorized", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if claims.GetUserID() != "user-1" {
				t.Errorf("subject = %q", claims.GetUserID())
			}
		})
	}
}
