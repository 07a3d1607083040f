package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	const secret = "test-secret"
	at, err := NewAccessToken(secret, 42, "MEMBER", 15)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	tok, err := jwt.Parse(at.Token, func(tok *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		t.Fatalf("parse signed token: valid=%v err=%v", tok.Valid, err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("claims are not MapClaims")
	}
	if sub, _ := claims["sub"].(string); sub != "42" {
		t.Errorf("sub = %v, want \"42\"", claims["sub"])
	}
	if role, _ := claims["role"].(string); role != "MEMBER" {
		t.Errorf("role = %v, want MEMBER", claims["role"])
	}
}

func TestRefreshTokenHashIsStable(t *testing.T) {
	rt, err := NewRefreshToken(7)
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	if len(rt.Raw) != 96 {
		t.Fatalf("raw length = %d, want 96 hex chars", len(rt.Raw))
	}
	if HashRefreshRaw(rt.Raw) != HashRefreshRaw(rt.Raw) {
		t.Fatal("hash of the same raw token differs")
	}
	other, _ := NewRefreshToken(7)
	if HashRefreshRaw(rt.Raw) == HashRefreshRaw(other.Raw) {
		t.Fatal("distinct tokens share a hash")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(hash, "s3cret") {
		t.Error("correct password rejected")
	}
	if VerifyPassword(hash, "wrong") {
		t.Error("wrong password accepted")
	}
}
