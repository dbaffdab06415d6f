package auth

import (
	"errors"
	"testing"
	"time"
)

func testConfig() JWTConfig {
	return JWTConfig{
		SecretKey:     "test-secret",
		TokenDuration: time.Hour,
		Issuer:        "chat-exchange-test",
	}
}

func TestJWTManager_RoundTrip(t *testing.T) {
	manager := NewJWTManager(testConfig())

	token, err := manager.Generate("u1", "Alice")
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	claims, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if claims.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", claims.UserID)
	}
	if claims.Username != "Alice" {
		t.Errorf("Username = %q, want Alice", claims.Username)
	}
	if claims.Issuer != "chat-exchange-test" {
		t.Errorf("Issuer = %q, want chat-exchange-test", claims.Issuer)
	}
}

func TestJWTManager_WrongSecret(t *testing.T) {
	manager := NewJWTManager(testConfig())
	token, err := manager.Generate("u1", "Alice")
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	other := NewJWTManager(JWTConfig{
		SecretKey:     "different-secret",
		TokenDuration: time.Hour,
		Issuer:        "chat-exchange-test",
	})

	if _, err := other.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate() error = %v, want ErrInvalidToken", err)
	}
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	manager := NewJWTManager(JWTConfig{
		SecretKey:     "test-secret",
		TokenDuration: -time.Minute,
		Issuer:        "chat-exchange-test",
	})

	token, err := manager.Generate("u1", "Alice")
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	validator := NewJWTManager(testConfig())
	if _, err := validator.Validate(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Validate() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTManager_Garbage(t *testing.T) {
	manager := NewJWTManager(testConfig())

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "not a token", token: "hello"},
		{name: "truncated", token: "eyJhbGciOiJIUzI1NiJ9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := manager.Validate(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Validate(%q) error = %v, want ErrInvalidToken", tt.token, err)
			}
		})
	}
}
