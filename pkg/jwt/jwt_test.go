package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSigner_RoundTrip(t *testing.T) {
	s := NewSigner("secret-one", time.Hour)
	party := uuid.New()
	token, err := s.GenerateToken(Claims{
		UserID:       uuid.New(),
		Email:        "op@shop.local",
		RoleCode:     "OPERATOR",
		PartyID:      &party,
		PartyTier:    "localmarket",
		Privileges:   []string{"stock:view"},
		TokenVersion: "v1",
	})
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := s.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.PartyID == nil || *claims.PartyID != party || claims.PartyTier != "localmarket" || claims.TokenVersion != "v1" {
		t.Errorf("Unexpected claims: %+v", claims)
	}
}

func TestSigner_Rejects(t *testing.T) {
	s := NewSigner("secret-one", time.Hour)
	token, _ := s.GenerateToken(Claims{UserID: uuid.New()})

	tests := []struct {
		name    string
		signer  *Signer
		token   string
		wantErr error
	}{
		{"empty", s, "", ErrMissingToken},
		{"garbage", s, "not.a.token", ErrInvalidToken},
		{"other secret", NewSigner("secret-two", time.Hour), token, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.signer.ValidateToken(tt.token); !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	expired := NewSigner("secret-one", time.Nanosecond)
	old, _ := expired.GenerateToken(Claims{UserID: uuid.New()})
	time.Sleep(1100 * time.Millisecond)
	if _, err := s.ValidateToken(old); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected expired token to be rejected, got %v", err)
	}
}
