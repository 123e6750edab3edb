package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestJWTAuth_RoundTrip(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	sessionID := uuid.New()

	token, err := auth.GenerateAccessToken(sessionID)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	parsed, err := auth.ParseSessionID(token)
	if err != nil {
		t.Fatalf("ParseSessionID: %v", err)
	}
	if parsed != sessionID {
		t.Errorf("expected session id %s, got %s", sessionID, parsed)
	}
}

func TestJWTAuth_ParseRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTAuth("secret-a").GenerateAccessToken(uuid.New())
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if _, err := NewJWTAuth("secret-b").ParseSessionID(token); err == nil {
		t.Error("expected error for token signed with a different secret")
	}
}

func TestJWTAuth_ParseRejectsExpired(t *testing.T) {
	auth := NewJWTAuth("test-secret")

	claims := jwt.MapClaims{
		"session_id": uuid.New().String(),
		"exp":        time.Now().Add(-time.Minute).Unix(),
		"iat":        time.Now().Add(-time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(auth.Secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	_, err = auth.ParseSessionID(token)
	if err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestJWTAuth_Middleware(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	sessionID := uuid.New()

	var gotSessionID uuid.UUID
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSessionID = GetSessionID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token, err := auth.GenerateAccessToken(sessionID)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/v1/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotSessionID != sessionID {
		t.Errorf("expected session id %s in context, got %s", sessionID, gotSessionID)
	}
}

func TestJWTAuth_MiddlewareRejects(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc123"},
		{"garbage token", "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/conversations", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", w.Code)
			}
		})
	}
}
