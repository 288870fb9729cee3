package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const testSecret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   "lab-user",
		Issuer:    "mirrorsync-test",
		Audience:  jwt.ClaimStrings{"mirrorsync"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func TestJWT(t *testing.T) {
	logger := zerolog.Nop()
	cfg := JWTConfig{Secret: testSecret, Issuer: "mirrorsync-test", Audience: "mirrorsync"}

	var gotSubject string
	handler := JWT(cfg, &logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = Subject(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	noExp := validClaims()
	noExp.ExpiresAt = nil
	wrongIss := validClaims()
	wrongIss.Issuer = "someone-else"
	wrongAud := validClaims()
	wrongAud.Audience = jwt.ClaimStrings{"other"}

	tests := []struct {
		name   string
		header string
		status int
		detail string
	}{
		{"valid", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims()), http.StatusOK, ""},
		{"lowercase scheme", "bearer " + sign(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims()), http.StatusOK, ""},
		{"missing", "", http.StatusUnauthorized, "Provide a token in the Authorization header as 'Bearer <token>'"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "Provide a token in the Authorization header as 'Bearer <token>'"},
		{"bad signature", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims()), http.StatusUnauthorized, "token signature is invalid"},
		{"expired", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(testSecret), expired), http.StatusUnauthorized, "token expired"},
		{"no expiry", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(testSecret), noExp), http.StatusUnauthorized, "token is missing a required claim"},
		{"wrong issuer", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(testSecret), wrongIss), http.StatusUnauthorized, "token was issued for another service"},
		{"wrong audience", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(testSecret), wrongAud), http.StatusUnauthorized, "token was issued for another service"},
		{"alg none", "Bearer " + sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims()), http.StatusUnauthorized, "token signature is invalid"},
		{"garbage", "Bearer not.a.token", http.StatusUnauthorized, "token could not be verified"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSubject = ""
			req := httptest.NewRequest(http.MethodGet, "/api/data/merged", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if tt.status == http.StatusOK {
				if gotSubject != "lab-user" {
					t.Errorf("expected subject lab-user, got %q", gotSubject)
				}
				return
			}
			var body struct {
				Success bool `json:"success"`
				Error   struct {
					Details string `json:"details"`
				} `json:"error"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Success {
				t.Error("expected success=false")
			}
			if body.Error.Details != tt.detail {
				t.Errorf("expected detail %q, got %q", tt.detail, body.Error.Details)
			}
		})
	}
}

func TestJWTDisabled(t *testing.T) {
	logger := zerolog.Nop()
	called := false
	handler := JWT(JWTConfig{}, &logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("expected request to pass through when no secret is configured")
	}
}
