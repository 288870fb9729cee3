package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		config     CORSConfig
		method     string
		origin     string
		preflight  bool
		wantOrigin string
		wantStatus int
	}{
		{"allow all", CORSConfig{AllowAll: true}, http.MethodGet, "https://lab.example", false, "*", http.StatusTeapot},
		{"listed origin", CORSConfig{AllowedOrigins: []string{"https://lab.example"}}, http.MethodGet, "https://lab.example", false, "https://lab.example", http.StatusTeapot},
		{"listed origin case", CORSConfig{AllowedOrigins: []string{"https://Lab.example"}}, http.MethodGet, "https://lab.example", false, "https://lab.example", http.StatusTeapot},
		{"unlisted origin", CORSConfig{AllowedOrigins: []string{"https://lab.example"}}, http.MethodGet, "https://evil.example", false, "", http.StatusTeapot},
		{"preflight", CORSConfig{AllowAll: true}, http.MethodOptions, "https://lab.example", true, "*", http.StatusNoContent},
		{"bare options", CORSConfig{AllowAll: true}, http.MethodOptions, "", false, "*", http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCORSConfig()
			cfg.AllowAll = tt.config.AllowAll
			cfg.AllowedOrigins = tt.config.AllowedOrigins

			req := httptest.NewRequest(tt.method, "/api/data/merged", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()
			CORS(cfg)(next).ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("expected Allow-Origin %q, got %q", tt.wantOrigin, got)
			}
			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}
