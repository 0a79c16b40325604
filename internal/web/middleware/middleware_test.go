package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireToken(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		header string
		query  string
		want   int
	}{
		{"no token configured", "", "", "", http.StatusOK},
		{"valid bearer", "kiosk", "Bearer kiosk", "", http.StatusOK},
		{"valid query token", "kiosk", "", "?access_token=kiosk", http.StatusOK},
		{"wrong bearer", "kiosk", "Bearer nope", "", http.StatusUnauthorized},
		{"missing", "kiosk", "", "", http.StatusUnauthorized},
		{"basic auth ignored", "kiosk", "Basic kiosk", "", http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/capture"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			recorder := httptest.NewRecorder()

			RequireToken(tc.token)(okHandler()).ServeHTTP(recorder, req)

			if recorder.Code != tc.want {
				t.Errorf("expected status %d, got %d", tc.want, recorder.Code)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		origins     string
		origin      string
		wantAllowed bool
	}{
		{"localhost always allowed", "", "http://localhost:5173", true},
		{"listed origin", "https://kiosk.example.edu, https://admin.example.edu", "https://admin.example.edu", true},
		{"unlisted origin", "https://kiosk.example.edu", "https://evil.example.com", false},
		{"no origin", "", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			recorder := httptest.NewRecorder()

			CORS(tc.origins)(okHandler()).ServeHTTP(recorder, req)

			got := recorder.Header().Get("Access-Control-Allow-Origin")
			if tc.wantAllowed && got != tc.origin {
				t.Errorf("expected origin %q to be allowed, got %q", tc.origin, got)
			}
			if !tc.wantAllowed && got != "" {
				t.Errorf("expected no allow-origin header, got %q", got)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/capture/confirm", nil)
	req.Header.Set("Origin", "http://localhost:8090")
	recorder := httptest.NewRecorder()

	CORS("")(next).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Errorf("expected 200 for preflight, got %d", recorder.Code)
	}
	if called {
		t.Error("expected preflight not to reach the handler")
	}
}
