package adapthttp

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlers_RejectRequestsWithoutUser(t *testing.T) {
	s := &Server{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	tests := []struct {
		name    string
		method  string
		handler http.HandlerFunc
	}{
		{"steps reading", http.MethodPost, s.handleStepsReading},
		{"steps today", http.MethodGet, s.handleStepsToday},
		{"steps stream", http.MethodGet, s.handleStepsStream},
		{"widget", http.MethodGet, s.handleWidget},
		{"charts daily", http.MethodGet, s.handleChartsDaily},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/", strings.NewReader(`{"rawValue":1}`))
			w := httptest.NewRecorder()
			tc.handler(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestAuthMiddleware_DisabledInjectsLocalUser(t *testing.T) {
	s := &Server{logger: slog.New(slog.NewTextHandler(io.Discard, nil)), disableAuth: true}
	var got int64
	h := s.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := userFromContext(r); u != nil {
			got = u.ID
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got != localUser.ID {
		t.Fatalf("user ID = %d; want %d", got, localUser.ID)
	}
}
