package server_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gkobilansky/funnel-goat/internal/server"
)

func TestGenerateGlobalScript(t *testing.T) {
	script := server.GenerateGlobalScript("https://funnel.example.com")

	for _, want := range []string{
		"https://funnel.example.com",
		"data-fg-event",
		"fg:assigned",
		"page_leave",
		"sendBeacon",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("expected script to contain %q", want)
		}
	}
}

func TestGlobalJS_UsesForwardedProto(t *testing.T) {
	srv, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/fg.js", nil)
	req.Host = "funnel.example.com"
	req.Header.Set("X-Forwarded-Proto", "https")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/javascript" {
		t.Errorf("expected javascript content type, got %s", got)
	}
	if !strings.Contains(w.Body.String(), "'https://funnel.example.com'") {
		t.Error("expected script to embed the https server URL")
	}
}
