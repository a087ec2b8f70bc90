package gateway

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	bearer := AuthConfig{BearerToken: "secret-token"}
	basic := AuthConfig{BasicUser: "admin", BasicPass: "pass123"}
	both := AuthConfig{BearerToken: "secret-token", BasicUser: "admin", BasicPass: "pass123"}

	withBearer := func(tok string) func(*http.Request) {
		return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
	}
	withBasic := func(u, p string) func(*http.Request) {
		return func(r *http.Request) { r.SetBasicAuth(u, p) }
	}

	tests := []struct {
		name string
		cfg  AuthConfig
		set  func(*http.Request)
		want int
	}{
		{"valid bearer", bearer, withBearer("secret-token"), http.StatusOK},
		{"wrong bearer", bearer, withBearer("wrong-token"), http.StatusUnauthorized},
		{"bearer prefix only", bearer, withBearer(""), http.StatusUnauthorized},
		{"missing header", bearer, func(*http.Request) {}, http.StatusUnauthorized},
		{"valid basic", basic, withBasic("admin", "pass123"), http.StatusOK},
		{"wrong basic password", basic, withBasic("admin", "nope"), http.StatusUnauthorized},
		{"basic against bearer-only config", bearer, withBasic("admin", "pass123"), http.StatusUnauthorized},
		{"both configured, bearer", both, withBearer("secret-token"), http.StatusOK},
		{"both configured, basic", both, withBasic("admin", "pass123"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			handler := authMiddleware(tt.cfg, nil)(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/api/conversations/c1", nil)
			tt.set(req)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestAuthConfig_IsConfigured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  AuthConfig
		want bool
	}{
		{"empty", AuthConfig{}, false},
		{"bearer only", AuthConfig{BearerToken: "tok"}, true},
		{"basic complete", AuthConfig{BasicUser: "u", BasicPass: "p"}, true},
		{"basic partial user", AuthConfig{BasicUser: "u"}, false},
		{"basic partial pass", AuthConfig{BasicPass: "p"}, false},
		{"both", AuthConfig{BearerToken: "t", BasicUser: "u", BasicPass: "p"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.cfg.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthMiddleware_FailureLogOmitsCredentials(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := authMiddleware(AuthConfig{BearerToken: "secret-token"}, logger)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.Header.Set("Authorization", "Bearer guessed-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	out := buf.String()
	if !strings.Contains(out, "auth failure") || !strings.Contains(out, "/api/settings") {
		t.Errorf("log missing failure details: %s", out)
	}
	if strings.Contains(out, "guessed-token") {
		t.Errorf("log leaked presented credentials: %s", out)
	}
}
