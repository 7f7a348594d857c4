package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bikerent-backend/internal/auth"
	"github.com/angelmondragon/bikerent-backend/internal/dashboard"
	"github.com/angelmondragon/bikerent-backend/internal/schedulers/weekly"
	phonepewebhook "github.com/angelmondragon/bikerent-backend/internal/webhooks/phonepe"
	pkgAuth "github.com/angelmondragon/bikerent-backend/pkg/auth"
	"github.com/angelmondragon/bikerent-backend/pkg/config"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
	"github.com/angelmondragon/bikerent-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubSessions map[string]bool

func (s stubSessions) HasSession(_ context.Context, id string) (bool, error) { return s[id], nil }

type stubAuthService struct{ loggedOut []string }

func (s *stubAuthService) Login(context.Context, auth.LoginRequest) (*auth.LoginResponse, error) {
	return &auth.LoginResponse{Token: "tok"}, nil
}

func (s *stubAuthService) Logout(_ context.Context, id string) error {
	s.loggedOut = append(s.loggedOut, id)
	return nil
}

type stubDashboard struct{}

func (stubDashboard) Stats(context.Context) (*dashboard.Stats, error) {
	return &dashboard.Stats{ActiveMandates: 4}, nil
}

type stubWeekly struct{ forced int }

func (s *stubWeekly) ProcessWeeklyRun(context.Context) (*weekly.RunReport, error) {
	return &weekly.RunReport{Skipped: true, Message: weekly.NotMondayMessage}, nil
}

func (s *stubWeekly) ProcessWeeklyRunForce(context.Context) (*weekly.RunReport, error) {
	s.forced++
	return &weekly.RunReport{TestMode: true}, nil
}

type stubWebhooks struct{ calls int }

func (s *stubWebhooks) HandleEvent(context.Context, *phonepewebhook.Event) (phonepewebhook.Result, error) {
	s.calls++
	return phonepewebhook.ResultApplied, nil
}

type fixture struct {
	cfg      *config.Config
	auth     *stubAuthService
	weekly   *stubWeekly
	webhooks *stubWebhooks
	router   http.Handler
}

func testConfig(env string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: env, Port: "0"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "bikerent", ExpirationMinutes: 60},
		Cron: config.CronConfig{Secret: "cron-secret"},
	}
}

func newFixture(t *testing.T, env string) *fixture {
	t.Helper()
	f := &fixture{
		cfg:      testConfig(env),
		auth:     &stubAuthService{},
		weekly:   &stubWeekly{},
		webhooks: &stubWebhooks{},
	}
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	reg := prometheus.NewRegistry()
	f.router = NewRouter(
		f.cfg,
		logg,
		stubPinger{},
		nil,
		stubSessions{"live": true},
		reg,
		metrics.NewHTTPMetrics(reg),
		Services{
			Auth:      f.auth,
			Dashboard: stubDashboard{},
			Weekly:    f.weekly,
			Webhooks:  f.webhooks,
		},
	)
	return f
}

func (f *fixture) token(t *testing.T, role, jti string) string {
	t.Helper()
	token, _, err := pkgAuth.MintAccessToken(f.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{Username: "admin", Role: role, JTI: jti})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (f *fixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	return resp
}

func TestAPIRejectsMissingJWT(t *testing.T) {
	f := newFixture(t, "dev")
	if resp := f.do(http.MethodGet, "/api/v1/dashboard/stats", "", ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestAPIRequiresAdminRoleAndLiveSession(t *testing.T) {
	f := newFixture(t, "dev")

	if resp := f.do(http.MethodGet, "/api/v1/dashboard/stats", f.token(t, "viewer", "live"), ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-admin role got %d", resp.Code)
	}
	if resp := f.do(http.MethodGet, "/api/v1/dashboard/stats", f.token(t, pkgAuth.RoleAdmin, "revoked"), ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked session got %d", resp.Code)
	}

	resp := f.do(http.MethodGet, "/api/v1/dashboard/stats", f.token(t, pkgAuth.RoleAdmin, "live"), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
	var body struct {
		Data dashboard.Stats `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.ActiveMandates != 4 {
		t.Fatalf("unexpected stats %+v", body.Data)
	}
}

func TestAuthRoutes(t *testing.T) {
	f := newFixture(t, "dev")

	login := f.do(http.MethodPost, "/api/v1/auth/login", "", `{"username":"admin","password":"pw"}`)
	if login.Code != http.StatusOK {
		t.Fatalf("expected login 200 got %d", login.Code)
	}
	if got := login.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected token response to be uncacheable, got %q", got)
	}
	if resp := f.do(http.MethodPost, "/api/v1/auth/logout", "", ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected logout without token 401 got %d", resp.Code)
	}
	if resp := f.do(http.MethodPost, "/api/v1/auth/logout", f.token(t, pkgAuth.RoleAdmin, "live"), ""); resp.Code != http.StatusOK {
		t.Fatalf("expected logout 200 got %d", resp.Code)
	}
	if len(f.auth.loggedOut) != 1 || f.auth.loggedOut[0] != "live" {
		t.Fatalf("expected session live revoked, got %v", f.auth.loggedOut)
	}
}

func TestCronRoutesRequireSecret(t *testing.T) {
	f := newFixture(t, "dev")

	if resp := f.do(http.MethodGet, "/api/v1/cron/weekly-payments", "", ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without cron secret got %d", resp.Code)
	}
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		if resp := f.do(method, "/api/v1/cron/weekly-payments", "cron-secret", ""); resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", method, resp.Code)
		}
	}
	if resp := f.do(http.MethodPost, "/api/v1/cron/test-weekly-payments", "cron-secret", ""); resp.Code != http.StatusOK {
		t.Fatalf("expected forced run in dev got %d", resp.Code)
	}
	if f.weekly.forced != 1 {
		t.Fatalf("expected one forced run, got %d", f.weekly.forced)
	}
}

func TestTestCronRouteHiddenInProd(t *testing.T) {
	f := newFixture(t, "prod")
	resp := f.do(http.MethodPost, "/api/v1/cron/test-weekly-payments", "cron-secret", "")
	if resp.Code != http.StatusNotFound && resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected test route absent in prod got %d", resp.Code)
	}
	if f.weekly.forced != 0 {
		t.Fatal("forced run must not execute in prod")
	}
}

func TestWebhookRouteIsPublic(t *testing.T) {
	f := newFixture(t, "dev")
	resp := f.do(http.MethodPost, "/api/v1/webhooks/phonepe", "", `{"event":"subscription.paused","payload":{"merchantSubscriptionId":"MS_1"}}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if f.webhooks.calls != 1 {
		t.Fatalf("expected webhook handled once, got %d", f.webhooks.calls)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, "dev")
	if resp := f.do(http.MethodGet, "/health/ready", "", ""); resp.Code != http.StatusOK {
		t.Fatalf("expected ready 200 got %d", resp.Code)
	}
	resp := f.do(http.MethodGet, "/metrics", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected metrics 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "bikerent_http_requests_total") {
		t.Fatal("expected http request counter in exposition")
	}
}
