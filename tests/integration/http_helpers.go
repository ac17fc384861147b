package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/opsdeck/authguard/internal/auditlog"
	"github.com/opsdeck/authguard/internal/auth"
	"github.com/opsdeck/authguard/internal/directory"
	"github.com/opsdeck/authguard/internal/guard"
	"github.com/opsdeck/authguard/internal/handlers"
	"github.com/opsdeck/authguard/internal/routes"
)

const testJWTSecret = "integration-secret-0123456789abcdef"

// TestServer wires the full HTTP surface over a test database
type TestServer struct {
	Server *httptest.Server
	Guard  *guard.Guard
	Audit  *auditlog.Service
	Tokens *auth.TokenManager
}

// NewTestServer builds the application exactly as main does, backed by the
// given test database and a throwaway audit log directory
func NewTestServer(t *testing.T, db *TestDB, guardCfg guard.Config) *TestServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := auditlog.NewStore(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("failed to create audit store: %v", err)
	}
	auditService := auditlog.NewService(store, logger)

	g := guard.New(guardCfg, logger)
	g.SetReporter(auditService)

	tokenManager := auth.NewTokenManager(testJWTSecret, 15*time.Minute, 7*24*time.Hour)
	directoryRepo := directory.NewRepository(db.DB)

	authHandler := handlers.NewAuthHandler(directoryRepo, tokenManager, g, auditService, logger)
	guardAdminHandler := handlers.NewGuardAdminHandler(g, auditService, logger)
	auditAdminHandler := handlers.NewAuditAdminHandler(store, logger)
	healthHandler := handlers.NewHealthHandler(db.DB)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RealIP)
	routes.RegisterRoutes(router, authHandler, guardAdminHandler, auditAdminHandler, healthHandler, tokenManager, g)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestServer{
		Server: server,
		Guard:  g,
		Audit:  auditService,
		Tokens: tokenManager,
	}
}

// AdminToken mints an access token with the admin role
func (ts *TestServer) AdminToken(t *testing.T) string {
	t.Helper()
	token, err := ts.Tokens.GenerateAccessToken(1, "admin@example.com", "admin")
	if err != nil {
		t.Fatalf("failed to mint admin token: %v", err)
	}
	return token
}

// PostJSON sends a JSON POST to the test server
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, bearer string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}

	req, err := http.NewRequest("POST", ts.Server.URL+path, &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := ts.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// Get sends a GET to the test server
func (ts *TestServer) Get(t *testing.T, path, bearer string) *http.Response {
	t.Helper()

	req, err := http.NewRequest("GET", ts.Server.URL+path, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := ts.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// Delete sends a JSON DELETE to the test server
func (ts *TestServer) Delete(t *testing.T, path string, body interface{}, bearer string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}

	req, err := http.NewRequest("DELETE", ts.Server.URL+path, &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := ts.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// DecodeJSON decodes a response body into target and closes it
func DecodeJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}
