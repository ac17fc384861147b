package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/authguard/internal/auth"
	"github.com/opsdeck/authguard/internal/guard"
	"github.com/opsdeck/authguard/internal/handlers"
	"github.com/opsdeck/authguard/internal/models"
	pkgauth "github.com/opsdeck/authguard/pkg/auth"
	pkghttp "github.com/opsdeck/authguard/pkg/http"
)

func newTestTokenManager() *auth.TokenManager {
	return auth.NewTokenManager("test-secret-0123456789abcdef", 15*time.Minute, 7*24*time.Hour)
}

func newAuthFixture(t *testing.T, dir *handlers.MockDirectory) (*handlers.AuthHandler, *guard.Guard, *auth.TokenManager) {
	g := guard.New(guard.Config{}, handlers.DiscardLogger())
	tm := newTestTokenManager()
	h := handlers.NewAuthHandler(dir, tm, g, handlers.NewTestAuditService(t), handlers.DiscardLogger())
	return h, g, tm
}

func activeIdentity(t *testing.T, password string) *models.Identity {
	hash, err := pkgauth.HashPassword(password)
	require.NoError(t, err)
	return &models.Identity{
		ID:           42,
		Email:        "user@example.com",
		Name:         "Test User",
		Role:         "employee",
		PasswordHash: hash,
		Active:       true,
	}
}

func TestLogin_Success(t *testing.T) {
	identity := activeIdentity(t, "password123")
	h, _, _ := newAuthFixture(t, &handlers.MockDirectory{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Identity, error) {
			assert.Equal(t, "user@example.com", email)
			return identity, nil
		},
	})

	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "User@Example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	h.Login(w, req)

	var resp handlers.AuthResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(42), resp.User.ID)
	assert.Equal(t, "employee", resp.User.Role)
}

func TestLogin_UnknownIdentity(t *testing.T) {
	h, _, _ := newAuthFixture(t, &handlers.MockDirectory{})

	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "nobody@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	h.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogin_WrongPassword(t *testing.T) {
	identity := activeIdentity(t, "password123")
	h, _, _ := newAuthFixture(t, &handlers.MockDirectory{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Identity, error) {
			return identity, nil
		},
	})

	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "not the password",
	})

	w := httptest.NewRecorder()
	h.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogin_InactiveAccount_AntiEnumeration(t *testing.T) {
	identity := activeIdentity(t, "password123")
	identity.Active = false
	h, _, _ := newAuthFixture(t, &handlers.MockDirectory{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Identity, error) {
			return identity, nil
		},
	})

	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	h.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")

	// Same generic message as a wrong password
	var resp pkghttp.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, "Authentication failed", resp.Message)
}

func TestLogin_InvalidBody(t *testing.T) {
	h, _, _ := newAuthFixture(t, &handlers.MockDirectory{})

	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email: "not-an-email",
	})

	w := httptest.NewRecorder()
	h.Login(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestLogin_SuccessClearsBlock(t *testing.T) {
	identity := activeIdentity(t, "password123")
	h, g, _ := newAuthFixture(t, &handlers.MockDirectory{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Identity, error) {
			return identity, nil
		},
	})

	blockReq := handlers.NewTestRequest(t, "POST", "/auth/login", nil)
	g.OnLimitExceeded(blockReq)
	require.Len(t, g.ActiveBlocks(), 1)

	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	h.Login(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Empty(t, g.ActiveBlocks())
}

func TestRefreshToken_Success(t *testing.T) {
	identity := activeIdentity(t, "password123")
	h, _, tm := newAuthFixture(t, &handlers.MockDirectory{
		GetByIDFunc: func(ctx context.Context, userID int64) (*models.Identity, error) {
			assert.Equal(t, int64(42), userID)
			return identity, nil
		},
	})

	refreshToken, err := tm.GenerateRefreshToken(42, identity.Email, identity.Role)
	require.NoError(t, err)

	req := handlers.NewTestRequest(t, "POST", "/auth/refresh", handlers.RefreshTokenRequest{
		RefreshToken: refreshToken,
	})

	w := httptest.NewRecorder()
	h.RefreshToken(w, req)

	var resp handlers.AuthResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
}

func TestRefreshToken_AccessTokenRejected(t *testing.T) {
	h, _, tm := newAuthFixture(t, &handlers.MockDirectory{})

	accessToken, err := tm.GenerateAccessToken(42, "user@example.com", "employee")
	require.NoError(t, err)

	req := handlers.NewTestRequest(t, "POST", "/auth/refresh", handlers.RefreshTokenRequest{
		RefreshToken: accessToken,
	})

	w := httptest.NewRecorder()
	h.RefreshToken(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestRefreshToken_Garbage(t *testing.T) {
	h, _, _ := newAuthFixture(t, &handlers.MockDirectory{})

	req := handlers.NewTestRequest(t, "POST", "/auth/refresh", handlers.RefreshTokenRequest{
		RefreshToken: "not.a.token",
	})

	w := httptest.NewRecorder()
	h.RefreshToken(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestRefreshToken_InactiveAccount(t *testing.T) {
	identity := activeIdentity(t, "password123")
	identity.Active = false
	h, _, tm := newAuthFixture(t, &handlers.MockDirectory{
		GetByIDFunc: func(ctx context.Context, userID int64) (*models.Identity, error) {
			return identity, nil
		},
	})

	refreshToken, err := tm.GenerateRefreshToken(42, identity.Email, identity.Role)
	require.NoError(t, err)

	req := handlers.NewTestRequest(t, "POST", "/auth/refresh", handlers.RefreshTokenRequest{
		RefreshToken: refreshToken,
	})

	w := httptest.NewRecorder()
	h.RefreshToken(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogout_Success(t *testing.T) {
	h, _, _ := newAuthFixture(t, &handlers.MockDirectory{})

	req := handlers.NewTestRequest(t, "POST", "/auth/logout", nil)
	req = handlers.WithAuthContext(req, 42, "user@example.com", "employee")

	w := httptest.NewRecorder()
	h.Logout(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestLogout_Unauthenticated(t *testing.T) {
	h, _, _ := newAuthFixture(t, &handlers.MockDirectory{})

	req := handlers.NewTestRequest(t, "POST", "/auth/logout", nil)

	w := httptest.NewRecorder()
	h.Logout(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestAttemptInfo_DefaultsToLoginRoute(t *testing.T) {
	h, g, _ := newAuthFixture(t, &handlers.MockDirectory{})

	// Three tracked attempts against the login route from the same client
	for i := 0; i < 3; i++ {
		g.CheckAndTrack(handlers.NewTestRequest(t, "POST", "/auth/login", nil))
	}

	req := httptest.NewRequest("GET", "/auth/attempts", nil)

	w := httptest.NewRecorder()
	h.AttemptInfo(w, req)

	var info guard.AttemptInfo
	handlers.AssertJSONResponse(t, w, 200, &info)
	assert.Equal(t, 3, info.Current)
	assert.Equal(t, 2, info.Remaining)
	assert.Equal(t, 5, info.Limit)
}

func TestAttemptInfo_ExplicitRoute(t *testing.T) {
	h, g, _ := newAuthFixture(t, &handlers.MockDirectory{})

	g.CheckAndTrack(handlers.NewTestRequest(t, "POST", "/auth/refresh", nil))

	req := httptest.NewRequest("GET", "/auth/attempts?route=/auth/refresh", nil)

	w := httptest.NewRecorder()
	h.AttemptInfo(w, req)

	var info guard.AttemptInfo
	handlers.AssertJSONResponse(t, w, 200, &info)
	assert.Equal(t, 1, info.Current)
}
