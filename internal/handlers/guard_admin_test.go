package handlers_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/authguard/internal/guard"
	"github.com/opsdeck/authguard/internal/handlers"
)

func newGuardAdminFixture(t *testing.T) (*handlers.GuardAdminHandler, *guard.Guard) {
	g := guard.New(guard.Config{}, handlers.DiscardLogger())
	h := handlers.NewGuardAdminHandler(g, handlers.NewTestAuditService(t), handlers.DiscardLogger())
	return h, g
}

func blockClient(t *testing.T, g *guard.Guard, route string) {
	req := handlers.NewTestRequest(t, "POST", route, nil)
	req.Header.Set("User-Agent", "test-agent")
	g.OnLimitExceeded(req)
}

func TestListBlocks_Empty(t *testing.T) {
	h, _ := newGuardAdminFixture(t)

	req := httptest.NewRequest("GET", "/admin/blocks", nil)
	w := httptest.NewRecorder()
	h.ListBlocks(w, req)

	var resp handlers.BlockListResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, 0, resp.Count)
}

func TestListBlocks_ReturnsActiveBlocks(t *testing.T) {
	h, g := newGuardAdminFixture(t)
	blockClient(t, g, "/auth/login")
	blockClient(t, g, "/auth/refresh")

	req := httptest.NewRequest("GET", "/admin/blocks", nil)
	w := httptest.NewRecorder()
	h.ListBlocks(w, req)

	var resp handlers.BlockListResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, 2, resp.Count)

	for _, b := range resp.Blocks {
		assert.Equal(t, "192.0.2.1", b.IP)
		assert.Equal(t, "test-agent", b.UserAgent)
		assert.Positive(t, b.RemainingMs)
	}
}

func TestUnblock_ByKey(t *testing.T) {
	h, g := newGuardAdminFixture(t)
	blockClient(t, g, "/auth/login")

	blocks := g.ActiveBlocks()
	require.Len(t, blocks, 1)

	req := handlers.NewTestRequest(t, "DELETE", "/admin/blocks", handlers.UnblockRequest{
		Key: blocks[0].Key,
	})
	req = handlers.WithAuthContext(req, 7, "admin@example.com", "admin")

	w := httptest.NewRecorder()
	h.Unblock(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Empty(t, g.ActiveBlocks())
}

func TestUnblock_ByParts(t *testing.T) {
	h, g := newGuardAdminFixture(t)
	blockClient(t, g, "/auth/login")

	req := handlers.NewTestRequest(t, "DELETE", "/admin/blocks", handlers.UnblockRequest{
		IP:        "192.0.2.1",
		UserAgent: "test-agent",
		Route:     "/auth/login",
	})
	req = handlers.WithAuthContext(req, 7, "admin@example.com", "admin")

	w := httptest.NewRecorder()
	h.Unblock(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Empty(t, g.ActiveBlocks())
}

func TestUnblock_NotFound(t *testing.T) {
	h, _ := newGuardAdminFixture(t)

	req := handlers.NewTestRequest(t, "DELETE", "/admin/blocks", handlers.UnblockRequest{
		IP:    "203.0.113.9",
		Route: "/auth/login",
	})

	w := httptest.NewRecorder()
	h.Unblock(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

func TestUnblock_MissingAddress(t *testing.T) {
	h, _ := newGuardAdminFixture(t)

	req := handlers.NewTestRequest(t, "DELETE", "/admin/blocks", handlers.UnblockRequest{
		UserAgent: "test-agent",
	})

	w := httptest.NewRecorder()
	h.Unblock(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}
