package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"

	"github.com/opsdeck/authguard/internal/auditlog"
	"github.com/opsdeck/authguard/internal/auth"
	"github.com/opsdeck/authguard/internal/guard"
	pkghttp "github.com/opsdeck/authguard/pkg/http"
)

// GuardAdminHandler exposes the administrative view of the blocklist
type GuardAdminHandler struct {
	guard  *guard.Guard
	audit  *auditlog.Service
	logger *slog.Logger
}

// NewGuardAdminHandler creates a new GuardAdminHandler
func NewGuardAdminHandler(g *guard.Guard, audit *auditlog.Service, logger *slog.Logger) *GuardAdminHandler {
	return &GuardAdminHandler{
		guard:  g,
		audit:  audit,
		logger: logger,
	}
}

// UnblockRequest addresses a block either by its composite key or by its parts
type UnblockRequest struct {
	Key       string `json:"key"`
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
	Route     string `json:"route"`
}

// BlockListResponse is the active block inventory
type BlockListResponse struct {
	Blocks []guard.BlockInfo `json:"blocks"`
	Count  int               `json:"count"`
}

// ListBlocks returns every active block, soonest-to-expire last
// @Summary List active blocks
// @Security BearerAuth
// @Produce json
// @Success 200 {object} BlockListResponse
// @Router /admin/blocks [get]
func (h *GuardAdminHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	blocks := h.guard.ActiveBlocks()
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].BlockedUntil.After(blocks[j].BlockedUntil)
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(BlockListResponse{
		Blocks: blocks,
		Count:  len(blocks),
	})
}

// Unblock lifts a block by key or by (ip, userAgent, route)
// @Summary Remove a block
// @Security BearerAuth
// @Accept json
// @Param request body UnblockRequest true "Block address"
// @Success 200
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /admin/blocks [delete]
func (h *GuardAdminHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	var req UnblockRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	key := req.Key
	if key == "" {
		if req.IP == "" || req.Route == "" {
			pkghttp.WriteBadRequest(w, "Either key or ip and route are required")
			return
		}
		key = guard.Key(req.IP, req.UserAgent, req.Route)
	}

	cleared := h.guard.ClearBlock(key)
	if !cleared {
		pkghttp.WriteNotFound(w, "No active block for this client")
		return
	}

	parts := guard.SplitKey(key)
	adminID := int64(0)
	if claims := auth.GetUserFromContext(r); claims != nil {
		adminID = claims.UserID
	}
	h.audit.Record(adminID, auditlog.ActionOther, auditlog.StatusSuccess,
		map[string]any{"reason": "admin_unblock", "ip": parts.IP, "route": parts.Route}, r)

	h.logger.Info("block cleared by admin",
		slog.String("ip", parts.IP),
		slog.String("route", parts.Route),
		slog.Int64("admin_id", adminID),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Block cleared",
	})
}
