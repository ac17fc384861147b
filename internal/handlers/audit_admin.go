package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opsdeck/authguard/internal/auditlog"
	"github.com/opsdeck/authguard/internal/models"
	pkghttp "github.com/opsdeck/authguard/pkg/http"
)

const dateLayout = "2006-01-02"

// AuditAdminHandler exposes the audit trail query and maintenance surface
type AuditAdminHandler struct {
	store  *auditlog.Store
	logger *slog.Logger
}

// NewAuditAdminHandler creates a new AuditAdminHandler
func NewAuditAdminHandler(store *auditlog.Store, logger *slog.Logger) *AuditAdminHandler {
	return &AuditAdminHandler{
		store:  store,
		logger: logger,
	}
}

// ArchiveRequest is the request body for an archive sweep
type ArchiveRequest struct {
	DaysToKeep int `json:"daysToKeep" validate:"required,gte=1"`
}

// PartitionListResponse is the partition inventory
type PartitionListResponse struct {
	Files []auditlog.PartitionInfo `json:"files"`
	Count int                      `json:"count"`
}

// LogQueryResponse is a range query result
type LogQueryResponse struct {
	Start string          `json:"start"`
	End   string          `json:"end"`
	Logs  []auditlog.Entry `json:"logs"`
	Count int             `json:"count"`
}

// ListFiles returns the partition inventory, newest first
// @Summary List audit log partitions
// @Security BearerAuth
// @Produce json
// @Success 200 {object} PartitionListResponse
// @Router /admin/audit/files [get]
func (h *AuditAdminHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.store.ListPartitions()
	if err != nil {
		h.logger.Error("failed to list audit partitions", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(PartitionListResponse{
		Files: files,
		Count: len(files),
	})
}

// DownloadFile streams one raw partition. The filename must match the
// partition naming scheme exactly; anything else is rejected before it
// touches the filesystem.
// @Summary Download a raw audit partition
// @Security BearerAuth
// @Produce application/x-ndjson
// @Success 200
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /admin/audit/files/{filename} [get]
func (h *AuditAdminHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	path, err := h.store.PartitionPath(filename)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid audit log filename")
		return
	}

	if _, err := os.Stat(path); err != nil {
		pkghttp.WriteNotFound(w, "Audit log file not found")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, path)
}

// QueryLogs returns entries for a date range with optional filters. Missing
// bounds default to the trailing week ending today.
// @Summary Query audit logs
// @Security BearerAuth
// @Param start query string false "Start date (YYYY-MM-DD)"
// @Param end query string false "End date (YYYY-MM-DD)"
// @Param userId query int false "Filter by user id"
// @Param action query string false "Filter by action"
// @Param status query string false "Filter by status"
// @Produce json
// @Success 200 {object} LogQueryResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /admin/audit/logs [get]
func (h *AuditAdminHandler) QueryLogs(w http.ResponseWriter, r *http.Request) {
	end := time.Now()
	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			pkghttp.WriteBadRequest(w, "end must be a date in YYYY-MM-DD format")
			return
		}
		end = parsed
	}

	start := end.AddDate(0, 0, -(auditlog.DefaultReportDays - 1))
	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			pkghttp.WriteBadRequest(w, "start must be a date in YYYY-MM-DD format")
			return
		}
		start = parsed
	}

	if start.After(end) {
		pkghttp.WriteBadRequest(w, "start must not be after end")
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	entries, err := h.store.QueryRange(start, end, filter)
	if err != nil {
		h.logger.Error("audit query failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	auditlog.SortByCreatedAtDesc(entries)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(LogQueryResponse{
		Start: start.Format(dateLayout),
		End:   end.Format(dateLayout),
		Logs:  entries,
		Count: len(entries),
	})
}

// Today returns today's entries with optional filters
// @Summary Query today's audit logs
// @Security BearerAuth
// @Produce json
// @Success 200 {object} LogQueryResponse
// @Router /admin/audit/today [get]
func (h *AuditAdminHandler) Today(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	entries, err := h.store.QueryToday(filter)
	if err != nil {
		h.logger.Error("audit query failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	auditlog.SortByCreatedAtDesc(entries)

	today := time.Now().Format(dateLayout)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(LogQueryResponse{
		Start: today,
		End:   today,
		Logs:  entries,
		Count: len(entries),
	})
}

// UserReport summarizes a single user's trailing activity
// @Summary Per-user audit report
// @Security BearerAuth
// @Param id path int true "User id"
// @Param days query int false "Trailing window in days"
// @Produce json
// @Success 200 {object} auditlog.UserReport
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /admin/audit/users/{id} [get]
func (h *AuditAdminHandler) UserReport(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		pkghttp.WriteBadRequest(w, "id must be a positive number")
		return
	}

	days, err := daysFromQuery(r, auditlog.DefaultReportDays)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	entries, err := h.queryTrailing(days, auditlog.Filter{UserID: userID})
	if err != nil {
		h.logger.Error("audit query failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	report := auditlog.BuildUserReport(entries, userID, days)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(report)
}

// Summary aggregates the trailing window of authentication activity
// @Summary Audit activity summary
// @Security BearerAuth
// @Param days query int false "Trailing window in days"
// @Produce json
// @Success 200 {object} auditlog.Summary
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /admin/audit/summary [get]
func (h *AuditAdminHandler) Summary(w http.ResponseWriter, r *http.Request) {
	days, err := daysFromQuery(r, auditlog.DefaultReportDays)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	entries, err := h.queryTrailing(days, auditlog.Filter{})
	if err != nil {
		h.logger.Error("audit query failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	summary := auditlog.Summarize(entries)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(struct {
		Days int `json:"days"`
		auditlog.Summary
	}{Days: days, Summary: summary})
}

// Suspicious flags users whose failure count met the threshold in the
// trailing window
// @Summary Suspicious activity report
// @Security BearerAuth
// @Param days query int false "Trailing window in days"
// @Param threshold query int false "Failure count threshold"
// @Produce json
// @Success 200
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /admin/audit/suspicious [get]
func (h *AuditAdminHandler) Suspicious(w http.ResponseWriter, r *http.Request) {
	days, err := daysFromQuery(r, auditlog.DefaultReportDays)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	threshold := auditlog.DefaultSuspiciousThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		threshold, err = strconv.Atoi(raw)
		if err != nil || threshold <= 0 {
			pkghttp.WriteBadRequest(w, "threshold must be a positive number")
			return
		}
	}

	entries, err := h.queryTrailing(days, auditlog.Filter{})
	if err != nil {
		h.logger.Error("audit query failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	users := auditlog.DetectSuspicious(entries, threshold)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(struct {
		Days      int                       `json:"days"`
		Threshold int                       `json:"threshold"`
		Users     []auditlog.SuspiciousUser `json:"users"`
		Count     int                       `json:"count"`
	}{Days: days, Threshold: threshold, Users: users, Count: len(users)})
}

// Archive moves partitions older than the retention window into the archive
// subdirectory
// @Summary Archive old audit partitions
// @Security BearerAuth
// @Accept json
// @Param request body ArchiveRequest true "Retention window"
// @Produce json
// @Success 200
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /admin/audit/archive [post]
func (h *AuditAdminHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req ArchiveRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	archived, err := h.store.Archive(req.DaysToKeep)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "daysToKeep must be a positive number")
			return
		}
		h.logger.Error("archive failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]int{
		"archived": archived,
	})
}

func (h *AuditAdminHandler) queryTrailing(days int, f auditlog.Filter) ([]auditlog.Entry, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -(days - 1))
	return h.store.QueryRange(start, end, f)
}

func daysFromQuery(r *http.Request, defaultDays int) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return defaultDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return 0, fmt.Errorf("days must be a positive number")
	}
	return days, nil
}

func filterFromQuery(r *http.Request) (auditlog.Filter, error) {
	var f auditlog.Filter

	if raw := r.URL.Query().Get("userId"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			return f, fmt.Errorf("userId must be a positive number")
		}
		f.UserID = userID
	}

	if raw := r.URL.Query().Get("action"); raw != "" {
		action := auditlog.Action(raw)
		if !auditlog.ValidAction(action) {
			return f, fmt.Errorf("unknown action %q", raw)
		}
		f.Action = action
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := auditlog.Status(raw)
		if status != auditlog.StatusSuccess && status != auditlog.StatusFail {
			return f, fmt.Errorf("status must be success or fail")
		}
		f.Status = status
	}

	return f, nil
}
