package auditlog

import (
	"encoding/json"
	"log/slog"
	"net/http"

	pkghttp "github.com/opsdeck/authguard/pkg/http"
)

// Service is the best-effort recording front of the Store: it dual-writes
// every event to the operational logger and the partition file, and swallows
// store failures so the calling request's own success or failure is never
// affected by the audit trail.
type Service struct {
	store  *Store
	logger *slog.Logger
}

// NewService creates a Service over a Store
func NewService(store *Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Store exposes the underlying store for the query surfaces
func (s *Service) Store() *Store {
	return s.store
}

// Record writes an event, taking client address and user agent from the
// request when one is available. The boolean reports whether the durable
// write succeeded; callers are free to ignore it.
func (s *Service) Record(userID int64, action Action, status Status, context map[string]any, r *http.Request) bool {
	ip, userAgent := "", ""
	if r != nil {
		ip = pkghttp.ExtractClientIP(r)
		userAgent = r.Header.Get("User-Agent")
	}
	return s.RecordMeta(userID, action, status, context, ip, userAgent)
}

// RecordMeta is Record with explicit client metadata
func (s *Service) RecordMeta(userID int64, action Action, status Status, context map[string]any, ip, userAgent string) bool {
	entry := Entry{
		UserID:    userID,
		Action:    action,
		Status:    status,
		IP:        ip,
		UserAgent: userAgent,
	}

	// An empty context means "no details", not an empty JSON object
	if len(context) > 0 {
		if details, err := json.Marshal(context); err == nil {
			entry.Details = string(details)
		}
	}

	attrs := []any{
		slog.String("action", string(action)),
		slog.String("status", string(status)),
		slog.Int64("user_id", userID),
	}
	if ip != "" {
		attrs = append(attrs, slog.String("ip", ip))
	}
	if entry.Details != "" {
		attrs = append(attrs, slog.String("details", entry.Details))
	}

	if status == StatusSuccess {
		s.logger.Info("auth event", attrs...)
	} else {
		s.logger.Warn("auth event", attrs...)
	}

	if err := s.store.Append(entry); err != nil {
		s.logger.Error("failed to persist auth event",
			slog.String("action", string(action)),
			slog.Any("error", err),
		)
		return false
	}
	return true
}

// ReportBlock satisfies the guard's best-effort block reporter
func (s *Service) ReportBlock(ip, userAgent, route, identity string) {
	context := map[string]any{
		"reason": "rate_limit_block",
		"route":  route,
	}
	if identity != "" {
		context["identity"] = identity
	}
	s.RecordMeta(0, ActionOther, StatusFail, context, ip, userAgent)
}
