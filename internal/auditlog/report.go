package auditlog

import (
	"math"
	"sort"
	"time"
)

// Default reporting parameters
const (
	DefaultSuspiciousThreshold = 5
	DefaultReportDays          = 7
)

// StatusCounts tallies outcomes for one grouping
type StatusCounts struct {
	Success int `json:"success"`
	Fail    int `json:"fail"`
	Total   int `json:"total"`
}

// Summary aggregates a window of authentication events
type Summary struct {
	Total       int                     `json:"total"`
	ByAction    map[Action]StatusCounts `json:"byAction"`
	ByStatus    map[Status]int          `json:"byStatus"`
	UniqueUsers int                     `json:"uniqueUsers"`
	UniqueIPs   int                     `json:"uniqueIps"`
	FailureRate float64                 `json:"failureRate"` // percent, two decimals
}

// SuspiciousUser flags a user whose failure count met the threshold
type SuspiciousUser struct {
	UserID        int64     `json:"userId"`
	FailureCount  int       `json:"failureCount"`
	IPs           []string  `json:"ips"`
	LastFailureAt time.Time `json:"lastFailureAt"`
}

// UserReport summarizes one user's trailing activity
type UserReport struct {
	UserID   int64                   `json:"userId"`
	Days     int                     `json:"days"`
	ByAction map[Action]StatusCounts `json:"byAction"`
	Success  int                     `json:"success"`
	Fail     int                     `json:"fail"`
	Total    int                     `json:"total"`
}

// Summarize computes aggregate counts over a query result
func Summarize(entries []Entry) Summary {
	summary := Summary{
		Total:    len(entries),
		ByAction: make(map[Action]StatusCounts),
		ByStatus: make(map[Status]int),
	}

	users := make(map[int64]struct{})
	ips := make(map[string]struct{})
	failures := 0

	for _, e := range entries {
		counts := summary.ByAction[e.Action]
		counts.Total++
		if e.Status == StatusSuccess {
			counts.Success++
		} else {
			counts.Fail++
			failures++
		}
		summary.ByAction[e.Action] = counts
		summary.ByStatus[e.Status]++

		if e.UserID != 0 {
			users[e.UserID] = struct{}{}
		}
		if e.IP != "" {
			ips[e.IP] = struct{}{}
		}
	}

	summary.UniqueUsers = len(users)
	summary.UniqueIPs = len(ips)
	if summary.Total > 0 {
		rate := float64(failures) / float64(summary.Total) * 100
		summary.FailureRate = math.Round(rate*100) / 100
	}
	return summary
}

// DetectSuspicious groups failed attempts by user and flags every user whose
// failure count meets or exceeds the threshold. Results are ordered by
// failure count descending so the worst offenders come first.
func DetectSuspicious(entries []Entry, threshold int) []SuspiciousUser {
	if threshold <= 0 {
		threshold = DefaultSuspiciousThreshold
	}

	type userFailures struct {
		count int
		ips   map[string]struct{}
		last  time.Time
	}
	byUser := make(map[int64]*userFailures)

	for _, e := range entries {
		if e.Status != StatusFail {
			continue
		}
		uf, ok := byUser[e.UserID]
		if !ok {
			uf = &userFailures{ips: make(map[string]struct{})}
			byUser[e.UserID] = uf
		}
		uf.count++
		if e.IP != "" {
			uf.ips[e.IP] = struct{}{}
		}
		if e.CreatedAt.After(uf.last) {
			uf.last = e.CreatedAt
		}
	}

	var flagged []SuspiciousUser
	for userID, uf := range byUser {
		if uf.count < threshold {
			continue
		}
		ips := make([]string, 0, len(uf.ips))
		for ip := range uf.ips {
			ips = append(ips, ip)
		}
		sort.Strings(ips)
		flagged = append(flagged, SuspiciousUser{
			UserID:        userID,
			FailureCount:  uf.count,
			IPs:           ips,
			LastFailureAt: uf.last,
		})
	}

	sort.Slice(flagged, func(i, j int) bool {
		if flagged[i].FailureCount != flagged[j].FailureCount {
			return flagged[i].FailureCount > flagged[j].FailureCount
		}
		return flagged[i].UserID < flagged[j].UserID
	})
	return flagged
}

// BuildUserReport tallies one user's entries. Entries for other users are
// ignored so callers may pass an unfiltered query result.
func BuildUserReport(entries []Entry, userID int64, days int) UserReport {
	if days <= 0 {
		days = DefaultReportDays
	}

	report := UserReport{
		UserID:   userID,
		Days:     days,
		ByAction: make(map[Action]StatusCounts),
	}

	for _, e := range entries {
		if e.UserID != userID {
			continue
		}
		counts := report.ByAction[e.Action]
		counts.Total++
		if e.Status == StatusSuccess {
			counts.Success++
			report.Success++
		} else {
			counts.Fail++
			report.Fail++
		}
		report.ByAction[e.Action] = counts
		report.Total++
	}
	return report
}

// SortByCreatedAtDesc orders entries most recent first. The read path makes
// no ordering promise, so consumers that need chronology sort explicitly.
func SortByCreatedAtDesc(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}
