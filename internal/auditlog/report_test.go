package auditlog_test

import (
	"testing"
	"time"

	"github.com/opsdeck/authguard/internal/auditlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_Arithmetic(t *testing.T) {
	var entries []auditlog.Entry
	for i := 0; i < 7; i++ {
		entries = append(entries, auditlog.Entry{
			UserID: int64(i%3 + 1), Action: auditlog.ActionLogin,
			Status: auditlog.StatusSuccess, IP: "203.0.113.7",
		})
	}
	for i := 0; i < 3; i++ {
		entries = append(entries, auditlog.Entry{
			UserID: 9, Action: auditlog.ActionLogin,
			Status: auditlog.StatusFail, IP: "198.51.100.4",
		})
	}

	s := auditlog.Summarize(entries)

	assert.Equal(t, 10, s.Total)
	assert.Equal(t, auditlog.StatusCounts{Success: 7, Fail: 3, Total: 10}, s.ByAction[auditlog.ActionLogin])
	assert.Equal(t, 7, s.ByStatus[auditlog.StatusSuccess])
	assert.Equal(t, 3, s.ByStatus[auditlog.StatusFail])
	assert.Equal(t, 4, s.UniqueUsers)
	assert.Equal(t, 2, s.UniqueIPs)
	assert.Equal(t, 30.00, s.FailureRate)
}

func TestSummarize_FailureRateRounding(t *testing.T) {
	entries := []auditlog.Entry{
		{Action: auditlog.ActionLogin, Status: auditlog.StatusFail},
		{Action: auditlog.ActionLogin, Status: auditlog.StatusSuccess},
		{Action: auditlog.ActionLogin, Status: auditlog.StatusSuccess},
	}

	s := auditlog.Summarize(entries)
	assert.Equal(t, 33.33, s.FailureRate)
}

func TestSummarize_Empty(t *testing.T) {
	s := auditlog.Summarize(nil)
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 0.0, s.FailureRate)
	assert.Empty(t, s.ByAction)
}

func TestDetectSuspicious_ThresholdAndIPs(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	var entries []auditlog.Entry
	// User 7: five failures from two IPs
	for i := 0; i < 5; i++ {
		ip := "203.0.113.7"
		if i%2 == 1 {
			ip = "198.51.100.4"
		}
		entries = append(entries, auditlog.Entry{
			UserID: 7, Action: auditlog.ActionLogin, Status: auditlog.StatusFail,
			IP: ip, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	// User 8: below threshold
	entries = append(entries,
		auditlog.Entry{UserID: 8, Action: auditlog.ActionLogin, Status: auditlog.StatusFail, IP: "192.0.2.1", CreatedAt: base},
		auditlog.Entry{UserID: 8, Action: auditlog.ActionLogin, Status: auditlog.StatusSuccess, IP: "192.0.2.1", CreatedAt: base},
	)

	flagged := auditlog.DetectSuspicious(entries, 5)
	require.Len(t, flagged, 1)

	assert.Equal(t, int64(7), flagged[0].UserID)
	assert.Equal(t, 5, flagged[0].FailureCount)
	assert.Equal(t, []string{"198.51.100.4", "203.0.113.7"}, flagged[0].IPs)
	assert.True(t, flagged[0].LastFailureAt.Equal(base.Add(4*time.Minute)))
}

func TestDetectSuspicious_NonPositiveThresholdUsesDefault(t *testing.T) {
	var entries []auditlog.Entry
	for i := 0; i < 4; i++ {
		entries = append(entries, auditlog.Entry{
			UserID: 7, Action: auditlog.ActionLogin, Status: auditlog.StatusFail,
		})
	}

	assert.Empty(t, auditlog.DetectSuspicious(entries, 0), "four failures stay below the default threshold of five")
}

func TestDetectSuspicious_OrderedWorstFirst(t *testing.T) {
	var entries []auditlog.Entry
	for i := 0; i < 5; i++ {
		entries = append(entries, auditlog.Entry{UserID: 1, Status: auditlog.StatusFail, Action: auditlog.ActionLogin})
	}
	for i := 0; i < 8; i++ {
		entries = append(entries, auditlog.Entry{UserID: 2, Status: auditlog.StatusFail, Action: auditlog.ActionLogin})
	}

	flagged := auditlog.DetectSuspicious(entries, 5)
	require.Len(t, flagged, 2)
	assert.Equal(t, int64(2), flagged[0].UserID)
	assert.Equal(t, int64(1), flagged[1].UserID)
}

func TestBuildUserReport(t *testing.T) {
	entries := []auditlog.Entry{
		{UserID: 5, Action: auditlog.ActionLogin, Status: auditlog.StatusSuccess},
		{UserID: 5, Action: auditlog.ActionLogin, Status: auditlog.StatusFail},
		{UserID: 5, Action: auditlog.ActionLogout, Status: auditlog.StatusSuccess},
		{UserID: 6, Action: auditlog.ActionLogin, Status: auditlog.StatusFail},
	}

	report := auditlog.BuildUserReport(entries, 5, 7)

	assert.Equal(t, int64(5), report.UserID)
	assert.Equal(t, 7, report.Days)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Success)
	assert.Equal(t, 1, report.Fail)
	assert.Equal(t, auditlog.StatusCounts{Success: 1, Fail: 1, Total: 2}, report.ByAction[auditlog.ActionLogin])
}

func TestSortByCreatedAtDesc(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	entries := []auditlog.Entry{
		{UserID: 1, CreatedAt: base},
		{UserID: 2, CreatedAt: base.Add(2 * time.Hour)},
		{UserID: 3, CreatedAt: base.Add(time.Hour)},
	}

	auditlog.SortByCreatedAtDesc(entries)

	assert.Equal(t, int64(2), entries[0].UserID)
	assert.Equal(t, int64(3), entries[1].UserID)
	assert.Equal(t, int64(1), entries[2].UserID)
}
