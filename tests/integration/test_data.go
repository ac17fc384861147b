package integration

import (
	"fmt"
	"time"
)

// TestEmployee generates unique test credentials using timestamp
func TestEmployee(suffix string) (email, password string) {
	ts := time.Now().UnixNano()
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "TestPassword123!"
	return
}
