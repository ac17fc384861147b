package lock_test

import (
	"testing"

	"github.com/opsdeck/authguard/internal/lock"
	"github.com/stretchr/testify/assert"
)

func TestKey_Deterministic(t *testing.T) {
	assert.Equal(t, lock.Key("auth_log_archive"), lock.Key("auth_log_archive"))
}

func TestKey_DistinctNames(t *testing.T) {
	assert.NotEqual(t, lock.Key("auth_log_archive"), lock.Key("guard_sweep"))
	assert.NotEqual(t, lock.Key("a"), lock.Key("b"))
}
