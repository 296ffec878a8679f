package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "90")
	assert.Equal(t, 90, getEnvInt("TEST_INT", 15))

	// Values above the uint16 range must parse, not fall back.
	t.Setenv("TEST_INT", "100000")
	assert.Equal(t, 100000, getEnvInt("TEST_INT", 15))

	t.Setenv("TEST_INT", "not-a-number")
	assert.Equal(t, 15, getEnvInt("TEST_INT", 15))

	t.Setenv("TEST_INT", "")
	assert.Equal(t, 15, getEnvInt("TEST_INT", 15))
}

func TestGetEnvPort(t *testing.T) {
	t.Setenv("TEST_PORT", "8080")
	assert.Equal(t, uint16(8080), getEnvPort("TEST_PORT", 8000))

	t.Setenv("TEST_PORT", "0")
	assert.Equal(t, uint16(8000), getEnvPort("TEST_PORT", 8000))

	t.Setenv("TEST_PORT", "70000")
	assert.Equal(t, uint16(8000), getEnvPort("TEST_PORT", 8000))

	t.Setenv("TEST_PORT", "-1")
	assert.Equal(t, uint16(8000), getEnvPort("TEST_PORT", 8000))
}

func TestGetEnvDurations(t *testing.T) {
	t.Setenv("TEST_MINUTES", "120")
	assert.Equal(t, 2*time.Hour, getEnvMinutes("TEST_MINUTES", 15))

	// A long-lived refresh window exceeding 65535 of its unit still parses.
	t.Setenv("TEST_MINUTES", "100000")
	assert.Equal(t, 100000*time.Minute, getEnvMinutes("TEST_MINUTES", 15))

	t.Setenv("TEST_DAYS", "30")
	assert.Equal(t, 30*24*time.Hour, getEnvDays("TEST_DAYS", 7))
}
