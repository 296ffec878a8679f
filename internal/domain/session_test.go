package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		session Session
		want    bool
	}{
		{"active and in the future", Session{IsActive: true, ExpiresAt: now.Add(time.Hour)}, false},
		{"inactive but in the future", Session{IsActive: false, ExpiresAt: now.Add(time.Hour)}, true},
		{"active but past deadline", Session{IsActive: true, ExpiresAt: now.Add(-time.Minute)}, true},
		{"inactive and past deadline", Session{IsActive: false, ExpiresAt: now.Add(-time.Minute)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.session.Expired(now))
		})
	}
}
