package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEventKind(t *testing.T) {
	known := []string{
		"customer.created",
		"customer.deleted",
		"customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.paused",
		"customer.subscription.deleted",
		"invoice.paid",
		"invoice.payment_failed",
		"customer.enroll_free_tier",
	}
	for _, s := range known {
		kind, ok := ParseEventKind(s)
		assert.True(t, ok, s)
		assert.Equal(t, EventKind(s), kind)
	}

	for _, s := range []string{"charge.succeeded", "payment_intent.created", ""} {
		_, ok := ParseEventKind(s)
		assert.False(t, ok, s)
	}
}
