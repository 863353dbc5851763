package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionStatusFromStripe(t *testing.T) {
	tests := []struct {
		stripe string
		want   SubscriptionStatus
	}{
		{"active", SubscriptionStatusActive},
		{"trialing", SubscriptionStatusActive},
		{"past_due", SubscriptionStatusPastDue},
		{"canceled", SubscriptionStatusCancelled},
		{"incomplete_expired", SubscriptionStatusCancelled},
		{"unpaid", SubscriptionStatusUnpaid},
		{"incomplete", SubscriptionStatusUnpaid},
		{"paused", SubscriptionStatusUnpaid},
	}

	for _, tt := range tests {
		t.Run(tt.stripe, func(t *testing.T) {
			assert.Equal(t, tt.want, SubscriptionStatusFromStripe(tt.stripe))
		})
	}
}

func TestTierOrdering(t *testing.T) {
	assert.Less(t, TierFree.Level(), TierStarter.Level())
	assert.Less(t, TierStarter.Level(), TierProfessional.Level())
	assert.Less(t, TierProfessional.Level(), TierEnterprise.Level())
}

func TestTierIsPaid(t *testing.T) {
	assert.False(t, TierFree.IsPaid())
	assert.True(t, TierStarter.IsPaid())
	assert.True(t, TierProfessional.IsPaid())
	assert.True(t, TierEnterprise.IsPaid())
}
