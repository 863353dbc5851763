package quota

import (
	"testing"

	"github.com/specmint/specmint/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestQuotaTable(t *testing.T) {
	tests := []struct {
		tier types.Tier
		want Quota
	}{
		{types.TierFree, Quota{Specifications: 3, AIGenerations: 10, TeamMembers: 1, StorageMB: 100, APICalls: 100}},
		{types.TierStarter, Quota{Specifications: 50, AIGenerations: 200, TeamMembers: 3, StorageMB: 1024, APICalls: 5000}},
		{types.TierProfessional, Quota{Specifications: 500, AIGenerations: 2000, TeamMembers: 10, StorageMB: 10240, APICalls: 50000}},
		{types.TierEnterprise, Quota{Specifications: Unlimited, AIGenerations: Unlimited, TeamMembers: Unlimited, StorageMB: Unlimited, APICalls: Unlimited}},
	}

	for _, tt := range tests {
		t.Run(tt.tier.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ForTier(tt.tier))
		})
	}
}

func TestForTierUnknownFallsBackToFree(t *testing.T) {
	assert.Equal(t, ForTier(types.TierFree), ForTier(types.Tier("corrupt")))
}

func TestLimitFor(t *testing.T) {
	q := ForTier(types.TierStarter)

	limit, err := q.LimitFor(types.DimensionAIGenerations)
	assert.NoError(t, err)
	assert.Equal(t, int64(200), limit)

	_, err = q.LimitFor(types.QuotaDimension("unknown"))
	assert.Error(t, err)
}

func TestIsUnlimited(t *testing.T) {
	assert.True(t, IsUnlimited(Unlimited))
	assert.False(t, IsUnlimited(0))
	assert.False(t, IsUnlimited(100))
}
