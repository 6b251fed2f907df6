package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenixedu/modelgate/types"
)

func TestNewValidation(t *testing.T) {
	valid := []Descriptor{
		{ID: "m1", InputRate: 0.01, OutputRate: 0.03, MaxUnits: 1000, Speed: SpeedFast, Quality: QualityHigh},
	}
	allTiers := map[types.Tier][]string{
		types.TierFree: {"m1"}, types.TierBasic: {"m1"},
		types.TierPremium: {"m1"}, types.TierPro: {"m1"},
	}

	tests := []struct {
		name        string
		descriptors []Descriptor
		allow       map[types.Tier][]string
		wantErr     bool
	}{
		{"valid", valid, allTiers, false},
		{"empty catalog", nil, allTiers, true},
		{"empty id", []Descriptor{{ID: ""}}, allTiers, true},
		{"negative rate", []Descriptor{{ID: "m1", InputRate: -1}}, allTiers, true},
		{"duplicate id", append(valid, valid[0]), allTiers, true},
		{"missing tier allowlist", valid, map[types.Tier][]string{types.TierFree: {"m1"}}, true},
		{"allowlist unknown model", valid, map[types.Tier][]string{
			types.TierFree: {"ghost"}, types.TierBasic: {"m1"},
			types.TierPremium: {"m1"}, types.TierPro: {"m1"},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.descriptors, tt.allow)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.ErrInvalidConfig, types.GetErrorCode(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDescribeUnknownModel(t *testing.T) {
	c := Default()

	_, err := c.Describe("gpt-17")
	require.Error(t, err)
	assert.Equal(t, types.ErrModelNotFound, types.GetErrorCode(err))

	d, err := c.Describe("gpt-5-nano")
	require.NoError(t, err)
	assert.Equal(t, SpeedFastest, d.Speed)
}

func TestCost(t *testing.T) {
	c := Default()

	// gpt-5-mini: 0.01 输入 / 0.03 输出（每 1K units）
	cost, err := c.Cost("gpt-5-mini", 1000, 2000)
	require.NoError(t, err)
	assert.InDelta(t, 0.07, cost, 1e-9)

	// 小额调用保留精度，不会被舍到 0
	cost, err = c.Cost("gpt-5-nano", 10, 10)
	require.NoError(t, err)
	assert.Greater(t, cost, 0.0)

	_, err = c.Cost("unknown", 100, 100)
	assert.Equal(t, types.ErrModelNotFound, types.GetErrorCode(err))

	_, err = c.Cost("gpt-5-mini", -1, 100)
	assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))
}

func TestEstimateCost(t *testing.T) {
	c := Default()

	// 1000 units 按 40/60 拆分: 400*0.01/1000 + 600*0.03/1000 = 0.022
	cost, err := c.EstimateCost("gpt-5-mini", 1000)
	require.NoError(t, err)
	assert.InDelta(t, 0.022, cost, 1e-9)
}

func TestListForTier(t *testing.T) {
	c := Default()

	free := c.ListForTier(types.TierFree)
	assert.Equal(t, []string{"gpt-5-nano", "dall-e-3"}, free)

	pro := c.ListForTier(types.TierPro)
	assert.Contains(t, pro, "o3-deep-research")
	assert.NotContains(t, c.ListForTier(types.TierPremium), "o3-deep-research")

	// 未知层按 free 白名单处理
	unknown := c.ListForTier(types.Tier("vip"))
	assert.Equal(t, free, unknown)
}

func TestAllowed(t *testing.T) {
	c := Default()

	assert.True(t, c.Allowed(types.TierFree, "gpt-5-nano"))
	assert.False(t, c.Allowed(types.TierFree, "gpt-5"))
	assert.True(t, c.Allowed(types.TierPro, "gpt-5"))
}

func TestDefaultCatalogConsistency(t *testing.T) {
	c := Default()

	// 每个白名单条目都可被 Describe 且成本可计算
	for _, tier := range types.AllTiers() {
		for _, id := range c.ListForTier(tier) {
			_, err := c.Describe(id)
			require.NoError(t, err, "tier %s references %s", tier, id)
			_, err = c.Cost(id, 100, 100)
			require.NoError(t, err)
		}
	}
}
