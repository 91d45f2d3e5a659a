package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogIDsAreUnique(t *testing.T) {
	t.Parallel()
	seen := map[string]bool{}
	for _, m := range Catalog {
		if seen[m.ID] {
			t.Fatalf("duplicate catalog id %q", m.ID)
		}
		seen[m.ID] = true
	}
	_, ok := FindModel(DefaultModelID)
	require.True(t, ok, "default model must be in the catalog")
}

func TestTierPartition(t *testing.T) {
	t.Parallel()
	free, premium := FreeModels(), PremiumModels()
	assert.Equal(t, len(Catalog), len(free)+len(premium))
	for _, m := range free {
		assert.Equal(t, TierFree, m.Tier)
	}
}

func TestModelsByCategory(t *testing.T) {
	t.Parallel()
	coding := ModelsByCategory(CategoryCoding)
	require.Len(t, coding, 2)
	assert.Equal(t, "deepseek-coder", coding[0].ID)
	assert.Empty(t, ModelsByCategory(CategoryUtility))

	groups := CategoryGroups()
	assert.Equal(t, "Latest Models", groups[0].Label)
	assert.Equal(t, "Free Models", groups[len(groups)-1].Label)
}

func TestDisplayName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "GPT-5 Mini", DisplayName("gpt-5-mini"))
	assert.Equal(t, "Claude 4.1 Opus (Premium)", DisplayName("avalai/claude-4-opus"))
	assert.Equal(t, "🧠 O3 (Advanced)", DisplayName("avalai/o3"))
	assert.Equal(t, "mystery-model", DisplayName("mystery-model"))
}

func TestAvailableModels(t *testing.T) {
	t.Parallel()
	models := AvailableModels()
	require.NotEmpty(t, models)
	assert.Equal(t, "avalai/gpt-5", models[0].ID)
	assert.Equal(t, "gpt-5", CatalogID(models[0].ID))
	assert.Equal(t, "gemini-pro", CatalogID("gemini-pro"))

	for _, cat := range UICategories() {
		for _, id := range cat.Models {
			assert.Contains(t, modelDisplayNames, id)
		}
	}
	for _, id := range ModelRecommendations {
		assert.Contains(t, modelDisplayNames, id)
	}
}

func TestRoutingTableIsConsistent(t *testing.T) {
	t.Parallel()
	cfg := DefaultRoutingConfig()
	_, ok := cfg.Target(cfg.DefaultModel)
	require.True(t, ok)
	for _, id := range cfg.FallbackModels {
		_, ok := cfg.Target(id)
		assert.True(t, ok, "fallback %s must be routable", id)
	}
	for task, ids := range cfg.TaskModels {
		for _, id := range ids {
			_, ok := cfg.Target(id)
			assert.True(t, ok, "task %s model %s must be routable", task, id)
		}
	}
	assert.Equal(t, TierPremium, cfg.TierOf("unknown"))
	assert.Equal(t, "unknown", cfg.ProviderOf("unknown"))
	assert.Equal(t, "google", cfg.ProviderOf("gemini-pro"))
}
