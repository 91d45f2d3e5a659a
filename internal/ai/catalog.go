package ai

import "strings"

// DefaultModelID is the catalog model used when none is requested and the
// last-resort target of ChatService fallbacks.
const DefaultModelID = "gpt-5-mini"

// AIModel is a static catalog entry
type AIModel struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Provider    Provider `json:"provider"`
	Tier        Tier     `json:"tier"`
	Category    Category `json:"category"`
	Description string   `json:"description,omitempty"`
	MaxTokens   int      `json:"maxTokens,omitempty"`
}

// Catalog lists the models the chat endpoint accepts
var Catalog = []AIModel{
	{ID: "gpt-5", Name: "GPT-5 (Latest)", Provider: ProviderAvalAI, Tier: TierPremium, Category: CategoryLatest, Description: "Most advanced OpenAI model", MaxTokens: 8000},
	{ID: "gpt-5-mini", Name: "GPT-5 Mini", Provider: ProviderAvalAI, Tier: TierPremium, Category: CategoryLatest, Description: "Fast and efficient", MaxTokens: 4000},

	{ID: "o3-pro", Name: "O3 Pro", Provider: ProviderAvalAI, Tier: TierPremium, Category: CategoryReasoning, Description: "Advanced reasoning", MaxTokens: 6000},
	{ID: "o1-pro", Name: "O1 Pro", Provider: ProviderAvalAI, Tier: TierPremium, Category: CategoryReasoning, Description: "Complex logic", MaxTokens: 6000},
	{ID: "o1-mini", Name: "O1 Mini", Provider: ProviderAvalAI, Tier: TierFree, Category: CategoryReasoning, Description: "Fast reasoning", MaxTokens: 4000},

	{ID: "anthropic.claude-opus-4-1-20250805-v1.0", Name: "Claude 4.1 Opus", Provider: ProviderAvalAI, Tier: TierPremium, Category: CategoryCreative, Description: "Best Anthropic model", MaxTokens: 8000},
	{ID: "anthropic.claude-sonnet-4-20250514-v1.0", Name: "Claude 4 Sonnet", Provider: ProviderAvalAI, Tier: TierPremium, Category: CategoryCreative, MaxTokens: 6000},
	{ID: "anthropic.claude-3-haiku-20240307-v1.0", Name: "Claude 3 Haiku", Provider: ProviderAvalAI, Tier: TierFree, Category: CategoryCreative, MaxTokens: 4000},

	{ID: "deepseek-coder", Name: "DeepSeek Coder", Provider: ProviderAvalAI, Tier: TierFree, Category: CategoryCoding, Description: "Programming specialist", MaxTokens: 6000},
	{ID: "qwen3-coder-plus", Name: "Qwen3 Coder Plus", Provider: ProviderAvalAI, Tier: TierPremium, Category: CategoryCoding, MaxTokens: 6000},

	{ID: "gemini-2.5-flash-lite", Name: "Gemini 2.5 Flash", Provider: ProviderAvalAI, Tier: TierPremium, Category: CategoryMultimodal, MaxTokens: 6000},
	{ID: "gemini-1.5-pro-latest", Name: "Gemini 1.5 Pro", Provider: ProviderAvalAI, Tier: TierFree, Category: CategoryMultimodal, MaxTokens: 6000},
	{ID: "gemini-pro", Name: "Gemini Pro (Google)", Provider: ProviderGoogle, Tier: TierFree, Category: CategoryMultimodal, MaxTokens: 4000},
	{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash (Google)", Provider: ProviderGoogle, Tier: TierFree, Category: CategoryMultimodal, MaxTokens: 4000},

	{ID: "grok-4", Name: "Grok-4", Provider: ProviderAvalAI, Tier: TierPremium, Category: CategoryConversational, MaxTokens: 6000},
	{ID: "grok-3-fast-beta", Name: "Grok-3 Fast", Provider: ProviderAvalAI, Tier: TierPremium, Category: CategoryConversational, MaxTokens: 4000},

	{ID: "gpt-4-turbo-2024-04-09", Name: "GPT-4 Turbo", Provider: ProviderAvalAI, Tier: TierPremium, Category: CategoryLegacy, MaxTokens: 6000},
	{ID: "gpt-4o-mini-2024-07-18", Name: "GPT-4o Mini", Provider: ProviderAvalAI, Tier: TierFree, Category: CategoryLegacy, MaxTokens: 4000},
}

// CategoryGroup is a labelled slice of the catalog shown by the model picker
type CategoryGroup struct {
	Label  string    `json:"label"`
	Icon   string    `json:"icon"`
	Models []AIModel `json:"models"`
}

// FindModel returns the catalog entry for id
func FindModel(id string) (AIModel, bool) {
	for _, m := range Catalog {
		if m.ID == id {
			return m, true
		}
	}
	return AIModel{}, false
}

// FreeModels returns the free-tier catalog entries
func FreeModels() []AIModel {
	return filterModels(func(m AIModel) bool { return m.Tier == TierFree })
}

// PremiumModels returns the premium-tier catalog entries
func PremiumModels() []AIModel {
	return filterModels(func(m AIModel) bool { return m.Tier == TierPremium })
}

// ModelsByCategory returns the catalog entries in category
func ModelsByCategory(category Category) []AIModel {
	return filterModels(func(m AIModel) bool { return m.Category == category })
}

// CategoryGroups returns the picker groups in display order. Utility and
// legacy models are only listed through the free group or by id.
func CategoryGroups() []CategoryGroup {
	return []CategoryGroup{
		{Label: "Latest Models", Icon: "🔥", Models: ModelsByCategory(CategoryLatest)},
		{Label: "Reasoning", Icon: "🧠", Models: ModelsByCategory(CategoryReasoning)},
		{Label: "Creative", Icon: "🎭", Models: ModelsByCategory(CategoryCreative)},
		{Label: "Coding", Icon: "💻", Models: ModelsByCategory(CategoryCoding)},
		{Label: "Multimodal", Icon: "💎", Models: ModelsByCategory(CategoryMultimodal)},
		{Label: "Conversational", Icon: "⚡", Models: ModelsByCategory(CategoryConversational)},
		{Label: "Free Models", Icon: "🆓", Models: FreeModels()},
	}
}

// DisplayName resolves a model id against the catalog, the routing table and
// the UI registry, in that order, and falls back to the id itself.
func DisplayName(id string) string {
	if m, ok := FindModel(id); ok {
		return m.Name
	}
	if t, ok := DefaultRoutingConfig().Target(id); ok {
		return t.Name
	}
	if name, ok := modelDisplayNames[id]; ok {
		return name
	}
	return id
}

func filterModels(keep func(AIModel) bool) []AIModel {
	var out []AIModel
	for _, m := range Catalog {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// AvailableModel is an entry of the UI model registry. IDs carry a vendor
// prefix ("avalai/gpt-5") and are resolved to catalog ids with CatalogID.
type AvailableModel struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// CatalogID strips the vendor prefix from a UI registry id
func CatalogID(id string) string {
	if i := strings.Index(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// availableModelIDs is the UI registry in display order
var availableModelIDs = []string{
	"avalai/gpt-5",
	"avalai/gpt-5-mini",
	"avalai/gpt-5-2025-08-07",
	"avalai/o3-pro",
	"avalai/o3",
	"avalai/o3-2025-04-16",
	"avalai/o1-pro",
	"avalai/o1-mini",
	"avalai/anthropic.claude-opus-4-1-20250805-v1.0",
	"avalai/anthropic.claude-opus-4-20250514-v1.0",
	"avalai/anthropic.claude-sonnet-4-20250514-v1.0",
	"avalai/anthropic.claude-3-7-sonnet-20250219-v1.0",
	"avalai/anthropic.claude-3-5-sonnet-20241022-v2.0",
	"avalai/gemini-2.5-flash-lite",
	"avalai/gemini-2.0-pro-exp-02-05",
	"avalai/gemini-1.5-pro-latest",
	"avalai/grok-4",
	"avalai/grok-3-fast-beta",
	"avalai/grok-3-mini-beta",
	"avalai/deepseek-coder",
	"avalai/qwen3-coder-plus",
	"avalai/codestral-2501",
	"avalai/computer-use-preview-2025-03-11",
	"avalai/groq-4-0709",
	"avalai/groq-3",
	"avalai/gpt-4-turbo-2024-04-09",
	"avalai/whisper-1",
	"avalai/text-embedding-3-large",
	"google/gemini-pro",
	"google/gemini-1.5-flash",
	"openai/gpt-5",
	"moonshotai/kimi-k2-instruct",
	"anthropic/claude-sonnet-4-20250514",
}

var modelDisplayNames = map[string]string{
	"avalai/gpt-5":                                     "🚀 GPT-5 (Latest)",
	"avalai/gpt-5-mini":                                "⚡ GPT-5 Mini (Fast)",
	"avalai/gpt-5-2025-08-07":                          "📅 GPT-5 (Aug 2025)",
	"avalai/o3-pro":                                    "🧠 O3 Pro (Reasoning)",
	"avalai/o3":                                        "🧠 O3 (Advanced)",
	"avalai/o3-2025-04-16":                             "📅 O3 (April 2025)",
	"avalai/o1-pro":                                    "🧠 O1 Pro",
	"avalai/o1-mini":                                   "🧠 O1 Mini",
	"avalai/anthropic.claude-opus-4-1-20250805-v1.0":   "🎭 Claude 4.1 Opus (Latest)",
	"avalai/anthropic.claude-opus-4-20250514-v1.0":     "🎭 Claude 4 Opus",
	"avalai/anthropic.claude-sonnet-4-20250514-v1.0":   "🎭 Claude 4 Sonnet",
	"avalai/anthropic.claude-3-7-sonnet-20250219-v1.0": "🎭 Claude 3.7 Sonnet",
	"avalai/anthropic.claude-3-5-sonnet-20241022-v2.0": "🎭 Claude 3.5 Sonnet V2",
	"avalai/gemini-2.5-flash-lite":                     "💎 Gemini 2.5 Flash Lite",
	"avalai/gemini-2.0-pro-exp-02-05":                  "💎 Gemini 2.0 Pro (Experimental)",
	"avalai/gemini-1.5-pro-latest":                     "💎 Gemini 1.5 Pro (Latest)",
	"avalai/grok-4":                                    "🚀 Grok-4 (Latest)",
	"avalai/grok-3-fast-beta":                          "⚡ Grok-3 Fast (Beta)",
	"avalai/grok-3-mini-beta":                          "⚡ Grok-3 Mini (Beta)",
	"avalai/deepseek-coder":                            "💻 DeepSeek Coder (Specialized)",
	"avalai/qwen3-coder-plus":                          "💻 Qwen3 Coder Plus",
	"avalai/codestral-2501":                            "💻 Codestral 2501",
	"avalai/computer-use-preview-2025-03-11":           "💻 Computer Use (Preview)",
	"avalai/groq-4-0709":                               "🎯 Groq-4 (Fast)",
	"avalai/groq-3":                                    "🎯 Groq-3",
	"avalai/gpt-4-turbo-2024-04-09":                    "🔧 GPT-4 Turbo (April 2024)",
	"avalai/whisper-1":                                 "🔧 Whisper-1 (Audio)",
	"avalai/text-embedding-3-large":                    "🔧 Text Embedding 3 Large",
	"google/gemini-pro":                                "Gemini Pro (free)",
	"google/gemini-1.5-flash":                          "Gemini 1.5 Flash (free)",
	"openai/gpt-5":                                     "GPT-5",
	"moonshotai/kimi-k2-instruct":                      "Kimi K2 Instruct",
	"anthropic/claude-sonnet-4-20250514":               "Sonnet 4",
}

// UICategory is a labelled list of UI registry ids
type UICategory struct {
	Label  string   `json:"label"`
	Models []string `json:"models"`
}

var uiCategories = []UICategory{
	{Label: "🚀 Latest & Most Advanced", Models: []string{"avalai/gpt-5", "avalai/o3-pro", "avalai/anthropic.claude-opus-4-1-20250805-v1.0"}},
	{Label: "⚡ Fast & Efficient", Models: []string{"avalai/gpt-5-mini", "avalai/grok-3-fast-beta", "avalai/gemini-2.5-flash-lite"}},
	{Label: "💻 Specialized Coding", Models: []string{"avalai/deepseek-coder", "avalai/qwen3-coder-plus", "avalai/codestral-2501"}},
	{Label: "🎭 Creative & Writing", Models: []string{"avalai/anthropic.claude-3-7-sonnet-20250219-v1.0", "avalai/gemini-2.0-pro-exp-02-05"}},
	{Label: "🧠 Advanced Reasoning", Models: []string{"avalai/o3-pro", "avalai/o3", "avalai/o1-pro"}},
	{Label: "🎯 Fast Inference", Models: []string{"avalai/groq-4-0709", "avalai/groq-3", "avalai/grok-3-mini-beta"}},
	{Label: "🔧 Utility & Tools", Models: []string{"avalai/whisper-1", "avalai/text-embedding-3-large", "avalai/computer-use-preview-2025-03-11"}},
	{Label: "📚 Legacy Models", Models: []string{"google/gemini-pro", "google/gemini-1.5-flash", "openai/gpt-5"}},
}

// ModelRecommendations maps a task type to the UI registry model suggested for it
var ModelRecommendations = map[string]string{
	"website-cloning":   "avalai/gpt-5-mini",
	"code-generation":   "avalai/deepseek-coder",
	"creative-writing":  "avalai/anthropic.claude-opus-4-1-20250805-v1.0",
	"complex-reasoning": "avalai/o3-pro",
	"fast-responses":    "avalai/grok-3-fast-beta",
	"multimodal":        "avalai/computer-use-preview-2025-03-11",
	"audio-processing":  "avalai/whisper-1",
}

// AvailableModels returns the UI registry with display names
func AvailableModels() []AvailableModel {
	out := make([]AvailableModel, 0, len(availableModelIDs))
	for _, id := range availableModelIDs {
		name := modelDisplayNames[id]
		if name == "" {
			name = id
		}
		out = append(out, AvailableModel{ID: id, DisplayName: name})
	}
	return out
}

// UICategories returns the UI registry groupings
func UICategories() []UICategory {
	out := make([]UICategory, len(uiCategories))
	copy(out, uiCategories)
	return out
}
