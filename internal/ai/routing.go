package ai

// Task types understood by the smart router
const (
	TaskWebsiteCloning = "website-cloning"
	TaskCodeGeneration = "code-generation"
	TaskGeneralChat    = "general-chat"
	TaskComplex        = "complex-tasks"
)

// RouteTarget is a routable model id bound to a provider and the model name
// that provider is actually asked for.
type RouteTarget struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Provider Provider `json:"provider"`
	Tier     Tier     `json:"tier"`
	Priority int      `json:"priority"`
	Upstream string   `json:"upstream"`
}

// RoutingConfig drives candidate ordering for the smart router
type RoutingConfig struct {
	Free           []RouteTarget
	Premium        []RouteTarget
	DefaultModel   string
	FallbackModels []string
	TaskModels     map[string][]string
}

// DefaultRoutingConfig returns the built-in routing table. Free models are
// tried first; premium models only as fallbacks.
func DefaultRoutingConfig() *RoutingConfig {
	return &RoutingConfig{
		Free: []RouteTarget{
			{ID: "gemini-pro", Name: "Gemini Pro (Free)", Provider: ProviderGoogle, Tier: TierFree, Priority: 1, Upstream: "gemini-pro"},
			{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash (Free)", Provider: ProviderGoogle, Tier: TierFree, Priority: 2, Upstream: "gemini-1.5-flash"},
			{ID: "avalai/gpt-4o-mini", Name: "GPT-4o Mini (AvalAI Free)", Provider: ProviderAvalAI, Tier: TierFree, Priority: 3, Upstream: "gpt-4o"},
			{ID: "avalai/deepseek-coder", Name: "DeepSeek Coder (Free)", Provider: ProviderAvalAI, Tier: TierFree, Priority: 4, Upstream: "deepseek-coder"},
			{ID: "groq/llama-3.3-70b-versatile", Name: "Llama 3.3 70B (Groq Free)", Provider: ProviderGroq, Tier: TierFree, Priority: 9, Upstream: "llama-3.3-70b-versatile"},
		},
		Premium: []RouteTarget{
			{ID: "avalai/gpt-5-mini", Name: "GPT-5 Mini (Premium)", Provider: ProviderAvalAI, Tier: TierPremium, Priority: 5, Upstream: "gpt-4o"},
			{ID: "avalai/claude-4-opus", Name: "Claude 4.1 Opus (Premium)", Provider: ProviderAvalAI, Tier: TierPremium, Priority: 6, Upstream: "claude-3-opus"},
			{ID: "avalai/o3-pro", Name: "O3 Pro (Premium)", Provider: ProviderAvalAI, Tier: TierPremium, Priority: 7, Upstream: "gpt-4o"},
			{ID: "avalai/gpt-5", Name: "GPT-5 (Premium)", Provider: ProviderAvalAI, Tier: TierPremium, Priority: 8, Upstream: "gpt-4o"},
		},
		DefaultModel: "gemini-pro",
		FallbackModels: []string{
			"gemini-1.5-flash",
			"avalai/gpt-4o-mini",
			"avalai/gpt-5-mini",
			"avalai/claude-4-opus",
			"avalai/o3-pro",
			"groq/llama-3.3-70b-versatile",
		},
		TaskModels: map[string][]string{
			TaskWebsiteCloning: {"gemini-pro", "avalai/gpt-5-mini"},
			TaskCodeGeneration: {"avalai/deepseek-coder", "avalai/claude-4-opus"},
			TaskGeneralChat:    {"gemini-1.5-flash", "avalai/gpt-4o-mini"},
			TaskComplex:        {"gemini-pro", "avalai/o3-pro"},
		},
	}
}

// Target returns the routing entry for id
func (c *RoutingConfig) Target(id string) (RouteTarget, bool) {
	for _, t := range c.Free {
		if t.ID == id {
			return t, true
		}
	}
	for _, t := range c.Premium {
		if t.ID == id {
			return t, true
		}
	}
	return RouteTarget{}, false
}

// TierOf returns the tier for id; unknown ids are treated as premium
func (c *RoutingConfig) TierOf(id string) Tier {
	if t, ok := c.Target(id); ok {
		return t.Tier
	}
	return TierPremium
}

// ProviderOf returns the provider name for id or "unknown"
func (c *RoutingConfig) ProviderOf(id string) string {
	if t, ok := c.Target(id); ok {
		return string(t.Provider)
	}
	return "unknown"
}

// Recommended returns the task-specific models followed by the global
// fallbacks. Unknown tasks start from the default model instead.
func (c *RoutingConfig) Recommended(task string) []string {
	head, ok := c.TaskModels[task]
	if !ok {
		head = []string{c.DefaultModel}
	}
	out := make([]string, 0, len(head)+len(c.FallbackModels))
	out = append(out, head...)
	return append(out, c.FallbackModels...)
}

// TierGroups lists routable ids per tier for the model picker
func (c *RoutingConfig) TierGroups() map[string][]string {
	ids := func(targets []RouteTarget) []string {
		out := make([]string, 0, len(targets))
		for _, t := range targets {
			out = append(out, t.ID)
		}
		return out
	}
	return map[string][]string{
		"free":    ids(c.Free),
		"premium": ids(c.Premium),
	}
}
