package modelgw

// ModelID identifies a model in the catalog.
type ModelID string

// Tier groups models by capability/cost. Task routing maps to a tier, then
// the tier maps to a concrete model (overridable via Config).
type Tier string

const (
	TierLight Tier = "light" // classification-style tasks
	TierMid   Tier = "mid"   // conversational chat, planning, review
	TierTop   Tier = "top"   // full agent loop
)

// Task describes what the caller wants the model for.
type Task string

const (
	TaskClassify Task = "classify"
	TaskChat     Task = "chat"
	TaskAgent    Task = "agent"
)

// Origin records how an agent run was initiated. Chat-initiated runs are
// subject to the cost-control downgrade in PickModel.
type Origin string

const (
	OriginChat Origin = "chat"
	OriginAPI  Origin = "api"
)

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID            ModelID `json:"id"`
	Provider      string  `json:"provider"`
	DisplayName   string  `json:"display_name"`
	Tier          Tier    `json:"tier"`
	ContextWindow int     `json:"context_window"`
	MaxOutput     int     `json:"max_output"`
	SupportsTools bool    `json:"supports_tools"`
}

// Models is the built-in model catalog.
var Models = []ModelInfo{
	{
		ID: "claude-opus-4-6", Provider: "anthropic", DisplayName: "Claude Opus 4.6",
		Tier: TierTop, ContextWindow: 200000, MaxOutput: 32768, SupportsTools: true,
	},
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		Tier: TierMid, ContextWindow: 200000, MaxOutput: 16384, SupportsTools: true,
	},
	{
		ID: "gpt-5.2", Provider: "openai", DisplayName: "GPT-5.2",
		Tier: TierTop, ContextWindow: 1047576, MaxOutput: 32768, SupportsTools: true,
	},
	{
		ID: "gpt-5.2-mini", Provider: "openai", DisplayName: "GPT-5.2 Mini",
		Tier: TierLight, ContextWindow: 1047576, MaxOutput: 16384, SupportsTools: true,
	},
}

// GetModelInfo returns the catalog entry for a model, or nil if unknown.
func GetModelInfo(id ModelID) *ModelInfo {
	for i := range Models {
		if Models[i].ID == id {
			return &Models[i]
		}
	}
	return nil
}

// DefaultTierModels maps each tier to its default model.
var DefaultTierModels = map[Tier]ModelID{
	TierLight: "gpt-5.2-mini",
	TierMid:   "claude-sonnet-4-5",
	TierTop:   "claude-opus-4-6",
}

// tierForTask maps a task to its tier.
func tierForTask(task Task) Tier {
	switch task {
	case TaskClassify:
		return TierLight
	case TaskChat:
		return TierMid
	case TaskAgent:
		return TierTop
	default:
		return TierMid
	}
}

// Selector resolves tasks to model IDs, honoring per-tier overrides from
// configuration.
type Selector struct {
	tierModels map[Tier]ModelID
}

// NewSelector creates a Selector. Overrides replace the default model for a
// tier; tiers absent from the map keep their defaults.
func NewSelector(overrides map[Tier]ModelID) *Selector {
	tierModels := make(map[Tier]ModelID, len(DefaultTierModels))
	for tier, id := range DefaultTierModels {
		tierModels[tier] = id
	}
	for tier, id := range overrides {
		if id != "" {
			tierModels[tier] = id
		}
	}
	return &Selector{tierModels: tierModels}
}

// PickModel selects the model for a task. An explicit override always wins.
// Otherwise the task's tier decides, with one deliberate exception: an agent
// loop initiated from the interactive chat surface is served by the mid tier
// instead of the top tier. This is a cost-control policy — chat-initiated
// loops are frequent and latency-sensitive, and the mid tier is good enough
// for them — not an accident of the routing table.
func (s *Selector) PickModel(task Task, origin Origin, override ModelID) ModelID {
	if override != "" {
		return override
	}
	tier := tierForTask(task)
	if task == TaskAgent && origin == OriginChat && tier == TierTop {
		tier = TierMid
	}
	return s.tierModels[tier]
}
