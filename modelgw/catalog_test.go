package modelgw

import "testing"

func TestPickModelExplicitOverrideWins(t *testing.T) {
	s := NewSelector(nil)
	got := s.PickModel(TaskAgent, OriginAPI, "gpt-5.2")
	if got != "gpt-5.2" {
		t.Errorf("override must win, got %s", got)
	}
}

func TestPickModelTierDefaults(t *testing.T) {
	s := NewSelector(nil)

	cases := []struct {
		task Task
		want ModelID
	}{
		{TaskClassify, DefaultTierModels[TierLight]},
		{TaskChat, DefaultTierModels[TierMid]},
		{TaskAgent, DefaultTierModels[TierTop]},
	}
	for _, tc := range cases {
		if got := s.PickModel(tc.task, OriginAPI, ""); got != tc.want {
			t.Errorf("PickModel(%s) = %s, want %s", tc.task, got, tc.want)
		}
	}
}

func TestPickModelChatInitiatedAgentDowngrades(t *testing.T) {
	s := NewSelector(nil)

	got := s.PickModel(TaskAgent, OriginChat, "")
	if got != DefaultTierModels[TierMid] {
		t.Errorf("chat-initiated agent runs use the mid tier, got %s", got)
	}

	// The downgrade never applies to explicit overrides.
	got = s.PickModel(TaskAgent, OriginChat, "claude-opus-4-6")
	if got != "claude-opus-4-6" {
		t.Errorf("override must bypass the downgrade, got %s", got)
	}
}

func TestPickModelHonorsTierOverrides(t *testing.T) {
	s := NewSelector(map[Tier]ModelID{TierTop: "gpt-5.2"})
	if got := s.PickModel(TaskAgent, OriginAPI, ""); got != "gpt-5.2" {
		t.Errorf("tier override not applied, got %s", got)
	}
	// Untouched tiers keep their defaults.
	if got := s.PickModel(TaskClassify, OriginAPI, ""); got != DefaultTierModels[TierLight] {
		t.Errorf("light tier should be unchanged, got %s", got)
	}
}

func TestGetModelInfo(t *testing.T) {
	info := GetModelInfo("claude-sonnet-4-5")
	if info == nil {
		t.Fatal("known model missing from catalog")
	}
	if info.Tier != TierMid {
		t.Errorf("tier = %s", info.Tier)
	}
	if GetModelInfo("made-up-model") != nil {
		t.Error("unknown model must return nil")
	}
}

func TestCatalogTiersAreCovered(t *testing.T) {
	for _, tier := range []Tier{TierLight, TierMid, TierTop} {
		id, ok := DefaultTierModels[tier]
		if !ok {
			t.Fatalf("tier %s has no default model", tier)
		}
		if GetModelInfo(id) == nil {
			t.Errorf("default model %s for tier %s is not in the catalog", id, tier)
		}
	}
}
