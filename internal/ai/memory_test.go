package ai

import (
	"math"
	"testing"
)

func newLedger() *MemoryLedger {
	ml := NewMemoryLedger(DefaultTuning().Memory)
	ml.Register("npc-1", DefaultPersonality())
	return ml
}

func TestDeriveDisposition_Precedence(t *testing.T) {
	cases := []struct {
		trust, familiarity float64
		want               Disposition
	}{
		{-70, 90, DispositionNemesis}, // hostility wins over familiarity
		{-40, 90, DispositionEnemy},
		{-15, 90, DispositionRival},
		{0, 10, DispositionStranger},
		{10, 30, DispositionAcquaintance},
		{30, 30, DispositionFriend},
		{60, 30, DispositionCloseFriend},
		{60, 10, DispositionStranger}, // friendly tiers gated on familiarity
	}
	for _, c := range cases {
		if got := DeriveDisposition(c.trust, c.familiarity); got != c.want {
			t.Fatalf("(%v, %v): expected %s, got %s", c.trust, c.familiarity, c.want, got)
		}
	}
}

func TestDeriveDisposition_PureFunction(t *testing.T) {
	first := DeriveDisposition(12.5, 44)
	for i := 0; i < 50; i++ {
		if DeriveDisposition(12.5, 44) != first {
			t.Fatal("identical inputs must derive the identical disposition")
		}
	}
}

func TestRecordEvent_TrustDeltaFormula(t *testing.T) {
	ml := newLedger()
	// was_saved base 12 × (0.5 + 0.5 gratitude) × (1 + 0.5 emotional) = 18.
	ml.RecordEvent("npc-1", "player", MemWasSaved, 0.9, 0.5)
	rel := ml.RelationshipWith("npc-1", "player")
	if math.Abs(rel.Trust-18) > 1e-9 {
		t.Fatalf("expected trust 18, got %.2f", rel.Trust)
	}
}

func TestRecordEvent_ForgivenessDampensGrudge(t *testing.T) {
	ml := NewMemoryLedger(DefaultTuning().Memory)
	ml.Register("grudger", Personality{Gratitude: 0.5, Forgiveness: 0.0})
	ml.Register("saint", Personality{Gratitude: 0.5, Forgiveness: 1.0})
	ml.RecordEvent("grudger", "player", MemWasAttacked, 0.5, 0)
	ml.RecordEvent("saint", "player", MemWasAttacked, 0.5, 0)
	g := ml.RelationshipWith("grudger", "player").Trust
	s := ml.RelationshipWith("saint", "player").Trust
	if g >= s {
		t.Fatalf("unforgiving agent should lose more trust: %.1f vs %.1f", g, s)
	}
}

func TestFiveRescues_BecomesCloseFriend(t *testing.T) {
	ml := newLedger()
	for i := 0; i < 5; i++ {
		ml.RecordEvent("npc-1", "player", MemWasSaved, 0.9, 0.5)
	}
	rel := ml.RelationshipWith("npc-1", "player")
	if rel.Disposition != DispositionCloseFriend && rel.Disposition != DispositionFriend {
		t.Fatalf("five rescues should make a friend at least, got %s", rel.Disposition)
	}
}

func TestTrust_ClampedAfterEventStorm(t *testing.T) {
	ml := newLedger()
	for i := 0; i < 50; i++ {
		ml.RecordEvent("npc-1", "player", MemWasSaved, 1.0, 1.0)
	}
	rel := ml.RelationshipWith("npc-1", "player")
	if rel.Trust != 100 {
		t.Fatalf("trust should clamp at 100, got %.1f", rel.Trust)
	}
	for i := 0; i < 50; i++ {
		ml.RecordEvent("npc-1", "player", MemBetrayed, 1.0, -1.0)
	}
	rel = ml.RelationshipWith("npc-1", "player")
	if rel.Trust != -100 {
		t.Fatalf("trust should clamp at -100, got %.1f", rel.Trust)
	}
	if rel.Familiarity != 100 {
		t.Fatalf("familiarity should clamp at 100, got %.1f", rel.Familiarity)
	}
}

func TestRecordEvent_HighImportancePromoted(t *testing.T) {
	ml := newLedger()
	ml.RecordEvent("npc-1", "player", MemWasSaved, 0.9, 0)
	if got := len(ml.LongTerm("npc-1")); got != 1 {
		t.Fatalf("importance 0.9 should promote to long-term, got %d entries", got)
	}
}

func TestRecordEvent_LowImportanceStaysShortTerm(t *testing.T) {
	ml := newLedger()
	ml.RecordEvent("npc-1", "player", MemConversation, 0.2, 0)
	if got := len(ml.LongTerm("npc-1")); got != 0 {
		t.Fatalf("importance 0.2 should not promote, got %d entries", got)
	}
}

func TestPromote_EvictsLowestScoredWhenFull(t *testing.T) {
	cfg := DefaultTuning().Memory
	cfg.LongTermCap = 2
	ml := NewMemoryLedger(cfg)
	ml.Register("npc-1", DefaultPersonality())
	ml.RecordEvent("npc-1", "a", MemWasSaved, 0.6, 0)
	ml.RecordEvent("npc-1", "b", MemWasSaved, 0.9, 0)
	ml.RecordEvent("npc-1", "c", MemWasSaved, 0.8, 0)
	long := ml.LongTerm("npc-1")
	if len(long) != 2 {
		t.Fatalf("long-term store should hold the cap, got %d", len(long))
	}
	for _, ev := range long {
		if ev.Actor == "a" {
			t.Fatal("the lowest importance entry should have been evicted")
		}
	}
}

func TestAdvance_ExpiresOldShortTerm(t *testing.T) {
	ml := newLedger()
	ml.RecordEvent("npc-1", "player", MemConversation, 0.2, 0)
	ml.Advance(301) // short-term window is 300s
	if got := len(ml.ShortTerm("npc-1")); got != 0 {
		t.Fatalf("short-term memory should age out, got %d entries", got)
	}
}

func TestDecayRelationships_PositiveTowardZero(t *testing.T) {
	ml := newLedger()
	ml.RecordEvent("npc-1", "player", MemWasSaved, 0.9, 0) // trust 12
	ml.DecayRelationships(5)                               // 1.0/hour
	rel := ml.RelationshipWith("npc-1", "player")
	if math.Abs(rel.Trust-7) > 1e-9 {
		t.Fatalf("expected trust 7 after 5h decay, got %.2f", rel.Trust)
	}
}

func TestDecayRelationships_NeverCrossesZero(t *testing.T) {
	ml := newLedger()
	ml.RecordEvent("npc-1", "player", MemWasSaved, 0.9, 0)
	ml.DecayRelationships(1000)
	rel := ml.RelationshipWith("npc-1", "player")
	if rel.Trust != 0 {
		t.Fatalf("decay should stop at neutral, got %.2f", rel.Trust)
	}
}

func TestRecordLocation_DangerSmoothing(t *testing.T) {
	ml := newLedger()
	ml.RecordLocation("npc-1", "bridge", 1.0)
	loc := ml.LocationFor("npc-1", "bridge")
	if math.Abs(loc.Danger-0.2) > 1e-9 {
		t.Fatalf("first sample should fold in at 20%%, got %.2f", loc.Danger)
	}
	if loc.Visits != 1 {
		t.Fatalf("expected 1 visit, got %d", loc.Visits)
	}
}

func TestRelationshipWith_UnknownPairIsStranger(t *testing.T) {
	ml := newLedger()
	rel := ml.RelationshipWith("npc-1", "nobody")
	if rel.Disposition != DispositionStranger || rel.Trust != 0 {
		t.Fatalf("unknown pair should read as untouched stranger, got %+v", rel)
	}
}

func TestRecordEvent_UnknownOwnerNoOp(t *testing.T) {
	ml := newLedger()
	ev := ml.RecordEvent("ghost", "player", MemWasSaved, 0.9, 0)
	if ev.ID != "" {
		t.Fatal("unknown owner should produce a zero event, not a record")
	}
}
