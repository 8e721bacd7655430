package ai

import "testing"

func newEvaluator() *MicroAgentEvaluator {
	me := NewMicroAgentEvaluator(DefaultTuning().Micro)
	me.Initialize(0)
	return me
}

func baselineContext() CombatContext {
	return CombatContext{
		HealthFraction: 1.0,
		AllyCount:      2,
		EnemyCount:     1,
		ThreatLevel:    0.2,
		Distance:       30,
	}
}

func TestResolve_Deterministic(t *testing.T) {
	me := newEvaluator()
	ctx := baselineContext()
	first := me.Resolve(0, ctx)
	for i := 0; i < 20; i++ {
		if got := me.Resolve(0, ctx); got != first {
			t.Fatalf("identical context must resolve identically: %+v vs %+v", first, got)
		}
	}
}

func TestAggression_MonotonicInHealth(t *testing.T) {
	me := newEvaluator()
	ctx := baselineContext()
	prev := -1.0
	for h := 0.0; h <= 1.0; h += 0.05 {
		ctx.HealthFraction = h
		out := me.Evaluate(0, ctx)
		if out.Aggression.AttackFrequency < prev {
			t.Fatalf("attack frequency decreased as health rose at %.2f", h)
		}
		prev = out.Aggression.AttackFrequency
	}
}

func TestResolve_MoraleDominatesTactics(t *testing.T) {
	me := newEvaluator()
	// Heavy casualties, long fight, outnumbered, near death: will-to-fight
	// collapses below the surrender threshold.
	ctx := CombatContext{
		HealthFraction: 0.05,
		AllyCount:      0,
		EnemyCount:     4,
		ThreatLevel:    1.0,
		CombatDuration: 300,
		Casualties:     5,
		Distance:       10,
		Outnumbered:    true,
	}
	got := me.Resolve(0, ctx)
	if got.Action != ActionSurrender {
		t.Fatalf("broken agent must surrender before tactical reasoning, got %s", got.Action)
	}
	if got.Priority != 5 {
		t.Fatalf("surrender should carry top priority, got %.1f", got.Priority)
	}
}

func TestResolve_PanicRetreatBeatsLean(t *testing.T) {
	me := newEvaluator()
	// Panic above the retreat threshold but will-to-fight still above the
	// surrender threshold: full health keeps will high.
	ctx := CombatContext{
		HealthFraction: 1.0,
		AllyCount:      1,
		EnemyCount:     3,
		ThreatLevel:    0.5,
		CombatDuration: 72,
		Casualties:     3,
		Distance:       20,
		Outnumbered:    true,
	}
	got := me.Resolve(0, ctx)
	if got.Action != ActionRetreat {
		t.Fatalf("panicking agent should retreat, got %s", got.Action)
	}
}

func TestResolve_LowHealthLeansRetreat(t *testing.T) {
	me := newEvaluator()
	ctx := baselineContext()
	ctx.HealthFraction = 0.15
	got := me.Resolve(0, ctx)
	if got.Action != ActionRetreat {
		t.Fatalf("15%% health baseline context should retreat, got %s", got.Action)
	}
}

func TestResolve_AdvantageAtRangeFlanks(t *testing.T) {
	me := newEvaluator()
	ctx := baselineContext()
	ctx.Distance = 40
	got := me.Resolve(0, ctx)
	if got.Action != ActionFlank {
		t.Fatalf("healthy agent with advantage at range should flank, got %s", got.Action)
	}
}

func TestResolve_OutnumberedInCoverDefends(t *testing.T) {
	me := newEvaluator()
	ctx := baselineContext()
	ctx.AllyCount = 0
	ctx.EnemyCount = 3
	ctx.Outnumbered = true
	ctx.HasCover = true
	got := me.Resolve(0, ctx)
	if got.Action != ActionDefend {
		t.Fatalf("outnumbered agent in cover should defend, got %s", got.Action)
	}
}

func TestAggression_HighAggressionHuntsWeakest(t *testing.T) {
	me := newEvaluator()
	ctx := baselineContext()
	ctx.ThreatLevel = 0
	out := me.Evaluate(0, ctx)
	if out.Aggression.AttackFrequency <= 0.7 {
		t.Fatalf("expected high aggression, got %.2f", out.Aggression.AttackFrequency)
	}
	if out.Aggression.TargetPriority[0] != TargetWeakest {
		t.Fatalf("high aggression should target the weakest first, got %s", out.Aggression.TargetPriority[0])
	}
}

func TestMorale_OutputsBounded(t *testing.T) {
	me := newEvaluator()
	ctx := CombatContext{Casualties: 50, CombatDuration: 10000, Outnumbered: true}
	out := me.Evaluate(0, ctx)
	m := out.Morale
	if m.Panic < 0 || m.Panic > 1 || m.WillToFight < 0 || m.WillToFight > 1 || m.SurrenderThreshold < 0 || m.SurrenderThreshold > 1 {
		t.Fatalf("morale outputs out of range: %+v", m)
	}
}

func TestWeights_UnknownHandleUsesDefaults(t *testing.T) {
	me := newEvaluator()
	if w := me.Weights(99); w != DefaultMicroWeights() {
		t.Fatalf("unknown handle should get default weights, got %+v", w)
	}
}
