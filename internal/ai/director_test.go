package ai

import "testing"

const tickDt = 1.0 / 60

func engagedStack(t *testing.T) *Director {
	t.Helper()
	d := buildStack(t)
	d.SetPrimaryTarget(Vec2{X: 5, Y: 30}, 270)
	d.roster.ForEach(func(h Handle, a *Agent) {
		a.Facing = 90 // face the target
	})
	if err := d.Chair().Start(); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestRegisterAgent_CreatesAllServiceState(t *testing.T) {
	d := buildStack(t)
	h, ok := d.roster.Lookup("red-0")
	if !ok {
		t.Fatal("agent missing from roster")
	}
	if _, ok := d.perception.states[h]; !ok {
		t.Fatal("perception state missing")
	}
	if _, ok := d.suppression.states[h]; !ok {
		t.Fatal("suppression state missing")
	}
	if _, ok := d.morale.states[h]; !ok {
		t.Fatal("morale state missing")
	}
	if _, ok := d.memory.agents["red-0"]; !ok {
		t.Fatal("memory ledger missing")
	}
}

func TestRemoveAgent_TearsDownTogether(t *testing.T) {
	d := buildStack(t)
	h, _ := d.roster.Lookup("red-0")
	d.RemoveAgent("red-0")
	if _, ok := d.roster.Lookup("red-0"); ok {
		t.Fatal("agent should leave the roster")
	}
	if _, ok := d.perception.states[h]; ok {
		t.Fatal("perception state should be gone")
	}
	if _, ok := d.suppression.states[h]; ok {
		t.Fatal("suppression state should be gone")
	}
	if _, ok := d.morale.states[h]; ok {
		t.Fatal("morale state should be gone")
	}
}

func TestRemoveAgent_SquadSeesCasualty(t *testing.T) {
	d := buildStack(t)
	d.RemoveAgent("red-1")
	sq := d.Squads().Squad("alpha")
	if sq.AliveCount() != 2 {
		t.Fatalf("squad should count the casualty, alive=%d", sq.AliveCount())
	}
}

func TestTick_NoOpUnlessRunning(t *testing.T) {
	d := buildStack(t)
	d.Tick(tickDt)
	if d.Chair().Tick() != 0 {
		t.Fatal("init phase must not advance the simulation")
	}
}

func TestTick_EngagementDrivesStates(t *testing.T) {
	d := engagedStack(t)
	sl := NewSimLog(false)
	d.AttachSimLog(sl)
	for i := 0; i < 60; i++ {
		d.Tick(tickDt)
	}
	engaged := 0
	d.roster.ForEach(func(h Handle, a *Agent) {
		if a.State != StateIdle {
			engaged++
		}
	})
	if engaged == 0 {
		t.Fatal("agents facing a visible target should leave idle")
	}
	if len(sl.Filter("state", "transition")) == 0 {
		t.Fatalf("state transitions should be on the run log:\n%s", sl.Format())
	}
}

func TestTick_LoudPlayerHeardWhenUnseen(t *testing.T) {
	d := buildStack(t)
	d.SetPrimaryTarget(Vec2{X: 5, Y: 30}, 270)
	d.roster.ForEach(func(h Handle, a *Agent) {
		a.Facing = 270 // facing away from the target
	})
	wc := d.WorldContext()
	wc.PlayerNoise = 2.0
	d.SetWorldContext(wc)
	if err := d.Chair().Start(); err != nil {
		t.Fatal(err)
	}
	d.Tick(tickDt)
	h, _ := d.roster.Lookup("red-0")
	per := d.perception.State(h)
	if !per.HasLastKnown || per.AlertLevel == 0 {
		t.Fatalf("a loud unseen player should be heard: %+v", per)
	}
	if per.LastKnownPos != (Vec2{X: 5, Y: 30}) {
		t.Fatalf("hearing should place the player at the noise source, got %+v", per.LastKnownPos)
	}
}

func TestTick_SilentPlayerNotHeard(t *testing.T) {
	d := buildStack(t)
	d.SetPrimaryTarget(Vec2{X: 5, Y: 30}, 270)
	d.roster.ForEach(func(h Handle, a *Agent) {
		a.Facing = 270
	})
	wc := d.WorldContext()
	wc.PlayerNoise = 0
	d.SetWorldContext(wc)
	if err := d.Chair().Start(); err != nil {
		t.Fatal(err)
	}
	d.Tick(tickDt)
	h, _ := d.roster.Lookup("red-0")
	if per := d.perception.State(h); per.HasLastKnown {
		t.Fatalf("a silent player should stay undetected: %+v", per)
	}
}

func TestTick_ProneStanceMufflesNoise(t *testing.T) {
	d := buildStack(t)
	d.SetPrimaryTarget(Vec2{X: 5, Y: 30}, 270)
	d.roster.ForEach(func(h Handle, a *Agent) {
		a.Facing = 270
	})
	wc := d.WorldContext()
	wc.PlayerNoise = 2.0
	wc.PlayerStance = StanceProne
	d.SetWorldContext(wc)
	if err := d.Chair().Start(); err != nil {
		t.Fatal(err)
	}
	d.Tick(tickDt)
	h, _ := d.roster.Lookup("red-0")
	if per := d.perception.State(h); per.HasLastKnown {
		t.Fatalf("a prone player at the same noise level should go unheard: %+v", per)
	}
}

func TestUpdateAgent_CarriesSquadTactic(t *testing.T) {
	d := engagedStack(t)
	for i := 0; i < 5; i++ {
		d.Tick(tickDt)
	}
	dec := d.UpdateAgent("red-0")
	if dec.SquadTactic != d.Squads().Squad("alpha").Tactic {
		t.Fatalf("decision should carry the squad tactic, got %s", dec.SquadTactic)
	}
}

func TestDecide_AlertBands(t *testing.T) {
	d := buildStack(t)
	h, _ := d.roster.Lookup("red-0")
	d.perception.states[h].AlertLevel = 0.45
	if dec := d.UpdateAgent("red-0"); dec.State != StateAware {
		t.Fatalf("mid alert without contact should read aware, got %s", dec.State)
	}
	d.perception.states[h].AlertLevel = 0.75
	if dec := d.UpdateAgent("red-0"); dec.State != StateSearching {
		t.Fatalf("high alert without contact should read searching, got %s", dec.State)
	}
}

func TestOnEnemyKilled_BondsSquadmates(t *testing.T) {
	d := buildStack(t)
	d.OnEnemyKilled("alpha", "player")
	rel := d.Memory().RelationshipWith("red-0", "red-1")
	if rel.Trust <= 0 {
		t.Fatalf("shared combat should build trust between squadmates, got %.1f", rel.Trust)
	}
	if enemy := d.Memory().RelationshipWith("red-0", "player"); enemy.Trust > 0 {
		t.Fatalf("a kill must not credit trust toward the enemy, got %.1f", enemy.Trust)
	}
}

func TestUpdateAgent_UnknownIdIsNeutral(t *testing.T) {
	d := buildStack(t)
	dec := d.UpdateAgent("ghost")
	if dec.State != StateIdle || dec.Effectiveness != 1 {
		t.Fatalf("unknown id should read as a neutral no-op, got %+v", dec)
	}
}

func TestUpdateAgent_DeterministicWithFixedContext(t *testing.T) {
	d := engagedStack(t)
	d.Tick(tickDt)
	first := d.UpdateAgent("red-0")
	for i := 0; i < 10; i++ {
		got := d.UpdateAgent("red-0")
		if got.State != first.State || got.Action != first.Action {
			t.Fatalf("decision drifted without new input: %+v vs %+v", first, got)
		}
	}
}

func TestOnDamaged_KillCascades(t *testing.T) {
	d := engagedStack(t)
	h1, _ := d.roster.Lookup("red-1")
	before := d.morale.State(h1).Current
	d.OnDamaged("red-0", "player", 1000)
	if _, ok := d.roster.Lookup("red-0"); ok {
		t.Fatal("lethal damage should remove the agent")
	}
	if d.morale.State(h1).Current >= before {
		t.Fatal("squadmates should take the ally-killed morale hit")
	}
	rel := d.Memory().RelationshipWith("red-1", "player")
	if len(rel.MemoryIDs) == 0 {
		t.Fatal("squadmates should remember witnessing the death")
	}
}

func TestOnIncomingFire_BuildsSuppression(t *testing.T) {
	d := engagedStack(t)
	h, _ := d.roster.Lookup("red-0")
	for i := 0; i < 200; i++ {
		d.OnIncomingFire("red-0", "player", 2.0)
		d.Tick(tickDt)
	}
	if st := d.suppression.State(h); st.Level == SuppressNone {
		t.Fatal("sustained incoming fire should suppress")
	}
}

func TestFormSquad_UnknownMemberErrors(t *testing.T) {
	d := buildStack(t)
	if err := d.FormSquad("bravo", []string{"red-0", "ghost"}); err == nil {
		t.Fatal("forming a squad around an unregistered agent must error")
	}
}

func TestTickWatch_CountsOverruns(t *testing.T) {
	w := NewTickWatch(0.000001, nil) // sub-microsecond budget always overruns
	w.Observe(1000, 1)
	if w.Overruns() != 1 {
		t.Fatalf("expected 1 overrun, got %d", w.Overruns())
	}
}
