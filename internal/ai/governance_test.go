package ai

import (
	"strings"
	"testing"
)

func newChair(t *testing.T) *Chair {
	t.Helper()
	c, err := NewChair(NewSentinel(DefaultTuning().Sentinel), nil, nil)
	if err != nil {
		t.Fatalf("chair: %v", err)
	}
	return c
}

func basicProposal() Proposal {
	return Proposal{
		Tier:       2,
		Type:       ProposalAdd,
		Subsystem:  "tactics",
		Confidence: 0.9,
		Payload:    map[string]any{"rule": "cautious_advance", "priority": 40.0},
	}
}

func TestPhase_StartFromInit(t *testing.T) {
	c := newChair(t)
	if err := c.Start(); err != nil {
		t.Fatalf("start from init should be legal: %v", err)
	}
	if c.Phase() != PhaseRunning {
		t.Fatalf("expected running, got %s", c.Phase())
	}
}

func TestPhase_PauseResume(t *testing.T) {
	c := newChair(t)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := c.Pause(); err != nil {
		t.Fatalf("pause from running should be legal: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("start from paused should be legal: %v", err)
	}
}

func TestPhase_IllegalTransitionsError(t *testing.T) {
	c := newChair(t)
	if err := c.Pause(); err == nil {
		t.Fatal("pause from init must be a hard error")
	}
	c.Shutdown()
	if err := c.Start(); err == nil {
		t.Fatal("start after shutdown must be a hard error")
	}
}

func TestAdvance_OnlyWhileRunning(t *testing.T) {
	c := newChair(t)
	c.Advance()
	if c.Tick() != 0 {
		t.Fatal("init phase must not tick")
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	c.Advance()
	if c.Tick() != 1 {
		t.Fatalf("running phase should tick, got %d", c.Tick())
	}
}

func TestSubmitProposal_ApprovedBaseline(t *testing.T) {
	c := newChair(t)
	v := c.SubmitProposal(basicProposal())
	if !v.Approved {
		t.Fatalf("clean proposal should pass, got %s", v.Reason)
	}
}

func TestSubmitProposal_TierConfidenceFloors(t *testing.T) {
	c := newChair(t)
	cases := []struct {
		tier       int
		confidence float64
		approve    bool
	}{
		{1, 0.94, false},
		{1, 0.95, true},
		{2, 0.79, false},
		{2, 0.80, true},
		{3, 0.69, false},
		{3, 0.70, true},
	}
	for _, tc := range cases {
		p := basicProposal()
		p.Tier = tc.tier
		p.Confidence = tc.confidence
		v := c.SubmitProposal(p)
		if v.Approved != tc.approve {
			t.Fatalf("tier %d confidence %.2f: expected approved=%v, got %v (%s)",
				tc.tier, tc.confidence, tc.approve, v.Approved, v.Reason)
		}
	}
}

func TestSubmitProposal_UnseededRandomnessBlocked(t *testing.T) {
	c := newChair(t)
	p := basicProposal()
	p.Payload["jitter"] = "unseeded noise per call"
	v := c.SubmitProposal(p)
	if v.Approved {
		t.Fatal("unseeded-randomness marker must block")
	}
}

func TestSubmitProposal_UnhealthySubsystemBlocked(t *testing.T) {
	c := newChair(t)
	c.ReportHealth("tactics", false, "rule table corrupt")
	p := basicProposal()
	p.Type = ProposalModify
	v := c.SubmitProposal(p)
	if v.Approved {
		t.Fatal("mutation of an unhealthy subsystem must block")
	}
}

func TestSubmitProposal_AddToUnhealthySubsystemAllowed(t *testing.T) {
	c := newChair(t)
	c.ReportHealth("tactics", false, "rule table corrupt")
	v := c.SubmitProposal(basicProposal())
	if !v.Approved {
		t.Fatalf("adds are not mutations of existing state, got %s", v.Reason)
	}
}

func TestSubmitProposal_ProtectedFieldBlocked(t *testing.T) {
	c := newChair(t)
	p := basicProposal()
	p.Type = ProposalModify
	p.Payload["faction"] = "player"
	v := c.SubmitProposal(p)
	if v.Approved {
		t.Fatal("modifying a protected field must block")
	}
}

func TestSubmitProposal_CheatKeywordBlocked(t *testing.T) {
	c := newChair(t)
	p := basicProposal()
	p.Payload["ability"] = "wallhack vision through smoke"
	v := c.SubmitProposal(p)
	if v.Approved {
		t.Fatal("cheating-capability keyword must block")
	}
}

func TestSubmitProposal_MalformedPayloadBlocked(t *testing.T) {
	c := newChair(t)
	p := basicProposal()
	p.Payload["nested"] = map[string]any{"deep": 1}
	v := c.SubmitProposal(p)
	if v.Approved {
		t.Fatal("non-scalar payload value must fail schema validation")
	}
}

func TestSubmitProposal_PausedWarnsOnly(t *testing.T) {
	c := newChair(t)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := c.Pause(); err != nil {
		t.Fatal(err)
	}
	v := c.SubmitProposal(basicProposal())
	if !v.Approved {
		t.Fatalf("paused submission is a warning, not a block: %s", v.Reason)
	}
	if len(v.Warnings) == 0 {
		t.Fatal("paused submission should carry a warning")
	}
}

func TestSubmitProposal_VerdictIsStructuredNotPanic(t *testing.T) {
	c := newChair(t)
	p := basicProposal()
	p.Confidence = 0.1
	v := c.SubmitProposal(p)
	if v.Approved {
		t.Fatal("expected rejection")
	}
	if !strings.Contains(v.Reason, "confidence") {
		t.Fatalf("rejection reason should name the failing rule, got %q", v.Reason)
	}
}

// --- Sentinel ---

func TestSentinel_SubFloorReactionTimeRejected(t *testing.T) {
	c := newChair(t)
	p := basicProposal()
	p.Tier = 1
	p.Confidence = 1.0 // confidence never excuses a fairness breach
	p.Subsystem = "combat"
	p.Payload = map[string]any{"reaction_time_ms": 50.0}
	v := c.SubmitProposal(p)
	if v.Approved {
		t.Fatal("sub-floor reaction time must be rejected regardless of confidence")
	}
}

func TestSentinel_OverCeilingAccuracyRejected(t *testing.T) {
	c := newChair(t)
	p := basicProposal()
	p.Subsystem = "combat"
	p.Payload = map[string]any{"accuracy": 0.9}
	if v := c.SubmitProposal(p); v.Approved {
		t.Fatal("accuracy above the 0.85 ceiling must be rejected")
	}
}

func TestSentinel_EliteCeilingRelaxed(t *testing.T) {
	c := newChair(t)
	p := basicProposal()
	p.Subsystem = "combat"
	p.Payload = map[string]any{"accuracy": 0.9, "elite": true}
	if v := c.SubmitProposal(p); !v.Approved {
		t.Fatalf("elite units may reach 0.95 accuracy, got %s", v.Reason)
	}
}

func TestSentinel_OverCapDamageRejected(t *testing.T) {
	c := newChair(t)
	p := basicProposal()
	p.Subsystem = "combat"
	p.Payload = map[string]any{"damage_fraction": 0.5}
	if v := c.SubmitProposal(p); v.Approved {
		t.Fatal("per-hit damage above 35% of player max health must be rejected")
	}
}

func TestSentinel_ThreeModerateViolationsBlock(t *testing.T) {
	s := NewSentinel(DefaultTuning().Sentinel)
	p := basicProposal()
	p.Payload = map[string]any{
		"detection_range": 200.0,
		"max_attackers":   6.0,
		"difficulty_ramp": 0.5,
	}
	blocked, _, _ := s.Review(p)
	if !blocked {
		t.Fatal("three moderate violations together must block")
	}
}

func TestSentinel_SingleModerateViolationWarns(t *testing.T) {
	s := NewSentinel(DefaultTuning().Sentinel)
	p := basicProposal()
	p.Payload = map[string]any{"detection_range": 200.0}
	blocked, _, warnings := s.Review(p)
	if blocked {
		t.Fatal("one moderate violation should not block")
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %d", len(warnings))
	}
}

func TestSentinel_FairnessIndexDegrades(t *testing.T) {
	s := NewSentinel(DefaultTuning().Sentinel)
	if s.FairnessIndex() != 1 {
		t.Fatal("no encounters should read as fair")
	}
	for i := 0; i < 10; i++ {
		s.RecordEncounter(true, false, 2.0)
	}
	if idx := s.FairnessIndex(); idx >= 0.5 {
		t.Fatalf("constant player deaths at high difficulty should drag the index, got %.2f", idx)
	}
}

// --- Audit ledger ---

func TestAuditLog_RecordsVerdicts(t *testing.T) {
	ledger, err := OpenAuditLog(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ledger.Close()

	c, err := NewChair(NewSentinel(DefaultTuning().Sentinel), ledger, nil)
	if err != nil {
		t.Fatalf("chair: %v", err)
	}
	c.SubmitProposal(basicProposal())
	bad := basicProposal()
	bad.Confidence = 0.1
	c.SubmitProposal(bad)

	entries, err := ledger.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("both verdicts should be on the ledger, got %d", len(entries))
	}
	if entries[0].Approved || !entries[1].Approved {
		t.Fatalf("newest-first ordering expected: %+v", entries)
	}
}

func TestAuditLog_CountBySubsystem(t *testing.T) {
	ledger, err := OpenAuditLog(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ledger.Close()
	c, err := NewChair(nil, ledger, nil)
	if err != nil {
		t.Fatalf("chair: %v", err)
	}
	c.SubmitProposal(basicProposal())
	c.SubmitProposal(basicProposal())
	counts, err := ledger.CountBySubsystem()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts["tactics"] != 2 {
		t.Fatalf("expected 2 tactics proposals, got %d", counts["tactics"])
	}
}
