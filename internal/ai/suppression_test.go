package ai

import "testing"

func newSuppression() *SuppressionService {
	ss := NewSuppressionService(DefaultTuning().Suppression, 60)
	ss.Initialize(0)
	return ss
}

// hammer pours steady fire at the agent for n ticks.
func hammer(ss *SuppressionService, h Handle, fromTick, n int, base float64) int {
	tick := fromTick
	for i := 0; i < n; i++ {
		ss.RegisterFire(h, "mg-1", base, tick)
		ss.Update(h, tick)
		tick++
	}
	return tick
}

func TestLevelForIntensity_MonotonicSteps(t *testing.T) {
	prev := SuppressNone
	for i := 0; i <= 100; i++ {
		lvl := levelForIntensity(float64(i) / 100)
		if lvl < prev {
			t.Fatalf("level decreased at intensity %.2f", float64(i)/100)
		}
		prev = lvl
	}
}

func TestLevelForIntensity_Thresholds(t *testing.T) {
	cases := []struct {
		intensity float64
		want      SuppressionLevel
	}{
		{0.1, SuppressNone},
		{0.2, SuppressLight},
		{0.4, SuppressMedium},
		{0.65, SuppressHeavy},
		{0.85, SuppressPinned},
	}
	for _, c := range cases {
		if got := levelForIntensity(c.intensity); got != c.want {
			t.Fatalf("intensity %.2f: expected %s, got %s", c.intensity, c.want, got)
		}
	}
}

func TestRegisterFire_LoneShotBarelySuppresses(t *testing.T) {
	ss := newSuppression()
	ss.RegisterFire(0, "rifle-1", 1.0, 0)
	for tick := 0; tick < 10; tick++ {
		ss.Update(0, tick)
	}
	if st := ss.State(0); st.Level > SuppressLight {
		t.Fatalf("a single round should not suppress past light, got %s", st.Level)
	}
}

func TestSustainedFire_ReachesPinned(t *testing.T) {
	ss := newSuppression()
	hammer(ss, 0, 0, 300, 2.0)
	if st := ss.State(0); st.Level != SuppressPinned {
		t.Fatalf("300 ticks of sustained fire should pin, got %s (intensity %.2f)", st.Level, st.Intensity)
	}
}

func TestPinned_BlocksReturnFire(t *testing.T) {
	ss := newSuppression()
	tick := hammer(ss, 0, 0, 300, 2.0)
	if ss.CanReturnFire(0, tick) {
		t.Fatal("pinned agent should not return fire")
	}
}

func TestPinned_BlockWindowElapses(t *testing.T) {
	cfg := DefaultTuning().Suppression
	ss := newSuppression()
	tick := hammer(ss, 0, 0, 300, 2.0)
	if !ss.CanReturnFire(0, tick+cfg.PinnedBlockTicks+60) {
		t.Fatal("block should lift after the pinned block window")
	}
}

func TestCover_ReducesAccumulation(t *testing.T) {
	ss := newSuppression()
	ss.Initialize(1)
	ss.SetCover(1, 1.0)
	hammer(ss, 0, 0, 120, 2.0)
	tick := 0
	for i := 0; i < 120; i++ {
		ss.RegisterFire(1, "mg-1", 2.0, tick)
		ss.Update(1, tick)
		tick++
	}
	exposed := ss.State(0)
	covered := ss.State(1)
	if covered.Intensity >= exposed.Intensity {
		t.Fatalf("full cover (%.2f) should accumulate less than exposed (%.2f)",
			covered.Intensity, exposed.Intensity)
	}
}

func TestDecay_WithoutFire(t *testing.T) {
	ss := newSuppression()
	tick := hammer(ss, 0, 0, 120, 2.0)
	peak := ss.State(0).Intensity
	// Run well past the stale-source window with no incoming fire.
	for i := 0; i < 600; i++ {
		ss.Update(0, tick)
		tick++
	}
	st := ss.State(0)
	if st.Intensity >= peak {
		t.Fatalf("intensity should decay without fire: peak %.2f, now %.2f", peak, st.Intensity)
	}
	if st.Level != SuppressNone {
		t.Fatalf("expected full recovery, got %s", st.Level)
	}
}

func TestIntensity_StaysBounded(t *testing.T) {
	ss := newSuppression()
	tick := 0
	for i := 0; i < 1000; i++ {
		ss.RegisterFire(0, "mg-1", 10.0, tick)
		ss.RegisterFire(0, "mg-2", 10.0, tick)
		ss.Update(0, tick)
		tick++
	}
	st := ss.State(0)
	if st.Intensity < 0 || st.Intensity > 1 {
		t.Fatalf("intensity out of range: %.3f", st.Intensity)
	}
}

func TestSquadReport_PinnedMemberBlocksAdvance(t *testing.T) {
	ss := newSuppression()
	ss.Initialize(1)
	ss.Initialize(2)
	hammer(ss, 0, 0, 300, 2.0)
	rep := ss.SquadReport([]Handle{0, 1, 2})
	if rep.CanAdvance {
		t.Fatal("squad with a pinned member should not advance")
	}
}

func TestSquadReport_CleanSquadAdvances(t *testing.T) {
	ss := newSuppression()
	ss.Initialize(1)
	rep := ss.SquadReport([]Handle{0, 1})
	if !rep.CanAdvance {
		t.Fatal("unsuppressed squad should be able to advance")
	}
}

func TestState_UnknownHandleUnsuppressed(t *testing.T) {
	ss := newSuppression()
	if st := ss.State(42); st.Level != SuppressNone {
		t.Fatalf("unknown handle should read unsuppressed, got %s", st.Level)
	}
}
