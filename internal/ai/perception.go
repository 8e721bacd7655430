package ai

import "math"

// PerceptionState is one agent's sensing state toward the tracked target.
type PerceptionState struct {
	SightRange    float64 // effective, after environment modifiers
	ConeAngle     float64 // degrees, total arc
	HearingRadius float64 // effective, after environment modifiers

	LastKnownPos Vec2
	LastKnownAt  float64 // sim seconds; meaningful only when HasLastKnown
	HasLastKnown bool

	AlertLevel float64 // 0..1, decays toward 0
}

// EnvModifiers are the environment multipliers applied on update.
type EnvModifiers struct {
	WeatherSight  float64
	WeatherHear   float64
	TimeOfDay     float64
	Lighting      float64 // 0..1
}

// envModifiersFrom derives perception modifiers from a world context.
func envModifiersFrom(wc WorldContext) EnvModifiers {
	ws, tod := wc.SightMultipliers()
	return EnvModifiers{
		WeatherSight: ws,
		WeatherHear:  wc.HearingMultiplier(),
		TimeOfDay:    tod,
		Lighting:     clamp01(wc.Lighting),
	}
}

// PerceptionService owns per-agent sensing state. Every lookup on an unknown
// handle returns a safe zero-alert default so the tick loop never fails.
type PerceptionService struct {
	cfg    PerceptionTuning
	states map[Handle]*PerceptionState
	now    float64 // sim seconds, advanced by DecayMemory
}

// NewPerceptionService creates the service with the given tuning.
func NewPerceptionService(cfg PerceptionTuning) *PerceptionService {
	return &PerceptionService{
		cfg:    cfg,
		states: make(map[Handle]*PerceptionState),
	}
}

// Initialize sets sensing defaults for an agent.
func (ps *PerceptionService) Initialize(h Handle) {
	ps.states[h] = &PerceptionState{
		SightRange:    ps.cfg.BaseSightRange,
		ConeAngle:     ps.cfg.ConeAngleDeg,
		HearingRadius: ps.cfg.BaseHearingRadius,
	}
}

// Remove drops an agent's sensing state.
func (ps *PerceptionService) Remove(h Handle) {
	delete(ps.states, h)
}

// defaultState is returned for unknown handles: full defaults, no memory.
func (ps *PerceptionService) defaultState() PerceptionState {
	return PerceptionState{
		SightRange:    ps.cfg.BaseSightRange,
		ConeAngle:     ps.cfg.ConeAngleDeg,
		HearingRadius: ps.cfg.BaseHearingRadius,
	}
}

// State returns a value copy of the agent's sensing state.
func (ps *PerceptionService) State(h Handle) PerceptionState {
	if st, ok := ps.states[h]; ok {
		return *st
	}
	return ps.defaultState()
}

// restoreState overwrites the agent's sensing state with a persisted copy.
func (ps *PerceptionService) restoreState(h Handle, st PerceptionState) {
	cp := st
	ps.states[h] = &cp
}

// Update recomputes effective ranges from environment modifiers:
// sight = base × weather × timeOfDay × (0.5 + 0.5 × lighting),
// hearing = base × weather.
func (ps *PerceptionService) Update(h Handle, mods EnvModifiers) {
	st, ok := ps.states[h]
	if !ok {
		return
	}
	st.SightRange = ps.cfg.BaseSightRange * mods.WeatherSight * mods.TimeOfDay * (0.5 + 0.5*mods.Lighting)
	st.HearingRadius = ps.cfg.BaseHearingRadius * mods.WeatherHear
}

// CanSee reports whether a target at targetPos is inside the agent's sight
// range and vision cone. The signed angle to the target is wrapped to
// [-180, 180] before the half-cone comparison.
func (ps *PerceptionService) CanSee(h Handle, from Vec2, facingDeg float64, targetPos Vec2) bool {
	st := ps.State(h)
	dist := from.Dist(targetPos)
	if dist > st.SightRange {
		return false
	}
	diff := wrapDeg180(from.AngleDegTo(targetPos) - facingDeg)
	return math.Abs(diff) <= st.ConeAngle/2
}

// CanHear reports whether a noise source at targetPos is audible. Noise
// level scales the effective hearing radius.
func (ps *PerceptionService) CanHear(h Handle, from, targetPos Vec2, noiseLevel float64) bool {
	st := ps.State(h)
	return from.Dist(targetPos) <= st.HearingRadius*noiseLevel
}

// DetectionProbability blends distance falloff, target stance, noise and the
// agent's alert level into a [0,1] detection signal. It is a probabilistic
// side channel; the boolean CanSee/CanHear checks do not consume it.
func (ps *PerceptionService) DetectionProbability(h Handle, from, targetPos Vec2, stance Stance, noiseLevel float64) float64 {
	st := ps.State(h)
	dist := from.Dist(targetPos)
	if st.SightRange <= 0 || dist > st.SightRange {
		return 0
	}
	falloff := 1.0 - dist/st.SightRange
	p := falloff * stanceDetectionMul[stance]
	if noiseLevel > 1.0 {
		p += (noiseLevel - 1.0) * 0.25
	}
	p += st.AlertLevel * 0.3
	return clamp01(p)
}

// SetLastKnown stores the target's position with the current sim time and
// bumps the alert level by a fixed step, capped at 1.
func (ps *PerceptionService) SetLastKnown(h Handle, pos Vec2) {
	st, ok := ps.states[h]
	if !ok {
		return
	}
	st.LastKnownPos = pos
	st.LastKnownAt = ps.now
	st.HasLastKnown = true
	st.AlertLevel = clamp01(st.AlertLevel + ps.cfg.AlertBump)
}

// DecayMemory advances the service clock, clears last-known positions whose
// age exceeds the memory duration, and decays alert levels linearly.
func (ps *PerceptionService) DecayMemory(dt float64) {
	ps.now += dt
	for _, st := range ps.states {
		if st.HasLastKnown && ps.now-st.LastKnownAt > ps.cfg.MemoryDuration {
			st.HasLastKnown = false
			st.LastKnownPos = Vec2{}
		}
		st.AlertLevel = math.Max(0, st.AlertLevel-ps.cfg.AlertDecayPerSec*dt)
	}
}

// Now returns the service's sim clock in seconds.
func (ps *PerceptionService) Now() float64 { return ps.now }
