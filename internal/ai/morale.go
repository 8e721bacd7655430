package ai

import (
	"math"
	"math/rand"
)

// MoraleEventKind classifies combat events that move morale and fear.
type MoraleEventKind int

const (
	EventAllyKilled MoraleEventKind = iota
	EventLeaderKilled
	EventEnemyKilled
	EventSuppressed
	EventFlanked
	EventAmbushed
	EventTookDamage
	EventReinforcements
)

func (k MoraleEventKind) String() string {
	switch k {
	case EventAllyKilled:
		return "ally_killed"
	case EventLeaderKilled:
		return "leader_killed"
	case EventEnemyKilled:
		return "enemy_killed"
	case EventSuppressed:
		return "suppressed"
	case EventFlanked:
		return "flanked"
	case EventAmbushed:
		return "ambushed"
	case EventTookDamage:
		return "took_damage"
	case EventReinforcements:
		return "reinforcements"
	default:
		return "unknown"
	}
}

// moraleDelta holds the fixed signed deltas an event applies.
type moraleDelta struct {
	morale float64
	fear   float64
}

var moraleDeltas = map[MoraleEventKind]moraleDelta{
	EventAllyKilled:     {morale: -15, fear: 20},
	EventLeaderKilled:   {morale: -25, fear: 25},
	EventEnemyKilled:    {morale: 10, fear: -5},
	EventSuppressed:     {morale: -8, fear: 10},
	EventFlanked:        {morale: -10, fear: 12},
	EventAmbushed:       {morale: -12, fear: 18},
	EventTookDamage:     {morale: -5, fear: 8},
	EventReinforcements: {morale: 12, fear: -10},
}

// timedModifier is a temporary morale adjustment with an expiry.
type timedModifier struct {
	Delta     float64
	ExpiresAt float64 // sim seconds
}

// MoraleState is one agent's morale record.
type MoraleState struct {
	Base    float64 // morale drifts back toward this
	Current float64 // 0..100
	Fear    float64 // 0..100

	PanicThreshold     float64 // fear above this can cascade
	SurrenderThreshold float64 // morale below this with high fear surrenders

	Modifiers []timedModifier
}

// MoraleBehavior is the derived behavioural read-out.
type MoraleBehavior struct {
	ShouldFlee          bool
	ShouldSurrender     bool
	IsPanicking         bool
	CanRally            bool
	CombatEffectiveness float64 // floored; never fully incapacitating
}

type moraleGroup struct {
	members map[Handle]bool
	leader  Handle
}

// MoraleService owns per-agent morale/fear and group fear propagation.
type MoraleService struct {
	cfg    MoraleTuning
	states map[Handle]*MoraleState
	pos    map[Handle]Vec2
	groups map[string]*moraleGroup
	byHand map[Handle]string // handle → group name
	rng    *rand.Rand
	now    float64
}

// NewMoraleService creates the service with a seeded cascade generator.
func NewMoraleService(cfg MoraleTuning, seed int64) *MoraleService {
	return &MoraleService{
		cfg:    cfg,
		states: make(map[Handle]*MoraleState),
		pos:    make(map[Handle]Vec2),
		groups: make(map[string]*moraleGroup),
		byHand: make(map[Handle]string),
		rng:    rand.New(rand.NewSource(seed)), // #nosec G404 -- deterministic gameplay sequence
	}
}

// Register creates a morale record with the given base morale.
func (ms *MoraleService) Register(h Handle, base float64) {
	base = clamp(base, 0, 100)
	ms.states[h] = &MoraleState{
		Base:               base,
		Current:            base,
		PanicThreshold:     70,
		SurrenderThreshold: 15,
	}
}

// Remove drops an agent from the service and its group.
func (ms *MoraleService) Remove(h Handle) {
	ms.leaveGroup(h)
	delete(ms.states, h)
	delete(ms.pos, h)
}

// State returns a value copy of the agent's morale record. Unknown handles
// read as steady (full base morale, no fear).
func (ms *MoraleService) State(h Handle) MoraleState {
	if st, ok := ms.states[h]; ok {
		return *st
	}
	return MoraleState{Base: 100, Current: 100, PanicThreshold: 70, SurrenderThreshold: 15}
}

// UpdatePosition syncs an agent's position for distance-based propagation.
func (ms *MoraleService) UpdatePosition(h Handle, pos Vec2) {
	if _, ok := ms.states[h]; ok {
		ms.pos[h] = pos
	}
}

// SetGroup places an agent into a named group, creating it as needed.
func (ms *MoraleService) SetGroup(h Handle, name string) {
	if _, ok := ms.states[h]; !ok {
		return
	}
	ms.leaveGroup(h)
	g, ok := ms.groups[name]
	if !ok {
		g = &moraleGroup{members: make(map[Handle]bool), leader: NoHandle}
		ms.groups[name] = g
	}
	g.members[h] = true
	ms.byHand[h] = name
}

// SetLeader marks an agent as its group's leader.
func (ms *MoraleService) SetLeader(name string, h Handle) {
	if g, ok := ms.groups[name]; ok && g.members[h] {
		g.leader = h
	}
}

// Leader returns the group's leader handle, or NoHandle.
func (ms *MoraleService) Leader(name string) Handle {
	if g, ok := ms.groups[name]; ok {
		return g.leader
	}
	return NoHandle
}

func (ms *MoraleService) leaveGroup(h Handle) {
	name, ok := ms.byHand[h]
	if !ok {
		return
	}
	if g, ok := ms.groups[name]; ok {
		delete(g.members, h)
		if g.leader == h {
			g.leader = NoHandle
		}
		if len(g.members) == 0 {
			delete(ms.groups, name)
		}
	}
	delete(ms.byHand, h)
}

// ApplyEvent applies an event's fixed deltas to one agent. Negative events
// spread fear through the agent's group with distance falloff; fear pushed
// past a member's panic threshold has a seeded chance of a secondary morale
// hit (the cascade).
func (ms *MoraleService) ApplyEvent(h Handle, kind MoraleEventKind) {
	st, ok := ms.states[h]
	if !ok {
		return
	}
	d := moraleDeltas[kind]
	st.Current = clamp(st.Current+d.morale, 0, 100)
	st.Fear = clamp(st.Fear+d.fear, 0, 100)

	if kind == EventLeaderKilled {
		ms.onLeaderKilled(h)
		return
	}
	if d.morale < 0 {
		ms.propagateFear(h, d.fear)
	}
}

// onLeaderKilled broadcasts a flat morale penalty to every group survivor
// and clears the leadership record.
func (ms *MoraleService) onLeaderKilled(h Handle) {
	name, ok := ms.byHand[h]
	if !ok {
		return
	}
	g := ms.groups[name]
	for m := range g.members {
		if m == h {
			continue
		}
		if st, ok := ms.states[m]; ok {
			st.Current = clamp(st.Current-ms.cfg.LeaderDeathPenalty, 0, 100)
		}
	}
	g.leader = NoHandle
}

// NotifyDeath removes a dead agent from its group. If it was the leader the
// leader-killed broadcast fires first.
func (ms *MoraleService) NotifyDeath(h Handle) {
	name, ok := ms.byHand[h]
	if ok {
		if g := ms.groups[name]; g != nil && g.leader == h {
			ms.onLeaderKilled(h)
		}
	}
	ms.leaveGroup(h)
}

func (ms *MoraleService) propagateFear(src Handle, baseFear float64) {
	if baseFear <= 0 {
		return
	}
	name, ok := ms.byHand[src]
	if !ok {
		return
	}
	srcPos, hasPos := ms.pos[src]
	g := ms.groups[name]
	for m := range g.members {
		if m == src {
			continue
		}
		st, ok := ms.states[m]
		if !ok {
			continue
		}
		falloff := 1.0
		if hasPos {
			if mp, ok := ms.pos[m]; ok {
				dist := srcPos.Dist(mp)
				if dist >= ms.cfg.PropagationRange {
					continue
				}
				falloff = 1 - dist/ms.cfg.PropagationRange
			}
		}
		transfer := math.Min(ms.cfg.MaxFearTransfer, baseFear*falloff)
		st.Fear = clamp(st.Fear+transfer, 0, 100)

		if st.Fear > st.PanicThreshold && ms.rng.Float64() < ms.cfg.CascadeChance {
			st.Current = clamp(st.Current-ms.cfg.CascadeMoraleHit, 0, 100)
		}
	}
}

// AddModifier attaches a timed morale modifier lasting durationSec.
func (ms *MoraleService) AddModifier(h Handle, delta, durationSec float64) {
	if st, ok := ms.states[h]; ok {
		st.Modifiers = append(st.Modifiers, timedModifier{Delta: delta, ExpiresAt: ms.now + durationSec})
	}
}

// EffectiveMorale is current morale plus active timed modifiers, bounded.
func (ms *MoraleService) EffectiveMorale(h Handle) float64 {
	st, ok := ms.states[h]
	if !ok {
		return 100
	}
	m := st.Current
	for _, mod := range st.Modifiers {
		if mod.ExpiresAt > ms.now {
			m += mod.Delta
		}
	}
	return clamp(m, 0, 100)
}

// Update advances the service clock, drifts morale toward base, decays fear
// linearly and expires stale modifiers.
func (ms *MoraleService) Update(dt float64) {
	ms.now += dt
	for _, st := range ms.states {
		if st.Current < st.Base {
			st.Current = math.Min(st.Base, st.Current+ms.cfg.DriftPerSec*dt)
		} else if st.Current > st.Base {
			st.Current = math.Max(st.Base, st.Current-ms.cfg.DriftPerSec*dt)
		}
		st.Fear = math.Max(0, st.Fear-ms.cfg.FearDecayPerSec*dt)

		kept := st.Modifiers[:0]
		for _, mod := range st.Modifiers {
			if mod.ExpiresAt > ms.now {
				kept = append(kept, mod)
			}
		}
		st.Modifiers = kept
	}
}

// Rally lets a steady leader restore low-morale members. It succeeds only
// when at least one member was actually affected.
func (ms *MoraleService) Rally(name string) bool {
	g, ok := ms.groups[name]
	if !ok || g.leader == NoHandle {
		return false
	}
	leader, ok := ms.states[g.leader]
	if !ok || leader.Current < ms.cfg.RallyMoraleFloor {
		return false
	}
	affected := 0
	for m := range g.members {
		if m == g.leader {
			continue
		}
		st, ok := ms.states[m]
		if !ok || st.Current >= 50 {
			continue
		}
		st.Current = clamp(st.Current+ms.cfg.RallyRestore, 0, 100)
		st.Fear = st.Fear * 0.5
		affected++
	}
	return affected > 0
}

// Evaluate derives the behavioural booleans and a combat-effectiveness
// multiplier. The multiplier is floored so morale alone never fully
// incapacitates an agent.
func (ms *MoraleService) Evaluate(h Handle) MoraleBehavior {
	st, ok := ms.states[h]
	if !ok {
		return MoraleBehavior{CombatEffectiveness: 1}
	}
	morale := ms.EffectiveMorale(h)
	eff := (morale/100)*0.7 + (1-st.Fear/100)*0.3
	if eff < ms.cfg.EffectivenessFloor {
		eff = ms.cfg.EffectivenessFloor
	}
	return MoraleBehavior{
		ShouldFlee:          morale < 25 && st.Fear > 60,
		ShouldSurrender:     morale < st.SurrenderThreshold && st.Fear > 80,
		IsPanicking:         st.Fear > st.PanicThreshold,
		CanRally:            morale >= ms.cfg.RallyMoraleFloor,
		CombatEffectiveness: eff,
	}
}
