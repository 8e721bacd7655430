package ai

import (
	"fmt"
	"log/slog"
	"time"
)

// AgentDecision is the per-agent output handed back to the world each tick.
type AgentDecision struct {
	State         AgentState
	Action        ResolvedAction
	TargetPos     Vec2
	HasTargetPos  bool
	Tactic        TacticKind
	TacticRule    string
	SquadTactic   SquadTactic
	Suppression   SuppressionLevel
	Effectiveness float64
}

// Director is the orchestrator: it owns the roster and every service, and
// drives them in the fixed per-tick order. All public entry points take
// string ids; handles stay internal.
type Director struct {
	tuning Tuning
	log    *slog.Logger

	roster      *Roster
	perception  *PerceptionService
	suppression *SuppressionService
	micro       *MicroAgentEvaluator
	tactics     *TacticsEngine
	morale      *MoraleService
	memory      *MemoryLedger
	squads      *SquadCoordinator
	chair       *Chair
	sentinel    *Sentinel
	watch       *TickWatch
	simlog      *SimLog

	world WorldContext

	target    Vec2
	targetDeg float64
	hasTarget bool

	engagedAt map[Handle]float64
	hasCover  map[Handle]bool

	now float64
}

// NewDirector wires the full decision stack. A nil audit recorder disables
// proposal persistence.
func NewDirector(tuning Tuning, audit ProposalRecorder, log *slog.Logger) (*Director, error) {
	if log == nil {
		log = slog.Default()
	}
	sentinel := NewSentinel(tuning.Sentinel)
	chair, err := NewChair(sentinel, audit, log)
	if err != nil {
		return nil, err
	}
	engine, err := NewTacticsEngine(tuning.Sim.Seed, tuning.Squad.FlankOffsetDistance, log)
	if err != nil {
		return nil, err
	}
	return &Director{
		tuning:      tuning,
		log:         log,
		roster:      NewRoster(),
		perception:  NewPerceptionService(tuning.Perception),
		suppression: NewSuppressionService(tuning.Suppression, tuning.Sim.TickRateHz),
		micro:       NewMicroAgentEvaluator(tuning.Micro),
		tactics:     engine,
		morale:      NewMoraleService(tuning.Morale, tuning.Sim.Seed),
		memory:      NewMemoryLedger(tuning.Memory),
		squads:      NewSquadCoordinator(tuning.Squad),
		chair:       chair,
		sentinel:    sentinel,
		watch:       NewTickWatch(tuning.Sim.TickBudgetMs, log),
		world:       DefaultWorldContext(),
		engagedAt:   make(map[Handle]float64),
		hasCover:    make(map[Handle]bool),
	}, nil
}

// Chair exposes the governance layer for lifecycle control and proposals.
func (d *Director) Chair() *Chair { return d.chair }

// Sentinel exposes the fairness validator for encounter reporting.
func (d *Director) Sentinel() *Sentinel { return d.sentinel }

// Memory exposes the social memory ledger.
func (d *Director) Memory() *MemoryLedger { return d.memory }

// Squads exposes the squad coordinator.
func (d *Director) Squads() *SquadCoordinator { return d.squads }

// Tactics exposes the rule engine for governed rule admission.
func (d *Director) Tactics() *TacticsEngine { return d.tactics }

// AttachSimLog starts recording structured events to a headless run log.
func (d *Director) AttachSimLog(sl *SimLog) { d.simlog = sl }

// SetWorldContext replaces the shared environment record. Services read a
// value copy on their next update.
func (d *Director) SetWorldContext(wc WorldContext) { d.world = wc }

// WorldContext returns the current environment record.
func (d *Director) WorldContext() WorldContext { return d.world }

// SetPrimaryTarget points the stack at the hostile target (the player) and
// seeds the world-context player position. SetWorldContext refreshes the
// live player fields between target updates.
func (d *Director) SetPrimaryTarget(pos Vec2, facingDeg float64) {
	d.target = pos
	d.targetDeg = facingDeg
	d.hasTarget = true
	d.world.PlayerPos = pos
}

// ClearPrimaryTarget drops the tracked target.
func (d *Director) ClearPrimaryTarget() { d.hasTarget = false }

// RegisterAgent creates the agent and all of its per-service state together.
// Re-registering an id replaces the previous record.
func (d *Director) RegisterAgent(a Agent, p Personality, baseMorale float64) Handle {
	if a.MaxHealth <= 0 {
		a.MaxHealth = 100
	}
	if a.Health <= 0 {
		a.Health = a.MaxHealth
	}
	a.Alive = true
	h := d.roster.Add(a)
	d.perception.Initialize(h)
	d.suppression.Initialize(h)
	d.micro.Initialize(h)
	d.morale.Register(h, baseMorale)
	if a.SquadID != "" {
		d.morale.SetGroup(h, a.SquadID)
	}
	d.morale.UpdatePosition(h, a.Pos)
	d.memory.Register(a.ID, p)
	d.log.Debug("agent registered", "id", a.ID, "squad", a.SquadID)
	return h
}

// RemoveAgent tears down every per-service record for the agent and tells
// its squad. Unknown ids are a no-op.
func (d *Director) RemoveAgent(id string) {
	h, ok := d.roster.Lookup(id)
	if !ok {
		return
	}
	d.squads.NotifyCasualty(h)
	d.morale.NotifyDeath(h)
	d.perception.Remove(h)
	d.suppression.Remove(h)
	d.micro.Remove(h)
	d.morale.Remove(h)
	delete(d.engagedAt, h)
	delete(d.hasCover, h)
	d.roster.Remove(h)
	d.log.Debug("agent removed", "id", id)
}

// FormSquad builds a squad from registered agent ids. The first id becomes
// the leader for both coordination and morale.
func (d *Director) FormSquad(squadID string, memberIDs []string) error {
	members := make([]SquadMember, 0, len(memberIDs))
	handles := make([]Handle, 0, len(memberIDs))
	for _, id := range memberIDs {
		h, ok := d.roster.Lookup(id)
		if !ok {
			return fmt.Errorf("form squad %s: unknown agent %s", squadID, id)
		}
		a := d.roster.Get(h)
		a.SquadID = squadID
		members = append(members, SquadMember{Handle: h, ID: id, Pos: a.Pos})
		handles = append(handles, h)
	}
	d.squads.Form(squadID, members)
	for _, h := range handles {
		d.morale.SetGroup(h, squadID)
	}
	if len(handles) > 0 {
		d.morale.SetLeader(squadID, handles[0])
	}
	return nil
}

// SetCover records the agent's current cover quality for suppression and
// tactical reasoning.
func (d *Director) SetCover(id string, quality float64) {
	h, ok := d.roster.Lookup(id)
	if !ok {
		return
	}
	d.suppression.SetCover(h, quality)
	d.hasCover[h] = quality > 0.3
}

// MoveAgent updates an agent's position and facing from the world.
func (d *Director) MoveAgent(id string, pos Vec2, facingDeg float64) {
	h, ok := d.roster.Lookup(id)
	if !ok {
		return
	}
	a := d.roster.Get(h)
	a.Pos = pos
	a.Facing = facingDeg
	d.morale.UpdatePosition(h, pos)
}

// Tick advances the whole stack by one fixed step. Order matters: sensing
// feeds the micro-agents, member positions must be synced before squad
// tactic planning, suppression integrates last so this tick's fire lands.
// Only a running simulation advances; other phases are a no-op.
func (d *Director) Tick(dt float64) {
	if d.chair.Phase() != PhaseRunning {
		return
	}
	started := time.Now()
	tick := int(d.chair.Advance())
	d.now += dt

	mods := envModifiersFrom(d.world)
	// The player's stance scales how much noise they give off.
	noise := d.world.PlayerNoise * stanceDetectionMul[d.world.PlayerStance]
	d.roster.ForEach(func(h Handle, a *Agent) {
		d.perception.Update(h, mods)
		if !d.hasTarget {
			return
		}
		if d.perception.CanSee(h, a.Pos, a.Facing, d.target) {
			d.perception.SetLastKnown(h, d.target)
			if _, ok := d.engagedAt[h]; !ok {
				d.engagedAt[h] = d.now
			}
			return
		}
		// An unseen player can still give their position away by sound.
		if noise > 0 && d.perception.CanHear(h, a.Pos, d.world.PlayerPos, noise) {
			d.perception.SetLastKnown(h, d.world.PlayerPos)
		}
	})
	d.perception.DecayMemory(dt)

	d.roster.ForEach(func(h Handle, a *Agent) {
		dec := d.decide(h, a, tick)
		if dec.State != a.State && d.simlog != nil {
			d.simlog.Add(tick, a.ID, a.SquadID, "state", "transition",
				fmt.Sprintf("%s → %s", a.State, dec.State), 0)
		}
		a.State = dec.State
	})

	for squadID := range d.activeSquads() {
		d.squads.SyncPositions(squadID, func(h Handle) (Vec2, bool) {
			if a := d.roster.Get(h); a != nil {
				return a.Pos, true
			}
			return Vec2{}, false
		})
		if d.hasTarget {
			before := SquadRetreat
			if sq := d.squads.Squad(squadID); sq != nil {
				before = sq.Tactic
			}
			plan := d.squads.PlanTactic(squadID, d.target)
			if plan.Tactic != before && d.simlog != nil {
				d.simlog.Add(tick, "--", squadID, "squad", "tactic_change",
					fmt.Sprintf("%s → %s", before, plan.Tactic), 0)
			}
		}
	}

	d.suppression.UpdateAll(tick)
	d.morale.Update(dt)
	d.memory.Advance(dt)

	d.watch.Observe(time.Since(started), uint64(tick))
}

func (d *Director) activeSquads() map[string]bool {
	out := make(map[string]bool)
	d.roster.ForEach(func(h Handle, a *Agent) {
		if a.SquadID != "" {
			out[a.SquadID] = true
		}
	})
	return out
}

// UpdateAgent resolves one agent's decision on demand. Unknown ids read as
// an idle no-op decision; the shared loop never fails on a stale id.
func (d *Director) UpdateAgent(id string) AgentDecision {
	h, ok := d.roster.Lookup(id)
	if !ok {
		return AgentDecision{State: StateIdle, Effectiveness: 1}
	}
	a := d.roster.Get(h)
	return d.decide(h, a, int(d.chair.Tick()))
}

// decide builds the combat context, resolves the micro-agent stack and the
// rule engine, and folds suppression and morale into the final decision.
func (d *Director) decide(h Handle, a *Agent, tick int) AgentDecision {
	sup := d.suppression.State(h)
	per := d.perception.State(h)
	behavior := d.morale.Evaluate(h)

	squadTactic := SquadAssault
	if a.SquadID != "" {
		if sq := d.squads.Squad(a.SquadID); sq != nil {
			squadTactic = sq.Tactic
		}
	}

	if !d.hasTarget && !per.HasLastKnown {
		state := StateIdle
		switch {
		case per.AlertLevel > 0.6:
			state = StateSearching
		case per.AlertLevel > 0.3:
			state = StateAware
		}
		return AgentDecision{State: state, SquadTactic: squadTactic, Suppression: sup.Level, Effectiveness: behavior.CombatEffectiveness}
	}

	targetPos := d.target
	if !d.hasTarget {
		targetPos = per.LastKnownPos
	}

	ctx := d.combatContext(h, a, sup, targetPos)
	action := d.micro.Resolve(h, ctx)

	// Group morale can force the outcome past the micro-agent read.
	if behavior.ShouldSurrender {
		action = ResolvedAction{Action: ActionSurrender, Priority: 5}
	} else if behavior.ShouldFlee && action.Action != ActionSurrender {
		action = ResolvedAction{Action: ActionRetreat, Intensity: 1, Priority: 4}
	}

	dec := AgentDecision{
		Action:        action,
		SquadTactic:   squadTactic,
		Suppression:   sup.Level,
		Effectiveness: behavior.CombatEffectiveness,
	}

	switch action.Action {
	case ActionSurrender:
		dec.State = StateSurrender
	case ActionRetreat:
		dec.State = StateRetreat
	case ActionFlank:
		dec.State = StateFlank
	default:
		dec.State = StateEngage
	}

	if dec.State == StateEngage || dec.State == StateFlank {
		tc := TacticContext{
			HealthFraction: ctx.HealthFraction,
			Morale:         d.morale.EffectiveMorale(h),
			AllyCount:      ctx.AllyCount,
			EnemyCount:     ctx.EnemyCount,
			Distance:       ctx.Distance,
			HasCover:       ctx.HasCover,
			Weather:        d.world.Weather,
			TimeOfDay:      d.world.TimeOfDay,
			Terrain:        d.world.Terrain,
		}
		td := d.tactics.Evaluate(h, tc, d.now)
		dec.Tactic = td.Tactic
		dec.TacticRule = td.Rule
		if dest, ok := d.tactics.Destination(td.Tactic, a.Pos, targetPos, d.targetDeg); ok {
			dec.TargetPos = dest
			dec.HasTargetPos = true
		}
	} else if dec.State == StateRetreat {
		if dest, ok := d.tactics.Destination(TacticRetreatRegroup, a.Pos, targetPos, d.targetDeg); ok {
			dec.TargetPos = dest
			dec.HasTargetPos = true
		}
	}

	// A pinned agent holds position regardless of the chosen verb.
	if !d.suppression.CanReturnFire(h, tick) && dec.State == StateEngage {
		dec.Action.Intensity = 0
	}
	return dec
}

func (d *Director) combatContext(h Handle, a *Agent, sup SuppressionSnapshotState, targetPos Vec2) CombatContext {
	allies := 0
	casualties := 0
	if a.SquadID != "" {
		if sq := d.squads.Squad(a.SquadID); sq != nil {
			allies = sq.AliveCount() - 1
			if allies < 0 {
				allies = 0
			}
			casualties = len(sq.Members) - sq.AliveCount()
		}
	}
	enemies := 0
	if d.hasTarget {
		enemies = 1
	}

	duration := 0.0
	if at, ok := d.engagedAt[h]; ok {
		duration = d.now - at
	}

	threat := clamp01(sup.Intensity + d.perception.State(h).AlertLevel*0.3)
	return CombatContext{
		HealthFraction: clamp01(a.Health / a.MaxHealth),
		AllyCount:      allies,
		EnemyCount:     enemies,
		ThreatLevel:    threat,
		CombatDuration: duration,
		Casualties:     casualties,
		Distance:       a.Pos.Dist(targetPos),
		HasCover:       d.hasCover[h],
		Outnumbered:    enemies > allies+1,
	}
}

// OnIncomingFire registers shots landing near an agent, whether or not they
// hit. Near misses still suppress.
func (d *Director) OnIncomingFire(targetID, sourceID string, weaponBase float64) {
	h, ok := d.roster.Lookup(targetID)
	if !ok {
		return
	}
	d.suppression.RegisterFire(h, sourceID, weaponBase, int(d.chair.Tick()))
	d.morale.ApplyEvent(h, EventSuppressed)
}

// OnDamaged applies damage to an agent and the morale and memory fallout.
func (d *Director) OnDamaged(targetID, sourceID string, amount float64) {
	h, ok := d.roster.Lookup(targetID)
	if !ok {
		return
	}
	a := d.roster.Get(h)
	a.Health -= amount
	d.morale.ApplyEvent(h, EventTookDamage)
	d.memory.RecordEvent(targetID, sourceID, MemWasAttacked, clamp01(amount/a.MaxHealth), -0.5)
	if a.Health <= 0 {
		d.OnKilled(targetID, sourceID)
	}
}

// OnKilled handles an agent death: squadmates take the morale hit and
// remember witnessing it, then every per-service record is torn down.
func (d *Director) OnKilled(targetID, sourceID string) {
	h, ok := d.roster.Lookup(targetID)
	if !ok {
		return
	}
	a := d.roster.Get(h)
	a.Alive = false

	if a.SquadID != "" {
		leader := d.morale.Leader(a.SquadID) == h
		if sq := d.squads.Squad(a.SquadID); sq != nil {
			for _, m := range sq.Members {
				if !m.Alive || m.Handle == h {
					continue
				}
				if !leader {
					d.morale.ApplyEvent(m.Handle, EventAllyKilled)
				}
				d.memory.RecordEvent(m.ID, sourceID, MemWitnessedDeath, 0.7, -0.6)
			}
		}
	}
	d.log.Info("agent killed", "id", targetID, "by", sourceID)
	if d.simlog != nil {
		d.simlog.Add(int(d.chair.Tick()), targetID, a.SquadID, "state", "killed", "by "+sourceID, 0)
	}
	d.RemoveAgent(targetID)
}

// OnEnemyKilled credits every member of the squad with the kill's morale
// bump and bonds the living members with the shared-combat memory.
func (d *Director) OnEnemyKilled(squadID, enemyID string) {
	sq := d.squads.Squad(squadID)
	if sq == nil {
		return
	}
	for _, m := range sq.Members {
		if !m.Alive {
			continue
		}
		d.morale.ApplyEvent(m.Handle, EventEnemyKilled)
		for _, o := range sq.Members {
			if !o.Alive || o.Handle == m.Handle {
				continue
			}
			d.memory.RecordEvent(m.ID, o.ID, MemFoughtTogether, 0.4, 0.3)
		}
	}
	d.log.Debug("enemy killed", "squad", squadID, "enemy", enemyID)
}

// Rally forwards a leader rally attempt for the squad.
func (d *Director) Rally(squadID string) bool {
	return d.morale.Rally(squadID)
}

// Now returns the director's sim clock in seconds.
func (d *Director) Now() float64 { return d.now }
