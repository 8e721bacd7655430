package ai

// CombatContext is the shared value-copied context every micro-agent scores
// against. The director builds one per agent per tick.
type CombatContext struct {
	HealthFraction float64 // 0..1
	AllyCount      int
	EnemyCount     int
	ThreatLevel    float64 // 0..1
	CombatDuration float64 // seconds since first contact
	Casualties     int
	Distance       float64 // to primary target
	HasCover       bool
	Outnumbered    bool
}

// TargetPreference orders how an aggressive agent picks targets.
type TargetPreference int

const (
	TargetNearest TargetPreference = iota
	TargetWeakest
	TargetBiggestThreat
	TargetIsolated
)

func (t TargetPreference) String() string {
	switch t {
	case TargetNearest:
		return "nearest"
	case TargetWeakest:
		return "weakest"
	case TargetBiggestThreat:
		return "biggest_threat"
	case TargetIsolated:
		return "isolated"
	default:
		return "unknown"
	}
}

// TacticLean is the tactics sub-agent's recommendation.
type TacticLean int

const (
	LeanFlank TacticLean = iota
	LeanPush
	LeanSuppress
	LeanDefend
	LeanRetreat
)

func (t TacticLean) String() string {
	switch t {
	case LeanFlank:
		return "flank"
	case LeanPush:
		return "push"
	case LeanSuppress:
		return "suppress"
	case LeanDefend:
		return "defend"
	case LeanRetreat:
		return "retreat"
	default:
		return "unknown"
	}
}

// MovementStyle qualifies how the recommended move should be executed.
type MovementStyle int

const (
	MoveAggressive MovementStyle = iota
	MoveCautious
	MoveCovert
)

func (m MovementStyle) String() string {
	switch m {
	case MoveAggressive:
		return "aggressive"
	case MoveCautious:
		return "cautious"
	case MoveCovert:
		return "covert"
	default:
		return "unknown"
	}
}

// ActionKind is the resolved verb the stack hands back to the world.
type ActionKind int

const (
	ActionSurrender ActionKind = iota
	ActionRetreat
	ActionFlank
	ActionPush
	ActionSuppress
	ActionDefend
)

func (a ActionKind) String() string {
	switch a {
	case ActionSurrender:
		return "surrender"
	case ActionRetreat:
		return "retreat"
	case ActionFlank:
		return "flank"
	case ActionPush:
		return "push"
	case ActionSuppress:
		return "suppress"
	case ActionDefend:
		return "defend"
	default:
		return "unknown"
	}
}

// AggressionOutput is the aggression sub-agent's recommendation.
type AggressionOutput struct {
	AttackFrequency float64 // 0..1
	RiskTolerance   float64 // 0..1
	TargetPriority  []TargetPreference
}

// TacticsLeanOutput is the tactics sub-agent's recommendation.
type TacticsLeanOutput struct {
	Recommended TacticLean
	Movement    MovementStyle
	Coordinate  bool // worth looping in the squad
}

// PerceptionWillOutput reflects willingness to search and track — distinct
// from the sensing service, which models what the agent physically senses.
type PerceptionWillOutput struct {
	Alertness        float64 // 0..1
	SearchIntensity  float64 // 0..1
	TrackingAccuracy float64 // 0..1
}

// MoraleDriveOutput is the morale sub-agent's recommendation.
type MoraleDriveOutput struct {
	Panic              float64 // 0..1
	WillToFight        float64 // 0..1
	SurrenderThreshold float64 // 0..1
}

// MicroAgentOutputs bundles all four sub-drives for one evaluation.
type MicroAgentOutputs struct {
	Aggression AggressionOutput
	Tactics    TacticsLeanOutput
	Perception PerceptionWillOutput
	Morale     MoraleDriveOutput
}

// MicroWeights are the per-agent tunable sub-drive weights.
type MicroWeights struct {
	Aggression float64
	Tactics    float64
	Perception float64
	Morale     float64
}

// DefaultMicroWeights returns a balanced drive profile.
func DefaultMicroWeights() MicroWeights {
	return MicroWeights{Aggression: 1.0, Tactics: 1.0, Perception: 1.0, Morale: 1.0}
}

// ResolvedAction is the single action the evaluator settles on.
type ResolvedAction struct {
	Action    ActionKind
	Intensity float64 // 0..1
	Priority  float64 // 0..5
}

// MicroAgentEvaluator resolves four weighted sub-drives into one action.
// The resolution order is deliberate game design: morale strictly dominates
// tactics, which dominates aggression.
type MicroAgentEvaluator struct {
	cfg     MicroTuning
	weights map[Handle]MicroWeights
}

// NewMicroAgentEvaluator creates the evaluator with the given tuning.
func NewMicroAgentEvaluator(cfg MicroTuning) *MicroAgentEvaluator {
	return &MicroAgentEvaluator{
		cfg:     cfg,
		weights: make(map[Handle]MicroWeights),
	}
}

// Initialize registers an agent with default drive weights.
func (me *MicroAgentEvaluator) Initialize(h Handle) {
	me.weights[h] = DefaultMicroWeights()
}

// Remove drops an agent's weights.
func (me *MicroAgentEvaluator) Remove(h Handle) {
	delete(me.weights, h)
}

// SetWeights overrides an agent's drive weights.
func (me *MicroAgentEvaluator) SetWeights(h Handle, w MicroWeights) {
	me.weights[h] = w
}

// Weights returns the agent's drive weights, defaulting when unknown.
func (me *MicroAgentEvaluator) Weights(h Handle) MicroWeights {
	if w, ok := me.weights[h]; ok {
		return w
	}
	return DefaultMicroWeights()
}

// Evaluate scores all four sub-drives against the context.
func (me *MicroAgentEvaluator) Evaluate(h Handle, ctx CombatContext) MicroAgentOutputs {
	w := me.Weights(h)
	return MicroAgentOutputs{
		Aggression: me.scoreAggression(ctx, w.Aggression),
		Tactics:    me.scoreTacticsLean(ctx, w.Tactics),
		Perception: me.scorePerceptionWill(ctx, w.Perception),
		Morale:     me.scoreMorale(ctx, w.Morale),
	}
}

// Resolve runs the full evaluation and conflict resolution for one agent.
// Identical context and handle always produce an identical result.
func (me *MicroAgentEvaluator) Resolve(h Handle, ctx CombatContext) ResolvedAction {
	out := me.Evaluate(h, ctx)

	// Morale dominates: a broken agent surrenders or runs before any
	// tactical reasoning applies.
	if out.Morale.WillToFight < out.Morale.SurrenderThreshold {
		return ResolvedAction{Action: ActionSurrender, Intensity: 0, Priority: 5}
	}
	if out.Morale.Panic > me.cfg.PanicRetreat {
		return ResolvedAction{Action: ActionRetreat, Intensity: out.Morale.Panic, Priority: 4}
	}

	// Tactics next: the lean maps directly to an action verb. Aggression
	// only modulates intensity and priority, never the verb.
	action := ActionPush
	switch out.Tactics.Recommended {
	case LeanFlank:
		action = ActionFlank
	case LeanPush:
		action = ActionPush
	case LeanSuppress:
		action = ActionSuppress
	case LeanDefend:
		action = ActionDefend
	case LeanRetreat:
		action = ActionRetreat
	}
	freq := out.Aggression.AttackFrequency
	return ResolvedAction{Action: action, Intensity: freq, Priority: freq * 5}
}

// scoreAggression: base weight − health-deficit penalty + numeric-advantage
// bonus − threat penalty, clamped to [0,1]. Attack frequency is monotonic in
// health fraction when everything else is fixed.
func (me *MicroAgentEvaluator) scoreAggression(ctx CombatContext, weight float64) AggressionOutput {
	a := me.cfg.AggressionBase * weight
	a -= (1 - ctx.HealthFraction) * me.cfg.HealthPenalty
	if ctx.AllyCount > ctx.EnemyCount {
		a += me.cfg.AdvantageBonus
	}
	a -= ctx.ThreatLevel * me.cfg.ThreatPenalty
	a = clamp01(a)

	prio := []TargetPreference{TargetNearest, TargetBiggestThreat, TargetWeakest, TargetIsolated}
	if a > 0.7 {
		// High aggression hunts the soft targets first.
		prio = []TargetPreference{TargetWeakest, TargetIsolated, TargetNearest, TargetBiggestThreat}
	} else if a < 0.3 {
		// Low aggression deals with whatever is most dangerous and close.
		prio = []TargetPreference{TargetBiggestThreat, TargetNearest, TargetWeakest, TargetIsolated}
	}

	return AggressionOutput{
		AttackFrequency: a,
		RiskTolerance:   a * ctx.HealthFraction,
		TargetPriority:  prio,
	}
}

// scoreTacticsLean maps (health, ally advantage, cover) to a recommendation.
func (me *MicroAgentEvaluator) scoreTacticsLean(ctx CombatContext, weight float64) TacticsLeanOutput {
	advantage := ctx.AllyCount > ctx.EnemyCount
	switch {
	case ctx.HealthFraction < 0.3:
		return TacticsLeanOutput{Recommended: LeanRetreat, Movement: MoveCovert, Coordinate: true}
	case ctx.Outnumbered && ctx.HasCover:
		return TacticsLeanOutput{Recommended: LeanDefend, Movement: MoveCautious, Coordinate: true}
	case ctx.Outnumbered:
		return TacticsLeanOutput{Recommended: LeanSuppress, Movement: MoveCautious, Coordinate: true}
	case advantage && ctx.HealthFraction > 0.6:
		if ctx.Distance > 25 {
			return TacticsLeanOutput{Recommended: LeanFlank, Movement: MoveCovert, Coordinate: true}
		}
		return TacticsLeanOutput{Recommended: LeanPush, Movement: MoveAggressive, Coordinate: weight >= 1.0}
	case ctx.HasCover:
		return TacticsLeanOutput{Recommended: LeanSuppress, Movement: MoveCautious, Coordinate: false}
	default:
		return TacticsLeanOutput{Recommended: LeanPush, Movement: MoveCautious, Coordinate: false}
	}
}

// scorePerceptionWill derives search drive from threat level and distance.
func (me *MicroAgentEvaluator) scorePerceptionWill(ctx CombatContext, weight float64) PerceptionWillOutput {
	alert := clamp01(ctx.ThreatLevel * weight)
	search := clamp01(ctx.ThreatLevel * (1 - clamp01(ctx.Distance/100)))
	tracking := clamp01(1 - clamp01(ctx.Distance/100)*0.6 - ctx.ThreatLevel*0.2)
	return PerceptionWillOutput{
		Alertness:        alert,
		SearchIntensity:  search,
		TrackingAccuracy: tracking,
	}
}

// scoreMorale accumulates panic from casualties, duration and being
// outnumbered; will-to-fight erodes with panic and health deficit.
func (me *MicroAgentEvaluator) scoreMorale(ctx CombatContext, weight float64) MoraleDriveOutput {
	panic := float64(ctx.Casualties) * 0.15
	panic += clamp01(ctx.CombatDuration/120) * 0.2
	if ctx.Outnumbered {
		panic += 0.2
	}
	panic = clamp01(panic * weight)

	will := clamp01(1 - panic - (1-ctx.HealthFraction)*0.4)
	threshold := clamp01(me.cfg.SurrenderBase + panic*me.cfg.SurrenderPanicGain)
	return MoraleDriveOutput{
		Panic:              panic,
		WillToFight:        will,
		SurrenderThreshold: threshold,
	}
}
