package ai

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// TacticKind names a squad-facing tactic the rule engine can select.
type TacticKind int

const (
	TacticDirectAssault TacticKind = iota
	TacticFlankLeft
	TacticFlankRight
	TacticPincer
	TacticRetreatRegroup
	TacticAmbush
	TacticHighGround
	TacticDefensiveHold
)

func (t TacticKind) String() string {
	switch t {
	case TacticDirectAssault:
		return "direct_assault"
	case TacticFlankLeft:
		return "flank_left"
	case TacticFlankRight:
		return "flank_right"
	case TacticPincer:
		return "pincer"
	case TacticRetreatRegroup:
		return "retreat_regroup"
	case TacticAmbush:
		return "ambush"
	case TacticHighGround:
		return "high_ground"
	case TacticDefensiveHold:
		return "defensive_hold"
	default:
		return "unknown"
	}
}

// ConditionAttr names an attribute a rule condition can test.
type ConditionAttr int

const (
	AttrHealthFraction ConditionAttr = iota
	AttrMorale
	AttrAllyCount
	AttrEnemyCount
	AttrDistance
	AttrHasCover
	AttrWeather
	AttrTimeOfDay
	AttrTerrain
)

// Comparator compares an attribute against a rule value.
type Comparator int

const (
	CmpLT Comparator = iota
	CmpLE
	CmpGT
	CmpGE
	CmpEQ
	CmpNE
)

// Condition is one (attribute, comparator, value) test.
type Condition struct {
	Attr  ConditionAttr
	Cmp   Comparator
	Value float64
}

// TacticContext is the condition context a rule set evaluates against.
type TacticContext struct {
	HealthFraction float64
	Morale         float64 // 0..100
	AllyCount      int
	EnemyCount     int
	Distance       float64
	HasCover       bool
	Weather        Weather
	TimeOfDay      TimeOfDay
	Terrain        Terrain
}

// WeatherName exposes the weather as a string for expr conditions.
func (tc TacticContext) WeatherName() string { return tc.Weather.String() }

// TimeOfDayName exposes the time of day as a string for expr conditions.
func (tc TacticContext) TimeOfDayName() string { return tc.TimeOfDay.String() }

// TerrainName exposes the terrain as a string for expr conditions.
func (tc TacticContext) TerrainName() string { return tc.Terrain.String() }

func (tc TacticContext) attrValue(a ConditionAttr) float64 {
	switch a {
	case AttrHealthFraction:
		return tc.HealthFraction
	case AttrMorale:
		return tc.Morale
	case AttrAllyCount:
		return float64(tc.AllyCount)
	case AttrEnemyCount:
		return float64(tc.EnemyCount)
	case AttrDistance:
		return tc.Distance
	case AttrHasCover:
		if tc.HasCover {
			return 1
		}
		return 0
	case AttrWeather:
		return float64(tc.Weather)
	case AttrTimeOfDay:
		return float64(tc.TimeOfDay)
	case AttrTerrain:
		return float64(tc.Terrain)
	default:
		return 0
	}
}

func (c Condition) holds(tc TacticContext) bool {
	v := tc.attrValue(c.Attr)
	switch c.Cmp {
	case CmpLT:
		return v < c.Value
	case CmpLE:
		return v <= c.Value
	case CmpGT:
		return v > c.Value
	case CmpGE:
		return v >= c.Value
	case CmpEQ:
		return v == c.Value
	case CmpNE:
		return v != c.Value
	default:
		return false
	}
}

// TacticRule is one entry in the ordered rule table. Conditions are ANDed;
// an optional expr source adds a compiled boolean program on top (grounded
// rule authoring for tooling that submits rules through governance).
type TacticRule struct {
	Name       string
	Conditions []Condition
	ExprSrc    string
	program    *vm.Program
	Tactic     TacticKind
	Priority   int
	Cooldown   float64 // seconds between firings per agent
}

func (r *TacticRule) matches(tc TacticContext) bool {
	for _, c := range r.Conditions {
		if !c.holds(tc) {
			return false
		}
	}
	if r.program != nil {
		out, err := vm.Run(r.program, tc)
		if err != nil {
			slog.Warn("tactic rule condition error", "rule", r.Name, "error", err)
			return false
		}
		ok, isBool := out.(bool)
		return isBool && ok
	}
	return true
}

// TacticDecision is the engine's output for one evaluation.
type TacticDecision struct {
	Tactic         TacticKind
	Rule           string
	Confidence     float64
	HasDestination bool
	Destination    Vec2
}

type cooldownKey struct {
	agent Handle
	rule  string
}

// TacticsEngine evaluates the ordered rule table with per-(agent,rule)
// cooldowns. The pincer side sequence comes from a seeded generator so a
// given seed replays identically.
type TacticsEngine struct {
	rules     []*TacticRule
	cooldowns map[cooldownKey]float64 // ready-at sim seconds
	rng       *rand.Rand
	flankDist float64
	log       *slog.Logger
}

// NewTacticsEngine compiles and orders the default rule table.
func NewTacticsEngine(seed int64, flankOffsetDistance float64, log *slog.Logger) (*TacticsEngine, error) {
	if log == nil {
		log = slog.Default()
	}
	e := &TacticsEngine{
		cooldowns: make(map[cooldownKey]float64),
		rng:       rand.New(rand.NewSource(seed)), // #nosec G404 -- deterministic gameplay sequence
		flankDist: flankOffsetDistance,
		log:       log,
	}
	for _, r := range defaultTacticRules() {
		if err := e.addRule(r); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *TacticsEngine) addRule(r *TacticRule) error {
	if r.ExprSrc != "" {
		prog, err := expr.Compile(r.ExprSrc, expr.Env(TacticContext{}), expr.AsBool())
		if err != nil {
			return fmt.Errorf("compile tactic rule %q: %w", r.Name, err)
		}
		r.program = prog
	}
	e.rules = append(e.rules, r)
	sort.SliceStable(e.rules, func(i, j int) bool {
		return e.rules[i].Priority > e.rules[j].Priority
	})
	return nil
}

// exportCooldowns captures the agent's per-rule ready-at times.
func (e *TacticsEngine) exportCooldowns(agent Handle) map[string]float64 {
	var out map[string]float64
	for k, at := range e.cooldowns {
		if k.agent != agent {
			continue
		}
		if out == nil {
			out = make(map[string]float64)
		}
		out[k.rule] = at
	}
	return out
}

// restoreCooldowns reinstates per-rule ready-at times for an agent.
func (e *TacticsEngine) restoreCooldowns(agent Handle, ready map[string]float64) {
	for rule, at := range ready {
		e.cooldowns[cooldownKey{agent, rule}] = at
	}
}

// resetCooldowns drops every stamped cooldown.
func (e *TacticsEngine) resetCooldowns() {
	e.cooldowns = make(map[cooldownKey]float64)
}

// Rules returns the rule names in evaluation order.
func (e *TacticsEngine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

// AdmitRule submits a candidate rule through governance. Approved rules are
// compiled into the table; rejections are logged and returned as a verdict,
// never raised.
func (e *TacticsEngine) AdmitRule(r *TacticRule, chair *Chair, tier int, confidence float64) Verdict {
	v := chair.SubmitProposal(Proposal{
		Tier:       tier,
		Type:       ProposalAdd,
		Subsystem:  "tactics",
		Confidence: confidence,
		Payload: map[string]any{
			"rule":     r.Name,
			"tactic":   r.Tactic.String(),
			"priority": float64(r.Priority),
		},
	})
	if !v.Approved {
		e.log.Info("tactic rule rejected", "rule", r.Name, "reason", v.Reason)
		return v
	}
	if err := e.addRule(r); err != nil {
		e.log.Warn("approved tactic rule failed to compile", "rule", r.Name, "error", err)
		return Verdict{Approved: false, Reason: err.Error()}
	}
	e.log.Info("tactic rule admitted", "rule", r.Name, "priority", r.Priority)
	return v
}

// Evaluate picks the highest-priority rule off cooldown whose full condition
// set holds, defaulting to direct assault. The chosen rule's cooldown is
// stamped. Confidence falls as more alternative rules also match.
func (e *TacticsEngine) Evaluate(agent Handle, tc TacticContext, now float64) TacticDecision {
	var chosen *TacticRule
	matchCount := 0
	maxPrio := 1
	for _, r := range e.rules {
		if r.Priority > maxPrio {
			maxPrio = r.Priority
		}
		if ready, ok := e.cooldowns[cooldownKey{agent, r.Name}]; ok && now < ready {
			continue
		}
		if !r.matches(tc) {
			continue
		}
		matchCount++
		if chosen == nil {
			chosen = r
		}
	}
	if chosen == nil {
		chosen = e.fallbackRule()
		matchCount = 1
	}
	if chosen.Cooldown > 0 {
		e.cooldowns[cooldownKey{agent, chosen.Name}] = now + chosen.Cooldown
	}

	conf := 0.5 + float64(chosen.Priority)/float64(maxPrio)*0.5
	conf -= 0.07 * float64(matchCount-1)
	return TacticDecision{
		Tactic:     chosen.Tactic,
		Rule:       chosen.Name,
		Confidence: clamp01(conf),
	}
}

func (e *TacticsEngine) fallbackRule() *TacticRule {
	for _, r := range e.rules {
		if r.Name == "direct_assault" {
			return r
		}
	}
	return &TacticRule{Name: "direct_assault", Tactic: TacticDirectAssault}
}

// Destination computes the movement geometry for a tactic. DefensiveHold has
// no destination. Pincer alternates sides through the engine's seeded
// sequence.
func (e *TacticsEngine) Destination(tactic TacticKind, agentPos, targetPos Vec2, targetFacingDeg float64) (Vec2, bool) {
	toTarget := targetPos.Sub(agentPos)
	switch tactic {
	case TacticDirectAssault:
		return targetPos, true
	case TacticFlankLeft:
		return agentPos.Add(rotateDeg(toTarget, -60)), true
	case TacticFlankRight:
		return agentPos.Add(rotateDeg(toTarget, 60)), true
	case TacticPincer:
		side := 60.0
		if e.rng.Intn(2) == 0 {
			side = -60.0
		}
		return agentPos.Add(rotateDeg(toTarget, side)), true
	case TacticRetreatRegroup:
		away := agentPos.Sub(targetPos).Normalized()
		return agentPos.Add(away.Scale(e.flankDist * 2)), true
	case TacticAmbush:
		// Intercept ahead of where the target is heading.
		lead := rotateDeg(Vec2{X: 1}, targetFacingDeg).Scale(e.flankDist)
		return targetPos.Add(lead), true
	case TacticHighGround:
		lateral := rotateDeg(toTarget.Normalized(), 90).Scale(e.flankDist * 1.5)
		return targetPos.Add(lateral), true
	case TacticDefensiveHold:
		return Vec2{}, false
	default:
		return targetPos, true
	}
}

// defaultTacticRules is the built-in ordered rule table.
func defaultTacticRules() []*TacticRule {
	return []*TacticRule{
		{
			Name:     "retreat_regroup",
			Tactic:   TacticRetreatRegroup,
			Priority: 100,
			Conditions: []Condition{
				{Attr: AttrHealthFraction, Cmp: CmpLT, Value: 0.2},
			},
		},
		{
			Name:     "broken_withdraw",
			Tactic:   TacticRetreatRegroup,
			Priority: 90,
			Conditions: []Condition{
				{Attr: AttrMorale, Cmp: CmpLT, Value: 20},
			},
		},
		{
			Name:     "pincer",
			Tactic:   TacticPincer,
			Priority: 80,
			Cooldown: 8,
			Conditions: []Condition{
				{Attr: AttrAllyCount, Cmp: CmpGE, Value: 3},
				{Attr: AttrEnemyCount, Cmp: CmpLE, Value: 1},
				{Attr: AttrDistance, Cmp: CmpLE, Value: 40},
			},
		},
		{
			Name:     "flank_left",
			Tactic:   TacticFlankLeft,
			Priority: 70,
			Cooldown: 6,
			Conditions: []Condition{
				{Attr: AttrAllyCount, Cmp: CmpGE, Value: 2},
				{Attr: AttrDistance, Cmp: CmpGE, Value: 15},
				{Attr: AttrDistance, Cmp: CmpLE, Value: 60},
			},
		},
		{
			Name:     "flank_right",
			Tactic:   TacticFlankRight,
			Priority: 69,
			Cooldown: 6,
			Conditions: []Condition{
				{Attr: AttrAllyCount, Cmp: CmpGE, Value: 2},
				{Attr: AttrDistance, Cmp: CmpGE, Value: 15},
				{Attr: AttrDistance, Cmp: CmpLE, Value: 60},
				{Attr: AttrHasCover, Cmp: CmpEQ, Value: 1},
			},
		},
		{
			Name:     "defensive_hold",
			Tactic:   TacticDefensiveHold,
			Priority: 60,
			Conditions: []Condition{
				{Attr: AttrHasCover, Cmp: CmpEQ, Value: 1},
				{Attr: AttrEnemyCount, Cmp: CmpGT, Value: 2},
			},
		},
		{
			Name:     "night_ambush",
			Tactic:   TacticAmbush,
			Priority: 55,
			Cooldown: 12,
			ExprSrc:  `TimeOfDayName() == "night" && Distance > 20`,
		},
		{
			Name:     "high_ground",
			Tactic:   TacticHighGround,
			Priority: 50,
			Cooldown: 10,
			ExprSrc:  `TerrainName() == "hills" && Distance > 20`,
		},
		{
			Name:     "direct_assault",
			Tactic:   TacticDirectAssault,
			Priority: 0,
		},
	}
}
