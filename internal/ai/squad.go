package ai

import "sort"

// SquadRole is a member's assigned job within the squad.
type SquadRole int

const (
	RoleRifleman SquadRole = iota
	RoleLeader
	RoleFlanker
	RoleSuppressor
	RoleMedic
)

func (r SquadRole) String() string {
	switch r {
	case RoleRifleman:
		return "rifleman"
	case RoleLeader:
		return "leader"
	case RoleFlanker:
		return "flanker"
	case RoleSuppressor:
		return "suppressor"
	case RoleMedic:
		return "medic"
	default:
		return "unknown"
	}
}

// SquadTactic is the squad-level plan.
type SquadTactic int

const (
	SquadAssault SquadTactic = iota
	SquadFlankManeuver
	SquadSurround
	SquadDefend
	SquadRetreat
)

func (t SquadTactic) String() string {
	switch t {
	case SquadAssault:
		return "assault"
	case SquadFlankManeuver:
		return "flank"
	case SquadSurround:
		return "surround"
	case SquadDefend:
		return "defend"
	case SquadRetreat:
		return "retreat"
	default:
		return "unknown"
	}
}

// PlayerActionKind classifies an observed player action.
type PlayerActionKind int

const (
	PlayerRush PlayerActionKind = iota
	PlayerSnipe
	PlayerFlank
	PlayerCamp
	PlayerRetreat
)

func (k PlayerActionKind) String() string {
	switch k {
	case PlayerRush:
		return "rush"
	case PlayerSnipe:
		return "snipe"
	case PlayerFlank:
		return "flank"
	case PlayerCamp:
		return "camp"
	case PlayerRetreat:
		return "retreat"
	default:
		return "unknown"
	}
}

// PlayerAction is one observed player behaviour sample.
type PlayerAction struct {
	Kind    PlayerActionKind
	Success bool    // did the action pay off for the player
	At      float64 // sim seconds
}

// SquadMember is one agent's slot in a squad.
type SquadMember struct {
	Handle Handle
	ID     string
	Role   SquadRole
	Pos    Vec2
	Alive  bool
}

// FlankRoute is a 3-point path: origin → lateral waypoint → target.
type FlankRoute [3]Vec2

// Squad is the coordinator's record for one squad.
type Squad struct {
	ID                  string
	Members             []SquadMember
	Tactic              SquadTactic
	FormationCenter     Vec2
	SkillEstimate       float64 // rolling player-skill read, 0..1
	ReinforcementCalled bool
	Routes              []FlankRoute
	RouteAssignments    map[Handle]int // flanker → route index
}

// AliveMembers returns the living members in member order. Role assignment
// is a pure function of this order.
func (sq *Squad) AliveMembers() []SquadMember {
	var out []SquadMember
	for _, m := range sq.Members {
		if m.Alive {
			out = append(out, m)
		}
	}
	return out
}

// AliveCount returns the number of living members.
func (sq *Squad) AliveCount() int {
	n := 0
	for _, m := range sq.Members {
		if m.Alive {
			n++
		}
	}
	return n
}

// FireCheck is the result of a friendly-fire test.
type FireCheck struct {
	Clear   bool
	Blocker string // member id inside the line-of-fire tolerance
}

// SquadPlan is the output of tactic planning.
type SquadPlan struct {
	Tactic SquadTactic
	Routes []FlankRoute
}

// SquadCoordinator owns squad state, role assignment, tactic planning and
// player-behaviour prediction.
type SquadCoordinator struct {
	cfg      SquadTuning
	squads   map[string]*Squad
	byMember map[Handle]string
	actions  []PlayerAction // bounded recent-action window
	skill    float64
}

// NewSquadCoordinator creates the coordinator.
func NewSquadCoordinator(cfg SquadTuning) *SquadCoordinator {
	return &SquadCoordinator{
		cfg:      cfg,
		squads:   make(map[string]*Squad),
		byMember: make(map[Handle]string),
		skill:    0.3,
	}
}

// Form creates a squad from the given members. The first member is the
// leader; further roles unlock as the squad grows.
func (sc *SquadCoordinator) Form(id string, members []SquadMember) *Squad {
	sq := &Squad{
		ID:               id,
		Members:          members,
		Tactic:           SquadAssault,
		SkillEstimate:    sc.skill,
		RouteAssignments: make(map[Handle]int),
	}
	for i := range sq.Members {
		sq.Members[i].Alive = true
		sc.byMember[sq.Members[i].Handle] = id
	}
	sc.assignRoles(sq)
	sc.squads[id] = sq
	return sq
}

// Disband removes a squad.
func (sc *SquadCoordinator) Disband(id string) {
	sq, ok := sc.squads[id]
	if !ok {
		return
	}
	for _, m := range sq.Members {
		delete(sc.byMember, m.Handle)
	}
	delete(sc.squads, id)
}

// Squad returns the squad record, or nil.
func (sc *SquadCoordinator) Squad(id string) *Squad {
	return sc.squads[id]
}

// SquadOf resolves a member handle to its squad id.
func (sc *SquadCoordinator) SquadOf(h Handle) (string, bool) {
	id, ok := sc.byMember[h]
	return id, ok
}

// assignRoles applies the deterministic positional role table over the
// alive members in member order:
//
//	index 0           leader
//	index 1 (n >= 3)  flanker
//	index 2 (n >= 4)  suppressor
//	index 3 (n >= 5)  medic
//	index 4 (n >= 6)  second flanker
//	rest              rifleman
func (sc *SquadCoordinator) assignRoles(sq *Squad) {
	alive := 0
	for _, m := range sq.Members {
		if m.Alive {
			alive++
		}
	}
	idx := 0
	for i := range sq.Members {
		if !sq.Members[i].Alive {
			sq.Members[i].Role = RoleRifleman
			continue
		}
		role := RoleRifleman
		switch {
		case idx == 0:
			role = RoleLeader
		case idx == 1 && alive >= 3:
			role = RoleFlanker
		case idx == 2 && alive >= 4:
			role = RoleSuppressor
		case idx == 3 && alive >= 5:
			role = RoleMedic
		case idx == 4 && alive >= 6:
			role = RoleFlanker
		}
		sq.Members[i].Role = role
		idx++
	}
}

// SyncPositions copies each member's current position into the squad and
// recomputes the formation center. Must run before tactic planning in the
// same tick.
func (sc *SquadCoordinator) SyncPositions(id string, lookup func(Handle) (Vec2, bool)) {
	sq, ok := sc.squads[id]
	if !ok {
		return
	}
	var sum Vec2
	n := 0
	for i := range sq.Members {
		if pos, ok := lookup(sq.Members[i].Handle); ok {
			sq.Members[i].Pos = pos
		}
		if sq.Members[i].Alive {
			sum = sum.Add(sq.Members[i].Pos)
			n++
		}
	}
	if n > 0 {
		sq.FormationCenter = sum.Scale(1 / float64(n))
	}
}

// NotifyCasualty marks a member dead, reassigns roles, and latches the
// reinforcement call once the alive fraction drops to the threshold.
func (sc *SquadCoordinator) NotifyCasualty(h Handle) {
	id, ok := sc.byMember[h]
	if !ok {
		return
	}
	sq := sc.squads[id]
	for i := range sq.Members {
		if sq.Members[i].Handle == h {
			sq.Members[i].Alive = false
		}
	}
	sc.assignRoles(sq)
	delete(sq.RouteAssignments, h)

	if len(sq.Members) > 0 && !sq.ReinforcementCalled {
		frac := float64(sq.AliveCount()) / float64(len(sq.Members))
		if frac <= sc.cfg.ReinforcementFraction {
			sq.ReinforcementCalled = true
		}
	}
}

// PlanTactic selects the squad tactic from alive strength and the rolling
// player-skill estimate, then rebuilds flanking routes when the plan calls
// for maneuver.
func (sc *SquadCoordinator) PlanTactic(id string, targetPos Vec2) SquadPlan {
	sq, ok := sc.squads[id]
	if !ok {
		return SquadPlan{Tactic: SquadRetreat}
	}
	sq.SkillEstimate = sc.skill

	alive := sq.AliveCount()
	switch {
	case alive <= 2:
		sq.Tactic = SquadRetreat
	case alive >= 5 && sq.SkillEstimate >= 0.6:
		sq.Tactic = SquadSurround
	case alive >= 3 && sq.SkillEstimate >= 0.35:
		sq.Tactic = SquadFlankManeuver
	default:
		sq.Tactic = SquadAssault
	}

	sq.Routes = nil
	for h := range sq.RouteAssignments {
		delete(sq.RouteAssignments, h)
	}
	if sq.Tactic == SquadFlankManeuver || sq.Tactic == SquadSurround {
		sq.Routes = sc.FlankingRoutes(sq.FormationCenter, targetPos)
		sc.assignRoutes(sq)
	}
	return SquadPlan{Tactic: sq.Tactic, Routes: sq.Routes}
}

// FlankingRoutes builds up to three 3-point paths from origin to target with
// the lateral waypoint offset −60°, 0° and +60° from the direct line.
func (sc *SquadCoordinator) FlankingRoutes(origin, target Vec2) []FlankRoute {
	direct := target.Sub(origin)
	half := direct.Scale(0.5)
	routes := make([]FlankRoute, 0, 3)
	for _, angle := range []float64{-60, 0, 60} {
		wp := origin.Add(rotateDeg(half, angle))
		routes = append(routes, FlankRoute{origin, wp, target})
	}
	return routes
}

// assignRoutes hands routes to alive flankers in member order.
func (sc *SquadCoordinator) assignRoutes(sq *Squad) {
	next := 0
	for _, m := range sq.Members {
		if !m.Alive || m.Role != RoleFlanker || next >= len(sq.Routes) {
			continue
		}
		sq.RouteAssignments[m.Handle] = next
		next++
	}
}

// CheckFriendlyFire rejects a firing solution whose line of fire passes
// within the tolerance of any living member other than the shooter.
func (sc *SquadCoordinator) CheckFriendlyFire(id string, shooter Handle, from, to Vec2) FireCheck {
	sq, ok := sc.squads[id]
	if !ok {
		return FireCheck{Clear: true}
	}
	for _, m := range sq.Members {
		if !m.Alive || m.Handle == shooter {
			continue
		}
		if pointToSegmentDist(m.Pos, from, to) <= sc.cfg.FriendlyFireTolerance {
			return FireCheck{Clear: false, Blocker: m.ID}
		}
	}
	return FireCheck{Clear: true}
}

// RecordPlayerAction feeds one observed player action into the bounded
// window and refreshes the rolling skill estimate.
func (sc *SquadCoordinator) RecordPlayerAction(a PlayerAction) {
	sc.actions = append(sc.actions, a)
	if len(sc.actions) > sc.cfg.PredictionWindow {
		sc.actions = sc.actions[len(sc.actions)-sc.cfg.PredictionWindow:]
	}
	sc.skill = sc.skill*0.7 + sc.estimateSkill()*0.3
}

// SkillEstimate returns the current rolling player-skill estimate.
func (sc *SquadCoordinator) SkillEstimate() float64 { return sc.skill }

// estimateSkill blends success rate, action variety and inferred reaction
// speed from timestamp deltas.
func (sc *SquadCoordinator) estimateSkill() float64 {
	if len(sc.actions) == 0 {
		return 0.3
	}
	successes := 0
	kinds := map[PlayerActionKind]bool{}
	for _, a := range sc.actions {
		if a.Success {
			successes++
		}
		kinds[a.Kind] = true
	}
	successRate := float64(successes) / float64(len(sc.actions))
	variety := float64(len(kinds)) / 5.0

	reaction := 0.5
	if len(sc.actions) >= 2 {
		var total float64
		for i := 1; i < len(sc.actions); i++ {
			total += sc.actions[i].At - sc.actions[i-1].At
		}
		mean := total / float64(len(sc.actions)-1)
		// Sub-second decision cadence reads as expert play.
		reaction = clamp01(1 - mean/5.0)
	}
	return clamp01(successRate*0.5 + variety*0.25 + reaction*0.25)
}

// Prediction is the majority-vote read on the player's next move.
type Prediction struct {
	Kind       PlayerActionKind
	Confidence float64
}

// PredictPlayer runs a majority vote over the recent-action window. Below
// the confidence floor no prediction is returned.
func (sc *SquadCoordinator) PredictPlayer() (Prediction, bool) {
	if len(sc.actions) == 0 {
		return Prediction{}, false
	}
	votes := map[PlayerActionKind]int{}
	for _, a := range sc.actions {
		votes[a.Kind]++
	}
	kinds := make([]PlayerActionKind, 0, len(votes))
	for k := range votes {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if votes[kinds[i]] != votes[kinds[j]] {
			return votes[kinds[i]] > votes[kinds[j]]
		}
		return kinds[i] < kinds[j]
	})
	best := kinds[0]
	conf := float64(votes[best]) / float64(len(sc.actions))
	if conf < sc.cfg.PredictionFloor {
		return Prediction{}, false
	}
	return Prediction{Kind: best, Confidence: conf}, true
}

// playerCounters is the fixed action → counter-tactic table.
var playerCounters = map[PlayerActionKind]SquadTactic{
	PlayerRush:    SquadDefend,
	PlayerSnipe:   SquadFlankManeuver,
	PlayerFlank:   SquadAssault,
	PlayerCamp:    SquadSurround,
	PlayerRetreat: SquadAssault,
}

// ApplyCounter adjusts the squad's tactic against a confident prediction.
// Countering a rush additionally converts flankers to suppressors so the
// squad holds a base of fire.
func (sc *SquadCoordinator) ApplyCounter(id string) (SquadTactic, bool) {
	sq, ok := sc.squads[id]
	if !ok {
		return SquadRetreat, false
	}
	pred, ok := sc.PredictPlayer()
	if !ok {
		return sq.Tactic, false
	}
	counter := playerCounters[pred.Kind]
	sq.Tactic = counter
	if pred.Kind == PlayerRush {
		for i := range sq.Members {
			if sq.Members[i].Alive && sq.Members[i].Role == RoleFlanker {
				sq.Members[i].Role = RoleSuppressor
				delete(sq.RouteAssignments, sq.Members[i].Handle)
			}
		}
	}
	return counter, true
}

// MemberHandles returns the handles of living members.
func (sq *Squad) MemberHandles() []Handle {
	out := make([]Handle, 0, len(sq.Members))
	for _, m := range sq.Members {
		if m.Alive {
			out = append(out, m.Handle)
		}
	}
	return out
}

// Spread returns the mean member distance from the formation center.
func (sq *Squad) Spread() float64 {
	alive := sq.AliveMembers()
	if len(alive) == 0 {
		return 0
	}
	var total float64
	for _, m := range alive {
		total += m.Pos.Dist(sq.FormationCenter)
	}
	return total / float64(len(alive))
}
