package ai

// Handle is a stable index into the agent roster. Handles stay valid until
// the agent is removed; a removed slot may be reused for a later agent.
type Handle int

// NoHandle marks the absence of an agent reference.
const NoHandle Handle = -1

// AgentState is the high-level behaviour state an agent is in.
type AgentState int

const (
	StateIdle AgentState = iota
	StateAware
	StateSearching
	StateEngage
	StateFlank
	StateRetreat
	StateSurrender
)

func (s AgentState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAware:
		return "aware"
	case StateSearching:
		return "searching"
	case StateEngage:
		return "engage"
	case StateFlank:
		return "flank"
	case StateRetreat:
		return "retreat"
	case StateSurrender:
		return "surrender"
	default:
		return "unknown"
	}
}

// Agent is one adversarial NPC tracked by the decision stack.
type Agent struct {
	ID        string
	Pos       Vec2
	Facing    float64 // degrees, world bearing
	Health    float64
	MaxHealth float64
	Faction   string
	SquadID   string // empty = not squaded
	State     AgentState
	Alive     bool
}

// Roster is an arena of agents keyed by stable handle, with an id → handle
// side table. Per-tick iteration walks the dense slice; string ids only
// appear at the external API boundary.
type Roster struct {
	agents []Agent
	live   []bool
	byID   map[string]Handle
	free   []Handle
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{byID: make(map[string]Handle)}
}

// Add registers an agent and returns its handle. Re-registering an existing
// id replaces the old record in place.
func (r *Roster) Add(a Agent) Handle {
	if h, ok := r.byID[a.ID]; ok {
		r.agents[h] = a
		r.live[h] = true
		return h
	}
	var h Handle
	if n := len(r.free); n > 0 {
		h = r.free[n-1]
		r.free = r.free[:n-1]
		r.agents[h] = a
		r.live[h] = true
	} else {
		h = Handle(len(r.agents))
		r.agents = append(r.agents, a)
		r.live = append(r.live, true)
	}
	r.byID[a.ID] = h
	return h
}

// Remove frees the agent's slot. Unknown handles are a no-op.
func (r *Roster) Remove(h Handle) {
	if !r.valid(h) {
		return
	}
	delete(r.byID, r.agents[h].ID)
	r.live[h] = false
	r.agents[h] = Agent{}
	r.free = append(r.free, h)
}

// Lookup resolves an agent id to its handle.
func (r *Roster) Lookup(id string) (Handle, bool) {
	h, ok := r.byID[id]
	return h, ok
}

// Get returns a pointer to the agent record for in-place mutation.
// Returns nil for stale or unknown handles.
func (r *Roster) Get(h Handle) *Agent {
	if !r.valid(h) {
		return nil
	}
	return &r.agents[h]
}

// Len returns the number of live agents.
func (r *Roster) Len() int {
	return len(r.byID)
}

// ForEach visits every live agent in handle order.
func (r *Roster) ForEach(fn func(h Handle, a *Agent)) {
	for i := range r.agents {
		if r.live[i] {
			fn(Handle(i), &r.agents[i])
		}
	}
}

func (r *Roster) valid(h Handle) bool {
	return h >= 0 && int(h) < len(r.agents) && r.live[h]
}
