package ai

import (
	"math"

	"github.com/google/uuid"
)

// MemoryEventKind classifies an episodic social memory.
type MemoryEventKind int

const (
	MemWasSaved MemoryEventKind = iota
	MemWasHealed
	MemGiftReceived
	MemFoughtTogether
	MemConversation
	MemWitnessedDeath
	MemWasAttacked
	MemBetrayed
)

func (k MemoryEventKind) String() string {
	switch k {
	case MemWasSaved:
		return "was_saved"
	case MemWasHealed:
		return "was_healed"
	case MemGiftReceived:
		return "gift_received"
	case MemFoughtTogether:
		return "fought_together"
	case MemConversation:
		return "conversation"
	case MemWitnessedDeath:
		return "witnessed_death"
	case MemWasAttacked:
		return "was_attacked"
	case MemBetrayed:
		return "betrayed"
	default:
		return "unknown"
	}
}

// trustBaseImpact is the type-specific base trust delta per event kind.
var trustBaseImpact = map[MemoryEventKind]float64{
	MemWasSaved:       12,
	MemWasHealed:      8,
	MemGiftReceived:   6,
	MemFoughtTogether: 5,
	MemConversation:   2,
	MemWitnessedDeath: -3,
	MemWasAttacked:    -10,
	MemBetrayed:       -15,
}

// MemoryEvent is one episodic record in an agent's ledger.
type MemoryEvent struct {
	ID              string
	Kind            MemoryEventKind
	Timestamp       float64 // sim seconds
	Actor           string  // agent or player id the event concerns
	Importance      float64 // 0..1
	EmotionalImpact float64 // -1..1
}

// Disposition is the categorical social stance toward another actor. It is
// a pure function of (trust, familiarity).
type Disposition int

const (
	DispositionStranger Disposition = iota
	DispositionAcquaintance
	DispositionFriend
	DispositionCloseFriend
	DispositionRival
	DispositionEnemy
	DispositionNemesis
)

func (d Disposition) String() string {
	switch d {
	case DispositionStranger:
		return "stranger"
	case DispositionAcquaintance:
		return "acquaintance"
	case DispositionFriend:
		return "friend"
	case DispositionCloseFriend:
		return "close_friend"
	case DispositionRival:
		return "rival"
	case DispositionEnemy:
		return "enemy"
	case DispositionNemesis:
		return "nemesis"
	default:
		return "unknown"
	}
}

// DeriveDisposition applies the fixed precedence order. Hostility wins over
// familiarity; familiarity gates the friendly tiers.
func DeriveDisposition(trust, familiarity float64) Disposition {
	switch {
	case trust < -60:
		return DispositionNemesis
	case trust < -30:
		return DispositionEnemy
	case trust < -10:
		return DispositionRival
	case familiarity < 20:
		return DispositionStranger
	case trust < 20:
		return DispositionAcquaintance
	case trust < 50:
		return DispositionFriend
	default:
		return DispositionCloseFriend
	}
}

// Relationship is a directed social link from an owner toward another actor.
type Relationship struct {
	Trust           float64 // -100..100
	Familiarity     float64 // 0..100
	Disposition     Disposition
	LastInteraction float64  // sim seconds
	MemoryIDs       []string // bounded backlog of contributing events
}

// Personality traits scale how events land on a relationship.
type Personality struct {
	Gratitude   float64 // 0..1, scales positive impacts
	Forgiveness float64 // 0..1, dampens negative impacts and speeds grudge decay
}

// DefaultPersonality is a neutral trait set.
func DefaultPersonality() Personality {
	return Personality{Gratitude: 0.5, Forgiveness: 0.5}
}

// LocationMemory tracks visits and perceived danger of a named place.
type LocationMemory struct {
	Visits int
	Danger float64 // 0..1, 80/20 smoothed
}

type agentLedger struct {
	personality Personality
	shortTerm   []MemoryEvent
	longTerm    []MemoryEvent
	relations   map[string]*Relationship
	locations   map[string]*LocationMemory
}

// MemoryLedger is the social memory service. It is keyed by agent id rather
// than handle: it outlives combat ticks and is queried by id from dialogue
// and scenario tooling.
type MemoryLedger struct {
	cfg    MemoryTuning
	agents map[string]*agentLedger
	now    float64
}

// NewMemoryLedger creates the service.
func NewMemoryLedger(cfg MemoryTuning) *MemoryLedger {
	return &MemoryLedger{cfg: cfg, agents: make(map[string]*agentLedger)}
}

// Register creates a ledger for an agent with the given personality.
func (ml *MemoryLedger) Register(id string, p Personality) {
	ml.agents[id] = &agentLedger{
		personality: p,
		relations:   make(map[string]*Relationship),
		locations:   make(map[string]*LocationMemory),
	}
}

// Remove drops an agent's ledger.
func (ml *MemoryLedger) Remove(id string) {
	delete(ml.agents, id)
}

// Advance moves the ledger clock and expires short-term memories that fell
// out of the time window.
func (ml *MemoryLedger) Advance(dt float64) {
	ml.now += dt
	cutoff := ml.now - ml.cfg.ShortTermWindowSec
	for _, led := range ml.agents {
		kept := led.shortTerm[:0]
		for _, ev := range led.shortTerm {
			if ev.Timestamp >= cutoff {
				kept = append(kept, ev)
			}
		}
		led.shortTerm = kept
	}
}

// RecordEvent stores an episodic event on owner's ledger and folds it into
// the owner→actor relationship. Unknown owners are a no-op returning a zero
// event; the tick loop never fails on a stale id.
func (ml *MemoryLedger) RecordEvent(owner, actor string, kind MemoryEventKind, importance, emotionalImpact float64) MemoryEvent {
	led, ok := ml.agents[owner]
	if !ok {
		return MemoryEvent{}
	}
	ev := MemoryEvent{
		ID:              uuid.NewString(),
		Kind:            kind,
		Timestamp:       ml.now,
		Actor:           actor,
		Importance:      clamp01(importance),
		EmotionalImpact: clamp(emotionalImpact, -1, 1),
	}

	led.shortTerm = append(led.shortTerm, ev)
	if len(led.shortTerm) > ml.cfg.ShortTermCap {
		led.shortTerm = led.shortTerm[len(led.shortTerm)-ml.cfg.ShortTermCap:]
	}
	if ev.Importance >= ml.cfg.PromoteImportance {
		ml.promote(led, ev)
	}

	ml.applyToRelationship(led, actor, ev)
	return ev
}

// promote moves an event into the long-term store, evicting the lowest
// importance × recency entry when the store is full.
func (ml *MemoryLedger) promote(led *agentLedger, ev MemoryEvent) {
	if len(led.longTerm) < ml.cfg.LongTermCap {
		led.longTerm = append(led.longTerm, ev)
		return
	}
	worst := -1
	worstScore := math.MaxFloat64
	for i, old := range led.longTerm {
		age := ml.now - old.Timestamp
		recency := 1.0 / (1.0 + age/3600)
		score := old.Importance * recency
		if score < worstScore {
			worstScore = score
			worst = i
		}
	}
	if worst >= 0 {
		led.longTerm[worst] = ev
	}
}

func (ml *MemoryLedger) applyToRelationship(led *agentLedger, actor string, ev MemoryEvent) {
	rel, ok := led.relations[actor]
	if !ok {
		rel = &Relationship{Disposition: DispositionStranger}
		led.relations[actor] = rel
	}

	base := trustBaseImpact[ev.Kind]
	var mult float64
	if base >= 0 {
		mult = 0.5 + led.personality.Gratitude
	} else {
		mult = 1.5 - led.personality.Forgiveness
	}
	delta := base * mult * (1 + math.Abs(ev.EmotionalImpact))

	rel.Trust = clamp(rel.Trust+delta, -100, 100)
	rel.Familiarity = math.Min(100, rel.Familiarity+ml.cfg.FamiliarityStep)
	rel.Disposition = DeriveDisposition(rel.Trust, rel.Familiarity)
	rel.LastInteraction = ml.now

	rel.MemoryIDs = append(rel.MemoryIDs, ev.ID)
	if len(rel.MemoryIDs) > ml.cfg.RelationBacklogCap {
		rel.MemoryIDs = rel.MemoryIDs[len(rel.MemoryIDs)-ml.cfg.RelationBacklogCap:]
	}
}

// RelationshipWith returns a value copy of owner's relationship toward
// actor. Unknown pairs read as an untouched stranger.
func (ml *MemoryLedger) RelationshipWith(owner, actor string) Relationship {
	if led, ok := ml.agents[owner]; ok {
		if rel, ok := led.relations[actor]; ok {
			return *rel
		}
	}
	return Relationship{Disposition: DispositionStranger}
}

// DecayRelationships relaxes every relationship toward neutral for the
// elapsed hours. Positive trust decays at the fixed rate; grudges decay at
// a rate scaled by the owner's forgiveness.
func (ml *MemoryLedger) DecayRelationships(elapsedHours float64) {
	if elapsedHours <= 0 {
		return
	}
	for _, led := range ml.agents {
		for _, rel := range led.relations {
			switch {
			case rel.Trust > 0:
				rel.Trust = math.Max(0, rel.Trust-ml.cfg.TrustDecayPerHour*elapsedHours)
			case rel.Trust < 0:
				rate := ml.cfg.TrustDecayPerHour * (0.5 + led.personality.Forgiveness)
				rel.Trust = math.Min(0, rel.Trust+rate*elapsedHours)
			}
			rel.Disposition = DeriveDisposition(rel.Trust, rel.Familiarity)
		}
	}
}

// RecordLocation bumps a location's visit count and folds the new danger
// sample in with 80/20 exponential smoothing.
func (ml *MemoryLedger) RecordLocation(owner, location string, dangerSample float64) {
	led, ok := ml.agents[owner]
	if !ok {
		return
	}
	loc, ok := led.locations[location]
	if !ok {
		loc = &LocationMemory{}
		led.locations[location] = loc
	}
	loc.Visits++
	loc.Danger = loc.Danger*0.8 + clamp01(dangerSample)*0.2
}

// LocationFor returns a value copy of a remembered location.
func (ml *MemoryLedger) LocationFor(owner, location string) LocationMemory {
	if led, ok := ml.agents[owner]; ok {
		if loc, ok := led.locations[location]; ok {
			return *loc
		}
	}
	return LocationMemory{}
}

// ShortTerm returns a copy of the owner's short-term buffer.
func (ml *MemoryLedger) ShortTerm(owner string) []MemoryEvent {
	if led, ok := ml.agents[owner]; ok {
		out := make([]MemoryEvent, len(led.shortTerm))
		copy(out, led.shortTerm)
		return out
	}
	return nil
}

// LongTerm returns a copy of the owner's long-term store.
func (ml *MemoryLedger) LongTerm(owner string) []MemoryEvent {
	if led, ok := ml.agents[owner]; ok {
		out := make([]MemoryEvent, len(led.longTerm))
		copy(out, led.longTerm)
		return out
	}
	return nil
}
