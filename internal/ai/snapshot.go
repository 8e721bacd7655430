package ai

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

const snapshotVersion = 2

// snapshotAgent bundles every per-service record for one agent.
type snapshotAgent struct {
	Agent       Agent
	Morale      MoraleState
	Perception  PerceptionState
	Suppression suppressionRecord
	Micro       MicroWeights
	Cooldowns   map[string]float64 // tactic rule -> ready-at sim seconds
	Personality Personality
	Relations   map[string]Relationship
	ShortTerm   []MemoryEvent
	LongTerm    []MemoryEvent
	Locations   map[string]LocationMemory
	Engaged     bool
	EngagedAt   float64
	HasCover    bool
}

type snapshotSquad struct {
	ID                  string
	MemberIDs           []string
	DeadMemberIDs       []string
	Tactic              SquadTactic
	SkillEstimate       float64
	ReinforcementCalled bool
}

// snapshotBlob is the full persisted image of the decision stack.
type snapshotBlob struct {
	Version       int
	Tick          uint64
	Now           float64
	World         WorldContext
	Target        Vec2
	TargetDeg     float64
	HasTarget     bool
	PlayerSkill   float64
	PlayerActions []PlayerAction
	Agents        []snapshotAgent
	Squads        []snapshotSquad
}

// Snapshot serializes the director's full state as a zstd-compressed gob
// blob.
func (d *Director) Snapshot() ([]byte, error) {
	blob := snapshotBlob{
		Version:       snapshotVersion,
		Tick:          d.chair.Tick(),
		Now:           d.now,
		World:         d.world,
		Target:        d.target,
		TargetDeg:     d.targetDeg,
		HasTarget:     d.hasTarget,
		PlayerSkill:   d.squads.skill,
		PlayerActions: append([]PlayerAction(nil), d.squads.actions...),
	}

	d.roster.ForEach(func(h Handle, a *Agent) {
		sa := snapshotAgent{
			Agent:       *a,
			Morale:      d.morale.State(h),
			Perception:  d.perception.State(h),
			Suppression: d.suppression.exportState(h),
			Micro:       d.micro.Weights(h),
			Cooldowns:   d.tactics.exportCooldowns(h),
			HasCover:    d.hasCover[h],
		}
		if at, ok := d.engagedAt[h]; ok {
			sa.Engaged = true
			sa.EngagedAt = at
		}
		if led, ok := d.memory.agents[a.ID]; ok {
			sa.Personality = led.personality
			sa.Relations = make(map[string]Relationship, len(led.relations))
			for actor, rel := range led.relations {
				sa.Relations[actor] = *rel
			}
			sa.Locations = make(map[string]LocationMemory, len(led.locations))
			for name, loc := range led.locations {
				sa.Locations[name] = *loc
			}
			sa.ShortTerm = append([]MemoryEvent(nil), led.shortTerm...)
			sa.LongTerm = append([]MemoryEvent(nil), led.longTerm...)
		}
		blob.Agents = append(blob.Agents, sa)
	})

	for id, sq := range d.squads.squads {
		ss := snapshotSquad{
			ID:                  id,
			Tactic:              sq.Tactic,
			SkillEstimate:       sq.SkillEstimate,
			ReinforcementCalled: sq.ReinforcementCalled,
		}
		for _, m := range sq.Members {
			if m.Alive {
				ss.MemberIDs = append(ss.MemberIDs, m.ID)
			} else {
				ss.DeadMemberIDs = append(ss.DeadMemberIDs, m.ID)
			}
		}
		blob.Squads = append(blob.Squads, ss)
	}

	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("snapshot compressor: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(&blob); err != nil {
		zw.Close()
		return nil, fmt.Errorf("snapshot encode: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("snapshot flush: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeSnapshot decompresses, decodes and validates a blob without touching
// any live state.
func decodeSnapshot(data []byte) (*snapshotBlob, error) {
	zr, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("snapshot decompressor: %w", err)
	}
	defer zr.Close()

	var blob snapshotBlob
	if err := gob.NewDecoder(zr).Decode(&blob); err != nil {
		return nil, fmt.Errorf("snapshot decode: %w", err)
	}
	if blob.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d not supported", blob.Version)
	}
	seen := make(map[string]bool, len(blob.Agents))
	for _, sa := range blob.Agents {
		if sa.Agent.ID == "" {
			return nil, fmt.Errorf("snapshot agent with empty id")
		}
		if seen[sa.Agent.ID] {
			return nil, fmt.Errorf("snapshot duplicate agent id %s", sa.Agent.ID)
		}
		seen[sa.Agent.ID] = true
		if sa.Agent.MaxHealth <= 0 || sa.Agent.Health > sa.Agent.MaxHealth {
			return nil, fmt.Errorf("snapshot agent %s has invalid health", sa.Agent.ID)
		}
		if sa.Morale.Current < 0 || sa.Morale.Current > 100 || sa.Morale.Fear < 0 || sa.Morale.Fear > 100 {
			return nil, fmt.Errorf("snapshot agent %s has out-of-range morale", sa.Agent.ID)
		}
		if sa.Perception.AlertLevel < 0 || sa.Perception.AlertLevel > 1 {
			return nil, fmt.Errorf("snapshot agent %s has out-of-range alert level", sa.Agent.ID)
		}
		if sa.Suppression.Intensity < 0 || sa.Suppression.Intensity > 1 ||
			sa.Suppression.Accumulated < 0 || sa.Suppression.Accumulated > 1 {
			return nil, fmt.Errorf("snapshot agent %s has out-of-range suppression", sa.Agent.ID)
		}
		for actor, rel := range sa.Relations {
			if rel.Trust < -100 || rel.Trust > 100 || rel.Familiarity < 0 || rel.Familiarity > 100 {
				return nil, fmt.Errorf("snapshot agent %s relation %s out of range", sa.Agent.ID, actor)
			}
		}
	}
	for _, sq := range blob.Squads {
		if sq.SkillEstimate < 0 || sq.SkillEstimate > 1 {
			return nil, fmt.Errorf("snapshot squad %s has out-of-range skill estimate", sq.ID)
		}
		for _, id := range sq.MemberIDs {
			if !seen[id] {
				return nil, fmt.Errorf("snapshot squad %s references unknown agent %s", sq.ID, id)
			}
		}
	}
	return &blob, nil
}

// RestoreSnapshot replaces the director's state with a persisted image. The
// blob is fully decoded and validated before anything mutates; a malformed
// blob is rejected with no partial apply.
func (d *Director) RestoreSnapshot(data []byte) error {
	blob, err := decodeSnapshot(data)
	if err != nil {
		return err
	}

	d.roster = NewRoster()
	d.perception = NewPerceptionService(d.tuning.Perception)
	d.suppression = NewSuppressionService(d.tuning.Suppression, d.tuning.Sim.TickRateHz)
	d.micro = NewMicroAgentEvaluator(d.tuning.Micro)
	d.morale = NewMoraleService(d.tuning.Morale, d.tuning.Sim.Seed)
	d.memory = NewMemoryLedger(d.tuning.Memory)
	d.squads = NewSquadCoordinator(d.tuning.Squad)
	d.tactics.resetCooldowns()
	d.engagedAt = make(map[Handle]float64)
	d.hasCover = make(map[Handle]bool)

	d.world = blob.World
	d.now = blob.Now
	d.chair.tick = blob.Tick
	d.memory.now = blob.Now
	d.perception.now = blob.Now
	d.target = blob.Target
	d.targetDeg = blob.TargetDeg
	d.hasTarget = blob.HasTarget
	d.squads.skill = blob.PlayerSkill
	d.squads.actions = append([]PlayerAction(nil), blob.PlayerActions...)

	for _, sa := range blob.Agents {
		h := d.RegisterAgent(sa.Agent, sa.Personality, sa.Morale.Base)
		st := d.morale.states[h]
		*st = sa.Morale
		d.perception.restoreState(h, sa.Perception)
		d.suppression.restoreState(h, sa.Suppression)
		d.micro.SetWeights(h, sa.Micro)
		d.tactics.restoreCooldowns(h, sa.Cooldowns)
		if sa.Engaged {
			d.engagedAt[h] = sa.EngagedAt
		}
		d.hasCover[h] = sa.HasCover

		led := d.memory.agents[sa.Agent.ID]
		for actor, rel := range sa.Relations {
			r := rel
			led.relations[actor] = &r
		}
		for name, loc := range sa.Locations {
			l := loc
			led.locations[name] = &l
		}
		led.shortTerm = append([]MemoryEvent(nil), sa.ShortTerm...)
		led.longTerm = append([]MemoryEvent(nil), sa.LongTerm...)
	}

	for _, ss := range blob.Squads {
		if err := d.FormSquad(ss.ID, ss.MemberIDs); err != nil {
			return fmt.Errorf("snapshot restore: %w", err)
		}
		sq := d.squads.Squad(ss.ID)
		sq.Tactic = ss.Tactic
		sq.SkillEstimate = ss.SkillEstimate
		sq.ReinforcementCalled = ss.ReinforcementCalled
		// Dead members stay on the record so casualty counts survive.
		for _, id := range ss.DeadMemberIDs {
			sq.Members = append(sq.Members, SquadMember{Handle: NoHandle, ID: id, Alive: false})
		}
	}
	d.log.Info("snapshot restored", "tick", blob.Tick, "agents", len(blob.Agents), "squads", len(blob.Squads))
	return nil
}
