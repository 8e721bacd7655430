package ai

import (
	"math"
	"sort"
)

// SuppressionLevel is the stepped debuff tier an agent is under.
type SuppressionLevel int

const (
	SuppressNone SuppressionLevel = iota
	SuppressLight
	SuppressMedium
	SuppressHeavy
	SuppressPinned
)

func (l SuppressionLevel) String() string {
	switch l {
	case SuppressNone:
		return "none"
	case SuppressLight:
		return "light"
	case SuppressMedium:
		return "medium"
	case SuppressHeavy:
		return "heavy"
	case SuppressPinned:
		return "pinned"
	default:
		return "unknown"
	}
}

// SuppressionEffects is the fixed effect bundle a level carries.
type SuppressionEffects struct {
	AccuracyPenalty float64
	MovementPenalty float64
	VisionPenalty   float64
	CanAim          bool
	CanSprint       bool
	CanVault        bool
}

var suppressionEffects = map[SuppressionLevel]SuppressionEffects{
	SuppressNone:   {CanAim: true, CanSprint: true, CanVault: true},
	SuppressLight:  {AccuracyPenalty: 0.10, MovementPenalty: 0.05, VisionPenalty: 0.05, CanAim: true, CanSprint: true, CanVault: true},
	SuppressMedium: {AccuracyPenalty: 0.25, MovementPenalty: 0.15, VisionPenalty: 0.15, CanAim: true, CanSprint: false, CanVault: true},
	SuppressHeavy:  {AccuracyPenalty: 0.45, MovementPenalty: 0.35, VisionPenalty: 0.30, CanAim: false, CanSprint: false, CanVault: false},
	SuppressPinned: {AccuracyPenalty: 0.70, MovementPenalty: 0.80, VisionPenalty: 0.50, CanAim: false, CanSprint: false, CanVault: false},
}

// Effects returns the fixed effect bundle for this level.
func (l SuppressionLevel) Effects() SuppressionEffects {
	return suppressionEffects[l]
}

// levelForIntensity is a monotonic step function of intensity.
func levelForIntensity(intensity float64) SuppressionLevel {
	switch {
	case intensity >= 0.85:
		return SuppressPinned
	case intensity >= 0.65:
		return SuppressHeavy
	case intensity >= 0.40:
		return SuppressMedium
	case intensity >= 0.20:
		return SuppressLight
	default:
		return SuppressNone
	}
}

// fireSource tracks one shooter's recent fire against an agent. Rounds per
// second come from a windowed shot-count estimate rather than a single
// elapsed-time sample, so a lone shot never reads as sustained fire.
type fireSource struct {
	weaponBase    float64
	firstShotTick int
	lastShotTick  int
	shotTicks     []int
}

func (fs *fireSource) pruneWindow(tick, windowTicks int) {
	kept := fs.shotTicks[:0]
	for _, t := range fs.shotTicks {
		if t > tick-windowTicks {
			kept = append(kept, t)
		}
	}
	fs.shotTicks = kept
}

// SuppressionSnapshotState is the observable per-agent suppression record.
type SuppressionSnapshotState struct {
	Level       SuppressionLevel
	Intensity   float64
	Accumulated float64
	Pinned      bool
	TicksPinned int
	Sources     int
}

type suppressionState struct {
	sources      map[string]*fireSource
	accumulated  float64
	intensity    float64
	level        SuppressionLevel
	pinned       bool
	ticksPinned  int
	pinnedUntil  int
	coverQuality float64 // 0 = exposed, 1 = full cover
}

// SquadSuppressionReport summarises suppression across squad members.
type SquadSuppressionReport struct {
	Members    int
	Suppressed int // level >= light
	Pinned     int
	CanAdvance bool
}

// SuppressionService owns per-agent, tick-indexed suppression state.
type SuppressionService struct {
	cfg        SuppressionTuning
	tickRateHz int
	states     map[Handle]*suppressionState
}

// NewSuppressionService creates the service. tickRateHz converts the shot
// window into rounds-per-second estimates.
func NewSuppressionService(cfg SuppressionTuning, tickRateHz int) *SuppressionService {
	if tickRateHz <= 0 {
		tickRateHz = 60
	}
	return &SuppressionService{
		cfg:        cfg,
		tickRateHz: tickRateHz,
		states:     make(map[Handle]*suppressionState),
	}
}

// Initialize creates a clean suppression record for an agent.
func (ss *SuppressionService) Initialize(h Handle) {
	ss.states[h] = &suppressionState{sources: make(map[string]*fireSource)}
}

// Remove drops an agent's suppression record.
func (ss *SuppressionService) Remove(h Handle) {
	delete(ss.states, h)
}

// State returns a value copy of the agent's suppression record. Unknown
// handles read as unsuppressed.
func (ss *SuppressionService) State(h Handle) SuppressionSnapshotState {
	st, ok := ss.states[h]
	if !ok {
		return SuppressionSnapshotState{}
	}
	return SuppressionSnapshotState{
		Level:       st.level,
		Intensity:   st.intensity,
		Accumulated: st.accumulated,
		Pinned:      st.pinned,
		TicksPinned: st.ticksPinned,
		Sources:     len(st.sources),
	}
}

// SetCover sets the agent's current cover quality in [0,1]. Cover reduces
// suppression accumulation multiplicatively.
func (ss *SuppressionService) SetCover(h Handle, quality float64) {
	if st, ok := ss.states[h]; ok {
		st.coverQuality = clamp01(quality)
	}
}

// RegisterFire records one incoming round from sourceID at the given tick.
func (ss *SuppressionService) RegisterFire(h Handle, sourceID string, weaponBase float64, tick int) {
	st, ok := ss.states[h]
	if !ok {
		return
	}
	fs, ok := st.sources[sourceID]
	if !ok {
		fs = &fireSource{weaponBase: weaponBase, firstShotTick: tick}
		st.sources[sourceID] = fs
	}
	fs.lastShotTick = tick
	fs.shotTicks = append(fs.shotTicks, tick)
	fs.pruneWindow(tick, ss.cfg.ShotWindowTicks)
}

// Update advances one agent's suppression by one tick: prunes stale fire
// sources, integrates incoming suppression or decays, smooths intensity and
// re-derives the level.
func (ss *SuppressionService) Update(h Handle, tick int) {
	st, ok := ss.states[h]
	if !ok {
		return
	}

	for id, fs := range st.sources {
		if fs.lastShotTick < tick-ss.cfg.StaleSourceTicks {
			delete(st.sources, id)
		}
	}

	incoming := 0.0
	windowSec := float64(ss.cfg.ShotWindowTicks) / float64(ss.tickRateHz)
	for _, fs := range st.sources {
		fs.pruneWindow(tick, ss.cfg.ShotWindowTicks)
		if len(fs.shotTicks) == 0 {
			continue
		}
		roundsPerSec := float64(len(fs.shotTicks)) / windowSec
		sustained := 1.0
		if tick-fs.firstShotTick >= ss.cfg.SustainedFireTicks {
			sustained = ss.cfg.SustainedFireBonus
		}
		incoming += fs.weaponBase * roundsPerSec * sustained
	}

	if incoming > 0 {
		coverMul := 1.0 - st.coverQuality*ss.cfg.CoverReductionScale
		st.accumulated += incoming * ss.cfg.AccumulationScale * coverMul
	} else {
		st.accumulated -= ss.cfg.DecayPerTick
	}
	st.accumulated = clamp01(st.accumulated)

	// Exponential approach toward the accumulated value.
	st.intensity += (st.accumulated - st.intensity) * ss.cfg.IntensitySmoothing
	st.intensity = clamp01(st.intensity)

	st.level = levelForIntensity(st.intensity)
	if st.level == SuppressPinned {
		if !st.pinned {
			st.pinned = true
			st.ticksPinned = 0
		}
		st.ticksPinned++
		// The fire block runs for a minimum window past the last pinned tick.
		st.pinnedUntil = tick + ss.cfg.PinnedBlockTicks
	} else if st.pinned {
		st.pinned = false
		st.ticksPinned = 0
	}
}

// UpdateAll advances every tracked agent by one tick.
func (ss *SuppressionService) UpdateAll(tick int) {
	for h := range ss.states {
		ss.Update(h, tick)
	}
}

// CanReturnFire reports whether the agent may shoot back. A pinned agent
// holds fire until the pinned block window elapses.
func (ss *SuppressionService) CanReturnFire(h Handle, tick int) bool {
	st, ok := ss.states[h]
	if !ok {
		return true
	}
	return tick >= st.pinnedUntil
}

// fireSourceRecord is the persisted form of one tracked fire source.
type fireSourceRecord struct {
	SourceID      string
	WeaponBase    float64
	FirstShotTick int
	LastShotTick  int
	ShotTicks     []int
}

// suppressionRecord is the complete persisted per-agent suppression record,
// with fire sources in stable id order.
type suppressionRecord struct {
	Accumulated  float64
	Intensity    float64
	Level        SuppressionLevel
	Pinned       bool
	TicksPinned  int
	PinnedUntil  int
	CoverQuality float64
	Sources      []fireSourceRecord
}

// exportState captures everything needed to rebuild the agent's suppression
// state, including the live fire-source windows.
func (ss *SuppressionService) exportState(h Handle) suppressionRecord {
	st, ok := ss.states[h]
	if !ok {
		return suppressionRecord{}
	}
	rec := suppressionRecord{
		Accumulated:  st.accumulated,
		Intensity:    st.intensity,
		Level:        st.level,
		Pinned:       st.pinned,
		TicksPinned:  st.ticksPinned,
		PinnedUntil:  st.pinnedUntil,
		CoverQuality: st.coverQuality,
	}
	ids := make([]string, 0, len(st.sources))
	for id := range st.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fs := st.sources[id]
		rec.Sources = append(rec.Sources, fireSourceRecord{
			SourceID:      id,
			WeaponBase:    fs.weaponBase,
			FirstShotTick: fs.firstShotTick,
			LastShotTick:  fs.lastShotTick,
			ShotTicks:     append([]int(nil), fs.shotTicks...),
		})
	}
	return rec
}

// restoreState overwrites the agent's suppression state from a record.
func (ss *SuppressionService) restoreState(h Handle, rec suppressionRecord) {
	st := &suppressionState{
		sources:      make(map[string]*fireSource, len(rec.Sources)),
		accumulated:  rec.Accumulated,
		intensity:    rec.Intensity,
		level:        rec.Level,
		pinned:       rec.Pinned,
		ticksPinned:  rec.TicksPinned,
		pinnedUntil:  rec.PinnedUntil,
		coverQuality: rec.CoverQuality,
	}
	for _, s := range rec.Sources {
		st.sources[s.SourceID] = &fireSource{
			weaponBase:    s.WeaponBase,
			firstShotTick: s.FirstShotTick,
			lastShotTick:  s.LastShotTick,
			shotTicks:     append([]int(nil), s.ShotTicks...),
		}
	}
	ss.states[h] = st
}

// SquadReport summarises suppression across the given members. The squad
// cannot advance if any member is pinned or at least half are suppressed.
func (ss *SuppressionService) SquadReport(members []Handle) SquadSuppressionReport {
	rep := SquadSuppressionReport{Members: len(members)}
	for _, h := range members {
		st := ss.State(h)
		if st.Level >= SuppressLight {
			rep.Suppressed++
		}
		if st.Pinned {
			rep.Pinned++
		}
	}
	half := int(math.Ceil(float64(rep.Members) / 2))
	rep.CanAdvance = rep.Members > 0 && rep.Pinned == 0 && rep.Suppressed < half
	return rep
}
