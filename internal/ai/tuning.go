package ai

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning carries every numeric knob of the decision stack. All services take
// their section at construction so a scenario can be re-tuned without a
// rebuild. Zero-value sections are replaced by defaults in Load.
type Tuning struct {
	Sim         SimTuning         `yaml:"sim"`
	Perception  PerceptionTuning  `yaml:"perception"`
	Suppression SuppressionTuning `yaml:"suppression"`
	Micro       MicroTuning       `yaml:"micro"`
	Morale      MoraleTuning      `yaml:"morale"`
	Memory      MemoryTuning      `yaml:"memory"`
	Squad       SquadTuning       `yaml:"squad"`
	Sentinel    SentinelTuning    `yaml:"sentinel"`
}

// SimTuning holds loop-level parameters.
type SimTuning struct {
	TickRateHz   int     `yaml:"tick_rate_hz"`
	TickBudgetMs float64 `yaml:"tick_budget_ms"`
	Seed         int64   `yaml:"seed"`
}

// PerceptionTuning holds the sensing defaults.
type PerceptionTuning struct {
	BaseSightRange    float64 `yaml:"base_sight_range"`
	ConeAngleDeg      float64 `yaml:"cone_angle_deg"`
	BaseHearingRadius float64 `yaml:"base_hearing_radius"`
	MemoryDuration    float64 `yaml:"memory_duration_sec"`
	AlertBump         float64 `yaml:"alert_bump"`
	AlertDecayPerSec  float64 `yaml:"alert_decay_per_sec"`
}

// SuppressionTuning holds the fire-debuff parameters.
type SuppressionTuning struct {
	StaleSourceTicks    int     `yaml:"stale_source_ticks"`
	SustainedFireTicks  int     `yaml:"sustained_fire_ticks"`
	SustainedFireBonus  float64 `yaml:"sustained_fire_bonus"`
	ShotWindowTicks     int     `yaml:"shot_window_ticks"`
	AccumulationScale   float64 `yaml:"accumulation_scale"`
	DecayPerTick        float64 `yaml:"decay_per_tick"`
	IntensitySmoothing  float64 `yaml:"intensity_smoothing"`
	CoverReductionScale float64 `yaml:"cover_reduction_scale"`
	PinnedBlockTicks    int     `yaml:"pinned_block_ticks"`
}

// MicroTuning holds the micro-agent weights and thresholds.
type MicroTuning struct {
	AggressionBase     float64 `yaml:"aggression_base"`
	HealthPenalty      float64 `yaml:"health_penalty"`
	AdvantageBonus     float64 `yaml:"advantage_bonus"`
	ThreatPenalty      float64 `yaml:"threat_penalty"`
	PanicRetreat       float64 `yaml:"panic_retreat_threshold"`
	SurrenderBase      float64 `yaml:"surrender_threshold_base"`
	SurrenderPanicGain float64 `yaml:"surrender_panic_gain"`
}

// MoraleTuning holds morale and fear propagation parameters.
type MoraleTuning struct {
	DriftPerSec        float64 `yaml:"drift_per_sec"`
	FearDecayPerSec    float64 `yaml:"fear_decay_per_sec"`
	PropagationRange   float64 `yaml:"propagation_range"`
	MaxFearTransfer    float64 `yaml:"max_fear_transfer"`
	CascadeChance      float64 `yaml:"cascade_chance"`
	CascadeMoraleHit   float64 `yaml:"cascade_morale_hit"`
	LeaderDeathPenalty float64 `yaml:"leader_death_penalty"`
	RallyMoraleFloor   float64 `yaml:"rally_morale_floor"`
	RallyRestore       float64 `yaml:"rally_restore"`
	EffectivenessFloor float64 `yaml:"effectiveness_floor"`
}

// MemoryTuning holds the social memory parameters.
type MemoryTuning struct {
	ShortTermCap       int     `yaml:"short_term_cap"`
	ShortTermWindowSec float64 `yaml:"short_term_window_sec"`
	LongTermCap        int     `yaml:"long_term_cap"`
	PromoteImportance  float64 `yaml:"promote_importance"`
	FamiliarityStep    float64 `yaml:"familiarity_step"`
	TrustDecayPerHour  float64 `yaml:"trust_decay_per_hour"`
	RelationBacklogCap int     `yaml:"relation_backlog_cap"`
}

// SquadTuning holds the squad coordinator parameters.
type SquadTuning struct {
	FriendlyFireTolerance float64 `yaml:"friendly_fire_tolerance"`
	ReinforcementFraction float64 `yaml:"reinforcement_fraction"`
	PredictionWindow      int     `yaml:"prediction_window"`
	PredictionFloor       float64 `yaml:"prediction_floor"`
	FlankOffsetDistance   float64 `yaml:"flank_offset_distance"`
}

// SentinelTuning holds the fairness caps enforced on proposals.
type SentinelTuning struct {
	ReactionTimeFloorMs  float64 `yaml:"reaction_time_floor_ms"`
	AccuracyCeiling      float64 `yaml:"accuracy_ceiling"`
	EliteAccuracyCeiling float64 `yaml:"elite_accuracy_ceiling"`
	DetectionRangeCap    float64 `yaml:"detection_range_cap"`
	DamageFractionCap    float64 `yaml:"damage_fraction_cap"`
	MaxAttackers         int     `yaml:"max_attackers"`
	DifficultyRampCap    float64 `yaml:"difficulty_ramp_cap"`
}

// DefaultTuning returns the baseline parameter set used when no tuning file
// is supplied.
func DefaultTuning() Tuning {
	return Tuning{
		Sim: SimTuning{
			TickRateHz:   60,
			TickBudgetMs: 16,
			Seed:         1,
		},
		Perception: PerceptionTuning{
			BaseSightRange:    50,
			ConeAngleDeg:      120,
			BaseHearingRadius: 30,
			MemoryDuration:    10,
			AlertBump:         0.25,
			AlertDecayPerSec:  0.05,
		},
		Suppression: SuppressionTuning{
			StaleSourceTicks:    90,
			SustainedFireTicks:  120,
			SustainedFireBonus:  1.5,
			ShotWindowTicks:     60,
			AccumulationScale:   0.020,
			DecayPerTick:        0.008,
			IntensitySmoothing:  0.15,
			CoverReductionScale: 0.6,
			PinnedBlockTicks:    180,
		},
		Micro: MicroTuning{
			AggressionBase:     0.6,
			HealthPenalty:      0.5,
			AdvantageBonus:     0.2,
			ThreatPenalty:      0.3,
			PanicRetreat:       0.75,
			SurrenderBase:      0.10,
			SurrenderPanicGain: 0.15,
		},
		Morale: MoraleTuning{
			DriftPerSec:        0.8,
			FearDecayPerSec:    1.5,
			PropagationRange:   40,
			MaxFearTransfer:    15,
			CascadeChance:      0.35,
			CascadeMoraleHit:   8,
			LeaderDeathPenalty: 20,
			RallyMoraleFloor:   60,
			RallyRestore:       15,
			EffectivenessFloor: 0.3,
		},
		Memory: MemoryTuning{
			ShortTermCap:       32,
			ShortTermWindowSec: 300,
			LongTermCap:        64,
			PromoteImportance:  0.6,
			FamiliarityStep:    8,
			TrustDecayPerHour:  1.0,
			RelationBacklogCap: 24,
		},
		Squad: SquadTuning{
			FriendlyFireTolerance: 2.0,
			ReinforcementFraction: 0.5,
			PredictionWindow:      12,
			PredictionFloor:       0.5,
			FlankOffsetDistance:   18,
		},
		Sentinel: SentinelTuning{
			ReactionTimeFloorMs:  200,
			AccuracyCeiling:      0.85,
			EliteAccuracyCeiling: 0.95,
			DetectionRangeCap:    120,
			DamageFractionCap:    0.35,
			MaxAttackers:         4,
			DifficultyRampCap:    0.10,
		},
	}
}

// LoadTuning reads a tuning YAML file layered over the defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	return t, nil
}
