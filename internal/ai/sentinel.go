package ai

import (
	"fmt"
	"strings"
)

// ViolationSeverity tiers a fairness finding.
type ViolationSeverity int

const (
	ViolationMinor ViolationSeverity = iota
	ViolationModerate
	ViolationSevere
)

func (s ViolationSeverity) String() string {
	switch s {
	case ViolationMinor:
		return "minor"
	case ViolationModerate:
		return "moderate"
	case ViolationSevere:
		return "severe"
	default:
		return "unknown"
	}
}

// Violation is one fairness finding against a proposal.
type Violation struct {
	Cap      string
	Severity ViolationSeverity
	Detail   string
}

// Sentinel enforces the fairness caps on combat and AI proposals: no
// superhuman reaction times, capped accuracy and damage, bounded attacker
// counts and difficulty ramps. Any severe violation blocks; three moderate
// violations together block.
type Sentinel struct {
	cfg SentinelTuning

	deaths     int
	wins       int
	encounters int
	difficulty float64
}

// NewSentinel creates the validator with the given caps.
func NewSentinel(cfg SentinelTuning) *Sentinel {
	return &Sentinel{cfg: cfg, difficulty: 1}
}

// payloadFloat reads a numeric payload field, tolerating int-typed values.
func payloadFloat(p Proposal, key string) (float64, bool) {
	v, ok := p.Payload[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func payloadBool(p Proposal, key string) bool {
	b, _ := p.Payload[key].(bool)
	return b
}

// Check inspects a proposal's payload against every cap and returns the
// findings.
func (s *Sentinel) Check(p Proposal) []Violation {
	var out []Violation

	if rt, ok := payloadFloat(p, "reaction_time_ms"); ok && rt < s.cfg.ReactionTimeFloorMs {
		out = append(out, Violation{
			Cap:      "reaction_time",
			Severity: ViolationSevere,
			Detail:   fmt.Sprintf("%.0fms is below the %.0fms floor", rt, s.cfg.ReactionTimeFloorMs),
		})
	}
	if acc, ok := payloadFloat(p, "accuracy"); ok {
		ceiling := s.cfg.AccuracyCeiling
		if payloadBool(p, "elite") {
			ceiling = s.cfg.EliteAccuracyCeiling
		}
		if acc > ceiling {
			out = append(out, Violation{
				Cap:      "accuracy",
				Severity: ViolationSevere,
				Detail:   fmt.Sprintf("%.2f exceeds the %.2f ceiling", acc, ceiling),
			})
		}
	}
	if dmg, ok := payloadFloat(p, "damage_fraction"); ok && dmg > s.cfg.DamageFractionCap {
		out = append(out, Violation{
			Cap:      "damage_fraction",
			Severity: ViolationSevere,
			Detail:   fmt.Sprintf("%.2f of player max health exceeds the %.2f cap", dmg, s.cfg.DamageFractionCap),
		})
	}
	if dr, ok := payloadFloat(p, "detection_range"); ok && dr > s.cfg.DetectionRangeCap {
		out = append(out, Violation{
			Cap:      "detection_range",
			Severity: ViolationModerate,
			Detail:   fmt.Sprintf("%.0f exceeds the %.0f cap", dr, s.cfg.DetectionRangeCap),
		})
	}
	if n, ok := payloadFloat(p, "max_attackers"); ok && int(n) > s.cfg.MaxAttackers {
		out = append(out, Violation{
			Cap:      "max_attackers",
			Severity: ViolationModerate,
			Detail:   fmt.Sprintf("%d exceeds the cap of %d simultaneous attackers", int(n), s.cfg.MaxAttackers),
		})
	}
	if ramp, ok := payloadFloat(p, "difficulty_ramp"); ok && ramp > s.cfg.DifficultyRampCap {
		out = append(out, Violation{
			Cap:      "difficulty_ramp",
			Severity: ViolationModerate,
			Detail:   fmt.Sprintf("%.2f exceeds the %.2f per-step cap", ramp, s.cfg.DifficultyRampCap),
		})
	}
	for k, v := range p.Payload {
		str, ok := v.(string)
		if !ok {
			continue
		}
		lower := strings.ToLower(str)
		for _, m := range cheatMarkers {
			if strings.Contains(lower, m) {
				out = append(out, Violation{
					Cap:      "cheating_pattern",
					Severity: ViolationSevere,
					Detail:   fmt.Sprintf("field %q matches pattern %q", k, m),
				})
			}
		}
	}
	return out
}

// Review runs Check and applies the blocking policy. Non-blocking findings
// come back as warnings.
func (s *Sentinel) Review(p Proposal) (blocked bool, reason string, warnings []string) {
	violations := s.Check(p)
	moderate := 0
	for _, v := range violations {
		msg := fmt.Sprintf("fairness %s (%s): %s", v.Cap, v.Severity, v.Detail)
		switch v.Severity {
		case ViolationSevere:
			return true, msg, warnings
		case ViolationModerate:
			moderate++
		}
		warnings = append(warnings, msg)
	}
	if moderate >= 3 {
		return true, fmt.Sprintf("fairness: %d moderate violations together block", moderate), warnings
	}
	return false, "", warnings
}

// RecordEncounter feeds one finished player encounter into the rolling
// fairness inputs.
func (s *Sentinel) RecordEncounter(playerDied, playerWon bool, difficulty float64) {
	s.encounters++
	if playerDied {
		s.deaths++
	}
	if playerWon {
		s.wins++
	}
	s.difficulty = difficulty
}

// FairnessIndex blends death rate, win rate and difficulty into a 0..1
// score; 1 reads as perfectly fair. With no encounters it reports 1.
func (s *Sentinel) FairnessIndex() float64 {
	if s.encounters == 0 {
		return 1
	}
	deathRate := float64(s.deaths) / float64(s.encounters)
	winRate := float64(s.wins) / float64(s.encounters)

	// A fair fight hovers near an even win rate without grinding the
	// player down; runaway difficulty drags the index.
	idx := 1.0
	idx -= deathRate * 0.4
	idx -= (1 - winRate) * 0.3
	if s.difficulty > 1 {
		idx -= (s.difficulty - 1) * 0.2
	}
	return clamp01(idx)
}
