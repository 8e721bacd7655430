package ai

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Phase is the simulation lifecycle state owned by the Chair.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseRunning
	PhasePaused
	PhaseShutdown
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseRunning:
		return "running"
	case PhasePaused:
		return "paused"
	case PhaseShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// ProposalType is what a proposal wants done to its target.
type ProposalType int

const (
	ProposalAdd ProposalType = iota
	ProposalModify
	ProposalRemove
)

func (t ProposalType) String() string {
	switch t {
	case ProposalAdd:
		return "add"
	case ProposalModify:
		return "modify"
	case ProposalRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Proposal is a structured request to change an AI parameter or rule. Tier
// is the submitter's trust level: 1 system, 2 domain agent, 3 ad hoc.
type Proposal struct {
	ID            string
	Tier          int
	Type          ProposalType
	Subsystem     string
	Payload       map[string]any
	Confidence    float64
	SubmittedTick uint64
}

// Verdict is the terminal result of governance review. Rejections carry a
// reason; warn-severity findings ride along without blocking.
type Verdict struct {
	Approved bool
	Reason   string
	Warnings []string
}

// RuleSeverity splits governance rules into blocking and advisory.
type RuleSeverity int

const (
	SeverityWarn RuleSeverity = iota
	SeverityBlock
)

// GovRule is one entry in the Chair's ordered rule list.
type GovRule struct {
	Name     string
	Severity RuleSeverity
	Check    func(c *Chair, p Proposal) (ok bool, detail string)
}

// ProposalRecorder persists every reviewed proposal. The audit ledger
// implements it; a nil recorder disables persistence.
type ProposalRecorder interface {
	RecordProposal(p Proposal, v Verdict) error
}

// tierConfidenceFloor maps submitter tier to the minimum confidence a
// proposal must carry. Unknown tiers use the strictest floor.
var tierConfidenceFloor = map[int]float64{
	1: 0.95,
	2: 0.80,
	3: 0.70,
}

// protectedFields may never appear in a modify/remove payload.
var protectedFields = []string{"id", "tier", "faction", "player_id", "schema_version"}

// cheatMarkers are capability keywords no proposal may smuggle in.
var cheatMarkers = []string{"wallhack", "aimbot", "noclip", "instakill", "see_through", "player_position_feed"}

// randomnessMarkers flag payloads that depend on unseeded randomness, which
// would break replay determinism.
var randomnessMarkers = []string{"unseeded", "rand()", "time.now", "crypto/rand"}

// sentinelSubsystems routes combat-facing proposals through the Balance
// Sentinel in addition to the Chair's own rules.
var sentinelSubsystems = map[string]bool{
	"combat":      true,
	"tactics":     true,
	"perception":  true,
	"suppression": true,
	"difficulty":  true,
}

// payloadSchemaSrc bounds proposal payloads to a flat bag of scalars.
const payloadSchemaSrc = `{
	"type": "object",
	"maxProperties": 32,
	"propertyNames": {"pattern": "^[a-z][a-z0-9_]*$"},
	"additionalProperties": {"type": ["number", "string", "boolean"]}
}`

type subsystemHealth struct {
	healthy    bool
	detail     string
	reportTick uint64
}

// Chair owns the tick counter, the simulation phase machine and subsystem
// health, and adjudicates every proposal through its ordered rule list.
type Chair struct {
	tick     uint64
	phase    Phase
	health   map[string]*subsystemHealth
	rules    []GovRule
	schema   *jsonschema.Schema
	sentinel *Sentinel
	audit    ProposalRecorder
	log      *slog.Logger
}

// NewChair builds the Chair in the init phase with the built-in rule list.
func NewChair(sentinel *Sentinel, audit ProposalRecorder, log *slog.Logger) (*Chair, error) {
	if log == nil {
		log = slog.Default()
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("proposal-payload.json", strings.NewReader(payloadSchemaSrc)); err != nil {
		return nil, fmt.Errorf("governance payload schema: %w", err)
	}
	schema, err := compiler.Compile("proposal-payload.json")
	if err != nil {
		return nil, fmt.Errorf("governance payload schema: %w", err)
	}
	c := &Chair{
		phase:    PhaseInit,
		health:   make(map[string]*subsystemHealth),
		schema:   schema,
		sentinel: sentinel,
		audit:    audit,
		log:      log,
	}
	c.rules = builtinGovRules()
	return c, nil
}

// Phase returns the current lifecycle phase.
func (c *Chair) Phase() Phase { return c.phase }

// Tick returns the current tick count.
func (c *Chair) Tick() uint64 { return c.tick }

// Advance increments the tick counter. Only a running simulation ticks.
func (c *Chair) Advance() uint64 {
	if c.phase == PhaseRunning {
		c.tick++
	}
	return c.tick
}

// Start moves init or paused to running. Any other source phase is an
// integration error, not a data condition.
func (c *Chair) Start() error {
	if c.phase != PhaseInit && c.phase != PhasePaused {
		return fmt.Errorf("illegal phase transition: start from %s", c.phase)
	}
	c.phase = PhaseRunning
	c.log.Info("simulation phase", "phase", c.phase.String())
	return nil
}

// Pause moves running to paused.
func (c *Chair) Pause() error {
	if c.phase != PhaseRunning {
		return fmt.Errorf("illegal phase transition: pause from %s", c.phase)
	}
	c.phase = PhasePaused
	c.log.Info("simulation phase", "phase", c.phase.String())
	return nil
}

// Shutdown is legal from any phase and is terminal.
func (c *Chair) Shutdown() {
	c.phase = PhaseShutdown
	c.log.Info("simulation phase", "phase", c.phase.String())
}

// ReportHealth records a subsystem health sample at the current tick.
func (c *Chair) ReportHealth(subsystem string, healthy bool, detail string) {
	c.health[subsystem] = &subsystemHealth{healthy: healthy, detail: detail, reportTick: c.tick}
}

// Healthy reports a subsystem's last known health. Unreported subsystems
// read as healthy.
func (c *Chair) Healthy(subsystem string) bool {
	if h, ok := c.health[subsystem]; ok {
		return h.healthy
	}
	return true
}

// SubmitProposal runs the ordered rule list against the proposal. The first
// failing block-severity rule aborts with its reason; warn-severity failures
// are collected and logged. Combat-facing subsystems additionally pass
// through the Balance Sentinel. Every verdict is written to the audit
// recorder before returning.
func (c *Chair) SubmitProposal(p Proposal) Verdict {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.SubmittedTick = c.tick

	v := Verdict{Approved: true}
	for _, r := range c.rules {
		ok, detail := r.Check(c, p)
		if ok {
			continue
		}
		if r.Severity == SeverityBlock {
			v = Verdict{Approved: false, Reason: fmt.Sprintf("%s: %s", r.Name, detail), Warnings: v.Warnings}
			break
		}
		v.Warnings = append(v.Warnings, fmt.Sprintf("%s: %s", r.Name, detail))
	}

	if v.Approved && c.sentinel != nil && sentinelSubsystems[p.Subsystem] {
		if blocked, reason, warns := c.sentinel.Review(p); blocked {
			v = Verdict{Approved: false, Reason: reason, Warnings: append(v.Warnings, warns...)}
		} else {
			v.Warnings = append(v.Warnings, warns...)
		}
	}

	if c.audit != nil {
		if err := c.audit.RecordProposal(p, v); err != nil {
			c.log.Warn("proposal audit write failed", "proposal", p.ID, "error", err)
		}
	}
	c.log.Info("proposal reviewed",
		"proposal", p.ID,
		"subsystem", p.Subsystem,
		"tier", p.Tier,
		"approved", v.Approved,
		"reason", v.Reason,
		"warnings", len(v.Warnings))
	return v
}

// payloadStrings flattens every string in the payload for marker scans.
func payloadStrings(p Proposal) []string {
	out := make([]string, 0, len(p.Payload)+1)
	for k, val := range p.Payload {
		out = append(out, strings.ToLower(k))
		if s, ok := val.(string); ok {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}

func containsMarker(haystacks, markers []string) (string, bool) {
	for _, h := range haystacks {
		for _, m := range markers {
			if strings.Contains(h, m) {
				return m, true
			}
		}
	}
	return "", false
}

// builtinGovRules is the ordered built-in rule list.
func builtinGovRules() []GovRule {
	return []GovRule{
		{
			Name:     "payload_schema",
			Severity: SeverityBlock,
			Check: func(c *Chair, p Proposal) (bool, string) {
				payload := map[string]any{}
				for k, v := range p.Payload {
					payload[k] = v
				}
				if err := c.schema.Validate(payload); err != nil {
					return false, err.Error()
				}
				return true, ""
			},
		},
		{
			Name:     "seeded_randomness",
			Severity: SeverityBlock,
			Check: func(c *Chair, p Proposal) (bool, string) {
				if m, found := containsMarker(payloadStrings(p), randomnessMarkers); found {
					return false, fmt.Sprintf("unseeded randomness marker %q", m)
				}
				return true, ""
			},
		},
		{
			Name:     "tier_confidence",
			Severity: SeverityBlock,
			Check: func(c *Chair, p Proposal) (bool, string) {
				floor, ok := tierConfidenceFloor[p.Tier]
				if !ok {
					floor = tierConfidenceFloor[1]
				}
				if p.Confidence < floor {
					return false, fmt.Sprintf("confidence %.2f below tier %d floor %.2f", p.Confidence, p.Tier, floor)
				}
				return true, ""
			},
		},
		{
			Name:     "subsystem_health",
			Severity: SeverityBlock,
			Check: func(c *Chair, p Proposal) (bool, string) {
				if p.Type != ProposalModify && p.Type != ProposalRemove {
					return true, ""
				}
				if !c.Healthy(p.Subsystem) {
					return false, fmt.Sprintf("subsystem %s is unhealthy", p.Subsystem)
				}
				return true, ""
			},
		},
		{
			Name:     "protected_fields",
			Severity: SeverityBlock,
			Check: func(c *Chair, p Proposal) (bool, string) {
				if p.Type == ProposalAdd {
					return true, ""
				}
				for k := range p.Payload {
					for _, f := range protectedFields {
						if strings.EqualFold(k, f) {
							return false, fmt.Sprintf("field %q is protected", k)
						}
					}
				}
				return true, ""
			},
		},
		{
			Name:     "cheat_capability",
			Severity: SeverityBlock,
			Check: func(c *Chair, p Proposal) (bool, string) {
				if m, found := containsMarker(payloadStrings(p), cheatMarkers); found {
					return false, fmt.Sprintf("cheating-capability keyword %q", m)
				}
				return true, ""
			},
		},
		{
			Name:     "stale_submission",
			Severity: SeverityWarn,
			Check: func(c *Chair, p Proposal) (bool, string) {
				if c.phase == PhasePaused {
					return false, "submitted while simulation paused"
				}
				return true, ""
			},
		},
	}
}
