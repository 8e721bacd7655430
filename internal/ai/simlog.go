package ai

import (
	"fmt"
	"strings"
)

// SimLogEntry is one recorded event during a headless simulation run.
type SimLogEntry struct {
	Tick     int
	Agent    string  // agent id, or "--" for global events
	Squad    string  // squad id, or "--"
	Category string  // state, tactic, squad, morale, suppression, governance, perf
	Key      string  // specific event name within the category
	Value    string  // human-readable detail
	NumVal   float64 // optional numeric value for threshold checks
}

// String formats the entry as a fixed-width log line.
//
//	[T=042] opfor-3 state   transition   engage → retreat
func (e SimLogEntry) String() string {
	return fmt.Sprintf("[T=%03d] %-8s %-12s %-18s %s",
		e.Tick, e.Agent, e.Category, e.Key, e.Value)
}

// SimLog collects structured events during a headless simulation. It is
// unbounded and machine-readable; scenario tests assert against it instead
// of scraping slog output.
type SimLog struct {
	entries []SimLogEntry
	verbose bool
}

// NewSimLog creates a SimLog. Verbose mode also records per-tick detail
// entries that are too noisy for normal runs.
func NewSimLog(verbose bool) *SimLog {
	return &SimLog{verbose: verbose}
}

// Add records a new entry.
func (sl *SimLog) Add(tick int, agent, squad, category, key, value string, numVal float64) {
	sl.entries = append(sl.entries, SimLogEntry{
		Tick:     tick,
		Agent:    agent,
		Squad:    squad,
		Category: category,
		Key:      key,
		Value:    value,
		NumVal:   numVal,
	})
}

// AddVerbose records an entry only when verbose mode is on.
func (sl *SimLog) AddVerbose(tick int, agent, squad, category, key, value string, numVal float64) {
	if !sl.verbose {
		return
	}
	sl.Add(tick, agent, squad, category, key, value, numVal)
}

// Entries returns all recorded entries.
func (sl *SimLog) Entries() []SimLogEntry {
	return sl.entries
}

// Filter returns entries matching the given category and/or key. Pass empty
// string to match any value for that field.
func (sl *SimLog) Filter(category, key string) []SimLogEntry {
	var out []SimLogEntry
	for _, e := range sl.entries {
		if category != "" && e.Category != category {
			continue
		}
		if key != "" && e.Key != key {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FilterAgent returns entries for a specific agent id.
func (sl *SimLog) FilterAgent(id string) []SimLogEntry {
	var out []SimLogEntry
	for _, e := range sl.entries {
		if e.Agent == id {
			out = append(out, e)
		}
	}
	return out
}

// FilterTickRange returns entries within [fromTick, toTick] inclusive.
func (sl *SimLog) FilterTickRange(fromTick, toTick int) []SimLogEntry {
	var out []SimLogEntry
	for _, e := range sl.entries {
		if e.Tick >= fromTick && e.Tick <= toTick {
			out = append(out, e)
		}
	}
	return out
}

// CountCategory returns how many entries match the given category and key.
func (sl *SimLog) CountCategory(category, key string) int {
	return len(sl.Filter(category, key))
}

// LastOf returns the most recent entry matching category+key, or false.
func (sl *SimLog) LastOf(category, key string) (SimLogEntry, bool) {
	entries := sl.Filter(category, key)
	if len(entries) == 0 {
		return SimLogEntry{}, false
	}
	return entries[len(entries)-1], true
}

// HasEntry returns true if at least one entry matches category, key, and
// value substring.
func (sl *SimLog) HasEntry(category, key, valueSubstr string) bool {
	for _, e := range sl.entries {
		if category != "" && e.Category != category {
			continue
		}
		if key != "" && e.Key != key {
			continue
		}
		if valueSubstr != "" && !strings.Contains(e.Value, valueSubstr) {
			continue
		}
		return true
	}
	return false
}

// Format returns the full log as a single string for t.Log output.
func (sl *SimLog) Format() string {
	var sb strings.Builder
	for _, e := range sl.entries {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Summary returns a short human-readable digest of the stack's state.
func (sl *SimLog) Summary(tick int, d *Director) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- Summary at T=%03d ---\n", tick)

	stateCount := map[AgentState]int{}
	alive := 0
	d.roster.ForEach(func(h Handle, a *Agent) {
		stateCount[a.State]++
		if a.Alive {
			alive++
		}
	})
	sb.WriteString("States: ")
	for _, s := range []AgentState{StateIdle, StateAware, StateSearching, StateEngage, StateFlank, StateRetreat, StateSurrender} {
		if n := stateCount[s]; n > 0 {
			fmt.Fprintf(&sb, "%s=%d  ", s, n)
		}
	}
	sb.WriteByte('\n')
	fmt.Fprintf(&sb, "Alive: %d\n", alive)

	for id := range d.activeSquads() {
		sq := d.squads.Squad(id)
		if sq == nil {
			continue
		}
		fmt.Fprintf(&sb, "Squad %s: tactic=%s alive=%d/%d spread=%.1f\n",
			id, sq.Tactic, sq.AliveCount(), len(sq.Members), sq.Spread())
	}
	fmt.Fprintf(&sb, "Fairness index: %.2f\n", d.sentinel.FairnessIndex())
	return sb.String()
}
