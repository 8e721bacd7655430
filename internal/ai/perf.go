package ai

import (
	"log/slog"
	"time"
)

// TickWatch tracks per-tick wall time against the fixed budget. An overrun
// only emits a warning event; the loop is never aborted.
type TickWatch struct {
	budget time.Duration
	log    *slog.Logger

	ticks    uint64
	overruns uint64
	worst    time.Duration
	total    time.Duration
}

// NewTickWatch creates a watchdog with the budget in milliseconds.
func NewTickWatch(budgetMs float64, log *slog.Logger) *TickWatch {
	if log == nil {
		log = slog.Default()
	}
	if budgetMs <= 0 {
		budgetMs = 16
	}
	return &TickWatch{
		budget: time.Duration(budgetMs * float64(time.Millisecond)),
		log:    log,
	}
}

// Observe records one tick's elapsed time.
func (w *TickWatch) Observe(elapsed time.Duration, tick uint64) {
	w.ticks++
	w.total += elapsed
	if elapsed > w.worst {
		w.worst = elapsed
	}
	if elapsed > w.budget {
		w.overruns++
		w.log.Warn("tick budget exceeded",
			"tick", tick,
			"elapsed_ms", float64(elapsed.Microseconds())/1000,
			"budget_ms", float64(w.budget.Microseconds())/1000)
	}
}

// Overruns returns how many ticks ran over budget.
func (w *TickWatch) Overruns() uint64 { return w.overruns }

// Worst returns the slowest observed tick.
func (w *TickWatch) Worst() time.Duration { return w.worst }

// Average returns the mean tick time, zero before the first observation.
func (w *TickWatch) Average() time.Duration {
	if w.ticks == 0 {
		return 0
	}
	return w.total / time.Duration(w.ticks)
}
