package rules

import (
	"time"

	"dockmonitor/internal/metrics"
	"dockmonitor/pkg/types"
)

// sweeper is implemented by rules that maintain state needing periodic
// re-evaluation independent of any single event (only ManualInterventionRule
// today).
type sweeper interface {
	Sweep(now time.Time) []types.Outcome
}

// Engine holds the ordered rule list and runs every rule against each event,
// concatenating their outcomes in rule order: rules are
// independent, no rule reads another's output in the same pass.
type Engine struct {
	list []types.Rule
}

func NewEngine(list []types.Rule) *Engine {
	return &Engine{list: list}
}

// Apply runs every configured rule over (door, event) and returns the
// concatenated outcome vector.
func (e *Engine) Apply(door types.DoorSnapshot, event types.DockEvent) []types.Outcome {
	outcomes := make([]types.Outcome, 0)
	for _, rule := range e.list {
		outcomes = append(outcomes, rule.Apply(door, event)...)
		metrics.RuleEvaluationsTotal.WithLabelValues(rule.Name()).Inc()
	}
	return outcomes
}

// Sweep invokes every rule's periodic re-evaluation, if it has one.
func (e *Engine) Sweep(now time.Time) []types.Outcome {
	outcomes := make([]types.Outcome, 0)
	for _, rule := range e.list {
		if s, ok := rule.(sweeper); ok {
			outcomes = append(outcomes, s.Sweep(now)...)
		}
	}
	return outcomes
}
