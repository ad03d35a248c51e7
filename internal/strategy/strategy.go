package strategy

import (
	"algo_engine/internal/marketdata"
	"algo_engine/internal/models"
)

// Strategy is the per-algorithm contract the coordinator drives through one
// analyze -> signal -> validate -> size -> risk cycle. Implementations may
// keep internal state (quote timers, rolling windows); the coordinator
// serializes cycles per instance, so methods are never called concurrently
// for the same Strategy value.
type Strategy interface {
	Name() string
	Type() models.AlgorithmType

	// Analyze computes the variant's diagnostics from the snapshot. Thin
	// data degrades to Ready=false, never an error; errors are reserved for
	// broken inputs.
	Analyze(snap marketdata.Snapshot) (models.AnalysisResult, error)

	// GenerateSignal turns diagnostics into an execution intent. The second
	// return is false when entry criteria are not met; thresholds are strict
	// inequalities, a tie produces no signal.
	GenerateSignal(res models.AnalysisResult) (models.Signal, bool)

	// ValidateSignal is the last gate before sizing: instance status,
	// concurrent-position limit, staleness, variant-specific guards.
	ValidateSignal(sig models.Signal, state models.AlgorithmState) bool

	// PositionSize returns the volume, always clamped to the configured
	// [min, max] range.
	PositionSize(sig models.Signal, equity float64) float64

	AssessRisk(sig models.Signal, equity float64) models.RiskAssessment
}
