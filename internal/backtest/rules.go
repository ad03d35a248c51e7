package backtest

import (
	"math"

	"algo_engine/internal/models"
)

// Rule evaluation looks strictly backward: at bar i it reads indices i-1 and
// i-2 only, so the decision never depends on the bar being processed.

func (s seriesSet) at(name string, idx int) (float64, bool) {
	series, ok := s[name]
	if !ok || idx < 0 || idx >= len(series) {
		return 0, false
	}
	v := series[idx]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// targetAt resolves a rule's right side: a literal value or another series.
func (s seriesSet) targetAt(r models.Rule, idx int) (float64, bool) {
	if r.Value != nil {
		return *r.Value, true
	}
	return s.at(r.Target, idx)
}

func evalRule(s seriesSet, r models.Rule, i int) bool {
	cur, ok := s.at(r.Indicator, i-1)
	if !ok {
		return false
	}
	curTgt, ok := s.targetAt(r, i-1)
	if !ok {
		return false
	}

	switch r.Compare {
	case "above":
		return cur > curTgt
	case "below":
		return cur < curTgt
	case "crosses_above":
		prev, ok := s.at(r.Indicator, i-2)
		if !ok {
			return false
		}
		prevTgt, ok := s.targetAt(r, i-2)
		if !ok {
			return false
		}
		return prev <= prevTgt && cur > curTgt
	case "crosses_below":
		prev, ok := s.at(r.Indicator, i-2)
		if !ok {
			return false
		}
		prevTgt, ok := s.targetAt(r, i-2)
		if !ok {
			return false
		}
		return prev >= prevTgt && cur < curTgt
	}
	return false
}

func evalGroup(s seriesSet, g models.RuleGroup, i int) bool {
	if g.Empty() {
		return false
	}
	any := g.Mode == "any"
	for _, r := range g.Rules {
		ok := evalRule(s, r, i)
		if any && ok {
			return true
		}
		if !any && !ok {
			return false
		}
	}
	for _, sub := range g.Groups {
		ok := evalGroup(s, sub, i)
		if any && ok {
			return true
		}
		if !any && !ok {
			return false
		}
	}
	return !any
}
