package usecase

import (
	"adsync/internal/domain"
)

// Presets name a base dimension configuration selected before per-dimension
// overrides apply.
var Presets = map[string]domain.ConfigOverrides{
	"full": {},
	"lean": {
		Levels:        []string{"campaign", "adset"},
		BreakdownKeys: []string{"none"},
	},
	"accounts": {
		Levels:        []string{"account"},
		BreakdownKeys: []string{"none", "country"},
	},
}

// ResolveRunnerConfig turns optional operator overrides into an always
// well-formed RunnerConfig. Invalid values are dropped silently; a
// dimension that filters down to nothing falls back to its full default
// set, never to an empty one.
func ResolveRunnerConfig(overrides domain.ConfigOverrides) domain.RunnerConfig {
	return domain.RunnerConfig{
		Levels:             resolveLevels(overrides.Levels),
		BreakdownKeys:      resolveBreakdownKeys(overrides.BreakdownKeys),
		ActionReportTimes:  resolveActionReportTimes(overrides.ActionReportTimes),
		AttributionWindows: resolveAttributionWindows(overrides.AttributionWindows),
	}
}

func resolveLevels(raw []string) []domain.Level {
	picked := filterKnown(raw, levelSet())
	if len(picked) == 0 {
		return append([]domain.Level(nil), domain.DefaultLevels...)
	}
	out := make([]domain.Level, 0, len(picked))
	for _, v := range domain.DefaultLevels {
		if picked[string(v)] {
			out = append(out, v)
		}
	}
	return out
}

func resolveBreakdownKeys(raw []string) []string {
	known := make(map[string]bool, len(domain.DefaultBreakdownKeys))
	for _, k := range domain.DefaultBreakdownKeys {
		known[k] = true
	}
	picked := filterKnown(raw, known)
	if len(picked) == 0 {
		return append([]string(nil), domain.DefaultBreakdownKeys...)
	}
	out := make([]string, 0, len(picked))
	for _, k := range domain.DefaultBreakdownKeys {
		if picked[k] {
			out = append(out, k)
		}
	}
	return out
}

func resolveActionReportTimes(raw []string) []domain.ActionReportTime {
	known := make(map[string]bool, len(domain.DefaultActionReportTimes))
	for _, v := range domain.DefaultActionReportTimes {
		known[string(v)] = true
	}
	picked := filterKnown(raw, known)
	if len(picked) == 0 {
		return append([]domain.ActionReportTime(nil), domain.DefaultActionReportTimes...)
	}
	out := make([]domain.ActionReportTime, 0, len(picked))
	for _, v := range domain.DefaultActionReportTimes {
		if picked[string(v)] {
			out = append(out, v)
		}
	}
	return out
}

func resolveAttributionWindows(raw []string) []domain.AttributionWindow {
	known := make(map[string]bool, len(domain.DefaultAttributionWindows))
	for _, v := range domain.DefaultAttributionWindows {
		known[string(v)] = true
	}
	picked := filterKnown(raw, known)
	if len(picked) == 0 {
		return append([]domain.AttributionWindow(nil), domain.DefaultAttributionWindows...)
	}
	out := make([]domain.AttributionWindow, 0, len(picked))
	for _, v := range domain.DefaultAttributionWindows {
		if picked[string(v)] {
			out = append(out, v)
		}
	}
	return out
}

func levelSet() map[string]bool {
	known := make(map[string]bool, len(domain.DefaultLevels))
	for _, v := range domain.DefaultLevels {
		known[string(v)] = true
	}
	return known
}

// filterKnown keeps only values present in known, deduplicated. Membership
// in the returned set is what matters; ordering comes from the defaults.
func filterKnown(raw []string, known map[string]bool) map[string]bool {
	picked := make(map[string]bool)
	for _, v := range raw {
		if known[v] {
			picked[v] = true
		}
	}
	return picked
}

// BuildMatrixCombinations expands the resolved configuration into the full
// deterministic cartesian product. Re-running a backfill always visits the
// same sequence, which keeps progress percentages stable across restarts.
func BuildMatrixCombinations(cfg domain.RunnerConfig) []domain.MatrixCombination {
	combos := make([]domain.MatrixCombination, 0,
		len(cfg.Levels)*len(cfg.BreakdownKeys)*len(cfg.ActionReportTimes)*len(cfg.AttributionWindows))

	for _, level := range cfg.Levels {
		for _, key := range cfg.BreakdownKeys {
			for _, art := range cfg.ActionReportTimes {
				for _, win := range cfg.AttributionWindows {
					combos = append(combos, domain.MatrixCombination{
						Level:             level,
						BreakdownKey:      key,
						Breakdowns:        domain.BreakdownPresets[key],
						ActionReportTime:  art,
						AttributionWindow: win,
					})
				}
			}
		}
	}

	return combos
}
