// Package aggregate computes totals and last-value summaries over the
// measurements of an inference run.
package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/argosaqua/argos/internal/storage"
)

// Summary describes the measurements of one inference run: totals over all
// counts plus the chronologically last count. The last_* fields are null for
// a run without counts.
type Summary struct {
	TotalCount     int64    `json:"total_count"`
	TotalBiomassKg float64  `json:"total_biomass_kg"`
	LastCountedAt  *string  `json:"last_counted_at"`
	LastFishCount  *int64   `json:"last_fish_count"`
	LastBiomassKg  *float64 `json:"last_biomass_kg"`
}

// RunSummary is the latest-run view: inference identity and timestamps plus
// totals and the derived average fish weight.
type RunSummary struct {
	InferenceID    string   `json:"inference_id"`
	MachineID      string   `json:"machine_id"`
	StartedAt      string   `json:"started_at"`
	EndedAt        *string  `json:"ended_at"`
	TotalBiomassKg float64  `json:"total_biomass_kg"`
	TotalFishCount int64    `json:"total_fish_count"`
	AvgWeightG     *float64 `json:"avg_weight_g"`
}

// totals sums fish_count and biomass_kg over counts. Biomass is summed as
// decimals so many small increments never drift the way naive float64
// addition does.
func totals(counts []storage.Count) (int64, decimal.Decimal) {
	var fish int64
	biomass := decimal.Zero
	for _, c := range counts {
		fish += c.FishCount
		biomass = biomass.Add(decimal.NewFromFloat(c.BiomassKg))
	}
	return fish, biomass
}

// Summarize computes the summary for one run's counts. Order of the input
// does not matter; the "last" count is the one with the greatest counted_at
// (ISO-8601 strings compare lexically).
func Summarize(counts []storage.Count) Summary {
	fish, biomass := totals(counts)
	s := Summary{
		TotalCount:     fish,
		TotalBiomassKg: biomass.InexactFloat64(),
	}

	var last *storage.Count
	for i := range counts {
		if last == nil || counts[i].CountedAt >= last.CountedAt {
			last = &counts[i]
		}
	}
	if last != nil {
		s.LastCountedAt = &last.CountedAt
		s.LastFishCount = &last.FishCount
		s.LastBiomassKg = &last.BiomassKg
	}
	return s
}

// ForRun builds the latest-run summary for an inference and its counts.
// avg_weight_g = total_biomass_kg * 1000 / total_count, null when the run
// has no fish counted.
func ForRun(inf storage.Inference, counts []storage.Count) RunSummary {
	fish, biomass := totals(counts)
	rs := RunSummary{
		InferenceID:    inf.ID,
		MachineID:      inf.MachineID,
		StartedAt:      inf.StartedAt,
		EndedAt:        inf.EndedAt,
		TotalBiomassKg: biomass.InexactFloat64(),
		TotalFishCount: fish,
	}
	if fish > 0 {
		avg := biomass.Mul(decimal.NewFromInt(1000)).Div(decimal.NewFromInt(fish)).InexactFloat64()
		rs.AvgWeightG = &avg
	}
	return rs
}
