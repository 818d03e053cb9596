package aggregate

import (
	"math/rand"
	"testing"

	"github.com/argosaqua/argos/internal/storage"
)

func count(countedAt string, fish int64, biomass float64) storage.Count {
	return storage.Count{CountedAt: countedAt, FishCount: fish, BiomassKg: biomass}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)

	if s.TotalCount != 0 {
		t.Errorf("TotalCount = %d, want 0", s.TotalCount)
	}
	if s.TotalBiomassKg != 0 {
		t.Errorf("TotalBiomassKg = %v, want 0", s.TotalBiomassKg)
	}
	if s.LastCountedAt != nil || s.LastFishCount != nil || s.LastBiomassKg != nil {
		t.Errorf("last fields should all be nil for empty input: %+v", s)
	}
}

func TestSummarize_Totals(t *testing.T) {
	counts := []storage.Count{
		count("2026-02-07T10:00:00Z", 10, 5.5),
		count("2026-02-07T10:05:00Z", 20, 4.5),
		count("2026-02-07T10:10:00Z", 5, 2),
	}

	s := Summarize(counts)
	if s.TotalCount != 35 {
		t.Errorf("TotalCount = %d, want 35", s.TotalCount)
	}
	if s.TotalBiomassKg != 12 {
		t.Errorf("TotalBiomassKg = %v, want 12", s.TotalBiomassKg)
	}
	if s.LastCountedAt == nil || *s.LastCountedAt != "2026-02-07T10:10:00Z" {
		t.Errorf("LastCountedAt = %v, want 2026-02-07T10:10:00Z", s.LastCountedAt)
	}
	if s.LastFishCount == nil || *s.LastFishCount != 5 {
		t.Errorf("LastFishCount = %v, want 5", s.LastFishCount)
	}
	if s.LastBiomassKg == nil || *s.LastBiomassKg != 2 {
		t.Errorf("LastBiomassKg = %v, want 2", s.LastBiomassKg)
	}
}

// TestSummarize_NoFloatDrift sums many small increments; 0.1 added a thousand
// times must come out as exactly 100.
func TestSummarize_NoFloatDrift(t *testing.T) {
	var counts []storage.Count
	for i := 0; i < 1000; i++ {
		counts = append(counts, count("2026-02-07T10:00:00Z", 1, 0.1))
	}

	s := Summarize(counts)
	if s.TotalBiomassKg != 100 {
		t.Errorf("TotalBiomassKg = %v, want exactly 100", s.TotalBiomassKg)
	}
}

// TestSummarize_OrderIndependent shuffles the input and checks the totals and
// last-value selection are unchanged.
func TestSummarize_OrderIndependent(t *testing.T) {
	counts := []storage.Count{
		count("2026-02-07T10:00:00Z", 1, 1.1),
		count("2026-02-07T10:05:00Z", 2, 2.2),
		count("2026-02-07T10:10:00Z", 3, 3.3),
		count("2026-02-07T10:15:00Z", 4, 4.4),
	}
	want := Summarize(counts)

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		shuffled := make([]storage.Count, len(counts))
		copy(shuffled, counts)
		r.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got := Summarize(shuffled)
		if got.TotalCount != want.TotalCount || got.TotalBiomassKg != want.TotalBiomassKg {
			t.Fatalf("totals changed with order: got %+v, want %+v", got, want)
		}
		if *got.LastCountedAt != *want.LastCountedAt {
			t.Fatalf("last counted_at changed with order: %q vs %q", *got.LastCountedAt, *want.LastCountedAt)
		}
	}
}

func TestForRun_AvgWeight(t *testing.T) {
	inf := storage.Inference{ID: "inf-1", MachineID: "machine-1", StartedAt: "2026-02-07T10:00:00Z"}
	counts := []storage.Count{
		count("2026-02-07T10:05:00Z", 100, 20),
		count("2026-02-07T10:10:00Z", 100, 30),
	}

	rs := ForRun(inf, counts)
	if rs.TotalFishCount != 200 {
		t.Errorf("TotalFishCount = %d, want 200", rs.TotalFishCount)
	}
	if rs.TotalBiomassKg != 50 {
		t.Errorf("TotalBiomassKg = %v, want 50", rs.TotalBiomassKg)
	}
	// 50 kg over 200 fish = 250 g each.
	if rs.AvgWeightG == nil || *rs.AvgWeightG != 250 {
		t.Errorf("AvgWeightG = %v, want 250", rs.AvgWeightG)
	}
}

func TestForRun_NoCounts(t *testing.T) {
	inf := storage.Inference{ID: "inf-1", MachineID: "machine-1", StartedAt: "2026-02-07T10:00:00Z"}

	rs := ForRun(inf, nil)
	if rs.TotalFishCount != 0 || rs.TotalBiomassKg != 0 {
		t.Errorf("totals = %d/%v, want 0/0", rs.TotalFishCount, rs.TotalBiomassKg)
	}
	if rs.AvgWeightG != nil {
		t.Errorf("AvgWeightG = %v, want nil when no fish counted", *rs.AvgWeightG)
	}
}
