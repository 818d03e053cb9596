package storage

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInferenceCompleted is returned when an operation targets an inference
// that has already transitioned to the completed state.
var ErrInferenceCompleted = errors.New("inference already completed")

// Inference status values. An inference starts as running and transitions
// exactly once to completed.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

// Inference is one bounded monitoring session on a machine.
// Timestamps are stored as ISO-8601 strings exactly as supplied; server-side
// timestamps (created_at, updated_at) are RFC3339 UTC.
type Inference struct {
	ID              string   `json:"id"`
	MachineID       string   `json:"machine_id"`
	Status          string   `json:"status"`
	StartedAt       string   `json:"started_at"`
	EndedAt         *string  `json:"ended_at"`
	Species         *string  `json:"species"`
	BatchID         *string  `json:"batch_id"`
	Notes           *string  `json:"notes"`
	OperatorID      *string  `json:"operator_id"`
	TargetCount     *int64   `json:"target_count"`
	TargetBiomassKg *float64 `json:"target_biomass_kg"`
	EndReason       *string  `json:"end_reason"`
	FinalCount      *int64   `json:"final_count"`
	FinalBiomassKg  *float64 `json:"final_biomass_kg"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

// Count is one timestamped fish-count/biomass measurement within a run.
// Counts are immutable once created.
type Count struct {
	ID          string   `json:"id"`
	InferenceID string   `json:"inference_id"`
	MachineID   string   `json:"machine_id"`
	CountedAt   string   `json:"counted_at"`
	FishCount   int64    `json:"fish_count"`
	BiomassKg   float64  `json:"biomass_kg"`
	AvgWeightG  *float64 `json:"avg_weight_g"`
	Confidence  *float64 `json:"confidence"`
	FrameCount  *int64   `json:"frame_count"`
	Notes       *string  `json:"notes"`
	CreatedAt   string   `json:"created_at"`
}

// DataRecord is the auxiliary generic resource. Its integer primary key is
// strictly increasing and doubles as the pagination cursor.
type DataRecord struct {
	ID        int64   `json:"id"`
	Value     string  `json:"value"`
	Date      string  `json:"date"`
	Status    *string `json:"status"`
	CreatedAt string  `json:"created_at"`
}

// InferenceFilter narrows ListInferences. Zero values mean "no filter";
// Limit <= 0 returns all matches.
type InferenceFilter struct {
	MachineID string
	Status    string
	Limit     int
}

// CountFilter narrows ListCounts. From/To bound counted_at inclusively
// (lexical ISO-8601 comparison).
type CountFilter struct {
	InferenceID string
	MachineID   string
	From        string
	To          string
	Limit       int
}
