package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/argosaqua/argos/internal/storage"
)

type createCountRequest struct {
	InferenceID *string  `json:"inference_id"`
	CountedAt   *string  `json:"counted_at"`
	FishCount   *float64 `json:"fish_count"`
	BiomassKg   *float64 `json:"biomass_kg"`
	AvgWeightG  *float64 `json:"avg_weight_g"`
	Confidence  *float64 `json:"confidence"`
	FrameCount  *float64 `json:"frame_count"`
	Notes       *string  `json:"notes"`
}

func handleCreateCount(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCountRequest
		if !decodeBody(w, r, &req) {
			return
		}

		var fe fieldErrors
		if req.InferenceID == nil {
			fe.add("inference_id", "required")
		} else if !isUUID(*req.InferenceID) {
			fe.add("inference_id", "must be a UUID")
		}
		if req.CountedAt == nil {
			fe.add("counted_at", "required")
		} else if !isISODateTime(*req.CountedAt) {
			fe.add("counted_at", "must be an ISO-8601 datetime")
		}

		var fishCount int64
		if req.FishCount == nil {
			fe.add("fish_count", "required")
		} else if n, ok := asInt(*req.FishCount); !ok {
			fe.add("fish_count", "must be an integer")
		} else if n < 0 {
			fe.add("fish_count", "must be non-negative")
		} else {
			fishCount = n
		}

		var biomassKg float64
		if req.BiomassKg == nil {
			fe.add("biomass_kg", "required")
		} else if *req.BiomassKg < 0 {
			fe.add("biomass_kg", "must be non-negative")
		} else {
			biomassKg = *req.BiomassKg
		}

		avgWeight := optionalNonNegFloat(req.AvgWeightG, "avg_weight_g", &fe)
		if req.Confidence != nil && (*req.Confidence < 0 || *req.Confidence > 1) {
			fe.add("confidence", "must be between 0 and 1")
		}
		var frameCount *int64
		if req.FrameCount != nil {
			if n, ok := asInt(*req.FrameCount); !ok || n <= 0 {
				fe.add("frame_count", "must be a positive integer")
			} else {
				frameCount = &n
			}
		}
		optionalString(req.Notes, "notes", 1000, &fe)
		if !fe.ok() {
			fe.write(w)
			return
		}

		c := storage.Count{
			ID:          uuid.New().String(),
			InferenceID: *req.InferenceID,
			MachineID:   machineIDFrom(r.Context()),
			CountedAt:   *req.CountedAt,
			FishCount:   fishCount,
			BiomassKg:   biomassKg,
			AvgWeightG:  avgWeight,
			Confidence:  req.Confidence,
			FrameCount:  frameCount,
			Notes:       req.Notes,
			CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		}

		err := deps.Store.CreateCount(c)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			problem(w, http.StatusNotFound, "Not Found", "Inference not found")
			return
		case errors.Is(err, storage.ErrInferenceCompleted):
			problem(w, http.StatusConflict, "Conflict", "Inference already ended")
			return
		case err != nil:
			internalError(w)
			return
		}

		stored, err := deps.Store.GetCount(c.ID)
		if err != nil {
			internalError(w)
			return
		}
		writeJSON(w, http.StatusCreated, stored)
	}
}

func handleListCounts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var fe fieldErrors
		inferenceID := q.Get("inference_id")
		if inferenceID != "" && !isUUID(inferenceID) {
			fe.add("inference_id", "must be a UUID")
		}
		from := q.Get("from")
		if from != "" && !isISODateTime(from) {
			fe.add("from", "must be an ISO-8601 datetime")
		}
		to := q.Get("to")
		if to != "" && !isISODateTime(to) {
			fe.add("to", "must be an ISO-8601 datetime")
		}
		limit := parseLimit(q, "limit", 500, &fe)
		if !fe.ok() {
			fe.write(w)
			return
		}

		items, err := deps.Store.ListCounts(storage.CountFilter{
			InferenceID: inferenceID,
			MachineID:   q.Get("machine_id"),
			From:        from,
			To:          to,
			Limit:       limit,
		})
		if err != nil {
			internalError(w)
			return
		}
		if items == nil {
			items = []storage.Count{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": items})
	}
}
