package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/argosaqua/argos/internal/aggregate"
	"github.com/argosaqua/argos/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

type startInferenceRequest struct {
	StartedAt       *string  `json:"started_at"`
	Species         *string  `json:"species"`
	BatchID         *string  `json:"batch_id"`
	Notes           *string  `json:"notes"`
	OperatorID      *string  `json:"operator_id"`
	TargetCount     *float64 `json:"target_count"`
	TargetBiomassKg *float64 `json:"target_biomass_kg"`
}

type endInferenceRequest struct {
	InferenceID    *string  `json:"inference_id"`
	EndedAt        *string  `json:"ended_at"`
	Reason         *string  `json:"reason"`
	FinalCount     *float64 `json:"final_count"`
	FinalBiomassKg *float64 `json:"final_biomass_kg"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		problem(w, http.StatusBadRequest, "Bad Request", "Request body contains invalid JSON")
		return false
	}
	return true
}

func handleStartInference(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startInferenceRequest
		if !decodeBody(w, r, &req) {
			return
		}

		var fe fieldErrors
		if req.StartedAt == nil {
			fe.add("started_at", "required")
		} else if !isISODateTime(*req.StartedAt) {
			fe.add("started_at", "must be an ISO-8601 datetime")
		}
		optionalString(req.Species, "species", 0, &fe)
		optionalString(req.BatchID, "batch_id", 0, &fe)
		optionalString(req.Notes, "notes", 2000, &fe)
		optionalString(req.OperatorID, "operator_id", 0, &fe)
		targetCount := optionalNonNegInt(req.TargetCount, "target_count", &fe)
		targetBiomass := optionalNonNegFloat(req.TargetBiomassKg, "target_biomass_kg", &fe)
		if !fe.ok() {
			fe.write(w)
			return
		}

		now := time.Now().UTC().Format(time.RFC3339)
		inf := storage.Inference{
			ID:              uuid.New().String(),
			MachineID:       machineIDFrom(r.Context()),
			Status:          storage.StatusRunning,
			StartedAt:       *req.StartedAt,
			Species:         req.Species,
			BatchID:         req.BatchID,
			Notes:           req.Notes,
			OperatorID:      req.OperatorID,
			TargetCount:     targetCount,
			TargetBiomassKg: targetBiomass,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := deps.Store.CreateInference(inf); err != nil {
			internalError(w)
			return
		}

		stored, err := deps.Store.GetInference(inf.ID)
		if err != nil {
			internalError(w)
			return
		}
		writeJSON(w, http.StatusCreated, stored)
	}
}

func handleEndInference(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req endInferenceRequest
		if !decodeBody(w, r, &req) {
			return
		}

		var fe fieldErrors
		if req.InferenceID == nil {
			fe.add("inference_id", "required")
		} else if !isUUID(*req.InferenceID) {
			fe.add("inference_id", "must be a UUID")
		}
		if req.EndedAt == nil {
			fe.add("ended_at", "required")
		} else if !isISODateTime(*req.EndedAt) {
			fe.add("ended_at", "must be an ISO-8601 datetime")
		}
		optionalString(req.Reason, "reason", 500, &fe)
		finalCount := optionalNonNegInt(req.FinalCount, "final_count", &fe)
		finalBiomass := optionalNonNegFloat(req.FinalBiomassKg, "final_biomass_kg", &fe)
		if !fe.ok() {
			fe.write(w)
			return
		}

		now := time.Now().UTC().Format(time.RFC3339)
		updated, err := deps.Store.EndInference(*req.InferenceID, *req.EndedAt, now, req.Reason, finalCount, finalBiomass)
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
		writeJSON(w, http.StatusOK, updated)
	}
}

func handleGetInference(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		inf, err := deps.Store.GetInference(id)
		if errors.Is(err, storage.ErrNotFound) {
			problem(w, http.StatusNotFound, "Not Found", "Inference not found")
			return
		}
		if err != nil {
			internalError(w)
			return
		}
		writeJSON(w, http.StatusOK, inf)
	}
}

func handleListInferences(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var fe fieldErrors
		status := q.Get("status")
		if status != "" && status != storage.StatusRunning && status != storage.StatusCompleted {
			fe.add("status", "must be one of running, completed")
		}
		limit := parseLimit(q, "limit", 500, &fe)
		if !fe.ok() {
			fe.write(w)
			return
		}

		items, err := deps.Store.ListInferences(storage.InferenceFilter{
			MachineID: q.Get("machine_id"),
			Status:    status,
			Limit:     limit,
		})
		if err != nil {
			internalError(w)
			return
		}
		if items == nil {
			items = []storage.Inference{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": items})
	}
}

func handleLatestInference(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latest, err := deps.Store.LatestInference(r.URL.Query().Get("machine_id"))
		if errors.Is(err, storage.ErrNotFound) {
			problem(w, http.StatusNotFound, "Not Found", "No inference found")
			return
		}
		if err != nil {
			internalError(w)
			return
		}

		counts, err := deps.Store.CountsForInference(latest.ID)
		if err != nil {
			internalError(w)
			return
		}
		writeJSON(w, http.StatusOK, aggregate.ForRun(latest, counts))
	}
}

func handleInferenceResults(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		inf, err := deps.Store.GetInference(id)
		if errors.Is(err, storage.ErrNotFound) {
			problem(w, http.StatusNotFound, "Not Found", "Inference not found")
			return
		}
		if err != nil {
			internalError(w)
			return
		}

		counts, err := deps.Store.CountsForInference(inf.ID)
		if err != nil {
			internalError(w)
			return
		}
		if counts == nil {
			counts = []storage.Count{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"inference": inf,
			"summary":   aggregate.Summarize(counts),
			"data":      counts,
		})
	}
}
