package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// problemBody is the RFC7807-style error shape every failure response uses.
type problemBody struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func problem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(problemBody{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// internalError hides storage failures behind a fixed detail string.
func internalError(w http.ResponseWriter) {
	problem(w, http.StatusInternalServerError, "Internal Server Error", "Database error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// fieldErrors collects schema-validation failures as "path: message" pairs.
// The resulting 400 detail joins them with "; ".
type fieldErrors struct {
	errs []string
}

func (f *fieldErrors) add(path, msg string) {
	f.errs = append(f.errs, path+": "+msg)
}

func (f *fieldErrors) ok() bool {
	return len(f.errs) == 0
}

func (f *fieldErrors) write(w http.ResponseWriter) {
	problem(w, http.StatusBadRequest, "Bad Request", strings.Join(f.errs, "; "))
}
