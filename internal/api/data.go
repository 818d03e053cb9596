package api

import (
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/argosaqua/argos/internal/storage"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

var dataRecordStatuses = map[string]bool{
	"PENDING":   true,
	"COMPLETED": true,
	"FAILED":    true,
}

// recordFields is the projection allowlist for data-record listings.
var recordFields = []string{"id", "value", "date", "status", "created_at"}

type createDataRecordRequest struct {
	Value  *string `json:"value"`
	Date   *string `json:"date"`
	Status *string `json:"status"`
}

func handleCreateDataRecord(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The declared media type must be JSON; this is a distinct failure
		// from schema validation.
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			problem(w, http.StatusBadRequest, "Bad Request", "Request body must be JSON (Content-Type: application/json)")
			return
		}

		var req createDataRecordRequest
		if !decodeBody(w, r, &req) {
			return
		}

		var fe fieldErrors
		if req.Value == nil || *req.Value == "" {
			fe.add("value", "must not be empty")
		}
		if req.Date == nil {
			fe.add("date", "required")
		} else if !dateRE.MatchString(*req.Date) {
			fe.add("date", "must be YYYY-MM-DD")
		}
		if req.Status != nil && !dataRecordStatuses[*req.Status] {
			fe.add("status", "must be one of PENDING, COMPLETED, FAILED")
		}
		if !fe.ok() {
			fe.write(w)
			return
		}

		rec, err := deps.Store.InsertDataRecord(
			Sanitize(*req.Value),
			*req.Date,
			req.Status,
			time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			internalError(w)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

type pageMeta struct {
	PageSize   int    `json:"page_size"`
	NextCursor *int64 `json:"next_cursor"`
}

type pageLinks struct {
	Self string  `json:"self"`
	Next *string `json:"next"`
}

func handleListDataRecords(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var fe fieldErrors
		pageSize := parseLimit(q, "page_size", maxPageSize, &fe)
		if pageSize == 0 {
			pageSize = defaultPageSize
		}

		var cursor int64
		if s := q.Get("cursor"); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil || v < 0 {
				fe.add("cursor", "must be a non-negative integer")
			} else {
				cursor = v
			}
		}
		if !fe.ok() {
			fe.write(w)
			return
		}

		records, err := deps.Store.ListDataRecords(cursor, pageSize)
		if err != nil {
			internalError(w)
			return
		}

		fields := parseFieldsParam(q.Get("fields"))
		data := make([]map[string]any, 0, len(records))
		for _, rec := range records {
			data = append(data, projectRecord(rec, fields))
		}

		// A full page signals a possible next page; a short page ends the
		// walk. When the total is an exact multiple of page_size the final
		// full page still reports a next_cursor whose page turns out empty.
		// Known boundary behavior, kept as-is.
		meta := pageMeta{PageSize: pageSize}
		links := pageLinks{Self: r.URL.RequestURI()}
		if len(records) == pageSize {
			last := records[len(records)-1].ID
			meta.NextCursor = &last

			nextQuery := r.URL.Query()
			nextQuery.Set("cursor", strconv.FormatInt(last, 10))
			next := r.URL.Path + "?" + nextQuery.Encode()
			links.Next = &next
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"data":  data,
			"meta":  meta,
			"links": links,
		})
	}
}

// parseFieldsParam resolves the caller's projection against the allowlist.
// id is always included; an empty or fully-invalid list falls back to the
// full projection.
func parseFieldsParam(raw string) []string {
	if raw == "" {
		return recordFields
	}

	allowed := make(map[string]bool, len(recordFields))
	for _, f := range recordFields {
		allowed[f] = true
	}

	var selected []string
	seen := map[string]bool{}
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if allowed[f] && !seen[f] {
			selected = append(selected, f)
			seen[f] = true
		}
	}
	if len(selected) == 0 {
		return recordFields
	}
	if !seen["id"] {
		selected = append([]string{"id"}, selected...)
	}
	return selected
}

func projectRecord(rec storage.DataRecord, fields []string) map[string]any {
	row := make(map[string]any, len(fields))
	for _, f := range fields {
		switch f {
		case "id":
			row["id"] = rec.ID
		case "value":
			row["value"] = rec.Value
		case "date":
			row["date"] = rec.Date
		case "status":
			row["status"] = rec.Status
		case "created_at":
			row["created_at"] = rec.CreatedAt
		}
	}
	return row
}
