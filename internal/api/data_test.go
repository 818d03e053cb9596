package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/argosaqua/argos/internal/storage"
)

type dataPage struct {
	Data []map[string]any `json:"data"`
	Meta struct {
		PageSize   int    `json:"page_size"`
		NextCursor *int64 `json:"next_cursor"`
	} `json:"meta"`
	Links struct {
		Self string  `json:"self"`
		Next *string `json:"next"`
	} `json:"links"`
}

func postRecord(t *testing.T, h http.Handler, body string) storage.DataRecord {
	t.Helper()
	rr := do(t, h, authReq(http.MethodPost, "/v1/data-records", body))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create record: status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var rec storage.DataRecord
	decodeJSON(t, rr, &rec)
	return rec
}

func TestCreateDataRecord(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := postRecord(t, h, `{"value":"reading-42","date":"2026-02-07","status":"PENDING"}`)
	if rec.ID == 0 {
		t.Error("id not assigned")
	}
	if rec.Value != "reading-42" {
		t.Errorf("value = %q", rec.Value)
	}
	if rec.Status == nil || *rec.Status != "PENDING" {
		t.Errorf("status = %v, want PENDING", rec.Status)
	}
	if rec.CreatedAt == "" {
		t.Error("created_at not assigned")
	}
}

// The declared content type must be JSON; this failure is distinct from
// schema validation.
func TestCreateDataRecord_RequiresJSONContentType(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/data-records", strings.NewReader(`{"value":"v","date":"2026-02-07"}`))
	req.Header.Set(apiKeyHeader, testKey)
	req.Header.Set("Content-Type", "text/plain")
	rr := do(t, h, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	var p problemBody
	decodeJSON(t, rr, &p)
	if !strings.Contains(p.Detail, "Content-Type") {
		t.Errorf("detail = %q, want content-type message", p.Detail)
	}
}

func TestCreateDataRecord_CharsetParamAccepted(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/data-records", strings.NewReader(`{"value":"v","date":"2026-02-07"}`))
	req.Header.Set(apiKeyHeader, testKey)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if rr := do(t, h, req); rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rr.Code)
	}
}

func TestCreateDataRecord_SanitizesValue(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := postRecord(t, h, `{"value":"<script>alert('x')</script>","date":"2026-02-07"}`)
	want := "&lt;script&gt;alert(&#39;x&#39;)&lt;/script&gt;"
	if rec.Value != want {
		t.Errorf("value = %q, want %q", rec.Value, want)
	}
	// The stored value contains no raw reserved characters.
	if strings.ContainsAny(rec.Value, `<>"'`) {
		t.Errorf("stored value %q still contains raw reserved characters", rec.Value)
	}
}

func TestCreateDataRecord_Validation(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := do(t, h, authReq(http.MethodPost, "/v1/data-records", `{"value":"","date":"07-02-2026","status":"DONE"}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	var p problemBody
	decodeJSON(t, rr, &p)
	for _, want := range []string{"value", "date", "status"} {
		if !strings.Contains(p.Detail, want) {
			t.Errorf("detail %q missing field %q", p.Detail, want)
		}
	}
}

func TestListDataRecords_PageAndCursor(t *testing.T) {
	h, _ := newTestHandler(t)

	for i := 0; i < 3; i++ {
		postRecord(t, h, fmt.Sprintf(`{"value":"v%d","date":"2026-02-07"}`, i))
	}

	rr := do(t, h, authReq(http.MethodGet, "/v1/data-records?page_size=2", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var page dataPage
	decodeJSON(t, rr, &page)
	if len(page.Data) != 2 {
		t.Fatalf("len(data) = %d, want 2", len(page.Data))
	}
	if page.Meta.PageSize != 2 {
		t.Errorf("meta.page_size = %d, want 2", page.Meta.PageSize)
	}
	if page.Meta.NextCursor == nil {
		t.Fatal("meta.next_cursor is null, want last row id")
	}
	if page.Links.Next == nil {
		t.Fatal("links.next is null")
	}
	if !strings.Contains(*page.Links.Next, "cursor=") {
		t.Errorf("links.next = %q, want cursor parameter", *page.Links.Next)
	}

	// Follow the next link: one remaining row, then the walk ends.
	rr = do(t, h, authReq(http.MethodGet, *page.Links.Next, ""))
	var page2 dataPage
	decodeJSON(t, rr, &page2)
	if len(page2.Data) != 1 {
		t.Fatalf("second page len = %d, want 1", len(page2.Data))
	}
	if page2.Meta.NextCursor != nil {
		t.Errorf("second page next_cursor = %v, want null", *page2.Meta.NextCursor)
	}
	if page2.Links.Next != nil {
		t.Errorf("second page links.next = %v, want null", *page2.Links.Next)
	}
}

// TestListDataRecords_FullWalk enumerates every record exactly once in
// ascending id order by following next cursors.
func TestListDataRecords_FullWalk(t *testing.T) {
	h, _ := newTestHandler(t)

	const n = 5
	for i := 0; i < n; i++ {
		postRecord(t, h, fmt.Sprintf(`{"value":"v%d","date":"2026-02-07"}`, i))
	}

	seen := map[float64]bool{}
	var lastID float64 = -1
	url := "/v1/data-records?page_size=2"
	for url != "" {
		rr := do(t, h, authReq(http.MethodGet, url, ""))
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		var page dataPage
		decodeJSON(t, rr, &page)

		for _, row := range page.Data {
			id, ok := row["id"].(float64)
			if !ok {
				t.Fatalf("row missing id: %v", row)
			}
			if seen[id] {
				t.Fatalf("id %v returned twice", id)
			}
			if id <= lastID {
				t.Fatalf("ids not strictly ascending: %v after %v", id, lastID)
			}
			seen[id] = true
			lastID = id
		}

		if page.Links.Next != nil {
			url = *page.Links.Next
		} else {
			url = ""
		}
	}

	if len(seen) != n {
		t.Errorf("enumerated %d records, want %d", len(seen), n)
	}
}

func TestListDataRecords_DefaultsAndCap(t *testing.T) {
	h, _ := newTestHandler(t)
	postRecord(t, h, `{"value":"v","date":"2026-02-07"}`)

	rr := do(t, h, authReq(http.MethodGet, "/v1/data-records", ""))
	var page dataPage
	decodeJSON(t, rr, &page)
	if page.Meta.PageSize != 10 {
		t.Errorf("default page_size = %d, want 10", page.Meta.PageSize)
	}

	if rr := do(t, h, authReq(http.MethodGet, "/v1/data-records?page_size=101", "")); rr.Code != http.StatusBadRequest {
		t.Errorf("page_size over cap: status = %d, want 400", rr.Code)
	}
	if rr := do(t, h, authReq(http.MethodGet, "/v1/data-records?cursor=abc", "")); rr.Code != http.StatusBadRequest {
		t.Errorf("non-integer cursor: status = %d, want 400", rr.Code)
	}
}

func TestListDataRecords_FieldsProjection(t *testing.T) {
	h, _ := newTestHandler(t)
	postRecord(t, h, `{"value":"v","date":"2026-02-07"}`)

	// id is force-included even when omitted; unknown fields are dropped.
	rr := do(t, h, authReq(http.MethodGet, "/v1/data-records?fields=value,bogus", ""))
	var page dataPage
	decodeJSON(t, rr, &page)
	if len(page.Data) != 1 {
		t.Fatalf("len(data) = %d, want 1", len(page.Data))
	}
	row := page.Data[0]
	if _, ok := row["id"]; !ok {
		t.Error("id missing from projected row")
	}
	if _, ok := row["value"]; !ok {
		t.Error("value missing from projected row")
	}
	if _, ok := row["date"]; ok {
		t.Error("date should not be in projected row")
	}

	// A fully-invalid field list falls back to the full projection.
	rr = do(t, h, authReq(http.MethodGet, "/v1/data-records?fields=bogus,nope", ""))
	decodeJSON(t, rr, &page)
	row = page.Data[0]
	for _, f := range []string{"id", "value", "date", "status", "created_at"} {
		if _, ok := row[f]; !ok {
			t.Errorf("full projection missing %q", f)
		}
	}
}
