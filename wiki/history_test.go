package wiki

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// historyServer serves revisions newest-first in pages of perPage. Revision ids
// count down from total; rvcontinue carries the next id to return.
func historyServer(t *testing.T, total, perPage int) *fakeTransport {
	t.Helper()
	return &fakeTransport{
		handle: func(_ int, _ string, params url.Values) (int, string) {
			start := total
			if rc := params.Get("rvcontinue"); rc != "" {
				if _, err := fmt.Sscanf(rc, "20240101000000|%d", &start); err != nil {
					t.Errorf("bad rvcontinue %q", rc)
				}
			}

			revs := []map[string]any{}
			id := start
			for ; id > 0 && len(revs) < perPage; id-- {
				revs = append(revs, map[string]any{
					"revid":     id,
					"parentid":  id - 1,
					"user":      fmt.Sprintf("User%d", id%3),
					"timestamp": fmt.Sprintf("2024-01-01T00:%02d:00Z", id%60),
					"comment":   fmt.Sprintf("edit %d", id),
					"size":      100 + id,
					"tags":      []string{},
				})
			}

			body := map[string]any{
				"query": map[string]any{
					"pages": map[string]any{
						"42": map[string]any{"pageid": 42, "ns": 0, "title": "Sandbox", "revisions": revs},
					},
				},
			}
			if id > 0 {
				body["continue"] = map[string]any{
					"rvcontinue": fmt.Sprintf("20240101000000|%d", id),
					"continue":   "||",
				}
			}
			return http.StatusOK, mustJSON(t, body)
		},
	}
}

func TestHistory_Pagination(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		perPage   int
		count     int
		wantRevs  int
		wantCalls int
	}{
		{"six per page, ten requested", 50, 6, 10, 10, 2},
		{"first page satisfies count", 50, 20, 10, 10, 1},
		{"history shorter than count", 7, 5, 100, 7, 2},
		{"exact multiple", 12, 6, 12, 12, 2},
		{"single revision", 1, 6, 5, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := historyServer(t, tt.total, tt.perPage)
			bot := newTestBot(t, tr)

			h, err := await(t, bot.History("Sandbox", tt.count))
			if err != nil {
				t.Fatalf("History failed: %v", err)
			}
			if len(h.Revisions) != tt.wantRevs {
				t.Errorf("revisions = %d, want %d", len(h.Revisions), tt.wantRevs)
			}
			if got := len(tr.requests()); got != tt.wantCalls {
				t.Errorf("requests = %d, want %d", got, tt.wantCalls)
			}
			if h.Title != "Sandbox" {
				t.Errorf("title = %q, want Sandbox", h.Title)
			}

			// Server order is preserved across pages.
			for i, rev := range h.Revisions {
				if want := tt.total - i; rev.RevID != want {
					t.Errorf("revision %d id = %d, want %d", i, rev.RevID, want)
					break
				}
			}
		})
	}
}

func TestHistory_RequestParams(t *testing.T) {
	tr := historyServer(t, 50, 6)
	bot := newTestBot(t, tr)

	if _, err := await(t, bot.History("Sandbox", 10)); err != nil {
		t.Fatalf("History failed: %v", err)
	}

	reqs := tr.requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}

	first := reqs[0].Params
	want := map[string]string{
		"action":   "query",
		"prop":     "revisions",
		"titles":   "Sandbox",
		"rvprop":   "timestamp|user|ids|comment|size|tags",
		"rvlimit":  "10",
		"continue": "",
		"format":   "json",
	}
	for k, v := range want {
		if !first.Has(k) || first.Get(k) != v {
			t.Errorf("first request %s = %q, want %q", k, first.Get(k), v)
		}
	}
	if first.Has("rvcontinue") {
		t.Error("first request should not carry rvcontinue")
	}

	second := reqs[1].Params
	if got := second.Get("rvcontinue"); got != "20240101000000|44" {
		t.Errorf("second rvcontinue = %q", got)
	}
	if got := second.Get("continue"); got != "||" {
		t.Errorf("second continue = %q, want ||", got)
	}
}

func TestHistory_ContinuationIsPriority(t *testing.T) {
	tr := historyServer(t, 50, 6)
	bot := newTestBot(t, tr)

	history := bot.History("Sandbox", 10)
	other := bot.Name()

	if _, err := await(t, history); err != nil {
		t.Fatalf("History failed: %v", err)
	}
	_, _ = await(t, other)

	reqs := tr.requests()
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(reqs))
	}
	if !reqs[1].Params.Has("rvcontinue") {
		t.Errorf("continuation should run before queued work, got order %v", actions(reqs))
	}
	if reqs[2].Params.Get("meta") != "userinfo" {
		t.Errorf("unrelated request should run last, got %v", reqs[2].Params)
	}
}

func TestHistory_LimitCapped(t *testing.T) {
	tr := historyServer(t, 3, 500)
	bot := newTestBot(t, tr)

	if _, err := await(t, bot.History("Sandbox", 5000)); err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if got := tr.requests()[0].Params.Get("rvlimit"); got != "500" {
		t.Errorf("rvlimit = %q, want 500", got)
	}
}

func TestHistory_InvalidCount(t *testing.T) {
	tr := scripted()
	bot := newTestBot(t, tr)

	for _, count := range []int{0, -3} {
		if _, err := await(t, bot.History("Sandbox", count)); !IsValidation(err) {
			t.Errorf("count %d: error = %v, want ValidationError", count, err)
		}
	}
	if _, err := await(t, bot.History("", 5)); !IsValidation(err) {
		t.Errorf("empty title: error = %v, want ValidationError", err)
	}
	if n := len(tr.requests()); n != 0 {
		t.Errorf("invalid input should not reach the wire, got %d requests", n)
	}
}

func TestHistory_ErrorOnSecondPage(t *testing.T) {
	pages := historyServer(t, 50, 6)
	tr := &fakeTransport{
		handle: func(n int, method string, params url.Values) (int, string) {
			if n == 1 {
				return http.StatusInternalServerError, "upstream failure"
			}
			return pages.handle(n, method, params)
		},
	}
	bot := newTestBot(t, tr)

	_, err := await(t, bot.History("Sandbox", 10))
	if StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("error = %v, want HTTP 500", err)
	}
	if got := len(tr.requests()); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestHistory_MissingPage(t *testing.T) {
	bot := newTestBot(t, scripted(`{"query":{"pages":{"-1":{"ns":0,"title":"Ghost","missing":""}}}}`))

	_, err := await(t, bot.History("Ghost", 5))
	if ProtocolCode(err) != "missingtitle" {
		t.Errorf("error = %v, want missingtitle", err)
	}
}

func TestHistory_RevisionFields(t *testing.T) {
	body := `{"query":{"pages":{"9":{"pageid":9,"ns":0,"title":"Sandbox","revisions":[
		{"revid":101,"parentid":100,"user":"Alice","timestamp":"2024-05-01T10:00:00Z",
		 "comment":"typo","size":2048,"tags":["mobile edit"]}]}}}}`
	bot := newTestBot(t, scripted(body))

	h, err := await(t, bot.History("Sandbox", 1))
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	want := []Revision{{
		RevID:     101,
		ParentID:  100,
		User:      "Alice",
		Timestamp: "2024-05-01T10:00:00Z",
		Comment:   "typo",
		Size:      2048,
		Tags:      []string{"mobile edit"},
	}}
	if diff := cmp.Diff(want, h.Revisions); diff != "" {
		t.Errorf("revisions mismatch (-want +got):\n%s", diff)
	}
}
