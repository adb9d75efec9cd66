package wiki

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// editServer hands out a distinct token and timestamps for each metadata
// request and accepts every save.
func editServer(t *testing.T) *fakeTransport {
	t.Helper()
	var mu sync.Mutex
	issued := 0
	return &fakeTransport{
		handle: func(n int, method string, params url.Values) (int, string) {
			switch params.Get("action") {
			case "query":
				mu.Lock()
				issued++
				k := issued
				mu.Unlock()
				return http.StatusOK, fmt.Sprintf(`{"query":{"pages":{"7":{
					"pageid":7,"ns":0,"title":%q,
					"edittoken":"token-%d+\\",
					"starttimestamp":"2024-06-01T00:00:0%dZ",
					"revisions":[{"revid":%d,"timestamp":"2024-05-0%dT12:00:00Z"}]}}}}`,
					params.Get("titles"), k, k, 100+k, k)
			case "edit":
				return http.StatusOK, fmt.Sprintf(`{"edit":{"result":"Success","pageid":7,"title":%q,
					"oldrevid":100,"newrevid":%d,"newtimestamp":"2024-06-01T00:01:00Z"}}`,
					params.Get("title"), 200+n)
			}
			t.Errorf("unexpected action %q", params.Get("action"))
			return http.StatusBadRequest, ""
		},
	}
}

func TestEdit(t *testing.T) {
	tr := editServer(t)
	bot := newTestBot(t, tr)

	res, err := await(t, bot.Edit("Sandbox", "new text", "cleanup"))
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if res.Title != "Sandbox" || res.NewRevID != 201 || res.NewTimestamp != "2024-06-01T00:01:00Z" {
		t.Errorf("unexpected result: %+v", res)
	}

	reqs := tr.requests()
	if diff := cmp.Diff([]string{"GET query", "POST edit"}, actions(reqs)); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}

	meta := reqs[0].Params
	if meta.Get("prop") != "info|revisions" || meta.Get("intoken") != "edit" || meta.Get("titles") != "Sandbox" ||
		meta.Get("meta") != "tokens" {
		t.Errorf("unexpected metadata params: %v", meta)
	}

	save := reqs[1].Params
	want := map[string]string{
		"title":          "Sandbox",
		"text":           "new text",
		"summary":        "cleanup " + DefaultByeline,
		"token":          "token-1+\\",
		"bot":            "true",
		"basetimestamp":  "2024-05-01T12:00:00Z",
		"starttimestamp": "2024-06-01T00:00:01Z",
	}
	for k, v := range want {
		if got := save.Get(k); got != v {
			t.Errorf("save %s = %q, want %q", k, got, v)
		}
	}
	if save.Has("section") {
		t.Error("full-page edit should not set section")
	}
}

func TestEdit_NoByeline(t *testing.T) {
	tr := editServer(t)
	cfg := testConfig()
	cfg.NoByeline = true
	bot, err := New(cfg, WithTransport(tr), WithLogger(quietLogger()), WithInterval(0))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer bot.Close()

	if _, err := await(t, bot.Edit("Sandbox", "text", "summary only")); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if got := tr.requests()[1].Params.Get("summary"); got != "summary only" {
		t.Errorf("summary = %q, want %q", got, "summary only")
	}
}

func TestAdd(t *testing.T) {
	tr := editServer(t)
	bot := newTestBot(t, tr)

	if _, err := await(t, bot.Add("Talk:Sandbox", "New topic", "Some words. ~~~~")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	save := tr.requests()[1].Params
	if save.Get("section") != "new" {
		t.Errorf("section = %q, want new", save.Get("section"))
	}
	if save.Get("summary") != "New topic" {
		t.Errorf("summary = %q, want heading without byeline", save.Get("summary"))
	}
	if save.Get("text") != "Some words. ~~~~" {
		t.Errorf("text = %q", save.Get("text"))
	}
}

func TestEdit_TokenFreshness(t *testing.T) {
	tr := editServer(t)
	bot := newTestBot(t, tr)

	first := bot.Edit("Alpha", "a", "")
	second := bot.Edit("Beta", "b", "")

	if _, err := await(t, first); err != nil {
		t.Fatalf("first edit failed: %v", err)
	}
	if _, err := await(t, second); err != nil {
		t.Fatalf("second edit failed: %v", err)
	}

	reqs := tr.requests()
	if diff := cmp.Diff([]string{"GET query", "POST edit", "GET query", "POST edit"}, actions(reqs)); diff != "" {
		t.Fatalf("request order mismatch (-want +got):\n%s", diff)
	}
	// Each save uses the token and timestamps of its own metadata response.
	for i, title := range []string{"Alpha", "Beta"} {
		save := reqs[2*i+1].Params
		k := i + 1
		if save.Get("title") != title {
			t.Errorf("save %d title = %q, want %q", k, save.Get("title"), title)
		}
		if want := fmt.Sprintf("token-%d+\\", k); save.Get("token") != want {
			t.Errorf("save %d token = %q, want %q", k, save.Get("token"), want)
		}
		if want := fmt.Sprintf("2024-05-0%dT12:00:00Z", k); save.Get("basetimestamp") != want {
			t.Errorf("save %d basetimestamp = %q, want %q", k, save.Get("basetimestamp"), want)
		}
		if want := fmt.Sprintf("2024-06-01T00:00:0%dZ", k); save.Get("starttimestamp") != want {
			t.Errorf("save %d starttimestamp = %q, want %q", k, save.Get("starttimestamp"), want)
		}
	}
}

func TestEdit_CreatePageOmitsBaseTimestamp(t *testing.T) {
	tr := scripted(
		`{"query":{"pages":{"-1":{"ns":0,"title":"Brand New","missing":"","edittoken":"tok+\\","starttimestamp":"2024-06-01T00:00:00Z"}}}}`,
		`{"edit":{"result":"Success","pageid":99,"title":"Brand New","new":"","newrevid":1,"newtimestamp":"2024-06-01T00:00:05Z"}}`,
	)
	bot := newTestBot(t, tr)

	res, err := await(t, bot.Edit("Brand New", "first text", "create"))
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if res.NewRevID != 1 {
		t.Errorf("newrevid = %d, want 1", res.NewRevID)
	}
	save := tr.requests()[1].Params
	if save.Has("basetimestamp") {
		t.Errorf("page creation should not send basetimestamp, got %q", save.Get("basetimestamp"))
	}
	if save.Get("starttimestamp") != "2024-06-01T00:00:00Z" {
		t.Errorf("starttimestamp = %q", save.Get("starttimestamp"))
	}
}

func TestEdit_CSRFTokenFallback(t *testing.T) {
	tr := scripted(
		`{"query":{"tokens":{"csrftoken":"csrf+\\"},"pages":{"7":{"pageid":7,"ns":0,"title":"Sandbox","revisions":[{"timestamp":"2024-05-01T12:00:00Z"}]}}}}`,
		`{"edit":{"result":"Success","title":"Sandbox","newrevid":5}}`,
	)
	bot := newTestBot(t, tr)

	if _, err := await(t, bot.Edit("Sandbox", "x", "y")); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if got := tr.requests()[1].Params.Get("token"); got != "csrf+\\" {
		t.Errorf("token = %q, want csrf token", got)
	}
}

func TestEdit_Failures(t *testing.T) {
	meta := `{"query":{"pages":{"7":{"pageid":7,"ns":0,"title":"Sandbox","edittoken":"tok+\\","starttimestamp":"2024-06-01T00:00:00Z","revisions":[{"timestamp":"2024-05-01T12:00:00Z"}]}}}}`

	tests := []struct {
		name       string
		bodies     []string
		status     []int // per request; zero means 200
		check      func(error) bool
		wantCode   string
		wantStatus int
		wantCalls  int
	}{
		{
			name:       "metadata server error",
			bodies:     []string{`<html>Internal Server Error</html>`},
			status:     []int{http.StatusInternalServerError},
			check:      IsTransport,
			wantStatus: http.StatusInternalServerError,
			wantCalls:  1,
		},
		{
			name:       "save server error",
			bodies:     []string{meta, `<html>Internal Server Error</html>`},
			status:     []int{0, http.StatusInternalServerError},
			check:      IsTransport,
			wantStatus: http.StatusInternalServerError,
			wantCalls:  2,
		},
		{
			name:      "no token",
			bodies:    []string{`{"query":{"pages":{"7":{"pageid":7,"ns":0,"title":"Sandbox","revisions":[{"timestamp":"2024-05-01T12:00:00Z"}]}}}}`},
			check:     IsProtocol,
			wantCode:  "notoken",
			wantCalls: 1,
		},
		{
			name:      "anonymous token",
			bodies:    []string{`{"query":{"pages":{"7":{"pageid":7,"ns":0,"title":"Sandbox","edittoken":"+\\"}}}}`},
			check:     IsProtocol,
			wantCode:  "notoken",
			wantCalls: 1,
		},
		{
			name:      "edit result failure",
			bodies:    []string{meta, `{"edit":{"result":"Failure","info":"Hit AbuseFilter"}}`},
			check:     IsProtocol,
			wantCode:  "Failure",
			wantCalls: 2,
		},
		{
			name:      "edit conflict",
			bodies:    []string{meta, `{"error":{"code":"editconflict","info":"Edit conflict."}}`},
			check:     IsProtocol,
			wantCode:  "editconflict",
			wantCalls: 2,
		},
		{
			name:      "malformed save response",
			bodies:    []string{meta, `{}`},
			check:     IsDecode,
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := scripted(tt.bodies...)
			script := tr.handle
			tr.handle = func(n int, method string, params url.Values) (int, string) {
				status, body := script(n, method, params)
				if n < len(tt.status) && tt.status[n] != 0 {
					status = tt.status[n]
				}
				return status, body
			}
			bot := newTestBot(t, tr)

			res, err := await(t, bot.Edit("Sandbox", "text", "summary"))
			if !tt.check(err) {
				t.Fatalf("unexpected error: %T %v", err, err)
			}
			if res != (EditResult{}) {
				t.Errorf("result = %+v, want zero value on failure", res)
			}
			if got := ProtocolCode(err); got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
			if got := StatusCode(err); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
			if got := len(tr.requests()); got != tt.wantCalls {
				t.Errorf("requests = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestEdit_Validation(t *testing.T) {
	tr := scripted()
	bot := newTestBot(t, tr)

	if _, err := await(t, bot.Edit(" ", "text", "")); !IsValidation(err) {
		t.Errorf("error = %v, want ValidationError", err)
	}
	if _, err := await(t, bot.Add("", "h", "b")); !IsValidation(err) {
		t.Errorf("error = %v, want ValidationError", err)
	}
	if len(tr.requests()) != 0 {
		t.Error("invalid input should not reach the wire")
	}
}

func TestEditMode_String(t *testing.T) {
	if EditReplace.String() != "replace" || EditAppendSection.String() != "append" {
		t.Errorf("unexpected mode names: %s, %s", EditReplace, EditAppendSection)
	}
	if EditMode(9).String() != "unknown" {
		t.Errorf("unknown mode = %s", EditMode(9))
	}
}
