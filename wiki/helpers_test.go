package wiki

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/olgasafonova/mediawiki-bot/scheduler"
)

// sentRequest is one request seen by fakeTransport
type sentRequest struct {
	Method string
	Params url.Values
}

// fakeTransport answers requests from a handler and records what was sent.
// The handler receives the zero-based index of the request.
type fakeTransport struct {
	mu     sync.Mutex
	sent   []sentRequest
	handle func(n int, method string, params url.Values) (int, string)
}

func (f *fakeTransport) Send(_ context.Context, _ string, method string, params url.Values) (int, []byte, error) {
	f.mu.Lock()
	n := len(f.sent)
	f.sent = append(f.sent, sentRequest{Method: method, Params: params})
	f.mu.Unlock()

	status, body := f.handle(n, method, params)
	return status, []byte(body), nil
}

func (f *fakeTransport) requests() []sentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentRequest(nil), f.sent...)
}

// scripted replies to the n-th request with the n-th body
func scripted(bodies ...string) *fakeTransport {
	return &fakeTransport{
		handle: func(n int, _ string, _ url.Values) (int, string) {
			if n >= len(bodies) {
				return http.StatusOK, `{"error":{"code":"unexpected","info":"no scripted response"}}`
			}
			return http.StatusOK, bodies[n]
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseURL = "http://wiki.test/w/api.php"
	return cfg
}

func newTestBot(t *testing.T, tr scheduler.Transport) *Bot {
	t.Helper()
	b, err := New(testConfig(), WithTransport(tr), WithLogger(quietLogger()), WithInterval(0))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func await[T any](t *testing.T, f *scheduler.Future[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.Wait(ctx)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func actions(reqs []sentRequest) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Method + " " + r.Params.Get("action")
	}
	return out
}
