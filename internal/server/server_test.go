package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dataquality-cli/internal/scheduler"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(context.Context, string) (string, error) {
	return f.reply, f.err
}

func newTestRouter(t *testing.T, upstream http.Handler, completer *fakeCompleter) http.Handler {
	t.Helper()

	sched := scheduler.New(scheduler.Config{
		Baseline:    time.Millisecond,
		MinInterval: time.Millisecond,
	})
	t.Cleanup(sched.Close)

	cfg := Config{
		Token:     "test-token",
		Scheduler: sched,
	}
	if upstream != nil {
		srv := httptest.NewServer(upstream)
		t.Cleanup(srv.Close)
		cfg.HubSpotBaseURL = srv.URL
	}
	if completer != nil {
		cfg.Completer = completer
	}
	return NewRouter(NewHandler(cfg))
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestProxyHubSpot_ForwardsAndRelaysStatus(t *testing.T) {
	router := newTestRouter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/objects/contacts/search", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(1), body["limit"])

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"total":42,"results":[]}`)
	}), nil)

	payload := `{"path":"/crm/v3/objects/contacts/search","method":"POST","body":{"limit":1}}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/hubspot", strings.NewReader(payload)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":42`)
}

func TestProxyHubSpot_RelaysUpstreamErrorStatus(t *testing.T) {
	router := newTestRouter(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"message":"conflict"}`)
	}), nil)

	payload := `{"path":"/crm/v3/objects/contacts/1/merge","method":"POST","body":{"objectIdToMerge":"1"}}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/hubspot", strings.NewReader(payload)))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "conflict")
}

func TestProxyHubSpot_RejectsBadRequests(t *testing.T) {
	router := newTestRouter(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("upstream must not be reached")
	}), nil)

	cases := []string{
		`not json`,
		`{"path":"/etc/passwd","method":"GET"}`,
		`{"path":"/crm/v3/objects/contacts","method":"TRACE"}`,
	}
	for _, payload := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/hubspot", strings.NewReader(payload)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "payload: %s", payload)
	}
}

func TestComplete_ReturnsReply(t *testing.T) {
	router := newTestRouter(t, nil, &fakeCompleter{reply: "all good"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/complete",
		strings.NewReader(`{"prompt":"check this"}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "all good")
}

func TestComplete_ErrorsMapToBadGateway(t *testing.T) {
	router := newTestRouter(t, nil, &fakeCompleter{err: eris.New("model unavailable")})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/complete",
		strings.NewReader(`{"prompt":"check this"}`)))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestComplete_UnconfiguredReturns503(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/complete",
		strings.NewReader(`{"prompt":"x"}`)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
