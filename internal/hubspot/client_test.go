package hubspot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dataquality-cli/internal/model"
	"github.com/sells-group/dataquality-cli/internal/resilience"
	"github.com/sells-group/dataquality-cli/internal/scheduler"
)

// newTestScheduler keeps test pacing fast and retries short.
func newTestScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	s := scheduler.New(scheduler.Config{
		Baseline:    time.Millisecond,
		MinInterval: time.Millisecond,
		MaxInterval: 5 * time.Millisecond,
		Retry: resilience.RetryConfig{
			MaxAttempts: 3,
			BaseBackoff: time.Millisecond,
			MaxBackoff:  2 * time.Millisecond,
		},
	})
	t.Cleanup(s.Close)
	return s
}

func newTestClient(t *testing.T, handler http.Handler) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-token", newTestScheduler(t), WithBaseURL(srv.URL))
}

func TestListPage_ParsesRecordsAndCursor(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/crm/v3/objects/contacts", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		assert.Equal(t, "email,firstname", r.URL.Query().Get("properties"))

		fmt.Fprint(w, `{
			"results": [
				{"id": "1", "properties": {"email": "a@x.com", "firstname": "Ann"}},
				{"id": "2", "properties": {"email": "b@x.com", "firstname": "Bob"}}
			],
			"paging": {"next": {"after": "cursor-2"}}
		}`)
	}))

	page, err := client.ListPage(context.Background(), model.ObjectContacts, "", []string{"email", "firstname"})
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "1", page.Records[0].ID)
	assert.Equal(t, "a@x.com", page.Records[0].Prop("email"))
	assert.Equal(t, "cursor-2", page.After)
}

func TestFetchAll_WalksCursorToExhaustion(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("after") {
		case "":
			fmt.Fprint(w, `{"results":[{"id":"1","properties":{}}],"paging":{"next":{"after":"p2"}}}`)
		case "p2":
			fmt.Fprint(w, `{"results":[{"id":"2","properties":{}}],"paging":{"next":{"after":"p3"}}}`)
		case "p3":
			// Final page has no paging block at all.
			fmt.Fprint(w, `{"results":[{"id":"3","properties":{}}]}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("after"))
		}
	}))

	records, err := client.FetchAll(context.Background(), model.ObjectContacts, nil)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "3", records[2].ID)
}

func TestFetchAll_EmptyCollection(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results":[]}`)
	}))

	records, err := client.FetchAll(context.Background(), model.ObjectCompanies, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBatchUpdate_ChunksAtLimit(t *testing.T) {
	var sizes []int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/objects/contacts/batch/update", r.URL.Path)

		var body struct {
			Inputs []struct {
				ID         string            `json:"id"`
				Properties map[string]string `json:"properties"`
			} `json:"inputs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		sizes = append(sizes, len(body.Inputs))
		fmt.Fprint(w, `{"results":[]}`)
	}))

	patches := make([]model.RecordPatch, 250)
	for i := range patches {
		patches[i] = model.RecordPatch{
			ID:         fmt.Sprint(i),
			Properties: map[string]string{"email": "x@y.com"},
		}
	}

	require.NoError(t, client.BatchUpdate(context.Background(), model.ObjectContacts, patches))
	assert.Equal(t, []int{100, 100, 50}, sizes)
}

func TestBatchCreate_ReturnsAssignedIDs(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/objects/contacts/batch/create", r.URL.Path)
		fmt.Fprint(w, `{"results":[
			{"id":"901","properties":{"email":"a@x.com"}},
			{"id":"902","properties":{"email":"b@x.com"}}
		]}`)
	}))

	created, err := client.BatchCreate(context.Background(), model.ObjectContacts, []map[string]string{
		{"email": "a@x.com"},
		{"email": "b@x.com"},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "901", created[0].ID)
}

func TestMerge_PostsToMergeEndpoint(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/crm/v3/objects/companies/42/merge", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "77", body["objectIdToMerge"])
		fmt.Fprint(w, `{"id":"42"}`)
	}))

	require.NoError(t, client.Merge(context.Background(), model.ObjectCompanies, "42", "77"))
}

func TestCountWithProperty_SendsHasPropertyFilter(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/objects/contacts/search", r.URL.Path)

		var body struct {
			FilterGroups []struct {
				Filters []struct {
					PropertyName string `json:"propertyName"`
					Operator     string `json:"operator"`
				} `json:"filters"`
			} `json:"filterGroups"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.FilterGroups, 1)
		assert.Equal(t, "email", body.FilterGroups[0].Filters[0].PropertyName)
		assert.Equal(t, "HAS_PROPERTY", body.FilterGroups[0].Filters[0].Operator)

		fmt.Fprint(w, `{"total": 812, "results": []}`)
	}))

	n, err := client.CountWithProperty(context.Background(), model.ObjectContacts, "email")
	require.NoError(t, err)
	assert.Equal(t, 812, n)
}

func TestListProperties(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/properties/companies", r.URL.Path)
		fmt.Fprint(w, `{"results":[
			{"name":"name","label":"Name","type":"string","fieldType":"text"},
			{"name":"domain","label":"Domain","type":"string","fieldType":"text"}
		]}`)
	}))

	props, err := client.ListProperties(context.Background(), model.ObjectCompanies)
	require.NoError(t, err)
	require.Len(t, props, 2)
	assert.Equal(t, "domain", props[1].Name)
}

func TestDo_PermanentErrorSurfacesStatusAndBody(t *testing.T) {
	var calls int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"message":"Cannot merge a record into itself"}`)
	}))

	err := client.Merge(context.Background(), model.ObjectContacts, "1", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 409")
	assert.Contains(t, err.Error(), "Cannot merge a record into itself")
	assert.Equal(t, 1, calls, "4xx other than 429 must not be retried")
}

func TestDo_RetriesTransientStatus(t *testing.T) {
	var calls int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"id":"5","properties":{"email":"ok@x.com"}}`)
	}))

	rec, err := client.GetRecord(context.Background(), model.ObjectContacts, "5", nil)
	require.NoError(t, err)
	assert.Equal(t, "5", rec.ID)
	assert.Equal(t, 3, calls)
}

func TestCreate_SingleRecord(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/crm/v3/objects/contacts", r.URL.Path)

		var body struct {
			Properties map[string]string `json:"properties"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "new@x.com", body.Properties["email"])

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"1001","properties":{"email":"new@x.com"}}`)
	}))

	rec, err := client.Create(context.Background(), model.ObjectContacts, map[string]string{"email": "new@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "1001", rec.ID)
}
