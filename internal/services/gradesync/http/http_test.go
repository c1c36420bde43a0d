package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perr "ejournal/internal/platform/errors"
	phttp "ejournal/internal/platform/net/http"
	"ejournal/internal/services/gradesync/domain"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePorts struct {
	enqueued []domain.SyncRequest
	views    map[string]domain.JobView
	healthy  error
	synced   int
}

func (f *fakePorts) Enqueue(_ context.Context, req domain.SyncRequest) (string, error) {
	f.enqueued = append(f.enqueued, req)
	return "8d0c7c55-4a8e-4d4b-9a0c-0f4f5b0d6a11", nil
}

func (f *fakePorts) Job(_ context.Context, id string) (domain.JobView, error) {
	v, ok := f.views[id]
	if !ok {
		return domain.JobView{}, perr.NotFoundf("job %s not found", id)
	}
	return v, nil
}

func (f *fakePorts) Sync(_ context.Context, req domain.SyncRequest) (domain.Batch, error) {
	f.synced += len(req.Recipients)
	return domain.Batch{Groups: 1}, nil
}

func (f *fakePorts) Health(context.Context) error { return f.healthy }

func newServer(f *fakePorts) http.Handler {
	mux := chi.NewRouter()
	Register(phttp.AdaptChi(mux), Deps{Jobs: f, Sync: f, Health: f})
	return mux
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Kind       string          `json:"kind"`
	Field      string          `json:"field"`
	Data       json.RawMessage `json:"data"`
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

const validBody = `{
  "recipients": [{
    "id": "p-9",
    "course_id": 4,
    "assignment_id": 7,
    "journal_id": 11,
    "link_active": true,
    "protocol": "legacy",
    "legacy": {"outcome_url": "https://lms.example.com/outcomes", "sourced_id": "course-4:user-9"},
    "grading": {"grade": "8", "points_possible": "10", "journal_created_at": "2024-03-01T12:00:00Z", "entry_count": 2}
  }]
}`

func TestEnqueue_Accepted(t *testing.T) {
	f := &fakePorts{}
	code, env := do(t, newServer(f), http.MethodPost, "/v1/gradesync/jobs", validBody)

	assert.Equal(t, http.StatusAccepted, code)
	var out EnqueueResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "8d0c7c55-4a8e-4d4b-9a0c-0f4f5b0d6a11", out.ID)
	require.Len(t, f.enqueued, 1)
	assert.Equal(t, "course-4:user-9", f.enqueued[0].Recipients[0].Legacy.SourcedID)
	assert.True(t, f.enqueued[0].Recipients[0].Grading.Grade.IsPositive())
}

func TestEnqueue_RejectsBadInput(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		code  int
		kind  string
		field string
	}{
		{"empty body", ``, http.StatusBadRequest, "json", ""},
		{"unknown field", `{"recipients": [], "extra": 1}`, http.StatusBadRequest, "json", ""},
		{"no recipients", `{"recipients": []}`, http.StatusBadRequest, "validation", "recipients"},
		{"relative outcome url", strings.Replace(validBody, "https://lms.example.com/outcomes", "/outcomes", 1), http.StatusBadRequest, "validation", "recipients[0].legacy.outcome_url"},
		{"bad protocol", strings.Replace(validBody, `"legacy",`, `"smoke",`, 1), http.StatusBadRequest, "validation", "recipients[0].protocol"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := &fakePorts{}
			code, env := do(t, newServer(f), http.MethodPost, "/v1/gradesync/jobs", c.body)
			assert.Equal(t, c.code, code)
			assert.Equal(t, c.kind, env.Kind)
			assert.Equal(t, c.field, env.Field)
			assert.Empty(t, f.enqueued)
		})
	}
}

func TestJob(t *testing.T) {
	f := &fakePorts{views: map[string]domain.JobView{
		"a1": {ID: "a1", Status: domain.JobDone, Results: []domain.Result{{RecipientID: "p-9", OK: true}}},
	}}
	h := newServer(f)

	code, env := do(t, h, http.MethodGet, "/v1/gradesync/jobs/a1", "")
	assert.Equal(t, http.StatusOK, code)
	var view domain.JobView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, domain.JobDone, view.Status)
	require.Len(t, view.Results, 1)

	code, env = do(t, h, http.MethodGet, "/v1/gradesync/jobs/zz", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", env.Kind)
}

func TestSyncInline(t *testing.T) {
	f := &fakePorts{}
	code, _ := do(t, newServer(f), http.MethodPost, "/v1/gradesync/sync", validBody)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, f.synced)
}

func TestHealthz(t *testing.T) {
	f := &fakePorts{}
	code, _ := do(t, newServer(f), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)

	f.healthy = perr.Unavailablef("postgres unreachable")
	code, env := do(t, newServer(f), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", env.Kind)
}
