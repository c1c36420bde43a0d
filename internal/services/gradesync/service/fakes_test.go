package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ejournal/internal/adapters/lti/ags"
	"ejournal/internal/core/grading"
	"ejournal/internal/modkit"
	"ejournal/internal/modkit/repokit"
	perr "ejournal/internal/platform/errors"
	"ejournal/internal/platform/store"
	"ejournal/internal/services/gradesync/domain"
	"ejournal/internal/services/gradesync/repo"

	"github.com/shopspring/decimal"
)

// fakeDB runs transactions inline against nothing; repos come from memRepo
type fakeDB struct{ pingErr error }

func (fakeDB) Exec(context.Context, string, ...any) (store.CommandTag, error) { return nil, nil }
func (fakeDB) Query(context.Context, string, ...any) (store.Rows, error)      { return nil, nil }
func (fakeDB) QueryRow(context.Context, string, ...any) store.Row             { return nil }
func (f fakeDB) Tx(_ context.Context, fn func(q store.RowQuerier) error) error {
	return fn(f)
}
func (f fakeDB) Ping(context.Context) error { return f.pingErr }

type memRepo struct {
	mu       sync.Mutex
	counters map[string]int64
	jobs     map[string]*domain.Job
	order    []string
	results  map[string][]domain.Result
	regs     map[string]domain.Registration
	until    map[string]time.Time
	leases   int
	extends  int
	retries  []time.Duration

	counterErr error
	saveErr    error
}

var _ repo.Repo = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		counters: map[string]int64{},
		jobs:     map[string]*domain.Job{},
		results:  map[string][]domain.Result{},
		regs:     map[string]domain.Registration{},
		until:    map[string]time.Time{},
	}
}

func (m *memRepo) NextCounter(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counterErr != nil {
		return 0, m.counterErr
	}
	m.counters[name]++
	return m.counters[name], nil
}

func (m *memRepo) Enqueue(_ context.Context, id string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; ok {
		return perr.Newf(perr.ErrorCodeConflict, "job %s exists", id)
	}
	m.jobs[id] = &domain.Job{ID: id, Status: domain.JobQueued, Payload: payload}
	m.order = append(m.order, id)
	return nil
}

func (m *memRepo) Lease(_ context.Context, n int, leaseFor time.Duration) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leases++
	token := fmt.Sprintf("lease-%d", m.leases)
	now := time.Now()
	var out []domain.Job
	for _, id := range m.order {
		j := m.jobs[id]
		expired := j.Status == domain.JobRunning && !m.until[id].After(now)
		if (j.Status != domain.JobQueued && !expired) || len(out) >= n {
			continue
		}
		j.Status = domain.JobRunning
		j.Attempts++
		j.LeaseToken = token
		m.until[id] = now.Add(leaseFor)
		out = append(out, *j)
	}
	return out, nil
}

// expire ends the current lease on id as if its deadline passed
func (m *memRepo) expire(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.until[id] = time.Time{}
}

func (m *memRepo) Extend(_ context.Context, id, token string, leaseFor time.Duration) error {
	m.mu.Lock()
	m.extends++
	m.mu.Unlock()
	return m.held(id, token, func(*domain.Job) {
		m.until[id] = time.Now().Add(leaseFor)
	})
}

func (m *memRepo) Complete(_ context.Context, id, token string) error {
	return m.held(id, token, func(j *domain.Job) {
		j.Status = domain.JobDone
		j.LeaseToken = ""
	})
}

func (m *memRepo) Retry(_ context.Context, id, token string, backoff time.Duration, lastErr string) error {
	return m.held(id, token, func(j *domain.Job) {
		m.retries = append(m.retries, backoff)
		j.Status = domain.JobQueued
		j.LeaseToken = ""
		j.LastError = lastErr
	})
}

func (m *memRepo) Bury(_ context.Context, id, token string, lastErr string) error {
	return m.held(id, token, func(j *domain.Job) {
		j.Status = domain.JobDead
		j.LeaseToken = ""
		j.LastError = lastErr
	})
}

// held applies fn only while token still holds the running job
func (m *memRepo) held(id, token string, fn func(*domain.Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != domain.JobRunning || j.LeaseToken != token {
		return perr.Newf(perr.ErrorCodeConflict, "job %s lease lost", id)
	}
	fn(j)
	return nil
}

func (m *memRepo) SaveResults(_ context.Context, jobID string, results []domain.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.results[jobID] = append(m.results[jobID], results...)
	return nil
}

func (m *memRepo) Job(_ context.Context, id string) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.Job{}, perr.NotFoundf("job %s not found", id)
	}
	return *j, nil
}

func (m *memRepo) Results(_ context.Context, jobID string) ([]domain.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[jobID], nil
}

func (m *memRepo) Registration(_ context.Context, issuer, clientID string) (domain.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[issuer+"|"+clientID]
	if !ok {
		return domain.Registration{}, perr.Configf("no registration for %s", issuer)
	}
	return r, nil
}

func (m *memRepo) job(id string) domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.jobs[id]
}

// fakePoster records AGS posts
type fakePoster struct {
	mu    sync.Mutex
	calls []posted
	err   error
}

type posted struct {
	desc    ags.ServiceDescriptor
	payload map[string]any
}

func (f *fakePoster) PostScore(_ context.Context, d ags.ServiceDescriptor, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, posted{desc: d, payload: payload})
	return f.err
}

func (f *fakePoster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

const poxResponse = `<?xml version="1.0" encoding="UTF-8"?>
<imsx_POXEnvelopeResponse xmlns="http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0">
  <imsx_POXHeader>
    <imsx_POXResponseHeaderInfo>
      <imsx_version>V1.0</imsx_version>
      <imsx_statusInfo>
        <imsx_codeMajor>%s</imsx_codeMajor>
        <imsx_severity>status</imsx_severity>
        <imsx_description>%s</imsx_description>
      </imsx_statusInfo>
    </imsx_POXResponseHeaderInfo>
  </imsx_POXHeader>
</imsx_POXEnvelopeResponse>`

// poxLMS answers every replaceResult with codeMajor
type poxLMS struct {
	*httptest.Server
	hits   atomic.Int32
	mu     sync.Mutex
	bodies []string
}

func newPoxLMS(t *testing.T, codeMajor, description string) *poxLMS {
	t.Helper()
	l := &poxLMS{}
	l.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.hits.Add(1)
		b, _ := io.ReadAll(r.Body)
		l.mu.Lock()
		l.bodies = append(l.bodies, string(b))
		l.mu.Unlock()
		w.Header().Set("Content-Type", "application/xml")
		_, _ = fmt.Fprintf(w, poxResponse, codeMajor, description)
	}))
	t.Cleanup(l.Close)
	return l
}

func newTestSvc(t *testing.T, mem *memRepo, poster *fakePoster, opts ...Option) *Svc {
	t.Helper()
	cfg := Config{
		BaseURL:          "https://ejournal.example.com",
		LTIKey:           "ejournal-key",
		LTISecret:        "s3cr3t",
		MaxRetries:       -1,
		HTTPTimeout:      2 * time.Second,
		GroupConcurrency: 4,
		MaxAttempts:      3,
		RetryBase:        time.Second,
		PollEvery:        5 * time.Millisecond,
	}
	base := []Option{
		WithRepo(repokit.BindFunc[repo.Repo](func(repokit.Queryer) repo.Repo { return mem })),
		WithSenders(NewModernSender(poster, cfg.BaseURL)),
	}
	return New(modkit.Deps{PG: fakeDB{}}, cfg, append(base, opts...)...)
}

var created = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func facts() domain.GradingFacts {
	return domain.GradingFacts{
		Grade:            dec("8"),
		PointsPossible:   decimal.NewFromInt(10),
		JournalCreatedAt: created,
		EntryCount:       2,
	}
}

func legacyRecipient(id, outcomeURL string) domain.Recipient {
	return domain.Recipient{
		ID:           id,
		CourseID:     4,
		AssignmentID: 7,
		JournalID:    11,
		LinkActive:   true,
		Protocol:     domain.ProtocolLegacy,
		Legacy:       domain.LegacyAddress{OutcomeURL: outcomeURL, SourcedID: "course-4:" + id},
		Grading:      facts(),
	}
}

func modernRecipient(id, lineItem string) domain.Recipient {
	return domain.Recipient{
		ID:           id,
		CourseID:     4,
		AssignmentID: 7,
		JournalID:    11,
		LinkActive:   true,
		Protocol:     domain.ProtocolModern,
		Modern: &domain.ModernAddress{
			Service: domain.ServiceDescriptor{Issuer: "https://canvas.example.com", ClientID: "10000000000001", LineItem: lineItem},
			UserID:  "lti-" + id,
		},
		Grading: facts(),
	}
}

func withPending(r domain.Recipient) domain.Recipient {
	r.Grading.PendingNodes = []grading.PendingNode{
		{ID: 3, CreatedAt: created.Add(time.Hour), LastEditedAt: created.Add(3 * time.Hour)},
		{ID: 2, CreatedAt: created.Add(30 * time.Minute), LastEditedAt: created.Add(2 * time.Hour)},
	}
	return r
}

func byRecipient(results []domain.Result) map[string][]domain.Result {
	out := map[string][]domain.Result{}
	for _, r := range results {
		out[r.RecipientID] = append(out[r.RecipientID], r)
	}
	return out
}

func messageIDs(results []domain.Result) []string {
	var ids []string
	for _, r := range results {
		if r.MessageID != "" {
			ids = append(ids, r.MessageID)
		}
	}
	sort.Strings(ids)
	return ids
}
