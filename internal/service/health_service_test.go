package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/profile"
	"github.com/c3po-initiative/dhroxy-frontend-example/pkg/external"
)

const labPath = "Observation?date=ge2015-01-01&_count=1000"

type fakeFHIR struct {
	mu        sync.Mutex
	responses map[string]external.Result
	batch     external.BatchResult
	headers   map[string]string
	gets      int
}

func newFakeFHIR() *fakeFHIR {
	return &fakeFHIR{responses: map[string]external.Result{}}
}

func (f *fakeFHIR) respond(path string, v any) {
	data, _ := json.Marshal(v)
	f.responses[path] = external.Result{Success: true, Data: data, Status: 200}
}

func (f *fakeFHIR) Get(_ context.Context, path string) external.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if r, ok := f.responses[path]; ok {
		return r
	}
	return external.Result{Success: false, Error: "HTTP error! status: 404", Status: 404}
}

func (f *fakeFHIR) GetPatient(ctx context.Context) external.Result {
	return f.Get(ctx, "Patient")
}

func (f *fakeFHIR) GetLabResults(ctx context.Context, _ int) external.Result {
	return f.Get(ctx, labPath)
}

func (f *fakeFHIR) GetPatientSummary(ctx context.Context, id string) external.Result {
	return f.Get(ctx, "Patient/"+id+"/$summary")
}

func (f *fakeFHIR) FetchBundle(context.Context, []external.Query) external.BatchResult {
	return f.batch
}

func (f *fakeFHIR) LabQuery() external.Query {
	return external.Query{Kind: domain.KindObservation, Path: labPath}
}

func (f *fakeFHIR) DashboardQueries() []external.Query {
	return []external.Query{
		{Kind: domain.KindPatient, Path: "Patient"},
		f.LabQuery(),
	}
}

func (f *fakeFHIR) SetHeaders(h map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers = h
}

type fakeHealthKit struct {
	status       external.Result
	observations external.Result
}

func (f *fakeHealthKit) Status(context.Context) external.Result       { return f.status }
func (f *fakeHealthKit) Observations(context.Context) external.Result { return f.observations }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func bundleOf(t *testing.T, resources ...any) domain.Bundle {
	t.Helper()
	b := domain.Bundle{ResourceType: "Bundle", Type: "searchset"}
	for _, r := range resources {
		raw, err := json.Marshal(r)
		require.NoError(t, err)
		b.Entry = append(b.Entry, domain.BundleEntry{Resource: raw})
	}
	return b
}

func newTestHealthService(t *testing.T, fhir *fakeFHIR, hk external.HealthKitSource) (*HealthService, profile.Store) {
	t.Helper()
	store := profile.NewMemoryStore()
	svc := NewHealthService(fhir, hk, store, 7, quietLogger())
	svc.now = func() time.Time { return time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC) }
	return svc, store
}

func TestHealthService_Prioritized(t *testing.T) {
	fhir := newFakeFHIR()
	fhir.respond(labPath, bundleOf(t,
		labObservation("Ferritin", 900, "µg/L", "2024-01-01", withInterpretation(domain.INTERP_CRITICAL_HIGH)),
		labObservation("Natrium", 140, "mmol/L", "2024-01-01", withRange(137, 145)),
	))
	svc, _ := newTestHealthService(t, fhir, nil)

	out, err := svc.Prioritized(context.Background())
	require.NoError(t, err)
	assert.Len(t, out.Action, 1)
	assert.Len(t, out.OK, 1)
}

func TestHealthService_UpstreamFailure(t *testing.T) {
	svc, _ := newTestHealthService(t, newFakeFHIR(), nil)

	_, err := svc.LabPanel(context.Background())
	require.Error(t, err)

	var serviceErr *domain.ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, domain.ErrUpstream, serviceErr.Code)
	assert.Equal(t, "HTTP error! status: 404", serviceErr.Details)
}

func TestHealthService_Dashboard(t *testing.T) {
	fhir := newFakeFHIR()
	fhir.respond(labPath, bundleOf(t, labObservation("HbA1c", 50, "mmol/mol", "2024-01-01")))
	svc, _ := newTestHealthService(t, fhir, nil)

	dash, err := svc.Dashboard(context.Background(), "diabetes")
	require.NoError(t, err)
	assert.Equal(t, 1, dash.TestsWithData)

	before := fhir.gets
	_, err = svc.Dashboard(context.Background(), "kidney")
	var serviceErr *domain.ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, domain.ErrNotFoundCode, serviceErr.Code)
	assert.Equal(t, before, fhir.gets)
}

func TestHealthService_Refresh(t *testing.T) {
	fhir := newFakeFHIR()
	patients, _ := json.Marshal(bundleOf(t, domain.Patient{ResourceType: "Patient", ID: "p1"}))
	labs, _ := json.Marshal(bundleOf(t, labObservation("Ferritin", 40, "µg/L", "2024-01-01")))
	fhir.batch = external.BatchResult{
		Succeeded: map[domain.ResourceKind]json.RawMessage{
			domain.KindPatient:     patients,
			domain.KindObservation: labs,
		},
		Failed: map[domain.ResourceKind]string{domain.KindCondition: "HTTP error! status: 500"},
	}
	svc, _ := newTestHealthService(t, fhir, nil)

	snap, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Entries)
	assert.Len(t, snap.Observations, 1)
	assert.Len(t, snap.Persons, 1)
	assert.Same(t, snap, svc.CachedSnapshot(context.Background()))

	fhir.batch = external.BatchResult{Failed: map[domain.ResourceKind]string{domain.KindPatient: "HTTP error! status: 500"}}
	_, err = svc.Refresh(context.Background())
	assert.Error(t, err)
	assert.Same(t, snap, svc.CachedSnapshot(context.Background()))
}

func TestSnapshotStore_LastRequestWins(t *testing.T) {
	store := NewSnapshotStore(4)
	older := store.Begin("k")
	newer := store.Begin("k")

	fresh := &Snapshot{Entries: 2}
	assert.True(t, store.Commit("k", newer, fresh))
	assert.False(t, store.Commit("k", older, &Snapshot{Entries: 1}))
	assert.Same(t, fresh, store.Current("k"))
	assert.Nil(t, store.Current("other"))
}

func TestSnapshotStore_Eviction(t *testing.T) {
	store := NewSnapshotStore(1)
	store.Commit("a", store.Begin("a"), &Snapshot{Entries: 1})
	store.Commit("b", store.Begin("b"), &Snapshot{Entries: 2})
	assert.Nil(t, store.Current("a"))
	assert.Equal(t, 2, store.Current("b").Entries)
}

func TestHealthService_SnapshotPerCredentials(t *testing.T) {
	fhir := newFakeFHIR()
	labs, _ := json.Marshal(bundleOf(t, labObservation("Ferritin", 40, "µg/L", "2024-01-01")))
	fhir.batch = external.BatchResult{
		Succeeded: map[domain.ResourceKind]json.RawMessage{domain.KindObservation: labs},
		Failed:    map[domain.ResourceKind]string{},
	}
	svc, _ := newTestHealthService(t, fhir, nil)

	alice := external.WithCredentials(context.Background(), map[string]string{external.HeaderCookie: "alice"})
	bob := external.WithCredentials(context.Background(), map[string]string{external.HeaderCookie: "bob"})

	snap, err := svc.Refresh(alice)
	require.NoError(t, err)
	assert.Same(t, snap, svc.CachedSnapshot(alice))
	assert.Nil(t, svc.CachedSnapshot(bob))
	assert.Nil(t, svc.CachedSnapshot(context.Background()))
}

func TestHealthService_Sleep(t *testing.T) {
	observations, _ := json.Marshal(bundleOf(t,
		sleepObservation("2024-01-02T23:30:00Z", "2024-01-03T01:00:00Z", "Deep"),
		sleepObservation("2024-01-03T01:00:00Z", "2024-01-03T06:00:00Z", "Core"),
	))
	hk := &fakeHealthKit{observations: external.Result{Success: true, Data: observations}}
	svc, _ := newTestHealthService(t, newFakeFHIR(), hk)

	summary, err := svc.Sleep(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 7, summary.WindowDays)
	require.Len(t, summary.Nights, 7)
	assert.Equal(t, "I går nat", summary.Nights[5].Label)
	assert.Equal(t, 390.0, summary.Nights[5].TotalMinutes)
	assert.Equal(t, "I nat", summary.Nights[6].Label)

	_, err = svc.Sleep(context.Background(), 365)
	var validationErr *domain.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestHealthService_HealthKitUnavailable(t *testing.T) {
	svc, _ := newTestHealthService(t, newFakeFHIR(), nil)
	_, err := svc.Sleep(context.Background(), 7)
	assert.Error(t, err)

	hk := &fakeHealthKit{
		status:       external.Result{Success: false, Error: "HTTP error! status: 503"},
		observations: external.Result{Success: false, Error: "HTTP error! status: 503"},
	}
	svc, _ = newTestHealthService(t, newFakeFHIR(), hk)
	_, err = svc.HealthKitStatus(context.Background())
	assert.Error(t, err)

	hk.status = external.Result{Success: true, Data: json.RawMessage(`{"connected":true,"observations":12}`)}
	status, err := svc.HealthKitStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, true, status["connected"])
}

func TestHealthService_RecommendationsWithoutLabs(t *testing.T) {
	svc, store := newTestHealthService(t, newFakeFHIR(), nil)
	require.NoError(t, store.Put(context.Background(), domain.KeyLifestyle, `{"smoker":true,"exerciseWeekly":4,"sleepHours":8}`))

	set, err := svc.Recommendations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"smoking"}, rulesOf(set))
}

func TestHealthService_Patients(t *testing.T) {
	fhir := newFakeFHIR()
	fhir.responses["Patient"] = external.Result{Success: true, Data: json.RawMessage(personSelectionBundle)}
	fhir.responses["Patient/p1/$summary"] = external.Result{Success: true, Data: json.RawMessage(summaryBundle)}
	svc, _ := newTestHealthService(t, fhir, nil)

	persons, err := svc.Patients(context.Background())
	require.NoError(t, err)
	assert.Len(t, persons, 3)

	doc, err := svc.PatientSummary(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, doc.Sections, 3)

	_, err = svc.PatientSummary(context.Background(), "")
	assert.Error(t, err)
}

func TestHealthService_SaveSettingsAppliesHeaders(t *testing.T) {
	fhir := newFakeFHIR()
	svc, _ := newTestHealthService(t, fhir, nil)
	ctx := context.Background()

	settings := domain.DefaultSettings()
	settings.AuthHeaders = map[string]string{"Cookie": "session=abc", "X-XSRF-Token": "  "}
	require.NoError(t, svc.SaveSettings(ctx, settings))
	assert.Equal(t, map[string]string{external.HeaderCookie: "session=abc"}, fhir.headers)

	loaded, err := svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "session=abc", loaded.AuthHeaders[external.HeaderCookie])

	fhir.headers = nil
	require.NoError(t, svc.ApplySavedCredentials(ctx))
	assert.Equal(t, "session=abc", fhir.headers[external.HeaderCookie])

	settings.Lifestyle.SleepHours = 30
	var validationErr *domain.ValidationError
	assert.True(t, errors.As(svc.SaveSettings(ctx, settings), &validationErr))
}
