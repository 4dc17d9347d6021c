package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/metrics"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/profile"
	"github.com/c3po-initiative/dhroxy-frontend-example/pkg/external"
)

const defaultSleepWindow = 7

// Snapshot is the result of one dashboard batch fetch.
type Snapshot struct {
	FetchedAt    time.Time            `json:"fetched_at"`
	Batch        external.BatchResult `json:"batch"`
	Entries      int                  `json:"entries"`
	Observations []domain.Observation `json:"-"`
	Persons      []domain.Person      `json:"persons"`
	Counts       map[string]int       `json:"counts"`
}

const snapshotSessions = 64

type snapshotSlot struct {
	seq     external.Sequencer
	current *Snapshot
}

// SnapshotStore holds the most recent snapshot per credential set. Within a set,
// when fetches overlap the one started last wins; an older fetch that resolves
// later is discarded. The least recently used sets are evicted past the capacity.
type SnapshotStore struct {
	mu    sync.Mutex
	slots *lru.Cache[string, *snapshotSlot]
}

// NewSnapshotStore creates a store for up to size credential sets.
func NewSnapshotStore(size int) *SnapshotStore {
	if size <= 0 {
		size = snapshotSessions
	}
	slots, _ := lru.New[string, *snapshotSlot](size)
	return &SnapshotStore{slots: slots}
}

// SnapshotKey identifies the credential set of the upstream calls made with ctx.
// Requests without their own credentials share the saved-header key.
func SnapshotKey(ctx context.Context) string {
	return external.CredentialFingerprint(external.CredentialsFrom(ctx))
}

func (s *SnapshotStore) slot(key string) *snapshotSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots.Get(key)
	if !ok {
		slot = &snapshotSlot{}
		s.slots.Add(key, slot)
	}
	return slot
}

// Begin issues the ticket for a new fetch under key.
func (s *SnapshotStore) Begin(key string) uint64 {
	return s.slot(key).seq.Next()
}

// Commit stores snap under key if ticket is still the newest fetch for it.
func (s *SnapshotStore) Commit(key string, ticket uint64, snap *Snapshot) bool {
	slot := s.slot(key)
	return slot.seq.Commit(ticket, func() {
		s.mu.Lock()
		slot.current = snap
		s.mu.Unlock()
	})
}

// Current returns the snapshot committed under key, or nil before the first fetch.
func (s *SnapshotStore) Current(key string) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots.Get(key)
	if !ok {
		return nil
	}
	return slot.current
}

// LabeledNight is a sleep night with its display label.
type LabeledNight struct {
	domain.SleepNight
	Label string `json:"label"`
}

// SleepSummary is the sleep view over a window of nights, oldest first.
type SleepSummary struct {
	WindowDays int            `json:"window_days"`
	Nights     []LabeledNight `json:"nights"`
}

// HealthService ties the upstream clients, the profile store and the pure
// classification functions together.
type HealthService struct {
	fhir       external.FHIRSource
	healthkit  external.HealthKitSource
	store      profile.Store
	snapshots  *SnapshotStore
	windowDays int
	logger     *logrus.Logger
	now        func() time.Time
}

// NewHealthService creates the service. healthkit may be nil when no bridge is configured.
func NewHealthService(fhir external.FHIRSource, healthkit external.HealthKitSource, store profile.Store, windowDays int, logger *logrus.Logger) *HealthService {
	if windowDays <= 0 {
		windowDays = defaultSleepWindow
	}
	return &HealthService{
		fhir:       fhir,
		healthkit:  healthkit,
		store:      store,
		snapshots:  NewSnapshotStore(snapshotSessions),
		windowDays: windowDays,
		logger:     logger,
		now:        time.Now,
	}
}

// CachedSnapshot returns the last snapshot committed for the credentials on ctx.
func (s *HealthService) CachedSnapshot(ctx context.Context) *Snapshot {
	return s.snapshots.Current(SnapshotKey(ctx))
}

// ApplySavedCredentials loads the stored credential headers into the FHIR client.
func (s *HealthService) ApplySavedCredentials(ctx context.Context) error {
	settings, err := profile.LoadSettings(ctx, s.store, s.logger)
	if err != nil {
		return err
	}
	s.applyHeaders(settings.AuthHeaders)
	return nil
}

func (s *HealthService) applyHeaders(headers map[string]string) {
	if setter, ok := s.fhir.(interface{ SetHeaders(map[string]string) }); ok {
		setter.SetHeaders(headers)
	}
}

// Refresh loads the dashboard batch. The batch fails only when every request failed.
func (s *HealthService) Refresh(ctx context.Context) (*Snapshot, error) {
	key := SnapshotKey(ctx)
	ticket := s.snapshots.Begin(key)
	batch := s.fhir.FetchBundle(ctx, s.fhir.DashboardQueries())
	if !batch.OK() {
		return nil, upstreamError("Kunne ikke hente data fra sundhed.dk", batch.Failed)
	}

	snap := &Snapshot{
		FetchedAt: s.now(),
		Batch:     batch,
		Counts:    map[string]int{},
	}
	for _, e := range batch.Entries() {
		snap.Entries++
		snap.Counts[string(e.Kind)]++
	}
	if b, ok := batch.Bundle(domain.KindObservation); ok {
		snap.Observations = b.Observations()
	}
	if b, ok := batch.Bundle(domain.KindPatient); ok {
		snap.Persons = Persons(b)
	}

	if !s.snapshots.Commit(key, ticket, snap) {
		s.logger.WithField("ticket", ticket).Debug("Discarding superseded snapshot")
	}
	return snap, nil
}

// LabObservations fetches the lab observations.
func (s *HealthService) LabObservations(ctx context.Context) ([]domain.Observation, error) {
	res := s.fhir.Get(ctx, s.fhir.LabQuery().Path)
	if !res.Success {
		return nil, domain.NewServiceError(domain.ErrUpstream, "Kunne ikke hente laboratoriesvar", res.Error, "")
	}
	bundle, err := res.Bundle()
	if err != nil {
		return nil, domain.NewServiceError(domain.ErrUpstream, "Ugyldigt svar fra sundhed.dk", err.Error(), "")
	}
	return bundle.Observations(), nil
}

// Prioritized returns the lab results split into action, watch and ok.
func (s *HealthService) Prioritized(ctx context.Context) (domain.PrioritizedResults, error) {
	obs, err := s.LabObservations(ctx)
	if err != nil {
		return domain.PrioritizedResults{}, err
	}
	return Classify(obs), nil
}

// Classify prioritizes observations that are already in memory.
func Classify(observations []domain.Observation) domain.PrioritizedResults {
	out := Prioritize(observations)
	for _, list := range [][]domain.ClassifiedResult{out.Action, out.Watch, out.OK, out.Unknown} {
		for _, r := range list {
			metrics.RecordClassification("interpretation", string(r.Tier))
		}
	}
	return out
}

// LabPanel evaluates the test registry against the lab observations.
func (s *HealthService) LabPanel(ctx context.Context) (domain.LabPanel, error) {
	obs, err := s.LabObservations(ctx)
	if err != nil {
		return domain.LabPanel{}, err
	}
	return Panel(obs), nil
}

// Panel evaluates the test registry against observations already in memory.
func Panel(observations []domain.Observation) domain.LabPanel {
	panel := AnalyzeLabPanel(observations, LabTestRegistry)
	for _, list := range [][]domain.ClassifiedResult{panel.Critical, panel.Warning, panel.Normal} {
		for _, r := range list {
			metrics.RecordClassification("threshold", string(r.Tier))
		}
	}
	return panel
}

func (s *HealthService) Trends(ctx context.Context) ([]domain.TestTrend, error) {
	obs, err := s.LabObservations(ctx)
	if err != nil {
		return nil, err
	}
	return GroupTrends(obs), nil
}

func (s *HealthService) Explanations(ctx context.Context) ([]domain.Explanation, error) {
	obs, err := s.LabObservations(ctx)
	if err != nil {
		return nil, err
	}
	return ExplainAll(obs), nil
}

// Dashboard builds one of the static panels. Unknown ids fail before any fetch.
func (s *HealthService) Dashboard(ctx context.Context, id string) (*domain.Dashboard, error) {
	if _, err := FindDashboard(id); err != nil {
		return nil, domain.NewServiceError(domain.ErrNotFoundCode, "Ukendt dashboard", id, "")
	}
	obs, err := s.LabObservations(ctx)
	if err != nil {
		return nil, err
	}
	return BuildDashboard(id, obs)
}

// Recommendations combines the lab values with the stored lifestyle and family history.
func (s *HealthService) Recommendations(ctx context.Context) (domain.RecommendationSet, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return domain.RecommendationSet{}, err
	}
	obs, err := s.LabObservations(ctx)
	if err != nil {
		// Profile rules still apply without lab data.
		s.logger.WithError(err).Info("Recommendations without lab data")
		obs = nil
	}
	return Recommend(obs, settings.Lifestyle, settings.FamilyHistory), nil
}

// Sleep aggregates HealthKit sleep sessions over the last days nights.
func (s *HealthService) Sleep(ctx context.Context, days int) (*SleepSummary, error) {
	if s.healthkit == nil {
		return nil, domain.NewServiceError(domain.ErrUpstream, "HealthKit er ikke konfigureret", "", "")
	}
	if days <= 0 {
		days = s.windowDays
	}
	if days > 90 {
		return nil, domain.NewValidationError("days", "must be between 1 and 90", days)
	}

	res := s.healthkit.Observations(ctx)
	if !res.Success {
		return nil, domain.NewServiceError(domain.ErrUpstream, "Kunne ikke hente HealthKit-data", res.Error, "")
	}
	bundle, err := res.Bundle()
	if err != nil {
		return nil, domain.NewServiceError(domain.ErrUpstream, "Ugyldigt svar fra HealthKit", err.Error(), "")
	}

	sessions := SleepSessionsFromObservations(SleepObservations(GroupHealthKit(bundle.Observations())))
	return SummarizeSleep(sessions, days, s.now()), nil
}

// SummarizeSleep aggregates sessions into the last days nights ending at now and labels them.
func SummarizeSleep(sessions []domain.SleepSession, days int, now time.Time) *SleepSummary {
	nights := Aggregate(sessions, days, now)
	summary := &SleepSummary{WindowDays: days, Nights: make([]LabeledNight, 0, len(nights))}
	for _, n := range nights {
		summary.Nights = append(summary.Nights, LabeledNight{SleepNight: n, Label: NightLabel(n, now)})
	}
	return summary
}

// HealthKitStatus passes the bridge status document through.
func (s *HealthService) HealthKitStatus(ctx context.Context) (domain.HealthKitStatus, error) {
	if s.healthkit == nil {
		return nil, domain.NewServiceError(domain.ErrUpstream, "HealthKit er ikke konfigureret", "", "")
	}
	res := s.healthkit.Status(ctx)
	if !res.Success {
		return nil, domain.NewServiceError(domain.ErrUpstream, "HealthKit er ikke tilgængelig", res.Error, "")
	}
	var status domain.HealthKitStatus
	if err := json.Unmarshal(res.Data, &status); err != nil {
		return nil, domain.NewServiceError(domain.ErrUpstream, "Ugyldigt svar fra HealthKit", err.Error(), "")
	}
	return status, nil
}

// Patients lists the people the logged-in user may view.
func (s *HealthService) Patients(ctx context.Context) ([]domain.Person, error) {
	res := s.fhir.GetPatient(ctx)
	if !res.Success {
		return nil, domain.NewServiceError(domain.ErrUpstream, "Kunne ikke hente personer", res.Error, "")
	}
	bundle, err := res.Bundle()
	if err != nil {
		return nil, domain.NewServiceError(domain.ErrUpstream, "Ugyldigt svar fra sundhed.dk", err.Error(), "")
	}
	return Persons(bundle), nil
}

// PatientSummary fetches and resolves the International Patient Summary of a patient.
func (s *HealthService) PatientSummary(ctx context.Context, patientID string) (*domain.IPSDocument, error) {
	if patientID == "" {
		return nil, domain.NewValidationError("patientID", "is required", patientID)
	}
	res := s.fhir.GetPatientSummary(ctx, patientID)
	if !res.Success {
		return nil, domain.NewServiceError(domain.ErrUpstream, "Kunne ikke hente patientresumé", res.Error, "")
	}
	var bundle domain.Bundle
	if err := json.Unmarshal(res.Data, &bundle); err != nil {
		return nil, domain.NewServiceError(domain.ErrUpstream, "Ugyldigt patientresumé", err.Error(), "")
	}
	return ParseIPS(&bundle), nil
}

// Settings loads the stored profile.
func (s *HealthService) Settings(ctx context.Context) (domain.Settings, error) {
	settings, err := profile.LoadSettings(ctx, s.store, s.logger)
	if err != nil {
		return settings, domain.NewServiceError(domain.ErrProfileStore, "Kunne ikke læse profil", err.Error(), "")
	}
	return settings, nil
}

// SaveSettings stores the profile and applies the saved credentials to the FHIR client.
func (s *HealthService) SaveSettings(ctx context.Context, settings domain.Settings) error {
	if err := validateLifestyle(settings.Lifestyle); err != nil {
		return err
	}
	if err := profile.SaveSettings(ctx, s.store, settings); err != nil {
		return err
	}
	cleaned, _ := external.MigrateHeaders(settings.AuthHeaders)
	s.applyHeaders(cleaned)
	return nil
}

func validateLifestyle(l domain.Lifestyle) error {
	switch {
	case l.AlcoholWeekly < 0:
		return domain.NewValidationError("lifestyle.alcoholWeekly", "must not be negative", l.AlcoholWeekly)
	case l.ExerciseWeekly < 0:
		return domain.NewValidationError("lifestyle.exerciseWeekly", "must not be negative", l.ExerciseWeekly)
	case l.SleepHours < 0 || l.SleepHours > 24:
		return domain.NewValidationError("lifestyle.sleepHours", "must be between 0 and 24", l.SleepHours)
	}
	return nil
}

func upstreamError(message string, failed map[domain.ResourceKind]string) error {
	details := ""
	for kind, reason := range failed {
		if details != "" {
			details += "; "
		}
		details += string(kind) + ": " + reason
	}
	return domain.NewServiceError(domain.ErrUpstream, message, details, "")
}
