package encounters

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"clinical-access/internal/domain/emrsync"
	"clinical-access/internal/ports/emr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------------
// Test doubles
// -------------------------

type testRepo struct {
	mu        sync.Mutex
	byID      map[string]Encounter
	listCalls int
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Encounter{}}
}

func (r *testRepo) Create(ctx context.Context, e Encounter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[e.ID] = e
	return nil
}

func (r *testRepo) ListByPatient(ctx context.Context, patientID string) ([]Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Encounter, 0)
	for _, e := range r.byID {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EncounterDate.After(out[j].EncounterDate) })
	return out, nil
}

func (r *testRepo) SetExternalID(ctx context.Context, id, externalID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	e.ExternalID = &externalID
	e.UpdatedAt = at
	r.byID[id] = e
	return nil
}

func (r *testRepo) ListUnsynced(ctx context.Context, after SyncCursor, limit int) ([]Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	out := make([]Encounter, 0)
	for _, e := range r.byID {
		if !e.Synced() && after.Before(e.CreatedAt, e.ID) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type patientLookup map[string]*string

func (l patientLookup) ExternalIDOf(ctx context.Context, patientID string) (*string, error) {
	ext, ok := l[patientID]
	if !ok {
		return nil, errors.New("patient not found")
	}
	return ext, nil
}

type fakeEMR struct {
	subErr     error
	subCalls   int
	extract    emr.Extraction
	extractErr error
}

func (f *fakeEMR) CreateRecord(ctx context.Context, in emr.PatientRecord) (emr.Result, error) {
	return emr.Result{}, errors.New("not used")
}

func (f *fakeEMR) FetchRecord(ctx context.Context, id string) (emr.Result, error) {
	return emr.Result{}, errors.New("not used")
}

func (f *fakeEMR) CreateSubRecord(ctx context.Context, in emr.EncounterRecord) (emr.Result, error) {
	f.subCalls++
	if f.subErr != nil {
		return emr.Result{}, f.subErr
	}
	return emr.Result{ExternalID: "enc-" + in.ExternalPatientID}, nil
}

func (f *fakeEMR) Extract(ctx context.Context, text, id string) (emr.Extraction, error) {
	return f.extract, f.extractErr
}

func (f *fakeEMR) CheckInteractions(ctx context.Context, meds []string) (json.RawMessage, error) {
	return nil, nil
}

func strPtr(s string) *string { return &s }

func newSvc(repo *testRepo, lookup patientLookup, client *fakeEMR) *Service {
	return NewService(repo, lookup, emrsync.NewAdapter(client, emrsync.Options{Timeout: time.Second}), nil)
}

// -------------------------
// Tests
// -------------------------

func TestCreate_MirrorsWhenPatientSynced(t *testing.T) {
	repo := newTestRepo()
	client := &fakeEMR{}
	svc := newSvc(repo, patientLookup{"p1": strPtr("77")}, client)

	e, err := svc.Create(context.Background(), "p1", CreateInput{
		ClinicID:    "c1",
		Summary:     " cough ",
		Medications: []Medication{{Name: "amoxicillin"}, {Name: " "}},
	})
	require.NoError(t, err)

	require.True(t, e.Synced())
	assert.Equal(t, "enc-77", *e.ExternalID)
	assert.Equal(t, "cough", e.Summary)
	assert.Len(t, e.Medications, 1)

	stored := repo.byID[e.ID]
	require.NotNil(t, stored.ExternalID)
	assert.Equal(t, "enc-77", *stored.ExternalID)
}

func TestCreate_EMRFailureKeepsLocalRecord(t *testing.T) {
	repo := newTestRepo()
	client := &fakeEMR{subErr: emr.ErrUnavailable}
	svc := newSvc(repo, patientLookup{"p1": strPtr("77")}, client)

	e, err := svc.Create(context.Background(), "p1", CreateInput{Diagnosis: "flu"})
	require.NoError(t, err)

	assert.False(t, e.Synced())
	assert.Nil(t, repo.byID[e.ID].ExternalID)
	assert.Equal(t, 1, client.subCalls)
}

func TestCreate_UnsyncedPatientSkipsMirror(t *testing.T) {
	repo := newTestRepo()
	client := &fakeEMR{}
	svc := newSvc(repo, patientLookup{"p1": nil}, client)

	e, err := svc.Create(context.Background(), "p1", CreateInput{Summary: "checkup"})
	require.NoError(t, err)

	assert.False(t, e.Synced())
	assert.Equal(t, 0, client.subCalls)
	assert.Len(t, repo.byID, 1)
}

func TestCreate_RequiresContent(t *testing.T) {
	svc := newSvc(newTestRepo(), patientLookup{}, &fakeEMR{})

	_, err := svc.Create(context.Background(), "p1", CreateInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateFromText_FailureCommitsNothing(t *testing.T) {
	repo := newTestRepo()
	client := &fakeEMR{extractErr: emr.ErrUnavailable}
	svc := newSvc(repo, patientLookup{"p1": strPtr("12")}, client)

	_, err := svc.CreateFromText(context.Background(), "p1", "", "headache for 3 days")
	assert.ErrorIs(t, err, emr.ErrUnavailable)
	assert.Empty(t, repo.byID)
}

func TestCreateFromText_RequiresSyncedPatient(t *testing.T) {
	repo := newTestRepo()
	svc := newSvc(repo, patientLookup{"p1": nil}, &fakeEMR{})

	_, err := svc.CreateFromText(context.Background(), "p1", "", "text")
	assert.ErrorIs(t, err, ErrPatientNotSynced)
	assert.Empty(t, repo.byID)
}

func TestCreateFromText_EncounterIsStoredWithExternalID(t *testing.T) {
	repo := newTestRepo()
	client := &fakeEMR{extract: emr.Extraction{
		Resource:       emr.ResourceEncounter,
		ExternalID:     "501",
		ChiefComplaint: "headache",
		Diagnosis:      "migraine",
		Medications:    []emr.Medication{{Name: "ibuprofen", Dosage: "400mg"}},
	}}
	svc := newSvc(repo, patientLookup{"p1": strPtr("12")}, client)

	res, err := svc.CreateFromText(context.Background(), "p1", "c1", "headache")
	require.NoError(t, err)
	require.NotNil(t, res.Encounter)

	assert.Equal(t, "501", *res.Encounter.ExternalID)
	assert.Equal(t, "c1", res.Encounter.ClinicID)
	assert.Equal(t, []Medication{{Name: "ibuprofen", Dosage: "400mg"}}, res.Encounter.Medications)
	assert.Len(t, repo.byID, 1)
}

func TestCreateFromText_OtherResourceStoresNothing(t *testing.T) {
	repo := newTestRepo()
	client := &fakeEMR{extract: emr.Extraction{Resource: "Appointment"}}
	svc := newSvc(repo, patientLookup{"p1": strPtr("12")}, client)

	res, err := svc.CreateFromText(context.Background(), "p1", "", "book me for monday")
	require.NoError(t, err)
	assert.Equal(t, "Appointment", res.Resource)
	assert.Nil(t, res.Encounter)
	assert.Empty(t, repo.byID)
}

func TestResyncPending_SyncsOnceEMRRecovers(t *testing.T) {
	repo := newTestRepo()
	client := &fakeEMR{subErr: emr.ErrUnavailable}
	lookup := patientLookup{"p1": strPtr("77"), "p2": nil}
	svc := newSvc(repo, lookup, client)

	_, err := svc.Create(context.Background(), "p1", CreateInput{Summary: "a"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "p2", CreateInput{Summary: "b"})
	require.NoError(t, err)

	client.subErr = nil
	rep, err := svc.ResyncPending(context.Background(), 50)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Attempted)
	assert.Equal(t, 1, rep.Synced)
}

func TestResyncPending_StuckRowsDoNotBlockNewerOnes(t *testing.T) {
	repo := newTestRepo()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.byID["e-old-1"] = Encounter{ID: "e-old-1", PatientID: "p-unsynced", CreatedAt: t0}
	repo.byID["e-old-2"] = Encounter{ID: "e-old-2", PatientID: "p-unsynced", CreatedAt: t0.Add(time.Minute)}
	repo.byID["e-new"] = Encounter{ID: "e-new", PatientID: "p-synced", CreatedAt: t0.Add(time.Hour)}

	client := &fakeEMR{}
	lookup := patientLookup{"p-unsynced": nil, "p-synced": strPtr("77")}
	svc := newSvc(repo, lookup, client)

	rep, err := svc.ResyncPending(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, ResyncReport{Attempted: 3, Synced: 1}, rep)
	assert.Equal(t, 1, client.subCalls)
	assert.Equal(t, 2, repo.listCalls)
	assert.True(t, repo.byID["e-new"].Synced())

	// Segunda corrida: solo quedan los trabados y no hay llamadas nuevas al EMR.
	rep, err = svc.ResyncPending(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, ResyncReport{Attempted: 2, Synced: 0}, rep)
	assert.Equal(t, 1, client.subCalls)
}
