package accessgrants

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"clinical-access/internal/domain/patients"
	"clinical-access/internal/platform/metrics"
	"clinical-access/internal/ports/auth"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	mu      sync.Mutex
	byID    map[string]Grant
	byToken map[string]string

	tokenLookups int
	failWith     error
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Grant{}, byToken: map[string]string{}}
}

func (r *testRepo) Put(ctx context.Context, g Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	if _, ok := r.byToken[g.Token]; ok {
		return ErrDuplicateToken
	}
	r.byID[g.ID] = g
	r.byToken[g.Token] = g.ID
	return nil
}

func (r *testRepo) GetByToken(ctx context.Context, token string) (Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokenLookups++
	id, ok := r.byToken[token]
	if !ok {
		return Grant{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.byID[id]
	if !ok {
		return Grant{}, ErrNotFound
	}
	return g, nil
}

func (r *testRepo) MarkRevoked(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if g.IsActive {
		g.IsActive = false
		g.UpdatedAt = at
		r.byID[id] = g
	}
	return nil
}

func (r *testRepo) ListByPatient(ctx context.Context, patientID string) ([]Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Grant, 0)
	for _, g := range r.byID {
		if g.PatientID == patientID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *testRepo) FindUsable(ctx context.Context, patientID, clinicID string, now time.Time) (Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.byID {
		if g.PatientID == patientID && g.UsableBy(clinicID, now) {
			return g, nil
		}
	}
	return Grant{}, ErrNotFound
}

func (r *testRepo) ListUsableByClinic(ctx context.Context, clinicID string, now time.Time) ([]Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Grant, 0)
	for _, g := range r.byID {
		if g.UsableBy(clinicID, now) {
			out = append(out, g)
		}
	}
	return out, nil
}

type pngRenderer struct{}

func (pngRenderer) Render(token string) ([]byte, error) { return []byte("png:" + token), nil }

type patientReader struct{}

func (patientReader) View(ctx context.Context, id string) (patients.View, error) {
	return patients.View{Patient: patients.Patient{ID: id, Name: "Ada"}}, nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc     *Service
	repo    *testRepo
	clock   *clock
	metrics *metrics.Metrics
}

func newFixture() fixture {
	repo := newTestRepo()
	clk := &clock{t: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
	m := metrics.NewNop()
	svc := NewService(repo, NewTokenGenerator(pngRenderer{}), patientReader{}, Options{TTL: 24 * time.Hour, Metrics: m})
	svc.now = clk.Now
	return fixture{svc: svc, repo: repo, clock: clk, metrics: m}
}

var (
	patientA = auth.Principal{SubjectID: "patient-a", Role: auth.RolePatient}
	patientB = auth.Principal{SubjectID: "patient-b", Role: auth.RolePatient}
	clinicA  = auth.Principal{SubjectID: "clinic-a", Role: auth.RoleClinic}
	clinicB  = auth.Principal{SubjectID: "clinic-b", Role: auth.RoleClinic}
)

// -------------------------
// Issue
// -------------------------

func TestIssue_CreatesActiveGrantWithTTL(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Issue(context.Background(), patientA, " clinic-a ")
	require.NoError(t, err)

	g := res.Grant
	assert.Equal(t, "patient-a", g.PatientID)
	assert.Equal(t, "clinic-a", g.ClinicID)
	assert.True(t, g.IsActive)
	assert.Equal(t, f.clock.Now().Add(24*time.Hour), g.ExpiresAt)
	assert.Equal(t, []byte("png:"+g.Token), res.QRCode)
	assert.NoError(t, func() error { _, err := NormalizeToken(g.Token); return err }())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GrantsIssued))
}

func TestIssue_RequiresClinic(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Issue(context.Background(), patientA, "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, f.repo.byID)
}

func TestIssue_OnlyPatients(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Issue(context.Background(), clinicA, "clinic-a")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestIssue_RetriesOnDuplicateToken(t *testing.T) {
	f := newFixture()
	fixed := uuid.MustParse("0b7a4a53-2d3c-4f6b-9a51-3a2c1e0f9d11")
	fresh := uuid.MustParse("5f0e9c1a-8b7d-4c2e-a1f3-6d4b2c9e8a70")

	first, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
	require.NoError(t, err)

	// fuerza colisión con un token ya emitido y después uno libre
	f.repo.byToken[fixed.String()] = first.Grant.ID
	seq := []uuid.UUID{fixed, fresh}
	f.svc.tokens.newUUID = func() (uuid.UUID, error) {
		id := seq[0]
		seq = seq[1:]
		return id, nil
	}

	res, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
	require.NoError(t, err)
	assert.Equal(t, fresh.String(), res.Grant.Token)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.IssueRetries))
}

func TestIssue_ExhaustedRetries(t *testing.T) {
	f := newFixture()
	fixed := uuid.MustParse("0b7a4a53-2d3c-4f6b-9a51-3a2c1e0f9d11")
	f.repo.byToken[fixed.String()] = "existing"

	calls := 0
	f.svc.tokens.newUUID = func() (uuid.UUID, error) {
		calls++
		return fixed, nil
	}

	_, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
	assert.ErrorIs(t, err, ErrExhaustedRetries)
	assert.Equal(t, maxIssueAttempts, calls)
}

func TestIssue_StoreFailureIsNotRetried(t *testing.T) {
	f := newFixture()
	f.repo.failWith = errors.New("connection reset")

	_, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrExhaustedRetries)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.IssueRetries))
}

func TestIssue_ConcurrentNeverDuplicatesTokens(t *testing.T) {
	f := newFixture()

	const n = 64
	var wg sync.WaitGroup
	tokens := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
			if assert.NoError(t, err) {
				tokens <- res.Grant.Token
			}
		}()
	}
	wg.Wait()
	close(tokens)

	seen := map[string]struct{}{}
	for tok := range tokens {
		_, dup := seen[tok]
		assert.False(t, dup, "duplicate token %s", tok)
		seen[tok] = struct{}{}
	}
	assert.Len(t, seen, n)
}

// -------------------------
// Scan
// -------------------------

func TestScan_RepeatableWithinValidity(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		out, err := f.svc.Scan(context.Background(), clinicA, res.Grant.Token)
		require.NoError(t, err)
		assert.Equal(t, "patient-a", out.Patient.Patient.ID)
		assert.Equal(t, res.Grant.ID, out.Grant.ID)
		assert.Equal(t, StateActive, out.Grant.State)
	}
}

func TestScan_ExpiryScenario(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
	require.NoError(t, err)

	_, err = f.svc.Scan(context.Background(), clinicA, res.Grant.Token)
	require.NoError(t, err)

	f.clock.Advance(25 * time.Hour)
	_, err = f.svc.Scan(context.Background(), clinicA, res.Grant.Token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestScan_ExpiresExactlyAtBoundary(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	_, err = f.svc.Scan(context.Background(), clinicA, res.Grant.Token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestScan_ExpiredRegardlessOfActiveFlag(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
	require.NoError(t, err)

	_, err = f.svc.Revoke(context.Background(), patientA, res.Grant.ID)
	require.NoError(t, err)

	f.clock.Advance(25 * time.Hour)
	_, err = f.svc.Scan(context.Background(), clinicA, res.Grant.Token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestScan_WrongClinic(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
	require.NoError(t, err)

	_, err = f.svc.Scan(context.Background(), clinicB, res.Grant.Token)
	assert.ErrorIs(t, err, ErrWrongClinic)
}

func TestScan_RevokedScenario(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
	require.NoError(t, err)

	_, err = f.svc.Revoke(context.Background(), patientA, res.Grant.ID)
	require.NoError(t, err)

	_, err = f.svc.Scan(context.Background(), clinicA, res.Grant.Token)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestScan_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Scan(context.Background(), clinicA, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScan_MalformedTokenSkipsStore(t *testing.T) {
	f := newFixture()

	for _, tok := range []string{"", "abc", "not-a-uuid-at-all-but-36-chars-long!", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"} {
		_, err := f.svc.Scan(context.Background(), clinicA, tok)
		assert.ErrorIs(t, err, ErrInvalidFormat, tok)
	}
	assert.Equal(t, 0, f.repo.tokenLookups)
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.ScanOutcomes.WithLabelValues("invalid_format")))
}

func TestScan_UppercaseTokenIsAccepted(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
	require.NoError(t, err)

	_, err = f.svc.Scan(context.Background(), clinicA, strings.ToUpper(res.Grant.Token))
	assert.NoError(t, err)
}

func TestScan_OnlyClinics(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
	require.NoError(t, err)

	_, err = f.svc.Scan(context.Background(), patientA, res.Grant.Token)
	assert.ErrorIs(t, err, ErrForbidden)
}

// -------------------------
// Revoke
// -------------------------

func TestRevoke_Idempotent(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	g1, err := f.svc.Revoke(context.Background(), patientA, res.Grant.ID)
	require.NoError(t, err)
	assert.False(t, g1.IsActive)

	f.clock.Advance(time.Hour)
	g2, err := f.svc.Revoke(context.Background(), patientA, res.Grant.ID)
	require.NoError(t, err)
	assert.False(t, g2.IsActive)
	assert.Equal(t, g1.UpdatedAt, g2.UpdatedAt, "second revoke does not touch the record")
}

func TestRevoke_ForeignPatientForbidden(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
	require.NoError(t, err)

	_, err = f.svc.Revoke(context.Background(), patientB, res.Grant.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.True(t, f.repo.byID[res.Grant.ID].IsActive)

	_, err = f.svc.Scan(context.Background(), clinicA, res.Grant.Token)
	assert.NoError(t, err)
}

func TestRevoke_ClinicForbidden(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
	require.NoError(t, err)

	_, err = f.svc.Revoke(context.Background(), clinicA, res.Grant.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.True(t, f.repo.byID[res.Grant.ID].IsActive)
}

func TestRevoke_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Revoke(context.Background(), patientA, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// -------------------------
// Listing / authorization
// -------------------------

func TestListMine_PatientSeesDerivedStates(t *testing.T) {
	f := newFixture()
	revoked, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
	require.NoError(t, err)
	_, err = f.svc.Revoke(context.Background(), patientA, revoked.Grant.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	_, err = f.svc.Issue(context.Background(), patientA, "clinic-b")
	require.NoError(t, err)

	items, err := f.svc.ListMine(context.Background(), patientA)
	require.NoError(t, err)
	require.Len(t, items, 2)

	now := f.clock.Now()
	assert.Equal(t, StateActive, items[0].StateAt(now))
	assert.Equal(t, StateRevoked, items[1].StateAt(now))

	f.clock.Advance(48 * time.Hour)
	now = f.clock.Now()
	assert.Equal(t, StateExpired, items[0].StateAt(now))
}

func TestListMine_ClinicSeesOnlyUsable(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
	require.NoError(t, err)
	r2, err := f.svc.Issue(context.Background(), patientB, "clinic-a")
	require.NoError(t, err)
	_, err = f.svc.Issue(context.Background(), patientB, "clinic-b")
	require.NoError(t, err)
	_, err = f.svc.Revoke(context.Background(), patientB, r2.Grant.ID)
	require.NoError(t, err)

	items, err := f.svc.ListMine(context.Background(), clinicA)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "patient-a", items[0].PatientID)
}

func TestAuthorizePatientAccess(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Issue(context.Background(), patientA, "clinic-a")
	require.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, f.svc.AuthorizePatientAccess(ctx, patientA, "patient-a"))
	assert.ErrorIs(t, f.svc.AuthorizePatientAccess(ctx, patientB, "patient-a"), ErrForbidden)
	assert.NoError(t, f.svc.AuthorizePatientAccess(ctx, clinicA, "patient-a"))
	assert.ErrorIs(t, f.svc.AuthorizePatientAccess(ctx, clinicB, "patient-a"), ErrForbidden)

	_, err = f.svc.Revoke(ctx, patientA, res.Grant.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.AuthorizePatientAccess(ctx, clinicA, "patient-a"), ErrForbidden)

	assert.ErrorIs(t, f.svc.AuthorizePatientAccess(ctx, auth.Principal{}, "patient-a"), auth.ErrUnauthenticated)
}
