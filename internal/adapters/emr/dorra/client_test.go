package dorra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinical-access/internal/ports/emr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Timeout: time.Second})
	require.NoError(t, err)
	return c
}

func TestCreateRecord_MapsPatientAndReadsNumericID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathPatientsCreate, r.URL.Path)
		assert.Equal(t, "Token k", r.Header.Get("Authorization"))

		var body patientPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Ada", body.FirstName)
		assert.Equal(t, "Lovelace King", body.LastName)
		assert.Equal(t, "1990-05-01", body.DateOfBirth)
		assert.Equal(t, "Male", body.Gender)
		assert.Equal(t, []string{}, body.Allergies)

		_, _ = w.Write([]byte(`{"id": 311, "first_name": "Ada"}`))
	})

	res, err := c.CreateRecord(context.Background(), emr.PatientRecord{
		Name: "Ada Lovelace King",
		DOB:  time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "311", res.ExternalID)
	assert.Contains(t, string(res.Payload), "first_name")
}

func TestCreateRecord_FallsBackToAIPatientOnRejection(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		if r.URL.Path == pathPatientsCreate {
			http.Error(w, `{"message":"bad"}`, http.StatusBadRequest)
			return
		}
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body["prompt"], "Create a patient: Ada Ada")
		_, _ = w.Write([]byte(`{"id": "77"}`))
	})

	res, err := c.CreateRecord(context.Background(), emr.PatientRecord{Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "77", res.ExternalID)
	assert.Equal(t, []string{pathPatientsCreate, pathAIPatient}, calls)
}

func TestCreateRecord_UnavailableDoesNotFallBack(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.CreateRecord(context.Background(), emr.PatientRecord{Name: "Ada"})
	assert.ErrorIs(t, err, emr.ErrUnavailable)
	assert.Equal(t, 1, calls)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, emr.ErrRejected},
		{http.StatusUnprocessableEntity, emr.ErrRejected},
		{http.StatusTooManyRequests, emr.ErrUnavailable},
		{http.StatusBadGateway, emr.ErrUnavailable},
		{http.StatusInternalServerError, emr.ErrExternal},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})
		_, err := c.FetchRecord(context.Background(), "9")
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
	}
}

func TestFetchRecord_TimeoutIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.FetchRecord(ctx, "9")
	assert.ErrorIs(t, err, emr.ErrUnavailable)
}

func TestExtract_ParsesEncounterAndToleratesStringMedications(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathAIEMR, r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 12, body["patient"])

		_, _ = w.Write([]byte(`{
			"resource": "Encounter",
			"data": {
				"id": 501,
				"chief_complaint": "headache",
				"symptoms": ["nausea"],
				"diagnosis": "migraine",
				"medications": ["ibuprofen", {"name": "sumatriptan", "dosage": "50mg", "frequency": "prn"}],
				"vitals": {"temperature": "37.1"}
			}
		}`))
	})

	out, err := c.Extract(context.Background(), "pt reports headache", "12")
	require.NoError(t, err)
	assert.Equal(t, emr.ResourceEncounter, out.Resource)
	assert.Equal(t, "501", out.ExternalID)
	assert.Equal(t, "headache", out.ChiefComplaint)
	assert.Equal(t, []emr.Medication{{Name: "ibuprofen"}, {Name: "sumatriptan", Dosage: "50mg", Frequency: "prn"}}, out.Medications)
	assert.Equal(t, "37.1", out.Vitals.Temperature)
}

func TestExtract_NonNumericPatientIsRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected upstream call")
	})
	_, err := c.Extract(context.Background(), "text", "abc")
	assert.ErrorIs(t, err, emr.ErrRejected)
}

func TestCheckInteractions_RepeatsQueryParam(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"aspirin", "warfarin"}, r.URL.Query()["medications"])
		_, _ = w.Write([]byte(`{"interactions": []}`))
	})
	raw, err := c.CheckInteractions(context.Background(), []string{"aspirin", " ", "warfarin"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"interactions": []}`, string(raw))
}

func TestNotConfigured_IsUnavailable(t *testing.T) {
	c, err := NewClient(Config{})
	require.NoError(t, err)
	assert.False(t, c.IsConfigured())

	_, err = c.FetchRecord(context.Background(), "1")
	assert.ErrorIs(t, err, emr.ErrUnavailable)
}
