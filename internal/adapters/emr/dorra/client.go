package dorra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"clinical-access/internal/platform/httpclient"
	"clinical-access/internal/ports/emr"
)

var ErrDorraNotConfigured = errors.New("dorra client not configured")

const (
	pathPatientsCreate    = "/v1/patients/create"
	pathPatients          = "/v1/patients"
	pathEncounters        = "/v1/encounters"
	pathAIEMR             = "/v1/ai/emr"
	pathAIPatient         = "/v1/ai/patient"
	pathDrugInteractions  = "/v1/pharmavigilance/interactions"
	defaultTimeout        = 10 * time.Second
	authorizationTemplate = "Token %s"
)

// Config del cliente Dorra.
// BaseURL y APIKey vienen de env (EMR_BASE_URL / EMR_API_KEY).
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implementa emr.Client contra el API de Dorra.
// Se construye una sola vez al arrancar y se comparte entre requests.
type Client struct {
	http   *httpclient.Client
	apiKey string
}

var _ emr.Client = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc, err := httpclient.NewWithBaseURL(strings.TrimSpace(cfg.BaseURL), timeout)
	if err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	// Dorra usa prefijo "Token", no "Bearer".
	hc.Headers = map[string]string{"Authorization": fmt.Sprintf(authorizationTemplate, apiKey)}

	return &Client{http: hc, apiKey: apiKey}, nil
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http != nil && c.http.BaseURL != "" && c.apiKey != ""
}

type patientPayload struct {
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	DateOfBirth string   `json:"date_of_birth"`
	Gender      string   `json:"gender"`
	Email       string   `json:"email"`
	PhoneNumber string   `json:"phone_number"`
	Address     string   `json:"address"`
	Allergies   []string `json:"allergies"`
}

func toPatientPayload(in emr.PatientRecord) patientPayload {
	first, last := splitName(in.Name)
	gender := strings.TrimSpace(in.Gender)
	if gender == "" {
		gender = "Male"
	}
	allergies := in.Allergies
	if allergies == nil {
		allergies = []string{}
	}
	dob := ""
	if !in.DOB.IsZero() {
		dob = in.DOB.Format("2006-01-02")
	}
	return patientPayload{
		FirstName:   first,
		LastName:    last,
		DateOfBirth: dob,
		Gender:      gender,
		Email:       in.Email,
		PhoneNumber: in.Phone,
		Address:     in.Address,
		Allergies:   allergies,
	}
}

// splitName: "Ada Lovelace King" => ("Ada", "Lovelace King"). Un solo nombre se repite como apellido.
func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], parts[0]
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// CreateRecord intenta el endpoint estándar; si Dorra lo rechaza, prueba creación por IA.
func (c *Client) CreateRecord(ctx context.Context, in emr.PatientRecord) (emr.Result, error) {
	if !c.IsConfigured() {
		return emr.Result{}, fmt.Errorf("%w: %v", emr.ErrUnavailable, ErrDorraNotConfigured)
	}
	p := toPatientPayload(in)

	var raw json.RawMessage
	err := classify(c.http.DoJSON(ctx, http.MethodPost, pathPatientsCreate, nil, p, &raw))
	if errors.Is(err, emr.ErrRejected) {
		prompt := fmt.Sprintf("Create a patient: %s %s, email: %s, DOB: %s, gender: %s, phone: %s, address: %s",
			p.FirstName, p.LastName, p.Email, p.DateOfBirth, p.Gender, p.PhoneNumber, p.Address)
		raw = nil
		err = classify(c.http.DoJSON(ctx, http.MethodPost, pathAIPatient, nil, map[string]string{"prompt": prompt}, &raw))
	}
	if err != nil {
		return emr.Result{}, err
	}
	return resultFrom(raw)
}

func (c *Client) FetchRecord(ctx context.Context, externalID string) (emr.Result, error) {
	if !c.IsConfigured() {
		return emr.Result{}, fmt.Errorf("%w: %v", emr.ErrUnavailable, ErrDorraNotConfigured)
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return emr.Result{}, fmt.Errorf("%w: external id required", emr.ErrRejected)
	}

	var raw json.RawMessage
	if err := classify(c.http.DoJSON(ctx, http.MethodGet, pathPatients+"/"+url.PathEscape(externalID), nil, nil, &raw)); err != nil {
		return emr.Result{}, err
	}
	return emr.Result{ExternalID: externalID, Payload: raw}, nil
}

type encounterPayload struct {
	PatientID   string           `json:"patientId"`
	Summary     string           `json:"summary"`
	Symptoms    []string         `json:"symptoms"`
	Diagnosis   string           `json:"diagnosis"`
	Medications []emr.Medication `json:"medications"`
	Vitals      emr.Vitals       `json:"vitals"`
}

func (c *Client) CreateSubRecord(ctx context.Context, in emr.EncounterRecord) (emr.Result, error) {
	if !c.IsConfigured() {
		return emr.Result{}, fmt.Errorf("%w: %v", emr.ErrUnavailable, ErrDorraNotConfigured)
	}
	body := encounterPayload{
		PatientID:   in.ExternalPatientID,
		Summary:     in.Summary,
		Symptoms:    nonNil(in.Symptoms),
		Diagnosis:   in.Diagnosis,
		Medications: in.Medications,
		Vitals:      in.Vitals,
	}
	if body.Medications == nil {
		body.Medications = []emr.Medication{}
	}

	var raw json.RawMessage
	if err := classify(c.http.DoJSON(ctx, http.MethodPost, pathEncounters, nil, body, &raw)); err != nil {
		return emr.Result{}, err
	}
	return resultFrom(raw)
}

type extractResponse struct {
	Resource string `json:"resource"`
	Data     *struct {
		ID             json.RawMessage   `json:"id"`
		ChiefComplaint string            `json:"chief_complaint"`
		Symptoms       []string          `json:"symptoms"`
		Diagnosis      string            `json:"diagnosis"`
		Medications    []json.RawMessage `json:"medications"`
		Vitals         emr.Vitals        `json:"vitals"`
	} `json:"data"`
}

func (c *Client) Extract(ctx context.Context, text string, externalPatientID string) (emr.Extraction, error) {
	if !c.IsConfigured() {
		return emr.Extraction{}, fmt.Errorf("%w: %v", emr.ErrUnavailable, ErrDorraNotConfigured)
	}
	// Dorra exige el id de paciente como entero.
	pid, err := strconv.Atoi(strings.TrimSpace(externalPatientID))
	if err != nil {
		return emr.Extraction{}, fmt.Errorf("%w: patient id must be numeric", emr.ErrRejected)
	}

	var raw json.RawMessage
	body := map[string]any{"prompt": text, "patient": pid}
	if err := classify(c.http.DoJSON(ctx, http.MethodPost, pathAIEMR, nil, body, &raw)); err != nil {
		return emr.Extraction{}, err
	}

	var resp extractResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return emr.Extraction{}, fmt.Errorf("%w: invalid extraction payload: %v", emr.ErrExternal, err)
	}

	out := emr.Extraction{Resource: resp.Resource, Raw: raw}
	if resp.Data != nil {
		out.ExternalID = rawID(resp.Data.ID)
		out.ChiefComplaint = resp.Data.ChiefComplaint
		out.Symptoms = resp.Data.Symptoms
		out.Diagnosis = resp.Data.Diagnosis
		out.Vitals = resp.Data.Vitals
		out.Medications = decodeMedications(resp.Data.Medications)
	}
	return out, nil
}

func (c *Client) CheckInteractions(ctx context.Context, medications []string) (json.RawMessage, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("%w: %v", emr.ErrUnavailable, ErrDorraNotConfigured)
	}
	q := url.Values{}
	for _, m := range medications {
		if m = strings.TrimSpace(m); m != "" {
			q.Add("medications", m)
		}
	}

	var raw json.RawMessage
	if err := classify(c.http.DoJSON(ctx, http.MethodGet, pathDrugInteractions+"?"+q.Encode(), nil, nil, &raw)); err != nil {
		return nil, err
	}
	return raw, nil
}

// classify traduce errores del httpclient a las clases de emr.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, httpclient.ErrTransport) {
		return fmt.Errorf("%w: %v", emr.ErrUnavailable, err)
	}
	var he *httpclient.HTTPError
	if errors.As(err, &he) {
		switch {
		case he.Temporary():
			return fmt.Errorf("%w: %v", emr.ErrUnavailable, err)
		case he.ClientError():
			return fmt.Errorf("%w: %v", emr.ErrRejected, err)
		}
	}
	return fmt.Errorf("%w: %v", emr.ErrExternal, err)
}

func resultFrom(raw json.RawMessage) (emr.Result, error) {
	var body struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return emr.Result{}, fmt.Errorf("%w: invalid payload: %v", emr.ErrExternal, err)
	}
	id := rawID(body.ID)
	if id == "" {
		return emr.Result{}, fmt.Errorf("%w: response missing id", emr.ErrExternal)
	}
	return emr.Result{ExternalID: id, Payload: raw}, nil
}

// rawID acepta ids numéricos o string.
func rawID(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if unq, err := strconv.Unquote(s); err == nil {
		return strings.TrimSpace(unq)
	}
	return s
}

// decodeMedications tolera items como objeto o como string suelto.
func decodeMedications(items []json.RawMessage) []emr.Medication {
	out := make([]emr.Medication, 0, len(items))
	for _, it := range items {
		var m emr.Medication
		if err := json.Unmarshal(it, &m); err == nil {
			out = append(out, m)
			continue
		}
		var name string
		if err := json.Unmarshal(it, &name); err == nil && strings.TrimSpace(name) != "" {
			out = append(out, emr.Medication{Name: strings.TrimSpace(name)})
		}
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
