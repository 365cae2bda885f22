package emrsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinical-access/internal/platform/logger"
	"clinical-access/internal/platform/metrics"
	"clinical-access/internal/ports/emr"
)

const DefaultTimeout = 10 * time.Second

// Razones de datos degradados expuestas al cliente.
const (
	ReasonNotSynced   = "not_synced"
	ReasonUnavailable = "external_unavailable"
	ReasonRejected    = "external_rejected"
	ReasonError       = "external_error"
)

// Adapter envuelve cada llamada al EMR con timeout y una clasificación uniforme de fallas.
// Best-effort (Fetch/Mirror*) nunca devuelve error; los sincrónicos (Extract, CheckInteractions) sí.
type Adapter struct {
	client  emr.Client
	timeout time.Duration
	log     logger.Logger
	metrics *metrics.Metrics
}

type Options struct {
	Timeout time.Duration
	Logger  logger.Logger
	Metrics *metrics.Metrics
}

func NewAdapter(client emr.Client, opts Options) *Adapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNop()
	}
	return &Adapter{
		client:  client,
		timeout: timeout,
		log:     log.With(map[string]any{"component": "emrsync"}),
		metrics: m,
	}
}

// Enrichment es el resultado de una lectura best-effort.
type Enrichment struct {
	Payload  json.RawMessage
	Degraded bool
	Reason   string
}

func (a *Adapter) FetchPatient(ctx context.Context, externalID *string) Enrichment {
	if externalID == nil || strings.TrimSpace(*externalID) == "" {
		return Enrichment{Degraded: true, Reason: ReasonNotSynced}
	}

	var res emr.Result
	err := a.call(ctx, "fetch_record", func(ctx context.Context) error {
		var err error
		res, err = a.client.FetchRecord(ctx, *externalID)
		return err
	})
	if err != nil {
		a.log.Warn("emr enrichment failed, serving local data", map[string]any{
			"external_id": *externalID,
			"err":         err,
		})
		return Enrichment{Degraded: true, Reason: reasonFor(err)}
	}
	return Enrichment{Payload: res.Payload}
}

// MirrorPatient intenta una vez reflejar el paciente. ok=false deja el registro local sin ExternalID.
func (a *Adapter) MirrorPatient(ctx context.Context, localID string, in emr.PatientRecord) (string, bool) {
	var res emr.Result
	err := a.call(ctx, "create_record", func(ctx context.Context) error {
		var err error
		res, err = a.client.CreateRecord(ctx, in)
		return err
	})
	if err != nil {
		a.log.Warn("emr patient mirror failed, left pending", map[string]any{
			"patient_id": localID,
			"err":        err,
		})
		return "", false
	}
	return res.ExternalID, true
}

func (a *Adapter) MirrorEncounter(ctx context.Context, localID string, in emr.EncounterRecord) (string, bool) {
	var res emr.Result
	err := a.call(ctx, "create_sub_record", func(ctx context.Context) error {
		var err error
		res, err = a.client.CreateSubRecord(ctx, in)
		return err
	})
	if err != nil {
		a.log.Warn("emr encounter mirror failed, left pending", map[string]any{
			"encounter_id": localID,
			"err":          err,
		})
		return "", false
	}
	return res.ExternalID, true
}

// Extract es sincrónico: si el EMR falla, el caller no debe escribir nada local.
func (a *Adapter) Extract(ctx context.Context, text, externalPatientID string) (emr.Extraction, error) {
	var out emr.Extraction
	err := a.call(ctx, "extract", func(ctx context.Context) error {
		var err error
		out, err = a.client.Extract(ctx, text, externalPatientID)
		return err
	})
	if err != nil {
		return emr.Extraction{}, err
	}
	return out, nil
}

func (a *Adapter) CheckInteractions(ctx context.Context, medications []string) (json.RawMessage, error) {
	var out json.RawMessage
	err := a.call(ctx, "check_interactions", func(ctx context.Context) error {
		var err error
		out, err = a.client.CheckInteractions(ctx, medications)
		return err
	})
	return out, err
}

// call aplica el timeout y normaliza el error a una de las clases de emr.
func (a *Adapter) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if a == nil || a.client == nil {
		return fmt.Errorf("%w: no client configured", emr.ErrUnavailable)
	}

	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	err := normalize(cctx, fn(cctx))
	a.metrics.EMRCallLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	a.metrics.EMRCalls.WithLabelValues(op, outcome(err)).Inc()

	if err != nil {
		a.log.Debug("emr call failed", map[string]any{"op": op, "err": err})
	}
	return err
}

func normalize(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, emr.ErrUnavailable), errors.Is(err, emr.ErrRejected), errors.Is(err, emr.ErrExternal):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		// timeout cuenta como indisponible
		return fmt.Errorf("%w: %v", emr.ErrUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", emr.ErrExternal, err)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, emr.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, emr.ErrRejected):
		return "rejected"
	default:
		return "error"
	}
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, emr.ErrUnavailable):
		return ReasonUnavailable
	case errors.Is(err, emr.ErrRejected):
		return ReasonRejected
	default:
		return ReasonError
	}
}
