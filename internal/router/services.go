package router

import (
	"fmt"

	"clinical-access/internal/adapters/auth/jwtauth"
	"clinical-access/internal/adapters/qr"
	mem "clinical-access/internal/adapters/storage/memory"
	pg "clinical-access/internal/adapters/storage/postgres"
	"clinical-access/internal/config"
	"clinical-access/internal/domain/accessgrants"
	"clinical-access/internal/domain/clinics"
	"clinical-access/internal/domain/emrsync"
	"clinical-access/internal/domain/encounters"
	"clinical-access/internal/domain/patients"
	"clinical-access/internal/domain/symptoms"
	"clinical-access/internal/platform/logger"
	"clinical-access/internal/platform/metrics"
	"clinical-access/internal/ports/auth"
	"clinical-access/internal/ports/emr"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
)

// Services agrupa todo lo que comparten el router HTTP y los comandos de mantenimiento.
type Services struct {
	Patients   *patients.Service
	Encounters *encounters.Service
	Clinics    *clinics.Service
	Grants     *accessgrants.Service
	Symptoms   *symptoms.Service

	Verifier auth.AuthVerifier
	Issuer   auth.CredentialIssuer
	Metrics  *metrics.Metrics
}

type ServiceOptions struct {
	Config *config.Config
	Logger logger.Logger

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sqlx.DB

	// Opcional: nil deja el EMR como no disponible (todo degrada).
	EMR emr.Client

	Registerer prometheus.Registerer
}

func NewServices(opts ServiceOptions) (*Services, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := metrics.New(reg, "clinical_access")

	var (
		patientRepo   patients.Repository
		encounterRepo encounters.Repository
		clinicRepo    clinics.Repository
		grantsRepo    accessgrants.Repository
		symptomRepo   symptoms.Repository
	)
	if opts.DB != nil {
		patientRepo = pg.NewPatientsRepo(opts.DB)
		encounterRepo = pg.NewEncountersRepo(opts.DB)
		clinicRepo = pg.NewClinicsRepo(opts.DB)
		grantsRepo = pg.NewAccessGrantsRepo(opts.DB.DB)
		symptomRepo = pg.NewSymptomsRepo(opts.DB)
	} else {
		patientRepo = mem.NewPatientRepo()
		encounterRepo = mem.NewEncounterRepo()
		clinicRepo = mem.NewClinicRepo()
		grantsRepo = mem.NewAccessGrantsRepo()
		symptomRepo = mem.NewSymptomRepo()
	}

	sync := emrsync.NewAdapter(opts.EMR, emrsync.Options{
		Timeout: cfg.EMRTimeout,
		Logger:  log,
		Metrics: m,
	})

	patientsSvc := patients.NewService(patientRepo, encounterRepo, sync, log)
	encountersSvc := encounters.NewService(encounterRepo, patientsSvc, sync, log)
	clinicsSvc := clinics.NewService(clinicRepo, sync)
	grantsSvc := accessgrants.NewService(
		grantsRepo,
		accessgrants.NewTokenGenerator(qr.NewRenderer()),
		patientsSvc,
		accessgrants.Options{TTL: cfg.GrantTTL, Logger: log, Metrics: m},
	)

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		// config.Validate ya exige JWT_SECRET fuera de development
		eph, err := jwtauth.EphemeralSecret()
		if err != nil {
			return nil, err
		}
		secret = eph
		log.Warn("JWT_SECRET not set, using ephemeral secret (tokens die with the process)", nil)
	}

	verifier, err := jwtauth.NewVerifier(secret, jwtauth.RoleLookup{
		auth.RolePatient: patientsSvc,
		auth.RoleClinic:  clinicsSvc,
	}, cfg.PrincipalCacheTTL)
	if err != nil {
		return nil, err
	}
	issuer, err := jwtauth.NewIssuer(secret, cfg.JWTTTL)
	if err != nil {
		return nil, err
	}

	return &Services{
		Patients:   patientsSvc,
		Encounters: encountersSvc,
		Clinics:    clinicsSvc,
		Grants:     grantsSvc,
		Symptoms:   symptoms.NewService(symptomRepo),
		Verifier:   verifier,
		Issuer:     issuer,
		Metrics:    m,
	}, nil
}
