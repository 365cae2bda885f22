// @title clinical-access API
// @version 1.0
// @description Acceso temporal por QR al historial clínico del paciente.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinical-access/internal/adapters/emr/dorra"
	pg "clinical-access/internal/adapters/storage/postgres"
	"clinical-access/internal/config"
	"clinical-access/internal/platform/logger"
	"clinical-access/internal/router"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinical-access",
		Short: "QR access grants over patient records with EMR sync",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			if cfg.DBDSN == "" {
				return errors.New("DB_DSN is required for migrate")
			}
			db, err := pg.Open(cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			if err := pg.Migrate(cmd.Context(), db.DB); err != nil {
				return err
			}
			log.Info("schema applied", nil)
			return nil
		},
	}
}

// reconcileCmd reintenta el espejo en el EMR de pacientes y consultas que quedaron sin ExternalID.
// Los pacientes van primero: una consulta no se puede espejar sin el paciente sincronizado.
func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Retry EMR sync for records stuck without external id",
		RunE: func(cmd *cobra.Command, args []string) error {
			pageSize, _ := cmd.Flags().GetInt("page-size")

			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			if !cfg.EMRConfigured() {
				return errors.New("EMR_BASE_URL and EMR_API_KEY are required for reconcile")
			}
			db, err := openDB(cfg, log)
			if err != nil {
				return err
			}
			if db == nil {
				return errors.New("DB_DSN is required for reconcile (in-memory state is empty)")
			}
			defer db.Close()

			svcs, err := buildServices(cfg, log, db, prometheus.NewRegistry())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pr, err := svcs.Patients.ResyncPending(ctx, pageSize)
			if err != nil {
				return fmt.Errorf("resync patients: %w", err)
			}
			er, err := svcs.Encounters.ResyncPending(ctx, pageSize)
			if err != nil {
				return fmt.Errorf("resync encounters: %w", err)
			}

			log.Info("reconcile finished", map[string]any{
				"patients_attempted":   pr.Attempted,
				"patients_synced":      pr.Synced,
				"encounters_attempted": er.Attempted,
				"encounters_synced":    er.Synced,
			})
			return nil
		},
	}
	cmd.Flags().Int("page-size", 100, "Records fetched per page while scanning pending rows")
	return cmd
}

func runServer() error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	db, err := openDB(cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svcs, err := buildServices(cfg, log, db, reg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: router.NewRouter(router.Options{
			Config:   cfg,
			Logger:   log,
			Services: svcs,
			Gatherer: reg,
		}),
		ReadTimeout: 5 * time.Second,
		// el scan puede esperar al EMR hasta EMR_TIMEOUT
		WriteTimeout: cfg.EMRTimeout + 10*time.Second,
	}

	go func() {
		log.Info("starting server", map[string]any{"addr": srv.Addr, "env": cfg.Env})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", map[string]any{"err": err})
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server stopped", nil)
	return nil
}

func bootstrap() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    cfg.AppName,
	})
	return cfg, log, nil
}

// openDB devuelve nil sin error cuando no hay DB_DSN (modo in-memory).
func openDB(cfg *config.Config, log logger.Logger) (*sqlx.DB, error) {
	if cfg.DBDSN == "" {
		log.Warn("DB_DSN not set, using in-memory storage", nil)
		return nil, nil
	}
	db, err := pg.Open(cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return db, nil
}

func buildServices(cfg *config.Config, log logger.Logger, db *sqlx.DB, reg prometheus.Registerer) (*router.Services, error) {
	emrClient, err := dorra.NewClient(dorra.Config{
		BaseURL: cfg.EMRBaseURL,
		APIKey:  cfg.EMRAPIKey,
		Timeout: cfg.EMRTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("emr client: %w", err)
	}
	if !emrClient.IsConfigured() {
		log.Warn("EMR_API_KEY not set, external EMR calls will degrade", nil)
	}

	return router.NewServices(router.ServiceOptions{
		Config:     cfg,
		Logger:     log,
		DB:         db,
		EMR:        emrClient,
		Registerer: reg,
	})
}
