package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	artifactslocalfs "psephos/contexts/governance/artifacts/adapters/localfs"
	artifactsmemory "psephos/contexts/governance/artifacts/adapters/memory"
	artifactsapp "psephos/contexts/governance/artifacts/application"
	artifactsports "psephos/contexts/governance/artifacts/ports"
	auditpostgres "psephos/contexts/governance/audit-log/adapters/postgres"
	ballotledger "psephos/contexts/governance/ballot-ledger"
	ledgerpostgres "psephos/contexts/governance/ballot-ledger/adapters/postgres"
	"psephos/contexts/governance/credentials"
	credpostgres "psephos/contexts/governance/credentials/adapters/postgres"
	"psephos/contexts/governance/lifecycle"
	lifecyclepostgres "psephos/contexts/governance/lifecycle/adapters/postgres"
	lifecycleentities "psephos/contexts/governance/lifecycle/domain/entities"
	"psephos/contexts/governance/notifications"
	notifpostgres "psephos/contexts/governance/notifications/adapters/postgres"
	notifsmtp "psephos/contexts/governance/notifications/adapters/smtp"
	"psephos/internal/platform/config"
	"psephos/internal/platform/db"
)

// Package bootstrap is the composition root. Construction and cross-module
// wiring happen here so module code never imports a sibling module.

// App is the fully wired worker process.
type App struct {
	Lifecycle     lifecycle.Module
	Ledger        ballotledger.Module
	Credentials   credentials.Module
	Notifications notifications.Module

	postgres      *db.Postgres
	sweepInterval time.Duration
	logger        *slog.Logger
}

func Build() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("PSEPHOS_POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	if err := migrateAll(pg); err != nil {
		_ = pg.Close()
		return nil, err
	}

	clock := SystemClock{}

	auditRepo := auditpostgres.NewRepository(pg.DB, logger)
	credRepo := credpostgres.NewRepository(pg.DB, logger)
	ledgerRepo := ledgerpostgres.NewRepository(pg.DB, logger)
	notifRepo := notifpostgres.NewRepository(pg.DB, logger)
	electionRepo := lifecyclepostgres.NewRepository(pg.DB, logger)

	credModule := credentials.NewModule(credentials.Dependencies{
		Credentials: credRepo,
		Clock:       clock,
		Logger:      logger,
	})

	notifModule := notifications.NewModule(notifications.Dependencies{
		Messages: notifRepo,
		Sender: notifsmtp.NewSender(notifsmtp.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			NoTLS:    cfg.SMTPNoTLS,
		}),
		Clock:     clock,
		BatchSize: cfg.RelayBatchSize,
		Logger:    logger,
	})

	ledgerModule := ballotledger.NewModule(ballotledger.Dependencies{
		Ballots:     ledgerRepo,
		Credentials: credentialResolver{repo: credRepo},
		Elections:   electionGate{repo: electionRepo},
		Audit:       auditRepo,
		Clock:       clock,
		Logger:      logger,
	})

	var blobs artifactsports.BlobStore
	if cfg.ArtifactDir != "" {
		blobs = artifactslocalfs.NewStore(cfg.ArtifactDir)
	} else {
		blobs = artifactsmemory.NewStore()
	}
	publisher := artifactsapp.Publisher{
		Blobs: blobs,
		BallotsExport: func(ctx context.Context, electionID int64) ([]byte, error) {
			export, err := ledgerModule.Export.BuildBallotsExport(ctx, electionID)
			if err != nil {
				return nil, err
			}
			return json.MarshalIndent(export, "", "  ")
		},
		AuditExport: buildAuditExport(auditRepo),
		Logger:      logger,
	}

	lifecycleModule := lifecycle.NewModule(lifecycle.Dependencies{
		Elections:   electionRepo,
		Roll:        fileRollProvider{path: cfg.RollFile},
		Templates:   staticTemplates{snapshot: votingTemplate(cfg)},
		Credentials: credentialIssuer{module: credModule},
		Notifier:    credentialNotifier{module: notifModule},
		Ballots:     ballotSource{repo: ledgerRepo},
		Publisher:   artifactPublisher{publisher: publisher},
		Audit:       auditRepo,
		Atomic:      pg,
		Clock:       clock,
		Logger:      logger,
	})

	return &App{
		Lifecycle:     lifecycleModule,
		Ledger:        ledgerModule,
		Credentials:   credModule,
		Notifications: notifModule,
		postgres:      pg,
		sweepInterval: cfg.SweepInterval,
		logger:        logger,
	}, nil
}

// migrateAll installs every module's schema, then the ledger guard callbacks
// so no later session can mutate ballot rows through gorm.
func migrateAll(pg *db.Postgres) error {
	if err := auditpostgres.Migrate(pg.DB); err != nil {
		return err
	}
	if err := credpostgres.Migrate(pg.DB); err != nil {
		return err
	}
	if err := ledgerpostgres.Migrate(pg.DB); err != nil {
		return err
	}
	if err := ledgerpostgres.RegisterGuards(pg.DB); err != nil {
		return err
	}
	if err := notifpostgres.Migrate(pg.DB); err != nil {
		return err
	}
	return lifecyclepostgres.Migrate(pg.DB)
}

func votingTemplate(cfg config.Config) lifecycleentities.EmailSnapshot {
	return lifecycleentities.EmailSnapshot{
		Subject:  cfg.VotingMailSubject,
		HTMLBody: cfg.VotingMailHTML,
		TextBody: cfg.VotingMailText,
	}
}

// Run drives the scheduled work: the lifecycle sweep, the mail relay and the
// chain-verification pass, every sweep interval until the context ends.
func (a *App) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.sweepInterval)
	defer ticker.Stop()

	a.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"sweep_interval", a.sweepInterval.String(),
	)

	for {
		if _, err := a.Lifecycle.Sweeper.RunOnce(ctx, false); err != nil {
			a.logRunError("sweep", err)
		}
		if _, err := a.Notifications.Relay.RunOnce(ctx); err != nil {
			a.logRunError("relay", err)
		}
		if _, err := a.Ledger.Verifier.RunOnce(ctx); err != nil {
			a.logRunError("verify_chains", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (a *App) logRunError(pass string, err error) {
	a.logger.Error("worker pass failed",
		"event", "bootstrap_worker_pass_failed",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"pass", pass,
		"error", err.Error(),
	)
}

func (a *App) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}
