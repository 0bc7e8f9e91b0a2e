package app

import (
	"fmt"
	"log/slog"
	"net/http"

	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/icctweb/team-registration/internal/config"
	"github.com/icctweb/team-registration/internal/domain/blobstore"
	"github.com/icctweb/team-registration/internal/domain/idempotency"
	"github.com/icctweb/team-registration/internal/domain/registration"
	"github.com/icctweb/team-registration/internal/domain/sequence"
	"github.com/icctweb/team-registration/internal/infrastructure/mailer"
	"github.com/icctweb/team-registration/internal/infrastructure/repository/memory"
	"github.com/icctweb/team-registration/internal/infrastructure/repository/postgres"
	"github.com/icctweb/team-registration/internal/infrastructure/storage"
	"github.com/icctweb/team-registration/internal/interfaces/httpapi"
	idgen "github.com/icctweb/team-registration/internal/platform/id"
	"github.com/icctweb/team-registration/internal/platform/resilience"
	"github.com/icctweb/team-registration/internal/usecase"
)

func NewHTTPServer(cfg config.Config, logger *slog.Logger) (*http.Server, error) {
	var (
		teamRepo registration.Repository
		seqRepo  sequence.Repository
		idemRepo idempotency.Repository
	)

	if cfg.DBURL == "" {
		logger.Warn("DB_URL is empty, using in-memory repositories")
		teamRepo = memory.NewTeamRepository()
		seqRepo = memory.NewSequenceRepository(memory.SeedCounters())
		idemRepo = memory.NewIdempotencyRepository()
	} else {
		db, err := otelsqlx.Connect("postgres",
			normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary),
			otelsql.WithDBSystem("postgresql"),
			otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
			otelsql.WithQueryFormatter(formatDBQueryForTrace),
		)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		teamRepo = postgres.NewTeamRepository(db)
		seqRepo = postgres.NewSequenceRepository(db)
		idemRepo = postgres.NewIdempotencyRepository(db)
	}

	var store blobstore.Store
	if cfg.StorageBaseURL == "" {
		logger.Warn("STORAGE_BASE_URL is empty, using in-memory blob store")
		store = storage.NewMemoryStore()
	} else {
		store = storage.NewClient(storage.ClientConfig{
			BaseURL: cfg.StorageBaseURL,
			Token:   cfg.StorageToken,
			Timeout: cfg.StorageTimeout,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.StorageCircuitEnabled,
				FailureThreshold: cfg.StorageCircuitFailureCount,
				OpenTimeout:      cfg.StorageCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.StorageCircuitHalfOpenReq,
			},
		}, logger)
	}

	var sender mailer.Sender
	if cfg.MailerBaseURL == "" {
		logger.Warn("MAILER_BASE_URL is empty, outbound mail is log-only")
		sender = mailer.NewLogOnly(logger)
	} else {
		sender = mailer.NewClient(mailer.ClientConfig{
			BaseURL:     cfg.MailerBaseURL,
			Token:       cfg.MailerToken,
			FromAddress: cfg.MailerFromAddress,
			FromName:    cfg.MailerFromName,
			Timeout:     cfg.MailerTimeout,
		}, logger)
	}
	notifier := mailer.NewNotifier(sender)

	dbRetry := resilience.RetryPolicy{MaxAttempts: cfg.DBRetryAttempts, BaseDelay: cfg.DBRetryBaseDelay}
	uploadRetry := resilience.RetryPolicy{MaxAttempts: cfg.UploadRetryAttempts, BaseDelay: cfg.UploadRetryBaseDelay}
	emailRetry := resilience.RetryPolicy{MaxAttempts: cfg.EmailRetryAttempts, BaseDelay: cfg.EmailRetryBaseDelay}

	allocator := usecase.NewSequenceAllocator(seqRepo)
	uploader := usecase.NewUploadOrchestrator(store, uploadRetry, cfg.UploadWorkers, logger)
	registrationSvc := usecase.NewRegistrationService(
		teamRepo,
		idemRepo,
		allocator,
		uploader,
		store,
		notifier,
		idgen.NewRandomGenerator(),
		logger,
		usecase.RegistrationServiceConfig{
			DBRetry:        dbRetry,
			EmailRetry:     emailRetry,
			IdempotencyTTL: cfg.IdempotencyTTL,
		},
	)
	approvalSvc := usecase.NewApprovalService(
		teamRepo,
		store,
		notifier,
		logger,
		usecase.ApprovalServiceConfig{
			DBRetry:    dbRetry,
			MoveRetry:  uploadRetry,
			EmailRetry: emailRetry,
		},
	)

	handler := httpapi.NewHandler(registrationSvc, approvalSvc, allocator, logger)
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins, cfg.AdminToken)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	if server.Addr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return server, nil
}
