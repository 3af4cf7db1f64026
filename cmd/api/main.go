package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/adityawrm/docintel/internal/application"
	appanalyses "github.com/adityawrm/docintel/internal/application/analyses"
	appregistry "github.com/adityawrm/docintel/internal/application/registry"
	appsummaries "github.com/adityawrm/docintel/internal/application/summaries"
	"github.com/adityawrm/docintel/internal/config"
	domain "github.com/adityawrm/docintel/internal/domain/analyses"
	"github.com/adityawrm/docintel/internal/domain/analyzers"
	"github.com/adityawrm/docintel/internal/domain/cases"
	"github.com/adityawrm/docintel/internal/domain/pollerrors"
	openaiclient "github.com/adityawrm/docintel/internal/infra/ai/openai"
	mysqlp "github.com/adityawrm/docintel/internal/infra/db/mysql"
	postgresp "github.com/adityawrm/docintel/internal/infra/db/postgres"
	"github.com/adityawrm/docintel/internal/infra/extraction/contentai"
	"github.com/adityawrm/docintel/internal/infra/httpserver"
	minioStore "github.com/adityawrm/docintel/internal/infra/storage"
	"github.com/adityawrm/docintel/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect database (mysql default, postgres via config)
	var db *sql.DB
	var jobs domain.Repository
	var caseRepo cases.Repository
	var analyzerRepo analyzers.Repository
	var pollErrRepo pollerrors.Repository

	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		jobs = postgresp.NewJobRepository(db)
		caseRepo = postgresp.NewCaseRepository(db)
		analyzerRepo = postgresp.NewAnalyzerRepository(db)
		pollErrRepo = postgresp.NewPollErrorRepository(db)
	case "mysql":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		jobs = mysqlp.NewJobRepository(db)
		caseRepo = mysqlp.NewCaseRepository(db)
		analyzerRepo = mysqlp.NewAnalyzerRepository(db)
		pollErrRepo = mysqlp.NewPollErrorRepository(db)
	default:
		log.Fatalf("unsupported database driver: %s", cfg.Database.Driver)
	}
	defer db.Close()

	// init minio result store
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		log.Fatalf("minio init error: %v", err)
	}

	// init extraction client
	creds := contentai.NewStaticCredentials(cfg.Extraction.APIKey)
	extractionClient := contentai.NewClient(cfg.Extraction.Endpoint, cfg.Extraction.APIVersion, creds)

	// init services
	registrySvc := &appregistry.Service{
		Cases:     caseRepo,
		Analyzers: analyzerRepo,
		Clock:     application.SystemClock{},
	}
	analysesSvc := &appanalyses.Service{
		Jobs:       jobs,
		Cases:      caseRepo,
		Analyzers:  analyzerRepo,
		Registry:   registrySvc,
		Extraction: extractionClient,
		Results:    store,
		PollErrors: pollErrRepo,
		Clock:      application.SystemClock{},
		Poll: appanalyses.PollPolicy{
			Interval:    time.Duration(cfg.Polling.IntervalSeconds) * time.Second,
			MaxAttempts: cfg.Polling.MaxAttempts,
		},
	}
	summariesSvc := appsummaries.NewService(jobs, store,
		openaiclient.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model))

	// init router with middleware chain
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	if len(cfg.Auth.Keys) > 0 {
		mux.Use(middleware.APIKeyAuth(cfg.Auth.Keys))
	}
	mux.Use(middleware.RateLimitMiddleware(100, 10))

	mux.Get("/healthz", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}))
	mux.Mount("/", httpserver.NewRouter(analysesSvc, registrySvc, summariesSvc))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
