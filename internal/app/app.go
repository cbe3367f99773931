// Package app wires config into concrete adapters and the scan service.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/plantscan/internal/application"
	appai "github.com/bryanwahyu/plantscan/internal/application/ai"
	appscans "github.com/bryanwahyu/plantscan/internal/application/scans"
	"github.com/bryanwahyu/plantscan/internal/config"
	domai "github.com/bryanwahyu/plantscan/internal/domain/ai"
	"github.com/bryanwahyu/plantscan/internal/domain/capture"
	"github.com/bryanwahyu/plantscan/internal/domain/scanerrors"
	"github.com/bryanwahyu/plantscan/internal/domain/scans"
	"github.com/bryanwahyu/plantscan/internal/infra/ai/function"
	"github.com/bryanwahyu/plantscan/internal/infra/ai/openai"
	"github.com/bryanwahyu/plantscan/internal/infra/db"
	"github.com/bryanwahyu/plantscan/internal/infra/db/migrations"
	"github.com/bryanwahyu/plantscan/internal/infra/db/mysql"
	"github.com/bryanwahyu/plantscan/internal/infra/db/postgres"
	"github.com/bryanwahyu/plantscan/internal/infra/device/httpcam"
	"github.com/bryanwahyu/plantscan/internal/infra/storage"
	"github.com/bryanwahyu/plantscan/internal/middleware"
)

// App holds the process-wide dependencies. Close releases them.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Storage storage.Backend
	Scans   *appscans.Service
	Log     logrus.FieldLogger
}

// New connects the database (migrating when configured), the object store and
// the analysis provider, then builds the scan service on top.
func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	conn, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", cfg.Database.Driver, err)
	}
	if cfg.Database.Migrate {
		if err := migrations.MigrateUp(conn, cfg.Database.Driver); err != nil {
			conn.Close()
			return nil, err
		}
		log.WithField("driver", cfg.Database.Driver).Info("schema up to date")
	}

	store, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s storage init: %w", cfg.Storage.Type, err)
	}

	analyzer, err := NewAnalyzer(cfg.Analysis)
	if err != nil {
		conn.Close()
		return nil, err
	}

	repo, failures := NewRepositories(cfg.Database.Driver, conn)
	svc := &appscans.Service{
		Repo:     repo,
		Store:    store,
		Analyzer: analyzer,
		Failures: failures,
		Clock:    application.SystemClock{},
		IDs:      application.UUIDGenerator{},
		Log:      log,
	}

	log.WithFields(logrus.Fields{
		"database": cfg.Database.Driver,
		"storage":  cfg.Storage.Type,
		"analysis": cfg.Analysis.Provider,
	}).Info("app initialised")

	return &App{Config: cfg, DB: conn, Storage: store, Scans: svc, Log: log}, nil
}

// NewRepositories picks the SQL dialect. SQLite shares the ? placeholder
// dialect with MySQL.
func NewRepositories(driver string, conn *sql.DB) (scans.Repository, scanerrors.Repository) {
	if driver == "postgres" {
		return postgres.NewScanRepository(conn), postgres.NewFailureRepository(conn)
	}
	return mysql.NewScanRepository(conn), mysql.NewFailureRepository(conn)
}

// NewAnalyzer builds the remote analysis client for cfg.Provider.
func NewAnalyzer(cfg config.AnalysisConfig) (scans.Analyzer, error) {
	var client domai.Client
	switch cfg.Provider {
	case "openai":
		client = openai.NewClientWithBaseURL(cfg.APIKey, cfg.Model, cfg.BaseURL, &http.Client{Timeout: cfg.Timeout})
	case "function":
		client = function.NewClient(cfg.FunctionURL, cfg.APIKey, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown analysis provider: %s", cfg.Provider)
	}
	return appai.NewService(client), nil
}

// NewCamera returns the configured snapshot camera.
func NewCamera(cfg config.CameraConfig) capture.Device {
	return httpcam.NewDevice(cfg.Snapshots, cfg.Timeout)
}

// HealthCheckers backs the /health endpoint.
func (a *App) HealthCheckers() map[string]middleware.HealthChecker {
	return map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: a.DB},
		"storage":  a.Storage,
	}
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
