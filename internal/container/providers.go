package container

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/claim-approval/internal/application/dispatcher"
	"github.com/garyjia/claim-approval/internal/application/port"
	"github.com/garyjia/claim-approval/internal/application/service"
	"github.com/garyjia/claim-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/claim-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/claim-approval/internal/infrastructure/storage"
	"github.com/garyjia/claim-approval/internal/infrastructure/worker"
	httpserver "github.com/garyjia/claim-approval/internal/interfaces/http"
	"github.com/garyjia/claim-approval/internal/metrics"
	"github.com/garyjia/claim-approval/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(database.Migrations()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Claims    port.ClaimRepository
	Lecturers port.LecturerRepository
	Documents worker.DocumentIndex
}

// ProvideRepositories creates all repository implementations.
func ProvideRepositories(db *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	claims := repository.NewClaimRepository(db, logger)
	return &RepositoryBundle{
		Claims:    claims,
		Lecturers: repository.NewLecturerRepository(db, logger),
		Documents: claims,
	}, nil
}

// ProvideBlobStore selects the document backend.
func ProvideBlobStore(cfg *StorageConfig, logger *zap.Logger) (port.BlobStore, error) {
	switch cfg.Backend {
	case "memory":
		logger.Warn("Using in-memory document storage; uploads are lost on restart")
		return storage.NewMemoryBlobStore(), nil
	case "local", "":
		return storage.NewLocalBlobStore(cfg.BaseDir, logger)
	}
	return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(logger))
}

// ProvideMetrics creates a collector subscribed to d, or nil when disabled.
func ProvideMetrics(cfg *MetricsConfig, d dispatcher.Dispatcher) *metrics.Collector {
	if !cfg.Enabled {
		return nil
	}
	collector := metrics.NewCollector(cfg.Namespace)
	collector.Subscribe(d)
	return collector
}

// ServiceDeps contains dependencies for creating application services.
type ServiceDeps struct {
	Repos          *RepositoryBundle
	TxManager      port.TransactionManager
	Blobs          port.BlobStore
	Dispatcher     dispatcher.Dispatcher
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// ProvideClaimService builds the document store, review and report services
// and the façade over them.
func ProvideClaimService(deps *ServiceDeps) (service.ClaimService, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil || deps.Blobs == nil || deps.Dispatcher == nil {
		return nil, fmt.Errorf("transaction manager, blob store and dispatcher are required")
	}

	logger := deps.Logger
	return service.NewClaimService(service.ClaimServiceDeps{
		Claims:         deps.Repos.Claims,
		Lecturers:      deps.Repos.Lecturers,
		Tx:             deps.TxManager,
		Documents:      service.NewDocumentStore(deps.Blobs, deps.Dispatcher, logger.Named("documents")),
		Reviews:        service.NewReviewService(deps.Repos.Claims, deps.Dispatcher, logger.Named("reviews")),
		Reports:        service.NewReportService(deps.Repos.Claims, deps.Repos.Lecturers, logger.Named("reports")),
		Dispatcher:     deps.Dispatcher,
		RequestTimeout: deps.RequestTimeout,
		Logger:         logger.Named("claims"),
	}), nil
}

// ProvideServer creates the HTTP adapter.
func ProvideServer(cfg *ServerConfig, claims service.ClaimService, collector *metrics.Collector, logger *zap.Logger) *httpserver.Server {
	return httpserver.NewServer(httpserver.ServerConfig{
		Host:           cfg.Host,
		Port:           cfg.Port,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, claims, collector, logger.Named("http"))
}

// ProvideWorkers registers the orphan sweeper when it is enabled and the
// blob store can list its contents. Workers are not started here.
func ProvideWorkers(cfg *StorageConfig, blobs port.BlobStore, repos *RepositoryBundle, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger)
	if cfg.SweepInterval <= 0 {
		return manager
	}

	sweepable, ok := blobs.(worker.SweepableStore)
	if !ok {
		logger.Warn("Blob store cannot list contents; orphan sweep disabled")
		return manager
	}
	manager.Register(worker.NewOrphanSweeper(worker.OrphanSweeperConfig{
		Interval:    cfg.SweepInterval,
		GracePeriod: cfg.OrphanGrace,
	}, sweepable, repos.Documents, logger.Named("sweeper")))
	return manager
}
