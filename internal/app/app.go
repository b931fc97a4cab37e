// Package app wires the tabledit service together and manages its lifecycle.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	httpapi "github.com/coachgrid/tabledit/internal/api/http"
	"github.com/coachgrid/tabledit/internal/config"
	"github.com/coachgrid/tabledit/internal/notify"
	"github.com/coachgrid/tabledit/internal/observability"
	"github.com/coachgrid/tabledit/internal/schema"
	"github.com/coachgrid/tabledit/internal/server"
	"github.com/coachgrid/tabledit/internal/session"
	"github.com/coachgrid/tabledit/internal/source"
	"github.com/coachgrid/tabledit/internal/storage"
)

// App owns the shared resources and servers of a running tabledit process.
type App struct {
	cfg *config.Config

	registry  *schema.Registry
	source    *source.Store
	objects   storage.ObjectStorage
	notifier  *notify.Notifier
	metrics   *observability.Metrics
	stats     *observability.EditStats
	sessions  *session.Manager
	lifecycle *server.Lifecycle

	httpServer   *http.Server
	httpListener net.Listener
	grpcServer   *grpc.Server
	grpcListener net.Listener
	health       *health.Server

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// New resolves and validates cfg and creates the data directories.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	return &App{cfg: cfg}, nil
}

// Start opens the shared resources, recovers journaled sessions and starts
// the HTTP and gRPC servers.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	a.lifecycle = server.NewLifecycle(server.Options{
		Timeout:      a.cfg.Shutdown.Timeout,
		DrainTimeout: a.cfg.Shutdown.DrainTimeout,
	})

	if err := a.initSharedResources(ctx); err != nil {
		a.lifecycle.Shutdown()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}
	if err := a.startSessions(ctx); err != nil {
		a.lifecycle.Shutdown()
		return fmt.Errorf("failed to start sessions: %w", err)
	}
	if a.cfg.GRPC.Enabled {
		if err := a.startGRPC(); err != nil {
			a.lifecycle.Shutdown()
			return fmt.Errorf("failed to start gRPC server: %w", err)
		}
	}
	if err := a.startHTTP(); err != nil {
		a.lifecycle.Shutdown()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	log.Printf("app: tabledit started with %d tables", len(a.registry.Names()))
	return nil
}

func (a *App) initSharedResources(ctx context.Context) error {
	var err error

	a.registry, err = schema.LoadDir(a.cfg.DefinitionsDir)
	if err != nil {
		return err
	}

	a.source, err = source.Open(a.cfg.SourcePath)
	if err != nil {
		return err
	}
	a.lifecycle.Register("source", a.source)
	log.Printf("app: source opened at %s", a.cfg.SourcePath)

	switch a.cfg.Storage.Type {
	case config.StorageNone:
	case config.StorageLocal:
		a.objects, err = storage.NewLocalStorage(a.cfg.Storage.Path)
	case config.StorageS3:
		s3Cfg := storage.DefaultS3Config()
		if a.cfg.Storage.S3.Region != "" {
			s3Cfg.Region = a.cfg.Storage.S3.Region
		}
		s3Cfg.Endpoint = a.cfg.Storage.S3.Endpoint
		s3Cfg.UsePathStyle = a.cfg.Storage.S3.UsePathStyle
		s3Cfg.Prefix = a.cfg.Storage.S3.Prefix
		a.objects, err = storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, s3Cfg)
	default:
		return fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Printf("app: snapshot storage type=%s", a.cfg.Storage.Type)

	a.notifier = notify.NewNotifier(64)
	a.metrics = observability.NewMetrics()
	a.stats = observability.NewEditStats(a.cfg.Sessions.StatsWindow)
	return nil
}

func (a *App) startSessions(ctx context.Context) error {
	scfg := session.Config{
		TTL:                a.cfg.Sessions.TTL,
		EvictInterval:      a.cfg.Sessions.EvictInterval,
		MaxSessions:        a.cfg.Sessions.MaxSessions,
		JournalDir:         a.cfg.Sessions.JournalDir,
		JournalSegmentSize: int64(a.cfg.Sessions.JournalSegmentSizeKB) * 1024,
		NormalizeOnEdit:    a.cfg.Sessions.NormalizeOnEdit,
		SnapshotCacheSize:  int64(a.cfg.Storage.CacheSizeMB) * 1024 * 1024,
	}
	a.sessions = session.NewManager(scfg, session.Deps{
		Registry: a.registry,
		Source:   a.source,
		Notifier: a.notifier,
		Objects:  a.objects,
		Metrics:  a.metrics,
		Stats:    a.stats,
	})

	// Sessions may write to the source while stopping, so they are
	// registered after it and close before it.
	a.lifecycle.Register("sessions", server.CloserFunc(func() error {
		a.sessions.Stop()
		return nil
	}))
	return a.sessions.Start(ctx)
}

func (a *App) startGRPC() error {
	lis, err := net.Listen("tcp", a.cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC address: %w", err)
	}
	a.grpcListener = lis

	a.grpcServer = grpc.NewServer()
	a.health = health.NewServer()
	healthpb.RegisterHealthServer(a.grpcServer, a.health)
	a.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	for _, name := range a.registry.Names() {
		a.health.SetServingStatus("tabledit.table."+name, healthpb.HealthCheckResponse_SERVING)
	}

	a.lifecycle.OnShutdown(a.health.Shutdown)
	a.lifecycle.Register("grpc", server.CloserFunc(func() error {
		a.grpcServer.GracefulStop()
		return nil
	}))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("app: gRPC health server listening on %s", lis.Addr())
		if err := a.grpcServer.Serve(lis); err != nil {
			log.Printf("app: gRPC server error: %v", err)
		}
	}()
	return nil
}

func (a *App) startHTTP() error {
	lis, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on HTTP address: %w", err)
	}
	a.httpListener = lis

	handler := httpapi.NewHandler(a.sessions, a.registry, a.stats, a.metrics.Registry)
	a.httpServer = &http.Server{
		Handler:      a.lifecycle.Middleware(handler.Routes()),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}
	a.lifecycle.Register("http", server.HTTPCloser(a.httpServer, a.cfg.Shutdown.DrainTimeout))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("app: HTTP server listening on %s", lis.Addr())
		if err := a.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Printf("app: HTTP server error: %v", err)
		}
	}()
	return nil
}

// HTTPAddr returns the address the HTTP server is bound to.
func (a *App) HTTPAddr() string {
	if a.httpListener == nil {
		return ""
	}
	return a.httpListener.Addr().String()
}

// GRPCAddr returns the address the gRPC server is bound to.
func (a *App) GRPCAddr() string {
	if a.grpcListener == nil {
		return ""
	}
	return a.grpcListener.Addr().String()
}

// Wait blocks until a signal arrives or ctx is done, then stops the app.
func (a *App) Wait(ctx context.Context) error {
	err := a.lifecycle.WaitForSignal(ctx)
	a.wg.Wait()
	return err
}

// Stop shuts every component down in reverse start order.
func (a *App) Stop() error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	err := a.lifecycle.Shutdown()
	a.wg.Wait()
	log.Printf("app: tabledit stopped")
	return err
}
