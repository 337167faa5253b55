package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/bluecarbon-mrv/portal/config"
	"github.com/bluecarbon-mrv/portal/internal/auth"
	"github.com/bluecarbon-mrv/portal/internal/db"
	"github.com/bluecarbon-mrv/portal/internal/handlers"
	"github.com/bluecarbon-mrv/portal/internal/mq"
	"github.com/bluecarbon-mrv/portal/internal/services"
	"github.com/bluecarbon-mrv/portal/internal/storage"
	"github.com/bluecarbon-mrv/portal/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	db         *sql.DB
	events     *mq.Bus
	buckets    []*storage.Storage
	logger     *zap.Logger
}

// DocumentStore keeps private NGO documents and signs links to them.
type DocumentStore interface {
	services.ObjectStore
	services.DocumentSigner
}

// Deps are the collaborators the router is built from.
type Deps struct {
	Auth      services.AuthProvider
	Profiles  services.ProfileRepository
	NGOs      services.NGORepository
	Sites     services.SiteRepository
	Purchases services.PurchaseRepository
	Documents DocumentStore
	Images    services.ObjectStore
	Events    services.EventPublisher
}

// New connects to the database, object storage and message queue selected in
// cfg and constructs a Server.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	dbConn, err := db.OpenWithRetry(ctx, cfg)
	if err != nil {
		return nil, err
	}

	documents, err := storage.Open(ctx, cfg, storage.Bucket{Name: cfg.Storage.DocumentsBucket})
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open documents storage: %w", err)
	}
	images, err := storage.Open(ctx, cfg, storage.Bucket{Name: cfg.Storage.SiteImagesBucket, Public: true})
	if err != nil {
		_ = documents.Close()
		_ = dbConn.Close()
		return nil, fmt.Errorf("open site images storage: %w", err)
	}

	queue, err := mq.Open(ctx, cfg)
	if err != nil {
		_ = images.Close()
		_ = documents.Close()
		_ = dbConn.Close()
		return nil, fmt.Errorf("open mq: %w", err)
	}

	provider, err := auth.NewProvider(
		store.NewAccountRepository(dbConn),
		store.NewSessionRepository(dbConn),
		queue,
		cfg.Auth,
	)
	if err != nil {
		_ = queue.Close()
		_ = images.Close()
		_ = documents.Close()
		_ = dbConn.Close()
		return nil, err
	}

	router := NewRouter(cfg, Deps{
		Auth:      provider,
		Profiles:  store.NewProfileRepository(dbConn),
		NGOs:      store.NewNGORepository(dbConn),
		Sites:     store.NewSiteRepository(dbConn),
		Purchases: store.NewPurchaseRepository(dbConn),
		Documents: documents,
		Images:    images,
		Events:    queue,
	}, logger)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		db:         dbConn,
		events:     queue,
		buckets:    []*storage.Storage{documents, images},
		logger:     logger,
	}, nil
}

// NewRouter builds the services and registers every route.
func NewRouter(cfg config.Config, deps Deps, logger *zap.Logger) *chi.Mux {
	resolver := services.NewSessionResolver(deps.Auth, deps.Profiles)
	onboarding := services.NewOnboarding(deps.NGOs, deps.Auth, logger)
	gate := services.NewGate(deps.Auth, resolver, onboarding, cfg.PublicBaseURL, logger)

	ngoService := services.NewNGOService(
		deps.NGOs,
		services.NewUploader(deps.Documents, cfg.Upload.Concurrency, logger),
		onboarding,
		deps.Events,
		deps.Documents,
		cfg.Storage.SignedURLTTL,
		logger,
	)
	siteService := services.NewSiteService(
		deps.Sites,
		services.NewUploader(deps.Images, cfg.Upload.Concurrency, logger),
		deps.Events,
		logger,
	)
	purchaseService := services.NewPurchaseService(deps.Purchases)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		handlers.RequestLogger(logger),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, gate, logger)
	})
	router.Route("/projects", func(r chi.Router) {
		handlers.ProjectRouter(r, siteService, logger)
	})
	handlers.PortalRouter(
		router,
		gate,
		handlers.NewPortalHandler(onboarding, ngoService, siteService, purchaseService, logger),
		logger,
	)
	return router
}

// Router exposes the chi router for route registration.
// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and releases connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.events != nil {
		_ = s.events.Close()
	}
	for _, bucket := range s.buckets {
		_ = bucket.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
