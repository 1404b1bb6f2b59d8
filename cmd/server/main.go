// HK Launchpad - Hong Kong company incorporation site
// Entry point for the web server
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hklaunchpad/site/internal/config"
	"github.com/hklaunchpad/site/internal/handlers"
	"github.com/hklaunchpad/site/internal/middleware"
	"github.com/hklaunchpad/site/internal/services/auth"
	"github.com/hklaunchpad/site/internal/services/calendly"
	"github.com/hklaunchpad/site/internal/services/partner"
	"github.com/hklaunchpad/site/internal/services/referral"
	"github.com/hklaunchpad/site/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := storage.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	// Initialize repositories
	partnerRepo := storage.NewPartnerRepository(db)
	sessionRepo := storage.NewSessionRepository(db)
	visitRepo := storage.NewVisitRepository(db)
	appointmentRepo := storage.NewAppointmentRepository(db)

	// Initialize services
	authService := auth.NewService(cfg, partnerRepo, sessionRepo)
	partnerService := partner.NewService(partnerRepo, visitRepo, appointmentRepo)
	calendlyService := calendly.NewService(calendly.Config{
		BaseURL:   cfg.CalendlyURL,
		Token:     cfg.CalendlyToken,
		EventType: cfg.CalendlyEventType,
	})
	reporter := referral.NewHTTPReporter(cfg.BackendURL, cfg.ReportTimeout)

	if admin, err := authService.EnsureAdmin(cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Fatal("failed to bootstrap admin", zap.Error(err))
	} else if admin != nil {
		logger.Info("admin account ready", zap.String("email", admin.Email))
	}

	// Initialize handlers
	h, err := handlers.New(
		cfg,
		getTemplateDir(),
		logger,
		authService,
		partnerService,
		calendlyService,
		appointmentRepo,
	)
	if err != nil {
		logger.Fatal("failed to initialize handlers", zap.Error(err))
	}

	// Initialize middleware
	authMiddleware := middleware.NewAuth(authService)
	referralMiddleware := middleware.NewReferral(reporter, logger, cfg.IsProduction(), cfg.TrustProxy)

	// Visitor-facing pages run referral attribution
	page := func(fn http.HandlerFunc) http.Handler {
		return referralMiddleware.Track(authMiddleware.OptionalAuth(fn))
	}

	// Setup routes
	mux := http.NewServeMux()

	// Static files
	fs := http.FileServer(http.Dir(getStaticDir()))
	mux.Handle("/static/", http.StripPrefix("/static/", fs))
	mux.Handle("/metrics", promhttp.Handler())

	// Public pages
	mux.Handle("/", page(h.Home))
	mux.Handle("/faq", page(h.FAQPage))
	mux.Handle("/contact", page(h.ContactPage))
	mux.Handle("/map", page(h.MapPage))
	mux.Handle("/book", page(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Book(w, r)
		} else {
			h.BookPage(w, r)
		}
	}))
	mux.Handle("/book/thanks", page(h.BookThanks))
	mux.HandleFunc("/api/availability", h.APIAvailability)

	// Partner backend
	mux.HandleFunc(referral.TrackPath, h.TrackReferral)
	mux.Handle("/partner/login", authMiddleware.OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Login(w, r)
		} else {
			h.LoginPage(w, r)
		}
	})))
	mux.Handle("/partner/logout", authMiddleware.OptionalAuth(http.HandlerFunc(h.Logout)))
	mux.Handle("/partner/dashboard", authMiddleware.RequireAuth(http.HandlerFunc(h.Dashboard)))
	mux.Handle("/api/partner/dashboard", authMiddleware.RequireAuth(http.HandlerFunc(h.APIDashboard)))

	// Admin
	mux.Handle("/admin/stats", authMiddleware.RequireAdmin(http.HandlerFunc(h.AdminStats)))
	mux.Handle("/api/admin/stats", authMiddleware.RequireAdmin(http.HandlerFunc(h.APIAdminStats)))
	mux.Handle("/api/admin/partners", authMiddleware.RequireAdmin(http.HandlerFunc(h.APICreatePartner)))

	// Apply global middleware
	handler := middleware.Chain(
		mux,
		middleware.Recover(logger),
		middleware.SecurityHeaders,
		middleware.Logger(logger),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go cleanupSessions(ctx, authService, logger)

	go func() {
		logger.Info("server starting",
			zap.String("addr", "http://localhost"+srv.Addr),
			zap.String("environment", cfg.Environment),
			zap.String("backend_url", cfg.BackendURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func cleanupSessions(ctx context.Context, authService *auth.Service, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := authService.CleanupExpiredSessions(); err != nil {
				logger.Warn("failed to clean up sessions", zap.Error(err))
			}
		}
	}
}

func getTemplateDir() string {
	// Try relative path first
	if _, err := os.Stat("web/templates"); err == nil {
		return "web/templates"
	}

	// Try from executable location
	exe, _ := os.Executable()
	dir := filepath.Dir(exe)
	templateDir := filepath.Join(dir, "web", "templates")
	if _, err := os.Stat(templateDir); err == nil {
		return templateDir
	}

	// Fallback
	return "web/templates"
}

func getStaticDir() string {
	// Try relative path first
	if _, err := os.Stat("web/static"); err == nil {
		return "web/static"
	}

	// Try from executable location
	exe, _ := os.Executable()
	dir := filepath.Dir(exe)
	staticDir := filepath.Join(dir, "web", "static")
	if _, err := os.Stat(staticDir); err == nil {
		return staticDir
	}

	// Fallback
	return "web/static"
}
