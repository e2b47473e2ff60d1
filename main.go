package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MGallo-Code/bikeville/internal/auth"
	"github.com/MGallo-Code/bikeville/internal/cart"
	"github.com/MGallo-Code/bikeville/internal/config"
	"github.com/MGallo-Code/bikeville/internal/errlog"
	"github.com/MGallo-Code/bikeville/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Embeds the migration files INTO the go bin

//go:embed migrations/*.sql
var migrationsDir embed.FS

func main() {
	// Load config first so we can set log level
	cfg, err := config.LoadConfig()
	if err != nil {
		// Fallback logger before config is available
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}

	// Include source location in log entries at debug level only.
	addSrc := cfg.LogLevel == slog.LevelDebug

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: addSrc,
	})))

	// Cancel ctx on SIGINT/SIGTERM; run() shuts down when ctx is done.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run() is a separate func so deferred closes (ps, rs) always execute before os.Exit.
	if err := run(ctx, cfg, nil); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// backends are the stores the handlers run against.
// Production wires Postgres and Redis; smoke tests wire mocks and miniredis.
type backends struct {
	Credentials auth.CredentialStore
	Profiles    auth.ProfileStore
	Cart        cart.Store
	ErrorLogs   errlog.Repository
	PS          auth.HealthChecker
	RS          auth.HealthChecker
}

// app holds the wired handlers.
type app struct {
	auth   *auth.AuthHandler
	cart   *cart.Handler
	errors *errlog.Logger
}

// newApp builds services and handlers from cfg over b.
func newApp(cfg *config.Config, b backends) (*app, error) {
	hasher, err := auth.NewHasher(cfg.PasswordHashAlgorithm)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		Lifetime:  cfg.TokenLifetime,
		ClockSkew: cfg.TokenClockSkew,
	})
	if err != nil {
		return nil, err
	}
	errs, err := errlog.New(b.ErrorLogs, cfg.ErrorLogTimezone)
	if err != nil {
		return nil, fmt.Errorf("error log timezone: %w", err)
	}
	carts, err := cart.NewService(b.Cart, cfg.CartTimezone)
	if err != nil {
		return nil, err
	}

	identity := &auth.IdentityService{
		Credentials: b.Credentials,
		Profiles:    b.Profiles,
		Hasher:      hasher,
		Tokens:      tokens,
		Admin:       auth.AdminBootstrap{Email: cfg.AdminEmail, Password: cfg.AdminPassword},
		PhoneRegion: cfg.PhoneDefaultRegion,
	}

	return &app{
		auth: &auth.AuthHandler{
			Identity: identity,
			Tokens:   tokens,
			Errors:   errs,
			PS:       b.PS,
			RS:       b.RS,
		},
		cart:   &cart.Handler{Cart: carts, Errors: errs},
		errors: errs,
	}, nil
}

// run holds all server logic and returns error instead of calling os.Exit,
// so deferred resource cleanup (ps.Close, rs.Close) always runs.
// Shuts down when ctx is cancelled (signal handling is the caller's concern).
// If ready is non-nil, the server's base URL is sent on it once the listener is bound.
func run(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	ps, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to set up postgres store: %w", err)
	}
	defer ps.Close()

	migrationsFS, err := fs.Sub(migrationsDir, "migrations")
	if err != nil {
		return fmt.Errorf("failed to access embedded migrations: %w", err)
	}
	n, err := ps.Migrate(ctx, migrationsFS)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("migrations applied", "count", n)

	rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to set up redis client: %w", err)
	}
	rs := store.NewRedisStore(rdb)
	defer rs.Close()

	a, err := newApp(cfg, backends{
		Credentials: rs,
		Profiles:    ps,
		Cart:        ps,
		ErrorLogs:   ps,
		PS:          ps,
		RS:          rs,
	})
	if err != nil {
		return err
	}

	// Bind listener; ":0" picks a free port (useful in tests).
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{
		Handler:           buildRouter(a, cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("bikeville listening", "addr", ln.Addr().String())
		// Send error only if server stops for a reason other than explicit shutdown.
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Signal readiness to caller (used by tests; nil in production).
	if ready != nil {
		ready <- "http://" + ln.Addr().String()
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	// Stop accepting, then wait up to 30s for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildRouter wires all routes and middleware.
// Called from run() and from smoke tests.
func buildRouter(a *app, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(auth.Recoverer(a.errors))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	h := a.auth
	r.Get("/health", h.CheckHealth)

	r.Route("/loginjwt", func(r chi.Router) {
		r.Post("/", h.Login)
		r.Post("/admin/{email}", h.AdminCheck)
		r.With(h.RequireAuth, auth.RequireAdmin).Get("/validate", h.ValidateToken)
	})

	r.Route("/api/customers", func(r chi.Router) {
		r.Post("/", h.Register)
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.With(auth.RequireAdmin).Get("/", h.ListCustomers)
			r.Get("/{id}", h.GetCustomer)
			r.Put("/{id}", h.UpdateCustomer)
			r.With(auth.RequireAdmin).Delete("/{id}", h.DeleteCustomer)
		})
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Post("/", a.cart.Add)
		r.Get("/{id}", a.cart.List)
		r.Put("/increase/{productId}", a.cart.Increase)
		r.Put("/decrease/{productId}", a.cart.Decrease)
		r.Delete("/delete/{productId}", a.cart.Delete)
	})

	return r
}
