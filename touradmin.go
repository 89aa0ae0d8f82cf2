// Package touradmin is the admin back office of a tour booking site, built
// with Go, Echo, and templ. It gates every page behind a signed-in session,
// keeps the bookings table in sync with the database, shows booking
// statistics, and lets the admin change their password.
package touradmin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	glog "github.com/labstack/gommon/log"

	"github.com/eringen/touradmin/auth"
	"github.com/eringen/touradmin/booking"
	"github.com/eringen/touradmin/metrics"
	"github.com/eringen/touradmin/mongostore"
	"github.com/eringen/touradmin/notify"
	"github.com/eringen/touradmin/sqlitestore"
)

// App is the central admin application. It wires together the booking
// backend, the auth provider, handlers, and middleware.
type App struct {
	Config     Config
	Echo       *echo.Echo
	DB         booking.Database
	Users      auth.UserStore
	Provider   auth.Provider
	Notifier   notify.Notifier
	Changer    *auth.PasswordChanger
	Aggregator *booking.Aggregator
	Lists      *ListCache

	loginLimiter *LoginLimiter
	customRoutes []func(*App)
	closers      []func() error
	ready        bool
}

// New creates a new App with the given configuration.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Setup opens the backend, seeds the admin account, and registers middleware
// and routes. Start calls it when it has not been called yet.
func (a *App) Setup(ctx context.Context) error {
	if a.ready {
		return nil
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("touradmin: SessionSecret is required")
	}
	a.Echo.Logger.SetLevel(logLevel(a.Config.LogLevel))

	if err := a.openBackend(ctx); err != nil {
		return err
	}
	if err := a.setupProvider(ctx); err != nil {
		return err
	}

	a.Changer = auth.NewPasswordChanger(a.Provider, a.Config.PasswordTimeout)
	a.Aggregator = booking.NewAggregator(a.DB,
		booking.WithLogger(a.Echo.Logger),
		booking.WithOnFetch(func(err error) {
			metrics.StatsFetches.WithLabelValues(metrics.Status(err)).Inc()
		}),
	)
	a.Lists = NewListCache(a.DB, a.Echo.Logger)
	a.closers = append(a.closers, a.Lists.Close)
	a.loginLimiter = NewLoginLimiter(a.Config.LoginRatePerMin, time.Minute)

	if err := a.setupMiddleware(); err != nil {
		return err
	}
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.ready = true
	return nil
}

func (a *App) openBackend(ctx context.Context) error {
	if a.DB != nil && (a.Users != nil || a.Provider != nil) {
		return nil
	}

	switch a.Config.Backend {
	case BackendSQLite:
		if err := a.setupNotifier(ctx); err != nil {
			return err
		}
		store, err := sqlitestore.Open(a.Config.DatabasePath,
			sqlitestore.WithNotifier(a.Notifier),
			sqlitestore.WithPollInterval(a.Config.PollInterval),
		)
		if err != nil {
			return fmt.Errorf("touradmin: init store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if a.DB == nil {
			a.DB = store
		}
		if a.Users == nil {
			a.Users = store
		}
	case BackendMongo:
		if a.Config.MongoURI == "" {
			return fmt.Errorf("touradmin: MongoURI is required for the mongo backend")
		}
		client, err := mongostore.Connect(ctx, a.Config.MongoURI, a.Config.MongoDatabase)
		if err != nil {
			return fmt.Errorf("touradmin: init mongo: %w", err)
		}
		a.closers = append(a.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Close(ctx)
		})
		if err := client.CreateIndexes(ctx); err != nil {
			return fmt.Errorf("touradmin: create indexes: %w", err)
		}
		if a.DB == nil {
			a.DB = mongostore.NewBookings(client.BookingsCollection(),
				mongostore.WithPollInterval(a.Config.PollInterval),
				mongostore.WithLogger(a.Echo.Logger),
			)
		}
		if a.Users == nil {
			a.Users = mongostore.NewUsers(client.UsersCollection())
		}
	default:
		return fmt.Errorf("touradmin: unknown backend %q", a.Config.Backend)
	}
	return nil
}

// setupNotifier picks the in-process hub, or Redis when several instances
// share one database.
func (a *App) setupNotifier(ctx context.Context) error {
	if a.Notifier != nil {
		return nil
	}
	if a.Config.RedisURL == "" {
		a.Notifier = notify.NewHub()
		return nil
	}
	client, err := notify.NewRedisClient(ctx, a.Config.RedisURL)
	if err != nil {
		return fmt.Errorf("touradmin: init redis: %w", err)
	}
	r := notify.NewRedis(client)
	if err := r.Relay(ctx, booking.CollectionName); err != nil {
		client.Close()
		return fmt.Errorf("touradmin: relay changes: %w", err)
	}
	a.closers = append(a.closers, client.Close, r.Close)
	a.Notifier = r
	return nil
}

func (a *App) setupProvider(ctx context.Context) error {
	if a.Provider != nil {
		return nil
	}
	if a.Config.JWTSecret == "" {
		return fmt.Errorf("touradmin: JWTSecret is required")
	}
	if a.Users == nil {
		return fmt.Errorf("touradmin: a user store is required")
	}
	lp := auth.NewLocalProvider(a.Users, auth.NewJWTManager(a.Config.JWTSecret, a.Config.SessionTTL))
	if a.Config.AdminEmail != "" {
		created, err := lp.EnsureUser(ctx, a.Config.AdminEmail, a.Config.AdminPassword)
		if err != nil {
			return fmt.Errorf("touradmin: seed admin: %w", err)
		}
		if created {
			a.Echo.Logger.Infof("created admin account %s", auth.NormalizeEmail(a.Config.AdminEmail))
		}
	}
	a.Provider = lp
	return nil
}

// AddUser opens the configured backend and creates an admin account. It is
// used by the useradd command and does not start the server.
func (a *App) AddUser(ctx context.Context, email, password string) (*auth.User, error) {
	if err := a.openBackend(ctx); err != nil {
		return nil, err
	}
	if a.Users == nil {
		return nil, fmt.Errorf("touradmin: a user store is required")
	}
	lp := auth.NewLocalProvider(a.Users, auth.NewJWTManager(a.Config.JWTSecret, a.Config.SessionTTL))
	return lp.CreateUser(ctx, email, password)
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Embedded assets: the stylesheet and the live-update script.
	assets, _ := fs.Sub(EmbeddedAssets, "embedded")
	e.GET("/public/*", echo.WrapHandler(http.StripPrefix("/public/", http.FileServer(http.FS(assets)))))

	loginOnly := a.gate(auth.RouteLogin)
	shell := a.gate(auth.RouteShell)

	e.GET(auth.LoginPath, a.handleLogin, loginOnly)
	e.POST(auth.LoginPath, a.handleLoginPost, loginOnly)
	e.POST("/logout/", a.handleLogout, shell)

	e.GET(auth.HomePath, a.handleBookings, shell)
	e.GET(livePath, a.handleLive, shell)
	e.GET("/bookings/:id/delete/", a.handleConfirmDelete, shell)
	e.POST("/bookings/:id/delete/", a.handleDelete, shell)
	e.GET("/dashboard/", a.handleDashboard, shell)
	e.GET("/settings/", a.handleSettings, shell)
	e.GET("/settings/password/", a.handlePassword, shell)
	e.POST("/settings/password/", a.handlePasswordPost, shell)

	a.setupAPI()
}

func (a *App) setupMetrics() error {
	if !a.Config.MetricsEnabled {
		return nil
	}
	mw, err := echoprometheus.MiddlewareConfig{
		Namespace: "touradmin",
		Subsystem: "http",
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/metrics" || path == livePath
		},
		DoNotUseRequestPathFor404: true,
	}.ToMiddleware()
	if err != nil {
		return fmt.Errorf("touradmin: register metrics: %w", err)
	}
	a.Echo.Use(mw)
	a.Echo.GET("/metrics", echoprometheus.NewHandler())
	return nil
}

// Start sets the app up when needed and serves until the server is shut
// down.
func (a *App) Start() error {
	if err := a.Setup(context.Background()); err != nil {
		return err
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully and releases every resource.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	if cerr := a.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close cleans up resources in reverse order of acquisition. Call this when
// the app is shutting down.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func logLevel(s string) glog.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return glog.DEBUG
	case "warn":
		return glog.WARN
	case "error":
		return glog.ERROR
	case "off":
		return glog.OFF
	default:
		return glog.INFO
	}
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("touradmin: required environment variable %s is not set", key)
	}
	return v
}
