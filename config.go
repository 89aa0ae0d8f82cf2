package touradmin

import (
	"time"

	"github.com/eringen/touradmin/auth"
	"github.com/eringen/touradmin/booking"
	"github.com/eringen/touradmin/notify"
)

// Backends selectable with Config.Backend.
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Config holds all configuration for the admin app.
type Config struct {
	Name string // Site name shown in the sidebar (default "Tour Admin")
	Addr string // Listen address (default ":3000")

	Backend         string // "sqlite" (default) or "mongo"
	DatabasePath    string // SQLite path (default "data/touradmin.db")
	MongoURI        string // Required for the mongo backend
	MongoDatabase   string // Mongo database name (default "touradmin")
	RedisURL        string // Optional: fan out change signals across instances
	PollInterval    time.Duration
	MetricsEnabled  bool
	LogLevel        string // debug, info, warn or error (default "info")
	LoginRatePerMin int    // Login attempts per minute per client (default 5)

	SessionSecret string // Required: cookie session secret
	JWTSecret     string // Required: session token signing secret
	CookieSecure  bool   // Set true for HTTPS
	SessionTTL    time.Duration

	AdminEmail    string // Optional: seed this admin on startup
	AdminPassword string

	PasswordTimeout time.Duration // Bound on one password change (default 15s)
	GateTimeout     time.Duration // How long a request waits for the session (default 3s)
	ListTimeout     time.Duration // How long a page waits for the first snapshot (default 3s)
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "Tour Admin"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.Backend == "" {
		c.Backend = BackendSQLite
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/touradmin.db"
	}
	if c.PollInterval == 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LoginRatePerMin == 0 {
		c.LoginRatePerMin = 5
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = 12 * time.Hour
	}
	if c.PasswordTimeout == 0 {
		c.PasswordTimeout = auth.DefaultPasswordTimeout
	}
	if c.GateTimeout == 0 {
		c.GateTimeout = 3 * time.Second
	}
	if c.ListTimeout == 0 {
		c.ListTimeout = 3 * time.Second
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithDatabase injects the booking backend instead of opening one from
// Config.
func WithDatabase(db booking.Database) Option {
	return func(a *App) { a.DB = db }
}

// WithUserStore injects the admin account store used by the local provider.
func WithUserStore(users auth.UserStore) Option {
	return func(a *App) { a.Users = users }
}

// WithProvider injects the authentication provider.
func WithProvider(p auth.Provider) Option {
	return func(a *App) { a.Provider = p }
}

// WithNotifier injects the change notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(a *App) { a.Notifier = n }
}

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}
