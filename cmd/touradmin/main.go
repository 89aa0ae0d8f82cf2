package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/eringen/touradmin"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			log.Fatalf("touradmin: %v", err)
		}
	case "useradd":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: touradmin useradd <email> <password>")
			os.Exit(1)
		}
		if err := runUserAdd(os.Args[2], os.Args[3]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("touradmin %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func loadConfig() touradmin.Config {
	return touradmin.Config{
		Name:            touradmin.EnvOr("SITE_NAME", ""),
		Addr:            touradmin.EnvOr("ADDR", ":3000"),
		Backend:         touradmin.EnvOr("BACKEND", touradmin.BackendSQLite),
		DatabasePath:    touradmin.EnvOr("DATABASE_PATH", "data/touradmin.db"),
		MongoURI:        os.Getenv("MONGODB_URI"),
		MongoDatabase:   os.Getenv("MONGODB_DATABASE"),
		RedisURL:        os.Getenv("REDIS_URL"),
		PollInterval:    envDuration("POLL_INTERVAL"),
		MetricsEnabled:  envBool("METRICS_ENABLED"),
		LogLevel:        touradmin.EnvOr("LOG_LEVEL", "info"),
		LoginRatePerMin: envInt("LOGIN_RATE_RPM"),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		CookieSecure:    envBool("COOKIE_SECURE"),
		AdminEmail:      os.Getenv("ADMIN_EMAIL"),
		AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
		PasswordTimeout: envDuration("PASSWORD_TIMEOUT"),
		GateTimeout:     envDuration("GATE_TIMEOUT"),
		ListTimeout:     envDuration("LIST_TIMEOUT"),
	}
}

func runServe() error {
	cfg := loadConfig()
	cfg.SessionSecret = touradmin.MustEnv("SESSION_SECRET")
	cfg.JWTSecret = touradmin.MustEnv("JWT_SECRET")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := touradmin.New(cfg)
	if err := app.Setup(ctx); err != nil {
		app.Close()
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- app.Start() }()
	log.Printf("touradmin listening on %s", cfg.Addr)

	select {
	case err := <-errCh:
		app.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}

func runUserAdd(email, password string) error {
	app := touradmin.New(loadConfig())
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	u, err := app.AddUser(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Printf("Created admin %s (%s)\n", u.Email, u.ID)
	return nil
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("touradmin: %s: %v", key, err)
	}
	return d
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("touradmin: %s: %v", key, err)
	}
	return n
}

func envBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}

func printUsage() {
	fmt.Println(`touradmin - Admin back office for tour bookings

Usage:
  touradmin <command> [arguments]

Commands:
  serve                      Run the admin server
  useradd <email> <password> Create an admin account
  version                    Print the touradmin version
  help                       Show this help message

Environment:
  SESSION_SECRET, JWT_SECRET  Required for serve
  BACKEND                     sqlite (default) or mongo
  DATABASE_PATH               SQLite file (default data/touradmin.db)
  MONGODB_URI                 Required for the mongo backend
  REDIS_URL                   Share change signals across instances
  ADMIN_EMAIL, ADMIN_PASSWORD Seed an admin account on startup`)
}
