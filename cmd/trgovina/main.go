package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/trgovina/internal/api"
	"github.com/erazemk/trgovina/internal/config"
	"github.com/erazemk/trgovina/internal/db"
	"github.com/erazemk/trgovina/internal/inventory"
	"github.com/erazemk/trgovina/internal/model"
	"github.com/erazemk/trgovina/internal/notify"
	"github.com/erazemk/trgovina/internal/order"
	"github.com/erazemk/trgovina/internal/ratelimit"
	"github.com/erazemk/trgovina/internal/store"
)

// levelRouter sends ERROR and above to one handler and everything else to
// another.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{stdout: lr.stdout.WithAttrs(attrs), stderr: lr.stderr.WithAttrs(attrs)}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{stdout: lr.stdout.WithGroup(name), stderr: lr.stderr.WithGroup(name)}
}

// setupLogger installs the default logger. When logPath is set every record
// is also appended to that file; the returned func closes it.
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	out, errOut := io.Writer(os.Stdout), io.Writer(os.Stderr)
	cleanup := func() {}

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		out = io.MultiWriter(os.Stdout, f)
		errOut = io.MultiWriter(os.Stderr, f)
	}

	slog.SetDefault(slog.New(&levelRouter{
		stdout: slog.NewTextHandler(out, opts),
		stderr: slog.NewTextHandler(errOut, opts),
	}))
	return cleanup, nil
}

func main() {
	cfg := config.Load()

	fs := flag.NewFlagSet("trgovina", flag.ContinueOnError)
	fs.StringVar(&cfg.Server.DBPath, "db", cfg.Server.DBPath, "")
	fs.StringVar(&cfg.Server.DBPath, "d", cfg.Server.DBPath, "")
	fs.StringVar(&cfg.Server.Addr, "addr", cfg.Server.Addr, "")
	fs.StringVar(&cfg.Server.Addr, "a", cfg.Server.Addr, "")
	fs.StringVar(&cfg.Server.AdminUser, "user", cfg.Server.AdminUser, "")
	fs.StringVar(&cfg.Server.AdminUser, "u", cfg.Server.AdminUser, "")
	fs.StringVar(&cfg.Server.LogPath, "log", cfg.Server.LogPath, "")
	fs.StringVar(&cfg.Server.LogPath, "l", cfg.Server.LogPath, "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: trgovina [flags]

Flags:
  -d, -db <path>          SQLite database path (env TRGOVINA_DB, default: trgovina.sqlite3)
  -a, -addr <host:port>   listen address (env TRGOVINA_ADDR, default: :8080)
  -u, -user <name>        admin username on first run (env TRGOVINA_ADMIN, default: Admin)
  -l, -log <path>         also write logs to this file (env TRGOVINA_LOG)
  -h, -help               show this help and exit

Order intake is limited per client by RATE_LIMIT_WINDOW and RATE_LIMIT_BUDGET.
Set RATE_LIMIT_REDIS_URL to share the limit between instances.
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(1)
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.Server.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if _, err := os.Stat(cfg.Server.DBPath); os.IsNotExist(err) {
		database, password, err := initDatabase(cfg.Server.DBPath, cfg.Server.AdminUser)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		database.Close()
		printInitResult(cfg.Server.DBPath, cfg.Server.AdminUser, password)
	}

	database, err := db.Open(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		return err
	}
	slog.Info("database ready", "path", cfg.Server.DBPath)

	ctx := context.Background()
	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return err
	}

	limiterStore, closeStore, err := newLimiterStore(ctx, cfg.RateLimit)
	if err != nil {
		return err
	}
	defer closeStore()

	notifier := notify.New(database, cfg.Notify)
	defer notifier.Close()

	stock := inventory.NewReconciler(database)
	apiRouter := api.NewRouter(api.Deps{
		DB:        database,
		JWTSecret: jwtSecret,
		Orders:    order.NewService(database, stock, notifier, cfg.Orders.MaxLines),
		Stock:     stock,
		Notifier:  notifier,
		Limiter:   ratelimit.New(limiterStore, cfg.RateLimit.Window, cfg.RateLimit.Budget),
		ClientID:  ratelimit.ForwardedClientID,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.LoggingMiddleware(apiRouter),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listening: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	slog.Info("server started", "addr", ln.Addr().String(),
		"rate_limit_window", cfg.RateLimit.Window, "rate_limit_budget", cfg.RateLimit.Budget)
	if err := serve(server, ln, quit, 5*time.Second); err != nil {
		return err
	}

	slog.Info("server stopped, waiting for notifications")
	return nil
}

// serve runs server on ln until a signal arrives on quit. It returns only
// after Shutdown has drained in-flight requests, so callers may close what
// the handlers use.
func serve(server *http.Server, ln net.Listener, quit <-chan os.Signal, grace time.Duration) error {
	drained := make(chan struct{})
	go func() {
		defer close(drained)

		sig, ok := <-quit
		if !ok {
			return
		}
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	err := server.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}

	<-drained
	return nil
}

// newLimiterStore picks Redis when a URL is configured and process memory
// otherwise.
func newLimiterStore(ctx context.Context, cfg config.RateLimitConfig) (ratelimit.Store, func(), error) {
	if cfg.RedisURL == "" {
		slog.Info("rate limiter using in-memory store")
		return ratelimit.NewMemoryStore(), func() {}, nil
	}

	rs, err := ratelimit.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("rate limiter using redis store")
	return rs, func() { rs.Close() }, nil
}

// initDatabase creates a new database with the schema and a first admin
// account, and returns the generated password.
func initDatabase(path, adminUsername string) (*sqlx.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", err
	}

	fail := func(err error) (*sqlx.DB, string, error) {
		database.Close()
		os.Remove(path)
		return nil, "", err
	}

	if err := db.EnsureSchema(database); err != nil {
		return fail(err)
	}

	password, err := generatePassword(16)
	if err != nil {
		return fail(fmt.Errorf("generating password: %w", err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fail(fmt.Errorf("hashing password: %w", err))
	}

	if _, err := store.CreateUser(context.Background(), database, adminUsername, string(hash), model.RoleAdmin); err != nil {
		return fail(err)
	}

	return database, password, nil
}

func printInitResult(dbPath, username, password string) {
	fmt.Printf("Database created: %s\n\n", dbPath)
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n\n", password)
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("It can be changed after logging in.")
	fmt.Println()
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
