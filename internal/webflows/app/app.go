package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/store"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/store/drivers/sqlite"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/slogx"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/webflows"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Options carries dependencies that don't come from Config.
type Options struct {
	HTTPClient *http.Client // Optional: defaults to a client with api.DefaultTimeout
	Logger     *slog.Logger // Optional: built from Config when nil
}

// Application wires a webflows client to encrypted sqlite storage.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db           *sqlite.Store
	store        *store.Encrypted
	housekeeping *store.Housekeeping

	Client   *webflows.Client
	Observer *webflows.AuthResultObserver
}

// New opens the database, builds the client and resumes the last logged-in
// user. Close releases everything.
func New(ctx context.Context, cfg Config, opts Options) (*Application, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slogx.New(slogx.Config{
			Service: "webflows",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		})
	}

	clientConfig, err := cfg.ClientConfiguration()
	if err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}

	app := &Application{cfg: cfg, logger: logger}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.store = store.NewEncrypted(app.db, cfg.MasterKeyProvider(), store.EncryptedOptions{
		Policy: cfg.KeyPolicy(),
		Logger: logger,
	})

	app.Client = webflows.NewClient(clientConfig, webflows.ClientOptions{
		Store:              app.store,
		HTTPClient:         opts.HTTPClient,
		Logger:             logger,
		LegacyClientID:     cfg.LegacyClientID,
		LegacyClientSecret: cfg.LegacyClientSecret,
	})

	observer, err := webflows.NewAuthResultObserver(ctx, app.Client)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to observe auth state: %w", err)
	}
	app.Observer = observer

	app.housekeeping = store.NewHousekeeping(app.store, logger, cfg.HousekeepingInterval)
	app.housekeeping.Start()

	return app, nil
}

func (app *Application) Logger() *slog.Logger { return app.logger }

func (app *Application) Config() Config { return app.cfg }

// Close stops housekeeping and closes the database.
func (app *Application) Close() error {
	app.housekeeping.Stop()
	app.Observer.Close()

	if err := app.store.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

func (app *Application) initDatabase() error {
	db, err := sqlite.NewFileStore(app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.db = db
	app.logger.Debug("database migrations applied", "file", app.cfg.DatabaseFile)
	return nil
}
