// Package app holds process-wide state and the wired domain services.
package app

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"ai-speech-upload-service/internal/config"
	"ai-speech-upload-service/internal/observability"
	"ai-speech-upload-service/internal/observability/logging"
	"ai-speech-upload-service/internal/schema"
	"ai-speech-upload-service/internal/service/assembly"
	"ai-speech-upload-service/internal/service/ledger"
	"ai-speech-upload-service/internal/service/session"
)

const serviceName = "ai-speech-upload-service"

// Services are the domain components the transports call into.
type Services struct {
	Sessions  *session.Manager
	Ledger    *ledger.Ledger
	Assembly  *assembly.Coordinator
	Validator *schema.Validator
	Readiness []observability.ReadinessCheck
	// Uploads accepts PUTs on signed URLs when objects are stored in memory.
	// Nil when a real object store receives the uploads.
	Uploads http.Handler
}

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration
	Services
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Configuration, svc Services) *Application {
	if svc.Validator == nil {
		svc.Validator = schema.New()
	}
	a := &Application{
		Cfg:      cfg,
		Services: svc,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	appLogger.Info().Msg("AI Speech Upload service application created")
	return a
}

// setupLogger configures the global zerolog logger and derives the
// application logger from it.
func (a *Application) setupLogger() {
	lc := logging.DefaultConfig()
	if a.Cfg != nil && a.Cfg.Observability.LogLevel != "" {
		lc.Level = a.Cfg.Observability.LogLevel
	}
	if a.Cfg != nil && a.Cfg.Observability.LogFormat != "" {
		lc.Format = a.Cfg.Observability.LogFormat
	}
	logging.Init(lc)

	a.Logger = logging.WithComponent("application").With().
		Str("service", serviceName).
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", lc.Format).
		Msg("Logger setup completed")
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Int("readinessChecks", len(a.Readiness)).
		Bool("localUploads", a.Uploads != nil).
		Msg("AI Speech Upload service starting")

	return nil
}

// Uptime returns the time since Start.
func (a *Application) Uptime() time.Duration {
	if a.StartupTime.IsZero() {
		return 0
	}
	return time.Since(a.StartupTime)
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().
		Dur("uptime", a.Uptime()).
		Msg("AI Speech Upload service shutting down")
}
