// Package cli wires the configuration into a ready engine for the commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/insurai"
	"github.com/aretw0/insurai/internal/config"
	"github.com/aretw0/insurai/pkg/adapters/file"
	"github.com/aretw0/insurai/pkg/adapters/llm"
	"github.com/aretw0/insurai/pkg/adapters/mail"
	"github.com/aretw0/insurai/pkg/adapters/memory"
	"github.com/aretw0/insurai/pkg/adapters/redis"
	"github.com/aretw0/insurai/pkg/adapters/sms"
	"github.com/aretw0/insurai/pkg/adapters/sqlstore"
	"github.com/aretw0/insurai/pkg/capability"
	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/flows"
	"github.com/aretw0/insurai/pkg/observability"
	"github.com/aretw0/insurai/pkg/persistence/middleware"
	"github.com/aretw0/insurai/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ErrReasonerOffline is returned by the placeholder reasoner used when no
// LLM endpoint is configured. Every flow falls back to its scripted answers.
var ErrReasonerOffline = errors.New("no reasoning service configured")

// App is a wired engine plus what must be released with it.
type App struct {
	Engine   *insurai.Engine
	Registry *prometheus.Registry
	// Outbox captures SMS and email when no real provider is configured.
	Outbox *memory.Outbox

	closers []func() error
}

// Close releases databases and connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// Build creates the engine described by cfg with all three flows registered.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Registry: prometheus.NewRegistry(),
		Outbox:   memory.NewOutbox(logger),
	}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics, err := observability.NewMetrics(app.Registry)
	if err != nil {
		return nil, err
	}

	store, locker, codes, err := app.sessions(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	repo, policies, err := app.repositories(ctx, cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	var sender ports.SMSSender = app.Outbox
	if cfg.SMS.AccountSID != "" {
		sender = sms.NewTwilio(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.From)
	}
	var mailer ports.Mailer = app.Outbox
	if cfg.Mail.APIKey != "" {
		mailer = mail.NewResend(cfg.Mail.APIKey, cfg.Mail.Sender)
	}

	all, err := flows.All(flows.Deps{
		Reasoner:            reasoner(cfg.LLM, logger),
		Repository:          repo,
		Policies:            policies,
		Codes:               capability.NewOTP(codes, sender, capability.WithCodeTTL(cfg.OTP.TTL)),
		Mailer:              mailer,
		MaxNegotiationTurns: cfg.Flows.Onboarding.MaxNegotiationTurns,
		MaxFollowups:        cfg.Flows.Support.MaxFollowups,
	})
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	opts := []insurai.Option{
		insurai.WithStore(store),
		insurai.WithLogger(logger),
		insurai.WithLifecycleHooks(domain.CombineHooks(metrics.Hooks(), observability.LoggingHooks(logger))),
		insurai.WithMaxSelfLoops(cfg.Engine.MaxSelfLoops),
		insurai.WithMaxSteps(cfg.Engine.MaxSteps),
		insurai.WithCapabilityTimeout(cfg.Engine.CapabilityTimeout),
	}
	if locker != nil {
		opts = append(opts, insurai.WithLocker(locker))
	}

	app.Engine = insurai.New(opts...)
	if err := app.Engine.Register(all...); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

// sessions picks the session store backend, wrapped in the configured
// middleware, and the matching one-time code store.
func (a *App) sessions(cfg config.Config) (ports.SessionStore, ports.DistributedLocker, ports.CodeStore, error) {
	var (
		store  ports.SessionStore
		locker ports.DistributedLocker
		codes  ports.CodeStore = memory.NewCodeStore()
	)

	switch cfg.Sessions.Backend {
	case config.BackendFile:
		store = file.New(cfg.Sessions.Dir)
	case config.BackendRedis:
		client := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		a.closers = append(a.closers, client.Close)
		store = redis.NewFromClient(client, redis.WithTTL(cfg.Sessions.TTL), redis.WithPrefix(cfg.Sessions.Prefix))
		// Locks and one-time codes share the session namespace, so
		// deployments sharing a Redis never see each other's keys.
		locker = redis.NewLocker(client, cfg.Sessions.Prefix)
		codes = redis.NewCodeStore(client, cfg.Sessions.Prefix)
	default:
		store = memory.NewStore(memory.WithTTL(cfg.Sessions.TTL))
	}

	var mws []middleware.Middleware
	if len(cfg.Sessions.MaskFields) > 0 {
		mw, err := middleware.NewPIIMiddleware(cfg.Sessions.MaskFields)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid sessions.mask_fields: %w", err)
		}
		mws = append(mws, mw)
	}
	if cfg.Sessions.EncryptionKey != "" {
		key, err := middleware.ParseKey(cfg.Sessions.EncryptionKey)
		if err != nil {
			return nil, nil, nil, err
		}
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, nil, nil, err
		}
		mws = append(mws, mw)
	}
	return middleware.Chain(store, mws...), locker, codes, nil
}

func (a *App) repositories(ctx context.Context, cfg config.Config) (ports.InsuranceRepository, ports.PolicyRepository, error) {
	if cfg.Database.Path == "" {
		repo := memory.NewDemoRepository()
		return repo, repo, nil
	}
	db, err := sqlstore.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, db.Close)
	return db, db, nil
}

func reasoner(cfg config.LLM, logger *slog.Logger) ports.Reasoner {
	if cfg.BaseURL == "" {
		logger.Warn("llm.base_url is not set; language features use their fallbacks")
		return ports.ReasonerFunc(func(context.Context, []ports.Message) (string, error) {
			return "", ErrReasonerOffline
		})
	}
	return llm.New(llm.Config{
		Provider:   cfg.Provider,
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Path:       cfg.Path,
		APIVersion: cfg.APIVersion,
		Timeout:    cfg.Timeout,
	})
}
