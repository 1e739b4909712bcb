package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/oauth2"

	adapthttp "stepcounter/internal/adapter/http"
	adaptnats "stepcounter/internal/adapter/nats"
	"stepcounter/internal/app"
	"stepcounter/internal/config"
	"stepcounter/internal/logfields"
	"stepcounter/internal/metrics"
	"stepcounter/internal/replay"
	"stepcounter/internal/scheduler"
)

var CLI struct {
	EnvFile string `help:"Optional .env file loaded before reading the environment" default:".env" type:"path"`

	Serve struct{} `cmd:"" default:"1" help:"Run the step counter HTTP server"`

	Replay struct {
		File string `arg:"" help:"YAML file of recorded readings" type:"existingfile"`
	} `cmd:"" help:"Replay recorded sensor readings and print the daily step count"`

	CreateUser struct {
		Username string `required:"" help:"Login name"`
		Password string `required:"" env:"STEPCOUNTER_PASSWORD" help:"Password (at least 8 characters)"`
	} `cmd:"" help:"Create the first user account"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("stepcounter"),
		kong.Description("Daily step accounting from a cumulative hardware step counter."),
	)

	var err error
	switch ctx.Command() {
	case "serve":
		err = runServe()
	case "replay <file>":
		err = runReplay(CLI.Replay.File)
	case "create-user":
		err = runCreateUser(CLI.CreateUser.Username, CLI.CreateUser.Password)
	default:
		err = fmt.Errorf("unknown command %q", ctx.Command())
	}
	if err != nil {
		slog.Error("Command failed", slog.String("command", ctx.Command()), logfields.Error(err))
		os.Exit(1)
	}
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(CLI.EnvFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		return config.Config{}, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runServe() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Warn("Failed to close store", logfields.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(reg)

	steps := app.NewStepService(st.steps, app.StepServiceConfig{
		Location: loc,
		Logger:   logger,
		Metrics:  recorder,
	})
	charts := app.NewChartsService(st.steps, cfg.Goal)
	authSvc := app.NewAuthService(st.users, st.sessions)

	if cfg.NATSURL != "" {
		pub, err := adaptnats.Connect(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
		steps.Observe(pub.Publish)
	}

	opts := []adapthttp.Option{
		adapthttp.WithWebDir(cfg.WebDir),
		adapthttp.WithLogger(logger),
		adapthttp.WithMetricsHandler(metrics.HTTPHandler(reg)),
	}
	if cfg.OIDC.Enabled() {
		oidcCfg, err := newOIDCConfig(ctx, cfg.OIDC)
		if err != nil {
			return err
		}
		opts = append(opts, adapthttp.WithOIDC(oidcCfg))
	}
	if cfg.ForwardAuth {
		opts = append(opts, adapthttp.WithForwardAuth())
	}
	server := adapthttp.New(steps, charts, authSvc, opts...)
	if cfg.AuthDisabled {
		logger.Warn("Authentication disabled; all requests act as the local user")
		server = server.WithoutAuth()
	}

	sched, err := scheduler.New(logger)
	if err != nil {
		return err
	}
	if err := sched.ScheduleFlush(cfg.FlushInterval, steps); err != nil {
		return err
	}
	if err := sched.ScheduleSessionCleanup(cfg.SessionCleanupInterval, authSvc); err != nil {
		return err
	}
	sched.Start()

	// Event streams end when shutdown starts so Shutdown does not wait on them.
	streamCtx, stopStreams := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return streamCtx },
	}
	srv.RegisterOnShutdown(stopStreams)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", slog.String("addr", cfg.Addr), slog.String("store", cfg.Store), slog.String("timezone", loc.String()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = sched.Stop()
			steps.Close(context.Background())
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", logfields.Error(err))
	}
	if err := sched.Stop(); err != nil {
		logger.Warn("Scheduler shutdown incomplete", logfields.Error(err))
	}
	steps.Close(shutdownCtx)
	logger.Info("Step state flushed; stopped")
	return nil
}

func newOIDCConfig(ctx context.Context, c config.OIDCConfig) (adapthttp.OIDCConfig, error) {
	provider, err := oidc.NewProvider(ctx, c.Issuer)
	if err != nil {
		return adapthttp.OIDCConfig{}, fmt.Errorf("oidc provider %s: %w", c.Issuer, err)
	}
	return adapthttp.OIDCConfig{
		Enabled:  true,
		Provider: provider,
		OAuth2Config: oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}, nil
}

func runReplay(path string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	script, err := replay.Load(f)
	if err != nil {
		return err
	}
	steps, final, err := replay.Run(context.Background(), script, logger)
	if err != nil {
		return err
	}
	if err := replay.Print(os.Stdout, steps); err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stdout, "\nsaved: current_day=%s steps_today=%d last_sensor_value=%d\n",
		final.Day, final.StepsToday, final.LastRawValue)
	return err
}

func runCreateUser(username, password string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.close() //nolint:errcheck

	authSvc := app.NewAuthService(st.users, st.sessions)
	if err := authSvc.CreateInitialUser(context.Background(), username, password); err != nil {
		return err
	}
	logger.Info("User created", slog.String("username", username))
	return nil
}
