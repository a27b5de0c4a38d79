package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"gitlab.com/autograder.net/internal/adapter/crypto"
	"gitlab.com/autograder.net/internal/adapter/logging"
	natsbroadcaster "gitlab.com/autograder.net/internal/adapter/nats/broadcaster"
	"gitlab.com/autograder.net/internal/adapter/piston"
	"gitlab.com/autograder.net/internal/config"
	"gitlab.com/autograder.net/internal/domain"
	"gitlab.com/autograder.net/internal/handlers"
	http2 "gitlab.com/autograder.net/internal/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "autograder",
		Usage: "grade code submissions against problem test cases",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "load environment variables from `FILE`.env",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if err := config.LoadEnvFile(cmd.String("env")); err != nil {
				return ctx, fmt.Errorf("failed to load env file: %w", err)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API, live viewers, workers and the recovery sweep",
				Action: serve,
			},
			{
				Name:   "worker",
				Usage:  "run workers and the recovery sweep only",
				Action: runWorker,
			},
			{
				Name:   "sweep",
				Usage:  "run one recovery pass and exit",
				Action: sweepOnce,
			},
			{
				Name:   "runtimes",
				Usage:  "print the runtimes the sandbox supports",
				Action: listRuntimes,
			},
			{
				Name:  "token",
				Usage: "mint a bearer token for a user, for local testing",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "user", Required: true},
					&cli.StringSliceFlag{Name: "permission", Usage: "granted permission, repeatable"},
					&cli.DurationFlag{Name: "ttl", Value: time.Hour},
				},
				Action: mintToken,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(ctx context.Context) (*app, func(), error) {
	cfg := config.NewSystemConfig()
	logger := logging.NewZapLogger(cfg.DebugMode)
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		_ = logger.Sync()
		return nil, nil, err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start", "error", err)
		_ = logger.Sync()
		return nil, nil, err
	}
	return a, func() {
		a.close()
		_ = logger.Sync()
	}, nil
}

func serve(ctx context.Context, _ *cli.Command) error {
	a, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	submissionService := a.submissionService()
	provider := http2.NewServiceProvider(submissionService, a.hub, handlers.New(crypto.NewJWTService(a.cfg.JwtConfig)), a.healthChecks())
	server := http2.NewServer(a.cfg.HttpConfig.Port, a.cfg.HttpConfig.ServiceName, *provider, a.logger)
	if err := server.Init(); err != nil {
		return err
	}

	if a.nc != nil {
		responder := natsbroadcaster.NewResponder(a.nc, a.cfg.NatsConfig, a.notifier, a.logger)
		if err := responder.Start(); err != nil {
			return err
		}
		defer func() { _ = responder.Stop() }()
	}

	g, gctx := errgroup.WithContext(ctx)
	serverErr := server.Start(gctx)
	g.Go(func() error {
		select {
		case err := <-serverErr:
			return err
		case <-gctx.Done():
			server.Stop()
			return nil
		}
	})
	g.Go(func() error { return a.workerPool().Run(gctx) })
	g.Go(func() error { return a.schedulerEngine().Run(gctx) })

	a.logger.Info("Autograder started")
	err = g.Wait()
	a.logger.Info("Autograder stopped")
	return err
}

func runWorker(ctx context.Context, _ *cli.Command) error {
	a, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.workerPool().Run(gctx) })
	g.Go(func() error { return a.schedulerEngine().Run(gctx) })
	return g.Wait()
}

func sweepOnce(ctx context.Context, _ *cli.Command) error {
	a, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := a.recovery().Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("reset %d, requeued %d\n", result.Reset, result.Requeued)
	return nil
}

func listRuntimes(ctx context.Context, _ *cli.Command) error {
	cfg := config.NewSystemConfig()
	logger := logging.NewZapLogger(cfg.DebugMode)
	defer func() { _ = logger.Sync() }()

	runtimes, err := piston.NewClient(cfg.SandboxConfig, logger).ListRuntimes(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LANGUAGE\tVERSION\tALIASES")
	for _, r := range runtimes {
		fmt.Fprintf(w, "%s\t%s\t%v\n", r.Language, r.Version, r.Aliases)
	}
	return w.Flush()
}

func mintToken(ctx context.Context, cmd *cli.Command) error {
	jwtService := crypto.NewJWTService(config.NewJwtConfig())
	tok, err := jwtService.GenerateTokenHMAC(ctx, &domain.Principal{
		UserID:      cmd.Int64("user"),
		Permissions: cmd.StringSlice("permission"),
	}, cmd.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
