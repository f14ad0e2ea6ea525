package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resale-market/internal/config"
	"resale-market/internal/logger"
	"resale-market/internal/payment"
	"resale-market/internal/server"
	"resale-market/internal/service"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	app := &cli.App{
		Name:  "sweeper",
		Usage: "cancel pending orders whose payment never completed",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "older-than",
				Usage: "cancel PENDING orders created before now minus this age",
				Value: cfg.Sweep.PendingTTL,
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "time between sweeps when running continuously",
				Value: cfg.Sweep.Interval,
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "orders loaded per batch",
				Value: cfg.Sweep.BatchSize,
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "run a single sweep and exit",
			},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, cfg, c.Duration("older-than"), c.Duration("interval"), c.Int("batch-size"), c.Bool("once"))
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(parent context.Context, cfg *config.Config, olderThan, interval time.Duration, batchSize int, once bool) error {
	if olderThan <= 0 || batchSize <= 0 {
		return fmt.Errorf("older-than and batch-size must be positive")
	}
	if !once && interval <= 0 {
		return fmt.Errorf("interval must be positive unless --once is set")
	}

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	infra, err := server.NewInfra(cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	services := server.NewServices(cfg, log, infra.DB, infra.Redis, infra.Publisher, payment.NewStripeGateway(cfg.Stripe.SecretKey, log))

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Sweeper started",
		zap.Duration("older_than", olderThan),
		zap.Duration("interval", interval),
		zap.Int("batch_size", batchSize),
		zap.Bool("once", once),
	)

	if once {
		return sweep(ctx, services.Orders, olderThan, batchSize, log)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := sweep(ctx, services.Orders, olderThan, batchSize, log); err != nil {
			// a failed pass is retried on the next tick
			log.Error("Sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			log.Info("Sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func sweep(ctx context.Context, orders service.OrderService, olderThan time.Duration, batchSize int, log *zap.Logger) error {
	start := time.Now()
	cancelled, err := orders.CancelStalePending(ctx, olderThan, batchSize)
	if err != nil {
		return err
	}

	log.Info("Sweep completed",
		zap.Int("cancelled", cancelled),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
