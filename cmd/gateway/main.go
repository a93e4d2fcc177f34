package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/ismaiel54/agent-trading-gateway/internal/chaos"
	"github.com/ismaiel54/agent-trading-gateway/internal/config"
	"github.com/ismaiel54/agent-trading-gateway/internal/journal"
	"github.com/ismaiel54/agent-trading-gateway/internal/logging"
	"github.com/ismaiel54/agent-trading-gateway/internal/msg"
	"github.com/ismaiel54/agent-trading-gateway/internal/observability"
	"github.com/ismaiel54/agent-trading-gateway/internal/session"
	"github.com/ismaiel54/agent-trading-gateway/internal/toolkit"
	"github.com/ismaiel54/agent-trading-gateway/internal/transport/httpapi"
	"github.com/ismaiel54/agent-trading-gateway/internal/venue"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig("gateway")

	// Initialize logger
	logger, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting gateway",
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("fix_addr", cfg.FIX.Addr()),
		zap.String("venue_rest_url", cfg.VenueRESTURL),
		zap.String("journal_path", cfg.JournalPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Fault injection for the FIX socket and the REST client
	chaosCfg := chaos.LoadConfig()
	injector := chaos.New(chaosCfg, logger)
	if chaosCfg.Enabled {
		logger.Warn("chaos enabled",
			zap.String("target", chaosCfg.Target),
			zap.Int("stall_pct", chaosCfg.StallPct),
			zap.Int("delay_ms_min", chaosCfg.DelayMsMin),
			zap.Int("delay_ms_max", chaosCfg.DelayMsMax),
		)
	}

	venueClient := venue.NewClient(cfg.VenueRESTURL, cfg.VenueRESTTimeout, logger, venue.WithDelayer(injector))
	if !venueClient.Health(ctx) {
		logger.Warn("venue REST API not healthy at startup")
	}

	sess := session.New(cfg.FIX, logger,
		session.WithConnWrapper(func(nc net.Conn) net.Conn { return injector.WrapConn(nc, "fix") }),
	)
	// logs out on the way down
	defer sess.Close()

	connectCtx, cancel := context.WithTimeout(ctx, cfg.FIX.DialTimeout+cfg.FIX.LogonTimeout)
	if err := sess.Connect(connectCtx); err != nil {
		// reconnect is an explicit API call
		logger.Error("initial FIX logon failed", zap.Error(err))
	}
	cancel()

	tkCfg := toolkit.Config{
		MaxBuffered:       cfg.MaxBuffered,
		ResetVenueOnStart: cfg.ResetVenueOnStart,
		InitialCash:       cfg.InitialCash,
		MarketSlippage:    cfg.MarketSlippage,
	}
	var opts []toolkit.Option

	group, gctx := errgroup.WithContext(ctx)

	// Journal and outbox
	if cfg.JournalPath != "" {
		store, err := journal.Open(cfg.JournalPath)
		if err != nil {
			logger.Fatal("failed to open journal", zap.Error(err))
		}
		defer store.Close()
		logger.Info("journal opened", zap.String("path", cfg.JournalPath))
		opts = append(opts, toolkit.WithSink(store))

		kafkaCfg := msg.LoadConfig()
		if kafkaCfg.Enabled() {
			producer, err := msg.NewProducer(kafkaCfg, logger)
			if err != nil {
				logger.Fatal("failed to create kafka producer", zap.Error(err))
			}
			defer producer.Close()

			publisher := journal.NewPublisher(store, producer, logger)
			group.Go(func() error { return publisher.Run(gctx) })
		} else {
			logger.Info("kafka brokers not configured, outbox will not be published")
		}
	}

	tk := toolkit.New(tkCfg, sess, venueClient, logger, opts...)

	// Health
	healthChecker := observability.NewHealthChecker(logger)
	healthChecker.AddProbe("fix-session", func(context.Context) error {
		if st := sess.State(); st != session.StateActive {
			return fmt.Errorf("session %s", st)
		}
		return nil
	})
	healthChecker.AddProbe("venue-rest", func(ctx context.Context) error {
		if !venueClient.Health(ctx) {
			return errors.New("venue status endpoint not OK")
		}
		return nil
	})

	grpcServer := grpc.NewServer()
	healthChecker.RegisterGRPC(grpcServer)

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		logger.Fatal("failed to listen on gRPC port", zap.Error(err))
	}

	api := httpapi.NewServer(cfg.HTTPAddr(), tk, healthChecker, logger)

	group.Go(func() error {
		logger.Info("gRPC health server listening", zap.String("addr", cfg.GRPCAddr()))
		return grpcServer.Serve(grpcListener)
	})
	group.Go(func() error {
		<-gctx.Done()
		healthChecker.Shutdown()
		grpcServer.GracefulStop()
		return nil
	})
	group.Go(func() error { return healthChecker.Run(gctx, 5*time.Second) })
	group.Go(func() error { return tk.Run(gctx, cfg.PumpInterval) })
	group.Go(func() error { return api.Start(gctx) })

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("gateway stopped with error", zap.Error(err))
	}
	logger.Info("gateway stopped")
}
