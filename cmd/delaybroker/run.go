package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"delaybroker/config"
	"delaybroker/pkg/broker"
	"delaybroker/pkg/delay"
	"delaybroker/pkg/logging"
	"delaybroker/pkg/queue"
	"delaybroker/storage"
)

func runCmd() *cobra.Command {
	var (
		workers   int
		backend   string
		path      string
		producers int
		messages  int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the broker with demo producers",
		Long: `Start the worker pool, let each demo producer send messages to the next one,
and stop once every queued message has been delivered (or on SIGINT/SIGTERM).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if producers < 0 {
				return fmt.Errorf("--producers must not be negative")
			}
			if messages < 0 {
				return fmt.Errorf("--messages must not be negative")
			}

			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			// Override config with command line flags
			if cmd.Flags().Changed("workers") {
				cfg.Broker.Workers = workers
			}
			if cmd.Flags().Changed("backend") {
				cfg.Storage.Backend = backend
			}
			if cmd.Flags().Changed("path") {
				cfg.Storage.Path = path
			}
			if cfg.Broker.Workers < 1 {
				return fmt.Errorf("--workers must be at least 1")
			}

			ctx, cancel := signalContext()
			defer cancel()

			return run(ctx, cfg, producers, messages)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 2, "Number of delivery workers")
	cmd.Flags().StringVar(&backend, "backend", "file", "Storage backend (file, memory, badger, bolt, postgres)")
	cmd.Flags().StringVar(&path, "path", "./data/messages.json", "Storage path for file, badger and bolt backends")
	cmd.Flags().IntVar(&producers, "producers", 2, "Number of demo producers")
	cmd.Flags().IntVar(&messages, "messages", 3, "Messages sent by each demo producer")

	return cmd
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

func run(ctx context.Context, cfg *config.Config, producers, messages int) error {
	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	b, store, err := newBroker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	senders := make([]*queue.Producer, 0, producers)
	for i := 0; i < producers; i++ {
		p := queue.NewProducer(producerName(i), b, queue.WithProducerLogger(logger))
		if err := p.Subscribe(); err != nil {
			return err
		}
		senders = append(senders, p)
	}

	logger.WithFields(logrus.Fields{
		"workers":  cfg.Broker.Workers,
		"strategy": cfg.Delay.Strategy,
		"backend":  cfg.Storage.Backend,
	}).Info("starting delaybroker")

	runErr := make(chan error, 1)
	go func() { runErr <- b.Run(ctx, cfg.Broker.Workers) }()

	for i, p := range senders {
		recipient := senders[(i+1)%len(senders)].ID()
		for n := 1; n <= messages; n++ {
			pctx, cancel := context.WithTimeout(ctx, cfg.Broker.PublishTimeout)
			_, err := p.Send(pctx, recipient, fmt.Sprintf("message %d from %s", n, p.ID()))
			cancel()
			if err != nil {
				logger.WithError(err).WithField("producer", p.ID()).Error("publish failed")
			}
		}
	}

	// Workers drain what is queued and stop.
	_ = b.Close()

	err = <-runErr
	if errors.Is(err, context.Canceled) {
		logger.Info("received shutdown signal")
		return nil
	}
	if err != nil {
		return err
	}

	for _, p := range senders {
		logger.WithFields(logrus.Fields{
			"producer":  p.ID(),
			"sent":      p.Sent(),
			"delivered": p.Delivered(),
		}).Info("producer summary")
	}
	logger.Info("delaybroker stopped")
	return nil
}

func newBroker(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*broker.Broker, storage.Provider, error) {
	so, err := cfg.StorageOptions()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(ctx, so)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	do, err := cfg.DelayOptions()
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	strategy, err := delay.New(do)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	opts := []broker.Option{broker.WithLogger(logger)}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		opts = append(opts, broker.WithMetrics(broker.NewMetrics(reg)))
		serveMetrics(ctx, cfg.Metrics.Addr, reg, logger)
	}

	return broker.New(store, strategy, opts...), store, nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger logrus.FieldLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

func producerName(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return fmt.Sprintf("P%d", i)
}
