// Publishes a single example scoring event to the oracle topic, mirroring
// what an edge plugin emits after scoring an image. Used for smoke-testing
// a fresh deployment.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/config"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/events"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/logging"
	"go.uber.org/zap"
)

const (
	brokerAttempts    = 5
	brokerProbeWindow = 10 * time.Second
	brokerRetryWait   = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewForFile(cfg.LogFile)
	if err != nil {
		panic(err)
	}
	ctx = logging.ContextWithLogger(ctx, logger)

	logger.Info(ctx, "Connecting to the oracle broker", zap.String("broker", cfg.KafkaBroker))
	if err := events.WaitForBroker(ctx, logger, cfg.KafkaBroker, brokerAttempts, brokerProbeWindow, brokerRetryWait); err != nil {
		logger.Error(ctx, "Shutting down: broker not available", zap.Error(err))
		os.Exit(1)
	}
	logger.Info(ctx, "Successfully connected to the oracle broker", zap.String("broker", cfg.KafkaBroker))

	doc, err := events.LoadDocument(cfg.EventFile)
	if err != nil {
		logger.Error(ctx, "Failed to read event data", zap.String("file", cfg.EventFile), zap.Error(err))
		os.Exit(1)
	}

	if err := doc.Normalize(time.Now()); err != nil {
		logger.Error(ctx, "Failed to normalize event", zap.Error(err))
		os.Exit(1)
	}

	producer := events.NewProducer([]string{cfg.KafkaBroker}, cfg.KafkaTopic)
	defer producer.Close()

	if err := producer.Send(ctx, "", doc); err != nil {
		logger.Error(ctx, "Delivery failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info(ctx, "Produced example event", zap.String("topic", cfg.KafkaTopic))
}
