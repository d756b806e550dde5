package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sectorflow/config"
	"sectorflow/logger"
	"sectorflow/pipeline"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Sectorflow.Name,
		"version": cfg.Sectorflow.Version,
	}).Info("starting sectorflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Storage.S3.Enabled && cfg.Logging.DashboardName != "" {
		logger.InitCloudWatch(cfg.Storage.S3.Region, cfg.Sectorflow.Name, cfg.Logging.DashboardName)
		logger.CreateDefaultDashboard(ctx)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
		cancel()
	}()

	p, err := pipeline.New(cfg)
	if err != nil {
		log.WithError(err).Error("failed to initialize pipeline")
		os.Exit(1)
	}
	defer p.Close()

	summary, err := p.Run(ctx)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"run_id": summary.RunID,
			"failed": summary.Failed,
		}).Error("pipeline run failed")
		logger.LogFinalReport(ctx, log)
		os.Exit(1)
	}

	logger.LogFinalReport(ctx, log)

	log.WithFields(logger.Fields{
		"run_id":     summary.RunID,
		"sectors":    summary.Sectors,
		"failed":     summary.Failed,
		"datasets":   summary.Datasets,
		"violations": summary.Violations,
	}).Info("sectorflow finished")

	if summary.Failed > 0 || summary.Violations > 0 {
		os.Exit(1)
	}
}
