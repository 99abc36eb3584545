package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	twilio "github.com/twilio/twilio-go"

	"github.com/mrsingh-rishi/voice-moderator/call"
	"github.com/mrsingh-rishi/voice-moderator/config"
	"github.com/mrsingh-rishi/voice-moderator/logging"
	"github.com/mrsingh-rishi/voice-moderator/metrics"
	"github.com/mrsingh-rishi/voice-moderator/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := logging.New(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engines, err := buildEngines(ctx, cfg, logger)
	if err != nil {
		logger.Fatalw("failed to build engines", "error", err)
	}
	policy, err := workers.ParsePolicy(cfg.TurnPolicy, cfg.TurnSilence)
	if err != nil {
		logger.Fatalw("invalid turn policy", "error", err)
	}
	browserVoice, telephonyVoice := voices(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	handler, err := call.NewHandler(engines, call.Settings{
		SystemPrompt:   cfg.SystemPrompt,
		HistoryCap:     cfg.HistoryCap,
		Policy:         policy,
		TurnTimeout:    cfg.TurnTimeout,
		MaxInFlight:    cfg.MaxInFlight,
		LanguageCode:   cfg.LanguageCode,
		BrowserVoice:   browserVoice,
		TelephonyVoice: telephonyVoice,
		StopGrace:      cfg.StopGrace,
	}, logger, m)
	if err != nil {
		logger.Fatalw("failed to create session handler", "error", err)
	}

	srv := &server{
		ctx:      ctx,
		cfg:      cfg,
		handler:  handler,
		gatherer: reg,
		logger:   logger,
	}
	if cfg.Twilio.Enabled() {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.Twilio.AccountSID,
			Password: cfg.Twilio.AuthToken,
		})
		srv.calls = client.Api
		logger.Info("telephony bridge enabled")
	}
	app := srv.routes()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Warnw("shutdown incomplete", "error", err)
		}
	}()

	addr := ":" + cfg.Port
	logger.Infow("server listening", "addr", addr)
	if err := app.Listen(addr); err != nil {
		logger.Fatalw("server stopped", "error", err)
	}
}
