package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Skotchmaster/souq/pkg/config"
	"github.com/Skotchmaster/souq/pkg/logging"
	"github.com/Skotchmaster/souq/pkg/mykafka"

	nconfig "github.com/Skotchmaster/souq/services/notifier/internal/config"
	"github.com/Skotchmaster/souq/services/notifier/internal/consumer"
	"github.com/Skotchmaster/souq/services/notifier/internal/message"
	"github.com/Skotchmaster/souq/services/notifier/internal/sender"
)

func main() {
	config.LoadDotenv("services/notifier/.env", ".env")
	cfg := nconfig.Load()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName, "env", cfg.Env)
	slog.SetDefault(logger)

	var sms sender.Sender = sender.Log{Channel: "sms", Log: logger}
	if cfg.SMSConfigured() {
		sms = sender.NewTwilio(cfg.TwilioBaseURL, cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber)
	} else {
		logger.Warn("sms_not_configured")
	}
	var wa sender.Sender = sender.Log{Channel: "whatsapp", Log: logger}
	if cfg.WhatsAppConfigured() {
		wa = sender.NewWhatsApp(cfg.WhatsAppBaseURL, cfg.WhatsAppPhoneID, cfg.WhatsAppToken)
	} else {
		logger.Warn("whatsapp_not_configured")
	}

	reader := mykafka.NewReader(cfg.KafkaBrokers, cfg.GroupID, cfg.Topic)
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Error("kafka_reader_close_failed", "error", err)
		}
	}()

	c := &consumer.Consumer{
		Reader:     reader,
		Renderer:   message.Renderer{FrontendURL: cfg.FrontendURL, AdminPhone: cfg.AdminPhone},
		Dispatcher: &sender.Dispatcher{SMS: sms, WhatsApp: wa, Log: logger},
		Log:        logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("notifier_started", "brokers", cfg.KafkaBrokers, "group", cfg.GroupID, "topic", cfg.Topic)
	if err := c.Run(logging.IntoContext(ctx, logger)); err != nil {
		logger.Error("notifier_stopped", "error", err)
		return
	}
	logger.Info("notifier_stopped")
}
