package config

import (
	"os"
	"strings"

	"github.com/Skotchmaster/souq/pkg/config"
)

type ServiceConfig struct {
	config.Config

	GroupID string
	Topic   string

	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string
	TwilioBaseURL     string

	WhatsAppPhoneID string
	WhatsAppToken   string
	WhatsAppBaseURL string

	FrontendURL string
	AdminPhone  string
}

func FromEnv() ServiceConfig {
	return ServiceConfig{
		Config:            config.Load(),
		GroupID:           config.EnvDefault("KAFKA_GROUP_ID", "notifier"),
		Topic:             config.EnvDefault("KAFKA_TOPIC", "order_events"),
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioPhoneNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
		TwilioBaseURL:     config.EnvDefault("TWILIO_BASE_URL", "https://api.twilio.com/2010-04-01/"),
		WhatsAppPhoneID:   os.Getenv("WHATSAPP_PHONE_ID"),
		WhatsAppToken:     os.Getenv("WHATSAPP_TOKEN"),
		WhatsAppBaseURL:   config.EnvDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com/v17.0/"),
		FrontendURL:       strings.TrimRight(config.EnvDefault("FRONTEND_URL", "http://localhost:3000"), "/"),
		AdminPhone:        config.EnvDefault("ADMIN_PHONE", "+212600000000"),
	}
}

// Load reads the environment; the worker cannot start without brokers.
func Load() ServiceConfig {
	cfg := FromEnv()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "notifier"
	}
	if len(cfg.KafkaBrokers) == 0 {
		config.MustNonEmpty("", "KAFKA_BROKERS")
	}
	return cfg
}

func (c ServiceConfig) SMSConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioPhoneNumber != ""
}

func (c ServiceConfig) WhatsAppConfigured() bool {
	return c.WhatsAppPhoneID != "" && c.WhatsAppToken != ""
}
