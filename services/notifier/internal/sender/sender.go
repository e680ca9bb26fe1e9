package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Skotchmaster/souq/services/notifier/internal/message"
)

const whatsAppPrefix = "+212"

type Sender interface {
	Name() string
	Send(ctx context.Context, to, body string) error
}

type Twilio struct {
	client
	accountSID string
	authToken  string
	from       string
}

func NewTwilio(baseURL, accountSID, authToken, from string) *Twilio {
	return &Twilio{client: newClient(baseURL), accountSID: accountSID, authToken: authToken, from: from}
}

func (t *Twilio) Name() string { return "sms" }

func (t *Twilio) Send(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.from)
	form.Set("Body", body)

	path := "Accounts/" + url.PathEscape(t.accountSID) + "/Messages.json"
	return t.post(ctx, path, strings.NewReader(form.Encode()), func(r *http.Request) {
		r.SetBasicAuth(t.accountSID, t.authToken)
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	})
}

type WhatsApp struct {
	client
	phoneID string
	token   string
}

func NewWhatsApp(baseURL, phoneID, token string) *WhatsApp {
	return &WhatsApp{client: newClient(baseURL), phoneID: phoneID, token: token}
}

func (w *WhatsApp) Name() string { return "whatsapp" }

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

func (w *WhatsApp) Send(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(whatsAppMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             whatsAppText{Body: body},
	})
	if err != nil {
		return err
	}
	return w.post(ctx, url.PathEscape(w.phoneID)+"/messages", bytes.NewReader(payload), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+w.token)
		r.Header.Set("Content-Type", "application/json")
	})
}

// Log stands in for a channel that has no credentials.
type Log struct {
	Channel string
	Log     *slog.Logger
}

func (l Log) Name() string { return l.Channel }

func (l Log) Send(_ context.Context, to, body string) error {
	l.Log.Info("notification_not_sent", "channel", l.Channel, "reason", "channel not configured", "to", to, "body", body)
	return nil
}

// Dispatcher sends every message by SMS and, for Moroccan numbers, by WhatsApp too.
type Dispatcher struct {
	SMS      Sender
	WhatsApp Sender
	Log      *slog.Logger
}

// Dispatch never fails: each delivery error is logged and the next channel is tried.
func (d *Dispatcher) Dispatch(ctx context.Context, msgs []message.Message) (sent int) {
	for _, m := range msgs {
		channels := []Sender{d.SMS}
		if strings.HasPrefix(m.To, whatsAppPrefix) {
			channels = append(channels, d.WhatsApp)
		}
		for _, s := range channels {
			if s == nil {
				continue
			}
			if err := s.Send(ctx, m.To, m.Body); err != nil {
				d.Log.Error("notification_failed", "channel", s.Name(), "to", m.To, "error", err)
				continue
			}
			d.Log.Info("notification_sent", "channel", s.Name(), "to", m.To)
			sent++
		}
	}
	return sent
}
