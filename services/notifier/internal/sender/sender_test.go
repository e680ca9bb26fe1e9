package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/souq/pkg/logging"
	"github.com/Skotchmaster/souq/services/notifier/internal/message"
)

func TestTwilio_PostsForm(t *testing.T) {
	var got *http.Request
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		got = r
		form = map[string]string{"To": r.PostForm.Get("To"), "From": r.PostForm.Get("From"), "Body": r.PostForm.Get("Body")}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	tw := NewTwilio(srv.URL, "AC123", "secret", "+15550001")
	require.NoError(t, tw.Send(context.Background(), "+212612345678", "Bonjour"))

	require.NotNil(t, got)
	assert.Equal(t, "/Accounts/AC123/Messages.json", got.URL.Path)
	user, pass, ok := got.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "AC123", user)
	assert.Equal(t, "secret", pass)
	assert.Equal(t, map[string]string{"To": "+212612345678", "From": "+15550001", "Body": "Bonjour"}, form)
}

func TestWhatsApp_PostsJSON(t *testing.T) {
	var body whatsAppMessage
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wa := NewWhatsApp(srv.URL+"/v17.0", "987", "wa-token")
	require.NoError(t, wa.Send(context.Background(), "+212612345678", "Salam"))

	assert.Equal(t, "/v17.0/987/messages", path)
	assert.Equal(t, "Bearer wa-token", auth)
	assert.Equal(t, whatsAppMessage{MessagingProduct: "whatsapp", To: "+212612345678", Type: "text", Text: whatsAppText{Body: "Salam"}}, body)
}

func TestProviderErrorCarriesReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid To number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewTwilio(srv.URL, "AC", "t", "+1").Send(context.Background(), "x", "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "invalid To number")
}

type recordingSender struct {
	name string
	err  error
	to   []string
}

func (s *recordingSender) Name() string { return s.name }

func (s *recordingSender) Send(_ context.Context, to, _ string) error {
	s.to = append(s.to, to)
	return s.err
}

func TestDispatch(t *testing.T) {
	var buf bytes.Buffer
	sms := &recordingSender{name: "sms"}
	wa := &recordingSender{name: "whatsapp", err: errors.New("graph down")}
	d := &Dispatcher{SMS: sms, WhatsApp: wa, Log: logging.NewWithWriter(&buf, "debug")}

	sent := d.Dispatch(context.Background(), []message.Message{
		{To: "+212612345678", Body: "a"},
		{To: "+33612345678", Body: "b"},
	})

	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"+212612345678", "+33612345678"}, sms.to)
	assert.Equal(t, []string{"+212612345678"}, wa.to)
	assert.Contains(t, buf.String(), "notification_failed")
	assert.Contains(t, buf.String(), "graph down")
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := Log{Channel: "sms", Log: logging.NewWithWriter(&buf, "info")}
	require.NoError(t, s.Send(context.Background(), "+212600000000", "hello"))
	assert.Contains(t, buf.String(), "notification_not_sent")
	assert.Contains(t, buf.String(), "hello")
}
