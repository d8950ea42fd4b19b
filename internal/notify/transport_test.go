package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type fakeTransport struct {
	err  error
	sent []Message
}

func (f *fakeTransport) Send(_ context.Context, msg Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func TestDowntimeMessage(t *testing.T) {
	msg := DowntimeMessage("https://a.example", "alerts@x.io", []string{"a@x.io"})
	assert.Equal(t, "[NOTIFY]: Website downtime", msg.Subject)
	assert.Equal(t, "Hello, https://a.example is currently facing a downtime.", msg.Body)
	assert.Equal(t, "alerts@x.io", msg.From)
}

func TestMulti_SendsToAllAndCombinesErrors(t *testing.T) {
	ok := &fakeTransport{}
	bad1 := &fakeTransport{err: errors.New("first")}
	bad2 := &fakeTransport{err: errors.New("second")}

	err := Multi{bad1, nil, ok, bad2}.Send(context.Background(), Message{Subject: "s"})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Len(t, ok.sent, 1)
	assert.Len(t, bad2.sent, 1)

	require.NoError(t, Multi{ok}.Send(context.Background(), Message{}))
}

func TestSMTP2GO_Send(t *testing.T) {
	var got smtp2goRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"request_id":"r1","data":{"succeeded":2,"failed":0}}`))
	}))
	defer ts.Close()

	m := NewSMTP2GO("key-1")
	m.Endpoint = ts.URL
	err := m.Send(context.Background(), DowntimeMessage("https://a.example", "from@x.io", []string{"a@x.io", "b@x.io"}))
	require.NoError(t, err)
	assert.Equal(t, "key-1", got.APIKey)
	assert.Equal(t, []string{"a@x.io", "b@x.io"}, got.To)
	assert.Equal(t, "from@x.io", got.Sender)
	assert.Equal(t, DowntimeSubject, got.Subject)
}

func TestSMTP2GO_Errors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"data":{"error":"bad sender"}}`))
	}))
	defer ts.Close()

	m := NewSMTP2GO("key-1")
	m.Endpoint = ts.URL
	err := m.Send(context.Background(), Message{Recipients: []string{"a@x.io"}})
	require.ErrorContains(t, err, "bad sender")

	require.ErrorIs(t, m.Send(context.Background(), Message{}), ErrNoRecipients)
	assert.Nil(t, NewSMTP2GO(""))
}

func TestSMTP_Send(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	s := NewSMTP("mail.example", 2525, "", "")
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}
	err := s.Send(context.Background(), DowntimeMessage("https://a.example", "from@x.io", []string{"a@x.io", "a@x.io"}))
	require.NoError(t, err)
	assert.Equal(t, "mail.example:2525", gotAddr)
	assert.Equal(t, []string{"a@x.io", "a@x.io"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: [NOTIFY]: Website downtime\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "\r\n\r\nHello, https://a.example is currently facing a downtime.\r\n"))
}

func TestSMTP_ContextCancelled(t *testing.T) {
	s := NewSMTP("mail.example", 25, "u", "p")
	release := make(chan struct{})
	defer close(release)
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Send(ctx, Message{Recipients: []string{"a@x.io"}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
