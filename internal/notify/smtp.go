package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SMTP delivers mail through a plain SMTP relay.
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string

	// sendMail is swapped in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTP(host string, port int, username, password string) *SMTP {
	if host == "" {
		return nil
	}
	return &SMTP{Host: host, Port: port, Username: username, Password: password, sendMail: smtp.SendMail}
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if s == nil || s.Host == "" {
		return errors.New("smtp disabled")
	}
	if len(msg.Recipients) == 0 {
		return ErrNoRecipients
	}
	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	send := s.sendMail
	if send == nil {
		send = smtp.SendMail
	}

	// net/smtp has no context support; run it aside and give up on ctx.Done.
	done := make(chan error, 1)
	go func() { done <- send(addr, auth, msg.From, msg.Recipients, formatMIME(msg, time.Now())) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send via %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func formatMIME(msg Message, at time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + msg.From + "\r\n")
	b.WriteString("To: " + strings.Join(msg.Recipients, ", ") + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("Date: " + at.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body + "\r\n")
	return []byte(b.String())
}
