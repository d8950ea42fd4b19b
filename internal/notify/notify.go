package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const DowntimeSubject = "[NOTIFY]: Website downtime"

var ErrNoRecipients = errors.New("no recipients")

// Message is one email-shaped notification.
type Message struct {
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	From       string   `json:"from"`
	Recipients []string `json:"recipients"`
}

// DowntimeMessage builds the alert sent when a site is observed unreachable.
func DowntimeMessage(siteURL, from string, recipients []string) Message {
	return Message{
		Subject:    DowntimeSubject,
		Body:       fmt.Sprintf("Hello, %s is currently facing a downtime.", siteURL),
		From:       from,
		Recipients: recipients,
	}
}

type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Multi sends to every transport and reports all failures together.
type Multi []Transport

func (m Multi) Send(ctx context.Context, msg Message) error {
	var err error
	for _, t := range m {
		if t == nil {
			continue
		}
		err = multierr.Append(err, t.Send(ctx, msg))
	}
	return err
}

// Log writes messages to the logger instead of delivering them.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Send(_ context.Context, msg Message) error {
	l.Logger.Info("notify_logged",
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
		zap.Strings("recipients", msg.Recipients),
	)
	return nil
}
