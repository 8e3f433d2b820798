package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/secureshare/internal/contact"
	"github.com/dmitrijs2005/secureshare/internal/logging"
	"github.com/google/uuid"
)

// ConsoleSender writes messages to an outbox writer (stdout for local runs).
// Message bodies go to the outbox only, never to the logger.
type ConsoleSender struct {
	mu  sync.Mutex
	out io.Writer
	log logging.Logger
}

func NewConsoleSender(out io.Writer, log logging.Logger) *ConsoleSender {
	return &ConsoleSender{out: out, log: log.With("module", "notify", "sender", "console")}
}

func (s *ConsoleSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	_, err := fmt.Fprintf(s.out, "[sms %s] to=%s\n%s\n\n", id, to, body)
	s.mu.Unlock()
	if err != nil {
		return "", deliveryErr("sms", err)
	}
	s.log.Info(ctx, "sms written to outbox", "to", contact.MaskPhone(to), "message_id", id)
	return id, nil
}

func (s *ConsoleSender) SendEmail(ctx context.Context, to, subject, body string) error {
	s.mu.Lock()
	_, err := fmt.Fprintf(s.out, "[email] to=%s subject=%q\n%s\n\n", to, subject, body)
	s.mu.Unlock()
	if err != nil {
		return deliveryErr("email", err)
	}
	s.log.Info(ctx, "email written to outbox", "subject", subject)
	return nil
}
