// Package notify delivers passcode SMS and invitation e-mails. Real
// providers are out of scope: messages are either printed to an outbox
// writer or queued on SQS for a downstream delivery worker.
package notify

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/secureshare/internal/common"
)

type Sender interface {
	// SendSMS delivers body to an E.164 number and returns the provider's
	// message id.
	SendSMS(ctx context.Context, to, body string) (string, error)
	SendEmail(ctx context.Context, to, subject, body string) error
}

func deliveryErr(channel string, err error) error {
	return fmt.Errorf("send %s: %w: %w", channel, common.ErrDelivery, err)
}
