package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/dmitrijs2005/secureshare/internal/contact"
	"github.com/dmitrijs2005/secureshare/internal/logging"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Message is the queued envelope consumed by the delivery worker.
type Message struct {
	Channel string `json:"channel"`
	To      string `json:"to"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// SQSSender queues messages for asynchronous delivery. The SQS message id
// doubles as the provider id returned for SMS.
type SQSSender struct {
	client   sqsAPI
	queueURL string
	log      logging.Logger
}

type SQSConfig struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	QueueURL  string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

func NewSQSSender(ctx context.Context, cfg SQSConfig, log logging.Logger) (*SQSSender, error) {
	if cfg.QueueURL == "" {
		return nil, errors.New("sqs: queue url is required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sqs: load config: %w", err)
	}
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newSQSSender(client, cfg.QueueURL, log), nil
}

func newSQSSender(client sqsAPI, queueURL string, log logging.Logger) *SQSSender {
	return &SQSSender{client: client, queueURL: queueURL, log: log.With("module", "notify", "sender", "sqs")}
}

func (s *SQSSender) enqueue(ctx context.Context, m Message) (string, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	out, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"channel": {DataType: aws.String("String"), StringValue: aws.String(m.Channel)},
		},
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

func (s *SQSSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	id, err := s.enqueue(ctx, Message{Channel: "sms", To: to, Body: body})
	if err != nil {
		s.log.Error(ctx, "failed to queue sms", "to", contact.MaskPhone(to), "error", err)
		return "", deliveryErr("sms", err)
	}
	s.log.Debug(ctx, "sms queued", "to", contact.MaskPhone(to), "message_id", id)
	return id, nil
}

func (s *SQSSender) SendEmail(ctx context.Context, to, subject, body string) error {
	id, err := s.enqueue(ctx, Message{Channel: "email", To: to, Subject: subject, Body: body})
	if err != nil {
		s.log.Error(ctx, "failed to queue email", "error", err)
		return deliveryErr("email", err)
	}
	s.log.Debug(ctx, "email queued", "message_id", id)
	return nil
}
