// Package push отправляет созданные уведомления в очередь SQS, откуда
// realtime-сервис доставляет их в открытые вкладки и мобильные устройства.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"example.com/marketplace/pkg/circuitbreaker"
	"example.com/marketplace/pkg/logger"
	"example.com/marketplace/services/notifier/internal/config"
	"example.com/marketplace/services/notifier/internal/domain"
)

// Job — сообщение в очереди push.
type Job struct {
	NotificationID string    `json:"notification_id"`
	EventID        string    `json:"event_id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"created_at"`
}

// JobFromNotification собирает Job из записанного уведомления.
func JobFromNotification(n domain.Notification) Job {
	return Job{
		NotificationID: n.ID,
		EventID:        n.EventID,
		UserID:         n.UserID,
		Title:          n.Title,
		Body:           n.Body,
		Type:           n.Type,
		CreatedAt:      n.CreatedAt,
	}
}

// Pusher — отправка push-задачи.
type Pusher interface {
	Push(ctx context.Context, job Job) error
}

// SendMessageAPI — часть клиента SQS, которая нужна SQSPusher.
type SendMessageAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPusher пишет задачи в очередь SQS через circuit breaker.
type SQSPusher struct {
	client   SendMessageAPI
	queueURL string
	fifo     bool
	breaker  *circuitbreaker.Breaker
}

// NewSQSPusher создаёт клиента SQS по конфигурации. Статические ключи
// необязательны: без них используется стандартная цепочка AWS.
func NewSQSPusher(ctx context.Context, cfg config.SQSConfig) (*SQSPusher, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки AWS конфигурации: %w", err)
	}

	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	logger.Info().
		Str("region", cfg.Region).
		Str("queue", cfg.QueueURL).
		Bool("fifo", cfg.FIFO()).
		Msg("SQS клиент создан")

	return NewSQSPusherWithClient(client, cfg.QueueURL, cfg.FIFO()), nil
}

// NewSQSPusherWithClient создаёт SQSPusher с готовым клиентом.
func NewSQSPusherWithClient(client SendMessageAPI, queueURL string, fifo bool) *SQSPusher {
	return &SQSPusher{
		client:   client,
		queueURL: queueURL,
		fifo:     fifo,
		breaker:  circuitbreaker.New("sqs-push"),
	}
}

// Push отправляет задачу. В FIFO-очереди задачи одного пользователя
// идут одной группой, id уведомления служит ключом дедупликации.
func (p *SQSPusher) Push(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("ошибка сериализации push: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"type": {DataType: aws.String("String"), StringValue: aws.String(job.Type)},
		},
	}
	if p.fifo {
		input.MessageGroupId = aws.String(job.UserID)
		input.MessageDeduplicationId = aws.String(job.NotificationID)
	}

	return p.breaker.Execute(ctx, func(ctx context.Context) error {
		out, err := p.client.SendMessage(ctx, input)
		if err != nil {
			return fmt.Errorf("ошибка отправки в SQS: %w", err)
		}
		logger.Ctx(ctx).Debug().
			Str("message_id", aws.ToString(out.MessageId)).
			Str("notification_id", job.NotificationID).
			Msg("Push отправлен в SQS")
		return nil
	})
}

// Nop — Pusher, когда SQS не настроен. Уведомление остаётся в ленте.
type Nop struct{}

// Push ничего не делает.
func (Nop) Push(context.Context, Job) error { return nil }
