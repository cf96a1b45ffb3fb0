package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Runbook/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunRequested MessageType = "run.requested"
	MessageTypeRunFinished  MessageType = "run.finished"
	MessageTypeStepEvent    MessageType = "step.event"
)

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// RunRequestedPayload — заявка на выполнение workflow.
// Несёт определение целиком.
type RunRequestedPayload struct {
	RunID     uuid.UUID         `json:"run_id"`
	Workflow  domain.Workflow   `json:"workflow"`
	Variables map[string]string `json:"variables,omitempty"`
	DryRun    bool              `json:"dry_run,omitempty"`
}

// RunFinishedPayload — итог завершённого run.
type RunFinishedPayload struct {
	RunID        uuid.UUID        `json:"run_id"`
	WorkflowName string           `json:"workflow_name,omitempty"`
	Status       domain.RunStatus `json:"status"`
	Error        string           `json:"error,omitempty"`
	DurationSec  float64          `json:"duration_sec"`
}

// StepEventPayload — событие жизненного цикла шага.
type StepEventPayload struct {
	RunID    uuid.UUID         `json:"run_id"`
	StepID   string            `json:"step_id"`
	Phase    string            `json:"phase"` // started | finished | skipped
	Status   domain.StepStatus `json:"status,omitempty"`
	ExitCode int               `json:"exit_code,omitempty"`
	Attempts int               `json:"attempts,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishRunRequested публикует заявку на выполнение workflow.
// Потребитель: runbook-server.
func (p *Publisher) PublishRunRequested(ctx context.Context, payload RunRequestedPayload) error {
	return p.Publish(ctx, ExchangeRuns, RoutingKeyRequested, envelope(MessageTypeRunRequested, payload))
}

// PublishRunFinished публикует итог завершённого run.
func (p *Publisher) PublishRunFinished(ctx context.Context, payload RunFinishedPayload) error {
	return p.Publish(ctx, ExchangeRuns, RoutingKeyFinished, envelope(MessageTypeRunFinished, payload))
}

// PublishStepEvent публикует событие жизненного цикла шага.
func (p *Publisher) PublishStepEvent(ctx context.Context, payload StepEventPayload) error {
	return p.Publish(ctx, ExchangeSteps, RoutingKeyStep, envelope(MessageTypeStepEvent, payload))
}

func envelope(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}
