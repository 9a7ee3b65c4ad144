// Package outbox — transactional outbox: событие пишется в той же транзакции,
// что и переход платёжной сущности, а OutboxWorker доставляет его в Kafka.
// Переход, который не применился (conditional update затронул 0 строк),
// ничего не публикует.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record — событие, ожидающее публикации.
type Record struct {
	ID            string
	AggregateType string // order | seller_application | ad_campaign
	AggregateID   string
	EventType     string
	Topic         string
	MessageKey    string
	Payload       []byte
	Headers       map[string]string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	RetryCount    int
	LastError     *string
	DeadLettered  bool
}

// New сериализует payload в JSON и готовит запись с ключом по id агрегата.
func New(topic, aggregateType, aggregateID, eventType string, payload any, headers map[string]string) (*Record, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации события %s: %w", eventType, err)
	}
	return &Record{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Topic:         topic,
		MessageKey:    aggregateID,
		Payload:       data,
		Headers:       headers,
	}, nil
}

// Model — строка таблицы outbox. Payload и headers хранятся текстом:
// схема одинаково работает в MySQL, PostgreSQL и SQLite.
type Model struct {
	ID            string     `gorm:"column:id;type:varchar(36);primaryKey"`
	AggregateType string     `gorm:"column:aggregate_type;type:varchar(32);not null;index:idx_outbox_aggregate"`
	AggregateID   string     `gorm:"column:aggregate_id;type:varchar(36);not null;index:idx_outbox_aggregate"`
	EventType     string     `gorm:"column:event_type;type:varchar(64);not null"`
	Topic         string     `gorm:"column:topic;type:varchar(128);not null"`
	MessageKey    string     `gorm:"column:message_key;type:varchar(64);not null"`
	Payload       string     `gorm:"column:payload;type:text;not null"`
	Headers       string     `gorm:"column:headers;type:text"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	ProcessedAt   *time.Time `gorm:"column:processed_at;index:idx_outbox_pending"`
	RetryCount    int        `gorm:"column:retry_count;not null;default:0"`
	LastError     *string    `gorm:"column:last_error;type:text"`
	DeadLettered  bool       `gorm:"column:dead_lettered;not null;default:false"`
}

// TableName — имя таблицы.
func (Model) TableName() string {
	return "outbox"
}

func (m *Model) toRecord() *Record {
	r := &Record{
		ID:            m.ID,
		AggregateType: m.AggregateType,
		AggregateID:   m.AggregateID,
		EventType:     m.EventType,
		Topic:         m.Topic,
		MessageKey:    m.MessageKey,
		Payload:       []byte(m.Payload),
		CreatedAt:     m.CreatedAt,
		ProcessedAt:   m.ProcessedAt,
		RetryCount:    m.RetryCount,
		LastError:     m.LastError,
		DeadLettered:  m.DeadLettered,
	}
	if m.Headers != "" {
		_ = json.Unmarshal([]byte(m.Headers), &r.Headers)
	}
	return r
}

func modelFromRecord(r *Record) *Model {
	m := &Model{
		ID:            r.ID,
		AggregateType: r.AggregateType,
		AggregateID:   r.AggregateID,
		EventType:     r.EventType,
		Topic:         r.Topic,
		MessageKey:    r.MessageKey,
		Payload:       string(r.Payload),
		CreatedAt:     r.CreatedAt,
		ProcessedAt:   r.ProcessedAt,
		RetryCount:    r.RetryCount,
		LastError:     r.LastError,
		DeadLettered:  r.DeadLettered,
	}
	if len(r.Headers) > 0 {
		if data, err := json.Marshal(r.Headers); err == nil {
			m.Headers = string(data)
		}
	}
	return m
}
