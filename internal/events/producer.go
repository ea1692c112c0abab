// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TopicOrders   = "order_events"
	TopicPayments = "payment_events"
	TopicMenu     = "menu_events"

	writeTimeout = 5 * time.Second
)

// Publisher is what services depend on. Publish failures never undo a
// committed transaction; callers log them.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
}

func NewProducer(brokers []string) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           writeTimeout,
	}
	return &Producer{writer: w}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write failed: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Noop is used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, string, any) error { return nil }
func (Noop) Close() error                                         { return nil }

// New returns a Kafka producer, or Noop when brokers is empty.
func New(brokers []string) Publisher {
	if len(brokers) == 0 {
		return Noop{}
	}
	return NewProducer(brokers)
}

func Key(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

type OrderPlaced struct {
	Type        string    `json:"type"`
	OrderID     uint      `json:"order_id"`
	UserID      uint      `json:"user_id"`
	FinalAmount string    `json:"final_amount"`
	PromoCodeID *uint     `json:"promo_code_id,omitempty"`
	At          time.Time `json:"at"`
}

type OrderStatusChanged struct {
	Type    string    `json:"type"`
	OrderID uint      `json:"order_id"`
	UserID  uint      `json:"user_id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Refund  string    `json:"refund,omitempty"`
	Debit   string    `json:"debit,omitempty"`
	At      time.Time `json:"at"`
}

type BalanceToppedUp struct {
	Type       string    `json:"type"`
	PaymentID  uint      `json:"payment_id"`
	UserID     uint      `json:"user_id"`
	Amount     string    `json:"amount"`
	Fee        string    `json:"fee"`
	Method     string    `json:"method"`
	NewBalance string    `json:"new_balance"`
	At         time.Time `json:"at"`
}

type MealChanged struct {
	Type   string    `json:"type"`
	MealID uint      `json:"meal_id"`
	At     time.Time `json:"at"`
}

const (
	TypeOrderPlaced        = "order_placed"
	TypeOrderStatusChanged = "order_status_changed"
	TypeBalanceToppedUp    = "balance_topped_up"
	TypeMealUpserted       = "meal_upserted"
	TypeMealDeleted        = "meal_deleted"
)
