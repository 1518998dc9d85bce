package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
)

// Publisher はメッセージを発行するインターフェースです
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	Close()
}

// EventProducer はRabbitMQの接続とチャネルを保持します
type EventProducer struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// EventProducerFallback はRabbitMQが使えない場合に発行を読み捨てるPublisherです
type EventProducerFallback struct{}

func (p *EventProducerFallback) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	log.Printf("RabbitMQ is not configured, publish skipped: exchange=%s routing_key=%s", exchange, routingKey)
	return nil
}

func (p *EventProducerFallback) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer は新しいEventProducerを作成します
func NewEventProducer(amqpURL string) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// 起動時に接続待ちで止まらないようにタイムアウトを設定
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &EventProducer{conn: conn, channel: ch}, nil
}

// NewPublisher はURLが設定されていればEventProducerを、なければフォールバックを返します
// 接続に失敗した場合もフォールバックで起動を続けます
func NewPublisher(amqpURL string) Publisher {
	if strings.TrimSpace(amqpURL) == "" {
		return &EventProducerFallback{}
	}
	producer, err := NewEventProducer(amqpURL)
	if err != nil {
		log.Printf("Failed to create RabbitMQ producer, events will be dropped: %v", err)
		return &EventProducerFallback{}
	}
	return producer
}

// Publish はexchangeにJSONのメッセージを発行します
// 失敗した場合はチャネルを開き直して1度だけ再試行します
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.publish(ctx, exchange, routingKey, jsonBody)
	if err == nil {
		return nil
	}

	log.Printf("Failed to publish to %s (%s), reopening channel: %v", exchange, routingKey, err)
	ch, chErr := p.conn.Channel()
	if chErr != nil {
		return fmt.Errorf("failed to reopen channel: %w", chErr)
	}
	p.channel = ch
	return p.publish(ctx, exchange, routingKey, jsonBody)
}

func (p *EventProducer) publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	// exchangeはdurableなtopicとして宣言しておく
	if err := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	return p.channel.PublishWithContext(ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// Close はチャネルと接続を閉じます
func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// ReservationEventPublisher は予約イベントをイベント種別をルーティングキーとして発行します
type ReservationEventPublisher struct {
	publisher Publisher
	exchange  string
}

// NewReservationEventPublisher は新しいReservationEventPublisherを作成します
func NewReservationEventPublisher(publisher Publisher, exchange string) *ReservationEventPublisher {
	return &ReservationEventPublisher{publisher: publisher, exchange: exchange}
}

// PublishReservationEvent は予約イベントを発行します
func (p *ReservationEventPublisher) PublishReservationEvent(ctx context.Context, event model.ReservationEvent) error {
	return p.publisher.Publish(ctx, p.exchange, string(event.Type), event)
}
