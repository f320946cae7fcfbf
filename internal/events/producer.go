// Package events publishes order and review domain events to Kafka.
// Publishing is fire-and-forget from the caller's point of view: the HTTP
// request never fails because an event could not be delivered.
package events

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/pharmakart/orderflow/pkg/models"
)

const (
	OrderCreatedTopic       = "order.created"
	OrderStatusChangedTopic = "order.status_changed"
	OrderCancelledTopic     = "order.cancelled"
	ReviewCreatedTopic      = "review.created"
)

type OrderCreatedEvent struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CustomerID  string    `json:"customer_id"`
	SellerID    string    `json:"seller_id"`
	TotalAmount float64   `json:"total_amount"`
	CreatedAt   time.Time `json:"created_at"`
	EventTime   time.Time `json:"event_time"`
}

type OrderStatusChangedEvent struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	SellerID   string    `json:"seller_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	EventTime  time.Time `json:"event_time"`
}

type ReviewCreatedEvent struct {
	ReviewID   string    `json:"review_id"`
	OrderID    string    `json:"order_id"`
	MedicineID string    `json:"medicine_id"`
	AuthorID   string    `json:"author_id"`
	AuthorRole string    `json:"author_role"`
	Rating     *int      `json:"rating,omitempty"`
	IsReply    bool      `json:"is_reply"`
	EventTime  time.Time `json:"event_time"`
}

// Publisher is what the order and review services publish through. The
// Kafka producer implements it; tests and broker-less deployments use Nop.
type Publisher interface {
	OrderCreated(order *models.Order) error
	OrderStatusChanged(order *models.Order, from models.OrderStatus) error
	OrderCancelled(order *models.Order) error
	ReviewCreated(review *models.Review) error
}

type KafkaProducer struct {
	producer sarama.SyncProducer
	logger   *logrus.Logger
}

func NewKafkaProducer(brokers string, logger *logrus.Logger) (*KafkaProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer([]string{brokers}, config)
	if err != nil {
		return nil, err
	}

	return &KafkaProducer{
		producer: producer,
		logger:   logger,
	}, nil
}

func (p *KafkaProducer) OrderCreated(order *models.Order) error {
	return p.publish(OrderCreatedTopic, order.ID, OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		SellerID:    order.SellerID,
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt,
		EventTime:   time.Now(),
	})
}

func (p *KafkaProducer) OrderStatusChanged(order *models.Order, from models.OrderStatus) error {
	return p.publish(OrderStatusChangedTopic, order.ID, OrderStatusChangedEvent{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		SellerID:   order.SellerID,
		FromStatus: string(from),
		ToStatus:   string(order.Status),
		EventTime:  time.Now(),
	})
}

func (p *KafkaProducer) OrderCancelled(order *models.Order) error {
	return p.publish(OrderCancelledTopic, order.ID, OrderStatusChangedEvent{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		SellerID:   order.SellerID,
		ToStatus:   string(order.Status),
		EventTime:  time.Now(),
	})
}

func (p *KafkaProducer) ReviewCreated(review *models.Review) error {
	return p.publish(ReviewCreatedTopic, review.ID, ReviewCreatedEvent{
		ReviewID:   review.ID,
		OrderID:    review.OrderID,
		MedicineID: review.MedicineID,
		AuthorID:   review.AuthorID,
		AuthorRole: string(review.AuthorRole),
		Rating:     review.Rating,
		IsReply:    !review.TopLevel(),
		EventTime:  time.Now(),
	})
}

func (p *KafkaProducer) publish(topic, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithField("topic", topic).Error("Failed to send message to Kafka")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"topic":     topic,
		"partition": partition,
		"offset":    offset,
		"key":       key,
	}).Info("Event published to Kafka")

	return nil
}

func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}

// Nop discards every event. Used in tests and when no brokers are
// configured.
type Nop struct{}

func (Nop) OrderCreated(*models.Order) error                           { return nil }
func (Nop) OrderStatusChanged(*models.Order, models.OrderStatus) error { return nil }
func (Nop) OrderCancelled(*models.Order) error                         { return nil }
func (Nop) ReviewCreated(*models.Review) error                         { return nil }
