package domain

import amqp "github.com/rabbitmq/amqp091-go"

// Report represents a claimed report row for worker processing
type Report struct {
	ReportID       string
	Params         string // JSON string
	Status         string
	WorkerID       string
	RetryCount     int
	MaxRetries     int
	TimeoutSeconds int
}

// ReportMessage represents a report message from RabbitMQ
type ReportMessage struct {
	ReportID     string            `json:"report_id"`
	DeliveryTag  uint64            `json:"-"`
	Acknowledger amqp.Acknowledger `json:"-"`
}

// Ack acknowledges the delivery the message arrived on
func (m *ReportMessage) Ack() error {
	return m.Acknowledger.Ack(m.DeliveryTag, false)
}

// Nack rejects the delivery, optionally returning it to the queue
func (m *ReportMessage) Nack(requeue bool) error {
	return m.Acknowledger.Nack(m.DeliveryTag, false, requeue)
}
