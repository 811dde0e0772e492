package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/postings-report/internal/worker/domain"
)

// setupConsumer sets up RabbitMQ consumer with QoS and returns delivery channel
func (w *Worker) setupConsumer(ctx context.Context) (<-chan amqp.Delivery, error) {
	// Prefetch bounds unacknowledged deliveries held by this consumer
	if err := w.broker.Qos(w.prefetchCount); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	w.logger.Info("RabbitMQ QoS configured",
		slog.Int("prefetch_count", w.prefetchCount),
	)

	// Manual ack, consumer tag is the worker ID
	deliveries, err := w.broker.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.String("queue", w.queueName),
	)

	return deliveries, nil
}

// startMessageDispatcher listens to RabbitMQ deliveries and dispatches reports to worker pool
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return

		case <-w.stopChan:
			w.logger.Info("Message dispatcher stopped - stopChan closed")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			msg, err := decodeMessage(delivery)
			if err != nil {
				w.logger.Error("Rejecting malformed message",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				// Malformed messages are never requeued
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			select {
			case w.reportsChan <- msg:
				w.logger.Debug("Report dispatched to worker pool",
					slog.String("report_id", msg.ReportID),
					slog.Uint64("delivery_tag", msg.DeliveryTag),
				)
			case <-ctx.Done():
				w.requeueOnShutdown(msg)
				return
			case <-w.stopChan:
				w.requeueOnShutdown(msg)
				return
			}
		}
	}
}

// requeueOnShutdown hands an undispatched message back to the queue
func (w *Worker) requeueOnShutdown(msg *domain.ReportMessage) {
	w.logger.Info("Message dispatcher stopped while dispatching report",
		slog.String("report_id", msg.ReportID),
	)
	if nackErr := msg.Nack(true); nackErr != nil {
		w.logger.Error("Failed to NACK message on shutdown",
			slog.String("error", nackErr.Error()),
		)
	}
}

// decodeMessage parses the delivery body into a ReportMessage bound to the delivery
func decodeMessage(delivery amqp.Delivery) (*domain.ReportMessage, error) {
	var msg domain.ReportMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message JSON: %w", err)
	}

	if _, err := uuid.Parse(msg.ReportID); err != nil {
		return nil, fmt.Errorf("invalid report_id %q: %w", msg.ReportID, err)
	}

	msg.DeliveryTag = delivery.DeliveryTag
	msg.Acknowledger = delivery.Acknowledger
	return &msg, nil
}
